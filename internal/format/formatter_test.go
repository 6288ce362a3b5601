package format

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oleg-kozlyuk-grafana/go-coverdelta/internal/metric"
)

func TestNew(t *testing.T) {
	tests := []struct {
		format  string
		want    Formatter
		wantErr bool
	}{
		{format: "Text", want: &TextFormatter{}},
		{format: "Markdown", want: &MarkdownFormatter{}},
		{format: "GitHubOutput", want: &GitHubOutputFormatter{}},
		{format: "text", wantErr: true},
		{format: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			f, err := New(tt.format)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "unknown format")
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, f)
		})
	}
}

func TestFormatters_NilReport(t *testing.T) {
	for _, f := range []Formatter{&TextFormatter{}, &MarkdownFormatter{}, &GitHubOutputFormatter{}} {
		err := f.Format(nil, &bytes.Buffer{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "report is nil")
	}
}

func TestReport_Delta(t *testing.T) {
	r := &Report{Coverage: 92.3}
	_, ok := r.Delta()
	assert.False(t, ok)
	assert.False(t, r.HasBase())

	r.Base = &metric.Metric{Coverage: 80}
	d, ok := r.Delta()
	require.True(t, ok)
	assert.InDelta(t, 12.3, d, 1e-9)
}

func TestFormatDelta(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{in: 12.299999999999997, want: "+12.30%"},
		{in: -0.5, want: "-0.50%"},
		{in: 0, want: "+0.00%"},
		{in: -0.001, want: "+0.00%"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatDelta(tt.in))
		})
	}
}

func TestTextFormatter_Format(t *testing.T) {
	tests := map[string]string{
		"with base": `Coverage for feature/x@bbb222bbb222: 92.30%
Base develop@aaa111aaa111: 80.00%
Delta: +12.30%
Recorded as pm-2
`,
		"base without metric": `Coverage for main@ccc333: 75.00%
Base main@bbb222: no metric recorded
Recorded as pm-3
`,
		"no base": `Coverage for main@ddd444: 60.13%
Base: none (no base commit could be resolved)
Recorded as pm-4
`,
	}

	for name, report := range reports(t) {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, (&TextFormatter{}).Format(report, &buf))
			assert.Equal(t, tests[name], buf.String())
		})
	}
}

func TestMarkdownFormatter_Format(t *testing.T) {
	tests := map[string]string{
		"with base": `## Coverage Report

| | Ref | Commit | Coverage |
|---|---|---|---|
| Current | feature/x | bbb222b | 92.30% |
| Base | develop | aaa111a | 80.00% |

**Delta:** +12.30%
`,
		"base without metric": `## Coverage Report

| | Ref | Commit | Coverage |
|---|---|---|---|
| Current | main | ccc333 | 75.00% |
| Base | main | bbb222 | n/a |

**Delta:** no base coverage to compare against
`,
		"no base": `## Coverage Report

| | Ref | Commit | Coverage |
|---|---|---|---|
| Current | main | ddd444 | 60.13% |

**Delta:** no base coverage to compare against
`,
	}

	for name, report := range reports(t) {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, (&MarkdownFormatter{}).Format(report, &buf))
			assert.Equal(t, tests[name], buf.String())
		})
	}
}

func TestGitHubOutputFormatter_Format(t *testing.T) {
	tests := map[string]string{
		"with base": `coverage=92.30
project-metric-id=pm-2
base-ref=develop
base-sha=aaa111aaa111
base-coverage=80.00
delta=12.30
`,
		"base without metric": `coverage=75.00
project-metric-id=pm-3
base-ref=main
base-sha=bbb222
`,
		"no base": `coverage=60.13
project-metric-id=pm-4
`,
	}

	for name, report := range reports(t) {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, (&GitHubOutputFormatter{}).Format(report, &buf))
			assert.Equal(t, tests[name], buf.String())
		})
	}
}
