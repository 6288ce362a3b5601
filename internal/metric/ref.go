// Package metric decides which commit a coverage run is compared against and
// exchanges coverage metrics for that commit with the metric service.
package metric

import (
	"strings"

	"github.com/oleg-kozlyuk-grafana/go-coverdelta/internal/event"
)

const branchPrefix = "refs/heads/"

// CleanRef reduces a fully qualified branch ref ("refs/heads/main") to its short
// name ("main"). Any other ref, including the empty string, is returned unchanged.
func CleanRef(ref string) string {
	return strings.TrimPrefix(ref, branchPrefix)
}

// RefSha is a resolved comparison target. Its ref and sha are either both set or
// both empty; the zero value means "no base".
type RefSha struct {
	ref string
	sha string
}

// NewRefSha returns a RefSha for ref and sha. It reports false, and returns the
// zero value, when either of them is empty.
func NewRefSha(ref, sha string) (RefSha, bool) {
	if ref == "" || sha == "" {
		return RefSha{}, false
	}
	return RefSha{ref: ref, sha: sha}, true
}

// Ref returns the short branch name.
func (r RefSha) Ref() string { return r.ref }

// SHA returns the commit hash.
func (r RefSha) SHA() string { return r.sha }

// IsZero reports whether r is unresolved.
func (r RefSha) IsZero() bool { return r.ref == "" }

func (r RefSha) String() string {
	if r.IsZero() {
		return "<none>"
	}
	return r.ref + "@" + r.sha
}

// ResolveBase returns the commit the run identified by ev should be compared with.
//
// For pull requests that is the declared base branch and base commit. For pushes it
// is the commit the branch pointed to before the push. When either half is unknown,
// as on the first push of a repository, it reports false and the comparison should
// be skipped.
func ResolveBase(ev event.Context) (RefSha, bool) {
	if ev.PullRequest != nil {
		return NewRefSha(CleanRef(ev.PullRequest.BaseRef), ev.PullRequest.BaseSHA)
	}
	return NewRefSha(CleanRef(ev.Ref), ev.Before)
}
