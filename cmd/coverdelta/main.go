package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oleg-kozlyuk-grafana/go-coverdelta/internal/config"
	"github.com/oleg-kozlyuk-grafana/go-coverdelta/internal/metricapi"
	"github.com/oleg-kozlyuk-grafana/go-coverdelta/internal/runner"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"

	// CLI flags
	apiURL       string
	apiKey       string
	timeout      string
	eventSource  string
	workDir      string
	coverage     string
	outputFormat string
	githubOutput string
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "coverdelta",
	Short: "coverdelta - coverage delta against the base commit",
	Long: `coverdelta resolves the base commit of a CI run, fetches the coverage recorded
for it from a metric service and records the coverage of the current commit.

Inside GitHub Actions the event context is read from GITHUB_REF, GITHUB_SHA and
the GITHUB_EVENT_PATH payload. Elsewhere it is derived from the local git checkout.`,
	SilenceUsage: true,
}

var baseCmd = &cobra.Command{
	Use:   "base",
	Short: "Print the coverage recorded for the base commit",
	RunE:  runBase,
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Record coverage for the current commit",
	RunE:  runSend,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch the base coverage, record the current coverage and report the delta",
	RunE:  runRun,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("coverdelta %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(baseCmd, sendCmd, runCmd, versionCmd)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&apiURL, "api-url", "", "Metric service base URL (env COVERDELTA_API_URL)")
	flags.StringVar(&apiKey, "api-key", "", "Metric service API key (env COVERDELTA_API_KEY)")
	flags.StringVar(&timeout, "timeout", "30s", "Request timeout (env COVERDELTA_TIMEOUT)")
	flags.StringVar(&eventSource, "event-source", "", "Event context source: github or local (env COVERDELTA_EVENT_SOURCE)")
	flags.StringVar(&workDir, "workdir", "", "Git checkout used by the local event source (env COVERDELTA_WORKDIR)")

	for _, cmd := range []*cobra.Command{sendCmd, runCmd} {
		cmd.Flags().StringVar(&coverage, "coverage", "", "Coverage percentage of the current commit")
		_ = cmd.MarkFlagRequired("coverage")
	}

	runCmd.Flags().StringVar(&outputFormat, "format", "Text", "Report format: Text, Markdown, or GitHubOutput (env COVERDELTA_FORMAT)")
	runCmd.Flags().StringVar(&githubOutput, "github-output", "", "File step outputs are appended to (env GITHUB_OUTPUT)")
}

// loadConfig applies explicitly set flags over the environment and loads the client config
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	overrides := map[string]string{
		"api-url":       "COVERDELTA_API_URL",
		"api-key":       "COVERDELTA_API_KEY",
		"timeout":       "COVERDELTA_TIMEOUT",
		"event-source":  "COVERDELTA_EVENT_SOURCE",
		"workdir":       "COVERDELTA_WORKDIR",
		"format":        "COVERDELTA_FORMAT",
		"github-output": "COVERDELTA_GITHUB_OUTPUT",
	}
	for flag, env := range overrides {
		f := cmd.Flags().Lookup(flag)
		if f != nil && f.Changed {
			os.Setenv(env, f.Value.String())
		}
	}

	cfg, err := config.Load(config.ModeClient)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// newRunner builds a Runner talking to the configured metric service
func newRunner(cmd *cobra.Command) (*runner.Runner, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger := cfg.NewLogger(os.Stderr)

	client, err := metricapi.NewClient(cfg.Client.APIKey,
		metricapi.WithBaseURL(cfg.Client.APIURL),
		metricapi.WithTimeout(cfg.Client.Timeout),
		metricapi.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric service client: %w", err)
	}

	events := runner.GitHubEvents()
	if cfg.Client.EventSource == config.EventSourceLocal {
		events = runner.GitEvents(cfg.Client.WorkDir)
	}

	return runner.NewRunner(client, runner.Config{
		Format:           cfg.Client.Format,
		GitHubOutputPath: cfg.Client.GitHubOutput,
	},
		runner.WithEventSource(events),
		runner.WithOutput(cmd.OutOrStdout()),
		runner.WithLogger(logger),
	), nil
}

func runBase(cmd *cobra.Command, args []string) error {
	r, err := newRunner(cmd)
	if err != nil {
		return err
	}

	m, base, err := r.Base(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case base.IsZero():
		fmt.Fprintln(out, "No base commit could be resolved")
	case m == nil:
		fmt.Fprintf(out, "No metric recorded for %s\n", base)
	default:
		fmt.Fprintf(out, "%s: %s%% (%s)\n", base, strconv.FormatFloat(m.Coverage, 'f', -1, 64), m.ID)
	}
	return nil
}

func runSend(cmd *cobra.Command, args []string) error {
	r, err := newRunner(cmd)
	if err != nil {
		return err
	}

	id, err := r.Send(cmd.Context(), coverage)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}

func runRun(cmd *cobra.Command, args []string) error {
	r, err := newRunner(cmd)
	if err != nil {
		return err
	}

	_, err = r.Run(cmd.Context(), coverage)
	return err
}
