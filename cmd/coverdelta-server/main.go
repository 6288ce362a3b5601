package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oleg-kozlyuk-grafana/go-coverdelta/internal/config"
	"github.com/oleg-kozlyuk-grafana/go-coverdelta/internal/queue"
	"github.com/oleg-kozlyuk-grafana/go-coverdelta/internal/server"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"

	// CLI flags
	port        int
	storageType string
	queueType   string
	apiKeys     []string
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
	Use:   "coverdelta-server",
	Short: "coverdelta metric server",
	Long: `coverdelta-server stores coverage metrics per ref and commit and serves them to
coverdelta clients over HTTP:

  GET  /project-metrics?ref=&sha=
  POST /project-metrics
  GET  /project-metrics/history?ref=

Each stored metric can be announced on a message queue (Redis Streams or Pub/Sub).`,
	SilenceUsage: true,
	RunE:         run,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Log metric-recorded events from the message queue",
	RunE:  runWatch,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("coverdelta-server %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd, versionCmd)

	rootCmd.Flags().IntVar(&port, "port", 8080, "HTTP server port")
	rootCmd.Flags().StringVar(&storageType, "storage", "memory", "Storage backend: memory, gcs, minio, or redis")
	rootCmd.Flags().StringSliceVar(&apiKeys, "api-key", nil, "Accepted API key (repeatable; empty disables authentication)")
	rootCmd.PersistentFlags().StringVar(&queueType, "queue", "", "Message queue: none, inmemory, redis, or pubsub")
}

// applyFlags overrides environment variables with CLI flags if they were explicitly set
func applyFlags(cmd *cobra.Command) {
	if f := cmd.Flags().Lookup("port"); f != nil && f.Changed {
		os.Setenv("COVERDELTA_PORT", fmt.Sprintf("%d", port))
	}
	if f := cmd.Flags().Lookup("storage"); f != nil && f.Changed {
		os.Setenv("COVERDELTA_STORAGE_TYPE", storageType)
	}
	if f := cmd.Flags().Lookup("api-key"); f != nil && f.Changed {
		os.Setenv("COVERDELTA_API_KEYS", strings.Join(apiKeys, ","))
	}
	if f := cmd.Flags().Lookup("queue"); f != nil && f.Changed {
		os.Setenv("COVERDELTA_QUEUE_TYPE", queueType)
	}
}

func run(cmd *cobra.Command, args []string) error {
	applyFlags(cmd)

	cfg, err := config.Load(config.ModeServer)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx := cmd.Context()
	logger := cfg.NewLogger(os.Stderr)

	fmt.Printf("Starting coverdelta-server on port %d\n", cfg.Port)
	fmt.Printf("Storage type: %s\n", cfg.Storage.Type)
	fmt.Printf("Queue type: %s\n", cfg.Queue.Type)
	if len(cfg.Server.APIKeys) == 0 {
		fmt.Println("WARNING: no API keys configured, authentication is disabled.")
	}

	store, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()

	q, err := openQueue(ctx, cfg.Queue, false, logger)
	if err != nil {
		return fmt.Errorf("failed to open queue: %w", err)
	}
	if q != nil {
		defer q.Close()
	}

	// The in-memory queue has no other process to read it, so drain it here
	if cfg.Queue.Type == config.QueueTypeInMemory {
		go func() {
			if err := q.Subscribe(ctx, logEvent(logger)); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("in-memory subscriber stopped", "error", err)
			}
		}()
	}

	srv, err := server.New(server.Config{
		Port:    cfg.Port,
		Logger:  logger,
		Storage: store,
		Queue:   q,
		APIKeys: cfg.Server.APIKeys,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runWatch(cmd *cobra.Command, args []string) error {
	applyFlags(cmd)

	cfg, err := config.Load(config.ModeWatch)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx := cmd.Context()
	logger := cfg.NewLogger(os.Stderr)

	q, err := openQueue(ctx, cfg.Queue, true, logger)
	if err != nil {
		return fmt.Errorf("failed to open queue: %w", err)
	}
	defer q.Close()

	fmt.Printf("Watching %s queue for recorded metrics\n", cfg.Queue.Type)

	err = q.Subscribe(ctx, logEvent(logger))
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// logEvent returns a queue handler that logs each recorded metric
func logEvent(logger *slog.Logger) queue.Handler {
	return func(ctx context.Context, m *queue.MetricRecorded) error {
		logger.Info("metric recorded",
			"id", m.ProjectMetricID,
			"ref", m.Ref,
			"sha", m.SHA,
			"coverage", m.Coverage,
			"recorded_at", m.RecordedAt,
		)
		return nil
	}
}
