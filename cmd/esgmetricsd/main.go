// Esgmetricsd is the ESG evidence daemon.
//
// It serves evidence resolution, metric aggregation, tenant dashboards and
// the task sync endpoint over HTTP.
//
// Configuration is loaded from ~/.config/esgmetrics/config.yaml and
// ESGMETRICS_* environment variables. See internal/config for details.
//
// Usage:
//
//	# Start with defaults
//	esgmetricsd
//
//	# Use a specific config file and port
//	ESGMETRICS_SERVER_HTTP_PORT=8080 esgmetricsd -config /etc/esgmetrics/config.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fyrsmithlabs/esgmetrics/internal/config"
	"github.com/fyrsmithlabs/esgmetrics/internal/evidence"
	"github.com/fyrsmithlabs/esgmetrics/internal/extraction"
	httpserver "github.com/fyrsmithlabs/esgmetrics/internal/http"
	"github.com/fyrsmithlabs/esgmetrics/internal/kvstore"
	"github.com/fyrsmithlabs/esgmetrics/internal/logging"
	"github.com/fyrsmithlabs/esgmetrics/internal/pipeline"
	"github.com/fyrsmithlabs/esgmetrics/internal/taskstore"
	"github.com/fyrsmithlabs/esgmetrics/internal/telemetry"
	"go.uber.org/zap"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var configPath = flag.String("config", os.Getenv("ESGMETRICS_CONFIG"), "path to config file")

func main() {
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  esgmetricsd           Start the esgmetrics daemon\n")
			fmt.Fprintf(os.Stderr, "  esgmetricsd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("esgmetricsd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the daemon and blocks until ctx is cancelled.
//
//  1. Loads and validates configuration
//  2. Initializes logger and telemetry
//  3. Opens the evidence store and the task store
//  4. Builds the resolver and pipeline
//  5. Starts the HTTP server
//  6. Shuts down gracefully on context cancellation
func run(ctx context.Context, path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	tel, err := telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, version))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn(shutdownCtx, "telemetry shutdown failed", zap.Error(err))
		}
	}()

	logger.Info(ctx, "starting esgmetrics",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("store", cfg.Store.Provider),
		zap.Bool("telemetry", tel.IsEnabled()))

	deps, err := initDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close()

	srv, err := httpserver.NewServer(logger, &httpserver.Config{
		Host:      cfg.Server.Host,
		Port:      cfg.Server.Port,
		RateLimit: cfg.Server.RateLimit,
	},
		httpserver.WithResolver(deps.resolver),
		httpserver.WithPipeline(deps.pipeline),
		httpserver.WithTaskStore(deps.tasks),
		httpserver.WithHTTPMetrics(httpserver.NewHTTPMetrics(logger)),
	)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	logger.Info(ctx, "server configured",
		zap.String("health_endpoint", fmt.Sprintf("http://%s:%d/health", cfg.Server.Host, cfg.Server.Port)),
		zap.String("rule_version", deps.resolver.RuleVersion()))

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// initLogger builds the structured logger from the log section.
func initLogger(cfg *config.Config) (*logging.Logger, error) {
	lc := logging.NewDefaultConfig()
	level, err := logging.LevelFromString(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
	}
	lc.Level = level
	lc.Format = cfg.Log.Format
	lc.Fields["version"] = version
	return logging.NewLogger(lc, nil)
}

// dependencies holds the stores and services the server is wired with.
type dependencies struct {
	store    kvstore.Store
	tasks    *taskstore.Store
	resolver *evidence.Resolver
	pipeline *pipeline.Pipeline
	logger   *logging.Logger
}

// Close releases stores.
func (d *dependencies) Close() {
	ctx := context.Background()
	if d.tasks != nil {
		if err := d.tasks.Close(); err != nil {
			d.logger.Warn(ctx, "failed to close task store", zap.Error(err))
		}
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			d.logger.Warn(ctx, "failed to close evidence store", zap.Error(err))
		}
	}
}

func initDependencies(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*dependencies, error) {
	deps := &dependencies{logger: logger}

	rules := extraction.DefaultRuleTable()
	if cfg.Rules.File != "" {
		path, err := config.ExpandPath(cfg.Rules.File)
		if err != nil {
			return nil, err
		}
		if rules, err = extraction.LoadRuleFile(path); err != nil {
			return nil, err
		}
		logger.Info(ctx, "loaded rule overrides",
			zap.String("path", path),
			zap.String("rule_version", rules.Version()))
	}
	deps.resolver = evidence.NewResolver(
		evidence.WithRules(rules),
		evidence.WithLogger(logger.Named("evidence")),
	)

	store, err := kvstore.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	deps.store = store

	deps.pipeline, err = pipeline.New(store, deps.resolver, pipeline.WithLogger(logger.Named("pipeline")))
	if err != nil {
		deps.Close()
		return nil, err
	}

	path, err := config.ExpandPath(cfg.TaskStore.Path)
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.tasks, err = taskstore.Open(path, taskstore.WithLogger(logger.Named("taskstore")))
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to open task store at %s: %w", path, err)
	}

	return deps, nil
}
