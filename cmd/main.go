package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/moncell/internal/adapters/http/api"
	"github.com/okian/moncell/internal/adapters/http/site"
	"github.com/okian/moncell/internal/adapters/http/swagger"
	app "github.com/okian/moncell/internal/app"
	"github.com/okian/moncell/internal/config"
	"github.com/okian/moncell/internal/domain/reference"
	"github.com/okian/moncell/pkg/logger"
	"github.com/okian/moncell/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 60 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Initialize logging
	if err := logger.Init(); err != nil {
		// Use stderr since logger isn't available yet
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	loggerInstance := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, loggerInstance); err != nil {
		loggerInstance.Error(ctx, "monitoring dashboard failed", logger.Error(err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, loggerInstance logger.Logger) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	metrics.Init(metricsOptions(cfg)...)

	// The reference directory is required to populate the entry form.
	dir, err := reference.LoadFile(ctx, cfg.ReferenceFile)
	if err != nil {
		return err
	}
	loggerInstance.Info(ctx, "reference directory loaded",
		logger.String("path", cfg.ReferenceFile),
		logger.Int("schools", dir.Len()),
	)

	svc := newService(cfg, dir, loggerInstance)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(ctx, svc, loggerInstance),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		loggerInstance.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for shutdown signal or a listener failure
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}
	loggerInstance.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "server stopped")
	return nil
}

// newService builds the dashboard service from configuration.
func newService(cfg *config.Config, dir *reference.Directory, l logger.Logger) *app.Service {
	return app.New(
		app.WithLogger(l),
		app.WithDataFile(cfg.DataFile),
		app.WithDirectory(dir),
		app.WithCatalog(cfg.TeamMembers, cfg.MetricNames),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithDefaultRangeDays(cfg.DefaultRangeDays),
	)
}

// newHandler registers every route and wraps the mux with request logging.
func newHandler(ctx context.Context, svc *app.Service, l logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// API docs under /api-docs and /openapi.yaml
	swagger.Register(ctx, mux)

	// Business API routes with the service dependency.
	api.NewServer(svc, svc, l.Named("api")).Register(ctx, mux)

	// Dashboard page at /
	site.Register(ctx, mux)

	return api.RequestLogger(l.Named("http"), mux)
}

// metricsOptions maps the metrics section of cfg onto collector options.
func metricsOptions(cfg *config.Config) []metrics.Option {
	return []metrics.Option{
		metrics.WithNamespace(cfg.MetricsNamespace),
		metrics.WithSubsystem(cfg.MetricsSubsystem),
		metrics.WithHistogramBuckets(cfg.MetricsBuckets),
		metrics.WithConstLabels(cfg.MetricsLabels),
	}
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics refreshes the gauges derived from service stats.
func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()
	if tracked, ok := stats["trackedSubmissions"].(int64); ok {
		metrics.UpdateDedupeTracked(tracked)
	}
}
