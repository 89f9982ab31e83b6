package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/shell/api"
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/shell/api/openapi"
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/shell/docker"
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/shell/history"
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/shell/metrics"
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/shell/process"
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/shell/workers"
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/shell/workflow"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess         = 0
	ExitConfigError     = 1
	ExitDatabaseError   = 2
	ExitDockerError     = 3
	ExitHTTPServerError = 4
	ExitRunFailed       = 5
)

const dockerPingTimeout = 5 * time.Second

// =============================================================================
// Components
// =============================================================================

// components are the long-lived dependencies of the engine, shared by the
// serve and run commands.
type components struct {
	engine  *workflow.Engine
	docker  *docker.DockerClient // nil when the engine is unavailable
	history *history.SQLiteStore // nil when history is disabled
	logger  *slog.Logger
}

// openComponents connects to docker and the history database and builds the
// engine. observer may be nil.
func openComponents(cfg *Config, logger *slog.Logger, observer workflow.Observer) (*components, error) {
	c := &components{logger: logger}

	if cfg.History.Enabled {
		if err := ensureDSNDir(cfg.History.DSN); err != nil {
			return nil, &ServerError{Op: "openHistory", Err: err, ExitCode: ExitDatabaseError}
		}
		s, err := history.NewSQLiteStore(cfg.History.DSN)
		if err != nil {
			return nil, &ServerError{Op: "openHistory", Err: err, ExitCode: ExitDatabaseError}
		}
		c.history = s
		logger.Info("run history enabled", "dsn", cfg.History.DSN)
	}

	d, err := connectDocker(cfg.Docker.Host)
	if err != nil {
		if cfg.Docker.Required {
			c.Close()
			return nil, &ServerError{Op: "connectDocker", Err: err, ExitCode: ExitDockerError}
		}
		logger.Warn("container engine unavailable, docker builds disabled", "error", err)
	} else {
		c.docker = d
	}

	opts := []workflow.Option{workflow.WithLogger(logger)}
	if c.docker != nil {
		opts = append(opts, workflow.WithDocker(c.docker))
	}
	if c.history != nil {
		opts = append(opts, workflow.WithHistory(c.history))
	}
	if observer != nil {
		opts = append(opts, workflow.WithObserver(observer))
	}

	runner := process.NewShellRunner(cfg.RunnerConfig(), logger)
	engine, err := workflow.New(cfg.EngineConfig(), runner, opts...)
	if err != nil {
		c.Close()
		return nil, &ServerError{Op: "newEngine", Err: err, ExitCode: ExitConfigError}
	}
	c.engine = engine

	return c, nil
}

// connectDocker creates a client and verifies the daemon answers.
func connectDocker(host string) (*docker.DockerClient, error) {
	d, err := docker.NewDockerClient(host)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), dockerPingTimeout)
	defer cancel()

	if err := d.Ping(ctx); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

// ensureDSNDir creates the parent directory of a file-backed DSN.
func ensureDSNDir(dsn string) error {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	return os.MkdirAll(filepath.Dir(dsn), 0755)
}

// Close releases the docker client and the history database.
func (c *components) Close() {
	if c.docker != nil {
		if err := c.docker.Close(); err != nil {
			c.logger.Error("Docker client close error", "error", err)
		}
	}
	if c.history != nil {
		if err := c.history.Close(); err != nil {
			c.logger.Error("history database close error", "error", err)
		}
	}
}

// =============================================================================
// Server
// =============================================================================

// Server represents the deployer HTTP server.
type Server struct {
	config     *Config
	httpServer *http.Server
	components *components
	janitor    *workers.Janitor
	cancelRuns context.CancelFunc
	logger     *slog.Logger
}

// NewServer creates a new server with the given config.
func NewServer(cfg *Config, logger *slog.Logger) (*Server, error) {
	registry, m := metrics.NewRegistry()

	c, err := openComponents(cfg, logger, m)
	if err != nil {
		return nil, err
	}

	opts := []api.Option{
		api.WithLogger(logger),
		api.WithMetrics(metrics.HandlerFor(registry)),
		api.WithOpenAPI(openapi.NewGenerator(
			openapi.WithVersion(Version),
			openapi.WithServer("http://"+cfg.Server.Address()),
		)),
	}
	if c.docker != nil {
		opts = append(opts, api.WithDocker(c.docker))
	}
	if c.history != nil {
		opts = append(opts, api.WithHistory(c.history))
	}
	handler := api.NewHandler(c.engine, opts...)

	// Request contexts derive from runCtx so a timed-out shutdown can
	// terminate the processes of in-flight workflows.
	runCtx, cancelRuns := context.WithCancel(context.Background())

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return runCtx },
	}

	var janitor *workers.Janitor
	if cfg.Staging.JanitorInterval > 0 {
		var sweeper workers.ImageSweeper
		if c.docker != nil {
			sweeper = c.docker
		}
		janitor = workers.NewJanitor(sweeper, workers.JanitorConfig{
			Interval: cfg.Staging.JanitorInterval,
			MaxAge:   cfg.Staging.JanitorMaxAge,
			TempRoot: cfg.Staging.TempDir,
		}, logger)
	}

	return &Server{
		config:     cfg,
		httpServer: httpServer,
		components: c,
		janitor:    janitor,
		cancelRuns: cancelRuns,
		logger:     logger,
	}, nil
}

// Start starts the server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	// Start janitor worker
	if s.janitor != nil {
		s.janitor.Start()
	}

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server",
			"address", s.config.Server.Address(),
			"staging_root", s.config.Staging.Root,
			"validation_policy", s.config.Validation.Policy,
		)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-sigCh:
		s.logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		s.cancelRuns()
		if s.janitor != nil {
			s.janitor.Stop()
		}
		s.components.Close()
		return &ServerError{
			Op:       "Start",
			Err:      err,
			ExitCode: ExitHTTPServerError,
		}
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown(context.Background())
}

// Shutdown gracefully shuts down the server. In-flight workflows still
// running when the shutdown timeout elapses are cancelled.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}
	s.cancelRuns()

	// Stop janitor worker
	if s.janitor != nil {
		s.janitor.Stop()
	}

	s.components.Close()

	s.logger.Info("shutdown complete")
	return nil
}

// =============================================================================
// Server Error
// =============================================================================

// ServerError represents an error during server operation.
type ServerError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *ServerError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ServerError) Unwrap() error {
	return e.Err
}
