// Package workflow drives deployment artifacts through their tool-specific
// stages and produces a Report for every run.
//
// The Engine is the only entry point. It validates the request, takes the
// tool's staging directory, runs the workflow for the requested action and
// records what happened. Expected failures (bad syntax, failed builds,
// failed CLI commands) never leave this package as Go errors; they are
// reported as unsuccessful Reports with the logs collected so far.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/domain"
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/logs"
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/report"
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/shell/docker"
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/shell/staging"
)

// =============================================================================
// Collaborators
// =============================================================================

// Runner executes a shell command and captures its output.
type Runner interface {
	Run(ctx context.Context, command, workingDir string, timeout time.Duration) logs.CommandResult
}

// BuildValidator proves a Dockerfile builds without leaving anything behind.
type BuildValidator interface {
	Validate(ctx context.Context, content string) docker.Outcome
}

// Observer is notified about finished runs and leaked resources.
type Observer interface {
	RunFinished(tool domain.Tool, action domain.Action, success bool, elapsed time.Duration)
	CleanupIncomplete(tool domain.Tool, resource string)
}

// History records run summaries.
type History interface {
	RecordRun(ctx context.Context, s report.Summary) error
}

// =============================================================================
// Configuration
// =============================================================================

// Config configures an Engine.
type Config struct {
	// StagingRoot holds one fixed working directory per tool.
	StagingRoot string

	// Policy decides whether failed validation fails kubernetes, argocd,
	// helm and jenkins runs.
	Policy domain.ValidationPolicy

	// CommandTimeout bounds each CLI invocation.
	CommandTimeout time.Duration

	// BuildTimeout bounds every image build, validation builds included.
	BuildTimeout time.Duration

	// MaxLogBytes bounds the log stream of a single run.
	MaxLogBytes int

	// PublicHost is the host name used in access URLs.
	PublicHost string

	TerraformBin string
	KubectlBin   string
	HelmBin      string

	// VerifyBuild runs an ephemeral validation build on docker deploy.
	VerifyBuild bool

	// TempDir is where ephemeral build contexts are created. Empty uses the
	// system temp dir.
	TempDir string
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		StagingRoot:    "./deployments",
		Policy:         domain.PolicyAdvisory,
		CommandTimeout: 10 * time.Minute,
		BuildTimeout:   15 * time.Minute,
		MaxLogBytes:    logs.DefaultMaxBytes,
		PublicHost:     "localhost",
		TerraformBin:   "terraform",
		KubectlBin:     "kubectl",
		HelmBin:        "helm",
	}
}

// recordTimeout bounds the history write after a run.
const recordTimeout = 5 * time.Second

// =============================================================================
// Engine
// =============================================================================

// Engine runs deployment workflows.
type Engine struct {
	cfg       Config
	runner    Runner
	docker    docker.Client
	validator BuildValidator
	staging   *staging.Manager
	observer  Observer
	history   History
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithDocker sets the container engine client. Without one, docker builds
// and runs fail with "container engine unavailable".
func WithDocker(c docker.Client) Option {
	return func(e *Engine) {
		e.docker = c
	}
}

// WithValidator overrides the ephemeral build validator.
func WithValidator(v BuildValidator) Option {
	return func(e *Engine) {
		e.validator = v
	}
}

// WithObserver sets the run observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observer = o
	}
}

// WithHistory sets where run summaries are recorded.
func WithHistory(h History) Option {
	return func(e *Engine) {
		e.history = h
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Engine.
func New(cfg Config, runner Runner, opts ...Option) (*Engine, error) {
	defaults := DefaultConfig()
	if cfg.StagingRoot == "" {
		cfg.StagingRoot = defaults.StagingRoot
	}
	if cfg.Policy == "" {
		cfg.Policy = defaults.Policy
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = defaults.CommandTimeout
	}
	if cfg.BuildTimeout <= 0 {
		cfg.BuildTimeout = defaults.BuildTimeout
	}
	if cfg.MaxLogBytes <= 0 {
		cfg.MaxLogBytes = defaults.MaxLogBytes
	}
	if cfg.PublicHost == "" {
		cfg.PublicHost = defaults.PublicHost
	}
	if cfg.TerraformBin == "" {
		cfg.TerraformBin = defaults.TerraformBin
	}
	if cfg.KubectlBin == "" {
		cfg.KubectlBin = defaults.KubectlBin
	}
	if cfg.HelmBin == "" {
		cfg.HelmBin = defaults.HelmBin
	}

	mgr, err := staging.NewManager(cfg.StagingRoot)
	if err != nil {
		return nil, fmt.Errorf("staging root: %w", err)
	}

	e := &Engine{
		cfg:     cfg,
		runner:  runner,
		staging: mgr,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.validator == nil && e.docker != nil {
		e.validator = docker.NewEphemeralValidator(e.docker, cfg.TempDir, e.logger)
	}
	return e, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// =============================================================================
// Execute
// =============================================================================

// run carries the state of one workflow run.
type run struct {
	id     string
	req    domain.Request
	b      *report.Builder
	logger *slog.Logger
}

// Execute runs the workflow for req and returns its report. It never panics
// and never returns a Go error: every outcome is a Report.
func (e *Engine) Execute(ctx context.Context, req domain.Request) report.Report {
	started := e.now()
	runID := uuid.NewString()

	normalized, err := req.Validate()
	if err != nil {
		e.logger.Info("rejected deployment request",
			"run_id", runID,
			"tool", req.Tool,
			"user", attribution(req.User),
			"error", err,
		)
		rep := report.Failure(err.Error())
		rep.RunID = runID
		rep.Tool = req.Tool
		rep.Action = req.Mode
		return rep
	}
	req = normalized

	r := &run{
		id:  runID,
		req: req,
		b:   report.NewBuilder(e.cfg.MaxLogBytes),
		logger: e.logger.With(
			"run_id", runID,
			"tool", req.Tool,
			"action", req.Mode,
			"user", attribution(req.User),
		),
	}
	r.logger.Info("run started")

	rep := e.dispatch(ctx, r)
	rep.RunID = runID
	rep.Tool = req.Tool
	rep.Action = req.Mode

	finished := e.now()
	elapsed := finished.Sub(started)
	r.logger.Info("run finished",
		"success", rep.Success,
		"duration", elapsed,
		"cleanup_incomplete", rep.CleanupIncomplete,
	)

	if e.observer != nil {
		e.observer.RunFinished(req.Tool, req.Mode, rep.Success, elapsed)
	}
	e.record(ctx, r, report.Summarize(runID, req, rep, started, finished))
	return rep
}

// dispatch runs the tool workflow and turns a panic into a failed report.
func (e *Engine) dispatch(ctx context.Context, r *run) (rep report.Report) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("workflow panicked", "panic", p)
			rep = r.b.Fail(fmt.Sprintf("Deployment failed: %v", p))
		}
	}()

	switch r.req.Tool {
	case domain.ToolDocker:
		return e.runDocker(ctx, r)
	case domain.ToolTerraform:
		return e.runTerraform(ctx, r)
	case domain.ToolKubernetes, domain.ToolArgoCD:
		return e.runManifest(ctx, r)
	case domain.ToolHelm:
		return e.runHelm(ctx, r)
	case domain.ToolJenkins:
		return e.runJenkins(ctx, r)
	}
	return r.b.Fail(fmt.Sprintf("unsupported tool %q", r.req.Tool))
}

// record stores the run summary. The write outlives a cancelled request.
func (e *Engine) record(ctx context.Context, r *run, s report.Summary) {
	if e.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := e.history.RecordRun(ctx, s); err != nil {
		r.logger.Warn("failed to record run", "error", err)
	}
}

// acquire takes the tool's staging directory for the run.
func (e *Engine) acquire(ctx context.Context, r *run) (*staging.Dir, error) {
	dir, err := e.staging.Acquire(ctx, r.req.Tool)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("acquired staging directory", "path", dir.Path())
	return dir, nil
}

// cleanupIncomplete reports a leaked resource on the run and to the observer.
func (e *Engine) cleanupIncomplete(r *run, resource string) {
	r.b.MarkCleanupIncomplete(resource)
	if e.observer != nil {
		e.observer.CleanupIncomplete(r.req.Tool, resource)
	}
}

// resolve applies the validation policy to a validation verdict.
func (e *Engine) resolve(r *run, ok bool, okMsg, failMsg string) report.Report {
	success, msg := report.ResolveValidation(e.cfg.Policy, ok, okMsg, failMsg)
	if success && !ok {
		r.b.Warn("validation failed; %s policy keeps the run successful", e.cfg.Policy)
	}
	return r.b.Resolve(success, msg)
}

func attribution(user string) string {
	if user == "" {
		return "anonymous"
	}
	return user
}
