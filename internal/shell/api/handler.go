// Package api provides the HTTP surface of the deployment engine.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/domain"
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/report"
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/shell/api/middleware"
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/shell/api/openapi"
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/shell/history"
)

const (
	// maxBodyBytes bounds a deployment request body.
	maxBodyBytes = 10 << 20

	readyTimeout = 3 * time.Second
)

// Executor runs one deployment request to completion.
type Executor interface {
	Execute(ctx context.Context, req domain.Request) report.Report
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// =============================================================================
// Handler
// =============================================================================

// Handler provides HTTP handlers for the API.
type Handler struct {
	engine  Executor
	history history.Store
	docker  Pinger
	metrics http.Handler
	spec    *openapi.Generator
	caller  *middleware.CallerMiddleware
	logger  *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithHistory enables the run history endpoints.
func WithHistory(s history.Store) Option {
	return func(h *Handler) { h.history = s }
}

// WithDocker adds the container engine to the readiness checks.
func WithDocker(p Pinger) Option {
	return func(h *Handler) { h.docker = p }
}

// WithMetrics serves m on /metrics.
func WithMetrics(m http.Handler) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithLogger sets the handler logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// WithOpenAPI replaces the generator describing the API.
func WithOpenAPI(g *openapi.Generator) Option {
	return func(h *Handler) { h.spec = g }
}

// NewHandler creates a new API handler.
func NewHandler(engine Executor, opts ...Option) *Handler {
	h := &Handler{engine: engine}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.spec == nil {
		h.spec = openapi.NewGenerator()
	}
	h.caller = middleware.NewCallerMiddleware(middleware.CallerConfig{Logger: h.logger})
	h.registerOperations()
	return h
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(h.jsonContentType)
	r.Use(h.requestIDHeader)
	r.Use(h.caller.Handler)

	// Health endpoints
	r.Get("/health", h.handleHealth)
	r.Get("/ready", h.handleReady)

	if h.metrics != nil {
		r.Handle("/metrics", h.metrics)
	}
	r.Get("/openapi.json", h.spec.Handler())

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/deployments", func(r chi.Router) {
			r.Post("/", h.handleDeploy)
			r.Post("/{tool}", h.handleDeployTool)
		})

		r.Route("/terraform", func(r chi.Router) {
			r.Post("/plan", h.handleTerraform(domain.ActionPlan))
			r.Post("/apply", h.handleTerraform(domain.ActionApply))
		})

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", h.handleListRuns)
			r.Get("/{id}", h.handleGetRun)
		})
	})

	return r
}

// =============================================================================
// Middleware
// =============================================================================

// jsonContentType sets Content-Type header to application/json.
func (h *Handler) jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// requestIDHeader copies the request ID to the response header.
func (h *Handler) requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := chimw.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Health Handlers
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	checks := make(map[string]string)
	ready := true

	check := func(name string, p Pinger) {
		if p == nil {
			checks[name] = "disabled"
			return
		}
		if err := p.Ping(ctx); err != nil {
			h.logger.Warn("readiness check failed", "check", name, "error", err)
			checks[name] = "failed"
			ready = false
			return
		}
		checks[name] = "ok"
	}

	check("docker", h.docker)
	check("history", h.history)

	if !ready {
		h.writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{
			Status: "not_ready",
			Checks: checks,
		})
		return
	}

	h.writeJSON(w, http.StatusOK, ReadyResponse{
		Status: "ready",
		Checks: checks,
	})
}

// =============================================================================
// Deployment Handlers
// =============================================================================

func (h *Handler) handleDeploy(w http.ResponseWriter, r *http.Request) {
	h.deploy(w, r, "", "")
}

func (h *Handler) handleDeployTool(w http.ResponseWriter, r *http.Request) {
	h.deploy(w, r, domain.Tool(chi.URLParam(r, "tool")), "")
}

func (h *Handler) handleTerraform(action domain.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.deploy(w, r, domain.ToolTerraform, action)
	}
}

// deploy decodes and validates the body, then runs the workflow. A non-empty
// tool or action overrides the one in the body. Completed workflows answer
// 200 whatever their outcome; the report carries success.
func (h *Handler) deploy(w http.ResponseWriter, r *http.Request, tool domain.Tool, action domain.Action) {
	var body DeploymentRequest
	if err := decodeBody(w, r, &body); err != nil {
		h.writeJSON(w, http.StatusBadRequest, report.Failure("Invalid request body: "+err.Error()))
		return
	}

	req := body.toDomain()
	if tool != "" {
		req.Tool = tool
	}
	if action != "" {
		req.Mode = action
	}
	req.User = middleware.CallerFromContext(r.Context())

	if _, err := req.Validate(); err != nil {
		h.logger.Info("deployment request rejected",
			"request_id", chimw.GetReqID(r.Context()),
			"tool", req.Tool,
			"error", err,
		)
		h.writeJSON(w, http.StatusBadRequest, report.Failure(err.Error()))
		return
	}

	rep := h.engine.Execute(r.Context(), req)
	h.writeJSON(w, http.StatusOK, rep)
}

// decodeBody decodes a size-limited JSON body.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return err
	}
	return nil
}

// =============================================================================
// Run History Handlers
// =============================================================================

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeError(w, http.StatusNotFound, "run history is disabled", "history_disabled")
		return
	}

	opts, err := parseListOptions(r.URL.Query())
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error(), "invalid_query")
		return
	}

	runs, err := h.history.ListRuns(r.Context(), opts)
	if err != nil {
		h.logger.Error("failed to list runs", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list runs", "internal_error")
		return
	}
	if runs == nil {
		runs = []report.Summary{}
	}

	h.writeJSON(w, http.StatusOK, RunsResponse{
		Runs:   runs,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
}

func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeError(w, http.StatusNotFound, "run history is disabled", "history_disabled")
		return
	}

	id := chi.URLParam(r, "id")
	run, err := h.history.GetRun(r.Context(), id)
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, http.StatusNotFound, "run not found", "not_found")
			return
		}
		h.logger.Error("failed to get run", "run_id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get run", "internal_error")
		return
	}

	h.writeJSON(w, http.StatusOK, run)
}

// parseListOptions reads limit, offset and tool from the query string.
func parseListOptions(q url.Values) (history.ListOptions, error) {
	var opts history.ListOptions

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, fmt.Errorf("invalid limit %q", v)
		}
		opts.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, fmt.Errorf("invalid offset %q", v)
		}
		opts.Offset = n
	}
	if v := q.Get("tool"); v != "" {
		tool, err := domain.ParseTool(v)
		if err != nil {
			return opts, err
		}
		opts.Tool = tool
	}

	return opts.Normalize(), nil
}

// =============================================================================
// OpenAPI
// =============================================================================

func (h *Handler) registerOperations() {
	ops := []openapi.Operation{
		{
			Method:   http.MethodPost,
			Path:     "/api/v1/deployments",
			ID:       "runDeployment",
			Summary:  "Run the workflow for the tool named in the body",
			Tags:     []string{"deployments"},
			Request:  DeploymentRequest{},
			Response: report.Report{},
		},
		{
			Method:     http.MethodPost,
			Path:       "/api/v1/deployments/{tool}",
			ID:         "runToolDeployment",
			Summary:    "Run the workflow for the tool named in the path",
			Tags:       []string{"deployments"},
			Request:    DeploymentRequest{},
			Response:   report.Report{},
			PathParams: []string{"tool"},
		},
		{
			Method:   http.MethodPost,
			Path:     "/api/v1/terraform/plan",
			ID:       "terraformPlan",
			Summary:  "Write a Terraform configuration and plan it",
			Tags:     []string{"terraform"},
			Request:  DeploymentRequest{},
			Response: report.Report{},
		},
		{
			Method:   http.MethodPost,
			Path:     "/api/v1/terraform/apply",
			ID:       "terraformApply",
			Summary:  "Write a Terraform configuration and apply it",
			Tags:     []string{"terraform"},
			Request:  DeploymentRequest{},
			Response: report.Report{},
		},
		{
			Method:   http.MethodGet,
			Path:     "/api/v1/runs",
			ID:       "listRuns",
			Summary:  "List recorded runs, newest first",
			Tags:     []string{"runs"},
			Response: RunsResponse{},
			QueryParams: []openapi.Param{
				{Name: "limit", Type: "integer"},
				{Name: "offset", Type: "integer"},
				{Name: "tool", Type: "string", Description: "Only list runs of this tool"},
			},
		},
		{
			Method:     http.MethodGet,
			Path:       "/api/v1/runs/{id}",
			ID:         "getRun",
			Summary:    "Get a recorded run",
			Tags:       []string{"runs"},
			Response:   report.Summary{},
			PathParams: []string{"id"},
		},
		{
			Method:   http.MethodGet,
			Path:     "/health",
			ID:       "health",
			Tags:     []string{"health"},
			Response: HealthResponse{},
		},
		{
			Method:   http.MethodGet,
			Path:     "/ready",
			ID:       "ready",
			Tags:     []string{"health"},
			Response: ReadyResponse{},
		},
	}

	for _, op := range ops {
		h.spec.RegisterOperation(op)
	}
}

// =============================================================================
// Helpers
// =============================================================================

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode JSON", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// isNotFound checks if an error is a not found error.
func isNotFound(err error) bool {
	return errors.Is(err, history.ErrNotFound)
}
