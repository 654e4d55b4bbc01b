// Package api serves the solve pipeline over HTTP.
//
// Routes:
//
//	GET  /healthz             liveness, no auth
//	GET  /metrics             Prometheus exposition, no auth (when configured)
//	GET  /v1/capabilities     formats, views and solver defaults
//	POST /v1/solve            solve a document, optionally saving it
//	POST /v1/validate         validate a document without solving
//	POST /v1/render           solve and render in one format
//	GET  /v1/layouts          list saved layouts
//	GET  /v1/layouts/{id}     fetch a saved layout
//
// All /v1 routes share bearer-token auth and a token-bucket rate limiter.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/matzehuels/gearlayout/pkg/document"
	errs "github.com/matzehuels/gearlayout/pkg/errors"
	"github.com/matzehuels/gearlayout/pkg/observability"
	"github.com/matzehuels/gearlayout/pkg/pipeline"
	"github.com/matzehuels/gearlayout/pkg/storage"
)

// RequestIDHeader carries the request ID on requests and responses.
const RequestIDHeader = "X-Request-ID"

// Config holds server limits and credentials.
type Config struct {
	AuthToken      string        // empty = no auth required
	RateLimit      float64       // requests per second across all clients, 0 disables
	RateBurst      int           // bucket size
	RequestTimeout time.Duration // 0 disables
	MaxBodyBytes   int64         // 0 means 1 MiB
}

// Server is an HTTP API server that exposes the solve pipeline.
type Server struct {
	runner  *pipeline.Runner
	store   storage.Store
	logger  *log.Logger
	cfg     Config
	base    pipeline.Options
	metrics http.Handler
	limiter *rate.Limiter
}

// Option customizes a Server.
type Option func(*Server)

// WithStore enables the /v1/layouts routes and saving from /v1/solve.
func WithStore(st storage.Store) Option { return func(s *Server) { s.store = st } }

// WithMetrics serves h at /metrics.
func WithMetrics(h http.Handler) Option { return func(s *Server) { s.metrics = h } }

// WithBaseOptions sets the solver defaults requests start from.
func WithBaseOptions(opts pipeline.Options) Option { return func(s *Server) { s.base = opts } }

// NewServer creates a new Server with the given dependencies.
func NewServer(runner *pipeline.Runner, logger *log.Logger, cfg Config, opts ...Option) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		runner: runner,
		logger: logger,
		cfg:    cfg,
	}
	if cfg.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(cfg.RateBurst, 1))
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns an http.Handler with all routes registered.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/healthz", s.handleHealthz)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.auth)
		r.Use(s.rateLimit)
		if s.cfg.RequestTimeout > 0 {
			r.Use(middleware.Timeout(s.cfg.RequestTimeout))
		}

		r.Get("/capabilities", s.handleCapabilities)
		r.Post("/solve", s.handleSolve)
		r.Post("/validate", s.handleValidate)
		r.Post("/render", s.handleRender)
		r.Get("/layouts", s.handleListLayouts)
		r.Get("/layouts/{id}", s.handleGetLayout)
	})

	return r
}

// --- middleware ---

type ctxKey int

const requestIDKey ctxKey = 0

// RequestID returns the request ID stored by the server, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// requestID propagates a caller-supplied X-Request-ID or assigns a UUID.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// instrument reports each request to the HTTP hooks, labelled by route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		hooks := observability.HTTP()
		hooks.OnRequest(r.Context(), r.Method, r.URL.Path)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		hooks.OnResponse(r.Context(), r.Method, route, status, time.Since(start))
		s.logger.Debug("request",
			"method", r.Method,
			"route", route,
			"status", status,
			"duration", time.Since(start),
			"request_id", RequestID(r.Context()))
	})
}

// auth enforces a bearer token when one is configured.
func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AuthToken == "" {
			next.ServeHTTP(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AuthToken)) != 1 {
			s.writeError(w, r, errs.New(errs.ErrCodeUnauthorized, "missing or invalid bearer token"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimit rejects requests once the token bucket is empty.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}
		res := s.limiter.Reserve()
		if delay := res.Delay(); delay > 0 {
			res.Cancel()
			observability.HTTP().OnRateLimited(r.Context(), r.URL.Path)
			retry := int(delay.Seconds()) + 1
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			s.writeError(w, r, &errs.RateLimitedError{RetryAfter: retry})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- request and response types ---

// SolveOptions are the per-request solver overrides.
type SolveOptions struct {
	MaxIterations int     `json:"max_iterations,omitempty"`
	Tolerance     float64 `json:"tolerance,omitempty"`
	StepSize      float64 `json:"step_size,omitempty"`
	MinDistance   float64 `json:"min_distance,omitempty"`
	Strict        bool    `json:"strict,omitempty"`
	Refresh       bool    `json:"refresh,omitempty"`
}

// SolveRequest is the body accepted by POST /v1/solve and /v1/render.
type SolveRequest struct {
	Document *document.Document `json:"document"`
	Options  SolveOptions       `json:"options,omitempty"`
	Save     bool               `json:"save,omitempty"`
	Name     string             `json:"name,omitempty"`
}

// SolveResponse is returned by POST /v1/solve.
type SolveResponse struct {
	Solution document.Solution `json:"solution"`
	Cached   bool              `json:"cached"`
	ID       string            `json:"id,omitempty"`
}

// ValidateResponse is returned by POST /v1/validate.
type ValidateResponse struct {
	Valid    bool     `json:"valid"`
	Error    string   `json:"error,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// --- handlers ---

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, pipeline.Describe(s.base))
}

func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeSolve(w, r)
	if !ok {
		return
	}
	if req.Save && s.store == nil {
		s.writeError(w, r, errs.New(errs.ErrCodeUnsupported, "layout storage is disabled"))
		return
	}
	if req.Save && req.Name != "" {
		if err := errs.ValidateName(req.Name); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	sol, hit, err := s.runner.SolveWithCacheInfo(r.Context(), req.Document, s.options(req.Options))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := SolveResponse{Solution: sol, Cached: hit}
	if req.Save {
		rec := &storage.Record{Name: req.Name, Document: req.Document, Solution: sol}
		if err := s.store.Save(r.Context(), rec); err != nil {
			s.writeError(w, r, err)
			return
		}
		resp.ID = rec.ID
		resp.Solution = rec.Solution
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeSolve(w, r)
	if !ok {
		return
	}
	req.Document.SetDefaults()
	if err := req.Document.Validate(); err != nil {
		s.writeJSON(w, http.StatusOK, ValidateResponse{Valid: false, Error: errs.UserMessage(err)})
		return
	}
	s.writeJSON(w, http.StatusOK, ValidateResponse{Valid: true, Warnings: req.Document.Warnings()})
}

// handleRender solves the body and renders it in the format given by the
// format query parameter (default svg). viz, view and labels are optional.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeSolve(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	opts := s.options(req.Options)
	format := q.Get("format")
	if format == "" {
		format = pipeline.FormatSVG
	}
	opts.Formats = []string{format}
	opts.VizType = q.Get("viz")
	opts.View = q.Get("view")
	opts.Labels = q.Get("labels") == "true"
	if err := opts.ValidateForRender(); err != nil {
		s.writeError(w, r, err)
		return
	}

	sol, hit, err := s.runner.SolveWithCacheInfo(r.Context(), req.Document, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	artifacts, err := s.runner.Render(r.Context(), &sol, req.Document, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentTypes[format])
	w.Header().Set("X-Solve-Status", sol.Status)
	w.Header().Set("X-Cache", strconv.FormatBool(hit))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(artifacts[format]); err != nil {
		s.logger.Warn("failed to write artifact", "err", err)
	}
}

func (s *Server) handleListLayouts(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, r, errs.New(errs.ErrCodeUnsupported, "layout storage is disabled"))
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, r, errs.New(errs.ErrCodeInvalidInput, "invalid limit %q", v))
			return
		}
		limit = n
	}
	list, err := s.store.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"layouts": list})
}

func (s *Server) handleGetLayout(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, r, errs.New(errs.ErrCodeUnsupported, "layout storage is disabled"))
		return
	}
	rec, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

// --- helpers ---

var contentTypes = map[string]string{
	pipeline.FormatSVG:  "image/svg+xml",
	pipeline.FormatPNG:  "image/png",
	pipeline.FormatPDF:  "application/pdf",
	pipeline.FormatDOT:  "text/vnd.graphviz",
	pipeline.FormatJSON: "application/json",
}

// decodeSolve reads a SolveRequest, writing the error response itself on failure.
func (s *Server) decodeSolve(w http.ResponseWriter, r *http.Request) (*SolveRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req SolveRequest
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{
				Error:     "request body too large",
				Code:      string(errs.ErrCodeInvalidInput),
				RequestID: RequestID(r.Context()),
			})
			return nil, false
		}
		s.writeError(w, r, errs.Wrap(errs.ErrCodeInvalidInput, err, "invalid request body"))
		return nil, false
	}
	if req.Document == nil {
		s.writeError(w, r, errs.New(errs.ErrCodeInvalidInput, "document is required"))
		return nil, false
	}
	return &req, true
}

// options layers request overrides over the server defaults.
func (s *Server) options(o SolveOptions) pipeline.Options {
	opts := s.base
	if o.MaxIterations > 0 {
		opts.MaxIterations = o.MaxIterations
	}
	if o.Tolerance > 0 {
		opts.Tolerance = o.Tolerance
	}
	if o.StepSize > 0 {
		opts.StepSize = o.StepSize
	}
	if o.MinDistance > 0 {
		opts.MinDistance = o.MinDistance
	}
	opts.Strict = opts.Strict || o.Strict
	opts.Refresh = o.Refresh
	opts.Logger = s.logger
	return opts
}

// writeJSON writes v as a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(v); encErr != nil {
		s.logger.Error("failed to encode response", "error", encErr)
	}
}

// writeError maps err to a status code and writes a JSON error body.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if code != "" {
		msg = strings.TrimPrefix(msg, string(code)+": ")
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err, "request_id", RequestID(r.Context()))
	}
	s.writeJSON(w, status, ErrorResponse{
		Error:     msg,
		Code:      string(code),
		RequestID: RequestID(r.Context()),
	})
}

// statusFor maps an error onto an HTTP status and error code.
func statusFor(err error) (int, errs.Code) {
	var rl *errs.RateLimitedError
	if errors.As(err, &rl) {
		return http.StatusTooManyRequests, errs.ErrCodeRateLimited
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, errs.ErrCodeTimeout
	}

	code := errs.GetCode(err)
	switch code {
	case errs.ErrCodeNotFound, errs.ErrCodeFileNotFound:
		return http.StatusNotFound, code
	case errs.ErrCodeDuplicateID:
		return http.StatusConflict, code
	case errs.ErrCodeCapacityExceeded:
		return http.StatusRequestEntityTooLarge, code
	case errs.ErrCodeUnauthorized:
		return http.StatusUnauthorized, code
	case errs.ErrCodeTimeout:
		return http.StatusGatewayTimeout, code
	case errs.ErrCodeUnsupported:
		return http.StatusNotImplemented, code
	case "":
		return http.StatusInternalServerError, errs.ErrCodeInternal
	}
	if errs.IsInvalid(err) {
		return http.StatusBadRequest, code
	}
	return http.StatusInternalServerError, code
}

// Shutdown gracefully shuts down an http.Server with the given timeout.
// This is a convenience helper used by the serve command.
func Shutdown(srv *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
