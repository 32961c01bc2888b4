// Package http provides the HTTP API for esgmetrics.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fyrsmithlabs/esgmetrics/internal/aggregate"
	"github.com/fyrsmithlabs/esgmetrics/internal/evidence"
	"github.com/fyrsmithlabs/esgmetrics/internal/logging"
	"github.com/fyrsmithlabs/esgmetrics/internal/pipeline"
	"github.com/fyrsmithlabs/esgmetrics/internal/taskstore"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// TenantHeader carries the tenant for the task sync endpoint.
const TenantHeader = "X-Tenant-ID"

// maxBody bounds request bodies; evidence payloads are inlined base64.
const maxBody = "10M"

// Server provides HTTP endpoints for esgmetrics.
type Server struct {
	echo     *echo.Echo
	logger   *logging.Logger
	config   *Config
	resolver *evidence.Resolver
	pipeline *pipeline.Pipeline
	tasks    *taskstore.Store
	metrics  *HTTPMetrics
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// RateLimit is the per-client request rate in requests per second.
	// Zero disables rate limiting.
	RateLimit float64
}

// Option configures a Server.
type Option func(*Server)

// WithResolver sets the evidence resolver used by the resolve endpoint.
func WithResolver(r *evidence.Resolver) Option {
	return func(s *Server) {
		s.resolver = r
	}
}

// WithPipeline enables the dashboard and evidence endpoints.
func WithPipeline(p *pipeline.Pipeline) Option {
	return func(s *Server) {
		s.pipeline = p
	}
}

// WithTaskStore enables the task sync endpoint.
func WithTaskStore(t *taskstore.Store) Option {
	return func(s *Server) {
		s.tasks = t
	}
}

// WithHTTPMetrics records OpenTelemetry request metrics.
func WithHTTPMetrics(m *HTTPMetrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// NewServer creates a new HTTP server.
func NewServer(logger *logging.Logger, cfg *Config, opts ...Option) (*Server, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 9191,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:   e,
		logger: logger,
		config: cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.resolver == nil {
		s.resolver = evidence.NewResolver(evidence.WithLogger(logger))
	}

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(s.requestLogger)
	if s.metrics != nil {
		e.Use(s.metrics.MetricsMiddleware())
	}
	if cfg.RateLimit > 0 {
		store := middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.RateLimit))
		e.Use(middleware.RateLimiter(store))
	}
	e.Use(middleware.BodyLimit(maxBody))

	s.registerRoutes()

	return s, nil
}

// requestLogger attaches the request id and logger to the request context
// and logs each request.
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		requestID := c.Response().Header().Get(echo.HeaderXRequestID)

		ctx := logging.WithRequestID(c.Request().Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.SetRequest(c.Request().WithContext(ctx))

		err := next(c)
		if err != nil {
			// Resolve the status before logging it.
			c.Error(err)
		}

		s.logger.Info(ctx, "http request",
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", time.Since(start)),
		)
		return nil
	}
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/evidence/resolve", s.handleResolve)
	v1.POST("/metrics/aggregate", s.handleAggregate)
	v1.GET("/tenants/:tenant/dashboard", s.handleDashboard)
	v1.POST("/tenants/:tenant/tasks/:task/evidence", s.handleAddEvidence)

	s.echo.POST("/api/tasks/sync-frontend/", s.handleSync)
}

// handleHealth reports server and dependency health.
func (s *Server) handleHealth(c echo.Context) error {
	resp := HealthResponse{Status: "ok"}
	if s.tasks != nil {
		resp.Services = map[string]string{"taskstore": "ok"}
		if err := s.tasks.Ping(c.Request().Context()); err != nil {
			resp.Status = "degraded"
			resp.Services["taskstore"] = err.Error()
			return c.JSON(http.StatusServiceUnavailable, resp)
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// handleResolve resolves evidence items supplied inline.
func (s *Server) handleResolve(c echo.Context) error {
	ctx := c.Request().Context()

	var req ResolveRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn(ctx, "invalid resolve request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.TaskID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "task_id field is required")
	}

	return c.JSON(http.StatusOK, s.resolver.Resolve(ctx, req.TaskID, req.Items))
}

// handleAggregate aggregates observations supplied inline.
func (s *Server) handleAggregate(c echo.Context) error {
	var req AggregateRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn(c.Request().Context(), "invalid aggregate request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	return c.JSON(http.StatusOK, AggregateResponse{Series: aggregate.Aggregate(req.Observations)})
}

// handleDashboard builds a tenant dashboard from stored evidence.
func (s *Server) handleDashboard(c echo.Context) error {
	if s.pipeline == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "dashboard is not configured")
	}

	summary, err := s.pipeline.Run(c.Request().Context(), c.Param("tenant"), c.QueryParams()["task"])
	if err != nil {
		return s.requestError(c, "dashboard failed", err)
	}
	return c.JSON(http.StatusOK, summary)
}

// handleAddEvidence appends evidence items to a task.
func (s *Server) handleAddEvidence(c echo.Context) error {
	if s.pipeline == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "evidence storage is not configured")
	}

	var req AddEvidenceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Items) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "items field is required")
	}

	n, err := s.pipeline.AddEvidence(c.Request().Context(), c.Param("tenant"), c.Param("task"), req.Items)
	if err != nil {
		return s.requestError(c, "failed to store evidence", err)
	}
	return c.JSON(http.StatusCreated, AddEvidenceResponse{Count: n})
}

// handleSync upserts a batch of task records for the tenant named in the
// X-Tenant-ID header. The body is {"tasks": [...]} or a bare array.
func (s *Server) handleSync(c echo.Context) error {
	if s.tasks == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "task store is not configured")
	}
	ctx := c.Request().Context()

	records, err := decodeSyncBody(c.Request().Body)
	if err != nil {
		s.logger.Warn(ctx, "invalid sync request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	resp, err := s.tasks.Upsert(ctx, c.Request().Header.Get(TenantHeader), records)
	if err != nil {
		return s.requestError(c, "task sync failed", err)
	}

	status := http.StatusOK
	if resp.ErrorCount > 0 {
		status = http.StatusMultiStatus
	}
	return c.JSON(status, resp)
}

// requestError maps domain errors to HTTP errors.
func (s *Server) requestError(c echo.Context, msg string, err error) error {
	if isClientError(err) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	s.logger.Error(c.Request().Context(), msg, zap.Error(err))
	return echo.NewHTTPError(http.StatusInternalServerError, msg)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Handler returns the router for embedding in another server.
func (s *Server) Handler() http.Handler {
	return s.echo
}
