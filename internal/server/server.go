package server

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mudler/xlog"

	"github.com/dshills/agriguard/internal/advisory"
	"github.com/dshills/agriguard/internal/detection"
	"github.com/dshills/agriguard/internal/metrics"
	"github.com/dshills/agriguard/internal/redact"
)

const shutdownTimeout = 10 * time.Second

// Options configures the HTTP server.
type Options struct {
	Addr string
	// BodyLimit caps request bodies, in echo's size notation ("1M", "512K").
	BodyLimit     string
	MinConfidence float64
	// Metrics is optional; when set, requests are observed and /metrics is served.
	Metrics *metrics.Metrics
}

// Server exposes the advisory service over HTTP.
type Server struct {
	echo   *echo.Echo
	svc    *advisory.Service
	opts   Options
	latest atomic.Pointer[detection.Report]
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// New builds the server and registers its routes.
func New(svc *advisory.Service, opts Options) *Server {
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = detection.DefaultMinConfidence
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	s := &Server{echo: e, svc: svc, opts: opts}

	if opts.BodyLimit != "" {
		e.Use(middleware.BodyLimit(opts.BodyLimit))
	}
	e.Use(requestLogger)
	e.Use(middleware.Recover())
	if opts.Metrics != nil {
		e.Use(opts.Metrics.Middleware())
		e.GET("/metrics", echo.WrapHandler(opts.Metrics.Handler()))
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.GET("/healthz", s.healthz)
	s.echo.GET("/readyz", s.readyz)

	api := s.echo.Group("/api")
	api.GET("/advisories", s.listAdvisories)
	api.GET("/advisories/:label", s.getAdvisory)
	api.POST("/detections", s.postDetections)
	api.GET("/detections", s.getDetections)
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler { return s.echo }

// Start serves on opts.Addr until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		xlog.Info("HTTP server listening", "addr", s.opts.Addr)
		errCh <- s.echo.Start(s.opts.Addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		xlog.Info("HTTP server shutting down")
		return s.echo.Shutdown(shutdownCtx)
	}
}

func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := http.StatusText(code)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(code)
		}
	} else {
		xlog.Error("request failed", "path", c.Path(), "error", redact.Error(err))
	}

	if err := c.JSON(code, ErrorBody{Error: ErrorDetail{Code: code, Message: redact.Secrets(message)}}); err != nil {
		xlog.Error("writing error response", "error", err)
	}
}

func requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		xlog.Debug("HTTP request",
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"status", c.Response().Status,
			"duration", time.Since(start))
		return err
	}
}
