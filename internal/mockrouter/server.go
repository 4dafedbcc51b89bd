package mockrouter

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/routediff/internal/constants"
)

// Config holds configuration for the mock router server
type Config struct {
	Addr string // bind address (e.g., ":8080")
	Path string // routing endpoint, defaults to constants.RouterPath

	// Skew scales every returned amount by 1+Skew, so two servers with
	// different skews look like an old and a new router that disagree.
	Skew float64

	// FailFirst makes the first N routing requests return 503.
	FailFirst int

	// RateLimit caps routing requests per second, 0 disables it
	RateLimit float64

	Logger *logrus.Logger
}

// Server wraps Echo HTTP server with additional lifecycle management
type Server struct {
	e      *echo.Echo
	h      *Handlers
	cfg    Config
	closed chan struct{} // Channel to signal server shutdown completion
}

// NewServer creates a mock router server
func NewServer(cfg Config) *Server {
	if cfg.Path == "" {
		cfg.Path = constants.RouterPath
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(requestLogger(cfg.Logger))

	e.Server.ReadTimeout = 15 * time.Second
	e.Server.WriteTimeout = 30 * time.Second
	e.Server.IdleTimeout = 60 * time.Second

	h := NewHandlers(cfg)
	RegisterRoutes(e, h, cfg)

	return &Server{e: e, h: h, cfg: cfg, closed: make(chan struct{})}
}

// Handler exposes the server for httptest.
func (s *Server) Handler() http.Handler {
	return s.e
}

// Requests returns how many routing requests the server has received.
func (s *Server) Requests() int64 {
	return s.h.Requests()
}

// Start begins serving HTTP requests on the configured address
func (s *Server) Start() error {
	return s.e.Start(s.cfg.Addr)
}

// Shutdown gracefully shuts down the server with a 10-second timeout
func (s *Server) Shutdown(ctx context.Context) error {
	defer close(s.closed)
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.e.Shutdown(ctx)
}

// WaitClosed blocks until the server is fully shut down or context times out
func (s *Server) WaitClosed(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.closed:
		return nil
	}
}

func requestLogger(logger *logrus.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.WithFields(logrus.Fields{
				"uri":     v.URI,
				"status":  v.Status,
				"latency": v.Latency,
			}).Debug("mock router request")
			return nil
		},
	})
}

// SetNoCacheHeaders middleware prevents caching of API responses
func SetNoCacheHeaders(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set("Cache-Control", "no-store")
		return next(c)
	}
}
