package mockrouter

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// RegisterRoutes configures the routing and health endpoints
func RegisterRoutes(e *echo.Echo, h *Handlers, cfg Config) {
	e.HTTPErrorHandler = JSONErrorHandler()
	e.Use(SetNoCacheHeaders)

	e.GET("/health", h.Health)

	var mw []echo.MiddlewareFunc
	if cfg.RateLimit > 0 {
		mw = append(mw, middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(cfg.RateLimit),
			Burst:     1,
			ExpiresIn: 2 * time.Minute,
		})))
	}
	e.GET(cfg.Path, h.Route, mw...)

	e.RouteNotFound("/*", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Code: http.StatusNotFound})
	})
}
