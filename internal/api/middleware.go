package api

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// requireAPIKey guards mutating routes with X-API-Key. With no key
// configured it lets everything through.
func (h *Handler) requireAPIKey() echo.MiddlewareFunc {
	if h.deps.APIKey == "" {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	want := []byte(h.deps.APIKey)
	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		KeyLookup: "header:X-API-Key",
		Validator: func(key string, _ echo.Context) (bool, error) {
			return subtle.ConstantTimeCompare([]byte(key), want) == 1, nil
		},
		ErrorHandler: func(_ error, _ echo.Context) error {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing API key")
		},
	})
}

// requestLogger logs one line per request. Health and metrics probes are
// logged at debug only.
func (h *Handler) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}

		req := c.Request()
		status := c.Response().Status
		attrs := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		switch {
		case req.URL.Path == "/health" || req.URL.Path == "/metrics":
			h.logger.Debug("[api] request", attrs...)
		case status >= 500:
			h.logger.Error("[api] request", attrs...)
		case status >= 400:
			h.logger.Warn("[api] request", attrs...)
		default:
			h.logger.Info("[api] request", attrs...)
		}
		return nil
	}
}
