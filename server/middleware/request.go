package middleware

import (
	"log/slog"

	"github.com/labstack/echo/v4"

	"github.com/vocadrill/vocadrill/server/internal/observability"
)

const requestIDHeader = "X-Request-Id"

// Observe returns an echo middleware that tags every request with a request
// ID, logs the outcome, and feeds the metrics collector. An incoming
// X-Request-Id header is honored so clients can correlate their own traces.
func Observe(metrics *observability.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			reqCtx := observability.NewRequestContext(slog.Default(), req.Method, req.URL.Path)
			if id := req.Header.Get(requestIDHeader); id != "" {
				reqCtx.RequestID = id
			}
			c.Response().Header().Set(requestIDHeader, reqCtx.RequestID)
			c.SetRequest(req.WithContext(observability.WithRequestContext(req.Context(), reqCtx)))

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			route := req.Method + " " + c.Path()
			metrics.RecordRequest(route, reqCtx.Duration(), status >= 400)

			attrs := []slog.Attr{
				slog.Int(observability.LogFieldStatus, status),
				slog.Int64(observability.LogFieldDuration, reqCtx.DurationMs()),
			}
			switch {
			case status >= 500 && err != nil:
				reqCtx.Error("request failed", err, attrs...)
			case status >= 400:
				reqCtx.Warn("request failed", attrs...)
			default:
				reqCtx.Info("request completed", attrs...)
			}
			return nil
		}
	}
}
