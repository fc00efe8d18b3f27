package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// MetricsOverviewResponse summarizes request metrics since process start.
type MetricsOverviewResponse struct {
	TotalRequests int64                   `json:"total_requests"`
	SuccessRate   float64                 `json:"success_rate"`
	AvgLatencyMs  int64                   `json:"avg_latency_ms"`
	P50LatencyMs  int64                   `json:"p50_latency_ms"`
	P95LatencyMs  int64                   `json:"p95_latency_ms"`
	ErrorCount    int64                   `json:"error_count"`
	UptimeSeconds int64                   `json:"uptime_seconds"`
	Routes        map[string]RouteMetrics `json:"routes"`
}

// RouteMetrics summarizes request metrics for one route.
type RouteMetrics struct {
	RequestCount int64 `json:"request_count"`
	ErrorCount   int64 `json:"error_count"`
	AvgLatencyMs int64 `json:"avg_latency_ms"`
}

// GetMetricsOverview returns the request metrics overview.
//
// GET /api/v1/system/metrics
func (s *APIV1Service) GetMetricsOverview(c echo.Context) error {
	snapshot := s.Metrics.Snapshot()

	routes := make(map[string]RouteMetrics, len(snapshot.RouteMetrics))
	for route, rm := range snapshot.RouteMetrics {
		routes[route] = RouteMetrics{
			RequestCount: rm.RequestCount,
			ErrorCount:   rm.ErrorCount,
			AvgLatencyMs: rm.AverageDuration,
		}
	}

	return c.JSON(http.StatusOK, MetricsOverviewResponse{
		TotalRequests: snapshot.RequestTotal,
		SuccessRate:   snapshot.SuccessRate(),
		AvgLatencyMs:  snapshot.AvgLatencyMs,
		P50LatencyMs:  snapshot.P50LatencyMs,
		P95LatencyMs:  snapshot.P95LatencyMs,
		ErrorCount:    snapshot.RequestFailed,
		UptimeSeconds: snapshot.UptimeSeconds,
		Routes:        routes,
	})
}
