// Package server assembles the HTTP surface over the store and the review
// services.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/vocadrill/vocadrill/internal/profile"
	"github.com/vocadrill/vocadrill/server/internal/observability"
	"github.com/vocadrill/vocadrill/server/middleware"
	apiv1 "github.com/vocadrill/vocadrill/server/router/api/v1"
	"github.com/vocadrill/vocadrill/server/router/rss"
	"github.com/vocadrill/vocadrill/server/service/review"
	"github.com/vocadrill/vocadrill/server/stats"
	"github.com/vocadrill/vocadrill/server/timezone"
	"github.com/vocadrill/vocadrill/store"
)

// Server owns the echo instance and the background services behind it.
type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer    *echo.Echo
	reviewService review.Service
	collector     *stats.Collector
	metrics       *observability.Metrics
}

// NewServer wires the review service, the stats collector and the HTTP
// routers over the given store.
func NewServer(ctx context.Context, serverProfile *profile.Profile, st *store.Store) (*Server, error) {
	loc, err := timezone.ParseTimezone(serverProfile.Timezone)
	if err != nil {
		slog.Warn("invalid timezone in profile, using local", slog.String("timezone", serverProfile.Timezone))
	}

	reviewService := review.NewService(st, serverProfile)
	collector := stats.NewCollector(st, loc)
	metrics := observability.GlobalMetrics()

	echoServer := echo.New()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.Use(echomw.Recover())
	echoServer.Use(middleware.Observe(metrics))

	echoServer.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "Service ready.")
	})

	apiService, err := apiv1.NewAPIV1Service(serverProfile, st, reviewService, collector, metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create api service: %w", err)
	}
	apiService.RegisterRoutes(echoServer, middleware.NewRateLimiter(serverProfile.RateLimitPerMinute))

	rss.NewRSSService(serverProfile, reviewService).RegisterRoutes(echoServer)

	return &Server{
		Profile:       serverProfile,
		Store:         st,
		echoServer:    echoServer,
		reviewService: reviewService,
		collector:     collector,
		metrics:       metrics,
	}, nil
}

// Start runs the stats collector and serves HTTP until the listener fails or
// Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	s.collector.Start(ctx)

	if s.Profile.UNIXSock != "" {
		// A previous run can leave the socket file behind.
		if err := os.Remove(s.Profile.UNIXSock); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove stale unix socket: %w", err)
		}
		listener, err := net.Listen("unix", s.Profile.UNIXSock)
		if err != nil {
			return fmt.Errorf("failed to listen on unix socket: %w", err)
		}
		s.echoServer.Listener = listener
		return s.echoServer.Start("")
	}

	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	return s.echoServer.Start(address)
}

// Shutdown drains the HTTP server, flushes open review sessions and closes
// the store.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown http server", slog.String("error", err.Error()))
	}

	// Sessions flush before the store closes under them.
	s.reviewService.Close()
	s.collector.Stop()

	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close database", slog.String("error", err.Error()))
	}
	slog.Info("server stopped properly")
}
