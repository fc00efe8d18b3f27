package v1

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/vocadrill/vocadrill/internal/profile"
	"github.com/vocadrill/vocadrill/plugin/srs"
	apierrors "github.com/vocadrill/vocadrill/server/internal/errors"
	"github.com/vocadrill/vocadrill/server/internal/observability"
	"github.com/vocadrill/vocadrill/server/middleware"
	"github.com/vocadrill/vocadrill/server/service/review"
	"github.com/vocadrill/vocadrill/server/stats"
	"github.com/vocadrill/vocadrill/server/timezone"
	"github.com/vocadrill/vocadrill/store"
)

// APIV1Service wires the REST handlers to the store and the domain services.
type APIV1Service struct {
	Profile       *profile.Profile
	Store         *store.Store
	ReviewService review.Service
	Collector     *stats.Collector
	Metrics       *observability.Metrics

	engine   *srs.Engine
	loc      *time.Location
	markdown goldmark.Markdown
	filter   *cardFilterEnv
}

// NewAPIV1Service creates the REST service.
func NewAPIV1Service(serverProfile *profile.Profile, st *store.Store, reviewService review.Service, collector *stats.Collector, metrics *observability.Metrics) (*APIV1Service, error) {
	filterEnv, err := newCardFilterEnv()
	if err != nil {
		return nil, err
	}
	loc, err := timezone.ParseTimezone(serverProfile.Timezone)
	if err != nil {
		slog.Warn("invalid timezone in profile, using local", slog.String("timezone", serverProfile.Timezone))
	}
	return &APIV1Service{
		Profile:       serverProfile,
		Store:         st,
		ReviewService: reviewService,
		Collector:     collector,
		Metrics:       metrics,
		engine:        srs.NewEngine(),
		loc:           loc,
		markdown:      goldmark.New(goldmark.WithExtensions(extension.GFM)),
		filter:        filterEnv,
	}, nil
}

// RegisterRoutes registers the REST handlers with the given Echo instance.
// The rate limiter, when present, guards the session endpoints so a runaway
// client cannot burn through grades.
func (s *APIV1Service) RegisterRoutes(echoServer *echo.Echo, rateLimiter *middleware.RateLimiter) {
	apiGroup := echoServer.Group("/api/v1")
	apiGroup.Use(echomw.CORS())

	apiGroup.GET("/cards", s.ListCards)
	apiGroup.POST("/cards", s.CreateCard)
	apiGroup.GET("/cards/:uid", s.GetCard)
	apiGroup.PATCH("/cards/:uid", s.UpdateCard)
	apiGroup.DELETE("/cards/:uid", s.DeleteCard)

	reviewGroup := apiGroup.Group("/review")
	reviewGroup.GET("/queue", s.GetReviewQueue)
	reviewGroup.GET("/stats", s.GetReviewStats)

	sessionGroup := reviewGroup.Group("/sessions")
	if rateLimiter != nil {
		sessionGroup.Use(rateLimiter.Middleware())
	}
	sessionGroup.POST("", s.StartReviewSession)
	sessionGroup.POST("/:id/grades", s.GradeCard)
	sessionGroup.POST("/:id/finish", s.FinishReviewSession)
	sessionGroup.DELETE("/:id", s.AbandonReviewSession)

	apiGroup.GET("/system/metrics", s.GetMetricsOverview)
}

// errorResponse is the JSON shape every failed request returns.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errJSON writes an API error with its mapped HTTP status.
func errJSON(c echo.Context, apiErr *apierrors.APIError) error {
	return c.JSON(apiErr.HTTPStatus(), errorResponse{
		Code:    string(apiErr.Code),
		Message: apiErr.Message,
	})
}

// fromReviewError maps review service sentinels onto API errors.
func fromReviewError(err error) *apierrors.APIError {
	switch {
	case errors.Is(err, review.ErrSessionNotFound):
		return apierrors.NotFound("review session not found")
	case errors.Is(err, review.ErrCardNotFound):
		return apierrors.NotFound("card not found")
	case errors.Is(err, review.ErrSessionClosed):
		return apierrors.SessionClosed("review session already finished")
	default:
		return apierrors.Internal("review operation failed", err)
	}
}

// logError logs through the request context when one is attached.
func logError(ctx context.Context, msg string, err error) {
	if reqCtx, ok := observability.FromContext(ctx); ok {
		reqCtx.Error(msg, err)
		return
	}
	slog.Error(msg, slog.String("error", err.Error()))
}

func pointerOf[T any](v T) *T {
	return &v
}
