package rss

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/vocadrill/vocadrill/internal/profile"
	"github.com/vocadrill/vocadrill/plugin/srs"
	"github.com/vocadrill/vocadrill/server/service/review"
	"github.com/vocadrill/vocadrill/store"
)

type stubQueueService struct {
	queue *review.Queue
	err   error
}

func (s *stubQueueService) DueQueue(ctx context.Context, limit int) (*review.Queue, error) {
	return s.queue, s.err
}

func (s *stubQueueService) StartSession(ctx context.Context, limit int) (*review.Session, error) {
	return nil, nil
}

func (s *stubQueueService) Grade(ctx context.Context, sessionUID string, grade *review.GradeRequest) (*review.GradeResult, error) {
	return nil, nil
}

func (s *stubQueueService) FinishSession(ctx context.Context, sessionUID string) (*review.Summary, error) {
	return nil, nil
}

func (s *stubQueueService) AbandonSession(ctx context.Context, sessionUID string) error {
	return nil
}

func (s *stubQueueService) Close() {}

func TestGetDueFeed(t *testing.T) {
	overdue := srs.NewReviewStats()
	overdue.State = srs.StateLearning
	overdue.IntervalDays = 3
	next := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	overdue.NextReviewDate = &next

	fresh := srs.NewReviewStats()

	svc := NewRSSService(
		&profile.Profile{Timezone: "UTC", InstanceURL: "http://localhost:8081"},
		&stubQueueService{queue: &review.Queue{
			Items: []*review.QueueItem{
				{
					Card:           &store.Card{ID: 1, UID: "card-1", Word: "resilient", Translation: "有韧性的", CreatedTs: 1700000000},
					Stats:          overdue,
					Classification: srs.Classify(overdue),
				},
				{
					Card:           &store.Card{ID: 2, UID: "card-2", Word: "meticulous", CreatedTs: 1700000100},
					Stats:          fresh,
					Classification: srs.Classify(fresh),
				},
			},
			TotalDue: 2,
		}},
	)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/feed/due.rss", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, svc.GetDueFeed(c))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/xml", rec.Header().Get(echo.HeaderContentType))

	body := rec.Body.String()
	require.Contains(t, body, "<rss")
	require.Contains(t, body, "resilient")
	require.Contains(t, body, "有韧性的")
	require.Contains(t, body, "due since 2026-08-20")
	require.Contains(t, body, "never reviewed")
	require.Contains(t, body, "http://localhost:8081/api/v1/cards/card-1")
}

func TestGetDueFeedEmptyQueue(t *testing.T) {
	svc := NewRSSService(
		&profile.Profile{Timezone: "UTC"},
		&stubQueueService{queue: &review.Queue{Items: []*review.QueueItem{}}},
	)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/feed/due.rss", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, svc.GetDueFeed(c))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "0 cards due")
}
