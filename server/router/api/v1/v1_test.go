package v1

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/vocadrill/vocadrill/internal/profile"
	"github.com/vocadrill/vocadrill/server/internal/observability"
	"github.com/vocadrill/vocadrill/server/service/review"
	"github.com/vocadrill/vocadrill/server/stats"
	"github.com/vocadrill/vocadrill/store"
	"github.com/vocadrill/vocadrill/store/test"
)

// mockReviewService is a canned review.Service for handler tests.
type mockReviewService struct {
	queue      *review.Queue
	session    *review.Session
	result     *review.GradeResult
	summary    *review.Summary
	gradeErr   error
	finishErr  error
	abandonErr error

	graded    []*review.GradeRequest
	abandoned []string
}

func (m *mockReviewService) DueQueue(ctx context.Context, limit int) (*review.Queue, error) {
	if m.queue != nil {
		return m.queue, nil
	}
	return &review.Queue{Items: []*review.QueueItem{}}, nil
}

func (m *mockReviewService) StartSession(ctx context.Context, limit int) (*review.Session, error) {
	if m.session != nil {
		return m.session, nil
	}
	now := time.Now()
	return &review.Session{
		UID:       "test-session",
		StartedAt: now,
		ExpiresAt: now.Add(2 * time.Hour),
		Cards:     []*review.QueueItem{},
	}, nil
}

func (m *mockReviewService) Grade(ctx context.Context, sessionUID string, grade *review.GradeRequest) (*review.GradeResult, error) {
	m.graded = append(m.graded, grade)
	if m.gradeErr != nil {
		return nil, m.gradeErr
	}
	return m.result, nil
}

func (m *mockReviewService) FinishSession(ctx context.Context, sessionUID string) (*review.Summary, error) {
	if m.finishErr != nil {
		return nil, m.finishErr
	}
	if m.summary != nil {
		return m.summary, nil
	}
	return &review.Summary{SessionUID: sessionUID}, nil
}

func (m *mockReviewService) AbandonSession(ctx context.Context, sessionUID string) error {
	m.abandoned = append(m.abandoned, sessionUID)
	return m.abandonErr
}

func (m *mockReviewService) Close() {}

// newTestService builds an API service over a throwaway store.
func newTestService(t *testing.T) (*APIV1Service, *store.Store, *mockReviewService) {
	ctx := context.Background()
	st := test.NewTestingStore(ctx, t)
	mock := &mockReviewService{}
	svc, err := NewAPIV1Service(
		&profile.Profile{Timezone: "UTC", QueueLimit: 20},
		st,
		mock,
		stats.NewCollector(st, time.UTC),
		observability.NewMetrics(16),
	)
	require.NoError(t, err)
	return svc, st, mock
}

// newEchoContext builds an echo context around an httptest request. A
// non-empty body is sent as JSON.
func newEchoContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}
