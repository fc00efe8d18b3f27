package v1

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vocadrill/vocadrill/plugin/srs"
	apierrors "github.com/vocadrill/vocadrill/server/internal/errors"
	"github.com/vocadrill/vocadrill/server/service/review"
)

// ReviewQueueResponse lists the cards currently due. TotalDue counts every
// due card, not just the ones returned under the limit.
type ReviewQueueResponse struct {
	Cards    []*Card `json:"cards"`
	TotalDue int     `json:"total_due"`
}

// StartSessionRequest optionally caps how many due cards the session takes.
type StartSessionRequest struct {
	Limit int `json:"limit"`
}

// ReviewSessionResponse describes a freshly started session.
type ReviewSessionResponse struct {
	UID       string  `json:"uid"`
	StartedTs int64   `json:"started_ts"`
	ExpiresTs int64   `json:"expires_ts"`
	Cards     []*Card `json:"cards"`
}

// GradeCardRequest is one graded attempt inside a session.
type GradeCardRequest struct {
	CardUID string `json:"card_uid"`
	Mode    string `json:"mode"`
	Pass    bool   `json:"pass"`
}

// GradeCardResponse reports the transition a single grade produced.
type GradeCardResponse struct {
	CardUID        string `json:"card_uid"`
	Pass           bool   `json:"pass"`
	Due            bool   `json:"due"`
	State          string `json:"state"`
	Tier           int    `json:"tier"`
	IntervalDays   int    `json:"interval_days"`
	NextReviewDate string `json:"next_review_date,omitempty"`
	Promoted       bool   `json:"promoted"`
	Demoted        bool   `json:"demoted"`
}

// SessionSummaryResponse is the outcome of a closed session.
type SessionSummaryResponse struct {
	SessionUID string `json:"session_uid"`
	StartedTs  int64  `json:"started_ts"`
	FinishedTs int64  `json:"finished_ts"`
	Cards      int    `json:"cards"`
	Graded     int    `json:"graded"`
	Passed     int    `json:"passed"`
	Failed     int    `json:"failed"`
	Promoted   int    `json:"promoted"`
	Demoted    int    `json:"demoted"`
}

// ReviewStatsResponse is a snapshot of deck and review statistics.
type ReviewStatsResponse struct {
	TotalCards     int64   `json:"total_cards"`
	NewCards       int64   `json:"new_cards"`
	LearningCards  int64   `json:"learning_cards"`
	MasteredCards  int64   `json:"mastered_cards"`
	DueToday       int64   `json:"due_today"`
	TotalReviews   int64   `json:"total_reviews"`
	ReviewedToday  int64   `json:"reviewed_today"`
	ReviewAccuracy float64 `json:"review_accuracy"`
	TotalDemotions int64   `json:"total_demotions"`
	LastReviewTs   int64   `json:"last_review_ts,omitempty"`
	ActiveDays     int64   `json:"active_days"`
	StreakDays     int64   `json:"streak_days"`
	LastUpdatedTs  int64   `json:"last_updated_ts"`
	Summary        string  `json:"summary"`
}

// GetReviewQueue returns the due queue without opening a session.
//
// GET /api/v1/review/queue?limit=N
func (s *APIV1Service) GetReviewQueue(c echo.Context) error {
	ctx := c.Request().Context()

	limit, err := intQueryParam(c, "limit", s.Profile.QueueLimit)
	if err != nil {
		return errJSON(c, apierrors.InvalidArgument(err.Error()))
	}

	queue, err := s.ReviewService.DueQueue(ctx, limit)
	if err != nil {
		logError(ctx, "failed to fetch due queue", err)
		return errJSON(c, fromReviewError(err))
	}

	cards := make([]*Card, 0, len(queue.Items))
	for _, item := range queue.Items {
		cards = append(cards, s.cardFromStore(item.Card, item.Stats, true))
	}
	return c.JSON(http.StatusOK, &ReviewQueueResponse{
		Cards:    cards,
		TotalDue: queue.TotalDue,
	})
}

// StartReviewSession snapshots the due queue into a new session.
//
// POST /api/v1/review/sessions
func (s *APIV1Service) StartReviewSession(c echo.Context) error {
	ctx := c.Request().Context()

	req := &StartSessionRequest{}
	if err := c.Bind(req); err != nil {
		return errJSON(c, apierrors.InvalidArgument("malformed request body"))
	}
	limit := req.Limit
	if limit <= 0 {
		limit = s.Profile.QueueLimit
	}

	session, err := s.ReviewService.StartSession(ctx, limit)
	if err != nil {
		logError(ctx, "failed to start review session", err)
		return errJSON(c, fromReviewError(err))
	}

	cards := make([]*Card, 0, len(session.Cards))
	for _, item := range session.Cards {
		cards = append(cards, s.cardFromStore(item.Card, item.Stats, true))
	}
	return c.JSON(http.StatusOK, &ReviewSessionResponse{
		UID:       session.UID,
		StartedTs: session.StartedAt.Unix(),
		ExpiresTs: session.ExpiresAt.Unix(),
		Cards:     cards,
	})
}

// GradeCard applies one graded attempt inside a session.
//
// POST /api/v1/review/sessions/:id/grades
func (s *APIV1Service) GradeCard(c echo.Context) error {
	ctx := c.Request().Context()
	sessionUID := c.Param("id")

	req := &GradeCardRequest{}
	if err := c.Bind(req); err != nil {
		return errJSON(c, apierrors.InvalidArgument("malformed request body"))
	}
	if req.CardUID == "" {
		return errJSON(c, apierrors.InvalidArgument("card_uid is required"))
	}
	mode, err := parseModeKey(req.Mode)
	if err != nil {
		return errJSON(c, apierrors.InvalidArgument(err.Error()))
	}

	result, err := s.ReviewService.Grade(ctx, sessionUID, &review.GradeRequest{
		CardUID: req.CardUID,
		Mode:    mode,
		Pass:    req.Pass,
	})
	if err != nil {
		logError(ctx, "failed to grade card", err)
		return errJSON(c, fromReviewError(err))
	}
	s.Collector.RecordReview()

	resp := &GradeCardResponse{
		CardUID:      result.CardUID,
		Pass:         result.Pass,
		Due:          result.Due,
		State:        string(result.State),
		Tier:         result.Classification.Tier,
		IntervalDays: result.IntervalDays,
		Promoted:     result.Promoted,
		Demoted:      result.Demoted,
	}
	if result.NextReviewDate != nil {
		resp.NextReviewDate = result.NextReviewDate.In(s.loc).Format("2006-01-02")
	}
	return c.JSON(http.StatusOK, resp)
}

// FinishReviewSession flushes a session and returns its summary.
//
// POST /api/v1/review/sessions/:id/finish
func (s *APIV1Service) FinishReviewSession(c echo.Context) error {
	ctx := c.Request().Context()
	sessionUID := c.Param("id")

	summary, err := s.ReviewService.FinishSession(ctx, sessionUID)
	if err != nil {
		logError(ctx, "failed to finish review session", err)
		return errJSON(c, fromReviewError(err))
	}
	return c.JSON(http.StatusOK, &SessionSummaryResponse{
		SessionUID: summary.SessionUID,
		StartedTs:  summary.StartedAt.Unix(),
		FinishedTs: summary.FinishedAt.Unix(),
		Cards:      summary.Cards,
		Graded:     summary.Graded,
		Passed:     summary.Passed,
		Failed:     summary.Failed,
		Promoted:   summary.Promoted,
		Demoted:    summary.Demoted,
	})
}

// AbandonReviewSession drops a session without a summary. Grades already
// applied stay valid.
//
// DELETE /api/v1/review/sessions/:id
func (s *APIV1Service) AbandonReviewSession(c echo.Context) error {
	ctx := c.Request().Context()
	sessionUID := c.Param("id")

	if err := s.ReviewService.AbandonSession(ctx, sessionUID); err != nil {
		logError(ctx, "failed to abandon review session", err)
		return errJSON(c, fromReviewError(err))
	}
	return c.NoContent(http.StatusNoContent)
}

// GetReviewStats returns the collector's current snapshot.
//
// GET /api/v1/review/stats
func (s *APIV1Service) GetReviewStats(c echo.Context) error {
	snapshot := s.Collector.GetStats()
	resp := &ReviewStatsResponse{
		TotalCards:     snapshot.TotalCards,
		NewCards:       snapshot.NewCards,
		LearningCards:  snapshot.LearningCards,
		MasteredCards:  snapshot.MasteredCards,
		DueToday:       snapshot.DueToday,
		TotalReviews:   snapshot.TotalReviews,
		ReviewedToday:  snapshot.ReviewedToday,
		ReviewAccuracy: snapshot.ReviewAccuracy,
		TotalDemotions: snapshot.TotalDemotions,
		ActiveDays:     snapshot.ActiveDays,
		StreakDays:     snapshot.StreakDays,
		LastUpdatedTs:  snapshot.LastUpdated.Unix(),
		Summary:        snapshot.GetSummary(),
	}
	if !snapshot.LastReviewTime.IsZero() {
		resp.LastReviewTs = snapshot.LastReviewTime.Unix()
	}
	return c.JSON(http.StatusOK, resp)
}

func parseModeKey(raw string) (srs.ModeKey, error) {
	mode := srs.ModeKey(raw)
	switch mode {
	case srs.ModeRecognitionEN, srs.ModeRecognitionNative, srs.ModeProductionSpelling, srs.ModeProductionCloze:
		return mode, nil
	}
	return "", fmt.Errorf("unknown mode %q", raw)
}
