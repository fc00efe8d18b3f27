package review

import (
	"context"
	"time"

	"github.com/vocadrill/vocadrill/plugin/srs"
	"github.com/vocadrill/vocadrill/store"
)

// Service defines the core business logic interface for review sessions.
// This abstraction keeps the HTTP handlers free of scheduling logic and
// lets tests run against a mock store.
type Service interface {
	// DueQueue returns the cards currently due for review, most overdue
	// first, with never-scheduled cards ahead of dated ones.
	DueQueue(ctx context.Context, limit int) (*Queue, error)

	// StartSession snapshots the due queue into a new in-memory session.
	StartSession(ctx context.Context, limit int) (*Session, error)

	// Grade applies one graded attempt inside a session. Grades within a
	// session are serialized, so grading the same card twice chains off the
	// pending snapshot rather than a stale read.
	Grade(ctx context.Context, sessionUID string, grade *GradeRequest) (*GradeResult, error)

	// FinishSession flushes the session's pending card snapshots and
	// returns a summary. Finishing twice returns the same summary without
	// writing again.
	FinishSession(ctx context.Context, sessionUID string) (*Summary, error)

	// AbandonSession drops a session. Grades already applied stay valid and
	// are flushed; ungraded cards are untouched.
	AbandonSession(ctx context.Context, sessionUID string) error

	// Close stops the expiry sweeper and flushes every open session.
	Close()
}

// QueueItem pairs a due card with its live scheduling record.
type QueueItem struct {
	Card           *store.Card
	Stats          srs.ReviewStats
	Classification srs.Classification
}

// Queue is one fetch of the due queue. TotalDue counts every due card, not
// just the ones returned under the limit.
type Queue struct {
	Items    []*QueueItem
	TotalDue int
}

// Session describes a freshly started review session.
type Session struct {
	UID       string
	StartedAt time.Time
	ExpiresAt time.Time
	Cards     []*QueueItem
}

// GradeRequest is one graded attempt.
type GradeRequest struct {
	CardUID string
	Mode    srs.ModeKey
	Pass    bool
}

// GradeResult reports the transition a single grade produced.
type GradeResult struct {
	CardUID        string
	Pass           bool
	Due            bool
	State          srs.State
	IntervalDays   int
	NextReviewDate *time.Time
	Promoted       bool
	Demoted        bool
	Classification srs.Classification
}

// Summary is the outcome of a closed session.
type Summary struct {
	SessionUID string
	StartedAt  time.Time
	FinishedAt time.Time
	Cards      int
	Graded     int
	Passed     int
	Failed     int
	Promoted   int
	Demoted    int
}
