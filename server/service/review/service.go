// Package review drives vocabulary review sessions end to end: building the
// due queue, applying grades through the srs engine, and persisting the
// outcome.
//
// Key properties:
//   - Grades inside one session are serialized per session, so at most one
//     pending transition exists per card at a time.
//   - Review log rows are written as grading happens; card stats snapshots
//     are flushed when the session finishes or is abandoned.
//   - Sessions idle past the TTL are flushed and dropped by a background
//     sweep, so partial progress survives a closed laptop lid.
package review

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"golang.org/x/sync/errgroup"

	"github.com/vocadrill/vocadrill/internal/profile"
	"github.com/vocadrill/vocadrill/plugin/srs"
	"github.com/vocadrill/vocadrill/server/timezone"
	"github.com/vocadrill/vocadrill/store"
)

const (
	// DefaultSessionTTL bounds how long an idle session survives.
	DefaultSessionTTL = 2 * time.Hour

	// DefaultQueueLimit is the queue size when the caller does not pick one.
	DefaultQueueLimit = 20

	// sweepInterval is how often expired sessions are collected.
	sweepInterval = 5 * time.Minute

	// persistConcurrency bounds parallel stats writes when a session closes.
	persistConcurrency = 4

	// flushTimeout bounds the background flush of an expired session.
	flushTimeout = 30 * time.Second
)

// Review-specific errors that can be checked with errors.Is.
var (
	// ErrSessionNotFound is returned for an unknown or already removed session.
	ErrSessionNotFound = fmt.Errorf("review session not found")
	// ErrSessionClosed is returned when grading into a finished session.
	ErrSessionClosed = fmt.Errorf("review session already finished")
	// ErrCardNotFound is returned when the graded card does not exist.
	ErrCardNotFound = fmt.Errorf("card not found")
)

// Store is the interface for store operations needed by the review service.
type Store interface {
	GetCard(ctx context.Context, find *store.FindCard) (*store.Card, error)
	ListCards(ctx context.Context, find *store.FindCard) ([]*store.Card, error)
	GetCardStats(ctx context.Context, cardID int32) (*store.CardStats, error)
	ListCardStats(ctx context.Context, find *store.FindCardStats) ([]*store.CardStats, error)
	UpsertCardStats(ctx context.Context, upsert *store.CardStats) (*store.CardStats, error)
	CreateReviewLog(ctx context.Context, create *store.ReviewLog) (*store.ReviewLog, error)
}

// pendingCard is the in-session snapshot of one card's stats. It starts from
// the stored record and advances with every grade of that card.
type pendingCard struct {
	cardID  int32
	cardUID string
	stats   srs.ReviewStats
	dirty   bool
}

type session struct {
	mu        sync.Mutex
	uid       string
	startedAt time.Time
	deadline  time.Time
	queued    int
	pending   map[int32]*pendingCard

	graded   int
	passed   int
	failed   int
	promoted int
	demoted  int

	finished bool
	summary  *Summary
}

type service struct {
	store  Store
	engine *srs.Engine
	clock  srs.Clock
	loc    *time.Location
	ttl    time.Duration

	mu       sync.RWMutex
	sessions map[string]*session

	stopOnce sync.Once
	stop     chan struct{}
}

// NewService creates a review service wired to the store. Session TTL and
// the day-boundary timezone come from the profile.
func NewService(st *store.Store, serverProfile *profile.Profile) Service {
	loc, err := timezone.ParseTimezone(serverProfile.Timezone)
	if err != nil {
		slog.Warn("invalid timezone in profile, using local", slog.String("timezone", serverProfile.Timezone))
	}

	svc := newService(st, loc, serverProfile.SessionTTL, srs.SystemClock())
	svc.startSweeper()
	return svc
}

func newService(st Store, loc *time.Location, ttl time.Duration, clock srs.Clock) *service {
	if loc == nil {
		loc = time.Local
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if clock == nil {
		clock = srs.SystemClock()
	}
	return &service{
		store:    st,
		engine:   srs.NewEngineWithConfig(nil, clock),
		clock:    clock,
		loc:      loc,
		ttl:      ttl,
		sessions: make(map[string]*session),
		stop:     make(chan struct{}),
	}
}

// DueQueue returns the due cards. A card is due from the start of the day
// its next review date falls on, so the horizon is the next local midnight.
func (s *service) DueQueue(ctx context.Context, limit int) (*Queue, error) {
	if limit <= 0 {
		limit = DefaultQueueLimit
	}
	now := s.clock.Now().In(s.loc)
	horizon := srs.StartOfDay(now).AddDate(0, 0, 1).Unix()

	rows, err := s.store.ListCardStats(ctx, &store.FindCardStats{DueBeforeTs: &horizon})
	if err != nil {
		return nil, fmt.Errorf("failed to list due stats: %w", err)
	}
	if len(rows) == 0 {
		return &Queue{Items: []*QueueItem{}}, nil
	}

	ids := make([]int32, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.CardID)
	}
	normal := store.Normal
	cards, err := s.store.ListCards(ctx, &store.FindCard{IDs: ids, RowStatus: &normal})
	if err != nil {
		return nil, fmt.Errorf("failed to list due cards: %w", err)
	}
	cardByID := make(map[int32]*store.Card, len(cards))
	for _, card := range cards {
		cardByID[card.ID] = card
	}

	// Preserve the store's ordering: never-scheduled first, then earliest
	// next review date.
	items := make([]*QueueItem, 0, len(rows))
	for _, row := range rows {
		card, ok := cardByID[row.CardID]
		if !ok {
			// Archived since the stats row was written.
			continue
		}
		stats, err := row.ToReviewStats()
		if err != nil {
			slog.Warn("skipping card with undecodable stats",
				slog.Int("cardID", int(row.CardID)),
				slog.String("error", err.Error()))
			continue
		}
		items = append(items, &QueueItem{
			Card:           card,
			Stats:          stats,
			Classification: srs.Classify(stats),
		})
	}

	queue := &Queue{Items: items, TotalDue: len(items)}
	if len(queue.Items) > limit {
		queue.Items = queue.Items[:limit]
	}
	return queue, nil
}

// StartSession snapshots the due queue into a new session.
func (s *service) StartSession(ctx context.Context, limit int) (*Session, error) {
	queue, err := s.DueQueue(ctx, limit)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().In(s.loc)
	sess := &session{
		uid:       shortuuid.New(),
		startedAt: now,
		deadline:  now.Add(s.ttl),
		queued:    len(queue.Items),
		pending:   make(map[int32]*pendingCard),
	}

	s.mu.Lock()
	s.sessions[sess.uid] = sess
	s.mu.Unlock()

	slog.Debug("review session started",
		slog.String("session", sess.uid),
		slog.Int("cards", sess.queued))

	return &Session{
		UID:       sess.uid,
		StartedAt: sess.startedAt,
		ExpiresAt: sess.deadline,
		Cards:     queue.Items,
	}, nil
}

// Grade applies one graded attempt.
func (s *service) Grade(ctx context.Context, sessionUID string, grade *GradeRequest) (*GradeResult, error) {
	if grade == nil || grade.CardUID == "" {
		return nil, fmt.Errorf("card_uid is required")
	}

	sess, err := s.getSession(sessionUID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.finished {
		return nil, ErrSessionClosed
	}

	now := s.clock.Now().In(s.loc)
	sess.deadline = now.Add(s.ttl)

	pending, err := s.resolvePending(ctx, sess, grade.CardUID)
	if err != nil {
		return nil, err
	}

	before := pending.stats
	due := s.engine.IsDue(before, now)
	after := s.engine.Advance(before, srs.Grade{
		Pass: grade.Pass,
		Mode: grade.Mode,
		At:   now,
	})

	// The log row is the audit trail; it goes out immediately.
	if _, err := s.store.CreateReviewLog(ctx, &store.ReviewLog{
		CardID:     pending.cardID,
		SessionUID: sess.uid,
		Mode:       string(grade.Mode),
		Pass:       grade.Pass,
		Due:        due,
		Weight:     s.engine.WeightFor(grade.Mode),
	}); err != nil {
		return nil, fmt.Errorf("failed to record review log: %w", err)
	}

	pending.stats = after
	pending.dirty = true

	sess.graded++
	if grade.Pass {
		sess.passed++
	} else {
		sess.failed++
	}
	promoted := before.State != srs.StateMastered && after.State == srs.StateMastered
	demoted := before.State == srs.StateMastered && after.State != srs.StateMastered
	if promoted {
		sess.promoted++
	}
	if demoted {
		sess.demoted++
	}

	return &GradeResult{
		CardUID:        pending.cardUID,
		Pass:           grade.Pass,
		Due:            due,
		State:          after.State,
		IntervalDays:   after.IntervalDays,
		NextReviewDate: after.NextReviewDate,
		Promoted:       promoted,
		Demoted:        demoted,
		Classification: srs.Classify(after),
	}, nil
}

// FinishSession flushes pending snapshots and seals the session.
func (s *service) FinishSession(ctx context.Context, sessionUID string) (*Summary, error) {
	sess, err := s.getSession(sessionUID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.finished {
		return sess.summary, nil
	}

	if err := s.flushLocked(ctx, sess); err != nil {
		return nil, err
	}

	now := s.clock.Now().In(s.loc)
	sess.finished = true
	sess.summary = &Summary{
		SessionUID: sess.uid,
		StartedAt:  sess.startedAt,
		FinishedAt: now,
		Cards:      len(sess.pending),
		Graded:     sess.graded,
		Passed:     sess.passed,
		Failed:     sess.failed,
		Promoted:   sess.promoted,
		Demoted:    sess.demoted,
	}
	// The sealed session stays until the sweep so repeated finish calls
	// keep returning the same summary.
	sess.deadline = now.Add(s.ttl)

	slog.Debug("review session finished",
		slog.String("session", sess.uid),
		slog.Int("graded", sess.graded),
		slog.Int("promoted", sess.promoted),
		slog.Int("demoted", sess.demoted))

	return sess.summary, nil
}

// AbandonSession flushes whatever was graded and removes the session.
func (s *service) AbandonSession(ctx context.Context, sessionUID string) error {
	sess, err := s.getSession(sessionUID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if !sess.finished {
		if err := s.flushLocked(ctx, sess); err != nil {
			return err
		}
		sess.finished = true
	}
	s.removeSession(sess.uid)
	return nil
}

// Close stops the sweeper and flushes every open session so a shutdown
// loses nothing.
func (s *service) Close() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})

	s.mu.Lock()
	remaining := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		remaining = append(remaining, sess)
	}
	s.sessions = make(map[string]*session)
	s.mu.Unlock()

	for _, sess := range remaining {
		sess.mu.Lock()
		if !sess.finished {
			ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
			if err := s.flushLocked(ctx, sess); err != nil {
				slog.Error("failed to flush review session on close",
					slog.String("session", sess.uid),
					slog.String("error", err.Error()))
			}
			cancel()
			sess.finished = true
		}
		sess.mu.Unlock()
	}
}

// resolvePending returns the session's working snapshot for a card, loading
// it from the store on first touch. Callers hold the session mutex.
func (s *service) resolvePending(ctx context.Context, sess *session, cardUID string) (*pendingCard, error) {
	for _, pending := range sess.pending {
		if pending.cardUID == cardUID {
			return pending, nil
		}
	}

	card, err := s.store.GetCard(ctx, &store.FindCard{UID: &cardUID})
	if err != nil {
		return nil, fmt.Errorf("failed to get card: %w", err)
	}
	if card == nil {
		return nil, ErrCardNotFound
	}

	stats := srs.NewReviewStats()
	row, err := s.store.GetCardStats(ctx, card.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get card stats: %w", err)
	}
	if row != nil {
		decoded, err := row.ToReviewStats()
		if err != nil {
			return nil, fmt.Errorf("failed to decode card stats: %w", err)
		}
		stats = decoded
	}

	pending := &pendingCard{cardID: card.ID, cardUID: card.UID, stats: stats}
	sess.pending[card.ID] = pending
	return pending, nil
}

// flushLocked persists every dirty snapshot in the session. Writes fan out
// across distinct cards with bounded concurrency. Callers hold the session
// mutex.
func (s *service) flushLocked(ctx context.Context, sess *session) error {
	dirty := make([]*pendingCard, 0, len(sess.pending))
	for _, pending := range sess.pending {
		if pending.dirty {
			dirty = append(dirty, pending)
		}
	}
	if len(dirty) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(persistConcurrency)
	for _, pending := range dirty {
		g.Go(func() error {
			row, err := store.NewCardStats(pending.cardID, pending.stats)
			if err != nil {
				return err
			}
			if _, err := s.store.UpsertCardStats(gctx, row); err != nil {
				return fmt.Errorf("failed to persist stats for card %s: %w", pending.cardUID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, pending := range dirty {
		pending.dirty = false
	}
	return nil
}

func (s *service) getSession(sessionUID string) (*session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionUID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *service) removeSession(sessionUID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionUID)
}

func (s *service) startSweeper() {
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.expireSessions(s.clock.Now().In(s.loc))
			}
		}
	}()
}

// expireSessions flushes and removes sessions idle past their deadline.
// Expiry behaves like abandonment: graded progress is kept.
func (s *service) expireSessions(now time.Time) {
	s.mu.RLock()
	candidates := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		candidates = append(candidates, sess)
	}
	s.mu.RUnlock()

	for _, sess := range candidates {
		sess.mu.Lock()
		if now.After(sess.deadline) {
			if !sess.finished {
				ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
				if err := s.flushLocked(ctx, sess); err != nil {
					slog.Error("failed to flush expired review session",
						slog.String("session", sess.uid),
						slog.String("error", err.Error()))
				} else if sess.graded > 0 {
					slog.Warn("review session expired, graded progress kept",
						slog.String("session", sess.uid),
						slog.Int("graded", sess.graded))
				}
				cancel()
				sess.finished = true
			}
			s.removeSession(sess.uid)
		}
		sess.mu.Unlock()
	}
}
