package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/vocadrill/vocadrill/plugin/srs"
)

// CardStats is the persisted scheduling record for one card. First-class
// scheduling fields map to columns; demotions and per-mode tallies ride
// along as JSON text.
type CardStats struct {
	CardID    int32
	UpdatedTs int64

	State              string
	SuccessStreak      int
	IntervalDays       int
	NextReviewTs       *int64
	MasteredAtTs       *int64
	Demotions          *string // JSON array of RFC3339 timestamps
	TotalAttempts      float64
	CorrectAttempts    float64
	ConsecutiveCorrect int
	LastReviewedTs     *int64
	LastWrongTs        *int64
	ModeStats          *string // JSON object keyed by mode
}

// FindCardStats is the find condition for card stats.
type FindCardStats struct {
	CardID  *int32
	CardIDs []int32

	// State filters on the stored state label.
	State *string

	// DueBeforeTs selects rows whose next review falls before the given
	// moment, including rows that were never scheduled.
	DueBeforeTs *int64

	// Pagination
	Limit  *int
	Offset *int
}

// DeleteCardStats is the delete request for card stats.
type DeleteCardStats struct {
	CardID int32
}

// ToReviewStats decodes the row into the scheduler's stats value.
func (cs *CardStats) ToReviewStats() (srs.ReviewStats, error) {
	stats := srs.ReviewStats{
		State:              srs.State(cs.State),
		SuccessStreak:      cs.SuccessStreak,
		IntervalDays:       cs.IntervalDays,
		TotalAttempts:      cs.TotalAttempts,
		CorrectAttempts:    cs.CorrectAttempts,
		ConsecutiveCorrect: cs.ConsecutiveCorrect,
		NextReviewDate:     tsToTime(cs.NextReviewTs),
		MasteredAt:         tsToTime(cs.MasteredAtTs),
		LastReviewedAt:     tsToTime(cs.LastReviewedTs),
		LastWrongAt:        tsToTime(cs.LastWrongTs),
	}
	if cs.Demotions != nil && *cs.Demotions != "" {
		if err := json.Unmarshal([]byte(*cs.Demotions), &stats.Demotions); err != nil {
			return srs.ReviewStats{}, errors.Wrapf(err, "failed to decode demotions for card %d", cs.CardID)
		}
	}
	if cs.ModeStats != nil && *cs.ModeStats != "" {
		if err := json.Unmarshal([]byte(*cs.ModeStats), &stats.ModeStats); err != nil {
			return srs.ReviewStats{}, errors.Wrapf(err, "failed to decode mode stats for card %d", cs.CardID)
		}
	}
	return stats, nil
}

// NewCardStats encodes the scheduler's stats value into a row for cardID.
func NewCardStats(cardID int32, stats srs.ReviewStats) (*CardStats, error) {
	cs := &CardStats{
		CardID:             cardID,
		State:              string(stats.State),
		SuccessStreak:      stats.SuccessStreak,
		IntervalDays:       stats.IntervalDays,
		TotalAttempts:      stats.TotalAttempts,
		CorrectAttempts:    stats.CorrectAttempts,
		ConsecutiveCorrect: stats.ConsecutiveCorrect,
		NextReviewTs:       timeToTs(stats.NextReviewDate),
		MasteredAtTs:       timeToTs(stats.MasteredAt),
		LastReviewedTs:     timeToTs(stats.LastReviewedAt),
		LastWrongTs:        timeToTs(stats.LastWrongAt),
	}
	if len(stats.Demotions) > 0 {
		raw, err := json.Marshal(stats.Demotions)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to encode demotions for card %d", cardID)
		}
		s := string(raw)
		cs.Demotions = &s
	}
	if len(stats.ModeStats) > 0 {
		raw, err := json.Marshal(stats.ModeStats)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to encode mode stats for card %d", cardID)
		}
		s := string(raw)
		cs.ModeStats = &s
	}
	return cs, nil
}

func tsToTime(ts *int64) *time.Time {
	if ts == nil {
		return nil
	}
	t := time.Unix(*ts, 0)
	return &t
}

func timeToTs(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ts := t.Unix()
	return &ts
}

// UpsertCardStats writes the full stats snapshot for a card. Re-submitting
// an identical snapshot leaves the row unchanged.
func (s *Store) UpsertCardStats(ctx context.Context, upsert *CardStats) (*CardStats, error) {
	stats, err := s.driver.UpsertCardStats(ctx, upsert)
	if err != nil {
		return nil, err
	}
	s.cardStatsCache.Set(ctx, cardStatsCacheKey(stats.CardID), stats)
	return stats, nil
}

// GetCardStats returns the stats row for a card, or nil when the card has
// never been reviewed.
func (s *Store) GetCardStats(ctx context.Context, cardID int32) (*CardStats, error) {
	if v, ok := s.cardStatsCache.Get(ctx, cardStatsCacheKey(cardID)); ok {
		if stats, ok := v.(*CardStats); ok {
			return stats, nil
		}
	}
	id := cardID
	list, err := s.driver.ListCardStats(ctx, &FindCardStats{CardID: &id})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	s.cardStatsCache.Set(ctx, cardStatsCacheKey(cardID), list[0])
	return list[0], nil
}

// ListCardStats lists stats rows with filter.
func (s *Store) ListCardStats(ctx context.Context, find *FindCardStats) ([]*CardStats, error) {
	return s.driver.ListCardStats(ctx, find)
}

// DeleteCardStats deletes the stats row for a card.
func (s *Store) DeleteCardStats(ctx context.Context, delete *DeleteCardStats) error {
	if err := s.driver.DeleteCardStats(ctx, delete); err != nil {
		return err
	}
	s.cardStatsCache.Delete(ctx, cardStatsCacheKey(delete.CardID))
	return nil
}

func cardStatsCacheKey(cardID int32) string {
	return fmt.Sprintf("card_stats:%d", cardID)
}
