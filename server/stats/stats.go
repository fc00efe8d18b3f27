// Package stats provides simple local usage statistics for the review server.
// This is a lightweight alternative to enterprise monitoring solutions.
package stats

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vocadrill/vocadrill/plugin/srs"
	"github.com/vocadrill/vocadrill/server/timezone"
	"github.com/vocadrill/vocadrill/store"
)

// Stats represents usage statistics.
type Stats struct {
	// Deck stats
	TotalCards    int64
	NewCards      int64
	LearningCards int64
	MasteredCards int64
	DueToday      int64

	// Review stats
	TotalReviews   int64
	ReviewedToday  int64
	ReviewAccuracy float64 // weighted percentage, 0-100
	TotalDemotions int64
	LastReviewTime time.Time

	// Activity stats
	ActiveDays int64 // Days with reviews in the last 30 days
	StreakDays int64 // Current consecutive days with reviews

	// Timestamp
	LastUpdated time.Time
}

// Collector collects and manages usage statistics.
type Collector struct {
	store    *store.Store
	loc      *time.Location
	stats    *Stats
	mu       sync.Mutex
	tickStop chan struct{}
}

// NewCollector creates a new statistics collector. The location decides where
// the day boundary falls for "today" counters.
func NewCollector(st *store.Store, loc *time.Location) *Collector {
	if loc == nil {
		loc = timezone.Local
	}
	return &Collector{
		store: st,
		loc:   loc,
		stats: &Stats{
			LastUpdated: time.Now(),
		},
		tickStop: make(chan struct{}),
	}
}

// Start begins periodic statistics collection.
// Updates every hour.
func (c *Collector) Start(ctx context.Context) {
	// Initial collection
	c.collect(ctx)

	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.collect(ctx)
			case <-ctx.Done():
				return
			case <-c.tickStop:
				return
			}
		}
	}()
}

// Stop stops the statistics collector.
func (c *Collector) Stop() {
	select {
	case <-c.tickStop:
		// Already closed
	default:
		close(c.tickStop)
	}
}

// GetStats returns a copy of current statistics.
func (c *Collector) GetStats() *Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	copied := *c.stats
	return &copied
}

// RecordReview records a graded review between collection ticks. The next
// collect pass recomputes log-derived totals from the store.
func (c *Collector) RecordReview() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.TotalReviews++
	c.stats.ReviewedToday++
	c.stats.LastReviewTime = time.Now()
}

// Refresh forces an immediate collection pass.
func (c *Collector) Refresh(ctx context.Context) {
	c.collect(ctx)
}

// collect gathers current statistics from the store.
func (c *Collector) collect(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().In(c.loc)
	todayStart := timezone.StartOfDay(now, c.loc)
	dueHorizon := todayStart.AddDate(0, 0, 1).Unix()
	thirtyDaysAgo := now.AddDate(0, 0, -30)

	// Deck stats come from the active cards and their scheduling rows. When
	// the card listing fails the previous deck snapshot stays, since an empty
	// active set would zero every bucket against a stale total.
	normal := store.Normal
	cards, err := c.store.ListCards(ctx, &store.FindCard{RowStatus: &normal})
	if err != nil {
		slog.Warn("failed to list cards for stats, keeping previous deck stats", slog.String("error", err.Error()))
	} else {
		c.stats.TotalCards = int64(len(cards))
		activeIDs := make(map[int32]bool, len(cards))
		for _, card := range cards {
			activeIDs[card.ID] = true
		}

		c.collectDeckStats(ctx, activeIDs, dueHorizon)
	}

	// Review stats come from the append-only log.
	logs, err := c.store.ListReviewLogs(ctx, &store.FindReviewLog{})
	if err == nil {
		c.stats.TotalReviews = int64(len(logs))

		reviewedToday := int64(0)
		weightTotal := 0.0
		weightCorrect := 0.0
		lastReview := time.Time{}
		activeDaysMap := make(map[string]bool)

		for _, entry := range logs {
			created := time.Unix(entry.CreatedTs, 0).In(c.loc)
			if !created.Before(todayStart) {
				reviewedToday++
			}
			weightTotal += entry.Weight
			if entry.Pass {
				weightCorrect += entry.Weight
			}
			if created.After(lastReview) {
				lastReview = created
			}
			if created.After(thirtyDaysAgo) || created.Equal(thirtyDaysAgo) {
				activeDaysMap[created.Format("2006-01-02")] = true
			}
		}

		c.stats.ReviewedToday = reviewedToday
		if weightTotal > 0 {
			c.stats.ReviewAccuracy = weightCorrect / weightTotal * 100
		} else {
			c.stats.ReviewAccuracy = 0
		}
		c.stats.LastReviewTime = lastReview
		c.stats.ActiveDays = int64(len(activeDaysMap))

		// The streak needs days beyond the 30-day window, so build a
		// second day set over the whole log.
		allDays := make(map[string]bool)
		for _, entry := range logs {
			allDays[time.Unix(entry.CreatedTs, 0).In(c.loc).Format("2006-01-02")] = true
		}
		c.stats.StreakDays = calculateStreak(allDays, now, c.loc)
	}

	c.stats.LastUpdated = now
}

// collectDeckStats rebuilds the state buckets from the scheduling rows of the
// active cards. Callers hold the mutex and have already set TotalCards.
func (c *Collector) collectDeckStats(ctx context.Context, activeIDs map[int32]bool, dueHorizon int64) {
	statsRows, err := c.store.ListCardStats(ctx, &store.FindCardStats{})
	if err != nil {
		slog.Warn("failed to list card stats for stats, keeping previous deck stats", slog.String("error", err.Error()))
		return
	}

	newCount := c.stats.TotalCards
	learningCount := int64(0)
	masteredCount := int64(0)
	dueCount := int64(0)
	demotionCount := int64(0)

	for _, row := range statsRows {
		if !activeIDs[row.CardID] {
			continue
		}
		reviewStats, err := row.ToReviewStats()
		if err != nil {
			continue
		}

		// Cards without a stats row stay in the NEW bucket.
		newCount--
		switch srs.Classify(reviewStats).Label {
		case srs.StateMastered:
			masteredCount++
		case srs.StateLearning:
			learningCount++
		default:
			newCount++
		}

		if row.NextReviewTs == nil || *row.NextReviewTs < dueHorizon {
			dueCount++
		}
		demotionCount += int64(len(reviewStats.Demotions))
	}

	if newCount < 0 {
		newCount = 0
	}
	c.stats.NewCards = newCount
	c.stats.LearningCards = learningCount
	c.stats.MasteredCards = masteredCount
	c.stats.DueToday = dueCount
	c.stats.TotalDemotions = demotionCount
}

// calculateStreak counts consecutive days with at least one review. A streak
// survives a quiet morning: when today has no review yet, counting starts
// from yesterday.
func calculateStreak(days map[string]bool, now time.Time, loc *time.Location) int64 {
	start := 0
	if !days[now.In(loc).Format("2006-01-02")] {
		start = 1
	}

	streak := int64(0)
	for i := start; i < 365+start; i++ {
		key := now.In(loc).AddDate(0, 0, -i).Format("2006-01-02")
		if !days[key] {
			break
		}
		streak++
	}
	return streak
}

// GetSummary returns a human-readable summary.
func (s *Stats) GetSummary() string {
	return fmt.Sprintf(
		`📊 Review statistics (updated: %s)

📚 Deck
  total: %d cards
  new: %d / learning: %d / mastered: %d
  due today: %d

🔁 Reviews
  total: %d
  today: %d
  accuracy: %.1f%%
  demotions: %d

📈 Activity
  active days (30d): %d
  streak: %d days
  last review: %s`,
		s.LastUpdated.Format("2006-01-02 15:04"),
		s.TotalCards,
		s.NewCards,
		s.LearningCards,
		s.MasteredCards,
		s.DueToday,
		s.TotalReviews,
		s.ReviewedToday,
		s.ReviewAccuracy,
		s.TotalDemotions,
		s.ActiveDays,
		s.StreakDays,
		formatLastReview(s.LastReviewTime),
	)
}

func formatLastReview(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	duration := time.Since(t)
	if duration < time.Hour {
		return "just now"
	}
	if duration < 24*time.Hour {
		return fmt.Sprintf("%d hours ago", int(duration.Hours()))
	}
	if duration < 7*24*time.Hour {
		return fmt.Sprintf("%d days ago", int(duration.Hours()/24))
	}
	return t.Format("2006-01-02")
}
