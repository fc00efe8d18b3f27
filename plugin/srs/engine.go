package srs

import (
	"time"
)

// Engine computes review transitions. It is a pure function over the stats
// record: no I/O, no randomness, safe to use concurrently on independent
// cards. Callers must persist the returned record and treat it as
// authoritative.
type Engine struct {
	weights ModeWeights
	clock   Clock
}

// NewEngine creates an engine with the default mode weights and system clock.
func NewEngine() *Engine {
	return NewEngineWithConfig(DefaultModeWeights(), SystemClock())
}

// NewEngineWithConfig creates an engine with a custom weight table and clock.
// Nil arguments fall back to the defaults.
func NewEngineWithConfig(weights ModeWeights, clock Clock) *Engine {
	if weights == nil {
		weights = DefaultModeWeights()
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &Engine{
		weights: weights,
		clock:   clock,
	}
}

// Advance applies one graded review and returns the next stats record. The
// input is never mutated.
//
// Scheduling (state, streak, interval, next review date) only moves when the
// review was due. Grading early is cramming: it updates the usage counters
// below but cannot accelerate mastery.
func (e *Engine) Advance(stats ReviewStats, grade Grade) ReviewStats {
	now := grade.At
	if now.IsZero() {
		now = e.clock.Now()
	}
	due := e.IsDue(stats, now)
	if grade.Due != nil {
		due = *grade.Due
	}

	next := stats.Clone()

	// Usage statistics update on every grade, due or not.
	weight, known := e.weights[grade.Mode]
	if !known {
		// Unknown mode: count it at full weight but keep no per-mode tally,
		// so newer clients with extra modes still work.
		weight = 1
	}
	next.TotalAttempts += weight
	if grade.Pass {
		next.CorrectAttempts += weight
		next.ConsecutiveCorrect++
	} else {
		next.ConsecutiveCorrect = 0
		next.LastWrongAt = timePtr(now)
	}
	next.LastReviewedAt = timePtr(now)
	if known {
		if next.ModeStats == nil {
			next.ModeStats = make(map[ModeKey]ModeTally, 1)
		}
		tally := next.ModeStats[grade.Mode]
		tally.Attempts++
		if grade.Pass {
			tally.Correct++
		}
		next.ModeStats[grade.Mode] = tally
	}

	if !due {
		return next
	}

	if grade.Pass {
		next.SuccessStreak++
		next.IntervalDays = nextInterval(next.IntervalDays)
		if next.SuccessStreak >= MasteryStreak && next.IntervalDays >= MasteryIntervalDays {
			// Stamp mastered_at only on the transition in.
			if next.State != StateMastered {
				next.MasteredAt = timePtr(now)
			}
			next.State = StateMastered
		} else if next.State == StateNew || next.State == "" {
			// First successful scheduled attempt leaves newness. A pass below
			// the bar never changes LEARNING or MASTERED; demotion is a FAIL
			// concern only.
			next.State = StateLearning
		}
	} else {
		if next.State == StateMastered {
			next.Demotions = append(next.Demotions, now)
		}
		next.SuccessStreak = 0
		next.IntervalDays = FailIntervalDays
		// A failed NEW card becomes LEARNING too: being tested at all is
		// engagement.
		next.State = StateLearning
	}

	next.NextReviewDate = timePtr(now.AddDate(0, 0, next.IntervalDays))
	return next
}

// WeightFor returns the grading weight of a mode. Unknown modes count at
// full weight.
func (e *Engine) WeightFor(mode ModeKey) float64 {
	if weight, ok := e.weights[mode]; ok {
		return weight
	}
	return 1
}

// IsDue reports whether the card is due at the given moment. Due is calendar
// aligned: the card becomes due at the start of the day its next review date
// falls on, regardless of time of day. The day boundary is taken in at's
// location, since a date loaded from storage carries whatever location the
// Unix round trip attached. A card that has never been scheduled is always
// due.
func (e *Engine) IsDue(stats ReviewStats, at time.Time) bool {
	if stats.NextReviewDate == nil {
		return true
	}
	return !at.Before(StartOfDay(stats.NextReviewDate.In(at.Location())))
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// nextInterval walks one rung up the ladder. A value not on the ladder is
// treated as the bottom rung so corrupt records heal instead of erroring.
// The top rung clamps.
func nextInterval(current int) int {
	pos := 0
	for i, v := range IntervalLadder {
		if v == current {
			pos = i
			break
		}
	}
	if pos < len(IntervalLadder)-1 {
		pos++
	}
	return IntervalLadder[pos]
}

func timePtr(t time.Time) *time.Time {
	return &t
}
