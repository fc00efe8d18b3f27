// Package srs implements the spaced repetition scheduler for vocabulary cards.
package srs

import (
	"time"
)

// State classifies how firmly a card is memorized.
type State string

const (
	// StateNew - card was added but never graded on schedule
	StateNew State = "NEW"
	// StateLearning - card is climbing the interval ladder
	StateLearning State = "LEARNING"
	// StateMastered - card met the mastery bar and has not failed since
	StateMastered State = "MASTERED"
)

// Tier orders states for display sorting: NEW < LEARNING < MASTERED.
// Unrecognized states sort with NEW.
func (s State) Tier() int {
	switch s {
	case StateLearning:
		return 1
	case StateMastered:
		return 2
	default:
		return 0
	}
}

// Valid reports whether s is one of the three known states.
func (s State) Valid() bool {
	switch s {
	case StateNew, StateLearning, StateMastered:
		return true
	}
	return false
}

// ModeKey identifies a presentation mode a card can be drilled in.
type ModeKey string

const (
	// ModeRecognitionEN - shown the word, recall the translation
	ModeRecognitionEN ModeKey = "RECOGNITION_EN"
	// ModeRecognitionNative - shown the translation, recall the word
	ModeRecognitionNative ModeKey = "RECOGNITION_NATIVE"
	// ModeProductionSpelling - type the word from memory
	ModeProductionSpelling ModeKey = "PRODUCTION_SPELLING"
	// ModeProductionCloze - produce the word inside an example sentence
	ModeProductionCloze ModeKey = "PRODUCTION_CLOZE"
)

// ModeWeights maps presentation modes to their accuracy weight. The weight
// applies only to the aggregate attempt counters, never to the interval
// ladder or the mastery bar.
type ModeWeights map[ModeKey]float64

// DefaultModeWeights returns the standard weight table: passive recognition
// counts half, active production counts full.
func DefaultModeWeights() ModeWeights {
	return ModeWeights{
		ModeRecognitionEN:      0.5,
		ModeRecognitionNative:  0.5,
		ModeProductionSpelling: 1.0,
		ModeProductionCloze:    1.0,
	}
}

// ModeTally holds raw per-mode counts. Weights do not apply here.
type ModeTally struct {
	Attempts int `json:"attempts"`
	Correct  int `json:"correct"`
}

// IntervalLadder is the fixed sequence of review intervals in days. Each due
// PASS steps one rung up; both ends clamp rather than wrap.
var IntervalLadder = [6]int{0, 1, 3, 7, 14, 30}

const (
	// MasteryStreak is the consecutive-pass count required for promotion.
	MasteryStreak = 3
	// MasteryIntervalDays is the minimum interval required for promotion.
	MasteryIntervalDays = 14
	// FailIntervalDays is the rung a card falls back to on any due FAIL.
	FailIntervalDays = 1
)

const (
	// LegacyMasteredThreshold buckets legacy records as MASTERED.
	LegacyMasteredThreshold = 0.75
	// LegacyLearningThreshold buckets legacy records as LEARNING.
	LegacyLearningThreshold = 0.4
	// LegacyStreakBonus is added to the legacy score per consecutive correct.
	LegacyStreakBonus = 0.05
)

// ReviewStats is the full scheduling record for one card. It is owned by the
// card it describes and mutated only through Engine.Advance.
type ReviewStats struct {
	// State is empty on records written before the field existed. Classify
	// falls back to the accuracy heuristic for those.
	State State `json:"state,omitempty"`

	SuccessStreak  int        `json:"success_streak"`
	IntervalDays   int        `json:"interval_days"`
	NextReviewDate *time.Time `json:"next_review_date,omitempty"`
	MasteredAt     *time.Time `json:"mastered_at,omitempty"`

	// Demotions records every regression from MASTERED. Append-only.
	Demotions []time.Time `json:"demotions,omitempty"`

	// Weighted aggregates across all modes.
	TotalAttempts   float64 `json:"total_attempts"`
	CorrectAttempts float64 `json:"correct_attempts"`

	// ConsecutiveCorrect is the legacy streak counter. It counts every graded
	// review, due or not, unlike SuccessStreak which only moves on due reviews.
	ConsecutiveCorrect int `json:"consecutive_correct"`

	LastReviewedAt *time.Time `json:"last_reviewed_at,omitempty"`
	LastWrongAt    *time.Time `json:"last_wrong_at,omitempty"`

	// ModeStats tallies raw counts per presentation mode.
	ModeStats map[ModeKey]ModeTally `json:"mode_stats,omitempty"`
}

// NewReviewStats returns the all-default record for a card that has never
// been reviewed.
func NewReviewStats() ReviewStats {
	return ReviewStats{State: StateNew}
}

// Clone returns a deep copy. Map, slice, and pointer fields are detached so
// the copy can be mutated without touching the original.
func (s ReviewStats) Clone() ReviewStats {
	c := s
	c.NextReviewDate = cloneTime(s.NextReviewDate)
	c.MasteredAt = cloneTime(s.MasteredAt)
	c.LastReviewedAt = cloneTime(s.LastReviewedAt)
	c.LastWrongAt = cloneTime(s.LastWrongAt)
	if s.Demotions != nil {
		c.Demotions = make([]time.Time, len(s.Demotions))
		copy(c.Demotions, s.Demotions)
	}
	if s.ModeStats != nil {
		c.ModeStats = make(map[ModeKey]ModeTally, len(s.ModeStats))
		for k, v := range s.ModeStats {
			c.ModeStats[k] = v
		}
	}
	return c
}

// Accuracy returns the weighted correct ratio in [0,1]. A record with no
// attempts scores 0.
func (s ReviewStats) Accuracy() float64 {
	if s.TotalAttempts <= 0 {
		return 0
	}
	return s.CorrectAttempts / s.TotalAttempts
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// Grade describes one graded review fed to the engine.
type Grade struct {
	// Pass is true when active recall succeeded.
	Pass bool
	// Mode is the presentation mode the card was drilled in.
	Mode ModeKey
	// At is the grading moment. Zero means the engine clock's now.
	At time.Time
	// Due overrides the due computation when non-nil. Left nil, the engine
	// compares At against NextReviewDate itself.
	Due *bool
}
