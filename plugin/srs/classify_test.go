package srs

import (
	"testing"
)

func TestClassify_StateBased(t *testing.T) {
	tests := []struct {
		state State
		tier  int
	}{
		{StateNew, 0},
		{StateLearning, 1},
		{StateMastered, 2},
	}

	for _, tt := range tests {
		got := Classify(ReviewStats{State: tt.state})
		if got.Label != tt.state {
			t.Errorf("Classify(%s).Label = %s, want %s", tt.state, got.Label, tt.state)
		}
		if got.Tier != tt.tier {
			t.Errorf("Classify(%s).Tier = %d, want %d", tt.state, got.Tier, tt.tier)
		}
	}
}

func TestClassify_StateWinsOverCounters(t *testing.T) {
	// A present state field short-circuits the accuracy fallback.
	stats := ReviewStats{State: StateNew, TotalAttempts: 10, CorrectAttempts: 10}

	got := Classify(stats)
	if got.Label != StateNew {
		t.Errorf("Label = %s, want %s", got.Label, StateNew)
	}
}

func TestClassify_LegacyFallback(t *testing.T) {
	tests := []struct {
		name        string
		total       float64
		correct     float64
		consecutive int
		want        State
	}{
		{"no history", 0, 0, 0, StateNew},
		{"low accuracy", 10, 3, 0, StateNew},
		{"learning threshold exactly", 10, 4, 0, StateLearning},
		{"mid accuracy", 10, 6, 0, StateLearning},
		{"mastered threshold exactly", 4, 3, 0, StateMastered},
		{"high accuracy", 10, 9, 0, StateMastered},
		{"streak bonus lifts to mastered", 10, 5, 6, StateMastered},
		{"streak bonus lifts to learning", 10, 3, 2, StateLearning},
		{"score clamps at one", 1, 1, 20, StateMastered},
		{"bonus alone stays new", 0, 0, 2, StateNew},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := ReviewStats{
				TotalAttempts:      tt.total,
				CorrectAttempts:    tt.correct,
				ConsecutiveCorrect: tt.consecutive,
			}
			got := Classify(stats)
			if got.Label != tt.want {
				t.Errorf("Label = %s, want %s", got.Label, tt.want)
			}
			if got.Tier != tt.want.Tier() {
				t.Errorf("Tier = %d, want %d", got.Tier, tt.want.Tier())
			}
		})
	}
}

func TestClassify_StableAcrossCramming(t *testing.T) {
	e := NewEngine()
	next := testBase.AddDate(0, 0, 5)
	stats := ReviewStats{
		State:          StateLearning,
		SuccessStreak:  2,
		IntervalDays:   3,
		NextReviewDate: &next,
	}

	before := Classify(stats)
	after := Classify(e.Advance(stats, Grade{Pass: true, Mode: ModeProductionSpelling, At: testBase}))

	if before.Label != after.Label {
		t.Errorf("label changed across a non-due review: %s -> %s", before.Label, after.Label)
	}
	if before.Tier != after.Tier {
		t.Errorf("tier changed across a non-due review: %d -> %d", before.Tier, after.Tier)
	}
}
