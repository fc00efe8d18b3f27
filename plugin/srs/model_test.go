package srs

import (
	"testing"
	"time"
)

func TestLadderConstants(t *testing.T) {
	want := [6]int{0, 1, 3, 7, 14, 30}
	if IntervalLadder != want {
		t.Errorf("IntervalLadder = %v, want %v", IntervalLadder, want)
	}
	if MasteryStreak != 3 {
		t.Errorf("MasteryStreak = %d, want 3", MasteryStreak)
	}
	if MasteryIntervalDays != 14 {
		t.Errorf("MasteryIntervalDays = %d, want 14", MasteryIntervalDays)
	}
	if FailIntervalDays != 1 {
		t.Errorf("FailIntervalDays = %d, want 1", FailIntervalDays)
	}
}

func TestDefaultModeWeights(t *testing.T) {
	w := DefaultModeWeights()

	if w[ModeRecognitionEN] != 0.5 {
		t.Errorf("RECOGNITION_EN weight = %f, want 0.5", w[ModeRecognitionEN])
	}
	if w[ModeRecognitionNative] != 0.5 {
		t.Errorf("RECOGNITION_NATIVE weight = %f, want 0.5", w[ModeRecognitionNative])
	}
	if w[ModeProductionSpelling] != 1.0 {
		t.Errorf("PRODUCTION_SPELLING weight = %f, want 1.0", w[ModeProductionSpelling])
	}
	if w[ModeProductionCloze] != 1.0 {
		t.Errorf("PRODUCTION_CLOZE weight = %f, want 1.0", w[ModeProductionCloze])
	}
}

func TestStateTier(t *testing.T) {
	tests := []struct {
		state State
		want  int
	}{
		{StateNew, 0},
		{StateLearning, 1},
		{StateMastered, 2},
		{State(""), 0},
		{State("BOGUS"), 0},
	}

	for _, tt := range tests {
		if got := tt.state.Tier(); got != tt.want {
			t.Errorf("Tier(%q) = %d, want %d", tt.state, got, tt.want)
		}
	}
}

func TestStateValid(t *testing.T) {
	for _, s := range []State{StateNew, StateLearning, StateMastered} {
		if !s.Valid() {
			t.Errorf("Valid(%q) = false, want true", s)
		}
	}
	for _, s := range []State{"", "new", "DONE"} {
		if s.Valid() {
			t.Errorf("Valid(%q) = true, want false", s)
		}
	}
}

func TestNewReviewStats(t *testing.T) {
	stats := NewReviewStats()

	if stats.State != StateNew {
		t.Errorf("State = %s, want %s", stats.State, StateNew)
	}
	if stats.SuccessStreak != 0 || stats.IntervalDays != 0 {
		t.Errorf("streak/interval = %d/%d, want 0/0", stats.SuccessStreak, stats.IntervalDays)
	}
	if stats.NextReviewDate != nil {
		t.Errorf("NextReviewDate = %v, want nil", stats.NextReviewDate)
	}
	if stats.TotalAttempts != 0 || stats.CorrectAttempts != 0 {
		t.Errorf("attempts = %f/%f, want 0/0", stats.TotalAttempts, stats.CorrectAttempts)
	}
}

func TestClone_DetachesSharedData(t *testing.T) {
	next := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	stats := ReviewStats{
		State:          StateMastered,
		NextReviewDate: &next,
		Demotions:      []time.Time{next.AddDate(0, 0, -5)},
		ModeStats: map[ModeKey]ModeTally{
			ModeRecognitionEN: {Attempts: 2, Correct: 1},
		},
	}

	c := stats.Clone()
	*c.NextReviewDate = next.AddDate(0, 1, 0)
	c.Demotions[0] = next
	c.Demotions = append(c.Demotions, next)
	tally := c.ModeStats[ModeRecognitionEN]
	tally.Attempts = 99
	c.ModeStats[ModeRecognitionEN] = tally

	if !stats.NextReviewDate.Equal(next) {
		t.Errorf("original NextReviewDate = %v, want %v", stats.NextReviewDate, next)
	}
	if len(stats.Demotions) != 1 || stats.Demotions[0].Equal(next) {
		t.Error("original Demotions changed through the clone")
	}
	if stats.ModeStats[ModeRecognitionEN].Attempts != 2 {
		t.Errorf("original tally Attempts = %d, want 2", stats.ModeStats[ModeRecognitionEN].Attempts)
	}
}

func TestClone_NilFieldsStayNil(t *testing.T) {
	c := NewReviewStats().Clone()

	if c.NextReviewDate != nil || c.MasteredAt != nil || c.LastReviewedAt != nil || c.LastWrongAt != nil {
		t.Error("cloned nil timestamps should stay nil")
	}
	if c.Demotions != nil {
		t.Errorf("Demotions = %v, want nil", c.Demotions)
	}
	if c.ModeStats != nil {
		t.Errorf("ModeStats = %v, want nil", c.ModeStats)
	}
}

func TestAccuracy(t *testing.T) {
	tests := []struct {
		name    string
		total   float64
		correct float64
		want    float64
	}{
		{"no attempts", 0, 0, 0},
		{"perfect", 4, 4, 1},
		{"half", 4, 2, 0.5},
		{"weighted", 2.5, 1.5, 0.6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := ReviewStats{TotalAttempts: tt.total, CorrectAttempts: tt.correct}
			if got := stats.Accuracy(); got != tt.want {
				t.Errorf("Accuracy() = %f, want %f", got, tt.want)
			}
		})
	}
}
