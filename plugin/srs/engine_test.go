package srs

import (
	"testing"
	"time"
)

type fixedClock struct {
	t time.Time
}

func (c fixedClock) Now() time.Time {
	return c.t
}

func boolPtr(b bool) *bool {
	return &b
}

var testBase = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestAdvance_FirstPassOnNewCard(t *testing.T) {
	e := NewEngine()
	stats := NewReviewStats()

	result := e.Advance(stats, Grade{Pass: true, Mode: ModeProductionSpelling, At: testBase})

	if result.State != StateLearning {
		t.Errorf("State = %s, want %s", result.State, StateLearning)
	}
	if result.SuccessStreak != 1 {
		t.Errorf("SuccessStreak = %d, want 1", result.SuccessStreak)
	}
	if result.IntervalDays != 1 {
		t.Errorf("IntervalDays = %d, want 1", result.IntervalDays)
	}
	if result.NextReviewDate == nil {
		t.Fatal("NextReviewDate should be set after a due review")
	}
	wantNext := testBase.AddDate(0, 0, 1)
	if !result.NextReviewDate.Equal(wantNext) {
		t.Errorf("NextReviewDate = %v, want %v", result.NextReviewDate, wantNext)
	}
	if result.LastReviewedAt == nil || !result.LastReviewedAt.Equal(testBase) {
		t.Errorf("LastReviewedAt = %v, want %v", result.LastReviewedAt, testBase)
	}
}

func TestAdvance_LadderProgression(t *testing.T) {
	tests := []struct {
		current int
		want    int
	}{
		{0, 1},
		{1, 3},
		{3, 7},
		{7, 14},
		{14, 30},
		{30, 30}, // ceiling clamps
		{5, 1},   // off-ladder value heals to the bottom rung
		{-2, 1},
		{365, 1},
	}

	e := NewEngine()
	for _, tt := range tests {
		stats := ReviewStats{State: StateLearning, IntervalDays: tt.current}
		result := e.Advance(stats, Grade{Pass: true, Mode: ModeProductionSpelling, At: testBase})
		if result.IntervalDays != tt.want {
			t.Errorf("pass from interval %d: IntervalDays = %d, want %d", tt.current, result.IntervalDays, tt.want)
		}
	}
}

func TestAdvance_ThreePassesEndLearning(t *testing.T) {
	e := NewEngine()
	stats := NewReviewStats()
	at := testBase

	wantIntervals := []int{1, 3, 7}
	for i, want := range wantIntervals {
		stats = e.Advance(stats, Grade{Pass: true, Mode: ModeProductionSpelling, At: at})
		if stats.IntervalDays != want {
			t.Errorf("pass %d: IntervalDays = %d, want %d", i+1, stats.IntervalDays, want)
		}
		at = *stats.NextReviewDate
	}

	if stats.SuccessStreak != 3 {
		t.Errorf("SuccessStreak = %d, want 3", stats.SuccessStreak)
	}
	// Streak meets the bar but interval 7 < 14, so not yet mastered.
	if stats.State != StateLearning {
		t.Errorf("State = %s, want %s", stats.State, StateLearning)
	}
	if stats.MasteredAt != nil {
		t.Errorf("MasteredAt = %v, want nil", stats.MasteredAt)
	}
}

func TestAdvance_FifthPassReachesCeiling(t *testing.T) {
	e := NewEngine()
	stats := NewReviewStats()
	at := testBase

	wantIntervals := []int{1, 3, 7, 14, 30}
	var masteredAt time.Time
	for i, want := range wantIntervals {
		stats = e.Advance(stats, Grade{Pass: true, Mode: ModeProductionSpelling, At: at})
		if stats.IntervalDays != want {
			t.Errorf("pass %d: IntervalDays = %d, want %d", i+1, stats.IntervalDays, want)
		}
		switch i + 1 {
		case 3:
			if stats.State != StateLearning {
				t.Errorf("pass 3: State = %s, want %s", stats.State, StateLearning)
			}
		case 4:
			// Streak 4, interval 14: promotion happens here.
			if stats.State != StateMastered {
				t.Errorf("pass 4: State = %s, want %s", stats.State, StateMastered)
			}
			if stats.MasteredAt == nil {
				t.Fatal("pass 4: MasteredAt should be stamped on promotion")
			}
			masteredAt = *stats.MasteredAt
		case 5:
			if stats.State != StateMastered {
				t.Errorf("pass 5: State = %s, want %s", stats.State, StateMastered)
			}
			if stats.MasteredAt == nil || !stats.MasteredAt.Equal(masteredAt) {
				t.Errorf("pass 5: MasteredAt = %v, want unchanged %v", stats.MasteredAt, masteredAt)
			}
		}
		at = *stats.NextReviewDate
	}
}

func TestAdvance_FailOnMasteredDemotes(t *testing.T) {
	e := NewEngine()
	masteredAt := testBase.AddDate(0, 0, -30)
	next := testBase.AddDate(0, 0, -1)
	stats := ReviewStats{
		State:          StateMastered,
		SuccessStreak:  5,
		IntervalDays:   30,
		NextReviewDate: &next,
		MasteredAt:     &masteredAt,
	}

	result := e.Advance(stats, Grade{Pass: false, Mode: ModeProductionSpelling, At: testBase})

	if result.State != StateLearning {
		t.Errorf("State = %s, want %s", result.State, StateLearning)
	}
	if result.SuccessStreak != 0 {
		t.Errorf("SuccessStreak = %d, want 0", result.SuccessStreak)
	}
	if result.IntervalDays != FailIntervalDays {
		t.Errorf("IntervalDays = %d, want %d", result.IntervalDays, FailIntervalDays)
	}
	if len(result.Demotions) != 1 {
		t.Fatalf("len(Demotions) = %d, want 1", len(result.Demotions))
	}
	if !result.Demotions[0].Equal(testBase) {
		t.Errorf("Demotions[0] = %v, want %v", result.Demotions[0], testBase)
	}
	wantNext := testBase.AddDate(0, 0, 1)
	if result.NextReviewDate == nil || !result.NextReviewDate.Equal(wantNext) {
		t.Errorf("NextReviewDate = %v, want %v", result.NextReviewDate, wantNext)
	}
	// MasteredAt keeps the historical promotion timestamp.
	if result.MasteredAt == nil || !result.MasteredAt.Equal(masteredAt) {
		t.Errorf("MasteredAt = %v, want %v", result.MasteredAt, masteredAt)
	}
}

func TestAdvance_FailOnNewBecomesLearning(t *testing.T) {
	e := NewEngine()
	result := e.Advance(NewReviewStats(), Grade{Pass: false, Mode: ModeRecognitionEN, At: testBase})

	if result.State != StateLearning {
		t.Errorf("State = %s, want %s", result.State, StateLearning)
	}
	if result.IntervalDays != 1 {
		t.Errorf("IntervalDays = %d, want 1", result.IntervalDays)
	}
	if len(result.Demotions) != 0 {
		t.Errorf("len(Demotions) = %d, want 0", len(result.Demotions))
	}
	if result.LastWrongAt == nil || !result.LastWrongAt.Equal(testBase) {
		t.Errorf("LastWrongAt = %v, want %v", result.LastWrongAt, testBase)
	}
}

func TestAdvance_FailOnLearningKeepsDemotionsEmpty(t *testing.T) {
	e := NewEngine()
	stats := ReviewStats{State: StateLearning, SuccessStreak: 2, IntervalDays: 7}

	result := e.Advance(stats, Grade{Pass: false, Mode: ModeProductionCloze, At: testBase})

	if result.State != StateLearning {
		t.Errorf("State = %s, want %s", result.State, StateLearning)
	}
	if len(result.Demotions) != 0 {
		t.Errorf("len(Demotions) = %d, want 0", len(result.Demotions))
	}
}

func TestAdvance_CramLeavesScheduleUntouched(t *testing.T) {
	e := NewEngine()
	next := testBase.AddDate(0, 0, 3)
	stats := ReviewStats{
		State:          StateLearning,
		SuccessStreak:  2,
		IntervalDays:   3,
		NextReviewDate: &next,
		TotalAttempts:  4,
	}

	result := e.Advance(stats, Grade{Pass: true, Mode: ModeProductionSpelling, At: testBase})

	if result.State != stats.State {
		t.Errorf("State = %s, want %s", result.State, stats.State)
	}
	if result.SuccessStreak != stats.SuccessStreak {
		t.Errorf("SuccessStreak = %d, want %d", result.SuccessStreak, stats.SuccessStreak)
	}
	if result.IntervalDays != stats.IntervalDays {
		t.Errorf("IntervalDays = %d, want %d", result.IntervalDays, stats.IntervalDays)
	}
	if !result.NextReviewDate.Equal(next) {
		t.Errorf("NextReviewDate = %v, want %v", result.NextReviewDate, next)
	}
	// Usage counters still move.
	if result.TotalAttempts != 5 {
		t.Errorf("TotalAttempts = %f, want 5", result.TotalAttempts)
	}
	if result.ConsecutiveCorrect != 1 {
		t.Errorf("ConsecutiveCorrect = %d, want 1", result.ConsecutiveCorrect)
	}
	if result.LastReviewedAt == nil || !result.LastReviewedAt.Equal(testBase) {
		t.Errorf("LastReviewedAt = %v, want %v", result.LastReviewedAt, testBase)
	}
}

func TestAdvance_CramFailStillResetsConsecutive(t *testing.T) {
	e := NewEngine()
	next := testBase.AddDate(0, 0, 3)
	stats := ReviewStats{
		State:              StateMastered,
		SuccessStreak:      4,
		IntervalDays:       30,
		NextReviewDate:     &next,
		ConsecutiveCorrect: 9,
	}

	result := e.Advance(stats, Grade{Pass: false, Mode: ModeProductionSpelling, At: testBase})

	// No demotion, no schedule change: the review was not due.
	if result.State != StateMastered {
		t.Errorf("State = %s, want %s", result.State, StateMastered)
	}
	if len(result.Demotions) != 0 {
		t.Errorf("len(Demotions) = %d, want 0", len(result.Demotions))
	}
	if result.ConsecutiveCorrect != 0 {
		t.Errorf("ConsecutiveCorrect = %d, want 0", result.ConsecutiveCorrect)
	}
	if result.LastWrongAt == nil || !result.LastWrongAt.Equal(testBase) {
		t.Errorf("LastWrongAt = %v, want %v", result.LastWrongAt, testBase)
	}
}

func TestAdvance_ExplicitDueOverride(t *testing.T) {
	e := NewEngine()
	stats := NewReviewStats() // no schedule; would normally be due

	result := e.Advance(stats, Grade{Pass: true, Mode: ModeProductionSpelling, At: testBase, Due: boolPtr(false)})

	if result.SuccessStreak != 0 {
		t.Errorf("SuccessStreak = %d, want 0", result.SuccessStreak)
	}
	if result.IntervalDays != 0 {
		t.Errorf("IntervalDays = %d, want 0", result.IntervalDays)
	}
	if result.NextReviewDate != nil {
		t.Errorf("NextReviewDate = %v, want nil", result.NextReviewDate)
	}

	overdue := testBase.AddDate(0, 0, 10)
	stats2 := ReviewStats{State: StateLearning, IntervalDays: 3, NextReviewDate: &overdue}
	result2 := e.Advance(stats2, Grade{Pass: true, Mode: ModeProductionSpelling, At: testBase, Due: boolPtr(true)})
	if result2.IntervalDays != 7 {
		t.Errorf("forced due: IntervalDays = %d, want 7", result2.IntervalDays)
	}
}

func TestAdvance_WeightAffectsOnlyAggregates(t *testing.T) {
	e := NewEngine()
	stats := NewReviewStats()

	result := e.Advance(stats, Grade{Pass: true, Mode: ModeRecognitionEN, At: testBase})

	// Recognition counts half toward weighted totals.
	if result.TotalAttempts != 0.5 {
		t.Errorf("TotalAttempts = %f, want 0.5", result.TotalAttempts)
	}
	if result.CorrectAttempts != 0.5 {
		t.Errorf("CorrectAttempts = %f, want 0.5", result.CorrectAttempts)
	}
	// Raw tallies and the ladder are unweighted.
	tally := result.ModeStats[ModeRecognitionEN]
	if tally.Attempts != 1 || tally.Correct != 1 {
		t.Errorf("ModeStats tally = %+v, want {1 1}", tally)
	}
	if result.IntervalDays != 1 {
		t.Errorf("IntervalDays = %d, want 1", result.IntervalDays)
	}
	if result.SuccessStreak != 1 {
		t.Errorf("SuccessStreak = %d, want 1", result.SuccessStreak)
	}
}

func TestAdvance_UnknownModeTolerated(t *testing.T) {
	e := NewEngine()
	stats := NewReviewStats()

	result := e.Advance(stats, Grade{Pass: true, Mode: ModeKey("LISTENING"), At: testBase})

	// Unknown modes count at full weight with no per-mode tally.
	if result.TotalAttempts != 1 {
		t.Errorf("TotalAttempts = %f, want 1", result.TotalAttempts)
	}
	if _, ok := result.ModeStats["LISTENING"]; ok {
		t.Error("ModeStats should not gain an entry for an unknown mode")
	}
	if result.IntervalDays != 1 {
		t.Errorf("IntervalDays = %d, want 1", result.IntervalDays)
	}
}

func TestAdvance_DoesNotMutateInput(t *testing.T) {
	e := NewEngine()
	next := testBase.AddDate(0, 0, -1)
	demoted := testBase.AddDate(0, 0, -10)
	stats := ReviewStats{
		State:          StateMastered,
		SuccessStreak:  3,
		IntervalDays:   30,
		NextReviewDate: &next,
		Demotions:      []time.Time{demoted},
		ModeStats: map[ModeKey]ModeTally{
			ModeProductionSpelling: {Attempts: 5, Correct: 4},
		},
	}

	_ = e.Advance(stats, Grade{Pass: false, Mode: ModeProductionSpelling, At: testBase})

	if stats.State != StateMastered {
		t.Errorf("input State = %s, want %s", stats.State, StateMastered)
	}
	if stats.SuccessStreak != 3 {
		t.Errorf("input SuccessStreak = %d, want 3", stats.SuccessStreak)
	}
	if len(stats.Demotions) != 1 {
		t.Errorf("input len(Demotions) = %d, want 1", len(stats.Demotions))
	}
	if got := stats.ModeStats[ModeProductionSpelling]; got.Attempts != 5 {
		t.Errorf("input tally Attempts = %d, want 5", got.Attempts)
	}
	if !stats.NextReviewDate.Equal(next) {
		t.Errorf("input NextReviewDate = %v, want %v", stats.NextReviewDate, next)
	}
}

func TestAdvance_RepromotionNeedsFullBar(t *testing.T) {
	e := NewEngine()
	next := testBase.AddDate(0, 0, -1)
	masteredAt := testBase.AddDate(0, 0, -60)
	stats := ReviewStats{
		State:          StateMastered,
		SuccessStreak:  6,
		IntervalDays:   30,
		NextReviewDate: &next,
		MasteredAt:     &masteredAt,
	}

	// Demote.
	stats = e.Advance(stats, Grade{Pass: false, Mode: ModeProductionSpelling, At: testBase})
	if stats.State != StateLearning {
		t.Fatalf("State after fail = %s, want %s", stats.State, StateLearning)
	}

	// Climb back: 1 -> 3 -> 7 -> 14. Promotion lands on the third pass when
	// streak reaches 3 and interval reaches 14.
	at := *stats.NextReviewDate
	for i := 1; i <= 3; i++ {
		stats = e.Advance(stats, Grade{Pass: true, Mode: ModeProductionSpelling, At: at})
		if i < 3 && stats.State != StateLearning {
			t.Errorf("pass %d: State = %s, want %s", i, stats.State, StateLearning)
		}
		at = *stats.NextReviewDate
	}

	if stats.State != StateMastered {
		t.Errorf("State = %s, want %s", stats.State, StateMastered)
	}
	if stats.MasteredAt == nil || stats.MasteredAt.Equal(masteredAt) {
		t.Error("MasteredAt should be re-stamped on re-promotion")
	}
	if len(stats.Demotions) != 1 {
		t.Errorf("len(Demotions) = %d, want 1", len(stats.Demotions))
	}
}

func TestAdvance_PassBelowBarKeepsMastered(t *testing.T) {
	e := NewEngine()
	next := testBase.AddDate(0, 0, -1)
	masteredAt := testBase.AddDate(0, 0, -60)
	stats := ReviewStats{
		State:          StateMastered,
		SuccessStreak:  1,
		IntervalDays:   30,
		NextReviewDate: &next,
		MasteredAt:     &masteredAt,
	}

	result := e.Advance(stats, Grade{Pass: true, Mode: ModeProductionSpelling, At: testBase})

	// Streak 2 misses the bar, but a pass never demotes.
	if result.State != StateMastered {
		t.Errorf("State = %s, want %s", result.State, StateMastered)
	}
	if result.MasteredAt == nil || !result.MasteredAt.Equal(masteredAt) {
		t.Errorf("MasteredAt = %v, want unchanged %v", result.MasteredAt, masteredAt)
	}
	if result.IntervalDays != 30 {
		t.Errorf("IntervalDays = %d, want 30", result.IntervalDays)
	}
}

func TestAdvance_LegacyRecordGainsState(t *testing.T) {
	e := NewEngine()
	stats := ReviewStats{TotalAttempts: 12, CorrectAttempts: 9} // no state field

	result := e.Advance(stats, Grade{Pass: true, Mode: ModeProductionSpelling, At: testBase})

	if result.State != StateLearning {
		t.Errorf("State = %s, want %s", result.State, StateLearning)
	}
}

func TestAdvance_ZeroGradeTimeUsesClock(t *testing.T) {
	e := NewEngineWithConfig(nil, fixedClock{t: testBase})

	result := e.Advance(NewReviewStats(), Grade{Pass: true, Mode: ModeProductionSpelling})

	if result.LastReviewedAt == nil || !result.LastReviewedAt.Equal(testBase) {
		t.Errorf("LastReviewedAt = %v, want clock time %v", result.LastReviewedAt, testBase)
	}
	wantNext := testBase.AddDate(0, 0, 1)
	if result.NextReviewDate == nil || !result.NextReviewDate.Equal(wantNext) {
		t.Errorf("NextReviewDate = %v, want %v", result.NextReviewDate, wantNext)
	}
}

func TestIsDue(t *testing.T) {
	e := NewEngine()
	at := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		next *time.Time
		want bool
	}{
		{"never scheduled", nil, true},
		{"due yesterday", timePtr(at.AddDate(0, 0, -1)), true},
		{"due exactly now", timePtr(at), true},
		{"due later today", timePtr(at.Add(6 * time.Hour)), true}, // calendar alignment, not time of day
		{"due tomorrow", timePtr(at.AddDate(0, 0, 1)), false},
		{"due next week", timePtr(at.AddDate(0, 0, 7)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := ReviewStats{NextReviewDate: tt.next}
			if got := e.IsDue(stats, at); got != tt.want {
				t.Errorf("IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsDueUsesCallerDayBoundary(t *testing.T) {
	e := NewEngine()
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	// Scheduled late on the 2nd, Tokyo time. A Unix round trip through
	// storage re-attaches a different location to the date.
	next := time.Date(2024, 3, 2, 23, 0, 0, 0, tokyo)
	stored := time.Unix(next.Unix(), 0).In(time.UTC)
	stats := ReviewStats{NextReviewDate: &stored}

	if !e.IsDue(stats, time.Date(2024, 3, 2, 0, 30, 0, 0, tokyo)) {
		t.Error("IsDue() = false just after Tokyo midnight on the scheduled day, want true")
	}
	if e.IsDue(stats, time.Date(2024, 3, 1, 23, 30, 0, 0, tokyo)) {
		t.Error("IsDue() = true before the scheduled day starts in Tokyo, want false")
	}
}

func TestStartOfDay(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	in := time.Date(2024, 3, 10, 23, 45, 9, 120, loc)
	got := StartOfDay(in)
	want := time.Date(2024, 3, 10, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("StartOfDay = %v, want %v", got, want)
	}
	if got.Location() != loc {
		t.Errorf("StartOfDay location = %v, want %v", got.Location(), loc)
	}
}
