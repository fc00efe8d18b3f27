package srs

// Classification pairs the display label with its sort tier.
type Classification struct {
	Label State `json:"label"`
	Tier  int   `json:"tier"`
}

// Classify maps a stats record to its display classification. Records with a
// state field classify directly; records written before the field existed
// fall back to the accuracy heuristic. The two paths are kept as separate
// strategies so the legacy one stays independently testable.
func Classify(stats ReviewStats) Classification {
	if stats.State != "" {
		return classifyByState(stats)
	}
	return classifyByAccuracy(stats)
}

func classifyByState(stats ReviewStats) Classification {
	return Classification{
		Label: stats.State,
		Tier:  stats.State.Tier(),
	}
}

// classifyByAccuracy scores a legacy record by weighted accuracy plus a small
// bonus per consecutive correct answer, clamped to [0,1], then buckets at the
// legacy thresholds. Kept exactly as the pre-state data expects.
func classifyByAccuracy(stats ReviewStats) Classification {
	score := stats.Accuracy() + LegacyStreakBonus*float64(stats.ConsecutiveCorrect)
	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	switch {
	case score >= LegacyMasteredThreshold:
		return Classification{Label: StateMastered, Tier: StateMastered.Tier()}
	case score >= LegacyLearningThreshold:
		return Classification{Label: StateLearning, Tier: StateLearning.Tier()}
	default:
		return Classification{Label: StateNew, Tier: StateNew.Tier()}
	}
}
