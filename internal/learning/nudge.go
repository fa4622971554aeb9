package learning

import "mailtriage/internal/model"

// Action is an observed user behavior the loop learns from.
type Action string

const (
	ActionStar               Action = "star"
	ActionReply              Action = "reply"
	ActionArchive            Action = "archive"
	ActionDelete             Action = "delete"
	ActionMarkRead           Action = "mark_read"
	ActionMarkUnread         Action = "mark_unread"
	ActionMarkImportant      Action = "mark_important"
	ActionCategoryCorrection Action = "category_correction"

	// Digest actions close the loop from the weekly aggregator.
	ActionUnsubscribe Action = "unsubscribe"
	ActionKeep        Action = "keep"
)

// Signal returns +1 for positive actions, -1 for negative ones, 0 for
// neutral ones.
func (a Action) Signal() int {
	switch a {
	case ActionStar, ActionReply, ActionMarkImportant, ActionMarkUnread, ActionKeep:
		return 1
	case ActionArchive, ActionDelete, ActionUnsubscribe:
		return -1
	default:
		return 0
	}
}

// Valid reports whether the action is one the loop understands.
func (a Action) Valid() bool {
	switch a {
	case ActionStar, ActionReply, ActionArchive, ActionDelete,
		ActionMarkRead, ActionMarkUnread, ActionMarkImportant,
		ActionCategoryCorrection, ActionUnsubscribe, ActionKeep:
		return true
	}
	return false
}

// impactStep is how far one observation nudges a pattern's score impact.
// Bounded steps prevent unbounded drift.
const impactStep = 2.0

// nudgeImpact moves impact one bounded step toward the observed outcome.
func nudgeImpact(impact float64, signal int) float64 {
	return model.Clamp(impact+impactStep*float64(signal), -50, 50)
}

// saturatingConfidence maps a sample count to a confidence in [0, 1) that
// grows quickly at first and saturates: n / (n + 3).
func saturatingConfidence(sampleCount int) float64 {
	if sampleCount <= 0 {
		return 0
	}
	n := float64(sampleCount)
	return n / (n + 3)
}

// updateSuccessRate folds a new observation into the running success rate.
func updateSuccessRate(rate float64, samples int, positive bool) float64 {
	var hit float64
	if positive {
		hit = 1
	}
	if samples <= 0 {
		return hit
	}
	return (rate*float64(samples) + hit) / float64(samples+1)
}

// vipConfidence derives a sender's VIP confidence from interaction history,
// damped while the sample is small.
func vipConfidence(stats model.SenderStats) float64 {
	total := stats.PositiveCount + stats.NegativeCount
	if total == 0 {
		return 0
	}
	ratio := float64(stats.PositiveCount) / float64(total)
	return ratio * saturatingConfidence(total)
}
