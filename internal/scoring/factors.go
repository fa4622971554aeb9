package scoring

import (
	"strings"
	"time"

	"mailtriage/internal/model"
)

// urgencyBoost scans subject and snippet for urgency keywords. The bonus
// saturates: the first match is worth the most, extra matches add little.
func (e *Engine) urgencyBoost(email *model.Email) float64 {
	text := strings.ToLower(email.Subject + " " + email.Snippet)

	matches := 0
	for _, kw := range e.cfg.UrgencyKeywords {
		if strings.Contains(text, kw) {
			matches++
		}
	}
	if matches == 0 {
		return 0
	}
	boost := 15 + 3*float64(matches-1)
	if boost > e.cfg.MaxUrgencyBoost {
		boost = e.cfg.MaxUrgencyBoost
	}
	return boost
}

// marketingPenalty counts promotional signals and returns a bounded positive
// penalty (the engine negates it).
func (e *Engine) marketingPenalty(email *model.Email) float64 {
	signals := 0

	lowerBody := strings.ToLower(email.Body)
	if strings.Contains(lowerBody, "unsubscribe") ||
		strings.Contains(lowerBody, "manage your preferences") ||
		strings.Contains(lowerBody, "view in browser") {
		signals++
	}

	lowerSubject := strings.ToLower(email.Subject)
	for _, phrase := range e.cfg.MarketingPhrases {
		if strings.Contains(lowerSubject, phrase) {
			signals++
			break
		}
	}

	domain := email.SenderDomain()
	for _, d := range e.cfg.MarketingDomains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			signals++
			break
		}
	}

	sender := model.NormalizeAddress(email.Sender)
	if strings.HasPrefix(sender, "noreply@") || strings.HasPrefix(sender, "no-reply@") {
		signals++
	}

	if email.HasLabel("PROMOTIONS") || email.HasLabel("CATEGORY_PROMOTIONS") {
		signals++
	}

	if signals == 0 {
		return 0
	}
	penalty := 10 + 4*float64(signals-1)
	if penalty > e.cfg.MaxMarketingPenalty {
		penalty = e.cfg.MaxMarketingPenalty
	}
	return penalty
}

// providerSignals translates provider flags into small additive boosts.
func providerSignals(email *model.Email) float64 {
	var boost float64
	if email.IsImportant {
		boost += 10
	}
	if email.IsStarred {
		boost += 8
	}
	if email.IsUnread {
		boost += 2
	}
	return boost
}

// timeDecay gives very recent emails a small recency boost and decays old
// unread emails toward lower urgency. Monotone non-increasing in age.
func timeDecay(email *model.Email, now time.Time) float64 {
	age := now.Sub(email.ReceivedAt)
	if age < 0 {
		age = 0
	}

	switch {
	case age <= 4*time.Hour:
		return 5
	case age <= 48*time.Hour:
		return 0
	default:
		if !email.IsUnread {
			return 0
		}
		days := (age - 48*time.Hour).Hours() / 24
		penalty := 3 * days
		if penalty > 15 {
			penalty = 15
		}
		return -penalty
	}
}

// contentAnalysis runs cheap local heuristics only, never a network call.
func (e *Engine) contentAnalysis(email *model.Email) float64 {
	var signal float64

	if strings.Contains(email.Subject, "?") || strings.Contains(email.Body, "?") {
		signal += 3
	}

	lower := strings.ToLower(email.Subject + " " + email.Body)
	for _, phrase := range e.cfg.ActionPhrases {
		if strings.Contains(lower, phrase) {
			signal += 4
			break
		}
	}

	if n := len(email.Body); n > 0 && n < 300 {
		signal += 2
	}

	if signal > 8 {
		signal = 8
	}
	return signal
}

// senderReputation derives a bounded contribution from historical
// interactions with a sender. Positive-heavy history pushes up to +15,
// negative-heavy down to -10, damped while the sample is small.
func senderReputation(stats model.SenderStats) float64 {
	total := stats.PositiveCount + stats.NegativeCount
	if total == 0 {
		return 0
	}

	ratio := float64(stats.PositiveCount)/float64(total)*2 - 1 // [-1, 1]
	damping := float64(total) / 5
	if damping > 1 {
		damping = 1
	}

	if ratio >= 0 {
		return ratio * 15 * damping
	}
	return ratio * 10 * damping
}

// patternAdjustment sums the impact of every eligible pattern matching the
// email, weighted by the pattern's own confidence. The aggregate is bounded
// so runaway patterns cannot dominate the score.
func patternAdjustment(email *model.Email, patterns []model.LearnedPattern) float64 {
	var sum float64
	for i := range patterns {
		p := &patterns[i]
		if !p.Eligible() || !p.Matches(email) {
			continue
		}
		sum += model.Clamp(p.ScoreImpact, -50, 50) * p.ConfidenceScore
	}
	return model.Clamp(sum, -50, 50)
}
