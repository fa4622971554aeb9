package scoring

import (
	"time"

	"mailtriage/internal/model"
)

// Base score every email starts from before factor contributions.
const baseScore = 30

// Config carries the keyword sets and bounds the factor heuristics use.
// Zero value is not usable; call DefaultConfig.
type Config struct {
	UrgencyKeywords  []string
	MarketingPhrases []string
	MarketingDomains []string
	ActionPhrases    []string

	// MaxUrgencyBoost caps the saturating urgency bonus.
	MaxUrgencyBoost float64
	// MaxMarketingPenalty caps the marketing penalty (applied as a negative).
	MaxMarketingPenalty float64
}

// DefaultConfig returns the factor heuristics used in production.
func DefaultConfig() Config {
	return Config{
		UrgencyKeywords: []string{
			"urgent", "asap", "immediately", "deadline", "overdue",
			"action required", "by tomorrow", "end of day", "eod",
			"time sensitive", "respond by",
		},
		MarketingPhrases: []string{
			"% off", "sale", "discount", "free shipping", "limited time",
			"act now", "deal", "coupon", "flash sale",
		},
		MarketingDomains: []string{
			"mailchimp.com", "sendgrid.net", "marketo.com",
			"constantcontact.com", "hubspotemail.net", "exacttarget.com",
		},
		ActionPhrases: []string{
			"please", "can you", "could you", "let me know",
			"need your", "review", "sign off", "approve",
		},
		MaxUrgencyBoost:     20,
		MaxMarketingPenalty: 20,
	}
}

// Engine computes scores. It is stateless and safe for unbounded parallel use.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Score produces the score record for an email given a profile snapshot.
// Pure and deterministic: identical (email, profile, now) inputs yield an
// identical factor breakdown, so re-running for backfill is safe.
func (e *Engine) Score(email *model.Email, p Profile, now time.Time) model.ScoreRecord {
	f := model.FactorBreakdown{Base: baseScore}

	f.VIPBoost = e.vipBoost(email, p) * p.Prefs.VIPSenderWeight
	f.UrgencyBoost = e.urgencyBoost(email) * p.Prefs.UrgentKeywordsWeight
	f.MarketingPenalty = -e.marketingPenalty(email) * p.Prefs.MarketingPenaltyWeight
	f.ProviderSignals = providerSignals(email) * p.Prefs.GmailSignalsWeight
	f.TimeDecay = timeDecay(email, now) * p.Prefs.TimeDecayWeight
	f.ContentAnalysis = e.contentAnalysis(email)
	f.SenderReputation = senderReputation(p.Stats[model.NormalizeAddress(email.Sender)])
	f.PatternAdjustment = patternAdjustment(email, p.Patterns)

	raw := f.Total()
	final := model.Clamp(raw, 0, 100)

	return model.ScoreRecord{
		EmailID:    email.ID,
		UserID:     email.UserID,
		RawScore:   raw,
		FinalScore: final,
		Tier:       p.Prefs.TierFor(final),
		Factors:    f,
		ScoredAt:   now,
	}
}

// vipBoost returns the configured boost when the sender is a confirmed VIP.
func (e *Engine) vipBoost(email *model.Email, p Profile) float64 {
	vip, ok := p.VIPs[model.NormalizeAddress(email.Sender)]
	if !ok || !vip.Confirmed {
		return 0
	}
	return model.Clamp(vip.ScoreBoost, 0, 50)
}
