package model

import (
	"strings"
	"time"
)

// PatternType is the kind of signal a learned pattern matches on.
type PatternType string

const (
	PatternSender  PatternType = "sender"
	PatternSubject PatternType = "subject"
	PatternContent PatternType = "content"
	PatternDomain  PatternType = "domain"
)

// VIPSender grants a scoring boost to a sender address, either set
// explicitly by the user or suggested by the learning loop.
type VIPSender struct {
	ID              int       `json:"id"`
	UserID          int       `json:"user_id"`
	SenderAddress   string    `json:"sender_address"`
	ScoreBoost      float64   `json:"score_boost"` // [0, 50]
	AutoCategory    string    `json:"auto_category,omitempty"`
	ConfidenceScore float64   `json:"confidence_score"` // [0, 1]
	UsageCount      int       `json:"usage_count"`
	Source          string    `json:"source"` // "user" or "learned"
	Confirmed       bool      `json:"confirmed"`
	CreatedAt       time.Time `json:"created_at"`
	LastUsedAt      time.Time `json:"last_used_at"`
}

// LearnedPattern is a (type, value) signal whose scoring impact is derived
// from observed user behavior.
type LearnedPattern struct {
	ID              int         `json:"id"`
	UserID          int         `json:"user_id"`
	PatternType     PatternType `json:"pattern_type"`
	PatternValue    string      `json:"pattern_value"`
	ScoreImpact     float64     `json:"score_impact"`     // [-50, 50]
	ConfidenceScore float64     `json:"confidence_score"` // [0, 1]
	SampleCount     int         `json:"sample_count"`
	SuccessRate     float64     `json:"success_rate"`
	LastSeenAt      time.Time   `json:"last_seen_at"`
}

// Pattern eligibility gate: a pattern may only influence scoring once it is
// confident enough and backed by a minimum number of observations.
const (
	PatternMinConfidence  = 0.5
	PatternMinSampleCount = 2
)

// Eligible reports whether this pattern may influence scoring.
func (p *LearnedPattern) Eligible() bool {
	return p.ConfidenceScore > PatternMinConfidence && p.SampleCount >= PatternMinSampleCount
}

// Matches reports whether this pattern applies to the given email.
func (p *LearnedPattern) Matches(e *Email) bool {
	v := strings.ToLower(p.PatternValue)
	switch p.PatternType {
	case PatternSender:
		return NormalizeAddress(e.Sender) == v
	case PatternDomain:
		return e.SenderDomain() == v
	case PatternSubject:
		return strings.Contains(strings.ToLower(e.Subject), v)
	case PatternContent:
		return strings.Contains(strings.ToLower(e.Body), v) ||
			strings.Contains(strings.ToLower(e.Snippet), v)
	}
	return false
}

// SenderStats is the rolling per-sender interaction record backing the
// sender-reputation factor and VIP promotion.
type SenderStats struct {
	UserID        int       `json:"user_id"`
	SenderAddress string    `json:"sender_address"`
	EmailCount    int       `json:"email_count"`
	PositiveCount int       `json:"positive_count"`
	NegativeCount int       `json:"negative_count"`
	LastSeenAt    time.Time `json:"last_seen_at"`
}
