package model

import "time"

// Digest email categories inferred by the category classifier.
const (
	CategoryMarketing  = "marketing"
	CategoryNewsletter = "newsletter"
	CategorySocial     = "social"
	CategoryAutomated  = "automated"
	CategoryOther      = "other"
)

// DigestCategory groups low-tier emails of one coarse category.
type DigestCategory struct {
	Count          int      `json:"count"`
	Senders        []string `json:"senders"`
	SampleSubjects []string `json:"sample_subjects"`
}

// UnsubscribeSuggestion is one sender the aggregator believes the user could
// unsubscribe from, with a confidence in [0, 1].
type UnsubscribeSuggestion struct {
	Sender     string  `json:"sender"`
	Domain     string  `json:"domain"`
	Category   string  `json:"category"`
	EmailCount int     `json:"email_count"`
	Confidence float64 `json:"confidence"`
}

// BulkActionProposal proposes one action across all senders sharing a
// normalized domain.
type BulkActionProposal struct {
	Domain  string   `json:"domain"`
	Senders []string `json:"senders"`
	Action  string   `json:"action"`
}

// WeeklyDigest aggregates everything routed to the low tier during one week.
// Unique per (user, week_start); regeneration requires force.
type WeeklyDigest struct {
	ID                int                       `json:"id"`
	UserID            int                       `json:"user_id"`
	WeekStart         time.Time                 `json:"week_start"`
	WeekEnd           time.Time                 `json:"week_end"`
	TotalEmails       int                       `json:"total_emails"`
	Categories        map[string]DigestCategory `json:"categories"`
	SafeToUnsubscribe []UnsubscribeSuggestion   `json:"safe_to_unsubscribe"`
	NeedsReview       []UnsubscribeSuggestion   `json:"needs_review"`
	BulkActions       []BulkActionProposal      `json:"bulk_actions"`
	Errors            []string                  `json:"errors,omitempty"`
	GeneratedAt       time.Time                 `json:"generated_at"`
}

// DigestAction is one action the user took against a digest.
type DigestAction struct {
	ID         int       `json:"id"`
	DigestID   int       `json:"digest_id"`
	Sender     string    `json:"sender"`
	Action     string    `json:"action"` // "unsubscribe" or "keep"
	RecordedAt time.Time `json:"recorded_at"`
}
