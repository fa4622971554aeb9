package model

import (
	"errors"
	"strings"
	"time"
)

// Email is a single ingested message. Immutable after ingestion except for
// the provider-owned flags.
type Email struct {
	ID             int
	UserID         int
	MessageID      string
	ThreadID       string
	Sender         string
	SenderName     string
	Subject        string
	Snippet        string
	Body           string
	Labels         []string
	IsImportant    bool
	IsStarred      bool
	IsUnread       bool
	HasAttachments bool
	ReceivedAt     time.Time
	CreatedAt      time.Time
}

var (
	ErrMissingSender    = errors.New("email has no sender address")
	ErrMissingMessageID = errors.New("email has no provider message id")
)

// Validate rejects malformed records at the ingestion boundary.
func (e *Email) Validate() error {
	if strings.TrimSpace(e.Sender) == "" || !strings.Contains(e.Sender, "@") {
		return ErrMissingSender
	}
	if strings.TrimSpace(e.MessageID) == "" {
		return ErrMissingMessageID
	}
	return nil
}

// SenderDomain returns the part after "@", lowercased.
func (e *Email) SenderDomain() string {
	return DomainOf(e.Sender)
}

// HasLabel reports whether the provider label set contains the given label
// (case-insensitive).
func (e *Email) HasLabel(label string) bool {
	for _, l := range e.Labels {
		if strings.EqualFold(l, label) {
			return true
		}
	}
	return false
}

// NormalizeAddress lowercases and trims a sender address.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// DomainOf extracts the lowercased domain of an address, or "" if there is none.
func DomainOf(addr string) string {
	at := strings.LastIndex(addr, "@")
	if at < 0 || at == len(addr)-1 {
		return ""
	}
	return strings.ToLower(addr[at+1:])
}
