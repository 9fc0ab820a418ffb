// Package models defines the domain types shared across the application:
// the shortened link record, its access log entries and the event emitted
// when a short link is accessed.
package models

import (
	"time"

	"github.com/google/uuid"
)

// ShortLink represents a single code to URL mapping.
type ShortLink struct {
	// ID is the unique identifier of the link, assigned at creation.
	ID uuid.UUID
	// LongURL is the original, full-length URL that the code points to.
	LongURL string
	// ShortURL is the full shortened URL, derived as baseURL + "/" + code.
	ShortURL string
	// Code is the short code, globally unique across all links.
	Code string
	// IsExpiring reports whether the link has a limited lifetime.
	IsExpiring bool
	// ExpiresAt is the expiry timestamp, meaningful only if IsExpiring is set.
	ExpiresAt *time.Time
	// AttemptCount tracks the number of recorded accesses to the link.
	AttemptCount int64
	// CreatedAt is the timestamp indicating when the link was created.
	CreatedAt time.Time
}

// NewShortLink creates a link record with a fresh identifier.
func NewShortLink(longURL, shortURL, code string, isExpiring bool, expiresAt *time.Time) *ShortLink {
	return &ShortLink{
		ID:         uuid.New(),
		LongURL:    longURL,
		ShortURL:   shortURL,
		Code:       code,
		IsExpiring: isExpiring,
		ExpiresAt:  expiresAt,
		CreatedAt:  time.Now().UTC(),
	}
}

// IsExpired reports whether the link has passed its expiry timestamp.
// It is derived, never persisted.
func (l *ShortLink) IsExpired() bool {
	return l.IsExpiring && l.ExpiresAt != nil && !time.Now().Before(*l.ExpiresAt)
}

// IncrementAttemptCount records one more access to the link.
func (l *ShortLink) IncrementAttemptCount() {
	l.AttemptCount++
}

// ShortLinkAccessLog represents one observed access to a short link.
// Entries are immutable historical facts: they may outlive the link
// they reference.
type ShortLinkAccessLog struct {
	ID          uuid.UUID
	ShortLinkID uuid.UUID
	Code        string
	IPAddress   string
	UserAgent   string
	AccessedAt  time.Time
	CreatedAt   time.Time
}

// NewShortLinkAccessLog creates an access log entry for the given link.
func NewShortLinkAccessLog(shortLinkID uuid.UUID, code, ipAddress, userAgent string, accessedAt time.Time) *ShortLinkAccessLog {
	return &ShortLinkAccessLog{
		ID:          uuid.New(),
		ShortLinkID: shortLinkID,
		Code:        code,
		IPAddress:   ipAddress,
		UserAgent:   userAgent,
		AccessedAt:  accessedAt,
		CreatedAt:   time.Now().UTC(),
	}
}

// ShortLinkAccessedEvent is published after every successful resolution
// and consumed asynchronously to persist analytics.
type ShortLinkAccessedEvent struct {
	Code       string    `json:"code"`
	IPAddress  string    `json:"ip_address"`
	UserAgent  string    `json:"user_agent"`
	AccessedAt time.Time `json:"accessed_at"`
}
