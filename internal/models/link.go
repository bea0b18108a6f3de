package models

import (
	"time"
)

// Link is a short-link record. OwnerID is nil for links created
// anonymously; such links can never be updated or deleted afterwards.
type Link struct {
	ID          int64      `json:"id"`
	ShortID     string     `json:"short_id"`
	OriginalURL string     `json:"original_url"`
	OwnerID     *string    `json:"owner_id,omitempty"`
	VisitCount  int64      `json:"visit_count"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Expired reports whether the record is logically dead at the given instant.
func (l *Link) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}

type CreateLinkInput struct {
	OriginalURL   string     `json:"original_url" binding:"required,url"`
	OwnerID       *string    `json:"owner_id,omitempty"`
	CustomShortID *string    `json:"custom_short_id,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}
