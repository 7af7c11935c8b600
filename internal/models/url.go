package models

import "time"

// URL represents a shortened URL and its associated metadata.
type URL struct {
	// ID is the unique identifier assigned by the store.
	ID int64
	// Code is the short alphanumeric identifier mapping to the original URL.
	Code string
	// OriginalURL is the original, full-length URL that the code points to.
	OriginalURL string
	// AccessCount tracks the number of times the shortened URL has been accessed.
	AccessCount int64
	// CreatedAt is the timestamp indicating when the shortened URL was created.
	CreatedAt time.Time
	// ExpiresAt, if set, marks the moment after which the URL is treated as absent.
	ExpiresAt *time.Time
	// AccessEvents holds the recorded accesses, oldest first.
	// Populated only by with-history lookups.
	AccessEvents []AccessEvent
}

// Expired reports whether the URL is past its expiration timestamp.
// URLs without an expiration never expire.
func (u *URL) Expired(now time.Time) bool {
	return u.ExpiresAt != nil && u.ExpiresAt.Before(now)
}

// AccessEvent records a single resolution of a shortened URL.
type AccessEvent struct {
	ID         int64
	URLID      int64
	OccurredAt time.Time
	OriginAddr string
	UserAgent  string
	Referrer   string
}
