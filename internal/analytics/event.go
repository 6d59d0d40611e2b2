// Package analytics carries link lifecycle events from the API to the consumer.
package analytics

import "time"

const (
	TopicLinkCreated  = "link.created"
	TopicLinkAccessed = "link.accessed"
	TopicLinkDeleted  = "link.deleted"
)

// LinkCreatedEvent is emitted when a link is shortened.
type LinkCreatedEvent struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Target    string    `json:"target"`
	CreatedAt time.Time `json:"createdAt"`
	ClientIP  string    `json:"clientIp"`
	UserAgent string    `json:"userAgent"`
}

// LinkAccessedEvent is emitted on every redirect.
type LinkAccessedEvent struct {
	ID         string    `json:"id"`
	Caller     string    `json:"caller,omitempty"`
	Clicks     int64     `json:"clicks"`
	AccessedAt time.Time `json:"accessedAt"`
	ClientIP   string    `json:"clientIp"`
	UserAgent  string    `json:"userAgent"`
	Referrer   string    `json:"referrer,omitempty"`
}

// LinkDeletedEvent is emitted when links are removed. IDs lists every
// removed link; a bulk delete produces one event.
type LinkDeletedEvent struct {
	IDs       []string  `json:"ids"`
	Owner     string    `json:"owner"`
	DeletedAt time.Time `json:"deletedAt"`
}
