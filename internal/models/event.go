package models

import "time"

// EventStatus is the lifecycle state an agent reports for an event.
type EventStatus string

const (
	StatusScheduled EventStatus = "scheduled"
	StatusCancelled EventStatus = "cancelled"
	StatusPostponed EventStatus = "postponed"
)

// Valid reports whether s is one of the three known statuses.
func (s EventStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusCancelled, StatusPostponed:
		return true
	}
	return false
}

// Event is a single calendar entry pushed by an agent.
// (SubscriptionID, ExternalID) is unique; the pair forms the feed UID.
type Event struct {
	ID             string      `json:"id"`
	SubscriptionID string      `json:"subscription_id"`
	ExternalID     string      `json:"external_id"`
	Title          string      `json:"title"`
	Description    string      `json:"description,omitempty"`
	StartAt        time.Time   `json:"start_at"`
	EndAt          *time.Time  `json:"end_at,omitempty"` // nil means instantaneous, no DTEND
	Timezone       string      `json:"timezone"`         // declared home zone, display only
	Location       string      `json:"location,omitempty"`
	Status         EventStatus `json:"status"`
	SourceURL      string      `json:"source_url"`
	Confidence     float64     `json:"confidence"`
	Labels         []string    `json:"labels"` // stored and returned, not emitted into feeds
	SourceHash     string      `json:"-"`
	UpdatedAt      time.Time   `json:"updated_at"`
}
