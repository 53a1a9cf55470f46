package models

import "time"

// Subscription is a named collection of events owned by one user.
// FeedToken is the capability token embedded in the public feed URL;
// it is minted once and stays stable across pushes.
type Subscription struct {
	ID              string    `json:"id"`
	SubscriptionKey string    `json:"subscription_key"` // stable, caller-chosen, unique per user
	DisplayName     string    `json:"display_name"`
	Domain          string    `json:"domain,omitempty"` // e.g. "sports", "music"; "general" when unset
	Timezone        string    `json:"timezone"`         // nominal calendar timezone, informational
	FeedToken       string    `json:"-"`                // never exposed in list/detail payloads directly
	UserID          int       `json:"-"`
	UpdatedAt       time.Time `json:"updated_at"`
}
