package events

import "time"

// Event types pushed to account streams.
const (
	TypeUsageUpdated        = "usage.updated"
	TypeSubscriptionUpdated = "subscription.updated"
)

// Event is one message on a user's account stream.
type Event struct {
	Type string    `json:"type" example:"usage.updated"`
	At   time.Time `json:"at"`
	Data any       `json:"data"`
}

// Publisher fans events out to a user's live connections.
type Publisher interface {
	Publish(userID string, ev Event)
}
