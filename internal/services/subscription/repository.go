package subscription

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Repo persists subscriptions. Implementations return ErrNotFound for missing documents.
type Repo interface {
	Create(ctx context.Context, sub *Subscription) error
	FindByUserID(ctx context.Context, userID bson.ObjectID) (*Subscription, error)
	Save(ctx context.Context, sub *Subscription) error
	// IncrementUsage zeroes counters from an earlier period, then adds deltas.
	// Keys are document paths from UsageField.
	IncrementUsage(ctx context.Context, userID bson.ObjectID, deltas map[string]int64, periodStart time.Time) error
	// ExpireLapsed marks running subscriptions with an end date before now as inactive
	// and returns the updated documents.
	ExpireLapsed(ctx context.Context, now time.Time) ([]*Subscription, error)
}

// UserSummaries keeps the summary embedded in user documents in step with the subscription.
type UserSummaries interface {
	UpdateSubscriptionSummary(ctx context.Context, userID bson.ObjectID, sum Summary) error
}
