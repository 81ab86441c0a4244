package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"infinitiflow/internal/services/subscription"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ErrSubscriptionExists is returned when a user already has a subscription.
var ErrSubscriptionExists = errors.New("subscription already exists for user")

var runningStatuses = bson.A{
	subscription.StatusActive,
	subscription.StatusTrialing,
	subscription.StatusPastDue,
}

// SubscriptionsRepo implements subscription.Repo for MongoDB
type SubscriptionsRepo struct {
	collection *mongo.Collection
}

// NewSubscriptionsRepo creates a new subscriptions repository and its indexes.
func NewSubscriptionsRepo(ctx context.Context, db *mongo.Database) (*SubscriptionsRepo, error) {
	collection := db.Collection("subscriptions")

	err := ensureIndexes(ctx, collection, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "end_date", Value: 1}},
		},
	})
	if err != nil {
		return nil, err
	}

	return &SubscriptionsRepo{collection: collection}, nil
}

func translateSubscriptionNotFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return subscription.ErrNotFound
	}
	return err
}

// Create inserts sub. A user can hold only one subscription.
func (r *SubscriptionsRepo) Create(ctx context.Context, sub *subscription.Subscription) error {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	if _, err := r.collection.InsertOne(ctx, sub); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrSubscriptionExists
		}
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

// FindByUserID returns the subscription owned by userID.
func (r *SubscriptionsRepo) FindByUserID(ctx context.Context, userID bson.ObjectID) (*subscription.Subscription, error) {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	var sub subscription.Subscription
	if err := r.collection.FindOne(ctx, bson.M{"user": userID}).Decode(&sub); err != nil {
		return nil, translateSubscriptionNotFound(err)
	}
	return &sub, nil
}

// Save replaces the stored subscription with sub.
func (r *SubscriptionsRepo) Save(ctx context.Context, sub *subscription.Subscription) error {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": sub.ID}, sub)
	if err != nil {
		return fmt.Errorf("save subscription: %w", err)
	}
	if res.MatchedCount == 0 {
		return subscription.ErrNotFound
	}
	return nil
}

// IncrementUsage zeroes usage from an earlier period, then applies deltas.
func (r *SubscriptionsRepo) IncrementUsage(ctx context.Context, userID bson.ObjectID, deltas map[string]int64, periodStart time.Time) error {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	stale := olderThan("usage.period_start", periodStart)
	stale["user"] = userID
	if _, err := r.collection.UpdateOne(ctx, stale, bson.M{
		"$set": bson.M{"usage": subscription.Usage{PeriodStart: periodStart}},
	}); err != nil {
		return fmt.Errorf("reset subscription usage: %w", err)
	}

	if len(deltas) == 0 {
		return nil
	}

	inc := bson.M{}
	for field, delta := range deltas {
		inc[field] = delta
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"user": userID}, bson.M{"$inc": inc})
	if err != nil {
		return fmt.Errorf("increment subscription usage: %w", err)
	}
	if res.MatchedCount == 0 {
		return subscription.ErrNotFound
	}
	return nil
}

// ExpireLapsed flips running subscriptions whose end_date is before now to inactive.
// Each document is updated on its own so a concurrent plan change is never overwritten.
func (r *SubscriptionsRepo) ExpireLapsed(ctx context.Context, now time.Time) ([]*subscription.Subscription, error) {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	filter := bson.M{
		"end_date": bson.M{"$lt": now},
		"status":   bson.M{"$in": runningStatuses},
	}

	cur, err := r.collection.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("find lapsed subscriptions: %w", err)
	}
	var ids []struct {
		ID bson.ObjectID `bson:"_id"`
	}
	if err := cur.All(ctx, &ids); err != nil {
		return nil, fmt.Errorf("decode lapsed subscriptions: %w", err)
	}

	update := bson.M{"$set": bson.M{
		"status":     subscription.StatusInactive,
		"is_active":  false,
		"updated_at": now,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	expired := make([]*subscription.Subscription, 0, len(ids))
	for _, doc := range ids {
		one := bson.M{"_id": doc.ID}
		for k, v := range filter {
			one[k] = v
		}

		var sub subscription.Subscription
		err := r.collection.FindOneAndUpdate(ctx, one, update, opts).Decode(&sub)
		if errors.Is(err, mongo.ErrNoDocuments) {
			continue
		}
		if err != nil {
			return expired, fmt.Errorf("expire subscription %s: %w", doc.ID.Hex(), err)
		}
		expired = append(expired, &sub)
	}
	return expired, nil
}
