package usage

import (
	"context"
	"log/slog"
	"time"

	"infinitiflow/internal/services/auth"
	"infinitiflow/internal/services/events"
	"infinitiflow/internal/services/subscription"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Counter names accepted by UpdateUsage.
const (
	CounterContentGenerated = "contentGenerated"
	CounterWordsGenerated   = "wordsGenerated"
	CounterTemplatesUsed    = "templatesUsed"
	CounterAPICalls         = "apiCalls"
)

type counter struct {
	userField string
	kind      subscription.UsageKind
}

var counters = map[string]counter{
	CounterContentGenerated: {userField: "usage_stats.content_generated", kind: subscription.UsageContent},
	CounterWordsGenerated:   {userField: "usage_stats.words_generated", kind: subscription.UsageWords},
	CounterTemplatesUsed:    {userField: "usage_stats.templates_used", kind: subscription.UsageTemplates},
	CounterAPICalls:         {userField: "usage_stats.api_calls", kind: subscription.UsageAPICalls},
}

// Store applies counter increments to a user document.
type Store interface {
	// IncrementUsage zeroes counters last reset before periodStart, then adds deltas
	// (keyed by document path) and returns the updated user.
	IncrementUsage(ctx context.Context, id bson.ObjectID, deltas map[string]int64, periodStart time.Time) (*auth.User, error)
}

// SubscriptionCounters mirrors usage onto the subscription document.
type SubscriptionCounters interface {
	RecordUsage(ctx context.Context, userID bson.ObjectID, kind subscription.UsageKind, amount int64) error
}

// Service records usage against users and their subscriptions.
type Service struct {
	users  Store
	subs   SubscriptionCounters
	events events.Publisher
	log    *slog.Logger
	now    func() time.Time
}

// NewService creates a new usage service
func NewService(users Store, subs SubscriptionCounters, pub events.Publisher, log *slog.Logger) *Service {
	return &Service{
		users:  users,
		subs:   subs,
		events: pub,
		log:    log,
		now:    time.Now,
	}
}

// UpdateUsage adds deltas to the caller's counters, resetting them first if the
// month has rolled over. Unknown keys and non-positive deltas are ignored.
func (s *Service) UpdateUsage(ctx context.Context, userID bson.ObjectID, deltas map[string]int64) (*auth.User, error) {
	now := s.now().UTC()

	fields := make(map[string]int64, len(deltas))
	for name, delta := range deltas {
		c, ok := counters[name]
		if !ok || delta <= 0 {
			continue
		}
		fields[c.userField] = delta
	}

	user, err := s.users.IncrementUsage(ctx, userID, fields, subscription.PeriodStart(now))
	if err != nil {
		return nil, err
	}

	// subscription counters are advisory; a failure here must not fail the request
	for name, delta := range deltas {
		c, ok := counters[name]
		if !ok || delta <= 0 {
			continue
		}
		if err := s.RecordSubscriptionUsage(ctx, userID, c.kind, delta); err != nil {
			s.log.Warn("failed to mirror usage onto subscription", "user_id", userID.Hex(), "counter", name, "error", err)
		}
	}

	if s.events != nil {
		s.events.Publish(userID.Hex(), events.Event{
			Type: events.TypeUsageUpdated,
			At:   now,
			Data: NewSnapshot(user, now),
		})
	}
	return user, nil
}

// RecordSubscriptionUsage adds amount to the subscription-side counter for kind.
func (s *Service) RecordSubscriptionUsage(ctx context.Context, userID bson.ObjectID, kind subscription.UsageKind, amount int64) error {
	return s.subs.RecordUsage(ctx, userID, kind, amount)
}

// Snapshot reports the caller's usage against their plan.
func (s *Service) Snapshot(user *auth.User) Snapshot {
	return NewSnapshot(user, s.now())
}

// Now is the service clock, exposed so callers check limits against the same time.
func (s *Service) Now() time.Time {
	return s.now()
}
