package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"infinitiflow/internal/services/events"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Service manages plan changes, cancellation and expiry.
type Service struct {
	repo   Repo
	users  UserSummaries
	events events.Publisher
	log    *slog.Logger
	now    func() time.Time
}

// NewService creates a new subscription service
func NewService(repo Repo, users UserSummaries, pub events.Publisher, log *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		users:  users,
		events: pub,
		log:    log,
		now:    time.Now,
	}
}

// ChangePlanRequest selects a new tier.
type ChangePlanRequest struct {
	Plan string `json:"plan" validate:"required,oneof=free basic premium enterprise" example:"premium"`
}

// CancelRequest carries an optional cancellation reason.
type CancelRequest struct {
	Reason string `json:"reason" validate:"max=500" example:"Too expensive"`
}

// Open creates the free subscription every new account starts with.
func (s *Service) Open(ctx context.Context, userID bson.ObjectID) (*Subscription, error) {
	sub := New(userID, s.now().UTC())
	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// ForUser loads the caller's subscription, expiring it first if its end date has passed.
func (s *Service) ForUser(ctx context.Context, userID bson.ObjectID) (*Subscription, error) {
	sub, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub.Refresh(s.now().UTC()) {
		if err := s.persist(ctx, sub); err != nil {
			return nil, err
		}
	}
	return sub, nil
}

// ChangePlan moves the caller to another tier and reactivates the subscription.
// Billing happens elsewhere; this only records the entitlement change.
func (s *Service) ChangePlan(ctx context.Context, userID bson.ObjectID, req ChangePlanRequest) (*Subscription, error) {
	plan := Plan(req.Plan)
	if !plan.Valid() {
		return nil, ErrInvalidPlan
	}

	sub, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	sub.ApplyPlan(plan, now)
	sub.Status = StatusActive
	sub.IsActive = true
	sub.CancelledAt = nil
	sub.CancellationReason = ""
	if sub.EndDate != nil && !sub.EndDate.After(now) {
		sub.EndDate = nil
	}

	if err := s.persist(ctx, sub); err != nil {
		return nil, err
	}
	s.log.Info("subscription plan changed", "user_id", userID.Hex(), "plan", plan)
	return sub, nil
}

// Cancel stops the caller's subscription.
func (s *Service) Cancel(ctx context.Context, userID bson.ObjectID, req CancelRequest) (*Subscription, error) {
	sub, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := sub.Cancel(req.Reason, s.now().UTC()); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, sub); err != nil {
		return nil, err
	}
	s.log.Info("subscription cancelled", "user_id", userID.Hex(), "plan", sub.Plan)
	return sub, nil
}

// Reactivate resumes a cancelled or lapsed subscription on its current plan.
func (s *Service) Reactivate(ctx context.Context, userID bson.ObjectID) (*Subscription, error) {
	sub, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := sub.Reactivate(s.now().UTC()); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// RecordUsage adds amount to the subscription counter for kind.
func (s *Service) RecordUsage(ctx context.Context, userID bson.ObjectID, kind UsageKind, amount int64) error {
	field, ok := UsageField(kind)
	if !ok || amount <= 0 {
		return nil
	}
	now := s.now().UTC()
	return s.repo.IncrementUsage(ctx, userID, map[string]int64{field: amount}, PeriodStart(now))
}

// ExpireLapsed deactivates every subscription past its end date and mirrors the
// change onto the owning users. It returns how many subscriptions were expired.
func (s *Service) ExpireLapsed(ctx context.Context) (int, error) {
	expired, err := s.repo.ExpireLapsed(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("expire lapsed subscriptions: %w", err)
	}

	var errs []error
	for _, sub := range expired {
		if err := s.users.UpdateSubscriptionSummary(ctx, sub.UserID, sub.Summary()); err != nil {
			errs = append(errs, fmt.Errorf("user %s: %w", sub.UserID.Hex(), err))
			continue
		}
		s.publish(sub)
	}
	return len(expired), errors.Join(errs...)
}

func (s *Service) persist(ctx context.Context, sub *Subscription) error {
	if err := s.repo.Save(ctx, sub); err != nil {
		return err
	}
	if err := s.users.UpdateSubscriptionSummary(ctx, sub.UserID, sub.Summary()); err != nil {
		return fmt.Errorf("update user summary: %w", err)
	}
	s.publish(sub)
	return nil
}

func (s *Service) publish(sub *Subscription) {
	if s.events == nil {
		return
	}
	s.events.Publish(sub.UserID.Hex(), events.Event{
		Type: events.TypeSubscriptionUpdated,
		At:   s.now().UTC(),
		Data: sub.Summary(),
	})
}
