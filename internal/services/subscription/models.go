package subscription

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Status is the lifecycle state of a subscription.
type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusCancelled Status = "cancelled"
	StatusPastDue   Status = "past_due"
	StatusTrialing  Status = "trialing"
)

// UsageKind names a per-period counter on the subscription.
type UsageKind string

const (
	UsageContent       UsageKind = "content"
	UsageWords         UsageKind = "words"
	UsageAPICalls      UsageKind = "apiCalls"
	UsageTemplates     UsageKind = "templates"
	UsageCollaborators UsageKind = "collaborators"
)

var usageFields = map[UsageKind]string{
	UsageContent:       "usage.content_generated",
	UsageWords:         "usage.words_generated",
	UsageAPICalls:      "usage.api_calls",
	UsageTemplates:     "usage.templates_used",
	UsageCollaborators: "usage.collaborators_active",
}

// UsageField returns the document path of the counter for kind.
func UsageField(kind UsageKind) (string, bool) {
	f, ok := usageFields[kind]
	return f, ok
}

// Usage holds the subscription-side counters. They are advisory and may lag the user's.
type Usage struct {
	ContentGenerated    int64     `bson:"content_generated" json:"contentGenerated"`
	WordsGenerated      int64     `bson:"words_generated" json:"wordsGenerated"`
	APICalls            int64     `bson:"api_calls" json:"apiCalls"`
	TemplatesUsed       int64     `bson:"templates_used" json:"templatesUsed"`
	CollaboratorsActive int64     `bson:"collaborators_active" json:"collaboratorsActive"`
	PeriodStart         time.Time `bson:"period_start" json:"periodStart"`
}

// BillingRecord is one invoice entry. Payments are recorded, never initiated here.
type BillingRecord struct {
	Amount          int64      `bson:"amount" json:"amount" example:"2900"`
	Currency        string     `bson:"currency" json:"currency" example:"usd"`
	Status          string     `bson:"status" json:"status" example:"paid"`
	InvoiceID       string     `bson:"invoice_id,omitempty" json:"invoiceId,omitempty"`
	PaymentIntentID string     `bson:"payment_intent_id,omitempty" json:"paymentIntentId,omitempty"`
	CreatedAt       time.Time  `bson:"created_at" json:"createdAt"`
	PaidAt          *time.Time `bson:"paid_at,omitempty" json:"paidAt,omitempty"`
}

// Subscription is the billing record paired 1:1 with a user.
type Subscription struct {
	ID                   bson.ObjectID   `bson:"_id,omitempty" json:"id" example:"683cdb8aa96ad71e8e075bd1"`
	UserID               bson.ObjectID   `bson:"user" json:"user" example:"683cdb8aa96ad71e8e075bd2"`
	Plan                 Plan            `bson:"plan" json:"plan" example:"free"`
	Status               Status          `bson:"status" json:"status" example:"active"`
	IsActive             bool            `bson:"is_active" json:"isActive"`
	Features             Features        `bson:"features" json:"features"`
	StartDate            time.Time       `bson:"start_date" json:"startDate"`
	EndDate              *time.Time      `bson:"end_date,omitempty" json:"endDate,omitempty"`
	TrialStart           *time.Time      `bson:"trial_start,omitempty" json:"trialStart,omitempty"`
	TrialEnd             *time.Time      `bson:"trial_end,omitempty" json:"trialEnd,omitempty"`
	AutoRenew            bool            `bson:"auto_renew" json:"autoRenew"`
	StripeCustomerID     string          `bson:"stripe_customer_id,omitempty" json:"stripeCustomerId,omitempty"`
	StripeSubscriptionID string          `bson:"stripe_subscription_id,omitempty" json:"stripeSubscriptionId,omitempty"`
	CancelledAt          *time.Time      `bson:"cancelled_at,omitempty" json:"cancelledAt,omitempty"`
	CancellationReason   string          `bson:"cancellation_reason,omitempty" json:"cancellationReason,omitempty"`
	BillingHistory       []BillingRecord `bson:"billing_history" json:"billingHistory"`
	Usage                Usage           `bson:"usage" json:"usage"`
	CreatedAt            time.Time       `bson:"created_at" json:"createdAt"`
	UpdatedAt            time.Time       `bson:"updated_at" json:"updatedAt"`
}

// Summary is the copy of the subscription state embedded in the user document.
type Summary struct {
	Plan                 Plan       `bson:"plan" json:"plan" example:"free"`
	IsActive             bool       `bson:"is_active" json:"isActive"`
	StartDate            time.Time  `bson:"start_date" json:"startDate"`
	EndDate              *time.Time `bson:"end_date,omitempty" json:"endDate,omitempty"`
	StripeCustomerID     string     `bson:"stripe_customer_id,omitempty" json:"stripeCustomerId,omitempty"`
	StripeSubscriptionID string     `bson:"stripe_subscription_id,omitempty" json:"stripeSubscriptionId,omitempty"`
}

// Status is "active" or "inactive", derived from IsActive.
func (s Summary) Status() Status {
	if s.IsActive {
		return StatusActive
	}
	return StatusInactive
}

// CanUseFeature mirrors Subscription.CanUseFeature for the embedded copy.
func (s Summary) CanUseFeature(name string) bool {
	if !s.IsActive {
		return FeaturesFor(PlanFree).Has(name)
	}
	return FeaturesFor(s.Plan).Has(name)
}

// NewFreeSummary is the summary every new account starts with.
func NewFreeSummary(now time.Time) Summary {
	return Summary{Plan: PlanFree, IsActive: true, StartDate: now}
}

// New returns an active free subscription for userID.
func New(userID bson.ObjectID, now time.Time) *Subscription {
	s := &Subscription{
		ID:             bson.NewObjectID(),
		UserID:         userID,
		StartDate:      now,
		AutoRenew:      true,
		BillingHistory: []BillingRecord{},
		Usage:          Usage{PeriodStart: PeriodStart(now)},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.ApplyPlan(PlanFree, now)
	s.Status = StatusActive
	s.IsActive = true
	return s
}

// PeriodStart is the first instant of now's UTC calendar month.
func PeriodStart(now time.Time) time.Time {
	u := now.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// ApplyPlan switches the plan and recomputes the feature set.
func (s *Subscription) ApplyPlan(p Plan, now time.Time) {
	s.Plan = p
	s.Features = FeaturesFor(p)
	s.UpdatedAt = now
}

// CanUseFeature reports whether the named feature is available right now.
// A subscription that is not active only keeps the free tier's features.
func (s *Subscription) CanUseFeature(name string) bool {
	if !s.IsActive {
		return FeaturesFor(PlanFree).Has(name)
	}
	return s.Features.Has(name)
}

// RecordUsage adds amount to the counter for kind. Unknown kinds and
// non-positive amounts are ignored.
func (s *Subscription) RecordUsage(kind UsageKind, amount int64) {
	if amount <= 0 {
		return
	}
	switch kind {
	case UsageContent:
		s.Usage.ContentGenerated += amount
	case UsageWords:
		s.Usage.WordsGenerated += amount
	case UsageAPICalls:
		s.Usage.APICalls += amount
	case UsageTemplates:
		s.Usage.TemplatesUsed += amount
	case UsageCollaborators:
		s.Usage.CollaboratorsActive += amount
	}
}

// Cancel ends the subscription immediately and records why.
func (s *Subscription) Cancel(reason string, now time.Time) error {
	if s.Status == StatusCancelled {
		return ErrAlreadyCancelled
	}
	s.Status = StatusCancelled
	s.IsActive = false
	s.AutoRenew = false
	s.CancelledAt = &now
	s.CancellationReason = reason
	s.UpdatedAt = now
	return nil
}

// Reactivate undoes a cancellation. A lapsed end date is cleared.
func (s *Subscription) Reactivate(now time.Time) error {
	if s.Status != StatusCancelled && s.Status != StatusInactive {
		return ErrNotCancelled
	}
	s.Status = StatusActive
	s.IsActive = true
	s.AutoRenew = true
	s.CancelledAt = nil
	s.CancellationReason = ""
	if s.EndDate != nil && !s.EndDate.After(now) {
		s.EndDate = nil
	}
	s.UpdatedAt = now
	return nil
}

// Refresh moves a running subscription whose end date has passed to inactive.
// It reports whether anything changed.
func (s *Subscription) Refresh(now time.Time) bool {
	if s.EndDate == nil || s.EndDate.After(now) {
		return false
	}
	switch s.Status {
	case StatusActive, StatusTrialing, StatusPastDue:
		s.Status = StatusInactive
		s.IsActive = false
		s.UpdatedAt = now
		return true
	}
	return false
}

// Summary returns the user-embedded view of s.
func (s *Subscription) Summary() Summary {
	return Summary{
		Plan:                 s.Plan,
		IsActive:             s.IsActive,
		StartDate:            s.StartDate,
		EndDate:              s.EndDate,
		StripeCustomerID:     s.StripeCustomerID,
		StripeSubscriptionID: s.StripeSubscriptionID,
	}
}
