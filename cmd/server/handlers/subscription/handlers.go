package subscription

import (
	"context"
	"time"

	"infinitiflow/cmd/server/handlers/handlerutil"
	"infinitiflow/internal/services/auth"
	"infinitiflow/internal/services/subscription"
	"infinitiflow/internal/services/usage"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// SubscriptionService defines the interface for the subscription service
type SubscriptionService interface {
	ForUser(ctx context.Context, userID bson.ObjectID) (*subscription.Subscription, error)
	ChangePlan(ctx context.Context, userID bson.ObjectID, req subscription.ChangePlanRequest) (*subscription.Subscription, error)
	Cancel(ctx context.Context, userID bson.ObjectID, req subscription.CancelRequest) (*subscription.Subscription, error)
	Reactivate(ctx context.Context, userID bson.ObjectID) (*subscription.Subscription, error)
}

// UsageReporter builds the caller's usage snapshot.
type UsageReporter interface {
	Snapshot(user *auth.User) usage.Snapshot
}

// SubscriptionData wraps a subscription.
type SubscriptionData struct {
	Subscription *subscription.Subscription `json:"subscription"`
}

// SubscriptionResponse is {status, data:{subscription}}.
type SubscriptionResponse struct {
	Status string           `json:"status" example:"success"`
	Data   SubscriptionData `json:"data"`
}

// PlansResponse lists every tier.
type PlansResponse struct {
	Status string                  `json:"status" example:"success"`
	Data   []subscription.PlanInfo `json:"data"`
}

// Billing summarises the invoice history.
type Billing struct {
	Invoices  int   `json:"invoices" example:"3"`
	TotalPaid int64 `json:"totalPaid" example:"8700"`
}

// Analytics is the usage history summary for the current period.
type Analytics struct {
	Plan              subscription.Plan  `json:"plan" example:"premium"`
	PeriodStart       time.Time          `json:"periodStart"`
	DaysInPeriod      int                `json:"daysInPeriod" example:"16"`
	Usage             usage.Snapshot     `json:"usage"`
	SubscriptionUsage subscription.Usage `json:"subscriptionUsage"`
	AvgWordsPerPiece  int64              `json:"avgWordsPerPiece" example:"420"`
	Billing           Billing            `json:"billing"`
}

// AnalyticsResponse is returned by GET /analytics.
type AnalyticsResponse struct {
	Status string    `json:"status" example:"success"`
	Data   Analytics `json:"data"`
}

// Handlers contains the subscription HTTP handlers
type Handlers struct {
	service   SubscriptionService
	usage     UsageReporter
	validator *validator.Validate
	now       func() time.Time
}

// NewHandlers creates new subscription handlers
func NewHandlers(service SubscriptionService, usage UsageReporter, validator *validator.Validate) *Handlers {
	return &Handlers{
		service:   service,
		usage:     usage,
		validator: validator,
		now:       time.Now,
	}
}

func send(c *fiber.Ctx, sub *subscription.Subscription) error {
	return c.JSON(SubscriptionResponse{Status: "success", Data: SubscriptionData{Subscription: sub}})
}

// Plans lists the plan table
// @Summary List plans
// @Tags subscription
// @Produce json
// @Success 200 {object} PlansResponse
// @Router /subscription/plans [get]
func (h *Handlers) Plans(c *fiber.Ctx) error {
	return c.JSON(PlansResponse{Status: "success", Data: subscription.Catalog()})
}

// Get returns the caller's subscription
// @Summary Get subscription
// @Tags subscription
// @Produce json
// @Security Bearer
// @Success 200 {object} SubscriptionResponse
// @Failure 401 {object} httperr.Body
// @Failure 404 {object} httperr.Body
// @Router /subscription [get]
func (h *Handlers) Get(c *fiber.Ctx) error {
	user, err := handlerutil.CurrentUser(c)
	if err != nil {
		return err
	}

	sub, err := h.service.ForUser(c.UserContext(), user.ID)
	if err != nil {
		return handlerutil.HandleServiceError(c, err, "GetSubscription")
	}
	return send(c, sub)
}

// ChangePlan moves the caller to another plan
// @Summary Change plan
// @Description Records the entitlement change only; payment is handled elsewhere.
// @Tags subscription
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body subscription.ChangePlanRequest true "Plan"
// @Success 200 {object} SubscriptionResponse
// @Failure 400 {object} httperr.Body
// @Router /subscription/plan [patch]
func (h *Handlers) ChangePlan(c *fiber.Ctx) error {
	user, err := handlerutil.CurrentUser(c)
	if err != nil {
		return err
	}

	var req subscription.ChangePlanRequest
	if err := handlerutil.ParseAndValidateBody(c, &req, h.validator, "ChangePlan"); err != nil {
		return err
	}

	sub, err := h.service.ChangePlan(c.UserContext(), user.ID, req)
	if err != nil {
		return handlerutil.HandleServiceError(c, err, "ChangePlan")
	}
	return send(c, sub)
}

// Cancel cancels the caller's subscription
// @Summary Cancel subscription
// @Tags subscription
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body subscription.CancelRequest false "Reason"
// @Success 200 {object} SubscriptionResponse
// @Failure 400 {object} httperr.Body
// @Router /subscription/cancel [post]
func (h *Handlers) Cancel(c *fiber.Ctx) error {
	user, err := handlerutil.CurrentUser(c)
	if err != nil {
		return err
	}

	var req subscription.CancelRequest
	if len(c.Body()) > 0 {
		if err := handlerutil.ParseAndValidateBody(c, &req, h.validator, "Cancel"); err != nil {
			return err
		}
	}

	sub, err := h.service.Cancel(c.UserContext(), user.ID, req)
	if err != nil {
		return handlerutil.HandleServiceError(c, err, "Cancel")
	}
	return send(c, sub)
}

// Reactivate restores a cancelled subscription
// @Summary Reactivate subscription
// @Tags subscription
// @Produce json
// @Security Bearer
// @Success 200 {object} SubscriptionResponse
// @Failure 400 {object} httperr.Body
// @Router /subscription/reactivate [post]
func (h *Handlers) Reactivate(c *fiber.Ctx) error {
	user, err := handlerutil.CurrentUser(c)
	if err != nil {
		return err
	}

	sub, err := h.service.Reactivate(c.UserContext(), user.ID)
	if err != nil {
		return handlerutil.HandleServiceError(c, err, "Reactivate")
	}
	return send(c, sub)
}

// Analytics summarises the current period
// @Summary Usage analytics
// @Description Requires the basic plan or higher.
// @Tags subscription
// @Produce json
// @Security Bearer
// @Success 200 {object} AnalyticsResponse
// @Failure 402 {object} httperr.Body
// @Router /subscription/analytics [get]
func (h *Handlers) Analytics(c *fiber.Ctx) error {
	user, err := handlerutil.CurrentUser(c)
	if err != nil {
		return err
	}

	sub, err := h.service.ForUser(c.UserContext(), user.ID)
	if err != nil {
		return handlerutil.HandleServiceError(c, err, "Analytics")
	}

	return c.JSON(AnalyticsResponse{Status: "success", Data: h.analytics(user, sub)})
}

func (h *Handlers) analytics(user *auth.User, sub *subscription.Subscription) Analytics {
	now := h.now().UTC()
	snap := h.usage.Snapshot(user)
	start := subscription.PeriodStart(now)

	a := Analytics{
		Plan:              sub.Plan,
		PeriodStart:       start,
		DaysInPeriod:      int(now.Sub(start).Hours()/24) + 1,
		Usage:             snap,
		SubscriptionUsage: sub.Usage,
	}
	if n := snap.Usage.ContentGenerated; n > 0 {
		a.AvgWordsPerPiece = snap.Usage.WordsGenerated / n
	}
	for _, rec := range sub.BillingHistory {
		a.Billing.Invoices++
		if rec.Status == "paid" {
			a.Billing.TotalPaid += rec.Amount
		}
	}
	return a
}
