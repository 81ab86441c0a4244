package templates

import (
	"context"
	"log/slog"
	"time"

	"infinitiflow/internal/services/auth"
	"infinitiflow/internal/services/resource"
	"infinitiflow/internal/services/subscription"
	"infinitiflow/internal/services/usage"
	"infinitiflow/internal/utils/sanitize"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// UsageRecorder is the part of usage.Service template use needs.
type UsageRecorder interface {
	UpdateUsage(ctx context.Context, userID bson.ObjectID, deltas map[string]int64) (*auth.User, error)
}

// Service handles the template catalog
type Service struct {
	store resource.Store[Template]
	usage UsageRecorder
	log   *slog.Logger
}

// NewService creates a new templates service
func NewService(store resource.Store[Template], usage UsageRecorder, log *slog.Logger) *Service {
	return &Service{
		store: store,
		usage: usage,
		log:   log,
	}
}

// CreateTemplateRequest represents an admin request to add a template
type CreateTemplateRequest struct {
	Name        string `json:"name" validate:"required,max=120" example:"Product launch"`
	Description string `json:"description" validate:"max=500" example:"Announce a new product"`
	Category    string `json:"category" validate:"required,max=60" example:"marketing"`
	Prompt      string `json:"prompt" validate:"required,max=4000" example:"Write a launch post for {{product}}"`
	IsPremium   bool   `json:"isPremium" example:"false"`
}

// UpdateTemplateRequest represents an admin request to edit a template
type UpdateTemplateRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=120"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	Category    *string `json:"category" validate:"omitempty,min=1,max=60"`
	Prompt      *string `json:"prompt" validate:"omitempty,min=1,max=4000"`
	IsPremium   *bool   `json:"isPremium"`
	IsActive    *bool   `json:"isActive"`
}

// ListTemplatesRequest filters the catalog
type ListTemplatesRequest struct {
	Limit    int64  `query:"limit" validate:"omitempty,min=1,max=100" example:"20"`
	Skip     int64  `query:"skip" validate:"omitempty,min=0" example:"0"`
	Category string `query:"category" validate:"omitempty,max=60" example:"marketing"`
}

// ListTemplatesResponse is a page of templates
type ListTemplatesResponse struct {
	Templates  []*Template `json:"templates"`
	TotalCount int64       `json:"totalCount" example:"8"`
	HasMore    bool        `json:"hasMore" example:"false"`
}

func canSeePremium(viewer *auth.User) bool {
	return viewer != nil && viewer.Subscription.CanUseFeature(subscription.FeaturePremiumTemplates)
}

// List returns the active catalog. Prompts of premium templates are withheld unless
// viewer's plan includes premium templates; viewer may be nil.
func (s *Service) List(ctx context.Context, viewer *auth.User, req ListTemplatesRequest) (*ListTemplatesResponse, error) {
	page := resource.Page{Limit: req.Limit, Skip: req.Skip}.Normalize()
	filter := bson.M{"is_active": true}
	if req.Category != "" {
		filter["category"] = req.Category
	}

	items, err := s.store.List(ctx, filter, page)
	if err != nil {
		return nil, err
	}
	total, err := s.store.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	premium := canSeePremium(viewer)
	for _, t := range items {
		if t.IsPremium && !premium {
			t.Prompt = ""
		}
	}

	return &ListTemplatesResponse{
		Templates:  items,
		TotalCount: total,
		HasMore:    page.Skip+int64(len(items)) < total,
	}, nil
}

// Use hands the full template to user and counts it against their usage.
func (s *Service) Use(ctx context.Context, user *auth.User, id bson.ObjectID) (*Template, error) {
	if !user.Subscription.CanUseFeature(subscription.FeatureTemplateAccess) {
		return nil, ErrNoTemplateAccess
	}

	t, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.IsActive {
		return nil, resource.ErrNotFound
	}
	if t.IsPremium && !canSeePremium(user) {
		return nil, ErrPremiumRequired
	}

	if err := s.store.Increment(ctx, id, "usage_count", 1); err != nil {
		s.log.Warn("failed to bump template usage count", "error", err, "template_id", id.Hex())
	} else {
		t.UsageCount++
	}

	if _, err := s.usage.UpdateUsage(ctx, user.ID, map[string]int64{usage.CounterTemplatesUsed: 1}); err != nil {
		s.log.Error("failed to record template usage", "error", err, "user_id", user.ID.Hex(), "template_id", id.Hex())
	}
	return t, nil
}

// Create adds a template to the catalog.
func (s *Service) Create(ctx context.Context, adminID bson.ObjectID, req CreateTemplateRequest) (*Template, error) {
	now := time.Now().UTC()
	t := &Template{
		ID:          bson.NewObjectID(),
		Name:        sanitize.Line(req.Name),
		Description: sanitize.Line(req.Description),
		Category:    sanitize.Line(req.Category),
		Prompt:      sanitize.Clean(req.Prompt),
		IsPremium:   req.IsPremium,
		IsActive:    true,
		CreatedBy:   adminID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Insert(ctx, t); err != nil {
		s.log.Error("failed to create template", "error", err, "admin_id", adminID.Hex())
		return nil, err
	}
	return t, nil
}

// Update edits a template.
func (s *Service) Update(ctx context.Context, id bson.ObjectID, req UpdateTemplateRequest) (*Template, error) {
	set := bson.M{}
	if req.Name != nil {
		set["name"] = sanitize.Line(*req.Name)
	}
	if req.Description != nil {
		set["description"] = sanitize.Line(*req.Description)
	}
	if req.Category != nil {
		set["category"] = sanitize.Line(*req.Category)
	}
	if req.Prompt != nil {
		set["prompt"] = sanitize.Clean(*req.Prompt)
	}
	if req.IsPremium != nil {
		set["is_premium"] = *req.IsPremium
	}
	if req.IsActive != nil {
		set["is_active"] = *req.IsActive
	}
	if len(set) == 0 {
		return nil, ErrNothingToUpdate
	}
	set["updated_at"] = time.Now().UTC()
	return s.store.Update(ctx, id, set)
}

// Get loads one template, active or not. Used for ownership checks.
func (s *Service) Get(ctx context.Context, id bson.ObjectID) (*Template, error) {
	return s.store.Get(ctx, id)
}

// Delete removes a template.
func (s *Service) Delete(ctx context.Context, id bson.ObjectID) error {
	return s.store.Delete(ctx, id)
}
