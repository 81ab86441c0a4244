package content

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"infinitiflow/internal/services/auth"
	"infinitiflow/internal/services/resource"
	"infinitiflow/internal/services/usage"
	"infinitiflow/internal/utils/sanitize"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// UsageRecorder is the part of usage.Service content creation needs.
type UsageRecorder interface {
	UpdateUsage(ctx context.Context, userID bson.ObjectID, deltas map[string]int64) (*auth.User, error)
	Now() time.Time
}

// Service handles content business logic
type Service struct {
	store resource.Store[Content]
	usage UsageRecorder
	log   *slog.Logger
}

// NewService creates a new content service
func NewService(store resource.Store[Content], usage UsageRecorder, log *slog.Logger) *Service {
	return &Service{
		store: store,
		usage: usage,
		log:   log,
	}
}

// CreateContentRequest represents a content generation request
type CreateContentRequest struct {
	Title      string `json:"title" validate:"required,max=200" example:"Spring launch announcement"`
	Type       string `json:"type" validate:"required,oneof=blog social email ad product other" example:"blog"`
	Prompt     string `json:"prompt" validate:"required,max=2000" example:"Announce our spring product line"`
	Body       string `json:"body" validate:"max=100000"`
	TemplateID string `json:"templateId" validate:"omitempty,mongodb" example:"683cdb8aa96ad71e8e075bd3"`
}

// UpdateContentRequest represents a content update request
type UpdateContentRequest struct {
	Title  *string `json:"title" validate:"omitempty,min=1,max=200" example:"Spring launch, take two"`
	Body   *string `json:"body" validate:"omitempty,max=100000"`
	Status *string `json:"status" validate:"omitempty,oneof=draft published" example:"published"`
}

// ListContentResponse represents a page of content
type ListContentResponse struct {
	Items      []*Content `json:"items"`
	TotalCount int64      `json:"totalCount" example:"12"`
	HasMore    bool       `json:"hasMore" example:"false"`
}

// Create stores a new piece of content for user, refusing once the month's
// content or word quota is used up, and counts it against both.
func (s *Service) Create(ctx context.Context, user *auth.User, req CreateContentRequest) (*Content, error) {
	now := s.usage.Now().UTC()
	if err := usage.Require(user, now, usage.LimitContent, usage.LimitWords); err != nil {
		return nil, err
	}

	body := sanitize.Clean(req.Body)
	prompt := sanitize.Clean(req.Prompt)
	if body == "" {
		body = draftFromPrompt(sanitize.Line(req.Title), prompt)
	}

	c := &Content{
		ID:        bson.NewObjectID(),
		UserID:    user.ID,
		Title:     sanitize.Line(req.Title),
		Type:      req.Type,
		Prompt:    prompt,
		Body:      body,
		WordCount: sanitize.WordCount(body),
		Status:    StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.TemplateID != "" {
		if tid, err := bson.ObjectIDFromHex(req.TemplateID); err == nil {
			c.TemplateID = &tid
		}
	}

	if err := s.store.Insert(ctx, c); err != nil {
		s.log.Error(ErrCreateContent.Error(), "error", err, "user_id", user.ID.Hex())
		return nil, ErrCreateContent
	}

	if _, err := s.usage.UpdateUsage(ctx, user.ID, map[string]int64{
		usage.CounterContentGenerated: 1,
		usage.CounterWordsGenerated:   int64(c.WordCount),
	}); err != nil {
		s.log.Error("failed to record content usage", "error", err, "user_id", user.ID.Hex(), "content_id", c.ID.Hex())
	}

	return c, nil
}

// Get loads one content item. Ownership is checked by the caller.
func (s *Service) Get(ctx context.Context, id bson.ObjectID) (*Content, error) {
	return s.store.Get(ctx, id)
}

// List returns the caller's content, newest first.
func (s *Service) List(ctx context.Context, userID bson.ObjectID, page resource.Page) (*ListContentResponse, error) {
	page = page.Normalize()
	filter := bson.M{"user": userID}

	items, err := s.store.List(ctx, filter, page)
	if err != nil {
		return nil, err
	}
	total, err := s.store.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &ListContentResponse{
		Items:      items,
		TotalCount: total,
		HasMore:    page.Skip+int64(len(items)) < total,
	}, nil
}

// Update edits title, body or status. Edits do not count against quotas.
func (s *Service) Update(ctx context.Context, id bson.ObjectID, req UpdateContentRequest) (*Content, error) {
	set := bson.M{}
	if req.Title != nil {
		set["title"] = sanitize.Line(*req.Title)
	}
	if req.Body != nil {
		body := sanitize.Clean(*req.Body)
		set["body"] = body
		set["word_count"] = sanitize.WordCount(body)
	}
	if req.Status != nil {
		set["status"] = *req.Status
	}
	if len(set) == 0 {
		return nil, ErrNothingToUpdate
	}
	set["updated_at"] = time.Now().UTC()
	return s.store.Update(ctx, id, set)
}

// Delete removes a content item.
func (s *Service) Delete(ctx context.Context, id bson.ObjectID) error {
	return s.store.Delete(ctx, id)
}

// draftFromPrompt stands in for the AI writer, which lives outside this service.
func draftFromPrompt(title, prompt string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", title)
	fmt.Fprintf(&b, "%s\n\n", prompt)
	b.WriteString("This draft was created from your prompt. Edit it to match your voice before publishing.")
	return b.String()
}
