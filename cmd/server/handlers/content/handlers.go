package content

import (
	"context"

	"infinitiflow/cmd/server/ctxkeys"
	"infinitiflow/cmd/server/handlers/handlerutil"
	"infinitiflow/cmd/server/handlers/httperr"
	"infinitiflow/internal/services/auth"
	"infinitiflow/internal/services/content"
	"infinitiflow/internal/services/resource"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// ContentService defines the interface for the content service
type ContentService interface {
	Create(ctx context.Context, user *auth.User, req content.CreateContentRequest) (*content.Content, error)
	Get(ctx context.Context, id bson.ObjectID) (*content.Content, error)
	List(ctx context.Context, userID bson.ObjectID, page resource.Page) (*content.ListContentResponse, error)
	Update(ctx context.Context, id bson.ObjectID, req content.UpdateContentRequest) (*content.Content, error)
	Delete(ctx context.Context, id bson.ObjectID) error
}

// ContentData wraps one item.
type ContentData struct {
	Content *content.Content `json:"content"`
}

// ContentResponse is {status, data:{content}}.
type ContentResponse struct {
	Status string      `json:"status" example:"success"`
	Data   ContentData `json:"data"`
}

// ListResponse is {status, data:{items,totalCount,hasMore}}.
type ListResponse struct {
	Status string                      `json:"status" example:"success"`
	Data   content.ListContentResponse `json:"data"`
}

// Handlers contains the content HTTP handlers
type Handlers struct {
	service   ContentService
	validator *validator.Validate
}

// NewHandlers creates new content handlers
func NewHandlers(service ContentService, validator *validator.Validate) *Handlers {
	return &Handlers{service: service, validator: validator}
}

func owned(c *fiber.Ctx) (*content.Content, error) {
	doc, ok := c.Locals(ctxkeys.ResourceKey).(*content.Content)
	if !ok {
		return nil, httperr.Fail(httperr.ErrNotFound)
	}
	return doc, nil
}

// Create generates a new piece of content
// @Summary Create content
// @Description Counts against the monthly content and word quotas.
// @Tags content
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body content.CreateContentRequest true "Content request"
// @Success 201 {object} ContentResponse
// @Failure 400 {object} httperr.Body
// @Failure 403 {object} httperr.Body
// @Failure 429 {object} httperr.Body
// @Router /content [post]
func (h *Handlers) Create(c *fiber.Ctx) error {
	user, err := handlerutil.CurrentUser(c)
	if err != nil {
		return err
	}

	var req content.CreateContentRequest
	if err := handlerutil.ParseAndValidateBody(c, &req, h.validator, "CreateContent"); err != nil {
		return err
	}

	item, err := h.service.Create(c.UserContext(), user, req)
	if err != nil {
		return handlerutil.HandleServiceError(c, err, "CreateContent")
	}

	return c.Status(fiber.StatusCreated).JSON(ContentResponse{Status: "success", Data: ContentData{Content: item}})
}

// List returns the caller's content, newest first
// @Summary List content
// @Tags content
// @Produce json
// @Security Bearer
// @Param limit query int false "Page size" minimum(1) maximum(100)
// @Param skip query int false "Items to skip" minimum(0)
// @Success 200 {object} ListResponse
// @Failure 400 {object} httperr.Body
// @Router /content [get]
func (h *Handlers) List(c *fiber.Ctx) error {
	user, err := handlerutil.CurrentUser(c)
	if err != nil {
		return err
	}

	var page resource.Page
	if err := handlerutil.ParseAndValidateQuery(c, &page, h.validator, "ListContent"); err != nil {
		return err
	}

	resp, err := h.service.List(c.UserContext(), user.ID, page)
	if err != nil {
		return handlerutil.HandleServiceError(c, err, "ListContent")
	}

	return c.JSON(ListResponse{Status: "success", Data: *resp})
}

// Get returns one item
// @Summary Get content
// @Tags content
// @Produce json
// @Security Bearer
// @Param id path string true "Content ID"
// @Success 200 {object} ContentResponse
// @Failure 403 {object} httperr.Body
// @Failure 404 {object} httperr.Body
// @Router /content/{id} [get]
func (h *Handlers) Get(c *fiber.Ctx) error {
	item, err := owned(c)
	if err != nil {
		return err
	}
	return c.JSON(ContentResponse{Status: "success", Data: ContentData{Content: item}})
}

// Update edits an item
// @Summary Update content
// @Tags content
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path string true "Content ID"
// @Param request body content.UpdateContentRequest true "Fields to change"
// @Success 200 {object} ContentResponse
// @Failure 400 {object} httperr.Body
// @Failure 403 {object} httperr.Body
// @Failure 404 {object} httperr.Body
// @Router /content/{id} [patch]
func (h *Handlers) Update(c *fiber.Ctx) error {
	item, err := owned(c)
	if err != nil {
		return err
	}

	var req content.UpdateContentRequest
	if err := handlerutil.ParseAndValidateBody(c, &req, h.validator, "UpdateContent"); err != nil {
		return err
	}

	updated, err := h.service.Update(c.UserContext(), item.ID, req)
	if err != nil {
		return handlerutil.HandleServiceError(c, err, "UpdateContent")
	}

	return c.JSON(ContentResponse{Status: "success", Data: ContentData{Content: updated}})
}

// Delete removes an item
// @Summary Delete content
// @Tags content
// @Security Bearer
// @Param id path string true "Content ID"
// @Success 204
// @Failure 403 {object} httperr.Body
// @Failure 404 {object} httperr.Body
// @Router /content/{id} [delete]
func (h *Handlers) Delete(c *fiber.Ctx) error {
	item, err := owned(c)
	if err != nil {
		return err
	}

	if err := h.service.Delete(c.UserContext(), item.ID); err != nil {
		return handlerutil.HandleServiceError(c, err, "DeleteContent")
	}

	return c.SendStatus(fiber.StatusNoContent)
}
