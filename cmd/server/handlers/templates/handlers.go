package templates

import (
	"context"

	"infinitiflow/cmd/server/ctxkeys"
	"infinitiflow/cmd/server/handlers/handlerutil"
	"infinitiflow/cmd/server/handlers/httperr"
	"infinitiflow/internal/services/auth"
	"infinitiflow/internal/services/templates"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// TemplatesService defines the interface for the templates service
type TemplatesService interface {
	List(ctx context.Context, viewer *auth.User, req templates.ListTemplatesRequest) (*templates.ListTemplatesResponse, error)
	Use(ctx context.Context, user *auth.User, id bson.ObjectID) (*templates.Template, error)
	Create(ctx context.Context, adminID bson.ObjectID, req templates.CreateTemplateRequest) (*templates.Template, error)
	Update(ctx context.Context, id bson.ObjectID, req templates.UpdateTemplateRequest) (*templates.Template, error)
	Delete(ctx context.Context, id bson.ObjectID) error
}

// TemplateData wraps one template.
type TemplateData struct {
	Template *templates.Template `json:"template"`
}

// TemplateResponse is {status, data:{template}}.
type TemplateResponse struct {
	Status string       `json:"status" example:"success"`
	Data   TemplateData `json:"data"`
}

// ListResponse is {status, data:{templates,totalCount,hasMore}}.
type ListResponse struct {
	Status string                          `json:"status" example:"success"`
	Data   templates.ListTemplatesResponse `json:"data"`
}

// Handlers contains the template HTTP handlers
type Handlers struct {
	service   TemplatesService
	validator *validator.Validate
}

// NewHandlers creates new template handlers
func NewHandlers(service TemplatesService, validator *validator.Validate) *Handlers {
	return &Handlers{service: service, validator: validator}
}

func send(c *fiber.Ctx, status int, t *templates.Template) error {
	return c.Status(status).JSON(TemplateResponse{Status: "success", Data: TemplateData{Template: t}})
}

// List returns the active catalog
// @Summary List templates
// @Description Premium prompts are only included for plans with premium templates.
// @Tags templates
// @Produce json
// @Param limit query int false "Page size" minimum(1) maximum(100)
// @Param skip query int false "Items to skip" minimum(0)
// @Param category query string false "Category"
// @Success 200 {object} ListResponse
// @Failure 400 {object} httperr.Body
// @Router /templates [get]
func (h *Handlers) List(c *fiber.Ctx) error {
	var req templates.ListTemplatesRequest
	if err := handlerutil.ParseAndValidateQuery(c, &req, h.validator, "ListTemplates"); err != nil {
		return err
	}

	resp, err := h.service.List(c.UserContext(), handlerutil.OptionalUser(c), req)
	if err != nil {
		return handlerutil.HandleServiceError(c, err, "ListTemplates")
	}

	return c.JSON(ListResponse{Status: "success", Data: *resp})
}

// Use returns the full template and counts it against the caller's usage
// @Summary Use a template
// @Tags templates
// @Produce json
// @Security Bearer
// @Param id path string true "Template ID"
// @Success 200 {object} TemplateResponse
// @Failure 402 {object} httperr.Body
// @Failure 403 {object} httperr.Body
// @Failure 404 {object} httperr.Body
// @Router /templates/{id}/use [post]
func (h *Handlers) Use(c *fiber.Ctx) error {
	user, err := handlerutil.CurrentUser(c)
	if err != nil {
		return err
	}

	id, err := handlerutil.ObjectIDParam(c, "id")
	if err != nil {
		return err
	}

	t, err := h.service.Use(c.UserContext(), user, id)
	if err != nil {
		return handlerutil.HandleServiceError(c, err, "UseTemplate")
	}
	return send(c, fiber.StatusOK, t)
}

// Create adds a template
// @Summary Create template
// @Tags templates
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body templates.CreateTemplateRequest true "Template"
// @Success 201 {object} TemplateResponse
// @Failure 400 {object} httperr.Body
// @Failure 403 {object} httperr.Body
// @Router /templates [post]
func (h *Handlers) Create(c *fiber.Ctx) error {
	user, err := handlerutil.CurrentUser(c)
	if err != nil {
		return err
	}

	var req templates.CreateTemplateRequest
	if err := handlerutil.ParseAndValidateBody(c, &req, h.validator, "CreateTemplate"); err != nil {
		return err
	}

	t, err := h.service.Create(c.UserContext(), user.ID, req)
	if err != nil {
		return handlerutil.HandleServiceError(c, err, "CreateTemplate")
	}
	return send(c, fiber.StatusCreated, t)
}

// Update edits a template
// @Summary Update template
// @Tags templates
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path string true "Template ID"
// @Param request body templates.UpdateTemplateRequest true "Fields to change"
// @Success 200 {object} TemplateResponse
// @Failure 400 {object} httperr.Body
// @Failure 403 {object} httperr.Body
// @Failure 404 {object} httperr.Body
// @Router /templates/{id} [patch]
func (h *Handlers) Update(c *fiber.Ctx) error {
	t, ok := c.Locals(ctxkeys.ResourceKey).(*templates.Template)
	if !ok {
		return httperr.Fail(httperr.ErrNotFound)
	}

	var req templates.UpdateTemplateRequest
	if err := handlerutil.ParseAndValidateBody(c, &req, h.validator, "UpdateTemplate"); err != nil {
		return err
	}

	updated, err := h.service.Update(c.UserContext(), t.ID, req)
	if err != nil {
		return handlerutil.HandleServiceError(c, err, "UpdateTemplate")
	}
	return send(c, fiber.StatusOK, updated)
}

// Delete removes a template
// @Summary Delete template
// @Tags templates
// @Security Bearer
// @Param id path string true "Template ID"
// @Success 204
// @Failure 403 {object} httperr.Body
// @Failure 404 {object} httperr.Body
// @Router /templates/{id} [delete]
func (h *Handlers) Delete(c *fiber.Ctx) error {
	t, ok := c.Locals(ctxkeys.ResourceKey).(*templates.Template)
	if !ok {
		return httperr.Fail(httperr.ErrNotFound)
	}

	if err := h.service.Delete(c.UserContext(), t.ID); err != nil {
		return handlerutil.HandleServiceError(c, err, "DeleteTemplate")
	}
	return c.SendStatus(fiber.StatusNoContent)
}
