package admin

import (
	"context"

	"infinitiflow/cmd/server/handlers/handlerutil"
	"infinitiflow/internal/services/auth"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// UsersService defines what the admin endpoints need from the auth service
type UsersService interface {
	Me(ctx context.Context, userID bson.ObjectID) (*auth.Profile, error)
	SetRole(ctx context.Context, userID bson.ObjectID, req auth.SetRoleRequest) (*auth.User, error)
}

// ProfileResponse is {status, data:{user, subscription}}.
type ProfileResponse struct {
	Status string       `json:"status" example:"success"`
	Data   auth.Profile `json:"data"`
}

// Handlers contains the admin HTTP handlers
type Handlers struct {
	users     UsersService
	validator *validator.Validate
}

// NewHandlers creates new admin handlers
func NewHandlers(users UsersService, validator *validator.Validate) *Handlers {
	return &Handlers{users: users, validator: validator}
}

// GetUser returns any user with their subscription
// @Summary Get user
// @Tags admin
// @Produce json
// @Security Bearer
// @Param id path string true "User ID"
// @Success 200 {object} ProfileResponse
// @Failure 403 {object} httperr.Body
// @Failure 404 {object} httperr.Body
// @Router /admin/users/{id} [get]
func (h *Handlers) GetUser(c *fiber.Ctx) error {
	id, err := handlerutil.ObjectIDParam(c, "id")
	if err != nil {
		return err
	}

	profile, err := h.users.Me(c.UserContext(), id)
	if err != nil {
		return handlerutil.HandleServiceError(c, err, "GetUser")
	}
	return c.JSON(ProfileResponse{Status: "success", Data: *profile})
}

// SetRole changes a user's role
// @Summary Set user role
// @Tags admin
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path string true "User ID"
// @Param request body auth.SetRoleRequest true "Role"
// @Success 200 {object} map[string]any
// @Failure 400 {object} httperr.Body
// @Failure 403 {object} httperr.Body
// @Failure 404 {object} httperr.Body
// @Router /admin/users/{id}/role [patch]
func (h *Handlers) SetRole(c *fiber.Ctx) error {
	id, err := handlerutil.ObjectIDParam(c, "id")
	if err != nil {
		return err
	}

	var req auth.SetRoleRequest
	if err := handlerutil.ParseAndValidateBody(c, &req, h.validator, "SetRole"); err != nil {
		return err
	}

	user, err := h.users.SetRole(c.UserContext(), id, req)
	if err != nil {
		return handlerutil.HandleServiceError(c, err, "SetRole")
	}
	return c.JSON(fiber.Map{"status": "success", "data": fiber.Map{"user": user}})
}
