package auth

import (
	"context"
	"time"

	"infinitiflow/cmd/server/handlers/handlerutil"
	"infinitiflow/cmd/server/handlers/httperr"
	"infinitiflow/internal/config"
	"infinitiflow/internal/logger"
	"infinitiflow/internal/services/auth"
	"infinitiflow/internal/services/usage"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/v2/bson"
)

const (
	accessCookie  = "jwt"
	refreshCookie = "refreshToken"

	msgResetSent        = "If an account with that email exists, a password reset link has been sent."
	msgVerificationSent = "If an unverified account with that email exists, a verification link has been sent."
)

// AuthService defines the interface for auth service
type AuthService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.Session, error)
	Login(ctx context.Context, req auth.LoginRequest) (*auth.Session, error)
	ChangePassword(ctx context.Context, userID bson.ObjectID, req auth.ChangePasswordRequest) (*auth.Session, error)
	ForgotPassword(ctx context.Context, req auth.EmailRequest) error
	ResetPassword(ctx context.Context, token string, req auth.ResetPasswordRequest) (*auth.Session, error)
	VerifyEmail(ctx context.Context, token string) (*auth.User, error)
	ResendVerification(ctx context.Context, req auth.EmailRequest) error
	RefreshSession(ctx context.Context, raw string) (*auth.Session, error)
	Me(ctx context.Context, userID bson.ObjectID) (*auth.Profile, error)
	UpdateProfile(ctx context.Context, userID bson.ObjectID, req auth.UpdateProfileRequest) (*auth.User, error)
	Deactivate(ctx context.Context, userID bson.ObjectID) error
}

// UsageReporter builds the caller's usage snapshot.
type UsageReporter interface {
	Snapshot(user *auth.User) usage.Snapshot
}

// EventRecorder counts authentication outcomes.
type EventRecorder interface {
	AuthEvent(event, outcome string)
}

// SessionResponse is returned by every endpoint that issues tokens.
type SessionResponse struct {
	Status       string   `json:"status" example:"success"`
	Token        string   `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	RefreshToken string   `json:"refreshToken" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	Data         UserData `json:"data"`
}

// UserData wraps a user.
type UserData struct {
	User *auth.User `json:"user"`
}

// UserResponse is {status, data:{user}}.
type UserResponse struct {
	Status string   `json:"status" example:"success"`
	Data   UserData `json:"data"`
}

// ProfileResponse is returned by GET /me.
type ProfileResponse struct {
	Status string       `json:"status" example:"success"`
	Data   auth.Profile `json:"data"`
}

// MessageResponse carries only a message.
type MessageResponse struct {
	Status  string `json:"status" example:"success"`
	Message string `json:"message" example:"Logged out successfully."`
}

// UsageResponse is returned by GET /usage.
type UsageResponse struct {
	Status string         `json:"status" example:"success"`
	Data   usage.Snapshot `json:"data"`
}

// Handlers contains the auth HTTP handlers
type Handlers struct {
	authService AuthService
	usage       UsageReporter
	events      EventRecorder
	validator   *validator.Validate
	config      config.Config
}

// NewHandlers creates new auth handlers
func NewHandlers(authService AuthService, usage UsageReporter, events EventRecorder, validator *validator.Validate, cfg config.Config) *Handlers {
	return &Handlers{
		authService: authService,
		usage:       usage,
		events:      events,
		validator:   validator,
		config:      cfg,
	}
}

func (h *Handlers) record(event, outcome string) {
	if h.events != nil {
		h.events.AuthEvent(event, outcome)
	}
}

func (h *Handlers) setCookie(c *fiber.Ctx, name, value string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   h.config.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (h *Handlers) sendSession(c *fiber.Ctx, status int, s *auth.Session) error {
	expires := time.Now().Add(h.config.CookieTTL())
	h.setCookie(c, accessCookie, s.AccessToken, expires)
	h.setCookie(c, refreshCookie, s.RefreshToken, expires)

	return c.Status(status).JSON(SessionResponse{
		Status:       "success",
		Token:        s.AccessToken,
		RefreshToken: s.RefreshToken,
		Data:         UserData{User: s.User},
	})
}

func outcome(err error) string {
	if e, ok := httperr.FromDomain(err); ok {
		switch e.Status {
		case 401:
			return "unauthorized"
		case 409:
			return "conflict"
		case 423:
			return "locked"
		}
	}
	return "error"
}

// Register handles user registration
// @Summary Register a new user
// @Description Creates the account with a free subscription and sends a verification email.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body auth.RegisterRequest true "Registration request"
// @Success 201 {object} SessionResponse
// @Failure 400 {object} httperr.Body
// @Failure 409 {object} httperr.Body
// @Failure 429 {object} httperr.Body
// @Router /auth/register [post]
func (h *Handlers) Register(c *fiber.Ctx) error {
	var req auth.RegisterRequest
	if err := handlerutil.ParseAndValidateBody(c, &req, h.validator, "Register"); err != nil {
		return err
	}

	session, err := h.authService.Register(c.UserContext(), req)
	if err != nil {
		h.record("register", outcome(err))
		return handlerutil.HandleServiceError(c, err, "Register")
	}

	h.record("register", "success")
	return h.sendSession(c, fiber.StatusCreated, session)
}

// Login handles user authentication
// @Summary Authenticate a user
// @Description Five failed attempts lock the account for two hours.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body auth.LoginRequest true "Login request"
// @Success 200 {object} SessionResponse
// @Failure 400 {object} httperr.Body
// @Failure 401 {object} httperr.Body
// @Failure 423 {object} httperr.Body
// @Failure 429 {object} httperr.Body
// @Router /auth/login [post]
func (h *Handlers) Login(c *fiber.Ctx) error {
	var req auth.LoginRequest
	if err := handlerutil.ParseAndValidateBody(c, &req, h.validator, "Login"); err != nil {
		return err
	}

	session, err := h.authService.Login(c.UserContext(), req)
	if err != nil {
		h.record("login", outcome(err))
		return handlerutil.HandleServiceError(c, err, "Login")
	}

	h.record("login", "success")
	return h.sendSession(c, fiber.StatusOK, session)
}

// Logout expires the auth cookies
// @Summary Log out
// @Tags auth
// @Produce json
// @Success 200 {object} MessageResponse
// @Router /auth/logout [post]
func (h *Handlers) Logout(c *fiber.Ctx) error {
	past := time.Now().Add(-time.Hour)
	h.setCookie(c, accessCookie, "loggedout", past)
	h.setCookie(c, refreshCookie, "", past)

	return c.JSON(MessageResponse{Status: "success", Message: "Logged out successfully."})
}

// ForgotPassword emails a reset link
// @Summary Request a password reset
// @Description Always answers with the same message whether or not the address is known.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body auth.EmailRequest true "Email"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} httperr.Body
// @Failure 500 {object} httperr.Body
// @Router /auth/forgot-password [post]
func (h *Handlers) ForgotPassword(c *fiber.Ctx) error {
	var req auth.EmailRequest
	if err := handlerutil.ParseAndValidateBody(c, &req, h.validator, "ForgotPassword"); err != nil {
		return err
	}

	if err := h.authService.ForgotPassword(c.UserContext(), req); err != nil {
		return handlerutil.HandleServiceError(c, err, "ForgotPassword")
	}

	return c.JSON(MessageResponse{Status: "success", Message: msgResetSent})
}

// ResetPassword sets a new password using a reset token
// @Summary Reset password
// @Tags auth
// @Accept json
// @Produce json
// @Param token path string true "Reset token"
// @Param request body auth.ResetPasswordRequest true "New password"
// @Success 200 {object} SessionResponse
// @Failure 400 {object} httperr.Body
// @Router /auth/reset-password/{token} [patch]
func (h *Handlers) ResetPassword(c *fiber.Ctx) error {
	var req auth.ResetPasswordRequest
	if err := handlerutil.ParseAndValidateBody(c, &req, h.validator, "ResetPassword"); err != nil {
		return err
	}

	session, err := h.authService.ResetPassword(c.UserContext(), c.Params("token"), req)
	if err != nil {
		h.record("reset_password", outcome(err))
		return handlerutil.HandleServiceError(c, err, "ResetPassword")
	}

	h.record("reset_password", "success")
	return h.sendSession(c, fiber.StatusOK, session)
}

// VerifyEmail marks the address verified
// @Summary Verify email address
// @Tags auth
// @Produce json
// @Param token path string true "Verification token"
// @Success 200 {object} UserResponse
// @Failure 400 {object} httperr.Body
// @Router /auth/verify-email/{token} [patch]
func (h *Handlers) VerifyEmail(c *fiber.Ctx) error {
	user, err := h.authService.VerifyEmail(c.UserContext(), c.Params("token"))
	if err != nil {
		return handlerutil.HandleServiceError(c, err, "VerifyEmail")
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "Email verified successfully.",
		"data":    UserData{User: user},
	})
}

// ResendVerification sends a new verification link
// @Summary Resend verification email
// @Tags auth
// @Accept json
// @Produce json
// @Param request body auth.EmailRequest true "Email"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} httperr.Body
// @Failure 500 {object} httperr.Body
// @Router /auth/resend-verification [post]
func (h *Handlers) ResendVerification(c *fiber.Ctx) error {
	var req auth.EmailRequest
	if err := handlerutil.ParseAndValidateBody(c, &req, h.validator, "ResendVerification"); err != nil {
		return err
	}

	if err := h.authService.ResendVerification(c.UserContext(), req); err != nil {
		return handlerutil.HandleServiceError(c, err, "ResendVerification")
	}

	return c.JSON(MessageResponse{Status: "success", Message: msgVerificationSent})
}

// RefreshToken exchanges a refresh token for a new pair
// @Summary Refresh tokens
// @Description The token is read from the body, or from the refreshToken cookie when the body has none.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body auth.RefreshRequest false "Refresh token"
// @Success 200 {object} SessionResponse
// @Failure 401 {object} httperr.Body
// @Router /auth/refresh-token [post]
func (h *Handlers) RefreshToken(c *fiber.Ctx) error {
	var req auth.RefreshRequest
	if len(c.Body()) > 0 {
		if err := handlerutil.ParseAndValidateBody(c, &req, h.validator, "RefreshToken"); err != nil {
			return err
		}
	}

	raw := req.RefreshToken
	if raw == "" {
		raw = c.Cookies(refreshCookie)
	}
	if raw == "" {
		logger.L().Info("refresh requested without token", "handler", "RefreshToken", "ip", c.IP())
		return httperr.Fail(httperr.E{Status: 401, Message: "Refresh token is required."})
	}

	session, err := h.authService.RefreshSession(c.UserContext(), raw)
	if err != nil {
		h.record("refresh", outcome(err))
		return handlerutil.HandleServiceError(c, err, "RefreshToken")
	}

	h.record("refresh", "success")
	return h.sendSession(c, fiber.StatusOK, session)
}

// Me returns the caller and their subscription
// @Summary Get current user
// @Tags auth
// @Produce json
// @Security Bearer
// @Success 200 {object} ProfileResponse
// @Failure 401 {object} httperr.Body
// @Router /auth/me [get]
func (h *Handlers) Me(c *fiber.Ctx) error {
	user, err := handlerutil.CurrentUser(c)
	if err != nil {
		return err
	}

	profile, err := h.authService.Me(c.UserContext(), user.ID)
	if err != nil {
		return handlerutil.HandleServiceError(c, err, "Me")
	}

	return c.JSON(ProfileResponse{Status: "success", Data: *profile})
}

// ChangePassword replaces the caller's password
// @Summary Change password
// @Description Tokens issued before the change stop working; a fresh pair is returned.
// @Tags auth
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body auth.ChangePasswordRequest true "Passwords"
// @Success 200 {object} SessionResponse
// @Failure 400 {object} httperr.Body
// @Failure 401 {object} httperr.Body
// @Router /auth/change-password [patch]
func (h *Handlers) ChangePassword(c *fiber.Ctx) error {
	user, err := handlerutil.CurrentUser(c)
	if err != nil {
		return err
	}

	var req auth.ChangePasswordRequest
	if err := handlerutil.ParseAndValidateBody(c, &req, h.validator, "ChangePassword"); err != nil {
		return err
	}

	session, err := h.authService.ChangePassword(c.UserContext(), user.ID, req)
	if err != nil {
		h.record("change_password", outcome(err))
		return handlerutil.HandleServiceError(c, err, "ChangePassword")
	}

	h.record("change_password", "success")
	return h.sendSession(c, fiber.StatusOK, session)
}

// UpdateMe changes the caller's profile fields
// @Summary Update profile
// @Tags auth
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body auth.UpdateProfileRequest true "Profile fields"
// @Success 200 {object} UserResponse
// @Failure 400 {object} httperr.Body
// @Router /auth/update-me [patch]
func (h *Handlers) UpdateMe(c *fiber.Ctx) error {
	user, err := handlerutil.CurrentUser(c)
	if err != nil {
		return err
	}

	var req auth.UpdateProfileRequest
	if err := handlerutil.ParseAndValidateBody(c, &req, h.validator, "UpdateMe"); err != nil {
		return err
	}

	updated, err := h.authService.UpdateProfile(c.UserContext(), user.ID, req)
	if err != nil {
		return handlerutil.HandleServiceError(c, err, "UpdateMe")
	}

	return c.JSON(UserResponse{Status: "success", Data: UserData{User: updated}})
}

// DeleteMe deactivates the caller's account
// @Summary Deactivate account
// @Tags auth
// @Security Bearer
// @Success 204
// @Failure 401 {object} httperr.Body
// @Router /auth/delete-me [delete]
func (h *Handlers) DeleteMe(c *fiber.Ctx) error {
	user, err := handlerutil.CurrentUser(c)
	if err != nil {
		return err
	}

	if err := h.authService.Deactivate(c.UserContext(), user.ID); err != nil {
		return handlerutil.HandleServiceError(c, err, "DeleteMe")
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// Usage returns the caller's usage against their plan
// @Summary Current usage
// @Tags auth
// @Produce json
// @Security Bearer
// @Success 200 {object} UsageResponse
// @Failure 401 {object} httperr.Body
// @Router /auth/usage [get]
func (h *Handlers) Usage(c *fiber.Ctx) error {
	user, err := handlerutil.CurrentUser(c)
	if err != nil {
		return err
	}

	return c.JSON(UsageResponse{Status: "success", Data: h.usage.Snapshot(user)})
}
