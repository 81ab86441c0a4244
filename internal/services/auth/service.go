package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"infinitiflow/internal/config"
	"infinitiflow/internal/services/email"
	"infinitiflow/internal/services/subscription"
	"infinitiflow/internal/services/tokens"
	"infinitiflow/internal/utils/crypto"
	"infinitiflow/internal/utils/sanitize"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Service handles authentication business logic
type Service struct {
	users  UsersRepo
	subs   Subscriptions
	issuer *tokens.Issuer
	mailer email.Sender
	config config.Config
	log    *slog.Logger
	now    func() time.Time
}

// NewService creates a new auth service
func NewService(users UsersRepo, subs Subscriptions, issuer *tokens.Issuer, mailer email.Sender, cfg config.Config, log *slog.Logger) *Service {
	return &Service{
		users:  users,
		subs:   subs,
		issuer: issuer,
		mailer: mailer,
		config: cfg,
		log:    log,
		now:    time.Now,
	}
}

// RegisterRequest represents a user registration request
type RegisterRequest struct {
	FirstName string `json:"firstName" validate:"required,max=50" example:"Ada"`
	LastName  string `json:"lastName" validate:"required,max=50" example:"Lovelace"`
	Email     string `json:"email" validate:"required,email,max=254" example:"ada@example.com"`
	Password  string `json:"password" validate:"required,password" example:"Passw0rd!"`
	Company   string `json:"company" validate:"omitempty,max=100" example:"Analytical Engines Ltd"`
}

// LoginRequest represents a user login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email" example:"ada@example.com"`
	Password string `json:"password" validate:"required" example:"Passw0rd!"`
}

// ChangePasswordRequest replaces the caller's password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required" example:"Passw0rd!"`
	NewPassword     string `json:"newPassword" validate:"required,password,nefield=CurrentPassword" example:"N3wPassw0rd!"`
}

// EmailRequest carries only an address; used by forgot-password and resend-verification.
type EmailRequest struct {
	Email string `json:"email" validate:"required,email" example:"ada@example.com"`
}

// ResetPasswordRequest sets a new password with a reset token from the URL.
type ResetPasswordRequest struct {
	Password string `json:"password" validate:"required,password" example:"N3wPassw0rd!"`
}

// RefreshRequest carries a refresh token; the refreshToken cookie is used when empty.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
}

// UpdateProfileRequest changes profile fields; omitted fields are left alone.
type UpdateProfileRequest struct {
	FirstName *string `json:"firstName" validate:"omitempty,min=1,max=50" example:"Ada"`
	LastName  *string `json:"lastName" validate:"omitempty,min=1,max=50" example:"Byron"`
	Company   *string `json:"company" validate:"omitempty,max=100" example:"Engines Inc"`
}

// SetRoleRequest is the admin request to change a user's role.
type SetRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=user admin moderator" example:"moderator"`
}

// Session is an authenticated user plus a fresh token pair.
type Session struct {
	User         *User
	AccessToken  string
	RefreshToken string
}

// Profile is what GET /me returns.
type Profile struct {
	User         *User                      `json:"user"`
	Subscription *subscription.Subscription `json:"subscription"`
}

// Register creates an account with a free subscription and sends the verification email.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	addr := normalizeEmail(req.Email)

	existing, err := s.users.FindByEmail(ctx, addr)
	switch {
	case err == nil && existing != nil:
		return nil, ErrDuplicate
	case err != nil && !errors.Is(err, ErrNotFound):
		return nil, err
	}

	hash, err := crypto.HashPassword(req.Password, s.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user := &User{
		ID:           bson.NewObjectID(),
		FirstName:    sanitize.Line(req.FirstName),
		LastName:     sanitize.Line(req.LastName),
		Email:        addr,
		Company:      sanitize.Line(req.Company),
		Role:         RoleUser,
		PasswordHash: hash,
		Active:       true,
		Subscription: subscription.NewFreeSummary(now),
		UsageStats:   UsageStats{LastResetDate: now},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	verifyToken, err := user.CreateEmailVerificationToken(now)
	if err != nil {
		return nil, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	if _, err := s.subs.Open(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("open subscription: %w", err)
	}

	if err := s.sendLink(ctx, user, email.TemplateEmailVerification, "/verify-email/", verifyToken); err != nil {
		s.log.Warn("verification email failed, clearing token", "user_id", user.ID.Hex(), "error", err)
		s.clearToken(ctx, user.ID, TokenEmailVerification, user.EmailVerificationToken)
		user.ClearEmailVerification()
	}

	s.log.Info("user registered", "user_id", user.ID.Hex())
	return s.issue(user)
}

// VerifyCredentials checks an email/password pair and maintains the lockout counter.
// A locked account is refused before the password is looked at.
func (s *Service) VerifyCredentials(ctx context.Context, req LoginRequest) (*User, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(req.Email))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if user.IsLocked(now) {
		s.log.Info("login refused, account locked", "user_id", user.ID.Hex(), "lock_until", user.LockUntil)
		return nil, ErrAccountLocked
	}

	if err := crypto.CheckPassword(req.Password, user.PasswordHash); err != nil {
		updated, rerr := s.users.RecordLoginFailure(ctx, user.ID, user.lockExpired(now), MaxLoginAttempts, now.Add(LockDuration))
		switch {
		case rerr != nil:
			s.log.Error("failed to record login failure", "user_id", user.ID.Hex(), "error", rerr)
		case updated.IsLocked(now):
			s.log.Info("account locked after repeated login failures", "user_id", user.ID.Hex(), "attempts", updated.LoginAttempts)
		}
		return nil, ErrInvalidCredentials
	}

	if !user.Active {
		return nil, ErrAccountDeactivated
	}

	if err := s.users.RecordLogin(ctx, user.ID, now); err != nil {
		return nil, err
	}
	user.resetLockout()
	user.LastLoginAt = &now

	return user, nil
}

// Login verifies credentials and issues a session.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	user, err := s.VerifyCredentials(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// ChangePassword replaces the caller's password. Tokens issued before the change stop working.
func (s *Service) ChangePassword(ctx context.Context, userID bson.ObjectID, req ChangePasswordRequest) (*Session, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := crypto.CheckPassword(req.CurrentPassword, user.PasswordHash); err != nil {
		return nil, ErrIncorrectPassword
	}

	hash, err := crypto.HashPassword(req.NewPassword, s.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := s.now().UTC()
	changed := passwordChangedAt(now)
	user, err = s.users.Update(ctx, userID, Changes{PasswordHash: &hash, PasswordChangedAt: &changed, UpdatedAt: now})
	if err != nil {
		return nil, err
	}

	s.log.Info("password changed", "user_id", user.ID.Hex())
	return s.issue(user)
}

// ForgotPassword emails a reset link. Unknown addresses succeed silently.
func (s *Service) ForgotPassword(ctx context.Context, req EmailRequest) error {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(req.Email))
	if errors.Is(err, ErrNotFound) {
		s.log.Debug("password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return err
	}

	plain, err := user.CreatePasswordResetToken(s.now().UTC())
	if err != nil {
		return err
	}
	if err := s.users.SetToken(ctx, user.ID, TokenPasswordReset, user.PasswordResetToken, *user.PasswordResetExpires); err != nil {
		return err
	}

	if err := s.sendLink(ctx, user, email.TemplatePasswordReset, "/reset-password/", plain); err != nil {
		s.log.Warn("password reset email failed, clearing token", "user_id", user.ID.Hex(), "error", err)
		s.clearToken(ctx, user.ID, TokenPasswordReset, user.PasswordResetToken)
		user.ClearPasswordReset()
		return ErrEmailDelivery
	}
	return nil
}

// ResetPassword consumes a reset token and sets a new password. The token is
// matched and removed in the same write, so concurrent resets with one token
// leave exactly one winner.
func (s *Service) ResetPassword(ctx context.Context, token string, req ResetPasswordRequest) (*Session, error) {
	hash, err := crypto.HashPassword(req.Password, s.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user, err := s.users.ConsumeResetToken(ctx, crypto.HashToken(token), now, hash, passwordChangedAt(now))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidOrExpiredToken
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("password reset", "user_id", user.ID.Hex())
	return s.issue(user)
}

// VerifyEmail consumes a verification token and marks the address verified.
func (s *Service) VerifyEmail(ctx context.Context, token string) (*User, error) {
	now := s.now().UTC()
	user, err := s.users.ConsumeVerificationToken(ctx, crypto.HashToken(token), now)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidOrExpiredToken
	}
	if err != nil {
		return nil, err
	}

	if err := s.mailer.Send(ctx, email.Message{
		To:       user.Email,
		Template: email.TemplateWelcome,
		Data:     map[string]any{"name": user.FirstName, "url": s.clientURL("/dashboard")},
	}); err != nil {
		s.log.Warn("welcome email failed", "user_id", user.ID.Hex(), "error", err)
	}

	return user, nil
}

// ResendVerification issues a new verification link. Unknown or already
// verified addresses succeed silently.
func (s *Service) ResendVerification(ctx context.Context, req EmailRequest) error {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(req.Email))
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if user.IsEmailVerified {
		return nil
	}

	plain, err := user.CreateEmailVerificationToken(s.now().UTC())
	if err != nil {
		return err
	}
	if err := s.users.SetToken(ctx, user.ID, TokenEmailVerification, user.EmailVerificationToken, *user.EmailVerificationExpires); err != nil {
		return err
	}

	if err := s.sendLink(ctx, user, email.TemplateEmailVerification, "/verify-email/", plain); err != nil {
		s.log.Warn("verification email failed, clearing token", "user_id", user.ID.Hex(), "error", err)
		s.clearToken(ctx, user.ID, TokenEmailVerification, user.EmailVerificationToken)
		return ErrEmailDelivery
	}
	return nil
}

// RefreshSession exchanges a refresh token for a new token pair.
func (s *Service) RefreshSession(ctx context.Context, raw string) (*Session, error) {
	claims, err := s.issuer.VerifyRefreshToken(raw)
	if err != nil {
		return nil, err
	}

	id, err := bson.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return nil, tokens.ErrInvalidToken
	}

	user, err := s.users.FindByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, tokens.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if !user.Active {
		return nil, ErrAccountDeactivated
	}
	if claims.IssuedAt != nil && user.ChangedPasswordAfter(claims.IssuedAt.Unix()) {
		return nil, ErrPasswordChanged
	}

	return s.issue(user)
}

// UserByID loads a user.
func (s *Service) UserByID(ctx context.Context, id bson.ObjectID) (*User, error) {
	return s.users.FindByID(ctx, id)
}

// Me returns the caller with their subscription.
func (s *Service) Me(ctx context.Context, userID bson.ObjectID) (*Profile, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	sub, err := s.subs.ForUser(ctx, userID)
	if err != nil && !errors.Is(err, subscription.ErrNotFound) {
		return nil, err
	}
	if sub != nil {
		user.Subscription = sub.Summary()
	}
	user.UsageStats = user.UsageStats.Current(s.now())
	return &Profile{User: user, Subscription: sub}, nil
}

// UpdateProfile changes name and company fields.
func (s *Service) UpdateProfile(ctx context.Context, userID bson.ObjectID, req UpdateProfileRequest) (*User, error) {
	return s.users.Update(ctx, userID, Changes{
		FirstName: sanitizedLine(req.FirstName),
		LastName:  sanitizedLine(req.LastName),
		Company:   sanitizedLine(req.Company),
		UpdatedAt: s.now().UTC(),
	})
}

// Deactivate soft-deletes the caller's account.
func (s *Service) Deactivate(ctx context.Context, userID bson.ObjectID) error {
	inactive := false
	if _, err := s.users.Update(ctx, userID, Changes{Active: &inactive, UpdatedAt: s.now().UTC()}); err != nil {
		return err
	}
	s.log.Info("account deactivated", "user_id", userID.Hex())
	return nil
}

// SetRole changes a user's role.
func (s *Service) SetRole(ctx context.Context, userID bson.ObjectID, req SetRoleRequest) (*User, error) {
	role := Role(req.Role)
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	user, err := s.users.Update(ctx, userID, Changes{Role: &role, UpdatedAt: s.now().UTC()})
	if err != nil {
		return nil, err
	}
	s.log.Info("user role changed", "user_id", userID.Hex(), "role", role)
	return user, nil
}

// clearToken withdraws a token whose link could not be delivered.
func (s *Service) clearToken(ctx context.Context, id bson.ObjectID, kind TokenKind, hashed string) {
	if err := s.users.ClearToken(ctx, id, kind, hashed); err != nil {
		s.log.Error("failed to clear one-time token", "user_id", id.Hex(), "error", err)
	}
}

func sanitizedLine(v *string) *string {
	if v == nil {
		return nil
	}
	clean := sanitize.Line(*v)
	return &clean
}

func (s *Service) issue(user *User) (*Session, error) {
	access, refresh, err := s.issuer.Pair(user.ID.Hex())
	if err != nil {
		return nil, err
	}
	return &Session{User: user, AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Service) sendLink(ctx context.Context, user *User, tpl email.Template, path, token string) error {
	return s.mailer.Send(ctx, email.Message{
		To:       user.Email,
		Template: tpl,
		Data: map[string]any{
			"name": user.FirstName,
			"url":  s.clientURL(path + token),
		},
	})
}

func (s *Service) clientURL(path string) string {
	return strings.TrimRight(s.config.ClientURL, "/") + path
}

func normalizeEmail(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
