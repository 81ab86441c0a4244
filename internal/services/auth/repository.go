package auth

import (
	"context"
	"time"

	"infinitiflow/internal/services/subscription"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// TokenKind names one of the one-time tokens a user can hold.
type TokenKind int

const (
	TokenPasswordReset TokenKind = iota
	TokenEmailVerification
)

// Changes lists the fields an Update writes. Nil fields are left as stored.
type Changes struct {
	FirstName         *string
	LastName          *string
	Company           *string
	Role              *Role
	Active            *bool
	PasswordHash      *string
	PasswordChangedAt *time.Time
	UpdatedAt         time.Time
}

// UsersRepo persists users. Lookups return ErrNotFound when nothing matches,
// Create returns ErrDuplicate on an email collision.
type UsersRepo interface {
	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id bson.ObjectID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	// Update writes only the fields set in ch and returns the stored user.
	Update(ctx context.Context, id bson.ObjectID, ch Changes) (*User, error)
	// SetToken stores the hash of a one-time token, replacing any earlier one of that kind.
	SetToken(ctx context.Context, id bson.ObjectID, kind TokenKind, hashed string, expires time.Time) error
	// ClearToken removes the token of that kind if it still equals hashed.
	ClearToken(ctx context.Context, id bson.ObjectID, kind TokenKind, hashed string) error
	// ConsumeResetToken matches a hashed reset token whose expiry is after now and,
	// in the same write, removes it, stores passwordHash and clears lockout state.
	// Only one caller can consume a given token.
	ConsumeResetToken(ctx context.Context, hashed string, now time.Time, passwordHash string, changedAt time.Time) (*User, error)
	// ConsumeVerificationToken matches a hashed verification token whose expiry is
	// after now, removes it and marks the email verified in one write.
	ConsumeVerificationToken(ctx context.Context, hashed string, now time.Time) (*User, error)
	// RecordLoginFailure atomically bumps the failure counter (restarting at 1 when
	// restart is set) and sets lockUntil once the counter reaches maxAttempts.
	RecordLoginFailure(ctx context.Context, id bson.ObjectID, restart bool, maxAttempts int, lockUntil time.Time) (*User, error)
	// RecordLogin clears lockout state and stamps lastLoginAt.
	RecordLogin(ctx context.Context, id bson.ObjectID, at time.Time) error
}

// Subscriptions is the slice of the subscription service that account flows need.
type Subscriptions interface {
	Open(ctx context.Context, userID bson.ObjectID) (*subscription.Subscription, error)
	ForUser(ctx context.Context, userID bson.ObjectID) (*subscription.Subscription, error)
}
