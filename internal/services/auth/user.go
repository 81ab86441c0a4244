package auth

import (
	"strings"
	"time"

	"infinitiflow/internal/services/subscription"
	"infinitiflow/internal/utils/crypto"

	"go.mongodb.org/mongo-driver/v2/bson"
)

const (
	// MaxLoginAttempts failed logins lock the account for LockDuration.
	MaxLoginAttempts = 5
	LockDuration     = 2 * time.Hour

	PasswordResetTTL     = 10 * time.Minute
	EmailVerificationTTL = 24 * time.Hour

	// PasswordChangeSkew back-dates passwordChangedAt. Token iat has second
	// resolution, so without it a token minted in the same second as the change
	// (including the one returned by the change itself) would be rejected.
	PasswordChangeSkew = time.Second
)

// Role controls access to admin routes.
type Role string

const (
	RoleUser      Role = "user"
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin || r == RoleModerator
}

// UsageStats are the per-month counters limits are checked against.
type UsageStats struct {
	ContentGenerated int64     `bson:"content_generated" json:"contentGenerated"`
	WordsGenerated   int64     `bson:"words_generated" json:"wordsGenerated"`
	TemplatesUsed    int64     `bson:"templates_used" json:"templatesUsed"`
	APICalls         int64     `bson:"api_calls" json:"apiCalls"`
	LastResetDate    time.Time `bson:"last_reset_date" json:"lastResetDate"`
}

// Stale reports whether the counters belong to an earlier UTC month than now.
func (u UsageStats) Stale(now time.Time) bool {
	last, cur := u.LastResetDate.UTC(), now.UTC()
	return last.Year() != cur.Year() || last.Month() != cur.Month()
}

// Current returns the counters as they stand for now's month, zeroed if stale.
func (u UsageStats) Current(now time.Time) UsageStats {
	if !u.Stale(now) {
		return u
	}
	return UsageStats{LastResetDate: now.UTC()}
}

// User is an account. Fields tagged json:"-" never leave the server.
type User struct {
	ID        bson.ObjectID `bson:"_id,omitempty" json:"id" example:"683cdb8aa96ad71e8e075bd1"`
	FirstName string        `bson:"first_name" json:"firstName" example:"Ada"`
	LastName  string        `bson:"last_name" json:"lastName" example:"Lovelace"`
	Email     string        `bson:"email" json:"email" example:"ada@example.com"`
	Company   string        `bson:"company,omitempty" json:"company,omitempty" example:"Analytical Engines Ltd"`
	Role      Role          `bson:"role" json:"role" example:"user"`

	PasswordHash      string     `bson:"password_hash" json:"-"`
	PasswordChangedAt *time.Time `bson:"password_changed_at,omitempty" json:"-"`

	IsEmailVerified          bool       `bson:"is_email_verified" json:"isEmailVerified"`
	EmailVerificationToken   string     `bson:"email_verification_token,omitempty" json:"-"`
	EmailVerificationExpires *time.Time `bson:"email_verification_expires,omitempty" json:"-"`
	PasswordResetToken       string     `bson:"password_reset_token,omitempty" json:"-"`
	PasswordResetExpires     *time.Time `bson:"password_reset_expires,omitempty" json:"-"`

	LoginAttempts int        `bson:"login_attempts" json:"-"`
	LockUntil     *time.Time `bson:"lock_until,omitempty" json:"-"`
	LastLoginAt   *time.Time `bson:"last_login_at,omitempty" json:"lastLoginAt,omitempty"`
	Active        bool       `bson:"active" json:"-"`

	Subscription subscription.Summary `bson:"subscription" json:"subscription"`
	UsageStats   UsageStats           `bson:"usage_stats" json:"usageStats"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// FullName joins first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// IsLocked is true iff lockUntil is set and still in the future.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockUntil != nil && u.LockUntil.After(now)
}

// lockExpired is true when an earlier lock has run out, so the failure count restarts.
func (u *User) lockExpired(now time.Time) bool {
	return u.LockUntil != nil && !u.LockUntil.After(now)
}

// passwordChangedAt is the passwordChangedAt stamp for a change made at now.
func passwordChangedAt(now time.Time) time.Time {
	return now.Add(-PasswordChangeSkew)
}

// ChangedPasswordAfter reports whether the password changed after a token issued at iat (unix seconds).
func (u *User) ChangedPasswordAfter(iat int64) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return u.PasswordChangedAt.Unix() > iat
}

// CreatePasswordResetToken stores the hash of a new reset token and returns the plaintext.
func (u *User) CreatePasswordResetToken(now time.Time) (string, error) {
	plain, hashed, err := crypto.NewOneTimeToken()
	if err != nil {
		return "", err
	}
	exp := now.Add(PasswordResetTTL)
	u.PasswordResetToken = hashed
	u.PasswordResetExpires = &exp
	return plain, nil
}

// ClearPasswordReset drops any pending reset token.
func (u *User) ClearPasswordReset() {
	u.PasswordResetToken = ""
	u.PasswordResetExpires = nil
}

// CreateEmailVerificationToken stores the hash of a new verification token and returns the plaintext.
func (u *User) CreateEmailVerificationToken(now time.Time) (string, error) {
	plain, hashed, err := crypto.NewOneTimeToken()
	if err != nil {
		return "", err
	}
	exp := now.Add(EmailVerificationTTL)
	u.EmailVerificationToken = hashed
	u.EmailVerificationExpires = &exp
	return plain, nil
}

// ClearEmailVerification drops any pending verification token.
func (u *User) ClearEmailVerification() {
	u.EmailVerificationToken = ""
	u.EmailVerificationExpires = nil
}

// resetLockout clears failed-login state.
func (u *User) resetLockout() {
	u.LoginAttempts = 0
	u.LockUntil = nil
}

// TokenMatches reports whether plaintext hashes to stored and stored has not expired.
func TokenMatches(stored string, expires *time.Time, plaintext string, now time.Time) bool {
	return stored != "" && expires != nil && expires.After(now) && stored == crypto.HashToken(plaintext)
}
