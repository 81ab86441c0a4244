package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"infinitiflow/internal/services/auth"
	"infinitiflow/internal/services/subscription"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// UsersRepo implements auth.UsersRepo, usage.Store and subscription.UserSummaries.
type UsersRepo struct {
	collection *mongo.Collection
}

// NewUsersRepo creates a new users repository and its indexes.
func NewUsersRepo(ctx context.Context, db *mongo.Database) (*UsersRepo, error) {
	collection := db.Collection("users")

	err := ensureIndexes(ctx, collection, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "password_reset_token", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "email_verification_token", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	})
	if err != nil {
		return nil, err
	}

	return &UsersRepo{collection: collection}, nil
}

func translateUserNotFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return auth.ErrNotFound
	}
	return err
}

// Create inserts a new user.
func (r *UsersRepo) Create(ctx context.Context, user *auth.User) error {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	if _, err := r.collection.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return auth.ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UsersRepo) findOne(ctx context.Context, filter bson.M) (*auth.User, error) {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	var user auth.User
	if err := r.collection.FindOne(ctx, filter).Decode(&user); err != nil {
		return nil, translateUserNotFound(err)
	}
	return &user, nil
}

// FindByID finds a user by id.
func (r *UsersRepo) FindByID(ctx context.Context, id bson.ObjectID) (*auth.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// FindByEmail finds a user by their normalised email.
func (r *UsersRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

// tokenFields maps a token kind to its hash and expiry fields.
func tokenFields(kind auth.TokenKind) (token, expires string) {
	if kind == auth.TokenEmailVerification {
		return "email_verification_token", "email_verification_expires"
	}
	return "password_reset_token", "password_reset_expires"
}

// Update $sets only the fields present in ch.
func (r *UsersRepo) Update(ctx context.Context, id bson.ObjectID, ch auth.Changes) (*auth.User, error) {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	set := bson.M{"updated_at": ch.UpdatedAt}
	if ch.FirstName != nil {
		set["first_name"] = *ch.FirstName
	}
	if ch.LastName != nil {
		set["last_name"] = *ch.LastName
	}
	if ch.Company != nil {
		set["company"] = *ch.Company
	}
	if ch.Role != nil {
		set["role"] = *ch.Role
	}
	if ch.Active != nil {
		set["active"] = *ch.Active
	}
	if ch.PasswordHash != nil {
		set["password_hash"] = *ch.PasswordHash
	}
	if ch.PasswordChangedAt != nil {
		set["password_changed_at"] = *ch.PasswordChangedAt
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var user auth.User
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&user); err != nil {
		return nil, translateUserNotFound(err)
	}
	return &user, nil
}

// SetToken stores a token hash and its expiry.
func (r *UsersRepo) SetToken(ctx context.Context, id bson.ObjectID, kind auth.TokenKind, hashed string, expires time.Time) error {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	token, exp := tokenFields(kind)
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{token: hashed, exp: expires, "updated_at": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("set token: %w", err)
	}
	if res.MatchedCount == 0 {
		return auth.ErrNotFound
	}
	return nil
}

// ClearToken unsets a token only while it still holds hashed, so a newer
// token issued in the meantime survives.
func (r *UsersRepo) ClearToken(ctx context.Context, id bson.ObjectID, kind auth.TokenKind, hashed string) error {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	token, exp := tokenFields(kind)
	if _, err := r.collection.UpdateOne(ctx, bson.M{"_id": id, token: hashed}, bson.M{
		"$unset": bson.M{token: "", exp: ""},
	}); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}

// consumeToken matches an unexpired token hash and applies update in the same
// FindOneAndUpdate, so a token can be spent once.
func (r *UsersRepo) consumeToken(ctx context.Context, kind auth.TokenKind, hashed string, now time.Time, set bson.M) (*auth.User, error) {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	token, exp := tokenFields(kind)
	filter := bson.M{token: hashed, exp: bson.M{"$gt": now}}
	set["updated_at"] = now
	unset := bson.M{token: "", exp: ""}
	if kind == auth.TokenPasswordReset {
		unset["lock_until"] = ""
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var user auth.User
	err := r.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set, "$unset": unset}, opts).Decode(&user)
	if err != nil {
		return nil, translateUserNotFound(err)
	}
	return &user, nil
}

// ConsumeResetToken spends a reset token, installing the new password hash and clearing lockout.
func (r *UsersRepo) ConsumeResetToken(ctx context.Context, hashed string, now time.Time, passwordHash string, changedAt time.Time) (*auth.User, error) {
	return r.consumeToken(ctx, auth.TokenPasswordReset, hashed, now, bson.M{
		"password_hash":       passwordHash,
		"password_changed_at": changedAt,
		"login_attempts":      0,
	})
}

// ConsumeVerificationToken spends a verification token and marks the email verified.
func (r *UsersRepo) ConsumeVerificationToken(ctx context.Context, hashed string, now time.Time) (*auth.User, error) {
	return r.consumeToken(ctx, auth.TokenEmailVerification, hashed, now, bson.M{
		"is_email_verified": true,
	})
}

// RecordLoginFailure bumps login_attempts and sets lock_until once it reaches
// maxAttempts, in a single pipeline update so concurrent failures are all counted.
func (r *UsersRepo) RecordLoginFailure(ctx context.Context, id bson.ObjectID, restart bool, maxAttempts int, lockUntil time.Time) (*auth.User, error) {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	var attempts any = bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$login_attempts", 0}}, 1}}
	if restart {
		attempts = 1
	}

	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{"login_attempts": attempts}}},
		{{Key: "$set", Value: bson.M{
			"lock_until": bson.M{"$cond": bson.M{
				"if":   bson.M{"$gte": bson.A{"$login_attempts", maxAttempts}},
				"then": lockUntil,
				"else": "$$REMOVE",
			}},
		}}},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var user auth.User
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, pipeline, opts).Decode(&user); err != nil {
		return nil, translateUserNotFound(err)
	}
	return &user, nil
}

// RecordLogin clears lockout state and stamps last_login_at.
func (r *UsersRepo) RecordLogin(ctx context.Context, id bson.ObjectID, at time.Time) error {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set":   bson.M{"login_attempts": 0, "last_login_at": at},
		"$unset": bson.M{"lock_until": ""},
	})
	if err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	if res.MatchedCount == 0 {
		return auth.ErrNotFound
	}
	return nil
}

// UpdateSubscriptionSummary overwrites the embedded subscription summary.
func (r *UsersRepo) UpdateSubscriptionSummary(ctx context.Context, userID bson.ObjectID, sum subscription.Summary) error {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{
		"$set": bson.M{"subscription": sum, "updated_at": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("update subscription summary: %w", err)
	}
	if res.MatchedCount == 0 {
		return auth.ErrNotFound
	}
	return nil
}

// IncrementUsage zeroes usage_stats when they were last reset before periodStart,
// then applies deltas. Each step is a single-document atomic update.
func (r *UsersRepo) IncrementUsage(ctx context.Context, id bson.ObjectID, deltas map[string]int64, periodStart time.Time) (*auth.User, error) {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	stale := olderThan("usage_stats.last_reset_date", periodStart)
	stale["_id"] = id
	if _, err := r.collection.UpdateOne(ctx, stale, bson.M{
		"$set": bson.M{"usage_stats": auth.UsageStats{LastResetDate: periodStart}},
	}); err != nil {
		return nil, fmt.Errorf("reset usage: %w", err)
	}

	if len(deltas) == 0 {
		return r.FindByID(ctx, id)
	}

	inc := bson.M{}
	for field, delta := range deltas {
		inc[field] = delta
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var user auth.User
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$inc": inc}, opts).Decode(&user)
	if err != nil {
		return nil, translateUserNotFound(err)
	}
	return &user, nil
}
