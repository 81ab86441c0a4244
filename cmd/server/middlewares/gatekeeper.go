package middlewares

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"infinitiflow/cmd/server/ctxkeys"
	"infinitiflow/cmd/server/handlers/httperr"
	"infinitiflow/internal/services/auth"
	"infinitiflow/internal/services/resource"
	"infinitiflow/internal/services/subscription"
	"infinitiflow/internal/services/tokens"

	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// 401 responses of the session check.
var (
	ErrNotLoggedIn     = httperr.E{Status: 401, Message: "You are not logged in. Please log in to get access."}
	ErrInvalidToken    = httperr.E{Status: 401, Message: "Invalid token. Please log in again."}
	ErrUserGone        = httperr.E{Status: 401, Message: "The user belonging to this token no longer exists."}
	ErrDeactivated     = httperr.E{Status: 401, Message: "Your account has been deactivated."}
	ErrPasswordChanged = httperr.E{Status: 401, Message: "User recently changed password. Please log in again."}
	ErrNoDocument      = httperr.E{Status: 404, Message: "No document found with that ID."}
)

// UserLoader resolves the subject of a verified token.
type UserLoader interface {
	UserByID(ctx context.Context, id bson.ObjectID) (*auth.User, error)
}

// Gatekeeper authenticates requests from the bearer header or the jwt cookie.
type Gatekeeper struct {
	secret []byte
	users  UserLoader
	log    *slog.Logger
}

// NewGatekeeper creates a gatekeeper verifying access tokens signed with secret.
func NewGatekeeper(secret []byte, users UserLoader, log *slog.Logger) *Gatekeeper {
	return &Gatekeeper{secret: secret, users: users, log: log}
}

func (g *Gatekeeper) jwtConfig(success fiber.Handler, failure fiber.ErrorHandler) jwtware.Config {
	return jwtware.Config{
		SigningKey:     jwtware.SigningKey{JWTAlg: jwtware.HS256, Key: g.secret},
		Claims:         &tokens.Claims{},
		TokenLookup:    "header:Authorization,cookie:jwt",
		AuthScheme:     "Bearer",
		ContextKey:     ctxkeys.TokenKey,
		SuccessHandler: success,
		ErrorHandler:   failure,
	}
}

// Protect rejects the request with 401 unless it carries a valid access
// token for an active user whose password has not changed since issue.
func (g *Gatekeeper) Protect() fiber.Handler {
	return jwtware.New(g.jwtConfig(
		func(c *fiber.Ctx) error {
			user, err := g.authenticate(c)
			if err != nil {
				return err
			}
			c.Locals(ctxkeys.UserKey, user)
			return c.Next()
		},
		func(c *fiber.Ctx, err error) error {
			if errors.Is(err, jwtware.ErrJWTMissingOrMalformed) {
				return httperr.Fail(ErrNotLoggedIn)
			}
			g.log.Debug("rejected access token", "path", c.Path(), "error", err)
			return httperr.Fail(ErrInvalidToken)
		},
	))
}

// OptionalAuth attaches the caller when a valid token is present and
// otherwise lets the request through anonymously.
func (g *Gatekeeper) OptionalAuth() fiber.Handler {
	return jwtware.New(g.jwtConfig(
		func(c *fiber.Ctx) error {
			user, err := g.authenticate(c)
			if err != nil {
				g.log.Debug("optional auth ignored token", "path", c.Path(), "error", err)
				return c.Next()
			}
			c.Locals(ctxkeys.UserKey, user)
			return c.Next()
		},
		func(c *fiber.Ctx, err error) error {
			if !errors.Is(err, jwtware.ErrJWTMissingOrMalformed) {
				g.log.Debug("optional auth ignored token", "path", c.Path(), "error", err)
			}
			return c.Next()
		},
	))
}

func (g *Gatekeeper) authenticate(c *fiber.Ctx) (*auth.User, error) {
	token, ok := c.Locals(ctxkeys.TokenKey).(*jwt.Token)
	if !ok {
		return nil, httperr.Fail(ErrInvalidToken)
	}
	claims, ok := token.Claims.(*tokens.Claims)
	if !ok || claims.Type != "" || claims.ExpiresAt == nil {
		return nil, httperr.Fail(ErrInvalidToken)
	}

	id, err := bson.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return nil, httperr.Fail(ErrInvalidToken)
	}

	user, err := g.users.UserByID(c.UserContext(), id)
	if errors.Is(err, auth.ErrNotFound) {
		return nil, httperr.Fail(ErrUserGone)
	}
	if err != nil {
		g.log.Error("failed to load token subject", "user_id", id.Hex(), "error", err)
		return nil, httperr.Fail(httperr.ErrInternal)
	}

	if !user.Active {
		return nil, httperr.Fail(ErrDeactivated)
	}
	if claims.IssuedAt != nil && user.ChangedPasswordAfter(claims.IssuedAt.Unix()) {
		return nil, httperr.Fail(ErrPasswordChanged)
	}
	return user, nil
}

func currentUser(c *fiber.Ctx) (*auth.User, error) {
	user, ok := c.Locals(ctxkeys.UserKey).(*auth.User)
	if !ok || user == nil {
		return nil, httperr.Fail(ErrNotLoggedIn)
	}
	return user, nil
}

// RestrictTo allows only the given roles. Must run after Protect.
func RestrictTo(roles ...auth.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := currentUser(c)
		if err != nil {
			return err
		}
		if !slices.Contains(roles, user.Role) {
			return httperr.Fail(httperr.ErrForbidden)
		}
		return c.Next()
	}
}

// CheckSubscription allows callers with an active subscription of plan or higher.
// Every caller holds the free tier, so an inactive subscription still passes a
// free requirement.
func CheckSubscription(plan subscription.Plan) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := currentUser(c)
		if err != nil {
			return err
		}
		sum := user.Subscription
		if plan != subscription.PlanFree && (!sum.IsActive || !sum.Plan.AtLeast(plan)) {
			return httperr.Fail(httperr.E{
				Status:  402,
				Message: "This feature requires a " + string(plan) + " subscription or higher.",
			})
		}
		return c.Next()
	}
}

// CheckOwnership loads the document named by the route parameter and allows
// only its owner. Admins bypass the owner check. The document is stored in
// Locals under ctxkeys.ResourceKey.
func CheckOwnership[T resource.Owned](load func(context.Context, bson.ObjectID) (T, error), param string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := currentUser(c)
		if err != nil {
			return err
		}

		id, err := bson.ObjectIDFromHex(c.Params(param))
		if err != nil {
			return httperr.Fail(ErrNoDocument)
		}

		doc, err := load(c.UserContext(), id)
		if errors.Is(err, resource.ErrNotFound) {
			return httperr.Fail(ErrNoDocument)
		}
		if err != nil {
			return err
		}

		if user.Role != auth.RoleAdmin && doc.OwnerID() != user.ID {
			return httperr.Fail(httperr.ErrForbidden)
		}

		c.Locals(ctxkeys.ResourceKey, doc)
		return c.Next()
	}
}
