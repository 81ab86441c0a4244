package handlerutil

import (
	"reflect"
	"strings"

	"infinitiflow/cmd/server/ctxkeys"
	"infinitiflow/cmd/server/handlers/httperr"
	"infinitiflow/internal/logger"
	"infinitiflow/internal/services/auth"
	"infinitiflow/internal/utils/crypto"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// NewValidator returns a validator that reports JSON field names and knows the "password" rule.
func NewValidator() (*validator.Validate, error) {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "query"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return f.Name
	})
	if err := crypto.RegisterPasswordValidator(v); err != nil {
		return nil, err
	}
	return v, nil
}

// CurrentUser returns the user stored by the Protect middleware.
func CurrentUser(c *fiber.Ctx) (*auth.User, error) {
	user, ok := c.Locals(ctxkeys.UserKey).(*auth.User)
	if !ok || user == nil {
		logger.L().Error("user not found in context", "handler", "CurrentUser", "path", c.Path())
		return nil, httperr.Fail(httperr.ErrUnauthorized)
	}
	return user, nil
}

// OptionalUser returns the caller when OptionalAuth recognised one, else nil.
func OptionalUser(c *fiber.Ctx) *auth.User {
	user, _ := c.Locals(ctxkeys.UserKey).(*auth.User)
	return user
}

func callerID(c *fiber.Ctx) string {
	if user := OptionalUser(c); user != nil {
		return user.ID.Hex()
	}
	return ""
}

// ParseAndValidateBody parses request body and validates it
func ParseAndValidateBody(c *fiber.Ctx, req any, validator *validator.Validate, handlerName string) error {
	if err := c.BodyParser(req); err != nil {
		logger.L().Warn("failed to parse request body", "handler", handlerName, "userID", callerID(c), "error", err)
		return httperr.Fail(httperr.ErrBadRequest)
	}

	if err := validator.Struct(req); err != nil {
		logger.L().Info("request validation failed", "handler", handlerName, "userID", callerID(c), "error", err)
		return httperr.InvalidInput(err)
	}

	return nil
}

// ParseAndValidateQuery parses query parameters and validates them
func ParseAndValidateQuery(c *fiber.Ctx, req any, validator *validator.Validate, handlerName string) error {
	if err := c.QueryParser(req); err != nil {
		logger.L().Warn("failed to parse query params", "handler", handlerName, "userID", callerID(c), "error", err)
		return httperr.Fail(httperr.ErrBadRequest)
	}

	if err := validator.Struct(req); err != nil {
		logger.L().Info("query validation failed", "handler", handlerName, "userID", callerID(c), "error", err)
		return httperr.InvalidInput(err)
	}

	return nil
}

// ObjectIDParam parses the named route parameter as an ObjectID.
func ObjectIDParam(c *fiber.Ctx, name string) (bson.ObjectID, error) {
	id, err := bson.ObjectIDFromHex(c.Params(name))
	if err != nil {
		logger.L().Info("invalid id parameter", "param", name, "value", c.Params(name), "path", c.Path())
		return bson.ObjectID{}, httperr.Fail(httperr.ErrInvalidID)
	}
	return id, nil
}

// HandleServiceError maps a service error to its HTTP form. Expected
// conditions are logged at info and anything unknown becomes a generic 500.
func HandleServiceError(c *fiber.Ctx, err error, handlerName string) error {
	logFields := []any{"handler", handlerName, "userID", callerID(c), "error", err}

	if e, ok := httperr.FromDomain(err); ok {
		if e.Status >= 500 {
			logger.L().Error("service operation failed", logFields...)
		} else {
			logger.L().Info("request rejected", logFields...)
		}
		return httperr.Fail(e)
	}

	logger.L().Error("service operation failed", logFields...)
	return httperr.Fail(httperr.ErrInternal)
}

// Success writes {"status":"success", ...fields}.
func Success(c *fiber.Ctx, status int, fields fiber.Map) error {
	body := fiber.Map{"status": "success"}
	for k, v := range fields {
		body[k] = v
	}
	return c.Status(status).JSON(body)
}
