package httperr

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// FieldError describes one rejected request field.
type FieldError struct {
	Field   string `json:"field" example:"email"`
	Message string `json:"message" example:"must be a valid email address"`
}

// E represents an HTTP error with status code and message
type E struct {
	Status  int
	Message string
	Errors  []FieldError
}

// Body is the JSON envelope written for every error.
type Body struct {
	Status  string       `json:"status" example:"fail"`
	Message string       `json:"message" example:"Bad Request"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// Error implements the error interface
func (e E) Error() string {
	return e.Message
}

// Body returns the envelope; 4xx is "fail", anything else "error".
func (e E) Body() Body {
	state := "error"
	if e.Status >= 400 && e.Status < 500 {
		state = "fail"
	}
	return Body{Status: state, Message: e.Message, Errors: e.Errors}
}

// JSON returns the error as JSON response
func (e E) JSON(c *fiber.Ctx) error {
	return c.Status(e.Status).JSON(e.Body())
}

// Fail returns the error for Fiber's global error handler to process
func Fail(err E) error {
	return err
}

// InvalidInput wraps a validation error and returns the standard response.
func InvalidInput(err error) error {
	e := E{Status: 400, Message: "Invalid input data"}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		e.Message = "Invalid input: " + err.Error()
		return Fail(e)
	}

	e.Errors = make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		e.Errors = append(e.Errors, FieldError{Field: fe.Field(), Message: describe(fe)})
	}
	return Fail(e)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "password":
		return "must be at least 8 characters and contain an uppercase letter, a lowercase letter and a number"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "mongodb":
		return "must be a valid id"
	case "nefield":
		return "must differ from " + fe.Param()
	default:
		return "is invalid"
	}
}

// InternalError returns an internal server error with the given message
func InternalError(message string) E {
	return E{Status: 500, Message: message}
}

// Pre-defined HTTP errors
var (
	ErrBadRequest      = E{Status: 400, Message: "Bad Request"}
	ErrInvalidID       = E{Status: 400, Message: "Invalid id"}
	ErrUnauthorized    = E{Status: 401, Message: "Unauthorized"}
	ErrForbidden       = E{Status: 403, Message: "You do not have permission to perform this action."}
	ErrNotFound        = E{Status: 404, Message: "Resource not found"}
	ErrTooManyRequests = E{Status: 429, Message: "Too many requests, please try again later."}
	ErrInternal        = InternalError("Something went wrong")
)

// Handler is the global error handler for Fiber
func Handler(c *fiber.Ctx, err error) error {
	var e E
	if errors.As(err, &e) {
		return e.JSON(c)
	}

	var fiberError *fiber.Error
	if errors.As(err, &fiberError) {
		return E{Status: fiberError.Code, Message: fiberError.Message}.JSON(c)
	}

	if mapped, ok := FromDomain(err); ok {
		return mapped.JSON(c)
	}

	return ErrInternal.JSON(c)
}
