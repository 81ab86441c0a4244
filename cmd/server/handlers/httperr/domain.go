package httperr

import (
	"errors"

	"infinitiflow/internal/services/auth"
	"infinitiflow/internal/services/content"
	"infinitiflow/internal/services/resource"
	"infinitiflow/internal/services/subscription"
	"infinitiflow/internal/services/templates"
	"infinitiflow/internal/services/tokens"
	"infinitiflow/internal/services/usage"
)

type mapping struct {
	err error
	e   E
}

var domainErrors = []mapping{
	{auth.ErrDuplicate, E{Status: 409, Message: "User with this email already exists."}},
	{auth.ErrInvalidCredentials, E{Status: 401, Message: "Incorrect email or password."}},
	{auth.ErrIncorrectPassword, E{Status: 401, Message: "Your current password is wrong."}},
	{auth.ErrAccountLocked, E{Status: 423, Message: "Account temporarily locked due to too many failed login attempts. Please try again later."}},
	{auth.ErrAccountDeactivated, E{Status: 401, Message: "Your account has been deactivated."}},
	{auth.ErrPasswordChanged, E{Status: 401, Message: "User recently changed password. Please log in again."}},
	{auth.ErrInvalidOrExpiredToken, E{Status: 400, Message: "Token is invalid or has expired."}},
	{auth.ErrInvalidRole, E{Status: 400, Message: "Invalid role."}},
	{auth.ErrNotFound, E{Status: 404, Message: "No user found with that ID."}},
	{auth.ErrEmailDelivery, E{Status: 500, Message: "There was an error sending the email. Try again later."}},
	{tokens.ErrInvalidToken, E{Status: 401, Message: "Invalid token. Please log in again."}},
	{tokens.ErrWrongTokenType, E{Status: 401, Message: "Invalid token. Please log in again."}},
	{subscription.ErrNotFound, E{Status: 404, Message: "Subscription not found."}},
	{subscription.ErrInvalidPlan, E{Status: 400, Message: "Invalid subscription plan."}},
	{subscription.ErrAlreadyCancelled, E{Status: 400, Message: "Subscription is already cancelled."}},
	{subscription.ErrNotCancelled, E{Status: 400, Message: "Subscription is not cancelled."}},
	{usage.ErrLimitReached, E{Status: 403, Message: "content generation limit reached"}},
	{usage.ErrUnknownLimitType, E{Status: 500, Message: "Something went wrong"}},
	{templates.ErrPremiumRequired, E{Status: 402, Message: "This template requires a premium subscription or higher."}},
	{templates.ErrNoTemplateAccess, E{Status: 403, Message: "Your plan does not include templates."}},
	{templates.ErrNothingToUpdate, E{Status: 400, Message: "No fields to update."}},
	{content.ErrNothingToUpdate, E{Status: 400, Message: "No fields to update."}},
	{resource.ErrNotFound, ErrNotFound},
}

// FromDomain maps a service error to its HTTP form.
func FromDomain(err error) (E, bool) {
	for _, m := range domainErrors {
		if errors.Is(err, m.err) {
			return m.e, true
		}
	}
	return E{}, false
}
