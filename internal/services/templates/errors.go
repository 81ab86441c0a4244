package templates

import "errors"

var (
	ErrPremiumRequired  = errors.New("this template requires a plan with premium templates")
	ErrNoTemplateAccess = errors.New("your plan does not include templates")
	ErrNothingToUpdate  = errors.New("no fields to update")
)
