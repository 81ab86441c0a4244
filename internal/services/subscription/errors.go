package subscription

import "errors"

var (
	ErrNotFound         = errors.New("subscription not found")
	ErrInvalidPlan      = errors.New("invalid subscription plan")
	ErrAlreadyCancelled = errors.New("subscription is already cancelled")
	ErrNotCancelled     = errors.New("subscription is not cancelled")
)
