package auth

import "errors"

var (
	ErrNotFound              = errors.New("user not found")
	ErrDuplicate             = errors.New("user with this email already exists")
	ErrInvalidCredentials    = errors.New("incorrect email or password")
	ErrIncorrectPassword     = errors.New("your current password is wrong")
	ErrAccountLocked         = errors.New("account temporarily locked due to too many failed login attempts")
	ErrAccountDeactivated    = errors.New("your account has been deactivated")
	ErrInvalidOrExpiredToken = errors.New("token is invalid or has expired")
	ErrPasswordChanged       = errors.New("user recently changed password")
	ErrEmailDelivery         = errors.New("there was an error sending the email, try again later")
	ErrInvalidRole           = errors.New("invalid role")
)
