package services

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbidden          = errors.New("operation not allowed")
	ErrValidation         = errors.New("validation failed")
)
