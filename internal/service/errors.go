package service

import "errors"

// Cross-cutting domain errors. Handlers map these onto response error codes;
// services below add their own sentinels where the condition is specific.
var (
	ErrNotFound         = errors.New("resource not found")
	ErrForbidden        = errors.New("not allowed")
	ErrNotEnrolled      = errors.New("student is not enrolled in this exam")
	ErrInvalidState     = errors.New("operation not valid in current state")
	ErrAlreadyCompleted = errors.New("attempt is already completed")
	ErrLimitReached     = errors.New("maximum attempts reached")
	ErrConflict         = errors.New("resource already exists")
	ErrValidation       = errors.New("invalid input")
)
