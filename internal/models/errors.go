package models

import "errors"

// Application-wide standard errors
var (
	// Common Resource/DB Errors
	ErrNotFound      = errors.New("resource not found")
	ErrStoryNotFound = errors.New("story not found")
	ErrUserNotFound  = errors.New("user not found")

	// Validation
	ErrValidation     = errors.New("validation error")
	ErrPromptTooShort = errors.New("text prompt is too short to split into scenes")

	// Authentication (401)
	ErrTokenMissing = errors.New("authorization token is missing")
	ErrTokenInvalid = errors.New("token is invalid")
	ErrTokenExpired = errors.New("token has expired")

	// Authorization (403)
	ErrForbidden   = errors.New("forbidden")
	ErrUserBlocked = errors.New("user is blocked")

	// Conflicts (409). Every specific conflict wraps ErrConflict.
	ErrConflict          = errors.New("conflict")
	ErrStoryProcessing   = wrapConflict("story is still processing")
	ErrPromptImmutable   = wrapConflict("text prompt of an existing story cannot be changed")
	ErrUserAlreadyExists = wrapConflict("user is already registered")
	ErrSelfTarget        = wrapConflict("admin cannot target themselves")
	ErrTargetIsAdmin     = wrapConflict("admin cannot target another admin")
	ErrUserHasActiveJobs = wrapConflict("user has stories that are still processing")
	ErrInvalidTransition = wrapConflict("story status transition is not allowed")
	ErrAlreadyReviewed   = wrapConflict("story has already been reviewed by this user")

	// Capacity
	ErrRateLimited = errors.New("rate limit exceeded")
	ErrQueueFull   = errors.New("generation queue is full")
)

type conflictError struct{ msg string }

func (e *conflictError) Error() string        { return e.msg }
func (e *conflictError) Is(target error) bool { return target == ErrConflict }

func wrapConflict(msg string) error { return &conflictError{msg: msg} }

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Message
	}
	return "validation error: " + e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NewValidationError builds a validation error for a single field.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
