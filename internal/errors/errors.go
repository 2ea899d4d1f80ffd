// Package errors provides the structured error type used across reliant.
package errors

import (
	"errors"
	"fmt"
)

// Category groups errors by subsystem.
type Category string

const (
	CategoryProvider Category = "provider"
	CategoryEngine   Category = "engine"
	CategoryConfig   Category = "config"
)

// ReliantError is the structured error type for the project.
type ReliantError struct {
	Category  Category
	Code      string
	Message   string
	Retryable bool
	Cause     error
}

func (e *ReliantError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Category, e.Code, e.Message)
}

func (e *ReliantError) Unwrap() error {
	return e.Cause
}

func (e *ReliantError) Is(target error) bool {
	t, ok := target.(*ReliantError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Category == t.Category
}

// IsRetryable reports whether err is a ReliantError marked retryable.
// Non-ReliantError values (including nil) return false.
func IsRetryable(err error) bool {
	var re *ReliantError
	if errors.As(err, &re) {
		return re.Retryable
	}
	return false
}

// GetCategory extracts the category from a ReliantError, or "" otherwise.
func GetCategory(err error) Category {
	var re *ReliantError
	if errors.As(err, &re) {
		return re.Category
	}
	return ""
}

// GetUserMessage returns a user-friendly message: the Message field for a
// ReliantError, or Error() for anything else.
func GetUserMessage(err error) string {
	if err == nil {
		return ""
	}
	var re *ReliantError
	if errors.As(err, &re) {
		return re.Message
	}
	return err.Error()
}
