package model

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors used across the application
var (
	// User errors
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("a user with this email already exists")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")

	// Input errors
	ErrValidation = errors.New("validation failed")
)

// FieldError describes one rejected input field
type FieldError struct {
	Field   string
	Message string
}

// ValidationError lists every field that failed validation.
// It matches ErrValidation with errors.Is.
type ValidationError struct {
	Fields []FieldError
}

// NewValidationError builds a ValidationError for a single field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
