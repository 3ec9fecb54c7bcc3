package utils

import (
	"errors"
	"fmt"
)

var (
	ErrorRecordNotFound    = errors.New("record not found")
	ErrorValidation        = errors.New("validation failed")
	ErrorInconsistentState = errors.New("inconsistent state")
)

// NotFoundError reports a reference to a missing entity.
type NotFoundError struct {
	Entity string
	ID     int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrorRecordNotFound
}

func NewNotFound(entity string, id int) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// ValidationError reports which field of which entity was rejected.
type ValidationError struct {
	Entity  string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Entity, e.Message)
	}
	return fmt.Sprintf("%s.%s: %s", e.Entity, e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrorValidation
}

func NewValidationError(entity string, field string, message string) error {
	return &ValidationError{Entity: entity, Field: field, Message: message}
}

// InconsistentStateError describes a derived field that disagrees with its source records.
// It is repairable and is surfaced as a warning, not a failure of the request.
type InconsistentStateError struct {
	Entity   string `json:"entity"`
	ID       int    `json:"id"`
	Field    string `json:"field"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

func (e *InconsistentStateError) Error() string {
	return fmt.Sprintf("%s %d: %s is %s, expected %s", e.Entity, e.ID, e.Field, e.Actual, e.Expected)
}

func (e *InconsistentStateError) Is(target error) bool {
	return target == ErrorInconsistentState
}
