package model

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidSpec          = newClientError("invalid spec")
	ErrConnection           = errors.New("datasource connection error")
	ErrExecution            = errors.New("datasource execution error")
	ErrUnknownDatasource    = newClientError("unknown datasource type")
	ErrAccessDenied         = newClientError("access denied")
	ErrLockConflict         = newClientError("row is locked by another user")
	ErrTableNotFound        = newClientError("table not found")
	ErrDatabaseNotFound     = newClientError("database not found")
	ErrUserNotFound         = newClientError("user not found")
	ErrDuplicateUser        = newClientError("user already exists")
	ErrInvalidCredentials   = newClientError("invalid credentials")
	ErrInvalidPermission    = newClientError("invalid permission")
	ErrInvalidConnectionURL = newClientError("invalid connection string")
	ErrMetadataQuery        = errors.New("metadata query error")
)

// clientError is a failure caused by the request rather than by the system.
// Logging treats these as routine.
type clientError struct {
	msg string
}

func newClientError(msg string) error {
	return &clientError{msg: msg}
}

func (e *clientError) Error() string { return e.msg }

func (e *clientError) Expected() bool { return true }

type ValidationError struct {
	Field   string
	Message string
	Code    string
}

type ValidationErrors struct {
	Errors []ValidationError
}

func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return "validation failed"
	}

	if v.Errors[0].Field == "" {
		return v.Errors[0].Message
	}

	return fmt.Sprintf("%s: %s", v.Errors[0].Field, v.Errors[0].Message)
}

// Unwrap lets callers match any validation failure with errors.Is(err, ErrInvalidSpec).
func (v *ValidationErrors) Unwrap() error {
	return ErrInvalidSpec
}

func (v *ValidationErrors) Add(field, message, code string) {
	v.Errors = append(v.Errors, ValidationError{
		Field:   field,
		Message: message,
		Code:    code,
	})
}

func (v *ValidationErrors) Expected() bool { return true }

func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// Err returns nil when nothing was collected, so callers can return it directly.
func (v *ValidationErrors) Err() error {
	if !v.HasErrors() {
		return nil
	}

	return v
}

func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{
		Errors: make([]ValidationError, 0),
	}
}

func newValidationError(field, message, code string) error {
	errs := NewValidationErrors()
	errs.Add(field, message, code)

	return errs
}

const (
	codeRequired      = "REQUIRED"
	codeInvalidField  = "INVALID_FIELD"
	codeInvalidOp     = "INVALID_OPERATOR"
	codeInvalidMode   = "INVALID_MODE"
	codeInvalidValue  = "INVALID_VALUE"
	codeOutOfRange    = "OUT_OF_RANGE"
	codeEmptyFilters  = "EMPTY_FILTERS"
	codeEmptyPayload  = "EMPTY_PAYLOAD"
	codeInvalidTable  = "INVALID_TABLE"
	codeInvalidLevel  = "INVALID_LEVEL"
	codeInvalidSchema = "INVALID_SCHEME"
)
