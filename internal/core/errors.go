package core

import (
	"errors"
	"fmt"
)

// Sentinel errors matched with errors.Is across package boundaries.
var (
	ErrValidation       = errors.New("validation error")
	ErrExtractionFailed = errors.New("extraction failed")
	ErrOracle           = errors.New("oracle error")

	ErrNegativeAmount  = errors.New("amount cannot be negative")
	ErrNoValidExpenses = errors.New("add at least one valid expense")
	ErrRowOutOfRange   = errors.New("expense row out of range")

	ErrNoAnswer        = errors.New("select an answer before continuing")
	ErrAtFirstQuestion = errors.New("already at the first question")
	ErrQuizCompleted   = errors.New("quiz already completed")
	ErrUnknownOption   = errors.New("option is not one of the question's choices")

	ErrRequestInFlight = errors.New("a request is already in progress")
)

// ValidationError reports input rejected before any state was mutated.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() []error { return []error{ErrValidation, e.Err} }

// Invalid builds a ValidationError for field.
func Invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// ExtractionError is returned when the oracle reply is not the expected JSON.
// Raw keeps the (fence-stripped) reply for logging.
type ExtractionError struct {
	Raw string
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed: %v", e.Err)
}

func (e *ExtractionError) Unwrap() []error { return []error{ErrExtractionFailed, e.Err} }

// OracleErrorKind classifies oracle failures for logging and user messages.
type OracleErrorKind string

const (
	OracleNetwork     OracleErrorKind = "network"
	OracleAuth        OracleErrorKind = "auth"
	OracleQuota       OracleErrorKind = "quota"
	OracleTimeout     OracleErrorKind = "timeout"
	OracleEmpty       OracleErrorKind = "empty_response"
	OracleCredentials OracleErrorKind = "missing_credentials"
	OracleOther       OracleErrorKind = "other"
)

// OracleError wraps a failure of the external generative-AI service.
type OracleError struct {
	Op   string
	Kind OracleErrorKind
	Err  error
}

func (e *OracleError) Error() string {
	return fmt.Sprintf("oracle %s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *OracleError) Unwrap() []error { return []error{ErrOracle, e.Err} }
