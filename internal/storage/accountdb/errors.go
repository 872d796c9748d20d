package accountdb

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors surfaced by store implementations. Structured StoreErrors
// match these through errors.Is via their (type, code) pair.
var (
	// Configuration errors
	ErrInvalidBackend  = errors.New("invalid storage backend")
	ErrMissingDatabase = errors.New("database name is required")
	ErrMissingPath     = errors.New("storage path is required")

	// Connection errors
	ErrStoreClosed      = errors.New("store is closed")
	ErrConnectionFailed = errors.New("failed to connect to store")

	// Data errors
	ErrAccountNotFound     = errors.New("account not found")
	ErrDepositNotFound     = errors.New("deposit not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvalidRecord       = errors.New("invalid record")

	// Constraint errors
	ErrUniqueViolation = errors.New("unique constraint violation")
)

// ErrorType categorizes store errors.
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeConfiguration
	ErrorTypeConnection
	ErrorTypeData
	ErrorTypeConstraint
	ErrorTypeQuery
	ErrorTypeSchema
)

// Error codes used to match StoreErrors against the sentinels above.
const (
	CodeAccountNotFound     = "ACCOUNT_NOT_FOUND"
	CodeDepositNotFound     = "DEPOSIT_NOT_FOUND"
	CodeTransactionNotFound = "TRANSACTION_NOT_FOUND"
	CodeUniqueViolation     = "UNIQUE_VIOLATION"
	CodeStoreClosed         = "STORE_CLOSED"
)

// StoreError carries the operation, classification, and cause of a store
// failure.
type StoreError struct {
	Type      ErrorType `json:"type"`
	Operation string    `json:"operation"`
	Message   string    `json:"message"`
	Cause     error     `json:"cause,omitempty"`
	Code      string    `json:"code,omitempty"`
	Retryable bool      `json:"retryable"`
}

func (e *StoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Operation, e.Message)
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}

// Is reports whether the error matches a sentinel or another StoreError of
// the same type and message.
func (e *StoreError) Is(target error) bool {
	if target == nil {
		return false
	}

	if se, ok := target.(*StoreError); ok {
		return e.Type == se.Type && e.Message == se.Message
	}

	switch target {
	case ErrAccountNotFound:
		return e.Type == ErrorTypeData && e.Code == CodeAccountNotFound
	case ErrDepositNotFound:
		return e.Type == ErrorTypeData && e.Code == CodeDepositNotFound
	case ErrTransactionNotFound:
		return e.Type == ErrorTypeData && e.Code == CodeTransactionNotFound
	case ErrUniqueViolation:
		return e.Type == ErrorTypeConstraint && e.Code == CodeUniqueViolation
	case ErrStoreClosed:
		return e.Type == ErrorTypeConnection && e.Code == CodeStoreClosed
	}

	return false
}

// WithCode sets the error code.
func (e *StoreError) WithCode(code string) *StoreError {
	e.Code = code
	return e
}

// IsRetryable reports whether retrying the operation may succeed.
func (e *StoreError) IsRetryable() bool {
	return e.Retryable
}

// NewStoreError creates a classified store error.
func NewStoreError(errorType ErrorType, operation, message string, cause error) *StoreError {
	return &StoreError{
		Type:      errorType,
		Operation: operation,
		Message:   message,
		Cause:     cause,
		Retryable: retryableForType(errorType, cause),
	}
}

// NewConfigurationError creates a configuration error.
func NewConfigurationError(operation, message string, cause error) *StoreError {
	return NewStoreError(ErrorTypeConfiguration, operation, message, cause)
}

// NewConnectionError creates a connection error.
func NewConnectionError(operation, message string, cause error) *StoreError {
	return NewStoreError(ErrorTypeConnection, operation, message, cause)
}

// NewDataError creates a data error.
func NewDataError(operation, message string, cause error) *StoreError {
	return NewStoreError(ErrorTypeData, operation, message, cause)
}

// NewConstraintError creates a constraint error.
func NewConstraintError(operation, message string, cause error) *StoreError {
	return NewStoreError(ErrorTypeConstraint, operation, message, cause)
}

// NewQueryError creates a query error.
func NewQueryError(operation, message string, cause error) *StoreError {
	return NewStoreError(ErrorTypeQuery, operation, message, cause)
}

// NewSchemaError creates a schema error.
func NewSchemaError(operation, message string, cause error) *StoreError {
	return NewStoreError(ErrorTypeSchema, operation, message, cause)
}

// NewNotFoundError creates the not-found data error for a record kind,
// carrying the code errors.Is matching relies on.
func NewNotFoundError(operation, kind, id string) *StoreError {
	code := CodeTransactionNotFound
	switch kind {
	case "account":
		code = CodeAccountNotFound
	case "deposit":
		code = CodeDepositNotFound
	}
	return NewDataError(operation, fmt.Sprintf("%s %s not found", kind, id), nil).WithCode(code)
}

// NewUniqueViolationError creates the constraint error raised when an insert
// collides with an existing unique index entry.
func NewUniqueViolationError(operation, detail string, cause error) *StoreError {
	return NewConstraintError(operation, detail, cause).WithCode(CodeUniqueViolation)
}

func retryableForType(errorType ErrorType, cause error) bool {
	switch errorType {
	case ErrorTypeConnection:
		return true
	case ErrorTypeQuery:
		if cause == nil {
			return false
		}
		msg := strings.ToLower(cause.Error())
		return strings.Contains(msg, "timeout") || strings.Contains(msg, "cancel")
	default:
		return false
	}
}

// IsNotFound reports whether err indicates a missing record of any kind.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrDepositNotFound) ||
		errors.Is(err, ErrTransactionNotFound)
}

// IsUniqueViolation reports whether err indicates an insert rejected by a
// unique index. Deposit ingestion uses this to detect replays.
func IsUniqueViolation(err error) bool {
	return errors.Is(err, ErrUniqueViolation)
}

// IsConstraintError reports whether err is a constraint-typed store error.
func IsConstraintError(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Type == ErrorTypeConstraint
}

// IsConnectionError reports whether err is a connection-typed store error.
func IsConnectionError(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Type == ErrorTypeConnection
}

// IsRetryable reports whether err is worth retrying. Non-store errors fall
// back to a conservative message scan.
func IsRetryable(err error) bool {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Retryable
	}

	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection refused",
		"connection reset",
		"database is locked",
		"deadlock",
		"timeout",
		"busy",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// WrapError attaches an operation to err, classifying unrecognized errors by
// message. A nil err stays nil.
func WrapError(err error, operation string) error {
	if err == nil {
		return nil
	}

	var se *StoreError
	if errors.As(err, &se) {
		wrapped := *se
		wrapped.Operation = operation
		return &wrapped
	}

	msg := strings.ToLower(err.Error())
	errorType := ErrorTypeUnknown
	switch {
	case strings.Contains(msg, "connect"):
		errorType = ErrorTypeConnection
	case strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate") || strings.Contains(msg, "constraint"):
		errorType = ErrorTypeConstraint
	case strings.Contains(msg, "not found") || strings.Contains(msg, "no rows"):
		errorType = ErrorTypeData
	case strings.Contains(msg, "syntax") || strings.Contains(msg, "invalid"):
		errorType = ErrorTypeQuery
	case strings.Contains(msg, "table") || strings.Contains(msg, "column") || strings.Contains(msg, "schema"):
		errorType = ErrorTypeSchema
	}

	return NewStoreError(errorType, operation, err.Error(), err)
}
