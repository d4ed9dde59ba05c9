package types

import (
	"errors"
	"fmt"
)

// ErrorCode is the closed set of structured rejection reasons the registry
// and reducer can surface (§7). Callers inspect these with errors.Is against
// the sentinel values below, matching the teacher's own
// errors.Is(err, storage.ErrDBNotInitialized) idiom.
type ErrorCode string

const (
	CodeParentNotFound      ErrorCode = "PARENT_NOT_FOUND"
	CodeIDAlreadyExists     ErrorCode = "ID_ALREADY_EXISTS"
	CodeIDNotFound          ErrorCode = "ID_NOT_FOUND"
	CodeCycle               ErrorCode = "CYCLE"
	CodeCardinalityConflict ErrorCode = "CARDINALITY_CONFLICT"
	CodeUnknownDisplay      ErrorCode = "UNKNOWN_DISPLAY"
	CodeCapacityExceeded    ErrorCode = "CAPACITY_EXCEEDED"
	CodeInvalidPayload      ErrorCode = "INVALID_PAYLOAD"
	CodeConstraintViolation ErrorCode = "CONSTRAINT_VIOLATION"
	CodeUnsupportedVersion  ErrorCode = "UNSUPPORTED_VERSION"
	CodeIntegrityFailure    ErrorCode = "INTEGRITY_FAILURE"
)

// sentinel errors, one per code, so callers can use errors.Is(err,
// types.ErrParentNotFound) without needing to know about CodedError.
var (
	ErrParentNotFound      = errors.New("parent not found")
	ErrIDAlreadyExists     = errors.New("id already exists")
	ErrIDNotFound          = errors.New("id not found")
	ErrCycle               = errors.New("cycle in entity tree")
	ErrCardinalityConflict = errors.New("cardinality conflict")
	ErrUnknownDisplay      = errors.New("unknown display")
	ErrCapacityExceeded    = errors.New("capacity exceeded")
	ErrInvalidPayload      = errors.New("invalid payload")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrUnsupportedVersion  = errors.New("unsupported snapshot version")
	ErrIntegrityFailure    = errors.New("integrity failure")
)

var codeSentinels = map[ErrorCode]error{
	CodeParentNotFound:      ErrParentNotFound,
	CodeIDAlreadyExists:     ErrIDAlreadyExists,
	CodeIDNotFound:          ErrIDNotFound,
	CodeCycle:               ErrCycle,
	CodeCardinalityConflict: ErrCardinalityConflict,
	CodeUnknownDisplay:      ErrUnknownDisplay,
	CodeCapacityExceeded:    ErrCapacityExceeded,
	CodeInvalidPayload:      ErrInvalidPayload,
	CodeConstraintViolation: ErrConstraintViolation,
	CodeUnsupportedVersion:  ErrUnsupportedVersion,
	CodeIntegrityFailure:    ErrIntegrityFailure,
}

// CodedError wraps a sentinel error with the specific detail that triggered
// it, so logs and the delivery channel's direct_edit.error frame can carry a
// human-readable message while callers still match on the stable code via
// errors.Is/errors.As.
type CodedError struct {
	Code    ErrorCode
	Detail  string
	Primary string // optional subject, e.g. the entity id or field name
}

func (e *CodedError) Error() string {
	if e.Primary != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Detail, e.Primary)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

func (e *CodedError) Unwrap() error {
	if sentinel, ok := codeSentinels[e.Code]; ok {
		return sentinel
	}
	return nil
}

// NewCodedError builds a CodedError for code, annotated with detail and an
// optional subject (entity id, field name, etc).
func NewCodedError(code ErrorCode, subject, detail string) *CodedError {
	return &CodedError{Code: code, Primary: subject, Detail: detail}
}
