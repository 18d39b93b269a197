package utils

import (
	"errors"
	"fmt"
)

// ErrorKind classifies service failures. Every workflow error carries exactly
// one kind; callers branch on the kind, not on message text.
type ErrorKind int

const (
	// ErrorKindValidation: missing or malformed input; the operation was never attempted.
	ErrorKindValidation ErrorKind = iota
	// ErrorKindNotFound: a referenced order, product, facility or item does not exist.
	ErrorKindNotFound
	// ErrorKindPolicy: the request violates a business rule (e.g. re-reserving
	// more than was originally reserved).
	ErrorKindPolicy
	// ErrorKindInfrastructure: an underlying persistence/service failure; the
	// whole operation rolled back.
	ErrorKindInfrastructure
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindValidation:
		return "validation"
	case ErrorKindNotFound:
		return "not_found"
	case ErrorKindPolicy:
		return "policy"
	case ErrorKindInfrastructure:
		return "infrastructure"
	default:
		return "unknown"
	}
}

type ServiceError struct {
	Kind ErrorKind
	Op   string // e.g. "workflow.ReserveInventory"
	Err  error
}

func (e *ServiceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func NewValidationError(op string, format string, args ...any) error {
	return &ServiceError{Kind: ErrorKindValidation, Op: op, Err: fmt.Errorf(format, args...)}
}

func NewNotFoundError(op string, format string, args ...any) error {
	return &ServiceError{Kind: ErrorKindNotFound, Op: op, Err: fmt.Errorf(format, args...)}
}

func NewPolicyError(op string, format string, args ...any) error {
	return &ServiceError{Kind: ErrorKindPolicy, Op: op, Err: fmt.Errorf(format, args...)}
}

// WrapInfrastructure wraps a persistence/service failure; the underlying
// message stays visible to the caller.
func WrapInfrastructure(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ServiceError{Kind: ErrorKindInfrastructure, Op: op, Err: err}
}

// KindOf extracts the error kind; unrecognized errors count as infrastructure.
func KindOf(err error) ErrorKind {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ErrorKindInfrastructure
}

func IsKind(err error, kind ErrorKind) bool {
	var se *ServiceError
	return errors.As(err, &se) && se.Kind == kind
}
