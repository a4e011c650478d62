package domain

import (
	"errors"
	"fmt"
)

// Code identifies a class of failure that callers can act on
type Code string

const (
	CodeInvalidAmount            Code = "INVALID_AMOUNT"
	CodeNotAuthenticated         Code = "NOT_AUTHENTICATED"
	CodeNotAuthorized            Code = "NOT_AUTHORIZED"
	CodeProjectNotFound          Code = "PROJECT_NOT_FOUND"
	CodeProjectNotFundable       Code = "PROJECT_NOT_FUNDABLE"
	CodeConcurrentUpdateConflict Code = "CONCURRENT_UPDATE_CONFLICT"
	CodeInvestmentFailed         Code = "INVESTMENT_FAILED"

	CodeIdempotencyKeyReused  Code = "IDEMPOTENCY_KEY_REUSED"
	CodeInvestmentNotFound    Code = "INVESTMENT_NOT_FOUND"
	CodeInvalidArgument       Code = "INVALID_ARGUMENT"
	CodeInvalidTransition     Code = "INVALID_TRANSITION"
	CodeProjectHasInvestments Code = "PROJECT_HAS_INVESTMENTS"
	CodeInternal              Code = "INTERNAL"
)

var (
	// ErrNotFound is wrapped by repositories when a row does not exist
	ErrNotFound = errors.New("not found")

	// ErrDuplicateIdempotencyKey is returned by stores when an investor reuses an idempotency key
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrConflict is returned by stores when an optimistic version check or lock acquisition fails
	ErrConflict = errors.New("concurrent update conflict")

	// ErrAmountOutOfRange is returned when an amount does not fit the stored precision
	ErrAmountOutOfRange = errors.New("amount out of range")
)

// Error is the error type surfaced by use cases
type Error struct {
	Code    Code
	Op      string
	Message string
	Err     error
}

// NewError builds an Error for op with a message
func NewError(code Code, op, message string) *Error {
	return &Error{Code: code, Op: op, Message: message}
}

// Wrap builds an Error for op that keeps err as its cause
func Wrap(code Code, op string, err error) *Error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &Error{Code: code, Op: op, Message: msg, Err: err}
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the outermost *Error in err's chain.
// Errors that carry no code are reported as CodeInternal.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// IsCode reports whether any *Error in err's chain carries code
func IsCode(err error, code Code) bool {
	for err != nil {
		var de *Error
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}
