package study

import (
	"errors"
	"fmt"
)

// Kind is one of the six error categories the core surfaces. The
// scheduler and classifier packages never return errors — only Review
// Commit and Queue Builder do, and always as a *Error carrying one of
// these kinds.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindOwnership  Kind = "ownership"
	KindConflict   Kind = "conflict"
	KindStore      Kind = "store"
	KindInternal   Kind = "internal"
)

// Error is the domain error type this package returns. Wrap it with
// fmt.Errorf("...: %w", err) where additional context helps, and unwrap it
// at the HTTP boundary with errors.As to pick the wire status code.
type Error struct {
	Kind    Kind
	Message string
	Err     error // optional underlying cause, e.g. a *sql error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func wrapError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// ValidationError reports input out of range. Callers must not have
// mutated anything before this is returned.
func ValidationError(format string, args ...any) *Error {
	return newError(KindValidation, fmt.Sprintf(format, args...))
}

// NotFoundError reports a missing card, session, or user.
func NotFoundError(format string, args ...any) *Error {
	return newError(KindNotFound, fmt.Sprintf(format, args...))
}

// OwnershipError reports a card that exists but is not owned by the acting
// user. This must be surfaced with the same opacity as NotFoundError at
// the wire boundary — never disclose existence.
func OwnershipError(format string, args ...any) *Error {
	return newError(KindOwnership, fmt.Sprintf(format, args...))
}

// ConflictError reports a lost optimistic-concurrency race. The caller may
// retry.
func ConflictError(format string, args ...any) *Error {
	return newError(KindConflict, fmt.Sprintf(format, args...))
}

// StoreError wraps a transport or transaction failure from the store.
// Transient; the caller may retry. Never represents a partial commit.
func StoreError(cause error, format string, args ...any) *Error {
	return wrapError(KindStore, fmt.Sprintf(format, args...), cause)
}

// InternalError reports an invariant violation, e.g. out-of-range ease read
// back from the store. Log and fail loud; do not self-repair silently.
func InternalError(format string, args ...any) *Error {
	return newError(KindInternal, fmt.Sprintf(format, args...))
}

// Is makes errors.Is(err, target) match any *Error target of the same kind,
// e.g. errors.Is(err, NotFoundError("")), rather than a specific message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf extracts the Kind of err if it is (or wraps) a *Error, returning
// (KindInternal, false) otherwise so callers can default to the most
// conservative wire mapping for errors this package did not originate.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return KindInternal, false
}
