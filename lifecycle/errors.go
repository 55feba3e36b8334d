package lifecycle

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors for every way a case operation can be refused. All of them are
// recoverable by the caller: the request is rejected and no state changes.
var (
	// ErrForbidden is returned when the actor's role does not permit the operation
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidTransition is returned when the requested state change is not
	// permitted from the case's current status
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrRateLimited is returned when case creation is throttled
	ErrRateLimited = errors.New("rate limited")

	// ErrNotFound is returned when a case or referenced user is absent
	ErrNotFound = errors.New("not found")

	// ErrVoteRejected is returned for a duplicate vote or a vote on a case that is
	// not open for voting
	ErrVoteRejected = errors.New("vote rejected")

	// ErrConflict is returned when a concurrent mutation lost a race
	ErrConflict = errors.New("conflict")
)

// ValidationError carries field-level detail for a payload that failed schema
// validation
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// newValidationError builds a ValidationError from the collected field problems,
// or returns nil when the payload is clean
func newValidationError(fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}
