// Package domainerr holds the error kinds shared by every aggregate.
//
// Aggregates declare precise sentinels that wrap one of these kinds, so a caller
// can match either the exact failure or its category:
//
//	var ErrOrderNotFound = errors.Wrap(domainerr.ErrNotFound, "order")
//	errors.Is(err, domainerr.ErrNotFound) // true
package domainerr

import "github.com/pkg/errors"

var (
	// ErrInvalidTransition reports a state guard violation.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrInsufficientStock reports a reservation larger than the on-hand quantity.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrValidation reports a field-level invariant violation.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound reports a missing entity.
	ErrNotFound = errors.New("not found")
	// ErrConflict reports a concurrent modification detected at commit time.
	ErrConflict = errors.New("conflict")
)

// Kind returns the kind err belongs to, or nil when it is not a domain error.
func Kind(err error) error {
	for _, kind := range []error{ErrInvalidTransition, ErrInsufficientStock, ErrValidation, ErrNotFound, ErrConflict} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
