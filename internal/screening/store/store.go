// Package store persists screened identities. Every backend upserts by the
// (name, dob, country) triple: verdict fields and updated_at are overwritten,
// created_at is written only when the record is first inserted.
package store

import (
	"errors"
	"fmt"

	"screener/internal/screening/models"
	"screener/pkg/platform/sentinel"
)

// ErrNotFound is returned by Find when no record exists for an identity.
var ErrNotFound = fmt.Errorf("person record: %w", sentinel.ErrNotFound)

// RecordFailure is one record that could not be upserted.
type RecordFailure struct {
	Key models.IdentityKey
	Err error
}

// PersistenceError reports a bulk upsert that did not fully succeed. Err is set
// when the whole batch failed; otherwise Failures lists the records that did.
type PersistenceError struct {
	Attempted int
	Failures  []RecordFailure
	Err       error
}

func (e *PersistenceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("persist %d person records: %v", e.Attempted, e.Err)
	}
	if len(e.Failures) == 0 {
		return fmt.Sprintf("persist %d person records: unknown failure", e.Attempted)
	}
	return fmt.Sprintf("persist person records: %d of %d failed, first: %v",
		len(e.Failures), e.Attempted, e.Failures[0].Err)
}

func (e *PersistenceError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures)+1)
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// Failed returns how many records were not persisted.
func (e *PersistenceError) Failed() int {
	if e.Err != nil {
		return e.Attempted
	}
	return len(e.Failures)
}

// AsPersistenceError extracts a PersistenceError from err.
func AsPersistenceError(err error) (*PersistenceError, bool) {
	var pe *PersistenceError
	ok := errors.As(err, &pe)
	return pe, ok
}
