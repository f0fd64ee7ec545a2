package gorient

import (
	"errors"
	"fmt"

	"gorient/mapping"
)

// IdentityMissingError is raised by persistence operations that require an
// existing identity, such as deleting an entity whose identity field is
// empty or mapping a type with no identity property at save time.
type IdentityMissingError struct {
	Entity    string
	Operation string
}

func (e IdentityMissingError) Error() string {
	return fmt.Sprintf("cannot %s %s: no identity value", e.Operation, e.Entity)
}

// IsIdentityMissing checks for an IdentityMissingError.
func IsIdentityMissing(err error) bool {
	var target IdentityMissingError
	return errors.As(err, &target)
}

// DataAccessError wraps a lower-level session failure on a write path.
// Read-path failures degrade to "not found" instead (logged, not raised),
// because callers are expected to tolerate absence; silently losing a write
// is far worse than a spurious error, so write failures always propagate.
type DataAccessError struct {
	Operation string
	Err       error
}

func (e DataAccessError) Error() string {
	return fmt.Sprintf("data access failure during %s: %v", e.Operation, e.Err)
}

func (e DataAccessError) Unwrap() error { return e.Err }

// IsDataAccess checks for a DataAccessError.
func IsDataAccess(err error) bool {
	var target DataAccessError
	return errors.As(err, &target)
}

// ConflictError reports an optimistic concurrency conflict: the record's
// stored version no longer matches the version the caller loaded. Retry is
// left to the application; the library never retries.
type ConflictError struct {
	RecordName string
	RID        RID
	Expected   int
	Actual     int
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("version conflict on %s %s: expected %d, stored %d",
		e.RecordName, e.RID, e.Expected, e.Actual)
}

// IsConflict checks for a ConflictError.
func IsConflict(err error) bool {
	var target ConflictError
	return errors.As(err, &target)
}

// IsMappingConfiguration checks whether an error belongs to the build-time
// configuration family (bad mapping metadata, unsupported predicate
// keywords, unresolvable property names).
func IsMappingConfiguration(err error) bool {
	return mapping.IsConfigurationError(err)
}
