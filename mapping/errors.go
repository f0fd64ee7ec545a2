package mapping

import (
	"errors"
	"fmt"
)

// ConfigurationError reports a mapping mistake in a domain type's metadata.
// Configuration errors indicate a programming error, not a runtime
// condition: they are raised when a model or derived query is built, never
// per call.
type ConfigurationError struct {
	Entity   string // the domain type
	Property string // the offending property, if applicable
	Reason   string
}

func (e ConfigurationError) Error() string {
	if e.Property != "" {
		return fmt.Sprintf("mapping configuration error on %s.%s: %s", e.Entity, e.Property, e.Reason)
	}
	return fmt.Sprintf("mapping configuration error on %s: %s", e.Entity, e.Reason)
}

// MappingConfiguration marks this error as a build-time configuration
// failure. Other packages tag their own error types with the same method so
// IsConfigurationError recognizes the whole family.
func (ConfigurationError) MappingConfiguration() {}

type configurationMarker interface {
	MappingConfiguration()
}

// IsConfigurationError checks whether an error belongs to the build-time
// mapping-configuration family (bad tags, unsupported predicate keywords,
// unresolvable property paths).
func IsConfigurationError(err error) bool {
	var marker configurationMarker
	return errors.As(err, &marker)
}
