// Package gorient maps Go structs onto the vertices of an OrientDB-style
// graph-document database and synthesizes queries from repository method
// names. The library surface is composed of a small set of collaborators:
// the mapping.Registry holds per-type persistence metadata, the query
// package parses and renders derived queries, the Template executes
// operations against a Session, and Repository[T] is the typed facade most
// applications use.
package gorient

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// RID is the database's native record identity reference, formatted
// "#cluster:position" for OrientDB-compatible engines. Driver adapters for
// engines with other identity schemes may store their native identifier
// verbatim.
type RID string

// Valid reports whether the RID is non-empty.
func (r RID) Valid() bool { return r != "" }

func (r RID) String() string { return string(r) }

// ParseRID parses the "#cluster:position" form. Malformed input returns an
// error; callers that favor upsert semantics (see Template.Save) treat a
// malformed string identity as "no identity" rather than failing.
func ParseRID(s string) (RID, error) {
	rest, ok := strings.CutPrefix(s, "#")
	if !ok {
		return "", fmt.Errorf("invalid record id %q: missing # prefix", s)
	}
	cluster, position, ok := strings.Cut(rest, ":")
	if !ok {
		return "", fmt.Errorf("invalid record id %q: want #cluster:position", s)
	}
	if _, err := strconv.Atoi(cluster); err != nil {
		return "", fmt.Errorf("invalid record id %q: bad cluster: %w", s, err)
	}
	if _, err := strconv.ParseInt(position, 10, 64); err != nil {
		return "", fmt.Errorf("invalid record id %q: bad position: %w", s, err)
	}
	return RID(s), nil
}

// Record is one stored vertex: a property bag with a native identity and an
// engine-managed version counter.
type Record interface {
	// Identity returns the record's native identity, empty for a record
	// that has not been saved yet.
	Identity() RID
	// Version returns the engine's internal version counter.
	Version() int
	// Get reads a property value; ok is false when the property is absent.
	Get(name string) (value any, ok bool)
	// Set writes a property value. A nil value clears the property
	// explicitly rather than removing it.
	Set(name string, value any)
	// PropertyNames lists the record's property names.
	PropertyNames() []string
}

// Session is one unit of database access. A session is never shared between
// two concurrent logical operations: it is exclusively owned for the
// duration of one call or one ambient transaction.
type Session interface {
	// Load fetches a record by identity. A missing record yields
	// (nil, nil).
	Load(ctx context.Context, rid RID) (Record, error)
	// Query executes read statement text with positional parameters.
	Query(ctx context.Context, text string, params ...any) ([]Record, error)
	// Command executes side-effecting statement text and reports the
	// number of affected records.
	Command(ctx context.Context, text string, params ...any) (int, error)
	// NewRecord creates an unsaved record of the given vertex class.
	NewRecord(recordName string) Record
	// Save persists a record, assigning an identity on first save and
	// bumping the version counter.
	Save(ctx context.Context, rec Record) error
	// Delete removes a record by identity.
	Delete(ctx context.Context, rid RID) error

	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Close(ctx context.Context) error
}

// Pool hands out sessions. Implementations decide pooling, reconnection and
// timeouts; callers own Close on every acquired session.
type Pool interface {
	Acquire(ctx context.Context) (Session, error)
}
