// Package mapping builds and caches the persistence metadata for domain
// types: which struct maps to which vertex class, which field carries the
// record identity, which carries the version counter, and how every other
// field is named and typed at the record level.
package mapping

import (
	"reflect"
	"strings"
)

// Role classifies how a mapped property participates in persistence.
// Exactly one role is assigned per property at registration time.
type Role int

const (
	RolePlain Role = iota
	RoleIdentity
	RoleVersion
	RoleEdge
	RoleTransient
)

func (r Role) String() string {
	switch r {
	case RoleIdentity:
		return "identity"
	case RoleVersion:
		return "version"
	case RoleEdge:
		return "edge"
	case RoleTransient:
		return "transient"
	default:
		return "plain"
	}
}

// Direction indicates which way an edge property points.
type Direction int

const (
	Outgoing Direction = iota
	Incoming
	Both
)

// MappedProperty describes a single struct field and how it maps onto a
// record property.
type MappedProperty struct {
	// LogicalName is the Go struct field name.
	LogicalName string
	// RecordName is the property name at the record level. Defaults to the
	// field name; overridable with the first element of the gorient tag.
	RecordName string
	// Type is the declared Go type of the field.
	Type reflect.Type
	// Role determines participation in read/write loops.
	Role Role
	// EdgeType and EdgeDirection are only meaningful when Role == RoleEdge.
	EdgeType      string
	EdgeDirection Direction

	index []int // reflect field index path
}

// IsPlain reports whether the property participates in ordinary
// property read/write loops.
func (p *MappedProperty) IsPlain() bool { return p.Role == RolePlain }

// MappedEntity is the immutable persistence model for one domain type.
// Built exactly once per type and cached by the Registry.
type MappedEntity struct {
	// Type is the mapped struct type (never a pointer type).
	Type reflect.Type
	// RecordName is the vertex class name records of this entity live in.
	RecordName string
	// Identity holds the record identity property, or nil when the type
	// declares none. Absence is not an error here; persistence operations
	// that need an identity fail at call time instead.
	Identity *MappedProperty
	// Version holds the version property, or nil.
	Version *MappedProperty
	// Properties lists every mapped property in declaration order,
	// including identity, version, edge and transient entries.
	Properties []*MappedProperty

	byLower map[string]*MappedProperty
}

// Property resolves a property by its logical (field) name,
// case-insensitively. Returns nil when the entity declares no such field.
func (e *MappedEntity) Property(name string) *MappedProperty {
	return e.byLower[strings.ToLower(name)]
}

// PlainProperties returns the properties that participate in ordinary
// record read/write, in declaration order.
func (e *MappedEntity) PlainProperties() []*MappedProperty {
	out := make([]*MappedProperty, 0, len(e.Properties))
	for _, p := range e.Properties {
		if p.IsPlain() {
			out = append(out, p)
		}
	}
	return out
}

// FieldValue reads the given property from an entity instance.
// The instance may be a struct or a pointer to one.
func (e *MappedEntity) FieldValue(instance any, p *MappedProperty) reflect.Value {
	v := reflect.ValueOf(instance)
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	return v.FieldByIndex(p.index)
}

// SetFieldValue writes the given property on an entity instance, which must
// be a pointer to a struct.
func (e *MappedEntity) SetFieldValue(instance any, p *MappedProperty, value reflect.Value) {
	reflect.ValueOf(instance).Elem().FieldByIndex(p.index).Set(value)
}

// IdentityValue returns the current identity field value of an instance,
// or an invalid Value when no identity property is declared.
func (e *MappedEntity) IdentityValue(instance any) reflect.Value {
	if e.Identity == nil {
		return reflect.Value{}
	}
	return e.FieldValue(instance, e.Identity)
}

// VertexClassNamer lets a domain type override the vertex class name its
// records are stored under. Without it the simple type name is used.
type VertexClassNamer interface {
	VertexClassName() string
}
