package mapping

import (
	"reflect"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Registry builds and caches MappedEntity models. It is safe for concurrent
// use: reads take a shared lock and a lost first-population race is harmless
// because building is a pure function of the type.
//
// The registry is meant to be constructed once at the application's
// composition root and injected wherever mapping metadata is needed.
type Registry struct {
	mu       sync.RWMutex
	entities map[reflect.Type]*MappedEntity
	logger   *zap.Logger
}

// NewRegistry creates an empty registry. A nil logger disables logging.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		entities: make(map[reflect.Type]*MappedEntity),
		logger:   logger,
	}
}

// GetOrBuild returns the cached model for the given struct type, building it
// on first access. Pointer types are unwrapped. Building never fails for a
// well-formed struct: a missing identity field leaves Identity nil and is
// surfaced by persistence operations that require one.
func (r *Registry) GetOrBuild(t reflect.Type) *MappedEntity {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	r.mu.RLock()
	entity, ok := r.entities[t]
	r.mu.RUnlock()
	if ok {
		return entity
	}

	entity = r.build(t)

	r.mu.Lock()
	if existing, ok := r.entities[t]; ok {
		entity = existing
	} else {
		r.entities[t] = entity
	}
	r.mu.Unlock()

	return entity
}

// Of is a convenience that resolves the model for a value's dynamic type.
func (r *Registry) Of(instance any) *MappedEntity {
	return r.GetOrBuild(reflect.TypeOf(instance))
}

func (r *Registry) build(t reflect.Type) *MappedEntity {
	entity := &MappedEntity{
		Type:       t,
		RecordName: recordNameFor(t),
		byLower:    make(map[string]*MappedProperty),
	}

	for _, sf := range reflect.VisibleFields(t) {
		if sf.Anonymous || !sf.IsExported() {
			continue
		}

		prop := parseFieldTag(sf)
		entity.Properties = append(entity.Properties, prop)
		entity.byLower[strings.ToLower(prop.LogicalName)] = prop
		if prop.RecordName != prop.LogicalName {
			entity.byLower[strings.ToLower(prop.RecordName)] = prop
		}

		switch prop.Role {
		case RoleIdentity:
			// Last one wins, but a duplicate usually indicates a tagging
			// mistake, so make it visible.
			if entity.Identity != nil {
				r.logger.Warn("duplicate identity property, last one wins",
					zap.String("type", t.Name()),
					zap.String("previous", entity.Identity.LogicalName),
					zap.String("current", prop.LogicalName),
				)
			}
			entity.Identity = prop
		case RoleVersion:
			if entity.Version != nil {
				r.logger.Warn("duplicate version property, last one wins",
					zap.String("type", t.Name()),
					zap.String("previous", entity.Version.LogicalName),
					zap.String("current", prop.LogicalName),
				)
			}
			entity.Version = prop
		}
	}

	r.logger.Debug("entity model built",
		zap.String("type", t.Name()),
		zap.String("recordName", entity.RecordName),
		zap.Int("properties", len(entity.Properties)),
	)

	return entity
}

// recordNameFor resolves the vertex class name: the VertexClassNamer
// override when the type (or its pointer) implements it, else the simple
// type name.
func recordNameFor(t reflect.Type) string {
	if namer, ok := reflect.New(t).Interface().(VertexClassNamer); ok {
		if name := namer.VertexClassName(); name != "" {
			return name
		}
	}
	return t.Name()
}

// parseFieldTag derives a MappedProperty from a struct field and its
// gorient tag. Tag grammar:
//
//	gorient:"recordName"              rename the record property
//	gorient:"-"                       transient, excluded from writes
//	gorient:",id"                     identity property
//	gorient:",version"                version property
//	gorient:",transient"              transient
//	gorient:"links,edge=Knows,out"    edge of type Knows, outgoing
//
// Direction tokens are out, in and both; out is the default.
func parseFieldTag(sf reflect.StructField) *MappedProperty {
	prop := &MappedProperty{
		LogicalName: sf.Name,
		RecordName:  defaultRecordName(sf.Name),
		Type:        sf.Type,
		Role:        RolePlain,
		index:       sf.Index,
	}

	tag, ok := sf.Tag.Lookup("gorient")
	if !ok {
		return prop
	}
	if tag == "-" {
		prop.Role = RoleTransient
		return prop
	}

	parts := strings.Split(tag, ",")
	if parts[0] != "" {
		prop.RecordName = parts[0]
	}
	for _, opt := range parts[1:] {
		switch {
		case opt == "id":
			prop.Role = RoleIdentity
		case opt == "version":
			prop.Role = RoleVersion
		case opt == "transient":
			prop.Role = RoleTransient
		case strings.HasPrefix(opt, "edge="):
			prop.Role = RoleEdge
			prop.EdgeType = strings.TrimPrefix(opt, "edge=")
		case opt == "out":
			prop.EdgeDirection = Outgoing
		case opt == "in":
			prop.EdgeDirection = Incoming
		case opt == "both":
			prop.EdgeDirection = Both
		}
	}
	return prop
}

// defaultRecordName lower-cases the first rune of the field name so that Go
// exported fields map onto the conventional camelCase record properties
// (FirstName -> firstName).
func defaultRecordName(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}
