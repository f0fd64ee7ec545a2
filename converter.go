package gorient

import (
	"fmt"
	"reflect"
	"time"

	"gorient/mapping"
)

// Converter is the bidirectional mapper between domain objects and records.
// It owns identity assignment, version read-back, type coercion and
// lifecycle hook invocation. Stateless apart from the registry; safe for
// concurrent use.
type Converter struct {
	registry *mapping.Registry
}

// NewConverter creates a converter over the given registry.
func NewConverter(registry *mapping.Registry) *Converter {
	return &Converter{registry: registry}
}

var (
	timeType = reflect.TypeOf(time.Time{})
	ridType  = reflect.TypeOf(RID(""))
)

// Write copies every plain property of the entity onto the record.
// Identity, version, edge and transient properties are excluded: identity
// and version are engine-managed, edges are written by the relationship
// layer, transients never persist. Nil pointer values are written as
// explicit nulls so an update clears stale properties instead of leaving
// them behind.
func (c *Converter) Write(entity any, rec Record) error {
	if entity == nil {
		return fmt.Errorf("entity must not be nil")
	}
	model := c.registry.Of(entity)

	for _, prop := range model.PlainProperties() {
		fv := model.FieldValue(entity, prop)
		if fv.Kind() == reflect.Pointer {
			if fv.IsNil() {
				rec.Set(prop.RecordName, nil)
				continue
			}
			fv = fv.Elem()
		}
		rec.Set(prop.RecordName, fv.Interface())
	}
	return nil
}

// Read instantiates a fresh value of typ and populates it from the record:
// identity first, then every plain property with type coercion, then the
// version counter. The post-load hook runs as the last step. A nil record
// propagates "not found" by returning nil without an error.
func (c *Converter) Read(typ reflect.Type, rec Record) (any, error) {
	if rec == nil {
		return nil, nil
	}
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	model := c.registry.GetOrBuild(typ)

	instance := reflect.New(typ).Interface()

	if model.Identity != nil {
		if err := c.setIdentity(model, instance, rec.Identity()); err != nil {
			return nil, err
		}
	}

	for _, prop := range model.PlainProperties() {
		raw, ok := rec.Get(prop.RecordName)
		if !ok || raw == nil {
			continue
		}
		value, err := coerce(raw, prop.Type)
		if err != nil {
			return nil, fmt.Errorf("read %s.%s: %w", model.Type.Name(), prop.LogicalName, err)
		}
		model.SetFieldValue(instance, prop, value)
	}

	if model.Version != nil {
		value, err := coerce(rec.Version(), model.Version.Type)
		if err != nil {
			return nil, fmt.Errorf("read %s version: %w", model.Type.Name(), err)
		}
		model.SetFieldValue(instance, model.Version, value)
	}

	mapping.InvokePostLoad(instance)
	return instance, nil
}

// setIdentity writes the record's native identity into the entity's
// identity field, which may be declared as RID or as a plain string.
func (c *Converter) setIdentity(model *mapping.MappedEntity, instance any, rid RID) error {
	t := model.Identity.Type
	switch {
	case t == ridType:
		model.SetFieldValue(instance, model.Identity, reflect.ValueOf(rid))
	case t.Kind() == reflect.String:
		model.SetFieldValue(instance, model.Identity, reflect.ValueOf(string(rid)).Convert(t))
	case t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.String:
		ptr := reflect.New(t.Elem())
		ptr.Elem().Set(reflect.ValueOf(string(rid)).Convert(t.Elem()))
		model.SetFieldValue(instance, model.Identity, ptr)
	default:
		return mapping.ConfigurationError{
			Entity:   model.Type.Name(),
			Property: model.Identity.LogicalName,
			Reason:   fmt.Sprintf("identity field must be gorient.RID or string, not %s", t),
		}
	}
	return nil
}

// coerce adapts a stored value to the declared field type: direct
// assignment, value/pointer adaptation, numeric and string conversions, and
// the temporal mapping between the record layer's native timestamps and
// time.Time fields (stored epoch milliseconds are accepted for drivers that
// persist times numerically).
func coerce(raw any, target reflect.Type) (reflect.Value, error) {
	rv := reflect.ValueOf(raw)

	if ts, ok := temporalFor(raw, target); ok {
		return ts, nil
	}

	if rv.Type().AssignableTo(target) {
		return rv, nil
	}

	if target.Kind() == reflect.Pointer {
		inner, err := coerce(raw, target.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		ptr := reflect.New(target.Elem())
		ptr.Elem().Set(inner)
		return ptr, nil
	}

	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		return coerce(rv.Elem().Interface(), target)
	}

	if rv.Type().ConvertibleTo(target) && convertSafe(rv.Type(), target) {
		return rv.Convert(target), nil
	}

	return reflect.Value{}, fmt.Errorf("cannot coerce %T into %s", raw, target)
}

// temporalFor maps native timestamp representations onto time.Time fields.
func temporalFor(raw any, target reflect.Type) (reflect.Value, bool) {
	if target != timeType {
		return reflect.Value{}, false
	}
	switch v := raw.(type) {
	case time.Time:
		return reflect.ValueOf(v), true
	case int64:
		return reflect.ValueOf(time.UnixMilli(v)), true
	}
	return reflect.Value{}, false
}

// convertSafe rejects the lossy string<->number conversions reflect would
// otherwise happily perform (e.g. int 65 -> "A").
func convertSafe(from, to reflect.Type) bool {
	fromNum := isNumeric(from.Kind())
	toNum := isNumeric(to.Kind())
	if fromNum != toNum {
		return false
	}
	return true
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
