// Package schema derives DDL from registered entity models: one vertex
// class per entity and one typed property per plain mapped field.
package schema

import (
	"context"
	"reflect"
	"time"

	"go.uber.org/zap"

	"gorient"
	"gorient/mapping"
)

// Generator renders and applies CREATE CLASS / CREATE PROPERTY statements.
// Statements carry IF NOT EXISTS, so applying the schema twice is harmless.
type Generator struct {
	registry *mapping.Registry
	logger   *zap.Logger
}

// NewGenerator creates a generator over the registry. A nil logger disables
// logging.
func NewGenerator(registry *mapping.Registry, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{registry: registry, logger: logger}
}

// Statements renders the DDL for one entity type: the vertex class first,
// then a property statement per plain field with a mappable type. Fields
// whose Go type has no database counterpart are skipped; they still persist
// schemaless.
func (g *Generator) Statements(typ reflect.Type) []string {
	model := g.registry.GetOrBuild(typ)

	out := []string{"CREATE CLASS " + model.RecordName + " IF NOT EXISTS EXTENDS V"}
	for _, prop := range model.PlainProperties() {
		dbType, ok := propertyType(prop.Type)
		if !ok {
			g.logger.Debug("field type has no schema counterpart, left schemaless",
				zap.String("type", model.Type.Name()),
				zap.String("property", prop.LogicalName),
			)
			continue
		}
		out = append(out, "CREATE PROPERTY "+model.RecordName+"."+prop.RecordName+" IF NOT EXISTS "+dbType)
	}
	return out
}

// Apply executes the DDL for every given type through the template.
func (g *Generator) Apply(ctx context.Context, tmpl *gorient.Template, types ...reflect.Type) error {
	for _, typ := range types {
		for _, stmt := range g.Statements(typ) {
			if _, err := tmpl.Command(ctx, stmt); err != nil {
				return err
			}
			g.logger.Info("schema statement applied", zap.String("statement", stmt))
		}
	}
	return nil
}

var timeType = reflect.TypeOf(time.Time{})

// propertyType maps a Go field type onto the engine's property type.
func propertyType(t reflect.Type) (string, bool) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == timeType {
		return "DATETIME", true
	}
	switch t.Kind() {
	case reflect.String:
		return "STRING", true
	case reflect.Bool:
		return "BOOLEAN", true
	case reflect.Int8:
		return "BYTE", true
	case reflect.Int16:
		return "SHORT", true
	case reflect.Int32:
		return "INTEGER", true
	case reflect.Int, reflect.Int64:
		return "LONG", true
	case reflect.Float32:
		return "FLOAT", true
	case reflect.Float64:
		return "DOUBLE", true
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return "BINARY", true
		}
	}
	return "", false
}
