package gorient

import (
	"context"
	"fmt"
	"reflect"
	"strings"
)

// Project populates a fresh DTO of type D from the record's property bag.
// Fields are matched to properties case-insensitively by name; a
// `gorient:"name"` tag renames the property a field reads, and unexported or
// `gorient:"-"` fields are skipped. Properties the DTO does not declare are
// ignored and absent properties leave the field's zero value, so one record
// can feed projections of different widths. Values go through the same
// coercion as entity reads. A nil record yields (nil, nil).
func Project[D any](rec Record) (*D, error) {
	if rec == nil {
		return nil, nil
	}
	typ := reflect.TypeOf((*D)(nil)).Elem()
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("projection type %s must be a struct", typ)
	}

	props := make(map[string]any, len(rec.PropertyNames()))
	for _, name := range rec.PropertyNames() {
		if v, ok := rec.Get(name); ok {
			props[strings.ToLower(name)] = v
		}
	}

	out := reflect.New(typ)
	for i := 0; i < typ.NumField(); i++ {
		sf := typ.Field(i)
		if !sf.IsExported() {
			continue
		}
		name := sf.Name
		if tag, ok := sf.Tag.Lookup("gorient"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}

		raw, ok := props[strings.ToLower(name)]
		if !ok || raw == nil {
			continue
		}
		value, err := coerce(raw, sf.Type)
		if err != nil {
			return nil, fmt.Errorf("project %s.%s: %w", typ.Name(), sf.Name, err)
		}
		out.Elem().Field(i).Set(value)
	}
	return out.Interface().(*D), nil
}

// QueryProjection executes read statement text and projects every returned
// row onto D. The statement usually carries an explicit projection list
// (SELECT name, age FROM ...); whole-vertex rows work too when D's fields
// name record properties.
func QueryProjection[D any](ctx context.Context, tmpl *Template, text string, params ...any) ([]*D, error) {
	recs, err := tmpl.QueryRecords(ctx, text, params...)
	if err != nil {
		return nil, err
	}
	out := make([]*D, 0, len(recs))
	for _, rec := range recs {
		dto, err := Project[D](rec)
		if err != nil {
			return nil, err
		}
		out = append(out, dto)
	}
	return out, nil
}
