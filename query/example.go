package query

import (
	"fmt"
	"reflect"
	"strings"

	"gorient/mapping"
)

// StringMatcher selects how string-valued probe fields are compared.
type StringMatcher int

const (
	MatchExact StringMatcher = iota
	MatchContaining
	MatchStartingWith
	MatchEndingWith
)

// ExampleMatcher configures query-by-example probe matching.
type ExampleMatcher struct {
	Matcher    StringMatcher
	IgnoreCase bool
}

// Example pairs a probe object with its matcher. Every set field of the
// probe becomes one conjunctive equality or string-match condition; nil
// pointers and zero values are treated as unset.
type Example struct {
	Probe   any
	Matcher ExampleMatcher
}

// ExampleOf creates an example with exact, case-sensitive matching.
func ExampleOf(probe any) Example {
	return Example{Probe: probe}
}

// ExampleQuery is the rendered probe filter: conjunctive condition
// fragments plus the bind values they consume, in order.
type ExampleQuery struct {
	Conditions []string
	Parameters []any
}

// WhereClause joins the conditions with " AND ", or returns "" when the
// probe had no set fields (matching everything).
func (q ExampleQuery) WhereClause() string {
	return strings.Join(q.Conditions, " AND ")
}

// BuildExample derives an ad-hoc conjunctive predicate set from the probe's
// set fields. This is a second, simpler predicate-construction path,
// independent of method-name parsing: only plain properties participate and
// the declared string matcher decides how string values compare.
func BuildExample(entity *mapping.MappedEntity, example Example) (ExampleQuery, error) {
	var out ExampleQuery
	if example.Probe == nil {
		return out, fmt.Errorf("example probe must not be nil")
	}
	if v := reflect.ValueOf(example.Probe); v.Kind() == reflect.Pointer && v.IsNil() {
		return out, fmt.Errorf("example probe must not be a nil %s", v.Type())
	}

	for _, prop := range entity.PlainProperties() {
		fv := entity.FieldValue(example.Probe, prop)
		if !fv.IsValid() || fv.IsZero() {
			continue
		}
		if fv.Kind() == reflect.Pointer {
			fv = fv.Elem()
		}
		value := fv.Interface()

		s, isString := value.(string)
		if !isString {
			out.Conditions = append(out.Conditions, prop.RecordName+" = ?")
			out.Parameters = append(out.Parameters, value)
			continue
		}

		switch example.Matcher.Matcher {
		case MatchContaining:
			out.Conditions = append(out.Conditions, prop.RecordName+" LIKE ?")
			out.Parameters = append(out.Parameters, "%"+s+"%")
		case MatchStartingWith:
			out.Conditions = append(out.Conditions, prop.RecordName+" LIKE ?")
			out.Parameters = append(out.Parameters, s+"%")
		case MatchEndingWith:
			out.Conditions = append(out.Conditions, prop.RecordName+" LIKE ?")
			out.Parameters = append(out.Parameters, "%"+s)
		default:
			if example.Matcher.IgnoreCase {
				out.Conditions = append(out.Conditions, prop.RecordName+".toLowerCase() = ?")
				out.Parameters = append(out.Parameters, strings.ToLower(s))
			} else {
				out.Conditions = append(out.Conditions, prop.RecordName+" = ?")
				out.Parameters = append(out.Parameters, s)
			}
		}
	}

	return out, nil
}

// RenderExampleSelect renders the probe filter as a SELECT with optional
// sort and pagination.
func RenderExampleSelect(recordName string, q ExampleQuery, sort SortSpec, pageable Pageable) string {
	var b strings.Builder
	b.WriteString("SELECT FROM ")
	b.WriteString(recordName)
	if len(q.Conditions) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(q.WhereClause())
	}
	writeSort(&b, sort)
	b.WriteString(PaginationClause(pageable))
	return b.String()
}

// RenderExampleCount renders the probe filter as a COUNT statement.
func RenderExampleCount(recordName string, q ExampleQuery) string {
	var b strings.Builder
	b.WriteString("SELECT count(*) as count FROM ")
	b.WriteString(recordName)
	if len(q.Conditions) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(q.WhereClause())
	}
	return b.String()
}
