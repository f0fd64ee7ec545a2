package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gorient/mapping"
)

// StatementShape classifies a derived query by the statement it renders.
type StatementShape int

const (
	Select StatementShape = iota
	Count
	Exists
	Delete
)

func (s StatementShape) String() string {
	switch s {
	case Count:
		return "count"
	case Exists:
		return "exists"
	case Delete:
		return "delete"
	default:
		return "select"
	}
}

// Predicate is one leaf of the tree: a record-level property name bound to
// an operator.
type Predicate struct {
	Property string
	Operator Operator
}

// Fragment renders the predicate's SQL.
func (p Predicate) Fragment() string { return p.Operator.Fragment(p.Property) }

// PredicateTree is an ordered disjunction of conjunctions: the outer slice
// holds OR-groups, each an ordered slice of AND-predicates. Order mirrors
// the method name's left-to-right token order and is preserved verbatim in
// the rendered clause.
type PredicateTree [][]Predicate

// Empty reports whether the tree holds no predicates.
func (t PredicateTree) Empty() bool { return len(t) == 0 }

// Arity is the total number of positional arguments the tree consumes.
func (t PredicateTree) Arity() int {
	n := 0
	for _, group := range t {
		for _, p := range group {
			n += p.Operator.Arity()
		}
	}
	return n
}

// SortOrder is one (property, direction) pair of a sort specification.
type SortOrder struct {
	Property   string
	Descending bool
}

// SortSpec is an ordered list of sort orders.
type SortSpec []SortOrder

// UnsupportedPredicateError reports a predicate token that could not be
// resolved against the entity: either the operator keyword is outside the
// supported set or the property does not exist. It is raised when the
// derived query is built, never per call.
type UnsupportedPredicateError struct {
	Method string
	Token  string
}

func (e UnsupportedPredicateError) Error() string {
	return fmt.Sprintf("cannot derive query from %q: token %q does not resolve to a property and supported operator", e.Method, e.Token)
}

// MappingConfiguration tags this as a build-time configuration failure.
func (UnsupportedPredicateError) MappingConfiguration() {}

// DerivedQuery is the parse result for one repository method name. It is a
// pure value: cache it per method and bind fresh arguments on every call.
type DerivedQuery struct {
	Method string
	Shape  StatementShape
	Tree   PredicateTree
	Sort   SortSpec
	// Limit caps the result set; zero means unlimited.
	Limit int
}

// Arity is the number of positional arguments an invocation must supply.
func (q *DerivedQuery) Arity() int { return q.Tree.Arity() }

// BindParameters prepares the call arguments for execution, walking the tree
// in the same left-to-right order the clause was rendered in and applying
// each operator's value transformation (% wrapping for the substring
// operators).
func (q *DerivedQuery) BindParameters(args ...any) ([]any, error) {
	if len(args) != q.Arity() {
		return nil, fmt.Errorf("derived query %q takes %d parameters, got %d", q.Method, q.Arity(), len(args))
	}
	params := make([]any, 0, len(args))
	i := 0
	for _, group := range q.Tree {
		for _, p := range group {
			for n := 0; n < p.Operator.Arity(); n++ {
				params = append(params, p.Operator.PrepareParameter(args[i]))
				i++
			}
		}
	}
	return params, nil
}

var actionPattern = regexp.MustCompile(`^(find|read|get|query|search|count|exists|delete|remove)((?:Top|First)(\d*))?By`)

// Parse derives a query from a repository method name against the given
// entity model. It fails with an UnsupportedPredicateError when a token
// references an unknown property or an operator keyword outside the closed
// set; such failures should be treated as fatal at registration time.
func Parse(methodName string, entity *mapping.MappedEntity) (*DerivedQuery, error) {
	m := actionPattern.FindStringSubmatch(methodName)
	if m == nil {
		return nil, UnsupportedPredicateError{Method: methodName, Token: methodName}
	}

	q := &DerivedQuery{Method: methodName}
	switch m[1] {
	case "count":
		q.Shape = Count
	case "exists":
		q.Shape = Exists
	case "delete", "remove":
		q.Shape = Delete
	default:
		q.Shape = Select
	}
	if m[2] != "" {
		q.Limit = 1
		if m[3] != "" {
			n, err := strconv.Atoi(m[3])
			if err != nil || n <= 0 {
				return nil, UnsupportedPredicateError{Method: methodName, Token: m[2]}
			}
			q.Limit = n
		}
	}

	rest := methodName[len(m[0]):]

	// A trailing OrderBy clause applies to the whole query, not to any one
	// predicate group.
	if at := strings.LastIndex(rest, "OrderBy"); at >= 0 {
		sort, err := parseSort(methodName, rest[at+len("OrderBy"):], entity)
		if err != nil {
			return nil, err
		}
		q.Sort = sort
		rest = rest[:at]
	}

	if rest == "" {
		// deleteBy with no predicates would wipe the whole class; reject it.
		if q.Shape == Delete {
			return nil, UnsupportedPredicateError{Method: methodName, Token: "By"}
		}
		return q, nil
	}

	for _, orPart := range splitKeyword(rest, "Or") {
		var group []Predicate
		for _, token := range splitKeyword(orPart, "And") {
			pred, err := parseToken(methodName, token, entity)
			if err != nil {
				return nil, err
			}
			group = append(group, pred)
		}
		q.Tree = append(q.Tree, group)
	}

	return q, nil
}

// parseToken decomposes one predicate token: longest-matching trailing
// operator keyword with a remainder that resolves to a property, else the
// whole token as a property with implicit equality.
func parseToken(method, token string, entity *mapping.MappedEntity) (Predicate, error) {
	for _, kw := range trailingKeywords(token) {
		name := token[:len(token)-len(kw.text)]
		if prop := entity.Property(name); prop != nil {
			return Predicate{Property: prop.RecordName, Operator: kw.op}, nil
		}
	}
	if prop := entity.Property(token); prop != nil {
		return Predicate{Property: prop.RecordName, Operator: Equals}, nil
	}
	return Predicate{}, UnsupportedPredicateError{Method: method, Token: token}
}

// parseSort reads an OrderBy suffix: one or more property names, each with
// an optional Asc or Desc (Asc by default).
func parseSort(method, clause string, entity *mapping.MappedEntity) (SortSpec, error) {
	var sort SortSpec
	rest := clause
	for rest != "" {
		prop, remainder := longestPropertyPrefix(rest, entity)
		if prop == nil {
			return nil, UnsupportedPredicateError{Method: method, Token: rest}
		}
		order := SortOrder{Property: prop.RecordName}
		switch {
		case strings.HasPrefix(remainder, "Desc"):
			order.Descending = true
			remainder = remainder[len("Desc"):]
		case strings.HasPrefix(remainder, "Asc"):
			remainder = remainder[len("Asc"):]
		}
		sort = append(sort, order)
		rest = remainder
	}
	if len(sort) == 0 {
		return nil, UnsupportedPredicateError{Method: method, Token: "OrderBy"}
	}
	return sort, nil
}

// longestPropertyPrefix finds the longest entity property that prefixes the
// clause, so AgeDescLastName resolves age before lastName.
func longestPropertyPrefix(clause string, entity *mapping.MappedEntity) (*mapping.MappedProperty, string) {
	lower := strings.ToLower(clause)
	var best *mapping.MappedProperty
	bestLen := 0
	for _, p := range entity.Properties {
		name := strings.ToLower(p.LogicalName)
		if len(name) > bestLen && strings.HasPrefix(lower, name) {
			best = p
			bestLen = len(name)
		}
	}
	if best == nil {
		return nil, clause
	}
	return best, clause[bestLen:]
}

// splitKeyword splits s on a camel-case keyword: the keyword must be
// followed by an upper-case rune (or end of string) so property names that
// merely contain the letters (Order, Analysis) are not split.
func splitKeyword(s, kw string) []string {
	var parts []string
	start := 0
	for i := 0; i+len(kw) <= len(s); i++ {
		if s[i:i+len(kw)] != kw || i == start {
			continue
		}
		next := i + len(kw)
		if next < len(s) && (s[next] < 'A' || s[next] > 'Z') {
			continue
		}
		parts = append(parts, s[start:i])
		start = next
	}
	parts = append(parts, s[start:])
	return parts
}
