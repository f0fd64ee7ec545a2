package memory

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"gorient"
)

// The evaluator understands exactly the statement shapes the library
// renders: SELECT / SELECT count(*) / DELETE VERTEX with positional ?
// parameters, ORDER BY, SKIP and LIMIT, plus CREATE CLASS / CREATE PROPERTY
// as accepted no-ops.

type stmtKind int

const (
	stmtSelect stmtKind = iota
	stmtCount
	stmtDelete
	stmtDDL
)

type statement struct {
	kind   stmtKind
	class  string
	filter condition // nil matches everything
	sort   []sortKey
	skip   int
	limit  int
}

type sortKey struct {
	property   string
	descending bool
}

// condition evaluates one record against the parsed filter.
type condition func(r *record) (bool, error)

func parseStatement(text string, params []any) (*statement, error) {
	cursor := &paramCursor{params: params, text: text}

	switch {
	case strings.HasPrefix(text, "SELECT count(*) as count FROM "):
		rest := strings.TrimPrefix(text, "SELECT count(*) as count FROM ")
		stmt := &statement{kind: stmtCount}
		if err := stmt.parseTarget(rest, cursor); err != nil {
			return nil, err
		}
		return stmt, cursor.drained()

	case strings.HasPrefix(text, "SELECT FROM "):
		rest := strings.TrimPrefix(text, "SELECT FROM ")
		stmt := &statement{kind: stmtSelect, skip: -1, limit: -1}
		if err := stmt.parseTarget(rest, cursor); err != nil {
			return nil, err
		}
		return stmt, cursor.drained()

	case strings.HasPrefix(text, "DELETE VERTEX "):
		rest := strings.TrimPrefix(text, "DELETE VERTEX ")
		stmt := &statement{kind: stmtDelete}
		if err := stmt.parseTarget(rest, cursor); err != nil {
			return nil, err
		}
		return stmt, cursor.drained()

	case strings.HasPrefix(text, "CREATE CLASS "), strings.HasPrefix(text, "CREATE PROPERTY "):
		return &statement{kind: stmtDDL}, nil

	default:
		return nil, fmt.Errorf("unsupported statement: %s", text)
	}
}

// parseTarget consumes "Class[ WHERE ..][ ORDER BY ..][ SKIP n][ LIMIT n]",
// stripping the trailing clauses right to left.
func (s *statement) parseTarget(rest string, cursor *paramCursor) error {
	rest, limitText := cutLast(rest, " LIMIT ")
	rest, skipText := cutLast(rest, " SKIP ")
	rest, orderText := cutLast(rest, " ORDER BY ")
	rest, whereText := cutLast(rest, " WHERE ")
	s.class = strings.TrimSpace(rest)
	if s.class == "" {
		return fmt.Errorf("statement names no vertex class")
	}

	if whereText != "" {
		filter, err := parseFilter(whereText, cursor)
		if err != nil {
			return err
		}
		s.filter = filter
	}
	if orderText != "" {
		keys, err := parseOrderBy(orderText)
		if err != nil {
			return err
		}
		s.sort = keys
	}
	if skipText != "" {
		n, err := strconv.Atoi(strings.TrimSpace(skipText))
		if err != nil {
			return fmt.Errorf("bad SKIP value %q", skipText)
		}
		s.skip = n
	}
	if limitText != "" {
		n, err := strconv.Atoi(strings.TrimSpace(limitText))
		if err != nil {
			return fmt.Errorf("bad LIMIT value %q", limitText)
		}
		s.limit = n
	}
	return nil
}

func cutLast(s, sep string) (before, after string) {
	if i := strings.LastIndex(s, sep); i >= 0 {
		return s[:i], s[i+len(sep):]
	}
	return s, ""
}

func parseOrderBy(clause string) ([]sortKey, error) {
	parts := strings.Split(clause, ", ")
	keys := make([]sortKey, 0, len(parts))
	for _, part := range parts {
		prop, dir, ok := strings.Cut(strings.TrimSpace(part), " ")
		if !ok {
			return nil, fmt.Errorf("bad ORDER BY term %q", part)
		}
		switch dir {
		case "ASC":
			keys = append(keys, sortKey{property: prop})
		case "DESC":
			keys = append(keys, sortKey{property: prop, descending: true})
		default:
			return nil, fmt.Errorf("bad ORDER BY direction %q", dir)
		}
	}
	return keys, nil
}

// parseFilter builds the OR-of-ANDs condition, consuming positional
// parameters left to right in render order.
func parseFilter(expr string, cursor *paramCursor) (condition, error) {
	groups := splitTopLevel(expr, " OR ")
	conds := make([]condition, 0, len(groups))
	for _, group := range groups {
		group = strings.TrimSpace(group)
		if wrapped(group) {
			group = group[1 : len(group)-1]
		}
		cond, err := parseConjunction(group, cursor)
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
	}
	if len(conds) == 1 {
		return conds[0], nil
	}
	return func(r *record) (bool, error) {
		for _, cond := range conds {
			ok, err := cond(r)
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil
	}, nil
}

func parseConjunction(expr string, cursor *paramCursor) (condition, error) {
	parts := splitTopLevel(expr, " AND ")
	// Rejoin the AND that belongs to a BETWEEN range rather than the
	// conjunction.
	merged := make([]string, 0, len(parts))
	for _, part := range parts {
		if n := len(merged); n > 0 && strings.HasSuffix(merged[n-1], "BETWEEN ?") {
			merged[n-1] = merged[n-1] + " AND " + part
			continue
		}
		merged = append(merged, part)
	}

	conds := make([]condition, 0, len(merged))
	for _, part := range merged {
		cond, err := parsePredicate(strings.TrimSpace(part), cursor)
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
	}
	if len(conds) == 1 {
		return conds[0], nil
	}
	return func(r *record) (bool, error) {
		for _, cond := range conds {
			ok, err := cond(r)
			if err != nil || !ok {
				return ok, err
			}
		}
		return true, nil
	}, nil
}

// splitTopLevel splits on sep outside parentheses. The parentheses of
// toLowerCase() calls are balanced within a predicate, so depth tracking
// holds.
func splitTopLevel(s, sep string) []string {
	var out []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		default:
			if depth == 0 && strings.HasPrefix(s[i:], sep) {
				out = append(out, s[start:i])
				i += len(sep) - 1
				start = i + 1
			}
		}
	}
	return append(out, s[start:])
}

// wrapped reports whether the whole expression is one parenthesized group.
func wrapped(s string) bool {
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return false
	}
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 && i != len(s)-1 {
				return false
			}
		}
	}
	return depth == 0
}

func parsePredicate(expr string, cursor *paramCursor) (condition, error) {
	prop, op, ok := strings.Cut(expr, " ")
	if !ok {
		return nil, fmt.Errorf("bad predicate %q", expr)
	}
	lowercase := strings.HasSuffix(prop, ".toLowerCase()")
	if lowercase {
		prop = strings.TrimSuffix(prop, ".toLowerCase()")
	}

	get := func(r *record) any {
		v, _ := r.Get(prop)
		if lowercase {
			if s, ok := v.(string); ok {
				return strings.ToLower(s)
			}
		}
		return v
	}

	switch op {
	case "= ?":
		want, err := cursor.next()
		if err != nil {
			return nil, err
		}
		return func(r *record) (bool, error) { return equalValues(get(r), want), nil }, nil

	case "<> ?":
		want, err := cursor.next()
		if err != nil {
			return nil, err
		}
		return func(r *record) (bool, error) {
			v := get(r)
			return v != nil && !equalValues(v, want), nil
		}, nil

	case "> ?", ">= ?", "< ?", "<= ?":
		want, err := cursor.next()
		if err != nil {
			return nil, err
		}
		rel := op[:len(op)-2]
		return func(r *record) (bool, error) {
			v := get(r)
			if v == nil {
				return false, nil
			}
			c, err := compareValues(v, want)
			if err != nil {
				return false, err
			}
			switch rel {
			case ">":
				return c > 0, nil
			case ">=":
				return c >= 0, nil
			case "<":
				return c < 0, nil
			default:
				return c <= 0, nil
			}
		}, nil

	case "BETWEEN ? AND ?":
		lo, err := cursor.next()
		if err != nil {
			return nil, err
		}
		hi, err := cursor.next()
		if err != nil {
			return nil, err
		}
		return func(r *record) (bool, error) {
			v := get(r)
			if v == nil {
				return false, nil
			}
			cl, err := compareValues(v, lo)
			if err != nil {
				return false, err
			}
			ch, err := compareValues(v, hi)
			if err != nil {
				return false, err
			}
			return cl >= 0 && ch <= 0, nil
		}, nil

	case "LIKE ?", "NOT LIKE ?":
		pattern, err := cursor.next()
		if err != nil {
			return nil, err
		}
		ps, ok := pattern.(string)
		if !ok {
			return nil, fmt.Errorf("LIKE wants a string pattern, got %T", pattern)
		}
		re := likeRegexp(ps)
		negate := op == "NOT LIKE ?"
		return func(r *record) (bool, error) {
			s, ok := get(r).(string)
			if !ok {
				return false, nil
			}
			return re.MatchString(s) != negate, nil
		}, nil

	case "IS NULL":
		return func(r *record) (bool, error) { return get(r) == nil, nil }, nil

	case "IS NOT NULL":
		return func(r *record) (bool, error) { return get(r) != nil, nil }, nil

	case "= true":
		return func(r *record) (bool, error) { return get(r) == true, nil }, nil

	case "= false":
		return func(r *record) (bool, error) { return get(r) == false, nil }, nil

	case "IN ?", "NOT IN ?":
		list, err := cursor.next()
		if err != nil {
			return nil, err
		}
		lv := reflect.ValueOf(list)
		if !lv.IsValid() || lv.Kind() != reflect.Slice {
			return nil, fmt.Errorf("IN wants a slice parameter, got %T", list)
		}
		negate := op == "NOT IN ?"
		return func(r *record) (bool, error) {
			v := get(r)
			found := false
			for i := 0; i < lv.Len(); i++ {
				if equalValues(v, lv.Index(i).Interface()) {
					found = true
					break
				}
			}
			return found != negate, nil
		}, nil

	case "MATCHES ?":
		pattern, err := cursor.next()
		if err != nil {
			return nil, err
		}
		ps, ok := pattern.(string)
		if !ok {
			return nil, fmt.Errorf("MATCHES wants a string pattern, got %T", pattern)
		}
		re, err := regexp.Compile(ps)
		if err != nil {
			return nil, fmt.Errorf("bad MATCHES pattern %q: %w", ps, err)
		}
		return func(r *record) (bool, error) {
			s, ok := get(r).(string)
			if !ok {
				return false, nil
			}
			return re.MatchString(s), nil
		}, nil

	default:
		return nil, fmt.Errorf("unsupported predicate operator in %q", expr)
	}
}

// likeRegexp anchors the LIKE pattern, translating % wildcards.
func likeRegexp(pattern string) *regexp.Regexp {
	segments := strings.Split(pattern, "%")
	for i, seg := range segments {
		segments[i] = regexp.QuoteMeta(seg)
	}
	return regexp.MustCompile("^" + strings.Join(segments, ".*") + "$")
}

func (s *statement) selectRecords(store *Store) ([]*record, error) {
	recs, err := s.matching(store)
	if err != nil {
		return nil, err
	}

	if len(s.sort) > 0 {
		var sortErr error
		sort.SliceStable(recs, func(i, j int) bool {
			for _, key := range s.sort {
				vi, _ := recs[i].Get(key.property)
				vj, _ := recs[j].Get(key.property)
				c, err := compareNullable(vi, vj)
				if err != nil {
					sortErr = err
					return false
				}
				if c != 0 {
					if key.descending {
						return c > 0
					}
					return c < 0
				}
			}
			return false
		})
		if sortErr != nil {
			return nil, sortErr
		}
	} else {
		// Unordered map iteration would make unsorted results flap between
		// runs; identity order keeps them stable.
		sort.Slice(recs, func(i, j int) bool { return recs[i].rid < recs[j].rid })
	}

	if s.skip > 0 {
		if s.skip >= len(recs) {
			recs = nil
		} else {
			recs = recs[s.skip:]
		}
	}
	if s.limit >= 0 && s.limit < len(recs) {
		recs = recs[:s.limit]
	}
	return recs, nil
}

func (s *statement) countRecords(store *Store) (int64, error) {
	recs, err := s.matching(store)
	if err != nil {
		return 0, err
	}
	return int64(len(recs)), nil
}

func (s *statement) deleteRecords(store *Store) (int, error) {
	recs, err := s.matching(store)
	if err != nil {
		return 0, err
	}
	rids := make([]gorient.RID, len(recs))
	for i, rec := range recs {
		rids[i] = rec.rid
	}
	return store.deleteMatching(s.class, rids), nil
}

func (s *statement) matching(store *Store) ([]*record, error) {
	all := store.all(s.class)
	if s.filter == nil {
		return all, nil
	}
	out := make([]*record, 0, len(all))
	for _, rec := range all {
		ok, err := s.filter(rec)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

type paramCursor struct {
	params []any
	i      int
	text   string
}

func (c *paramCursor) next() (any, error) {
	if c.i >= len(c.params) {
		return nil, fmt.Errorf("statement wants more than %d parameters: %s", len(c.params), c.text)
	}
	v := c.params[c.i]
	c.i++
	return v, nil
}

func (c *paramCursor) drained() error {
	if c.i != len(c.params) {
		return fmt.Errorf("statement consumed %d of %d parameters: %s", c.i, len(c.params), c.text)
	}
	return nil
}

// equalValues compares with numeric widening so an int32 stored value still
// equals an int parameter.
func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	if fa, ok := asFloat(a); ok {
		fb, ok := asFloat(b)
		return ok && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

// compareValues orders two non-nil values of compatible kinds.
func compareValues(a, b any) (int, error) {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		if !ok {
			return 0, fmt.Errorf("cannot compare time with %T", b)
		}
		return ta.Compare(tb), nil
	}
	if fa, ok := asFloat(a); ok {
		fb, ok := asFloat(b)
		if !ok {
			return 0, fmt.Errorf("cannot compare number with %T", b)
		}
		switch {
		case fa < fb:
			return -1, nil
		case fa > fb:
			return 1, nil
		default:
			return 0, nil
		}
	}
	if sa, ok := a.(string); ok {
		sb, ok := b.(string)
		if !ok {
			return 0, fmt.Errorf("cannot compare string with %T", b)
		}
		return strings.Compare(sa, sb), nil
	}
	return 0, fmt.Errorf("values of type %T are not ordered", a)
}

// compareNullable orders with nulls first, for sorting.
func compareNullable(a, b any) (int, error) {
	switch {
	case a == nil && b == nil:
		return 0, nil
	case a == nil:
		return -1, nil
	case b == nil:
		return 1, nil
	}
	return compareValues(a, b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
