package query

import (
	"strconv"
	"strings"
)

// Render turns a derived query into literal query-language text for the
// given vertex class name.
func Render(q *DerivedQuery, recordName string) string {
	switch q.Shape {
	case Count, Exists:
		return RenderCount(recordName, q.Tree)
	case Delete:
		return RenderDelete(recordName, q.Tree)
	default:
		return RenderSelect(recordName, q.Tree, q.Sort, q.Limit)
	}
}

// RenderSelect renders SELECT FROM {class} [WHERE ..] [ORDER BY ..]
// [LIMIT n].
func RenderSelect(recordName string, tree PredicateTree, sort SortSpec, limit int) string {
	var b strings.Builder
	b.WriteString("SELECT FROM ")
	b.WriteString(recordName)
	writeWhere(&b, tree)
	writeSort(&b, sort)
	if limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(limit))
	}
	return b.String()
}

// RenderCount renders SELECT count(*) as count FROM {class} [WHERE ..].
// Extraction reads the field literally named count from the first row,
// defaulting to 0 on an empty result: the count of nothing is zero, not an
// error.
func RenderCount(recordName string, tree PredicateTree) string {
	var b strings.Builder
	b.WriteString("SELECT count(*) as count FROM ")
	b.WriteString(recordName)
	writeWhere(&b, tree)
	return b.String()
}

// RenderDelete renders DELETE VERTEX {class} [WHERE ..].
func RenderDelete(recordName string, tree PredicateTree) string {
	var b strings.Builder
	b.WriteString("DELETE VERTEX ")
	b.WriteString(recordName)
	writeWhere(&b, tree)
	return b.String()
}

// WhereClause assembles the tree's filter text without the WHERE keyword.
// AND-predicates are joined with " AND "; groups are joined with " OR ". A
// multi-predicate group is parenthesized only when the tree holds more than
// one group: a lone conjunction needs no grouping, so
// "firstName = ? AND lastName = ?" renders bare.
func WhereClause(tree PredicateTree) string {
	groups := make([]string, 0, len(tree))
	for _, group := range tree {
		fragments := make([]string, len(group))
		for i, p := range group {
			fragments[i] = p.Fragment()
		}
		joined := strings.Join(fragments, " AND ")
		if len(tree) > 1 && len(fragments) > 1 {
			joined = "(" + joined + ")"
		}
		groups = append(groups, joined)
	}
	return strings.Join(groups, " OR ")
}

func writeWhere(b *strings.Builder, tree PredicateTree) {
	if tree.Empty() {
		return
	}
	b.WriteString(" WHERE ")
	b.WriteString(WhereClause(tree))
}

// SortClause renders comma-joined "property ASC|DESC" pairs in declared
// order. Empty when unsorted.
func SortClause(sort SortSpec) string {
	if len(sort) == 0 {
		return ""
	}
	parts := make([]string, len(sort))
	for i, o := range sort {
		dir := " ASC"
		if o.Descending {
			dir = " DESC"
		}
		parts[i] = o.Property + dir
	}
	return strings.Join(parts, ", ")
}

func writeSort(b *strings.Builder, sort SortSpec) {
	if len(sort) == 0 {
		return
	}
	b.WriteString(" ORDER BY ")
	b.WriteString(SortClause(sort))
}

// PaginationClause renders the page-based " SKIP {offset} LIMIT {size}"
// suffix, empty for an unpaged request.
func PaginationClause(p Pageable) string {
	if p.Unpaged() {
		return ""
	}
	return " SKIP " + strconv.Itoa(p.Offset()) + " LIMIT " + strconv.Itoa(p.Size)
}
