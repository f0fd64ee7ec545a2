// Package query derives executable queries from repository method names and
// renders them as OrientDB SQL text. A method name is parsed into an ordered
// OR-of-ANDs predicate tree plus optional sort and limit modifiers; the
// renderer turns the tree into SELECT, COUNT or DELETE statements with
// positional ? placeholders.
package query

import "strings"

// Operator is the closed set of predicate operators a derived query
// may use.
type Operator int

const (
	// Equals is the implicit operator when a token carries no keyword.
	Equals Operator = iota
	NegatingEquals
	GreaterThan
	GreaterThanEqual
	LessThan
	LessThanEqual
	Between
	Like
	NotLike
	StartingWith
	EndingWith
	Containing
	NotContaining
	IsNull
	IsNotNull
	True
	False
	In
	NotIn
	Regex
)

// Arity is the number of positional call arguments the operator consumes.
func (op Operator) Arity() int {
	switch op {
	case IsNull, IsNotNull, True, False:
		return 0
	case Between:
		return 2
	default:
		return 1
	}
}

// Fragment renders the operator's SQL for the given record-level
// property name.
func (op Operator) Fragment(property string) string {
	switch op {
	case Equals:
		return property + " = ?"
	case NegatingEquals:
		return property + " <> ?"
	case GreaterThan:
		return property + " > ?"
	case GreaterThanEqual:
		return property + " >= ?"
	case LessThan:
		return property + " < ?"
	case LessThanEqual:
		return property + " <= ?"
	case Between:
		return property + " BETWEEN ? AND ?"
	case Like, StartingWith, EndingWith, Containing:
		return property + " LIKE ?"
	case NotLike, NotContaining:
		return property + " NOT LIKE ?"
	case IsNull:
		return property + " IS NULL"
	case IsNotNull:
		return property + " IS NOT NULL"
	case True:
		return property + " = true"
	case False:
		return property + " = false"
	case In:
		return property + " IN ?"
	case NotIn:
		return property + " NOT IN ?"
	case Regex:
		return property + " MATCHES ?"
	}
	return property + " = ?"
}

// PrepareParameter applies the operator's bind-value transformation. The
// substring operators wrap the value with % wildcards here, at the
// parameter-accessor stage; Like and NotLike pass caller-supplied wildcards
// through untouched.
func (op Operator) PrepareParameter(value any) any {
	s, isString := value.(string)
	if !isString {
		return value
	}
	switch op {
	case StartingWith:
		return s + "%"
	case EndingWith:
		return "%" + s
	case Containing, NotContaining:
		return "%" + s + "%"
	default:
		return value
	}
}

// keyword binds a method-name keyword to its operator. Keywords are matched
// against the trailing end of a predicate token, longest first, so that
// GreaterThanEqual wins over GreaterThan and NotLike over Like.
type keyword struct {
	text string
	op   Operator
}

var keywords = []keyword{
	{"GreaterThanEqual", GreaterThanEqual},
	{"GreaterThan", GreaterThan},
	{"LessThanEqual", LessThanEqual},
	{"LessThan", LessThan},
	{"Between", Between},
	{"NotLike", NotLike},
	{"Like", Like},
	{"StartingWith", StartingWith},
	{"StartsWith", StartingWith},
	{"EndingWith", EndingWith},
	{"EndsWith", EndingWith},
	{"NotContaining", NotContaining},
	{"NotContains", NotContaining},
	{"Containing", Containing},
	{"Contains", Containing},
	{"IsNotNull", IsNotNull},
	{"NotNull", IsNotNull},
	{"IsNull", IsNull},
	{"Null", IsNull},
	{"IsTrue", True},
	{"True", True},
	{"IsFalse", False},
	{"False", False},
	{"NotIn", NotIn},
	{"In", In},
	{"Matches", Regex},
	{"Regex", Regex},
	{"Not", NegatingEquals},
}

func init() {
	// Longest-match-first tie-break: shorter keywords can be suffixes of
	// longer ones.
	for i := 1; i < len(keywords); i++ {
		for j := i; j > 0 && len(keywords[j].text) > len(keywords[j-1].text); j-- {
			keywords[j], keywords[j-1] = keywords[j-1], keywords[j]
		}
	}
}

// trailingKeywords returns the keywords matching the trailing end of the
// token with a non-empty remainder, longest first.
func trailingKeywords(token string) []keyword {
	var out []keyword
	for _, kw := range keywords {
		if strings.HasSuffix(token, kw.text) && len(token) > len(kw.text) {
			out = append(out, kw)
		}
	}
	return out
}
