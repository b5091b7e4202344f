package store

// Op is a filter method understood by every DocumentStore implementation.
type Op string

const (
	OpEqual    Op = "equal"    // field matches any of Values
	OpNotEqual Op = "notEqual" // field differs from Values[0]
	OpLessThan Op = "lessThan" // field sorts before Values[0]
	OpIsNull   Op = "isNull"   // field is absent or null
	OpOr       Op = "or"       // at least one of Sub matches
	OpLimit    Op = "limit"    // cap the result count at Values[0]
)

// Filter is one predicate of a query. Filters in a List call combine with
// AND; OpOr provides the single level of disjunction the engine needs.
type Filter struct {
	Op     Op
	Field  string
	Values []any
	Sub    []Filter
}

// Equal matches documents whose field equals any of the given values.
func Equal(field string, values ...any) Filter {
	return Filter{Op: OpEqual, Field: field, Values: values}
}

// NotEqual matches documents whose field differs from value.
func NotEqual(field string, value any) Filter {
	return Filter{Op: OpNotEqual, Field: field, Values: []any{value}}
}

// LessThan matches documents whose field sorts strictly before value.
// Timestamps compare as RFC3339 strings.
func LessThan(field string, value any) Filter {
	return Filter{Op: OpLessThan, Field: field, Values: []any{value}}
}

// IsNull matches documents where the field is absent or null.
func IsNull(field string) Filter {
	return Filter{Op: OpIsNull, Field: field}
}

// Or matches documents satisfying at least one sub-filter.
func Or(sub ...Filter) Filter {
	return Filter{Op: OpOr, Sub: sub}
}

// Limit caps the number of returned documents.
func Limit(n int) Filter {
	return Filter{Op: OpLimit, Values: []any{n}}
}
