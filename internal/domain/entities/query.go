package entities

import "strings"

// TokenType identifies the syntactic category of a query token.
type TokenType string

const (
	TokenWord        TokenType = "word"
	TokenPhrase      TokenType = "phrase"
	TokenFieldTerm   TokenType = "field_term"
	TokenFieldPhrase TokenType = "field_phrase"
	TokenFieldPrefix TokenType = "field_prefix"
	TokenFieldRange  TokenType = "field_range"
	TokenPrefix      TokenType = "prefix"
	TokenFuzzy       TokenType = "fuzzy"
	TokenExclude     TokenType = "exclude"
	TokenAnd         TokenType = "and"
	TokenOr          TokenType = "or"
	TokenParen       TokenType = "paren"
)

// Token is a single unit produced by the query tokenizer.
type Token struct {
	Type           TokenType
	Value          string
	Field          string
	RangeMin       *string
	RangeMax       *string
	RangeInclusive bool
}

// RangeFilter constrains a field to a bounded or half-bounded interval.
// A nil Min or Max means that side is unbounded.
type RangeFilter struct {
	Min       *string
	Max       *string
	Inclusive bool
}

// FieldFilterSet is a multi-valued field→values map that preserves the
// order in which fields first appeared in the query.
type FieldFilterSet struct {
	fields []string
	values map[string][]string
}

// NewFieldFilterSet creates an empty filter set.
func NewFieldFilterSet() *FieldFilterSet {
	return &FieldFilterSet{values: make(map[string][]string)}
}

// Add appends a value under the given field.
func (f *FieldFilterSet) Add(field, value string) {
	if _, ok := f.values[field]; !ok {
		f.fields = append(f.fields, field)
	}
	f.values[field] = append(f.values[field], value)
}

// Get returns all values recorded for a field, in insertion order.
func (f *FieldFilterSet) Get(field string) []string {
	return f.values[field]
}

// Fields returns field names in first-appearance order.
func (f *FieldFilterSet) Fields() []string {
	return f.fields
}

// Len returns the number of distinct fields.
func (f *FieldFilterSet) Len() int {
	return len(f.fields)
}

// ParsedQuery is the structured decomposition of a raw search string.
// Instances are per-request and discarded after use.
type ParsedQuery struct {
	Terms        []string
	FieldFilters *FieldFilterSet
	RangeFilters map[string]RangeFilter
	Exclusions   []string
	PrefixTerms  []string
	FuzzyTerms   []string
	Tokens       []Token
}

// NewParsedQuery creates an empty parsed query.
func NewParsedQuery() *ParsedQuery {
	return &ParsedQuery{
		FieldFilters: NewFieldFilterSet(),
		RangeFilters: make(map[string]RangeFilter),
	}
}

// NormalizedQuery renders the text handed to the search backend: the free
// text terms plus each prefix term as "term:*", space-joined. Field
// filters, exclusions, and fuzzy terms never appear here.
func (q *ParsedQuery) NormalizedQuery() string {
	parts := make([]string, 0, len(q.Terms)+len(q.PrefixTerms))
	parts = append(parts, q.Terms...)
	for _, p := range q.PrefixTerms {
		parts = append(parts, p+":*")
	}
	return strings.Join(parts, " ")
}

// IsEmpty reports whether the query carries no usable content.
func (q *ParsedQuery) IsEmpty() bool {
	return len(q.Terms) == 0 && q.FieldFilters.Len() == 0 && len(q.RangeFilters) == 0 &&
		len(q.Exclusions) == 0 && len(q.PrefixTerms) == 0 && len(q.FuzzyTerms) == 0
}
