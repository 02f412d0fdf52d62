package services

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/searchforge/relevance/internal/domain/entities"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Matcher patterns, tried in priority order. Qualified and quoted forms
// must be tried before the generic word matcher.
var (
	fieldRangeRe   = regexp.MustCompile(`^(\w+):([\[{])\s*([^\s\]}]+)\s+TO\s+([^\s\]}]+)\s*([\]}])`)
	fieldCompareRe = regexp.MustCompile(`^(\w+):(>=|<=|>|<)([\w\-./:]+)`)
	fieldPhraseRe  = regexp.MustCompile(`^(\w+):"([^"]*)"`)
	fieldPrefixRe  = regexp.MustCompile(`^(\w+):([\w\-]+)\*`)
	fieldTermRe    = regexp.MustCompile(`^(\w+):([\w\-./]+)`)
	phraseRe       = regexp.MustCompile(`^"([^"]*)"`)
	prefixRe       = regexp.MustCompile(`^([\w\-]+)\*`)
	fuzzyRe        = regexp.MustCompile(`^~([\w\-]+)`)
	excludeRe      = regexp.MustCompile(`^[-!]([\w\-]+)`)
	orRe           = regexp.MustCompile(`^(OR\b|\|)`)
	andRe          = regexp.MustCompile(`^(AND\b|&)`)
	parenRe        = regexp.MustCompile(`^[()]`)
	wordRe         = regexp.MustCompile(`^\w[\w'\-]*`)
)

var (
	skippedCharCounterOnce sync.Once
	skippedCharCounter     metric.Int64Counter
)

// queryMatcher tries to consume a token at the start of rest. It returns
// the token and the number of bytes consumed.
type queryMatcher func(rest string) (entities.Token, int, bool)

// QueryParserService turns a raw user search string into a ParsedQuery.
// It is a pure function over immutable input: safe for unlimited
// concurrent use. Parsing never fails; unmatched characters are skipped.
type QueryParserService struct {
	matchers []queryMatcher
}

// NewQueryParserService creates a parser with the standard matcher chain.
func NewQueryParserService() *QueryParserService {
	s := &QueryParserService{}
	s.matchers = []queryMatcher{
		matchFieldRange,
		matchFieldCompare,
		matchFieldPhrase,
		matchFieldPrefix,
		matchFieldTerm,
		matchPhrase,
		matchPrefix,
		matchFuzzy,
		matchExclude,
		matchOr,
		matchAnd,
		matchParen,
		matchWord,
	}
	return s
}

// Parse scans the input left to right, trying each matcher at the cursor
// and consuming the first match. Empty or whitespace input yields an
// empty ParsedQuery.
func (s *QueryParserService) Parse(raw string) *entities.ParsedQuery {
	query := entities.NewParsedQuery()
	input := strings.TrimSpace(raw)

	i := 0
	for i < len(input) {
		if input[i] == ' ' || input[i] == '\t' || input[i] == '\n' || input[i] == '\r' {
			i++
			continue
		}

		rest := input[i:]
		matched := false
		for _, match := range s.matchers {
			if tok, n, ok := match(rest); ok {
				applyToken(query, tok)
				query.Tokens = append(query.Tokens, tok)
				i += n
				matched = true
				break
			}
		}
		if !matched {
			// Unparseable character: skip a single rune and keep going.
			_, size := utf8.DecodeRuneInString(rest)
			i += size
			recordSkippedChar()
		}
	}

	return query
}

func applyToken(q *entities.ParsedQuery, tok entities.Token) {
	switch tok.Type {
	case entities.TokenWord, entities.TokenPhrase:
		q.Terms = append(q.Terms, tok.Value)
	case entities.TokenFieldTerm, entities.TokenFieldPhrase:
		q.FieldFilters.Add(tok.Field, tok.Value)
	case entities.TokenFieldRange:
		// Last write per field wins.
		q.RangeFilters[tok.Field] = entities.RangeFilter{
			Min:       tok.RangeMin,
			Max:       tok.RangeMax,
			Inclusive: tok.RangeInclusive,
		}
	case entities.TokenPrefix, entities.TokenFieldPrefix:
		q.PrefixTerms = append(q.PrefixTerms, tok.Value)
	case entities.TokenFuzzy:
		q.FuzzyTerms = append(q.FuzzyTerms, tok.Value)
	case entities.TokenExclude:
		q.Exclusions = append(q.Exclusions, tok.Value)
	case entities.TokenAnd, entities.TokenOr, entities.TokenParen:
		// Grouping and operators are tokenized but not composed into a
		// boolean tree; they pass through as tokens only.
	}
}

func matchFieldRange(rest string) (entities.Token, int, bool) {
	m := fieldRangeRe.FindStringSubmatch(rest)
	if m == nil {
		return entities.Token{}, 0, false
	}
	tok := entities.Token{
		Type:           entities.TokenFieldRange,
		Field:          m[1],
		RangeInclusive: m[2] == "[",
	}
	if m[3] != "*" {
		tok.RangeMin = strPtr(m[3])
	}
	if m[4] != "*" {
		tok.RangeMax = strPtr(m[4])
	}
	return tok, len(m[0]), true
}

func matchFieldCompare(rest string) (entities.Token, int, bool) {
	m := fieldCompareRe.FindStringSubmatch(rest)
	if m == nil {
		return entities.Token{}, 0, false
	}
	tok := entities.Token{
		Type:  entities.TokenFieldRange,
		Field: m[1],
	}
	switch m[2] {
	case ">":
		tok.RangeMin = strPtr(m[3])
	case ">=":
		tok.RangeMin = strPtr(m[3])
		tok.RangeInclusive = true
	case "<":
		tok.RangeMax = strPtr(m[3])
	case "<=":
		tok.RangeMax = strPtr(m[3])
		tok.RangeInclusive = true
	}
	return tok, len(m[0]), true
}

func matchFieldPhrase(rest string) (entities.Token, int, bool) {
	m := fieldPhraseRe.FindStringSubmatch(rest)
	if m == nil {
		return entities.Token{}, 0, false
	}
	return entities.Token{Type: entities.TokenFieldPhrase, Field: m[1], Value: m[2]}, len(m[0]), true
}

func matchFieldPrefix(rest string) (entities.Token, int, bool) {
	m := fieldPrefixRe.FindStringSubmatch(rest)
	if m == nil {
		return entities.Token{}, 0, false
	}
	return entities.Token{Type: entities.TokenFieldPrefix, Field: m[1], Value: m[2]}, len(m[0]), true
}

func matchFieldTerm(rest string) (entities.Token, int, bool) {
	m := fieldTermRe.FindStringSubmatch(rest)
	if m == nil {
		return entities.Token{}, 0, false
	}
	return entities.Token{Type: entities.TokenFieldTerm, Field: m[1], Value: m[2]}, len(m[0]), true
}

func matchPhrase(rest string) (entities.Token, int, bool) {
	m := phraseRe.FindStringSubmatch(rest)
	if m == nil {
		return entities.Token{}, 0, false
	}
	return entities.Token{Type: entities.TokenPhrase, Value: m[1]}, len(m[0]), true
}

func matchPrefix(rest string) (entities.Token, int, bool) {
	m := prefixRe.FindStringSubmatch(rest)
	if m == nil {
		return entities.Token{}, 0, false
	}
	return entities.Token{Type: entities.TokenPrefix, Value: m[1]}, len(m[0]), true
}

func matchFuzzy(rest string) (entities.Token, int, bool) {
	m := fuzzyRe.FindStringSubmatch(rest)
	if m == nil {
		return entities.Token{}, 0, false
	}
	return entities.Token{Type: entities.TokenFuzzy, Value: m[1]}, len(m[0]), true
}

func matchExclude(rest string) (entities.Token, int, bool) {
	m := excludeRe.FindStringSubmatch(rest)
	if m == nil {
		return entities.Token{}, 0, false
	}
	return entities.Token{Type: entities.TokenExclude, Value: m[1]}, len(m[0]), true
}

func matchOr(rest string) (entities.Token, int, bool) {
	m := orRe.FindStringSubmatch(rest)
	if m == nil {
		return entities.Token{}, 0, false
	}
	return entities.Token{Type: entities.TokenOr, Value: m[1]}, len(m[0]), true
}

func matchAnd(rest string) (entities.Token, int, bool) {
	m := andRe.FindStringSubmatch(rest)
	if m == nil {
		return entities.Token{}, 0, false
	}
	return entities.Token{Type: entities.TokenAnd, Value: m[1]}, len(m[0]), true
}

func matchParen(rest string) (entities.Token, int, bool) {
	m := parenRe.FindString(rest)
	if m == "" {
		return entities.Token{}, 0, false
	}
	return entities.Token{Type: entities.TokenParen, Value: m}, len(m), true
}

func matchWord(rest string) (entities.Token, int, bool) {
	m := wordRe.FindString(rest)
	if m == "" {
		return entities.Token{}, 0, false
	}
	return entities.Token{Type: entities.TokenWord, Value: m}, len(m), true
}

func strPtr(s string) *string {
	return &s
}

func initSkippedCharCounter() {
	meter := otel.Meter("github.com/searchforge/relevance/query_parser")
	counter, err := meter.Int64Counter(
		"search.query.skipped_chars",
		metric.WithDescription("Count of query characters no matcher could consume"),
	)
	if err == nil {
		skippedCharCounter = counter
	}
}

func recordSkippedChar() {
	skippedCharCounterOnce.Do(initSkippedCharCounter)
	if skippedCharCounter == nil {
		return
	}
	skippedCharCounter.Add(context.Background(), 1)
}
