package services

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/searchforge/relevance/internal/domain/entities"
)

// Token kinds that pass through expansion untouched.
var passThroughOperators = map[string]struct{}{
	"AND": {}, "OR": {}, "NOT": {}, "&": {}, "|": {},
}

// SynonymExpansionService expands bare query terms into OR-groups of
// their synonyms. The index is built once at load and is read-only
// afterwards; reloads build a fresh service and swap it wholesale.
type SynonymExpansionService struct {
	groups []*entities.SynonymGroup
	index  map[string]*entities.SynonymGroup // lowercase term → owning group
}

// NewSynonymExpansionService creates an empty service. Use the Load*
// methods (or LoadFile) to populate it before first use.
func NewSynonymExpansionService() *SynonymExpansionService {
	return &SynonymExpansionService{
		index: make(map[string]*entities.SynonymGroup),
	}
}

// LoadFile loads a dictionary in the given format: "json"
// (canonical → aliases), "csv" (comma-separated groups), or "thesaurus"
// (alias : canonical lines).
func (s *SynonymExpansionService) LoadFile(path, format string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	switch format {
	case "json":
		return s.LoadJSON(f)
	case "csv":
		return s.LoadCommaSeparated(f)
	case "thesaurus":
		return s.LoadThesaurus(f)
	}
	return fmt.Errorf("unknown synonym dictionary format: %s", format)
}

// LoadJSON reads a canonical → [aliases] object.
func (s *SynonymExpansionService) LoadJSON(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	// Sorted for a deterministic group order across loads.
	canonicals := make([]string, 0, len(raw))
	for canonical := range raw {
		canonicals = append(canonicals, canonical)
	}
	sort.Strings(canonicals)

	for _, canonical := range canonicals {
		terms := append([]string{canonical}, raw[canonical]...)
		s.AddGroup(terms, canonical)
	}
	return nil
}

// LoadCommaSeparated reads one group per line: "term, alias1, alias2".
// The first term is canonical. Blank lines and # comments are skipped.
func (s *SynonymExpansionService) LoadCommaSeparated(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		s.AddGroup(strings.Split(line, ","), "")
	}
	return scanner.Err()
}

// LoadThesaurus reads "alias : canonical" lines, accumulating aliases
// under their canonical term.
func (s *SynonymExpansionService) LoadThesaurus(r io.Reader) error {
	byCanonical := make(map[string][]string)
	var order []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		alias := normalizeTerm(parts[0])
		canonical := normalizeTerm(parts[1])
		if alias == "" || canonical == "" {
			continue
		}
		if _, seen := byCanonical[canonical]; !seen {
			order = append(order, canonical)
		}
		byCanonical[canonical] = append(byCanonical[canonical], alias)
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	for _, canonical := range order {
		s.AddGroup(append([]string{canonical}, byCanonical[canonical]...), canonical)
	}
	return nil
}

// AddGroup registers a synonym group. Terms are lowercased and
// de-duplicated; groups with fewer than two distinct terms are silently
// ignored. An empty canonical defaults to the first term.
func (s *SynonymExpansionService) AddGroup(terms []string, canonical string) {
	seen := make(map[string]struct{})
	clean := make([]string, 0, len(terms))
	for _, t := range terms {
		t = normalizeTerm(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		clean = append(clean, t)
	}
	if len(clean) < 2 {
		return
	}

	canonical = normalizeTerm(canonical)
	if canonical == "" {
		canonical = clean[0]
	}

	group := &entities.SynonymGroup{
		Terms:         clean,
		Canonical:     canonical,
		Bidirectional: true,
		Weight:        1.0,
	}
	s.groups = append(s.groups, group)
	for _, t := range clean {
		s.index[t] = group
	}
}

// Lookup returns the full term list for any member term, including the
// member itself, or nil when the term owns no group.
func (s *SynonymExpansionService) Lookup(term string) []string {
	group, ok := s.index[normalizeTerm(term)]
	if !ok {
		return nil
	}
	return group.Terms
}

// Groups returns all loaded groups.
func (s *SynonymExpansionService) Groups() []*entities.SynonymGroup {
	return s.groups
}

// Expand rewrites eligible bare terms as "(t1 OR t2 OR ...)" over their
// full synonym group. Quoted phrases are protected via placeholders;
// boolean operators, exclusions, field-qualified tokens, and parens pass
// through unexpanded.
func (s *SynonymExpansionService) Expand(query string) string {
	if strings.TrimSpace(query) == "" {
		return query
	}

	protected, phrases := protectPhrases(query)

	words := strings.Fields(protected)
	out := make([]string, 0, len(words))
	for _, w := range words {
		if !s.eligible(w) {
			out = append(out, w)
			continue
		}
		group, ok := s.index[strings.ToLower(w)]
		if !ok {
			out = append(out, w)
			continue
		}
		out = append(out, "("+strings.Join(group.Terms, " OR ")+")")
	}

	return restorePhrases(strings.Join(out, " "), phrases)
}

func (s *SynonymExpansionService) eligible(word string) bool {
	if word == "" {
		return false
	}
	if _, op := passThroughOperators[word]; op {
		return false
	}
	if strings.HasPrefix(word, "-") || strings.HasPrefix(word, "!") {
		return false
	}
	if strings.Contains(word, ":") {
		return false
	}
	if strings.ContainsAny(word, "()") {
		return false
	}
	if strings.Contains(word, phraseMarker) {
		return false
	}
	return true
}

// ExportThesaurus writes sorted "alias : canonical" lines consumable by
// the search backend's dictionary mechanism.
func (s *SynonymExpansionService) ExportThesaurus(w io.Writer) error {
	var lines []string
	for _, group := range s.groups {
		for _, term := range group.Terms {
			if term == group.Canonical {
				continue
			}
			lines = append(lines, term+" : "+group.Canonical)
		}
	}
	sort.Strings(lines)

	bw := bufio.NewWriter(w)
	for _, line := range lines {
		if _, err := fmt.Fprintln(bw, line); err != nil {
			return err
		}
	}
	return bw.Flush()
}

const phraseMarker = "\x00phrase"

func protectPhrases(query string) (string, []string) {
	var phrases []string
	var b strings.Builder
	rest := query
	for {
		start := strings.IndexByte(rest, '"')
		if start < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.IndexByte(rest[start+1:], '"')
		if end < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:start])
		b.WriteString(fmt.Sprintf("%s%d\x00", phraseMarker, len(phrases)))
		phrases = append(phrases, rest[start:start+end+2])
		rest = rest[start+end+2:]
	}
	return b.String(), phrases
}

func restorePhrases(query string, phrases []string) string {
	for i, phrase := range phrases {
		query = strings.Replace(query, fmt.Sprintf("%s%d\x00", phraseMarker, i), phrase, 1)
	}
	return query
}

func normalizeTerm(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}
