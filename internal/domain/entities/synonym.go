package entities

// SynonymGroup is a set of interchangeable lowercase terms. The canonical
// term defaults to the first member of the group.
type SynonymGroup struct {
	Terms         []string `json:"terms"`
	Canonical     string   `json:"canonical"`
	Bidirectional bool     `json:"bidirectional"`
	Weight        float64  `json:"weight"`
}

// Contains reports whether the group holds the given term.
func (g *SynonymGroup) Contains(term string) bool {
	for _, t := range g.Terms {
		if t == term {
			return true
		}
	}
	return false
}
