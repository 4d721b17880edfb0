package scoring

import (
	"sort"
	"strings"

	"actionbroker/internal/catalog"
)

// Limit bounds for the ranked candidate list.
const (
	MinLimit     = 1
	MaxLimit     = 50
	DefaultLimit = 10
)

// Candidate pairs a catalog method with its relevance score.
type Candidate struct {
	catalog.MethodSpec
	Score int `json:"score"`
}

// Config tunes the scorer. Zero values select the built-in defaults.
type Config struct {
	// Entities is the domain-entity table driving boosts and mismatch
	// penalties. Defaults to the CRM entity set.
	Entities []Entity
	// Intents maps query keywords to conventional HTTP verbs. Defaults
	// to create/update/delete/list.
	Intents []Intent
	// ControlPlanePrefix marks the broker's own namespace for
	// de-prioritization.
	ControlPlanePrefix string
	// DefaultLimit applies when the caller supplies no limit.
	DefaultLimit int
}

// Scorer ranks catalog methods against free-text queries. Scoring is an
// ordered list of independent rules combined by summation; an exact
// substring match short-circuits the rest. It is a heuristic: ties and
// near-ties are expected and resolved by catalog order.
type Scorer struct {
	entities           []Entity
	intents            []Intent
	controlPlanePrefix string
	defaultLimit       int
}

// New creates a Scorer from cfg, filling unset fields with defaults.
func New(cfg Config) *Scorer {
	s := &Scorer{
		entities:           cfg.Entities,
		intents:            cfg.Intents,
		controlPlanePrefix: cfg.ControlPlanePrefix,
		defaultLimit:       cfg.DefaultLimit,
	}
	if len(s.entities) == 0 {
		s.entities = DefaultEntities()
	}
	if len(s.intents) == 0 {
		s.intents = DefaultIntents()
	}
	if s.defaultLimit <= 0 {
		s.defaultLimit = DefaultLimit
	}
	return s
}

// Score ranks methods against the query: only positive-scoring methods
// survive, descending by score, ties by name ascending, capped to limit
// (clamped to [MinLimit, MaxLimit]; 0 selects the configured default).
func (s *Scorer) Score(query string, methods []catalog.MethodSpec, limit int) []Candidate {
	limit = s.clampLimit(limit)

	q := Normalize(query)
	if q == "" {
		return nil
	}
	terms := strings.Fields(q)
	mentioned := s.mentionedEntities(q)
	detected := s.detectedIntents(terms)

	candidates := make([]Candidate, 0, len(methods))
	for _, m := range methods {
		score := s.scoreMethod(q, terms, mentioned, detected, m)
		if score > 0 {
			candidates = append(candidates, Candidate{MethodSpec: m, Score: score})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Name < candidates[j].Name
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

// scoreMethod applies the rule chain to one method.
func (s *Scorer) scoreMethod(q string, terms []string, mentioned map[string]bool, detected map[string]bool, m catalog.MethodSpec) int {
	text := searchText(m)

	// Rule 1: an exact match of the whole query dominates everything
	// else and ends scoring for this method.
	if strings.Contains(text, q) {
		return exactMatchBonus
	}

	score := termScore(terms, text)
	score += s.entityScore(mentioned, m)
	score += s.intentScore(detected, m)
	score += s.controlPlaneScore(m)
	return score
}

func (s *Scorer) clampLimit(limit int) int {
	if limit == 0 {
		limit = s.defaultLimit
	}
	if limit < MinLimit {
		return MinLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// searchText flattens a method's addressable fields into one normalized
// haystack: name, verb, path, description, and path parameter names.
func searchText(m catalog.MethodSpec) string {
	parts := []string{m.Name, m.Method, m.PathTemplate, m.Description}
	parts = append(parts, m.PathParams...)
	return Normalize(strings.Join(parts, " "))
}

// Normalize lowercases text and reduces every run of non-alphanumeric
// characters to a single space.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	pendingSpace := false
	for _, r := range strings.ToLower(text) {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if isAlnum {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		} else {
			pendingSpace = true
		}
	}
	return b.String()
}

// containsWord reports whether normalized text contains word as a whole
// token.
func containsWord(text, word string) bool {
	return text == word ||
		strings.HasPrefix(text, word+" ") ||
		strings.HasSuffix(text, " "+word) ||
		strings.Contains(text, " "+word+" ")
}
