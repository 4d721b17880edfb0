package scoring

import (
	"strings"

	"actionbroker/internal/catalog"
)

// Scoring constants. Magnitudes are tuning values; the invariants are
// that exactMatchBonus exceeds any reachable rule sum (termScoreCap plus
// all boosts stays below it) and that entityPenalty is large enough to
// sink a wrong-entity method that scores well on generic terms alone.
const (
	exactMatchBonus = 1000
	termHitPoints   = 10
	termScoreCap    = 500
	minTermLength   = 3

	entityBoost   = 25
	entityPenalty = 25

	intentBonus                   = 15
	mutatingIntentReadOnlyPenalty = 10

	controlPlanePenalty = 15
)

// Entity is one tracked domain object: its query names and the path
// segment its routes live under.
type Entity struct {
	Name    string
	Plural  string
	Segment string
}

// Intent maps query keywords to the HTTP verbs that conventionally
// carry that intent.
type Intent struct {
	Name     string
	Verbs    []string
	Keywords []string
}

// termScore accumulates points per query term found in the text,
// skipping short terms and stopwords. The sum is capped so that no
// combination of term hits can outrank an exact match.
func termScore(terms []string, text string) int {
	score := 0
	for _, term := range terms {
		if len(term) < minTermLength || stopwords[term] {
			continue
		}
		if strings.Contains(text, term) {
			score += termHitPoints
		}
	}
	if score > termScoreCap {
		return termScoreCap
	}
	return score
}

// mentionedEntities returns the entity names the normalized query names,
// by singular or plural token.
func (s *Scorer) mentionedEntities(q string) map[string]bool {
	var mentioned map[string]bool
	for _, e := range s.entities {
		if containsWord(q, e.Name) || (e.Plural != "" && containsWord(q, e.Plural)) {
			if mentioned == nil {
				mentioned = make(map[string]bool)
			}
			mentioned[e.Name] = true
		}
	}
	return mentioned
}

// entityScore boosts methods whose path carries a mentioned entity's
// segment and penalizes methods that belong to a different tracked
// entity than the one the query names. No entity in the query, no
// opinion.
func (s *Scorer) entityScore(mentioned map[string]bool, m catalog.MethodSpec) int {
	if len(mentioned) == 0 {
		return 0
	}
	path := strings.ToLower(m.PathTemplate)
	score := 0
	for _, e := range s.entities {
		if !strings.Contains(path, e.Segment) {
			continue
		}
		if mentioned[e.Name] {
			score += entityBoost
		} else {
			score -= entityPenalty
		}
	}
	return score
}

// detectedIntents returns the intents whose keywords appear as query
// tokens.
func (s *Scorer) detectedIntents(terms []string) map[string]bool {
	var detected map[string]bool
	for _, intent := range s.intents {
		for _, kw := range intent.Keywords {
			if hasTerm(terms, kw) {
				if detected == nil {
					detected = make(map[string]bool)
				}
				detected[intent.Name] = true
				break
			}
		}
	}
	return detected
}

// intentScore rewards verb alignment with a detected intent and lightly
// penalizes read-only methods when the query's intent is mutating.
func (s *Scorer) intentScore(detected map[string]bool, m catalog.MethodSpec) int {
	if len(detected) == 0 {
		return 0
	}
	score := 0
	for _, intent := range s.intents {
		if !detected[intent.Name] {
			continue
		}
		if hasVerb(intent.Verbs, m.Method) {
			score += intentBonus
		} else if mutatingIntent(intent) && m.ReadOnly {
			score -= mutatingIntentReadOnlyPenalty
		}
	}
	return score
}

// controlPlaneScore de-prioritizes the broker's own administrative
// endpoints so they do not crowd out domain results.
func (s *Scorer) controlPlaneScore(m catalog.MethodSpec) int {
	if s.controlPlanePrefix == "" {
		return 0
	}
	if strings.HasPrefix(m.PathTemplate, s.controlPlanePrefix) {
		return -controlPlanePenalty
	}
	return 0
}

// mutatingIntent reports whether an intent's conventional verbs are all
// mutating.
func mutatingIntent(intent Intent) bool {
	for _, v := range intent.Verbs {
		if v == "GET" {
			return false
		}
	}
	return len(intent.Verbs) > 0
}

func hasTerm(terms []string, term string) bool {
	for _, t := range terms {
		if t == term {
			return true
		}
	}
	return false
}

func hasVerb(verbs []string, verb string) bool {
	for _, v := range verbs {
		if v == verb {
			return true
		}
	}
	return false
}
