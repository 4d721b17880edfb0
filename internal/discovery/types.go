package discovery

// Endpoint is one discovered route: a path template plus the verbs it
// supports. Endpoints are immutable once produced; a re-scan supersedes
// the whole set rather than patching entries.
type Endpoint struct {
	PathTemplate string            `json:"pathTemplate"`
	Methods      []string          `json:"methods"`
	Summary      string            `json:"summary,omitempty"`
	MethodDocs   map[string]string `json:"methodDocs,omitempty"`
}

// httpVerbs is the canonical verb order used when emitting endpoint
// method sets. Scanning recognizes exactly these verbs.
var httpVerbs = []string{"GET", "POST", "PUT", "PATCH", "DELETE"}

// knownVerb reports whether v (already uppercased) is a recognized verb.
func knownVerb(v string) bool {
	for _, verb := range httpVerbs {
		if v == verb {
			return true
		}
	}
	return false
}

// orderVerbs returns the members of set in canonical verb order.
func orderVerbs(set map[string]bool) []string {
	ordered := make([]string, 0, len(set))
	for _, verb := range httpVerbs {
		if set[verb] {
			ordered = append(ordered, verb)
		}
	}
	return ordered
}
