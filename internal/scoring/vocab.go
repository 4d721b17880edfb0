package scoring

// stopwords are skipped during term accumulation: common English
// function words plus generic request verbs that appear in almost every
// query and would otherwise swamp entity-specific matches. Terms shorter
// than minTermLength are skipped before this set is consulted.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true,
	"this": true, "from": true, "into": true, "all": true, "any": true,
	"are": true, "was": true, "can": true, "could": true, "would": true,
	"should": true, "will": true, "may": true, "might": true, "must": true,
	"have": true, "has": true, "had": true, "been": true, "does": true,
	"did": true, "please": true, "want": true, "need": true, "about": true,
	"what": true, "which": true, "when": true, "where": true, "how": true,
	"who": true, "why": true, "you": true, "your": true, "our": true,
	"their": true, "them": true, "they": true, "its": true, "his": true,
	"her": true, "out": true, "not": true,

	// generic request verbs
	"show": true, "list": true, "get": true, "give": true, "display": true,
	"view": true, "see": true, "look": true, "find": true, "fetch": true,
	"tell": true, "open": true,
}

// DefaultEntities is the CRM-flavored entity table used when config
// supplies none.
func DefaultEntities() []Entity {
	return []Entity{
		{Name: "company", Plural: "companies", Segment: "companies"},
		{Name: "contact", Plural: "contacts", Segment: "contacts"},
		{Name: "deal", Plural: "deals", Segment: "deals"},
		{Name: "task", Plural: "tasks", Segment: "tasks"},
		{Name: "note", Plural: "notes", Segment: "notes"},
	}
}

// DefaultIntents maps the four conventional operation intents to their
// verbs. Keywords overlap with the stopword set on purpose: "show" earns
// no term points but still signals a read intent.
func DefaultIntents() []Intent {
	return []Intent{
		{
			Name:     "create",
			Verbs:    []string{"POST"},
			Keywords: []string{"create", "add", "new", "make", "register", "insert"},
		},
		{
			Name:     "update",
			Verbs:    []string{"PUT", "PATCH"},
			Keywords: []string{"update", "edit", "change", "modify", "rename", "set", "assign"},
		},
		{
			Name:     "delete",
			Verbs:    []string{"DELETE"},
			Keywords: []string{"delete", "remove", "archive", "cancel", "drop"},
		},
		{
			Name:     "list",
			Verbs:    []string{"GET"},
			Keywords: []string{"list", "show", "get", "find", "search", "view", "fetch", "browse", "display", "see"},
		},
	}
}
