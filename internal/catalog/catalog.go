package catalog

import (
	"regexp"
	"sort"
	"strings"

	"actionbroker/internal/discovery"
)

// MethodSpec is the catalog's unit of record: one addressable action per
// (path template, HTTP verb) pair. Entries are value objects, rebuilt on
// every catalog build and never mutated in place.
type MethodSpec struct {
	Name               string   `json:"name"`
	Method             string   `json:"method"`
	PathTemplate       string   `json:"pathTemplate"`
	Description        string   `json:"description"`
	PathParams         []string `json:"pathParams,omitempty"`
	RequiredBodyFields []string `json:"requiredBodyFields,omitempty"`
	BodyFields         []string `json:"bodyFields,omitempty"`
	QueryParams        []string `json:"queryParams,omitempty"`
	ReadOnly           bool     `json:"readOnly"`
}

var pathParamRe = regexp.MustCompile(`\{([^}]+)\}`)

// braceStripper removes parameter braces so named segments contribute
// their bare parameter names to the method name.
var braceStripper = strings.NewReplacer("{", "", "}", "")

// MethodName derives the deterministic catalog identifier for a
// (pathTemplate, verb) pair: leading separator stripped, named segments
// reduced to their parameter names, non-alphanumeric runs collapsed to a
// single underscore, trimmed, lowercased, and suffixed with the verb.
// The same inputs always produce the same name.
func MethodName(pathTemplate, verb string) string {
	p := strings.TrimPrefix(pathTemplate, "/")
	p = braceStripper.Replace(p)

	var b strings.Builder
	b.Grow(len(p))
	pendingSep := false
	for _, r := range p {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if isAlnum {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		} else {
			pendingSep = true
		}
	}

	return strings.ToLower(b.String()) + "_" + strings.ToLower(verb)
}

// PathParams returns the named segments of a path template in order.
func PathParams(pathTemplate string) []string {
	matches := pathParamRe.FindAllStringSubmatch(pathTemplate, -1)
	if len(matches) == 0 {
		return nil
	}
	params := make([]string, len(matches))
	for i, m := range matches {
		params[i] = m[1]
	}
	return params
}

// Build produces the catalog from discovered endpoints plus the optional
// capabilities enrichment. It is a pure function: two builds over the
// same inputs yield identical output regardless of endpoint order.
func Build(endpoints []discovery.Endpoint, caps discovery.Capabilities) []MethodSpec {
	var specs []MethodSpec
	for _, ep := range endpoints {
		params := PathParams(ep.PathTemplate)
		for _, verb := range ep.Methods {
			spec := MethodSpec{
				Name:         MethodName(ep.PathTemplate, verb),
				Method:       verb,
				PathTemplate: ep.PathTemplate,
				Description:  describe(ep, verb),
				PathParams:   params,
				ReadOnly:     verb == "GET",
			}
			if mc, ok := caps.Lookup(ep.PathTemplate, verb); ok {
				spec.RequiredBodyFields = copyFields(mc.RequiredBodyFields)
				spec.BodyFields = copyFields(mc.BodyFields)
				spec.QueryParams = copyFields(mc.QueryParams)
			}
			specs = append(specs, spec)
		}
	}

	sort.Slice(specs, func(i, j int) bool {
		if specs[i].Name != specs[j].Name {
			return specs[i].Name < specs[j].Name
		}
		return specs[i].PathTemplate < specs[j].PathTemplate
	})
	return specs
}

// describe builds "VERB path" plus the best available documentation:
// the verb's own doc when present, else the endpoint summary.
func describe(ep discovery.Endpoint, verb string) string {
	desc := verb + " " + ep.PathTemplate
	if doc := ep.MethodDocs[verb]; doc != "" {
		return desc + " - " + doc
	}
	if ep.Summary != "" {
		return desc + " - " + ep.Summary
	}
	return desc
}

func copyFields(fields []string) []string {
	if len(fields) == 0 {
		return nil
	}
	out := make([]string, len(fields))
	copy(out, fields)
	return out
}
