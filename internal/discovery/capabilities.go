package discovery

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"actionbroker/internal/common"
)

// MethodCapability declares the body and query parameters a route accepts
// for one verb. Produced by an external generator; read-only input here.
type MethodCapability struct {
	RequiredBodyFields []string `json:"requiredBodyFields" yaml:"requiredBodyFields"`
	BodyFields         []string `json:"bodyFields" yaml:"bodyFields"`
	QueryParams        []string `json:"queryParams" yaml:"queryParams"`
}

// Capabilities maps path template then verb to declared parameters.
type Capabilities map[string]map[string]MethodCapability

// Lookup returns the capability declared for (pathTemplate, verb), if any.
func (c Capabilities) Lookup(pathTemplate, verb string) (MethodCapability, bool) {
	verbs, ok := c[pathTemplate]
	if !ok {
		return MethodCapability{}, false
	}
	mc, ok := verbs[strings.ToUpper(verb)]
	return mc, ok
}

// LoadCapabilities reads the optional capabilities description file.
// A missing file is not an error: it degrades enrichment to absent.
// JSON and YAML are accepted, chosen by extension.
func LoadCapabilities(path string, logger *common.Logger) (Capabilities, error) {
	if path == "" {
		return Capabilities{}, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug().
				Str("file", path).
				Msg("capabilities file absent, continuing without enrichment")
			return Capabilities{}, nil
		}
		return Capabilities{}, fmt.Errorf("reading capabilities file: %w", err)
	}

	var raw map[string]map[string]MethodCapability
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(content, &raw)
	default:
		err = yaml.Unmarshal(content, &raw)
	}
	if err != nil {
		return Capabilities{}, fmt.Errorf("parsing capabilities file %s: %w", path, err)
	}

	caps := make(Capabilities, len(raw))
	for pathTemplate, verbs := range raw {
		normalized := make(map[string]MethodCapability, len(verbs))
		for verb, mc := range verbs {
			normalized[strings.ToUpper(strings.TrimSpace(verb))] = mc
		}
		caps[pathTemplate] = normalized
	}

	logger.Debug().
		Int("paths", len(caps)).
		Str("file", path).
		Msg("capabilities loaded")

	return caps, nil
}
