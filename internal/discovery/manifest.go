package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"actionbroker/internal/common"
)

// manifestEntry is one route in a build-time endpoint manifest.
type manifestEntry struct {
	Path    string            `json:"path" yaml:"path"`
	Methods []string          `json:"methods" yaml:"methods"`
	Summary string            `json:"summary" yaml:"summary"`
	Docs    map[string]string `json:"docs" yaml:"docs"`
}

// manifestFile is the on-disk manifest shape.
type manifestFile struct {
	Endpoints []manifestEntry `json:"endpoints" yaml:"endpoints"`
}

// ManifestSource discovers endpoints from a build-time manifest instead of
// scanning route files. Hosts that emit their route table during the build
// point the broker at that file; JSON and YAML are both accepted.
type ManifestSource struct {
	path   string
	logger *common.Logger
}

// NewManifestSource creates a ManifestSource reading the manifest at path.
func NewManifestSource(path string, logger *common.Logger) *ManifestSource {
	return &ManifestSource{path: path, logger: logger}
}

// Root returns the manifest file path.
func (s *ManifestSource) Root() string {
	return s.path
}

// Scan parses the manifest and returns its endpoints sorted by path
// template. Entries without a path or without any recognized verb are
// logged and skipped.
func (s *ManifestSource) Scan(ctx context.Context) ([]Endpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading endpoint manifest: %w", err)
	}

	var mf manifestFile
	switch strings.ToLower(filepath.Ext(s.path)) {
	case ".json":
		err = json.Unmarshal(content, &mf)
	default:
		err = yaml.Unmarshal(content, &mf)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing endpoint manifest %s: %w", s.path, err)
	}

	endpoints := make([]Endpoint, 0, len(mf.Endpoints))
	for i, entry := range mf.Endpoints {
		if entry.Path == "" {
			s.logger.Warn().
				Int("index", i).
				Msg("skipping manifest entry without path")
			continue
		}

		set := make(map[string]bool, len(entry.Methods))
		for _, m := range entry.Methods {
			verb := strings.ToUpper(strings.TrimSpace(m))
			if !knownVerb(verb) {
				s.logger.Warn().
					Str("path", entry.Path).
					Str("method", m).
					Msg("skipping unrecognized verb in manifest entry")
				continue
			}
			set[verb] = true
		}
		if len(set) == 0 {
			s.logger.Warn().
				Str("path", entry.Path).
				Msg("skipping manifest entry without recognized verbs")
			continue
		}

		ep := Endpoint{
			PathTemplate: entry.Path,
			Methods:      orderVerbs(set),
			Summary:      entry.Summary,
		}
		for verb, doc := range entry.Docs {
			v := strings.ToUpper(strings.TrimSpace(verb))
			if !set[v] || doc == "" {
				continue
			}
			if ep.MethodDocs == nil {
				ep.MethodDocs = make(map[string]string)
			}
			ep.MethodDocs[v] = doc
		}
		endpoints = append(endpoints, ep)
	}

	sort.Slice(endpoints, func(i, j int) bool {
		return endpoints[i].PathTemplate < endpoints[j].PathTemplate
	})

	s.logger.Debug().
		Int("endpoints", len(endpoints)).
		Str("manifest", s.path).
		Msg("manifest scan complete")

	return endpoints, nil
}
