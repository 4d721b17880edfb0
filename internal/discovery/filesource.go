package discovery

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"actionbroker/internal/common"
)

// routeFileNames are the file names recognized as route definitions.
// Host apps built on file-based routing emit one such file per directory,
// with the directory chain forming the URL path.
var routeFileNames = map[string]bool{
	"route.ts":  true,
	"route.tsx": true,
	"route.js":  true,
	"route.jsx": true,
	"route.mjs": true,
}

var (
	// export async function GET(...) / export function DELETE(...)
	verbFuncRe = regexp.MustCompile(`(?m)^export\s+(?:async\s+)?function\s+(GET|POST|PUT|PATCH|DELETE)\s*\(`)
	// export const GET = ...
	verbConstRe = regexp.MustCompile(`(?m)^export\s+const\s+(GET|POST|PUT|PATCH|DELETE)\s*=`)
	// /** ... */ documentation blocks
	docBlockRe = regexp.MustCompile(`(?s)/\*\*(.*?)\*/`)
)

// maxDocLines bounds how many leading lines of a doc block become a
// verb's description.
const maxDocLines = 3

// FileSource discovers endpoints by walking a route-definition tree.
// Directory names form the URL path under basePath; [param] directories
// declare path parameters and appear as {param} in the template;
// (group) directories organize files without contributing a segment.
type FileSource struct {
	root     string
	basePath string
	logger   *common.Logger
}

// NewFileSource creates a FileSource scanning root. Discovered paths are
// prefixed with basePath (the host app's public API prefix, e.g. "/api").
func NewFileSource(root, basePath string, logger *common.Logger) *FileSource {
	return &FileSource{
		root:     root,
		basePath: strings.TrimSuffix(basePath, "/"),
		logger:   logger,
	}
}

// Root returns the scanned directory.
func (s *FileSource) Root() string {
	return s.root
}

// Scan walks the route tree and returns every discovered endpoint sorted
// by path template. Route files that cannot be read or yield no verbs are
// skipped; only a failure to walk the root itself is an error.
func (s *FileSource) Scan(ctx context.Context) ([]Endpoint, error) {
	if _, err := os.Stat(s.root); err != nil {
		return nil, fmt.Errorf("route root %s: %w", s.root, err)
	}

	found := make(map[string]*Endpoint)

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.logger.Warn().
				Str("path", path).
				Str("error", err.Error()).
				Msg("skipping unreadable entry during route scan")
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		name := d.Name()
		if d.IsDir() {
			if path != s.root && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "node_modules") {
				return fs.SkipDir
			}
			return nil
		}
		if !routeFileNames[name] {
			return nil
		}

		content, readErr := os.ReadFile(path)
		if readErr != nil {
			s.logger.Warn().
				Str("file", path).
				Str("error", readErr.Error()).
				Msg("skipping unreadable route file")
			return nil
		}

		urlPath, pathErr := s.urlPath(filepath.Dir(path))
		if pathErr != nil {
			s.logger.Warn().
				Str("file", path).
				Str("error", pathErr.Error()).
				Msg("skipping route file with unresolvable path")
			return nil
		}

		verbs, docs, summary := parseRouteFile(string(content))
		if len(verbs) == 0 {
			return nil
		}

		ep, ok := found[urlPath]
		if !ok {
			ep = &Endpoint{PathTemplate: urlPath}
			found[urlPath] = ep
		}
		mergeEndpoint(ep, verbs, docs, summary)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning route tree %s: %w", s.root, err)
	}

	endpoints := make([]Endpoint, 0, len(found))
	for _, ep := range found {
		endpoints = append(endpoints, *ep)
	}
	sort.Slice(endpoints, func(i, j int) bool {
		return endpoints[i].PathTemplate < endpoints[j].PathTemplate
	})

	s.logger.Debug().
		Int("endpoints", len(endpoints)).
		Str("root", s.root).
		Msg("route scan complete")

	return endpoints, nil
}

// urlPath converts a route file's directory into its public URL path.
func (s *FileSource) urlPath(dir string) (string, error) {
	rel, err := filepath.Rel(s.root, dir)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)

	var segments []string
	if rel != "." {
		for _, seg := range strings.Split(rel, "/") {
			seg = routeSegment(seg)
			if seg != "" {
				segments = append(segments, seg)
			}
		}
	}
	if len(segments) == 0 {
		return s.basePath, nil
	}
	return s.basePath + "/" + strings.Join(segments, "/"), nil
}

// routeSegment maps one directory name to its URL segment. [param] and
// catch-all [...param] directories become {param}; (group) directories
// contribute nothing.
func routeSegment(name string) string {
	if strings.HasPrefix(name, "(") && strings.HasSuffix(name, ")") {
		return ""
	}
	if strings.HasPrefix(name, "[") && strings.HasSuffix(name, "]") {
		param := strings.Trim(name, "[]")
		param = strings.TrimLeft(param, ".")
		if param == "" {
			return ""
		}
		return "{" + param + "}"
	}
	return name
}

// mergeEndpoint folds one route file's findings into an endpoint,
// preserving canonical verb order and first-wins docs.
func mergeEndpoint(ep *Endpoint, verbs []string, docs map[string]string, summary string) {
	set := make(map[string]bool, len(ep.Methods)+len(verbs))
	for _, v := range ep.Methods {
		set[v] = true
	}
	for _, v := range verbs {
		set[v] = true
	}
	ep.Methods = orderVerbs(set)

	if len(docs) > 0 && ep.MethodDocs == nil {
		ep.MethodDocs = make(map[string]string, len(docs))
	}
	for verb, doc := range docs {
		if _, exists := ep.MethodDocs[verb]; !exists {
			ep.MethodDocs[verb] = doc
		}
	}
	if ep.Summary == "" {
		ep.Summary = summary
	}
}

// verbDecl is one exported verb handler found in a route file.
type verbDecl struct {
	verb  string
	start int
}

// parseRouteFile extracts the declared verbs, per-verb documentation, and
// a path-level summary from route file source text. Documentation is
// best-effort: a /** */ block directly preceding a verb declaration
// becomes that verb's description (first lines only), and the first line
// of the file's first block that does not itself start with a verb name
// becomes the summary.
func parseRouteFile(content string) ([]string, map[string]string, string) {
	decls := findVerbDecls(content)
	if len(decls) == 0 {
		return nil, nil, ""
	}

	set := make(map[string]bool, len(decls))
	for _, d := range decls {
		set[d.verb] = true
	}
	verbs := orderVerbs(set)

	blocks := docBlockRe.FindAllStringSubmatchIndex(content, -1)

	var docs map[string]string
	for _, d := range decls {
		text, ok := blockBefore(content, blocks, d.start)
		if !ok {
			continue
		}
		doc := docText(text, maxDocLines)
		if doc == "" {
			continue
		}
		if docs == nil {
			docs = make(map[string]string)
		}
		if _, exists := docs[d.verb]; !exists {
			docs[d.verb] = doc
		}
	}

	var summary string
	if len(blocks) > 0 {
		first := content[blocks[0][2]:blocks[0][3]]
		for _, line := range docLines(first) {
			if !verbPrefixed(line) {
				summary = line
				break
			}
		}
	}

	return verbs, docs, summary
}

// findVerbDecls locates every exported verb declaration, sorted by offset.
func findVerbDecls(content string) []verbDecl {
	var decls []verbDecl
	for _, re := range []*regexp.Regexp{verbFuncRe, verbConstRe} {
		for _, m := range re.FindAllStringSubmatchIndex(content, -1) {
			decls = append(decls, verbDecl{
				verb:  content[m[2]:m[3]],
				start: m[0],
			})
		}
	}
	sort.Slice(decls, func(i, j int) bool { return decls[i].start < decls[j].start })
	return decls
}

// blockBefore returns the doc block text whose closing */ is separated
// from offset only by whitespace, if any.
func blockBefore(content string, blocks [][]int, offset int) (string, bool) {
	for i := len(blocks) - 1; i >= 0; i-- {
		end := blocks[i][1]
		if end > offset {
			continue
		}
		if strings.TrimSpace(content[end:offset]) != "" {
			return "", false
		}
		return content[blocks[i][2]:blocks[i][3]], true
	}
	return "", false
}

// docLines cleans a doc block body into its content lines: leading
// asterisks and whitespace stripped, empty and @annotation lines dropped.
func docLines(block string) []string {
	var lines []string
	for _, raw := range strings.Split(block, "\n") {
		line := strings.TrimSpace(raw)
		line = strings.TrimPrefix(line, "*")
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "@") {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// docText joins up to max leading content lines of a block.
func docText(block string, max int) string {
	lines := docLines(block)
	if len(lines) > max {
		lines = lines[:max]
	}
	return strings.Join(lines, " ")
}

// verbPrefixed reports whether a doc line starts with an HTTP verb name.
func verbPrefixed(line string) bool {
	upper := strings.ToUpper(line)
	for _, verb := range httpVerbs {
		if upper == verb || strings.HasPrefix(upper, verb+" ") || strings.HasPrefix(upper, verb+":") {
			return true
		}
	}
	return false
}
