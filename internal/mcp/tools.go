package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"actionbroker/internal/broker"
	"actionbroker/internal/catalog"
	"actionbroker/internal/config"
	"actionbroker/internal/scoring"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// BuildTool converts a catalog method into an mcp.Tool with the appropriate
// input schema. Path parameters are required strings; query parameters and
// body fields are optional strings unless the capabilities enrichment marks
// a body field required. Mutating methods additionally expose the approved
// flag. A name claimed by an earlier role is not redeclared: the argument
// schema is flat, so path wins over query wins over body.
func BuildTool(m catalog.MethodSpec) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(m.Description)}
	seen := make(map[string]bool, len(m.PathParams)+len(m.QueryParams)+len(m.BodyFields))

	for _, p := range m.PathParams {
		if seen[p] {
			continue
		}
		seen[p] = true
		opts = append(opts, mcp.WithString(p, mcp.Description("path parameter"), mcp.Required()))
	}
	for _, q := range m.QueryParams {
		if seen[q] {
			continue
		}
		seen[q] = true
		opts = append(opts, mcp.WithString(q, mcp.Description("query parameter")))
	}
	for _, f := range m.RequiredBodyFields {
		if seen[f] {
			continue
		}
		seen[f] = true
		opts = append(opts, mcp.WithString(f, mcp.Description("body field"), mcp.Required()))
	}
	for _, f := range m.BodyFields {
		if seen[f] {
			continue
		}
		seen[f] = true
		opts = append(opts, mcp.WithString(f, mcp.Description("body field")))
	}
	if !m.ReadOnly && !seen["approved"] {
		opts = append(opts, mcp.WithBoolean("approved",
			mcp.Description("Set true to execute this mutating call. When false or absent the call is held and a draft is returned for review.")))
	}

	return mcp.NewTool(m.Name, opts...)
}

// MethodToolHandler creates a handler that routes an MCP tool call through
// the broker to the host application endpoint the method describes. Path
// parameters are substituted into the template, query parameters become the
// query string, and every remaining argument passes through as the JSON
// body, so callers are not limited to the advertised body fields. Mutating
// calls without approved:true come back as approval drafts.
func MethodToolHandler(brk *broker.Broker, m catalog.MethodSpec) server.ToolHandlerFunc {
	return func(ctx context.Context, r mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		creds, _ := CredentialsFromContext(ctx)
		args := r.GetArguments()

		path := m.PathTemplate
		consumed := map[string]bool{"approved": true}
		for _, p := range m.PathParams {
			val := r.GetString(p, "")
			if val == "" {
				return errorResult(fmt.Sprintf("Error: %s parameter is required", p)), nil
			}
			path = strings.ReplaceAll(path, "{"+p+"}", url.PathEscape(val))
			consumed[p] = true
		}

		query := map[string]string{}
		for _, q := range m.QueryParams {
			if consumed[q] {
				continue
			}
			consumed[q] = true
			if val := r.GetString(q, ""); val != "" {
				query[q] = val
			}
		}

		body := map[string]interface{}{}
		for name, val := range args {
			if consumed[name] || val == nil {
				continue
			}
			body[name] = val
		}

		approved := false
		if v, ok := args["approved"].(bool); ok {
			approved = v
		}

		input := broker.Input{
			Request: broker.Request{
				Method: m.Method,
				Path:   path,
				Query:  queryOrNil(query),
				Body:   bodyOrNil(body),
			},
			Approved: approved,
		}

		draft, result, err := brk.Single(ctx, creds, input)
		if err != nil {
			return errorResult(fmt.Sprintf("Error: %v", err)), nil
		}
		if draft != nil {
			return jsonResult(map[string]interface{}{
				"requiresApproval": true,
				"draft":            draft,
			})
		}
		if !result.OK() {
			out, merr := json.Marshal(result)
			if merr != nil {
				return errorResult(fmt.Sprintf("Error: %s", result.Error)), nil
			}
			return errorResult(string(out)), nil
		}
		return jsonResult(result)
	}
}

// SearchTool returns the tool definition for search_actions, the discovery
// entry point for callers that do not know method names yet.
func SearchTool() mcp.Tool {
	return mcp.NewTool("search_actions",
		mcp.WithDescription("Search the action catalog with a free-text query and get back the most relevant methods, best match first."),
		mcp.WithString("query",
			mcp.Description("What you want to do, e.g. \"create a company\"."),
			mcp.Required()),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results (1-50, default 10).")),
	)
}

// SearchToolHandler ranks the current catalog against the query.
func SearchToolHandler(svc *catalog.Service, scorer *scoring.Scorer) server.ToolHandlerFunc {
	return func(ctx context.Context, r mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := r.GetString("query", "")
		if strings.TrimSpace(query) == "" {
			return errorResult("Error: query parameter is required"), nil
		}

		limit := 0
		if args := r.GetArguments(); args != nil {
			if v, ok := args["limit"].(float64); ok {
				limit = int(v)
			}
		}

		methods, _, err := svc.Methods(ctx)
		if err != nil {
			return errorResult(fmt.Sprintf("Error: %v", err)), nil
		}

		candidates := scorer.Score(query, methods, limit)
		if candidates == nil {
			candidates = []scoring.Candidate{}
		}
		return jsonResult(map[string]interface{}{
			"query":      query,
			"count":      len(candidates),
			"candidates": candidates,
		})
	}
}

// VersionTool returns the tool definition for get_version.
func VersionTool() mcp.Tool {
	return mcp.NewTool("get_version",
		mcp.WithDescription("Get the action broker version. Use this to verify connectivity."),
	)
}

// VersionToolHandler reports the broker's build information.
func VersionToolHandler() server.ToolHandlerFunc {
	return func(ctx context.Context, r mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(map[string]string{
			"version":    config.GetVersion(),
			"build":      config.GetBuild(),
			"git_commit": config.GetGitCommit(),
		})
	}
}

// errorResult creates an MCP error result.
func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(message),
		},
		IsError: true,
	}
}

// jsonResult marshals v into a text content result.
func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	out, err := json.Marshal(v)
	if err != nil {
		return errorResult(fmt.Sprintf("Error: %v", err)), nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(out))},
	}, nil
}

// bodyOrNil returns nil for an empty body map so read-style calls carry no
// JSON body.
func bodyOrNil(body map[string]interface{}) map[string]interface{} {
	if len(body) == 0 {
		return nil
	}
	return body
}

// queryOrNil returns nil for an empty query map.
func queryOrNil(query map[string]string) map[string]string {
	if len(query) == 0 {
		return nil
	}
	return query
}
