package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kpblcaoo/llmstruct/internal/search"
)

// SearchToolName is the MCP name of the full-text search tool.
const SearchToolName = "llmstruct_search"

// SearchResponse is the JSON response of the llmstruct_search tool.
type SearchResponse struct {
	Query         string           `json:"query"`
	Results       []search.Result  `json:"results"`
	TotalReturned int              `json:"total_returned"`
	Metadata      ResponseMetadata `json:"metadata"`
}

// AddSearchTool registers the llmstruct_search tool with an MCP server.
func AddSearchTool(s *server.MCPServer, searcher EntitySearcher) {
	tool := mcp.NewTool(
		SearchToolName,
		mcp.WithDescription(`Full-text search over module, function and class names, docstrings,
signatures and tags, using bleve query syntax.

Supports:
- Field scoping: name:parse, doc:"retry policy", tags:io, file_path:server
- Required/excluded terms: +handler -test
- Wildcards: Pars* (prefix matching)
- Fuzzy: Parsre~1 (edit distance)

Identifiers are split into words, so 'parse' finds ParseFile and parse_file.`),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Bleve query string")),
		mcp.WithString("kind",
			mcp.Description("Restrict to 'module', 'function' or 'class'")),
		mcp.WithString("language",
			mcp.Description("Restrict to one language (e.g. 'python', 'go')")),
		mcp.WithString("tag",
			mcp.Description("Restrict to entities carrying this tag")),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results to return (1-100, default: 15)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, createSearchHandler(searcher))
}

// createSearchHandler creates the handler function for llmstruct_search tool.
func createSearchHandler(searcher EntitySearcher) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		startTime := time.Now()

		argsMap, err := argumentsMap(request.Params.Arguments)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		query, err := parseStringArg(argsMap, "query", true)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		kind, err := parseEnumArg(argsMap, "kind", "", search.KindModule, search.KindFunction, search.KindClass)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		language, err := parseStringArg(argsMap, "language", false)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		tag, err := parseStringArg(argsMap, "tag", false)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		results, err := searcher.Search(ctx, query, &search.Options{
			Limit:    parseIntArg(argsMap, "limit", 15),
			Kind:     kind,
			Language: language,
			Tag:      tag,
		})
		if errors.Is(err, search.ErrEmptyQuery) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err != nil {
			return nil, fmt.Errorf("search failed: %w", err)
		}
		if results == nil {
			results = []search.Result{}
		}

		return jsonResult(&SearchResponse{
			Query:         query,
			Results:       results,
			TotalReturned: len(results),
			Metadata: ResponseMetadata{
				TookMs: int(time.Since(startTime).Milliseconds()),
				Source: "search",
			},
		})
	}
}
