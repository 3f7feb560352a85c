package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kpblcaoo/llmstruct/internal/assembler"
)

// ModuleToolName is the MCP name of the module lookup tool.
const ModuleToolName = "llmstruct_module"

// ModuleResponse is the JSON response of the llmstruct_module tool.
type ModuleResponse struct {
	Entry    assembler.IndexEntry  `json:"entry"`
	Module   *assembler.ModuleFile `json:"module,omitempty"`
	Metadata ResponseMetadata      `json:"metadata"`
}

// ResponseMetadata contains timing and source information.
type ResponseMetadata struct {
	TookMs int    `json:"took_ms"`
	Source string `json:"source"`
}

// AddModuleTool registers the llmstruct_module tool with an MCP server.
func AddModuleTool(s *server.MCPServer, reader StructReader) {
	tool := mcp.NewTool(
		ModuleToolName,
		mcp.WithDescription(`Look up one module of the analyzed project by UID.

Returns the index entry (summary, tags, dependencies, dependents, counts) and,
unless include_entities is false, the full module file with its functions,
classes, imports and outgoing calls.

Module UIDs are dotted paths without extension: "pkg.server", "app.models".
Multi-language projects prefix them with the language: "go:pkg.server".`),
		mcp.WithString("uid",
			mcp.Required(),
			mcp.Description("Module UID (e.g. 'pkg.server')")),
		mcp.WithBoolean("include_entities",
			mcp.Description("Include functions, classes, imports and calls (default: true)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, createModuleHandler(reader))
}

// createModuleHandler creates the handler function for llmstruct_module tool.
func createModuleHandler(reader StructReader) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		startTime := time.Now()

		argsMap, err := argumentsMap(request.Params.Arguments)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		uid, err := parseStringArg(argsMap, "uid", true)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		includeEntities := parseBoolArg(argsMap, "include_entities", true)

		entry, ok := reader.Module(uid)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("module not found: %s", uid)), nil
		}

		response := &ModuleResponse{Entry: entry}
		if includeEntities {
			mf, err := reader.LoadModule(uid)
			if err != nil {
				return nil, fmt.Errorf("failed to load module %s: %w", uid, err)
			}
			response.Module = mf
		}
		response.Metadata = ResponseMetadata{
			TookMs: int(time.Since(startTime).Milliseconds()),
			Source: "module",
		}

		return jsonResult(response)
	}
}

// jsonResult marshals v into a text result (mcp-go convention).
func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonData, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}
