package mcp

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kpblcaoo/llmstruct/internal/assembler"
)

// CallsToolName is the MCP name of the call graph tool.
const CallsToolName = "llmstruct_calls"

// Call graph operations.
const (
	OperationCallees       = "callees"
	OperationCallers       = "callers"
	OperationModuleCalls   = "module_calls"
	OperationModuleCallers = "module_callers"
)

const (
	defaultMaxCalls = 100
	maxCalls        = 500
)

// CallsResponse is the JSON response of the llmstruct_calls tool.
type CallsResponse struct {
	Operation     string               `json:"operation"`
	Target        string               `json:"target"`
	Calls         []assembler.CallEdge `json:"calls"`
	TotalFound    int                  `json:"total_found"`
	TotalReturned int                  `json:"total_returned"`
	Truncated     bool                 `json:"truncated"`
	Metadata      ResponseMetadata     `json:"metadata"`
}

// AddCallsTool registers the llmstruct_calls tool with an MCP server.
func AddCallsTool(s *server.MCPServer, reader StructReader) {
	tool := mcp.NewTool(
		CallsToolName,
		mcp.WithDescription(`Traverse the project call graph. Operations:
- callees: calls made by a function (target is the function UID, e.g. 'pkg.server.start#function')
- callers: call sites of a name (target is the callee as written, e.g. 'db.connect' or 'connect')
- module_calls: every call made from inside a module (target is a module UID)
- module_callers: calls from other modules resolved into a module (target is a module UID)`),
		mcp.WithString("operation",
			mcp.Required(),
			mcp.Description("One of 'callees', 'callers', 'module_calls', 'module_callers'")),
		mcp.WithString("target",
			mcp.Required(),
			mcp.Description("Function UID, callee name or module UID depending on the operation")),
		mcp.WithNumber("max_results",
			mcp.Description("Maximum number of calls to return (default: 100, max: 500)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, createCallsHandler(reader))
}

// createCallsHandler creates the handler function for llmstruct_calls tool.
func createCallsHandler(reader StructReader) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		startTime := time.Now()

		argsMap, err := argumentsMap(request.Params.Arguments)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if _, err := parseStringArg(argsMap, "operation", true); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		operation, err := parseEnumArg(argsMap, "operation", "",
			OperationCallees, OperationCallers, OperationModuleCalls, OperationModuleCallers)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		target, err := parseStringArg(argsMap, "target", true)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		maxResults := parseClampedInt(argsMap, "max_results", defaultMaxCalls, 1, maxCalls)

		var calls []assembler.CallEdge
		switch operation {
		case OperationCallees:
			calls = reader.Callees(target)
		case OperationCallers:
			calls = reader.Callers(target)
		case OperationModuleCalls:
			calls = reader.ModuleCalls(target)
		case OperationModuleCallers:
			calls = reader.CallersOfModule(target)
		}

		response := &CallsResponse{
			Operation:  operation,
			Target:     target,
			TotalFound: len(calls),
		}
		if len(calls) > maxResults {
			calls = calls[:maxResults]
			response.Truncated = true
		}
		if calls == nil {
			calls = []assembler.CallEdge{}
		}
		response.Calls = calls
		response.TotalReturned = len(calls)
		response.Metadata = ResponseMetadata{
			TookMs: int(time.Since(startTime).Milliseconds()),
			Source: "callgraph",
		}

		return jsonResult(response)
	}
}
