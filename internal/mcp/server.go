// Package mcp exposes a generated modular directory to MCP clients over
// stdio. Every tool is read-only.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"

	"github.com/kpblcaoo/llmstruct/internal/assembler"
	"github.com/kpblcaoo/llmstruct/internal/search"
)

// ServerName is reported to MCP clients during initialization.
const ServerName = "llmstruct-mcp"

// StructReader is the read side of a generated modular directory.
// *assembler.Reader implements it.
type StructReader interface {
	Module(uid string) (assembler.IndexEntry, bool)
	LoadModule(uid string) (*assembler.ModuleFile, error)
	Callees(callerUID string) []assembler.CallEdge
	Callers(calleeName string) []assembler.CallEdge
	ModuleCalls(uid string) []assembler.CallEdge
	CallersOfModule(uid string) []assembler.CallEdge
}

// EntitySearcher runs full-text queries. *search.Index implements it.
type EntitySearcher interface {
	Search(ctx context.Context, queryStr string, opts *search.Options) ([]search.Result, error)
}

// MCPServer manages the MCP server lifecycle.
type MCPServer struct {
	index  *search.Index
	mcp    *server.MCPServer
	logger *slog.Logger
}

// NewMCPServer opens the modular directory at dir, indexes it for search
// and registers the llmstruct tools.
func NewMCPServer(ctx context.Context, dir, version string, logger *slog.Logger) (*MCPServer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	reader, err := assembler.OpenReader(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", dir, err)
	}

	index, err := search.BuildFromReader(ctx, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build search index: %w", err)
	}

	mcpServer := server.NewMCPServer(
		ServerName,
		version,
		server.WithToolCapabilities(true),
	)
	AddModuleTool(mcpServer, reader)
	AddCallsTool(mcpServer, reader)
	AddSearchTool(mcpServer, index)

	logger.Info("mcp server ready", "dir", dir, "modules", len(reader.UIDs()))

	return &MCPServer{
		index:  index,
		mcp:    mcpServer,
		logger: logger,
	}, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown.
func (s *MCPServer) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting MCP server on stdio")
		if err := server.ServeStdio(s.mcp); err != nil {
			errCh <- fmt.Errorf("MCP server error: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-sigCh:
		s.logger.Info("received shutdown signal, stopping")
		return nil
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases all resources.
func (s *MCPServer) Close() error {
	if s.index != nil {
		return s.index.Close()
	}
	return nil
}
