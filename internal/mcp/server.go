// Package mcp provides an MCP (Model Context Protocol) server for sweeper.
// It exposes read-only batch inspection tools: completion status from the run
// ledger, scaffolded experiment cells, and produced collated files.
package mcp

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps the MCP SDK server with sweeper's batch inspection tools.
type Server struct {
	server *sdk.Server
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "sweeper")
	Version string // Server version
}

// NewServer creates a new MCP server with sweeper tools registered.
func NewServer(cfg *Config) (*Server, error) {
	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	s := &Server{server: mcpServer}
	s.registerTools()
	return s, nil
}

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		cancel()
	}()

	return s.server.Run(ctx, &sdk.StdioTransport{})
}
