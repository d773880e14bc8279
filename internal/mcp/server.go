// Package mcp provides an MCP (Model Context Protocol) server exposing
// stored convergence runs for inspection by agent tooling.
package mcp

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/karthik11135/tardis/internal/store"
)

// Server wraps the MCP SDK server around a run store.
type Server struct {
	server *sdk.Server
	store  *store.RunStore
	audit  *AuditLogger
	root   string
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "tardis")
	Version string // Server version
	Root    string // Working root holding the .tardis directory
}

// NewServer creates a new MCP server with the run inspection tools.
func NewServer(cfg *Config) (*Server, error) {
	runStore, err := store.Open(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			// Client initialized, ready to serve
		},
	})

	s := &Server{
		server: mcpServer,
		store:  runStore,
		audit:  NewAuditLogger(store.LocalTardisPath(cfg.Root)),
		root:   cfg.Root,
	}
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

	err := s.server.Run(ctx, &sdk.StdioTransport{})

	s.Close()

	return err
}

// Close closes the server and releases resources.
func (s *Server) Close() error {
	s.audit.Close()
	return s.store.Close()
}
