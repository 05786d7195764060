// Package server hosts the ecoroute MCP server and its HTTP transport.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/tools"
	"github.com/NERVsystems/ecoroute/pkg/version"
)

// ServerName is the name of the MCP server
const ServerName = "ecoroute"

// Option customises a Server.
type Option func(*Server)

// WithStdio replaces stdin and stdout for the stdio transport.
func WithStdio(in io.Reader, out io.Writer) Option {
	return func(s *Server) {
		s.in, s.out = in, out
	}
}

// Server exposes the trip planning tools over MCP.
type Server struct {
	mcp    *mcpserver.MCPServer
	logger *slog.Logger
	in     io.Reader
	out    io.Writer

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewServer creates an MCP server with every tool in registry registered.
func NewServer(registry *tools.Registry, logger *slog.Logger, opts ...Option) (*Server, error) {
	if registry == nil {
		return nil, core.NewError(core.ErrInvalidInput, "tool registry is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	srv := mcpserver.NewMCPServer(
		ServerName,
		version.BuildVersion,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithPromptCapabilities(false),
		mcpserver.WithRecovery(),
	)
	registry.RegisterAll(srv)

	s := &Server{
		mcp:    srv,
		logger: logger.With("component", "mcp"),
		in:     os.Stdin,
		out:    os.Stdout,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.logger.Info("MCP server ready",
		"name", ServerName,
		"version", version.BuildVersion,
		"tools", len(registry.GetToolNames()))
	return s, nil
}

// Run serves MCP over stdio until the input closes or Shutdown is called.
func (s *Server) Run() error {
	return s.RunWithContext(context.Background())
}

// RunWithContext serves MCP over stdio until ctx is done, the input
// closes or Shutdown is called. A closed input is a clean exit.
func (s *Server) RunWithContext(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return core.NewError(core.ErrInvalidInput, "stdio transport already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel, s.done = cancel, done
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
		close(done)
	}()

	stdio := mcpserver.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))

	s.logger.Info("serving MCP on stdio")
	err := stdio.Listen(ctx, s.in, s.out)
	switch {
	case err == nil, errors.Is(err, io.EOF), errors.Is(err, context.Canceled):
		s.logger.Info("stdio transport stopped")
		return nil
	default:
		s.logger.Error("stdio transport failed", "error", err)
		return err
	}
}

// Shutdown stops the stdio transport and returns immediately. It is a no-op
// when the transport is not running.
func (s *Server) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// WaitForShutdown blocks until a running stdio transport has returned.
func (s *Server) WaitForShutdown() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

// GetMCPServer returns the underlying MCP server for the HTTP transport.
func (s *Server) GetMCPServer() *mcpserver.MCPServer {
	return s.mcp
}
