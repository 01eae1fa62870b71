// Package mcp provides an MCP (Model Context Protocol) server for tickframe.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/tickframe/internal/config"
	"github.com/nvandessel/tickframe/internal/experiment"
	"github.com/nvandessel/tickframe/internal/logging"
	"github.com/nvandessel/tickframe/internal/ratelimit"
	"github.com/nvandessel/tickframe/internal/store"
)

// Server wraps the MCP SDK server and exposes experiment runs as tools.
type Server struct {
	server    *sdk.Server
	store     store.RunStore
	ownsStore bool
	runner    *experiment.Runner
	root      string
	limiters  ratelimit.ToolLimiters
	audit     *AuditLogger
	logger    *slog.Logger
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "tickframe")
	Version string // Server version
	Root    string // Project root directory

	// Store is used when set; otherwise the configured backend is opened
	// under Root and closed with the server.
	Store store.RunStore

	// Logger receives operational logs. Default: discard.
	Logger *slog.Logger
}

// NewServer creates a new MCP server with tickframe tools.
func NewServer(cfg *Config) (*Server, error) {
	tc, err := config.Load(cfg.Root)
	if err != nil {
		return nil, err
	}
	if err := tc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	rs, owns := cfg.Store, false
	if rs == nil {
		rs, err = store.Open(cfg.Root, tc.Store.Backend)
		if err != nil {
			return nil, fmt.Errorf("failed to open run store: %w", err)
		}
		owns = true
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	s := &Server{
		server:    mcpServer,
		store:     rs,
		ownsStore: owns,
		runner: experiment.NewRunner(rs, tc.ResultsRoot(cfg.Root),
			experiment.WithLogger(logger),
			experiment.WithLogLevel(tc.Logging.Level),
			experiment.WithFormats(tc.Results.Formats),
			experiment.WithDefaultSeed(tc.Defaults.Seed)),
		root:     cfg.Root,
		limiters: ratelimit.NewToolLimiters(),
		audit:    NewAuditLogger(cfg.Root),
		logger:   logger,
	}

	s.registerTools()
	s.registerResources()
	return s, nil
}

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	s.logger.Info("mcp server started", "root", s.root)
	err := s.server.Run(ctx, &sdk.StdioTransport{})
	if closeErr := s.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// Close releases the audit log and, when the server opened it, the store.
func (s *Server) Close() error {
	auditErr := s.audit.Close()
	if s.ownsStore {
		s.ownsStore = false
		if err := s.store.Close(); err != nil {
			return err
		}
	}
	return auditErr
}
