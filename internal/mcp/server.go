package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/vaultrag/internal/indexer"
	"github.com/dshills/vaultrag/internal/searcher"
	"github.com/dshills/vaultrag/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "vaultrag"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// StatusReporter reports index record counts.
type StatusReporter interface {
	GetStatus(ctx context.Context) (*storage.Status, error)
}

// KeySetter stores a new provider API key and rebinds the provider handles.
type KeySetter interface {
	SetAPIKey(ctx context.Context, key string) error
}

// Deps are the components the tools call into. Keys may be nil, which leaves
// set_api_key unregistered.
type Deps struct {
	Searcher   *searcher.Searcher
	Maintainer *indexer.Maintainer
	Storage    StatusReporter
	Keys       KeySetter
	Logger     *slog.Logger
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp        *server.MCPServer
	searcher   *searcher.Searcher
	maintainer *indexer.Maintainer
	storage    StatusReporter
	keys       KeySetter
	logger     *slog.Logger
}

// NewServer creates a new MCP server instance
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	s := &Server{
		mcp: server.NewMCPServer(
			ServerName,
			ServerVersion,
			server.WithToolCapabilities(false),
		),
		searcher:   deps.Searcher,
		maintainer: deps.Maintainer,
		storage:    deps.Storage,
		keys:       deps.Keys,
		logger:     deps.Logger,
	}
	s.registerTools()
	return s
}

// Serve runs the MCP protocol on stdio until ctx is cancelled or stdin closes.
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	s.logger.Info("mcp server listening on stdio", "name", ServerName, "version", ServerVersion)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(searchNotesTool(), s.handleSearchNotes)
	s.mcp.AddTool(indexVaultTool(), s.handleIndexVault)
	s.mcp.AddTool(indexStatusTool(), s.handleIndexStatus)
	s.mcp.AddTool(controlIndexingTool(), s.handleControlIndexing)
	s.mcp.AddTool(rebuildDateIndexTool(), s.handleRebuildDateIndex)
	if s.keys != nil {
		s.mcp.AddTool(setAPIKeyTool(), s.handleSetAPIKey)
	}
}
