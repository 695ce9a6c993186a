package mcpserver

import (
	"context"
	"log"

	"masterdata/internal/service"

	"github.com/mark3labs/mcp-go/server"
)

// Server is the MCP server for the master-data platform.
// It exposes tools so AI agents can manage workflows, entities, and
// database connections.
type Server struct {
	mcp     *server.MCPServer
	emitter service.EventEmitter

	workflows *service.WorkflowService
	entities  *service.EntityService
	database  *service.DatabaseService
}

// Deps holds all dependencies injected into the MCP server.
type Deps struct {
	Emitter   service.EventEmitter
	Workflows *service.WorkflowService
	Entities  *service.EntityService
	Database  *service.DatabaseService
}

// New creates and configures a new MCP server with all tools.
func New(ctx context.Context, deps Deps) *Server {
	s := &Server{
		emitter:   deps.Emitter,
		workflows: deps.Workflows,
		entities:  deps.Entities,
		database:  deps.Database,
	}

	s.mcp = server.NewMCPServer(
		"masterdata-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.registerWorkflowTools()
	s.registerEntityTools()
	s.registerDatabaseTools()

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	log.Println("mcp: starting stdio server")
	return server.ServeStdio(s.mcp)
}
