package app

import (
	"context"
	"log"

	mcpserver "masterdata/internal/mcp"
)

// ServeMCP runs the platform as an MCP server on stdin/stdout until
// the context is cancelled or stdin closes. Watchers run alongside so
// scheduled and file-triggered workflows fire while serving.
func (a *App) ServeMCP(ctx context.Context) error {
	a.StartWatchers(ctx)

	srv := mcpserver.New(ctx, mcpserver.Deps{
		Emitter:   a.emitter,
		Workflows: a.Workflows,
		Entities:  a.Entities,
		Database:  a.Database,
	})

	log.Println("mcp: serving on stdio")
	return srv.ServeStdio()
}
