package mcpserver

import (
	"context"
	"fmt"

	"masterdata/internal/service"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerDatabaseTools() {
	s.mcp.AddTool(mcp.NewTool("list_db_connections",
		mcp.WithDescription("List all registered database connections"),
	), s.handleListDBConnections)

	s.mcp.AddTool(mcp.NewTool("create_db_connection",
		mcp.WithDescription("Register a database connection for workflow sources. The password is stored in the secret store, never in the connection record."),
		mcp.WithString("name", mcp.Description("Connection name"), mcp.Required()),
		mcp.WithString("driver", mcp.Description("mysql, postgres, mongodb, or sqlite"), mcp.Required()),
		mcp.WithString("host", mcp.Description("Hostname, connection URI, or file path (sqlite)"), mcp.Required()),
		mcp.WithNumber("port", mcp.Description("Port (0 for driver default)")),
		mcp.WithString("database", mcp.Description("Database name")),
		mcp.WithString("username", mcp.Description("Username")),
		mcp.WithString("password", mcp.Description("Password (stored in the secret store)")),
		mcp.WithString("sslMode", mcp.Description("SSL mode (disable, require)")),
	), s.handleCreateDBConnection)

	s.mcp.AddTool(mcp.NewTool("delete_db_connection",
		mcp.WithDescription("Delete a database connection and its stored secret"),
		mcp.WithString("connectionId", mcp.Description("Connection ID"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleDeleteDBConnection)

	s.mcp.AddTool(mcp.NewTool("test_db_connection",
		mcp.WithDescription("Test that a database connection is reachable"),
		mcp.WithString("connectionId", mcp.Description("Connection ID"), mcp.Required()),
	), s.handleTestDBConnection)

	s.mcp.AddTool(mcp.NewTool("introspect_database",
		mcp.WithDescription("Get schema information (tables and columns) of a database connection"),
		mcp.WithString("connectionId", mcp.Description("Connection ID"), mcp.Required()),
	), s.handleIntrospectDatabase)
}

func (s *Server) handleListDBConnections(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	conns, err := s.database.ListConnections()
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	return jsonResult(conns)
}

func (s *Server) handleCreateDBConnection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	input := service.CreateDBConnInput{
		Name:     req.GetString("name", ""),
		Driver:   req.GetString("driver", ""),
		Host:     req.GetString("host", ""),
		Port:     int(getFloat(args, "port", 0)),
		Database: req.GetString("database", ""),
		Username: req.GetString("username", ""),
		Password: req.GetString("password", ""),
		SSLMode:  req.GetString("sslMode", ""),
	}
	if input.Name == "" || input.Driver == "" || input.Host == "" {
		return nil, fmt.Errorf("name, driver, and host are required")
	}

	conn, err := s.database.CreateConnection(input)
	if err != nil {
		return nil, fmt.Errorf("create connection: %w", err)
	}
	return jsonResult(conn)
}

func (s *Server) handleDeleteDBConnection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("connectionId", "")
	if id == "" {
		return nil, fmt.Errorf("connectionId is required")
	}
	if err := s.database.DeleteConnection(id); err != nil {
		return nil, fmt.Errorf("delete connection: %w", err)
	}
	return textResult("Connection deleted"), nil
}

func (s *Server) handleTestDBConnection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("connectionId", "")
	if id == "" {
		return nil, fmt.Errorf("connectionId is required")
	}
	if err := s.database.TestConnection(ctx, id); err != nil {
		return textResult(fmt.Sprintf("Connection failed: %v", err)), nil
	}
	return textResult("Connection OK"), nil
}

func (s *Server) handleIntrospectDatabase(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("connectionId", "")
	if id == "" {
		return nil, fmt.Errorf("connectionId is required")
	}
	schema, err := s.database.Introspect(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("introspect: %w", err)
	}
	return jsonResult(schema)
}
