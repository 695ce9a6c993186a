package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"masterdata/internal/domain"
	"masterdata/internal/service"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerEntityTools() {
	s.mcp.AddTool(mcp.NewTool("create_entity_type",
		mcp.WithDescription(`Create a master-data entity type. The config is a JSON object {keyField, fields: [{name, label, type}]} where type is text, number, boolean, or datetime. The key field is used for upserts when workflows write in update mode.`),
		mcp.WithString("name", mcp.Description("Unique type name, referenced by workflow definitions"), mcp.Required()),
		mcp.WithString("label", mcp.Description("Human-readable label")),
		mcp.WithString("configJSON", mcp.Description("Type configuration as JSON"), mcp.Required()),
	), s.handleCreateEntityType)

	s.mcp.AddTool(mcp.NewTool("list_entity_types",
		mcp.WithDescription("List all entity types"),
	), s.handleListEntityTypes)

	s.mcp.AddTool(mcp.NewTool("delete_entity_type",
		mcp.WithDescription("🛑 DESTRUCTIVE: Delete an entity type and all of its records"),
		mcp.WithString("name", mcp.Description("Entity type name"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleDeleteEntityType)

	s.mcp.AddTool(mcp.NewTool("list_entities",
		mcp.WithDescription("List records of an entity type"),
		mcp.WithString("typeName", mcp.Description("Entity type name"), mcp.Required()),
	), s.handleListEntities)

	s.mcp.AddTool(mcp.NewTool("create_entity",
		mcp.WithDescription("Create a single entity record"),
		mcp.WithString("typeName", mcp.Description("Entity type name"), mcp.Required()),
		mcp.WithString("dataJSON", mcp.Description("Field values as a JSON object"), mcp.Required()),
	), s.handleCreateEntity)

	s.mcp.AddTool(mcp.NewTool("delete_entity",
		mcp.WithDescription("Delete a single entity record"),
		mcp.WithString("entityId", mcp.Description("Entity ID"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleDeleteEntity)
}

func (s *Server) handleCreateEntityType(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	label := req.GetString("label", "")
	cfgStr := req.GetString("configJSON", "")
	if name == "" || cfgStr == "" {
		return nil, fmt.Errorf("name and configJSON are required")
	}

	var cfg domain.TypeConfig
	if err := json.Unmarshal([]byte(cfgStr), &cfg); err != nil {
		return nil, fmt.Errorf("parse type config: %w", err)
	}

	t, err := s.entities.CreateType(ctx, service.CreateEntityTypeInput{
		Name:   name,
		Label:  label,
		Config: cfg,
	})
	if err != nil {
		return nil, fmt.Errorf("create entity type: %w", err)
	}
	return jsonResult(t)
}

func (s *Server) handleListEntityTypes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	types, err := s.entities.ListTypes()
	if err != nil {
		return nil, fmt.Errorf("list entity types: %w", err)
	}
	return jsonResult(types)
}

func (s *Server) handleDeleteEntityType(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if err := s.entities.DeleteType(ctx, name); err != nil {
		return nil, fmt.Errorf("delete entity type: %w", err)
	}
	return textResult("Entity type deleted"), nil
}

func (s *Server) handleListEntities(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typeName := req.GetString("typeName", "")
	if typeName == "" {
		return nil, fmt.Errorf("typeName is required")
	}
	entities, err := s.entities.ListEntities(typeName)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	return jsonResult(entities)
}

func (s *Server) handleCreateEntity(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typeName := req.GetString("typeName", "")
	dataStr := req.GetString("dataJSON", "")
	if typeName == "" || dataStr == "" {
		return nil, fmt.Errorf("typeName and dataJSON are required")
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(dataStr), &data); err != nil {
		return nil, fmt.Errorf("parse entity data: %w", err)
	}

	e, err := s.entities.CreateEntity(ctx, typeName, data)
	if err != nil {
		return nil, fmt.Errorf("create entity: %w", err)
	}
	return jsonResult(e)
}

func (s *Server) handleDeleteEntity(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("entityId", "")
	if id == "" {
		return nil, fmt.Errorf("entityId is required")
	}
	if err := s.entities.DeleteEntity(ctx, id); err != nil {
		return nil, fmt.Errorf("delete entity: %w", err)
	}
	return textResult("Entity deleted"), nil
}
