package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"masterdata/internal/service"
	"masterdata/internal/workflow"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerWorkflowTools() {
	s.mcp.AddTool(mcp.NewTool("create_workflow",
		mcp.WithDescription(`Create a workflow job. The definition is a JSON object {steps: [...]} where each step has from, optional transform, and to clauses. Sources: format (csv_file, json_file, http, database), entity, previous_step. Transforms: calculate ({target, op (add|subtract|multiply|divide), left, right}) and concatenate ({target, parts, separator}); operands reference fields by name ({field}) or carry literals ({literal}). Mappings are ordered {source: target} objects; an empty mapping passes every field through unchanged.`),
		mcp.WithString("name", mcp.Description("Workflow name"), mcp.Required()),
		mcp.WithString("definitionJSON", mcp.Description("Workflow definition as JSON"), mcp.Required()),
		mcp.WithString("triggerType", mcp.Description("manual (default), schedule, or file_watch")),
		mcp.WithString("triggerConfig", mcp.Description("Cron expression (schedule) or file path (file_watch)")),
	), s.handleCreateWorkflow)

	s.mcp.AddTool(mcp.NewTool("list_workflows",
		mcp.WithDescription("List all workflow jobs with their trigger and last run status"),
	), s.handleListWorkflows)

	s.mcp.AddTool(mcp.NewTool("get_workflow",
		mcp.WithDescription("Get a workflow job including its full step definition"),
		mcp.WithString("workflowId", mcp.Description("Workflow ID"), mcp.Required()),
	), s.handleGetWorkflow)

	s.mcp.AddTool(mcp.NewTool("update_workflow",
		mcp.WithDescription("Replace a workflow job's name, definition, and trigger"),
		mcp.WithString("workflowId", mcp.Description("Workflow ID"), mcp.Required()),
		mcp.WithString("name", mcp.Description("Workflow name"), mcp.Required()),
		mcp.WithString("definitionJSON", mcp.Description("Workflow definition as JSON"), mcp.Required()),
		mcp.WithString("triggerType", mcp.Description("manual, schedule, or file_watch")),
		mcp.WithString("triggerConfig", mcp.Description("Cron expression or file path")),
	), s.handleUpdateWorkflow)

	s.mcp.AddTool(mcp.NewTool("delete_workflow",
		mcp.WithDescription("Delete a workflow job and its run logs"),
		mcp.WithString("workflowId", mcp.Description("Workflow ID"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleDeleteWorkflow)

	s.mcp.AddTool(mcp.NewTool("validate_workflow",
		mcp.WithDescription("Validate a workflow definition without saving it. Returns errors and static warnings."),
		mcp.WithString("definitionJSON", mcp.Description("Workflow definition as JSON"), mcp.Required()),
	), s.handleValidateWorkflow)

	s.mcp.AddTool(mcp.NewTool("run_workflow",
		mcp.WithDescription("🛑 DESTRUCTIVE: Execute a workflow job. May overwrite entity data."),
		mcp.WithString("workflowId", mcp.Description("Workflow ID"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleRunWorkflow)

	s.mcp.AddTool(mcp.NewTool("list_workflow_sources",
		mcp.WithDescription("List available source types with their configuration schemas"),
	), s.handleListSources)

	s.mcp.AddTool(mcp.NewTool("preview_source",
		mcp.WithDescription("Preview records from a source without persisting anything"),
		mcp.WithString("sourceType", mcp.Description("Source type"), mcp.Required()),
		mcp.WithString("sourceConfigJSON", mcp.Description("Source configuration as JSON"), mcp.Required()),
		mcp.WithNumber("limit", mcp.Description("Max records to return (default 10)")),
	), s.handlePreviewSource)

	s.mcp.AddTool(mcp.NewTool("discover_schema",
		mcp.WithDescription("Discover the field schema of a source"),
		mcp.WithString("sourceType", mcp.Description("Source type"), mcp.Required()),
		mcp.WithString("sourceConfigJSON", mcp.Description("Source configuration as JSON"), mcp.Required()),
	), s.handleDiscoverSchema)

	s.mcp.AddTool(mcp.NewTool("list_run_logs",
		mcp.WithDescription("List the most recent run logs for a workflow"),
		mcp.WithString("workflowId", mcp.Description("Workflow ID"), mcp.Required()),
	), s.handleListRunLogs)
}

func (s *Server) parseJobInput(args map[string]any) (service.CreateJobInput, error) {
	name, _ := args["name"].(string)
	defStr, _ := args["definitionJSON"].(string)
	triggerType, _ := args["triggerType"].(string)
	triggerConfig, _ := args["triggerConfig"].(string)

	var input service.CreateJobInput
	if name == "" || defStr == "" {
		return input, fmt.Errorf("name and definitionJSON are required")
	}

	var def workflow.Workflow
	if err := json.Unmarshal([]byte(defStr), &def); err != nil {
		return input, fmt.Errorf("parse definition: %w", err)
	}

	input = service.CreateJobInput{
		Name:          name,
		Definition:    def,
		TriggerType:   triggerType,
		TriggerConfig: triggerConfig,
		Enabled:       true,
	}
	return input, nil
}

func (s *Server) handleCreateWorkflow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := s.parseJobInput(req.GetArguments())
	if err != nil {
		return nil, err
	}
	job, err := s.workflows.CreateJob(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("create workflow: %w", err)
	}
	return jsonResult(job)
}

func (s *Server) handleListWorkflows(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobs, err := s.workflows.ListJobs()
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	return jsonResult(jobs)
}

func (s *Server) handleGetWorkflow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("workflowId", "")
	if id == "" {
		return nil, fmt.Errorf("workflowId is required")
	}
	job, err := s.workflows.GetJob(id)
	if err != nil {
		return nil, err
	}
	return jsonResult(job)
}

func (s *Server) handleUpdateWorkflow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	id, _ := args["workflowId"].(string)
	if id == "" {
		return nil, fmt.Errorf("workflowId is required")
	}
	input, err := s.parseJobInput(args)
	if err != nil {
		return nil, err
	}
	if err := s.workflows.UpdateJob(ctx, id, input); err != nil {
		return nil, fmt.Errorf("update workflow: %w", err)
	}
	return textResult("Workflow updated"), nil
}

func (s *Server) handleDeleteWorkflow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("workflowId", "")
	if id == "" {
		return nil, fmt.Errorf("workflowId is required")
	}
	if err := s.workflows.DeleteJob(ctx, id); err != nil {
		return nil, fmt.Errorf("delete workflow: %w", err)
	}
	return textResult("Workflow deleted"), nil
}

func (s *Server) handleValidateWorkflow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	defStr := req.GetString("definitionJSON", "")
	if defStr == "" {
		return nil, fmt.Errorf("definitionJSON is required")
	}
	var def workflow.Workflow
	if err := json.Unmarshal([]byte(defStr), &def); err != nil {
		return nil, fmt.Errorf("parse definition: %w", err)
	}
	errs, warnings := s.workflows.ValidateWorkflow(def)
	return jsonResult(map[string]any{
		"valid":    len(errs) == 0,
		"errors":   errs,
		"warnings": warnings,
	})
}

func (s *Server) handleRunWorkflow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("workflowId", "")
	if id == "" {
		return nil, fmt.Errorf("workflowId is required")
	}
	report, err := s.workflows.RunJob(ctx, id)
	if err != nil {
		// Partial runs still carry a useful report.
		if report != nil {
			return jsonResult(map[string]any{"report": report, "error": err.Error()})
		}
		return nil, fmt.Errorf("run workflow: %w", err)
	}
	return jsonResult(report)
}

func (s *Server) handleListSources(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.workflows.ListSources())
}

func (s *Server) handlePreviewSource(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	sourceType, _ := args["sourceType"].(string)
	cfgStr, _ := args["sourceConfigJSON"].(string)
	limit := int(getFloat(args, "limit", 10))
	if sourceType == "" || cfgStr == "" {
		return nil, fmt.Errorf("sourceType and sourceConfigJSON are required")
	}

	var cfg workflow.SourceConfig
	if err := json.Unmarshal([]byte(cfgStr), &cfg); err != nil {
		return nil, fmt.Errorf("parse source config: %w", err)
	}

	preview, err := s.workflows.PreviewSource(ctx, sourceType, cfg, limit)
	if err != nil {
		return nil, fmt.Errorf("preview source: %w", err)
	}
	return jsonResult(preview)
}

func (s *Server) handleDiscoverSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sourceType := req.GetString("sourceType", "")
	cfgStr := req.GetString("sourceConfigJSON", "")
	if sourceType == "" || cfgStr == "" {
		return nil, fmt.Errorf("sourceType and sourceConfigJSON are required")
	}

	var cfg workflow.SourceConfig
	if err := json.Unmarshal([]byte(cfgStr), &cfg); err != nil {
		return nil, fmt.Errorf("parse source config: %w", err)
	}

	schema, err := s.workflows.DiscoverSchema(ctx, sourceType, cfg)
	if err != nil {
		return nil, fmt.Errorf("discover schema: %w", err)
	}
	return jsonResult(schema)
}

func (s *Server) handleListRunLogs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("workflowId", "")
	if id == "" {
		return nil, fmt.Errorf("workflowId is required")
	}
	logs, err := s.workflows.ListRunLogs(id)
	if err != nil {
		return nil, fmt.Errorf("list run logs: %w", err)
	}
	return jsonResult(logs)
}
