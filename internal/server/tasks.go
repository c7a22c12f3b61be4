package server

import (
	"context"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/Iron-Ham/crew/internal/taskgraph"
)

// registerTaskTools adds the shared task surface. Both the lead and
// external servers carry it.
func (s *Server) registerTaskTools() {
	s.mcp.AddTool(
		mcplib.NewTool("task_create",
			mcplib.WithDescription("Create a task. Ids are assigned incrementally and never reused. Dependencies must already exist and must not form a cycle."),
			mcplib.WithString("team_name", mcplib.Required()),
			mcplib.WithString("title",
				mcplib.Description("Short task title"),
				mcplib.Required(),
			),
			mcplib.WithString("description", mcplib.Description("Full task description")),
			mcplib.WithString("owner", mcplib.Description("Teammate to assign the task to")),
			mcplib.WithArray("dependencies",
				mcplib.Description("Ids of tasks this one depends on"),
			),
			mcplib.WithObject("metadata",
				mcplib.Description("Arbitrary metadata stored with the task"),
			),
		),
		s.handleTaskCreate,
	)

	s.mcp.AddTool(
		mcplib.NewTool("task_update",
			mcplib.WithDescription(`Update a task's fields. Setting status to 'deleted' removes the task and scrubs it from every other task's edges. A task cannot become completed while a dependency is not completed. Changing the owner notifies the new owner.`),
			mcplib.WithString("team_name", mcplib.Required()),
			mcplib.WithNumber("task_id", mcplib.Required()),
			mcplib.WithString("status",
				mcplib.Description("pending, in_progress, completed, or deleted"),
			),
			mcplib.WithString("owner", mcplib.Description("New owner, empty to unassign")),
			mcplib.WithString("title", mcplib.Description("New title")),
			mcplib.WithString("description", mcplib.Description("New description")),
			mcplib.WithArray("dependencies",
				mcplib.Description("Replacement dependency id set"),
			),
			mcplib.WithObject("metadata",
				mcplib.Description("Replacement metadata"),
			),
		),
		s.handleTaskUpdate,
	)

	s.mcp.AddTool(
		mcplib.NewTool("task_list",
			mcplib.WithDescription("List all tasks for a team with status, owner, and edges."),
			mcplib.WithString("team_name", mcplib.Required()),
		),
		s.handleTaskList,
	)

	s.mcp.AddTool(
		mcplib.NewTool("task_get",
			mcplib.WithDescription("Get full details of one task by id."),
			mcplib.WithString("team_name", mcplib.Required()),
			mcplib.WithNumber("task_id", mcplib.Required()),
		),
		s.handleTaskGet,
	)
}

func (s *Server) handleTaskCreate(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	teamName := request.GetString("team_name", "")
	title := request.GetString("title", "")
	if teamName == "" || title == "" {
		return errorResult("team_name and title are required"), nil
	}

	opts := taskgraph.CreateOptions{
		Title:       title,
		Description: request.GetString("description", ""),
		Owner:       request.GetString("owner", ""),
	}

	args := request.GetArguments()
	if raw, ok := args["dependencies"]; ok {
		deps, err := toIntSlice(raw)
		if err != nil {
			return errorResult("invalid dependencies: %v", err), nil
		}
		opts.Dependencies = deps
	}
	if meta, ok := args["metadata"].(map[string]any); ok {
		opts.Metadata = meta
	}

	task, err := s.deps.Tasks.Create(teamName, opts)
	if err != nil {
		return errorResult("failed to create task: %v", err), nil
	}
	return jsonResult(task), nil
}

func (s *Server) handleTaskUpdate(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	teamName := request.GetString("team_name", "")
	id := request.GetInt("task_id", 0)
	if teamName == "" || id == 0 {
		return errorResult("team_name and task_id are required"), nil
	}

	args := request.GetArguments()
	var upd taskgraph.Update
	if v, ok := args["status"].(string); ok {
		status := taskgraph.Status(v)
		upd.Status = &status
	}
	if v, ok := args["owner"].(string); ok {
		upd.Owner = &v
	}
	if v, ok := args["title"].(string); ok {
		upd.Title = &v
	}
	if v, ok := args["description"].(string); ok {
		upd.Description = &v
	}
	if raw, ok := args["dependencies"]; ok {
		deps, err := toIntSlice(raw)
		if err != nil {
			return errorResult("invalid dependencies: %v", err), nil
		}
		upd.Dependencies = &deps
	}
	if meta, ok := args["metadata"].(map[string]any); ok {
		upd.Metadata = meta
	}

	task, err := s.deps.Tasks.Apply(teamName, id, upd)
	if err != nil {
		return errorResult("failed to update task %d: %v", id, err), nil
	}
	return jsonResult(map[string]any{
		"id":     task.ID,
		"status": task.Status,
	}), nil
}

func (s *Server) handleTaskList(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	teamName := request.GetString("team_name", "")
	if teamName == "" {
		return errorResult("team_name is required"), nil
	}
	tasks, err := s.deps.Tasks.List(teamName)
	if err != nil {
		return errorResult("failed to list tasks: %v", err), nil
	}
	return jsonResult(tasks), nil
}

func (s *Server) handleTaskGet(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	teamName := request.GetString("team_name", "")
	id := request.GetInt("task_id", 0)
	if teamName == "" || id == 0 {
		return errorResult("team_name and task_id are required"), nil
	}
	task, err := s.deps.Tasks.Get(teamName, id)
	if err != nil {
		return errorResult("failed to get task %d: %v", id, err), nil
	}
	return jsonResult(task), nil
}
