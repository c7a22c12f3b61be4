package server

import (
	"context"
	"os"

	"github.com/google/uuid"
	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/Iron-Ham/crew/internal/lifecycle"
	"github.com/Iron-Ham/crew/internal/mailbox"
	"github.com/Iron-Ham/crew/internal/team"
)

func (s *Server) registerLeadTools() {
	s.mcp.AddTool(
		mcplib.NewTool("team_create",
			mcplib.WithDescription("Create a new agent team. The caller becomes the team lead."),
			mcplib.WithString("team_name",
				mcplib.Description("Team name (letters, digits, hyphen, underscore)"),
				mcplib.Required(),
			),
			mcplib.WithString("description",
				mcplib.Description("What the team is for"),
			),
		),
		s.handleTeamCreate,
	)

	s.mcp.AddTool(
		mcplib.NewTool("team_delete",
			mcplib.WithDescription("Delete a team and its tasks. Fails while any teammate is still active; shut them down first."),
			mcplib.WithString("team_name", mcplib.Required()),
		),
		s.handleTeamDelete,
	)

	s.mcp.AddTool(
		mcplib.NewTool("spawn_teammate",
			mcplib.WithDescription(`Spawn a new teammate in a tmux pane or window.

The teammate is registered before its process starts, receives the
prompt through its inbox, and begins working autonomously. Bridged
backends (e.g. codex) get an inbox watcher that types incoming
messages into their terminal.`),
			mcplib.WithString("team_name", mcplib.Required()),
			mcplib.WithString("name",
				mcplib.Description("Teammate name, unique within the team"),
				mcplib.Required(),
			),
			mcplib.WithString("prompt",
				mcplib.Description("Initial task prompt"),
				mcplib.Required(),
			),
			mcplib.WithString("backend_type",
				mcplib.Description("Backend to run (e.g. claude, codex). Defaults to the detected client backend."),
			),
			mcplib.WithString("agent_type",
				mcplib.Description("Role description, e.g. code-reviewer"),
			),
			mcplib.WithString("model",
				mcplib.Description("Model override for native backends"),
			),
			mcplib.WithString("cwd",
				mcplib.Description("Working directory (absolute). Defaults to the lead's."),
			),
			mcplib.WithBoolean("plan_mode_required",
				mcplib.Description("Start native backends in plan mode"),
			),
		),
		s.handleSpawnTeammate,
	)

	s.mcp.AddTool(
		mcplib.NewTool("send_message",
			mcplib.WithDescription(`Send a message to a teammate, or to 'broadcast' for every active teammate.

Kinds: plain (default), task_assignment (needs task_id),
shutdown_request (needs request_id), shutdown_approval and
plan_approval (need request_id and approved).`),
			mcplib.WithString("team_name", mcplib.Required()),
			mcplib.WithString("recipient",
				mcplib.Description("Teammate name, or 'broadcast'"),
				mcplib.Required(),
			),
			mcplib.WithString("content", mcplib.Description("Message body")),
			mcplib.WithString("summary", mcplib.Description("Brief summary")),
			mcplib.WithString("kind", mcplib.Description("Message kind, defaults to plain")),
			mcplib.WithNumber("task_id", mcplib.Description("Task id for task_assignment")),
			mcplib.WithString("request_id", mcplib.Description("Request id for request/approval kinds")),
			mcplib.WithBoolean("approved", mcplib.Description("Approval verdict for approval kinds")),
		),
		s.handleSendMessage,
	)

	s.mcp.AddTool(
		mcplib.NewTool("read_inbox",
			mcplib.WithDescription("Read an inbox. By default returns all messages and marks unread ones read."),
			mcplib.WithString("team_name", mcplib.Required()),
			mcplib.WithString("agent_name",
				mcplib.Description("Whose inbox. Defaults to team-lead."),
			),
			mcplib.WithBoolean("mark_read",
				mcplib.Description("Flip unread messages to read (default true)"),
			),
		),
		s.handleReadInbox,
	)

	s.mcp.AddTool(
		mcplib.NewTool("check_teammate",
			mcplib.WithDescription(`Check a teammate: liveness, watcher state, and any unread messages they sent you. Always non-blocking; use parallel calls for multiple teammates.`),
			mcplib.WithString("team_name", mcplib.Required()),
			mcplib.WithString("agent_name", mcplib.Required()),
			mcplib.WithBoolean("include_output",
				mcplib.Description("Include recent terminal output"),
			),
			mcplib.WithNumber("output_lines",
				mcplib.Description("Terminal lines to capture"),
				mcplib.Min(1),
				mcplib.Max(120),
				mcplib.DefaultNumber(20),
			),
		),
		s.handleCheckTeammate,
	)

	s.mcp.AddTool(
		mcplib.NewTool("read_config",
			mcplib.WithDescription("Read the team record: status, config, and member roster."),
			mcplib.WithString("team_name", mcplib.Required()),
		),
		s.handleReadConfig,
	)

	s.registerTaskTools()

	s.mcp.AddTool(
		mcplib.NewTool("force_kill_teammate",
			mcplib.WithDescription("Kill a teammate without the shutdown handshake: destroys its pane, releases its tasks, and removes it from the team."),
			mcplib.WithString("team_name", mcplib.Required()),
			mcplib.WithString("agent_name", mcplib.Required()),
		),
		s.handleForceKill,
	)

	s.mcp.AddTool(
		mcplib.NewTool("process_shutdown_approved",
			mcplib.WithDescription("Finish a shutdown handshake after the teammate approved it: kills the pane, releases tasks, and removes the teammate."),
			mcplib.WithString("team_name", mcplib.Required()),
			mcplib.WithString("agent_name", mcplib.Required()),
			mcplib.WithString("request_id",
				mcplib.Description("The shutdown request id being honored"),
			),
		),
		s.handleShutdownApproved,
	)
}

func (s *Server) handleTeamCreate(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	name := request.GetString("team_name", "")
	if name == "" {
		return errorResult("team_name is required"), nil
	}

	cwd, _ := os.Getwd()
	t, err := s.deps.Registry.Create(name, team.CreateOptions{
		Description:   request.GetString("description", ""),
		LeadSessionID: uuid.NewString(),
		LeadCwd:       cwd,
		LeadBackend:   s.DefaultBackend(),
	})
	if err != nil {
		return errorResult("failed to create team: %v", err), nil
	}
	return jsonResult(t), nil
}

func (s *Server) handleTeamDelete(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	name := request.GetString("team_name", "")
	if name == "" {
		return errorResult("team_name is required"), nil
	}
	if err := s.deps.Coord.DeleteTeam(ctx, name); err != nil {
		return errorResult("failed to delete team: %v", err), nil
	}
	return jsonResult(map[string]any{
		"success": true,
		"message": "team " + name + " deleted",
	}), nil
}

func (s *Server) handleSpawnTeammate(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	teamName := request.GetString("team_name", "")
	name := request.GetString("name", "")
	prompt := request.GetString("prompt", "")
	if teamName == "" || name == "" || prompt == "" {
		return errorResult("team_name, name, and prompt are required"), nil
	}

	backendName := request.GetString("backend_type", "")
	if backendName == "" {
		backendName = s.DefaultBackend()
	}

	agent, err := s.deps.Coord.Spawn(ctx, lifecycle.SpawnRequest{
		Team:             teamName,
		Name:             name,
		AgentType:        request.GetString("agent_type", "general-purpose"),
		Backend:          backendName,
		Model:            request.GetString("model", ""),
		Prompt:           prompt,
		PlanModeRequired: request.GetBool("plan_mode_required", false),
		Cwd:              request.GetString("cwd", ""),
	})
	if err != nil {
		return errorResult("failed to spawn %s: %v", name, err), nil
	}
	return jsonResult(agent), nil
}

func (s *Server) handleSendMessage(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	teamName := request.GetString("team_name", "")
	recipient := request.GetString("recipient", "")
	if teamName == "" || recipient == "" {
		return errorResult("team_name and recipient are required"), nil
	}

	kind := mailbox.Kind(request.GetString("kind", string(mailbox.KindPlain)))
	content := request.GetString("content", "")
	if kind == mailbox.KindPlain {
		if content == "" {
			return errorResult("content is required for plain messages"), nil
		}
		content = withSenderReminder(content, team.LeadName)
	}

	payload := mailbox.Payload{
		Content:   content,
		Summary:   request.GetString("summary", ""),
		TaskID:    request.GetInt("task_id", 0),
		RequestID: request.GetString("request_id", ""),
	}
	if raw, ok := request.GetArguments()["approved"].(bool); ok {
		payload.Approved = &raw
	}

	receipts, err := s.deps.Mail.Send(teamName, team.LeadName, recipient, kind, payload)
	if err != nil {
		return errorResult("failed to send: %v", err), nil
	}
	return jsonResult(map[string]any{
		"success":  true,
		"receipts": receipts,
	}), nil
}

func (s *Server) handleReadInbox(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	teamName := request.GetString("team_name", "")
	if teamName == "" {
		return errorResult("team_name is required"), nil
	}
	agent := request.GetString("agent_name", team.LeadName)

	msgs, err := s.deps.Mail.ReadInbox(teamName, agent, request.GetBool("mark_read", true))
	if err != nil {
		return errorResult("failed to read inbox: %v", err), nil
	}
	return jsonResult(msgs), nil
}

func (s *Server) handleCheckTeammate(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	teamName := request.GetString("team_name", "")
	agentName := request.GetString("agent_name", "")
	if teamName == "" || agentName == "" {
		return errorResult("team_name and agent_name are required"), nil
	}

	t, err := s.deps.Registry.Read(teamName)
	if err != nil {
		return errorResult("failed to read team: %v", err), nil
	}
	member, ok := t.Member(agentName)
	if !ok {
		return errorResult("teammate %q not found in team %q", agentName, teamName), nil
	}

	alive := false
	statusErr := ""
	if member.TmuxTarget == "" {
		statusErr = "no tmux target recorded"
	} else {
		alive, _ = s.deps.Tmux.IsAlive(ctx, member.TmuxTarget)
	}

	watching := false
	if state, ok := s.deps.Watchers.State(teamName, agentName); ok {
		watching = state == "watching"
	}

	// Drain whatever the teammate has sent the lead since the last check.
	msgs, err := s.deps.Mail.ReadFrom(teamName, team.LeadName, agentName, 0)
	if err != nil {
		return errorResult("failed to read messages: %v", err), nil
	}

	unread, err := s.deps.Mail.UnreadCount(teamName, agentName)
	if err != nil {
		return errorResult("failed to count unread: %v", err), nil
	}

	result := map[string]any{
		"name":     agentName,
		"state":    member.State,
		"alive":    alive,
		"watching": watching,
		"unread":   unread,
		"messages": msgs,
	}
	if statusErr != "" {
		result["error"] = statusErr
	}

	if request.GetBool("include_output", false) {
		lines := request.GetInt("output_lines", 20)
		if lines < 1 {
			lines = 1
		}
		if lines > 120 {
			lines = 120
		}
		output, err := s.deps.Tmux.Capture(ctx, member.TmuxTarget, lines)
		if err != nil {
			result["output"] = ""
			result["error"] = err.Error()
		} else {
			result["output"] = output
		}
	}
	return jsonResult(result), nil
}

func (s *Server) handleReadConfig(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	teamName := request.GetString("team_name", "")
	if teamName == "" {
		return errorResult("team_name is required"), nil
	}
	t, err := s.deps.Registry.Read(teamName)
	if err != nil {
		return errorResult("failed to read team: %v", err), nil
	}
	return jsonResult(t), nil
}

func (s *Server) handleForceKill(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	teamName := request.GetString("team_name", "")
	agentName := request.GetString("agent_name", "")
	if teamName == "" || agentName == "" {
		return errorResult("team_name and agent_name are required"), nil
	}
	if agentName == team.LeadName {
		return errorResult("cannot kill the team lead"), nil
	}

	if err := s.deps.Coord.ForceKill(ctx, teamName, agentName); err != nil {
		return errorResult("failed to kill %s: %v", agentName, err), nil
	}
	return jsonResult(map[string]any{
		"success": true,
		"message": agentName + " has been killed and removed from the team",
	}), nil
}

func (s *Server) handleShutdownApproved(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	teamName := request.GetString("team_name", "")
	agentName := request.GetString("agent_name", "")
	if teamName == "" || agentName == "" {
		return errorResult("team_name and agent_name are required"), nil
	}
	if agentName == team.LeadName {
		return errorResult("cannot shut down the team lead"), nil
	}

	if requestID := request.GetString("request_id", ""); requestID != "" {
		s.log.Info("shutdown approved", "team", teamName, "agent", agentName, "request_id", requestID)
	}

	if err := s.deps.Coord.ProcessShutdownApproved(ctx, teamName, agentName); err != nil {
		return errorResult("failed to shut down %s: %v", agentName, err), nil
	}
	return jsonResult(map[string]any{
		"success": true,
		"message": agentName + " has been stopped and removed from the team",
	}), nil
}
