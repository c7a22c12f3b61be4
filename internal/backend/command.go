package backend

import (
	"fmt"
	"strings"
)

// SpawnOptions carries everything needed to build a teammate's launch command.
type SpawnOptions struct {
	// Cwd is the working directory the process starts in
	Cwd string

	// AgentID is "<name>@<team>", unique within the crew root
	AgentID string

	// AgentName is the teammate's name within the team
	AgentName string

	// TeamName is the owning team
	TeamName string

	// AgentType is the role description, e.g. "general-purpose"
	AgentType string

	// Color is the teammate's assigned palette color
	Color string

	// LeadSessionID identifies the lead session that spawned this teammate
	LeadSessionID string

	// PlanModeRequired makes native backends start in plan mode
	PlanModeRequired bool

	// SkipPermissions appends the backend's permission-bypass flag
	SkipPermissions bool

	// Prompt is the initial task prompt. Native backends receive it
	// through their inbox; bridged backends get it wrapped on argv.
	Prompt string

	// Teammates lists the existing team members for the prompt wrapper
	Teammates []TeammateInfo
}

// TeammateInfo is the roster entry rendered into bridged prompts.
type TeammateInfo struct {
	Name      string
	AgentType string
	Backend   string
}

// bridgedPromptTemplate wraps the task prompt with team context for
// backends that have no crew awareness. The %s slots are: name, team,
// agent type, roster, then repeated team/name pairs for the tool
// examples, and finally the prompt.
const bridgedPromptTemplate = `You are team member '%[1]s' on team '%[2]s'.
Your role: %[3]s

## Team Members
%[4]s

## Communication
Use MCP tools from the 'crew-external' server:
- send_message(team_name=%[5]q, sender=%[6]q, recipient="<name>", content="...", summary="...") — Send a message to any teammate
- task_list(team_name=%[5]q) — View team tasks
- task_update(team_name=%[5]q, task_id="...", status="...") — Update task status
- task_get(team_name=%[5]q, task_id="...") — Get task details
- task_create(team_name=%[5]q, subject="...", description="...") — Create a new task

## Rules
1. Messages from other agents will appear as user input in format: [Message from <name>]: <content>
2. When you receive a message, respond using send_message tool
3. When assigned a task, update its status to "in_progress" when starting and "completed" when done
4. Report progress to team-lead periodically via send_message

---

%[7]s`

// WrapPrompt renders the bridged-backend prompt: team context, roster,
// tool usage instructions, then the task prompt itself.
func WrapPrompt(opts SpawnOptions) string {
	return fmt.Sprintf(bridgedPromptTemplate,
		opts.AgentName,
		opts.TeamName,
		opts.AgentType,
		formatTeammates(opts.Teammates),
		opts.TeamName,
		opts.AgentName,
		opts.Prompt,
	)
}

// formatTeammates renders the roster section of a bridged prompt.
func formatTeammates(teammates []TeammateInfo) string {
	if len(teammates) == 0 {
		return "(no other teammates yet)"
	}
	lines := make([]string, 0, len(teammates))
	for _, t := range teammates {
		backend := t.Backend
		if backend == "" {
			backend = "unknown"
		}
		lines = append(lines, fmt.Sprintf("- %s (%s, %s)", t.Name, t.AgentType, backend))
	}
	return strings.Join(lines, "\n")
}

// SpawnCommand builds the shell command that launches a teammate
// process for this backend. The command is run through `sh -c` by tmux,
// so all user-controlled parts are shell-quoted.
func (b Backend) SpawnCommand(binary string, opts SpawnOptions) string {
	var sb strings.Builder

	sb.WriteString("cd " + shellQuote(opts.Cwd) + " && ")

	for _, kv := range b.Env {
		sb.WriteString(kv)
		sb.WriteString(" ")
	}

	sb.WriteString(shellQuote(binary))

	for _, arg := range b.Args {
		sb.WriteString(" " + shellQuote(arg))
	}

	switch b.Kind {
	case KindNative:
		sb.WriteString(" --agent-id " + shellQuote(opts.AgentID))
		sb.WriteString(" --agent-name " + shellQuote(opts.AgentName))
		sb.WriteString(" --team-name " + shellQuote(opts.TeamName))
		sb.WriteString(" --agent-color " + shellQuote(opts.Color))
		sb.WriteString(" --parent-session-id " + shellQuote(opts.LeadSessionID))
		sb.WriteString(" --agent-type " + shellQuote(opts.AgentType))
		if opts.PlanModeRequired {
			sb.WriteString(" --plan-mode-required")
		}
	case KindBridged:
		// Bridged backends take the wrapped prompt as their only
		// positional argument; the skip flag goes before it.
	}

	if opts.SkipPermissions && b.SkipPermissionsFlag != "" {
		sb.WriteString(" " + b.SkipPermissionsFlag)
	}

	if b.Kind == KindBridged {
		sb.WriteString(" " + shellQuote(WrapPrompt(opts)))
	}

	return sb.String()
}

// shellQuote single-quotes s for POSIX sh, escaping embedded quotes.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
