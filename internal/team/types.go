package team

import (
	"regexp"
	"time"

	"github.com/Iron-Ham/crew/internal/errors"
)

// Status represents the lifecycle status of a team.
type Status string

const (
	// StatusActive indicates the team is usable.
	StatusActive Status = "active"

	// StatusDeleting indicates deletion is in progress; the record may
	// disappear at any moment.
	StatusDeleting Status = "deleting"
)

// Role describes an agent's position in the team.
type Role string

const (
	// RoleLead is the coordinating agent. It may broadcast and approves
	// shutdowns.
	RoleLead Role = "lead"

	// RoleTeammate is a spawned worker agent.
	RoleTeammate Role = "teammate"
)

// State represents an agent's lifecycle state.
type State string

const (
	// StateSpawning means the record exists but the process has not
	// been confirmed running yet.
	StateSpawning State = "spawning"

	// StateActive means the process is running.
	StateActive State = "active"

	// StateShutdownRequested means a shutdown_request has been sent.
	StateShutdownRequested State = "shutdown_requested"

	// StateShuttingDown means shutdown was approved and the process is
	// winding down.
	StateShuttingDown State = "shutting_down"

	// StateTerminated means the agent exited cleanly.
	StateTerminated State = "terminated"

	// StateKilled means the agent was force-killed.
	StateKilled State = "killed"
)

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// IsTerminal returns true if this state represents a final state.
func (s State) IsTerminal() bool {
	return s == StateTerminated || s == StateKilled
}

// LeadName is the reserved name of every team's lead agent.
const LeadName = "team-lead"

// MaxNameLength bounds team and agent names.
const MaxNameLength = 64

// ColorPalette is the fixed set of teammate colors, assigned round-robin
// from the persisted teammate count.
var ColorPalette = []string{
	"blue",
	"green",
	"yellow",
	"purple",
	"orange",
	"pink",
	"cyan",
	"red",
}

// validNameRe matches team and agent names. Letters, numbers, hyphens,
// underscores; must be non-empty.
var validNameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateName checks a team or agent name for charset and length.
func ValidateName(name string) error {
	if !validNameRe.MatchString(name) {
		return errors.NewValidationError("name", name,
			"use only letters, numbers, hyphens, underscores")
	}
	if len(name) > MaxNameLength {
		return errors.NewValidationError("name", name, "name too long (max 64 chars)")
	}
	return nil
}

// ValidateAgentName checks an agent name, additionally rejecting the
// reserved lead name.
func ValidateAgentName(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if name == LeadName {
		return errors.NewValidationError("name", name, "name is reserved for the team lead")
	}
	return nil
}

// Config holds per-team feature settings, fixed at creation.
type Config struct {
	// Backends is the set of backends teammates may be spawned with
	Backends []string `json:"backends,omitempty"`

	// TmuxWindows spawns teammates into windows instead of panes
	TmuxWindows bool `json:"tmuxWindows,omitempty"`

	// SkipPermissions launches teammates with permission bypass
	SkipPermissions bool `json:"skipPermissions,omitempty"`
}

// Agent is one member of a team, persisted in the team record.
type Agent struct {
	// ID is "<name>@<team>"
	ID string `json:"agentId"`

	// Name is unique within the team
	Name string `json:"name"`

	Role Role `json:"role"`

	// AgentType describes the agent's specialty, e.g. "general-purpose"
	AgentType string `json:"agentType"`

	// Backend names the backend definition this agent runs on
	Backend string `json:"backendType"`

	// BackendKind is "native" or "bridged", denormalized from the
	// backend definition so readers need no registry
	BackendKind string `json:"backendKind"`

	State State `json:"state"`

	// Color is the palette color assigned at registration
	Color string `json:"color,omitempty"`

	Model string `json:"model,omitempty"`

	// Prompt is the initial task prompt given at spawn
	Prompt string `json:"prompt,omitempty"`

	PlanModeRequired bool `json:"planModeRequired,omitempty"`

	// JoinedAt is a unix timestamp in milliseconds
	JoinedAt int64 `json:"joinedAt"`

	// TmuxTarget is the pane (%id) or window (@id) the process runs in.
	// Empty for the lead and for agents whose launch failed.
	TmuxTarget string `json:"tmuxPaneId"`

	Cwd string `json:"cwd,omitempty"`
}

// Team is the persisted team record.
type Team struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Status      Status `json:"status"`

	// CreatedAt is a unix timestamp in milliseconds
	CreatedAt int64 `json:"createdAt"`

	// LeadSessionID identifies the lead session that created the team
	LeadSessionID string `json:"leadSessionId"`

	Config Config `json:"config"`

	// Members is ordered by registration, lead first
	Members []Agent `json:"members"`
}

// Lead returns the team's lead agent.
func (t *Team) Lead() (Agent, bool) {
	for _, m := range t.Members {
		if m.Role == RoleLead {
			return m, true
		}
	}
	return Agent{}, false
}

// Member returns the agent with the given name.
func (t *Team) Member(name string) (Agent, bool) {
	for _, m := range t.Members {
		if m.Name == name {
			return m, true
		}
	}
	return Agent{}, false
}

// Teammates returns all non-lead members.
func (t *Team) Teammates() []Agent {
	var out []Agent
	for _, m := range t.Members {
		if m.Role == RoleTeammate {
			out = append(out, m)
		}
	}
	return out
}

// NextColor returns the palette color for the next teammate, derived
// from the persisted teammate count so it survives restarts.
func (t *Team) NextColor() string {
	return ColorPalette[len(t.Teammates())%len(ColorPalette)]
}

// nowMillis returns the current time as unix milliseconds.
func nowMillis() int64 {
	return time.Now().UnixMilli()
}
