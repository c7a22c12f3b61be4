// Package lifecycle drives teammates through their lifetime: spawn,
// shutdown handshake, forced kill, and team teardown. It ties together
// the team registry, mailbox, task graph, tmux, and the watcher
// manager so callers deal with one surface.
package lifecycle

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/Iron-Ham/crew/internal/backend"
	"github.com/Iron-Ham/crew/internal/errors"
	"github.com/Iron-Ham/crew/internal/logging"
	"github.com/Iron-Ham/crew/internal/mailbox"
	"github.com/Iron-Ham/crew/internal/taskgraph"
	"github.com/Iron-Ham/crew/internal/team"
	"github.com/Iron-Ham/crew/internal/tmux"
	"github.com/Iron-Ham/crew/internal/watcher"
)

// Coordinator orchestrates teammate lifecycles for one crew root.
type Coordinator struct {
	registry *team.Registry
	mail     *mailbox.Store
	tasks    *taskgraph.Store
	tm       *tmux.Client
	watchers *watcher.Manager
	backends *backend.Registry
	log      *logging.Logger

	tmuxWindows     bool
	skipPermissions bool
}

// Options configures a Coordinator.
type Options struct {
	// TmuxWindows spawns teammates in dedicated windows instead of
	// split panes.
	TmuxWindows bool

	// SkipPermissions appends each backend's permission-bypass flag
	// to spawned commands.
	SkipPermissions bool
}

// NewCoordinator creates a Coordinator. A nil logger disables logging.
func NewCoordinator(
	registry *team.Registry,
	mail *mailbox.Store,
	tasks *taskgraph.Store,
	tm *tmux.Client,
	watchers *watcher.Manager,
	backends *backend.Registry,
	opts Options,
	log *logging.Logger,
) *Coordinator {
	if log == nil {
		log = logging.Nop()
	}
	return &Coordinator{
		registry:        registry,
		mail:            mail,
		tasks:           tasks,
		tm:              tm,
		watchers:        watchers,
		backends:        backends,
		log:             log.WithComponent("lifecycle"),
		tmuxWindows:     opts.TmuxWindows,
		skipPermissions: opts.SkipPermissions,
	}
}

// SpawnRequest describes a teammate to bring up.
type SpawnRequest struct {
	Team      string
	Name      string
	AgentType string

	// Backend names the backend to run. Empty picks the first
	// enabled backend.
	Backend string

	// Model is advisory, recorded on the agent for native backends.
	Model string

	// Prompt is the initial task. It is seeded into the teammate's
	// inbox before the process starts; bridged backends also receive
	// it wrapped on their command line.
	Prompt string

	PlanModeRequired bool

	// Cwd defaults to the lead's working directory.
	Cwd string
}

// Spawn registers a teammate, seeds its inbox with the prompt, and
// launches its process in tmux. The registry record exists before the
// process does, so a crash mid-spawn leaves a visible spawning record
// rather than an orphan pane. A launch failure rolls the record back.
func (c *Coordinator) Spawn(ctx context.Context, req SpawnRequest) (*team.Agent, error) {
	t, err := c.registry.Read(req.Team)
	if err != nil {
		return nil, err
	}

	backendName := req.Backend
	if backendName == "" {
		names := c.backends.Names()
		if len(names) == 0 {
			return nil, errors.NewValidationError("backend", "", "no backends enabled")
		}
		sort.Strings(names)
		backendName = names[0]
	}
	b, err := c.backends.Get(backendName)
	if err != nil {
		return nil, err
	}

	cwd := req.Cwd
	if cwd == "" {
		if lead, ok := t.Lead(); ok {
			cwd = lead.Cwd
		}
	}

	t, err = c.registry.RegisterAgent(req.Team, team.Agent{
		Name:             req.Name,
		Role:             team.RoleTeammate,
		AgentType:        req.AgentType,
		Backend:          b.Name,
		BackendKind:      string(b.Kind),
		State:            team.StateSpawning,
		Model:            req.Model,
		Prompt:           req.Prompt,
		PlanModeRequired: req.PlanModeRequired,
		Cwd:              cwd,
	})
	if err != nil {
		return nil, err
	}
	agent, _ := t.Member(req.Name)

	if req.Prompt != "" {
		if _, err := c.mail.Send(req.Team, team.LeadName, req.Name, mailbox.KindPlain, mailbox.Payload{Content: req.Prompt}); err != nil {
			c.log.Warn("failed to seed prompt", "team", req.Team, "agent", req.Name, "error", err)
		}
	}

	command := b.SpawnCommand(b.Binary, backend.SpawnOptions{
		Cwd:              cwd,
		AgentID:          agent.ID,
		AgentName:        agent.Name,
		TeamName:         req.Team,
		AgentType:        agent.AgentType,
		Color:            agent.Color,
		LeadSessionID:    t.LeadSessionID,
		PlanModeRequired: req.PlanModeRequired,
		SkipPermissions:  c.skipPermissions,
		Prompt:           req.Prompt,
		Teammates:        c.roster(t, req.Name),
	})

	var target string
	if c.tmuxWindows {
		target, err = c.tm.SpawnWindow(ctx, req.Name, command)
	} else {
		target, err = c.tm.SpawnPane(ctx, command)
	}
	if err != nil {
		if rmErr := c.registry.RemoveAgent(req.Team, req.Name); rmErr != nil {
			c.log.Error("failed to roll back spawn record",
				"team", req.Team, "agent", req.Name, "error", rmErr)
		}
		return nil, errors.Wrapf(err, "failed to launch %s", req.Name)
	}

	updated, err := c.registry.UpdateAgent(req.Team, req.Name, func(a *team.Agent) error {
		a.TmuxTarget = target
		a.State = team.StateActive
		return nil
	})
	if err != nil {
		return nil, err
	}

	if b.Kind == backend.KindBridged {
		if err := c.watchers.Start(ctx, req.Team, req.Name, target); err != nil {
			c.log.Warn("failed to start watcher",
				"team", req.Team, "agent", req.Name, "error", err)
		}
	}

	c.log.Info("teammate spawned",
		"team", req.Team, "agent", req.Name, "backend", b.Name, "target", target)
	return updated, nil
}

// roster lists every member except the one being spawned, for the
// bridged prompt wrapper.
func (c *Coordinator) roster(t *team.Team, exclude string) []backend.TeammateInfo {
	var out []backend.TeammateInfo
	for _, m := range t.Members {
		if m.Name == exclude {
			continue
		}
		out = append(out, backend.TeammateInfo{
			Name:      m.Name,
			AgentType: m.AgentType,
			Backend:   m.Backend,
		})
	}
	return out
}

// RequestShutdown sends a shutdown_request to the teammate and marks
// it shutdown_requested. Returns the request id the teammate's
// approval must echo.
func (c *Coordinator) RequestShutdown(ctx context.Context, teamName, agentName, reason string) (string, error) {
	t, err := c.registry.Read(teamName)
	if err != nil {
		return "", err
	}
	member, ok := t.Member(agentName)
	if !ok {
		return "", errors.NewTeamError("agent not found", errors.ErrAgentNotFound).
			WithTeam(teamName).WithAgent(agentName)
	}
	if member.State.IsTerminal() {
		return "", errors.NewValidationError("agent", agentName, "already terminated")
	}

	requestID := uuid.NewString()
	if _, err := c.mail.Send(teamName, team.LeadName, agentName, mailbox.KindShutdownRequest, mailbox.Payload{
		RequestID: requestID,
		Content:   reason,
	}); err != nil {
		return "", err
	}

	if _, err := c.registry.UpdateAgent(teamName, agentName, func(a *team.Agent) error {
		a.State = team.StateShutdownRequested
		return nil
	}); err != nil {
		return "", err
	}

	c.log.Info("shutdown requested", "team", teamName, "agent", agentName, "request_id", requestID)
	return requestID, nil
}

// ProcessShutdownApproved finishes a shutdown handshake: stops the
// watcher, kills the pane, releases the teammate's tasks, and removes
// the record. Calling it again for the same teammate returns
// AgentNotFound, so double approval is harmless.
func (c *Coordinator) ProcessShutdownApproved(ctx context.Context, teamName, agentName string) error {
	return c.terminate(ctx, teamName, agentName, team.StateTerminated)
}

// ForceKill tears a teammate down without the handshake. Used for
// stuck or runaway agents.
func (c *Coordinator) ForceKill(ctx context.Context, teamName, agentName string) error {
	return c.terminate(ctx, teamName, agentName, team.StateKilled)
}

func (c *Coordinator) terminate(ctx context.Context, teamName, agentName string, final team.State) error {
	t, err := c.registry.Read(teamName)
	if err != nil {
		return err
	}
	member, ok := t.Member(agentName)
	if !ok {
		return errors.NewTeamError("agent not found", errors.ErrAgentNotFound).
			WithTeam(teamName).WithAgent(agentName)
	}

	c.watchers.Stop(teamName, agentName)

	if member.TmuxTarget != "" {
		if err := c.tm.Kill(ctx, member.TmuxTarget); err != nil {
			c.log.Warn("failed to kill pane",
				"team", teamName, "agent", agentName, "target", member.TmuxTarget, "error", err)
		}
	}

	if _, err := c.registry.UpdateAgent(teamName, agentName, func(a *team.Agent) error {
		a.State = final
		return nil
	}); err != nil {
		return err
	}

	if err := c.tasks.ResetOwner(teamName, agentName); err != nil {
		c.log.Warn("failed to release tasks",
			"team", teamName, "agent", agentName, "error", err)
	}

	if err := c.registry.RemoveAgent(teamName, agentName); err != nil {
		return err
	}

	c.log.Info("teammate terminated", "team", teamName, "agent", agentName, "state", final)
	return nil
}

// DeleteTeam stops the team's watchers and removes its records. The
// registry refuses while any teammate record is still live.
func (c *Coordinator) DeleteTeam(ctx context.Context, teamName string) error {
	if err := c.registry.Delete(teamName); err != nil {
		return err
	}
	c.watchers.StopTeam(teamName)
	return nil
}
