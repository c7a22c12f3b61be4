package team

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/Iron-Ham/crew/internal/errors"
	"github.com/Iron-Ham/crew/internal/filelock"
	"github.com/Iron-Ham/crew/internal/logging"
	"github.com/Iron-Ham/crew/internal/paths"
	"github.com/Iron-Ham/crew/internal/store"
)

// Registry performs CRUD over team records under the crew root. All
// mutations follow the same discipline: acquire the team lock, read the
// current record, apply the change, validate, write atomically, release.
// It is safe for concurrent use from unrelated processes.
type Registry struct {
	root        string
	lockTimeout time.Duration
	log         *logging.Logger
}

// NewRegistry creates a Registry rooted at root.
func NewRegistry(root string, lockTimeout time.Duration, log *logging.Logger) *Registry {
	if log == nil {
		log = logging.Nop()
	}
	return &Registry{
		root:        root,
		lockTimeout: lockTimeout,
		log:         log.WithComponent("registry"),
	}
}

// Root returns the crew root this registry operates under.
func (r *Registry) Root() string {
	return r.root
}

// CreateOptions carries the non-defaultable inputs to Create.
type CreateOptions struct {
	Description   string
	LeadSessionID string
	LeadCwd       string
	LeadModel     string

	// LeadBackend records which backend the lead itself runs on.
	// Empty defaults to "claude".
	LeadBackend string

	Config Config
}

// Create creates a new team with its lead member and an empty lead
// inbox. Fails with AlreadyExists if the team's directory is already
// present.
func (r *Registry) Create(name string, opts CreateOptions) (*Team, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	configPath := paths.TeamConfig(r.root, name)
	if store.Exists(configPath) {
		return nil, errors.NewAlreadyExistsError("team", name)
	}

	if err := os.MkdirAll(paths.InboxDir(r.root, name), 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create team directory for %s", name)
	}
	if err := os.MkdirAll(paths.TasksDir(r.root, name), 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create task directory for %s", name)
	}

	leadBackend := opts.LeadBackend
	if leadBackend == "" {
		leadBackend = "claude"
	}

	now := nowMillis()
	t := &Team{
		Name:          name,
		Description:   opts.Description,
		Status:        StatusActive,
		CreatedAt:     now,
		LeadSessionID: opts.LeadSessionID,
		Config:        opts.Config,
		Members: []Agent{{
			ID:        fmt.Sprintf("%s@%s", LeadName, name),
			Name:      LeadName,
			Role:      RoleLead,
			AgentType: "lead",
			Backend:   leadBackend,
			State:     StateActive,
			Model:     opts.LeadModel,
			JoinedAt:  now,
			Cwd:       opts.LeadCwd,
		}},
	}

	if err := store.WriteJSON(configPath, t); err != nil {
		return nil, err
	}
	if err := store.WriteJSON(paths.Inbox(r.root, name, LeadName), []struct{}{}); err != nil {
		return nil, err
	}

	r.log.Info("team created", "team", name)
	return t, nil
}

// Read returns the team record. Fails with NotFound if absent.
func (r *Registry) Read(name string) (*Team, error) {
	var t Team
	if err := store.ReadJSON(paths.TeamConfig(r.root, name), &t); err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NewTeamError("team not found", errors.ErrTeamNotFound).WithTeam(name)
		}
		return nil, err
	}
	return &t, nil
}

// Delete removes the team record, its inboxes, and its task directory.
// Fails with TeammatesActive while any teammate is not in a terminal
// state.
func (r *Registry) Delete(name string) error {
	err := r.withLock(name, func() error {
		t, err := r.Read(name)
		if err != nil {
			return err
		}

		for _, m := range t.Teammates() {
			if !m.State.IsTerminal() {
				return errors.NewTeamError(
					fmt.Sprintf("teammate %s is still %s", m.Name, m.State),
					errors.ErrTeammatesActive,
				).WithTeam(name).WithAgent(m.Name)
			}
		}

		// Mark the record before removal so a reader racing the
		// RemoveAll below sees an explicit deleting status.
		t.Status = StatusDeleting
		return store.WriteJSON(paths.TeamConfig(r.root, name), t)
	})
	if err != nil {
		return err
	}

	if err := os.RemoveAll(paths.TasksDir(r.root, name)); err != nil {
		return errors.Wrapf(err, "failed to remove task directory for %s", name)
	}
	if err := os.RemoveAll(paths.TeamDir(r.root, name)); err != nil {
		return errors.Wrapf(err, "failed to remove team directory for %s", name)
	}

	r.log.Info("team deleted", "team", name)
	return nil
}

// List returns every readable team record, ordered by name. Unreadable
// entries are skipped with a warning.
func (r *Registry) List() ([]*Team, error) {
	entries, err := os.ReadDir(paths.TeamsDir(r.root))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to list teams")
	}

	var teams []*Team
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		t, err := r.Read(entry.Name())
		if err != nil {
			r.log.Warn("skipping unreadable team", "team", entry.Name(), "error", err.Error())
			continue
		}
		teams = append(teams, t)
	}

	sort.Slice(teams, func(i, j int) bool { return teams[i].Name < teams[j].Name })
	return teams, nil
}

// RegisterAgent adds an agent to the team under the team lock and
// creates its inbox. Fails with AlreadyExists on a duplicate name.
// JoinedAt and ID are filled in when unset.
func (r *Registry) RegisterAgent(teamName string, agent Agent) (*Team, error) {
	if err := ValidateAgentName(agent.Name); err != nil {
		return nil, err
	}

	var updated *Team
	err := r.withLock(teamName, func() error {
		t, err := r.Read(teamName)
		if err != nil {
			return err
		}

		if _, ok := t.Member(agent.Name); ok {
			return errors.NewAlreadyExistsError("agent", agent.Name)
		}

		if agent.ID == "" {
			agent.ID = fmt.Sprintf("%s@%s", agent.Name, teamName)
		}
		if agent.JoinedAt == 0 {
			agent.JoinedAt = nowMillis()
		}
		if agent.Color == "" {
			agent.Color = t.NextColor()
		}

		t.Members = append(t.Members, agent)
		if err := store.WriteJSON(paths.TeamConfig(r.root, teamName), t); err != nil {
			return err
		}
		updated = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	inboxPath := paths.Inbox(r.root, teamName, agent.Name)
	if !store.Exists(inboxPath) {
		if err := store.WriteJSON(inboxPath, []struct{}{}); err != nil {
			return nil, err
		}
	}

	r.log.Info("agent registered", "team", teamName, "agent", agent.Name, "backend", agent.Backend)
	return updated, nil
}

// RemoveAgent removes a teammate from the team record under the team
// lock. The lead cannot be removed. The inbox file is kept for audit.
func (r *Registry) RemoveAgent(teamName, agentName string) error {
	if agentName == LeadName {
		return errors.NewValidationError("agent", agentName, "cannot remove the team lead")
	}

	return r.withLock(teamName, func() error {
		t, err := r.Read(teamName)
		if err != nil {
			return err
		}

		idx := -1
		for i, m := range t.Members {
			if m.Name == agentName {
				idx = i
				break
			}
		}
		if idx < 0 {
			return errors.NewTeamError("agent not found", errors.ErrAgentNotFound).
				WithTeam(teamName).WithAgent(agentName)
		}

		t.Members = append(t.Members[:idx], t.Members[idx+1:]...)
		return store.WriteJSON(paths.TeamConfig(r.root, teamName), t)
	})
}

// UpdateAgent applies fn to the named agent's record under the team
// lock and persists the result. fn sees and mutates the stored copy.
func (r *Registry) UpdateAgent(teamName, agentName string, fn func(*Agent) error) (*Agent, error) {
	var updated Agent
	err := r.withLock(teamName, func() error {
		t, err := r.Read(teamName)
		if err != nil {
			return err
		}

		idx := -1
		for i := range t.Members {
			if t.Members[i].Name == agentName {
				idx = i
				break
			}
		}
		if idx < 0 {
			return errors.NewTeamError("agent not found", errors.ErrAgentNotFound).
				WithTeam(teamName).WithAgent(agentName)
		}

		if err := fn(&t.Members[idx]); err != nil {
			return err
		}
		if err := store.WriteJSON(paths.TeamConfig(r.root, teamName), t); err != nil {
			return err
		}
		updated = t.Members[idx]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// withLock runs fn while holding the team's config lock. The lock file
// lives inside the team directory, so a missing team surfaces as
// NotFound before any lock is touched.
func (r *Registry) withLock(teamName string, fn func() error) error {
	if !store.Exists(paths.TeamConfig(r.root, teamName)) {
		return errors.NewTeamError("team not found", errors.ErrTeamNotFound).WithTeam(teamName)
	}
	return filelock.WithLock(paths.TeamLock(r.root, teamName), r.lockTimeout, fn)
}
