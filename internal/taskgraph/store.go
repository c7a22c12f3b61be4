// Package taskgraph implements the per-team task store with dependency
// edges.
//
// Each task is one JSON file under <root>/tasks/<team>/. All mutations
// serialize through the team's task-directory lock; ids are derived
// from the persisted records so they survive restarts and concurrent
// writers. The dependency relation must stay acyclic; completion is
// gated on every dependency being completed.
package taskgraph

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Iron-Ham/crew/internal/errors"
	"github.com/Iron-Ham/crew/internal/filelock"
	"github.com/Iron-Ham/crew/internal/logging"
	"github.com/Iron-Ham/crew/internal/mailbox"
	"github.com/Iron-Ham/crew/internal/paths"
	"github.com/Iron-Ham/crew/internal/store"
	"github.com/Iron-Ham/crew/internal/team"
)

// Store performs task CRUD for one crew root. It is safe for concurrent
// use from unrelated processes.
type Store struct {
	root        string
	lockTimeout time.Duration
	registry    *team.Registry
	mail        *mailbox.Store
	log         *logging.Logger
}

// NewStore creates a task Store sharing the registry's root. mail is
// used for owner-change notifications and may be nil in tests that do
// not exercise them.
func NewStore(registry *team.Registry, mail *mailbox.Store, lockTimeout time.Duration, log *logging.Logger) *Store {
	if log == nil {
		log = logging.Nop()
	}
	return &Store{
		root:        registry.Root(),
		lockTimeout: lockTimeout,
		registry:    registry,
		mail:        mail,
		log:         log.WithComponent("taskgraph"),
	}
}

// CreateOptions carries the inputs to Create.
type CreateOptions struct {
	Title        string
	Description  string
	Owner        string
	Dependencies []int
	Metadata     map[string]any
}

// Create adds a task with the next free id. Every dependency must
// exist; the resulting graph must stay acyclic. Creating with an owner
// sends that owner a task_assignment once the lock is released, the
// same way Apply does on owner changes.
func (s *Store) Create(teamName string, opts CreateOptions) (*Task, error) {
	if _, err := s.registry.Read(teamName); err != nil {
		return nil, err
	}
	if opts.Title == "" {
		return nil, errors.NewValidationError("title", "", "task title must not be empty")
	}

	if err := os.MkdirAll(paths.TasksDir(s.root, teamName), 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create task directory for %s", teamName)
	}

	var created *Task
	err := s.withLock(teamName, func() error {
		tasks, err := s.loadAll(teamName)
		if err != nil {
			return err
		}

		id := 1
		for existing := range tasks {
			if existing >= id {
				id = existing + 1
			}
		}

		deps := normalizeIDs(opts.Dependencies)
		for _, dep := range deps {
			if _, ok := tasks[dep]; !ok {
				return errors.NewTaskError("dependency does not exist", errors.ErrTaskNotFound).
					WithTeam(teamName).WithTaskID(dep)
			}
		}

		now := nowISO()
		t := &Task{
			ID:           id,
			Title:        opts.Title,
			Description:  opts.Description,
			Status:       StatusPending,
			Owner:        opts.Owner,
			Dependencies: deps,
			Blocks:       []int{},
			Metadata:     opts.Metadata,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		tasks[id] = t
		if hasCycle(tasks) {
			return errors.NewTaskError("dependencies would form a cycle", errors.ErrCycleDetected).
				WithTeam(teamName).WithTaskID(id)
		}

		if err := s.writeTask(teamName, t); err != nil {
			return err
		}
		for _, dep := range deps {
			tasks[dep].Blocks = appendID(tasks[dep].Blocks, id)
			if err := s.writeTask(teamName, tasks[dep]); err != nil {
				return err
			}
		}

		created = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	if opts.Owner != "" {
		s.notifyAssignment(teamName, opts.Owner, created)
	}

	s.log.Info("task created", "team", teamName, "task", created.ID, "title", created.Title)
	return created, nil
}

// Apply performs a partial update under the task lock. A status of
// StatusDeleted removes the task record and scrubs its id from every
// other task's edge lists. Owner changes trigger a task_assignment
// message to the new owner as a separate step after the lock is
// released; a failed notification does not undo the committed update.
func (s *Store) Apply(teamName string, id int, upd Update) (*Task, error) {
	if _, err := s.registry.Read(teamName); err != nil {
		return nil, err
	}

	var result *Task
	var notifyOwner string
	err := s.withLock(teamName, func() error {
		tasks, err := s.loadAll(teamName)
		if err != nil {
			return err
		}

		t, ok := tasks[id]
		if !ok {
			return errors.NewTaskError("task not found", errors.ErrTaskNotFound).
				WithTeam(teamName).WithTaskID(id)
		}

		if upd.Status != nil && *upd.Status == StatusDeleted {
			result = t
			result.Status = StatusDeleted
			return s.deleteTask(teamName, id, tasks)
		}

		touched := map[int]*Task{id: t}

		if upd.Dependencies != nil {
			newDeps := normalizeIDs(*upd.Dependencies)
			for _, dep := range newDeps {
				if dep == id {
					return errors.NewTaskError("task cannot depend on itself", errors.ErrCycleDetected).
						WithTeam(teamName).WithTaskID(id)
				}
				if _, ok := tasks[dep]; !ok {
					return errors.NewTaskError("dependency does not exist", errors.ErrTaskNotFound).
						WithTeam(teamName).WithTaskID(dep)
				}
			}

			oldDeps := t.Dependencies
			t.Dependencies = newDeps
			if hasCycle(tasks) {
				return errors.NewTaskError("dependencies would form a cycle", errors.ErrCycleDetected).
					WithTeam(teamName).WithTaskID(id)
			}

			for _, dep := range oldDeps {
				if !containsID(newDeps, dep) {
					tasks[dep].Blocks = removeID(tasks[dep].Blocks, id)
					touched[dep] = tasks[dep]
				}
			}
			for _, dep := range newDeps {
				if !containsID(oldDeps, dep) {
					tasks[dep].Blocks = appendID(tasks[dep].Blocks, id)
					touched[dep] = tasks[dep]
				}
			}
		}

		if upd.Status != nil {
			if !containsStatus(ValidStatuses(), *upd.Status) {
				return errors.NewValidationError("status", string(*upd.Status), "unknown task status")
			}
			if *upd.Status == StatusCompleted {
				for _, dep := range t.Dependencies {
					if tasks[dep].Status != StatusCompleted {
						return errors.NewTaskError(
							fmt.Sprintf("dependency %d is %s", dep, tasks[dep].Status),
							errors.ErrDependencyNotComplete,
						).WithTeam(teamName).WithTaskID(id)
					}
				}
			}
			t.Status = *upd.Status
		}

		if upd.Owner != nil && *upd.Owner != t.Owner {
			t.Owner = *upd.Owner
			if t.Owner != "" {
				notifyOwner = t.Owner
			}
		}
		if upd.Title != nil {
			t.Title = *upd.Title
		}
		if upd.Description != nil {
			t.Description = *upd.Description
		}
		if upd.Metadata != nil {
			t.Metadata = upd.Metadata
		}

		t.UpdatedAt = nowISO()
		for _, task := range touched {
			if err := s.writeTask(teamName, task); err != nil {
				return err
			}
		}

		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	if notifyOwner != "" {
		s.notifyAssignment(teamName, notifyOwner, result)
	}

	return result, nil
}

// deleteTask removes the task file and scrubs id from every other
// task's edge lists. The caller holds the task lock.
func (s *Store) deleteTask(teamName string, id int, tasks map[int]*Task) error {
	for _, other := range tasks {
		if other.ID == id {
			continue
		}
		deps := removeID(other.Dependencies, id)
		blocks := removeID(other.Blocks, id)
		if len(deps) == len(other.Dependencies) && len(blocks) == len(other.Blocks) {
			continue
		}
		other.Dependencies = deps
		other.Blocks = blocks
		other.UpdatedAt = nowISO()
		if err := s.writeTask(teamName, other); err != nil {
			return err
		}
	}

	if err := os.Remove(paths.Task(s.root, teamName, id)); err != nil {
		return errors.Wrapf(err, "failed to remove task %d", id)
	}
	s.log.Info("task deleted", "team", teamName, "task", id)
	return nil
}

// notifyAssignment sends a task_assignment message to the new owner.
// Failures are logged, not returned: the task update is already
// committed and stays valid without the notification.
func (s *Store) notifyAssignment(teamName, owner string, t *Task) {
	if s.mail == nil {
		return
	}
	_, err := s.mail.Send(teamName, team.LeadName, owner, mailbox.KindTaskAssignment, mailbox.Payload{
		TaskID:  t.ID,
		Title:   t.Title,
		Content: t.Description,
	})
	if err != nil {
		s.log.Warn("task assignment notification failed",
			"team", teamName, "task", t.ID, "owner", owner, "error", err.Error())
	}
}

// Get returns one task. Fails with NotFound if absent.
func (s *Store) Get(teamName string, id int) (*Task, error) {
	var t Task
	if err := store.ReadJSON(paths.Task(s.root, teamName, id), &t); err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NewTaskError("task not found", errors.ErrTaskNotFound).
				WithTeam(teamName).WithTaskID(id)
		}
		return nil, err
	}
	return &t, nil
}

// List returns all tasks ordered by id ascending. Reads are lock-free;
// atomic writes guarantee each record is a committed state.
func (s *Store) List(teamName string) ([]*Task, error) {
	tasks, err := s.loadAll(teamName)
	if err != nil {
		return nil, err
	}

	out := make([]*Task, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Ready returns pending tasks whose dependencies are all completed,
// ordered by id ascending.
func (s *Store) Ready(teamName string) ([]*Task, error) {
	tasks, err := s.loadAll(teamName)
	if err != nil {
		return nil, err
	}

	var out []*Task
	for _, t := range tasks {
		if t.Status != StatusPending {
			continue
		}
		ready := true
		for _, dep := range t.Dependencies {
			if d, ok := tasks[dep]; !ok || d.Status != StatusCompleted {
				ready = false
				break
			}
		}
		if ready {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ResetOwner returns every non-completed task owned by agent to the
// unowned pending state. Used when a teammate is removed.
func (s *Store) ResetOwner(teamName, agent string) error {
	if _, err := os.Stat(paths.TasksDir(s.root, teamName)); os.IsNotExist(err) {
		return nil
	}

	return s.withLock(teamName, func() error {
		tasks, err := s.loadAll(teamName)
		if err != nil {
			return err
		}

		for _, t := range tasks {
			if t.Owner != agent || t.Status == StatusCompleted {
				continue
			}
			t.Owner = ""
			if t.Status == StatusInProgress {
				t.Status = StatusPending
			}
			t.UpdatedAt = nowISO()
			if err := s.writeTask(teamName, t); err != nil {
				return err
			}
		}
		return nil
	})
}

// loadAll reads every task record in the team's task directory. A
// missing directory is an empty graph; an unparseable record surfaces
// as Corrupt.
func (s *Store) loadAll(teamName string) (map[int]*Task, error) {
	entries, err := os.ReadDir(paths.TasksDir(s.root, teamName))
	if err != nil {
		if os.IsNotExist(err) {
			return map[int]*Task{}, nil
		}
		return nil, errors.Wrapf(err, "failed to list tasks for %s", teamName)
	}

	tasks := make(map[int]*Task, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}

		var t Task
		if err := store.ReadJSON(filepath.Join(paths.TasksDir(s.root, teamName), name), &t); err != nil {
			return nil, err
		}
		tasks[id] = &t
	}
	return tasks, nil
}

// writeTask persists one task record.
func (s *Store) writeTask(teamName string, t *Task) error {
	return store.WriteJSON(paths.Task(s.root, teamName, t.ID), t)
}

// withLock runs fn while holding the team's task-directory lock.
func (s *Store) withLock(teamName string, fn func() error) error {
	return filelock.WithLock(paths.TaskLock(s.root, teamName), s.lockTimeout, fn)
}
