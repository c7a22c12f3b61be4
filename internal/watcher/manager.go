package watcher

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Iron-Ham/crew/internal/errors"
	"github.com/Iron-Ham/crew/internal/logging"
	"github.com/Iron-Ham/crew/internal/mailbox"
	"github.com/Iron-Ham/crew/internal/paths"
	"github.com/Iron-Ham/crew/internal/tmux"
)

// Manager owns the watcher goroutines for a process, one per bridged
// agent. Watchers are keyed by team and agent name.
type Manager struct {
	root string
	mail *mailbox.Store
	tm   *tmux.Client
	poll time.Duration
	log  *logging.Logger

	mu       sync.Mutex
	watchers map[string]*Watcher
}

// NewManager creates a Manager. A nil logger disables logging.
func NewManager(root string, mail *mailbox.Store, tm *tmux.Client, poll time.Duration, log *logging.Logger) *Manager {
	if log == nil {
		log = logging.Nop()
	}
	return &Manager{
		root:     root,
		mail:     mail,
		tm:       tm,
		poll:     poll,
		log:      log.WithComponent("watcher"),
		watchers: make(map[string]*Watcher),
	}
}

// Start launches a watcher for the given agent's inbox, injecting into
// the given tmux target. The delivery cursor starts at the current
// inbox tail: anything already present (such as the seeded spawn
// prompt, which bridged agents receive on their command line) is
// considered delivered.
func (m *Manager) Start(ctx context.Context, teamName, agent, target string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := watcherKey(teamName, agent)
	if w, ok := m.watchers[key]; ok && w.State() != StateStopped {
		return errors.NewAlreadyExistsError("watcher", key)
	}

	msgs, err := m.mail.Peek(teamName, agent)
	if err != nil {
		return errors.Wrapf(err, "failed to read inbox tail for %s", key)
	}
	tail := 0
	for _, msg := range msgs {
		if msg.ID > tail {
			tail = msg.ID
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	w := &Watcher{
		teamName: teamName,
		agent:    agent,
		target:   target,
		inboxDir: paths.InboxDir(m.root, teamName),
		mail:     m.mail,
		tm:       m.tm,
		poll:     m.poll,
		log:      m.log.WithTeam(teamName).WithAgent(agent),
		cancel:   cancel,
		done:     make(chan struct{}),
		state:    StateStarting,
		lastSeen: tail,
	}
	m.watchers[key] = w

	go w.run(ctx)

	m.log.Info("watcher started", "team", teamName, "agent", agent, "target", target, "cursor", tail)
	return nil
}

// Stop halts the watcher for the given agent, waiting for its loop to
// exit. Stopping an unknown agent is a no-op.
func (m *Manager) Stop(teamName, agent string) {
	m.mu.Lock()
	w, ok := m.watchers[watcherKey(teamName, agent)]
	if ok {
		delete(m.watchers, watcherKey(teamName, agent))
	}
	m.mu.Unlock()

	if ok {
		w.stop()
	}
}

// StopTeam halts every watcher belonging to the given team.
func (m *Manager) StopTeam(teamName string) {
	prefix := teamName + "/"

	m.mu.Lock()
	var stopping []*Watcher
	for key, w := range m.watchers {
		if strings.HasPrefix(key, prefix) {
			stopping = append(stopping, w)
			delete(m.watchers, key)
		}
	}
	m.mu.Unlock()

	for _, w := range stopping {
		w.stop()
	}
}

// StopAll halts every watcher. Used on process shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	stopping := make([]*Watcher, 0, len(m.watchers))
	for key, w := range m.watchers {
		stopping = append(stopping, w)
		delete(m.watchers, key)
	}
	m.mu.Unlock()

	for _, w := range stopping {
		w.stop()
	}
}

// State reports the state of the agent's watcher, if one exists.
func (m *Manager) State(teamName, agent string) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.watchers[watcherKey(teamName, agent)]
	if !ok {
		return "", false
	}
	return w.State(), true
}

func watcherKey(teamName, agent string) string {
	return teamName + "/" + agent
}
