// Package watcher delivers inbox messages to bridged agents.
//
// Bridged backends have no native inbox support, so each bridged agent
// gets a watcher goroutine that peeks its mailbox and types new
// messages directly into the agent's tmux pane. The watcher tracks its
// own delivery cursor and never flips read flags; those belong to the
// agent's own inbox reads.
package watcher

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Iron-Ham/crew/internal/logging"
	"github.com/Iron-Ham/crew/internal/mailbox"
	"github.com/Iron-Ham/crew/internal/tmux"
)

// State describes where a watcher is in its lifecycle.
type State string

const (
	StateStarting State = "starting"
	StateWatching State = "watching"
	StateStopped  State = "stopped"
)

// Watcher follows one agent's inbox and injects new messages into its
// tmux pane.
type Watcher struct {
	teamName string
	agent    string
	target   string
	inboxDir string

	mail *mailbox.Store
	tm   *tmux.Client
	poll time.Duration
	log  *logging.Logger

	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	state    State
	lastSeen int
}

// run is the watcher loop. It wakes on inbox directory events when
// fsnotify is available, and on the poll ticker regardless, so a
// missed event only delays delivery by one interval.
func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	defer w.setState(StateStopped)

	var fsEvents <-chan fsnotify.Event
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.log.Warn("inbox watch unavailable, polling only", "error", err)
	} else {
		defer fw.Close()
		if err := fw.Add(w.inboxDir); err != nil {
			w.log.Warn("inbox watch unavailable, polling only", "dir", w.inboxDir, "error", err)
		} else {
			fsEvents = fw.Events
		}
	}

	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	w.setState(StateWatching)

	for {
		// A nil fsEvents channel blocks forever, leaving the ticker
		// as the only wake source.
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-fsEvents:
		}

		if alive, _ := w.tm.IsAlive(ctx, w.target); !alive {
			w.log.Info("pane gone, stopping watcher", "team", w.teamName, "agent", w.agent)
			return
		}

		if err := w.deliver(ctx); err != nil {
			w.log.Warn("message delivery failed",
				"team", w.teamName, "agent", w.agent, "error", err)
		}
	}
}

// deliver injects every message newer than the cursor, oldest first.
// The cursor only advances past messages that were actually typed into
// the pane, so a failed injection is retried on the next wake.
func (w *Watcher) deliver(ctx context.Context) error {
	msgs, err := w.mail.Peek(w.teamName, w.agent)
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		if msg.ID <= w.cursor() {
			continue
		}
		if err := w.tm.Inject(ctx, w.target, msg.RenderText()); err != nil {
			return err
		}
		w.advance(msg.ID)
	}
	return nil
}

// State reports the watcher's current lifecycle state.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Watcher) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

func (w *Watcher) cursor() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeen
}

func (w *Watcher) advance(id int) {
	w.mu.Lock()
	if id > w.lastSeen {
		w.lastSeen = id
	}
	w.mu.Unlock()
}

// stop cancels the loop and waits for it to exit.
func (w *Watcher) stop() {
	w.cancel()
	<-w.done
}
