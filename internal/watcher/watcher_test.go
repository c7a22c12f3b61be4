package watcher

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/crew/internal/mailbox"
	"github.com/Iron-Ham/crew/internal/testutil"
	"github.com/Iron-Ham/crew/internal/tmux"
)

const testPoll = 10 * time.Millisecond

// paneSim stands in for a tmux pane: it answers liveness probes and
// records injected text.
type paneSim struct {
	mu         sync.Mutex
	dead       bool
	failInject bool
	injected   []string
}

func (p *paneSim) run(_ context.Context, args ...string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch args[0] {
	case "display-message":
		if p.dead {
			return "1\n", nil
		}
		return "0\n", nil
	case "send-keys":
		for i, a := range args {
			if a == "-l" {
				if p.failInject {
					return "", fmt.Errorf("pane rejected input")
				}
				p.injected = append(p.injected, args[i+1])
			}
		}
	}
	return "", nil
}

func (p *paneSim) injectedCopy() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.injected...)
}

func (p *paneSim) setDead(dead bool) {
	p.mu.Lock()
	p.dead = dead
	p.mu.Unlock()
}

func (p *paneSim) setFailInject(fail bool) {
	p.mu.Lock()
	p.failInject = fail
	p.mu.Unlock()
}

func newTestManager(t *testing.T) (*Manager, *mailbox.Store, *paneSim) {
	t.Helper()

	reg := testutil.SeedTeam(t, "alpha", "codex-1")
	mail := mailbox.NewStore(reg, testutil.LockTimeout, nil)
	pane := &paneSim{}
	tm := tmux.NewClientWithRunner(pane.run)
	return NewManager(reg.Root(), mail, tm, testPoll, nil), mail, pane
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestWatcherSkipsMessagesBeforeStart(t *testing.T) {
	m, mail, pane := newTestManager(t)
	defer m.StopAll()

	// Messages already in the inbox (like the spawn prompt) are
	// considered delivered.
	if _, err := mail.Send("alpha", "team-lead", "codex-1", mailbox.KindPlain, mailbox.Payload{Content: "seeded prompt"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if err := m.Start(context.Background(), "alpha", "codex-1", "%1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitFor(t, func() bool {
		state, _ := m.State("alpha", "codex-1")
		return state == StateWatching
	}, "watcher never reached watching state")

	if _, err := mail.Send("alpha", "team-lead", "codex-1", mailbox.KindPlain, mailbox.Payload{Content: "hello"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	waitFor(t, func() bool {
		return len(pane.injectedCopy()) == 1
	}, "new message was never injected")

	got := pane.injectedCopy()[0]
	want := "[Message from team-lead]: hello"
	if got != want {
		t.Errorf("injected %q, want %q", got, want)
	}
}

func TestWatcherDeliversInOrder(t *testing.T) {
	m, mail, pane := newTestManager(t)
	defer m.StopAll()

	if err := m.Start(context.Background(), "alpha", "codex-1", "%1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	for _, content := range []string{"first", "second", "third"} {
		if _, err := mail.Send("alpha", "team-lead", "codex-1", mailbox.KindPlain, mailbox.Payload{Content: content}); err != nil {
			t.Fatalf("Send failed: %v", err)
		}
	}

	waitFor(t, func() bool {
		return len(pane.injectedCopy()) == 3
	}, "messages were never injected")

	injected := pane.injectedCopy()
	for i, content := range []string{"first", "second", "third"} {
		want := "[Message from team-lead]: " + content
		if injected[i] != want {
			t.Errorf("injected[%d] = %q, want %q", i, injected[i], want)
		}
	}
}

func TestWatcherDoesNotFlipReadFlags(t *testing.T) {
	m, mail, pane := newTestManager(t)
	defer m.StopAll()

	if err := m.Start(context.Background(), "alpha", "codex-1", "%1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if _, err := mail.Send("alpha", "team-lead", "codex-1", mailbox.KindPlain, mailbox.Payload{Content: "hi"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	waitFor(t, func() bool {
		return len(pane.injectedCopy()) == 1
	}, "message was never injected")

	count, err := mail.UnreadCount("alpha", "codex-1")
	if err != nil {
		t.Fatalf("UnreadCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("unread count = %d, want 1 (delivery must not mark read)", count)
	}
}

func TestWatcherRetriesFailedInjection(t *testing.T) {
	m, mail, pane := newTestManager(t)
	defer m.StopAll()

	pane.setFailInject(true)
	if err := m.Start(context.Background(), "alpha", "codex-1", "%1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if _, err := mail.Send("alpha", "team-lead", "codex-1", mailbox.KindPlain, mailbox.Payload{Content: "retry me"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	// Let a few polls fail, then heal the pane.
	time.Sleep(5 * testPoll)
	if n := len(pane.injectedCopy()); n != 0 {
		t.Fatalf("injected %d messages through a failing pane", n)
	}
	pane.setFailInject(false)

	waitFor(t, func() bool {
		return len(pane.injectedCopy()) == 1
	}, "message was never retried")
}

func TestWatcherStopsOnDeadPane(t *testing.T) {
	m, _, pane := newTestManager(t)
	defer m.StopAll()

	if err := m.Start(context.Background(), "alpha", "codex-1", "%1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitFor(t, func() bool {
		state, _ := m.State("alpha", "codex-1")
		return state == StateWatching
	}, "watcher never reached watching state")

	pane.setDead(true)

	waitFor(t, func() bool {
		state, _ := m.State("alpha", "codex-1")
		return state == StateStopped
	}, "watcher never stopped after pane died")
}

func TestManagerRejectsDuplicateStart(t *testing.T) {
	m, _, _ := newTestManager(t)
	defer m.StopAll()

	if err := m.Start(context.Background(), "alpha", "codex-1", "%1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := m.Start(context.Background(), "alpha", "codex-1", "%1"); err == nil {
		t.Error("second Start for the same agent should fail")
	}

	// A stopped watcher can be replaced.
	m.Stop("alpha", "codex-1")
	if err := m.Start(context.Background(), "alpha", "codex-1", "%2"); err != nil {
		t.Errorf("restart after Stop failed: %v", err)
	}
}

func TestManagerStopTeam(t *testing.T) {
	reg := testutil.SeedTeam(t, "alpha", "codex-1", "codex-2")
	mail := mailbox.NewStore(reg, testutil.LockTimeout, nil)
	pane := &paneSim{}
	m := NewManager(reg.Root(), mail, tmux.NewClientWithRunner(pane.run), testPoll, nil)
	defer m.StopAll()

	for _, agent := range []string{"codex-1", "codex-2"} {
		if err := m.Start(context.Background(), "alpha", agent, "%1"); err != nil {
			t.Fatalf("Start %s failed: %v", agent, err)
		}
	}

	m.StopTeam("alpha")

	for _, agent := range []string{"codex-1", "codex-2"} {
		if _, ok := m.State("alpha", agent); ok {
			t.Errorf("watcher for %s still registered after StopTeam", agent)
		}
	}
}
