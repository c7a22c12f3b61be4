// Package internal contains integration tests that drive the crew
// stores, the watcher, and the lifecycle coordinator together over a
// real temporary team root, with only tmux faked out.
package internal

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/crew/internal/backend"
	"github.com/Iron-Ham/crew/internal/errors"
	"github.com/Iron-Ham/crew/internal/lifecycle"
	"github.com/Iron-Ham/crew/internal/mailbox"
	"github.com/Iron-Ham/crew/internal/taskgraph"
	"github.com/Iron-Ham/crew/internal/team"
	"github.com/Iron-Ham/crew/internal/tmux"
	"github.com/Iron-Ham/crew/internal/watcher"
)

// tmuxServer fakes the tmux binary for a whole session: every spawn
// hands out a fresh pane id, and injected text is recorded per pane.
type tmuxServer struct {
	mu       sync.Mutex
	nextPane int
	injected map[string][]string
	killed   []string
}

func newTmuxServer() *tmuxServer {
	return &tmuxServer{injected: make(map[string][]string)}
}

func (s *tmuxServer) run(_ context.Context, args ...string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch args[0] {
	case "split-window", "new-window":
		s.nextPane++
		return fmt.Sprintf("%%%d\n", s.nextPane), nil
	case "send-keys":
		for i, a := range args {
			if a == "-l" && i+1 < len(args) {
				pane := args[2]
				s.injected[pane] = append(s.injected[pane], args[i+1])
			}
		}
		return "", nil
	case "display-message":
		return "0\n", nil
	case "capture-pane":
		return "$ waiting\n", nil
	case "kill-pane", "kill-window":
		s.killed = append(s.killed, args[2])
		return "", nil
	}
	return "", nil
}

func (s *tmuxServer) injectedInto(pane string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.injected[pane]))
	copy(out, s.injected[pane])
	return out
}

func (s *tmuxServer) killedTargets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.killed))
	copy(out, s.killed)
	return out
}

// crew wires the full stack over a temp root.
type crew struct {
	reg      *team.Registry
	mail     *mailbox.Store
	tasks    *taskgraph.Store
	srv      *tmuxServer
	watchers *watcher.Manager
	coord    *lifecycle.Coordinator
}

func newCrew(t *testing.T) *crew {
	t.Helper()

	const lockTimeout = 5 * time.Second
	reg := team.NewRegistry(t.TempDir(), lockTimeout, nil)
	mail := mailbox.NewStore(reg, lockTimeout, nil)
	tasks := taskgraph.NewStore(reg, mail, lockTimeout, nil)

	srv := newTmuxServer()
	tm := tmux.NewClientWithRunner(srv.run)
	watchers := watcher.NewManager(reg.Root(), mail, tm, 10*time.Millisecond, nil)
	t.Cleanup(watchers.StopAll)

	backends, err := backend.NewRegistry([]string{"claude", "codex"}, nil)
	if err != nil {
		t.Fatalf("backend registry: %v", err)
	}

	return &crew{
		reg:      reg,
		mail:     mail,
		tasks:    tasks,
		srv:      srv,
		watchers: watchers,
		coord:    lifecycle.NewCoordinator(reg, mail, tasks, tm, watchers, backends, lifecycle.Options{}, nil),
	}
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

// TestTeamEndToEnd walks a whole team session: create, spawn a native
// and a bridged teammate, message delivery through the watcher, task
// gating, the shutdown handshake, and teardown.
func TestTeamEndToEnd(t *testing.T) {
	c := newCrew(t)
	ctx := context.Background()

	if _, err := c.reg.Create("release", team.CreateOptions{
		Description:   "ship v2",
		LeadSessionID: "lead-session",
		LeadCwd:       "/tmp/release",
	}); err != nil {
		t.Fatalf("create team: %v", err)
	}

	builder, err := c.coord.Spawn(ctx, lifecycle.SpawnRequest{
		Team:    "release",
		Name:    "builder",
		Backend: "claude",
		Prompt:  "Build the release artifacts.",
	})
	if err != nil {
		t.Fatalf("spawn builder: %v", err)
	}
	tester, err := c.coord.Spawn(ctx, lifecycle.SpawnRequest{
		Team:    "release",
		Name:    "tester",
		Backend: "codex",
		Prompt:  "Run the test suite against the artifacts.",
	})
	if err != nil {
		t.Fatalf("spawn tester: %v", err)
	}

	if builder.State != team.StateActive || tester.State != team.StateActive {
		t.Fatalf("expected active teammates, got %s and %s", builder.State, tester.State)
	}
	if builder.BackendKind != string(backend.KindNative) {
		t.Errorf("builder backend kind = %q, want native", builder.BackendKind)
	}
	if tester.BackendKind != string(backend.KindBridged) {
		t.Errorf("tester backend kind = %q, want bridged", tester.BackendKind)
	}
	if builder.TmuxTarget == "" || tester.TmuxTarget == "" {
		t.Fatalf("expected tmux targets, got %q and %q", builder.TmuxTarget, tester.TmuxTarget)
	}

	// Only the bridged teammate gets a watcher.
	if _, ok := c.watchers.State("release", "builder"); ok {
		t.Error("native teammate should not have a watcher")
	}
	if _, ok := c.watchers.State("release", "tester"); !ok {
		t.Error("bridged teammate should have a watcher")
	}

	// Spawn prompts are seeded into inboxes but never injected: bridged
	// backends already receive the prompt on their command line.
	seeded, err := c.mail.Peek("release", "tester")
	if err != nil {
		t.Fatalf("peek tester inbox: %v", err)
	}
	if len(seeded) != 1 || seeded[0].From != team.LeadName {
		t.Fatalf("expected one seeded prompt from the lead, got %+v", seeded)
	}

	// A lead message to the bridged teammate lands in its pane.
	if _, err := c.mail.Send("release", team.LeadName, "tester", mailbox.KindPlain, mailbox.Payload{
		Content: "Focus on the integration suite first.",
	}); err != nil {
		t.Fatalf("send to tester: %v", err)
	}
	waitFor(t, func() bool {
		return len(c.srv.injectedInto(tester.TmuxTarget)) > 0
	}, "watcher never injected the lead's message")

	lines := c.srv.injectedInto(tester.TmuxTarget)
	if lines[0] != "[Message from team-lead]: Focus on the integration suite first." {
		t.Errorf("unexpected injected text %q", lines[0])
	}
	for _, line := range lines {
		if strings.Contains(line, "Run the test suite") {
			t.Errorf("seeded prompt was injected: %q", line)
		}
	}

	// Injection must not consume the message for MCP readers.
	if n, err := c.mail.UnreadCount("release", "tester"); err != nil || n != 2 {
		t.Errorf("tester unread = %d (err %v), want 2", n, err)
	}

	// Task graph: test work is gated on the build.
	build, err := c.tasks.Create("release", taskgraph.CreateOptions{
		Title: "build artifacts",
		Owner: "builder",
	})
	if err != nil {
		t.Fatalf("create build task: %v", err)
	}
	verify, err := c.tasks.Create("release", taskgraph.CreateOptions{
		Title:        "verify artifacts",
		Owner:        "tester",
		Dependencies: []int{build.ID},
	})
	if err != nil {
		t.Fatalf("create verify task: %v", err)
	}

	// Assigning an owner at create time notifies them.
	assignments, err := c.mail.ReadFrom("release", "tester", team.LeadName, 0)
	if err != nil {
		t.Fatalf("read tester inbox: %v", err)
	}
	var sawAssignment bool
	for _, m := range assignments {
		if m.Kind == mailbox.KindTaskAssignment && m.Payload.TaskID == verify.ID {
			sawAssignment = true
		}
	}
	if !sawAssignment {
		t.Error("tester never received a task_assignment for the verify task")
	}

	ready, err := c.tasks.Ready("release")
	if err != nil {
		t.Fatalf("ready: %v", err)
	}
	if len(ready) != 1 || ready[0].ID != build.ID {
		t.Fatalf("ready = %+v, want just the build task", ready)
	}

	completed := taskgraph.StatusCompleted
	if _, err := c.tasks.Apply("release", verify.ID, taskgraph.Update{Status: &completed}); err == nil {
		t.Fatal("completing the verify task before the build should fail")
	} else if !errors.Is(err, errors.ErrDependencyNotComplete) {
		t.Fatalf("expected dependency error, got %v", err)
	}

	if _, err := c.tasks.Apply("release", build.ID, taskgraph.Update{Status: &completed}); err != nil {
		t.Fatalf("complete build: %v", err)
	}
	if _, err := c.tasks.Apply("release", verify.ID, taskgraph.Update{Status: &completed}); err != nil {
		t.Fatalf("complete verify: %v", err)
	}

	// Shutdown handshake for the tester.
	reqID, err := c.coord.RequestShutdown(ctx, "release", "tester", "suite is green")
	if err != nil {
		t.Fatalf("request shutdown: %v", err)
	}
	if reqID == "" {
		t.Fatal("expected a request id")
	}
	tm, err := c.reg.Read("release")
	if err != nil {
		t.Fatalf("read team: %v", err)
	}
	if m, _ := tm.Member("tester"); m.State != team.StateShutdownRequested {
		t.Errorf("tester state = %s, want shutdown_requested", m.State)
	}

	if err := c.coord.ProcessShutdownApproved(ctx, "release", "tester"); err != nil {
		t.Fatalf("process shutdown: %v", err)
	}
	tm, err = c.reg.Read("release")
	if err != nil {
		t.Fatalf("read team: %v", err)
	}
	if _, ok := tm.Member("tester"); ok {
		t.Error("tester still in the roster after approved shutdown")
	}
	if _, ok := c.watchers.State("release", "tester"); ok {
		t.Error("tester watcher still registered after shutdown")
	}
	var testerKilled bool
	for _, target := range c.srv.killedTargets() {
		if target == tester.TmuxTarget {
			testerKilled = true
		}
	}
	if !testerKilled {
		t.Errorf("tester pane %s was never killed", tester.TmuxTarget)
	}

	// Force-killing the builder releases its in-progress work.
	cleanup, err := c.tasks.Create("release", taskgraph.CreateOptions{Title: "clean workspace", Owner: "builder"})
	if err != nil {
		t.Fatalf("create cleanup task: %v", err)
	}
	inProgress := taskgraph.StatusInProgress
	if _, err := c.tasks.Apply("release", cleanup.ID, taskgraph.Update{Status: &inProgress}); err != nil {
		t.Fatalf("start cleanup task: %v", err)
	}
	if err := c.coord.ForceKill(ctx, "release", "builder"); err != nil {
		t.Fatalf("force kill builder: %v", err)
	}
	got, err := c.tasks.Get("release", cleanup.ID)
	if err != nil {
		t.Fatalf("get cleanup task: %v", err)
	}
	if got.Owner != "" || got.Status != taskgraph.StatusPending {
		t.Errorf("cleanup task after force kill = owner %q status %s, want unowned pending", got.Owner, got.Status)
	}

	if err := c.coord.DeleteTeam(ctx, "release"); err != nil {
		t.Fatalf("delete team: %v", err)
	}
	if _, err := c.reg.Read("release"); !errors.IsNotFound(err) {
		t.Errorf("expected not-found after delete, got %v", err)
	}
}

// TestBroadcastReachesEveryTeammate checks that a lead broadcast fans
// out to every teammate and that a bridged teammate sees it on screen.
func TestBroadcastReachesEveryTeammate(t *testing.T) {
	c := newCrew(t)
	ctx := context.Background()

	if _, err := c.reg.Create("standup", team.CreateOptions{LeadSessionID: "s"}); err != nil {
		t.Fatalf("create team: %v", err)
	}
	if _, err := c.coord.Spawn(ctx, lifecycle.SpawnRequest{Team: "standup", Name: "alice", Backend: "claude"}); err != nil {
		t.Fatalf("spawn alice: %v", err)
	}
	bob, err := c.coord.Spawn(ctx, lifecycle.SpawnRequest{Team: "standup", Name: "bob", Backend: "codex"})
	if err != nil {
		t.Fatalf("spawn bob: %v", err)
	}

	receipts, err := c.mail.Send("standup", team.LeadName, mailbox.Broadcast, mailbox.KindPlain, mailbox.Payload{
		Content: "Daily sync in five minutes.",
	})
	if err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if len(receipts) != 2 {
		t.Fatalf("broadcast receipts = %d, want 2", len(receipts))
	}

	for _, name := range []string{"alice", "bob"} {
		msgs, err := c.mail.Peek("standup", name)
		if err != nil {
			t.Fatalf("peek %s: %v", name, err)
		}
		var found bool
		for _, m := range msgs {
			if m.Payload.Content == "Daily sync in five minutes." {
				found = true
			}
		}
		if !found {
			t.Errorf("%s never received the broadcast", name)
		}
	}

	waitFor(t, func() bool {
		for _, line := range c.srv.injectedInto(bob.TmuxTarget) {
			if strings.Contains(line, "Daily sync in five minutes.") {
				return true
			}
		}
		return false
	}, "broadcast was never injected into bob's pane")
}
