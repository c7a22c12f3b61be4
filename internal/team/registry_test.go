package team

import (
	"os"
	"testing"
	"time"

	"github.com/Iron-Ham/crew/internal/errors"
	"github.com/Iron-Ham/crew/internal/paths"
	"github.com/Iron-Ham/crew/internal/store"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(t.TempDir(), 2*time.Second, nil)
}

func TestRegistry_Create(t *testing.T) {
	r := newTestRegistry(t)

	tm, err := r.Create("alpha", CreateOptions{
		Description:   "test team",
		LeadSessionID: "sess-1",
		Config:        Config{Backends: []string{"claude"}},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if tm.Name != "alpha" || tm.Status != StatusActive {
		t.Errorf("team = %+v", tm)
	}

	lead, ok := tm.Lead()
	if !ok {
		t.Fatal("created team has no lead")
	}
	if lead.Name != LeadName || lead.ID != "team-lead@alpha" || lead.State != StateActive {
		t.Errorf("lead = %+v", lead)
	}

	if !store.Exists(paths.TeamConfig(r.Root(), "alpha")) {
		t.Error("config.json not written")
	}
	if !store.Exists(paths.Inbox(r.Root(), "alpha", LeadName)) {
		t.Error("lead inbox not created")
	}
	if _, err := os.Stat(paths.TasksDir(r.Root(), "alpha")); err != nil {
		t.Errorf("task directory not created: %v", err)
	}
}

func TestRegistry_CreateLeadBackend(t *testing.T) {
	r := newTestRegistry(t)

	tm, err := r.Create("alpha", CreateOptions{LeadBackend: "codex"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	lead, ok := tm.Lead()
	if !ok {
		t.Fatal("created team has no lead")
	}
	if lead.Backend != "codex" {
		t.Errorf("lead backend = %q, want codex", lead.Backend)
	}

	tm, err = r.Create("beta", CreateOptions{})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	lead, _ = tm.Lead()
	if lead.Backend != "claude" {
		t.Errorf("default lead backend = %q, want claude", lead.Backend)
	}
}

func TestRegistry_CreateDuplicate(t *testing.T) {
	r := newTestRegistry(t)

	if _, err := r.Create("alpha", CreateOptions{}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err := r.Create("alpha", CreateOptions{})
	if err == nil {
		t.Fatal("expected AlreadyExists for duplicate team")
	}
	var exists *errors.AlreadyExistsError
	if !errors.As(err, &exists) {
		t.Errorf("error %v is not AlreadyExistsError", err)
	}
}

func TestRegistry_CreateInvalidName(t *testing.T) {
	r := newTestRegistry(t)
	if _, err := r.Create("bad name!", CreateOptions{}); err == nil {
		t.Error("expected validation error for invalid team name")
	}
}

func TestRegistry_ReadNotFound(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Read("ghost")
	if err == nil {
		t.Fatal("expected NotFound")
	}
	if !errors.IsNotFound(err) {
		t.Errorf("error %v should classify as not found", err)
	}
}

func TestRegistry_ReadRoundTrip(t *testing.T) {
	r := newTestRegistry(t)
	if _, err := r.Create("alpha", CreateOptions{Description: "d"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	tm, err := r.Read("alpha")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if tm.Description != "d" || len(tm.Members) != 1 {
		t.Errorf("read team = %+v", tm)
	}
}

func TestRegistry_RegisterAgent(t *testing.T) {
	r := newTestRegistry(t)
	if _, err := r.Create("alpha", CreateOptions{}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	tm, err := r.RegisterAgent("alpha", Agent{
		Name:        "researcher",
		Role:        RoleTeammate,
		AgentType:   "general-purpose",
		Backend:     "codex",
		BackendKind: "bridged",
		State:       StateSpawning,
	})
	if err != nil {
		t.Fatalf("RegisterAgent failed: %v", err)
	}

	agent, ok := tm.Member("researcher")
	if !ok {
		t.Fatal("agent missing from returned team")
	}
	if agent.ID != "researcher@alpha" {
		t.Errorf("agent ID = %q", agent.ID)
	}
	if agent.Color != ColorPalette[0] {
		t.Errorf("agent color = %q, want first palette entry", agent.Color)
	}
	if agent.JoinedAt == 0 {
		t.Error("JoinedAt not set")
	}
	if !store.Exists(paths.Inbox(r.Root(), "alpha", "researcher")) {
		t.Error("agent inbox not created")
	}

	// Colors advance with the persisted teammate count.
	tm, err = r.RegisterAgent("alpha", Agent{Name: "writer", Role: RoleTeammate, State: StateSpawning})
	if err != nil {
		t.Fatalf("RegisterAgent failed: %v", err)
	}
	writer, _ := tm.Member("writer")
	if writer.Color != ColorPalette[1] {
		t.Errorf("second teammate color = %q, want %q", writer.Color, ColorPalette[1])
	}
}

func TestRegistry_RegisterAgentDuplicate(t *testing.T) {
	r := newTestRegistry(t)
	if _, err := r.Create("alpha", CreateOptions{}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := r.RegisterAgent("alpha", Agent{Name: "w", Role: RoleTeammate}); err != nil {
		t.Fatalf("RegisterAgent failed: %v", err)
	}

	_, err := r.RegisterAgent("alpha", Agent{Name: "w", Role: RoleTeammate})
	var exists *errors.AlreadyExistsError
	if !errors.As(err, &exists) {
		t.Errorf("duplicate registration error = %v, want AlreadyExistsError", err)
	}
}

func TestRegistry_RegisterAgentReservedName(t *testing.T) {
	r := newTestRegistry(t)
	if _, err := r.Create("alpha", CreateOptions{}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := r.RegisterAgent("alpha", Agent{Name: LeadName}); err == nil {
		t.Error("expected rejection of reserved lead name")
	}
}

func TestRegistry_RegisterAgentMissingTeam(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.RegisterAgent("ghost", Agent{Name: "w"})
	if !errors.IsNotFound(err) {
		t.Errorf("error %v should classify as not found", err)
	}
}

func TestRegistry_RemoveAgent(t *testing.T) {
	r := newTestRegistry(t)
	if _, err := r.Create("alpha", CreateOptions{}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := r.RegisterAgent("alpha", Agent{Name: "w", Role: RoleTeammate}); err != nil {
		t.Fatalf("RegisterAgent failed: %v", err)
	}

	if err := r.RemoveAgent("alpha", "w"); err != nil {
		t.Fatalf("RemoveAgent failed: %v", err)
	}

	tm, err := r.Read("alpha")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if _, ok := tm.Member("w"); ok {
		t.Error("agent still present after removal")
	}
	// The inbox survives removal.
	if !store.Exists(paths.Inbox(r.Root(), "alpha", "w")) {
		t.Error("inbox should be kept after agent removal")
	}

	if err := r.RemoveAgent("alpha", "w"); !errors.IsNotFound(err) {
		t.Errorf("second removal error = %v, want NotFound", err)
	}
}

func TestRegistry_RemoveAgentLeadRefused(t *testing.T) {
	r := newTestRegistry(t)
	if _, err := r.Create("alpha", CreateOptions{}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := r.RemoveAgent("alpha", LeadName); err == nil {
		t.Error("expected refusal to remove the lead")
	}
}

func TestRegistry_UpdateAgent(t *testing.T) {
	r := newTestRegistry(t)
	if _, err := r.Create("alpha", CreateOptions{}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := r.RegisterAgent("alpha", Agent{Name: "w", Role: RoleTeammate, State: StateSpawning}); err != nil {
		t.Fatalf("RegisterAgent failed: %v", err)
	}

	agent, err := r.UpdateAgent("alpha", "w", func(a *Agent) error {
		a.State = StateActive
		a.TmuxTarget = "%5"
		return nil
	})
	if err != nil {
		t.Fatalf("UpdateAgent failed: %v", err)
	}
	if agent.State != StateActive || agent.TmuxTarget != "%5" {
		t.Errorf("updated agent = %+v", agent)
	}

	tm, _ := r.Read("alpha")
	stored, _ := tm.Member("w")
	if stored.State != StateActive {
		t.Errorf("stored state = %q, want active", stored.State)
	}
}

func TestRegistry_UpdateAgentErrorAborts(t *testing.T) {
	r := newTestRegistry(t)
	if _, err := r.Create("alpha", CreateOptions{}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := r.RegisterAgent("alpha", Agent{Name: "w", Role: RoleTeammate, State: StateSpawning}); err != nil {
		t.Fatalf("RegisterAgent failed: %v", err)
	}

	wantErr := errors.New("boom")
	_, err := r.UpdateAgent("alpha", "w", func(a *Agent) error {
		a.State = StateKilled
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("UpdateAgent error = %v, want boom", err)
	}

	tm, _ := r.Read("alpha")
	stored, _ := tm.Member("w")
	if stored.State != StateSpawning {
		t.Errorf("failed update should not persist, state = %q", stored.State)
	}
}

func TestRegistry_DeleteRefusesActiveTeammates(t *testing.T) {
	r := newTestRegistry(t)
	if _, err := r.Create("alpha", CreateOptions{}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := r.RegisterAgent("alpha", Agent{Name: "w", Role: RoleTeammate, State: StateActive}); err != nil {
		t.Fatalf("RegisterAgent failed: %v", err)
	}

	err := r.Delete("alpha")
	if !errors.Is(err, errors.ErrTeammatesActive) {
		t.Fatalf("Delete error = %v, want TeammatesActive", err)
	}

	// The team record must be untouched by the refused deletion.
	if _, err := r.Read("alpha"); err != nil {
		t.Errorf("team should still exist: %v", err)
	}
}

func TestRegistry_Delete(t *testing.T) {
	r := newTestRegistry(t)
	if _, err := r.Create("alpha", CreateOptions{}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := r.RegisterAgent("alpha", Agent{Name: "w", Role: RoleTeammate, State: StateTerminated}); err != nil {
		t.Fatalf("RegisterAgent failed: %v", err)
	}
	if _, err := r.RegisterAgent("alpha", Agent{Name: "k", Role: RoleTeammate, State: StateKilled}); err != nil {
		t.Fatalf("RegisterAgent failed: %v", err)
	}

	if err := r.Delete("alpha"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := os.Stat(paths.TeamDir(r.Root(), "alpha")); !os.IsNotExist(err) {
		t.Error("team directory should be gone")
	}
	if _, err := os.Stat(paths.TasksDir(r.Root(), "alpha")); !os.IsNotExist(err) {
		t.Error("task directory should be gone")
	}

	if err := r.Delete("alpha"); !errors.IsNotFound(err) {
		t.Errorf("second delete error = %v, want NotFound", err)
	}
}

func TestRegistry_List(t *testing.T) {
	r := newTestRegistry(t)

	teams, err := r.List()
	if err != nil {
		t.Fatalf("List on empty root failed: %v", err)
	}
	if len(teams) != 0 {
		t.Errorf("expected no teams, got %d", len(teams))
	}

	for _, name := range []string{"bravo", "alpha"} {
		if _, err := r.Create(name, CreateOptions{}); err != nil {
			t.Fatalf("Create %s failed: %v", name, err)
		}
	}

	teams, err = r.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(teams) != 2 || teams[0].Name != "alpha" || teams[1].Name != "bravo" {
		names := make([]string, len(teams))
		for i, tm := range teams {
			names[i] = tm.Name
		}
		t.Errorf("List() = %v, want [alpha bravo]", names)
	}
}
