// Package testutil provides shared fixtures for crew tests.
package testutil

import (
	"testing"
	"time"

	"github.com/Iron-Ham/crew/internal/team"
)

// LockTimeout is the file lock timeout used across tests. Generous
// enough for slow CI filesystems, short enough to fail fast on a
// genuine deadlock.
const LockTimeout = 5 * time.Second

// NewRegistry creates a team registry rooted in a temp directory that
// is cleaned up when the test completes.
func NewRegistry(t *testing.T) *team.Registry {
	t.Helper()
	return team.NewRegistry(t.TempDir(), LockTimeout, nil)
}

// SeedTeam creates a team with the given teammates registered and
// active. Returns the registry for further setup.
func SeedTeam(t *testing.T, name string, teammates ...string) *team.Registry {
	t.Helper()

	reg := NewRegistry(t)
	if _, err := reg.Create(name, team.CreateOptions{Description: "test team"}); err != nil {
		t.Fatalf("failed to create team %s: %v", name, err)
	}
	for _, tm := range teammates {
		agent := team.Agent{Name: tm, AgentType: "worker", Backend: "claude", State: team.StateActive}
		if _, err := reg.RegisterAgent(name, agent); err != nil {
			t.Fatalf("failed to register %s: %v", tm, err)
		}
	}
	return reg
}
