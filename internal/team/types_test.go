package team

import (
	"strings"
	"testing"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "alpha", false},
		{"with digits", "team42", false},
		{"with hyphen and underscore", "my-team_1", false},
		{"empty", "", true},
		{"with space", "my team", true},
		{"with slash", "a/b", true},
		{"with dot", "a.b", true},
		{"max length", strings.Repeat("a", 64), false},
		{"too long", strings.Repeat("a", 65), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateAgentNameReservesLead(t *testing.T) {
	if err := ValidateAgentName("team-lead"); err == nil {
		t.Error("ValidateAgentName should reject the reserved lead name")
	}
	if err := ValidateAgentName("worker"); err != nil {
		t.Errorf("ValidateAgentName(worker) = %v", err)
	}
}

func TestStateIsTerminal(t *testing.T) {
	terminal := map[State]bool{
		StateSpawning:          false,
		StateActive:            false,
		StateShutdownRequested: false,
		StateShuttingDown:      false,
		StateTerminated:        true,
		StateKilled:            true,
	}
	for state, want := range terminal {
		if got := state.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", state, got, want)
		}
	}
}

func TestTeamAccessors(t *testing.T) {
	tm := &Team{
		Name: "alpha",
		Members: []Agent{
			{Name: LeadName, Role: RoleLead},
			{Name: "researcher", Role: RoleTeammate},
			{Name: "writer", Role: RoleTeammate},
		},
	}

	lead, ok := tm.Lead()
	if !ok || lead.Name != LeadName {
		t.Errorf("Lead() = %v, %v", lead, ok)
	}

	if _, ok := tm.Member("writer"); !ok {
		t.Error("Member(writer) not found")
	}
	if _, ok := tm.Member("ghost"); ok {
		t.Error("Member(ghost) should not be found")
	}

	mates := tm.Teammates()
	if len(mates) != 2 {
		t.Errorf("Teammates() returned %d, want 2", len(mates))
	}
}

func TestNextColorRoundRobin(t *testing.T) {
	tm := &Team{Members: []Agent{{Name: LeadName, Role: RoleLead}}}

	if got := tm.NextColor(); got != "blue" {
		t.Errorf("first color = %q, want blue", got)
	}

	// Fill a full palette cycle and verify wraparound.
	for i := 0; i < len(ColorPalette); i++ {
		want := ColorPalette[i]
		if got := tm.NextColor(); got != want {
			t.Errorf("teammate %d color = %q, want %q", i, got, want)
		}
		tm.Members = append(tm.Members, Agent{Name: "a", Role: RoleTeammate})
	}
	if got := tm.NextColor(); got != ColorPalette[0] {
		t.Errorf("palette should wrap around, got %q", got)
	}
}
