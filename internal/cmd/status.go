package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/crew/internal/taskgraph"
	"github.com/Iron-Ham/crew/internal/team"
)

var statusCmd = &cobra.Command{
	Use:   "status [team]",
	Short: "Show team status",
	Long:  `Display team rosters, agent states, unread counts, and task totals.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Faint(true)
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))

	// Terminal colors for the agent palette.
	paletteColors = map[string]lipgloss.Color{
		"blue":   lipgloss.Color("12"),
		"green":  lipgloss.Color("10"),
		"yellow": lipgloss.Color("11"),
		"purple": lipgloss.Color("13"),
		"orange": lipgloss.Color("208"),
		"pink":   lipgloss.Color("218"),
		"cyan":   lipgloss.Color("14"),
		"red":    lipgloss.Color("9"),
	}
)

func colorDot(color string) string {
	c, ok := paletteColors[color]
	if !ok {
		return "●"
	}
	return lipgloss.NewStyle().Foreground(c).Render("●")
}

func runStatus(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	var teams []*team.Team
	if len(args) == 1 {
		t, err := app.registry.Read(args[0])
		if err != nil {
			return fmt.Errorf("failed to read team %q: %w", args[0], err)
		}
		teams = []*team.Team{t}
	} else {
		teams, err = app.registry.List()
		if err != nil {
			return fmt.Errorf("failed to list teams: %w", err)
		}
	}

	fmt.Println(dimStyle.Render("crew root: " + app.root))
	fmt.Println()

	if len(teams) == 0 {
		fmt.Println("No teams")
		return nil
	}

	for _, t := range teams {
		fmt.Println(renderTeam(app, t))
	}
	return nil
}

func renderTeam(app *app, t *team.Team) string {
	var sb strings.Builder

	header := fmt.Sprintf("team %s (%s)", t.Name, t.Status)
	if t.Description != "" {
		header += dimStyle.Render("  " + t.Description)
	}
	sb.WriteString(headerStyle.Render(header))
	sb.WriteString("\n")

	for _, m := range t.Members {
		sb.WriteString(renderMember(app, t.Name, m))
		sb.WriteString("\n")
	}

	tasks, err := app.tasks.List(t.Name)
	if err == nil && len(tasks) > 0 {
		sb.WriteString(dimStyle.Render("  tasks: " + taskSummary(tasks)))
		sb.WriteString("\n")
	}
	return sb.String()
}

func renderMember(app *app, teamName string, m team.Agent) string {
	line := fmt.Sprintf("  %s %-16s %-8s %-20s", colorDot(m.Color), m.Name, m.Backend, m.State)
	if m.TmuxTarget != "" {
		line += dimStyle.Render(" " + m.TmuxTarget)
	}
	if unread, err := app.mail.UnreadCount(teamName, m.Name); err == nil && unread > 0 {
		line += errStyle.Render(fmt.Sprintf("  %d unread", unread))
	}
	return line
}

func taskSummary(tasks []*taskgraph.Task) string {
	counts := map[taskgraph.Status]int{}
	for _, t := range tasks {
		counts[t.Status]++
	}
	parts := make([]string, 0, len(counts))
	for _, status := range taskgraph.ValidStatuses() {
		if n := counts[status]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, status))
		}
	}
	return strings.Join(parts, ", ")
}
