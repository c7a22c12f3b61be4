package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/crew/internal/taskgraph"
	"github.com/Iron-Ham/crew/internal/team"
	"github.com/Iron-Ham/crew/internal/util"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Live read-only view of teams, inboxes, and tasks",
	RunE:  runDashboard,
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}

func runDashboard(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	model := newDashboardModel(app)
	_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
}

// tickMsg drives the poll cycle.
type tickMsg time.Time

// snapshotMsg carries one refresh of the filesystem state.
type snapshotMsg struct {
	teams  []*team.Team
	unread map[string]int
	tasks  map[string][]*taskgraph.Task
	err    error
}

type dashboardModel struct {
	app      *app
	interval time.Duration

	table  table.Model
	teams  []*team.Team
	unread map[string]int
	tasks  map[string][]*taskgraph.Task
	err    error
}

func newDashboardModel(a *app) dashboardModel {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Team", Width: 14},
			{Title: "ID", Width: 5},
			{Title: "Status", Width: 12},
			{Title: "Owner", Width: 14},
			{Title: "Title", Width: 40},
		}),
		table.WithHeight(14),
		table.WithFocused(true),
	)
	return dashboardModel{
		app:      a,
		interval: a.cfg.PollInterval(),
		table:    t,
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(m.snapshot, m.tick())
}

func (m dashboardModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// snapshot reads the filesystem state. Runs off the UI goroutine.
func (m dashboardModel) snapshot() tea.Msg {
	teams, err := m.app.registry.List()
	if err != nil {
		return snapshotMsg{err: err}
	}

	unread := make(map[string]int)
	tasks := make(map[string][]*taskgraph.Task)
	for _, t := range teams {
		for _, member := range t.Members {
			if n, err := m.app.mail.UnreadCount(t.Name, member.Name); err == nil && n > 0 {
				unread[t.Name+"/"+member.Name] = n
			}
		}
		if list, err := m.app.tasks.List(t.Name); err == nil {
			tasks[t.Name] = list
		}
	}
	return snapshotMsg{teams: teams, unread: unread, tasks: tasks}
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tickMsg:
		return m, tea.Batch(m.snapshot, m.tick())
	case snapshotMsg:
		m.teams = msg.teams
		m.unread = msg.unread
		m.tasks = msg.tasks
		m.err = msg.err
		m.table.SetRows(m.taskRows())
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m dashboardModel) taskRows() []table.Row {
	names := make([]string, 0, len(m.tasks))
	for name := range m.tasks {
		names = append(names, name)
	}
	sort.Strings(names)

	var rows []table.Row
	for _, name := range names {
		for _, t := range m.tasks[name] {
			rows = append(rows, table.Row{
				name,
				fmt.Sprintf("%d", t.ID),
				string(t.Status),
				t.Owner,
				util.TruncateString(t.Title, 40),
			})
		}
	}
	return rows
}

func (m dashboardModel) View() string {
	var sb strings.Builder

	sb.WriteString(headerStyle.Render("crew dashboard"))
	sb.WriteString(dimStyle.Render("  " + m.app.root))
	sb.WriteString("\n\n")

	if m.err != nil {
		sb.WriteString(errStyle.Render("error: " + m.err.Error()))
		sb.WriteString("\n\n")
	}

	if len(m.teams) == 0 {
		sb.WriteString("No teams\n")
	}
	for _, t := range m.teams {
		sb.WriteString(headerStyle.Render(fmt.Sprintf("%s (%s)", t.Name, t.Status)))
		sb.WriteString("\n")
		for _, member := range t.Members {
			line := fmt.Sprintf("  %s %-16s %-20s", colorDot(member.Color), member.Name, member.State)
			if n := m.unread[t.Name+"/"+member.Name]; n > 0 {
				line += errStyle.Render(fmt.Sprintf(" %d unread", n))
			}
			sb.WriteString(util.TruncateANSI(line, 100))
			sb.WriteString("\n")
		}
	}
	sb.WriteString("\n")

	sb.WriteString(m.table.View())
	sb.WriteString("\n")
	sb.WriteString(dimStyle.Render("q to quit"))
	sb.WriteString("\n")

	return lipgloss.NewStyle().Padding(0, 1).Render(sb.String())
}
