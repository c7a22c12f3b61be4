package cmd

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/crew/internal/util"
)

var (
	tasksTeam  string
	tasksMatch string
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List a team's tasks",
	RunE:  runTasks,
}

func init() {
	tasksCmd.Flags().StringVar(&tasksTeam, "team", "", "team whose tasks to list (required)")
	tasksCmd.Flags().StringVar(&tasksMatch, "match", "", "only show tasks whose title matches this glob")
	_ = tasksCmd.MarkFlagRequired("team")
	rootCmd.AddCommand(tasksCmd)
}

func runTasks(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	var matcher glob.Glob
	if tasksMatch != "" {
		matcher, err = glob.Compile(tasksMatch)
		if err != nil {
			return fmt.Errorf("invalid --match pattern: %w", err)
		}
	}

	tasks, err := app.tasks.List(tasksTeam)
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}

	shown := 0
	for _, t := range tasks {
		if matcher != nil && !matcher.Match(t.Title) {
			continue
		}
		owner := t.Owner
		if owner == "" {
			owner = "-"
		}
		line := fmt.Sprintf("#%-4d %-12s %-16s %s", t.ID, t.Status, owner, util.TruncateString(t.Title, 60))
		if len(t.Dependencies) > 0 {
			deps := make([]string, len(t.Dependencies))
			for i, d := range t.Dependencies {
				deps[i] = fmt.Sprintf("#%d", d)
			}
			line += dimStyle.Render("  after " + strings.Join(deps, ", "))
		}
		fmt.Println(line)
		shown++
	}
	if shown == 0 {
		fmt.Println("No tasks")
	}
	return nil
}
