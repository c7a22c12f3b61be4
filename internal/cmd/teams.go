package cmd

import (
	"fmt"

	"github.com/gobwas/glob"
	"github.com/spf13/cobra"
)

var teamsMatch string

var teamsCmd = &cobra.Command{
	Use:   "teams",
	Short: "List teams",
	RunE:  runTeams,
}

func init() {
	teamsCmd.Flags().StringVar(&teamsMatch, "match", "", "only show teams whose name matches this glob")
	rootCmd.AddCommand(teamsCmd)
}

func runTeams(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	var matcher glob.Glob
	if teamsMatch != "" {
		matcher, err = glob.Compile(teamsMatch)
		if err != nil {
			return fmt.Errorf("invalid --match pattern: %w", err)
		}
	}

	teams, err := app.registry.List()
	if err != nil {
		return fmt.Errorf("failed to list teams: %w", err)
	}

	shown := 0
	for _, t := range teams {
		if matcher != nil && !matcher.Match(t.Name) {
			continue
		}
		fmt.Printf("%-24s %-10s %d members\n", t.Name, t.Status, len(t.Members))
		shown++
	}
	if shown == 0 {
		fmt.Println("No teams")
	}
	return nil
}
