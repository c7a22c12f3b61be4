package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/crew/internal/server"
)

var externalCmd = &cobra.Command{
	Use:   "external",
	Short: "Run the external-agent MCP server on stdio",
	Long: `Serve the reduced tool surface bridged agents connect to:
send_message plus the task tools. Bridged agents cannot spawn or kill
teammates; the lead server keeps that authority.`,
	RunE: runExternal,
}

func init() {
	rootCmd.AddCommand(externalCmd)
}

func runExternal(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	srv := server.NewExternal(server.Deps{
		Registry: app.registry,
		Mail:     app.mail,
		Tasks:    app.tasks,
		Tmux:     app.tm,
		Log:      app.log,
	})

	app.log.Info("external server starting", "root", app.root)
	return srv.ServeStdio()
}
