package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/crew/internal/backend"
	"github.com/Iron-Ham/crew/internal/lifecycle"
	"github.com/Iron-Ham/crew/internal/server"
	"github.com/Iron-Ham/crew/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the lead MCP server on stdio",
	Long: `Serve the full crew tool surface over MCP on stdin/stdout. This is
the server a team lead connects to: team lifecycle, teammate spawning,
messaging, and the task graph.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	overrides, err := backend.LoadFile(app.cfg.ResolveBackendsFile())
	if err != nil {
		return fmt.Errorf("failed to load backends file: %w", err)
	}
	backends, err := backend.NewRegistry(app.cfg.EnabledBackends(), overrides)
	if err != nil {
		return fmt.Errorf("failed to build backend registry: %w", err)
	}

	watchers := watcher.NewManager(app.root, app.mail, app.tm, app.cfg.PollInterval(), app.log)
	defer watchers.StopAll()

	coord := lifecycle.NewCoordinator(
		app.registry, app.mail, app.tasks, app.tm, watchers, backends,
		lifecycle.Options{
			TmuxWindows:     app.cfg.TmuxWindows,
			SkipPermissions: app.cfg.SkipPermissions,
		},
		app.log,
	)

	srv := server.NewLead(server.Deps{
		Registry: app.registry,
		Mail:     app.mail,
		Tasks:    app.tasks,
		Coord:    coord,
		Tmux:     app.tm,
		Watchers: watchers,
		Backends: backends,
		Log:      app.log,
	})

	app.log.Info("lead server starting", "root", app.root, "backends", app.cfg.EnabledBackends())
	return srv.ServeStdio()
}
