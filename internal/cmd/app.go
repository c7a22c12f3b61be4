package cmd

import (
	"fmt"

	"github.com/Iron-Ham/crew/internal/config"
	"github.com/Iron-Ham/crew/internal/logging"
	"github.com/Iron-Ham/crew/internal/mailbox"
	"github.com/Iron-Ham/crew/internal/taskgraph"
	"github.com/Iron-Ham/crew/internal/team"
	"github.com/Iron-Ham/crew/internal/tmux"
)

// app bundles the configured stores every subcommand needs.
type app struct {
	cfg      *config.Config
	root     string
	log      *logging.Logger
	registry *team.Registry
	mail     *mailbox.Store
	tasks    *taskgraph.Store
	tm       *tmux.Client
}

func buildApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	root := cfg.ResolveRoot()

	log := logging.Nop()
	if cfg.Logging.Enabled {
		log, err = logging.New(root, cfg.LogLevel, logging.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			Compress:   cfg.Logging.Compress,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
	}

	registry := team.NewRegistry(root, cfg.LockTimeout(), log)
	mail := mailbox.NewStore(registry, cfg.LockTimeout(), log)
	tasks := taskgraph.NewStore(registry, mail, cfg.LockTimeout(), log)

	return &app{
		cfg:      cfg,
		root:     root,
		log:      log,
		registry: registry,
		mail:     mail,
		tasks:    tasks,
		tm:       tmux.NewClient(),
	}, nil
}

func (a *app) Close() {
	_ = a.log.Close()
}
