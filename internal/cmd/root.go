package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/crew/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "crew",
	Short: "Multi-agent team coordinator",
	Long: `Crew coordinates teams of AI coding agents over a shared filesystem
root: a team registry, per-agent inboxes, and a task graph. Agents run
in tmux panes; non-native backends are bridged in through an inbox
watcher and a reduced MCP tool surface.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/crew/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Defaults first so they apply even without a config file.
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/crew")
		viper.AddConfigPath(".")
	}

	// CREW_ROOT, CREW_BACKENDS, CREW_TMUX_WINDOWS, and friends.
	config.BindEnv()

	// Missing config file is fine; env and defaults carry it.
	_ = viper.ReadInConfig()
}
