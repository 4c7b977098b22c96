package cli

import (
	"github.com/spf13/cobra"
)

var version = "dev"

func SetVersion(v string) {
	version = v
}

var configFile string

var rootCmd = &cobra.Command{
	Use:   "adwd",
	Short: "adwd is an AI developer workflow daemon",
	Long: `adwd reacts to GitHub webhook events by driving a coding-agent CLI
through plan, implement, and review cycles, and manages the resulting
branches, pull requests, merges, and issue comments.

Configuration is read from ./adwd.yaml or ~/.adwd/config.yaml; workflow
events are logged to SQLite at ~/.adwd/adwd.db.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to config file")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(dbCmd)
}
