// Package cli holds the replydesk cobra commands.
package cli

import (
	"fmt"
	"os"

	"replydesk/internal/config"

	"github.com/spf13/cobra"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

var configPath string

var rootCmd = &cobra.Command{
	Use:   "replydesk",
	Short: "Review and send AI-drafted replies to customer email",
	Long: `replydesk runs the triage workflow for customer support mail: an API server
that claims, delivers and archives messages, and a terminal console where an
operator reviews, edits, regenerates and sends the AI-drafted replies.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "replydesk %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("REPLYDESK_CONFIG"), "config file (default ./replydesk.yaml or ~/.config/replydesk/replydesk.yaml)")
	rootCmd.AddCommand(versionCmd)
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
