package cli

import (
	"fmt"
	"log/slog"

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

var (
	actorFlag   string
	verboseFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "tledger",
	Short: "Task lifecycle and progress ledger",
	Long: `tledger tracks who owns a task, where it is in its lifecycle, and every
progress report made against it.

Tasks move UNCLAIMED -> CLAIMED -> IN_PROGRESS -> DONE, with PAUSED and
BLOCKED as holding states off IN_PROGRESS. Claims are race-safe: when two
actors claim the same task at once, exactly one wins.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verboseFlag && LogLevel != nil {
			LogLevel.Set(slog.LevelDebug)
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "tledger %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&actorFlag, "actor", "", "Actor id performing the operation (defaults to the configured actor)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug logging")
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
