package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	alertsJSON   bool
	alertsNotify bool
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Show tasks that need attention",
	Long: `Replay the event log and report tasks that need attention.

Alerts fire for tasks blocked or paused too long, claimed tasks with no
recent activity, and an unclaimed backlog above the configured limit.
With --notify, triggered alerts are also posted to the configured Slack
webhook.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if AlertEngine == nil {
			return fmt.Errorf("alert engine not initialized (events may be disabled)")
		}

		alerts, err := AlertEngine.Evaluate()
		if err != nil {
			return fmt.Errorf("evaluating alerts: %w", err)
		}

		if alertsNotify && len(alerts) > 0 {
			if Notifier == nil {
				return fmt.Errorf("--notify requires alerts.slack_webhook_url to be configured")
			}
			if err := Notifier.Notify(cmdContext(cmd), alerts); err != nil {
				return fmt.Errorf("sending alert notification: %w", err)
			}
		}

		out := cmd.OutOrStdout()
		if alertsJSON {
			return writeJSON(out, alerts)
		}

		if len(alerts) == 0 {
			fmt.Fprintln(out, "No active alerts.")
			return nil
		}

		fmt.Fprintf(out, "%d active alert(s):\n\n", len(alerts))
		for _, alert := range alerts {
			severity := strings.ToUpper(string(alert.Severity))
			fmt.Fprintf(out, "  [%s] %s\n", severity, alert.Message)
			fmt.Fprintf(out, "         triggered at %s\n\n", alert.TriggeredAt.Format("2006-01-02 15:04 UTC"))
		}

		return nil
	},
}

func init() {
	alertsCmd.Flags().BoolVar(&alertsJSON, "json", false, "Output alerts as JSON")
	alertsCmd.Flags().BoolVar(&alertsNotify, "notify", false, "Post triggered alerts to the Slack webhook")
	rootCmd.AddCommand(alertsCmd)
}
