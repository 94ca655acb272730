package cmd

import (
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"civicfix/internal/bootstrap"
	"civicfix/internal/bootstrap/logging"
	"civicfix/internal/errs"
	"civicfix/internal/usecase/timelineconsole"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Terminal console commands",
}

var consoleTimelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Follow the timeline ledger live",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		issueID, _ := cmd.Flags().GetUint64("issue")
		fromStart, _ := cmd.Flags().GetBool("from-start")
		refreshInterval, _ := cmd.Flags().GetDuration("refresh-interval")
		if refreshInterval <= 0 {
			refreshInterval = 2 * time.Second
		}

		model := timelineconsole.NewTimelineModel(ctx, app.Timeline, timelineconsole.Options{
			IssueID:         issueID,
			RefreshInterval: refreshInterval,
			FromStart:       fromStart,
		})

		program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := program.Run(); err != nil {
			return errs.Wrap(err, "run timeline console")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(consoleCmd)
	consoleCmd.AddCommand(consoleTimelineCmd)
	consoleTimelineCmd.Flags().Uint64("issue", 0, "Only follow this issue")
	consoleTimelineCmd.Flags().Bool("from-start", false, "Replay the ledger from the first event")
	consoleTimelineCmd.Flags().Duration("refresh-interval", 2*time.Second, "Poll interval")
}
