package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"civicfix/internal/bootstrap"
	"civicfix/internal/errs"
)

var timelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Read the issue timeline ledger",
}

var timelineListCmd = &cobra.Command{
	Use:   "list",
	Short: "List an issue's timeline events in order",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		issueID, _ := cmd.Flags().GetUint64("issue")
		ctx := issueContext(cmd, issueID)

		events, err := app.Orchestrator.ListTimeline(ctx, issueID)
		if err != nil {
			return errs.Wrap(err, "list timeline")
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return errs.Wrap(encoder.Encode(events), "encode timeline")
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCREATED_AT\tEVENT\tACTOR\tDESCRIPTION")
		for _, event := range events {
			actor := string(event.ActorType)
			if event.ActorID != nil {
				actor += ":" + *event.ActorID
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", event.ID, event.CreatedAt.UTC().Format(time.RFC3339), event.Type, actor, event.Description)
		}
		if err := w.Flush(); err != nil {
			return errs.Wrap(err, "write timeline")
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "total=%d\n", len(events))
		return err
	}),
}

func init() {
	rootCmd.AddCommand(timelineCmd)
	timelineCmd.AddCommand(timelineListCmd)
	timelineListCmd.Flags().Uint64("issue", 0, "Issue id")
	timelineListCmd.Flags().Bool("json", false, "Print events as JSON")
	_ = timelineListCmd.MarkFlagRequired("issue")
}
