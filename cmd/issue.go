package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"civicfix/internal/bootstrap"
	"civicfix/internal/bootstrap/logging"
	"civicfix/internal/domain/timeline"
	"civicfix/internal/errs"
	"civicfix/internal/ports"
	"civicfix/internal/usecase/lifecycle"
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Drive issue lifecycle transitions",
}

var issueSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Report a new issue",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		category, _ := cmd.Flags().GetString("category")
		description, _ := cmd.Flags().GetString("description")
		reporter, _ := cmd.Flags().GetString("reporter")
		images, _ := cmd.Flags().GetStringSlice("image")

		input := lifecycle.SubmitInput{
			ReporterID:  optionalString(reporter),
			Category:    category,
			Description: description,
			ImageURLs:   images,
		}
		if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lon") {
			lat, _ := cmd.Flags().GetFloat64("lat")
			lon, _ := cmd.Flags().GetFloat64("lon")
			input.Location = &ports.Location{Latitude: lat, Longitude: lon}
		}

		result, err := app.Orchestrator.Submit(issueContext(cmd, 0), input)
		if err != nil {
			return errs.Wrap(err, "submit issue")
		}
		if err := app.Orchestrator.Drain(cmd.Context()); err != nil {
			return err
		}
		return printIssue(cmd, app, result.Issue.IssueID, result.Events)
	}),
}

var issueVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Run the initial AI verification of an issue",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		issueID, _ := cmd.Flags().GetUint64("issue")
		result, err := app.Orchestrator.RunInitialVerification(issueContext(cmd, issueID), issueID)
		if err != nil {
			return errs.Wrap(err, "run initial verification")
		}
		return printResult(cmd, result)
	}),
}

var issueAssignCmd = &cobra.Command{
	Use:   "assign",
	Short: "Assign an issue to a government team and start work",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		issueID, _ := cmd.Flags().GetUint64("issue")
		actor, actorID, expected := actorFlags(cmd)
		note, _ := cmd.Flags().GetString("note")
		result, err := app.Orchestrator.Assign(issueContext(cmd, issueID), lifecycle.AssignInput{
			IssueID: issueID, Actor: actor, ActorID: actorID, Note: note, ExpectedVersion: expected,
		})
		if err != nil {
			return errs.Wrap(err, "assign issue")
		}
		return printResult(cmd, result)
	}),
}

var issueCompleteCmd = &cobra.Command{
	Use:   "complete",
	Short: "Mark work as completed with government evidence",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		issueID, _ := cmd.Flags().GetUint64("issue")
		actor, actorID, expected := actorFlags(cmd)
		note, _ := cmd.Flags().GetString("note")
		images, _ := cmd.Flags().GetStringSlice("image")
		result, err := app.Orchestrator.CompleteWork(issueContext(cmd, issueID), lifecycle.CompleteWorkInput{
			IssueID: issueID, Actor: actor, ActorID: actorID, Note: note, ImageURLs: images, ExpectedVersion: expected,
		})
		if err != nil {
			return errs.Wrap(err, "complete work")
		}
		if err := app.Orchestrator.Drain(cmd.Context()); err != nil {
			return err
		}
		return printIssue(cmd, app, issueID, result.Events)
	}),
}

var issueCrossCheckCmd = &cobra.Command{
	Use:   "cross-check",
	Short: "Compare citizen and government evidence with the AI service",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		issueID, _ := cmd.Flags().GetUint64("issue")
		result, err := app.Orchestrator.RunCrossCheck(issueContext(cmd, issueID), issueID)
		if err != nil {
			return errs.Wrap(err, "run cross-check")
		}
		return printResult(cmd, result)
	}),
}

var issueConfirmCmd = &cobra.Command{
	Use:   "confirm",
	Short: "Record the citizen's confirmation of the resolution",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		return citizenResponse(cmd, app, app.Orchestrator.Confirm)
	}),
}

var issueDisputeCmd = &cobra.Command{
	Use:   "dispute",
	Short: "Record the citizen's dispute of the resolution",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		return citizenResponse(cmd, app, app.Orchestrator.Dispute)
	}),
}

var issueCommentCmd = &cobra.Command{
	Use:   "comment",
	Short: "Record a comment on the timeline",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		issueID, _ := cmd.Flags().GetUint64("issue")
		actor, actorID, _ := actorFlags(cmd)
		body, _ := cmd.Flags().GetString("body")
		commentID, _ := cmd.Flags().GetString("comment-id")
		result, err := app.Orchestrator.Comment(issueContext(cmd, issueID), lifecycle.CommentInput{
			IssueID: issueID, Actor: actor, ActorID: actorID, Body: body, CommentID: commentID,
		})
		if err != nil {
			return errs.Wrap(err, "add comment")
		}
		return printResult(cmd, result)
	}),
}

var issueOverrideCmd = &cobra.Command{
	Use:   "override",
	Short: "Set the workflow status directly",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		issueID, _ := cmd.Flags().GetUint64("issue")
		actor, actorID, expected := actorFlags(cmd)
		status, _ := cmd.Flags().GetString("status")
		reason, _ := cmd.Flags().GetString("reason")
		result, err := app.Orchestrator.Override(issueContext(cmd, issueID), lifecycle.OverrideInput{
			IssueID: issueID, Actor: actor, ActorID: actorID, NewStatus: status, Reason: reason, ExpectedVersion: expected,
		})
		if err != nil {
			return errs.Wrap(err, "override status")
		}
		return printResult(cmd, result)
	}),
}

var issueEscalateCmd = &cobra.Command{
	Use:   "escalate",
	Short: "Escalate one issue, or every overdue issue with --overdue",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		if overdue, _ := cmd.Flags().GetBool("overdue"); overdue {
			count, err := app.Orchestrator.EscalateOverdue(issueContext(cmd, 0))
			if err != nil {
				return errs.Wrap(err, "escalate overdue issues")
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "escalated %d overdue issue(s)\n", count)
			return err
		}

		issueID, _ := cmd.Flags().GetUint64("issue")
		actor, actorID, expected := actorFlags(cmd)
		reason, _ := cmd.Flags().GetString("reason")
		result, err := app.Orchestrator.Escalate(issueContext(cmd, issueID), lifecycle.EscalateInput{
			IssueID: issueID, Actor: actor, ActorID: actorID, Reason: reason, ExpectedVersion: expected,
		})
		if err != nil {
			return errs.Wrap(err, "escalate issue")
		}
		return printResult(cmd, result)
	}),
}

var issueUpvoteCmd = &cobra.Command{
	Use:   "upvote",
	Short: "Add one upvote to an issue",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		issueID, _ := cmd.Flags().GetUint64("issue")
		count, err := app.Orchestrator.Upvote(issueContext(cmd, issueID), issueID)
		if err != nil {
			return errs.Wrap(err, "upvote issue")
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "issue=%d upvotes=%d\n", issueID, count)
		return err
	}),
}

var issueShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print an issue's lifecycle state and check it against its timeline",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		issueID, _ := cmd.Flags().GetUint64("issue")
		if err := printIssue(cmd, app, issueID, nil); err != nil {
			return err
		}
		if err := app.Orchestrator.VerifyConsistency(issueContext(cmd, issueID), issueID); err != nil {
			return errs.Wrap(err, "check timeline consistency")
		}
		_, err := fmt.Fprintln(cmd.OutOrStdout(), "timeline consistent")
		return err
	}),
}

type citizenTransition func(ctx context.Context, input lifecycle.CitizenResponseInput) (lifecycle.TransitionResult, error)

func citizenResponse(cmd *cobra.Command, app *bootstrap.App, apply citizenTransition) error {
	issueID, _ := cmd.Flags().GetUint64("issue")
	actor, actorID, expected := actorFlags(cmd)
	reason, _ := cmd.Flags().GetString("reason")
	result, err := apply(issueContext(cmd, issueID), lifecycle.CitizenResponseInput{
		IssueID: issueID, Actor: actor, ActorID: actorID, Reason: reason, ExpectedVersion: expected,
	})
	if err != nil {
		return errs.Wrapf(err, "%s issue", cmd.Name())
	}
	return printResult(cmd, result)
}

func issueContext(cmd *cobra.Command, issueID uint64) context.Context {
	return logging.WithRequest(
		logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath())),
		"", issueID,
	)
}

func actorFlags(cmd *cobra.Command) (timeline.ActorType, *string, *int64) {
	rawActor, _ := cmd.Flags().GetString("actor")
	actor, err := timeline.ParseActorType(rawActor)
	if err != nil {
		actor = timeline.ActorType(strings.ToUpper(strings.TrimSpace(rawActor)))
	}
	actorID, _ := cmd.Flags().GetString("actor-id")

	var expected *int64
	if cmd.Flags().Changed("expected-version") {
		version, _ := cmd.Flags().GetInt64("expected-version")
		expected = &version
	}
	return actor, optionalString(actorID), expected
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func printResult(cmd *cobra.Command, result lifecycle.TransitionResult) error {
	out := cmd.OutOrStdout()
	if err := writeIssueLine(out, result.Issue); err != nil {
		return err
	}
	return writeEvents(out, result.Events)
}

// printIssue reloads the issue so follow-up steps that ran after the
// transition show up in the printed state.
func printIssue(cmd *cobra.Command, app *bootstrap.App, issueID uint64, events []timeline.Event) error {
	issue, err := app.Orchestrator.GetIssue(issueContext(cmd, issueID), issueID)
	if err != nil {
		return errs.Wrap(err, "load issue")
	}
	out := cmd.OutOrStdout()
	if err := writeIssueLine(out, issue); err != nil {
		return err
	}
	return writeEvents(out, events)
}

func writeIssueLine(out io.Writer, issue ports.Issue) error {
	s := issue.Lifecycle
	_, err := fmt.Fprintf(out, "issue=%d status=%s ai=%s citizen=%s cross=%s escalation=%s version=%d\n",
		issue.IssueID, s.Status, s.AIStatus, s.CitizenStatus, s.CrossStatus, s.Escalation, s.Version)
	return errs.Wrap(err, "write issue")
}

func writeEvents(out io.Writer, events []timeline.Event) error {
	for _, event := range events {
		if _, err := fmt.Fprintf(out, "  #%d %s %s %s\n", event.ID, event.Type, event.ActorType, event.Description); err != nil {
			return errs.Wrap(err, "write event")
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(issueCmd)
	issueCmd.AddCommand(
		issueSubmitCmd, issueVerifyCmd, issueAssignCmd, issueCompleteCmd, issueCrossCheckCmd,
		issueConfirmCmd, issueDisputeCmd, issueCommentCmd, issueOverrideCmd, issueEscalateCmd,
		issueUpvoteCmd, issueShowCmd,
	)

	issueSubmitCmd.Flags().String("category", "", "Issue category")
	issueSubmitCmd.Flags().String("description", "", "Issue description")
	issueSubmitCmd.Flags().String("reporter", "", "Reporting citizen id")
	issueSubmitCmd.Flags().Float64("lat", 0, "Latitude")
	issueSubmitCmd.Flags().Float64("lon", 0, "Longitude")
	issueSubmitCmd.Flags().StringSlice("image", nil, "Citizen image URL or media key (repeatable)")
	_ = issueSubmitCmd.MarkFlagRequired("category")

	for _, c := range []*cobra.Command{
		issueVerifyCmd, issueAssignCmd, issueCompleteCmd, issueCrossCheckCmd, issueConfirmCmd,
		issueDisputeCmd, issueCommentCmd, issueOverrideCmd, issueEscalateCmd, issueUpvoteCmd, issueShowCmd,
	} {
		c.Flags().Uint64("issue", 0, "Issue id")
	}
	for _, c := range []*cobra.Command{issueVerifyCmd, issueAssignCmd, issueCompleteCmd, issueCrossCheckCmd, issueUpvoteCmd, issueShowCmd} {
		_ = c.MarkFlagRequired("issue")
	}

	actorDefaults := map[*cobra.Command]string{
		issueAssignCmd:   string(timeline.ActorGovernment),
		issueCompleteCmd: string(timeline.ActorGovernment),
		issueConfirmCmd:  string(timeline.ActorCitizen),
		issueDisputeCmd:  string(timeline.ActorCitizen),
		issueCommentCmd:  string(timeline.ActorCitizen),
		issueOverrideCmd: string(timeline.ActorGovernment),
		issueEscalateCmd: string(timeline.ActorGovernment),
	}
	for c, actor := range actorDefaults {
		c.Flags().String("actor", actor, "Actor type: CITIZEN, GOVERNMENT or SYSTEM")
		c.Flags().String("actor-id", "", "Actor id")
		c.Flags().Int64("expected-version", 0, "Reject the transition unless the issue is at this version")
	}

	issueAssignCmd.Flags().String("note", "", "Assignment note")
	issueCompleteCmd.Flags().String("note", "", "Completion note")
	issueCompleteCmd.Flags().StringSlice("image", nil, "Government image URL or media key (repeatable)")
	issueConfirmCmd.Flags().String("reason", "", "Optional remark")
	issueDisputeCmd.Flags().String("reason", "", "Why the resolution is disputed")
	issueCommentCmd.Flags().String("body", "", "Comment text")
	issueCommentCmd.Flags().String("comment-id", "", "Id of the stored comment")
	_ = issueCommentCmd.MarkFlagRequired("body")
	issueOverrideCmd.Flags().String("status", "", "New status: REPORTED, IN_PROGRESS or RESOLVED")
	issueOverrideCmd.Flags().String("reason", "", "Reason for the override")
	_ = issueOverrideCmd.MarkFlagRequired("status")
	issueEscalateCmd.Flags().String("reason", "", "Reason for the escalation")
	issueEscalateCmd.Flags().Bool("overdue", false, "Escalate every issue past the resolution deadline")
}
