package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"civicfix/internal/bootstrap"
	"civicfix/internal/errs"
	"civicfix/internal/ports"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe external dependencies and print their state",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		report := app.Supervisor.Health(cmd.Context())

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return errs.Wrap(encoder.Encode(report), "encode health report")
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DEPENDENCY\tSTATE\tLATENCY\tERROR")
		degraded := false
		for _, dep := range report {
			if dep.State == ports.HealthDegraded {
				degraded = true
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", dep.Name, dep.State, dep.Latency.Round(time.Millisecond), dep.Error)
		}
		if err := w.Flush(); err != nil {
			return errs.Wrap(err, "write health report")
		}

		version, err := app.SchemaVersionInstalled(cmd.Context())
		if err != nil {
			return err
		}
		if version == "" {
			version = "none (run init-db)"
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "schema_version=%s\n", version); err != nil {
			return errs.Wrap(err, "write schema version")
		}

		if strict, _ := cmd.Flags().GetBool("strict"); strict && degraded {
			return errors.New("one or more dependencies are degraded")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(healthCmd)
	healthCmd.Flags().Bool("json", false, "Print the report as JSON")
	healthCmd.Flags().Bool("strict", false, "Exit non-zero when a dependency is degraded")
}
