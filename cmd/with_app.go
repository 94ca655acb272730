package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"civicfix/internal/bootstrap"
	"civicfix/internal/bootstrap/logging"
	"civicfix/internal/errs"
)

const (
	defaultStartTimeout = 90 * time.Second
	defaultStopTimeout  = 15 * time.Second
)

func withApp(run func(cmd *cobra.Command, app *bootstrap.App) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := logging.WithAttrs(
			cmd.Context(),
			slog.String("command", cmd.CommandPath()),
			slog.String("config_file", cfgFile),
		)

		var app *bootstrap.App
		fxApp := fx.New(
			bootstrap.Module,
			fx.Provide(func() context.Context { return ctx }),
			fx.Provide(
				fx.Annotate(
					func() string { return cfgFile },
					fx.ResultTags(`name:"configFile"`),
				),
			),
			fx.Populate(&app),
			fx.StartTimeout(defaultStartTimeout),
		)
		if err := fxApp.Err(); err != nil {
			logging.Error(ctx, "build application graph failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "build fx application")
		}

		startTimeout := app.Config.Bootstrap.StartTimeout
		if startTimeout <= 0 {
			startTimeout = defaultStartTimeout
		}
		startCtx, cancelStart := context.WithTimeout(ctx, startTimeout)
		defer cancelStart()
		if err := fxApp.Start(startCtx); err != nil {
			logging.Error(ctx, "bootstrap application failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "start fx application")
		}

		defer func() {
			stopCtx, cancelStop := context.WithTimeout(context.Background(), defaultStopTimeout)
			defer cancelStop()
			if err := fxApp.Stop(stopCtx); err != nil {
				logging.Error(ctx, "fx application stop failed", slog.Any("err", errs.Loggable(err)))
			}
		}()

		logger := logging.NewLogger(cmd.ErrOrStderr(), app.Config.Log.Level, app.Config.Log.Format)
		cmd.SetContext(logging.WithLogger(cmd.Context(), logger))

		if err := run(cmd, app); err != nil {
			return errs.Wrap(err, "run command")
		}
		return nil
	}
}
