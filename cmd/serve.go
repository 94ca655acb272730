package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"civicfix/internal/bootstrap"
	"civicfix/internal/bootstrap/logging"
	"civicfix/internal/errs"
	"civicfix/internal/infrastructure/realtime"
	"civicfix/internal/transport/httpapi"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the realtime socket, health, metrics and verification callbacks",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx = logging.WithAttrs(ctx, slog.String("command", cmd.CommandPath()))

		if migrate, _ := cmd.Flags().GetBool("migrate"); migrate {
			if err := app.InitSchema(ctx); err != nil {
				return errs.Wrap(err, "initialize schema")
			}
		}

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = app.Config.Server.Addr
		}
		cfg := app.Config.Server

		server := &http.Server{
			Addr: addr,
			Handler: httpapi.NewRouter(ctx, httpapi.Deps{
				Lifecycle:      app.Orchestrator,
				Health:         app.Supervisor,
				Gatherer:       app.Registry,
				Realtime:       realtime.NewHandler(app.Hub, cfg.AllowedOrigins),
				CallbackAPIKey: app.Config.Verification.APIKey,
			}),
			ReadHeaderTimeout: cfg.ReadTimeout,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return app.Supervisor.Run(gctx, app.Config.Bootstrap.HealthInterval)
		})
		g.Go(func() error {
			return app.Orchestrator.RunEscalationSweep(gctx, app.Config.Lifecycle.EscalationSweepInterval)
		})
		g.Go(func() error {
			logging.Info(ctx, "http server listening", slog.String("addr", addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errs.Wrap(err, "listen and serve")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
			defer cancel()
			logging.Info(ctx, "http server shutting down")
			if err := server.Shutdown(shutdownCtx); err != nil {
				return errs.Wrap(err, "shutdown http server")
			}
			return nil
		})

		if err := g.Wait(); err != nil {
			return err
		}
		logging.Info(ctx, "serve stopped")
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (defaults to server.addr)")
	serveCmd.Flags().Bool("migrate", true, "Run schema migration before serving")
}
