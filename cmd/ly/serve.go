package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/labyard/internal/api"
	"github.com/zulandar/labyard/internal/expiry"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the storage expiry scheduler",
		Long: `Starts the HTTP API. The storage expiry sweep runs on its cron schedule in
the same process unless sweep.enabled is false. Stops on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides server.port)")
	return cmd
}

func runServe(cmd *cobra.Command, port int) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if a.cfg.Server.JWTSecret == "" {
		return fmt.Errorf("server.jwt_secret (or LY_JWT_SECRET) is required to serve the API")
	}
	if port <= 0 {
		port = a.cfg.Server.Port
	}

	if a.cfg.SweepEnabled() {
		sweeper, err := expiry.New(expiry.Opts{
			DB:        a.db,
			Notifier:  a.dispatcher.Sync(),
			Logger:    a.log,
			Lookahead: a.cfg.Lookahead(),
			Cron:      a.cfg.Sweep.Cron,
		})
		if err != nil {
			return err
		}
		stopSweep := sweeper.Start(ctx)
		defer stopSweep()
		a.log.Info("expiry sweep scheduled", zap.String("cron", a.cfg.Sweep.Cron), zap.Duration("next_in", sweeper.Next()))
	}

	return api.Start(ctx, api.StartOpts{
		DB:       a.db,
		Services: a.services,
		Secret:   a.cfg.Server.JWTSecret,
		Logger:   a.log,
		Port:     port,
		Out:      cmd.OutOrStdout(),
	})
}

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run the storage expiry sweep once",
		Long:  "Finds occupied storage expiring within sweep.lookahead_days and notifies each requester once.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd.Context(), cmd)
		},
	}
}

func runSweep(ctx context.Context, cmd *cobra.Command) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	sweeper, err := expiry.New(expiry.Opts{
		DB:        a.db,
		Notifier:  a.dispatcher.Sync(),
		Logger:    a.log,
		Lookahead: a.cfg.Lookahead(),
		Cron:      a.cfg.Sweep.Cron,
	})
	if err != nil {
		return err
	}
	res, err := sweeper.Sweep(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Expiring: %d  Requesters: %d  Notified: %d  Failed: %d\n",
		res.Expiring, res.Requesters, res.Notified, res.Failed)
	return nil
}
