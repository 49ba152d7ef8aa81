package main

import (
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zulandar/workyard/internal/api"
	"github.com/zulandar/workyard/internal/insights"
	"github.com/zulandar/workyard/internal/notify"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the capacity digest",
		Long: `Serves the JSON API, streams transition events on /api/events and,
when notify.digest_schedule is set, posts the org capacity digest to chat.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			broker := api.NewBroker()
			a, err := openApp(cmd, configPath, broker)
			if err != nil {
				return err
			}
			defer a.close()
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			digest := notify.NewDigest(a.capacity.ForOrg, a.notifier, a.log)
			if err := digest.Start(ctx, a.cfg.Notify.DigestSchedule); err != nil {
				return err
			}
			defer digest.Stop()

			advisor, err := insights.New(a.cfg.Insights, a.capacity.ForOrg, a.log)
			switch {
			case errors.Is(err, insights.ErrNotConfigured):
				a.log.Info("insights disabled: no api key")
			case err != nil:
				return err
			}

			a.log.Info("serve: starting",
				zap.Int("port", a.cfg.Server.Port),
				zap.Strings("sinks", a.notifier.Sinks()),
				zap.String("digest_schedule", a.cfg.Notify.DigestSchedule))
			return api.Start(ctx, api.StartOpts{
				Deps: api.Deps{
					DB:       a.db,
					Weights:  a.weights,
					Capacity: a.capacity,
					Machine:  a.machine,
					Advisor:  advisor,
					Events:   broker,
					Log:      a.log,
				},
				Port: a.cfg.Server.Port,
				Out:  cmd.OutOrStdout(),
			})
		},
	}
	addConfigFlag(cmd, &configPath)
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (default from config, 8080)")
	return cmd
}
