package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/zulandar/workyard/internal/capacity"
	"github.com/zulandar/workyard/internal/config"
	"github.com/zulandar/workyard/internal/conversion"
	"github.com/zulandar/workyard/internal/db"
	"github.com/zulandar/workyard/internal/governance"
	"github.com/zulandar/workyard/internal/logging"
	"github.com/zulandar/workyard/internal/notify"
	"github.com/zulandar/workyard/internal/notify/discord"
	"github.com/zulandar/workyard/internal/notify/slack"
	"github.com/zulandar/workyard/internal/weights"
)

const defaultConfigPath = "workyard.yaml"

func addConfigFlag(cmd *cobra.Command, path *string) {
	cmd.Flags().StringVarP(path, "config", "c", defaultConfigPath, "path to Workyard config file")
}

// app holds the services one command invocation works with.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	db       *gorm.DB
	weights  *weights.Store
	capacity *capacity.Service
	notifier *notify.Notifier
	machine  *governance.Machine
}

// openApp loads config and wires the store, services and chat sinks. Extra
// sinks are published to alongside the configured chat platforms.
func openApp(cmd *cobra.Command, configPath string, extra ...notify.Sink) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logging.NewWithWriter(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	gdb, err := db.Open(cfg.Database)
	if err != nil {
		return nil, err
	}

	sinks, err := chatSinks(cfg.Notify)
	if err != nil {
		return nil, err
	}
	sinks = append(sinks, extra...)

	a := &app{cfg: cfg, log: log, db: gdb}
	a.weights = weights.NewStore(gdb, weights.WithLogger(log))
	a.capacity = capacity.NewService(gdb, a.weights, capacity.Options{
		AvailableHours: cfg.Capacity.AvailableHours,
		ActiveStatuses: cfg.Capacity.ActiveStatuses,
	}, log)
	a.notifier = notify.New(log, sinks...)
	conv := conversion.New(gdb, conversion.WithLogger(log), conversion.WithRecomputer(a.capacity))
	a.machine = governance.NewMachine(gdb, conv,
		governance.WithLogger(log),
		governance.WithPublisher(a.notifier))
	return a, nil
}

func chatSinks(cfg config.NotifyConfig) ([]notify.Sink, error) {
	var sinks []notify.Sink
	if cfg.Slack.Enabled() {
		s, err := slack.New(slack.Opts{BotToken: cfg.Slack.BotToken, ChannelID: cfg.Slack.ChannelID})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	if cfg.Discord.Enabled() {
		s, err := discord.New(discord.Opts{BotToken: cfg.Discord.BotToken, ChannelID: cfg.Discord.ChannelID})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}

func (a *app) close() {
	a.log.Sync()
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
}
