package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edgard/ion/internal/bot"
	"github.com/edgard/ion/internal/bot/tasks"
	"github.com/edgard/ion/internal/database"
	"github.com/edgard/ion/internal/dispatch"
	"github.com/edgard/ion/internal/gemini"
	"github.com/edgard/ion/internal/modules"
	"github.com/edgard/ion/internal/notify"
	"github.com/edgard/ion/internal/pattern"
	"github.com/edgard/ion/internal/telegram"
)

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Log in and dispatch commands until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd.Context())
		},
	}
}

// run wires every component and blocks until ctx is cancelled.
func (a *app) run(ctx context.Context) error {
	cfg, log := a.cfg, a.log
	log.Info("Initializing ion", "version", Version)

	db, err := database.Open(ctx, cfg.Database.Path, log)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return err
	}
	defer database.Close(db, log)
	store := database.NewStore(db, log)

	sessions, closeSessions, err := openSessionProvider(cfg, store)
	if err != nil {
		log.Error("Failed to open session store", "backend", cfg.Session.Backend, "error", err)
		return err
	}
	defer closeSessions()

	modDeps := modules.Deps{Logger: log, Version: Version}
	if cfg.Gemini.APIKey != "" {
		gemClient, err := gemini.NewClient(ctx, cfg.Gemini, log)
		if err != nil {
			log.Error("Failed to initialize Gemini client", "error", err)
			return err
		}
		modDeps.Gemini = gemClient
	} else {
		log.Info("Gemini API key not set, ask module disabled")
	}

	client := telegram.New(telegram.Options{
		ServerURL:   cfg.Telegram.ServerURL,
		PollTimeout: cfg.Telegram.PollTimeout,
		Logger:      log,
	})
	adapter := notify.NewAdapter(log)

	ctrl, err := bot.NewController(bot.Options{
		Logger:   log,
		Sessions: sessions,
		Client:   client,
		Loader:   dispatch.NewLoader(pattern.New(cfg.Dispatch.Prefixes...), log),
		Modules:  modules.All(modDeps),
		Retry:    cfg.Telegram.Retry.Policy(),
		Notifier: adapter,
		Recorder: store,
	})
	if err != nil {
		return err
	}

	taskMap := tasks.RegisterAllTasks(tasks.TaskDeps{
		Logger:   log,
		Status:   ctrl,
		Notifier: adapter,
		Store:    store,
	})
	sched, err := bot.NewScheduler(log, &cfg.Scheduler, taskMap)
	if err != nil {
		return err
	}

	var services []bot.Service
	if cfg.Control.Enabled {
		services = append(services, notify.NewServer(cfg.Control.Addr, adapter, ctrl, log))
	}

	runErr := bot.NewRunner(log, ctrl, client, sched, services...).Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("bot stopped: %w", runErr)
	}

	log.Info("Bot stopped gracefully.")
	return nil
}
