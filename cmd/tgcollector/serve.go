package main

import (
	"context"
	"errors"
	"fmt"

	tgbot "github.com/go-telegram/bot"
	"github.com/spf13/cobra"

	"github.com/edgard/tgcollector/internal/bot"
	"github.com/edgard/tgcollector/internal/bot/handlers"
	"github.com/edgard/tgcollector/internal/bot/tasks"
	"github.com/edgard/tgcollector/internal/logger"
	"github.com/edgard/tgcollector/internal/telegram"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var noBot bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and the operator bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), flags, noBot)
		},
	}
	cmd.Flags().BoolVar(&noBot, "no-bot", false, "run scheduled tasks without the operator bot")
	return cmd
}

func runServe(ctx context.Context, flags *rootFlags, noBot bool) error {
	a, err := newApp(ctx, flags)
	if err != nil {
		return err
	}
	defer a.close()
	log := a.log

	var tg *tgbot.Bot
	if !noBot {
		if err := a.cfg.RequireOperatorBot(); err != nil {
			return err
		}

		hDeps := handlers.HandlerDeps{
			Logger:     log,
			Config:     a.cfg,
			Store:      a.store,
			Auth:       a.auth,
			Runner:     a.runner,
			GroupSync:  a.groupSync,
			Summarizer: a.summarizer,
		}
		tg, err = telegram.NewTelegramBot(a.cfg.Telegram.BotToken, log, tgbot.WithMiddlewares(logger.Middleware(log)))
		if err != nil {
			return err
		}

		a.cfg.Telegram.BotInfo, err = tg.GetMe(ctx)
		if err != nil {
			return fmt.Errorf("failed to get bot info: %w", err)
		}
		log.Info("Retrieved bot info", "bot_id", a.cfg.Telegram.BotInfo.ID, "bot_username", a.cfg.Telegram.BotInfo.Username)

		if err := telegram.RegisterHandlers(tg, log, handlers.RegisterAllCommands(hDeps)); err != nil {
			return err
		}
	}

	tDeps := tasks.TaskDeps{
		Logger:     log,
		Store:      a.store,
		Runner:     a.runner,
		Summarizer: a.summarizer,
		Config:     a.cfg,
	}
	sched, err := bot.NewScheduler(log, &a.cfg.Scheduler, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		return err
	}

	log.Info("Starting tgcollector...")
	runErr := bot.NewBot(log, tg, sched).Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	log.Info("tgcollector stopped gracefully.")
	return nil
}
