package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jmoiron/sqlx"

	"github.com/edgard/tgcollector/internal/auth"
	"github.com/edgard/tgcollector/internal/collector"
	"github.com/edgard/tgcollector/internal/config"
	"github.com/edgard/tgcollector/internal/database"
	"github.com/edgard/tgcollector/internal/groupsync"
	"github.com/edgard/tgcollector/internal/logger"
	"github.com/edgard/tgcollector/internal/platform/gotd"
	"github.com/edgard/tgcollector/internal/resolver"
	"github.com/edgard/tgcollector/internal/session"
	"github.com/edgard/tgcollector/internal/summarizer"
)

// app holds the wired components shared by every subcommand.
type app struct {
	cfg        *config.Config
	log        *slog.Logger
	db         *sqlx.DB
	store      database.Store
	auth       *auth.Machine
	runner     *collector.Runner
	groupSync  *groupsync.Engine
	summarizer *summarizer.Service
}

// newApp loads configuration, opens the database (applying migrations) and
// builds the collection components. The summarizer is nil without a Gemini key.
func newApp(ctx context.Context, flags *rootFlags) (*app, error) {
	cfg, err := config.LoadConfig(flags.configPath)
	if err != nil {
		return nil, err
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	log.Debug("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.Database.Path, err)
	}
	store := database.NewStore(db, log)

	sessions := session.NewStore(store, log)
	connector := gotd.NewConnector(log)
	engine := collector.NewEngine(store, sessions, connector, resolver.New(log), cfg.Collector, log)

	a := &app{
		cfg:       cfg,
		log:       log,
		db:        db,
		store:     store,
		auth:      auth.NewMachine(sessions, connector, log),
		runner:    collector.NewRunner(store, engine, cfg.Collector, log),
		groupSync: groupsync.NewEngine(store, sessions, connector, log),
	}

	if cfg.Gemini.APIKey != "" {
		gen, err := summarizer.NewGeminiClient(ctx, cfg.Gemini, log)
		if err != nil {
			a.close()
			return nil, err
		}
		a.summarizer = summarizer.NewService(store, gen, cfg.Summaries, log)
	} else {
		log.Info("Gemini API key not set, summaries disabled")
	}
	return a, nil
}

func (a *app) close() {
	database.CloseDB(a.db)
}

func parseID(kind, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", kind, s)
	}
	return id, nil
}
