package handlers

import (
	"log/slog"

	"github.com/edgard/tgcollector/internal/auth"
	"github.com/edgard/tgcollector/internal/collector"
	"github.com/edgard/tgcollector/internal/config"
	"github.com/edgard/tgcollector/internal/database"
	"github.com/edgard/tgcollector/internal/groupsync"
	"github.com/edgard/tgcollector/internal/summarizer"
)

// HandlerDeps provides dependencies for operator bot command handlers.
// Summarizer is nil when no Gemini API key is configured.
type HandlerDeps struct {
	Logger     *slog.Logger
	Config     *config.Config
	Store      database.Store
	Auth       *auth.Machine
	Runner     *collector.Runner
	GroupSync  *groupsync.Engine
	Summarizer *summarizer.Service
}
