// Package tasks implements the scheduled jobs of tgcollector.
package tasks

import (
	"log/slog"

	"github.com/edgard/tgcollector/internal/collector"
	"github.com/edgard/tgcollector/internal/config"
	"github.com/edgard/tgcollector/internal/database"
	"github.com/edgard/tgcollector/internal/summarizer"
)

// TaskDeps contains the dependencies of scheduled tasks. Summarizer is nil
// when no Gemini API key is configured.
type TaskDeps struct {
	Logger     *slog.Logger
	Store      database.Store
	Runner     *collector.Runner
	Summarizer *summarizer.Service
	Config     *config.Config
}
