// Package summarizer writes periodic summaries of collected group messages.
package summarizer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/edgard/tgcollector/internal/config"
	"github.com/edgard/tgcollector/internal/database"
	"github.com/edgard/tgcollector/internal/errs"
	"github.com/edgard/tgcollector/internal/logger"
)

const (
	lineTimeLayout = "2006-01-02 15:04:05"
	dateLayout     = "2006-01-02"
)

// Service summarizes unprocessed messages and prunes old summaries.
type Service struct {
	db        database.Store
	generator Generator
	cfg       config.SummariesConfig
	clock     clockwork.Clock
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the clock that sets the summary window and retention cutoff.
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// NewService creates a summarization service.
func NewService(db database.Store, generator Generator, cfg config.SummariesConfig, log *slog.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.Discard()
	}
	s := &Service{
		db:        db,
		generator: generator,
		cfg:       cfg,
		clock:     clockwork.NewRealClock(),
		logger:    log.With("component", "summarizer"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SummarizeGroup summarizes the unprocessed messages of group dated in
// [start, end), stores the summary and marks the messages processed.
// Returns nil, nil when there is nothing to summarize.
func (s *Service) SummarizeGroup(ctx context.Context, group *database.Group, start, end time.Time) (*database.Summary, error) {
	if !start.Before(end) {
		return nil, errs.NewValidationError("summary window start must be before its end", nil)
	}

	messages, err := s.db.GetUnprocessedMessages(ctx, group.ID, start, end)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	if len(messages) == 0 {
		s.logger.DebugContext(ctx, "No unprocessed messages", "group_id", group.ID)
		return nil, nil
	}

	prompt := BuildPrompt(group.Name, start, end, messages)
	content, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate summary for group %d: %w", group.ID, err)
	}

	summary := &database.Summary{
		GroupID:   group.ID,
		StartDate: start,
		EndDate:   end,
		Content:   strings.TrimSpace(content),
	}
	if err := s.db.SaveSummary(ctx, summary); err != nil {
		return nil, fmt.Errorf("save summary: %w", err)
	}

	ids := make([]int64, len(messages))
	for i, m := range messages {
		ids[i] = m.ID
	}
	if err := s.db.MarkMessagesAsProcessed(ctx, ids); err != nil {
		return summary, fmt.Errorf("mark messages processed: %w", err)
	}

	s.logger.InfoContext(ctx, "Summary generated",
		"group_id", group.ID, "group", group.Name, "messages", len(messages), "summary_id", summary.ID)
	return summary, nil
}

// SummarizeRecent summarizes a group over the last window ending now.
func (s *Service) SummarizeRecent(ctx context.Context, group *database.Group, window time.Duration) (*database.Summary, error) {
	if window <= 0 {
		window = s.cfg.Window
	}
	end := s.clock.Now().UTC()
	return s.SummarizeGroup(ctx, group, end.Add(-window), end)
}

// SummarizeAll summarizes every group with an active association over the
// configured window and returns the number of summaries written. A failing
// group is logged and does not stop the others.
func (s *Service) SummarizeAll(ctx context.Context) (int, error) {
	groups, err := s.db.ListSummarizableGroups(ctx)
	if err != nil {
		return 0, fmt.Errorf("list groups: %w", err)
	}

	written, failed := 0, 0
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		summary, err := s.SummarizeRecent(ctx, g, s.cfg.Window)
		if err != nil {
			failed++
			s.logger.ErrorContext(ctx, "Failed to summarize group", "group_id", g.ID, "group", g.Name, "error", err)
			continue
		}
		if summary != nil {
			written++
		}
	}

	s.logger.InfoContext(ctx, "Summary pass finished", "groups", len(groups), "written", written, "failed", failed)
	return written, nil
}

// CleanupOldSummaries deletes summaries older than the retention period.
func (s *Service) CleanupOldSummaries(ctx context.Context) (int64, error) {
	cutoff := s.clock.Now().Add(-s.cfg.Retention)
	n, err := s.db.DeleteSummariesBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old summaries: %w", err)
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "Old summaries deleted", "count", n, "retention", s.cfg.Retention)
	}
	return n, nil
}

// FormatMessage renders one message as "[YYYY-MM-DD HH:MM:SS] sender: text".
func FormatMessage(m *database.Message) string {
	return fmt.Sprintf("[%s] %s: %s", m.Date.UTC().Format(lineTimeLayout), m.SenderName, m.Text)
}

// BuildPrompt formats messages into the summary prompt.
func BuildPrompt(groupName string, start, end time.Time, messages []*database.Message) string {
	lines := make([]string, len(messages))
	for i, m := range messages {
		lines[i] = FormatMessage(m)
	}
	return fmt.Sprintf(SummaryPrompt, groupName, start.Format(dateLayout), end.Format(dateLayout), strings.Join(lines, "\n"))
}
