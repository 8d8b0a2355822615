// Package collector pulls messages from tracked groups into the store.
//
// The Engine runs one collection for an (account, group) pair: resolve the
// group, fetch a batch, then dedup, classify and insert each message. The
// Runner is the caller used by the scheduler and the operator surfaces; it
// fans runs out across accounts and owns the association watermark.
package collector

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/edgard/tgcollector/internal/classify"
	"github.com/edgard/tgcollector/internal/config"
	"github.com/edgard/tgcollector/internal/database"
	"github.com/edgard/tgcollector/internal/errs"
	"github.com/edgard/tgcollector/internal/logger"
	"github.com/edgard/tgcollector/internal/platform"
	"github.com/edgard/tgcollector/internal/resolver"
	"github.com/edgard/tgcollector/internal/session"
)

// ErrAccountNotAuthenticated aborts a run whose account has no signed-in session.
var ErrAccountNotAuthenticated = session.ErrNotAuthenticated

// UnknownSender is stored when a message reports no sender at all.
const UnknownSender = "Unknown"

// Mode selects the fetch order of a run.
type Mode int

const (
	// ModeIncremental fetches the most recent messages, newest first.
	ModeIncremental Mode = iota
	// ModeHistorical fetches the oldest messages first, for backfill.
	ModeHistorical
)

func (m Mode) String() string {
	if m == ModeHistorical {
		return "historical"
	}
	return "incremental"
}

// Result summarizes one run.
type Result struct {
	RunID    string
	Fetched  int
	Inserted int
	Existing int
	Skipped  int
	Failed   int
}

// Engine runs collections. It keeps no state between runs.
type Engine struct {
	db        database.Store
	sessions  *session.Store
	connector platform.Connector
	resolver  *resolver.Resolver
	cfg       config.CollectorConfig
	logger    *slog.Logger
}

// NewEngine creates a collection engine.
func NewEngine(
	db database.Store,
	sessions *session.Store,
	connector platform.Connector,
	res *resolver.Resolver,
	cfg config.CollectorConfig,
	log *slog.Logger,
) *Engine {
	if log == nil {
		log = logger.Discard()
	}
	return &Engine{
		db:        db,
		sessions:  sessions,
		connector: connector,
		resolver:  res,
		cfg:       cfg,
		logger:    log.With("component", "collector"),
	}
}

// CollectIncremental stores new messages among the latest limit messages of
// the group. limit <= 0 uses the configured default.
func (e *Engine) CollectIncremental(ctx context.Context, accountID, groupID int64, limit int) (Result, error) {
	if limit <= 0 {
		limit = e.cfg.Limit
	}
	return e.collect(ctx, accountID, groupID, limit, ModeIncremental)
}

// SyncHistorical stores up to limit of the group's oldest messages.
// limit <= 0 uses the configured history limit.
func (e *Engine) SyncHistorical(ctx context.Context, accountID, groupID int64, limit int) (Result, error) {
	if limit <= 0 {
		limit = e.cfg.HistoryLimit
	}
	return e.collect(ctx, accountID, groupID, limit, ModeHistorical)
}

// Collect dispatches on mode.
func (e *Engine) Collect(ctx context.Context, accountID, groupID int64, limit int, mode Mode) (Result, error) {
	if mode == ModeHistorical {
		return e.SyncHistorical(ctx, accountID, groupID, limit)
	}
	return e.CollectIncremental(ctx, accountID, groupID, limit)
}

func (e *Engine) collect(ctx context.Context, accountID, groupID int64, limit int, mode Mode) (Result, error) {
	res := Result{RunID: uuid.NewString()}
	log := e.logger.With("run_id", res.RunID, "account_id", accountID, "group_id", groupID, "mode", mode.String())

	sess, err := e.sessions.Load(ctx, accountID)
	if err != nil {
		return res, err
	}
	if err := sess.RequireBlob(); err != nil {
		return res, err
	}
	group, err := e.db.GetGroup(ctx, groupID)
	if err != nil {
		return res, err
	}
	if group == nil {
		return res, errs.NewValidationError(fmt.Sprintf("group %d not found", groupID), nil)
	}

	log.InfoContext(ctx, "Starting collection", "platform_group_id", group.GroupID, "limit", limit)

	var batch Result
	blob, err := e.connector.Run(ctx, sess.Credentials, sess.Blob, func(ctx context.Context, c platform.Client) error {
		authorized, err := c.IsAuthorized(ctx)
		if err != nil {
			return errs.NewTransientError("check authorization", err)
		}
		if !authorized {
			return ErrAccountNotAuthenticated
		}

		entity, err := e.resolver.ResolveID(ctx, c, group.GroupID)
		if err != nil {
			return err
		}

		raws, err := c.ListMessages(ctx, entity, limit, mode == ModeHistorical)
		if err != nil {
			return errs.NewTransientError("fetch messages", err)
		}

		batch, err = e.storeBatch(ctx, c, group, raws, log)
		return err
	})
	if blob != nil {
		if refreshErr := e.sessions.Refresh(ctx, sess, blob); refreshErr != nil {
			log.WarnContext(ctx, "Failed to persist refreshed session", "error", refreshErr)
		}
	}
	batch.RunID = res.RunID

	if err != nil {
		if blob == nil {
			err = errs.NewTransientError("connect", err)
		}
		log.WarnContext(ctx, "Collection failed", "error", err, "code", errs.Code(err), "inserted", batch.Inserted)
		return batch, err
	}

	log.InfoContext(ctx, "Collection finished",
		"fetched", batch.Fetched,
		"inserted", batch.Inserted,
		"existing", batch.Existing,
		"skipped", batch.Skipped,
		"failed", batch.Failed,
	)
	return batch, nil
}

// storeBatch processes one fetched batch. Per-message failures are logged
// and counted; only cancellation stops the loop early.
func (e *Engine) storeBatch(
	ctx context.Context,
	c platform.Client,
	group *database.Group,
	raws []*platform.RawMessage,
	log *slog.Logger,
) (Result, error) {
	res := Result{Fetched: len(raws)}
	senders := &senderResolver{
		client:  c,
		limiter: rate.NewLimiter(lookupLimit(e.cfg.SenderLookupsPerSecond), 1),
		cache:   make(map[int64]*platform.User),
		logger:  log,
	}

	for _, raw := range raws {
		if err := ctx.Err(); err != nil {
			return res, errs.NewTransientError("collection interrupted", err)
		}

		out, err := e.storeOne(ctx, senders, group, raw)
		switch {
		case err != nil:
			res.Failed++
			msgID := int64(0)
			if raw != nil {
				msgID = raw.ID
			}
			log.ErrorContext(ctx, "Failed to store message", "message_id", msgID, "error", err)
		case out == outcomeInserted:
			res.Inserted++
		case out == outcomeExisting:
			res.Existing++
		default:
			res.Skipped++
		}
	}
	return res, nil
}

func lookupLimit(perSecond float64) rate.Limit {
	if perSecond <= 0 {
		return rate.Inf
	}
	return rate.Limit(perSecond)
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeExisting
	outcomeInserted
)

func (e *Engine) storeOne(
	ctx context.Context,
	senders *senderResolver,
	group *database.Group,
	raw *platform.RawMessage,
) (out outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed message: %v", r)
		}
	}()

	kind, text, ok := classify.Classify(raw)
	if !ok {
		return outcomeSkipped, nil
	}

	existing, err := e.db.FindMessage(ctx, group.ID, raw.ID)
	if err != nil {
		return outcomeSkipped, err
	}
	if existing != nil {
		// Only a missing sender handle is filled in; the processed flag and
		// content of stored rows are never touched.
		if existing.SenderUsername == "" && raw.Sender != nil && raw.Sender.Username != "" {
			if err := e.db.UpdateMessageSenderUsername(ctx, existing.ID, raw.Sender.Username); err != nil {
				return outcomeExisting, err
			}
		}
		return outcomeExisting, nil
	}

	name, username := senders.resolve(ctx, raw)
	msg := &database.Message{
		GroupID:        group.ID,
		MessageID:      raw.ID,
		SenderID:       raw.SenderID,
		SenderName:     name,
		SenderUsername: username,
		Kind:           string(kind),
		Text:           text,
		Date:           raw.Date,
	}
	if err := e.db.InsertMessage(ctx, msg); err != nil {
		return outcomeSkipped, err
	}
	return outcomeInserted, nil
}

// senderResolver applies the sender name fallback chain for one batch.
// Profiles are looked up at most once per sender and rate limited.
type senderResolver struct {
	client  platform.Client
	limiter *rate.Limiter
	cache   map[int64]*platform.User
	logger  *slog.Logger
}

// resolve returns the display name and handle of the sender of raw:
// first and last name, else username, else "Unknown" without a sender id,
// else User<id>.
func (s *senderResolver) resolve(ctx context.Context, raw *platform.RawMessage) (name, username string) {
	if raw.SenderID == 0 && raw.Sender == nil {
		return UnknownSender, ""
	}

	id := raw.SenderID
	profile := raw.Sender
	if profile != nil && id == 0 {
		id = profile.ID
	}
	if profile == nil {
		profile = s.lookup(ctx, id)
	}

	if profile != nil {
		name = profile.DisplayName()
		if name == "" {
			name = profile.Username
		}
		username = profile.Username
	}
	if name == "" {
		if id == 0 {
			return UnknownSender, username
		}
		name = "User" + strconv.FormatInt(id, 10)
	}
	return name, username
}

func (s *senderResolver) lookup(ctx context.Context, id int64) *platform.User {
	if u, ok := s.cache[id]; ok {
		return u
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil
	}
	u, err := s.client.LookupUser(ctx, id)
	if err != nil {
		s.logger.DebugContext(ctx, "Sender lookup failed", "sender_id", id, "error", err)
		u = nil
	}
	s.cache[id] = u
	return u
}
