// Package groupsync reconciles the chats an account belongs to with the
// stored groups and associations.
package groupsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/edgard/tgcollector/internal/database"
	"github.com/edgard/tgcollector/internal/errs"
	"github.com/edgard/tgcollector/internal/logger"
	"github.com/edgard/tgcollector/internal/platform"
	"github.com/edgard/tgcollector/internal/session"
)

// ErrInviteLink is returned for private invite links, which can't be resolved by handle.
var ErrInviteLink = errs.New(errs.CodeValidation, "private invite links are not supported")

var linkPrefixes = []string{"https://t.me/", "http://t.me/", "t.me/", "https://telegram.me/", "telegram.me/"}

// Result summarizes one sync.
type Result struct {
	GroupsAdded       int
	ChatsSeen         int
	AssociationsAdded int
}

// Engine runs group syncs and joins.
type Engine struct {
	db        database.Store
	sessions  *session.Store
	connector platform.Connector
	logger    *slog.Logger
}

// NewEngine creates a group sync engine.
func NewEngine(db database.Store, sessions *session.Store, connector platform.Connector, log *slog.Logger) *Engine {
	if log == nil {
		log = logger.Discard()
	}
	return &Engine{
		db:        db,
		sessions:  sessions,
		connector: connector,
		logger:    log.With("component", "group_sync"),
	}
}

// SyncAccountGroups stores every group and channel in the account's dialog
// list and links it to the account. Known groups are refreshed in place.
// Associations an operator deactivated stay inactive.
func (e *Engine) SyncAccountGroups(ctx context.Context, accountID int64) (Result, error) {
	var res Result
	var chats []*platform.Entity
	err := e.withClient(ctx, accountID, func(ctx context.Context, c platform.Client) error {
		dialogs, err := c.ListDialogs(ctx)
		if err != nil {
			return errs.NewTransientError("list dialogs", err)
		}
		for _, d := range dialogs {
			if d != nil && d.Entity != nil && d.Entity.IsGroupLike() {
				chats = append(chats, d.Entity)
			}
		}
		return nil
	})
	if err != nil {
		return res, err
	}

	res.ChatsSeen = len(chats)
	for _, chat := range chats {
		group, created, err := e.store(ctx, chat)
		if err != nil {
			return res, err
		}
		if created {
			res.GroupsAdded++
		}
		linked, err := e.db.UpsertAssociation(ctx, accountID, group.ID, false)
		if err != nil {
			return res, fmt.Errorf("link group %d: %w", group.GroupID, err)
		}
		if linked {
			res.AssociationsAdded++
		}
	}

	e.logger.InfoContext(ctx, "Group sync finished",
		"account_id", accountID,
		"chats_seen", res.ChatsSeen,
		"groups_added", res.GroupsAdded,
		"associations_added", res.AssociationsAdded,
	)
	return res, nil
}

// JoinGroup joins a public group by handle or t.me link and tracks it for
// the account. The association is activated even if it existed before.
func (e *Engine) JoinGroup(ctx context.Context, accountID int64, handleOrLink string) (*database.Group, error) {
	username, err := NormalizeHandle(handleOrLink)
	if err != nil {
		return nil, err
	}

	var entity *platform.Entity
	err = e.withClient(ctx, accountID, func(ctx context.Context, c platform.Client) error {
		entity, err = c.ResolveUsername(ctx, username)
		if err != nil {
			return errs.NewEntityResolutionError("resolve @"+username, err)
		}
		if entity == nil {
			return errs.NewEntityResolutionError("resolve @"+username, errors.New("client returned no entity"))
		}
		if !entity.IsGroupLike() {
			return errs.NewValidationError("@"+username+" is not a group or channel", nil)
		}
		if entity.Kind == platform.EntityChannel {
			if err := c.JoinChannel(ctx, entity); err != nil {
				return fmt.Errorf("join @%s: %w", username, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	group, _, err := e.store(ctx, entity)
	if err != nil {
		return nil, err
	}
	if _, err := e.db.UpsertAssociation(ctx, accountID, group.ID, true); err != nil {
		return nil, fmt.Errorf("link group %d: %w", group.GroupID, err)
	}

	e.logger.InfoContext(ctx, "Joined group", "account_id", accountID, "group_id", group.GroupID, "username", username)
	return group, nil
}

// NormalizeHandle reduces "@name", "t.me/name" and "https://t.me/name" to "name".
func NormalizeHandle(s string) (string, error) {
	h := strings.TrimSpace(s)
	for _, p := range linkPrefixes {
		if len(h) >= len(p) && strings.EqualFold(h[:len(p)], p) {
			h = h[len(p):]
			break
		}
	}
	if strings.HasPrefix(h, "+") || strings.HasPrefix(h, "joinchat/") {
		return "", ErrInviteLink
	}
	h = strings.TrimPrefix(h, "@")
	if i := strings.IndexAny(h, "/?#"); i >= 0 {
		h = h[:i]
	}
	if h == "" {
		return "", errs.NewValidationError(fmt.Sprintf("empty group handle %q", s), nil)
	}
	return h, nil
}

func (e *Engine) store(ctx context.Context, entity *platform.Entity) (*database.Group, bool, error) {
	group := &database.Group{
		GroupID:  entity.MarkedID(),
		Name:     entity.Title,
		Username: entity.Username,
	}
	created, err := e.db.UpsertGroup(ctx, group)
	if err != nil {
		return nil, false, fmt.Errorf("store group %d: %w", group.GroupID, err)
	}
	return group, created, nil
}

// withClient loads the account session and runs fn on a signed-in client.
func (e *Engine) withClient(ctx context.Context, accountID int64, fn func(ctx context.Context, c platform.Client) error) error {
	sess, err := e.sessions.Load(ctx, accountID)
	if err != nil {
		return err
	}
	if err := sess.RequireBlob(); err != nil {
		return err
	}

	blob, err := e.connector.Run(ctx, sess.Credentials, sess.Blob, func(ctx context.Context, c platform.Client) error {
		authorized, err := c.IsAuthorized(ctx)
		if err != nil {
			return errs.NewTransientError("check authorization", err)
		}
		if !authorized {
			return fmt.Errorf("%w: account %d", session.ErrNotAuthenticated, accountID)
		}
		return fn(ctx, c)
	})
	if blob != nil {
		if refreshErr := e.sessions.Refresh(ctx, sess, blob); refreshErr != nil {
			e.logger.WarnContext(ctx, "Failed to persist refreshed session", "account_id", accountID, "error", refreshErr)
		}
	}
	if err != nil && blob == nil {
		return errs.NewTransientError("connect", err)
	}
	return err
}
