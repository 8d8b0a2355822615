// Package session keeps the serialized platform session of each account
// together with its login lifecycle timestamps.
package session

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/edgard/tgcollector/internal/database"
	"github.com/edgard/tgcollector/internal/errs"
	"github.com/edgard/tgcollector/internal/logger"
	"github.com/edgard/tgcollector/internal/platform"
)

var (
	// ErrAccountNotFound is returned when the account id is unknown.
	ErrAccountNotFound = errs.New(errs.CodeValidation, "account not found")
	// ErrNotAuthenticated is returned by operations that need a signed-in session.
	ErrNotAuthenticated = errs.New(errs.CodeAuthentication, "account not authenticated")
)

// Session is the authentication state of one account as last persisted.
type Session struct {
	AccountID   int64
	Phone       string
	Credentials platform.Credentials
	// Blob is the opaque serialized session, nil when none exists.
	Blob []byte
	// Active is set once the blob has been validated by a sign-in.
	Active bool
	// LastCodeRequest is zero when no login code was ever requested.
	LastCodeRequest time.Time
}

// HasBlob reports whether a serialized session exists.
func (s *Session) HasBlob() bool {
	return len(s.Blob) > 0
}

// RequireBlob fails with ErrNotAuthenticated when there is no session to resume.
func (s *Session) RequireBlob() error {
	if !s.HasBlob() {
		return fmt.Errorf("%w: account %d has no session", ErrNotAuthenticated, s.AccountID)
	}
	return nil
}

// Store reads and writes sessions through the database store.
type Store struct {
	db     database.Store
	logger *slog.Logger
}

// NewStore creates a session store.
func NewStore(db database.Store, log *slog.Logger) *Store {
	if log == nil {
		log = logger.Discard()
	}
	return &Store{db: db, logger: log.With("component", "session_store")}
}

// Load re-reads the session of an account.
func (s *Store) Load(ctx context.Context, accountID int64) (*Session, error) {
	acc, err := s.db.GetAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if acc == nil {
		return nil, fmt.Errorf("%w: %d", ErrAccountNotFound, accountID)
	}

	sess := &Session{
		AccountID:   acc.ID,
		Phone:       acc.PhoneNumber,
		Credentials: platform.Credentials{AppID: acc.AppID, AppHash: acc.AppHash},
		Blob:        acc.SessionBlob,
		Active:      acc.IsActive,
	}
	if acc.LastCodeRequest.Valid {
		sess.LastCodeRequest = acc.LastCodeRequest.Time.UTC()
	}
	return sess, nil
}

// SavePending stores the session a login code was issued on. The platform
// binds the pending code to this exact session, so it is saved before the
// login completes. The account stays inactive until SaveAuthenticated.
func (s *Store) SavePending(ctx context.Context, accountID int64, blob []byte, requestedAt time.Time) error {
	if len(blob) == 0 {
		return errs.NewValidationError("pending session is empty", nil)
	}
	if err := s.db.SavePendingSession(ctx, accountID, blob, requestedAt); err != nil {
		return fmt.Errorf("save pending session: %w", err)
	}
	s.logger.InfoContext(ctx, "Pending session saved", "account_id", accountID)
	return nil
}

// SaveAuthenticated stores a signed-in session and activates the account.
func (s *Store) SaveAuthenticated(ctx context.Context, accountID int64, blob []byte) error {
	if err := s.db.SaveAuthenticatedSession(ctx, accountID, blob); err != nil {
		return fmt.Errorf("save authenticated session: %w", err)
	}
	s.logger.InfoContext(ctx, "Account authenticated", "account_id", accountID)
	return nil
}

// Refresh persists a session updated during a run, if it changed.
func (s *Store) Refresh(ctx context.Context, sess *Session, blob []byte) error {
	if len(blob) == 0 || bytes.Equal(blob, sess.Blob) {
		return nil
	}
	if err := s.db.UpdateSessionBlob(ctx, sess.AccountID, blob); err != nil {
		return fmt.Errorf("refresh session: %w", err)
	}
	sess.Blob = blob
	s.logger.DebugContext(ctx, "Session refreshed", "account_id", sess.AccountID)
	return nil
}

// Clear drops the session and deactivates the account.
func (s *Store) Clear(ctx context.Context, accountID int64) error {
	if err := s.db.ClearAccountSession(ctx, accountID); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	s.logger.InfoContext(ctx, "Session cleared", "account_id", accountID)
	return nil
}

// SetPhone changes the phone number future logins use.
func (s *Store) SetPhone(ctx context.Context, accountID int64, phone string) error {
	if err := s.db.UpdateAccountPhone(ctx, accountID, phone); err != nil {
		return fmt.Errorf("set phone: %w", err)
	}
	return nil
}
