package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/edgard/tgcollector/internal/errs"
)

// ErrNotFound is returned by update operations whose target row does not exist.
// Getters return nil, nil instead.
var ErrNotFound = errs.New(errs.CodeDatabase, "record not found")

// Store defines the interface for database operations.
// Methods accept context.Context for cancellation and timeouts. All times
// are stored in UTC.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error

	// CreateAccount registers a new account. The phone number must be unique.
	CreateAccount(ctx context.Context, account *Account) error

	// GetAccount retrieves an account by ID. Returns nil, nil if not found.
	GetAccount(ctx context.Context, id int64) (*Account, error)

	// ListAccounts returns all accounts ordered by ID.
	ListAccounts(ctx context.Context) ([]*Account, error)

	// UpdateAccountPhone changes the phone number used for login.
	UpdateAccountPhone(ctx context.Context, accountID int64, phone string) error

	// SavePendingSession stores the intermediate session of an unfinished login
	// and the time the code was requested. The account becomes inactive.
	SavePendingSession(ctx context.Context, accountID int64, blob []byte, requestedAt time.Time) error

	// SaveAuthenticatedSession stores a validated session and activates the account.
	SaveAuthenticatedSession(ctx context.Context, accountID int64, blob []byte) error

	// UpdateSessionBlob refreshes the stored session without touching the active flag.
	UpdateSessionBlob(ctx context.Context, accountID int64, blob []byte) error

	// ClearAccountSession drops the session and deactivates the account.
	ClearAccountSession(ctx context.Context, accountID int64) error

	// UpsertGroup inserts or refreshes a group keyed on its platform id and
	// reports whether a new row was created. group.ID is set on return.
	UpsertGroup(ctx context.Context, group *Group) (bool, error)

	// GetGroup retrieves a group by row ID. Returns nil, nil if not found.
	GetGroup(ctx context.Context, id int64) (*Group, error)

	// GetGroupByPlatformID retrieves a group by platform id. Returns nil, nil if not found.
	GetGroupByPlatformID(ctx context.Context, groupID int64) (*Group, error)

	// ListSummarizableGroups returns active groups with at least one active
	// association on an active account.
	ListSummarizableGroups(ctx context.Context) ([]*Group, error)

	// UpsertAssociation links an account to a group and reports whether a new
	// row was created. New rows are active; existing rows are re-activated
	// only when activate is true.
	UpsertAssociation(ctx context.Context, accountID, groupID int64, activate bool) (bool, error)

	// GetAssociation retrieves the (account, group) association. Returns nil, nil if not found.
	GetAssociation(ctx context.Context, accountID, groupID int64) (*Association, error)

	// ListActiveAssociations returns active associations whose account and group are active.
	ListActiveAssociations(ctx context.Context) ([]*AssociationDetail, error)

	// ListAccountAssociations returns every association of one account.
	ListAccountAssociations(ctx context.Context, accountID int64) ([]*AssociationDetail, error)

	// TouchAssociation sets the collection watermark of an association.
	TouchAssociation(ctx context.Context, associationID int64, at time.Time) error

	// SetAssociationActive toggles an association. Returns ErrNotFound if it doesn't exist.
	SetAssociationActive(ctx context.Context, accountID, groupID int64, active bool) error

	// DeactivateStaleAssociations deactivates active associations not collected
	// since before and returns how many were changed.
	DeactivateStaleAssociations(ctx context.Context, before time.Time) (int64, error)

	// FindMessage looks up a message by (group, platform message id). Returns nil, nil if not found.
	FindMessage(ctx context.Context, groupID, messageID int64) (*Message, error)

	// InsertMessage stores a new message. A duplicate (group, message id) is a
	// data integrity error.
	InsertMessage(ctx context.Context, message *Message) error

	// UpdateMessageSenderUsername fills the sender handle of an existing message.
	UpdateMessageSenderUsername(ctx context.Context, id int64, username string) error

	// CountMessages returns the number of stored messages of a group.
	CountMessages(ctx context.Context, groupID int64) (int64, error)

	// GetUnprocessedMessages returns unprocessed messages of a group dated in [from, to), oldest first.
	GetUnprocessedMessages(ctx context.Context, groupID int64, from, to time.Time) ([]*Message, error)

	// MarkMessagesAsProcessed marks a list of messages as processed.
	MarkMessagesAsProcessed(ctx context.Context, messageIDs []int64) error

	// SaveSummary stores a generated summary.
	SaveSummary(ctx context.Context, summary *Summary) error

	// GetLatestSummary returns the most recent summary of a group. Returns nil, nil if none.
	GetLatestSummary(ctx context.Context, groupID int64) (*Summary, error)

	// DeleteSummariesBefore removes summaries created before the cutoff.
	DeleteSummariesBefore(ctx context.Context, before time.Time) (int64, error)
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RunSQLMaintenance runs PRAGMA optimize followed by VACUUM.
// VACUUM cannot run inside a transaction.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting maintenance", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")
	start := time.Now()

	if _, err := s.db.ExecContext(ctx, "PRAGMA optimize;"); err != nil {
		s.logger.WarnContext(ctx, "PRAGMA optimize failed, continuing with VACUUM", "error", err)
	}
	if _, err := s.db.ExecContext(ctx, "VACUUM;"); err != nil {
		s.logger.ErrorContext(ctx, "Error running VACUUM", "error", err)
		return fmt.Errorf("failed to run VACUUM: %w", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully", "duration", time.Since(start))
	return nil
}

// --- Accounts ---

func (s *sqlxStore) CreateAccount(ctx context.Context, account *Account) error {
	if account == nil {
		return errs.NewValidationError("cannot create nil account", nil)
	}
	if account.PhoneNumber == "" {
		return errs.NewValidationError("account must have a phone number", nil)
	}
	if account.AppID <= 0 || account.AppHash == "" {
		return errs.NewValidationError("account must have app credentials", nil)
	}

	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now
	account.IsActive = false

	query := `
		INSERT INTO accounts (phone_number, app_id, app_hash, session_blob, is_active, last_code_request, created_at, updated_at)
		VALUES (:phone_number, :app_id, :app_hash, :session_blob, :is_active, :last_code_request, :created_at, :updated_at)
	`
	result, err := s.db.NamedExecContext(ctx, query, account)
	if err != nil {
		if isUniqueViolation(err) {
			return errs.NewValidationError(fmt.Sprintf("account %s already registered", account.PhoneNumber), err)
		}
		s.logger.ErrorContext(ctx, "Error creating account", "error", err)
		return fmt.Errorf("failed to create account: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read account id: %w", err)
	}
	account.ID = id

	s.logger.InfoContext(ctx, "Account created", "account_id", account.ID)
	return nil
}

func (s *sqlxStore) GetAccount(ctx context.Context, id int64) (*Account, error) {
	var account Account
	query := `SELECT * FROM accounts WHERE id = ?`

	err := s.db.GetContext(ctx, &account, query, id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.logger.DebugContext(ctx, "No account found", "account_id", id)
		return nil, nil
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return nil, err
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting account", "account_id", id, "error", err)
		return nil, fmt.Errorf("failed to get account %d: %w", id, err)
	}
	return &account, nil
}

func (s *sqlxStore) ListAccounts(ctx context.Context) ([]*Account, error) {
	var accounts []*Account
	if err := s.db.SelectContext(ctx, &accounts, `SELECT * FROM accounts ORDER BY id`); err != nil {
		s.logger.ErrorContext(ctx, "Error listing accounts", "error", err)
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

func (s *sqlxStore) UpdateAccountPhone(ctx context.Context, accountID int64, phone string) error {
	if phone == "" {
		return errs.NewValidationError("phone number cannot be empty", nil)
	}
	err := s.execOne(ctx, "update phone number", `UPDATE accounts SET phone_number = ?, updated_at = ? WHERE id = ?`,
		phone, time.Now().UTC(), accountID)
	if isUniqueViolation(err) {
		return errs.NewValidationError(fmt.Sprintf("phone number %s belongs to another account", phone), err)
	}
	return err
}

func (s *sqlxStore) SavePendingSession(ctx context.Context, accountID int64, blob []byte, requestedAt time.Time) error {
	query := `UPDATE accounts SET session_blob = ?, is_active = 0, last_code_request = ?, updated_at = ? WHERE id = ?`
	return s.execOne(ctx, "save pending session", query, blob, requestedAt.UTC(), time.Now().UTC(), accountID)
}

func (s *sqlxStore) SaveAuthenticatedSession(ctx context.Context, accountID int64, blob []byte) error {
	if len(blob) == 0 {
		return errs.NewValidationError("cannot activate account without a session", nil)
	}
	query := `UPDATE accounts SET session_blob = ?, is_active = 1, updated_at = ? WHERE id = ?`
	return s.execOne(ctx, "save authenticated session", query, blob, time.Now().UTC(), accountID)
}

func (s *sqlxStore) UpdateSessionBlob(ctx context.Context, accountID int64, blob []byte) error {
	if len(blob) == 0 {
		return errs.NewValidationError("refusing to store an empty session", nil)
	}
	query := `UPDATE accounts SET session_blob = ?, updated_at = ? WHERE id = ?`
	return s.execOne(ctx, "update session", query, blob, time.Now().UTC(), accountID)
}

func (s *sqlxStore) ClearAccountSession(ctx context.Context, accountID int64) error {
	query := `UPDATE accounts SET session_blob = NULL, is_active = 0, updated_at = ? WHERE id = ?`
	return s.execOne(ctx, "clear session", query, time.Now().UTC(), accountID)
}

// --- Groups ---

func (s *sqlxStore) UpsertGroup(ctx context.Context, group *Group) (bool, error) {
	if group == nil || group.GroupID == 0 {
		return false, errs.NewValidationError("group must have a platform id", nil)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for group upsert", "group_id", group.GroupID, "error", err)
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	now := time.Now().UTC()
	var existing Group
	err = tx.GetContext(ctx, &existing, `SELECT * FROM groups WHERE group_id = ?`, group.GroupID)
	created := errors.Is(err, sql.ErrNoRows)
	if err != nil && !created {
		return false, fmt.Errorf("failed to check group %d: %w", group.GroupID, err)
	}

	if created {
		group.IsActive = true
		group.CreatedAt = now
		group.UpdatedAt = now
		result, err := tx.NamedExecContext(ctx, `
			INSERT INTO groups (group_id, name, username, is_active, created_at, updated_at)
			VALUES (:group_id, :name, :username, :is_active, :created_at, :updated_at)
		`, group)
		if err != nil {
			s.logger.ErrorContext(ctx, "Error inserting group", "group_id", group.GroupID, "error", err)
			return false, fmt.Errorf("failed to insert group %d: %w", group.GroupID, err)
		}
		if group.ID, err = result.LastInsertId(); err != nil {
			return false, fmt.Errorf("failed to read group id: %w", err)
		}
	} else {
		// Name and handle are refreshed, identity and flags are kept.
		if _, err := tx.ExecContext(ctx, `UPDATE groups SET name = ?, username = ?, updated_at = ? WHERE id = ?`,
			group.Name, group.Username, now, existing.ID); err != nil {
			s.logger.ErrorContext(ctx, "Error updating group", "group_id", group.GroupID, "error", err)
			return false, fmt.Errorf("failed to update group %d: %w", group.GroupID, err)
		}
		group.ID = existing.ID
		group.IsActive = existing.IsActive
		group.CreatedAt = existing.CreatedAt
		group.UpdatedAt = now
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.DebugContext(ctx, "Group upserted", "group_id", group.GroupID, "created", created)
	return created, nil
}

func (s *sqlxStore) GetGroup(ctx context.Context, id int64) (*Group, error) {
	return s.getGroup(ctx, `SELECT * FROM groups WHERE id = ?`, id)
}

func (s *sqlxStore) GetGroupByPlatformID(ctx context.Context, groupID int64) (*Group, error) {
	return s.getGroup(ctx, `SELECT * FROM groups WHERE group_id = ?`, groupID)
}

func (s *sqlxStore) getGroup(ctx context.Context, query string, arg int64) (*Group, error) {
	var group Group
	err := s.db.GetContext(ctx, &group, query, arg)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting group", "key", arg, "error", err)
		return nil, fmt.Errorf("failed to get group %d: %w", arg, err)
	}
	return &group, nil
}

func (s *sqlxStore) ListSummarizableGroups(ctx context.Context) ([]*Group, error) {
	var groups []*Group
	query := `
		SELECT DISTINCT g.* FROM groups g
		JOIN account_groups ag ON ag.group_id = g.id
		JOIN accounts a ON a.id = ag.account_id
		WHERE g.is_active = 1 AND ag.is_active = 1 AND a.is_active = 1
		ORDER BY g.id
	`
	if err := s.db.SelectContext(ctx, &groups, query); err != nil {
		s.logger.ErrorContext(ctx, "Error listing summarizable groups", "error", err)
		return nil, fmt.Errorf("failed to list summarizable groups: %w", err)
	}
	return groups, nil
}

// --- Associations ---

func (s *sqlxStore) UpsertAssociation(ctx context.Context, accountID, groupID int64, activate bool) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	var existing Association
	err = tx.GetContext(ctx, &existing, `SELECT * FROM account_groups WHERE account_id = ? AND group_id = ?`, accountID, groupID)
	created := errors.Is(err, sql.ErrNoRows)
	if err != nil && !created {
		return false, fmt.Errorf("failed to check association: %w", err)
	}

	switch {
	case created:
		_, err = tx.ExecContext(ctx, `INSERT INTO account_groups (account_id, group_id, is_active, joined_at) VALUES (?, ?, 1, ?)`,
			accountID, groupID, time.Now().UTC())
	case activate && !existing.IsActive:
		_, err = tx.ExecContext(ctx, `UPDATE account_groups SET is_active = 1 WHERE id = ?`, existing.ID)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Error upserting association", "account_id", accountID, "group_id", groupID, "error", err)
		return false, fmt.Errorf("failed to upsert association: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return created, nil
}

func (s *sqlxStore) GetAssociation(ctx context.Context, accountID, groupID int64) (*Association, error) {
	var assoc Association
	err := s.db.GetContext(ctx, &assoc, `SELECT * FROM account_groups WHERE account_id = ? AND group_id = ?`, accountID, groupID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting association", "account_id", accountID, "group_id", groupID, "error", err)
		return nil, fmt.Errorf("failed to get association: %w", err)
	}
	return &assoc, nil
}

const associationDetailSelect = `
	SELECT ag.*, a.phone_number, g.group_id AS platform_group_id, g.name AS group_name, g.username AS group_username
	FROM account_groups ag
	JOIN accounts a ON a.id = ag.account_id
	JOIN groups g ON g.id = ag.group_id
`

func (s *sqlxStore) ListActiveAssociations(ctx context.Context) ([]*AssociationDetail, error) {
	var out []*AssociationDetail
	query := associationDetailSelect + `WHERE ag.is_active = 1 AND a.is_active = 1 AND g.is_active = 1 ORDER BY ag.account_id, ag.id`
	if err := s.db.SelectContext(ctx, &out, query); err != nil {
		s.logger.ErrorContext(ctx, "Error listing active associations", "error", err)
		return nil, fmt.Errorf("failed to list active associations: %w", err)
	}
	return out, nil
}

func (s *sqlxStore) ListAccountAssociations(ctx context.Context, accountID int64) ([]*AssociationDetail, error) {
	var out []*AssociationDetail
	query := associationDetailSelect + `WHERE ag.account_id = ? ORDER BY ag.id`
	if err := s.db.SelectContext(ctx, &out, query, accountID); err != nil {
		s.logger.ErrorContext(ctx, "Error listing account associations", "account_id", accountID, "error", err)
		return nil, fmt.Errorf("failed to list associations of account %d: %w", accountID, err)
	}
	return out, nil
}

func (s *sqlxStore) TouchAssociation(ctx context.Context, associationID int64, at time.Time) error {
	return s.execOne(ctx, "touch association", `UPDATE account_groups SET last_collection = ? WHERE id = ?`, at.UTC(), associationID)
}

func (s *sqlxStore) SetAssociationActive(ctx context.Context, accountID, groupID int64, active bool) error {
	return s.execOne(ctx, "toggle association",
		`UPDATE account_groups SET is_active = ? WHERE account_id = ? AND group_id = ?`, active, accountID, groupID)
}

func (s *sqlxStore) DeactivateStaleAssociations(ctx context.Context, before time.Time) (int64, error) {
	// Never-collected associations age from their join time.
	query := `
		UPDATE account_groups SET is_active = 0
		WHERE is_active = 1
		  AND ((last_collection IS NOT NULL AND last_collection < ?)
		    OR (last_collection IS NULL AND joined_at < ?))
	`
	cutoff := before.UTC()
	result, err := s.db.ExecContext(ctx, query, cutoff, cutoff)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deactivating stale associations", "error", err)
		return 0, fmt.Errorf("failed to deactivate stale associations: %w", err)
	}
	count, _ := result.RowsAffected()
	s.logger.InfoContext(ctx, "Deactivated stale associations", "count", count, "before", cutoff)
	return count, nil
}

// --- Messages ---

func (s *sqlxStore) FindMessage(ctx context.Context, groupID, messageID int64) (*Message, error) {
	var msg Message
	err := s.db.GetContext(ctx, &msg, `SELECT * FROM messages WHERE group_id = ? AND message_id = ?`, groupID, messageID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("failed to find message %d in group %d: %w", messageID, groupID, err)
	}
	return &msg, nil
}

func (s *sqlxStore) InsertMessage(ctx context.Context, message *Message) error {
	if message == nil {
		return errs.NewValidationError("cannot save nil message", nil)
	}
	if message.GroupID == 0 || message.MessageID == 0 {
		return errs.NewValidationError("message must have a group and a message id", nil)
	}
	if message.Date.IsZero() {
		return errs.NewValidationError("message must have a non-zero date", nil)
	}

	message.Date = message.Date.UTC()
	message.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO messages (group_id, message_id, sender_id, sender_name, sender_username, kind, text, date, is_processed, created_at)
		VALUES (:group_id, :message_id, :sender_id, :sender_name, :sender_username, :kind, :text, :date, :is_processed, :created_at)
	`
	result, err := s.db.NamedExecContext(ctx, query, message)
	if err != nil {
		if isUniqueViolation(err) {
			return errs.NewDataIntegrityError(
				fmt.Sprintf("message %d already stored for group %d", message.MessageID, message.GroupID), err)
		}
		s.logger.ErrorContext(ctx, "Error saving message", "group_id", message.GroupID, "message_id", message.MessageID, "error", err)
		return fmt.Errorf("failed to save message %d: %w", message.MessageID, err)
	}

	if id, err := result.LastInsertId(); err == nil {
		message.ID = id
	} else {
		s.logger.WarnContext(ctx, "Could not retrieve last insert ID after saving message",
			"group_id", message.GroupID, "message_id", message.MessageID, "error", err)
	}
	return nil
}

func (s *sqlxStore) UpdateMessageSenderUsername(ctx context.Context, id int64, username string) error {
	return s.execOne(ctx, "update sender username", `UPDATE messages SET sender_username = ? WHERE id = ?`, username, id)
}

func (s *sqlxStore) CountMessages(ctx context.Context, groupID int64) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM messages WHERE group_id = ?`, groupID); err != nil {
		return 0, fmt.Errorf("failed to count messages of group %d: %w", groupID, err)
	}
	return n, nil
}

func (s *sqlxStore) GetUnprocessedMessages(ctx context.Context, groupID int64, from, to time.Time) ([]*Message, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var messages []*Message
	query := `
		SELECT * FROM messages
		WHERE group_id = ? AND is_processed = 0 AND date >= ? AND date < ?
		ORDER BY date ASC, message_id ASC
	`
	err := s.db.SelectContext(ctx, &messages, query, groupID, from.UTC(), to.UTC())
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching unprocessed messages", "error", err)
		return nil, err
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting unprocessed messages", "group_id", groupID, "error", err)
		return nil, fmt.Errorf("failed to get unprocessed messages: %w", err)
	}

	s.logger.DebugContext(ctx, "Fetched unprocessed messages", "group_id", groupID, "count", len(messages))
	return messages, nil
}

// MarkMessagesAsProcessed uses a transaction to keep the batch atomic.
func (s *sqlxStore) MarkMessagesAsProcessed(ctx context.Context, messageIDs []int64) error {
	if len(messageIDs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for marking messages", "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	query, args, err := sqlx.In(`UPDATE messages SET is_processed = 1 WHERE id IN (?)`, messageIDs)
	if err != nil {
		return fmt.Errorf("failed to build query for marking messages: %w", err)
	}

	result, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error marking messages as processed", "error", err)
		return fmt.Errorf("failed to mark messages as processed: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		s.logger.WarnContext(ctx, "Could not get affected row count", "error", err)
	} else if int(affected) != len(messageIDs) {
		s.logger.WarnContext(ctx, "Not all messages were marked as processed",
			"requested", len(messageIDs), "affected", affected)
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit transaction", "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.DebugContext(ctx, "Marked messages as processed", "count", len(messageIDs))
	return nil
}

// --- Summaries ---

func (s *sqlxStore) SaveSummary(ctx context.Context, summary *Summary) error {
	if summary == nil || summary.GroupID == 0 {
		return errs.NewValidationError("summary must reference a group", nil)
	}
	if !summary.EndDate.After(summary.StartDate) {
		return errs.NewValidationError("summary window must end after it starts", nil)
	}

	summary.StartDate = summary.StartDate.UTC()
	summary.EndDate = summary.EndDate.UTC()
	summary.CreatedAt = time.Now().UTC()

	result, err := s.db.NamedExecContext(ctx, `
		INSERT INTO summaries (group_id, start_date, end_date, content, created_at)
		VALUES (:group_id, :start_date, :end_date, :content, :created_at)
	`, summary)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving summary", "group_id", summary.GroupID, "error", err)
		return fmt.Errorf("failed to save summary: %w", err)
	}
	if summary.ID, err = result.LastInsertId(); err != nil {
		return fmt.Errorf("failed to read summary id: %w", err)
	}
	return nil
}

func (s *sqlxStore) GetLatestSummary(ctx context.Context, groupID int64) (*Summary, error) {
	var summary Summary
	err := s.db.GetContext(ctx, &summary,
		`SELECT * FROM summaries WHERE group_id = ? ORDER BY end_date DESC, id DESC LIMIT 1`, groupID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("failed to get latest summary of group %d: %w", groupID, err)
	}
	return &summary, nil
}

func (s *sqlxStore) DeleteSummariesBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM summaries WHERE created_at < ?`, before.UTC())
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deleting old summaries", "error", err)
		return 0, fmt.Errorf("failed to delete old summaries: %w", err)
	}
	count, _ := result.RowsAffected()
	s.logger.InfoContext(ctx, "Deleted old summaries", "count", count)
	return count, nil
}

// --- helpers ---

// execOne runs an update that must touch exactly one row.
func (s *sqlxStore) execOne(ctx context.Context, op, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		s.logger.ErrorContext(ctx, "Database update failed", "op", op, "error", err)
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

// rollback is deferred after BeginTxx; it is a no-op once the tx is committed.
func (s *sqlxStore) rollback(ctx context.Context, tx *sqlx.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		s.logger.WarnContext(ctx, "Error rolling back transaction", "error", err)
	}
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(sqliteErr.Error(), "UNIQUE")
	}
	return false
}
