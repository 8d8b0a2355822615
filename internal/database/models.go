package database

import (
	"database/sql"
	"time"
)

// Account is a platform user account attached to the collector.
// IsActive implies SessionBlob holds a session that last authenticated successfully.
type Account struct {
	ID              int64        `db:"id"`
	PhoneNumber     string       `db:"phone_number"`
	AppID           int          `db:"app_id"`
	AppHash         string       `db:"app_hash"`
	SessionBlob     []byte       `db:"session_blob"`
	IsActive        bool         `db:"is_active"`
	LastCodeRequest sql.NullTime `db:"last_code_request"`
	CreatedAt       time.Time    `db:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at"`
}

// Group is a tracked chat. GroupID is the platform-assigned numeric id as
// observed, with or without the channel prefix.
type Group struct {
	ID        int64     `db:"id"`
	GroupID   int64     `db:"group_id"`
	Name      string    `db:"name"`
	Username  string    `db:"username"`
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Association links an account to a group it collects from.
// LastCollection is the watermark of the last successful collection run.
type Association struct {
	ID             int64        `db:"id"`
	AccountID      int64        `db:"account_id"`
	GroupID        int64        `db:"group_id"`
	IsActive       bool         `db:"is_active"`
	JoinedAt       time.Time    `db:"joined_at"`
	LastCollection sql.NullTime `db:"last_collection"`
}

// AssociationDetail is an association joined with its account and group.
type AssociationDetail struct {
	Association
	PhoneNumber     string `db:"phone_number"`
	PlatformGroupID int64  `db:"platform_group_id"`
	GroupName       string `db:"group_name"`
	GroupUsername   string `db:"group_username"`
}

// Message is one collected platform message, unique per (GroupID, MessageID).
type Message struct {
	ID             int64     `db:"id"`
	GroupID        int64     `db:"group_id"`
	MessageID      int64     `db:"message_id"`
	SenderID       int64     `db:"sender_id"`
	SenderName     string    `db:"sender_name"`
	SenderUsername string    `db:"sender_username"`
	Kind           string    `db:"kind"`
	Text           string    `db:"text"`
	Date           time.Time `db:"date"`
	IsProcessed    bool      `db:"is_processed"`
	CreatedAt      time.Time `db:"created_at"`
}

// Summary is a generated digest of a group's messages over a time window.
type Summary struct {
	ID        int64     `db:"id"`
	GroupID   int64     `db:"group_id"`
	StartDate time.Time `db:"start_date"`
	EndDate   time.Time `db:"end_date"`
	Content   string    `db:"content"`
	CreatedAt time.Time `db:"created_at"`
}
