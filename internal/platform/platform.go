// Package platform defines the contract between the collection core and the
// messaging platform client. The core never talks to the wire protocol
// directly; a Connector opens one bounded-lifetime session per operation.
package platform

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// Credentials are the platform application credentials of an account.
type Credentials struct {
	AppID   int
	AppHash string
}

// Connector opens a client session, runs fn against it and disconnects.
//
// session is the serialized session to resume, or nil for a fresh one.
// Run returns the session as it stands when fn returns, also when fn fails,
// so callers can persist state the platform tied to it (a pending login code).
// The returned session is nil only when no connection could be established.
type Connector interface {
	Run(ctx context.Context, creds Credentials, session []byte, fn func(ctx context.Context, c Client) error) ([]byte, error)
}

// Client is a connected platform session. Every call is a remote round trip
// that may fail with a platform error string.
type Client interface {
	IsAuthorized(ctx context.Context) (bool, error)
	// RequestLoginCode sends a login code to phone and returns the code hash
	// that must accompany the code on sign-in.
	RequestLoginCode(ctx context.Context, phone string, forceSMS bool) (string, error)
	SignIn(ctx context.Context, phone, code, codeHash string) error
	LogOut(ctx context.Context) error

	// ResolveEntity looks up a chat by numeric id under one addressing scheme.
	ResolveEntity(ctx context.Context, ref EntityRef) (*Entity, error)
	ResolveUsername(ctx context.Context, username string) (*Entity, error)
	JoinChannel(ctx context.Context, entity *Entity) error

	// ListMessages returns up to limit messages of entity, newest first,
	// or oldest first when reverse is set.
	ListMessages(ctx context.Context, entity *Entity, limit int, reverse bool) ([]*RawMessage, error)
	ListDialogs(ctx context.Context) ([]*Dialog, error)
	LookupUser(ctx context.Context, userID int64) (*User, error)
}

// RefKind selects how a numeric chat id is interpreted.
type RefKind int

const (
	// RefChannel addresses a channel or supergroup with an unknown access hash.
	RefChannel RefKind = iota
	// RefChat addresses a basic group.
	RefChat
	// RefRaw hands the id to the client's generic cached lookup.
	RefRaw
)

func (k RefKind) String() string {
	switch k {
	case RefChannel:
		return "channel"
	case RefChat:
		return "chat"
	case RefRaw:
		return "raw"
	default:
		return "RefKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// EntityRef is a numeric id paired with the addressing scheme to try.
type EntityRef struct {
	Kind RefKind
	ID   int64
}

// EntityKind is the type of a resolved peer.
type EntityKind int

const (
	EntityUser EntityKind = iota
	EntityChat
	EntityChannel
)

// ChannelIDOffset turns a bare channel id into its marked form (-100 prefix).
const ChannelIDOffset = 1_000_000_000_000

// Entity is a resolved, connection-ready chat handle.
type Entity struct {
	Kind       EntityKind
	ID         int64
	AccessHash int64
	Title      string
	Username   string
	// Broadcast is set for one-way channels, as opposed to supergroups.
	Broadcast bool
}

// MarkedID returns the id in the marked form chats are stored under:
// -100<id> for channels, -<id> for basic groups and the bare id for users.
func (e *Entity) MarkedID() int64 {
	switch e.Kind {
	case EntityChannel:
		return -(ChannelIDOffset + e.ID)
	case EntityChat:
		return -e.ID
	default:
		return e.ID
	}
}

// IsGroupLike reports whether messages can be collected from the entity.
func (e *Entity) IsGroupLike() bool {
	return e.Kind == EntityChat || e.Kind == EntityChannel
}

// Dialog is one entry of the account's chat list.
type Dialog struct {
	Entity *Entity
}

// User is the profile of a message sender.
type User struct {
	ID        int64
	FirstName string
	LastName  string
	Username  string
}

// DisplayName joins first and last name, trimmed. Empty if neither is set.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// MediaKind is the broad type of a message attachment.
type MediaKind int

const (
	MediaPhoto MediaKind = iota + 1
	MediaDocument
	MediaOther
)

// Media is a message attachment.
type Media struct {
	Kind MediaKind
	// TypeName is the platform's name for the media type, used for unsupported kinds.
	TypeName string
	// Voice marks an audio document recorded as a voice note.
	Voice bool
	// Duration is the audio length in seconds, 0 when unknown.
	Duration int
	FileName string
	// Size is the document size in bytes, 0 when unknown.
	Size int64
	// Caption is the text attached to a photo.
	Caption string
}

// RawMessage is a platform message as fetched, before classification.
type RawMessage struct {
	ID   int64
	Date time.Time
	Text string
	// SenderID is 0 when the platform did not report a sender.
	SenderID int64
	// Sender is the sender profile when it came with the message.
	Sender *User
	Media  *Media
}
