// Package platformtest provides a scripted in-memory platform for tests.
package platformtest

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/edgard/tgcollector/internal/platform"
)

// Fake implements platform.Connector and the Client handed to Run callbacks.
// Sessions are plain strings; a nil session starts a fresh one. All fields
// may be set before use and are read under the fake's lock.
type Fake struct {
	mu sync.Mutex

	// ValidCode is the only code SignIn accepts.
	ValidCode string

	ConnectErr     error
	RequestCodeErr error
	SignInErr      error
	LogOutErr      error
	ListErr        error
	DialogsErr     error

	// Entities answers ResolveEntity per addressing scheme.
	Entities map[platform.EntityRef]*platform.Entity
	// Usernames answers ResolveUsername.
	Usernames map[string]*platform.Entity
	// Messages holds the history per entity id in any order.
	Messages map[int64][]*platform.RawMessage
	Dialogs  []*platform.Dialog
	Users    map[int64]*platform.User
	// LookupHook, when set, runs at the start of every LookupUser call.
	LookupHook func(userID int64)

	authorized map[string]bool
	codeHash   string
	nextID     int

	// Recorded calls.
	Runs        int
	CodeFor     []string
	LogOuts     int
	Resolves    []platform.EntityRef
	Lookups     []int64
	Joined      []int64
	ListReverse []bool
}

// New returns an empty fake accepting code "12345".
func New() *Fake {
	return &Fake{
		ValidCode:  "12345",
		Entities:   make(map[platform.EntityRef]*platform.Entity),
		Usernames:  make(map[string]*platform.Entity),
		Messages:   make(map[int64][]*platform.RawMessage),
		Users:      make(map[int64]*platform.User),
		authorized: make(map[string]bool),
	}
}

// Authorize marks a stored session as signed in.
func (f *Fake) Authorize(session []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authorized[string(session)] = true
}

// IsSessionAuthorized reports whether session is signed in.
func (f *Fake) IsSessionAuthorized(session []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authorized[string(session)]
}

// AddChannel registers a channel reachable through the channel probe and as a dialog.
func (f *Fake) AddChannel(id int64, title, username string) *platform.Entity {
	e := &platform.Entity{Kind: platform.EntityChannel, ID: id, Title: title, Username: username}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Entities[platform.EntityRef{Kind: platform.RefChannel, ID: id}] = e
	if username != "" {
		f.Usernames[username] = e
	}
	f.Dialogs = append(f.Dialogs, &platform.Dialog{Entity: e})
	return e
}

// AddMessages appends history for an entity id.
func (f *Fake) AddMessages(entityID int64, msgs ...*platform.RawMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Messages[entityID] = append(f.Messages[entityID], msgs...)
}

// Run implements platform.Connector.
func (f *Fake) Run(ctx context.Context, _ platform.Credentials, session []byte,
	fn func(ctx context.Context, c platform.Client) error,
) ([]byte, error) {
	f.mu.Lock()
	f.Runs++
	if f.ConnectErr != nil {
		err := f.ConnectErr
		f.mu.Unlock()
		return nil, err
	}
	name := string(session)
	if len(session) == 0 {
		f.nextID++
		name = fmt.Sprintf("session-%d", f.nextID)
	}
	f.mu.Unlock()

	c := &client{fake: f, session: name}
	err := fn(ctx, c)
	return []byte(c.session), err
}

type client struct {
	fake    *Fake
	session string
}

func (c *client) IsAuthorized(context.Context) (bool, error) {
	c.fake.mu.Lock()
	defer c.fake.mu.Unlock()
	return c.fake.authorized[c.session], nil
}

func (c *client) RequestLoginCode(_ context.Context, phone string, _ bool) (string, error) {
	f := c.fake
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CodeFor = append(f.CodeFor, phone)
	if f.RequestCodeErr != nil {
		return "", f.RequestCodeErr
	}
	f.nextID++
	f.codeHash = fmt.Sprintf("hash-%d", f.nextID)
	return f.codeHash, nil
}

func (c *client) SignIn(_ context.Context, _, code, codeHash string) error {
	f := c.fake
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case f.SignInErr != nil:
		return f.SignInErr
	case codeHash != f.codeHash:
		return errors.New("rpc error code 400: PHONE_CODE_EXPIRED")
	case code != f.ValidCode:
		return errors.New("rpc error code 400: PHONE_CODE_INVALID")
	}
	f.authorized[c.session] = true
	return nil
}

func (c *client) LogOut(context.Context) error {
	f := c.fake
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LogOuts++
	if f.LogOutErr != nil {
		return f.LogOutErr
	}
	delete(f.authorized, c.session)
	return nil
}

func (c *client) ResolveEntity(_ context.Context, ref platform.EntityRef) (*platform.Entity, error) {
	f := c.fake
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Resolves = append(f.Resolves, ref)
	if e, ok := f.Entities[ref]; ok {
		return e, nil
	}
	switch ref.Kind {
	case platform.RefChannel:
		return nil, errors.New("rpc error code 400: CHANNEL_INVALID")
	case platform.RefChat:
		return nil, errors.New("rpc error code 400: CHAT_ID_INVALID")
	default:
		return nil, fmt.Errorf("could not find the input entity for %d", ref.ID)
	}
}

func (c *client) ResolveUsername(_ context.Context, username string) (*platform.Entity, error) {
	f := c.fake
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.Usernames[username]; ok {
		return e, nil
	}
	return nil, errors.New("rpc error code 400: USERNAME_NOT_OCCUPIED")
}

func (c *client) JoinChannel(_ context.Context, entity *platform.Entity) error {
	f := c.fake
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Joined = append(f.Joined, entity.ID)
	return nil
}

func (c *client) ListMessages(_ context.Context, entity *platform.Entity, limit int, reverse bool) ([]*platform.RawMessage, error) {
	f := c.fake
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ListReverse = append(f.ListReverse, reverse)
	if f.ListErr != nil {
		return nil, f.ListErr
	}

	msgs := slices.Clone(f.Messages[entity.ID])
	slices.SortFunc(msgs, func(a, b *platform.RawMessage) int {
		if reverse {
			return cmp.Compare(a.ID, b.ID)
		}
		return cmp.Compare(b.ID, a.ID)
	})
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

func (c *client) ListDialogs(context.Context) ([]*platform.Dialog, error) {
	f := c.fake
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DialogsErr != nil {
		return nil, f.DialogsErr
	}
	return slices.Clone(f.Dialogs), nil
}

func (c *client) LookupUser(_ context.Context, userID int64) (*platform.User, error) {
	f := c.fake
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Lookups = append(f.Lookups, userID)
	if f.LookupHook != nil {
		f.LookupHook(userID)
	}
	if u, ok := f.Users[userID]; ok {
		return u, nil
	}
	return nil, errors.New("rpc error code 400: USER_ID_INVALID")
}
