package gotd

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"

	"github.com/edgard/tgcollector/internal/platform"
)

const (
	historyPageSize = 100
	dialogPageSize  = 100
	maxDialogPages  = 50
)

// client adapts one connected gotd client. Users seen in any response are
// cached so senders and lookups can reuse their access hashes.
type client struct {
	tc     *telegram.Client
	api    *tg.Client
	creds  platform.Credentials
	logger *slog.Logger

	users   map[int64]*tg.User
	dialogs []*platform.Entity
}

func newClient(tc *telegram.Client, creds platform.Credentials, log *slog.Logger) *client {
	return &client{
		tc:     tc,
		api:    tc.API(),
		creds:  creds,
		logger: log,
		users:  make(map[int64]*tg.User),
	}
}

func (c *client) IsAuthorized(ctx context.Context) (bool, error) {
	status, err := c.tc.Auth().Status(ctx)
	if err != nil {
		return false, err
	}
	return status.Authorized, nil
}

func (c *client) RequestLoginCode(ctx context.Context, phone string, forceSMS bool) (string, error) {
	sent, err := c.api.AuthSendCode(ctx, &tg.AuthSendCodeRequest{
		PhoneNumber: phone,
		APIID:       c.creds.AppID,
		APIHash:     c.creds.AppHash,
		Settings:    tg.CodeSettings{},
	})
	if err != nil {
		return "", err
	}
	hash, err := codeHash(sent)
	if err != nil {
		return "", err
	}
	if !forceSMS {
		return hash, nil
	}

	resent, err := c.api.AuthResendCode(ctx, &tg.AuthResendCodeRequest{
		PhoneNumber:   phone,
		PhoneCodeHash: hash,
	})
	if err != nil {
		return "", err
	}
	return codeHash(resent)
}

func codeHash(sent tg.AuthSentCodeClass) (string, error) {
	code, ok := sent.(*tg.AuthSentCode)
	if !ok {
		return "", fmt.Errorf("unexpected sent code response %s", sent.TypeName())
	}
	return code.PhoneCodeHash, nil
}

func (c *client) SignIn(ctx context.Context, phone, code, codeHash string) error {
	res, err := c.api.AuthSignIn(ctx, &tg.AuthSignInRequest{
		PhoneNumber:   phone,
		PhoneCodeHash: codeHash,
		PhoneCode:     code,
	})
	if err != nil {
		return err
	}
	if _, ok := res.(*tg.AuthAuthorizationSignUpRequired); ok {
		return errors.New("PHONE_NUMBER_UNOCCUPIED: phone number is not registered")
	}
	return nil
}

func (c *client) LogOut(ctx context.Context) error {
	_, err := c.api.AuthLogOut(ctx)
	return err
}

func (c *client) ResolveEntity(ctx context.Context, ref platform.EntityRef) (*platform.Entity, error) {
	switch ref.Kind {
	case platform.RefChannel:
		res, err := c.api.ChannelsGetChannels(ctx, []tg.InputChannelClass{&tg.InputChannel{ChannelID: ref.ID}})
		if err != nil {
			return nil, err
		}
		return firstEntity(chatsOf(res), ref)
	case platform.RefChat:
		res, err := c.api.MessagesGetChats(ctx, []int64{ref.ID})
		if err != nil {
			return nil, err
		}
		return firstEntity(chatsOf(res), ref)
	case platform.RefRaw:
		return c.lookupDialog(ctx, ref.ID)
	default:
		return nil, fmt.Errorf("unknown reference kind %s", ref.Kind)
	}
}

// lookupDialog finds id among the chats in the dialog list, by bare or marked id.
func (c *client) lookupDialog(ctx context.Context, id int64) (*platform.Entity, error) {
	if c.dialogs == nil {
		dialogs, err := c.ListDialogs(ctx)
		if err != nil {
			return nil, err
		}
		c.dialogs = make([]*platform.Entity, 0, len(dialogs))
		for _, d := range dialogs {
			c.dialogs = append(c.dialogs, d.Entity)
		}
	}
	for _, e := range c.dialogs {
		if e.ID == id || e.MarkedID() == id {
			return e, nil
		}
	}
	return nil, fmt.Errorf("could not find the input entity for %d", id)
}

func (c *client) ResolveUsername(ctx context.Context, username string) (*platform.Entity, error) {
	var res tg.ContactsResolvedPeer
	if err := c.tc.Invoke(ctx, &tg.ContactsResolveUsernameRequest{Username: username}, &res); err != nil {
		return nil, err
	}
	c.rememberUsers(res.Users)

	switch p := res.Peer.(type) {
	case *tg.PeerChannel:
		return firstEntity(res.Chats, platform.EntityRef{Kind: platform.RefChannel, ID: p.ChannelID})
	case *tg.PeerChat:
		return firstEntity(res.Chats, platform.EntityRef{Kind: platform.RefChat, ID: p.ChatID})
	case *tg.PeerUser:
		if u := c.users[p.UserID]; u != nil {
			return &platform.Entity{Kind: platform.EntityUser, ID: u.ID, AccessHash: u.AccessHash, Username: u.Username}, nil
		}
		return &platform.Entity{Kind: platform.EntityUser, ID: p.UserID}, nil
	default:
		return nil, fmt.Errorf("unexpected peer %T for @%s", res.Peer, username)
	}
}

func (c *client) JoinChannel(ctx context.Context, entity *platform.Entity) error {
	if entity.Kind != platform.EntityChannel {
		return fmt.Errorf("entity %d is not a channel", entity.ID)
	}
	_, err := c.api.ChannelsJoinChannel(ctx, &tg.InputChannel{ChannelID: entity.ID, AccessHash: entity.AccessHash})
	return err
}

func (c *client) ListMessages(ctx context.Context, entity *platform.Entity, limit int, reverse bool) ([]*platform.RawMessage, error) {
	peer, err := inputPeer(entity)
	if err != nil {
		return nil, err
	}

	var out []*platform.RawMessage
	offsetID := 0
	if reverse {
		offsetID = 1
	}
	for len(out) < limit {
		batch := min(historyPageSize, limit-len(out))
		req := &tg.MessagesGetHistoryRequest{Peer: peer, OffsetID: offsetID, Limit: batch}
		if reverse {
			req.AddOffset = -batch
		}

		res, err := c.api.MessagesGetHistory(ctx, req)
		if err != nil {
			return nil, err
		}
		msgs, users := historyOf(res)
		c.rememberUsers(users)
		if len(msgs) == 0 {
			break
		}

		page := make([]*platform.RawMessage, 0, len(msgs))
		for _, m := range msgs {
			if msg, ok := m.(*tg.Message); ok {
				page = append(page, convertMessage(msg, c.users))
			}
		}
		slices.SortFunc(page, func(a, b *platform.RawMessage) int {
			if reverse {
				return cmp.Compare(a.ID, b.ID)
			}
			return cmp.Compare(b.ID, a.ID)
		})
		out = append(out, page...)

		edge := msgs[len(msgs)-1].GetID()
		for _, m := range msgs {
			id := m.GetID()
			if reverse && id > edge || !reverse && id < edge {
				edge = id
			}
		}
		if reverse {
			offsetID = edge + 1
		} else {
			offsetID = edge
		}
		if len(msgs) < batch {
			break
		}
	}

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (c *client) ListDialogs(ctx context.Context) ([]*platform.Dialog, error) {
	seen := make(map[int64]bool)
	var out []*platform.Dialog

	req := &tg.MessagesGetDialogsRequest{OffsetPeer: &tg.InputPeerEmpty{}, Limit: dialogPageSize}
	for range maxDialogPages {
		res, err := c.api.MessagesGetDialogs(ctx, req)
		if err != nil {
			return nil, err
		}
		page, ok := dialogsOf(res)
		if !ok {
			break
		}
		c.rememberUsers(page.users)

		for _, chat := range page.chats {
			e := convertChat(chat)
			if e == nil || seen[e.MarkedID()] {
				continue
			}
			seen[e.MarkedID()] = true
			out = append(out, &platform.Dialog{Entity: e})
		}

		if page.complete || len(page.dialogs) < dialogPageSize {
			break
		}
		next, ok := nextDialogOffset(page.dialogs, page.messages, page.chats, c.users)
		if !ok {
			break
		}
		next.Limit = dialogPageSize
		req = next
	}
	c.logger.DebugContext(ctx, "Dialogs listed", "chats", len(out))
	return out, nil
}

func (c *client) LookupUser(ctx context.Context, userID int64) (*platform.User, error) {
	input := &tg.InputUser{UserID: userID}
	if u := c.users[userID]; u != nil {
		input.AccessHash = u.AccessHash
	}
	users, err := c.api.UsersGetUsers(ctx, []tg.InputUserClass{input})
	if err != nil {
		return nil, err
	}
	c.rememberUsers(users)
	u := c.users[userID]
	if u == nil {
		return nil, fmt.Errorf("USER_ID_INVALID: user %d not returned", userID)
	}
	return convertUser(u), nil
}

func (c *client) rememberUsers(users []tg.UserClass) {
	for _, uc := range users {
		if u, ok := uc.(*tg.User); ok {
			c.users[u.ID] = u
		}
	}
}

// dateOf returns the send time of a message as reported by the platform.
func dateOf(m tg.MessageClass) (int, bool) {
	switch v := m.(type) {
	case *tg.Message:
		return v.Date, true
	case *tg.MessageService:
		return v.Date, true
	default:
		return 0, false
	}
}

// nextDialogOffset builds the request for the page after dialogs, keyed on
// the top message of the last dialog.
func nextDialogOffset(dialogs []tg.DialogClass, msgs []tg.MessageClass, chats []tg.ChatClass, users map[int64]*tg.User) (*tg.MessagesGetDialogsRequest, bool) {
	var last *tg.Dialog
	for i := len(dialogs) - 1; i >= 0 && last == nil; i-- {
		last, _ = dialogs[i].(*tg.Dialog)
	}
	if last == nil {
		return nil, false
	}

	req := &tg.MessagesGetDialogsRequest{OffsetID: last.TopMessage}
	for _, m := range msgs {
		if m.GetID() != last.TopMessage {
			continue
		}
		if date, ok := dateOf(m); ok {
			req.OffsetDate = date
			break
		}
	}

	switch p := last.Peer.(type) {
	case *tg.PeerUser:
		var hash int64
		if u := users[p.UserID]; u != nil {
			hash = u.AccessHash
		}
		req.OffsetPeer = &tg.InputPeerUser{UserID: p.UserID, AccessHash: hash}
	case *tg.PeerChat:
		req.OffsetPeer = &tg.InputPeerChat{ChatID: p.ChatID}
	case *tg.PeerChannel:
		var hash int64
		for _, ch := range chats {
			if channel, ok := ch.(*tg.Channel); ok && channel.ID == p.ChannelID {
				hash = channel.AccessHash
			}
		}
		req.OffsetPeer = &tg.InputPeerChannel{ChannelID: p.ChannelID, AccessHash: hash}
	default:
		return nil, false
	}
	return req, true
}

// messageTime converts a platform unix timestamp.
func messageTime(unix int) time.Time {
	return time.Unix(int64(unix), 0).UTC()
}
