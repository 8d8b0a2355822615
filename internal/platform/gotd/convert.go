package gotd

import (
	"fmt"

	"github.com/gotd/td/tg"

	"github.com/edgard/tgcollector/internal/platform"
)

func chatsOf(res tg.MessagesChatsClass) []tg.ChatClass {
	switch v := res.(type) {
	case *tg.MessagesChats:
		return v.Chats
	case *tg.MessagesChatsSlice:
		return v.Chats
	default:
		return nil
	}
}

// firstEntity returns the chat in chats that ref points at.
func firstEntity(chats []tg.ChatClass, ref platform.EntityRef) (*platform.Entity, error) {
	for _, chat := range chats {
		switch v := chat.(type) {
		case *tg.ChannelForbidden:
			if v.ID == ref.ID {
				return nil, fmt.Errorf("CHANNEL_PRIVATE: channel %d is not accessible", ref.ID)
			}
		case *tg.ChatForbidden:
			if v.ID == ref.ID {
				return nil, fmt.Errorf("CHAT_FORBIDDEN: chat %d is not accessible", ref.ID)
			}
		}
		if e := convertChat(chat); e != nil && e.ID == ref.ID {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%s %d not found in response", ref.Kind, ref.ID)
}

// convertChat maps a readable group or channel. Other chats map to nil.
func convertChat(chat tg.ChatClass) *platform.Entity {
	switch v := chat.(type) {
	case *tg.Chat:
		if v.Deactivated {
			return nil
		}
		return &platform.Entity{Kind: platform.EntityChat, ID: v.ID, Title: v.Title}
	case *tg.Channel:
		return &platform.Entity{
			Kind:       platform.EntityChannel,
			ID:         v.ID,
			AccessHash: v.AccessHash,
			Title:      v.Title,
			Username:   v.Username,
			Broadcast:  v.Broadcast,
		}
	default:
		return nil
	}
}

func historyOf(res tg.MessagesMessagesClass) ([]tg.MessageClass, []tg.UserClass) {
	switch v := res.(type) {
	case *tg.MessagesMessages:
		return v.Messages, v.Users
	case *tg.MessagesMessagesSlice:
		return v.Messages, v.Users
	case *tg.MessagesChannelMessages:
		return v.Messages, v.Users
	default:
		return nil, nil
	}
}

type dialogPage struct {
	dialogs  []tg.DialogClass
	messages []tg.MessageClass
	chats    []tg.ChatClass
	users    []tg.UserClass
	// complete is set when the response holds the whole dialog list.
	complete bool
}

func dialogsOf(res tg.MessagesDialogsClass) (dialogPage, bool) {
	switch v := res.(type) {
	case *tg.MessagesDialogs:
		return dialogPage{dialogs: v.Dialogs, messages: v.Messages, chats: v.Chats, users: v.Users, complete: true}, true
	case *tg.MessagesDialogsSlice:
		return dialogPage{dialogs: v.Dialogs, messages: v.Messages, chats: v.Chats, users: v.Users}, true
	default:
		return dialogPage{}, false
	}
}

func convertUser(u *tg.User) *platform.User {
	return &platform.User{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Username:  u.Username,
	}
}

// convertMessage maps a message. A photo's text is its caption and moves to
// the media; other media keep the text alongside.
func convertMessage(m *tg.Message, users map[int64]*tg.User) *platform.RawMessage {
	raw := &platform.RawMessage{
		ID:   int64(m.ID),
		Date: messageTime(m.Date),
		Text: m.Message,
	}

	if from, ok := m.GetFromID(); ok {
		if p, ok := from.(*tg.PeerUser); ok {
			raw.SenderID = p.UserID
		}
	} else if p, ok := m.PeerID.(*tg.PeerUser); ok {
		// Private chats carry the sender in the peer only.
		raw.SenderID = p.UserID
	}
	if u := users[raw.SenderID]; raw.SenderID != 0 && u != nil {
		raw.Sender = convertUser(u)
	}

	if media, ok := m.GetMedia(); ok {
		raw.Media = convertMedia(media)
		if raw.Media != nil && raw.Media.Kind == platform.MediaPhoto {
			raw.Media.Caption = m.Message
			raw.Text = ""
		}
	}
	return raw
}

func convertMedia(media tg.MessageMediaClass) *platform.Media {
	switch v := media.(type) {
	case *tg.MessageMediaEmpty:
		return nil
	case *tg.MessageMediaPhoto:
		return &platform.Media{Kind: platform.MediaPhoto, TypeName: v.TypeName()}
	case *tg.MessageMediaDocument:
		out := &platform.Media{Kind: platform.MediaDocument, TypeName: v.TypeName()}
		doc, ok := v.GetDocument()
		if !ok {
			return out
		}
		d, ok := doc.(*tg.Document)
		if !ok {
			return out
		}
		out.Size = d.Size
		for _, attr := range d.Attributes {
			switch a := attr.(type) {
			case *tg.DocumentAttributeAudio:
				out.Voice = a.Voice
				out.Duration = a.Duration
			case *tg.DocumentAttributeFilename:
				out.FileName = a.FileName
			}
		}
		return out
	default:
		return &platform.Media{Kind: platform.MediaOther, TypeName: media.TypeName()}
	}
}

func inputPeer(e *platform.Entity) (tg.InputPeerClass, error) {
	switch e.Kind {
	case platform.EntityChannel:
		return &tg.InputPeerChannel{ChannelID: e.ID, AccessHash: e.AccessHash}, nil
	case platform.EntityChat:
		return &tg.InputPeerChat{ChatID: e.ID}, nil
	case platform.EntityUser:
		return &tg.InputPeerUser{UserID: e.ID, AccessHash: e.AccessHash}, nil
	default:
		return nil, fmt.Errorf("unsupported entity kind %d", e.Kind)
	}
}
