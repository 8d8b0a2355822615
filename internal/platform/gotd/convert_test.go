package gotd

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gotd/td/session"
	"github.com/gotd/td/tg"

	"github.com/edgard/tgcollector/internal/platform"
)

func TestConvertChat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   tg.ChatClass
		want *platform.Entity
	}{
		{
			name: "supergroup",
			in:   &tg.Channel{ID: 1234567890, AccessHash: 99, Title: "Go Devs", Username: "godevs", Megagroup: true},
			want: &platform.Entity{Kind: platform.EntityChannel, ID: 1234567890, AccessHash: 99, Title: "Go Devs", Username: "godevs"},
		},
		{
			name: "broadcast",
			in:   &tg.Channel{ID: 5, Title: "News", Broadcast: true},
			want: &platform.Entity{Kind: platform.EntityChannel, ID: 5, Title: "News", Broadcast: true},
		},
		{
			name: "basic group",
			in:   &tg.Chat{ID: 4242, Title: "Family"},
			want: &platform.Entity{Kind: platform.EntityChat, ID: 4242, Title: "Family"},
		},
		{name: "migrated group", in: &tg.Chat{ID: 1, Deactivated: true}},
		{name: "forbidden", in: &tg.ChannelForbidden{ID: 2, Title: "gone"}},
		{name: "empty", in: &tg.ChatEmpty{ID: 3}},
	}
	for _, tt := range tests {
		got := convertChat(tt.in)
		switch {
		case tt.want == nil && got != nil:
			t.Errorf("%s: convertChat = %+v, want nil", tt.name, got)
		case tt.want != nil && (got == nil || *got != *tt.want):
			t.Errorf("%s: convertChat = %+v, want %+v", tt.name, got, tt.want)
		}
	}
}

func TestFirstEntityForbidden(t *testing.T) {
	t.Parallel()
	ref := platform.EntityRef{Kind: platform.RefChannel, ID: 7}
	if _, err := firstEntity([]tg.ChatClass{&tg.ChannelForbidden{ID: 7}}, ref); err == nil {
		t.Error("forbidden channel resolved")
	}
	if _, err := firstEntity(nil, ref); err == nil {
		t.Error("empty response resolved")
	}
}

func TestConvertMessage(t *testing.T) {
	t.Parallel()
	users := map[int64]*tg.User{11: {ID: 11, FirstName: "Ada", Username: "ada"}}

	text := &tg.Message{ID: 1, Date: 1751364000, Message: "hello", PeerID: &tg.PeerChannel{ChannelID: 5}}
	text.SetFromID(&tg.PeerUser{UserID: 11})
	raw := convertMessage(text, users)
	if raw.ID != 1 || raw.Text != "hello" || raw.SenderID != 11 || raw.Media != nil {
		t.Fatalf("text message = %+v", raw)
	}
	if raw.Sender == nil || raw.Sender.Username != "ada" {
		t.Errorf("sender = %+v", raw.Sender)
	}
	if want := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC); !raw.Date.Equal(want) {
		t.Errorf("date = %v, want %v", raw.Date, want)
	}

	photo := &tg.Message{ID: 2, Message: "trip", PeerID: &tg.PeerChannel{ChannelID: 5}}
	photo.SetMedia(&tg.MessageMediaPhoto{})
	raw = convertMessage(photo, users)
	if raw.Text != "" || raw.Media == nil || raw.Media.Kind != platform.MediaPhoto || raw.Media.Caption != "trip" {
		t.Errorf("photo message = %+v, media %+v", raw, raw.Media)
	}
	if raw.SenderID != 0 || raw.Sender != nil {
		t.Errorf("channel post has sender %d", raw.SenderID)
	}

	private := &tg.Message{ID: 3, Message: "dm", PeerID: &tg.PeerUser{UserID: 11}}
	if raw = convertMessage(private, users); raw.SenderID != 11 {
		t.Errorf("private message sender = %d", raw.SenderID)
	}
}

func TestConvertMedia(t *testing.T) {
	t.Parallel()

	voice := &tg.MessageMediaDocument{}
	voice.SetDocument(&tg.Document{
		Size:       2048,
		Attributes: []tg.DocumentAttributeClass{&tg.DocumentAttributeAudio{Voice: true, Duration: 7}},
	})
	got := convertMedia(voice)
	if got.Kind != platform.MediaDocument || !got.Voice || got.Duration != 7 || got.Size != 2048 {
		t.Errorf("voice = %+v", got)
	}

	file := &tg.MessageMediaDocument{}
	file.SetDocument(&tg.Document{
		Size:       10,
		Attributes: []tg.DocumentAttributeClass{&tg.DocumentAttributeFilename{FileName: "report.pdf"}},
	})
	if got := convertMedia(file); got.FileName != "report.pdf" || got.Voice {
		t.Errorf("file = %+v", got)
	}

	if got := convertMedia(&tg.MessageMediaGeo{}); got.Kind != platform.MediaOther || got.TypeName != "messageMediaGeo" {
		t.Errorf("geo = %+v", got)
	}
	if got := convertMedia(&tg.MessageMediaEmpty{}); got != nil {
		t.Errorf("empty media = %+v", got)
	}
}

func TestInputPeer(t *testing.T) {
	t.Parallel()

	peer, err := inputPeer(&platform.Entity{Kind: platform.EntityChannel, ID: 5, AccessHash: 9})
	if err != nil {
		t.Fatal(err)
	}
	if ch, ok := peer.(*tg.InputPeerChannel); !ok || ch.ChannelID != 5 || ch.AccessHash != 9 {
		t.Errorf("channel peer = %#v", peer)
	}
	if peer, _ := inputPeer(&platform.Entity{Kind: platform.EntityChat, ID: 4}); peer.(*tg.InputPeerChat).ChatID != 4 {
		t.Errorf("chat peer = %#v", peer)
	}
}

func TestNextDialogOffset(t *testing.T) {
	t.Parallel()

	dialogs := []tg.DialogClass{
		&tg.Dialog{Peer: &tg.PeerUser{UserID: 1}, TopMessage: 50},
		&tg.Dialog{Peer: &tg.PeerChannel{ChannelID: 5}, TopMessage: 40},
	}
	msgs := []tg.MessageClass{&tg.Message{ID: 50, Date: 200}, &tg.Message{ID: 40, Date: 100}}
	chats := []tg.ChatClass{&tg.Channel{ID: 5, AccessHash: 77}}

	req, ok := nextDialogOffset(dialogs, msgs, chats, nil)
	if !ok {
		t.Fatal("no offset")
	}
	if req.OffsetID != 40 || req.OffsetDate != 100 {
		t.Errorf("offset = id %d date %d", req.OffsetID, req.OffsetDate)
	}
	if p, ok := req.OffsetPeer.(*tg.InputPeerChannel); !ok || p.AccessHash != 77 {
		t.Errorf("offset peer = %#v", req.OffsetPeer)
	}
}

func TestMemorySession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := &memorySession{}
	if _, err := s.LoadSession(ctx); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("empty LoadSession error = %v", err)
	}
	if err := s.StoreSession(ctx, []byte("key")); err != nil {
		t.Fatal(err)
	}
	got, err := s.LoadSession(ctx)
	if err != nil || string(got) != "key" {
		t.Fatalf("LoadSession = %q, %v", got, err)
	}
	got[0] = 'X'
	if string(s.bytes()) != "key" {
		t.Error("stored session aliased the returned slice")
	}
}
