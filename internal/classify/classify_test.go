package classify

import (
	"testing"

	"github.com/edgard/tgcollector/internal/platform"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		msg      *platform.RawMessage
		wantKind Kind
		wantText string
		wantOK   bool
	}{
		{
			name:   "empty message is dropped",
			msg:    &platform.RawMessage{ID: 1},
			wantOK: false,
		},
		{
			name:   "whitespace only is dropped",
			msg:    &platform.RawMessage{ID: 1, Text: "  \n"},
			wantOK: false,
		},
		{
			name:     "plain text",
			msg:      &platform.RawMessage{Text: "hello"},
			wantKind: KindText, wantText: "hello", wantOK: true,
		},
		{
			name:     "voice with duration",
			msg:      &platform.RawMessage{Media: &platform.Media{Kind: platform.MediaDocument, Voice: true, Duration: 12}},
			wantKind: KindVoice, wantText: "[Voice message: 12s]", wantOK: true,
		},
		{
			name:     "voice without duration",
			msg:      &platform.RawMessage{Media: &platform.Media{Kind: platform.MediaDocument, Voice: true}},
			wantKind: KindVoice, wantText: "[Voice message]", wantOK: true,
		},
		{
			name:     "document with name and size",
			msg:      &platform.RawMessage{Media: &platform.Media{Kind: platform.MediaDocument, FileName: "report.pdf", Size: 2048}},
			wantKind: KindDocument, wantText: "[Document: report.pdf(2048 bytes)]", wantOK: true,
		},
		{
			name:     "document without name or size",
			msg:      &platform.RawMessage{Media: &platform.Media{Kind: platform.MediaDocument}},
			wantKind: KindDocument, wantText: "[Document: unnamed_file]", wantOK: true,
		},
		{
			name:     "photo with caption",
			msg:      &platform.RawMessage{Media: &platform.Media{Kind: platform.MediaPhoto, Caption: "trip"}},
			wantKind: KindPhoto, wantText: "[Photo: trip]", wantOK: true,
		},
		{
			name:     "photo without caption",
			msg:      &platform.RawMessage{Media: &platform.Media{Kind: platform.MediaPhoto}},
			wantKind: KindPhoto, wantText: "[Photo]", wantOK: true,
		},
		{
			name:     "other media",
			msg:      &platform.RawMessage{Media: &platform.Media{Kind: platform.MediaOther, TypeName: "messageMediaGeo"}},
			wantKind: KindOther, wantText: "[Unsupported message type: messageMediaGeo]", wantOK: true,
		},
		{
			name:     "text with document",
			msg:      &platform.RawMessage{Text: "see attached", Media: &platform.Media{Kind: platform.MediaDocument, FileName: "a.txt", Size: 3}},
			wantKind: KindDocument, wantText: "see attached [Document: a.txt(3 bytes)]", wantOK: true,
		},
		{
			name:     "text with voice",
			msg:      &platform.RawMessage{Text: "listen", Media: &platform.Media{Kind: platform.MediaDocument, Voice: true, Duration: 4}},
			wantKind: KindVoice, wantText: "listen [Voice message: 4s]", wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			kind, text, ok := Classify(tt.msg)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if kind != tt.wantKind || text != tt.wantText {
				t.Errorf("Classify() = (%s, %q), want (%s, %q)", kind, text, tt.wantKind, tt.wantText)
			}
		})
	}
}

func TestClassifyTotality(t *testing.T) {
	t.Parallel()

	valid := map[Kind]bool{KindText: true, KindVoice: true, KindDocument: true, KindPhoto: true, KindOther: true}
	kinds := []platform.MediaKind{platform.MediaPhoto, platform.MediaDocument, platform.MediaOther, 0}
	texts := []string{"", "x"}

	for _, text := range texts {
		for _, mk := range kinds {
			for _, voice := range []bool{false, true} {
				msg := &platform.RawMessage{Text: text, Media: &platform.Media{Kind: mk, Voice: voice}}
				kind, _, ok := Classify(msg)
				if !ok || !valid[kind] {
					t.Errorf("Classify(%+v) = %q, %v", msg.Media, kind, ok)
				}
			}
		}
	}
	if _, _, ok := Classify(nil); ok {
		t.Error("Classify(nil) reported ok")
	}
}
