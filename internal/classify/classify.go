// Package classify maps raw platform messages to a stored kind and a
// textual rendering.
package classify

import (
	"fmt"
	"strings"

	"github.com/edgard/tgcollector/internal/platform"
)

// Kind is the stored message kind.
type Kind string

const (
	KindText     Kind = "TEXT"
	KindVoice    Kind = "VOICE"
	KindDocument Kind = "DOCUMENT"
	KindPhoto    Kind = "PHOTO"
	KindOther    Kind = "OTHER"
)

const unnamedFile = "unnamed_file"

// Classify returns the kind and rendered text of msg. ok is false when the
// message has neither text nor media; such messages are not stored.
//
// When a message has both text and media, the media annotation follows the
// text, separated by a space, and the kind is the media kind.
func Classify(msg *platform.RawMessage) (kind Kind, text string, ok bool) {
	if msg == nil {
		return "", "", false
	}
	hasText := strings.TrimSpace(msg.Text) != ""
	if !hasText && msg.Media == nil {
		return "", "", false
	}
	if msg.Media == nil {
		return KindText, msg.Text, true
	}

	kind, annotation := describeMedia(msg.Media)
	if hasText {
		return kind, msg.Text + " " + annotation, true
	}
	return kind, annotation, true
}

func describeMedia(m *platform.Media) (Kind, string) {
	switch {
	case m.Kind == platform.MediaDocument && m.Voice:
		if m.Duration > 0 {
			return KindVoice, fmt.Sprintf("[Voice message: %ds]", m.Duration)
		}
		return KindVoice, "[Voice message]"

	case m.Kind == platform.MediaDocument:
		name := m.FileName
		if name == "" {
			name = unnamedFile
		}
		if m.Size > 0 {
			return KindDocument, fmt.Sprintf("[Document: %s(%d bytes)]", name, m.Size)
		}
		return KindDocument, fmt.Sprintf("[Document: %s]", name)

	case m.Kind == platform.MediaPhoto:
		if caption := strings.TrimSpace(m.Caption); caption != "" {
			return KindPhoto, fmt.Sprintf("[Photo: %s]", caption)
		}
		return KindPhoto, "[Photo]"

	default:
		typeName := m.TypeName
		if typeName == "" {
			typeName = "unknown"
		}
		return KindOther, fmt.Sprintf("[Unsupported message type: %s]", typeName)
	}
}
