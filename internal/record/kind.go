package record

import (
	"errors"
	"fmt"
)

// ErrUnknownKind is returned for kinds outside Kinds().
var ErrUnknownKind = errors.New("record: unknown kind")

// Kind tags a record variant.
type Kind string

const (
	KindScreenRecording Kind = "screen_recording"
	KindVideo           Kind = "video"
	KindPhoto           Kind = "photo"
	KindAudio           Kind = "audio"
	KindScreenshot      Kind = "screenshot"
	KindAIChatLog       Kind = "ai_chat_log"
	KindDocument        Kind = "document"
)

// Kinds lists every record kind.
func Kinds() []Kind {
	return []Kind{
		KindScreenRecording,
		KindVideo,
		KindPhoto,
		KindAudio,
		KindScreenshot,
		KindAIChatLog,
		KindDocument,
	}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds() {
		if k == known {
			return true
		}
	}
	return false
}

// ParseKind converts s to a Kind. Hyphenated spellings are accepted.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if k.Valid() {
		return k, nil
	}
	for _, known := range Kinds() {
		if s == hyphenate(string(known)) {
			return known, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

func hyphenate(s string) string {
	b := []byte(s)
	for i := range b {
		if b[i] == '_' {
			b[i] = '-'
		}
	}
	return string(b)
}
