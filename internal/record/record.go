package record

import (
	"time"

	"github.com/google/uuid"

	"github.com/roach88/custodian/internal/custody"
)

// Header is shared by every record variant.
type Header struct {
	ID               uuid.UUID
	CreatedAt        time.Time
	ModifiedAt       time.Time
	DeviceIdentifier string
	Checksum         string
	FileReference    *string
	FileSize         int64
	Metadata         Metadata
	Custody          custody.Chain
}

// Base returns a copy of the header.
func (h Header) Base() Header { return h }

// StoredChecksum returns the capture-time digest.
func (h Header) StoredChecksum() string { return h.Checksum }

// FileRef returns the artifact path, if the record has one.
func (h Header) FileRef() (string, bool) {
	if h.FileReference == nil {
		return "", false
	}
	return *h.FileReference, true
}

// Record is implemented by exactly the variants in this package.
type Record interface {
	Kind() Kind
	Base() Header
	StoredChecksum() string
	FileRef() (string, bool)
	isRecord()
}

// ScreenRecording is a captured screen recording.
type ScreenRecording struct {
	Header
	Duration   time.Duration
	Resolution string
	FrameRate  float64
}

// Video is a camera video.
type Video struct {
	Header
	Duration   time.Duration
	Resolution string
	Codec      string
	FrameRate  float64
}

// Photo is a still camera image.
type Photo struct {
	Header
	Resolution string
	Format     string
}

// Audio is a microphone recording.
type Audio struct {
	Header
	Duration   time.Duration
	Format     string
	SampleRate float64
}

// Screenshot is a captured screen image.
type Screenshot struct {
	Header
	Resolution string
	Format     string
}

// AIChatLog is an exported AI assistant conversation.
type AIChatLog struct {
	Header
	ConversationTitle string
	MessageCount      int
}

// Document is any other file submitted as evidence.
type Document struct {
	Header
	DocumentType string
	Description  string
}

func (ScreenRecording) Kind() Kind { return KindScreenRecording }
func (Video) Kind() Kind           { return KindVideo }
func (Photo) Kind() Kind           { return KindPhoto }
func (Audio) Kind() Kind           { return KindAudio }
func (Screenshot) Kind() Kind      { return KindScreenshot }
func (AIChatLog) Kind() Kind       { return KindAIChatLog }
func (Document) Kind() Kind        { return KindDocument }

func (ScreenRecording) isRecord() {}
func (Video) isRecord()           {}
func (Photo) isRecord()           {}
func (Audio) isRecord()           {}
func (Screenshot) isRecord()      {}
func (AIChatLog) isRecord()       {}
func (Document) isRecord()        {}

// Blank returns the zero variant for k.
func Blank(k Kind) (Record, error) {
	switch k {
	case KindScreenRecording:
		return ScreenRecording{}, nil
	case KindVideo:
		return Video{}, nil
	case KindPhoto:
		return Photo{}, nil
	case KindAudio:
		return Audio{}, nil
	case KindScreenshot:
		return Screenshot{}, nil
	case KindAIChatLog:
		return AIChatLog{}, nil
	case KindDocument:
		return Document{}, nil
	default:
		return nil, ErrUnknownKind
	}
}

// WithHeader returns a copy of r carrying h. Kind-specific fields are kept.
func WithHeader(r Record, h Header) Record {
	switch v := r.(type) {
	case ScreenRecording:
		v.Header = h
		return v
	case Video:
		v.Header = h
		return v
	case Photo:
		v.Header = h
		return v
	case Audio:
		v.Header = h
		return v
	case Screenshot:
		v.Header = h
		return v
	case AIChatLog:
		v.Header = h
		return v
	case Document:
		v.Header = h
		return v
	default:
		panic("record: unhandled variant")
	}
}

// WithCustody returns a copy of r whose chain is chain and whose ModifiedAt
// is the last event's timestamp. No evidentiary field changes.
func WithCustody(r Record, chain custody.Chain) Record {
	h := r.Base()
	h.Custody = chain.Clone()
	if last, ok := chain.Last(); ok && last.Timestamp.After(h.ModifiedAt) {
		h.ModifiedAt = last.Timestamp
	}
	return WithHeader(r, h)
}

// ID is shorthand for r.Base().ID.
func ID(r Record) uuid.UUID { return r.Base().ID }

// PendingSync reports whether r has custody events that have not been
// mirrored: true unless the most recent event is "synced".
func PendingSync(r Record) bool {
	last, ok := r.Base().Custody.Last()
	return !ok || last.Action != custody.ActionSynced
}
