package record

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/custodian/internal/custody"
	"github.com/roach88/custodian/internal/integrity"
)

// ErrUnreadableSource is returned when a capture names a file that cannot be
// read. No record is constructed in that case.
var ErrUnreadableSource = errors.New("record: unreadable source")

// ErrInvalidAttributes is returned for negative durations, rates or counts.
var ErrInvalidAttributes = errors.New("record: invalid attributes")

// Source is what a capture collaborator hands over alongside the
// kind-specific attributes.
type Source struct {
	// FileReference is the path of the finished artifact. Empty means the
	// record has no underlying file (zero size, empty checksum).
	FileReference string

	Location *Location
}

// Factory turns finished captures into records: it hashes the artifact,
// snapshots metadata and seeds the custody chain.
type Factory struct {
	ledger *custody.Ledger
	env    Environment
	newID  func() uuid.UUID
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithRecordIDs overrides record id generation.
func WithRecordIDs(f func() uuid.UUID) FactoryOption {
	return func(fa *Factory) { fa.newID = f }
}

// NewFactory creates a Factory.
func NewFactory(ledger *custody.Ledger, env Environment, opts ...FactoryOption) *Factory {
	f := &Factory{ledger: ledger, env: env, newID: uuid.New}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create builds a record of template's kind. Kind-specific attributes are
// taken from template; its Header is ignored.
func (f *Factory) Create(ctx context.Context, template Record, src Source) (Record, error) {
	if template == nil {
		return nil, ErrUnknownKind
	}
	attrs, err := normalizeAttributes(template)
	if err != nil {
		return nil, err
	}

	var (
		fileRef  *string
		checksum string
		size     int64
	)
	if src.FileReference != "" {
		checksum, size, err = integrity.ChecksumFile(src.FileReference)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnreadableSource, err)
		}
		path := src.FileReference
		fileRef = &path
	}

	actor, err := f.ledger.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	chain, err := f.ledger.AppendAs(nil, custody.ActionCreated, actor)
	if err != nil {
		return nil, err
	}
	now := chain[0].Timestamp

	h := Header{
		ID:               f.newID(),
		CreatedAt:        now,
		ModifiedAt:       now,
		DeviceIdentifier: actor.Device,
		Checksum:         checksum,
		FileReference:    fileRef,
		FileSize:         size,
		Metadata:         f.metadata(now, actor, src.Location),
		Custody:          chain,
	}
	return WithHeader(attrs, h), nil
}

func (f *Factory) metadata(captured time.Time, actor custody.Identity, loc *Location) Metadata {
	m := Metadata{
		CaptureDate:    captured,
		DeviceModel:    nfc(f.env.DeviceModel),
		OSVersion:      nfc(f.env.OSVersion),
		AppVersion:     nfc(f.env.AppVersion),
		Timezone:       f.env.Timezone,
		UserIdentifier: actor.User,
	}
	if loc != nil {
		lat, lon := loc.Latitude, loc.Longitude
		m.Latitude = &lat
		m.Longitude = &lon
		if loc.Accuracy != nil {
			acc := *loc.Accuracy
			m.LocationAccuracy = &acc
		}
	}
	return m
}

// normalizeAttributes validates kind-specific fields and brings them to the
// precision and form the catalog persists.
func normalizeAttributes(r Record) (Record, error) {
	switch v := r.(type) {
	case ScreenRecording:
		if v.Duration < 0 || v.FrameRate < 0 {
			return nil, fmt.Errorf("%w: screen recording", ErrInvalidAttributes)
		}
		v.Duration = roundDuration(v.Duration)
		v.Resolution = nfc(v.Resolution)
		return v, nil
	case Video:
		if v.Duration < 0 || v.FrameRate < 0 {
			return nil, fmt.Errorf("%w: video", ErrInvalidAttributes)
		}
		v.Duration = roundDuration(v.Duration)
		v.Resolution = nfc(v.Resolution)
		v.Codec = nfc(v.Codec)
		return v, nil
	case Photo:
		v.Resolution = nfc(v.Resolution)
		v.Format = nfc(v.Format)
		return v, nil
	case Audio:
		if v.Duration < 0 || v.SampleRate < 0 {
			return nil, fmt.Errorf("%w: audio", ErrInvalidAttributes)
		}
		v.Duration = roundDuration(v.Duration)
		v.Format = nfc(v.Format)
		return v, nil
	case Screenshot:
		v.Resolution = nfc(v.Resolution)
		v.Format = nfc(v.Format)
		return v, nil
	case AIChatLog:
		if v.MessageCount < 0 {
			return nil, fmt.Errorf("%w: message count %d", ErrInvalidAttributes, v.MessageCount)
		}
		v.ConversationTitle = nfc(v.ConversationTitle)
		return v, nil
	case Document:
		v.DocumentType = nfc(v.DocumentType)
		v.Description = nfc(v.Description)
		return v, nil
	default:
		return nil, ErrUnknownKind
	}
}

func nfc(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// roundDuration keeps durations at the microsecond resolution they are
// persisted with.
func roundDuration(d time.Duration) time.Duration {
	return d.Round(time.Microsecond)
}
