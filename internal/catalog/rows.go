package catalog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/custodian/internal/custody"
	"github.com/roach88/custodian/internal/record"
)

// commonColumns are shared by every kind table, in schema order.
var commonColumns = []string{
	"id",
	"created_at",
	"modified_at",
	"device_identifier",
	"checksum_sha256",
	"file_url",
	"file_size",
	"metadata_json",
	"custody_json",
}

// tableSpec maps a record kind onto its table.
type tableSpec struct {
	kind    record.Kind
	table   string
	columns []string // kind-specific columns

	insertSQL string
	selectSQL string
	byIDSQL   string
	countSQL  string
	updateSQL string
}

func newTableSpec(kind record.Kind, table string, columns ...string) *tableSpec {
	all := append(append([]string{}, commonColumns...), columns...)
	named := make([]string, len(all))
	for i, c := range all {
		named[i] = ":" + c
	}
	list := strings.Join(all, ", ")

	return &tableSpec{
		kind:    kind,
		table:   table,
		columns: columns,
		insertSQL: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(id) DO NOTHING",
			table, list, strings.Join(named, ", ")),
		selectSQL: fmt.Sprintf("SELECT %s FROM %s ORDER BY created_at DESC, id ASC", list, table),
		byIDSQL:   fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", list, table),
		countSQL:  fmt.Sprintf("SELECT COUNT(*) FROM %s", table),
		updateSQL: fmt.Sprintf("UPDATE %s SET custody_json = :custody_json, modified_at = :modified_at WHERE id = :id", table),
	}
}

var tables = map[record.Kind]*tableSpec{
	record.KindScreenRecording: newTableSpec(record.KindScreenRecording, "screen_recordings", "duration", "resolution", "frame_rate"),
	record.KindVideo:           newTableSpec(record.KindVideo, "videos", "duration", "resolution", "codec", "frame_rate"),
	record.KindPhoto:           newTableSpec(record.KindPhoto, "photos", "resolution", "format"),
	record.KindAudio:           newTableSpec(record.KindAudio, "audio_recordings", "duration", "format", "sample_rate"),
	record.KindScreenshot:      newTableSpec(record.KindScreenshot, "screenshots", "resolution", "format"),
	record.KindAIChatLog:       newTableSpec(record.KindAIChatLog, "ai_chat_logs", "conversation_title", "message_count"),
	record.KindDocument:        newTableSpec(record.KindDocument, "documents", "document_type", "description"),
}

func specFor(kind record.Kind) (*tableSpec, error) {
	t, ok := tables[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", record.ErrUnknownKind, kind)
	}
	return t, nil
}

// TableName returns the table holding records of kind.
func TableName(kind record.Kind) (string, error) {
	t, err := specFor(kind)
	if err != nil {
		return "", err
	}
	return t.table, nil
}

// row is the union of every kind table's columns. Columns a table lacks
// keep their zero value.
type row struct {
	ID               string         `db:"id"`
	CreatedAt        float64        `db:"created_at"`
	ModifiedAt       float64        `db:"modified_at"`
	DeviceIdentifier string         `db:"device_identifier"`
	Checksum         string         `db:"checksum_sha256"`
	FileURL          sql.NullString `db:"file_url"`
	FileSize         int64          `db:"file_size"`
	MetadataJSON     string         `db:"metadata_json"`
	CustodyJSON      string         `db:"custody_json"`

	Duration          float64 `db:"duration"`
	Resolution        string  `db:"resolution"`
	FrameRate         float64 `db:"frame_rate"`
	Codec             string  `db:"codec"`
	Format            string  `db:"format"`
	SampleRate        float64 `db:"sample_rate"`
	ConversationTitle string  `db:"conversation_title"`
	MessageCount      int64   `db:"message_count"`
	DocumentType      string  `db:"document_type"`
	Description       string  `db:"description"`
}

// sameEvidence reports whether two rows agree on every write-once column.
// modified_at and custody_json are excluded: they move with the chain.
func (r row) sameEvidence(o row) bool {
	a, b := r, o
	a.ModifiedAt, b.ModifiedAt = 0, 0
	a.CustodyJSON, b.CustodyJSON = "", ""
	return a == b
}

// UnixSeconds converts t to floating point unix seconds at microsecond
// precision, the catalog's timestamp encoding.
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixMicro()) / 1e6
}

// FromUnixSeconds reverses UnixSeconds.
func FromUnixSeconds(f float64) time.Time {
	return time.UnixMicro(int64(math.Round(f * 1e6))).UTC()
}

func durationSeconds(d time.Duration) float64 {
	return d.Seconds()
}

func fromDurationSeconds(f float64) time.Duration {
	return time.Duration(math.Round(f*1e6)) * time.Microsecond
}

func encodeRow(r record.Record) (row, error) {
	h := r.Base()

	meta, err := json.Marshal(h.Metadata)
	if err != nil {
		return row{}, fmt.Errorf("encode metadata: %w", err)
	}
	chain, err := json.Marshal(h.Custody)
	if err != nil {
		return row{}, fmt.Errorf("encode custody: %w", err)
	}

	out := row{
		ID:               h.ID.String(),
		CreatedAt:        UnixSeconds(h.CreatedAt),
		ModifiedAt:       UnixSeconds(h.ModifiedAt),
		DeviceIdentifier: h.DeviceIdentifier,
		Checksum:         h.Checksum,
		FileSize:         h.FileSize,
		MetadataJSON:     string(meta),
		CustodyJSON:      string(chain),
	}
	if h.FileReference != nil {
		out.FileURL = sql.NullString{String: *h.FileReference, Valid: true}
	}

	switch v := r.(type) {
	case record.ScreenRecording:
		out.Duration = durationSeconds(v.Duration)
		out.Resolution = v.Resolution
		out.FrameRate = v.FrameRate
	case record.Video:
		out.Duration = durationSeconds(v.Duration)
		out.Resolution = v.Resolution
		out.Codec = v.Codec
		out.FrameRate = v.FrameRate
	case record.Photo:
		out.Resolution = v.Resolution
		out.Format = v.Format
	case record.Audio:
		out.Duration = durationSeconds(v.Duration)
		out.Format = v.Format
		out.SampleRate = v.SampleRate
	case record.Screenshot:
		out.Resolution = v.Resolution
		out.Format = v.Format
	case record.AIChatLog:
		out.ConversationTitle = v.ConversationTitle
		out.MessageCount = int64(v.MessageCount)
	case record.Document:
		out.DocumentType = v.DocumentType
		out.Description = v.Description
	default:
		return row{}, fmt.Errorf("%w: %T", record.ErrUnknownKind, r)
	}
	return out, nil
}

// decodeRow rebuilds a record from its stored columns. Stored values are
// returned as-is; nothing is recomputed.
func decodeRow(kind record.Kind, in row) (record.Record, error) {
	id, err := uuid.Parse(in.ID)
	if err != nil {
		return nil, fmt.Errorf("decode id %q: %w", in.ID, err)
	}

	var meta record.Metadata
	if err := json.Unmarshal([]byte(in.MetadataJSON), &meta); err != nil {
		return nil, fmt.Errorf("decode metadata for %s: %w", in.ID, err)
	}
	var chain custody.Chain
	if err := json.Unmarshal([]byte(in.CustodyJSON), &chain); err != nil {
		return nil, fmt.Errorf("decode custody for %s: %w", in.ID, err)
	}

	h := record.Header{
		ID:               id,
		CreatedAt:        FromUnixSeconds(in.CreatedAt),
		ModifiedAt:       FromUnixSeconds(in.ModifiedAt),
		DeviceIdentifier: in.DeviceIdentifier,
		Checksum:         in.Checksum,
		FileSize:         in.FileSize,
		Metadata:         meta,
		Custody:          chain,
	}
	if in.FileURL.Valid {
		ref := in.FileURL.String
		h.FileReference = &ref
	}

	switch kind {
	case record.KindScreenRecording:
		return record.ScreenRecording{Header: h, Duration: fromDurationSeconds(in.Duration), Resolution: in.Resolution, FrameRate: in.FrameRate}, nil
	case record.KindVideo:
		return record.Video{Header: h, Duration: fromDurationSeconds(in.Duration), Resolution: in.Resolution, Codec: in.Codec, FrameRate: in.FrameRate}, nil
	case record.KindPhoto:
		return record.Photo{Header: h, Resolution: in.Resolution, Format: in.Format}, nil
	case record.KindAudio:
		return record.Audio{Header: h, Duration: fromDurationSeconds(in.Duration), Format: in.Format, SampleRate: in.SampleRate}, nil
	case record.KindScreenshot:
		return record.Screenshot{Header: h, Resolution: in.Resolution, Format: in.Format}, nil
	case record.KindAIChatLog:
		return record.AIChatLog{Header: h, ConversationTitle: in.ConversationTitle, MessageCount: int(in.MessageCount)}, nil
	case record.KindDocument:
		return record.Document{Header: h, DocumentType: in.DocumentType, Description: in.Description}, nil
	default:
		return nil, fmt.Errorf("%w: %q", record.ErrUnknownKind, kind)
	}
}

// Scalars returns the scalar columns of r, keyed by column name, exactly as
// Save would store them. The metadata and custody documents are left out.
func Scalars(r record.Record) (map[string]any, error) {
	spec, err := specFor(r.Kind())
	if err != nil {
		return nil, err
	}
	in, err := encodeRow(r)
	if err != nil {
		return nil, err
	}

	out := make(map[string]any, len(commonColumns)+len(spec.columns))
	for _, col := range append(append([]string{}, commonColumns...), spec.columns...) {
		if col == "metadata_json" || col == "custody_json" {
			continue
		}
		out[col] = in.value(col)
	}
	return out, nil
}

func (r row) value(col string) any {
	switch col {
	case "id":
		return r.ID
	case "created_at":
		return r.CreatedAt
	case "modified_at":
		return r.ModifiedAt
	case "device_identifier":
		return r.DeviceIdentifier
	case "checksum_sha256":
		return r.Checksum
	case "file_url":
		if !r.FileURL.Valid {
			return nil
		}
		return r.FileURL.String
	case "file_size":
		return r.FileSize
	case "metadata_json":
		return r.MetadataJSON
	case "custody_json":
		return r.CustodyJSON
	case "duration":
		return r.Duration
	case "resolution":
		return r.Resolution
	case "frame_rate":
		return r.FrameRate
	case "codec":
		return r.Codec
	case "format":
		return r.Format
	case "sample_rate":
		return r.SampleRate
	case "conversation_title":
		return r.ConversationTitle
	case "message_count":
		return r.MessageCount
	case "document_type":
		return r.DocumentType
	case "description":
		return r.Description
	default:
		return nil
	}
}
