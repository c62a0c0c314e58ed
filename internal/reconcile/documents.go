package reconcile

import (
	"encoding/json"
	"fmt"
	"mime"
	"path/filepath"

	"github.com/roach88/custodian/internal/catalog"
	"github.com/roach88/custodian/internal/record"
)

// Object names inside a record's directory.
const (
	RecordDocument   = "record.json"
	MetadataDocument = "metadata.json"
	CustodyDocument  = "custody.json"
	FileObject       = "file"
)

const jsonContentType = "application/json"

// Snapshot is the immutable upload payload for one record, captured at
// enqueue time.
type Snapshot struct {
	Record    record.Record
	Container string
	Documents map[string][]byte
}

// Container returns the backup container for kind.
func Container(kind record.Kind) (string, error) {
	return catalog.TableName(kind)
}

// TakeSnapshot serializes r into its remote documents.
func TakeSnapshot(r record.Record) (*Snapshot, error) {
	container, err := Container(r.Kind())
	if err != nil {
		return nil, err
	}
	h := r.Base()

	scalars, err := catalog.Scalars(r)
	if err != nil {
		return nil, err
	}
	scalars["kind"] = string(r.Kind())

	docs := make(map[string][]byte, 3)
	for name, v := range map[string]any{
		RecordDocument:   scalars,
		MetadataDocument: h.Metadata,
		CustodyDocument:  h.Custody,
	} {
		b, err := encodeDocument(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", name, err)
		}
		docs[name] = b
	}

	return &Snapshot{
		Record:    record.WithHeader(r, cloneHeader(h)),
		Container: container,
		Documents: docs,
	}, nil
}

// Key returns the object key of name for this snapshot's record.
func (s *Snapshot) Key(name string) string {
	return record.ID(s.Record).String() + "/" + name
}

func encodeDocument(v any) ([]byte, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func cloneHeader(h record.Header) record.Header {
	h.Custody = h.Custody.Clone()
	if h.FileReference != nil {
		ref := *h.FileReference
		h.FileReference = &ref
	}
	return h
}

func contentTypeFor(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "application/octet-stream"
}
