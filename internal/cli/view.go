package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/roach88/custodian/internal/catalog"
	"github.com/roach88/custodian/internal/custody"
	"github.com/roach88/custodian/internal/record"
)

// RecordSummary is one line of list output.
type RecordSummary struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	CreatedAt   string `json:"created_at"`
	Checksum    string `json:"checksum_sha256"`
	FileSize    int64  `json:"file_size"`
	Events      int    `json:"events"`
	LastAction  string `json:"last_action"`
	PendingSync bool   `json:"pending_sync"`
}

func summarize(r record.Record) RecordSummary {
	h := r.Base()
	s := RecordSummary{
		ID:          h.ID.String(),
		Kind:        string(r.Kind()),
		CreatedAt:   h.CreatedAt.UTC().Format(time.RFC3339Nano),
		Checksum:    h.Checksum,
		FileSize:    h.FileSize,
		Events:      len(h.Custody),
		PendingSync: record.PendingSync(r),
	}
	if last, ok := h.Custody.Last(); ok {
		s.LastAction = string(last.Action)
	}
	return s
}

func (s RecordSummary) String() string {
	sum := s.Checksum
	if len(sum) > 12 {
		sum = sum[:12]
	}
	pending := ""
	if s.PendingSync {
		pending = " *"
	}
	return fmt.Sprintf("%s  %-16s  %s  %-12s  %8d  %s(%d)%s",
		s.ID, s.Kind, s.CreatedAt, sum, s.FileSize, s.LastAction, s.Events, pending)
}

// RecordList is the list command payload.
type RecordList struct {
	Records []RecordSummary `json:"records"`
}

func (l RecordList) String() string {
	if len(l.Records) == 0 {
		return "no records"
	}
	lines := make([]string, len(l.Records))
	for i, r := range l.Records {
		lines[i] = r.String()
	}
	return strings.Join(lines, "\n")
}

// EventView is one custody event.
type EventView struct {
	ID        string `json:"id"`
	Action    string `json:"action"`
	Timestamp string `json:"timestamp"`
	User      string `json:"user"`
	Device    string `json:"device"`
}

// RecordDetail is the show command payload.
type RecordDetail struct {
	RecordSummary
	File       string          `json:"file,omitempty"`
	ModifiedAt string          `json:"modified_at"`
	Attributes map[string]any  `json:"attributes"`
	Metadata   record.Metadata `json:"metadata"`
	Custody    []EventView     `json:"custody"`
}

func detail(r record.Record) RecordDetail {
	h := r.Base()
	d := RecordDetail{
		RecordSummary: summarize(r),
		ModifiedAt:    h.ModifiedAt.UTC().Format(time.RFC3339Nano),
		Metadata:      h.Metadata,
		Custody:       events(h.Custody),
	}
	if ref, ok := r.FileRef(); ok {
		d.File = ref
	}
	// Scalars only fails for unknown kinds, which a stored record never has.
	d.Attributes, _ = catalog.Scalars(r)
	return d
}

func events(chain custody.Chain) []EventView {
	out := make([]EventView, len(chain))
	for i, e := range chain {
		out[i] = EventView{
			ID:        e.ID.String(),
			Action:    string(e.Action),
			Timestamp: e.Timestamp.UTC().Format(time.RFC3339Nano),
			User:      e.UserIdentifier,
			Device:    e.DeviceIdentifier,
		}
	}
	return out
}

func (d RecordDetail) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "id:        %s\n", d.ID)
	fmt.Fprintf(&b, "kind:      %s\n", d.Kind)
	fmt.Fprintf(&b, "created:   %s\n", d.CreatedAt)
	fmt.Fprintf(&b, "modified:  %s\n", d.ModifiedAt)
	fmt.Fprintf(&b, "checksum:  %s\n", d.Checksum)
	if d.File != "" {
		fmt.Fprintf(&b, "file:      %s (%d bytes)\n", d.File, d.FileSize)
	}
	fmt.Fprintf(&b, "captured by %s on %s (%s, %s)\n",
		d.Metadata.UserIdentifier, d.Metadata.DeviceModel, d.Metadata.OSVersion, d.Metadata.Timezone)
	b.WriteString("custody:\n")
	for _, e := range d.Custody {
		fmt.Fprintf(&b, "  %s  %-9s %s@%s\n", e.Timestamp, e.Action, e.User, e.Device)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Message is a one-line text payload.
type Message struct {
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
}

func (m Message) String() string { return m.Message }
