package evidence

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/roach88/custodian/internal/custody"
	"github.com/roach88/custodian/internal/detect"
	"github.com/roach88/custodian/internal/record"
)

// Ingest catalogs every artifact the detector emits until its channel
// closes. An artifact already received is cataloged even if ctx is canceled
// meanwhile. With autoSync, each new record is also mirrored in the
// background and marked "synced" once the backup confirms. A capture that
// fails is logged and skipped. Ingest returns the number of records stored.
func (s *Service) Ingest(ctx context.Context, d detect.Detector, autoSync bool) (int, error) {
	if autoSync && s.reconciler == nil {
		return 0, ErrNoBackup
	}
	artifacts, err := d.Watch(ctx)
	if err != nil {
		return 0, fmt.Errorf("ingest: %w", err)
	}

	var (
		stored int
		syncs  sync.WaitGroup
	)
	actx := context.WithoutCancel(ctx)
	for a := range artifacts {
		r, err := s.Capture(actx, Template(a), record.Source{FileReference: a.Path})
		if err != nil {
			s.logger.Error("ingest failed", "path", a.Path, "kind", a.Kind, "error", err)
			continue
		}
		stored++
		if !autoSync {
			continue
		}
		up, err := s.reconciler.Enqueue(actx, r)
		if err != nil {
			s.logger.Error("enqueue failed", "id", record.ID(r), "error", err)
			continue
		}
		syncs.Add(1)
		go func() {
			defer syncs.Done()
			<-up.Done()
			if up.Err() != nil {
				return
			}
			if _, err := s.append(actx, r, custody.ActionSynced); err != nil {
				s.logger.Error("mark synced failed", "id", record.ID(r), "error", err)
			}
		}()
	}
	syncs.Wait()
	return stored, nil
}

// Template builds the kind-specific attributes for a detected artifact.
// Image kinds read their pixel dimensions from the file header; an
// undecodable image is still captured with an empty resolution.
func Template(a detect.Artifact) record.Record {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(a.Path), "."))
	switch a.Kind {
	case record.KindPhoto:
		return record.Photo{Resolution: resolution(a.Path), Format: ext}
	case record.KindScreenshot:
		return record.Screenshot{Resolution: resolution(a.Path), Format: ext}
	case record.KindAudio:
		return record.Audio{Format: ext}
	case record.KindAIChatLog:
		return record.AIChatLog{ConversationTitle: strings.TrimSuffix(filepath.Base(a.Path), filepath.Ext(a.Path))}
	case record.KindScreenRecording:
		return record.ScreenRecording{}
	case record.KindVideo:
		return record.Video{}
	default:
		return record.Document{DocumentType: ext, Description: filepath.Base(a.Path)}
	}
}

func resolution(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%dx%d", cfg.Width, cfg.Height)
}
