package detect

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/roach88/custodian/internal/record"
)

// Poller scans Dir every Interval for files matching Patterns.
//
// Files present when Watch starts are never emitted. A new file is emitted
// once two consecutive scans see the same non-zero size, so artifacts still
// being written are not picked up early.
type Poller struct {
	Dir      string
	Patterns []string
	Interval time.Duration
	Kind     record.Kind
	Logger   *slog.Logger
}

type observation struct {
	size    int64
	modTime time.Time
}

// Watch implements Detector.
func (p *Poller) Watch(ctx context.Context) (<-chan Artifact, error) {
	if p.Interval <= 0 {
		return nil, fmt.Errorf("detect: poll interval must be positive")
	}
	for _, pat := range p.Patterns {
		if _, err := filepath.Match(pat, ""); err != nil {
			return nil, fmt.Errorf("detect: pattern %q: %w", pat, err)
		}
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	kind := p.Kind
	if kind == "" {
		kind = record.KindScreenshot
	}

	existing, err := p.scan()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(existing))
	for path := range existing {
		seen[path] = true
	}

	out := make(chan Artifact)
	go func() {
		defer close(out)
		ticker := time.NewTicker(p.Interval)
		defer ticker.Stop()

		pending := make(map[string]observation)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			current, err := p.scan()
			if err != nil {
				logger.Warn("scan failed", "dir", p.Dir, "error", err)
				continue
			}

			var ready []string
			for path, obs := range current {
				if seen[path] {
					continue
				}
				prev, ok := pending[path]
				if ok && obs.size > 0 && prev == obs {
					ready = append(ready, path)
					continue
				}
				pending[path] = obs
			}
			for path := range pending {
				if _, ok := current[path]; !ok {
					delete(pending, path)
				}
			}

			sort.Strings(ready)
			for _, path := range ready {
				seen[path] = true
				delete(pending, path)
				a := Artifact{Path: path, Kind: kind, Size: current[path].size, DetectedAt: time.Now()}
				select {
				case out <- a:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (p *Poller) scan() (map[string]observation, error) {
	entries, err := os.ReadDir(p.Dir)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	out := make(map[string]observation)
	for _, e := range entries {
		if e.IsDir() || !p.matches(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out[filepath.Join(p.Dir, e.Name())] = observation{size: info.Size(), modTime: info.ModTime()}
	}
	return out, nil
}

func (p *Poller) matches(name string) bool {
	for _, pat := range p.Patterns {
		if ok, _ := filepath.Match(pat, name); ok {
			return true
		}
	}
	return false
}
