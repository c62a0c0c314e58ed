package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/custodian/internal/detect"
	"github.com/roach88/custodian/internal/record"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Dir         string
	Interval    time.Duration
	Patterns    []string
	Kind        string
	Sync        bool
	MetricsAddr string
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Catalog new captures as they appear",
		Long: `Watch a directory for finished captures (screenshots by default) and
catalog each one as it appears. Files already present when watching starts
are ignored. With --sync every new record is also mirrored to the backup.

Runs until interrupted. --metrics-addr exposes Prometheus metrics and a
health check while watching.

Example:
  custodian watch --dir ~/Desktop
  custodian watch --dir ~/Pictures --pattern '*.jpg' --kind photo --sync --metrics-addr :9464`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Dir, "dir", "", "directory to watch (default watch.dir from config)")
	cmd.Flags().DurationVar(&opts.Interval, "interval", 0, "poll interval (default watch.interval from config)")
	cmd.Flags().StringSliceVar(&opts.Patterns, "pattern", nil, "file name glob, repeatable (default watch.patterns from config)")
	cmd.Flags().StringVarP(&opts.Kind, "kind", "k", string(record.KindScreenshot), "kind of the watched captures")
	cmd.Flags().BoolVar(&opts.Sync, "sync", false, "mirror each new record to the backup")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve /metrics and /healthz on this address")

	return cmd
}

func runWatch(opts *WatchOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	kind, err := record.ParseKind(opts.Kind)
	if err != nil {
		return formatter.Fail("invalid kind", err)
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openSession(ctx, opts.RootOptions, cmd, opts.Sync)
	if err != nil {
		return formatter.Fail("failed to open catalog", err)
	}
	defer s.Close()

	poller := &detect.Poller{
		Dir:      firstNonEmpty(opts.Dir, s.cfg.Watch.Dir),
		Patterns: s.cfg.Watch.Patterns,
		Interval: s.cfg.Watch.Interval,
		Kind:     kind,
		Logger:   s.logger,
	}
	if len(opts.Patterns) > 0 {
		poller.Patterns = opts.Patterns
	}
	if opts.Interval > 0 {
		poller.Interval = opts.Interval
	}
	if poller.Dir == "" {
		return formatter.Fail("invalid arguments", fmt.Errorf("%w: no directory to watch (--dir or watch.dir)", errBadArgs))
	}

	formatter.VerboseLog("watching %s for %v every %s", poller.Dir, poller.Patterns, poller.Interval)

	var stored int
	g, gctx := errgroup.WithContext(ctx)
	if opts.MetricsAddr != "" {
		g.Go(func() error {
			return s.metrics.Serve(gctx, opts.MetricsAddr, s.logger)
		})
	}
	g.Go(func() error {
		n, err := s.svc.Ingest(gctx, poller, opts.Sync)
		stored = n
		return err
	})
	if err := g.Wait(); err != nil {
		return formatter.Fail("watch failed", err)
	}

	return formatter.Success(Message{
		Message: fmt.Sprintf("stopped watching %s: %d records stored", poller.Dir, stored),
		Fields:  map[string]any{"dir": poller.Dir, "stored": stored},
	})
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
