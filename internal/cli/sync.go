package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/custodian/internal/evidence"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	Kind string
}

// SyncView is the sync command payload.
type SyncView struct {
	evidence.SyncReport
}

func (v SyncView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d pending, %d synced, %d failed", v.Attempted, v.Synced, len(v.Failed))
	ids := make([]string, 0, len(v.Failed))
	for id := range v.Failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(&b, "\n  %s: %s", id, v.Failed[id])
	}
	return b.String()
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync [id]",
		Short: "Mirror records to the configured backup",
		Long: `Mirror one record, or every record with unmirrored custody events, to the
backup configured under 'backup:'. Each record is written as record.json,
metadata.json, custody.json and its artifact. A confirmed mirror appends a
"synced" event; a failed one leaves the record untouched and can be retried.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runSyncOne(opts, args[0], cmd)
			}
			return runSyncPending(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Kind, "kind", "k", "", "record kind (searched when omitted)")

	return cmd
}

func runSyncOne(opts *SyncOptions, arg string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	kind, id, err := parseTarget(opts.Kind, arg)
	if err != nil {
		return formatter.Fail("invalid arguments", err)
	}
	s, err := openSession(cmd.Context(), opts.RootOptions, cmd, true)
	if err != nil {
		return formatter.Fail("failed to open catalog", err)
	}
	defer s.Close()

	r, err := s.svc.Sync(cmd.Context(), kind, id)
	if err != nil {
		return formatter.Fail("sync failed", err)
	}
	return formatter.Success(summarize(r))
}

func runSyncPending(opts *SyncOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	s, err := openSession(cmd.Context(), opts.RootOptions, cmd, true)
	if err != nil {
		return formatter.Fail("failed to open catalog", err)
	}
	defer s.Close()

	report, err := s.svc.SyncPending(cmd.Context())
	if err != nil {
		return formatter.Fail("sync failed", err)
	}
	if err := formatter.Success(SyncView{report}); err != nil {
		return err
	}
	if len(report.Failed) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%s: %d of %d records failed to sync",
			ErrCodeBackup, len(report.Failed), report.Attempted))
	}
	return nil
}
