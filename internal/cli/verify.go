package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/custodian/internal/integrity"
	"github.com/roach88/custodian/internal/record"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Kind   string
	All    bool
	Remote bool
}

// VerifyResult is one verification outcome.
type VerifyResult struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Result string `json:"result"`
	Remote bool   `json:"remote,omitempty"`
}

// VerifyReport is the verify command payload.
type VerifyReport struct {
	Results []VerifyResult `json:"results"`
	Failed  int            `json:"failed"`
}

func (r VerifyReport) String() string {
	if len(r.Results) == 0 {
		return "no records"
	}
	var b strings.Builder
	for _, res := range r.Results {
		where := "local"
		if res.Remote {
			where = "remote"
		}
		fmt.Fprintf(&b, "%s  %-16s  %-6s  %s\n", res.ID, res.Kind, where, res.Result)
	}
	fmt.Fprintf(&b, "%d checked, %d failed", len(r.Results), r.Failed)
	return b.String()
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify [id]",
		Short: "Re-hash evidence and compare it to its capture fingerprint",
		Long: `Re-hash a record's artifact and compare it with the SHA-256 recorded at
capture. A matching artifact gets a "verified" custody event; a mismatch or a
missing file is reported and the command exits 1. The stored fingerprint is
never changed.

With --remote the mirrored copy in the backup is checked instead, and no
custody event is recorded.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !opts.All {
				return newFormatter(rootOpts, cmd).Fail("invalid arguments",
					fmt.Errorf("%w: give a record id or --all", errBadArgs))
			}
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			return runVerify(opts, id, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Kind, "kind", "k", "", "record kind")
	cmd.Flags().BoolVar(&opts.All, "all", false, "verify every record (of --kind, if given)")
	cmd.Flags().BoolVar(&opts.Remote, "remote", false, "verify the mirrored copy in the backup")

	return cmd
}

func runVerify(opts *VerifyOptions, arg string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	s, err := openSession(ctx, opts.RootOptions, cmd, opts.Remote)
	if err != nil {
		return formatter.Fail("failed to open catalog", err)
	}
	defer s.Close()

	var targets []record.Record
	if arg != "" {
		kind, id, err := parseTarget(opts.Kind, arg)
		if err != nil {
			return formatter.Fail("invalid arguments", err)
		}
		r, err := s.svc.Lookup(ctx, kind, id)
		if err != nil {
			return formatter.Fail("verify failed", err)
		}
		targets = append(targets, r)
	} else {
		kind, err := parseKindArg(opts.Kind)
		if err != nil {
			return formatter.Fail("invalid kind", err)
		}
		kinds := record.Kinds()
		if kind != "" {
			kinds = []record.Kind{kind}
		}
		for _, k := range kinds {
			recs, err := s.catalog.FetchAll(ctx, k)
			if err != nil {
				return formatter.Fail("verify failed", err)
			}
			targets = append(targets, recs...)
		}
	}

	report := VerifyReport{Results: []VerifyResult{}}
	for _, r := range targets {
		var res integrity.Result
		if opts.Remote {
			res, err = s.svc.VerifyRemote(ctx, r.Kind(), record.ID(r))
		} else {
			res, _, err = s.svc.Verify(ctx, r.Kind(), record.ID(r))
		}
		if err != nil {
			return formatter.Fail("verify failed", err)
		}
		if res != integrity.Match {
			report.Failed++
		}
		report.Results = append(report.Results, VerifyResult{
			ID:     record.ID(r).String(),
			Kind:   string(r.Kind()),
			Result: res.String(),
			Remote: opts.Remote,
		})
	}

	if err := formatter.Success(report); err != nil {
		return err
	}
	if report.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%s: %d of %d records failed verification",
			ErrCodeIntegrity, report.Failed, len(report.Results)))
	}
	return nil
}
