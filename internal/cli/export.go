package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/custodian/internal/evidence"
	"github.com/roach88/custodian/internal/integrity"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Kind   string
	Output string
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Write a sealed evidence bundle",
		Long: `Write a record, its metadata, its chain of custody and its artifact into a
single bundle sealed with the catalog key. The artifact is re-verified first;
an artifact that no longer matches its fingerprint is not exported.

The bundle records its own "exported" event. Read it back with 'inspect'.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Kind, "kind", "k", "", "record kind (searched when omitted)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "bundle path (required)")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func runExport(opts *ExportOptions, arg string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	kind, id, err := parseTarget(opts.Kind, arg)
	if err != nil {
		return formatter.Fail("invalid arguments", err)
	}

	s, err := openSession(cmd.Context(), opts.RootOptions, cmd, false)
	if err != nil {
		return formatter.Fail("failed to open catalog", err)
	}
	defer s.Close()

	r, err := s.svc.Export(cmd.Context(), kind, id, opts.Output)
	if err != nil {
		return formatter.Fail("export failed", err)
	}
	return formatter.Success(Message{
		Message: fmt.Sprintf("exported %s %s to %s", r.Kind(), id, opts.Output),
		Fields:  map[string]any{"id": id.String(), "kind": string(r.Kind()), "path": opts.Output},
	})
}

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Extract string
}

// BundleView is the inspect command payload.
type BundleView struct {
	Kind     string         `json:"kind"`
	Record   map[string]any `json:"record"`
	Custody  []EventView    `json:"custody"`
	FileSize int            `json:"file_size"`
	Checksum string         `json:"checksum_sha256"`
	Verified string         `json:"verified"`
}

func (b BundleView) String() string {
	s := fmt.Sprintf("%s %v\nchecksum: %s (%s)\nfile: %d bytes\ncustody:",
		b.Kind, b.Record["id"], b.Checksum, b.Verified, b.FileSize)
	for _, e := range b.Custody {
		s += fmt.Sprintf("\n  %s  %-9s %s@%s", e.Timestamp, e.Action, e.User, e.Device)
	}
	return s
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect <bundle>",
		Short: "Open a sealed evidence bundle",
		Long: `Unseal a bundle written by 'export' with the catalog key, check the bundled
artifact against the bundled fingerprint and show its chain of custody.
The catalog itself is not opened.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Extract, "extract", "", "write the bundled artifact to this path")

	return cmd
}

func runInspect(opts *InspectOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	key, err := loadKey(opts.RootOptions)
	if err != nil {
		return formatter.Fail("failed to load key", err)
	}
	b, err := evidence.ReadExport(key, path)
	if err != nil {
		return formatter.Fail("inspect failed", err)
	}

	verified := integrity.FileMissing.String()
	if b.File != nil {
		verified = integrity.Match.String()
	}
	if opts.Extract != "" {
		if b.File == nil {
			return formatter.Fail("extract failed", fmt.Errorf("%w: bundle has no artifact", integrity.ErrFileMissing))
		}
		if err := os.WriteFile(opts.Extract, b.File, 0o600); err != nil {
			return formatter.Fail("extract failed", err)
		}
		formatter.VerboseLog("artifact written to %s", opts.Extract)
	}

	return formatter.Success(BundleView{
		Kind:     string(b.Kind),
		Record:   b.Record,
		Custody:  events(b.Custody),
		FileSize: len(b.File),
		Checksum: b.Checksum(),
		Verified: verified,
	})
}
