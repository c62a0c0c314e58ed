package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/custodian/internal/record"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Kind    string
	Pending bool
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored records, newest first",
		Long: `List stored records of one kind or of every kind, newest first.
Listing does not record a custody event. Records marked * have not been
mirrored since their last custody event.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Kind, "kind", "k", "", "only this kind")
	cmd.Flags().BoolVar(&opts.Pending, "pending", false, "only records waiting to be mirrored")

	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	kind, err := parseKindArg(opts.Kind)
	if err != nil {
		return formatter.Fail("invalid kind", err)
	}
	kinds := record.Kinds()
	if kind != "" {
		kinds = []record.Kind{kind}
	}

	s, err := openSession(cmd.Context(), opts.RootOptions, cmd, false)
	if err != nil {
		return formatter.Fail("failed to open catalog", err)
	}
	defer s.Close()

	list := RecordList{Records: []RecordSummary{}}
	for _, k := range kinds {
		fetch := s.catalog.FetchAll
		if opts.Pending {
			fetch = s.catalog.Pending
		}
		recs, err := fetch(cmd.Context(), k)
		if err != nil {
			return formatter.Fail("list failed", err)
		}
		for _, r := range recs {
			list.Records = append(list.Records, summarize(r))
		}
	}
	return formatter.Success(list)
}

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Kind string
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a record and its chain of custody",
		Long: `Show one record with its metadata and chain of custody. Viewing is itself
recorded: a "viewed" event is appended before the record is shown.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Kind, "kind", "k", "", "record kind (searched when omitted)")

	return cmd
}

func runShow(opts *ShowOptions, arg string, cmd *cobra.Command) error {
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

	r, err := s.svc.View(cmd.Context(), kind, id)
	if err != nil {
		return formatter.Fail("show failed", err)
	}
	return formatter.Success(detail(r))
}

func parseTarget(kindFlag, arg string) (record.Kind, uuid.UUID, error) {
	kind, err := parseKindArg(kindFlag)
	if err != nil {
		return "", uuid.Nil, err
	}
	id, err := uuid.Parse(arg)
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("%w: record id %q: %v", errBadArgs, arg, err)
	}
	return kind, id, nil
}
