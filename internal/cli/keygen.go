package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/custodian/internal/catalog"
)

// KeygenOptions holds flags for the keygen command.
type KeygenOptions struct {
	*RootOptions
	Force bool
}

// NewKeygenCommand creates the keygen command.
func NewKeygenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &KeygenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a catalog key",
		Long: `Generate a random 256-bit catalog key and write it, hex encoded, to the
key file (--key-file, default ~/.custodian/key).

A catalog can only be opened with the key it was created with. Keep a copy.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeygen(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "overwrite an existing key file")

	return cmd
}

func runKeygen(opts *KeygenOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	path := keyPath(opts.RootOptions)

	if _, err := os.Stat(path); err == nil && !opts.Force {
		return formatter.Fail("refusing to overwrite key",
			fmt.Errorf("%w: %s exists (use --force)", errBadArgs, path))
	}

	key, err := catalog.GenerateKey()
	if err != nil {
		return formatter.Fail("key generation failed", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return formatter.Fail("key generation failed", err)
	}
	if err := os.WriteFile(path, []byte(key.String()+"\n"), 0o600); err != nil {
		return formatter.Fail("key generation failed", err)
	}

	return formatter.Success(Message{
		Message: fmt.Sprintf("key written to %s", path),
		Fields:  map[string]any{"path": path},
	})
}
