package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"groupseal/internal/crypto"
	gerrors "groupseal/internal/errors"
)

// import: restore the key of a clear backup file ("-" reads stdin).
func importCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "import [backup-file]",
		Short: "Restore your key from a clear backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			text, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			if _, err := appCtx.Init(ctx); err != nil && gerrors.KindOf(err) != gerrors.KeyMismatch {
				return err
			}
			key, err := appCtx.Identity.Import(ctx, string(text), force)
			if gerrors.KindOf(err) == gerrors.KeyMismatch {
				return fmt.Errorf("%w; use --force to register this key instead", err)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Key imported. Fingerprint: %s\n", crypto.Fingerprint(key.ID()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "replace the key registered with the directory")
	return cmd
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}
