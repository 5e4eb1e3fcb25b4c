package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"groupseal/internal/crypto"
	gerrors "groupseal/internal/errors"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the state of your key",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			key, err := appCtx.Init(ctx)
			if err != nil && gerrors.KindOf(err) != gerrors.KeyMismatch {
				return err
			}
			fmt.Fprintf(out, "User: %s\n", appCtx.User)
			fmt.Fprintf(out, "State: %s\n", appCtx.Identity.State())
			if key != nil {
				fmt.Fprintf(out, "Fingerprint: %s\n", crypto.Fingerprint(key.ID()))
			}
			registered, err := appCtx.Identity.UserHasRegisteredKey(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Registered with directory: %t\n", registered)
			return nil
		},
	}
}
