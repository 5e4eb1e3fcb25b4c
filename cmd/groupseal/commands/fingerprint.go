package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"groupseal/internal/crypto"
)

func fingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint",
		Short: "Print your key fingerprint",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := loadKey(cmd.Context())
			if err != nil {
				return err
			}
			id := key.ID()
			fmt.Fprintf(cmd.OutOrStdout(), "Fingerprint: %s\nKey ID: %s\n", crypto.Fingerprint(id), id.String())
			return nil
		},
	}
}
