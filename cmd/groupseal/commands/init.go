package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"groupseal/internal/crypto"
	gerrors "groupseal/internal/errors"
	"groupseal/internal/services/identity"
	"groupseal/internal/store"
)

// init: create the local key, or replace it with --force.
func initCmd() *cobra.Command {
	var (
		force     bool
		backupOut string
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate your key and register it with the directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := appCtx.Config
			if cfg.Passphrase == "" {
				return fmt.Errorf("passphrase required (-p)")
			}
			// A new key store is sealed with this passphrase for good.
			if !store.KeyStoreExists(cfg.Home, appCtx.User) {
				if err := store.CheckPassphrase(cfg.Passphrase); err != nil {
					return err
				}
			}

			key, err := appCtx.Init(ctx)
			if err != nil && gerrors.KindOf(err) != gerrors.KeyMismatch {
				return err
			}
			if !force {
				if err != nil {
					return fmt.Errorf("%w; use --force to replace the registered key", err)
				}
				if key != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "A key is already set up (fingerprint %s). Use --force to replace it.\n", crypto.Fingerprint(key.ID()))
					return nil
				}
				registered, err := appCtx.Identity.UserHasRegisteredKey(ctx)
				if err != nil {
					return err
				}
				if registered {
					return errors.New("the directory already has a key for you; import its backup with 'groupseal import' or use --force")
				}
			}

			gen, err := appCtx.Identity.Generate(ctx)
			if err != nil {
				return err
			}
			if backupOut == "" {
				backupOut = filepath.Join(cfg.Home, cfg.UserID, "backup.txt")
			}
			if err := os.WriteFile(backupOut, []byte(gen.ClearBackup), 0o600); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Key generated. Fingerprint: %s\n", crypto.Fingerprint(gen.Key.ID()))
			fmt.Fprintf(out, "Clear backup written to %s; keep it somewhere safe.\n", backupOut)
			switch {
			case errors.Is(gen.ProtectError, identity.ErrBackupDisabled):
				fmt.Fprintln(out, "No protected backup was sent: the directory has backups disabled.")
			case gen.ProtectError != nil:
				fmt.Fprintf(out, "No protected backup was sent: %v\n", gen.ProtectError)
			default:
				fmt.Fprintln(out, "A protected backup was sent to the directory.")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing or registered key")
	cmd.Flags().StringVar(&backupOut, "backup-out", "", "where to write the clear backup (default <home>/<user>/backup.txt)")
	return cmd
}
