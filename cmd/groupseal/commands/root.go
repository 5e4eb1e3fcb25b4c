package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"groupseal/internal/app"
	"groupseal/internal/crypto"
	gerrors "groupseal/internal/errors"
	"groupseal/internal/logging"
)

var (
	v      *viper.Viper
	appCtx *app.Wire
)

// Execute runs the CLI with os.Args and stops on SIGINT.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return NewRoot().ExecuteContext(ctx)
}

// NewRoot builds the command tree. Each call starts from fresh settings.
func NewRoot() *cobra.Command {
	v = viper.New()
	appCtx = nil

	root := &cobra.Command{
		Use:           "groupseal",
		Short:         "End-to-end encryption for group chat channels",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v.SetEnvPrefix(app.EnvPrefix)
			v.AutomaticEnv()
			home := v.GetString("home")
			if home == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				home = filepath.Join(dir, ".groupseal")
			}
			if err := os.MkdirAll(home, 0o700); err != nil {
				return err
			}
			app.SetDefaults(v, home)

			cfg, err := app.LoadConfig(v)
			if err != nil {
				return err
			}
			if err := logging.Configure(cfg.LogLevel, cfg.LogFormat); err != nil {
				return err
			}
			w, err := app.NewWire(cfg)
			if err != nil {
				return err
			}
			appCtx = w
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if appCtx != nil {
				appCtx.Close()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.String("home", "", "state dir (default ~/.groupseal)")
	pf.String("user", "", "local user id")
	pf.StringP("passphrase", "p", "", "passphrase that unlocks the key store")
	pf.String("directory", "", "directory base URL (e.g. http://127.0.0.1:8080); empty uses a local file")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.String("log-format", "", "log format (text, json)")
	for key, flag := range map[string]string{
		"home":          "home",
		"user":          "user",
		"passphrase":    "passphrase",
		"directory_url": "directory",
		"log_level":     "log-level",
		"log_format":    "log-format",
	} {
		_ = v.BindPFlag(key, pf.Lookup(flag))
	}

	root.AddCommand(
		initCmd(),
		importCmd(),
		fingerprintCmd(),
		statusCmd(),
		encryptCmd(),
		decryptCmd(),
		channelCmd(),
	)
	return root
}

// loadKey opens the key store and returns the usable local key.
func loadKey(ctx context.Context) (*crypto.PrivateKeyMaterial, error) {
	key, err := appCtx.Init(ctx)
	switch {
	case gerrors.KindOf(err) == gerrors.KeyMismatch:
		return nil, fmt.Errorf("%w; restore the registered key with 'groupseal import' or replace it with 'groupseal init --force'", err)
	case err != nil:
		return nil, err
	case key == nil:
		return nil, errors.New("no local key; run 'groupseal init' first")
	}
	return key, nil
}
