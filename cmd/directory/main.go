package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"groupseal/internal/directory"
	"groupseal/internal/directory/server"
	"groupseal/internal/hkp"
	"groupseal/internal/logging"
	"groupseal/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:          "groupseal-directory",
		Short:        "Serve public keys and channel modes for groupseal clients",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			v.SetEnvPrefix("GROUPSEAL_DIRECTORY")
			v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
			v.AutomaticEnv()
			if err := logging.Configure(v.GetString("log-level"), v.GetString("log-format")); err != nil {
				return err
			}
			return serve(cmd.Context(), v)
		},
	}

	f := cmd.Flags()
	f.String("listen", ":8080", "listen address")
	f.String("data", "./directory-data", "state directory")
	f.String("hkp-server", "", "HKP key server holding the backup key (e.g. https://keys.openpgp.org)")
	f.String("backup-key-email", "", "email of the backup key; empty disables protected backups")
	f.String("maildir", "", "maildir root for delivering protected backups (default <data>/mail)")
	f.Duration("hkp-timeout", 10*time.Second, "timeout of key server requests")
	f.String("log-level", "info", "log level (debug, info, warn, error)")
	f.String("log-format", "text", "log format (text, json)")
	_ = v.BindPFlags(f)
	return cmd
}

func serve(ctx context.Context, v *viper.Viper) error {
	log := logging.New("directory", "serve")
	data := v.GetString("data")
	kv, err := store.NewKVFileStore(filepath.Join(data, "directory.json"))
	if err != nil {
		return err
	}

	mailRoot := v.GetString("maildir")
	if mailRoot == "" {
		mailRoot = filepath.Join(data, "mail")
	}
	opts := []directory.RegistryOption{directory.WithMailer(directory.NewMaildirMailer(mailRoot))}

	if email := v.GetString("backup-key-email"); email != "" {
		if v.GetString("hkp-server") == "" {
			return errors.New("--hkp-server is required with --backup-key-email")
		}
		keys := hkp.New(v.GetString("hkp-server"), &http.Client{Timeout: v.GetDuration("hkp-timeout")})
		opts = append(opts, directory.WithBackupKey(func(ctx context.Context) (string, error) {
			return keys.LookupPublicKey(ctx, email)
		}))
		log.WithField("email", email).Info("protected backups enabled")
	}

	srv := server.New(directory.NewRegistry(kv, opts...))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	errc := make(chan error, 1)
	go func() { errc <- srv.Listen(v.GetString("listen")) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		log.Info("shutting down")
		return srv.Shutdown()
	}
}
