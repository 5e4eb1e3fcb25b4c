package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"groupseal/internal/crypto"
	"groupseal/internal/domain"
	gerrors "groupseal/internal/errors"
	messagesvc "groupseal/internal/services/message"
)

// encrypt: build a post for --channel and print it as JSON, sealed when the
// channel is in p2p mode.
func encryptCmd() *cobra.Command {
	var (
		channel        string
		message        string
		postID         string
		allowDowngrade bool
	)
	cmd := &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt a message for every member of a channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if message == "" {
				text, err := readInput(cmd, "-")
				if err != nil {
					return err
				}
				message = strings.TrimRight(string(text), "\n")
			}
			if _, err := appCtx.Init(ctx); err != nil {
				if gerrors.KindOf(err) == gerrors.KeyMismatch {
					return fmt.Errorf("%w; run 'groupseal import' or 'groupseal init --force'", err)
				}
				return err
			}

			post := &domain.Post{
				ID:        postID,
				ChannelID: domain.ChannelID(channel),
				UserID:    appCtx.User,
				Message:   message,
			}
			res, err := appCtx.Messages.EncryptPost(ctx, post, messagesvc.EncryptOptions{
				AllowDowngrade: allowDowngrade,
				IsUpdate:       postID != "",
			})
			if errors.Is(err, messagesvc.ErrEncryptionDowngrade) {
				return fmt.Errorf("%w; pass --allow-downgrade to send in clear", err)
			}
			if err != nil {
				return err
			}

			errOut := cmd.ErrOrStderr()
			for _, r := range res.NewRecipients {
				fmt.Fprintf(errOut, "Encrypting for a new key of %s (fingerprint %s)\n", r.User, crypto.Fingerprint(r.Key.ID()))
			}
			if res.Mode != domain.ModeP2P {
				fmt.Fprintln(errOut, "Channel is not encrypted; the message is sent in clear.")
			}

			data, err := json.MarshalIndent(res.Post, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
	cmd.Flags().StringVar(&channel, "channel", "", "channel id")
	cmd.Flags().StringVarP(&message, "message", "m", "", "message text (default: read stdin)")
	cmd.Flags().StringVar(&postID, "edit", "", "id of the post this message replaces")
	cmd.Flags().BoolVar(&allowDowngrade, "allow-downgrade", false, "send in clear even though the last message to the channel was encrypted")
	_ = cmd.MarkFlagRequired("channel")
	return cmd
}
