package commands

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"groupseal/internal/domain"
	messagesvc "groupseal/internal/services/message"
)

// decrypt: verify and open a post JSON file ("-" reads stdin).
func decryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decrypt [post.json]",
		Short: "Verify and decrypt a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			var post domain.Post
			if err := json.Unmarshal(data, &post); err != nil {
				return fmt.Errorf("parse post: %w", err)
			}
			if !post.Encrypted() {
				fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", post.UserID, post.Message)
				return nil
			}
			if _, err := loadKey(ctx); err != nil {
				return err
			}

			res, err := appCtx.Messages.DecryptPost(ctx, &post)
			if errors.Is(err, messagesvc.ErrUnknownSender) {
				return fmt.Errorf("%s: %w", post.UserID, err)
			}
			if err != nil {
				return err
			}
			if res.KeyChanged {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: the key of %s changed since their last message\n", post.UserID)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", post.UserID, res.Plaintext)
			return nil
		},
	}
}
