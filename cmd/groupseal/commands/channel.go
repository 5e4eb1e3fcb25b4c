package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"groupseal/internal/crypto"
	"groupseal/internal/domain"
)

func channelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channel",
		Short: "Manage channel membership and encryption mode",
	}
	cmd.AddCommand(channelJoinCmd(), channelMembersCmd(), channelModeCmd())
	return cmd
}

func channelJoinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join [channel]",
		Short: "Join a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := appCtx.Directory.JoinChannel(cmd.Context(), domain.ChannelID(args[0])); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Joined %s\n", args[0])
			return nil
		},
	}
}

// members: list the channel members and the fingerprint of their keys.
func channelMembersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "members [channel]",
		Short: "List channel members and their key fingerprints",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			members, err := appCtx.Directory.ChannelMembers(ctx, domain.ChannelID(args[0]))
			if err != nil {
				return err
			}
			keys, err := appCtx.Resolver.Get(ctx, members)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, u := range members {
				if k := keys[u]; k != nil {
					fmt.Fprintf(out, "%s\t%s\n", u, crypto.Fingerprint(k.ID()))
				} else {
					fmt.Fprintf(out, "%s\t(no key)\n", u)
				}
			}
			return nil
		},
	}
}

// mode: print the channel mode, or set it when a second argument is given.
func channelModeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mode [channel] [none|p2p]",
		Short: "Show or set the encryption mode of a channel",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ch := domain.ChannelID(args[0])
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				mode, err := appCtx.Directory.ChannelMode(ctx, ch)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, mode)
				return nil
			}
			mode, err := domain.ParseChannelMode(args[1])
			if err != nil {
				return err
			}
			changed, err := appCtx.Directory.SetChannelMode(ctx, ch, mode)
			if err != nil {
				return err
			}
			if changed {
				fmt.Fprintf(out, "Channel %s is now %s\n", ch, mode)
			} else {
				fmt.Fprintf(out, "Channel %s is already %s\n", ch, mode)
			}
			return nil
		},
	}
}
