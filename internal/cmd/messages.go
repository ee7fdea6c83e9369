package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
	clierrors "github.com/studyhub/studyfeed/pkg/errors"
	"github.com/studyhub/studyfeed/pkg/formatter"
	"github.com/studyhub/studyfeed/pkg/models"
	"github.com/studyhub/studyfeed/pkg/output"
	"github.com/studyhub/studyfeed/pkg/service"
)

var (
	messagesFilter string
	messagesQuery  string
)

var messagesCmd = &cobra.Command{
	Use:     "messages",
	Aliases: []string{"dm"},
	Short:   "Direct messages",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		filter := service.ConversationFilter(strings.ToLower(messagesFilter))
		switch filter {
		case service.FilterAll, service.FilterUnread, service.FilterPinned, service.FilterArchived:
		default:
			return clierrors.ValidationError("filter", "must be one of all, unread, pinned, archived")
		}

		convs, err := a.Messages.Conversations(cmd.Context())
		if err != nil {
			return err
		}
		uid := a.Session.CurrentUserID()
		shown := service.Filter(convs, uid, filter, messagesQuery)
		if output.GetOutputFormat() == output.FormatJSON {
			return output.Print("", shown)
		}
		if len(shown) == 0 {
			output.PrintInfo("No conversations")
			return nil
		}

		now := time.Now()
		rows := make([][]string, 0, len(shown))
		for _, c := range shown {
			var flags []string
			if c.Pinned {
				flags = append(flags, "pinned")
			}
			if c.Muted {
				flags = append(flags, "muted")
			}
			rows = append(rows, []string{
				c.ID,
				c.Title(uid),
				formatter.Truncate(c.LastMessage, 40),
				formatter.Badge(c.UnreadCount),
				strings.Join(flags, ","),
				formatter.TimeAgo(c.LastMessageAt, now),
			})
		}
		if err := output.PrintList("Messages", shown, []string{"ID", "With", "Last message", "Unread", "", "When"}, rows); err != nil {
			return err
		}
		if total := service.TotalUnread(convs); total > 0 {
			output.PrintInfo("%d unread", total)
		}
		return nil
	},
}

var messagesStartCmd = &cobra.Command{
	Use:   "start <user-id>",
	Short: "Start (or reopen) a conversation with a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		name := args[0]
		if u, err := a.Profiles.View(cmd.Context(), args[0]); err == nil && u.DisplayName != "" {
			name = u.DisplayName
		}
		c, err := a.Messages.Start(cmd.Context(), args[0], name)
		if err != nil {
			return err
		}
		output.PrintSuccess("Conversation with %s: %s", name, c.ID)
		return nil
	},
}

var messagesOpenCmd = &cobra.Command{
	Use:   "open <conversation-id>",
	Short: "Show recent messages and mark the thread read",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		msgs, err := a.Messages.Open(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if output.GetOutputFormat() == output.FormatJSON {
			return output.Print("", msgs)
		}
		if len(msgs) == 0 {
			output.PrintInfo("No messages yet. Say hi!")
			return nil
		}
		for _, m := range msgs {
			printMessage(m, time.Now())
		}
		return nil
	},
}

func printMessage(m models.Message, now time.Time) {
	output.PrintRaw(m.SenderName + " · " + formatter.TimeAgo(m.CreatedAt, now) + "\n  " + m.Text)
}

var messagesSendCmd = &cobra.Command{
	Use:   "send <conversation-id> <text>...",
	Short: "Send a message",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		if _, err := a.Messages.Send(cmd.Context(), args[0], strings.Join(args[1:], " ")); err != nil {
			return err
		}
		output.PrintSuccess("Sent")
		return nil
	},
}

var messagesDeleteCmd = &cobra.Command{
	Use:   "delete <conversation-id>",
	Short: "Delete a conversation and its messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		ok, err := confirm(fmt.Sprintf("Delete conversation %s and all its messages?", args[0]))
		if err != nil || !ok {
			return err
		}
		if err := a.Messages.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		output.PrintSuccess("Conversation deleted")
		return nil
	},
}

type flagSetter func(s *service.MessageService, ctx context.Context, convID string, on bool) error

// flagCommand builds the mute, pin and archive toggles.
func flagCommand(name, short, done string, set flagSetter) *cobra.Command {
	c := &cobra.Command{
		Use:   name + " <conversation-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := getApp(cmd.Context())
			if err != nil {
				return err
			}
			off, _ := cmd.Flags().GetBool("off")
			if err := set(a.Messages, cmd.Context(), args[0], !off); err != nil {
				return err
			}
			if off {
				output.PrintSuccess("Conversation un%s", done)
			} else {
				output.PrintSuccess("Conversation %s", done)
			}
			return nil
		},
	}
	c.Flags().Bool("off", false, "Undo instead")
	return c
}

var messagesWatchCmd = &cobra.Command{
	Use:   "watch <conversation-id>",
	Short: "Stream new messages in a thread until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		unsubscribe, err := a.Messages.SubscribeMessages(ctx, args[0], func(m models.Message) {
			printMessage(m, time.Now())
		})
		if err != nil {
			return err
		}
		defer unsubscribe()

		output.PrintInfo("Watching %s, Ctrl+C to stop", args[0])
		<-ctx.Done()
		logLiveStats(a)
		return nil
	},
}

func init() {
	messagesCmd.Flags().StringVar(&messagesFilter, "filter", string(service.FilterAll), "Tab: all, unread, pinned, archived")
	messagesCmd.Flags().StringVarP(&messagesQuery, "query", "q", "", "Search names and last messages")

	messagesCmd.AddCommand(messagesStartCmd)
	messagesCmd.AddCommand(messagesOpenCmd)
	messagesCmd.AddCommand(messagesSendCmd)
	messagesCmd.AddCommand(messagesDeleteCmd)
	messagesCmd.AddCommand(flagCommand("mute", "Mute a conversation", "muted", (*service.MessageService).SetMuted))
	messagesCmd.AddCommand(flagCommand("pin", "Pin a conversation to the top", "pinned", (*service.MessageService).SetPinned))
	messagesCmd.AddCommand(flagCommand("archive", "Archive a conversation", "archived", (*service.MessageService).SetArchived))
	messagesCmd.AddCommand(messagesWatchCmd)
}
