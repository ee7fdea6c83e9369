package cmd

import (
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/studyhub/studyfeed/pkg/backend"
	"github.com/studyhub/studyfeed/pkg/formatter"
	"github.com/studyhub/studyfeed/pkg/models"
	"github.com/studyhub/studyfeed/pkg/output"
)

var (
	notificationPages int
	notificationOff   bool
)

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"notifs"},
	Short:   "View and manage notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		if _, err := a.Notifications.Load(cmd.Context()); err != nil {
			return err
		}
		for i := 1; i < notificationPages; i++ {
			page, err := a.Notifications.LoadMore(cmd.Context())
			if err != nil {
				return err
			}
			if page == nil {
				break
			}
		}
		items := a.Notifications.Items()
		if len(items) == 0 && output.GetOutputFormat() != output.FormatJSON {
			output.PrintInfo("No notifications yet")
			return nil
		}
		return output.PrintList("Notifications", items, []string{"", "ID", "Type", "Message", "When"}, notificationRows(items))
	},
}

func notificationRows(items []models.Notification) [][]string {
	now := time.Now()
	rows := make([][]string, 0, len(items))
	for _, n := range items {
		marker := "•"
		if n.Read {
			marker = " "
		}
		rows = append(rows, []string{
			marker,
			n.ID,
			string(n.Type),
			formatter.Truncate(n.Message, 60),
			formatter.RelativeTime(n.CreatedAt, now),
		})
	}
	return rows
}

var notificationsReadCmd = &cobra.Command{
	Use:   "read <notification-id>",
	Short: "Mark a notification as read (--off for unread)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		n, err := a.Notifications.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if n.Read == !notificationOff {
			output.PrintInfo("Nothing to change")
			return nil
		}
		read, err := a.Notifications.ToggleRead(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if read {
			output.PrintSuccess("Marked as read")
		} else {
			output.PrintSuccess("Marked as unread")
		}
		return nil
	},
}

var notificationsReadAllCmd = &cobra.Command{
	Use:   "read-all",
	Short: "Mark every notification as read",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		n, err := a.Notifications.MarkAllRead(cmd.Context())
		if err != nil {
			return err
		}
		output.PrintSuccess("Marked %d notification%s as read", n, formatter.Pluralize(n))
		return nil
	},
}

var notificationsDeleteCmd = &cobra.Command{
	Use:   "delete <notification-id>",
	Short: "Delete a notification",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		var failed error
		a.Notifications.Delete(cmd.Context(), args[0], func(err error) { failed = err })
		a.Notifications.Wait()
		if failed != nil {
			return failed
		}
		output.PrintSuccess("Notification deleted")
		return nil
	},
}

var notificationsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		ok, err := confirm("Delete all notifications?")
		if err != nil || !ok {
			return err
		}
		n, err := a.Notifications.ClearAll(cmd.Context())
		if err != nil {
			return err
		}
		output.PrintSuccess("Cleared %d notification%s", n, formatter.Pluralize(n))
		return nil
	},
}

var notificationsBadgeCmd = &cobra.Command{
	Use:   "badge",
	Short: "Print the unread count",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		badge, err := a.Notifications.Badge(cmd.Context())
		if err != nil {
			return err
		}
		output.PrintRaw(badge)
		return nil
	},
}

var notificationsOpenCmd = &cobra.Command{
	Use:   "open <notification-id>",
	Short: "Mark a notification read and show what it points to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		n, err := a.Notifications.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		kind, target, err := a.Notifications.Route(cmd.Context(), *n)
		if err != nil {
			return err
		}
		switch kind {
		case models.TargetPost:
			p, err := a.Feed.Post(cmd.Context(), target)
			if err != nil {
				return err
			}
			output.PrintRaw(a.Renderer.Render(p))
		case models.TargetProfile:
			u, err := a.Profiles.View(cmd.Context(), target)
			if err != nil {
				return err
			}
			return printProfile(u)
		default:
			output.PrintRaw(n.Message)
		}
		return nil
	},
}

var notificationsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream new notifications until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		st, err := a.Settings.Load()
		if err != nil {
			return err
		}
		if !st.PushNotifications {
			output.PrintInfo("Push notifications are off. Turn them on with 'studyfeed settings push on'")
			return nil
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		unsubscribe, err := a.Notifications.Subscribe(ctx, func(ct backend.ChangeType, n models.Notification) {
			if ct != backend.ChangeAdded {
				return
			}
			output.PrintInfo("[%s] %s", n.Type, n.Message)
		})
		if err != nil {
			return err
		}
		defer unsubscribe()

		output.PrintInfo("Watching notifications, Ctrl+C to stop")
		<-ctx.Done()
		logLiveStats(a)
		return nil
	},
}

func init() {
	notificationsCmd.Flags().IntVar(&notificationPages, "pages", 1, "Pages of notifications to load")
	notificationsReadCmd.Flags().BoolVar(&notificationOff, "off", false, "Mark as unread instead")

	notificationsCmd.AddCommand(notificationsReadCmd)
	notificationsCmd.AddCommand(notificationsReadAllCmd)
	notificationsCmd.AddCommand(notificationsDeleteCmd)
	notificationsCmd.AddCommand(notificationsClearCmd)
	notificationsCmd.AddCommand(notificationsBadgeCmd)
	notificationsCmd.AddCommand(notificationsOpenCmd)
	notificationsCmd.AddCommand(notificationsWatchCmd)
}
