package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/studyhub/studyfeed/pkg/output"
	"github.com/studyhub/studyfeed/pkg/service"
)

var feedPages int

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Browse the study feed",
	Long:  "Show the newest posts, newest first. Use --pages to keep scrolling.",
	RunE: func(cmd *cobra.Command, args []string) error {
		showFeed = true
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		if _, err := a.Feed.Reload(cmd.Context()); err != nil {
			return err
		}
		for i := 1; i < feedPages && !a.Feed.Exhausted(); i++ {
			if _, err := a.Feed.LoadMore(cmd.Context()); err != nil {
				return err
			}
		}
		if output.GetOutputFormat() == output.FormatJSON {
			return output.Print("", a.Feed.Posts())
		}
		if a.Feed.Exhausted() && len(a.Feed.Posts()) > 0 {
			output.PrintInfo("You're all caught up.")
		}
		return nil
	},
}

var feedLikeCmd = &cobra.Command{
	Use:   "like <post-id>",
	Short: "Like or unlike a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		st, err := a.Feed.ToggleLike(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		warnUnconfirmed(a.Interactions)
		if st.Liked {
			output.PrintSuccess("Liked %s", args[0])
		} else {
			output.PrintInfo("Unliked %s", args[0])
		}
		return nil
	},
}

var feedSaveCmd = &cobra.Command{
	Use:   "save <post-id>",
	Short: "Save or unsave a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		st, err := a.Feed.ToggleSave(args[0])
		if err != nil {
			return err
		}
		if st.Saved {
			output.PrintSuccess("Saved %s", args[0])
		} else {
			output.PrintInfo("Removed %s from saved", args[0])
		}
		return nil
	},
}

var feedSavedCmd = &cobra.Command{
	Use:   "saved",
	Short: "List saved and liked post ids",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		saved, liked := a.Interactions.Saved(), a.Interactions.Liked()
		rows := make([][]string, 0, len(saved)+len(liked))
		for _, id := range saved {
			rows = append(rows, []string{id, "saved"})
		}
		for _, id := range liked {
			rows = append(rows, []string{id, "liked"})
		}
		return output.PrintList("Your posts", map[string][]string{"saved": saved, "liked": liked}, []string{"Post", "State"}, rows)
	},
}

var feedShareCmd = &cobra.Command{
	Use:   "share <post-id>",
	Short: "Share a post and print its link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		output.PrintRaw(a.Feed.Share(cmd.Context(), args[0]))
		return nil
	},
}

var feedLinkCmd = &cobra.Command{
	Use:   "link <post-id>",
	Short: "Print a post's link without sharing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		output.PrintRaw(a.Feed.CopyLink(args[0]))
		output.PrintSuccess("Link copied!")
		return nil
	},
}

var feedDeleteCmd = &cobra.Command{
	Use:   "delete <post-id>",
	Short: "Delete one of your posts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		if err := a.Feed.DeletePost(cmd.Context(), args[0]); err != nil {
			return err
		}
		output.PrintSuccess("Post deleted")
		return nil
	},
}

// warnUnconfirmed reports a like counter update that did not reach the
// backend. The local toggle stands and the increment is not re-sent.
func warnUnconfirmed(store *service.InteractionStore) {
	in := store.Intents()
	if len(in) == 0 || in[len(in)-1].Status != service.IntentFailed {
		return
	}
	last := in[len(in)-1]
	output.PrintWarning("Updated locally; the %s counter could not be updated (%s)", last.Field, last.Err)
}

func init() {
	feedCmd.Flags().IntVar(&feedPages, "pages", 1, fmt.Sprintf("Pages of %d posts to load", service.DefaultFeedPageSize))

	feedCmd.AddCommand(feedLikeCmd)
	feedCmd.AddCommand(feedSaveCmd)
	feedCmd.AddCommand(feedSavedCmd)
	feedCmd.AddCommand(feedShareCmd)
	feedCmd.AddCommand(feedLinkCmd)
	feedCmd.AddCommand(feedDeleteCmd)
}
