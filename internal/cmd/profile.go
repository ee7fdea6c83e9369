package cmd

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"
	clierrors "github.com/studyhub/studyfeed/pkg/errors"
	"github.com/studyhub/studyfeed/pkg/formatter"
	"github.com/studyhub/studyfeed/pkg/models"
	"github.com/studyhub/studyfeed/pkg/output"
	"github.com/studyhub/studyfeed/pkg/service"
)

var (
	profileName     string
	profileUsername string
	profileBio      string
	profilePostsMax int
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "View and edit profiles",
}

func printProfile(u *models.User) error {
	record := map[string]interface{}{
		"id":        u.UID,
		"name":      u.DisplayName,
		"username":  u.Username,
		"bio":       u.Bio,
		"followers": formatter.FormatCount(u.Followers),
		"following": formatter.FormatCount(u.Following),
		"posts":     formatter.FormatCount(u.Posts),
	}
	if output.GetOutputFormat() == output.FormatJSON {
		return output.Print("", u)
	}
	if u.Verified {
		record["verified"] = "yes"
	}
	return output.PrintRecord(u.DisplayName, record)
}

var profileMeCmd = &cobra.Command{
	Use:   "me",
	Short: "Show your profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		u, err := a.Profiles.LoadCurrent(cmd.Context())
		if err != nil {
			return err
		}
		if err := printProfile(u); err != nil {
			return err
		}
		if output.GetOutputFormat() != output.FormatJSON {
			if score, tip := service.Completion(u); tip != "" {
				output.PrintInfo("Profile %d%% complete. %s", score, tip)
			}
		}
		return nil
	},
}

var profileViewCmd = &cobra.Command{
	Use:   "view <user-id>",
	Short: "Show another user's profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		u, err := a.Profiles.View(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := printProfile(u); err != nil {
			return err
		}
		if a.Session.CurrentUserID() != "" && a.Session.CurrentUserID() != u.UID && output.GetOutputFormat() != output.FormatJSON {
			following, err := a.Profiles.IsFollowing(cmd.Context(), u.UID)
			if err != nil {
				return err
			}
			if following {
				output.PrintInfo("You follow %s", u.DisplayName)
			}
		}
		return nil
	},
}

var profilePostsCmd = &cobra.Command{
	Use:   "posts [user-id]",
	Short: "List a user's posts (yours by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		uid := a.Session.CurrentUserID()
		if len(args) == 1 {
			uid = args[0]
		}
		if uid == "" {
			return clierrors.AuthError("Not logged in").WithSuggestion("Pass a user id or run 'studyfeed auth login'")
		}
		posts, err := a.Profiles.UserPosts(cmd.Context(), uid, profilePostsMax)
		if err != nil {
			return err
		}
		now := time.Now()
		rows := make([][]string, 0, len(posts))
		for _, p := range posts {
			rows = append(rows, []string{
				p.ID,
				p.Type.Label(),
				formatter.Truncate(p.Preview(), 48),
				formatter.FormatCount(p.Likes),
				formatter.TimeAgo(p.CreatedAt, now),
			})
		}
		return output.PrintList("Posts", posts, []string{"ID", "Type", "Preview", "Likes", "When"}, rows)
	},
}

var profileEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit your name, username or bio",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		var upd service.ProfileUpdate
		if cmd.Flags().Changed("name") {
			upd.DisplayName = &profileName
		}
		if cmd.Flags().Changed("username") {
			upd.Username = &profileUsername
		}
		if cmd.Flags().Changed("bio") {
			upd.Bio = &profileBio
		}
		u, err := a.Profiles.Update(cmd.Context(), upd)
		if err != nil {
			return err
		}
		output.PrintSuccess("Profile updated")
		return printProfile(u)
	},
}

var profileAvatarCmd = &cobra.Command{
	Use:   "avatar <image>",
	Short: "Upload a new profile photo",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		url, err := a.Profiles.UploadAvatar(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		output.PrintSuccess("Profile photo updated")
		output.PrintRaw(url)
		return nil
	},
}

var profileFollowCmd = &cobra.Command{
	Use:   "follow <user-id>",
	Short: "Follow a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		if err := a.Profiles.Follow(cmd.Context(), args[0]); err != nil {
			return err
		}
		output.PrintSuccess("Following %s", args[0])
		return nil
	},
}

var profileUnfollowCmd = &cobra.Command{
	Use:   "unfollow <user-id>",
	Short: "Stop following a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		if err := a.Profiles.Unfollow(cmd.Context(), args[0]); err != nil {
			return err
		}
		output.PrintSuccess("Unfollowed %s", args[0])
		return nil
	},
}

var profileCompletionCmd = &cobra.Command{
	Use:   "completion",
	Short: "Show how complete your profile is",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		u, err := a.Profiles.LoadCurrent(cmd.Context())
		if err != nil {
			return err
		}
		score, tip := service.Completion(u)
		record := map[string]interface{}{"score": strconv.Itoa(score) + "%"}
		if tip != "" {
			record["next"] = tip
		}
		return output.PrintRecord("Profile completion", record)
	},
}

func init() {
	profileEditCmd.Flags().StringVar(&profileName, "name", "", "Display name")
	profileEditCmd.Flags().StringVar(&profileUsername, "username", "", "Username, starting with @")
	profileEditCmd.Flags().StringVar(&profileBio, "bio", "", "Bio, up to 160 characters")
	profilePostsCmd.Flags().IntVar(&profilePostsMax, "limit", 0, "Maximum posts to list")

	profileCmd.AddCommand(profileMeCmd)
	profileCmd.AddCommand(profileViewCmd)
	profileCmd.AddCommand(profilePostsCmd)
	profileCmd.AddCommand(profileEditCmd)
	profileCmd.AddCommand(profileAvatarCmd)
	profileCmd.AddCommand(profileFollowCmd)
	profileCmd.AddCommand(profileUnfollowCmd)
	profileCmd.AddCommand(profileCompletionCmd)
}
