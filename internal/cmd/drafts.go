package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/studyhub/studyfeed/pkg/formatter"
	"github.com/studyhub/studyfeed/pkg/output"
)

var draftsCmd = &cobra.Command{
	Use:     "drafts",
	Aliases: []string{"draft"},
	Short:   "Manage locally saved drafts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return draftsListCmd.RunE(cmd, args)
	},
}

var draftsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List drafts, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		drafts, err := a.Creation.ListDrafts()
		if err != nil {
			return err
		}
		if len(drafts) == 0 && output.GetOutputFormat() != output.FormatJSON {
			output.PrintInfo("No drafts yet")
			return nil
		}
		now := time.Now()
		rows := make([][]string, 0, len(drafts))
		for _, d := range drafts {
			rows = append(rows, []string{
				d.ID,
				d.Type.Label(),
				formatter.Truncate(d.Preview(), 48),
				formatter.RelativeTime(d.SavedAt, now),
			})
		}
		return output.PrintList("Drafts", drafts, []string{"ID", "Type", "Preview", "Saved"}, rows)
	},
}

var draftsDeleteCmd = &cobra.Command{
	Use:   "delete <draft-id>",
	Short: "Delete a draft",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		if err := a.Creation.DeleteDraft(args[0]); err != nil {
			return err
		}
		output.PrintSuccess("Draft deleted")
		return nil
	},
}

var (
	draftImage   string
	draftNoImage bool
)

var draftsPublishCmd = &cobra.Command{
	Use:   "publish <draft-id>",
	Short: "Publish a draft",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		if _, err := a.Creation.LoadDraft(args[0]); err != nil {
			return err
		}
		switch {
		case draftNoImage:
			a.Creation.ClearMedia()
		case draftImage != "":
			if _, err := a.Creation.SelectMedia(draftImage); err != nil {
				return err
			}
		}
		id, err := a.Creation.HandlePublishPost(cmd.Context())
		if err != nil {
			return err
		}
		output.PrintInfo("Post id: %s", id)
		return nil
	},
}

func init() {
	draftsPublishCmd.Flags().StringVar(&draftImage, "image", "", "Attach this image before publishing")
	draftsPublishCmd.Flags().BoolVar(&draftNoImage, "no-image", false, "Publish without the draft's image")
	draftsPublishCmd.MarkFlagsMutuallyExclusive("image", "no-image")

	draftsCmd.AddCommand(draftsListCmd)
	draftsCmd.AddCommand(draftsDeleteCmd)
	draftsCmd.AddCommand(draftsPublishCmd)
}
