package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/studyhub/studyfeed/internal/app"
	clierrors "github.com/studyhub/studyfeed/pkg/errors"
	"github.com/studyhub/studyfeed/pkg/logger"
	"github.com/studyhub/studyfeed/pkg/models"
	"github.com/studyhub/studyfeed/pkg/output"
	"github.com/studyhub/studyfeed/pkg/render"
)

var (
	postType        string
	postText        string
	postBackground  string
	postQuestion    string
	postOptions     []string
	postCorrect     int
	postAnswer      string
	postExplanation string
	postFront       string
	postBack        string
	postCaption     string
	postImage       string
	postAsDraft     bool
)

var postCmd = &cobra.Command{
	Use:   "post",
	Short: "View, answer and create posts",
}

var postViewCmd = &cobra.Command{
	Use:   "view <post-id>",
	Short: "Show a single post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		p, err := a.Feed.Post(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if output.GetOutputFormat() == output.FormatJSON {
			return output.Print("", p)
		}
		output.PrintRaw(a.Renderer.Render(p))
		return nil
	},
}

var postAnswerCmd = &cobra.Command{
	Use:   "answer <post-id> <answer>",
	Short: "Answer a quiz (option 1-4) or a poll (yes/no)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		p, err := a.Feed.Post(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		view := render.NewPostView(p, a.Resolver)
		view.OnAnswered(func(e render.AnswerEvent) {
			if err := a.Study.TrackActivity("answer", fmt.Sprintf("%s %s", p.Type, e.PostID)); err != nil {
				logger.Warn("Failed to record answer", "post", e.PostID, "error", err)
			}
		})

		answer := strings.ToLower(strings.TrimSpace(args[1]))
		switch p.Type {
		case models.PostTypeQuiz:
			n, convErr := strconv.Atoi(answer)
			if convErr != nil || n < 1 || n > len(p.Options) {
				return clierrors.ValidationError("answer", fmt.Sprintf("pick an option between 1 and %d", len(p.Options)))
			}
			_, err = view.SelectOption(cmd.Context(), n-1)
		case models.PostTypePoll:
			_, err = view.AnswerPoll(cmd.Context(), answer)
		default:
			return clierrors.ValidationError("post", fmt.Sprintf("%s posts cannot be answered", p.Type.Label()))
		}
		if err != nil {
			return err
		}

		if output.GetOutputFormat() == output.FormatJSON {
			return output.Print("", view.State().Verdict)
		}
		output.PrintRaw(a.Renderer.RenderView(view))
		return nil
	},
}

var postFlipCmd = &cobra.Command{
	Use:   "flip <post-id>",
	Short: "Show the back of a flashcard",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		p, err := a.Feed.Post(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		view := render.NewPostView(p, a.Resolver)
		if _, err := view.Flip(); err != nil {
			return clierrors.ValidationError("post", "only flashcards can be flipped")
		}
		output.PrintRaw(a.Renderer.RenderView(view))
		return nil
	},
}

var postCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Publish a new post",
	Long: `Publish a text, quiz, poll, flashcard or media post.

  studyfeed post create --text "Mitochondria is the powerhouse"
  studyfeed post create --type quiz --question "2+2?" --option 3 --option 4 --option 5 --option 22 --correct 2
  studyfeed post create --type poll --question "Is light a wave?" --answer yes
  studyfeed post create --type card --front "Avogadro" --back "6.022e23"
  studyfeed post create --type media --image diagram.png --caption "Krebs cycle"

Use --draft to keep the post as a local draft instead of publishing it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		if err := fillCreationForm(a); err != nil {
			return err
		}

		if postAsDraft {
			d, err := a.Creation.SaveDraft()
			if err != nil {
				return err
			}
			output.PrintInfo("Draft id: %s", d.ID)
			return nil
		}

		id, err := a.Creation.HandlePublishPost(cmd.Context())
		if err != nil {
			return err
		}
		if output.GetOutputFormat() == output.FormatJSON {
			return output.Print("", map[string]string{"id": id})
		}
		output.PrintInfo("Post id: %s", id)
		return nil
	},
}

// fillCreationForm copies the create flags into the creation form.
func fillCreationForm(a *app.App) error {
	t, err := models.ParsePostType(postType)
	if err != nil {
		return clierrors.ValidationError("type", err.Error())
	}
	c := a.Creation
	if err := c.SwitchPostType(t); err != nil {
		return err
	}

	switch t {
	case models.PostTypeQuiz:
		c.SetQuizQuestion(postQuestion)
		if len(postOptions) > models.QuizOptionCount {
			return clierrors.ValidationError("option", fmt.Sprintf("a quiz has exactly %d options", models.QuizOptionCount))
		}
		for i, opt := range postOptions {
			if err := c.SetQuizOption(i, opt); err != nil {
				return err
			}
		}
		if postCorrect > 0 {
			if err := c.SetQuizCorrect(postCorrect - 1); err != nil {
				return err
			}
		}
		c.SetExplanation(postExplanation)
	case models.PostTypePoll:
		c.SetPollQuestion(postQuestion)
		if postAnswer != "" {
			if err := c.SetPollAnswer(strings.ToLower(postAnswer)); err != nil {
				return err
			}
		}
		c.SetExplanation(postExplanation)
	case models.PostTypeCard:
		c.SetCardFront(postFront)
		c.SetCardBack(postBack)
	case models.PostTypeMedia:
		c.SetCaption(postCaption)
		if postImage != "" {
			if _, err := c.SelectMedia(postImage); err != nil {
				return err
			}
		}
	default:
		c.SetText(postText)
		if postBackground != "" {
			c.SetBackground(postBackground)
		}
	}
	return nil
}

func init() {
	postCreateCmd.Flags().StringVar(&postType, "type", string(models.PostTypeText), "Post type: text, quiz, poll, card, media")
	postCreateCmd.Flags().StringVar(&postText, "text", "", "Text post content")
	postCreateCmd.Flags().StringVar(&postBackground, "bg", "", "Text post background color (#rrggbb)")
	postCreateCmd.Flags().StringVar(&postQuestion, "question", "", "Quiz or poll question")
	postCreateCmd.Flags().StringArrayVar(&postOptions, "option", nil, "Quiz option (repeat 4 times)")
	postCreateCmd.Flags().IntVar(&postCorrect, "correct", 0, "Correct quiz option, 1-4")
	postCreateCmd.Flags().StringVar(&postAnswer, "answer", "", "Correct poll answer: yes or no")
	postCreateCmd.Flags().StringVar(&postExplanation, "explanation", "", "Explanation shown after answering")
	postCreateCmd.Flags().StringVar(&postFront, "front", "", "Flashcard front")
	postCreateCmd.Flags().StringVar(&postBack, "back", "", "Flashcard back")
	postCreateCmd.Flags().StringVar(&postCaption, "caption", "", "Media post caption")
	postCreateCmd.Flags().StringVar(&postImage, "image", "", "Image file for a media post")
	postCreateCmd.Flags().BoolVar(&postAsDraft, "draft", false, "Save as a draft instead of publishing")

	postCmd.AddCommand(postViewCmd)
	postCmd.AddCommand(postAnswerCmd)
	postCmd.AddCommand(postFlipCmd)
	postCmd.AddCommand(postCreateCmd)
}
