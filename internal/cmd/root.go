package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"github.com/studyhub/studyfeed/internal/app"
	"github.com/studyhub/studyfeed/pkg/backend"
	"github.com/studyhub/studyfeed/pkg/config"
	clierrors "github.com/studyhub/studyfeed/pkg/errors"
	"github.com/studyhub/studyfeed/pkg/logger"
	"github.com/studyhub/studyfeed/pkg/output"
	"github.com/studyhub/studyfeed/pkg/prompter"
	"github.com/studyhub/studyfeed/pkg/service"
)

var (
	verbose    bool
	configPath string
	outputFmt  string
	offline    bool
	assumeYes  bool

	// showFeed lets feed reloads print cards; only the feed command sets it.
	showFeed bool
	current  *app.App
)

var rootCmd = &cobra.Command{
	Use:   "studyfeed",
	Short: "StudyFeed CLI - social study feed in your terminal",
	Long: `StudyFeed is a command-line client for the StudyFeed learning community.
Browse the feed, answer quizzes and polls, flip flashcards, publish posts,
keep drafts, follow classmates, chat, and track your study streak.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Init(configPath); err != nil {
			return fmt.Errorf("initializing config: %w", err)
		}
		logger.Init(verbose)

		if !output.ValidateOutputFormat(outputFmt) {
			return clierrors.ValidationError("output", "must be one of text, json, table")
		}
		config.Set("output.format", outputFmt)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if current != nil {
			if err := current.Close(); err != nil {
				logger.Warn("Cleanup failed", "error", err)
			}
			current = nil
		}
		_ = logger.Close()
	},
}

// getApp builds the container on first use so commands that never touch the
// backend (version, completion) stay cheap.
func getApp(ctx context.Context) (*app.App, error) {
	if current != nil {
		return current, nil
	}
	opts := app.Options{Offline: offline}
	if !showFeed || output.GetOutputFormat() == output.FormatJSON {
		opts.FeedView = service.NopFeedView{}
	}
	a, err := app.New(ctx, opts)
	if err != nil {
		return nil, err
	}
	current = a
	return a, nil
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprint(os.Stderr, clierrors.FormatError(fromBackend(err)))
		if current != nil {
			_ = current.Close()
		}
		os.Exit(1)
	}
}

// logLiveStats records realtime connection counters after a watch ends.
func logLiveStats(a *app.App) {
	if a.Live == nil {
		return
	}
	st := a.Live.GetStats()
	logger.Debug("Realtime session ended",
		"received", st.MessagesReceived,
		"sent", st.MessagesSent,
		"reconnects", st.ReconnectCount,
		"last_error", st.LastError)
}

// confirm asks before destructive commands unless --yes was given.
func confirm(label string) (bool, error) {
	if assumeYes {
		return true, nil
	}
	if !prompter.Interactive() {
		return false, clierrors.ValidationError("yes", "pass --yes to confirm when not running in a terminal")
	}
	return prompter.PromptConfirm(label)
}

// fromBackend maps remote backend failures onto CLI error types.
func fromBackend(err error) error {
	var apiErr *backend.APIError
	switch {
	case backend.IsUnauthorized(err):
		return clierrors.UnauthorizedError()
	case backend.IsServerError(err):
		return clierrors.ServerError()
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict:
		return clierrors.ConflictError(apiErr.Message)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: ~/.config/studyfeed/config.toml)")
	rootCmd.PersistentFlags().StringVar(&outputFmt, "output", "text", "Output format: text, json, table")
	rootCmd.PersistentFlags().BoolVar(&offline, "offline", false, "Use the local sqlite backend instead of the server")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "Skip confirmation prompts")

	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(feedCmd)
	rootCmd.AddCommand(postCmd)
	rootCmd.AddCommand(draftsCmd)
	rootCmd.AddCommand(notificationsCmd)
	rootCmd.AddCommand(messagesCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(studyCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(versionCmd)
}
