package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	clierrors "github.com/studyhub/studyfeed/pkg/errors"
	"github.com/studyhub/studyfeed/pkg/formatter"
	"github.com/studyhub/studyfeed/pkg/models"
	"github.com/studyhub/studyfeed/pkg/output"
	"github.com/studyhub/studyfeed/pkg/prompter"
)

var (
	exportFile    string
	notesCategory string
	notesSearch   string
	noteTitle     string
	noteCategory  string
)

var studyCmd = &cobra.Command{
	Use:   "study",
	Short: "Track study time and browse shared notes",
	RunE: func(cmd *cobra.Command, args []string) error {
		return studyProgressCmd.RunE(cmd, args)
	},
}

var studyProgressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show study time, streak and completed topics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		p, err := a.Study.Progress()
		if err != nil {
			return err
		}
		if output.GetOutputFormat() == output.FormatJSON {
			return output.Print("", p)
		}
		if err := output.PrintRecord("Study progress", map[string]interface{}{
			"total":  formatMinutes(p.TotalStudyTime),
			"streak": fmt.Sprintf("%d day%s", p.Streak, formatter.Pluralize(p.Streak)),
			"topics": strings.Join(p.CompletedTopics, ", "),
		}); err != nil {
			return err
		}
		if msg, err := a.Study.Reminder(); err == nil && msg != "" {
			output.PrintWarning("%s", msg)
		}
		return nil
	},
}

func formatMinutes(m int) string {
	if m < 60 {
		return strconv.Itoa(m) + "m"
	}
	return fmt.Sprintf("%dh %02dm", m/60, m%60)
}

var studySessionCmd = &cobra.Command{
	Use:   "session [topic]",
	Short: "Time a study session; press Enter to finish",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		if !prompter.Interactive() {
			return clierrors.ValidationError("session", "a timed session needs a terminal; use 'study log' instead")
		}
		topic := strings.Join(args, " ")
		if err := a.Study.StartSession(topic); err != nil {
			return err
		}
		_, start, _ := a.Study.ActiveSession()
		output.PrintInfo("Session started at %s. Press Enter to finish.", start.Format("15:04"))
		if _, err := prompter.PromptString(""); err != nil {
			output.PrintWarning("Input closed; ending the session")
		}
		minutes, err := a.Study.EndSession()
		if err != nil {
			return err
		}
		output.PrintSuccess("Logged %s of study", formatMinutes(minutes))
		return nil
	},
}

var studyLogCmd = &cobra.Command{
	Use:   "log <minutes> [topic]",
	Short: "Log minutes studied",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		minutes, err := strconv.Atoi(args[0])
		if err != nil {
			return clierrors.ValidationError("minutes", "must be a whole number")
		}
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		p, err := a.Study.LogSession(minutes, strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		output.PrintSuccess("Logged %s. Streak: %d day%s", formatMinutes(minutes), p.Streak, formatter.Pluralize(p.Streak))
		return nil
	},
}

var studyCompleteCmd = &cobra.Command{
	Use:   "complete <topic>",
	Short: "Mark a topic as completed",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		p, err := a.Study.MarkTopicCompleted(strings.Join(args, " "))
		if err != nil {
			return err
		}
		output.PrintSuccess("%d topic%s completed", len(p.CompletedTopics), formatter.Pluralize(len(p.CompletedTopics)))
		return nil
	},
}

var studyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show study statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		st, err := a.Study.Statistics()
		if err != nil {
			return err
		}
		if output.GetOutputFormat() == output.FormatJSON {
			return output.Print("", st)
		}
		return output.PrintRecord("Statistics", map[string]interface{}{
			"total":     formatMinutes(st.TotalMinutes),
			"streak":    st.Streak,
			"topics":    st.CompletedTopics,
			"daily avg": formatMinutes(int(st.AveragePerDay)),
		})
	},
}

var studyGoalCmd = &cobra.Command{
	Use:   "goal [minutes-per-day]",
	Short: "Show or set the daily study goal",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		if len(args) == 1 {
			minutes, err := strconv.Atoi(args[0])
			if err != nil {
				return clierrors.ValidationError("minutes", "must be a whole number")
			}
			g, err := a.Study.SetGoal(minutes)
			if err != nil {
				return err
			}
			output.PrintSuccess("Daily goal set to %s", formatMinutes(g.MinutesPerDay))
			return nil
		}
		g, err := a.Study.Goal()
		if err != nil {
			return err
		}
		if g == nil {
			output.PrintInfo("No daily goal set")
			return nil
		}
		output.PrintInfo("Daily goal: %s", formatMinutes(g.MinutesPerDay))
		return nil
	},
}

var studyReminderCmd = &cobra.Command{
	Use:   "reminder",
	Short: "Print a reminder if you have not studied today",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		msg, err := a.Study.Reminder()
		if err != nil {
			return err
		}
		if msg != "" {
			output.PrintRaw(msg)
		}
		return nil
	},
}

var studyActivityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Show recent study activity",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		acts, err := a.Study.Activities()
		if err != nil {
			return err
		}
		now := time.Now()
		rows := make([][]string, 0, len(acts))
		for i := len(acts) - 1; i >= 0; i-- {
			rows = append(rows, []string{acts[i].Type, acts[i].Detail, formatter.RelativeTime(acts[i].At, now)})
		}
		return output.PrintList("Activity", acts, []string{"Type", "Detail", "When"}, rows)
	},
}

var studyInsightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Summarize when and what you study",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		in, err := a.Study.Insights()
		if err != nil {
			return err
		}
		if output.GetOutputFormat() == output.FormatJSON {
			return output.Print("", in)
		}
		return output.PrintRecord("Insights", map[string]interface{}{
			"activities":        in.TotalActivities,
			"most studied time": in.MostStudiedTime,
			"favorite category": in.FavoriteCategory,
			"streak":            in.Statistics.Streak,
		})
	},
}

var studyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export study data as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		data, err := a.Study.Export()
		if err != nil {
			return err
		}
		if exportFile == "" {
			output.PrintRaw(string(data))
			return nil
		}
		if err := os.WriteFile(exportFile, data, 0644); err != nil {
			return clierrors.WriteError("write export", err)
		}
		output.PrintSuccess("Exported to %s", exportFile)
		return nil
	},
}

func printNotes(notes []models.Note) error {
	now := time.Now()
	rows := make([][]string, 0, len(notes))
	for _, n := range notes {
		rows = append(rows, []string{
			n.ID,
			formatter.Truncate(n.Title, 40),
			n.Category,
			formatter.FileSize(n.Size),
			strconv.Itoa(n.Downloads),
			formatter.RelativeTime(n.UploadedAt, now),
		})
	}
	return output.PrintList("Notes", notes, []string{"ID", "Title", "Category", "Size", "Downloads", "Uploaded"}, rows)
}

var studyNotesCmd = &cobra.Command{
	Use:   "notes",
	Short: "Browse shared notes",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		var notes []models.Note
		if notesSearch != "" {
			notes, err = a.Study.SearchNotes(cmd.Context(), notesSearch)
		} else {
			notes, err = a.Study.Notes(cmd.Context(), notesCategory)
		}
		if err != nil {
			return err
		}
		return printNotes(notes)
	},
}

var studyDownloadCmd = &cobra.Command{
	Use:   "download <note-id>",
	Short: "Get a note's download link and record the download",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		n, err := a.Study.DownloadNote(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		output.PrintRaw(n.FileURL)
		return nil
	},
}

var studyDownloadsCmd = &cobra.Command{
	Use:   "downloads",
	Short: "List notes you have downloaded",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		downloads, err := a.Study.Downloads()
		if err != nil {
			return err
		}
		now := time.Now()
		rows := make([][]string, 0, len(downloads))
		for _, d := range downloads {
			rows = append(rows, []string{d.NoteID, d.Title, formatter.RelativeTime(d.At, now)})
		}
		return output.PrintList("Downloads", downloads, []string{"Note", "Title", "When"}, rows)
	},
}

var studyUploadCmd = &cobra.Command{
	Use:   "upload <file.pdf>",
	Short: "Share a PDF note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		id, err := a.Study.UploadNote(cmd.Context(), args[0], noteTitle, noteCategory)
		if err != nil {
			return err
		}
		output.PrintSuccess("Note uploaded (%s)", id)
		return nil
	},
}

func init() {
	studyExportCmd.Flags().StringVarP(&exportFile, "file", "f", "", "Write the export to a file instead of stdout")
	studyNotesCmd.Flags().StringVar(&notesCategory, "category", "", "Only notes in this category")
	studyNotesCmd.Flags().StringVar(&notesSearch, "search", "", "Search note titles")
	studyUploadCmd.Flags().StringVar(&noteTitle, "title", "", "Note title")
	studyUploadCmd.Flags().StringVar(&noteCategory, "category", "general", "Note category")
	_ = studyUploadCmd.MarkFlagRequired("title")

	studyCmd.AddCommand(studyProgressCmd)
	studyCmd.AddCommand(studySessionCmd)
	studyCmd.AddCommand(studyLogCmd)
	studyCmd.AddCommand(studyCompleteCmd)
	studyCmd.AddCommand(studyStatsCmd)
	studyCmd.AddCommand(studyGoalCmd)
	studyCmd.AddCommand(studyReminderCmd)
	studyCmd.AddCommand(studyActivityCmd)
	studyCmd.AddCommand(studyInsightsCmd)
	studyCmd.AddCommand(studyExportCmd)
	studyCmd.AddCommand(studyNotesCmd)
	studyCmd.AddCommand(studyDownloadCmd)
	studyCmd.AddCommand(studyDownloadsCmd)
	studyCmd.AddCommand(studyUploadCmd)
}
