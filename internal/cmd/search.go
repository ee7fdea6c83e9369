package cmd

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"github.com/studyhub/studyfeed/pkg/formatter"
	"github.com/studyhub/studyfeed/pkg/logger"
	"github.com/studyhub/studyfeed/pkg/models"
	"github.com/studyhub/studyfeed/pkg/output"
	"github.com/studyhub/studyfeed/pkg/prompter"
	"github.com/studyhub/studyfeed/pkg/service"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search users, topics and posts",
	Long:  "Search by name or post text. Without a query, recent searches are offered.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		query := strings.Join(args, " ")
		if strings.TrimSpace(query) == "" {
			if query, err = promptQuery(a.Search.Recent); err != nil {
				return err
			}
		}
		res, err := a.Search.Enter(cmd.Context(), query)
		if err != nil {
			return err
		}
		return printSearchResults(res)
	},
}

// promptQuery lets the user pick a recent search or type a new one.
func promptQuery(recent func() ([]string, error)) (string, error) {
	items, err := recent()
	if err != nil {
		return "", err
	}
	if len(items) > 0 && prompter.Interactive() {
		options := append(append([]string{}, items...), "New search")
		idx, err := prompter.PromptSelect("Recent searches", options)
		if err != nil {
			return "", err
		}
		if idx < len(items) {
			return items[idx], nil
		}
	}
	return prompter.PromptString("Search: ")
}

func printSearchResults(res *models.SearchResults) error {
	if output.GetOutputFormat() == output.FormatJSON {
		return output.Print("", res)
	}
	if res.Empty() {
		output.PrintInfo("No results for %q", res.Query)
		return nil
	}
	if len(res.Users) > 0 {
		rows := make([][]string, 0, len(res.Users))
		for _, u := range res.Users {
			rows = append(rows, []string{u.UID, u.DisplayName, u.Username, formatter.Truncate(u.Bio, 40)})
		}
		if err := output.PrintList("Users", res.Users, []string{"ID", "Name", "Username", "Bio"}, rows); err != nil {
			return err
		}
	}
	if len(res.Topics) > 0 {
		rows := make([][]string, 0, len(res.Topics))
		for _, t := range res.Topics {
			rows = append(rows, []string{"#" + t.Name, strconv.Itoa(t.Count) + " post" + formatter.Pluralize(t.Count)})
		}
		if err := output.PrintList("Topics", res.Topics, []string{"Topic", "Posts"}, rows); err != nil {
			return err
		}
	}
	if len(res.Posts) > 0 {
		rows := make([][]string, 0, len(res.Posts))
		for _, p := range res.Posts {
			rows = append(rows, []string{p.ID, p.Type.Label(), p.AuthorName, formatter.Truncate(p.Preview(), 48)})
		}
		if err := output.PrintList("Posts", res.Posts, []string{"ID", "Type", "Author", "Preview"}, rows); err != nil {
			return err
		}
	}
	return nil
}

var searchLiveCmd = &cobra.Command{
	Use:   "live",
	Short: "Search as you type",
	Long: `Each line you type replaces the search text. Results for the latest
text print after a short pause. An empty line, or end of input, searches
right away and keeps the query in recent searches.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		var mu sync.Mutex
		show := func(res *models.SearchResults, err error) {
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				output.PrintError("%s", err)
				return
			}
			if err := printSearchResults(res); err != nil {
				logger.Warn("Failed to print results", "error", err)
			}
		}
		return liveSearch(cmd.Context(), a.Search, cmd.InOrStdin(), show)
	},
}

// liveSearch feeds each input line to the debounced search. An empty line
// or EOF submits the latest text immediately.
func liveSearch(ctx context.Context, svc *service.SearchService, in io.Reader, show func(*models.SearchResults, error)) error {
	var last string
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			if last != "" {
				show(svc.Enter(ctx, last))
				last = ""
			}
			continue
		}
		last = text
		svc.Input(ctx, text, show)
	}
	if last != "" {
		show(svc.Enter(ctx, last))
	}
	return sc.Err()
}

var searchRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List recent searches",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		recent, err := a.Search.Recent()
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(recent))
		for _, q := range recent {
			rows = append(rows, []string{q})
		}
		return output.PrintList("Recent searches", recent, []string{"Query"}, rows)
	},
}

var searchForgetCmd = &cobra.Command{
	Use:   "forget <query>",
	Short: "Remove one recent search",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		if err := a.Search.RemoveRecent(strings.Join(args, " ")); err != nil {
			return err
		}
		output.PrintSuccess("Removed from recent searches")
		return nil
	},
}

var searchClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear recent searches",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		if err := a.Search.ClearRecent(); err != nil {
			return err
		}
		output.PrintSuccess("Recent searches cleared")
		return nil
	},
}

func init() {
	searchCmd.AddCommand(searchLiveCmd)
	searchCmd.AddCommand(searchRecentCmd)
	searchCmd.AddCommand(searchForgetCmd)
	searchCmd.AddCommand(searchClearCmd)
}
