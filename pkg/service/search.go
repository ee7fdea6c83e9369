package service

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/studyhub/studyfeed/pkg/backend"
	clierrors "github.com/studyhub/studyfeed/pkg/errors"
	"github.com/studyhub/studyfeed/pkg/localstore"
	"github.com/studyhub/studyfeed/pkg/logger"
	"github.com/studyhub/studyfeed/pkg/models"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultSearchDebounce = 500 * time.Millisecond
	DefaultRecentMax      = 10
	DefaultResultLimit    = 5
)

var hashtagRe = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)

// Debouncer runs only the last function triggered within the delay.
type Debouncer struct {
	delay time.Duration
	mu    sync.Mutex
	timer *time.Timer
}

func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Trigger schedules fn, cancelling any pending call.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, fn)
}

// Cancel drops the pending call, if any.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// SearchOptions tunes a SearchService.
type SearchOptions struct {
	Debounce     time.Duration
	RecentMax    int
	ResultLimit  int
	DemoFallback bool
}

// SearchService runs prefix searches over users and posts and keeps the
// recent-search list.
type SearchService struct {
	gw        *backend.Gateway
	local     localstore.Store
	debouncer *Debouncer
	opts      SearchOptions

	mu  sync.Mutex
	seq uint64
}

func NewSearchService(gw *backend.Gateway, local localstore.Store, opts SearchOptions) *SearchService {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultSearchDebounce
	}
	if opts.RecentMax <= 0 {
		opts.RecentMax = DefaultRecentMax
	}
	if opts.ResultLimit <= 0 {
		opts.ResultLimit = DefaultResultLimit
	}
	return &SearchService{gw: gw, local: local, debouncer: NewDebouncer(opts.Debounce), opts: opts}
}

func (s *SearchService) prefix(coll, field, q string) *backend.QueryBuilder {
	return s.gw.Collection(coll).
		Where(field, backend.OpGreaterOrEqual, q).
		Where(field, backend.OpLessOrEqual, q+backend.PrefixEnd).
		OrderBy(field, backend.Asc).
		Limit(s.opts.ResultLimit)
}

// Search queries users by display name and posts by content prefix in
// parallel. Topics are the hashtags found in matching posts.
func (s *SearchService) Search(ctx context.Context, query string) (*models.SearchResults, error) {
	q := strings.TrimSpace(query)
	res := &models.SearchResults{Query: q}
	if q == "" {
		return res, nil
	}

	var users []models.User
	var posts []models.Post
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		snap, err := s.prefix(backend.CollectionUsers, "displayName", q).Get(gctx)
		if err != nil {
			return err
		}
		decoded, err := backend.DecodeAll[models.User](snap)
		if err != nil {
			return err
		}
		for i := range decoded {
			decoded[i].UID = snap.Docs[i].ID
		}
		users = decoded
		return nil
	})
	g.Go(func() error {
		snap, err := s.prefix(backend.CollectionPosts, "content", strings.TrimPrefix(q, "#")).Get(gctx)
		if err != nil {
			return err
		}
		decoded, err := backend.DecodeAll[models.Post](snap)
		if err != nil {
			return err
		}
		posts = decoded
		return nil
	})
	if err := g.Wait(); err != nil {
		logger.Error("Search failed", "query", q, "error", err)
		if s.opts.DemoFallback {
			return demoResults(q), nil
		}
		return nil, clierrors.ReadError("Search failed. Please try again.", err)
	}

	res.Users = users
	for i := range posts {
		res.Posts = append(res.Posts, *posts[i].Public())
	}
	res.Topics = topicsFrom(posts)

	if res.Empty() && s.opts.DemoFallback {
		return demoResults(q), nil
	}
	logger.Debug("Search results", "query", q, "users", len(res.Users), "posts", len(res.Posts), "topics", len(res.Topics))
	return res, nil
}

func topicsFrom(posts []models.Post) []models.Topic {
	counts := map[string]int{}
	for _, p := range posts {
		text := p.Content + " " + p.Question + " " + p.Caption
		for _, m := range hashtagRe.FindAllStringSubmatch(text, -1) {
			counts[m[1]]++
		}
	}
	topics := make([]models.Topic, 0, len(counts))
	for name, n := range counts {
		topics = append(topics, models.Topic{Name: name, Count: n})
	}
	sort.Slice(topics, func(i, j int) bool {
		if topics[i].Count != topics[j].Count {
			return topics[i].Count > topics[j].Count
		}
		return topics[i].Name < topics[j].Name
	})
	return topics
}

func demoResults(q string) *models.SearchResults {
	return &models.SearchResults{
		Query: q,
		Users: []models.User{
			{UID: "demo_rahul", DisplayName: "Rahul Verma", Username: "@rahul", Bio: "UPSC aspirant"},
			{UID: "demo_amit", DisplayName: "Amit Kumar", Username: "@amit", Bio: "Physics enthusiast"},
		},
		Topics: []models.Topic{
			{Name: "Modern History", Count: 245},
			{Name: "Physics", Count: 892},
		},
	}
}

// Input is called on every keystroke. onResult receives the result of the
// last input after the debounce delay; superseded results are dropped.
func (s *SearchService) Input(ctx context.Context, text string, onResult func(*models.SearchResults, error)) {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	if strings.TrimSpace(text) == "" {
		s.debouncer.Cancel()
		onResult(&models.SearchResults{}, nil)
		return
	}

	s.debouncer.Trigger(func() {
		res, err := s.Search(ctx, text)
		s.mu.Lock()
		stale := seq != s.seq
		s.mu.Unlock()
		if stale {
			return
		}
		onResult(res, err)
	})
}

// Enter searches immediately and records the query as recent.
func (s *SearchService) Enter(ctx context.Context, text string) (*models.SearchResults, error) {
	s.debouncer.Cancel()
	s.mu.Lock()
	s.seq++
	s.mu.Unlock()

	if q := strings.TrimSpace(text); q != "" {
		if err := s.AddRecent(q); err != nil {
			logger.Warn("Failed to store recent search", "error", err)
		}
	}
	return s.Search(ctx, text)
}

// Recent returns recent searches, newest first.
func (s *SearchService) Recent() ([]string, error) {
	var recent []string
	if _, err := s.local.Get(localstore.KeyRecentSearches, &recent); err != nil {
		return nil, clierrors.ReadError("Failed to load recent searches", err)
	}
	return recent, nil
}

// AddRecent moves q to the front, removing duplicates and capping the list.
func (s *SearchService) AddRecent(q string) error {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil
	}
	recent, err := s.Recent()
	if err != nil {
		return err
	}
	out := []string{q}
	for _, r := range recent {
		if r != q {
			out = append(out, r)
		}
	}
	if len(out) > s.opts.RecentMax {
		out = out[:s.opts.RecentMax]
	}
	return s.local.Set(localstore.KeyRecentSearches, out)
}

func (s *SearchService) RemoveRecent(q string) error {
	recent, err := s.Recent()
	if err != nil {
		return err
	}
	out := recent[:0]
	for _, r := range recent {
		if r != q {
			out = append(out, r)
		}
	}
	return s.local.Set(localstore.KeyRecentSearches, out)
}

func (s *SearchService) ClearRecent() error {
	return s.local.Delete(localstore.KeyRecentSearches)
}
