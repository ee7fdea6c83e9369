package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/studyhub/studyfeed/pkg/backend"
	clierrors "github.com/studyhub/studyfeed/pkg/errors"
	"github.com/studyhub/studyfeed/pkg/logger"
	"github.com/studyhub/studyfeed/pkg/models"
	"github.com/studyhub/studyfeed/pkg/render"
)

const (
	FeedErrorMessage = "Error loading feed. Please try again."
	FeedEmptyMessage = "No posts yet. Be the first to share something!"

	DefaultFeedPageSize        = 10
	DefaultFeedScrollThreshold = 0.8
)

// FeedView receives feed updates. Replace is used for the first page,
// Append for later ones.
type FeedView interface {
	Replace(posts []*models.Post)
	Append(posts []*models.Post)
	ShowEmpty(msg string)
	ShowError(msg string)
}

// AnswerRegistry keeps answer-bearing records for local verdicts.
type AnswerRegistry interface {
	Remember(p *models.Post)
	Forget(postID string)
}

// FeedPage is one loaded page after de-duplication.
type FeedPage struct {
	Posts  []*models.Post
	Cursor backend.Cursor
	// Exhausted is set when a later page came back empty.
	Exhausted bool
}

// FeedOptions tunes a FeedService.
type FeedOptions struct {
	PageSize        int
	ScrollThreshold float64
	ShareBaseURL    string
}

// FeedService pages the global post stream newest-first. At most one page
// load is in flight; overlapping calls are dropped.
type FeedService struct {
	gw           *backend.Gateway
	interactions *InteractionStore
	answers      AnswerRegistry
	view         FeedView
	opts         FeedOptions

	loading atomic.Bool

	mu        sync.Mutex
	posts     []*models.Post
	seen      map[string]bool
	cursor    backend.Cursor
	exhausted bool
}

func NewFeedService(gw *backend.Gateway, interactions *InteractionStore, answers AnswerRegistry, view FeedView, opts FeedOptions) *FeedService {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultFeedPageSize
	}
	if opts.ScrollThreshold <= 0 || opts.ScrollThreshold > 1 {
		opts.ScrollThreshold = DefaultFeedScrollThreshold
	}
	return &FeedService{
		gw:           gw,
		interactions: interactions,
		answers:      answers,
		view:         view,
		opts:         opts,
		seen:         make(map[string]bool),
	}
}

// LoadPage fetches the page after cursor, or the first page when cursor is
// empty. It returns nil, nil when another load is still running.
func (s *FeedService) LoadPage(ctx context.Context, cursor backend.Cursor) (*FeedPage, error) {
	if !s.loading.CompareAndSwap(false, true) {
		logger.Debug("Feed load already in flight, dropping request")
		return nil, nil
	}
	defer s.loading.Store(false)

	logger.Debug("Loading feed page", "cursor", cursor, "limit", s.opts.PageSize)

	q := s.gw.Collection(backend.CollectionPosts).
		OrderBy("createdAt", backend.Desc).
		Limit(s.opts.PageSize)
	if cursor != "" {
		q = q.StartAfter(cursor)
	}
	snap, err := q.Get(ctx)
	if err != nil {
		logger.Error("Failed to load feed", "error", err)
		s.view.ShowError(FeedErrorMessage)
		return nil, clierrors.ReadError(FeedErrorMessage, err)
	}

	posts, err := backend.DecodeAll[models.Post](snap)
	if err != nil {
		s.view.ShowError(FeedErrorMessage)
		return nil, clierrors.ReadError(FeedErrorMessage, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cursor == "" {
		s.posts = nil
		s.seen = make(map[string]bool)
		s.exhausted = false
	} else if len(posts) == 0 {
		s.exhausted = true
		return &FeedPage{Cursor: s.cursor, Exhausted: true}, nil
	}

	fresh := make([]*models.Post, 0, len(posts))
	for i := range posts {
		p := &posts[i]
		if s.seen[p.ID] {
			continue
		}
		s.seen[p.ID] = true
		if s.answers != nil {
			s.answers.Remember(p)
		}
		fresh = append(fresh, p.Public())
	}
	s.posts = append(s.posts, fresh...)
	if snap.Last != "" {
		s.cursor = snap.Last
	}

	switch {
	case cursor == "" && len(fresh) == 0:
		s.view.ShowEmpty(FeedEmptyMessage)
	case cursor == "":
		s.view.Replace(fresh)
	case len(fresh) > 0:
		s.view.Append(fresh)
	}

	logger.Debug("Loaded feed page", "count", len(fresh), "total", len(s.posts))
	return &FeedPage{Posts: fresh, Cursor: s.cursor}, nil
}

// Reload discards the loaded posts and fetches the first page.
func (s *FeedService) Reload(ctx context.Context) (*FeedPage, error) {
	return s.LoadPage(ctx, "")
}

// LoadMore fetches the next page unless the feed is exhausted.
func (s *FeedService) LoadMore(ctx context.Context) (*FeedPage, error) {
	s.mu.Lock()
	cursor, exhausted, loaded := s.cursor, s.exhausted, len(s.posts) > 0
	s.mu.Unlock()
	if exhausted {
		return nil, nil
	}
	if !loaded {
		return s.Reload(ctx)
	}
	return s.LoadPage(ctx, cursor)
}

// OnScroll loads the next page once position reaches the threshold share of height.
func (s *FeedService) OnScroll(ctx context.Context, position, height float64) (*FeedPage, error) {
	if height <= 0 || position/height < s.opts.ScrollThreshold {
		return nil, nil
	}
	return s.LoadMore(ctx)
}

// Loading reports whether a page load is in flight.
func (s *FeedService) Loading() bool { return s.loading.Load() }

// Exhausted reports whether the end of the feed was reached.
func (s *FeedService) Exhausted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exhausted
}

// Posts returns the loaded public records in display order.
func (s *FeedService) Posts() []*models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.Post(nil), s.posts...)
}

func (s *FeedService) find(id string) *models.Post {
	for _, p := range s.posts {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Post returns a loaded post, or fetches it when it is not on screen.
func (s *FeedService) Post(ctx context.Context, id string) (*models.Post, error) {
	s.mu.Lock()
	p := s.find(id)
	s.mu.Unlock()
	if p != nil {
		return p, nil
	}

	doc, err := s.gw.Collection(backend.CollectionPosts).Doc(id).Get(ctx)
	if err != nil {
		if backend.IsNotFound(err) {
			return nil, clierrors.NotFoundError("Post", id)
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	var full models.Post
	if err := doc.DataTo(&full); err != nil {
		return nil, fmt.Errorf("failed to decode post: %w", err)
	}
	if s.answers != nil {
		s.answers.Remember(&full)
	}
	return full.Public(), nil
}

// adjust applies fn to the on-screen copy of a post.
func (s *FeedService) adjust(id string, fn func(p *models.Post)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p := s.find(id); p != nil {
		fn(p)
	}
}

func floorZero(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// ToggleLike flips the local like and shifts the on-screen count.
func (s *FeedService) ToggleLike(ctx context.Context, postID string) (LikeState, error) {
	st, err := s.interactions.ToggleLike(ctx, postID)
	if err != nil {
		return st, clierrors.WriteError("save like", err)
	}
	s.adjust(postID, func(p *models.Post) { p.Likes = floorZero(p.Likes + st.Delta) })
	return st, nil
}

// ToggleSave flips the local save.
func (s *FeedService) ToggleSave(postID string) (SaveState, error) {
	st, err := s.interactions.ToggleSave(postID)
	if err != nil {
		return st, clierrors.WriteError("save bookmark", err)
	}
	return st, nil
}

// CopyLink builds the shareable URL for a post.
func (s *FeedService) CopyLink(postID string) string {
	return strings.TrimRight(s.opts.ShareBaseURL, "/") + "/post/" + postID
}

// Share returns the post link and bumps its share counter. A failed
// increment is logged and the link is still returned.
func (s *FeedService) Share(ctx context.Context, postID string) string {
	link := s.CopyLink(postID)
	err := s.gw.Collection(backend.CollectionPosts).Doc(postID).Update(ctx, backend.Fields{
		"shares": backend.Increment(1),
	})
	if err != nil {
		logger.Error("Failed to record share", "post_id", postID, "error", err)
		return link
	}
	s.adjust(postID, func(p *models.Post) { p.Shares++ })
	return link
}

// NotInterested hides a post for the rest of the session.
func (s *FeedService) NotInterested(postID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.posts {
		if p.ID == postID {
			s.posts = append(s.posts[:i], s.posts[i+1:]...)
			return true
		}
	}
	return false
}

// DeletePost removes one of the signed-in user's posts.
func (s *FeedService) DeletePost(ctx context.Context, postID string) error {
	uid, err := s.gw.RequireUser()
	if err != nil {
		return clierrors.AuthError("Sign in to delete posts")
	}
	p, err := s.Post(ctx, postID)
	if err != nil {
		return err
	}
	if p.AuthorID != uid {
		return clierrors.ForbiddenError().WithSuggestion("You can only delete your own posts")
	}

	if err := s.gw.Collection(backend.CollectionPosts).Doc(postID).Delete(ctx); err != nil {
		return clierrors.WriteError("delete post", err)
	}
	s.NotInterested(postID)
	if s.answers != nil {
		s.answers.Forget(postID)
	}
	if err := s.gw.Collection(backend.CollectionUsers).Doc(uid).Update(ctx, backend.Fields{
		"posts": backend.Increment(-1),
	}); err != nil {
		logger.Debug("Failed to decrement post count", "uid", uid, "error", err)
	}

	logger.Info("Deleted post", "post_id", postID)
	return nil
}

// TextFeedView writes cards to w.
type TextFeedView struct {
	W        io.Writer
	Renderer *render.Renderer
}

func (v *TextFeedView) Replace(posts []*models.Post) { v.write(posts) }
func (v *TextFeedView) Append(posts []*models.Post)  { v.write(posts) }
func (v *TextFeedView) ShowEmpty(msg string)         { fmt.Fprintln(v.W, msg) }
func (v *TextFeedView) ShowError(msg string)         { fmt.Fprintln(v.W, msg) }

func (v *TextFeedView) write(posts []*models.Post) {
	if len(posts) == 0 {
		return
	}
	fmt.Fprintln(v.W, v.Renderer.RenderAll(posts))
}

// NopFeedView discards updates, for JSON output and tests.
type NopFeedView struct{}

func (NopFeedView) Replace([]*models.Post) {}
func (NopFeedView) Append([]*models.Post)  {}
func (NopFeedView) ShowEmpty(string)       {}
func (NopFeedView) ShowError(string)       {}
