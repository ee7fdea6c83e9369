package render

import (
	"context"
	"sync"

	"github.com/studyhub/studyfeed/pkg/backend"
	"github.com/studyhub/studyfeed/pkg/models"
)

// AnswerResolver turns a submitted quiz or poll answer into a verdict.
type AnswerResolver interface {
	Resolve(ctx context.Context, postID, answer string) (*models.Verdict, error)
}

// LocalResolver judges answers against records the client already holds.
// Posts are registered as they are loaded; views never see the answer.
type LocalResolver struct {
	mu    sync.RWMutex
	posts map[string]*models.Post
}

func NewLocalResolver() *LocalResolver {
	return &LocalResolver{posts: make(map[string]*models.Post)}
}

// Remember keeps the answer-bearing record for p.ID.
func (r *LocalResolver) Remember(p *models.Post) {
	if p == nil || p.ID == "" {
		return
	}
	cp := *p
	r.mu.Lock()
	r.posts[p.ID] = &cp
	r.mu.Unlock()
}

// Forget drops a record, e.g. after the post is deleted.
func (r *LocalResolver) Forget(postID string) {
	r.mu.Lock()
	delete(r.posts, postID)
	r.mu.Unlock()
}

func (r *LocalResolver) Resolve(ctx context.Context, postID, answer string) (*models.Verdict, error) {
	r.mu.RLock()
	p, ok := r.posts[postID]
	r.mu.RUnlock()
	if !ok {
		return nil, backend.ErrNotFound
	}
	return models.Judge(p, answer)
}

// RemoteResolver asks the backend, which keeps the answer server-side.
type RemoteResolver struct {
	checker backend.AnswerChecker
}

func NewRemoteResolver(checker backend.AnswerChecker) *RemoteResolver {
	return &RemoteResolver{checker: checker}
}

func (r *RemoteResolver) Resolve(ctx context.Context, postID, answer string) (*models.Verdict, error) {
	if r.checker == nil {
		return nil, backend.ErrAnswersUnsupported
	}
	return r.checker.CheckAnswer(ctx, postID, answer)
}
