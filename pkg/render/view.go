package render

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/studyhub/studyfeed/pkg/logger"
	"github.com/studyhub/studyfeed/pkg/models"
)

// ErrNotInteractive is returned when an action does not apply to the post type.
var ErrNotInteractive = errors.New("post type does not accept this action")

// Side is the visible face of a flashcard.
type Side int

const (
	SideFront Side = iota
	SideBack
)

// AnswerEvent is delivered once, when a quiz or poll is answered.
type AnswerEvent struct {
	PostID   string
	Answer   string
	Selected int
	Verdict  models.Verdict
}

// ViewState is a snapshot of a PostView.
type ViewState struct {
	Answered bool
	Selected int    // quiz option, -1 when none
	Choice   string // poll answer
	Verdict  *models.Verdict
	Side     Side
}

// PostView is one rendered instance of a post with its inline interaction
// state. Quiz and poll answers are terminal; flashcards flip indefinitely.
type PostView struct {
	post     *models.Post
	resolver AnswerResolver

	mu        sync.Mutex
	resolving bool
	answered  bool
	selected  int
	choice    string
	verdict   *models.Verdict
	side      Side
	handlers  []func(AnswerEvent)
}

// NewPostView keeps only the public part of p.
func NewPostView(p *models.Post, resolver AnswerResolver) *PostView {
	return &PostView{post: p.Public(), resolver: resolver, selected: -1}
}

// Post is the answer-free record this view renders.
func (v *PostView) Post() *models.Post { return v.post }

// OnAnswered registers fn for the answer event.
func (v *PostView) OnAnswered(fn func(AnswerEvent)) {
	v.mu.Lock()
	v.handlers = append(v.handlers, fn)
	v.mu.Unlock()
}

// State returns a snapshot.
func (v *PostView) State() ViewState {
	v.mu.Lock()
	defer v.mu.Unlock()
	st := ViewState{Answered: v.answered, Selected: v.selected, Choice: v.choice, Side: v.side}
	if v.verdict != nil {
		cp := *v.verdict
		st.Verdict = &cp
	}
	return st
}

// SelectOption answers a quiz. It reports whether the state changed; once
// answered, further selections are ignored.
func (v *PostView) SelectOption(ctx context.Context, index int) (bool, error) {
	if v.post.Type != models.PostTypeQuiz {
		return false, ErrNotInteractive
	}
	if index < 0 || index >= len(v.post.Options) {
		return false, errors.New("option out of range")
	}
	return v.answer(ctx, strconv.Itoa(index), index)
}

// AnswerPoll answers a poll with "yes" or "no". Terminal like SelectOption.
func (v *PostView) AnswerPoll(ctx context.Context, choice string) (bool, error) {
	if v.post.Type != models.PostTypePoll {
		return false, ErrNotInteractive
	}
	if choice != "yes" && choice != "no" {
		return false, errors.New(`poll answer must be "yes" or "no"`)
	}
	return v.answer(ctx, choice, -1)
}

func (v *PostView) answer(ctx context.Context, answer string, index int) (bool, error) {
	v.mu.Lock()
	if v.answered || v.resolving {
		v.mu.Unlock()
		return false, nil
	}
	v.resolving = true
	v.mu.Unlock()

	verdict, err := v.resolver.Resolve(ctx, v.post.ID, answer)

	v.mu.Lock()
	v.resolving = false
	if err != nil {
		v.mu.Unlock()
		logger.Error("Failed to resolve answer", "post_id", v.post.ID, "error", err)
		return false, err
	}
	v.answered = true
	v.selected = index
	if index < 0 {
		v.choice = answer
	}
	v.verdict = verdict
	handlers := append([]func(AnswerEvent){}, v.handlers...)
	v.mu.Unlock()

	ev := AnswerEvent{PostID: v.post.ID, Answer: answer, Selected: index, Verdict: *verdict}
	for _, h := range handlers {
		h(ev)
	}
	return true, nil
}

// Flip toggles a flashcard and returns the new side.
func (v *PostView) Flip() (Side, error) {
	if v.post.Type != models.PostTypeCard {
		return SideFront, ErrNotInteractive
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.side == SideFront {
		v.side = SideBack
	} else {
		v.side = SideFront
	}
	return v.side, nil
}
