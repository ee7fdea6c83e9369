// Package models holds the records exchanged with the document backend and
// kept in local storage.
package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PostType discriminates the five post variants. It never changes after creation.
type PostType string

const (
	PostTypeText  PostType = "text"
	PostTypeQuiz  PostType = "quiz"
	PostTypePoll  PostType = "poll"
	PostTypeCard  PostType = "card"
	PostTypeMedia PostType = "media"
)

// QuizOptionCount is the fixed number of answers on a quiz.
const QuizOptionCount = 4

// DefaultBackground is the text-post background when none is chosen.
const DefaultBackground = "#ffffff"

// DefaultExplanation is stored when a quiz or poll is published without one.
const DefaultExplanation = "No explanation provided."

// PostTypes lists every variant in menu order.
func PostTypes() []PostType {
	return []PostType{PostTypeText, PostTypeQuiz, PostTypePoll, PostTypeCard, PostTypeMedia}
}

// ParsePostType accepts a variant name, case-insensitively.
func ParsePostType(s string) (PostType, error) {
	t := PostType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range PostTypes() {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown post type %q", s)
}

// Label is the human name of a variant.
func (t PostType) Label() string {
	switch t {
	case PostTypeQuiz:
		return "Quiz"
	case PostTypePoll:
		return "Poll"
	case PostTypeCard:
		return "Flashcard"
	case PostTypeMedia:
		return "Media"
	default:
		return "Text"
	}
}

// PostContent is the type-specific payload shared by posts and drafts.
type PostContent struct {
	Type PostType `json:"type"`

	// text
	Content         string `json:"content,omitempty"`
	BackgroundColor string `json:"backgroundColor,omitempty"`

	// quiz and poll
	Question           string   `json:"question,omitempty"`
	Options            []string `json:"options,omitempty"`
	CorrectOptionIndex *int     `json:"correctOptionIndex,omitempty"`
	CorrectAnswer      string   `json:"correctAnswer,omitempty"`
	Explanation        string   `json:"explanation,omitempty"`

	// card
	Front string `json:"front,omitempty"`
	Back  string `json:"back,omitempty"`

	// media
	Caption  string `json:"caption,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
	HasImage bool   `json:"hasImage,omitempty"`
}

// IsEmpty reports whether the payload carries nothing worth keeping as a draft.
func (c PostContent) IsEmpty() bool {
	switch c.Type {
	case PostTypeQuiz, PostTypePoll:
		return strings.TrimSpace(c.Question) == ""
	case PostTypeCard:
		return strings.TrimSpace(c.Front) == "" && strings.TrimSpace(c.Back) == ""
	case PostTypeMedia:
		return strings.TrimSpace(c.Caption) == "" && !c.HasImage
	default:
		return strings.TrimSpace(c.Content) == ""
	}
}

// Preview is a one-line summary for lists.
func (c PostContent) Preview() string {
	switch c.Type {
	case PostTypeQuiz, PostTypePoll:
		return c.Question
	case PostTypeCard:
		if c.Front != "" {
			return c.Front
		}
		return c.Back
	case PostTypeMedia:
		if c.Caption != "" {
			return c.Caption
		}
		return "Image post"
	default:
		return c.Content
	}
}

// Post is a published feed item.
type Post struct {
	ID string `json:"id"`
	PostContent

	AuthorID       string `json:"authorId"`
	AuthorName     string `json:"authorName"`
	AuthorUsername string `json:"authorUsername"`
	AuthorPic      string `json:"authorPic,omitempty"`

	Likes    int `json:"likes"`
	Comments int `json:"comments"`
	Shares   int `json:"shares"`
	Views    int `json:"views"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Public returns a copy without answer material, for display and export.
func (p *Post) Public() *Post {
	cp := *p
	cp.CorrectOptionIndex = nil
	cp.CorrectAnswer = ""
	cp.Explanation = ""
	if p.Options != nil {
		cp.Options = append([]string(nil), p.Options...)
	}
	return &cp
}

// Verdict is the outcome of answering a quiz or poll.
type Verdict struct {
	Correct            bool   `json:"correct"`
	CorrectOptionIndex int    `json:"correctOptionIndex"`
	CorrectAnswer      string `json:"correctAnswer,omitempty"`
	Explanation        string `json:"explanation,omitempty"`
}

// Comment is a reply under a post.
type Comment struct {
	ID         string    `json:"id"`
	PostID     string    `json:"postId"`
	AuthorID   string    `json:"authorId"`
	AuthorName string    `json:"authorName"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ErrNotAnswerable is returned by Judge for variants without an answer.
var ErrNotAnswerable = errors.New("post has no answer to check")

// Judge compares an answer against the stored one. For quizzes the answer is
// the option index ("0".."3"); for polls it is "yes" or "no".
func Judge(p *Post, answer string) (*Verdict, error) {
	answer = strings.ToLower(strings.TrimSpace(answer))
	v := &Verdict{Explanation: p.Explanation, CorrectOptionIndex: -1}
	if v.Explanation == "" {
		v.Explanation = DefaultExplanation
	}
	switch p.Type {
	case PostTypeQuiz:
		if p.CorrectOptionIndex == nil {
			return nil, ErrNotAnswerable
		}
		idx, err := strconv.Atoi(answer)
		if err != nil || idx < 0 || idx >= len(p.Options) {
			return nil, fmt.Errorf("invalid option %q", answer)
		}
		v.CorrectOptionIndex = *p.CorrectOptionIndex
		v.Correct = idx == *p.CorrectOptionIndex
	case PostTypePoll:
		if answer != "yes" && answer != "no" {
			return nil, fmt.Errorf("invalid poll answer %q", answer)
		}
		v.CorrectAnswer = p.CorrectAnswer
		v.Correct = strings.EqualFold(answer, p.CorrectAnswer)
	default:
		return nil, ErrNotAnswerable
	}
	return v, nil
}
