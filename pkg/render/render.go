// Package render draws posts as terminal cards. Rendering never includes a
// quiz or poll answer until the view holds a verdict.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/studyhub/studyfeed/pkg/formatter"
	"github.com/studyhub/studyfeed/pkg/models"
)

// Overlay reports the local like/save membership shown on cards.
type Overlay interface {
	IsLiked(postID string) bool
	IsSaved(postID string) bool
}

type noOverlay struct{}

func (noOverlay) IsLiked(string) bool { return false }
func (noOverlay) IsSaved(string) bool { return false }

var optionLabels = []string{"A", "B", "C", "D"}

type styles struct {
	card    lipgloss.Style
	author  lipgloss.Style
	muted   lipgloss.Style
	title   lipgloss.Style
	correct lipgloss.Style
	wrong   lipgloss.Style
	active  lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		card:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
		author:  lipgloss.NewStyle().Bold(true),
		muted:   lipgloss.NewStyle().Faint(true),
		title:   lipgloss.NewStyle().Bold(true),
		correct: lipgloss.NewStyle().Foreground(lipgloss.Color("#22c55e")).Bold(true),
		wrong:   lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444")).Bold(true),
		active:  lipgloss.NewStyle().Underline(true),
	}
}

func darkStyles() styles {
	st := defaultStyles()
	st.card = st.card.BorderForeground(lipgloss.Color("#64748b"))
	st.author = st.author.Foreground(lipgloss.Color("#f8fafc"))
	st.muted = lipgloss.NewStyle().Foreground(lipgloss.Color("#94a3b8"))
	return st
}

type bodyFunc func(r *Renderer, p *models.Post, st ViewState) string

// Renderer maps a post to a card. Unknown types fall back to text.
type Renderer struct {
	overlay Overlay
	now     func() time.Time
	styles  styles
	bodies  map[models.PostType]bodyFunc
}

// Option customizes a Renderer.
type Option func(*Renderer)

// WithOverlay shows liked/saved markers from o.
func WithOverlay(o Overlay) Option { return func(r *Renderer) { r.overlay = o } }

// WithClock fixes the clock used for relative times.
func WithClock(now func() time.Time) Option { return func(r *Renderer) { r.now = now } }

// WithTheme selects the card palette, "light" or "dark".
func WithTheme(theme string) Option {
	return func(r *Renderer) {
		if theme == "dark" {
			r.styles = darkStyles()
		} else {
			r.styles = defaultStyles()
		}
	}
}

func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{
		overlay: noOverlay{},
		now:     time.Now,
		styles:  defaultStyles(),
		bodies: map[models.PostType]bodyFunc{
			models.PostTypeText:  (*Renderer).textBody,
			models.PostTypeQuiz:  (*Renderer).quizBody,
			models.PostTypePoll:  (*Renderer).pollBody,
			models.PostTypeCard:  (*Renderer).cardBody,
			models.PostTypeMedia: (*Renderer).mediaBody,
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render draws an unanswered, front-facing card for p.
func (r *Renderer) Render(p *models.Post) string {
	return r.render(p.Public(), ViewState{Selected: -1})
}

// RenderView draws v in its current state.
func (r *Renderer) RenderView(v *PostView) string {
	return r.render(v.Post(), v.State())
}

// RenderAll draws posts separated by blank lines.
func (r *Renderer) RenderAll(posts []*models.Post) string {
	cards := make([]string, 0, len(posts))
	for _, p := range posts {
		cards = append(cards, r.Render(p))
	}
	return strings.Join(cards, "\n\n")
}

func (r *Renderer) render(p *models.Post, st ViewState) string {
	body, ok := r.bodies[p.Type]
	if !ok {
		body = (*Renderer).textBody
	}
	parts := []string{r.header(p), body(r, p, st), r.footer(p)}
	return r.styles.card.Render(strings.Join(parts, "\n\n"))
}

func (r *Renderer) header(p *models.Post) string {
	name := p.AuthorName
	if name == "" {
		name = "User"
	}
	meta := []string{}
	if p.AuthorUsername != "" {
		meta = append(meta, p.AuthorUsername)
	}
	meta = append(meta, formatter.TimeAgo(p.CreatedAt, r.now()))
	if p.Type != models.PostTypeText && p.Type != "" {
		meta = append(meta, p.Type.Label())
	}
	return r.styles.author.Render(name) + " " + r.styles.muted.Render(strings.Join(meta, " · ")) +
		"\n" + r.styles.muted.Render("#"+p.ID)
}

func (r *Renderer) footer(p *models.Post) string {
	like, save := "♡", "☐"
	if r.overlay.IsLiked(p.ID) {
		like = "♥"
	}
	if r.overlay.IsSaved(p.ID) {
		save = "■"
	}
	return r.styles.muted.Render(fmt.Sprintf("%s %s   💬 %s   ↗ %s   %s",
		like, formatter.FormatCount(p.Likes),
		formatter.FormatCount(p.Comments),
		formatter.FormatCount(p.Shares),
		save))
}

func (r *Renderer) textBody(p *models.Post, _ ViewState) string {
	bg := p.BackgroundColor
	if bg == "" {
		bg = models.DefaultBackground
	}
	style := lipgloss.NewStyle().Padding(1, 2)
	if !strings.EqualFold(bg, models.DefaultBackground) {
		style = style.Background(lipgloss.Color(bg)).Foreground(lipgloss.Color("#111111"))
	}
	return style.Render(p.Content)
}

func (r *Renderer) quizBody(p *models.Post, st ViewState) string {
	var b strings.Builder
	b.WriteString(r.styles.title.Render(p.Question))
	for i, opt := range p.Options {
		label := "?"
		if i < len(optionLabels) {
			label = optionLabels[i]
		}
		line := fmt.Sprintf("  %s. %s", label, opt)
		switch {
		case st.Verdict != nil && i == st.Verdict.CorrectOptionIndex:
			line = r.styles.correct.Render(line + "  ✓")
		case st.Answered && i == st.Selected:
			line = r.styles.wrong.Render(line + "  ✗")
		}
		b.WriteString("\n" + line)
	}
	b.WriteString(r.verdict(st))
	return b.String()
}

func (r *Renderer) pollBody(p *models.Post, st ViewState) string {
	var b strings.Builder
	b.WriteString(r.styles.title.Render(p.Question))
	for _, choice := range []string{"yes", "no"} {
		line := "  [" + strings.ToUpper(choice[:1]) + choice[1:] + "]"
		switch {
		case st.Verdict != nil && strings.EqualFold(choice, st.Verdict.CorrectAnswer):
			line = r.styles.correct.Render(line + "  ✓")
		case st.Answered && choice == st.Choice:
			line = r.styles.wrong.Render(line + "  ✗")
		}
		b.WriteString("\n" + line)
	}
	b.WriteString(r.verdict(st))
	return b.String()
}

func (r *Renderer) verdict(st ViewState) string {
	if !st.Answered || st.Verdict == nil {
		return ""
	}
	result := r.styles.correct.Render("Correct!")
	if !st.Verdict.Correct {
		result = r.styles.wrong.Render("Wrong!")
	}
	return "\n\n" + result + "\n" + r.styles.muted.Render(st.Verdict.Explanation)
}

func (r *Renderer) cardBody(p *models.Post, st ViewState) string {
	face, label := p.Front, "Front"
	if st.Side == SideBack {
		face, label = p.Back, "Back"
	}
	return r.styles.muted.Render(label) + "\n" + r.styles.active.Render(face) + "\n" + r.styles.muted.Render("(flip to reveal the other side)")
}

func (r *Renderer) mediaBody(p *models.Post, _ ViewState) string {
	var lines []string
	if p.Caption != "" {
		lines = append(lines, p.Caption)
	}
	if p.ImageURL != "" {
		lines = append(lines, r.styles.muted.Render("[image] "+p.ImageURL))
	}
	return strings.Join(lines, "\n")
}
