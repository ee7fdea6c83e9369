package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/studyhub/studyfeed/pkg/backend"
	clierrors "github.com/studyhub/studyfeed/pkg/errors"
	"github.com/studyhub/studyfeed/pkg/logger"
	"github.com/studyhub/studyfeed/pkg/models"
)

const (
	DefaultMaxMediaBytes = 5 * 1024 * 1024

	msgDraftSaved   = "Draft saved!"
	msgNothingSaved = "Nothing to save"
	msgPublished    = "Post published successfully!"
	msgPublishFail  = "Failed to publish post. Please try again."
)

// MediaFile is the image picked for a media post.
type MediaFile struct {
	Path        string
	Name        string
	Size        int64
	ContentType string
}

type textForm struct {
	Content         string
	BackgroundColor string
}

type quizForm struct {
	Question    string
	Options     [models.QuizOptionCount]string
	Correct     *int
	Explanation string
}

type pollForm struct {
	Question      string
	CorrectAnswer string
	Explanation   string
}

type cardForm struct {
	Front string
	Back  string
}

type mediaForm struct {
	Caption string
	File    *MediaFile
	// HasImage survives from a draft whose file is no longer attached.
	HasImage bool
}

// Validated payloads. Field names key the friendly messages below.
type textPayload struct {
	Content string `validate:"required"`
}

type quizPayload struct {
	Question string   `validate:"required"`
	Options  []string `validate:"len=4,dive,required"`
	Correct  *int     `validate:"required,min=0,max=3"`
}

type pollPayload struct {
	Question      string `validate:"required"`
	CorrectAnswer string `validate:"required,oneof=yes no"`
}

type cardPayload struct {
	Front string `validate:"required"`
	Back  string `validate:"required"`
}

type mediaPayload struct {
	File string `validate:"required"`
}

var validationMessages = map[string]string{
	"textPayload.Content":       "Please enter some text",
	"quizPayload.Question":      "Please enter a question",
	"quizPayload.Options":       "Please fill in all options",
	"quizPayload.Correct":       "Please select the correct option",
	"pollPayload.Question":      "Please enter a poll question",
	"pollPayload.CorrectAnswer": "Please select the correct answer",
	"cardPayload.Front":         "Please enter the front side content",
	"cardPayload.Back":          "Please enter the back side content",
	"mediaPayload.File":         "Please select an image",
}

// CreationOptions tunes a CreationService.
type CreationOptions struct {
	MaxMediaBytes int64
}

// CreationService is the post composer. It owns one form per post type;
// switching type keeps the other forms intact.
type CreationService struct {
	gw       *backend.Gateway
	drafts   *DraftStore
	feed     FeedReloader
	author   AuthorSource
	notify   Notifier
	validate *validator.Validate
	maxBytes int64
	now      func() time.Time

	mu       sync.Mutex
	postType models.PostType
	text     textForm
	quiz     quizForm
	poll     pollForm
	card     cardForm
	media    mediaForm
	draftID  string
	loading  bool
}

func NewCreationService(gw *backend.Gateway, drafts *DraftStore, feed FeedReloader, author AuthorSource, notify Notifier, opts CreationOptions) *CreationService {
	if opts.MaxMediaBytes <= 0 {
		opts.MaxMediaBytes = DefaultMaxMediaBytes
	}
	s := &CreationService{
		gw:       gw,
		drafts:   drafts,
		feed:     feed,
		author:   author,
		notify:   notify,
		validate: validator.New(),
		maxBytes: opts.MaxMediaBytes,
		now:      time.Now,
	}
	s.resetLocked()
	return s
}

func (s *CreationService) resetLocked() {
	s.postType = models.PostTypeText
	s.text = textForm{BackgroundColor: models.DefaultBackground}
	s.quiz = quizForm{}
	s.poll = pollForm{}
	s.card = cardForm{}
	s.media = mediaForm{}
	s.draftID = ""
}

// Reset clears every form and forgets the loaded draft.
func (s *CreationService) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

// PostType is the active form.
func (s *CreationService) PostType() models.PostType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.postType
}

// DraftID is the draft the form was loaded from, if any.
func (s *CreationService) DraftID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draftID
}

// Loading reports whether a publish is in progress.
func (s *CreationService) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// SwitchPostType changes the active form without clearing any form.
func (s *CreationService) SwitchPostType(t models.PostType) error {
	if _, err := models.ParsePostType(string(t)); err != nil {
		return clierrors.ValidationError("type", err.Error())
	}
	s.mu.Lock()
	s.postType = t
	s.mu.Unlock()
	return nil
}

func (s *CreationService) SetText(content string) {
	s.mu.Lock()
	s.text.Content = content
	s.mu.Unlock()
}

func (s *CreationService) SetBackground(color string) {
	s.mu.Lock()
	s.text.BackgroundColor = color
	s.mu.Unlock()
}

func (s *CreationService) SetQuizQuestion(q string) {
	s.mu.Lock()
	s.quiz.Question = q
	s.mu.Unlock()
}

// SetQuizOption sets option index i (0-3).
func (s *CreationService) SetQuizOption(i int, text string) error {
	if i < 0 || i >= models.QuizOptionCount {
		return clierrors.ValidationError("option", fmt.Sprintf("option index must be between 0 and %d", models.QuizOptionCount-1))
	}
	s.mu.Lock()
	s.quiz.Options[i] = text
	s.mu.Unlock()
	return nil
}

// SetQuizCorrect marks option i as correct.
func (s *CreationService) SetQuizCorrect(i int) error {
	if i < 0 || i >= models.QuizOptionCount {
		return clierrors.ValidationError("correct", "Please select the correct option")
	}
	s.mu.Lock()
	s.quiz.Correct = &i
	s.mu.Unlock()
	return nil
}

// SetExplanation sets the explanation of the quiz or poll form, whichever is active.
func (s *CreationService) SetExplanation(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.postType == models.PostTypePoll {
		s.poll.Explanation = text
		return
	}
	s.quiz.Explanation = text
}

func (s *CreationService) SetPollQuestion(q string) {
	s.mu.Lock()
	s.poll.Question = q
	s.mu.Unlock()
}

// SetPollAnswer records "yes" or "no" as the correct poll answer.
func (s *CreationService) SetPollAnswer(answer string) error {
	a := strings.ToLower(strings.TrimSpace(answer))
	if a != "yes" && a != "no" {
		return clierrors.ValidationError("answer", "Please select the correct answer")
	}
	s.mu.Lock()
	s.poll.CorrectAnswer = a
	s.mu.Unlock()
	return nil
}

func (s *CreationService) SetCardFront(text string) {
	s.mu.Lock()
	s.card.Front = text
	s.mu.Unlock()
}

func (s *CreationService) SetCardBack(text string) {
	s.mu.Lock()
	s.card.Back = text
	s.mu.Unlock()
}

func (s *CreationService) SetCaption(text string) {
	s.mu.Lock()
	s.media.Caption = text
	s.mu.Unlock()
}

// SelectMedia attaches an image file. Only images under the size cap are accepted.
func (s *CreationService) SelectMedia(path string) (*MediaFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, clierrors.FileNotFoundError(path)
		}
		return nil, fmt.Errorf("failed to stat media: %w", err)
	}
	if info.IsDir() {
		return nil, clierrors.ValidationError("image", "Please select an image")
	}
	if info.Size() > s.maxBytes {
		return nil, clierrors.ValidationError("image", fmt.Sprintf("Image must be smaller than %dMB", s.maxBytes/(1024*1024)))
	}

	mime, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to detect media type: %w", err)
	}
	if !strings.HasPrefix(mime.String(), "image/") {
		return nil, clierrors.ValidationError("image", "Only image files are supported")
	}

	file := &MediaFile{
		Path:        path,
		Name:        filepath.Base(path),
		Size:        info.Size(),
		ContentType: mime.String(),
	}
	s.mu.Lock()
	s.media.File = file
	s.media.HasImage = true
	s.mu.Unlock()

	logger.Debug("Selected media", "name", file.Name, "size", file.Size, "type", file.ContentType)
	return file, nil
}

// ClearMedia detaches the selected image.
func (s *CreationService) ClearMedia() {
	s.mu.Lock()
	s.media.File = nil
	s.media.HasImage = false
	s.mu.Unlock()
}

// Content is the active form as a payload, untrimmed.
func (s *CreationService) Content() models.PostContent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contentLocked()
}

func (s *CreationService) contentLocked() models.PostContent {
	c := models.PostContent{Type: s.postType}
	switch s.postType {
	case models.PostTypeQuiz:
		c.Question = s.quiz.Question
		c.Options = append([]string(nil), s.quiz.Options[:]...)
		if s.quiz.Correct != nil {
			idx := *s.quiz.Correct
			c.CorrectOptionIndex = &idx
		}
		c.Explanation = s.quiz.Explanation
	case models.PostTypePoll:
		c.Question = s.poll.Question
		c.CorrectAnswer = s.poll.CorrectAnswer
		c.Explanation = s.poll.Explanation
	case models.PostTypeCard:
		c.Front = s.card.Front
		c.Back = s.card.Back
	case models.PostTypeMedia:
		c.Caption = s.media.Caption
		c.HasImage = s.media.File != nil || s.media.HasImage
	default:
		c.Type = models.PostTypeText
		c.Content = s.text.Content
		c.BackgroundColor = s.text.BackgroundColor
	}
	return c
}

// ValidateAndGetPostData checks the active form and returns the trimmed
// payload to publish. The error carries a user-facing message.
func (s *CreationService) ValidateAndGetPostData() (models.PostContent, error) {
	s.mu.Lock()
	c := s.contentLocked()
	file := s.media.File
	s.mu.Unlock()

	trim := strings.TrimSpace
	var payload interface{}
	switch c.Type {
	case models.PostTypeQuiz:
		c.Question = trim(c.Question)
		for i := range c.Options {
			c.Options[i] = trim(c.Options[i])
		}
		c.Explanation = trim(c.Explanation)
		if c.Explanation == "" {
			c.Explanation = models.DefaultExplanation
		}
		payload = quizPayload{Question: c.Question, Options: c.Options, Correct: c.CorrectOptionIndex}
	case models.PostTypePoll:
		c.Question = trim(c.Question)
		c.Explanation = trim(c.Explanation)
		if c.Explanation == "" {
			c.Explanation = models.DefaultExplanation
		}
		payload = pollPayload{Question: c.Question, CorrectAnswer: c.CorrectAnswer}
	case models.PostTypeCard:
		c.Front, c.Back = trim(c.Front), trim(c.Back)
		payload = cardPayload{Front: c.Front, Back: c.Back}
	case models.PostTypeMedia:
		c.Caption = trim(c.Caption)
		path := ""
		if file != nil {
			path = file.Path
		}
		c.HasImage = file != nil
		payload = mediaPayload{File: path}
	default:
		c.Content = trim(c.Content)
		if c.BackgroundColor == "" {
			c.BackgroundColor = models.DefaultBackground
		}
		payload = textPayload{Content: c.Content}
	}

	if err := s.validate.Struct(payload); err != nil {
		return c, friendlyValidation(err)
	}
	return c, nil
}

func friendlyValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return clierrors.ValidationError("post", err.Error())
	}
	fe := verrs[0]
	ns := fe.StructNamespace()
	if i := strings.IndexByte(ns, '['); i >= 0 {
		ns = ns[:i]
	}
	msg, ok := validationMessages[ns]
	if !ok {
		msg = fmt.Sprintf("%s is invalid", fe.Field())
	}
	return clierrors.ValidationError(strings.ToLower(fe.StructField()), msg)
}

// HandlePublishPost validates, uploads any image, writes the post, clears
// the loaded draft and reloads the feed. The form is kept on failure.
func (s *CreationService) HandlePublishPost(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return "", ErrBusy
	}
	s.loading = true
	draftID := s.draftID
	file := s.media.File
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	content, err := s.ValidateAndGetPostData()
	if err != nil {
		s.notify.Error(err.Error())
		return "", err
	}

	uid, err := s.gw.RequireUser()
	if err != nil {
		return "", clierrors.AuthError("Sign in to publish posts")
	}

	if content.Type == models.PostTypeMedia && file != nil {
		url, err := s.upload(ctx, uid, file)
		if err != nil {
			s.notify.Error(msgPublishFail)
			return "", clierrors.UploadError(err)
		}
		content.ImageURL = url
		content.HasImage = true
	}

	author := Author{ID: uid}
	if s.author != nil {
		if a, err := s.author.CurrentAuthor(ctx); err != nil {
			logger.Warn("Falling back to default author", "error", err)
		} else {
			author = a
		}
	}
	if author.Name == "" {
		author.Name = "User"
	}
	if author.Username == "" {
		author.Username = "@user"
	}

	doc, err := backend.ToFields(content)
	if err != nil {
		return "", fmt.Errorf("failed to encode post: %w", err)
	}
	doc["authorId"] = uid
	doc["authorName"] = author.Name
	doc["authorUsername"] = author.Username
	doc["authorPic"] = author.PhotoURL
	for _, counter := range []string{"likes", "comments", "shares", "views"} {
		doc[counter] = 0
	}
	doc["createdAt"] = s.gw.Timestamp()
	doc["updatedAt"] = s.gw.Timestamp()

	id, err := s.gw.Collection(backend.CollectionPosts).Add(ctx, doc)
	if err != nil {
		logger.Error("Failed to publish post", "type", content.Type, "error", err)
		s.notify.Error(msgPublishFail)
		return "", clierrors.WriteError("publish post", err)
	}
	logger.Info("Published post", "id", id, "type", content.Type)

	if draftID != "" {
		if err := s.drafts.Remove(draftID); err != nil {
			logger.Warn("Failed to remove published draft", "draft_id", draftID, "error", err)
		}
	}
	if err := s.gw.Collection(backend.CollectionUsers).Doc(uid).Update(ctx, backend.Fields{
		"posts": backend.Increment(1),
	}); err != nil {
		logger.Debug("Failed to bump post count", "uid", uid, "error", err)
	}

	s.Reset()
	if s.feed != nil {
		if _, err := s.feed.Reload(ctx); err != nil {
			logger.Warn("Feed reload after publish failed", "error", err)
		}
	}
	s.notify.Success(msgPublished)
	return id, nil
}

func (s *CreationService) upload(ctx context.Context, uid string, file *MediaFile) (string, error) {
	f, err := os.Open(file.Path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	objectPath := fmt.Sprintf("posts/%s/%d_%s", uid, s.now().UnixMilli(), file.Name)
	logger.Debug("Uploading media", "path", objectPath, "size", file.Size)
	return s.gw.Upload(ctx, objectPath, f, file.Size, file.ContentType)
}

// SaveDraft stores the active form as a draft and tells the user.
func (s *CreationService) SaveDraft() (*models.Draft, error) {
	d, err := s.saveDraft()
	if errors.Is(err, ErrNothingToSave) {
		s.notify.Info(msgNothingSaved)
		return nil, err
	}
	if err != nil {
		s.notify.Error("Failed to save draft")
		return nil, clierrors.WriteError("save draft", err)
	}
	s.notify.Success(msgDraftSaved)
	return d, nil
}

func (s *CreationService) saveDraft() (*models.Draft, error) {
	s.mu.Lock()
	d := models.Draft{ID: s.draftID, PostContent: s.contentLocked()}
	s.mu.Unlock()

	saved, err := s.drafts.Save(d)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.draftID = saved.ID
	s.mu.Unlock()
	return &saved, nil
}

// Close auto-saves a non-empty form without notifying, then resets it.
func (s *CreationService) Close() error {
	_, err := s.saveDraft()
	if err != nil && !errors.Is(err, ErrNothingToSave) {
		logger.Warn("Auto-save on close failed", "error", err)
		return clierrors.WriteError("save draft", err)
	}
	s.Reset()
	return nil
}

// LoadDraft fills the matching form from a stored draft.
func (s *CreationService) LoadDraft(id string) (*models.Draft, error) {
	d, err := s.drafts.Get(id)
	if err != nil {
		if errors.Is(err, ErrDraftNotFound) {
			return nil, clierrors.NotFoundError("Draft", id)
		}
		return nil, clierrors.ReadError("Failed to load draft", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.postType = d.Type
	switch d.Type {
	case models.PostTypeQuiz:
		s.quiz = quizForm{Question: d.Question, Explanation: d.Explanation}
		copy(s.quiz.Options[:], d.Options)
		if d.CorrectOptionIndex != nil {
			idx := *d.CorrectOptionIndex
			s.quiz.Correct = &idx
		}
	case models.PostTypePoll:
		s.poll = pollForm{Question: d.Question, CorrectAnswer: d.CorrectAnswer, Explanation: d.Explanation}
	case models.PostTypeCard:
		s.card = cardForm{Front: d.Front, Back: d.Back}
	case models.PostTypeMedia:
		s.media = mediaForm{Caption: d.Caption, HasImage: d.HasImage}
	default:
		s.postType = models.PostTypeText
		s.text = textForm{Content: d.Content, BackgroundColor: d.BackgroundColor}
		if s.text.BackgroundColor == "" {
			s.text.BackgroundColor = models.DefaultBackground
		}
	}
	s.draftID = d.ID
	return d, nil
}

// DeleteDraft removes a draft; the form is detached from it if loaded.
func (s *CreationService) DeleteDraft(id string) error {
	if err := s.drafts.Remove(id); err != nil {
		return clierrors.WriteError("delete draft", err)
	}
	s.mu.Lock()
	if s.draftID == id {
		s.draftID = ""
	}
	s.mu.Unlock()
	return nil
}

// ListDrafts returns drafts newest first.
func (s *CreationService) ListDrafts() ([]models.Draft, error) {
	drafts, err := s.drafts.List()
	if err != nil {
		return nil, clierrors.ReadError("Failed to load drafts", err)
	}
	return drafts, nil
}
