package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	jsoniter "github.com/json-iterator/go"
	"github.com/studyhub/studyfeed/pkg/backend"
	clierrors "github.com/studyhub/studyfeed/pkg/errors"
	"github.com/studyhub/studyfeed/pkg/localstore"
	"github.com/studyhub/studyfeed/pkg/logger"
	"github.com/studyhub/studyfeed/pkg/models"
)

const (
	StudyReminder    = "Time to study! Keep your streak going."
	maxStudyActivity = 100
	maxNoteBytes     = 50 * 1024 * 1024
	studyDateLayout  = "2006-01-02"
	activitySession  = "study_session"
	activityTopic    = "topic_completed"
	activityDownload = "note_download"
)

// StudyInsights summarizes the activity log.
type StudyInsights struct {
	TotalActivities  int                    `json:"totalActivities"`
	MostStudiedTime  string                 `json:"mostStudiedTime"`
	FavoriteCategory string                 `json:"favoriteCategory"`
	Statistics       models.StudyStatistics `json:"statistics"`
}

// StudyExport is the JSON document written by Export.
type StudyExport struct {
	Progress   models.StudyProgress   `json:"progress"`
	Statistics models.StudyStatistics `json:"statistics"`
	Downloads  []models.NoteDownload  `json:"downloads"`
	Goal       *models.StudyGoal      `json:"goal"`
	Activities []models.StudyActivity `json:"activities"`
}

type studySession struct {
	Topic string
	Start time.Time
}

// StudyService tracks study progress locally and serves shared notes.
type StudyService struct {
	local localstore.Store
	gw    *backend.Gateway
	now   func() time.Time

	mu      sync.Mutex
	session *studySession
}

func NewStudyService(local localstore.Store, gw *backend.Gateway) *StudyService {
	return &StudyService{local: local, gw: gw, now: time.Now}
}

func (s *StudyService) progress() (models.StudyProgress, error) {
	var p models.StudyProgress
	if _, err := s.local.Get(localstore.KeyStudyProgress, &p); err != nil {
		return p, clierrors.ReadError("Failed to load study progress", err)
	}
	return p, nil
}

func (s *StudyService) saveProgress(p models.StudyProgress) error {
	if err := s.local.Set(localstore.KeyStudyProgress, p); err != nil {
		return clierrors.WriteError("save study progress", err)
	}
	return nil
}

// Progress returns the stored study summary.
func (s *StudyService) Progress() (models.StudyProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress()
}

// StartSession begins timing a study session on topic.
func (s *StudyService) StartSession(topic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		return ErrBusy
	}
	s.session = &studySession{Topic: strings.TrimSpace(topic), Start: s.now()}
	return nil
}

// ActiveSession returns the running session's topic and start, if any.
func (s *StudyService) ActiveSession() (string, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return "", time.Time{}, false
	}
	return s.session.Topic, s.session.Start, true
}

// EndSession stops the running session and logs its whole minutes.
func (s *StudyService) EndSession() (int, error) {
	s.mu.Lock()
	sess := s.session
	s.session = nil
	s.mu.Unlock()
	if sess == nil {
		return 0, clierrors.ValidationError("session", "No study session in progress")
	}
	minutes := int(s.now().Sub(sess.Start) / time.Minute)
	if _, err := s.LogSession(minutes, sess.Topic); err != nil {
		return minutes, err
	}
	return minutes, nil
}

// LogSession adds minutes of study, updates the streak and records the activity.
func (s *StudyService) LogSession(minutes int, topic string) (models.StudyProgress, error) {
	if minutes < 0 {
		return models.StudyProgress{}, clierrors.ValidationError("minutes", "Minutes cannot be negative")
	}
	s.mu.Lock()
	p, err := s.progress()
	if err != nil {
		s.mu.Unlock()
		return p, err
	}
	p.TotalStudyTime += minutes
	if p, err = s.updateStreak(p); err != nil {
		s.mu.Unlock()
		return p, err
	}
	if err := s.saveProgress(p); err != nil {
		s.mu.Unlock()
		return p, err
	}
	s.mu.Unlock()

	detail := fmt.Sprintf("%d min", minutes)
	if topic != "" {
		detail = topic + ": " + detail
	}
	if err := s.TrackActivity(activitySession, detail); err != nil {
		logger.Warn("Failed to record study activity", "error", err)
	}
	return p, nil
}

// updateStreak applies calendar-day streak rules: same day keeps it,
// the day after the last study extends it, anything else restarts at 1.
func (s *StudyService) updateStreak(p models.StudyProgress) (models.StudyProgress, error) {
	var last string
	if _, err := s.local.Get(localstore.KeyLastStudyDate, &last); err != nil {
		return p, clierrors.ReadError("Failed to load study date", err)
	}
	today := s.now().Format(studyDateLayout)
	yesterday := s.now().AddDate(0, 0, -1).Format(studyDateLayout)

	switch last {
	case today:
		if p.Streak == 0 {
			p.Streak = 1
		}
		return p, nil
	case yesterday:
		p.Streak++
	default:
		p.Streak = 1
	}
	if err := s.local.Set(localstore.KeyLastStudyDate, today); err != nil {
		return p, clierrors.WriteError("save study date", err)
	}
	return p, nil
}

// MarkTopicCompleted records a topic once and counts as studying today.
func (s *StudyService) MarkTopicCompleted(topic string) (models.StudyProgress, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return models.StudyProgress{}, clierrors.ValidationError("topic", "Topic is required")
	}
	s.mu.Lock()
	p, err := s.progress()
	if err != nil {
		s.mu.Unlock()
		return p, err
	}
	for _, t := range p.CompletedTopics {
		if t == topic {
			s.mu.Unlock()
			return p, nil
		}
	}
	p.CompletedTopics = append(p.CompletedTopics, topic)
	if p, err = s.updateStreak(p); err != nil {
		s.mu.Unlock()
		return p, err
	}
	if err := s.saveProgress(p); err != nil {
		s.mu.Unlock()
		return p, err
	}
	s.mu.Unlock()

	if err := s.TrackActivity(activityTopic, topic); err != nil {
		logger.Warn("Failed to record study activity", "error", err)
	}
	return p, nil
}

// Statistics derives totals; the daily average divides by the streak.
func (s *StudyService) Statistics() (models.StudyStatistics, error) {
	p, err := s.Progress()
	if err != nil {
		return models.StudyStatistics{}, err
	}
	return statisticsOf(p), nil
}

func statisticsOf(p models.StudyProgress) models.StudyStatistics {
	days := p.Streak
	if days < 1 {
		days = 1
	}
	return models.StudyStatistics{
		TotalMinutes:    p.TotalStudyTime,
		Streak:          p.Streak,
		CompletedTopics: len(p.CompletedTopics),
		AveragePerDay:   float64(p.TotalStudyTime / days),
	}
}

func (s *StudyService) SetGoal(minutesPerDay int) (models.StudyGoal, error) {
	if minutesPerDay <= 0 {
		return models.StudyGoal{}, clierrors.ValidationError("goal", "Goal must be at least one minute")
	}
	g := models.StudyGoal{MinutesPerDay: minutesPerDay, SetAt: s.now()}
	if err := s.local.Set(localstore.KeyStudyGoal, g); err != nil {
		return g, clierrors.WriteError("save study goal", err)
	}
	return g, nil
}

// Goal returns the stored goal or nil.
func (s *StudyService) Goal() (*models.StudyGoal, error) {
	var g models.StudyGoal
	ok, err := s.local.Get(localstore.KeyStudyGoal, &g)
	if err != nil {
		return nil, clierrors.ReadError("Failed to load study goal", err)
	}
	if !ok {
		return nil, nil
	}
	return &g, nil
}

// Reminder returns the nudge when nothing was studied today, else "".
func (s *StudyService) Reminder() (string, error) {
	var last string
	if _, err := s.local.Get(localstore.KeyLastStudyDate, &last); err != nil {
		return "", clierrors.ReadError("Failed to load study date", err)
	}
	if last != s.now().Format(studyDateLayout) {
		return StudyReminder, nil
	}
	return "", nil
}

// TrackActivity appends to the activity log, keeping the last 100 entries.
func (s *StudyService) TrackActivity(kind, detail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acts, err := s.activities()
	if err != nil {
		return err
	}
	acts = append(acts, models.StudyActivity{Type: kind, Detail: detail, At: s.now()})
	if len(acts) > maxStudyActivity {
		acts = acts[len(acts)-maxStudyActivity:]
	}
	if err := s.local.Set(localstore.KeyStudyActivities, acts); err != nil {
		return clierrors.WriteError("save study activity", err)
	}
	return nil
}

func (s *StudyService) activities() ([]models.StudyActivity, error) {
	var acts []models.StudyActivity
	if _, err := s.local.Get(localstore.KeyStudyActivities, &acts); err != nil {
		return nil, clierrors.ReadError("Failed to load study activity", err)
	}
	return acts, nil
}

// Activities returns the activity log, oldest first.
func (s *StudyService) Activities() ([]models.StudyActivity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activities()
}

// TrackNoteDownload records a download locally. The activity log keeps the
// category so Insights can rank it.
func (s *StudyService) TrackNoteDownload(noteID, title, category string) error {
	s.mu.Lock()
	var downloads []models.NoteDownload
	if _, err := s.local.Get(localstore.KeyNoteDownloads, &downloads); err != nil {
		s.mu.Unlock()
		return clierrors.ReadError("Failed to load downloads", err)
	}
	downloads = append(downloads, models.NoteDownload{NoteID: noteID, Title: title, At: s.now()})
	err := s.local.Set(localstore.KeyNoteDownloads, downloads)
	s.mu.Unlock()
	if err != nil {
		return clierrors.WriteError("save download", err)
	}
	return s.TrackActivity(activityDownload, category)
}

func (s *StudyService) Downloads() ([]models.NoteDownload, error) {
	var downloads []models.NoteDownload
	if _, err := s.local.Get(localstore.KeyNoteDownloads, &downloads); err != nil {
		return nil, clierrors.ReadError("Failed to load downloads", err)
	}
	return downloads, nil
}

// Insights finds the busiest two-hour window and the most common activity detail.
func (s *StudyService) Insights() (StudyInsights, error) {
	acts, err := s.Activities()
	if err != nil {
		return StudyInsights{}, err
	}
	stats, err := s.Statistics()
	if err != nil {
		return StudyInsights{}, err
	}
	return StudyInsights{
		TotalActivities:  len(acts),
		MostStudiedTime:  mostStudiedTime(acts),
		FavoriteCategory: favoriteCategory(acts),
		Statistics:       stats,
	}, nil
}

func mostStudiedTime(acts []models.StudyActivity) string {
	if len(acts) == 0 {
		return ""
	}
	var buckets [12]int
	for _, a := range acts {
		buckets[a.At.Local().Hour()/2]++
	}
	best := 0
	for i := range buckets {
		if buckets[i] > buckets[best] {
			best = i
		}
	}
	start := time.Date(2000, 1, 1, best*2, 0, 0, 0, time.Local)
	return start.Format("3:04 PM") + " - " + start.Add(2*time.Hour).Format("3:04 PM")
}

func favoriteCategory(acts []models.StudyActivity) string {
	counts := map[string]int{}
	for _, a := range acts {
		if a.Type == activitySession {
			continue
		}
		if a.Detail != "" {
			counts[a.Detail]++
		}
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

// Export renders progress, statistics, downloads, goal and activity as indented JSON.
func (s *StudyService) Export() ([]byte, error) {
	p, err := s.Progress()
	if err != nil {
		return nil, err
	}
	downloads, err := s.Downloads()
	if err != nil {
		return nil, err
	}
	goal, err := s.Goal()
	if err != nil {
		return nil, err
	}
	acts, err := s.Activities()
	if err != nil {
		return nil, err
	}
	out := StudyExport{
		Progress:   p,
		Statistics: statisticsOf(p),
		Downloads:  downloads,
		Goal:       goal,
		Activities: acts,
	}
	return jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(out, "", "  ")
}

// Notes lists shared notes, newest first, optionally for one category.
func (s *StudyService) Notes(ctx context.Context, category string) ([]models.Note, error) {
	q := s.gw.Collection(backend.CollectionNotes).Query()
	if category != "" {
		q = q.Where("category", backend.OpEqual, category)
	}
	snap, err := q.OrderBy("uploadedAt", backend.Desc).Get(ctx)
	if err != nil {
		return nil, clierrors.ReadError("Failed to load notes", err)
	}
	notes, err := backend.DecodeAll[models.Note](snap)
	if err != nil {
		return nil, clierrors.ReadError("Failed to load notes", err)
	}
	return notes, nil
}

// SearchNotes matches titles case-insensitively.
func (s *StudyService) SearchNotes(ctx context.Context, query string) ([]models.Note, error) {
	notes, err := s.Notes(ctx, "")
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return notes, nil
	}
	var out []models.Note
	for _, n := range notes {
		if strings.Contains(strings.ToLower(n.Title), q) {
			out = append(out, n)
		}
	}
	return out, nil
}

// DownloadNote returns the note URL, bumps its counter and tracks it locally.
func (s *StudyService) DownloadNote(ctx context.Context, noteID string) (*models.Note, error) {
	doc, err := s.gw.Collection(backend.CollectionNotes).Doc(noteID).Get(ctx)
	if err != nil {
		if backend.IsNotFound(err) {
			return nil, clierrors.NotFoundError("Note", noteID)
		}
		return nil, clierrors.ReadError("Failed to load note", err)
	}
	var n models.Note
	if err := doc.DataTo(&n); err != nil {
		return nil, fmt.Errorf("failed to decode note: %w", err)
	}
	if err := s.gw.Collection(backend.CollectionNotes).Doc(noteID).Update(ctx, backend.Fields{
		"downloads": backend.Increment(1),
	}); err != nil {
		logger.Warn("Failed to count download", "note_id", noteID, "error", err)
	}
	if err := s.TrackNoteDownload(n.ID, n.Title, n.Category); err != nil {
		logger.Warn("Failed to track download", "note_id", noteID, "error", err)
	}
	return &n, nil
}

// UploadNote stores a PDF under notes/<category>/ and records it.
func (s *StudyService) UploadNote(ctx context.Context, path, title, category string) (string, error) {
	uid, err := s.gw.RequireUser()
	if err != nil {
		return "", clierrors.AuthError("Sign in to upload notes")
	}
	title, category = strings.TrimSpace(title), strings.TrimSpace(category)
	if title == "" {
		return "", clierrors.ValidationError("title", "Title is required")
	}
	if category == "" {
		return "", clierrors.ValidationError("category", "Category is required")
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", clierrors.FileNotFoundError(path)
	}
	if info.Size() > maxNoteBytes {
		return "", clierrors.ValidationError("file", "File size should be less than 50MB")
	}
	mime, err := mimetype.DetectFile(path)
	if err != nil || !mime.Is("application/pdf") {
		return "", clierrors.ValidationError("file", "Only PDF files are allowed")
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open note: %w", err)
	}
	defer f.Close()

	name := filepath.Base(path)
	objectPath := fmt.Sprintf("notes/%s/%d_%s", category, s.now().UnixMilli(), name)
	url, err := s.gw.Upload(ctx, objectPath, f, info.Size(), mime.String())
	if err != nil {
		return "", clierrors.UploadError(err)
	}

	id, err := s.gw.Collection(backend.CollectionNotes).Add(ctx, backend.Fields{
		"title":      title,
		"category":   category,
		"fileUrl":    url,
		"fileName":   name,
		"size":       info.Size(),
		"downloads":  0,
		"uploadedBy": uid,
		"uploadedAt": s.gw.Timestamp(),
	})
	if err != nil {
		return "", clierrors.WriteError("save note", err)
	}
	logger.Info("Uploaded note", "id", id, "category", category)
	return id, nil
}
