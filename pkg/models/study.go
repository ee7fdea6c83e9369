package models

import "time"

// StudyProgress is the locally tracked study summary.
type StudyProgress struct {
	TotalStudyTime  int      `json:"totalStudyTime"` // minutes
	Streak          int      `json:"streak"`
	CompletedTopics []string `json:"completedTopics"`
}

// StudyActivity is one entry of the capped activity log.
type StudyActivity struct {
	Type   string    `json:"type"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

// NoteDownload records a downloaded note.
type NoteDownload struct {
	NoteID string    `json:"noteId"`
	Title  string    `json:"title"`
	At     time.Time `json:"at"`
}

// StudyGoal is a daily minutes target.
type StudyGoal struct {
	MinutesPerDay int       `json:"minutesPerDay"`
	SetAt         time.Time `json:"setAt"`
}

// StudyStatistics is derived from StudyProgress.
type StudyStatistics struct {
	TotalMinutes    int     `json:"totalMinutes"`
	Streak          int     `json:"streak"`
	CompletedTopics int     `json:"completedTopics"`
	AveragePerDay   float64 `json:"averagePerDay"`
}

// Note is a shared study resource in the notes collection.
type Note struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Category   string    `json:"category"`
	FileURL    string    `json:"fileUrl"`
	FileName   string    `json:"fileName"`
	Size       int64     `json:"size"`
	Downloads  int       `json:"downloads"`
	UploadedBy string    `json:"uploadedBy"`
	UploadedAt time.Time `json:"uploadedAt"`
}
