package download

import (
	"time"

	"github.com/google/uuid"

	"github.com/renvik/mangarr/internal/provider"
)

type Status string

const (
	StatusQueued      Status = "queued"
	StatusDownloading Status = "downloading"
	StatusPaused      Status = "paused"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusCancelled   Status = "cancelled"
)

// Task is one chapter download. Terminal tasks are never resumed; a retry
// supersedes the old task with a fresh one linked through SupersededBy.
type Task struct {
	ID      string `json:"id" gorm:"primaryKey"`
	GroupID string `json:"group_id" gorm:"index"`

	Provider     string `json:"provider" gorm:"not null"`
	MangaID      string `json:"manga_id" gorm:"not null"`
	MangaTitle   string `json:"manga_title"`
	ChapterLabel string `json:"chapter_label"`
	ChapterURL   string `json:"chapter_url"`

	Status          Status  `json:"status" gorm:"not null;index"`
	ProgressPercent float64 `json:"progress_percent"`
	PagesDone       int     `json:"pages_done"`
	PagesTotal      int     `json:"pages_total"`
	DownloadedBytes int64   `json:"downloaded_bytes"`
	TotalBytes      int64   `json:"total_bytes"`
	RetryCount      int     `json:"retry_count"`
	ErrorMessage    string  `json:"error_message,omitempty"`
	SupersededBy    string  `json:"superseded_by,omitempty"`

	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewTask creates a queued chapter task inside the given bulk group.
func NewTask(groupID, providerID, mangaID, mangaTitle, chapterLabel, chapterURL string) *Task {
	now := time.Now()
	return &Task{
		ID:           uuid.New().String(),
		GroupID:      groupID,
		Provider:     providerID,
		MangaID:      mangaID,
		MangaTitle:   mangaTitle,
		ChapterLabel: chapterLabel,
		ChapterURL:   chapterURL,
		Status:       StatusQueued,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (t *Task) IsTerminal() bool {
	switch t.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

func (t *Task) MarkDownloading() {
	t.Status = StatusDownloading
	now := time.Now()
	if t.StartedAt == nil {
		t.StartedAt = &now
	}
	t.UpdatedAt = now
}

func (t *Task) MarkPaused() {
	t.Status = StatusPaused
	t.UpdatedAt = time.Now()
}

func (t *Task) MarkCompleted() {
	t.Status = StatusCompleted
	t.ProgressPercent = 100
	now := time.Now()
	t.CompletedAt = &now
	t.UpdatedAt = now
}

func (t *Task) MarkFailed(err error) {
	t.Status = StatusFailed
	if err != nil {
		t.ErrorMessage = err.Error()
	}
	now := time.Now()
	t.CompletedAt = &now
	t.UpdatedAt = now
}

func (t *Task) MarkCancelled() {
	t.Status = StatusCancelled
	now := time.Now()
	t.CompletedAt = &now
	t.UpdatedAt = now
}

func (t *Task) pageDir() string {
	return provider.Chapter{Label: t.ChapterLabel}.PageDir(t.MangaTitle)
}

func (t *Task) archiveName() string {
	return provider.Chapter{Label: t.ChapterLabel}.ArchiveName(t.MangaTitle)
}

// Retry clones a terminal task into a fresh queued one.
func (t *Task) Retry() *Task {
	next := NewTask(t.GroupID, t.Provider, t.MangaID, t.MangaTitle, t.ChapterLabel, t.ChapterURL)
	next.RetryCount = t.RetryCount + 1
	return next
}
