package download

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTask(t *testing.T) {
	task := NewTask("g1", "sitea", "/manga/x", "One Piece", "28.5", "https://sitea.example/c/28-5")

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "g1", task.GroupID)
	assert.Equal(t, StatusQueued, task.Status)
	assert.False(t, task.IsTerminal())
	assert.Nil(t, task.StartedAt)
}

func TestTaskTransitions(t *testing.T) {
	task := NewTask("g1", "sitea", "/manga/x", "One Piece", "1", "u")

	task.MarkDownloading()
	assert.Equal(t, StatusDownloading, task.Status)
	require.NotNil(t, task.StartedAt)
	started := *task.StartedAt

	task.MarkDownloading()
	assert.Equal(t, started, *task.StartedAt, "start time is set once")

	task.MarkPaused()
	assert.Equal(t, StatusPaused, task.Status)
	assert.False(t, task.IsTerminal())

	task.MarkCompleted()
	assert.Equal(t, StatusCompleted, task.Status)
	assert.Equal(t, float64(100), task.ProgressPercent)
	assert.NotNil(t, task.CompletedAt)
	assert.True(t, task.IsTerminal())
}

func TestTaskMarkFailed(t *testing.T) {
	task := NewTask("g1", "sitea", "/manga/x", "One Piece", "1", "u")

	task.MarkFailed(errors.New("page 3: HTTP 500"))
	assert.Equal(t, StatusFailed, task.Status)
	assert.Equal(t, "page 3: HTTP 500", task.ErrorMessage)
	assert.True(t, task.IsTerminal())
}

func TestTaskRetryClone(t *testing.T) {
	task := NewTask("g1", "sitea", "/manga/x", "One Piece", "1", "u")
	task.MarkFailed(errors.New("boom"))

	next := task.Retry()
	assert.NotEqual(t, task.ID, next.ID)
	assert.Equal(t, task.GroupID, next.GroupID)
	assert.Equal(t, task.ChapterLabel, next.ChapterLabel)
	assert.Equal(t, StatusQueued, next.Status)
	assert.Equal(t, 1, next.RetryCount)
	assert.Empty(t, next.ErrorMessage)
}
