package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/renvik/mangarr/internal/download"
	"github.com/renvik/mangarr/internal/normalize"
	"github.com/renvik/mangarr/internal/provider"
	"github.com/renvik/mangarr/internal/provider/registry"
)

type TaskHandler struct {
	orch *download.Orchestrator
	reg  *registry.Registry
	opts Options
	log  *zap.Logger
}

func NewTaskHandler(orch *download.Orchestrator, reg *registry.Registry, opts Options, log *zap.Logger) *TaskHandler {
	return &TaskHandler{orch: orch, reg: reg, opts: opts, log: log}
}

// EnqueueRequest selects chapters of one manga on one provider. An empty
// Chapters list means every chapter the provider lists.
type EnqueueRequest struct {
	Provider string   `json:"provider" binding:"required"`
	MangaID  string   `json:"manga_id" binding:"required"`
	Chapters []string `json:"chapters,omitempty"`
}

// Enqueue handles POST /api/v1/tasks.
func (h *TaskHandler) Enqueue(c *gin.Context) {
	var req EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var manga *provider.Manga
	var chapters []provider.Chapter
	err := h.reg.Call(c.Request.Context(), req.Provider, func(ctx context.Context, p provider.Provider) error {
		m, err := p.FetchDetails(ctx, req.MangaID)
		if err != nil {
			return err
		}
		chs, err := p.ListChapters(ctx, req.MangaID)
		if err != nil {
			return err
		}
		manga = m
		chapters = chs
		return nil
	})
	if err != nil {
		if errors.Is(err, registry.ErrUnknownProvider) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.log.Error("enqueue lookup failed",
			zap.String("provider", req.Provider),
			zap.String("manga_id", req.MangaID),
			zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	chapters = h.prepareChapters(chapters, req.Chapters)
	if len(chapters) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no matching chapters"})
		return
	}

	groupID, tasks, err := h.orch.Enqueue(*manga, chapters)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"group_id": groupID,
		"tasks":    tasks,
	})
}

// prepareChapters dedups, drops premium entries, and sorts a raw listing
// before anything becomes a task, then applies the caller's label selection.
func (h *TaskHandler) prepareChapters(chs []provider.Chapter, labels []string) []provider.Chapter {
	chs = normalize.Chapters(chs, h.opts.Weights, h.opts.Order)
	if len(labels) > 0 {
		chs = selectLabels(chs, labels)
	}
	return chs
}

func selectLabels(chs []provider.Chapter, labels []string) []provider.Chapter {
	want := make(map[string]bool, len(labels))
	for _, l := range labels {
		want[l] = true
	}

	out := make([]provider.Chapter, 0, len(labels))
	for _, c := range chs {
		if want[c.Label] {
			out = append(out, c)
		}
	}
	return out
}

// Get handles GET /api/v1/tasks/:id.
func (h *TaskHandler) Get(c *gin.Context) {
	t, err := h.orch.GetTask(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	c.JSON(http.StatusOK, t)
}

// List handles GET /api/v1/tasks with optional ?group= filter.
func (h *TaskHandler) List(c *gin.Context) {
	tasks, err := h.orch.ListTasks(c.Query("group"))
	if err != nil {
		h.log.Error("task list failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, tasks)
}

// Group handles GET /api/v1/groups/:id.
func (h *TaskHandler) Group(c *gin.Context) {
	id := c.Param("id")

	tasks, err := h.orch.ListTasks(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(tasks) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		return
	}

	percent, err := h.orch.GroupProgress(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"group_id": id,
		"percent":  percent,
		"tasks":    tasks,
	})
}

func (h *TaskHandler) Pause(c *gin.Context) {
	h.control(c, h.orch.Pause, "task paused")
}

func (h *TaskHandler) Resume(c *gin.Context) {
	h.control(c, h.orch.Resume, "task resumed")
}

func (h *TaskHandler) Cancel(c *gin.Context) {
	h.control(c, h.orch.Cancel, "task cancelled")
}

func (h *TaskHandler) control(c *gin.Context, fn func(string) error, msg string) {
	id := c.Param("id")
	if err := fn(id); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, download.ErrTaskNotFound) {
			status = http.StatusNotFound
		} else if errors.Is(err, download.ErrTaskTerminal) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// Retry handles POST /api/v1/tasks/:id/retry.
func (h *TaskHandler) Retry(c *gin.Context) {
	t, err := h.orch.RetryTask(c.Param("id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, download.ErrTaskNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, t)
}

// CancelAll handles POST /api/v1/tasks/cancel-all.
func (h *TaskHandler) CancelAll(c *gin.Context) {
	if err := h.orch.CancelAll(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "all active tasks cancelled"})
}
