package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/renvik/mangarr/internal/normalize"
	"github.com/renvik/mangarr/internal/provider"
	"github.com/renvik/mangarr/internal/provider/registry"
)

type ProviderHandler struct {
	reg  *registry.Registry
	opts Options
	log  *zap.Logger
}

func NewProviderHandler(reg *registry.Registry, opts Options, log *zap.Logger) *ProviderHandler {
	return &ProviderHandler{reg: reg, opts: opts, log: log}
}

// List handles GET /api/v1/providers: healthy providers in priority order.
func (h *ProviderHandler) List(c *gin.Context) {
	type info struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Priority int    `json:"priority"`
	}

	provs := h.reg.Healthy()
	out := make([]info, 0, len(provs))
	for _, p := range provs {
		out = append(out, info{ID: p.ID(), Name: p.Name(), Priority: p.Priority()})
	}
	c.JSON(http.StatusOK, out)
}

// Health handles GET /api/v1/providers/health.
func (h *ProviderHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, h.reg.HealthAll())
}

// Search handles GET /api/v1/providers/:id/search?q=...&page=N.
func (h *ProviderHandler) Search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query parameter q"})
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}

	var results []provider.Manga
	err := h.reg.Call(c.Request.Context(), c.Param("id"), func(ctx context.Context, p provider.Provider) error {
		found, err := p.Search(ctx, query, page)
		results = found
		return err
	})
	if err != nil {
		h.respondCallError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

// Chapters handles GET /api/v1/providers/:id/manga/:mangaID/chapters.
func (h *ProviderHandler) Chapters(c *gin.Context) {
	var chapters []provider.Chapter
	err := h.reg.Call(c.Request.Context(), c.Param("id"), func(ctx context.Context, p provider.Provider) error {
		chs, err := p.ListChapters(ctx, c.Param("mangaID"))
		chapters = chs
		return err
	})
	if err != nil {
		h.respondCallError(c, err)
		return
	}
	c.JSON(http.StatusOK, normalize.Chapters(chapters, h.opts.Weights, h.opts.Order))
}

func (h *ProviderHandler) respondCallError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, registry.ErrUnknownProvider):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case provider.KindOf(err) == provider.KindCircuitOpen:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		h.log.Warn("provider call failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}
