// Package api exposes the task queue and provider registry over HTTP, plus
// a WebSocket stream of progress events.
package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/renvik/mangarr/internal/download"
	"github.com/renvik/mangarr/internal/normalize"
	"github.com/renvik/mangarr/internal/progress"
	"github.com/renvik/mangarr/internal/provider/registry"
)

// Options carry the normalization settings chapter listings are served and
// enqueued with.
type Options struct {
	Weights normalize.Weights
	Order   normalize.Order
}

// NewRouter wires the HTTP surface: task CRUD and control under /api/v1,
// provider health, and the /ws/events progress stream.
func NewRouter(
	orch *download.Orchestrator,
	reg *registry.Registry,
	pub *progress.Publisher,
	log *zap.Logger,
	opts Options,
) *gin.Engine {
	if opts.Weights.IsZero() {
		opts.Weights = normalize.DefaultWeights()
	}

	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(Logger(log))
	router.Use(Recovery(log))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		tasks := NewTaskHandler(orch, reg, opts, log)
		t := v1.Group("/tasks")
		{
			t.POST("", tasks.Enqueue)
			t.GET("", tasks.List)
			t.GET("/:id", tasks.Get)
			t.POST("/:id/pause", tasks.Pause)
			t.POST("/:id/resume", tasks.Resume)
			t.POST("/:id/cancel", tasks.Cancel)
			t.POST("/:id/retry", tasks.Retry)
			t.POST("/cancel-all", tasks.CancelAll)
		}

		groups := v1.Group("/groups")
		{
			groups.GET("/:id", tasks.Group)
		}

		providers := NewProviderHandler(reg, opts, log)
		p := v1.Group("/providers")
		{
			p.GET("", providers.List)
			p.GET("/health", providers.Health)
			p.GET("/:id/search", providers.Search)
			p.GET("/:id/manga/:mangaID/chapters", providers.Chapters)
		}
	}

	events := NewEventHandler(pub, log)
	router.GET("/ws/events", events.Stream)

	return router
}
