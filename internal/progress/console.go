package progress

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/renvik/mangarr/internal/util"
)

// Console renders publisher events as one mpb bar per task.
type Console struct {
	p *mpb.Progress

	mu   sync.Mutex
	bars map[string]*taskBar
}

type taskBar struct {
	bar   *mpb.Bar
	bytes atomic.Int64
	speed atomic.Int64 // bytes per second
	done  bool
}

func NewConsole() *Console {
	return &Console{
		p: mpb.New(
			mpb.WithWidth(52),
			mpb.WithOutput(os.Stdout),
			mpb.WithRefreshRate(120*time.Millisecond),
		),
		bars: map[string]*taskBar{},
	}
}

// Run consumes events until the channel closes. Call from its own
// goroutine; Wait blocks until rendering finished.
func (c *Console) Run(events <-chan Event) {
	for ev := range events {
		c.apply(ev)
	}
}

func (c *Console) apply(ev Event) {
	c.mu.Lock()
	tb, ok := c.bars[ev.TaskID]
	if !ok {
		tb = c.newBar(ev)
		c.bars[ev.TaskID] = tb
	}
	c.mu.Unlock()

	if tb.done {
		return
	}

	tb.bytes.Store(ev.DownloadedBytes)
	tb.speed.Store(int64(ev.Speed))

	if ev.PagesTotal > 0 {
		tb.bar.SetTotal(int64(ev.PagesTotal), false)
	}
	tb.bar.SetCurrent(int64(ev.PagesDone))

	if isTerminal(ev.Status) {
		tb.done = true
		tb.bar.SetTotal(int64(ev.PagesTotal), true)
		if ev.Status != "completed" {
			tb.bar.Abort(false)
		}
	}
}

func (c *Console) newBar(ev Event) *taskBar {
	tb := &taskBar{}
	prefix := "Ch." + ev.ChapterLabel
	if ev.ChapterLabel == "" {
		prefix = ev.TaskID
	}

	tb.bar = c.p.New(
		int64(ev.PagesTotal),
		mpb.BarStyle().Rbound("]"),

		mpb.PrependDecorators(
			decor.Name(prefix+"  "),
		),

		mpb.AppendDecorators(
			decor.Percentage(decor.WCSyncWidth),
			decor.CountersNoUnit(" | %d/%d pages", decor.WCSyncWidth),
			decor.Any(func(_ decor.Statistics) string {
				return " | " + util.Human(tb.bytes.Load())
			}),
			decor.Any(func(_ decor.Statistics) string {
				return fmt.Sprintf(" | %s/s", util.Human(tb.speed.Load()))
			}),
		),
	)
	return tb
}

func (c *Console) Wait() {
	c.p.Wait()
}

func isTerminal(status string) bool {
	switch status {
	case "completed", "failed", "cancelled":
		return true
	}
	return false
}
