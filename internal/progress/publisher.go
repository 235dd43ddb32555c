// Package progress is the fire-and-forget event channel between the
// download pipeline and whatever is watching it. Delivery is best effort:
// a slow subscriber loses events, never blocks a download, and reconciles
// through the pull-based task query API.
package progress

import (
	"sync"
	"time"
)

// Event is one progress sample for a task.
type Event struct {
	TaskID          string        `json:"task_id"`
	GroupID         string        `json:"group_id,omitempty"`
	ChapterLabel    string        `json:"chapter_label,omitempty"`
	Status          string        `json:"status"`
	Percent         float64       `json:"percent"`
	PagesDone       int           `json:"pages_done"`
	PagesTotal      int           `json:"pages_total"`
	DownloadedBytes int64         `json:"downloaded_bytes"`
	TotalBytes      int64         `json:"total_bytes"`
	Speed           float64       `json:"speed"` // bytes per second
	ETA             time.Duration `json:"eta"`
	Timestamp       time.Time     `json:"timestamp"`
}

type Publisher struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

func NewPublisher() *Publisher {
	return &Publisher{subs: map[int]chan Event{}}
}

// Subscribe registers a listener with the given channel buffer. The
// returned cancel func must be called when the listener goes away.
func (p *Publisher) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 64
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextID
	p.nextID++
	ch := make(chan Event, buffer)

	if p.closed {
		close(ch)
		return ch, func() {}
	}
	p.subs[id] = ch

	cancel := func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if c, ok := p.subs[id]; ok {
			delete(p.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Publish fans the event out without blocking; lagging subscribers drop it.
func (p *Publisher) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	for _, ch := range p.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	for id, ch := range p.subs {
		delete(p.subs, id)
		close(ch)
	}
}
