// Package download drives the bulk-download pipeline: it expands enqueue
// requests into per-chapter tasks, fetches pages through a bounded worker
// pool with one request in flight per provider, persists output through the
// storage interface and streams progress events.
package download

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/renvik/mangarr/internal/progress"
	"github.com/renvik/mangarr/internal/provider"
	"github.com/renvik/mangarr/internal/storage"
)

var (
	errCancelled    = errors.New("task cancelled")
	ErrTaskTerminal = errors.New("task is in a terminal state")
)

// PageLister resolves a chapter into its page URLs; backed by the provider
// registry in production.
type PageLister interface {
	ListPages(ctx context.Context, providerID string, ref provider.ChapterRef) ([]provider.Page, error)
}

type Options struct {
	GlobalWorkers int           // concurrent chapter tasks
	PageWorkers   int           // parallel page fetches within one chapter
	MaxRetries    int           // page fetch retries before the chapter fails
	RetryBackoff  time.Duration // base backoff, doubled per attempt
	ArchiveCBZ    bool
	KeepPages     bool
}

func (o Options) withDefaults() Options {
	if o.GlobalWorkers <= 0 {
		o.GlobalWorkers = 2
	}
	if o.PageWorkers <= 0 {
		o.PageWorkers = 5
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = time.Second
	}
	return o
}

type Orchestrator struct {
	repo   Repository
	lister PageLister
	fetch  Fetcher
	store  storage.Storage
	pub    *progress.Publisher
	log    *zap.Logger
	opts   Options

	mu     sync.Mutex
	ctrl   map[string]*taskControl
	tokens map[string]chan struct{}

	queue     chan string
	wg        sync.WaitGroup
	runCtx    context.Context
	cancelRun context.CancelFunc
	started   bool
}

func New(
	repo Repository,
	lister PageLister,
	fetch Fetcher,
	store storage.Storage,
	pub *progress.Publisher,
	log *zap.Logger,
	opts Options,
) *Orchestrator {
	return &Orchestrator{
		repo:   repo,
		lister: lister,
		fetch:  fetch,
		store:  store,
		pub:    pub,
		log:    log,
		opts:   opts.withDefaults(),
		ctrl:   map[string]*taskControl{},
		tokens: map[string]chan struct{}{},
		queue:  make(chan string, 4096),
	}
}

// Start launches the worker pool. Idempotent.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return
	}
	o.started = true
	o.runCtx, o.cancelRun = context.WithCancel(ctx)
	o.mu.Unlock()

	for i := 0; i < o.opts.GlobalWorkers; i++ {
		o.wg.Add(1)
		go o.worker()
	}

	o.log.Info("download orchestrator started",
		zap.Int("workers", o.opts.GlobalWorkers),
		zap.Int("page_workers", o.opts.PageWorkers))
}

// Shutdown stops the workers and waits for in-flight tasks to checkpoint.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	if !o.started {
		o.mu.Unlock()
		return
	}
	o.started = false
	cancel := o.cancelRun
	o.mu.Unlock()

	cancel()
	o.wg.Wait()
}

func (o *Orchestrator) worker() {
	defer o.wg.Done()
	for {
		select {
		case <-o.runCtx.Done():
			return
		case id := <-o.queue:
			o.runTask(id)
		}
	}
}

// Enqueue expands one request into per-chapter tasks sharing a bulk group.
func (o *Orchestrator) Enqueue(m provider.Manga, chapters []provider.Chapter) (string, []*Task, error) {
	if len(chapters) == 0 {
		return "", nil, fmt.Errorf("enqueue: no chapters")
	}

	groupID := uuid.New().String()
	tasks := make([]*Task, 0, len(chapters))

	for _, c := range chapters {
		t := NewTask(groupID, m.Provider, m.ExternalID, m.Title, c.Label, c.URL)
		t.PagesTotal = c.PageCount

		if err := o.repo.Create(t); err != nil {
			return "", nil, fmt.Errorf("enqueue: %w", err)
		}

		o.mu.Lock()
		o.ctrl[t.ID] = newTaskControl()
		o.mu.Unlock()

		o.publishTask(t, 0, 0)
		tasks = append(tasks, t)
		o.queue <- t.ID
	}

	o.log.Info("bulk group enqueued",
		zap.String("group", groupID),
		zap.String("manga", m.Title),
		zap.Int("chapters", len(tasks)))

	return groupID, tasks, nil
}

func (o *Orchestrator) GetTask(id string) (*Task, error) {
	return o.repo.FindByID(id)
}

// ListTasks returns all tasks, or the members of one bulk group.
func (o *Orchestrator) ListTasks(groupID string) ([]*Task, error) {
	if groupID == "" {
		return o.repo.FindAll()
	}
	return o.repo.FindByGroup(groupID)
}

// GroupProgress is the group's mean progress weighted by page count.
func (o *Orchestrator) GroupProgress(groupID string) (float64, error) {
	tasks, err := o.repo.FindByGroup(groupID)
	if err != nil {
		return 0, err
	}

	var weighted, weights float64
	for _, t := range tasks {
		w := float64(t.PagesTotal)
		if w <= 0 {
			w = 1
		}
		weighted += t.ProgressPercent * w
		weights += w
	}
	if weights == 0 {
		return 0, nil
	}
	return weighted / weights, nil
}

// Pause flags a task; its page loop blocks at the next checkpoint.
func (o *Orchestrator) Pause(id string) error {
	t, err := o.repo.FindByID(id)
	if err != nil {
		return err
	}
	if t.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrTaskTerminal, t.Status)
	}

	o.control(id).Pause()
	t.MarkPaused()
	if err := o.repo.Update(t); err != nil {
		return err
	}
	o.publishTask(t, 0, 0)
	return nil
}

func (o *Orchestrator) Resume(id string) error {
	t, err := o.repo.FindByID(id)
	if err != nil {
		return err
	}
	if t.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrTaskTerminal, t.Status)
	}

	o.control(id).Resume()
	if t.Status == StatusPaused {
		if t.StartedAt != nil {
			t.Status = StatusDownloading
		} else {
			t.Status = StatusQueued
		}
		t.UpdatedAt = time.Now()
		if err := o.repo.Update(t); err != nil {
			return err
		}
		o.publishTask(t, 0, 0)
	}
	return nil
}

// Cancel is cooperative: in-flight page fetches stop at the next
// checkpoint and already-downloaded pages are retained.
func (o *Orchestrator) Cancel(id string) error {
	t, err := o.repo.FindByID(id)
	if err != nil {
		return err
	}
	if t.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrTaskTerminal, t.Status)
	}

	o.control(id).Cancel()

	// A task still waiting in the queue is finalized right away.
	if t.Status == StatusQueued || t.Status == StatusPaused {
		t.MarkCancelled()
		if err := o.repo.Update(t); err != nil {
			return err
		}
		o.publishTask(t, 0, 0)
	}
	return nil
}

func (o *Orchestrator) CancelAll() error {
	active, err := o.repo.FindActive()
	if err != nil {
		return err
	}

	var firstErr error
	for _, t := range active {
		if err := o.Cancel(t.ID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// RetryTask supersedes a terminal task with a fresh queued one.
func (o *Orchestrator) RetryTask(id string) (*Task, error) {
	t, err := o.repo.FindByID(id)
	if err != nil {
		return nil, err
	}
	if !t.IsTerminal() {
		return nil, fmt.Errorf("retry: task %s is still %s", id, t.Status)
	}

	next := t.Retry()
	if err := o.repo.Create(next); err != nil {
		return nil, err
	}

	t.SupersededBy = next.ID
	if err := o.repo.Update(t); err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.ctrl[next.ID] = newTaskControl()
	o.mu.Unlock()

	o.publishTask(next, 0, 0)
	o.queue <- next.ID

	o.log.Info("task retried",
		zap.String("old", t.ID),
		zap.String("new", next.ID),
		zap.Int("attempt", next.RetryCount))

	return next, nil
}

func (o *Orchestrator) control(id string) *taskControl {
	o.mu.Lock()
	defer o.mu.Unlock()
	c, ok := o.ctrl[id]
	if !ok {
		c = newTaskControl()
		o.ctrl[id] = c
	}
	return c
}

// acquireToken takes the per-provider slot. At most one request per
// provider is in flight across all tasks, however many are running.
func (o *Orchestrator) acquireToken(ctx context.Context, ctrl *taskControl, providerID string) (func(), error) {
	o.mu.Lock()
	tok, ok := o.tokens[providerID]
	if !ok {
		tok = make(chan struct{}, 1)
		o.tokens[providerID] = tok
	}
	o.mu.Unlock()

	select {
	case tok <- struct{}{}:
		return func() { <-tok }, nil
	case <-ctrl.cancelled():
		return nil, errCancelled
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (o *Orchestrator) runTask(id string) {
	ctx := o.runCtx
	ctrl := o.control(id)

	t, err := o.repo.FindByID(id)
	if err != nil {
		o.log.Error("task vanished from repository", zap.String("id", id), zap.Error(err))
		return
	}
	if t.IsTerminal() {
		return
	}

	if err := ctrl.checkpoint(ctx); err != nil {
		o.finalizeCancel(t)
		return
	}

	t.MarkDownloading()
	if err := o.repo.Update(t); err != nil {
		o.log.Error("task update failed", zap.String("id", id), zap.Error(err))
	}
	o.publishTask(t, 0, 0)

	pages, err := o.listPages(ctx, ctrl, t)
	if err != nil {
		if errors.Is(err, errCancelled) {
			o.finalizeCancel(t)
			return
		}
		t.MarkFailed(err)
		_ = o.repo.Update(t)
		o.publishTask(t, 0, 0)
		o.log.Warn("chapter failed before page fetch",
			zap.String("id", t.ID),
			zap.String("chapter", t.ChapterLabel),
			zap.Error(err))
		return
	}

	t.PagesTotal = len(pages)
	_ = o.repo.Update(t)
	o.publishTask(t, 0, 0)

	o.fetchChapter(ctx, ctrl, t, pages)
}

func (o *Orchestrator) listPages(ctx context.Context, ctrl *taskControl, t *Task) ([]provider.Page, error) {
	ref := provider.ChapterRef{
		Provider: t.Provider,
		MangaID:  t.MangaID,
		Label:    t.ChapterLabel,
		URL:      t.ChapterURL,
	}

	// Transient retries on the listing fetch belong to the HTTP layer
	// underneath the provider; stacking a second loop here would multiply
	// the attempt counts.
	release, err := o.acquireToken(ctx, ctrl, t.Provider)
	if err != nil {
		return nil, err
	}
	defer release()

	return o.lister.ListPages(ctx, t.Provider, ref)
}

// chapterRun is the shared mutable state of one chapter's page workers.
type chapterRun struct {
	mu        sync.Mutex
	pagesDone int
	bytes     int64
	pageData  map[string][]byte
	firstErr  error
	started   time.Time
}

func (o *Orchestrator) fetchChapter(ctx context.Context, ctrl *taskControl, t *Task, pages []provider.Page) {
	run := &chapterRun{
		pageData: map[string][]byte{},
		started:  time.Now(),
	}

	workers := o.opts.PageWorkers
	if workers > len(pages) {
		workers = len(pages)
	}
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan provider.Page)
	var wg sync.WaitGroup

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for p := range jobs {
				o.fetchPage(ctx, ctrl, t, run, p)
			}
		}()
	}

	cancelled := false
feed:
	for _, p := range pages {
		run.mu.Lock()
		failed := run.firstErr != nil
		run.mu.Unlock()
		if failed {
			break
		}

		select {
		case <-ctrl.cancelled():
			cancelled = true
			break feed
		case <-ctx.Done():
			cancelled = true
			break feed
		case jobs <- p:
		}
	}
	close(jobs)
	wg.Wait()

	if !cancelled {
		select {
		case <-ctrl.cancelled():
			cancelled = true
		default:
			cancelled = ctx.Err() != nil
		}
	}

	o.finalize(t, run, pages, cancelled)
}

func (o *Orchestrator) fetchPage(ctx context.Context, ctrl *taskControl, t *Task, run *chapterRun, p provider.Page) {
	if err := ctrl.checkpoint(ctx); err != nil {
		return
	}

	var data []byte
	var err error
	for attempt := 0; attempt <= o.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			if o.backoff(ctx, ctrl, attempt) != nil {
				return
			}
			if ctrl.checkpoint(ctx) != nil {
				return
			}
		}

		release, terr := o.acquireToken(ctx, ctrl, t.Provider)
		if terr != nil {
			return
		}
		data, err = o.fetch.FetchPage(ctx, p.URL, t.ChapterURL)
		release()

		if err == nil || !provider.IsTransient(err) {
			break
		}
	}

	if err != nil {
		run.mu.Lock()
		if run.firstErr == nil {
			run.firstErr = fmt.Errorf("page %d: %w", p.Index, err)
		}
		run.mu.Unlock()
		return
	}

	name := pageFileName(p)
	if perr := o.store.Put(path.Join(t.pageDir(), name), data); perr != nil {
		run.mu.Lock()
		if run.firstErr == nil {
			run.firstErr = fmt.Errorf("page %d: %w", p.Index, perr)
		}
		run.mu.Unlock()
		return
	}

	run.mu.Lock()
	run.pagesDone++
	run.bytes += int64(len(data))
	run.pageData[name] = data
	done, bytes := run.pagesDone, run.bytes
	elapsed := time.Since(run.started)
	run.mu.Unlock()

	o.recordProgress(ctrl, t, done, bytes, elapsed)
}

// recordProgress recomputes percent after a page completes. Percent only
// ever grows until a terminal state.
func (o *Orchestrator) recordProgress(ctrl *taskControl, t *Task, done int, bytes int64, elapsed time.Duration) {
	percent := 0.0
	if t.PagesTotal > 0 {
		percent = float64(done) / float64(t.PagesTotal) * 100
	}

	var speed float64
	var eta time.Duration
	if elapsed > 0 && done > 0 {
		speed = float64(bytes) / elapsed.Seconds()
		remaining := t.PagesTotal - done
		perPage := elapsed / time.Duration(done)
		eta = perPage * time.Duration(remaining)
	}

	o.mu.Lock()
	t.PagesDone = done
	t.DownloadedBytes = bytes
	if percent > t.ProgressPercent {
		t.ProgressPercent = percent
	}
	t.UpdatedAt = time.Now()
	snap := *t
	o.mu.Unlock()

	// A concurrent Pause already wrote StatusPaused; a progress row for an
	// in-flight page must not flip it back to downloading.
	if ctrl.isPaused() {
		snap.Status = StatusPaused
	}

	_ = o.repo.Update(&snap)
	o.publishTask(&snap, speed, eta)
}

func (o *Orchestrator) finalize(t *Task, run *chapterRun, pages []provider.Page, cancelled bool) {
	run.mu.Lock()
	firstErr := run.firstErr
	done := run.pagesDone
	data := run.pageData
	run.mu.Unlock()

	switch {
	// Workers only stop short of the full page set on a cancel or run
	// shutdown; an incomplete chapter must never read as completed.
	case cancelled, firstErr == nil && done < len(pages):
		o.finalizeCancel(t)
		return

	case firstErr != nil:
		t.MarkFailed(firstErr)
		_ = o.repo.Update(t)
		o.publishTask(t, 0, 0)
		o.log.Warn("chapter failed",
			zap.String("id", t.ID),
			zap.String("chapter", t.ChapterLabel),
			zap.Int("pages_done", done),
			zap.Error(firstErr))
		return
	}

	if o.opts.ArchiveCBZ && len(data) == len(pages) {
		if err := o.archive(t, data); err != nil {
			t.MarkFailed(err)
			_ = o.repo.Update(t)
			o.publishTask(t, 0, 0)
			return
		}
	}

	t.TotalBytes = t.DownloadedBytes
	t.MarkCompleted()
	_ = o.repo.Update(t)
	o.publishTask(t, 0, 0)

	o.log.Info("chapter completed",
		zap.String("id", t.ID),
		zap.String("chapter", t.ChapterLabel),
		zap.Int("pages", len(pages)),
		zap.Int64("bytes", t.DownloadedBytes))
}

func (o *Orchestrator) finalizeCancel(t *Task) {
	t.MarkCancelled()
	_ = o.repo.Update(t)
	o.publishTask(t, 0, 0)
	o.log.Info("task cancelled",
		zap.String("id", t.ID),
		zap.String("chapter", t.ChapterLabel))
}

// archive packs the chapter into a CBZ and drops the loose page files when
// the storage can remove them.
func (o *Orchestrator) archive(t *Task, data map[string][]byte) error {
	blob, err := storage.BuildCBZ(data)
	if err != nil {
		return err
	}
	if err := o.store.Put(t.archiveName(), blob); err != nil {
		return err
	}

	if !o.opts.KeepPages {
		if rm, ok := o.store.(storage.Remover); ok {
			if err := rm.RemoveDir(t.pageDir()); err != nil {
				o.log.Warn("page dir cleanup failed",
					zap.String("id", t.ID), zap.Error(err))
			}
		}
	}
	return nil
}

func (o *Orchestrator) backoff(ctx context.Context, ctrl *taskControl, attempt int) error {
	d := o.opts.RetryBackoff << uint(attempt-1)
	select {
	case <-time.After(d):
		return nil
	case <-ctrl.cancelled():
		return errCancelled
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) publishTask(t *Task, speed float64, eta time.Duration) {
	o.pub.Publish(progress.Event{
		TaskID:          t.ID,
		GroupID:         t.GroupID,
		ChapterLabel:    t.ChapterLabel,
		Status:          string(t.Status),
		Percent:         t.ProgressPercent,
		PagesDone:       t.PagesDone,
		PagesTotal:      t.PagesTotal,
		DownloadedBytes: t.DownloadedBytes,
		TotalBytes:      t.TotalBytes,
		Speed:           speed,
		ETA:             eta,
	})
}
