// Package runner orchestrates a full crawl run: session setup, login,
// the category walk, the keyword search pass, and teardown. One run is
// active at a time; its status is observable throughout.
package runner

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ospwatch/webhard-monitor/internal/metrics"
	"github.com/ospwatch/webhard-monitor/internal/monitor"
)

// Config fixes the run parameters that do not vary per request.
type Config struct {
	Site        monitor.Site
	LoginURL    string
	Credentials monitor.Credentials
	Keyword     string
	Categories  []string
	PageCount   int
}

// SessionFactory builds a fresh browser session for each run, honoring
// the run's options.
type SessionFactory func(opts monitor.Options) monitor.Session

// ProcessorFactory binds the per-item pipeline to a run's session.
type ProcessorFactory func(session monitor.Session) monitor.ItemProcessor

// Runner owns the run lifecycle. Start launches the crawl in the
// background; Stop requests a cooperative halt checked at page and item
// boundaries.
type Runner struct {
	cfg      Config
	sessions SessionFactory
	procs    ProcessorFactory
	store    monitor.Store
	archiver monitor.Archiver
	clock    monitor.Clock
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
	stop    atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}

	status *tracker
}

// New wires a runner. The store outlives individual runs; sessions and
// processors are rebuilt per run.
func New(
	cfg Config,
	sessions SessionFactory,
	procs ProcessorFactory,
	store monitor.Store,
	archiver monitor.Archiver,
	clock monitor.Clock,
	logger *zap.Logger,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:      cfg,
		sessions: sessions,
		procs:    procs,
		store:    store,
		archiver: archiver,
		clock:    clock,
		logger:   logger,
		status:   newTracker(clock),
	}
}

// Start begins a new run and returns its ID. A second start while a run
// is active is rejected.
func (r *Runner) Start(opts monitor.Options) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return "", monitor.ErrAlreadyRunning
	}

	pageCount := r.cfg.PageCount
	if opts.PageCount > 0 {
		pageCount = opts.PageCount
	}

	runID := uuid.NewString()
	// Every category page plus the final keyword search pass.
	totalPages := len(r.cfg.Categories)*pageCount + 1
	r.status.reset(runID, totalPages)
	r.stop.Store(false)

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	r.running = true

	go func() {
		defer close(r.done)
		r.run(ctx, opts, pageCount)
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	r.logger.Info("run started", zap.String("run_id", runID),
		zap.Int("total_pages", totalPages), zap.Bool("stealth", opts.Stealth))
	return runID, nil
}

// Stop requests a cooperative halt of the active run.
func (r *Runner) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return monitor.ErrNotRunning
	}
	r.stop.Store(true)
	r.status.setActivity("stop requested")
	r.logger.Info("stop requested")
	return nil
}

// Status returns a snapshot of the current or most recent run.
func (r *Runner) Status() monitor.RunStatus {
	return r.status.snapshot()
}

// Wait blocks until the active run finishes. Used by tests and shutdown.
func (r *Runner) Wait() {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Shutdown cancels any active run and waits for it to unwind.
func (r *Runner) Shutdown() {
	r.mu.Lock()
	if r.cancel != nil {
		r.stop.Store(true)
		r.cancel()
	}
	done := r.done
	r.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (r *Runner) run(ctx context.Context, opts monitor.Options, pageCount int) {
	start := r.clock.Now()
	metrics.RunStarted()
	defer func() { metrics.ObserveRunDuration(r.clock.Now().Sub(start)) }()

	if r.archiver != nil {
		r.archiver.Reset()
	}
	session := r.sessions(opts)
	defer r.finalize(ctx, session)

	r.status.setActivity("initializing browser")
	if err := session.Initialize(ctx); err != nil {
		r.fail("initialize browser", err)
		return
	}
	r.status.setInitialized()

	if err := r.store.SaveSite(ctx, r.cfg.Site); err != nil {
		r.fail("save site record", err)
		return
	}

	r.status.setActivity("logging in")
	ok, err := session.Login(ctx, r.cfg.LoginURL, r.cfg.Credentials)
	if err != nil {
		r.fail("login", err)
		return
	}
	r.status.setLoggedIn(ok)
	if !ok {
		r.fail("login", fmt.Errorf("credentials rejected"))
		return
	}

	processor := r.procs(session)
	// Content IDs handled during this run. The search pass returns items
	// the category walk already covered; the store cannot catch those
	// because recrawl fingerprints differ.
	seen := make(map[string]bool)

	for _, category := range r.cfg.Categories {
		if r.halted(ctx) {
			return
		}
		r.crawlCategory(ctx, session, processor, category, pageCount, seen)
	}

	if r.halted(ctx) {
		return
	}
	r.searchPass(ctx, session, processor, seen)
}

// crawlCategory walks one category's pages. Failures are page-scoped:
// a broken page is recorded and the walk moves on.
func (r *Runner) crawlCategory(
	ctx context.Context,
	session monitor.Session,
	processor monitor.ItemProcessor,
	category string,
	pageCount int,
	seen map[string]bool,
) {
	r.status.setActivity("crawling category " + category)
	if !session.NavigateToCategory(ctx, category) {
		r.status.addError("category " + category + " unreachable")
		// The planned pages still count toward progress.
		for p := 0; p < pageCount; p++ {
			metrics.ObservePage(category, "unreachable")
			r.status.pageDone()
		}
		return
	}

	for page := 1; page <= pageCount; page++ {
		if r.halted(ctx) {
			return
		}

		items, err := session.ContentList(ctx, category, page)
		if err != nil {
			r.status.addError(fmt.Sprintf("category %s page %d: %v", category, page, err))
			metrics.ObservePage(category, "error")
			r.status.pageDone()
			continue
		}
		metrics.ObservePage(category, "success")

		for _, item := range items {
			if r.halted(ctx) {
				return
			}
			r.processItem(ctx, processor, item, category, seen)
		}
		r.status.pageDone()
	}
}

// searchPass runs the site keyword search as the final page of the run.
// Items the category walk already handled are skipped by content ID.
func (r *Runner) searchPass(
	ctx context.Context,
	session monitor.Session,
	processor monitor.ItemProcessor,
	seen map[string]bool,
) {
	r.status.setActivity("keyword search pass")
	defer r.status.pageDone()

	items, err := session.Search(ctx, r.cfg.Keyword)
	if err != nil {
		r.status.addError(fmt.Sprintf("keyword search: %v", err))
		metrics.ObservePage("search", "error")
		return
	}
	metrics.ObservePage("search", "success")

	for _, item := range items {
		if r.halted(ctx) {
			return
		}
		r.processItem(ctx, processor, item, "search", seen)
	}
}

// processItem runs one item through the pipeline. Item failures never
// abort the run.
func (r *Runner) processItem(
	ctx context.Context,
	processor monitor.ItemProcessor,
	item monitor.ListItem,
	category string,
	seen map[string]bool,
) {
	if seen[item.ContentID] {
		metrics.ObserveItem("skipped")
		return
	}

	res, err := processor.Process(ctx, item, category)
	if err != nil {
		r.status.addError(fmt.Sprintf("item %s: %v", item.ContentID, err))
		metrics.ObserveItem("failed")
		r.logger.Warn("item processing failed",
			zap.String("content_id", item.ContentID), zap.Error(err))
		return
	}
	seen[item.ContentID] = true
	if res == nil {
		metrics.ObserveItem("skipped")
		return
	}

	metrics.ObserveItem("processed")
	r.status.itemProcessed(category)
	if res.ContainsKeyword {
		metrics.ObserveKeywordMatch(category)
		r.status.keywordFound()
		r.logger.Info("keyword match",
			zap.String("content_id", res.Content.ContentID),
			zap.String("title", res.Content.Title),
			zap.String("category", category))
	}
}

func (r *Runner) halted(ctx context.Context) bool {
	if r.stop.Load() {
		return true
	}
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func (r *Runner) fail(stage string, err error) {
	r.status.addError(fmt.Sprintf("%s: %v", stage, err))
	r.logger.Error("run aborted", zap.String("stage", stage), zap.Error(err))
}

// finalize always runs: the browser and archiver are released no matter
// how the run ended. The store stays open across runs.
func (r *Runner) finalize(ctx context.Context, session monitor.Session) {
	r.status.setActivity("finalizing")
	if err := session.Close(ctx); err != nil {
		r.logger.Warn("session close failed", zap.Error(err))
	}
	if r.archiver != nil {
		if err := r.archiver.Close(ctx); err != nil {
			r.logger.Warn("archiver close failed", zap.Error(err))
		}
	}
	r.status.finish()
	r.logger.Info("run finished",
		zap.Int("processed_items", r.status.snapshot().ProcessedItems),
		zap.Int("keyword_found", r.status.snapshot().KeywordFound))
}
