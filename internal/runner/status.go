package runner

import (
	"sync"
	"time"

	"github.com/ospwatch/webhard-monitor/internal/monitor"
)

const recentActivityLimit = 10

// tracker holds the mutable run status behind one mutex. Every reader
// gets a deep snapshot so the run loop never races the status endpoint.
type tracker struct {
	mu    sync.Mutex
	clock monitor.Clock
	s     monitor.RunStatus
}

func newTracker(clock monitor.Clock) *tracker {
	return &tracker{
		clock: clock,
		s: monitor.RunStatus{
			Categories: map[string]int{},
		},
	}
}

// reset starts a fresh status for a new run. Nothing carries over from
// the previous run.
func (t *tracker) reset(runID string, totalPages int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	start := t.clock.Now()
	t.s = monitor.RunStatus{
		RunID:      runID,
		IsRunning:  true,
		TotalPages: totalPages,
		Categories: map[string]int{},
		StartTime:  &start,
	}
}

func (t *tracker) setActivity(action string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.CurrentActivity = action
	t.logActivityLocked(action)
}

func (t *tracker) logActivityLocked(action string) {
	entry := monitor.Activity{
		Timestamp: t.clock.Now().Format(time.RFC3339),
		Action:    action,
	}
	t.s.RecentActivity = append([]monitor.Activity{entry}, t.s.RecentActivity...)
	if len(t.s.RecentActivity) > recentActivityLimit {
		t.s.RecentActivity = t.s.RecentActivity[:recentActivityLimit]
	}
}

func (t *tracker) setInitialized() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.IsInitialized = true
}

func (t *tracker) setLoggedIn(ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.IsLoggedIn = ok
}

// pageDone advances the page counter and recomputes progress. Progress
// stays below 100 until finish: the last page's contribution is deferred
// so a reader never sees a running run at full progress.
func (t *tracker) pageDone() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.ProcessedPages++
	if t.s.TotalPages <= 0 || t.s.ProcessedPages >= t.s.TotalPages {
		return
	}
	p := float64(t.s.ProcessedPages) / float64(t.s.TotalPages) * 100
	if p > t.s.Progress {
		t.s.Progress = p
	}
}

func (t *tracker) itemProcessed(category string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.ProcessedItems++
	t.s.Categories[category]++
}

func (t *tracker) keywordFound() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.KeywordFound++
}

// addError records a failure in both the error list and the activity log
// so live status readers see it without fetching the full error history.
func (t *tracker) addError(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.Errors = append(t.s.Errors, msg)
	t.logActivityLocked(msg)
}

func (t *tracker) finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	end := t.clock.Now()
	t.s.IsRunning = false
	t.s.EndTime = &end
	if t.s.ProcessedPages >= t.s.TotalPages {
		t.s.Progress = 100
	}
}

// snapshot returns a deep copy of the current status.
func (t *tracker) snapshot() monitor.RunStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.s
	out.Categories = make(map[string]int, len(t.s.Categories))
	for k, v := range t.s.Categories {
		out.Categories[k] = v
	}
	out.RecentActivity = append([]monitor.Activity(nil), t.s.RecentActivity...)
	out.Errors = append([]string(nil), t.s.Errors...)
	return out
}
