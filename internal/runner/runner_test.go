package runner_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ospwatch/webhard-monitor/internal/clock/system"
	"github.com/ospwatch/webhard-monitor/internal/metrics"
	"github.com/ospwatch/webhard-monitor/internal/monitor"
	"github.com/ospwatch/webhard-monitor/internal/runner"
)

func TestMain(m *testing.M) {
	metrics.Init()
	m.Run()
}

type fakeSession struct {
	mu          sync.Mutex
	loginOK     bool
	loginErr    error
	loginGate   chan struct{}
	pages       map[string][]monitor.ListItem // key "category/page"
	searchItems []monitor.ListItem
	badCategory string
	closed      bool
	listCalls   int
	listStarted chan struct{}
	listGate    chan struct{}
}

func (f *fakeSession) Initialize(context.Context) error { return nil }

func (f *fakeSession) Login(context.Context, string, monitor.Credentials) (bool, error) {
	if f.loginGate != nil {
		<-f.loginGate
	}
	return f.loginOK, f.loginErr
}

func (f *fakeSession) NavigateToCategory(_ context.Context, code string) bool {
	return code != f.badCategory
}

func (f *fakeSession) ContentList(_ context.Context, category string, page int) ([]monitor.ListItem, error) {
	f.mu.Lock()
	f.listCalls++
	f.mu.Unlock()
	if f.listStarted != nil {
		select {
		case f.listStarted <- struct{}{}:
		default:
		}
	}
	if f.listGate != nil {
		<-f.listGate
	}
	return f.pages[fmt.Sprintf("%s/%d", category, page)], nil
}

func (f *fakeSession) Search(context.Context, string) ([]monitor.ListItem, error) {
	return f.searchItems, nil
}

func (f *fakeSession) Close(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSession) wasClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeProcessor marks titles containing the keyword. It never dedups on
// its own: the real pipeline cannot either, because recrawl fingerprints
// differ, so any duplicate processing shows up in the call counts.
type fakeProcessor struct {
	mu      sync.Mutex
	keyword string
	failIDs map[string]bool
	calls   map[string]int
}

func newFakeProcessor(keyword string) *fakeProcessor {
	return &fakeProcessor{keyword: keyword, calls: map[string]int{}, failIDs: map[string]bool{}}
}

func (p *fakeProcessor) Process(_ context.Context, item monitor.ListItem, category string) (*monitor.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[item.ContentID]++
	if p.failIDs[item.ContentID] {
		return nil, errors.New("capture blew up")
	}
	return &monitor.Result{
		Content:         monitor.Content{ContentID: item.ContentID, Title: item.Title, Genre: category},
		ContainsKeyword: strings.Contains(item.Title, p.keyword),
	}, nil
}

func (p *fakeProcessor) callCount(contentID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[contentID]
}

type nilStore struct{}

func (nilStore) SaveSite(context.Context, monitor.Site) error                  { return nil }
func (nilStore) SaveContent(context.Context, monitor.Content) error            { return nil }
func (nilStore) SaveContentDetail(context.Context, monitor.ContentDetail) error { return nil }
func (nilStore) SaveFileList(context.Context, string, []monitor.FileEntry) error {
	return nil
}
func (nilStore) ContentByFingerprint(context.Context, string) (*monitor.Content, error) {
	return nil, nil
}
func (nilStore) SearchByKeyword(context.Context, string) ([]monitor.Content, error) {
	return nil, nil
}
func (nilStore) ListAll(context.Context) ([]monitor.Content, error) { return nil, nil }
func (nilStore) Close() error                                       { return nil }

func pagesFor(categories []string, pageCount, itemsPerPage, matchesPerPage int, keyword string) map[string][]monitor.ListItem {
	pages := map[string][]monitor.ListItem{}
	id := 0
	for _, cat := range categories {
		for p := 1; p <= pageCount; p++ {
			var items []monitor.ListItem
			for i := 0; i < itemsPerPage; i++ {
				id++
				title := fmt.Sprintf("item %d", id)
				if i < matchesPerPage {
					title = fmt.Sprintf("%s %d화", keyword, id)
				}
				items = append(items, monitor.ListItem{
					ContentID: fmt.Sprintf("%d", 10000+id),
					Title:     title,
				})
			}
			pages[fmt.Sprintf("%s/%d", cat, p)] = items
		}
	}
	return pages
}

func newTestRunner(session *fakeSession, proc monitor.ItemProcessor, categories []string, pageCount int) *runner.Runner {
	return runner.New(
		runner.Config{
			Site:        monitor.Site{ID: "fileis", Name: "FileIs"},
			LoginURL:    "https://example.test/login",
			Credentials: monitor.Credentials{Username: "u", Password: "p"},
			Keyword:     "폭싹속았수다",
			Categories:  categories,
			PageCount:   pageCount,
		},
		func(monitor.Options) monitor.Session { return session },
		func(monitor.Session) monitor.ItemProcessor { return proc },
		nilStore{},
		nil,
		system.Clock{},
		nil,
	)
}

func TestRunHappyPath(t *testing.T) {
	categories := []string{"CG001", "CG002"}
	keyword := "폭싹속았수다"
	session := &fakeSession{
		loginOK: true,
		pages:   pagesFor(categories, 2, 5, 1, keyword),
	}
	r := newTestRunner(session, newFakeProcessor(keyword), categories, 2)

	runID, err := r.Start(monitor.Options{})
	require.NoError(t, err)
	assert.NotEmpty(t, runID)
	r.Wait()

	s := r.Status()
	assert.False(t, s.IsRunning)
	assert.True(t, s.IsInitialized)
	assert.True(t, s.IsLoggedIn)
	assert.Equal(t, runID, s.RunID)

	// 2 categories x 2 pages x 5 items, one match per page.
	assert.Equal(t, 20, s.ProcessedItems)
	assert.Equal(t, 4, s.KeywordFound)
	assert.Equal(t, 5, s.TotalPages)
	assert.Equal(t, 5, s.ProcessedPages)
	assert.Equal(t, 100.0, s.Progress)
	assert.Equal(t, 10, s.Categories["CG001"])
	assert.Equal(t, 10, s.Categories["CG002"])
	assert.Empty(t, s.Errors)
	assert.True(t, session.wasClosed())
}

func TestStartWhileRunningRejected(t *testing.T) {
	gate := make(chan struct{})
	session := &fakeSession{loginOK: true, loginGate: gate}
	r := newTestRunner(session, newFakeProcessor("k"), []string{"CG001"}, 1)

	_, err := r.Start(monitor.Options{})
	require.NoError(t, err)

	_, err = r.Start(monitor.Options{})
	assert.ErrorIs(t, err, monitor.ErrAlreadyRunning)

	close(gate)
	r.Wait()

	// A finished run can be restarted.
	gate2 := make(chan struct{})
	close(gate2)
	session.loginGate = gate2
	_, err = r.Start(monitor.Options{})
	assert.NoError(t, err)
	r.Wait()
}

func TestStopMidRun(t *testing.T) {
	categories := []string{"CG001", "CG002", "CG003"}
	gate := make(chan struct{})
	session := &fakeSession{
		loginOK:     true,
		pages:       pagesFor(categories, 3, 2, 0, "k"),
		listStarted: make(chan struct{}, 1),
		listGate:    gate,
	}
	r := newTestRunner(session, newFakeProcessor("k"), categories, 3)

	_, err := r.Start(monitor.Options{})
	require.NoError(t, err)

	// Stop while the first page fetch is in flight, then release it.
	select {
	case <-session.listStarted:
	case <-time.After(5 * time.Second):
		t.Fatal("run never fetched a page")
	}
	require.NoError(t, r.Stop())
	close(gate)
	r.Wait()

	s := r.Status()
	assert.False(t, s.IsRunning)
	assert.Less(t, s.ProcessedPages, s.TotalPages)
	assert.Less(t, s.Progress, 100.0)
	assert.True(t, session.wasClosed(), "stopped run must still release the browser")
}

func TestStopWhenNotRunning(t *testing.T) {
	r := newTestRunner(&fakeSession{loginOK: true}, newFakeProcessor("k"), []string{"CG001"}, 1)
	assert.ErrorIs(t, r.Stop(), monitor.ErrNotRunning)
}

func TestItemFailureDoesNotAbortRun(t *testing.T) {
	categories := []string{"CG001"}
	proc := newFakeProcessor("k")
	proc.failIDs["10001"] = true
	session := &fakeSession{loginOK: true, pages: pagesFor(categories, 1, 4, 0, "k")}
	r := newTestRunner(session, proc, categories, 1)

	_, err := r.Start(monitor.Options{})
	require.NoError(t, err)
	r.Wait()

	s := r.Status()
	assert.Equal(t, 3, s.ProcessedItems)
	require.Len(t, s.Errors, 1)
	assert.Contains(t, s.Errors[0], "10001")
	assert.Equal(t, 2, s.ProcessedPages, "category page plus search pass")

	// The failure is visible in the activity log, not just the error list.
	var logged bool
	for _, a := range s.RecentActivity {
		if strings.Contains(a.Action, "10001") {
			logged = true
		}
	}
	assert.True(t, logged)
}

func TestUnreachableCategoryIsolated(t *testing.T) {
	categories := []string{"CG001", "CG002"}
	session := &fakeSession{
		loginOK:     true,
		pages:       pagesFor(categories, 1, 2, 0, "k"),
		badCategory: "CG001",
	}
	r := newTestRunner(session, newFakeProcessor("k"), categories, 1)

	_, err := r.Start(monitor.Options{})
	require.NoError(t, err)
	r.Wait()

	s := r.Status()
	// CG002's items still processed, CG001's pages still counted.
	assert.Equal(t, 2, s.ProcessedItems)
	assert.Equal(t, s.TotalPages, s.ProcessedPages)
	assert.Equal(t, 100.0, s.Progress)
	require.NotEmpty(t, s.Errors)
	assert.Contains(t, s.Errors[0], "CG001")
}

func TestSearchPassDedupsAgainstWalk(t *testing.T) {
	categories := []string{"CG001"}
	keyword := "폭싹속았수다"
	pages := pagesFor(categories, 1, 3, 1, keyword)
	session := &fakeSession{
		loginOK: true,
		pages:   pages,
		// Search returns an item already seen plus a fresh one.
		searchItems: []monitor.ListItem{
			pages["CG001/1"][0],
			{ContentID: "77777", Title: keyword + " 특집"},
		},
	}
	proc := newFakeProcessor(keyword)
	r := newTestRunner(session, proc, categories, 1)

	_, err := r.Start(monitor.Options{})
	require.NoError(t, err)
	r.Wait()

	s := r.Status()
	// 3 from the walk plus only the fresh search hit.
	assert.Equal(t, 4, s.ProcessedItems)
	assert.Equal(t, 2, s.KeywordFound)
	assert.Equal(t, 1, s.Categories["search"])
	// The re-seen item never reaches the pipeline a second time.
	assert.Equal(t, 1, proc.callCount(pages["CG001/1"][0].ContentID))
	assert.Equal(t, 1, proc.callCount("77777"))
}

func TestLoginRejectedEndsRun(t *testing.T) {
	session := &fakeSession{loginOK: false}
	r := newTestRunner(session, newFakeProcessor("k"), []string{"CG001"}, 1)

	_, err := r.Start(monitor.Options{})
	require.NoError(t, err)
	r.Wait()

	s := r.Status()
	assert.False(t, s.IsLoggedIn)
	assert.Zero(t, s.ProcessedItems)
	require.NotEmpty(t, s.Errors)
	assert.Contains(t, s.Errors[0], "login")
	assert.True(t, session.wasClosed())
}
