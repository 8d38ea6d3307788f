package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ospwatch/webhard-monitor/internal/monitor"
	"github.com/ospwatch/webhard-monitor/internal/store"
)

func openTestStore(t *testing.T) *store.SQLite {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "data", "monitor.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleContent(fp string, at time.Time) monitor.Content {
	return monitor.Content{
		Fingerprint:  fp,
		SiteID:       "fileis",
		ContentID:    "99001",
		Title:        "폭싹속았수다 4화",
		Genre:        "CG002",
		FileCount:    1,
		FileSize:     "1.8 GB",
		UploaderID:   "bestup",
		DiscoveredAt: at,
		DetailURL:    "https://x/view?contentId=99001",
	}
}

func TestSaveContentUpsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	c := sampleContent("fp-1", at)
	require.NoError(t, s.SaveContent(ctx, c))

	// Same fingerprint replaces, never duplicates.
	c.Title = "폭싹속았수다 4화 재업"
	require.NoError(t, s.SaveContent(ctx, c))

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "폭싹속았수다 4화 재업", all[0].Title)
	assert.True(t, all[0].DiscoveredAt.Equal(at))
}

func TestContentByFingerprintAbsent(t *testing.T) {
	s := openTestStore(t)
	got, err := s.ContentByFingerprint(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSaveContentDetailRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	d := monitor.ContentDetail{
		Fingerprint:  "fp-2",
		DiscoveredAt: at,
		Price:        "1,200",
		PriceUnit:    "포인트",
		Partnership:  true,
		EvidencePath: "/evidence/evidence_fp-2.png",
		Status:       monitor.StatusKeywordFound,
	}
	require.NoError(t, s.SaveContentDetail(ctx, d))

	got, err := s.DetailByFingerprint(ctx, "fp-2")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, monitor.StatusKeywordFound, got.Status)
	assert.True(t, got.Partnership)
	assert.True(t, got.DiscoveredAt.Equal(at))
}

func TestSaveFileListTransactional(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	files := []monitor.FileEntry{
		{Filename: "ep04.mkv", FileSize: "1.8 GB"},
		{Filename: "ep04.smi", FileSize: "41 KB"},
	}
	require.NoError(t, s.SaveFileList(ctx, "fp-3", files))

	got, err := s.FileList(ctx, "fp-3")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ep04.mkv", got[0].Filename)

	t.Run("rewrite replaces prior rows", func(t *testing.T) {
		require.NoError(t, s.SaveFileList(ctx, "fp-3", []monitor.FileEntry{
			{Filename: "ep04_v2.mkv", FileSize: "2.0 GB"},
		}))
		got, err := s.FileList(ctx, "fp-3")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "ep04_v2.mkv", got[0].Filename)
	})

	t.Run("empty list is a no-op", func(t *testing.T) {
		require.NoError(t, s.SaveFileList(ctx, "fp-3", nil))
		got, err := s.FileList(ctx, "fp-3")
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})
}

func TestSearchByKeyword(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

	older := sampleContent("fp-old", base)
	newer := sampleContent("fp-new", base.Add(2*time.Hour))
	newer.ContentID = "99002"
	other := sampleContent("fp-other", base.Add(time.Hour))
	other.ContentID = "10000"
	other.Title = "주말의 명화"

	for _, c := range []monitor.Content{older, newer, other} {
		require.NoError(t, s.SaveContent(ctx, c))
	}

	hits, err := s.SearchByKeyword(ctx, "폭싹속았수다")
	require.NoError(t, err)
	require.Len(t, hits, 2)
	// Newest first.
	assert.Equal(t, "fp-new", hits[0].Fingerprint)
	assert.Equal(t, "fp-old", hits[1].Fingerprint)

	none, err := s.SearchByKeyword(ctx, "없는키워드")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSaveSiteUpsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	site := monitor.Site{ID: "fileis", Name: "FileIs", Type: "webhard", Capability: 3, LoginID: "watcher"}
	require.NoError(t, s.SaveSite(ctx, site))
	site.Capability = 7
	require.NoError(t, s.SaveSite(ctx, site))
}

func TestListAllOrdering(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

	for i, fp := range []string{"a", "b", "c"} {
		c := sampleContent(fp, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, s.SaveContent(ctx, c))
	}

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].Fingerprint)
	assert.Equal(t, "a", all[2].Fingerprint)
}
