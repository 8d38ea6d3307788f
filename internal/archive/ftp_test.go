package archive_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ospwatch/webhard-monitor/internal/archive"
	"github.com/ospwatch/webhard-monitor/internal/metrics"
	"github.com/ospwatch/webhard-monitor/internal/monitor"
)

func TestMain(m *testing.M) {
	metrics.Init()
	m.Run()
}

type fixedClock struct{ at time.Time }

func (f fixedClock) Now() time.Time { return f.at }

func newArchiver(cfg archive.Config) *archive.FTPArchiver {
	return archive.New(cfg, fixedClock{at: time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)}, nil)
}

func TestRemotePathLayout(t *testing.T) {
	a := newArchiver(archive.Config{Enabled: true, BasePath: "/images"})

	t.Run("default server tag", func(t *testing.T) {
		got := a.RemotePath("evidence_0123abcd.png")
		assert.Equal(t, "/images/IMGC01/2025/03/14/evidence_0123abcd.png", got)
	})

	t.Run("tag taken from filename", func(t *testing.T) {
		got := a.RemotePath("IMGC07_evidence.png")
		assert.Equal(t, "/images/IMGC07/2025/03/14/IMGC07_evidence.png", got)
	})

	t.Run("relative base path", func(t *testing.T) {
		rel := newArchiver(archive.Config{Enabled: true, BasePath: "mirror"})
		assert.Equal(t, "mirror/IMGC01/2025/03/14/x.png", rel.RemotePath("x.png"))
	})
}

func TestConfigDisabledArchiver(t *testing.T) {
	a := newArchiver(archive.Config{Enabled: false})
	assert.False(t, a.Enabled())

	err := a.Connect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, monitor.ErrArchive)

	_, err = a.Upload(context.Background(), "local.png", "local.png")
	assert.ErrorIs(t, err, monitor.ErrArchive)
}

func TestConnectFailureDisables(t *testing.T) {
	a := newArchiver(archive.Config{
		Enabled: true,
		Host:    "127.0.0.1",
		Port:    1, // nothing listens here
		Timeout: 200 * time.Millisecond,
	})
	require.True(t, a.Enabled())

	err := a.Connect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, monitor.ErrArchive)
	assert.False(t, a.Enabled(), "failed connect must disable the archiver")

	// Subsequent uploads fail fast without re-dialing.
	_, err = a.Upload(context.Background(), "local.png", "local.png")
	assert.ErrorIs(t, err, monitor.ErrArchive)
}

func TestResetReArmsFailureDisabledArchiver(t *testing.T) {
	a := newArchiver(archive.Config{
		Enabled: true,
		Host:    "127.0.0.1",
		Port:    1,
		Timeout: 200 * time.Millisecond,
	})
	require.Error(t, a.Connect(context.Background()))
	require.False(t, a.Enabled())

	a.Reset()
	assert.True(t, a.Enabled(), "a new run must get a fresh chance at archiving")
}

func TestResetKeepsConfigDisabledArchiverOff(t *testing.T) {
	a := newArchiver(archive.Config{Enabled: false})
	a.Reset()
	assert.False(t, a.Enabled())
}

func TestUploadFailureObserved(t *testing.T) {
	a := newArchiver(archive.Config{
		Enabled: true,
		Host:    "127.0.0.1",
		Port:    1,
		Timeout: 200 * time.Millisecond,
	})
	_, err := a.Upload(context.Background(), "local.png", "local.png")
	require.Error(t, err)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `monitor_evidence_uploads_total{status="failed"}`)
}

func TestCloseWithoutConnection(t *testing.T) {
	a := newArchiver(archive.Config{Enabled: true})
	assert.NoError(t, a.Close(context.Background()))
}
