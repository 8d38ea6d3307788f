// Package archive mirrors evidence files to a remote FTP store. The
// archiver is optional by design: any connect or transfer failure disables
// it for the remainder of the run and callers fall back to local paths.
package archive

import (
	"context"
	"fmt"
	"net"
	"os"
	"path"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/jlaffaye/ftp"
	"go.uber.org/zap"

	"github.com/ospwatch/webhard-monitor/internal/metrics"
	"github.com/ospwatch/webhard-monitor/internal/monitor"
)

// Config holds the FTP endpoint and remote layout.
type Config struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	BasePath string
	Timeout  time.Duration
}

// Evidence filenames may carry an image-server tag; files without one land
// under the baseline tag.
var serverTagRe = regexp.MustCompile(`IMGC\d+`)

const defaultServerTag = "IMGC01"

// FTPArchiver implements monitor.Archiver over a single FTP connection.
// Disablement is explicit instance state, never ambient.
type FTPArchiver struct {
	cfg    Config
	clock  monitor.Clock
	logger *zap.Logger

	mu      sync.Mutex
	conn    *ftp.ServerConn
	enabled bool
}

// New builds an archiver. A config-disabled archiver never attempts a
// connection.
func New(cfg Config, clock monitor.Clock, logger *zap.Logger) *FTPArchiver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FTPArchiver{
		cfg:     cfg,
		clock:   clock,
		logger:  logger,
		enabled: cfg.Enabled,
	}
}

// Enabled reports whether uploads will still be attempted.
func (a *FTPArchiver) Enabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enabled
}

// Reset re-arms the archiver per its configuration. A failure-disabled
// archiver gets a fresh chance at the start of the next run; a
// config-disabled one stays off.
func (a *FTPArchiver) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = a.cfg.Enabled
}

// Connect dials and authenticates. Failure disables the archiver.
func (a *FTPArchiver) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.enabled {
		return fmt.Errorf("%w: archiver disabled", monitor.ErrArchive)
	}
	if a.conn != nil {
		return nil
	}
	return a.connectLocked(ctx)
}

func (a *FTPArchiver) connectLocked(ctx context.Context) error {
	addr := net.JoinHostPort(a.cfg.Host, strconv.Itoa(a.cfg.Port))
	conn, err := ftp.Dial(addr,
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(a.cfg.Timeout),
	)
	if err != nil {
		a.disableLocked("connect", err)
		return fmt.Errorf("%w: dial %s: %v", monitor.ErrArchive, addr, err)
	}
	if err := conn.Login(a.cfg.User, a.cfg.Password); err != nil {
		_ = conn.Quit()
		a.disableLocked("login", err)
		return fmt.Errorf("%w: login: %v", monitor.ErrArchive, err)
	}
	a.conn = conn
	a.logger.Info("ftp connection established", zap.String("addr", addr))
	return nil
}

// RemotePath namespaces a filename under
// <basePath>/<serverTag>/<yyyy>/<mm>/<dd>/<filename>.
func (a *FTPArchiver) RemotePath(filename string) string {
	tag := serverTagRe.FindString(filename)
	if tag == "" {
		tag = defaultServerTag
	}
	now := a.clock.Now()
	return path.Join(
		a.cfg.BasePath,
		tag,
		fmt.Sprintf("%04d", now.Year()),
		fmt.Sprintf("%02d", int(now.Month())),
		fmt.Sprintf("%02d", now.Day()),
		filename,
	)
}

// Upload transfers the local file to its namespaced remote path. Any
// failure disables the archiver and returns an archive error; the caller
// substitutes the local path.
func (a *FTPArchiver) Upload(ctx context.Context, localPath, filename string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.enabled {
		return "", fmt.Errorf("%w: archiver disabled", monitor.ErrArchive)
	}

	remote, err := a.uploadLocked(ctx, localPath, filename)
	if err != nil {
		metrics.ObserveUpload("failed")
		return "", err
	}
	metrics.ObserveUpload("success")
	return remote, nil
}

func (a *FTPArchiver) uploadLocked(ctx context.Context, localPath, filename string) (string, error) {
	if a.conn == nil {
		if err := a.connectLocked(ctx); err != nil {
			return "", err
		}
	}

	remote := a.RemotePath(filename)
	if err := a.ensureRemoteDirLocked(path.Dir(remote)); err != nil {
		a.disableLocked("mkdir", err)
		return "", fmt.Errorf("%w: ensure dir %s: %v", monitor.ErrArchive, path.Dir(remote), err)
	}

	f, err := os.Open(localPath) // #nosec G304 -- path is produced by the pipeline, not user input
	if err != nil {
		a.disableLocked("open local", err)
		return "", fmt.Errorf("%w: open %s: %v", monitor.ErrArchive, localPath, err)
	}
	defer func() { _ = f.Close() }()

	if err := a.conn.Stor(remote, f); err != nil {
		a.disableLocked("stor", err)
		return "", fmt.Errorf("%w: upload %s: %v", monitor.ErrArchive, remote, err)
	}

	a.logger.Info("evidence mirrored", zap.String("remote", remote))
	return remote, nil
}

// ensureRemoteDirLocked creates the directory chain when listing fails.
func (a *FTPArchiver) ensureRemoteDirLocked(dir string) error {
	if _, err := a.conn.List(dir); err == nil {
		return nil
	}
	segments := splitPath(dir)
	current := ""
	for _, seg := range segments {
		current = path.Join(current, seg)
		if current == "" || current == "/" {
			continue
		}
		// MakeDir fails on existing segments; only the final state matters.
		_ = a.conn.MakeDir(current)
	}
	if _, err := a.conn.List(dir); err != nil {
		return fmt.Errorf("remote dir still missing after mkdir: %w", err)
	}
	return nil
}

func splitPath(p string) []string {
	var segs []string
	for _, seg := range regexp.MustCompile(`/+`).Split(p, -1) {
		if seg != "" {
			segs = append(segs, seg)
		}
	}
	if len(p) > 0 && p[0] == '/' && len(segs) > 0 {
		segs[0] = "/" + segs[0]
	}
	return segs
}

func (a *FTPArchiver) disableLocked(stage string, err error) {
	a.enabled = false
	a.logger.Warn("archiver disabled for remainder of run",
		zap.String("stage", stage), zap.Error(err))
}

// Close quits the connection best-effort; a hung quit is abandoned after
// the configured timeout.
func (a *FTPArchiver) Close(ctx context.Context) error {
	a.mu.Lock()
	conn := a.conn
	a.conn = nil
	a.mu.Unlock()
	if conn == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		_ = conn.Quit()
		close(done)
	}()

	timeout := time.NewTimer(a.cfg.Timeout)
	defer timeout.Stop()
	select {
	case <-done:
	case <-timeout.C:
		a.logger.Warn("ftp quit timed out, abandoning connection")
	case <-ctx.Done():
	}
	return nil
}
