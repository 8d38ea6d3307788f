// Package store persists crawl records in a local SQLite database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/ospwatch/webhard-monitor/internal/monitor"
)

const schema = `
CREATE TABLE IF NOT EXISTS site (
	site_id      TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	type         TEXT NOT NULL DEFAULT '',
	capability   INTEGER NOT NULL DEFAULT 0,
	login_id     TEXT NOT NULL DEFAULT '',
	login_secret TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS content (
	fingerprint   TEXT PRIMARY KEY,
	site_id       TEXT NOT NULL,
	content_id    TEXT NOT NULL,
	title         TEXT NOT NULL,
	genre         TEXT NOT NULL DEFAULT '',
	file_count    INTEGER NOT NULL DEFAULT 0,
	file_size     TEXT NOT NULL DEFAULT '',
	uploader_id   TEXT NOT NULL DEFAULT '',
	discovered_at TEXT NOT NULL,
	detail_url    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS content_detail (
	fingerprint   TEXT PRIMARY KEY,
	discovered_at TEXT NOT NULL,
	price         TEXT NOT NULL DEFAULT '',
	price_unit    TEXT NOT NULL DEFAULT '',
	partnership   INTEGER NOT NULL DEFAULT 0,
	evidence_path TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT 'UNKNOWN'
);

CREATE TABLE IF NOT EXISTS file_list (
	fingerprint TEXT NOT NULL,
	filename    TEXT NOT NULL,
	file_size   TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (fingerprint, filename)
);

CREATE INDEX IF NOT EXISTS idx_content_title ON content (title);
CREATE INDEX IF NOT EXISTS idx_content_discovered ON content (discovered_at);
`

// SQLite implements monitor.Store on a single database file.
type SQLite struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open creates or opens the database at path and applies the schema.
// Parent directories are created as needed.
func Open(path string, logger *zap.Logger) (*SQLite, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// The sqlite driver serializes access through one connection; more
	// connections only produce SQLITE_BUSY under write contention.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	logger.Info("sqlite store opened", zap.String("path", path))
	return &SQLite{db: db, logger: logger}, nil
}

// SaveSite upserts the monitored-site record.
func (s *SQLite) SaveSite(ctx context.Context, site monitor.Site) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO site
			(site_id, name, type, capability, login_id, login_secret)
		VALUES (?, ?, ?, ?, ?, ?)`,
		site.ID, site.Name, site.Type, site.Capability, site.LoginID, site.LoginSecret,
	)
	if err != nil {
		return fmt.Errorf("save site %s: %w", site.ID, err)
	}
	return nil
}

// SaveContent upserts one content row keyed by fingerprint.
func (s *SQLite) SaveContent(ctx context.Context, c monitor.Content) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO content
			(fingerprint, site_id, content_id, title, genre,
			 file_count, file_size, uploader_id, discovered_at, detail_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Fingerprint, c.SiteID, c.ContentID, c.Title, c.Genre,
		c.FileCount, c.FileSize, c.UploaderID,
		c.DiscoveredAt.UTC().Format(time.RFC3339), c.DetailURL,
	)
	if err != nil {
		return fmt.Errorf("save content %s: %w", c.Fingerprint, err)
	}
	return nil
}

// SaveContentDetail upserts the evidence-level row for a fingerprint.
func (s *SQLite) SaveContentDetail(ctx context.Context, d monitor.ContentDetail) error {
	partnership := 0
	if d.Partnership {
		partnership = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO content_detail
			(fingerprint, discovered_at, price, price_unit,
			 partnership, evidence_path, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.Fingerprint, d.DiscoveredAt.UTC().Format(time.RFC3339),
		d.Price, d.PriceUnit, partnership, d.EvidencePath, string(d.Status),
	)
	if err != nil {
		return fmt.Errorf("save content detail %s: %w", d.Fingerprint, err)
	}
	return nil
}

// SaveFileList replaces the file list for a fingerprint in one transaction.
// An empty list is a successful no-op and leaves existing rows untouched.
func (s *SQLite) SaveFileList(ctx context.Context, fingerprint string, files []monitor.FileEntry) error {
	if len(files) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin file list tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM file_list WHERE fingerprint = ?`, fingerprint); err != nil {
		return fmt.Errorf("clear file list %s: %w", fingerprint, err)
	}
	for _, f := range files {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO file_list (fingerprint, filename, file_size)
			VALUES (?, ?, ?)`,
			fingerprint, f.Filename, f.FileSize); err != nil {
			return fmt.Errorf("insert file %q for %s: %w", f.Filename, fingerprint, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit file list %s: %w", fingerprint, err)
	}
	return nil
}

// ContentByFingerprint returns the stored content row, or nil when absent.
func (s *SQLite) ContentByFingerprint(ctx context.Context, fingerprint string) (*monitor.Content, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT fingerprint, site_id, content_id, title, genre,
		       file_count, file_size, uploader_id, discovered_at, detail_url
		FROM content WHERE fingerprint = ?`, fingerprint)

	c, err := scanContent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup content %s: %w", fingerprint, err)
	}
	return c, nil
}

// SearchByKeyword returns content rows whose title contains the keyword.
func (s *SQLite) SearchByKeyword(ctx context.Context, keyword string) ([]monitor.Content, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT fingerprint, site_id, content_id, title, genre,
		       file_count, file_size, uploader_id, discovered_at, detail_url
		FROM content
		WHERE title LIKE ?
		ORDER BY discovered_at DESC`, "%"+keyword+"%")
	if err != nil {
		return nil, fmt.Errorf("search by keyword: %w", err)
	}
	return collectContents(rows)
}

// ListAll returns every content row, newest first.
func (s *SQLite) ListAll(ctx context.Context) ([]monitor.Content, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT fingerprint, site_id, content_id, title, genre,
		       file_count, file_size, uploader_id, discovered_at, detail_url
		FROM content
		ORDER BY discovered_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list contents: %w", err)
	}
	return collectContents(rows)
}

// FileList returns the stored file entries for a fingerprint.
func (s *SQLite) FileList(ctx context.Context, fingerprint string) ([]monitor.FileEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT filename, file_size FROM file_list
		WHERE fingerprint = ? ORDER BY filename`, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("list files for %s: %w", fingerprint, err)
	}
	defer func() { _ = rows.Close() }()

	var files []monitor.FileEntry
	for rows.Next() {
		f := monitor.FileEntry{Fingerprint: fingerprint}
		if err := rows.Scan(&f.Filename, &f.FileSize); err != nil {
			return nil, fmt.Errorf("scan file row: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// DetailByFingerprint returns the detail row, or nil when absent.
func (s *SQLite) DetailByFingerprint(ctx context.Context, fingerprint string) (*monitor.ContentDetail, error) {
	var (
		d           monitor.ContentDetail
		discovered  string
		partnership int
		status      string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT fingerprint, discovered_at, price, price_unit,
		       partnership, evidence_path, status
		FROM content_detail WHERE fingerprint = ?`, fingerprint).Scan(
		&d.Fingerprint, &discovered, &d.Price, &d.PriceUnit,
		&partnership, &d.EvidencePath, &status,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup detail %s: %w", fingerprint, err)
	}
	d.Partnership = partnership != 0
	d.Status = monitor.DetailStatus(status)
	if t, err := time.Parse(time.RFC3339, discovered); err == nil {
		d.DiscoveredAt = t
	}
	return &d, nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContent(row rowScanner) (*monitor.Content, error) {
	var (
		c          monitor.Content
		discovered string
	)
	err := row.Scan(
		&c.Fingerprint, &c.SiteID, &c.ContentID, &c.Title, &c.Genre,
		&c.FileCount, &c.FileSize, &c.UploaderID, &discovered, &c.DetailURL,
	)
	if err != nil {
		return nil, err
	}
	if t, err := time.Parse(time.RFC3339, discovered); err == nil {
		c.DiscoveredAt = t
	}
	return &c, nil
}

func collectContents(rows *sql.Rows) ([]monitor.Content, error) {
	defer func() { _ = rows.Close() }()
	var out []monitor.Content
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan content row: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}
