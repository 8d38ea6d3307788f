// Package monitor defines core types shared across subsystems.
package monitor

import "time"

// DetailStatus classifies a processed item in the content_detail table.
type DetailStatus string

// Detail status values persisted with each content detail row.
const (
	StatusNormal       DetailStatus = "NORMAL"
	StatusKeywordFound DetailStatus = "KEYWORD_FOUND"
	StatusUnknown      DetailStatus = "UNKNOWN"
)

// Site describes the monitored platform and its login credentials.
type Site struct {
	ID          string `json:"site_id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Capability  int    `json:"capability"`
	LoginID     string `json:"login_id"`
	LoginSecret string `json:"-"`
}

// Credentials carries the login pair for the session controller.
type Credentials struct {
	Username string
	Password string
}

// ListItem is a row-level summary extracted from a category list page.
type ListItem struct {
	ContentID   string `json:"content_id"`
	Title       string `json:"title"`
	FileSize    string `json:"file_size"`
	UploaderID  string `json:"uploader_id"`
	DetailURL   string `json:"detail_url"`
	RowSelector string `json:"-"`
}

// Content is the persisted record for a discovered item, keyed by fingerprint.
type Content struct {
	Fingerprint  string    `json:"fingerprint"`
	SiteID       string    `json:"site_id"`
	ContentID    string    `json:"content_id"`
	Title        string    `json:"title"`
	Genre        string    `json:"genre"`
	FileCount    int       `json:"file_count"`
	FileSize     string    `json:"file_size"`
	UploaderID   string    `json:"uploader_id"`
	DiscoveredAt time.Time `json:"discovered_at"`
	DetailURL    string    `json:"detail_url"`
}

// ContentDetail holds the evidence-level fields written 1:1 with Content.
type ContentDetail struct {
	Fingerprint  string       `json:"fingerprint"`
	DiscoveredAt time.Time    `json:"discovered_at"`
	Price        string       `json:"price"`
	PriceUnit    string       `json:"price_unit"`
	Partnership  bool         `json:"partnership"`
	EvidencePath string       `json:"evidence_path"`
	Status       DetailStatus `json:"status"`
}

// FileEntry is one row of the itemized file list attached to a content item.
type FileEntry struct {
	Fingerprint string `json:"fingerprint,omitempty"`
	Filename    string `json:"filename"`
	FileSize    string `json:"file_size"`
}

// DetailInfo is the structured result of extracting a detail view.
type DetailInfo struct {
	Title       string
	FileSize    string
	Price       string
	PriceUnit   string
	UploaderID  string
	Partnership bool
	Files       []FileEntry
}

// Result is produced by the per-item pipeline for each successfully
// processed item and accumulated by the orchestrator.
type Result struct {
	Content         Content       `json:"content"`
	Detail          ContentDetail `json:"detail"`
	ContainsKeyword bool          `json:"contains_keyword"`
}

// Activity is one entry of the bounded recent-activity log.
type Activity struct {
	Timestamp string `json:"timestamp"`
	Action    string `json:"action"`
}

// RunStatus is the snapshot exposed to the dashboard. It is ephemeral and
// reset at the start of every run.
type RunStatus struct {
	RunID           string         `json:"run_id"`
	IsRunning       bool           `json:"is_running"`
	IsInitialized   bool           `json:"is_initialized"`
	IsLoggedIn      bool           `json:"is_logged_in"`
	CurrentActivity string         `json:"current_activity"`
	Progress        float64        `json:"progress"`
	TotalPages      int            `json:"total_pages"`
	ProcessedPages  int            `json:"processed_pages"`
	ProcessedItems  int            `json:"processed_items"`
	Categories      map[string]int `json:"categories"`
	KeywordFound    int            `json:"keyword_found"`
	RecentActivity  []Activity     `json:"recent_activity"`
	Errors          []string       `json:"errors"`
	StartTime       *time.Time     `json:"start_time,omitempty"`
	EndTime         *time.Time     `json:"end_time,omitempty"`
}

// Options are the per-run knobs accepted by the orchestrator.
type Options struct {
	Stealth   bool `json:"stealth"`
	PageCount int  `json:"page_count"`
}
