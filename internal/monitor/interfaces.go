package monitor

import (
	"context"
	"time"
)

// Store persists site, content, content-detail, and file-list records.
type Store interface {
	SaveSite(ctx context.Context, site Site) error
	SaveContent(ctx context.Context, content Content) error
	SaveContentDetail(ctx context.Context, detail ContentDetail) error
	// SaveFileList writes all entries in one transaction. An empty list is a
	// successful no-op.
	SaveFileList(ctx context.Context, fingerprint string, files []FileEntry) error
	ContentByFingerprint(ctx context.Context, fingerprint string) (*Content, error)
	SearchByKeyword(ctx context.Context, keyword string) ([]Content, error)
	ListAll(ctx context.Context) ([]Content, error)
	Close() error
}

// Archiver mirrors evidence files to remote storage. It is optional by
// design: any failure disables it for the remainder of the run and the
// caller substitutes the local path. Reset re-arms it for the next run.
type Archiver interface {
	Connect(ctx context.Context) error
	// Upload transfers the local file and returns the remote path it was
	// stored under.
	Upload(ctx context.Context, localPath, filename string) (string, error)
	Enabled() bool
	Reset()
	Close(ctx context.Context) error
}

// Session is the automated browser session driving the target site.
type Session interface {
	Initialize(ctx context.Context) error
	// Login returns false with a nil error on a clean authentication
	// failure. Errors are reserved for infrastructure-level failures.
	Login(ctx context.Context, url string, creds Credentials) (bool, error)
	NavigateToCategory(ctx context.Context, code string) bool
	ContentList(ctx context.Context, category string, page int) ([]ListItem, error)
	Search(ctx context.Context, keyword string) ([]ListItem, error)
	Close(ctx context.Context) error
}

// ItemProcessor runs the evidence-capture pipeline for one discovered item.
// A nil result with a nil error means the item was skipped (already seen).
type ItemProcessor interface {
	Process(ctx context.Context, item ListItem, category string) (*Result, error)
}

// Clock abstracts wall-clock reads so fingerprints and attestation
// timestamps are testable.
type Clock interface {
	Now() time.Time
}

// Hasher computes the content fingerprint used for deduplication.
type Hasher interface {
	Fingerprint(siteID, contentID string, discoveredAt time.Time) string
}
