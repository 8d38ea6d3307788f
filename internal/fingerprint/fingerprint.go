// Package fingerprint computes the deduplication fingerprint for
// discovered items.
package fingerprint

import (
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Hasher derives fingerprints with xxhash64. The discovery timestamp is part
// of the input, so re-crawling the same external item later yields a new
// fingerprint; dedup therefore only applies within the window where
// timestamps collide.
type Hasher struct{}

// New returns a fingerprint hasher.
func New() *Hasher {
	return &Hasher{}
}

// Fingerprint returns a 16-char hex digest of (siteID, contentID,
// discoveredAt). The timestamp is normalized to RFC3339 in UTC so the same
// instant always hashes identically regardless of location.
func (h *Hasher) Fingerprint(siteID, contentID string, discoveredAt time.Time) string {
	input := siteID + "|" + contentID + "|" + discoveredAt.UTC().Format(time.RFC3339)
	return fmt.Sprintf("%016x", xxhash.Sum64String(input))
}
