package fingerprint_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ospwatch/webhard-monitor/internal/fingerprint"
)

func TestFingerprintDeterminism(t *testing.T) {
	h := fingerprint.New()
	at := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	a := h.Fingerprint("fileis", "CT12345", at)
	b := h.Fingerprint("fileis", "CT12345", at)
	assert.Equal(t, a, b)
	require.Len(t, a, 16)
}

func TestFingerprintTimezoneInsensitive(t *testing.T) {
	h := fingerprint.New()
	utc := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	kst := utc.In(time.FixedZone("KST", 9*3600))

	assert.Equal(t, h.Fingerprint("fileis", "CT1", utc), h.Fingerprint("fileis", "CT1", kst))
}

func TestFingerprintInputSensitivity(t *testing.T) {
	h := fingerprint.New()
	at := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	base := h.Fingerprint("fileis", "CT12345", at)

	tests := []struct {
		name string
		got  string
	}{
		{"site changes", h.Fingerprint("other", "CT12345", at)},
		{"content changes", h.Fingerprint("fileis", "CT12346", at)},
		{"time changes", h.Fingerprint("fileis", "CT12345", at.Add(time.Second))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, base, tt.got)
		})
	}
}
