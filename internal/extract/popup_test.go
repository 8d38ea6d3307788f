package extract_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ospwatch/webhard-monitor/internal/extract"
)

func TestCloseCandidatesPreservesCascadeOrder(t *testing.T) {
	page := `
<html><body>
<div class="modal">
  <button class="close">X</button>
  <button class="layer_close">닫기</button>
</div>
</body></html>`
	doc, err := extract.ParseDocument(page)
	require.NoError(t, err)

	got := extract.CloseCandidates(doc)
	// layer_close is earlier in the cascade than the bare close class.
	assert.Equal(t, []string{".layer_close", ".close"}, got)
}

func TestCloseCandidatesEmptyWhenNoOverlay(t *testing.T) {
	doc, err := extract.ParseDocument(`<html><body><p>list page</p></body></html>`)
	require.NoError(t, err)

	assert.Empty(t, extract.CloseCandidates(doc))
}
