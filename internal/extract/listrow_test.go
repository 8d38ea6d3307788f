package extract_test

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ospwatch/webhard-monitor/internal/extract"
)

const boardListPage = `
<html><body>
<table class="list_table">
  <tr>
    <td><a href="/contents/view?contentId=99001">폭싹속았수다 1화</a></td>
    <td class="size">1.4 GB</td>
    <td class="uploader">uper01</td>
  </tr>
  <tr>
    <td><a href="/contents/view?contentId=99002">주말의 명화</a></td>
    <td class="size">700 MB</td>
    <td class="uploader">uper02</td>
  </tr>
  <tr><td>광고</td></tr>
</table>
</body></html>`

const fileListPage = `
<html><body>
<ul class="file_list">
  <li><a href="/view/12345" class="title">드라마 스페셜</a><span class="size">2.1 GB</span><span class="nick">dragon</span></li>
  <li><a onclick="goView(67890)" class="title">애니 모음집 1080p 3.3 GB</a></li>
</ul>
</body></html>`

func TestListRowChainBoardTable(t *testing.T) {
	doc, err := extract.ParseDocument(boardListPage)
	require.NoError(t, err)

	items, name, err := extract.ListRowChain("https://fileis.example.com").Run(doc)
	require.NoError(t, err)
	assert.Equal(t, "board-table-rows", name)
	require.Len(t, items, 2)

	assert.Equal(t, "99001", items[0].ContentID)
	assert.Equal(t, "폭싹속았수다 1화", items[0].Title)
	assert.Equal(t, "1.4 GB", items[0].FileSize)
	assert.Equal(t, "uper01", items[0].UploaderID)
	assert.Equal(t, "https://fileis.example.com/contents/view?contentId=99001", items[0].DetailURL)
	assert.NotEmpty(t, items[0].RowSelector)

	assert.Equal(t, "99002", items[1].ContentID)
}

func TestListRowChainGenericList(t *testing.T) {
	doc, err := extract.ParseDocument(fileListPage)
	require.NoError(t, err)

	items, name, err := extract.ListRowChain("https://fileis.example.com").Run(doc)
	require.NoError(t, err)
	assert.Equal(t, "generic-list-rows", name)
	require.Len(t, items, 2)

	assert.Equal(t, "12345", items[0].ContentID)
	assert.Equal(t, "2.1 GB", items[0].FileSize)
	assert.Equal(t, "dragon", items[0].UploaderID)

	// The second row has no href; the id comes from the onclick handler and
	// the size from the row text.
	assert.Equal(t, "67890", items[1].ContentID)
	assert.Equal(t, "3.3 GB", items[1].FileSize)
}

func TestListRowChainEmptyWhenNoContainer(t *testing.T) {
	doc, err := extract.ParseDocument(`<html><body><div>nothing here</div></body></html>`)
	require.NoError(t, err)

	_, _, err = extract.ListRowChain("https://fileis.example.com").Run(doc)
	assert.ErrorIs(t, err, extract.ErrNoStrategy)
}

func TestListRowChainRowSelectorOrdinals(t *testing.T) {
	page := `<html><body><ul class="file_list">`
	for i := 1; i <= 12; i++ {
		page += `<li><a href="/view?contentId=` + strconv.Itoa(10000+i) + `" class="title">row</a></li>`
	}
	page += `</ul></body></html>`
	doc, err := extract.ParseDocument(page)
	require.NoError(t, err)

	items, _, err := extract.ListRowChain("").Run(doc)
	require.NoError(t, err)
	require.Len(t, items, 12)
	assert.Equal(t, ".file_list li:nth-of-type(1)", items[0].RowSelector)
	assert.Equal(t, ".file_list li:nth-of-type(11)", items[10].RowSelector)
}

func TestListRowChainSkipsUnparseableRows(t *testing.T) {
	page := `
<html><body>
<table class="list_table">
  <tr><td>no link at all</td></tr>
  <tr><td><a href="/view?contentId=1">valid row</a></td></tr>
</table>
</body></html>`
	doc, err := extract.ParseDocument(page)
	require.NoError(t, err)

	items, _, err := extract.ListRowChain("").Run(doc)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "valid row", items[0].Title)
}
