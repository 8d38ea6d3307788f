package extract

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ospwatch/webhard-monitor/internal/monitor"
)

// Row container candidates, in the order the platform's boards use them.
var tableRowSelectors = []string{
	".list_table tr",
	".board_list tr",
	".list-table tr",
}

var listRowSelectors = []string{
	".file_list li",
	".content_list li",
	".content-item",
	".list-item",
	".board-item",
	"tr.item",
	".file-item",
	".content-list-item",
	".file-list-item",
}

var (
	fileSizeRe  = regexp.MustCompile(`(?i)\b\d+(?:[.,]\d+)?\s*(?:TB|GB|MB|KB|B)\b`)
	contentIDRe = regexp.MustCompile(`\d{4,}`)
)

// ListRowChain extracts row-level summaries from a category list page.
// An inapplicable chain (no list container at all) is reported through
// ErrNoStrategy; callers translate that into an empty list.
func ListRowChain(baseURL string) *Chain[[]monitor.ListItem] {
	return NewChain[[]monitor.ListItem](
		rowStrategy{name: "board-table-rows", selectors: tableRowSelectors, baseURL: baseURL},
		rowStrategy{name: "generic-list-rows", selectors: listRowSelectors, baseURL: baseURL},
	)
}

type rowStrategy struct {
	name      string
	selectors []string
	baseURL   string
}

func (s rowStrategy) Name() string { return s.name }

func (s rowStrategy) Applies(doc *goquery.Document) bool {
	for _, sel := range s.selectors {
		if doc.Find(sel).Length() > 0 {
			return true
		}
	}
	return false
}

func (s rowStrategy) Extract(doc *goquery.Document) ([]monitor.ListItem, error) {
	var rows *goquery.Selection
	var containerSel string
	for _, sel := range s.selectors {
		if found := doc.Find(sel); found.Length() > 0 {
			rows = found
			containerSel = sel
			break
		}
	}
	if rows == nil {
		return nil, ErrNoStrategy
	}

	items := make([]monitor.ListItem, 0, rows.Length())
	rows.Each(func(i int, row *goquery.Selection) {
		item, ok := parseRow(row, s.baseURL)
		if !ok {
			return
		}
		item.RowSelector = rowSelector(containerSel, i)
		items = append(items, item)
	})
	return items, nil
}

// parseRow pulls the summary fields from one list row. Rows without a title
// (header rows, spacers, ads) are dropped rather than reported as errors.
func parseRow(row *goquery.Selection, baseURL string) (monitor.ListItem, bool) {
	link := row.Find("a, .title, .subject, .name, .filename").First()
	title := cleanText(link.Text())
	if title == "" {
		return monitor.ListItem{}, false
	}

	href, _ := link.Attr("href")
	detailURL := resolveURL(baseURL, href)

	item := monitor.ListItem{
		Title:      title,
		DetailURL:  detailURL,
		ContentID:  contentID(link, detailURL),
		FileSize:   rowFileSize(row),
		UploaderID: cleanText(row.Find(".uploader, .nick, .user, td.uploader, .writer").First().Text()),
	}
	if item.ContentID == "" {
		return monitor.ListItem{}, false
	}
	return item, true
}

func rowSelector(containerSel string, index int) string {
	parts := strings.Fields(containerSel)
	last := parts[len(parts)-1]
	prefix := strings.Join(parts[:len(parts)-1], " ")
	sel := last + ":nth-of-type(" + strconv.Itoa(index+1) + ")"
	if prefix == "" {
		return sel
	}
	return prefix + " " + sel
}

func rowFileSize(row *goquery.Selection) string {
	if sz := cleanText(row.Find(".size, .file_size, .filesize, td.size").First().Text()); sz != "" {
		return sz
	}
	return fileSizeRe.FindString(row.Text())
}

// contentID prefers an explicit identifier in the link's query string or
// onclick handler, then falls back to a numeric run in the URL path.
func contentID(link *goquery.Selection, detailURL string) string {
	if detailURL != "" {
		if u, err := url.Parse(detailURL); err == nil {
			q := u.Query()
			for _, key := range []string{"contentId", "content_id", "seq", "idx", "no", "id"} {
				if v := q.Get(key); v != "" {
					return v
				}
			}
		}
	}
	if onclick, ok := link.Attr("onclick"); ok {
		if m := contentIDRe.FindString(onclick); m != "" {
			return m
		}
	}
	return contentIDRe.FindString(detailURL)
}

func resolveURL(base, href string) string {
	if href == "" || strings.HasPrefix(href, "javascript:") {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil || base == "" {
		return href
	}
	h, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(h).String()
}
