package extract

import (
	"fmt"
	"regexp"

	"github.com/PuerkitoBio/goquery"

	"github.com/ospwatch/webhard-monitor/internal/monitor"
)

// Detail surface containers, most specific first. The browser layer waits
// for one of these; when none appears the page body is the fallback scope.
var DetailContainerSelectors = []string{
	".content_detail",
	".detail_view",
	".layer_detail",
	".view_content",
	".detail-popup",
	".modal-content",
}

var priceRe = regexp.MustCompile(`^([0-9][0-9,.]*)\s*(.*)$`)

var fileListSelectors = []string{
	".file_list li",
	"table.file_list tr",
	".detail_file li",
	".file-list li",
	".file_info li",
}

var partnershipSelectors = []string{
	".partner",
	".official",
	".badge_partner",
	".cp_icon",
	`img[alt*="제휴"]`,
	`img[alt*="공식"]`,
}

// DetailChain extracts structured fields from a detail view snapshot. The
// title is required; its absence is an extraction error that discards the
// item.
func DetailChain() *Chain[monitor.DetailInfo] {
	return NewChain[monitor.DetailInfo](
		detailStrategy{name: "content-detail", scope: ".content_detail"},
		detailStrategy{name: "detail-body", scope: "body"},
	)
}

type detailStrategy struct {
	name  string
	scope string
}

func (s detailStrategy) Name() string { return s.name }

func (s detailStrategy) Applies(doc *goquery.Document) bool {
	return doc.Find(s.scope).Length() > 0
}

func (s detailStrategy) Extract(doc *goquery.Document) (monitor.DetailInfo, error) {
	scope := doc.Find(s.scope).First()

	title := cleanText(scope.Find(".title, .subject, .content_title, h1, h2").First().Text())
	if title == "" {
		return monitor.DetailInfo{}, fmt.Errorf("detail view has no title")
	}

	price, unit := ParsePrice(cleanText(scope.Find(".price, .point, .pay, .price_info").First().Text()))

	info := monitor.DetailInfo{
		Title:       title,
		FileSize:    detailFileSize(scope),
		Price:       price,
		PriceUnit:   unit,
		UploaderID:  cleanText(scope.Find(".uploader, .nick, .writer, .user_id").First().Text()),
		Partnership: hasPartnershipBadge(scope),
		Files:       fileEntries(scope),
	}
	return info, nil
}

// ParsePrice splits a combined price string ("1,200 포인트") into its numeric
// prefix and unit remainder. A string without a numeric prefix yields an
// empty price and the whole input as unit.
func ParsePrice(combined string) (price, unit string) {
	if combined == "" {
		return "", ""
	}
	m := priceRe.FindStringSubmatch(combined)
	if m == nil {
		return "", combined
	}
	return m[1], cleanText(m[2])
}

func detailFileSize(scope *goquery.Selection) string {
	if sz := cleanText(scope.Find(".size, .file_size, .total_size").First().Text()); sz != "" {
		return sz
	}
	return fileSizeRe.FindString(scope.Text())
}

func hasPartnershipBadge(scope *goquery.Selection) bool {
	for _, sel := range partnershipSelectors {
		if scope.Find(sel).Length() > 0 {
			return true
		}
	}
	return false
}

// fileEntries reads the itemized file list from the first matching
// list/table selector. Entries without a filename are dropped.
func fileEntries(scope *goquery.Selection) []monitor.FileEntry {
	for _, sel := range fileListSelectors {
		rows := scope.Find(sel)
		if rows.Length() == 0 {
			continue
		}
		entries := make([]monitor.FileEntry, 0, rows.Length())
		rows.Each(func(_ int, row *goquery.Selection) {
			name := cleanText(row.Find(".filename, .name, a").First().Text())
			if name == "" {
				name = cleanText(row.Text())
			}
			size := fileSizeRe.FindString(row.Text())
			if name == "" || name == size {
				return
			}
			entries = append(entries, monitor.FileEntry{Filename: name, FileSize: size})
		})
		return entries
	}
	return nil
}
