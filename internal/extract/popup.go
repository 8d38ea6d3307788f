package extract

import "github.com/PuerkitoBio/goquery"

// Explicit overlay close-button candidates, in dismissal order.
var popupCloseSelectors = []string{
	".popup-close",
	".close-button",
	".btn-close",
	".modal-close",
	".layer_close",
	".popup_close",
	".alert-close",
	".notice-close",
	".welcome-close",
	".close",
	`[aria-label="Close"]`,
}

// CloseCandidates returns the explicit close-button selectors that are
// actually present in the snapshot, preserving cascade order. The browser
// layer clicks them first and only then falls back to text matching, the
// positional heuristic, and the Escape key.
func CloseCandidates(doc *goquery.Document) []string {
	var present []string
	for _, sel := range popupCloseSelectors {
		if doc.Find(sel).Length() > 0 {
			present = append(present, sel)
		}
	}
	return present
}
