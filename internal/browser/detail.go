package browser

import (
	"context"
	"errors"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/ospwatch/webhard-monitor/internal/extract"
	"github.com/ospwatch/webhard-monitor/internal/monitor"
)

// OpenDetail opens an item's detail surface, extracts its structured
// fields, captures a screenshot, and dismisses any overlay the detail
// opened with. The click path is preferred because many detail views are
// in-page layers; a row without a selector navigates its URL directly.
func (s *Session) OpenDetail(ctx context.Context, item monitor.ListItem) (monitor.DetailInfo, []byte, error) {
	if err := s.openDetailSurface(ctx, item); err != nil {
		return monitor.DetailInfo{}, nil, err
	}

	scope := s.waitDetailContainer(ctx)

	html, err := s.SnapshotHTML(ctx)
	if err != nil {
		return monitor.DetailInfo{}, nil, err
	}
	doc, err := extract.ParseDocument(html)
	if err != nil {
		return monitor.DetailInfo{}, nil, fmt.Errorf("%w: parse detail page: %v", monitor.ErrExtraction, err)
	}

	info, strategy, err := extract.DetailChain().Run(doc)
	if err != nil {
		return monitor.DetailInfo{}, nil, fmt.Errorf("%w: extract detail: %v", monitor.ErrExtraction, err)
	}
	s.logger.Debug("detail extracted",
		zap.String("content_id", item.ContentID), zap.String("strategy", strategy))

	shot, err := s.captureScope(ctx, scope)
	if err != nil {
		return monitor.DetailInfo{}, nil, err
	}

	s.dismissOverlays(ctx, doc)
	return info, shot, nil
}

func (s *Session) openDetailSurface(ctx context.Context, item monitor.ListItem) error {
	if item.RowSelector != "" {
		err := s.runFor(ctx, s.cfg.Timeout/2,
			chromedp.Click(item.RowSelector+" a", chromedp.ByQuery),
		)
		if err == nil || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
	}
	if item.DetailURL == "" {
		return fmt.Errorf("%w: no route to detail for %s", monitor.ErrNavigation, item.ContentID)
	}
	if err := s.run(ctx,
		chromedp.Navigate(item.DetailURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("%w: open detail %s: %v", monitor.ErrNavigation, item.ContentID, err)
	}
	return nil
}

// waitDetailContainer waits briefly for a known detail container and
// returns the selector to screenshot. The page body is the fallback scope.
func (s *Session) waitDetailContainer(ctx context.Context) string {
	for _, sel := range extract.DetailContainerSelectors {
		err := s.runFor(ctx, s.cfg.Timeout/6,
			chromedp.WaitVisible(sel, chromedp.ByQuery),
		)
		if err == nil {
			return sel
		}
	}
	return "body"
}

func (s *Session) captureScope(ctx context.Context, scope string) ([]byte, error) {
	var shot []byte
	var err error
	if scope == "body" {
		err = s.run(ctx, chromedp.FullScreenshot(&shot, 90))
	} else {
		err = s.run(ctx, chromedp.Screenshot(scope, &shot, chromedp.ByQuery))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: capture detail: %v", monitor.ErrNavigation, err)
	}
	return shot, nil
}

// dismissOverlays works down the dismissal cascade until the page settles:
// explicit close buttons from the snapshot, visible buttons whose text
// reads as a close action, the top-right positional heuristic, and
// finally the Escape key. Dismissal is best effort; a stubborn overlay
// only degrades the next capture.
func (s *Session) dismissOverlays(ctx context.Context, doc *goquery.Document) {
	s.dismissCascade(ctx, extract.CloseCandidates(doc))
}

// closeTextJS clicks the first visible button-like element whose text is a
// known close label.
const closeTextJS = `
(() => {
	const labels = ['close', 'confirm', 'ok', '닫기', '확인'];
	const nodes = document.querySelectorAll('button, a, span, div');
	for (const n of nodes) {
		const t = n.textContent.trim().toLowerCase();
		if (!labels.includes(t)) continue;
		const r = n.getBoundingClientRect();
		if (r.width === 0 || r.height === 0) continue;
		n.click();
		return true;
	}
	return false;
})()`

// closePositionalJS clicks a small element hugging the top-right corner of
// the frontmost fixed/absolute layer.
const closePositionalJS = `
(() => {
	const layers = document.querySelectorAll('div, section');
	let top = null, topZ = -1;
	for (const el of layers) {
		const st = getComputedStyle(el);
		if (st.position !== 'fixed' && st.position !== 'absolute') continue;
		const z = parseInt(st.zIndex, 10) || 0;
		const r = el.getBoundingClientRect();
		if (r.width < 100 || r.height < 60) continue;
		if (z >= topZ) { topZ = z; top = el; }
	}
	if (!top) return false;
	const box = top.getBoundingClientRect();
	for (const el of top.querySelectorAll('*')) {
		const r = el.getBoundingClientRect();
		if (r.width === 0 || r.width > 60 || r.height > 60) continue;
		if (r.top - box.top < 50 && box.right - r.right < 50) { el.click(); return true; }
	}
	return false;
})()`

func (s *Session) dismissCascade(ctx context.Context, candidates []string) {
	for _, sel := range candidates {
		if err := s.runFor(ctx, s.cfg.Timeout/6,
			chromedp.Click(sel, chromedp.ByQuery)); err == nil {
			return
		}
	}

	var clicked bool
	if err := s.run(ctx, chromedp.Evaluate(closeTextJS, &clicked)); err == nil && clicked {
		return
	}
	if err := s.run(ctx, chromedp.Evaluate(closePositionalJS, &clicked)); err == nil && clicked {
		return
	}
	_ = s.run(ctx, chromedp.KeyEvent(kb.Escape))
}
