package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/ospwatch/webhard-monitor/internal/extract"
	"github.com/ospwatch/webhard-monitor/internal/monitor"
)

// NavigateToCategory opens a category list page and reports whether the
// landing succeeded. Navigation preference: an in-page link carrying the
// category code, then a direct URL with the code as a query parameter.
// Either way the landing is verified before the category is walked.
func (s *Session) NavigateToCategory(ctx context.Context, code string) bool {
	linkSel := fmt.Sprintf(`a[href*="%s"]`, code)
	err := s.runFor(ctx, s.cfg.Timeout/2,
		chromedp.Click(linkSel, chromedp.ByQuery),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err == nil && s.confirmCategory(ctx, code) {
		return true
	}

	if err := s.navigate(ctx, s.categoryURL(code)); err != nil {
		s.logger.Warn("category navigation failed",
			zap.String("category", code), zap.Error(err))
		return false
	}
	return s.confirmCategory(ctx, code)
}

// confirmCategory checks that the tab actually landed on the category:
// the location carries the code, or the page holds a recognizable list.
func (s *Session) confirmCategory(ctx context.Context, code string) bool {
	var loc string
	if err := s.run(ctx, chromedp.Location(&loc)); err == nil && strings.Contains(loc, code) {
		return true
	}

	html, err := s.SnapshotHTML(ctx)
	if err != nil {
		return false
	}
	doc, err := extract.ParseDocument(html)
	if err != nil {
		return false
	}
	_, _, err = extract.ListRowChain(s.cfg.BaseURL).Run(doc)
	return err == nil
}

func (s *Session) categoryURL(code string) string {
	u, err := url.Parse(s.cfg.BaseURL)
	if err != nil {
		return s.cfg.BaseURL
	}
	q := u.Query()
	q.Set("category", code)
	u.RawQuery = q.Encode()
	return u.String()
}

// ContentList returns the row summaries for one page of the current
// category. Page 1 reads the already-loaded list; deeper pages click
// through the pagination controls. A page whose snapshot holds no
// recognizable list is an empty result, not an error.
func (s *Session) ContentList(ctx context.Context, category string, page int) ([]monitor.ListItem, error) {
	if page > 1 {
		if err := s.goToPage(ctx, page); err != nil {
			return nil, err
		}
	}

	html, err := s.SnapshotHTML(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := extract.ParseDocument(html)
	if err != nil {
		return nil, fmt.Errorf("%w: parse list page: %v", monitor.ErrExtraction, err)
	}

	items, strategy, err := extract.ListRowChain(s.cfg.BaseURL).Run(doc)
	if errors.Is(err, extract.ErrNoStrategy) {
		s.logger.Debug("no list rows on page",
			zap.String("category", category), zap.Int("page", page))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: extract list rows: %v", monitor.ErrExtraction, err)
	}

	s.logger.Debug("list page extracted",
		zap.String("category", category), zap.Int("page", page),
		zap.Int("items", len(items)), zap.String("strategy", strategy))
	return items, nil
}

// goToPage clicks the pagination control labeled with the page number,
// falling back to a generic next link.
func (s *Session) goToPage(ctx context.Context, page int) error {
	label := strconv.Itoa(page)
	clickByText := fmt.Sprintf(`
		(() => {
			const links = document.querySelectorAll('.paging a, .pagination a, .page_num a, a.page');
			for (const a of links) {
				if (a.textContent.trim() === %q) { a.click(); return true; }
			}
			return false;
		})()`, label)

	var clicked bool
	if err := s.run(ctx, chromedp.Evaluate(clickByText, &clicked)); err != nil {
		return fmt.Errorf("%w: pagination click: %v", monitor.ErrNavigation, err)
	}
	if !clicked {
		err := s.runFor(ctx, s.cfg.Timeout/2,
			chromedp.Click(`.paging .next, .pagination .next, a.next`, chromedp.ByQuery),
		)
		if err != nil {
			return fmt.Errorf("%w: no pagination control for page %d: %v",
				monitor.ErrNavigation, page, err)
		}
	}
	if err := s.run(ctx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("%w: wait for page %d: %v", monitor.ErrNavigation, page, err)
	}
	return nil
}

// Search runs the site's keyword search and returns the result rows.
func (s *Session) Search(ctx context.Context, keyword string) ([]monitor.ListItem, error) {
	if err := s.navigate(ctx, s.searchURL(keyword)); err != nil {
		return nil, fmt.Errorf("%w: open search page: %v", monitor.ErrNavigation, err)
	}

	html, err := s.SnapshotHTML(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := extract.ParseDocument(html)
	if err != nil {
		return nil, fmt.Errorf("%w: parse search page: %v", monitor.ErrExtraction, err)
	}

	items, _, err := extract.ListRowChain(s.cfg.BaseURL).Run(doc)
	if errors.Is(err, extract.ErrNoStrategy) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: extract search rows: %v", monitor.ErrExtraction, err)
	}
	return items, nil
}

func (s *Session) searchURL(keyword string) string {
	u, err := url.Parse(s.cfg.BaseURL)
	if err != nil {
		return s.cfg.BaseURL
	}
	q := u.Query()
	q.Set("keyword", keyword)
	u.RawQuery = q.Encode()
	return u.String()
}
