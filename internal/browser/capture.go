package browser

import (
	"context"
	"fmt"
	"net/url"

	"github.com/chromedp/chromedp"

	"github.com/ospwatch/webhard-monitor/internal/monitor"
)

// CaptureList screenshots the currently loaded list view.
func (s *Session) CaptureList(ctx context.Context) ([]byte, error) {
	var shot []byte
	if err := s.run(ctx, chromedp.FullScreenshot(&shot, 90)); err != nil {
		return nil, fmt.Errorf("%w: capture list: %v", monitor.ErrNavigation, err)
	}
	return shot, nil
}

// RenderAndCapture loads an HTML snippet into the tab and screenshots the
// rendered result. The evidence pipeline uses this as the image
// composition fallback; the tab's page state is lost, so callers invoke
// it only between items.
func (s *Session) RenderAndCapture(ctx context.Context, html string) ([]byte, error) {
	dataURL := "data:text/html;charset=utf-8," + url.PathEscape(html)

	var shot []byte
	if err := s.run(ctx,
		chromedp.Navigate(dataURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.FullScreenshot(&shot, 90),
	); err != nil {
		return nil, fmt.Errorf("%w: render composition: %v", monitor.ErrNavigation, err)
	}
	return shot, nil
}
