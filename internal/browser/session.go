// Package browser drives the automated Chrome session against the
// monitored site. It owns navigation, login, capture, and overlay
// dismissal; structural interpretation of pages is delegated to the
// extract package over DOM snapshots.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/ospwatch/webhard-monitor/internal/extract"
	"github.com/ospwatch/webhard-monitor/internal/monitor"
	"github.com/ospwatch/webhard-monitor/internal/retry"
)

// Config controls the browser session.
type Config struct {
	Headless   bool
	ChromePath string
	UserAgent  string
	Stealth    bool
	BaseURL    string
	// Timeout bounds each individual browser operation, not the run.
	Timeout time.Duration
	Retry   retry.Policy
}

// Session is a stateful logged-in browser session. It implements
// monitor.Session and the capture surface the evidence pipeline needs.
// A session is single-tab and not safe for concurrent use.
type Session struct {
	cfg    Config
	logger *zap.Logger

	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc

	initialized bool
	loggedIn    bool
}

// New builds an unstarted session.
func New(cfg Config, logger *zap.Logger) *Session {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = retry.DefaultPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{cfg: cfg, logger: logger}
}

// Initialize launches Chrome and warms up the tab. Launch failures are
// retried per the session policy before being reported as infrastructure
// errors.
func (s *Session) Initialize(ctx context.Context) error {
	if s.initialized {
		return nil
	}

	err := retry.Do(ctx, s.cfg.Retry, func(ctx context.Context) error {
		return s.launch(ctx)
	})
	if err != nil {
		return fmt.Errorf("%w: browser launch: %v", monitor.ErrInfra, err)
	}

	s.initialized = true
	s.logger.Info("browser session initialized",
		zap.Bool("headless", s.cfg.Headless), zap.Bool("stealth", s.cfg.Stealth))
	return nil
}

func (s *Session) launch(ctx context.Context) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", s.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.WindowSize(1920, 1080),
	)
	if s.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(s.cfg.UserAgent))
	}
	if s.cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(s.cfg.ChromePath))
	}
	if s.cfg.Stealth {
		opts = append(opts, stealthFlags()...)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	warmup := []chromedp.Action{}
	if s.cfg.Stealth {
		warmup = append(warmup, maskAutomationAction())
	}
	warmup = append(warmup, chromedp.Navigate("about:blank"))

	runCtx, cancel := context.WithTimeout(tabCtx, s.cfg.Timeout)
	defer cancel()
	stop := forwardCancel(ctx, tabCancel)
	defer stop()

	if err := chromedp.Run(runCtx, warmup...); err != nil {
		tabCancel()
		allocCancel()
		return fmt.Errorf("chromedp warmup: %w", err)
	}

	s.allocCancel = allocCancel
	s.tabCtx = tabCtx
	s.tabCancel = tabCancel
	return nil
}

// Login authenticates against the site's login page. A clean rejection
// (credentials refused, form still present) returns false with a nil
// error; only infrastructure failures produce errors. Logging in twice is
// a no-op.
func (s *Session) Login(ctx context.Context, url string, creds monitor.Credentials) (bool, error) {
	if !s.initialized {
		return false, fmt.Errorf("%w: session not initialized", monitor.ErrInfra)
	}
	if s.loggedIn {
		return true, nil
	}

	if err := s.navigate(ctx, url); err != nil {
		return false, fmt.Errorf("%w: open login page: %v", monitor.ErrNavigation, err)
	}

	html, err := s.SnapshotHTML(ctx)
	if err != nil {
		return false, err
	}
	doc, err := extract.ParseDocument(html)
	if err != nil {
		return false, fmt.Errorf("%w: parse login page: %v", monitor.ErrExtraction, err)
	}

	form, strategy, err := extract.LoginFormChain().Run(doc)
	if err != nil {
		return false, fmt.Errorf("%w: locate login form: %v", monitor.ErrExtraction, err)
	}
	s.logger.Debug("login form located", zap.String("strategy", strategy))

	if err := s.fillAndSubmit(ctx, form, creds); err != nil {
		return false, err
	}

	ok, err := s.confirmLogin(ctx)
	if err != nil {
		return false, err
	}
	s.loggedIn = ok
	if ok {
		s.logger.Info("login succeeded")
	} else {
		s.logger.Warn("login rejected by site")
	}
	return ok, nil
}

func (s *Session) fillAndSubmit(ctx context.Context, form extract.LoginForm, creds monitor.Credentials) error {
	// The password field is set through the DOM rather than key events so
	// site-side input handlers cannot reorder or swallow characters.
	setPassword := fmt.Sprintf(
		`document.querySelector(%q).value = %q;`, form.Password, creds.Password)

	if err := s.run(ctx,
		chromedp.WaitVisible(form.Username, chromedp.ByQuery),
		chromedp.SendKeys(form.Username, creds.Username, chromedp.ByQuery),
		chromedp.Evaluate(setPassword, nil),
	); err != nil {
		return fmt.Errorf("%w: fill login form: %v", monitor.ErrNavigation, err)
	}

	// The submit click may or may not trigger a full navigation; a timeout
	// here is tolerated and resolved by the confirmation check.
	err := s.runFor(ctx, s.cfg.Timeout/2,
		chromedp.Click(form.Submit, chromedp.ByQuery),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err == nil || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}

	// No clickable submit control. Submit the form directly.
	submitJS := fmt.Sprintf(`document.querySelector(%q).submit();`, form.Form)
	if err := s.run(ctx, chromedp.Evaluate(submitJS, nil)); err != nil {
		return fmt.Errorf("%w: submit login form: %v", monitor.ErrNavigation, err)
	}
	return nil
}

// confirmLogin decides the outcome from the post-submit page: any
// logged-in marker wins, and an absent login form also counts as success.
func (s *Session) confirmLogin(ctx context.Context) (bool, error) {
	html, err := s.SnapshotHTML(ctx)
	if err != nil {
		return false, err
	}
	doc, err := extract.ParseDocument(html)
	if err != nil {
		return false, fmt.Errorf("%w: parse post-login page: %v", monitor.ErrExtraction, err)
	}

	loggedInMarkers := []string{
		`a[href*="logout"]`,
		`a[onclick*="logout"]`,
		".logout",
		".my_info",
		".mypage",
	}
	for _, sel := range loggedInMarkers {
		if doc.Find(sel).Length() > 0 {
			return true, nil
		}
	}
	if strings.Contains(html, "로그아웃") {
		return true, nil
	}
	return doc.Find(`form input[type="password"]`).Length() == 0, nil
}

// navigate loads a URL and waits for the body, retried per the session
// policy. Only idempotent navigations go through here.
func (s *Session) navigate(ctx context.Context, url string) error {
	return retry.Do(ctx, s.cfg.Retry, func(ctx context.Context) error {
		return s.run(ctx,
			chromedp.Navigate(url),
			chromedp.WaitReady("body", chromedp.ByQuery),
		)
	})
}

// SnapshotHTML returns the current DOM serialized as HTML.
func (s *Session) SnapshotHTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("%w: dom snapshot: %v", monitor.ErrNavigation, err)
	}
	return html, nil
}

// run executes actions on the session tab under the per-op timeout.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	if s.tabCtx == nil {
		return fmt.Errorf("session tab not available")
	}
	opCtx, cancel := context.WithTimeout(s.tabCtx, s.cfg.Timeout)
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()
	return chromedp.Run(opCtx, actions...)
}

// runFor is run with an explicit deadline, for steps that get a shorter
// budget than the session default.
func (s *Session) runFor(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if s.tabCtx == nil {
		return fmt.Errorf("session tab not available")
	}
	opCtx, cancel := context.WithTimeout(s.tabCtx, timeout)
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()
	return chromedp.Run(opCtx, actions...)
}

// Close tears down the tab and browser process.
func (s *Session) Close(ctx context.Context) error {
	if s.tabCancel != nil {
		s.tabCancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
	s.initialized = false
	s.loggedIn = false
	select {
	case <-ctx.Done():
	default:
	}
	return nil
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
