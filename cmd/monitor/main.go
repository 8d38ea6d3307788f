// Command monitor runs the webhard compliance monitor: a crawl runner
// driving a headless browser against the monitored site, with an HTTP
// control surface for starting runs and reading results.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ospwatch/webhard-monitor/internal/api"
	"github.com/ospwatch/webhard-monitor/internal/archive"
	"github.com/ospwatch/webhard-monitor/internal/browser"
	"github.com/ospwatch/webhard-monitor/internal/clock/system"
	"github.com/ospwatch/webhard-monitor/internal/config"
	"github.com/ospwatch/webhard-monitor/internal/evidence"
	"github.com/ospwatch/webhard-monitor/internal/fingerprint"
	"github.com/ospwatch/webhard-monitor/internal/logging"
	"github.com/ospwatch/webhard-monitor/internal/metrics"
	"github.com/ospwatch/webhard-monitor/internal/monitor"
	"github.com/ospwatch/webhard-monitor/internal/retry"
	"github.com/ospwatch/webhard-monitor/internal/runner"
	"github.com/ospwatch/webhard-monitor/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "monitor:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	metrics.Init()
	clk := system.Clock{}

	db, err := store.Open(cfg.DB.Path, logger)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	archiver := archive.New(archive.Config{
		Enabled:  cfg.Archive.Enabled,
		Host:     cfg.Archive.Host,
		Port:     cfg.Archive.Port,
		User:     cfg.Archive.User,
		Password: cfg.Archive.Password,
		BasePath: cfg.Archive.BasePath,
		Timeout:  time.Duration(cfg.Archive.TimeoutSeconds) * time.Second,
	}, clk, logger)

	r := buildRunner(cfg, db, archiver, clk, logger)
	defer r.Shutdown()

	server := api.NewServer(r, db, cfg.Crawl.Categories, logger)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func buildRunner(
	cfg config.Config,
	db *store.SQLite,
	archiver *archive.FTPArchiver,
	clk system.Clock,
	logger *zap.Logger,
) *runner.Runner {
	creds := monitor.Credentials{
		Username: cfg.Site.LoginID,
		Password: cfg.Site.LoginSecret,
	}
	site := monitor.Site{
		ID:          cfg.Site.ID,
		Name:        cfg.Site.Name,
		Type:        cfg.Site.Type,
		Capability:  cfg.Site.Capability,
		LoginID:     cfg.Site.LoginID,
		LoginSecret: cfg.Site.LoginSecret,
	}

	sessions := func(opts monitor.Options) monitor.Session {
		return browser.New(browser.Config{
			Headless:   cfg.Browser.Headless,
			ChromePath: cfg.Browser.ChromePath,
			UserAgent:  cfg.Browser.UserAgent,
			Stealth:    opts.Stealth,
			BaseURL:    cfg.Site.BaseURL,
			Timeout:    cfg.BrowserTimeout(),
			Retry: retry.Policy{
				MaxAttempts: cfg.Browser.RetryCount,
				BaseDelay:   cfg.RetryDelay(),
			},
		}, logger)
	}

	procs := func(session monitor.Session) monitor.ItemProcessor {
		// The session factory always builds *browser.Session, which carries
		// the capture surface beyond the plain session interface.
		b := session.(evidence.Browser)
		return evidence.NewPipeline(
			b, db, archiver, clk, fingerprint.New(),
			evidence.Config{
				SiteID:          cfg.Site.ID,
				Keyword:         cfg.Crawl.Keyword,
				KeywordFoldCase: cfg.Crawl.KeywordFoldCase,
				OutputDir:       cfg.Crawl.OutputDir,
			},
			logger,
		)
	}

	return runner.New(
		runner.Config{
			Site:        site,
			LoginURL:    cfg.Site.LoginURL,
			Credentials: creds,
			Keyword:     cfg.Crawl.Keyword,
			Categories:  cfg.Crawl.Categories,
			PageCount:   cfg.Crawl.PageCount,
		},
		sessions, procs, db, archiver, clk, logger,
	)
}
