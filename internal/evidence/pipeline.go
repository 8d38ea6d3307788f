package evidence

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ospwatch/webhard-monitor/internal/monitor"
)

// Browser is the subset of session operations the pipeline drives.
type Browser interface {
	// CaptureList screenshots the currently loaded list view.
	CaptureList(ctx context.Context) ([]byte, error)
	// OpenDetail opens the item's detail surface, extracts its fields,
	// screenshots it, and dismisses any overlay before returning.
	OpenDetail(ctx context.Context, item monitor.ListItem) (monitor.DetailInfo, []byte, error)
	// RenderAndCapture renders an HTML snippet in the browser and
	// screenshots it. Used as the imaging fallback path.
	RenderAndCapture(ctx context.Context, html string) ([]byte, error)
}

// Config holds the pipeline's fixed per-run parameters.
type Config struct {
	SiteID          string
	Keyword         string
	KeywordFoldCase bool
	OutputDir       string
}

// Pipeline captures, composes, archives, and persists evidence for one
// discovered item at a time. Every stage failure is item-scoped: the
// pipeline returns an error, the caller logs it, and the run continues.
type Pipeline struct {
	browser  Browser
	store    monitor.Store
	archiver monitor.Archiver
	clock    monitor.Clock
	hasher   monitor.Hasher
	cfg      Config
	logger   *zap.Logger
}

// NewPipeline wires the capture pipeline.
func NewPipeline(
	browser Browser,
	store monitor.Store,
	archiver monitor.Archiver,
	clock monitor.Clock,
	hasher monitor.Hasher,
	cfg Config,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		browser:  browser,
		store:    store,
		archiver: archiver,
		clock:    clock,
		hasher:   hasher,
		cfg:      cfg,
		logger:   logger,
	}
}

// Process runs the evidence stages for one item. A nil result with a nil
// error means the fingerprint was already stored and the item was skipped.
func (p *Pipeline) Process(ctx context.Context, item monitor.ListItem, category string) (*monitor.Result, error) {
	discoveredAt := p.clock.Now()
	fp := p.hasher.Fingerprint(p.cfg.SiteID, item.ContentID, discoveredAt)

	existing, err := p.store.ContentByFingerprint(ctx, fp)
	if err != nil {
		return nil, fmt.Errorf("%w: dedup lookup: %v", monitor.ErrPersistence, err)
	}
	if existing != nil {
		p.logger.Debug("item already processed", zap.String("fingerprint", fp))
		return nil, nil
	}

	listingPNG, err := p.browser.CaptureList(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture listing: %w", err)
	}

	detail, detailPNG, err := p.browser.OpenDetail(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("open detail: %w", err)
	}
	if detail.Title == "" {
		return nil, fmt.Errorf("%w: detail title missing for %q", monitor.ErrExtraction, item.Title)
	}

	evidencePath, err := p.composeEvidence(ctx, fp, listingPNG, detailPNG)
	if err != nil {
		return nil, fmt.Errorf("compose evidence: %w", err)
	}

	provenance := p.archive(ctx, evidencePath, fp)

	title := item.Title
	if title == "" {
		title = detail.Title
	}
	contains := p.containsKeyword(title)

	content := monitor.Content{
		Fingerprint:  fp,
		SiteID:       p.cfg.SiteID,
		ContentID:    item.ContentID,
		Title:        title,
		Genre:        category,
		FileCount:    len(detail.Files),
		FileSize:     firstNonEmpty(detail.FileSize, item.FileSize),
		UploaderID:   firstNonEmpty(detail.UploaderID, item.UploaderID),
		DiscoveredAt: discoveredAt,
		DetailURL:    item.DetailURL,
	}

	status := monitor.StatusNormal
	if contains {
		status = monitor.StatusKeywordFound
	}
	contentDetail := monitor.ContentDetail{
		Fingerprint:  fp,
		DiscoveredAt: discoveredAt,
		Price:        detail.Price,
		PriceUnit:    detail.PriceUnit,
		Partnership:  detail.Partnership,
		EvidencePath: provenance,
		Status:       status,
	}

	if err := p.persist(ctx, content, contentDetail, detail.Files); err != nil {
		return nil, err
	}

	return &monitor.Result{
		Content:         content,
		Detail:          contentDetail,
		ContainsKeyword: contains,
	}, nil
}

// composeEvidence stacks listing, detail, and attestation into one PNG.
// Direct drawing is attempted first; on failure the browser renders an
// equivalent HTML composition and screenshots it.
func (p *Pipeline) composeEvidence(
	ctx context.Context,
	fp string,
	listingPNG, detailPNG []byte,
) (string, error) {
	path := filepath.Join(p.cfg.OutputDir, "evidence_"+fp+".png")

	composite, composeErr := p.drawComposite(listingPNG, detailPNG)
	if composeErr == nil {
		if err := WritePNG(path, composite); err != nil {
			return "", err
		}
		return path, nil
	}

	p.logger.Warn("direct composition failed, using browser fallback", zap.Error(composeErr))

	rendered, err := p.browserComposite(ctx, fp, listingPNG, detailPNG, AttestationHTML(p.clock.Now()))
	if err != nil {
		return "", fmt.Errorf("browser composition fallback: %w", err)
	}
	if err := WritePNG(path, rendered); err != nil {
		return "", err
	}
	return path, nil
}

func (p *Pipeline) drawComposite(listingPNG, detailPNG []byte) ([]byte, error) {
	listing, err := DecodePNG(listingPNG)
	if err != nil {
		return nil, fmt.Errorf("listing capture: %w", err)
	}
	detail, err := DecodePNG(detailPNG)
	if err != nil {
		return nil, fmt.Errorf("detail capture: %w", err)
	}
	attest := RenderAttestation(p.clock.Now())
	return EncodePNG(ComposeVertical(listing, detail, attest))
}

// browserComposite writes the raw captures to scratch files and asks the
// browser to render the stacked composition.
func (p *Pipeline) browserComposite(
	ctx context.Context,
	fp string,
	listingPNG, detailPNG []byte,
	attestHTML string,
) ([]byte, error) {
	listingPath := filepath.Join(p.cfg.OutputDir, "listing_"+fp+".png")
	detailPath := filepath.Join(p.cfg.OutputDir, "detail_"+fp+".png")
	if err := WritePNG(listingPath, listingPNG); err != nil {
		return nil, err
	}
	if err := WritePNG(detailPath, detailPNG); err != nil {
		return nil, err
	}
	defer func() {
		_ = os.Remove(listingPath)
		_ = os.Remove(detailPath)
	}()

	html := compositionHTML(absPath(listingPath), absPath(detailPath)) + attestHTML
	return p.browser.RenderAndCapture(ctx, html)
}

// archive mirrors the evidence file best-effort. On any failure the local
// path stands in as the provenance reference.
func (p *Pipeline) archive(ctx context.Context, localPath, fp string) string {
	if p.archiver == nil || !p.archiver.Enabled() {
		return localPath
	}
	remote, err := p.archiver.Upload(ctx, localPath, filepath.Base(localPath))
	if err != nil {
		p.logger.Warn("evidence upload failed, keeping local path",
			zap.String("fingerprint", fp), zap.Error(err))
		return localPath
	}
	return remote
}

func (p *Pipeline) persist(
	ctx context.Context,
	content monitor.Content,
	detail monitor.ContentDetail,
	files []monitor.FileEntry,
) error {
	if err := p.store.SaveContent(ctx, content); err != nil {
		return fmt.Errorf("%w: save content: %v", monitor.ErrPersistence, err)
	}
	if err := p.store.SaveContentDetail(ctx, detail); err != nil {
		return fmt.Errorf("%w: save content detail: %v", monitor.ErrPersistence, err)
	}
	if err := p.store.SaveFileList(ctx, content.Fingerprint, files); err != nil {
		return fmt.Errorf("%w: save file list: %v", monitor.ErrPersistence, err)
	}
	return nil
}

func (p *Pipeline) containsKeyword(title string) bool {
	if p.cfg.Keyword == "" {
		return false
	}
	if p.cfg.KeywordFoldCase {
		return strings.Contains(strings.ToLower(title), strings.ToLower(p.cfg.Keyword))
	}
	return strings.Contains(title, p.cfg.Keyword)
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func absPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}
