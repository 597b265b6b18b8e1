// Package static implements the rendering surface over plain HTTP. Pages
// are fetched with the retrying fetcher and parsed with goquery; scripts
// never run.
package static

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/headless-crawler/pkg/config"
	"github.com/Sriram-PR/headless-crawler/pkg/fetch"
	"github.com/Sriram-PR/headless-crawler/pkg/render"
	"github.com/Sriram-PR/headless-crawler/pkg/utils"
)

// Browser hands out HTTP-backed pages sharing one fetcher, rate limiter and
// per-host semaphore pool.
type Browser struct {
	fetcher     *fetch.Fetcher
	rateLimiter *fetch.RateLimiter
	hostSem     *fetch.HostSemaphorePool
	cfg         *config.CrawlConfig
	log         *logrus.Entry
	closed      atomic.Bool
}

// New creates a static Browser. cfg must already be validated.
func New(fetcher *fetch.Fetcher, rateLimiter *fetch.RateLimiter, hostSem *fetch.HostSemaphorePool, cfg *config.CrawlConfig, log *logrus.Entry) *Browser {
	return &Browser{
		fetcher:     fetcher,
		rateLimiter: rateLimiter,
		hostSem:     hostSem,
		cfg:         cfg,
		log:         log.WithField("renderer", config.RendererStatic),
	}
}

// NewPage implements render.Browser
func (b *Browser) NewPage(ctx context.Context) (render.Page, error) {
	if b.closed.Load() {
		return nil, render.ErrBrowserClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Page{
		browser:   b,
		userAgent: b.cfg.UserAgent,
		loaded:    make(chan struct{}),
		done:      make(chan struct{}),
	}, nil
}

// Close implements render.Browser. Pages already handed out keep working.
func (b *Browser) Close() error {
	b.closed.Store(true)
	return nil
}

// Page is a fetched and parsed HTML document
type Page struct {
	browser *Browser

	mu        sync.Mutex
	userAgent string
	finalURL  *url.URL
	html      string
	doc       *goquery.Document

	loaded     chan struct{} // Closed after the first successful Navigate
	loadedOnce sync.Once
	done       chan struct{}
	closeOnce  sync.Once
}

func (p *Page) isClosed() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Navigate implements render.Page
func (p *Page) Navigate(ctx context.Context, rawURL string) error {
	if p.isClosed() {
		return render.ErrPageClosed
	}
	target, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: invalid URL '%s': %w", utils.ErrParsing, rawURL, err)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme '%s' in '%s'", utils.ErrRequestCreation, target.Scheme, rawURL)
	}

	b := p.browser
	host := target.Hostname()
	pageLog := b.log.WithField("url", rawURL)

	if err := b.hostSem.Acquire(ctx, host); err != nil {
		return err
	}
	defer b.hostSem.Release(host)

	if err := b.rateLimiter.ApplyDelay(ctx, host, b.cfg.DelayPerHost); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%w: creating request for '%s': %w", utils.ErrRequestCreation, rawURL, err)
	}
	p.mu.Lock()
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}
	p.mu.Unlock()

	resp, err := b.fetcher.FetchWithRetry(ctx, req)
	b.rateLimiter.UpdateLastRequestTime(host)
	if err != nil {
		if resp != nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		return err
	}
	defer resp.Body.Close()

	finalURL := resp.Request.URL
	if finalURL.String() != rawURL {
		pageLog = pageLog.WithField("final_url", finalURL.String())
		pageLog.Debug("URL redirected.")
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if contentType != "" && !strings.HasPrefix(contentType, "text/html") && !strings.HasPrefix(contentType, "application/xhtml+xml") {
		pageLog.Warnf("Unexpected Content-Type '%s'. Proceeding with parsing attempt.", contentType)
	}

	var reader io.Reader = resp.Body
	maxSize := b.cfg.MaxPageSizeBytes
	if maxSize > 0 {
		reader = io.LimitReader(resp.Body, maxSize+1) // +1 to detect exceeding the limit
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("%w: reading body from '%s': %w", utils.ErrResponseBodyRead, finalURL, err)
	}
	if maxSize > 0 && int64(len(body)) > maxSize {
		return fmt.Errorf("%w: page '%s' exceeds max size (%d > %d bytes)", utils.ErrResponseBodyRead, finalURL, len(body), maxSize)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: parsing HTML from '%s': %w", utils.ErrParsing, finalURL, err)
	}
	pageLog.Debugf("Loaded %d bytes", len(body))

	p.mu.Lock()
	p.finalURL = finalURL
	p.html = string(body)
	p.doc = doc
	p.mu.Unlock()
	p.loadedOnce.Do(func() { close(p.loaded) })
	return nil
}

// URL implements render.Page. Empty before the first successful Navigate.
func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finalURL == nil {
		return ""
	}
	return p.finalURL.String()
}

func (p *Page) document() (*goquery.Document, *url.URL, error) {
	if p.isClosed() {
		return nil, nil, render.ErrPageClosed
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doc == nil {
		return nil, nil, render.ErrNavigationRequired
	}
	return p.doc, p.finalURL, nil
}

// Title implements render.Page
func (p *Page) Title(ctx context.Context) (string, error) {
	doc, _, err := p.document()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(doc.Find("title").First().Text()), nil
}

// Content implements render.Page
func (p *Page) Content(ctx context.Context) (string, error) {
	if _, _, err := p.document(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.html, nil
}

// AnchorHrefs implements render.Page. Hrefs are resolved against the final
// URL the way a browser's HTMLAnchorElement.href is.
func (p *Page) AnchorHrefs(ctx context.Context) ([]string, error) {
	doc, base, err := p.document()
	if err != nil {
		return nil, err
	}
	var hrefs []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		resolved, parseErr := base.Parse(strings.TrimSpace(href))
		if parseErr != nil {
			p.browser.log.Debugf("Skipping invalid link href '%s': %v", href, parseErr)
			return
		}
		hrefs = append(hrefs, resolved.String())
	})
	return hrefs, nil
}

// Evaluate implements render.Page. Scripts are not supported.
func (p *Page) Evaluate(ctx context.Context, script string, res any) error {
	return render.ErrScriptUnsupported
}

// SetUserAgent implements render.Page. Applies to subsequent navigations.
func (p *Page) SetUserAgent(ctx context.Context, ua string) error {
	if p.isClosed() {
		return render.ErrPageClosed
	}
	p.mu.Lock()
	p.userAgent = ua
	p.mu.Unlock()
	return nil
}

// NetworkIdle implements render.Page. A static document is idle as soon as
// it is loaded.
func (p *Page) NetworkIdle(ctx context.Context) <-chan error {
	ch := make(chan error, 1)
	go func() {
		select {
		case <-p.loaded:
			ch <- nil
		case <-p.done:
			ch <- render.ErrPageClosed
		case <-ctx.Done():
			ch <- ctx.Err()
		}
	}()
	return ch
}

// Close implements render.Page
func (p *Page) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
		p.mu.Lock()
		p.doc = nil
		p.html = ""
		p.mu.Unlock()
	})
	return nil
}
