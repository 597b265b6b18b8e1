// Package chrome implements the rendering surface with a headless Chrome
// driven over the DevTools protocol by chromedp. One browser process serves
// a crawl; every page is its own tab.
package chrome

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/Sriram-PR/headless-crawler/pkg/config"
	"github.com/Sriram-PR/headless-crawler/pkg/log"
	"github.com/Sriram-PR/headless-crawler/pkg/render"
)

const anchorHrefsScript = `Array.from(document.querySelectorAll('a[href]'), a => a.href)`

// lifecycle event names reported by Page.lifecycleEvent
const (
	lifecycleInit              = "init"
	lifecycleNetworkAlmostIdle = "networkAlmostIdle"
)

// Options configures the browser process
type Options struct {
	ExecPath    string        // Empty uses chromedp's lookup
	Headless    bool
	MaxTabs     int           // Open tab bound; <= 0 means unbounded
	PageTimeout time.Duration // Lifetime limit of one page; 0 disables it
	UserAgent   string        // Browser-wide default; pages may override
}

// OptionsFromConfig maps a validated crawl config to browser options
func OptionsFromConfig(cfg *config.CrawlConfig) Options {
	return Options{
		ExecPath:    cfg.ChromePath,
		Headless:    cfg.HeadlessEnabled(),
		MaxTabs:     cfg.Concurrency,
		PageTimeout: cfg.PageTimeout,
		UserAgent:   cfg.UserAgent,
	}
}

// Browser is one Chrome process
type Browser struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	tabs          *semaphore.Weighted // nil when unbounded
	pageTimeout   time.Duration
	log           *logrus.Entry
	closed        atomic.Bool
	closeOnce     sync.Once
}

// New starts Chrome. The process lives until Close or until ctx is done.
func New(ctx context.Context, opts Options, logger *logrus.Entry) (*Browser, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	entry := logger.WithField("renderer", config.RendererChrome)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	logf, errorf, debugf := log.ChromeLoggers(entry)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logf),
		chromedp.WithErrorf(errorf),
		chromedp.WithDebugf(debugf),
	)

	// An empty Run launches the process and opens the initial tab
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("starting chrome: %w", err)
	}
	entry.WithFields(logrus.Fields{"headless": opts.Headless, "max_tabs": opts.MaxTabs}).Info("Chrome started")

	b := &Browser{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		pageTimeout:   opts.PageTimeout,
		log:           entry,
	}
	if opts.MaxTabs > 0 {
		b.tabs = semaphore.NewWeighted(int64(opts.MaxTabs))
	}
	return b, nil
}

// NewPage implements render.Browser. Blocks while the tab bound is reached.
func (b *Browser) NewPage(ctx context.Context) (render.Page, error) {
	if b.closed.Load() {
		return nil, render.ErrBrowserClosed
	}
	if b.tabs != nil {
		if err := b.tabs.Acquire(ctx, 1); err != nil {
			return nil, err
		}
	}
	release := func() {
		if b.tabs != nil {
			b.tabs.Release(1)
		}
	}

	tabCtx, tabCancel := chromedp.NewContext(b.browserCtx)
	if err := chromedp.Run(tabCtx, cdppage.SetLifecycleEventsEnabled(true)); err != nil {
		tabCancel()
		release()
		if b.browserCtx.Err() != nil {
			return nil, render.ErrBrowserClosed
		}
		return nil, fmt.Errorf("opening tab: %w", err)
	}

	p := &Page{
		tabCancel: tabCancel,
		release:   release,
		done:      make(chan struct{}),
		mainFrame: cdp.FrameID(chromedp.FromContext(tabCtx).Target.TargetID),
		log:       b.log,
	}
	p.ctx, p.cancel = tabCtx, func() {}
	if b.pageTimeout > 0 {
		p.ctx, p.cancel = context.WithTimeout(tabCtx, b.pageTimeout)
	}
	return p, nil
}

// Close implements render.Browser. It shuts the Chrome process down.
func (b *Browser) Close() error {
	var err error
	b.closeOnce.Do(func() {
		b.closed.Store(true)
		err = chromedp.Cancel(b.browserCtx)
		b.browserCancel()
		b.allocCancel()
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		b.log.Debug("Chrome stopped")
	})
	return err
}

// Page is one Chrome tab
type Page struct {
	ctx       context.Context // Tab context, bounded by the page timeout
	cancel    context.CancelFunc
	tabCancel context.CancelFunc
	release   func()
	mainFrame cdp.FrameID // Chrome uses the target id as the main frame id
	log       *logrus.Entry

	mu  sync.Mutex
	url string

	done      chan struct{}
	closeOnce sync.Once
}

func (p *Page) isClosed() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// run executes actions in the tab, also stopping when the caller's ctx is done
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	if p.isClosed() {
		return render.ErrPageClosed
	}
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Navigate implements render.Page
func (p *Page) Navigate(ctx context.Context, url string) error {
	var location string
	if err := p.run(ctx, chromedp.Navigate(url), chromedp.Location(&location)); err != nil {
		return err
	}
	p.mu.Lock()
	p.url = location
	p.mu.Unlock()
	if location != url {
		p.log.WithFields(logrus.Fields{"url": url, "final_url": location}).Debug("URL redirected.")
	}
	return nil
}

// URL implements render.Page
func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

// Title implements render.Page
func (p *Page) Title(ctx context.Context) (string, error) {
	var title string
	err := p.run(ctx, chromedp.Title(&title))
	return title, err
}

// Content implements render.Page
func (p *Page) Content(ctx context.Context) (string, error) {
	var html string
	err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

// AnchorHrefs implements render.Page
func (p *Page) AnchorHrefs(ctx context.Context) ([]string, error) {
	var hrefs []string
	if err := p.Evaluate(ctx, anchorHrefsScript, &hrefs); err != nil {
		return nil, err
	}
	return hrefs, nil
}

// Evaluate implements render.Page
func (p *Page) Evaluate(ctx context.Context, script string, res any) error {
	return p.run(ctx, chromedp.Evaluate(script, res))
}

// SetUserAgent implements render.Page
func (p *Page) SetUserAgent(ctx context.Context, ua string) error {
	return p.run(ctx, emulation.SetUserAgentOverride(ua))
}

// NetworkIdle implements render.Page. The listener is registered before it
// returns, so it observes a navigation started afterwards. Only a
// networkAlmostIdle event following a new document's init counts.
func (p *Page) NetworkIdle(ctx context.Context) <-chan error {
	ch := make(chan error, 1)
	if p.isClosed() {
		ch <- render.ErrPageClosed
		return ch
	}

	idle := make(chan struct{})
	var once sync.Once
	started := false
	listenCtx, stopListening := context.WithCancel(p.ctx)
	// Called sequentially from the tab's event loop
	chromedp.ListenTarget(listenCtx, func(ev any) {
		e, ok := ev.(*cdppage.EventLifecycleEvent)
		if !ok || e.FrameID != p.mainFrame {
			return
		}
		switch e.Name {
		case lifecycleInit:
			started = true
		case lifecycleNetworkAlmostIdle:
			if started {
				once.Do(func() { close(idle) })
			}
		}
	})

	go func() {
		defer stopListening()
		select {
		case <-idle:
			ch <- nil
		case <-p.done:
			ch <- render.ErrPageClosed
		case <-ctx.Done():
			ch <- ctx.Err()
		case <-listenCtx.Done():
			ch <- p.ctx.Err()
		}
	}()
	return ch
}

// Close implements render.Page. It closes the tab and frees its slot.
func (p *Page) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
		p.cancel()
		p.tabCancel()
		p.release()
	})
	return nil
}
