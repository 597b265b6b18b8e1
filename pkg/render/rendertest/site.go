// Package rendertest provides an in-memory render.Browser serving a fake
// page graph, for exercising the executor and crawler without a browser.
package rendertest

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"github.com/Sriram-PR/headless-crawler/pkg/render"
)

// PageSpec describes one page of the fake site.
type PageSpec struct {
	Title         string
	Links         []string
	HTML          string         // Served as-is when set; otherwise built from Title and Links
	Delay         time.Duration  // Navigation latency
	Hold          <-chan struct{} // Navigation blocks until closed
	NavErr        error
	IdleErr       error // Yielded by NetworkIdle after a successful load
	LinksErr      error
	Redirect      string         // Final URL reported after navigation
	EchoUserAgent bool           // Title becomes the page's user agent
	Scripts       map[string]any // Evaluate results by script text
}

// Site is a fake Browser. All methods are safe for concurrent use.
type Site struct {
	NewPageErr error

	mu          sync.Mutex
	pages       map[string]PageSpec
	open        int
	maxOpen     int
	opened      int
	navigations []string
	closed      bool
}

// NewSite returns an empty site.
func NewSite() *Site {
	return &Site{pages: make(map[string]PageSpec)}
}

// Add registers url and returns s for chaining.
func (s *Site) Add(url string, spec PageSpec) *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[url] = spec
	return s
}

// NewPage implements render.Browser.
func (s *Site) NewPage(ctx context.Context) (render.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, render.ErrBrowserClosed
	}
	if s.NewPageErr != nil {
		return nil, s.NewPageErr
	}
	s.open++
	s.opened++
	if s.open > s.maxOpen {
		s.maxOpen = s.open
	}
	return &Page{site: s, loaded: make(chan struct{}), done: make(chan struct{})}, nil
}

// Close implements render.Browser.
func (s *Site) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// MaxOpen is the highest number of simultaneously open pages observed.
func (s *Site) MaxOpen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxOpen
}

// Open is the number of pages currently open.
func (s *Site) Open() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Opened is the number of pages ever handed out.
func (s *Site) Opened() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened
}

// Navigations lists every requested URL in the order navigation began.
func (s *Site) Navigations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.navigations...)
}

func (s *Site) lookup(url string) (PageSpec, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navigations = append(s.navigations, url)
	spec, ok := s.pages[url]
	return spec, ok
}

func (s *Site) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open--
}

// Page is a fake render.Page.
type Page struct {
	site *Site

	mu        sync.Mutex
	spec      PageSpec
	url       string
	userAgent string
	navigated bool
	loaded    chan struct{} // Closed after a successful Navigate
	done      chan struct{} // Closed by Close
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

// Navigate implements render.Page.
func (p *Page) Navigate(ctx context.Context, url string) error {
	if p.isClosed() {
		return render.ErrPageClosed
	}
	spec, ok := p.site.lookup(url)
	if ok && spec.Hold != nil {
		select {
		case <-spec.Hold:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if ok && spec.Delay > 0 {
		select {
		case <-time.After(spec.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if !ok {
		return fmt.Errorf("net::ERR_HTTP_RESPONSE_CODE_FAILURE: 404 for %s", url)
	}
	if spec.NavErr != nil {
		return spec.NavErr
	}

	p.mu.Lock()
	p.spec = spec
	p.url = url
	if spec.Redirect != "" {
		p.url = spec.Redirect
	}
	first := !p.navigated
	p.navigated = true
	p.mu.Unlock()
	if first {
		close(p.loaded)
	}
	return nil
}

// URL implements render.Page.
func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.url == "" {
		return "about:blank"
	}
	return p.url
}

func (p *Page) current() (PageSpec, error) {
	if p.isClosed() {
		return PageSpec{}, render.ErrPageClosed
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.navigated {
		return PageSpec{}, render.ErrNavigationRequired
	}
	return p.spec, nil
}

// Title implements render.Page.
func (p *Page) Title(ctx context.Context) (string, error) {
	spec, err := p.current()
	if err != nil {
		return "", err
	}
	if spec.EchoUserAgent {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.userAgent, nil
	}
	return spec.Title, nil
}

// Content implements render.Page.
func (p *Page) Content(ctx context.Context) (string, error) {
	spec, err := p.current()
	if err != nil {
		return "", err
	}
	if spec.HTML != "" {
		return spec.HTML, nil
	}
	title, _ := p.Title(ctx)
	var b strings.Builder
	fmt.Fprintf(&b, "<html><head><title>%s</title></head><body>", html.EscapeString(title))
	for _, l := range spec.Links {
		fmt.Fprintf(&b, `<a href="%s">%s</a>`, html.EscapeString(l), html.EscapeString(l))
	}
	b.WriteString("</body></html>")
	return b.String(), nil
}

// AnchorHrefs implements render.Page.
func (p *Page) AnchorHrefs(ctx context.Context) ([]string, error) {
	spec, err := p.current()
	if err != nil {
		return nil, err
	}
	if spec.LinksErr != nil {
		return nil, spec.LinksErr
	}
	return append([]string(nil), spec.Links...), nil
}

// Evaluate implements render.Page. Results come from PageSpec.Scripts.
func (p *Page) Evaluate(ctx context.Context, script string, res any) error {
	spec, err := p.current()
	if err != nil {
		return err
	}
	v, ok := spec.Scripts[script]
	if !ok {
		return render.ErrScriptUnsupported
	}
	if res == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, res)
}

// SetUserAgent implements render.Page.
func (p *Page) SetUserAgent(ctx context.Context, ua string) error {
	if p.isClosed() {
		return render.ErrPageClosed
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userAgent = ua
	return nil
}

// UserAgent returns the last value passed to SetUserAgent.
func (p *Page) UserAgent() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.userAgent
}

// NetworkIdle implements render.Page. It resolves once a navigation succeeds.
func (p *Page) NetworkIdle(ctx context.Context) <-chan error {
	ch := make(chan error, 1)
	go func() {
		select {
		case <-p.loaded:
			p.mu.Lock()
			err := p.spec.IdleErr
			p.mu.Unlock()
			ch <- err
		case <-p.done:
			ch <- render.ErrPageClosed
		case <-ctx.Done():
			ch <- ctx.Err()
		}
	}()
	return ch
}

// Close implements render.Page. Closing twice is a no-op.
func (p *Page) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
		p.site.release()
	})
	return nil
}
