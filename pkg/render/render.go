// Package render defines the rendering surface the crawler drives: a shared
// Browser handing out exclusively owned Pages.
package render

import (
	"context"
	"errors"
)

var (
	ErrPageClosed         = errors.New("page is closed")
	ErrScriptUnsupported  = errors.New("script evaluation not supported by this renderer")
	ErrBrowserClosed      = errors.New("browser is closed")
	ErrNavigationRequired = errors.New("page has not navigated yet")
)

// Browser is shared by every task of a crawl.
type Browser interface {
	// NewPage opens a page owned by the caller until Close.
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is one tab (or document) owned by a single task.
type Page interface {
	// Navigate loads url, following redirects.
	Navigate(ctx context.Context, url string) error
	// URL is the address of the loaded document after redirects.
	URL() string
	Title(ctx context.Context) (string, error)
	// Content returns the serialized document HTML.
	Content(ctx context.Context) (string, error)
	// AnchorHrefs returns the resolved href of every anchor, in document order.
	AnchorHrefs(ctx context.Context) ([]string, error)
	// Evaluate runs script in the page and decodes its result into res.
	Evaluate(ctx context.Context, script string, res any) error
	SetUserAgent(ctx context.Context, ua string) error
	// NetworkIdle arms a waiter for the page reaching network idle. It may be
	// called before Navigate. The channel yields exactly one value.
	NetworkIdle(ctx context.Context) <-chan error
	Close() error
}
