// Package policy holds the pluggable decisions of a crawl: what content to
// extract, which links to follow, whether to expand a result, when a page is
// ready, how to order the frontier and how failures are reported.
package policy

import (
	"context"

	"github.com/Sriram-PR/headless-crawler/pkg/models"
	"github.com/Sriram-PR/headless-crawler/pkg/render"
)

// ExtractContentFunc produces the content value of a loaded page
type ExtractContentFunc func(ctx context.Context, page render.Page, requestedURL string) (any, error)

// FilterLinkFunc decides whether a discovered link is followed. history is
// a snapshot of the links attempted so far, in attempt order.
type FilterLinkFunc func(ctx context.Context, link models.SiteLink, history []models.SiteLink) (bool, error)

// ResultFunc receives every successful outcome. Returning false stops the
// links of that outcome from being expanded.
type ResultFunc func(ctx context.Context, outcome models.ScrapeOutcome) (bool, error)

// WaitForFunc arms a readiness waiter before navigation. The channel yields
// exactly one value.
type WaitForFunc func(ctx context.Context, page render.Page, requestedURL string) <-chan error

// SortQueuedLinksFunc returns the pending links in the order they should be
// dispatched. The result must be a permutation of pending.
type SortQueuedLinksFunc func(pending []models.SiteLink) ([]models.SiteLink, error)

// ErrorFunc is told about every task and policy failure
type ErrorFunc func(ctx context.Context, err error)

// PageFunc prepares a page before it navigates
type PageFunc func(ctx context.Context, page render.Page, requestedURL string) error

// Set is the full collection of hooks. Nil members are filled from the
// defaults by Resolve.
type Set struct {
	ExtractContent  ExtractContentFunc
	FilterLink      FilterLinkFunc
	OnResult        ResultFunc
	WaitFor         WaitForFunc
	SortQueuedLinks SortQueuedLinksFunc
	OnError         ErrorFunc
	OnPage          PageFunc // Optional; has no default
}

// Resolve returns s with every nil hook taken from defaults
func (s Set) Resolve(defaults Set) Set {
	if s.ExtractContent == nil {
		s.ExtractContent = defaults.ExtractContent
	}
	if s.FilterLink == nil {
		s.FilterLink = defaults.FilterLink
	}
	if s.OnResult == nil {
		s.OnResult = defaults.OnResult
	}
	if s.WaitFor == nil {
		s.WaitFor = defaults.WaitFor
	}
	if s.SortQueuedLinks == nil {
		s.SortQueuedLinks = defaults.SortQueuedLinks
	}
	if s.OnError == nil {
		s.OnError = defaults.OnError
	}
	if s.OnPage == nil {
		s.OnPage = defaults.OnPage
	}
	return s
}
