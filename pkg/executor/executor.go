// Package executor runs one crawl task: it opens a page, navigates it,
// waits for readiness and collects content and links.
package executor

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/headless-crawler/pkg/models"
	"github.com/Sriram-PR/headless-crawler/pkg/policy"
	"github.com/Sriram-PR/headless-crawler/pkg/render"
	"github.com/Sriram-PR/headless-crawler/pkg/utils"
)

// TaskError is the failure of the task for Link. Err wraps one of
// utils.ErrNavigation, utils.ErrExtraction or utils.ErrPolicy.
type TaskError struct {
	Link models.SiteLink
	Err  error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s (depth %d): %v", e.Link.LinkURL, e.Link.LinkDepth, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }

// Executor runs tasks against a shared browser. Safe for concurrent use.
type Executor struct {
	browser  render.Browser
	policies policy.Set // Resolved; every hook except OnPage is non-nil
	log      *logrus.Entry
}

// New creates an Executor. policies must already be resolved against the
// defaults.
func New(browser render.Browser, policies policy.Set, log *logrus.Entry) *Executor {
	return &Executor{browser: browser, policies: policies, log: log}
}

// Execute scrapes link. Every failure, including a recovered panic, is
// returned as a *TaskError. The page is closed on every path.
func (e *Executor) Execute(ctx context.Context, link models.SiteLink) (outcome models.ScrapeOutcome, err error) {
	taskLog := e.log.WithFields(logrus.Fields{"url": link.LinkURL, "depth": link.LinkDepth})

	defer func() {
		if r := recover(); r != nil {
			taskLog.Errorf("PANIC during task: %v\n%s", r, string(debug.Stack()))
			outcome = models.ScrapeOutcome{}
			err = &TaskError{Link: link, Err: fmt.Errorf("%w: %w: %v", utils.ErrExtraction, utils.ErrPanic, r)}
		}
	}()

	fail := func(sentinel error, step string, cause error) (models.ScrapeOutcome, error) {
		taskLog.Debugf("Task failed at %s: %v", step, cause)
		return models.ScrapeOutcome{}, &TaskError{Link: link, Err: fmt.Errorf("%w: %s: %w", sentinel, step, cause)}
	}

	page, err := e.browser.NewPage(ctx)
	if err != nil {
		return fail(utils.ErrNavigation, "opening page", fmt.Errorf("%w: %w", utils.ErrPageAcquire, err))
	}
	defer page.Close()

	if e.policies.OnPage != nil {
		if err := e.policies.OnPage(ctx, page, link.LinkURL); err != nil {
			return fail(utils.ErrPolicy, "onPage hook", err)
		}
	}

	// The waiter must observe the navigation, so it is armed first
	waitCtx, cancelWait := context.WithCancel(ctx)
	defer cancelWait()
	ready := e.policies.WaitFor(waitCtx, page, link.LinkURL)

	if err := page.Navigate(ctx, link.LinkURL); err != nil {
		return fail(utils.ErrNavigation, "navigating", err)
	}

	if ready != nil {
		select {
		case err := <-ready:
			if err != nil {
				return fail(utils.ErrExtraction, "waiting for page", err)
			}
		case <-ctx.Done():
			return fail(utils.ErrExtraction, "waiting for page", ctx.Err())
		}
	}

	hrefs, err := page.AnchorHrefs(ctx)
	if err != nil {
		return fail(utils.ErrExtraction, "collecting links", err)
	}

	content, err := e.policies.ExtractContent(ctx, page, link.LinkURL)
	if err != nil {
		return fail(utils.ErrExtraction, "extracting content", err)
	}

	finalURL := page.URL()
	if finalURL == "" {
		finalURL = link.LinkURL
	}
	outcome = models.ScrapeOutcome{
		URL:     finalURL,
		Content: content,
		Links:   UniqueLinks(hrefs),
	}
	taskLog.Debugf("Task finished with %d links", len(outcome.Links))
	return outcome, nil
}

// UniqueLinks drops empty and repeated hrefs, keeping first-seen order
func UniqueLinks(hrefs []string) []string {
	seen := make(map[string]struct{}, len(hrefs))
	links := make([]string, 0, len(hrefs))
	for _, h := range hrefs {
		if h == "" {
			continue
		}
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		links = append(links, h)
	}
	return links
}
