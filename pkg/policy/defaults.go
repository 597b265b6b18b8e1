package policy

import (
	"context"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/headless-crawler/pkg/config"
	"github.com/Sriram-PR/headless-crawler/pkg/models"
	"github.com/Sriram-PR/headless-crawler/pkg/render"
	"github.com/Sriram-PR/headless-crawler/pkg/utils"
)

// RobotsChecker answers robots.txt questions for the default filter
type RobotsChecker interface {
	Allowed(ctx context.Context, u *url.URL) bool
}

// TitleContent is the default content value
type TitleContent struct {
	Title string `json:"title"`
}

// Defaults returns the hooks used wherever the caller supplies none.
// robots may be nil, in which case robots.txt is not consulted.
func Defaults(cfg *config.CrawlConfig, robots RobotsChecker, logger *logrus.Entry) Set {
	if !cfg.RobotsEnabled() {
		robots = nil
	}
	return Set{
		ExtractContent:  ExtractTitle,
		FilterLink:      DepthRobotsFilter(cfg.EffectiveMaxLinkDepth(), robots, logger),
		OnResult:        LogResult(logger),
		WaitFor:         WaitForNetworkIdle,
		SortQueuedLinks: Identity,
		OnError:         LogError(logger),
	}
}

// ExtractTitle extracts the document title as TitleContent
func ExtractTitle(ctx context.Context, page render.Page, _ string) (any, error) {
	title, err := page.Title(ctx)
	if err != nil {
		return nil, err
	}
	return TitleContent{Title: title}, nil
}

// DepthRobotsFilter rejects links deeper than maxDepth and, when robots is
// non-nil, http(s) links disallowed by robots.txt. It does not deduplicate.
func DepthRobotsFilter(maxDepth int, robots RobotsChecker, logger *logrus.Entry) FilterLinkFunc {
	return func(ctx context.Context, link models.SiteLink, _ []models.SiteLink) (bool, error) {
		if link.LinkDepth > maxDepth {
			logger.WithField("url", link.LinkURL).Tracef("Skipping link: %v (%d > %d)", utils.ErrMaxDepthExceeded, link.LinkDepth, maxDepth)
			return false, nil
		}
		if robots == nil {
			return true, nil
		}
		u, err := url.Parse(link.LinkURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			// No robots.txt applies
			return true, nil
		}
		if !robots.Allowed(ctx, u) {
			logger.WithField("url", link.LinkURL).Debugf("Skipping link: %v", utils.ErrRobotsDisallowed)
			return false, nil
		}
		return true, nil
	}
}

// LogResult debug-logs every outcome and always allows expansion
func LogResult(logger *logrus.Entry) ResultFunc {
	return func(_ context.Context, outcome models.ScrapeOutcome) (bool, error) {
		logger.WithFields(logrus.Fields{
			"url":   outcome.URL,
			"links": len(outcome.Links),
		}).Debug("Scraped page")
		return true, nil
	}
}

// WaitForNetworkIdle waits until the page's network is almost idle
func WaitForNetworkIdle(ctx context.Context, page render.Page, _ string) <-chan error {
	return page.NetworkIdle(ctx)
}

// Identity keeps the pending order
func Identity(pending []models.SiteLink) ([]models.SiteLink, error) {
	return pending, nil
}

// LogError logs err with its category. It never fails.
func LogError(logger *logrus.Entry) ErrorFunc {
	return func(_ context.Context, err error) {
		logger.WithField("error_type", utils.CategorizeError(err)).Error(err)
	}
}
