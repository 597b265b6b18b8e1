package policy

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/headless-crawler/pkg/config"
	"github.com/Sriram-PR/headless-crawler/pkg/render"
	"github.com/Sriram-PR/headless-crawler/pkg/utils"
)

// UserAgentHook sets ua on every page before it navigates
func UserAgentHook(ua string) PageFunc {
	return func(ctx context.Context, page render.Page, _ string) error {
		return page.SetUserAgent(ctx, ua)
	}
}

// FromConfig builds the hooks a validated config asks for on top of the
// defaults: the configured extractor and, when scope is set, a scope filter
// checked ahead of the default filter.
func FromConfig(cfg *config.CrawlConfig, robots RobotsChecker, logger *logrus.Entry) (Set, error) {
	defaults := Defaults(cfg, robots, logger)
	set := Set{}

	if cfg.Extract == config.ExtractMarkdown {
		set.ExtractContent = MarkdownExtractor(cfg.ContentSelector)
	}

	if cfg.HasScope() {
		patterns, err := utils.CompileRegexPatterns(cfg.DisallowedPathPatterns)
		if err != nil {
			return Set{}, fmt.Errorf("building scope filter: %w", err)
		}
		set.FilterLink = ChainFilters(
			NewScopeFilter(cfg.AllowedDomain, cfg.AllowedPathPrefix, patterns),
			defaults.FilterLink,
		)
	}
	return set.Resolve(defaults), nil
}
