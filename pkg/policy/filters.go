package policy

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/Sriram-PR/headless-crawler/pkg/models"
	"github.com/Sriram-PR/headless-crawler/pkg/utils"
)

// NewScopeFilter accepts http(s) links on allowedDomain (any host when
// empty) whose path starts with allowedPathPrefix and matches none of
// disallowed.
func NewScopeFilter(allowedDomain, allowedPathPrefix string, disallowed []*regexp.Regexp) FilterLinkFunc {
	domain := strings.ToLower(allowedDomain)
	return func(_ context.Context, link models.SiteLink, _ []models.SiteLink) (bool, error) {
		u, err := url.Parse(link.LinkURL)
		if err != nil {
			return false, nil
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return false, nil
		}
		if domain != "" && strings.ToLower(u.Hostname()) != domain {
			return false, nil
		}
		path := u.Path
		if path == "" {
			path = "/"
		}
		if allowedPathPrefix != "" && !strings.HasPrefix(path, allowedPathPrefix) {
			return false, nil
		}
		if utils.MatchesAny(disallowed, path) {
			return false, nil
		}
		return true, nil
	}
}

// ChainFilters accepts a link only when every filter does. Evaluation
// stops at the first rejection or error.
func ChainFilters(filters ...FilterLinkFunc) FilterLinkFunc {
	return func(ctx context.Context, link models.SiteLink, history []models.SiteLink) (bool, error) {
		for _, f := range filters {
			if f == nil {
				continue
			}
			ok, err := f(ctx, link, history)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}
}
