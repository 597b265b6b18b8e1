package models

import "time"

// SiteLink is one discovered edge in the crawl graph.
// LinkDepth always equals len(Path); construct links with NewSeedLink and Child.
type SiteLink struct {
	LinkURL         string     `json:"link_url"`
	OriginURL       string     `json:"origin_url,omitempty"` // Empty only for the seed
	LinkDepth       int        `json:"link_depth"`
	Path            []SiteLink `json:"path,omitempty"`              // Ancestors from the seed to the parent
	LastAttemptedAt time.Time  `json:"last_attempted_at,omitzero"` // Zero while only queued
}

// NewSeedLink returns the depth-0 link a crawl starts from.
func NewSeedLink(url string) SiteLink {
	return SiteLink{LinkURL: url}
}

// Child builds the link to url discovered on l's page.
// The returned Path is a fresh slice, so siblings never share backing storage.
func (l SiteLink) Child(url string) SiteLink {
	path := make([]SiteLink, len(l.Path), len(l.Path)+1)
	copy(path, l.Path)
	path = append(path, l)
	return SiteLink{
		LinkURL:   url,
		OriginURL: l.LinkURL,
		LinkDepth: l.LinkDepth + 1,
		Path:      path,
	}
}

// IsSeed reports whether l is the start link of a crawl.
func (l SiteLink) IsSeed() bool {
	return l.OriginURL == "" && l.LinkDepth == 0
}

// Attempted reports whether a task has been dispatched for l.
func (l SiteLink) Attempted() bool {
	return !l.LastAttemptedAt.IsZero()
}

// Ancestry lists the URLs in Path, seed first.
func (l SiteLink) Ancestry() []string {
	urls := make([]string, len(l.Path))
	for i, p := range l.Path {
		urls[i] = p.LinkURL
	}
	return urls
}

// ScrapeOutcome is the result of one successful task.
type ScrapeOutcome struct {
	URL     string   `json:"url"`     // Final address after redirects
	Content any      `json:"content"` // Produced by the extractor policy
	Links   []string `json:"links"`   // Deduplicated, first-seen order
}

// ResultDBEntry stores the outcome of one attempted link in the result store
type ResultDBEntry struct {
	Status      ResultStatus `json:"status"`
	FinalURL    string       `json:"final_url,omitempty"`
	OriginURL   string       `json:"origin_url,omitempty"`
	Depth       int          `json:"depth"`
	Ancestry    []string     `json:"ancestry,omitempty"`
	LinkCount   int          `json:"link_count"`
	Content     any          `json:"content,omitempty"`
	ErrorType   string       `json:"error_type,omitempty"` // Error category (on failure)
	Error       string       `json:"error,omitempty"`
	LastAttempt time.Time    `json:"last_attempt"`
}
