// Package history keeps the append-only record of every link a crawl attempted.
package history

import (
	"github.com/Sriram-PR/headless-crawler/pkg/models"
)

// Ledger is the ordered record of attempted links.
// It is not safe for concurrent use; the crawler's decision loop is its only writer.
type Ledger struct {
	entries []models.SiteLink
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Record appends link. It is the sole authority for "already attempted".
func (l *Ledger) Record(link models.SiteLink) {
	l.entries = append(l.entries, link)
}

// Contains reports whether url was attempted. Comparison is an exact string
// match on LinkURL with no normalization.
func (l *Ledger) Contains(url string) bool {
	_, ok := l.Lookup(url)
	return ok
}

// Lookup returns the recorded entry for url.
func (l *Ledger) Lookup(url string) (models.SiteLink, bool) {
	for _, e := range l.entries {
		if e.LinkURL == url {
			return e, true
		}
	}
	return models.SiteLink{}, false
}

// PathTo returns the URLs from the seed down to url, url itself last.
func (l *Ledger) PathTo(url string) ([]string, bool) {
	e, ok := l.Lookup(url)
	if !ok {
		return nil, false
	}
	return append(e.Ancestry(), e.LinkURL), true
}

// Snapshot copies the entries in attempt order.
func (l *Ledger) Snapshot() []models.SiteLink {
	out := make([]models.SiteLink, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of attempted links.
func (l *Ledger) Len() int { return len(l.entries) }
