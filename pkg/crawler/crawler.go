package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/headless-crawler/pkg/config"
	"github.com/Sriram-PR/headless-crawler/pkg/executor"
	"github.com/Sriram-PR/headless-crawler/pkg/history"
	"github.com/Sriram-PR/headless-crawler/pkg/models"
	"github.com/Sriram-PR/headless-crawler/pkg/policy"
	"github.com/Sriram-PR/headless-crawler/pkg/queue"
	"github.com/Sriram-PR/headless-crawler/pkg/render"
	"github.com/Sriram-PR/headless-crawler/pkg/utils"
)

// Options contains optional parameters for NewCrawler
type Options struct {
	// Robots is consulted by the default filter. Nil disables robots checks.
	Robots policy.RobotsChecker
	// Now stamps LastAttemptedAt. Defaults to time.Now.
	Now func() time.Time
}

// Crawler traverses a link graph from a start address through a shared
// rendering surface
type Crawler struct {
	browser  render.Browser
	cfg      *config.CrawlConfig
	policies policy.Set // Resolved against the defaults
	exec     *executor.Executor
	now      func() time.Time
	log      *logrus.Entry
}

// NewCrawler validates cfg (nil means all defaults) and resolves hooks over
// the default policies.
func NewCrawler(browser render.Browser, cfg *config.CrawlConfig, hooks policy.Set, logger *logrus.Entry, opts *Options) (*Crawler, error) {
	if browser == nil {
		return nil, errors.New("crawler requires a browser")
	}
	if cfg == nil {
		cfg = &config.CrawlConfig{}
	}
	warnings, err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		logger.Warn(w)
	}
	if opts == nil {
		opts = &Options{}
	}

	c := &Crawler{
		browser:  browser,
		cfg:      cfg,
		policies: hooks.Resolve(policy.Defaults(cfg, opts.Robots, logger)),
		now:      opts.Now,
		log:      logger,
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.exec = executor.New(browser, c.policies, logger)
	return c, nil
}

// Crawl runs a crawl from startURL and blocks until it drains
func (c *Crawler) Crawl(ctx context.Context, startURL string) error {
	run, err := c.Start(ctx, startURL)
	if err != nil {
		return err
	}
	return run.Wait()
}

// Scrape fetches a single page without touching any frontier or history.
// Failures are returned, not reported through OnError.
func (c *Crawler) Scrape(ctx context.Context, rawURL string) (models.ScrapeOutcome, error) {
	if err := validateStartURL(rawURL); err != nil {
		return models.ScrapeOutcome{}, err
	}
	return c.exec.Execute(ctx, models.NewSeedLink(rawURL))
}

// Start seeds a new crawl from startURL and runs it in the background.
// Cancelling ctx stops dispatching, discards pending links and lets
// in-flight tasks finish.
func (c *Crawler) Start(ctx context.Context, startURL string) (*Run, error) {
	if err := validateStartURL(startURL); err != nil {
		return nil, err
	}

	crawlID := uuid.NewString()
	runLog := c.log.WithField("crawl_id", crawlID)

	frontier := queue.NewFrontier(runLog)
	frontier.Push(models.NewSeedLink(startURL))
	run := newRun(crawlID)
	run.setStats(Stats{Pending: 1})

	l := &loop{
		c:        c,
		handle:   run,
		exec:     executor.New(c.browser, c.policies, runLog),
		frontier: frontier,
		ledger:   history.NewLedger(),
		results:  make(chan completion, c.cfg.Concurrency),
		log:      runLog,
	}
	runLog.WithFields(logrus.Fields{"start_url": startURL, "concurrency": c.cfg.Concurrency}).Info("Crawl starting")
	go l.run(ctx)
	return run, nil
}

func validateStartURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: invalid start URL '%s': %w", utils.ErrParsing, rawURL, err)
	}
	if !u.IsAbs() {
		return fmt.Errorf("%w: start URL '%s' must be absolute", utils.ErrParsing, rawURL)
	}
	return nil
}

// Stats counts the work of one crawl
type Stats struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Gated     int `json:"gated"`   // Succeeded but expansion was vetoed
	Pending   int `json:"pending"` // Queued, not yet attempted
	InFlight  int `json:"in_flight"`
	Dropped   int `json:"dropped"` // Pending links discarded on cancellation
}

// Run is the handle of a started crawl
type Run struct {
	id   string
	done chan struct{}

	mu      sync.Mutex
	state   models.CrawlState
	stats   Stats
	history []models.SiteLink
	err     error
}

func newRun(id string) *Run {
	return &Run{id: id, done: make(chan struct{}), state: models.CrawlStateSeeded}
}

// ID is the crawl id attached to every log line of the run
func (r *Run) ID() string { return r.id }

// Done is closed exactly once, when the crawl drains
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the crawl drains. It returns the context error if the
// crawl was cancelled and nil otherwise.
func (r *Run) Wait() error {
	<-r.done
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// State returns the current lifecycle state
func (r *Run) State() models.CrawlState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Stats returns a copy of the current counters
func (r *Run) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// History returns the attempted links in attempt order. It is empty until
// Done is closed.
func (r *Run) History() []models.SiteLink {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.SiteLink(nil), r.history...)
}

func (r *Run) setState(s models.CrawlState) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

func (r *Run) setStats(s Stats) {
	r.mu.Lock()
	r.stats = s
	r.mu.Unlock()
}

func (r *Run) finish(history []models.SiteLink, err error) {
	r.mu.Lock()
	r.state = models.CrawlStateDrained
	r.history = history
	r.err = err
	r.mu.Unlock()
	close(r.done)
}
