package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"

	"github.com/Sriram-PR/headless-crawler/pkg/config"
)

const maxRobotsBytes = 512 << 10

// RobotsHandler fetches, parses and caches robots.txt per host.
// Concurrent lookups for an uncached host share one fetch.
type RobotsHandler struct {
	fetcher     *Fetcher
	rateLimiter *RateLimiter
	hostSem     *HostSemaphorePool
	cache       map[string]*robotstxt.RobotsData // scheme://host -> parsed data (nil = allow all)
	cacheMu     sync.Mutex
	inflight    singleflight.Group
	cfg         *config.CrawlConfig
	log         *logrus.Entry
}

// NewRobotsHandler creates a RobotsHandler
func NewRobotsHandler(fetcher *Fetcher, rateLimiter *RateLimiter, hostSem *HostSemaphorePool, cfg *config.CrawlConfig, log *logrus.Entry) *RobotsHandler {
	return &RobotsHandler{
		fetcher:     fetcher,
		rateLimiter: rateLimiter,
		hostSem:     hostSem,
		cache:       make(map[string]*robotstxt.RobotsData),
		cfg:         cfg,
		log:         log,
	}
}

// GetRobotsData returns the parsed robots.txt for targetURL's host.
// Returns nil when the file is missing, unreachable or unparsable; failures are cached too.
func (rh *RobotsHandler) GetRobotsData(ctx context.Context, targetURL *url.URL) *robotstxt.RobotsData {
	scheme := targetURL.Scheme
	if scheme != "http" && scheme != "https" {
		scheme = "https"
	}
	key := scheme + "://" + targetURL.Host

	rh.cacheMu.Lock()
	data, found := rh.cache[key]
	rh.cacheMu.Unlock()
	if found {
		return data
	}

	v, _, _ := rh.inflight.Do(key, func() (any, error) {
		rh.cacheMu.Lock()
		data, found := rh.cache[key]
		rh.cacheMu.Unlock()
		if found {
			return data, nil
		}
		data = rh.fetchRobots(ctx, scheme, targetURL.Host)
		rh.cacheMu.Lock()
		rh.cache[key] = data
		rh.cacheMu.Unlock()
		return data, nil
	})
	return v.(*robotstxt.RobotsData)
}

func (rh *RobotsHandler) fetchRobots(ctx context.Context, scheme, host string) *robotstxt.RobotsData {
	robotsURL := (&url.URL{Scheme: scheme, Host: host, Path: "/robots.txt"}).String()
	robotsLog := rh.log.WithField("robots_url", robotsURL)
	robotsLog.Info("Fetching robots.txt...")

	if err := rh.hostSem.Acquire(ctx, host); err != nil {
		robotsLog.Errorf("Error acquiring host semaphore: %v", err)
		return nil
	}
	defer rh.hostSem.Release(host)

	if err := rh.rateLimiter.ApplyDelay(ctx, host, rh.cfg.DelayPerHost); err != nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		robotsLog.Errorf("Error creating request: %v", err)
		return nil
	}
	if rh.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", rh.cfg.UserAgent)
	}

	resp, err := rh.fetcher.FetchWithRetry(ctx, req)
	rh.rateLimiter.UpdateLastRequestTime(host)
	if err != nil {
		drainAndClose(resp)
		robotsLog.Warnf("Fetching robots.txt failed, allowing all: %v", err)
		return nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		robotsLog.Errorf("Error reading body: %v", err)
		return nil
	}
	data, err := robotstxt.FromBytes(body)
	if err != nil {
		robotsLog.Errorf("Error parsing content: %v", err)
		return nil
	}
	robotsLog.Info("Successfully fetched and parsed robots.txt")
	return data
}

// TestAgent reports whether userAgent may fetch targetURL.
// Hosts without usable robots data allow everything.
func (rh *RobotsHandler) TestAgent(ctx context.Context, targetURL *url.URL, userAgent string) bool {
	data := rh.GetRobotsData(ctx, targetURL)
	if data == nil {
		return true
	}
	return data.TestAgent(targetURL.RequestURI(), userAgent)
}

// Allowed checks u against robots.txt for the configured user agent.
func (rh *RobotsHandler) Allowed(ctx context.Context, u *url.URL) bool {
	agent := rh.cfg.UserAgent
	if agent == "" {
		agent = "*"
	}
	return rh.TestAgent(ctx, u, agent)
}
