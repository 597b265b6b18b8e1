package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/headless-crawler/pkg/executor"
	"github.com/Sriram-PR/headless-crawler/pkg/history"
	"github.com/Sriram-PR/headless-crawler/pkg/models"
	"github.com/Sriram-PR/headless-crawler/pkg/queue"
	"github.com/Sriram-PR/headless-crawler/pkg/utils"
)

// completion is what a task goroutine reports back to the loop
type completion struct {
	link    models.SiteLink
	outcome models.ScrapeOutcome
	err     error
}

// loop is the single decision point of one crawl. Only its goroutine
// touches frontier, ledger and stats.
type loop struct {
	c        *Crawler
	handle   *Run
	exec     *executor.Executor
	frontier *queue.Frontier
	ledger   *history.Ledger
	results  chan completion
	log      *logrus.Entry

	stats     Stats
	inFlight  int
	sorted    bool // Frontier order is current with the sort policy
	cancelled bool
}

func (l *loop) run(ctx context.Context) {
	start := time.Now()
	l.handle.setState(models.CrawlStateRunning)

	progressDone := make(chan struct{})
	go l.reportProgress(progressDone)

	ctxDone := ctx.Done()
	for {
		if l.cancelled && l.frontier.Len() > 0 {
			dropped := l.frontier.Drain()
			l.stats.Dropped += len(dropped)
			l.log.Warnf("Crawl cancelled, discarded %d pending links", len(dropped))
		}
		l.dispatch(ctx)
		l.publish()

		if l.inFlight == 0 && l.frontier.Len() == 0 {
			break
		}

		select {
		case res := <-l.results:
			l.inFlight--
			l.complete(ctx, res)
		case <-ctxDone:
			ctxDone = nil
			l.cancelled = true
			l.log.Warnf("Crawl context done: %v", ctx.Err())
		}
	}

	close(progressDone)
	var err error
	if l.cancelled {
		err = ctx.Err()
	}
	l.logSummary(time.Since(start))
	l.handle.finish(l.ledger.Snapshot(), err)
}

// dispatch starts tasks while slots are free
func (l *loop) dispatch(ctx context.Context) {
	if l.inFlight >= l.c.cfg.Concurrency || l.frontier.Len() == 0 {
		return
	}
	if !l.sorted {
		l.sortFrontier(ctx)
		l.sorted = true
	}
	for l.inFlight < l.c.cfg.Concurrency {
		link, ok := l.frontier.Pop()
		if !ok {
			return
		}
		link.LastAttemptedAt = l.c.now()
		// Recorded before the task starts so no later completion can admit it again
		l.ledger.Record(link)
		l.inFlight++
		l.stats.Attempted++

		go func(link models.SiteLink) {
			outcome, err := l.exec.Execute(ctx, link)
			l.results <- completion{link: link, outcome: outcome, err: err}
		}(link)
	}
}

// sortFrontier hands the pending set to the sort policy. Any failure keeps
// the current order.
func (l *loop) sortFrontier(ctx context.Context) {
	pending := l.frontier.Pending()
	var ordered []models.SiteLink
	err := guard(func() error {
		var errSort error
		ordered, errSort = l.c.policies.SortQueuedLinks(pending)
		return errSort
	})
	if err == nil {
		err = l.frontier.Reorder(ordered)
	}
	if err != nil {
		l.report(ctx, fmt.Errorf("%w: sortQueuedLinks: %w", utils.ErrPolicy, err))
	}
}

// complete handles one finished task: the result gate, then filtering and
// admission of the discovered links.
func (l *loop) complete(ctx context.Context, res completion) {
	taskLog := l.log.WithFields(logrus.Fields{"url": res.link.LinkURL, "depth": res.link.LinkDepth})
	if ctx.Err() != nil {
		// The completion can win the race against ctx.Done in run's select
		l.cancelled = true
	}

	if res.err != nil {
		l.stats.Failed++
		if l.cancelled && (errors.Is(res.err, context.Canceled) || errors.Is(res.err, context.DeadlineExceeded)) {
			taskLog.Debugf("Task aborted by cancellation: %v", res.err)
			return
		}
		if path, ok := l.ledger.PathTo(res.link.LinkURL); ok {
			taskLog.WithField("path", strings.Join(path, " > ")).Debug("Task failed")
		}
		l.report(ctx, res.err)
		return
	}
	l.stats.Succeeded++

	var expand bool
	err := guard(func() error {
		var errResult error
		expand, errResult = l.c.policies.OnResult(ctx, res.outcome)
		return errResult
	})
	if err != nil {
		l.report(ctx, fmt.Errorf("%w: onResult %s: %w", utils.ErrPolicy, res.link.LinkURL, err))
		expand = false
	}
	if !expand {
		l.stats.Gated++
		taskLog.Debug("Expansion halted by result gate")
		return
	}
	if l.cancelled {
		return
	}

	snapshot := l.ledger.Snapshot()
	admitted := 0
	for _, linkURL := range res.outcome.Links {
		candidate := res.link.Child(linkURL)
		var ok bool
		err := guard(func() error {
			var errFilter error
			ok, errFilter = l.c.policies.FilterLink(ctx, candidate, snapshot)
			return errFilter
		})
		if err != nil {
			l.report(ctx, fmt.Errorf("%w: filterLink %s: %w", utils.ErrPolicy, linkURL, err))
			continue
		}
		if !ok || l.ledger.Contains(linkURL) || l.frontier.Contains(linkURL) {
			continue
		}
		l.frontier.Push(candidate)
		admitted++
	}
	if admitted > 0 {
		l.sorted = false
	}
	taskLog.Debugf("Admitted %d of %d discovered links", admitted, len(res.outcome.Links))
}

// report hands err to the error policy, which must not take the loop down
func (l *loop) report(ctx context.Context, err error) {
	if errHook := guard(func() error {
		l.c.policies.OnError(ctx, err)
		return nil
	}); errHook != nil {
		l.log.WithField("error_type", utils.CategorizeError(err)).Errorf("Error hook failed (%v) while reporting: %v", errHook, err)
	}
}

// guard runs fn, turning a panic into an ErrPanic error
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", utils.ErrPanic, r)
		}
	}()
	return fn()
}

func (l *loop) publish() {
	l.stats.Pending = l.frontier.Len()
	l.stats.InFlight = l.inFlight
	l.handle.setStats(l.stats)
}

func (l *loop) reportProgress(done <-chan struct{}) {
	ticker := time.NewTicker(l.c.cfg.ProgressInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s := l.handle.Stats()
			l.log.WithFields(logrus.Fields{
				"attempted": s.Attempted,
				"succeeded": s.Succeeded,
				"failed":    s.Failed,
				"pending":   s.Pending,
				"in_flight": s.InFlight,
			}).Info("Crawl Progress")
		}
	}
}

func (l *loop) logSummary(duration time.Duration) {
	s := l.stats
	l.log.Info("========================================================================")
	l.log.Info("CRAWL FINISHED")
	l.log.Infof("Duration:         %v", duration)
	l.log.Infof("Final Stats: Attempted: %d, Succeeded: %d, Failed: %d, Gated: %d, Dropped: %d",
		s.Attempted, s.Succeeded, s.Failed, s.Gated, s.Dropped)
	l.log.Info("========================================================================")
}
