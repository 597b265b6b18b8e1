package main

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/headless-crawler/pkg/executor"
	"github.com/Sriram-PR/headless-crawler/pkg/models"
	"github.com/Sriram-PR/headless-crawler/pkg/policy"
	"github.com/Sriram-PR/headless-crawler/pkg/storage"
	"github.com/Sriram-PR/headless-crawler/pkg/utils"
)

// recordResults wraps the result and error hooks of a resolved set so every
// outcome and task failure is also written to store. Successes are keyed by
// their final URL, failures by the requested one.
func recordResults(set policy.Set, store storage.ResultWriter, log *logrus.Entry) policy.Set {
	onResult, onError := set.OnResult, set.OnError

	set.OnResult = func(ctx context.Context, outcome models.ScrapeOutcome) (bool, error) {
		expand, err := onResult(ctx, outcome)
		status := models.ResultStatusSuccess
		if err == nil && !expand {
			status = models.ResultStatusGated
		}
		entry := &models.ResultDBEntry{
			Status:      status,
			FinalURL:    outcome.URL,
			LinkCount:   len(outcome.Links),
			Content:     outcome.Content,
			LastAttempt: time.Now(),
		}
		if errPut := store.PutResult(outcome.URL, entry); errPut != nil {
			log.WithField("url", outcome.URL).Errorf("Failed to store result: %v", errPut)
		}
		return expand, err
	}

	set.OnError = func(ctx context.Context, err error) {
		onError(ctx, err)

		// Policy failures outside a task have no link to record
		var taskErr *executor.TaskError
		if !errors.As(err, &taskErr) {
			return
		}
		link := taskErr.Link
		entry := &models.ResultDBEntry{
			Status:      models.ResultStatusFailure,
			OriginURL:   link.OriginURL,
			Depth:       link.LinkDepth,
			Ancestry:    link.Ancestry(),
			ErrorType:   utils.CategorizeError(err),
			Error:       err.Error(),
			LastAttempt: link.LastAttemptedAt,
		}
		if errPut := store.PutResult(link.LinkURL, entry); errPut != nil {
			log.WithField("url", link.LinkURL).Errorf("Failed to store failure: %v", errPut)
		}
	}
	return set
}
