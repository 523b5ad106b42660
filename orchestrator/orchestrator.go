// Package orchestrator fans one search request out across every enabled
// source adapter and gathers the combined outcome. Sources are isolated
// from one another: a failure in one never cancels the others, and the
// batch result reports every per-source failure alongside the records that
// did arrive.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/mikandro/smartfamilytravelscout-sub001/models"
	"github.com/mikandro/smartfamilytravelscout-sub001/scraper"
	"github.com/mikandro/smartfamilytravelscout-sub001/utils"
)

// SourceFailure describes why one source produced no records.
type SourceFailure struct {
	Source      models.Source
	Kind        string // taxonomy kind, e.g. "rate_limited"
	Recoverable bool
	Message     string
}

// SourceStats summarizes one source's run.
type SourceStats struct {
	Records int
	Failed  bool
	Elapsed time.Duration
}

// BatchResult is the combined outcome of one orchestrated run.
type BatchResult struct {
	Records   []models.ListingRecord
	Failures  []SourceFailure
	PerSource map[models.Source]SourceStats
	Elapsed   time.Duration
}

// Succeeded reports how many sources returned records without error.
func (r *BatchResult) Succeeded() int {
	return len(r.PerSource) - len(r.Failures)
}

// Orchestrator runs a set of adapters concurrently against one request.
type Orchestrator struct {
	scrapers []scraper.Scraper
	pool     *utils.WorkerPool
	retry    *utils.RetryConfig
	logger   *utils.Logger
}

// New creates an orchestrator over the given adapters. maxConcurrency
// bounds how many adapters run browser sessions at once, rateLimitMs
// spaces out their launches, and maxRetries bounds attempts per source.
// Only recoverable failures are retried, with two exceptions: a daily rate
// limit will not clear before midnight, and an anti-bot challenge would
// only be hit again on an immediate retry.
func New(scrapers []scraper.Scraper, maxConcurrency, rateLimitMs, maxRetries int, logger *utils.Logger) *Orchestrator {
	return &Orchestrator{
		scrapers: scrapers,
		pool:     utils.NewWorkerPool(maxConcurrency, rateLimitMs),
		retry: &utils.RetryConfig{
			MaxAttempts: maxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
			Retryable: func(err error) bool {
				switch scraper.ErrorKind(err) {
				case "rate_limited", "anti_bot_challenge":
					return false
				}
				return scraper.IsRecoverable(err)
			},
		},
		logger: logger,
	}
}

// Run executes every adapter against the request and waits for all of them.
// The context is shared for deadlines only; one adapter failing does not
// cancel its siblings.
func (o *Orchestrator) Run(ctx context.Context, req models.SearchRequest) *BatchResult {
	start := time.Now()
	result := &BatchResult{
		PerSource: make(map[models.Source]SourceStats, len(o.scrapers)),
	}

	o.logger.Info("Dispatching %d sources for %s → %s", len(o.scrapers), req.Origin, req.Destination)

	var mu sync.Mutex
	for _, sc := range o.scrapers {
		sc := sc
		o.pool.Submit(func() {
			srcStart := time.Now()
			var records []models.ListingRecord
			err := o.retry.Do(ctx, string(sc.Name()), func() error {
				var fetchErr error
				records, fetchErr = sc.Fetch(ctx, req)
				return fetchErr
			})
			elapsed := time.Since(srcStart)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				scraper.LogScrapeError(o.logger, err)
				result.Failures = append(result.Failures, SourceFailure{
					Source:      sc.Name(),
					Kind:        scraper.ErrorKind(err),
					Recoverable: scraper.IsRecoverable(err),
					Message:     err.Error(),
				})
				result.PerSource[sc.Name()] = SourceStats{Failed: true, Elapsed: elapsed}
				return
			}

			result.Records = append(result.Records, records...)
			result.PerSource[sc.Name()] = SourceStats{Records: len(records), Elapsed: elapsed}
			o.logger.Info("[%s] Done in %s — %d records", sc.Name(), elapsed.Round(time.Millisecond), len(records))
		})
	}
	o.pool.Wait()

	result.Elapsed = time.Since(start)
	o.logger.Info("Batch complete in %s — %d records, %d/%d sources failed",
		result.Elapsed.Round(time.Millisecond), len(result.Records), len(result.Failures), len(o.scrapers))
	return result
}
