package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/seedscout/seedscout_api/internal/models"
	"github.com/seedscout/seedscout_api/internal/queue"
	"github.com/seedscout/seedscout_api/internal/scraper"
	"github.com/seedscout/seedscout_api/internal/service"
	"github.com/seedscout/seedscout_api/internal/sse"
)

// Reconciler folds scraped records into the catalog. Implemented by
// service.ReconcileService.
type Reconciler interface {
	Reconcile(items []models.ScrapedProduct, vendor, runID string) (service.ReconcileSummary, error)
}

// ScrapeWorker pulls scrape jobs off the queue one at a time and runs them
// through the matching vendor adapter and reconciliation. Local
// concurrency is fixed at one job in flight; scaling out means running
// more worker processes, each still held to the shared rate limit.
type ScrapeWorker struct {
	queue       *queue.Queue
	registry    *scraper.Registry
	reconciler  Reconciler
	notifier    sse.ScrapeNotifier
	limiter     *SlidingWindowLimiter
	dequeueWait time.Duration
}

// NewScrapeWorker constructs a ScrapeWorker.
func NewScrapeWorker(
	q *queue.Queue,
	registry *scraper.Registry,
	reconciler Reconciler,
	notifier sse.ScrapeNotifier,
	limiter *SlidingWindowLimiter,
	dequeueWait time.Duration,
) *ScrapeWorker {
	return &ScrapeWorker{
		queue:       q,
		registry:    registry,
		reconciler:  reconciler,
		notifier:    notifier,
		limiter:     limiter,
		dequeueWait: dequeueWait,
	}
}

// Start runs the dequeue loop until the context is cancelled. There is no
// mid-scrape cancellation: a job already in flight completes or fails on
// its own terms, and cancellation is observed between jobs.
func (w *ScrapeWorker) Start(ctx context.Context) {
	log.Info().Dur("dequeue_wait", w.dequeueWait).Msg("Starting scrape worker")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Scrape worker stopped")
			return
		default:
		}

		job, err := w.queue.Dequeue(ctx, w.dequeueWait)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			log.Error().Err(err).Msg("Failed to dequeue scrape job")
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		if job == nil {
			continue
		}

		w.process(ctx, job)
	}
}

// process runs one claimed job to a terminal or rescheduled state.
func (w *ScrapeWorker) process(ctx context.Context, job *models.ScrapeJob) {
	// The job is claimed but may be held back: the rate limiter gates
	// actual scrape starts, not dequeues.
	if err := w.limiter.Wait(ctx); err != nil {
		// Shutdown while holding: the job never started, so give it back
		// without touching its retry budget.
		if relErr := w.queue.Release(job); relErr != nil {
			log.Error().Err(relErr).Int("job_id", job.ID).Msg("Failed to release held job")
		}
		return
	}

	runID := uuid.New().String()[:8]
	start := time.Now()
	log.Info().
		Str("vendor", job.Vendor).
		Int("job_id", job.ID).
		Str("run_id", runID).
		Int("attempt", job.Attempts).
		Msg("Scrape run started")
	w.notifier.NotifyStarted(job, runID)

	adapter, ok := w.registry.Get(job.Vendor)
	if !ok {
		w.fail(job, runID, fmt.Errorf("no adapter registered for vendor %q", job.Vendor))
		return
	}

	items, err := adapter.ScrapeAll(ctx)
	if err != nil {
		w.fail(job, runID, err)
		return
	}

	summary, err := w.reconciler.Reconcile(items, job.Vendor, runID)
	if err != nil {
		w.fail(job, runID, err)
		return
	}

	if err := w.queue.Complete(job, queue.Summary{
		ProductsFound:  summary.ProductsSeen,
		QuotesUpserted: summary.QuotesCreated + summary.QuotesUpdated,
		SkippedItems:   summary.SkippedItems,
	}); err != nil {
		log.Error().Err(err).Int("job_id", job.ID).Msg("Failed to mark job completed")
		return
	}

	log.Info().
		Str("vendor", job.Vendor).
		Int("job_id", job.ID).
		Str("run_id", runID).
		Int("products", summary.ProductsSeen).
		Int("quotes", summary.QuotesCreated+summary.QuotesUpdated).
		Int("skipped", summary.SkippedItems).
		Dur("duration", time.Since(start)).
		Msg("Scrape run completed")
	w.notifier.NotifyCompleted(job, runID)
}

// fail records the failed attempt and broadcasts it; the queue decides
// between reschedule and terminal failure.
func (w *ScrapeWorker) fail(job *models.ScrapeJob, runID string, cause error) {
	retried, err := w.queue.Fail(job, cause)
	if err != nil {
		log.Error().Err(err).Int("job_id", job.ID).Msg("Failed to record job failure")
		return
	}
	w.notifier.NotifyError(job, runID, cause, retried)
}
