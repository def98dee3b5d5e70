package queue

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/seedscout/seedscout_api/internal/models"
	"github.com/seedscout/seedscout_api/internal/utils"
)

// JobStore is the durable backing store for scrape jobs. Implemented by
// repository.ScrapeJobRepository; faked in tests.
type JobStore interface {
	Insert(job *models.ScrapeJob) error
	HasOpenJob(vendor string) (bool, error)
	ClaimNextWaiting(now time.Time) (*models.ScrapeJob, error)
	ReleaseClaim(id int) error
	MarkCompleted(id, productsFound, quotesUpserted, skippedItems int) error
	Reschedule(id int, nextRunAt time.Time, lastError string) error
	MarkFailed(id int, lastError string) error
	CountsByState() (*models.QueueStats, error)
	Recent(limit int) ([]models.ScrapeJob, error)
}

// Summary carries the result counts of a completed scrape run.
type Summary struct {
	ProductsFound  int
	QuotesUpserted int
	SkippedItems   int
}

// Queue is the durable scrape job queue. Jobs live in the store; the
// in-process notify channel only shortcuts the dequeue poll so a fresh
// enqueue is picked up without waiting out the full poll interval.
type Queue struct {
	store       JobStore
	maxAttempts int
	backoffBase time.Duration
	notify      chan struct{}
}

// New constructs a Queue with the given retry policy.
func New(store JobStore, maxAttempts int, backoffBase time.Duration) *Queue {
	return &Queue{
		store:       store,
		maxAttempts: maxAttempts,
		backoffBase: backoffBase,
		notify:      make(chan struct{}, 1),
	}
}

// Enqueue creates a waiting job for the vendor, eligible at runAt. A vendor
// with a job already waiting or active is not enqueued twice.
func (q *Queue) Enqueue(vendor string, runAt time.Time) (*models.ScrapeJob, error) {
	open, err := q.store.HasOpenJob(vendor)
	if err != nil {
		return nil, err
	}
	if open {
		return nil, utils.ErrJobAlreadyQueued
	}

	job := &models.ScrapeJob{
		Vendor:      vendor,
		State:       models.JobStateWaiting,
		MaxAttempts: q.maxAttempts,
		NextRunAt:   runAt,
	}
	if err := q.store.Insert(job); err != nil {
		return nil, err
	}

	// Wake up a blocked Dequeue, if any.
	select {
	case q.notify <- struct{}{}:
	default:
	}

	log.Info().Str("vendor", vendor).Int("job_id", job.ID).Time("run_at", runAt).Msg("Scrape job enqueued")
	return job, nil
}

// Dequeue claims the next eligible waiting job, blocking up to wait for one
// to become available. Returns (nil, nil) when the wait elapses with no
// eligible job; the caller loops and rechecks.
func (q *Queue) Dequeue(ctx context.Context, wait time.Duration) (*models.ScrapeJob, error) {
	deadline := time.NewTimer(wait)
	defer deadline.Stop()

	for {
		job, err := q.store.ClaimNextWaiting(time.Now())
		if err == nil {
			return job, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, nil
		case <-q.notify:
			// Re-check immediately; the new job may not be eligible yet.
		}
	}
}

// Release returns a claimed job to waiting without consuming a retry
// attempt. Claiming already counted the attempt, so the store gives it
// back; the job stays immediately eligible. Used when a worker gives a job
// up before it ever started, such as shutdown while the rate limiter holds
// it back.
func (q *Queue) Release(job *models.ScrapeJob) error {
	if err := q.store.ReleaseClaim(job.ID); err != nil {
		return err
	}
	job.State = models.JobStateWaiting
	if job.Attempts > 0 {
		job.Attempts--
	}
	log.Info().Str("vendor", job.Vendor).Int("job_id", job.ID).Msg("Scrape job released before start")
	return nil
}

// Complete finishes a job successfully with its result summary.
func (q *Queue) Complete(job *models.ScrapeJob, s Summary) error {
	job.State = models.JobStateCompleted
	job.ProductsFound = s.ProductsFound
	job.QuotesUpsert = s.QuotesUpserted
	job.SkippedItems = s.SkippedItems
	return q.store.MarkCompleted(job.ID, s.ProductsFound, s.QuotesUpserted, s.SkippedItems)
}

// Fail records a failed attempt. While the retry budget lasts, the job is
// rescheduled to waiting with an exponential backoff delay and Fail returns
// true; once spent, the job fails terminally and Fail returns false.
func (q *Queue) Fail(job *models.ScrapeJob, cause error) (retried bool, err error) {
	msg := cause.Error()
	if job.Attempts < job.MaxAttempts {
		delay := Delay(q.backoffBase, job.Attempts)
		next := time.Now().Add(delay)
		if err := q.store.Reschedule(job.ID, next, msg); err != nil {
			return false, err
		}
		job.State = models.JobStateWaiting
		job.NextRunAt = next
		log.Warn().
			Str("vendor", job.Vendor).
			Int("job_id", job.ID).
			Int("attempt", job.Attempts).
			Dur("backoff", delay).
			Str("error", msg).
			Msg("Scrape job failed, rescheduled")
		return true, nil
	}

	if err := q.store.MarkFailed(job.ID, msg); err != nil {
		return false, err
	}
	job.State = models.JobStateFailed
	log.Error().
		Str("vendor", job.Vendor).
		Int("job_id", job.ID).
		Int("attempts", job.Attempts).
		Str("error", msg).
		Msg("Scrape job failed terminally")
	return false, nil
}

// Stats returns job counts by state.
func (q *Queue) Stats() (*models.QueueStats, error) {
	return q.store.CountsByState()
}

// RecentJobs returns the most recently updated jobs.
func (q *Queue) RecentJobs(limit int) ([]models.ScrapeJob, error) {
	return q.store.Recent(limit)
}
