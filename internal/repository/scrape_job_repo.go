package repository

import (
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/seedscout/seedscout_api/internal/models"
)

// ScrapeJobRepository handles data access for the durable scrape job queue.
type ScrapeJobRepository struct {
	db *sqlx.DB
}

// NewScrapeJobRepository creates a new ScrapeJobRepository.
func NewScrapeJobRepository(db *sqlx.DB) *ScrapeJobRepository {
	return &ScrapeJobRepository{db: db}
}

// Insert creates a new waiting job for a vendor.
func (r *ScrapeJobRepository) Insert(job *models.ScrapeJob) error {
	const q = `
        INSERT INTO scrape_jobs (vendor, state, max_attempts, next_run_at)
        VALUES ($1, 'waiting', $2, $3)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRowx(q, job.Vendor, job.MaxAttempts, job.NextRunAt).
		Scan(&job.ID, &job.CreatedAt, &job.UpdatedAt)
}

// HasOpenJob reports whether the vendor already has a waiting or active job.
func (r *ScrapeJobRepository) HasOpenJob(vendor string) (bool, error) {
	const q = `SELECT COUNT(1) FROM scrape_jobs WHERE vendor = $1 AND state IN ('waiting', 'active')`
	var n int
	if err := r.db.Get(&n, q, vendor); err != nil {
		return false, err
	}
	return n > 0, nil
}

// ClaimNextWaiting atomically claims the oldest eligible waiting job and
// transitions it to active, bumping its attempt counter. Returns
// sql.ErrNoRows when no job is eligible. SKIP LOCKED keeps concurrent
// worker processes from claiming the same row.
func (r *ScrapeJobRepository) ClaimNextWaiting(now time.Time) (*models.ScrapeJob, error) {
	const q = `
        UPDATE scrape_jobs
        SET state = 'active', attempts = attempts + 1, started_at = $1, updated_at = $1
        WHERE id = (
            SELECT id FROM scrape_jobs
            WHERE state = 'waiting' AND next_run_at <= $1
            ORDER BY next_run_at
            LIMIT 1
            FOR UPDATE SKIP LOCKED
        )
        RETURNING *`
	var job models.ScrapeJob
	if err := r.db.Get(&job, q, now); err != nil {
		return nil, err
	}
	return &job, nil
}

// ReleaseClaim undoes a claim for a job that never started: back to
// waiting with the attempt the claim counted given back. started_at is
// cleared so the attempt leaves no trace.
func (r *ScrapeJobRepository) ReleaseClaim(id int) error {
	const q = `
        UPDATE scrape_jobs
        SET state = 'waiting', attempts = GREATEST(attempts - 1, 0),
            started_at = NULL, updated_at = NOW()
        WHERE id = $1 AND state = 'active'`
	_, err := r.db.Exec(q, id)
	return err
}

// MarkCompleted finishes a job successfully with its result summary.
func (r *ScrapeJobRepository) MarkCompleted(id, productsFound, quotesUpserted, skippedItems int) error {
	const q = `
        UPDATE scrape_jobs
        SET state = 'completed', products_found = $2, quotes_upserted = $3,
            skipped_items = $4, last_error = NULL, finished_at = NOW(), updated_at = NOW()
        WHERE id = $1 AND state = 'active'`
	_, err := r.db.Exec(q, id, productsFound, quotesUpserted, skippedItems)
	return err
}

// Reschedule moves a failed attempt back to waiting with a future
// next_run_at, per the retry policy.
func (r *ScrapeJobRepository) Reschedule(id int, nextRunAt time.Time, lastError string) error {
	const q = `
        UPDATE scrape_jobs
        SET state = 'waiting', next_run_at = $2, last_error = $3, updated_at = NOW()
        WHERE id = $1 AND state = 'active'`
	_, err := r.db.Exec(q, id, nextRunAt, lastError)
	return err
}

// MarkFailed finishes a job terminally after its retry budget is spent.
func (r *ScrapeJobRepository) MarkFailed(id int, lastError string) error {
	const q = `
        UPDATE scrape_jobs
        SET state = 'failed', last_error = $2, finished_at = NOW(), updated_at = NOW()
        WHERE id = $1 AND state = 'active'`
	_, err := r.db.Exec(q, id, lastError)
	return err
}

// CountsByState returns job counts grouped by lifecycle state.
func (r *ScrapeJobRepository) CountsByState() (*models.QueueStats, error) {
	const q = `
        SELECT
            COUNT(1) FILTER (WHERE state = 'waiting')   AS waiting,
            COUNT(1) FILTER (WHERE state = 'active')    AS active,
            COUNT(1) FILTER (WHERE state = 'completed') AS completed,
            COUNT(1) FILTER (WHERE state = 'failed')    AS failed
        FROM scrape_jobs`
	var stats models.QueueStats
	if err := r.db.Get(&stats, q); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Recent returns the most recently updated jobs, newest first.
func (r *ScrapeJobRepository) Recent(limit int) ([]models.ScrapeJob, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `SELECT * FROM scrape_jobs ORDER BY updated_at DESC LIMIT $1`
	var jobs []models.ScrapeJob
	if err := r.db.Select(&jobs, q, limit); err != nil {
		return nil, err
	}
	return jobs, nil
}
