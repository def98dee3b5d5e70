package models

import "time"

// JobState enumerates the scrape job lifecycle states.
type JobState string

const (
	JobStateWaiting   JobState = "waiting"
	JobStateActive    JobState = "active"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
)

// ScrapeJob is a unit of scrape work for one vendor. Transitions are
// monotonic: waiting -> active -> completed|failed. A failed job re-enters
// waiting only through the retry policy, bounded by MaxAttempts.
type ScrapeJob struct {
	ID          int      `db:"id" json:"id"`
	Vendor      string   `db:"vendor" json:"vendor"`
	State       JobState `db:"state" json:"state"`
	Attempts    int      `db:"attempts" json:"attempts"`
	MaxAttempts int      `db:"max_attempts" json:"maxAttempts"`

	// NextRunAt gates when a waiting job becomes eligible for dequeue;
	// the retry policy pushes it into the future on failure.
	NextRunAt time.Time `db:"next_run_at" json:"nextRunAt"`
	LastError *string   `db:"last_error" json:"lastError,omitempty"`

	// Result summary, populated on completion.
	ProductsFound int `db:"products_found" json:"productsFound"`
	QuotesUpsert  int `db:"quotes_upserted" json:"quotesUpserted"`
	SkippedItems  int `db:"skipped_items" json:"skippedItems"`

	StartedAt  *time.Time `db:"started_at" json:"startedAt,omitempty"`
	FinishedAt *time.Time `db:"finished_at" json:"finishedAt,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time  `db:"updated_at" json:"-"`
}

// Terminal reports whether the job has reached a final state.
func (j *ScrapeJob) Terminal() bool {
	return j.State == JobStateCompleted || j.State == JobStateFailed
}

// QueueStats aggregates job counts by state.
type QueueStats struct {
	Waiting   int `db:"waiting" json:"waiting"`
	Active    int `db:"active" json:"active"`
	Completed int `db:"completed" json:"completed"`
	Failed    int `db:"failed" json:"failed"`
}
