package queue

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedscout/seedscout_api/internal/models"
	"github.com/seedscout/seedscout_api/internal/utils"
)

// fakeJobStore is an in-memory JobStore with the same claim semantics as
// the Postgres repository: oldest eligible waiting job wins, claiming
// flips it to active and bumps the attempt counter.
type fakeJobStore struct {
	mu     sync.Mutex
	nextID int
	jobs   []*models.ScrapeJob
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{}
}

func (f *fakeJobStore) Insert(job *models.ScrapeJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	job.ID = f.nextID
	stored := *job
	f.jobs = append(f.jobs, &stored)
	return nil
}

func (f *fakeJobStore) HasOpenJob(vendor string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, j := range f.jobs {
		if j.Vendor == vendor && !j.Terminal() {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeJobStore) ClaimNextWaiting(now time.Time) (*models.ScrapeJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, j := range f.jobs {
		if j.State == models.JobStateWaiting && !j.NextRunAt.After(now) {
			j.State = models.JobStateActive
			j.Attempts++
			claimed := *j
			return &claimed, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeJobStore) ReleaseClaim(id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j := f.byID(id)
	j.State = models.JobStateWaiting
	if j.Attempts > 0 {
		j.Attempts--
	}
	return nil
}

func (f *fakeJobStore) MarkCompleted(id, productsFound, quotesUpserted, skippedItems int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j := f.byID(id)
	j.State = models.JobStateCompleted
	j.ProductsFound = productsFound
	j.QuotesUpsert = quotesUpserted
	j.SkippedItems = skippedItems
	return nil
}

func (f *fakeJobStore) Reschedule(id int, nextRunAt time.Time, lastError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j := f.byID(id)
	j.State = models.JobStateWaiting
	j.NextRunAt = nextRunAt
	j.LastError = &lastError
	return nil
}

func (f *fakeJobStore) MarkFailed(id int, lastError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j := f.byID(id)
	j.State = models.JobStateFailed
	j.LastError = &lastError
	return nil
}

func (f *fakeJobStore) CountsByState() (*models.QueueStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &models.QueueStats{}
	for _, j := range f.jobs {
		switch j.State {
		case models.JobStateWaiting:
			stats.Waiting++
		case models.JobStateActive:
			stats.Active++
		case models.JobStateCompleted:
			stats.Completed++
		case models.JobStateFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

func (f *fakeJobStore) Recent(limit int) ([]models.ScrapeJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.ScrapeJob, 0, limit)
	for i := len(f.jobs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *f.jobs[i])
	}
	return out, nil
}

func (f *fakeJobStore) byID(id int) *models.ScrapeJob {
	for _, j := range f.jobs {
		if j.ID == id {
			return j
		}
	}
	panic("unknown job id")
}

func TestQueue_EnqueueDequeue(t *testing.T) {
	store := newFakeJobStore()
	q := New(store, 3, 30*time.Second)

	job, err := q.Enqueue("coastal", time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.JobStateWaiting, job.State)
	assert.Equal(t, 3, job.MaxAttempts)

	claimed, err := q.Dequeue(context.Background(), time.Second)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, job.ID, claimed.ID)
	assert.Equal(t, models.JobStateActive, claimed.State)
	assert.Equal(t, 1, claimed.Attempts)
}

func TestQueue_EnqueueDeduplicates(t *testing.T) {
	store := newFakeJobStore()
	q := New(store, 3, 30*time.Second)

	_, err := q.Enqueue("coastal", time.Now())
	require.NoError(t, err)

	_, err = q.Enqueue("coastal", time.Now())
	assert.ErrorIs(t, err, utils.ErrJobAlreadyQueued)

	// A different vendor is unaffected.
	_, err = q.Enqueue("greenleaf", time.Now())
	assert.NoError(t, err)
}

func TestQueue_EnqueueAllowedAfterTerminalState(t *testing.T) {
	store := newFakeJobStore()
	q := New(store, 3, 30*time.Second)

	job, err := q.Enqueue("coastal", time.Now())
	require.NoError(t, err)
	claimed, err := q.Dequeue(context.Background(), time.Second)
	require.NoError(t, err)
	require.NoError(t, q.Complete(claimed, Summary{ProductsFound: 5}))

	again, err := q.Enqueue("coastal", time.Now())
	require.NoError(t, err)
	assert.NotEqual(t, job.ID, again.ID)
}

func TestQueue_DequeueHonorsEligibilityTime(t *testing.T) {
	store := newFakeJobStore()
	q := New(store, 3, 30*time.Second)

	_, err := q.Enqueue("coastal", time.Now().Add(time.Hour))
	require.NoError(t, err)

	job, err := q.Dequeue(context.Background(), 50*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, job, "job scheduled in the future must not be claimed")
}

func TestQueue_DequeueRespectsContext(t *testing.T) {
	store := newFakeJobStore()
	q := New(store, 3, 30*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Dequeue(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestQueue_FailReschedulesWithBackoff(t *testing.T) {
	store := newFakeJobStore()
	q := New(store, 3, 30*time.Second)

	_, err := q.Enqueue("coastal", time.Now())
	require.NoError(t, err)
	job, err := q.Dequeue(context.Background(), time.Second)
	require.NoError(t, err)

	before := time.Now()
	retried, err := q.Fail(job, errors.New("fetch page 1: connection refused"))
	require.NoError(t, err)
	assert.True(t, retried)
	assert.Equal(t, models.JobStateWaiting, job.State)
	// Attempt 1 failed, so the delay doubles once from the base.
	assert.False(t, job.NextRunAt.Before(before.Add(Delay(30*time.Second, 1))))

	stored := store.byID(job.ID)
	require.NotNil(t, stored.LastError)
	assert.Equal(t, "fetch page 1: connection refused", *stored.LastError)
}

func TestQueue_FailTerminalAfterMaxAttempts(t *testing.T) {
	store := newFakeJobStore()
	q := New(store, 2, time.Millisecond)

	_, err := q.Enqueue("coastal", time.Now())
	require.NoError(t, err)

	// First attempt fails and is rescheduled.
	job, err := q.Dequeue(context.Background(), time.Second)
	require.NoError(t, err)
	retried, err := q.Fail(job, errors.New("boom"))
	require.NoError(t, err)
	require.True(t, retried)

	// Second attempt exhausts the budget.
	time.Sleep(5 * time.Millisecond)
	job, err = q.Dequeue(context.Background(), time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	require.Equal(t, 2, job.Attempts)

	retried, err = q.Fail(job, errors.New("boom again"))
	require.NoError(t, err)
	assert.False(t, retried)
	assert.Equal(t, models.JobStateFailed, job.State)

	stats, err := q.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 0, stats.Waiting)
}

func TestQueue_ReleaseGivesAttemptBack(t *testing.T) {
	store := newFakeJobStore()
	q := New(store, 2, 30*time.Second)

	_, err := q.Enqueue("coastal", time.Now())
	require.NoError(t, err)

	// Claim and release repeatedly: the retry budget must not erode.
	for i := 0; i < 5; i++ {
		job, err := q.Dequeue(context.Background(), time.Second)
		require.NoError(t, err)
		require.NotNil(t, job)
		assert.Equal(t, 1, job.Attempts)
		require.NoError(t, q.Release(job))
		assert.Equal(t, models.JobStateWaiting, job.State)
		assert.Equal(t, 0, job.Attempts)
	}

	// The job is still fully runnable afterwards.
	job, err := q.Dequeue(context.Background(), time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	require.NoError(t, q.Complete(job, Summary{ProductsFound: 1}))
	stats, err := q.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Completed)
}

func TestQueue_EnqueueWakesBlockedDequeue(t *testing.T) {
	store := newFakeJobStore()
	q := New(store, 3, 30*time.Second)

	type result struct {
		job *models.ScrapeJob
		err error
	}
	done := make(chan result, 1)
	go func() {
		job, err := q.Dequeue(context.Background(), 5*time.Second)
		done <- result{job, err}
	}()

	time.Sleep(20 * time.Millisecond)
	_, err := q.Enqueue("coastal", time.Now())
	require.NoError(t, err)

	select {
	case r := <-done:
		require.NoError(t, r.err)
		require.NotNil(t, r.job)
		assert.Equal(t, "coastal", r.job.Vendor)
	case <-time.After(2 * time.Second):
		t.Fatal("dequeue did not wake on enqueue")
	}
}
