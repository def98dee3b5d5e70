package scheduler

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedscout/seedscout_api/internal/models"
	"github.com/seedscout/seedscout_api/internal/queue"
	"github.com/seedscout/seedscout_api/internal/scraper"
	"github.com/seedscout/seedscout_api/internal/utils"
)

type memJobStore struct {
	nextID int
	jobs   []*models.ScrapeJob
}

func (m *memJobStore) Insert(job *models.ScrapeJob) error {
	m.nextID++
	job.ID = m.nextID
	stored := *job
	m.jobs = append(m.jobs, &stored)
	return nil
}

func (m *memJobStore) HasOpenJob(vendor string) (bool, error) {
	for _, j := range m.jobs {
		if j.Vendor == vendor && !j.Terminal() {
			return true, nil
		}
	}
	return false, nil
}

func (m *memJobStore) ClaimNextWaiting(now time.Time) (*models.ScrapeJob, error) {
	for _, j := range m.jobs {
		if j.State == models.JobStateWaiting && !j.NextRunAt.After(now) {
			j.State = models.JobStateActive
			j.Attempts++
			claimed := *j
			return &claimed, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memJobStore) ReleaseClaim(int) error { return nil }
func (m *memJobStore) MarkCompleted(int, int, int, int) error { return nil }
func (m *memJobStore) Reschedule(int, time.Time, string) error { return nil }
func (m *memJobStore) MarkFailed(int, string) error { return nil }
func (m *memJobStore) CountsByState() (*models.QueueStats, error) { return &models.QueueStats{}, nil }
func (m *memJobStore) Recent(int) ([]models.ScrapeJob, error) { return nil, nil }

type stubAdapter struct{ vendor string }

func (s *stubAdapter) Vendor() string { return s.vendor }
func (s *stubAdapter) ScrapeAll(context.Context) ([]models.ScrapedProduct, error) {
	return nil, nil
}

func newTestScheduler(store *memJobStore, vendors ...string) *Scheduler {
	registry := scraper.NewRegistry()
	for _, v := range vendors {
		registry.Register(&stubAdapter{vendor: v})
	}
	q := queue.New(store, 3, 30*time.Second)
	return New(q, registry, "0 2 * * *", 5*time.Second)
}

func TestRunCycle_EnqueuesEveryVendorStaggered(t *testing.T) {
	store := &memJobStore{}
	s := newTestScheduler(store, "coastal", "greenleaf", "northseed")

	s.runCycle()

	require.Len(t, store.jobs, 3)
	// Vendors enqueue in sorted order with spaced eligibility times.
	assert.Equal(t, "coastal", store.jobs[0].Vendor)
	assert.Equal(t, "greenleaf", store.jobs[1].Vendor)
	assert.Equal(t, "northseed", store.jobs[2].Vendor)
	gap := store.jobs[1].NextRunAt.Sub(store.jobs[0].NextRunAt)
	assert.Equal(t, 5*time.Second, gap)
}

func TestRunCycle_SkipsAlreadyQueuedVendor(t *testing.T) {
	store := &memJobStore{}
	s := newTestScheduler(store, "coastal", "greenleaf")

	s.runCycle()
	s.runCycle()

	assert.Len(t, store.jobs, 2, "a vendor with an open job is not enqueued again")
}

func TestTriggerVendor(t *testing.T) {
	store := &memJobStore{}
	s := newTestScheduler(store, "coastal")

	job, err := s.TriggerVendor("coastal")
	require.NoError(t, err)
	assert.Equal(t, "coastal", job.Vendor)
	assert.Equal(t, models.JobStateWaiting, job.State)

	_, err = s.TriggerVendor("coastal")
	assert.ErrorIs(t, err, utils.ErrJobAlreadyQueued)

	_, err = s.TriggerVendor("nosuchbank")
	assert.ErrorIs(t, err, utils.ErrVendorUnknown)
}

func TestStart_RejectsInvalidCronSpec(t *testing.T) {
	store := &memJobStore{}
	s := newTestScheduler(store, "coastal")
	s.cronSpec = "not a cron spec"

	assert.Error(t, s.Start())
}
