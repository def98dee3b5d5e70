package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/seedscout/seedscout_api/internal/models"
	"github.com/seedscout/seedscout_api/internal/queue"
	"github.com/seedscout/seedscout_api/internal/scraper"
	"github.com/seedscout/seedscout_api/internal/utils"
)

// Scheduler fires the daily scrape cycle and accepts on-demand triggers.
// It is a pure timer: it enqueues jobs and remembers nothing beyond when
// it last fired; outcomes are the queue's business.
type Scheduler struct {
	queue    *queue.Queue
	registry *scraper.Registry
	cronSpec string
	stagger  time.Duration
	cron     *cron.Cron
}

// New constructs a Scheduler that enqueues one job per registered vendor
// on the given cron spec, spacing enqueues by stagger so the cycle does
// not burst the worker's rate limiter.
func New(q *queue.Queue, registry *scraper.Registry, cronSpec string, stagger time.Duration) *Scheduler {
	return &Scheduler{
		queue:    q,
		registry: registry,
		cronSpec: cronSpec,
		stagger:  stagger,
		cron:     cron.New(),
	}
}

// Start registers the cron entry and starts the timer. Returns an error
// for an invalid cron spec.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cronSpec, s.runCycle); err != nil {
		return err
	}
	s.cron.Start()
	log.Info().Str("cron", s.cronSpec).Dur("stagger", s.stagger).Msg("Scheduler started")
	return nil
}

// Stop halts the cron timer. Jobs already enqueued are unaffected.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Info().Msg("Scheduler stopped")
}

// runCycle enqueues every vendor's daily job. Each vendor's job is
// staggered via its eligibility time rather than by sleeping here, so a
// slow cycle never delays the cron timer itself.
func (s *Scheduler) runCycle() {
	vendors := s.registry.Vendors()
	log.Info().Int("vendors", len(vendors)).Msg("Daily scrape cycle fired")

	runAt := time.Now()
	for _, vendor := range vendors {
		if _, err := s.queue.Enqueue(vendor, runAt); err != nil {
			if err == utils.ErrJobAlreadyQueued {
				log.Warn().Str("vendor", vendor).Msg("Vendor already queued, skipping")
				continue
			}
			log.Error().Err(err).Str("vendor", vendor).Msg("Failed to enqueue vendor job")
			continue
		}
		runAt = runAt.Add(s.stagger)
	}
}

// TriggerVendor enqueues an immediate on-demand job for one vendor.
func (s *Scheduler) TriggerVendor(vendor string) (*models.ScrapeJob, error) {
	if _, ok := s.registry.Get(vendor); !ok {
		return nil, utils.ErrVendorUnknown
	}
	return s.queue.Enqueue(vendor, time.Now())
}
