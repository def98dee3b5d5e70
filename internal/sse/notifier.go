package sse

import (
	"time"

	"github.com/seedscout/seedscout_api/internal/models"
)

// ScrapeNotifier is the interface the worker uses to emit scrape
// lifecycle events.
type ScrapeNotifier interface {
	NotifyStarted(job *models.ScrapeJob, runID string)
	NotifyCompleted(job *models.ScrapeJob, runID string)
	NotifyError(job *models.ScrapeJob, runID string, scrapeErr error, willRetry bool)
}

// HubNotifier implements ScrapeNotifier using the SSE Hub.
type HubNotifier struct {
	hub *Hub
}

// NewHubNotifier creates a notifier backed by the given Hub.
func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (n *HubNotifier) NotifyStarted(job *models.ScrapeJob, runID string) {
	if n.hub.ClientCount() == 0 {
		return
	}
	n.hub.Broadcast(&ScrapeEvent{
		Event:     EventScrapeStarted,
		Vendor:    job.Vendor,
		RunID:     runID,
		JobID:     job.ID,
		Attempt:   job.Attempts,
		Timestamp: time.Now(),
	})
}

func (n *HubNotifier) NotifyCompleted(job *models.ScrapeJob, runID string) {
	if n.hub.ClientCount() == 0 {
		return
	}
	n.hub.Broadcast(&ScrapeEvent{
		Event:          EventScrapeCompleted,
		Vendor:         job.Vendor,
		RunID:          runID,
		JobID:          job.ID,
		Attempt:        job.Attempts,
		ProductsFound:  job.ProductsFound,
		QuotesUpserted: job.QuotesUpsert,
		SkippedItems:   job.SkippedItems,
		Timestamp:      time.Now(),
	})
}

func (n *HubNotifier) NotifyError(job *models.ScrapeJob, runID string, scrapeErr error, willRetry bool) {
	if n.hub.ClientCount() == 0 {
		return
	}
	n.hub.Broadcast(&ScrapeEvent{
		Event:     EventScrapeError,
		Vendor:    job.Vendor,
		RunID:     runID,
		JobID:     job.ID,
		Attempt:   job.Attempts,
		Error:     scrapeErr.Error(),
		WillRetry: willRetry,
		Timestamp: time.Now(),
	})
}

// NopNotifier is a no-op implementation for when SSE is not needed.
type NopNotifier struct{}

func (n *NopNotifier) NotifyStarted(job *models.ScrapeJob, runID string)   {}
func (n *NopNotifier) NotifyCompleted(job *models.ScrapeJob, runID string) {}
func (n *NopNotifier) NotifyError(job *models.ScrapeJob, runID string, scrapeErr error, willRetry bool) {
}
