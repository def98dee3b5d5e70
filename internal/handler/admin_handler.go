package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/seedscout/seedscout_api/internal/queue"
	"github.com/seedscout/seedscout_api/internal/scheduler"
	"github.com/seedscout/seedscout_api/internal/utils"
)

// AdminHandler serves the on-demand scrape trigger and queue inspection.
type AdminHandler struct {
	scheduler *scheduler.Scheduler
	queue     *queue.Queue
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(sched *scheduler.Scheduler, q *queue.Queue) *AdminHandler {
	return &AdminHandler{scheduler: sched, queue: q}
}

// TriggerScrape handles POST /admin/scrape/:vendor.
func (h *AdminHandler) TriggerScrape(c *gin.Context) {
	vendor := c.Param("vendor")
	job, err := h.scheduler.TriggerVendor(vendor)
	if err != nil {
		switch {
		case errors.Is(err, utils.ErrVendorUnknown):
			utils.Error(c, 404, "VENDOR_UNKNOWN", "No adapter registered for that vendor")
		case errors.Is(err, utils.ErrJobAlreadyQueued):
			utils.Error(c, 409, "JOB_ALREADY_QUEUED", "Vendor already has a waiting or active job")
		default:
			utils.Error(c, 500, "INTERNAL_ERROR", "Failed to enqueue scrape job")
		}
		return
	}
	utils.Success(c, 202, "Scrape job enqueued", job)
}

// GetQueueStats handles GET /queue/stats.
func (h *AdminHandler) GetQueueStats(c *gin.Context) {
	stats, err := h.queue.Stats()
	if err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to load queue stats")
		return
	}
	recent, err := h.queue.RecentJobs(20)
	if err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to load recent jobs")
		return
	}
	utils.Success(c, 200, "Queue stats", gin.H{
		"counts": stats,
		"recent": recent,
	})
}
