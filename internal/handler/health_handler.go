package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/seedscout/seedscout_api/internal/cache"
	"github.com/seedscout/seedscout_api/internal/sse"
	"github.com/seedscout/seedscout_api/internal/utils"
)

var startTime = time.Now()

// HealthHandler provides the health endpoint.
type HealthHandler struct {
	db    *sqlx.DB
	redis *cache.RedisClient
	hub   *sse.Hub
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db *sqlx.DB, redis *cache.RedisClient, hub *sse.Hub) *HealthHandler {
	return &HealthHandler{db: db, redis: redis, hub: hub}
}

// GetHealth responds with service, database and redis status plus live
// connection counts.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	ctx := c.Request.Context()

	dbStatus := "connected"
	if err := h.db.PingContext(ctx); err != nil {
		dbStatus = "disconnected"
	}
	redisStatus := "connected"
	if err := h.redis.Ping(ctx); err != nil {
		redisStatus = "disconnected"
	}

	utils.Success(c, 200, "Service is healthy", gin.H{
		"status":  "healthy",
		"version": "1.0.0",
		"uptime":  int(time.Since(startTime).Seconds()),
		"database": gin.H{
			"status":           dbStatus,
			"openConnections":  h.db.Stats().OpenConnections,
			"inUseConnections": h.db.Stats().InUse,
		},
		"redis": gin.H{
			"status": redisStatus,
		},
		"sse": gin.H{
			"connectedClients": h.hub.ClientCount(),
		},
	})
}
