package handler

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/seedscout/seedscout_api/internal/service"
	"github.com/seedscout/seedscout_api/internal/utils"
)

// PriceHandler serves the read-side price endpoints.
type PriceHandler struct {
	prices *service.PriceService
}

// NewPriceHandler creates a new PriceHandler.
func NewPriceHandler(prices *service.PriceService) *PriceHandler {
	return &PriceHandler{prices: prices}
}

// GetToday handles GET /prices/today.
func (h *PriceHandler) GetToday(c *gin.Context) {
	view, err := h.prices.TodayPrices(c.Request.Context())
	if err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to load today's prices")
		return
	}
	utils.Success(c, 200, "Today's prices", view)
}

// GetSeed handles GET /prices/seed/:slug.
func (h *PriceHandler) GetSeed(c *gin.Context) {
	slug := c.Param("slug")
	view, err := h.prices.PricesForSeed(c.Request.Context(), slug)
	if err != nil {
		if errors.Is(err, utils.ErrProductNotFound) {
			utils.Error(c, 404, "PRODUCT_NOT_FOUND", "No product with that slug")
			return
		}
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to load product prices")
		return
	}
	utils.Success(c, 200, "Product prices", view)
}

// Search handles GET /prices/search?q=&type=&breeder=.
func (h *PriceHandler) Search(c *gin.Context) {
	view, err := h.prices.Search(
		c.Request.Context(),
		c.Query("q"),
		c.Query("type"),
		c.Query("breeder"),
	)
	if err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Search failed")
		return
	}
	utils.Success(c, 200, "Search results", view)
}

// Compare handles GET /prices/compare?slugs=a,b,c (max 10).
func (h *PriceHandler) Compare(c *gin.Context) {
	raw := c.Query("slugs")
	var slugs []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			slugs = append(slugs, s)
		}
	}

	view, err := h.prices.Compare(c.Request.Context(), slugs)
	if err != nil {
		switch {
		case errors.Is(err, utils.ErrTooManySlugs):
			utils.Error(c, 400, "TOO_MANY_SLUGS", "At most 10 slugs can be compared")
		case errors.Is(err, utils.ErrProductNotFound):
			utils.Error(c, 400, "MISSING_SLUGS", "Provide slugs as a comma-separated list")
		default:
			utils.Error(c, 500, "INTERNAL_ERROR", "Compare failed")
		}
		return
	}
	utils.Success(c, 200, "Comparison", view)
}

// GetTrending handles GET /prices/trending.
func (h *PriceHandler) GetTrending(c *gin.Context) {
	view, err := h.prices.Trending(c.Request.Context())
	if err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to load trending products")
		return
	}
	utils.Success(c, 200, "Trending products", view)
}
