package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// ExpiredQuoteStore is the persistence surface the reaper needs. The
// delete reports per-product removal counts from the same statement.
// Implemented by repository.PriceQuoteRepository.
type ExpiredQuoteStore interface {
	DeleteExpired(now time.Time) (map[int]int, error)
}

// ProductCounter adjusts the denormalized quote counter after reaping.
// Implemented by repository.ProductRepository.
type ProductCounter interface {
	DecrementPriceCount(id, n int) error
}

// ReaperWorker periodically removes price quotes whose validity window has
// elapsed, bounding the growth of stale offers independently of the read
// cache's TTLs.
type ReaperWorker struct {
	quotes   ExpiredQuoteStore
	products ProductCounter
	interval time.Duration
}

// NewReaperWorker constructs a ReaperWorker.
func NewReaperWorker(quotes ExpiredQuoteStore, products ProductCounter, interval time.Duration) *ReaperWorker {
	return &ReaperWorker{
		quotes:   quotes,
		products: products,
		interval: interval,
	}
}

// Start begins the periodic reap loop and listens for context cancellation.
func (w *ReaperWorker) Start(ctx context.Context) {
	log.Info().Dur("interval", w.interval).Msg("Starting expiry reaper")

	// Run immediately on start
	w.run()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.run()
		case <-ctx.Done():
			log.Info().Msg("Expiry reaper stopped")
			return
		}
	}
}

func (w *ReaperWorker) run() {
	now := time.Now()

	counts, err := w.quotes.DeleteExpired(now)
	if err != nil {
		log.Error().Err(err).Msg("Failed to delete expired quotes")
		return
	}
	if len(counts) == 0 {
		return
	}

	removed := 0
	for productID, n := range counts {
		removed += n
		if err := w.products.DecrementPriceCount(productID, n); err != nil {
			log.Error().Err(err).Int("product_id", productID).Msg("Failed to adjust price count")
		}
	}

	log.Info().
		Int("removed", removed).
		Int("products", len(counts)).
		Msg("Expired price quotes reaped")
}
