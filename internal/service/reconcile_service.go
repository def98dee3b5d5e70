package service

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/seedscout/seedscout_api/internal/models"
	"github.com/seedscout/seedscout_api/internal/utils"
)

// ProductStore is the product persistence surface reconciliation writes
// through. Implemented by repository.ProductRepository.
type ProductStore interface {
	GetByIdentityKey(key string) (*models.Product, error)
	InsertIfAbsent(p *models.Product) (bool, error)
	UpdateDescriptive(p *models.Product) error
	UpdateStats(id int, lowest, avg float64) error
	IncrementPriceCount(id int) error
}

// QuoteStore is the quote persistence surface reconciliation writes
// through. Implemented by repository.PriceQuoteRepository.
type QuoteStore interface {
	GetByOfferKey(productID int, vendor, packSize string) (*models.PriceQuote, error)
	Insert(quote *models.PriceQuote) error
	UpdateCurrent(quote *models.PriceQuote) error
	ValidByProduct(productID int, now time.Time) ([]models.PriceQuote, error)
}

// ReconcileSummary reports what a reconcile run did.
type ReconcileSummary struct {
	ProductsSeen    int
	ProductsCreated int
	QuotesCreated   int
	QuotesUpdated   int
	SkippedItems    int
}

// ReconcileService resolves scraped records into the canonical catalog:
// identity resolution, product create-or-merge, quote upsert and aggregate
// stat recomputation.
type ReconcileService struct {
	products       ProductStore
	quotes         QuoteStore
	validityWindow time.Duration
	now            func() time.Time
}

// NewReconcileService constructs a ReconcileService. validityWindow is how
// long a scraped quote stays valid before the reaper may remove it.
func NewReconcileService(products ProductStore, quotes QuoteStore, validityWindow time.Duration) *ReconcileService {
	return &ReconcileService{
		products:       products,
		quotes:         quotes,
		validityWindow: validityWindow,
		now:            time.Now,
	}
}

// Reconcile folds a batch of scraped records into the catalog. A malformed
// record is logged and skipped without aborting the batch; a persistence
// failure aborts the batch so the job-level retry policy can take over.
func (s *ReconcileService) Reconcile(items []models.ScrapedProduct, vendor, runID string) (ReconcileSummary, error) {
	var summary ReconcileSummary

	for i := range items {
		item := &items[i]
		if err := validateScraped(item); err != nil {
			summary.SkippedItems++
			log.Warn().
				Err(err).
				Str("vendor", vendor).
				Str("run_id", runID).
				Str("name", item.Name).
				Msg("Skipping malformed scraped record")
			continue
		}

		product, created, err := s.resolveProduct(item)
		if err != nil {
			return summary, fmt.Errorf("resolve product %q: %w", item.Name, err)
		}
		summary.ProductsSeen++
		if created {
			summary.ProductsCreated++
		}

		quoteCreated, err := s.upsertQuote(product, item)
		if err != nil {
			return summary, fmt.Errorf("upsert quote for %q: %w", item.Name, err)
		}
		if quoteCreated {
			summary.QuotesCreated++
		} else {
			summary.QuotesUpdated++
		}

		if err := s.refreshStats(product.ID); err != nil {
			return summary, fmt.Errorf("refresh stats for %q: %w", item.Name, err)
		}
	}

	log.Info().
		Str("vendor", vendor).
		Str("run_id", runID).
		Int("seen", summary.ProductsSeen).
		Int("products_created", summary.ProductsCreated).
		Int("quotes_created", summary.QuotesCreated).
		Int("quotes_updated", summary.QuotesUpdated).
		Int("skipped", summary.SkippedItems).
		Msg("Reconcile completed")
	return summary, nil
}

// resolveProduct finds or creates the canonical product for a scraped
// record. Creation is a conditional insert on the unique identity key; a
// lost race falls through to a re-query so concurrent workers converge on
// one row. Existing products are merged first-non-empty: a later, sparser
// scrape never erases a richer earlier one.
func (s *ReconcileService) resolveProduct(item *models.ScrapedProduct) (*models.Product, bool, error) {
	key := IdentityKey(item.Name, item.Lineage)

	product, err := s.products.GetByIdentityKey(key)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}

	if product == nil {
		candidate := &models.Product{
			Slug:        utils.Slugify(item.Name),
			Name:        item.Name,
			IdentityKey: key,
			Type:        item.Type,
			Breeder:     item.Breeder,
			Lineage:     item.Lineage,
			THC:         item.THC,
			CBD:         item.CBD,
		}
		if candidate.Type == "" {
			candidate.Type = models.SeedTypeUnknown
		}
		created, err := s.products.InsertIfAbsent(candidate)
		if err != nil {
			return nil, false, err
		}
		if created {
			return candidate, true, nil
		}
		// Another writer created the identity key first; use their row.
		product, err = s.products.GetByIdentityKey(key)
		if err != nil {
			return nil, false, err
		}
	}

	if fillMissing(product, item) {
		if err := s.products.UpdateDescriptive(product); err != nil {
			return nil, false, err
		}
	}
	return product, false, nil
}

// upsertQuote creates or overwrites the vendor's quote for the product and
// pack size. Quotes are last-write-wins: price is point-in-time, so the
// newest scrape always replaces the stored offer wholesale.
func (s *ReconcileService) upsertQuote(product *models.Product, item *models.ScrapedProduct) (bool, error) {
	now := s.now()
	quote, err := s.quotes.GetByOfferKey(product.ID, item.Vendor, item.PackSize)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}

	if quote == nil {
		quote = &models.PriceQuote{
			ProductID:     product.ID,
			Vendor:        item.Vendor,
			Price:         item.Price,
			OriginalPrice: item.OriginalPrice,
			Currency:      item.Currency,
			PackSize:      item.PackSize,
			InStock:       item.InStock,
			URL:           item.URL,
			Reliability:   1.0,
			ScrapedAt:     now,
			ValidUntil:    now.Add(s.validityWindow),
		}
		if err := s.quotes.Insert(quote); err != nil {
			return false, err
		}
		if err := s.products.IncrementPriceCount(product.ID); err != nil {
			return false, err
		}
		return true, nil
	}

	quote.Price = item.Price
	quote.OriginalPrice = item.OriginalPrice
	quote.Currency = item.Currency
	quote.InStock = item.InStock
	quote.URL = item.URL
	quote.ScrapedAt = now
	quote.ValidUntil = now.Add(s.validityWindow)
	return false, s.quotes.UpdateCurrent(quote)
}

// refreshStats recomputes a product's lowest and average price from its
// in-stock, non-expired quotes. When no such quote remains the previous
// statistics are retained rather than reset, so the read side does not
// flicker to empty between scrapes.
func (s *ReconcileService) refreshStats(productID int) error {
	now := s.now()
	quotes, err := s.quotes.ValidByProduct(productID, now)
	if err != nil {
		return err
	}
	lowest, avg, n := computeStats(quotes, now)
	if n == 0 {
		return nil
	}
	return s.products.UpdateStats(productID, lowest, avg)
}

// validateScraped rejects records reconciliation cannot place: no name
// means no identity, and a non-positive price is a parse artifact.
func validateScraped(item *models.ScrapedProduct) error {
	if item.Name == "" {
		return fmt.Errorf("%w: empty name", utils.ErrMalformedRecord)
	}
	if item.Price <= 0 {
		return fmt.Errorf("%w: non-positive price %.2f", utils.ErrMalformedRecord, item.Price)
	}
	return nil
}

// fillMissing copies scraped descriptive fields onto the product only
// where the product's field is currently empty. Reports whether anything
// changed.
func fillMissing(product *models.Product, item *models.ScrapedProduct) bool {
	changed := false
	if (product.Type == "" || product.Type == models.SeedTypeUnknown) &&
		item.Type != "" && item.Type != models.SeedTypeUnknown {
		product.Type = item.Type
		changed = true
	}
	if product.Breeder == "" && item.Breeder != "" {
		product.Breeder = item.Breeder
		changed = true
	}
	if product.Lineage == "" && item.Lineage != "" {
		product.Lineage = item.Lineage
		changed = true
	}
	if product.THC == "" && item.THC != "" {
		product.THC = item.THC
		changed = true
	}
	if product.CBD == "" && item.CBD != "" {
		product.CBD = item.CBD
		changed = true
	}
	return changed
}

// computeStats derives lowest and average price over the in-stock,
// non-expired subset of quotes.
func computeStats(quotes []models.PriceQuote, now time.Time) (lowest, avg float64, n int) {
	var sum float64
	for i := range quotes {
		q := &quotes[i]
		if !q.InStock || !q.Valid(now) {
			continue
		}
		if n == 0 || q.Price < lowest {
			lowest = q.Price
		}
		sum += q.Price
		n++
	}
	if n > 0 {
		avg = sum / float64(n)
	}
	return lowest, avg, n
}
