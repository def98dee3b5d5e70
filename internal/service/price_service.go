package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/seedscout/seedscout_api/internal/cache"
	"github.com/seedscout/seedscout_api/internal/models"
	"github.com/seedscout/seedscout_api/internal/utils"
)

// MaxCompareSlugs caps how many products one compare request may ask for.
const MaxCompareSlugs = 10

// ProductReader is the product read surface for price views. Implemented
// by repository.ProductRepository.
type ProductReader interface {
	GetBySlug(slug string) (*models.Product, error)
	GetByIDs(ids []int) ([]models.Product, error)
	Search(query, seedType, breeder string, limit int) ([]models.Product, error)
	Trending(limit int) ([]models.Product, error)
	IncrementViewCount(id int) error
}

// QuoteReader is the quote read surface for price views. Implemented by
// repository.PriceQuoteRepository.
type QuoteReader interface {
	ValidByProduct(productID int, now time.Time) ([]models.PriceQuote, error)
	ValidByProducts(productIDs []int, now time.Time) (map[int][]models.PriceQuote, error)
	ProductIDsScrapedSince(cutoff time.Time) ([]int, error)
}

// ProductPrices is the read view of one product and its current valid
// quotes.
type ProductPrices struct {
	Product models.Product      `json:"product"`
	Quotes  []models.PriceQuote `json:"quotes"`
}

// PriceService serves the read views over the catalog. Each view is
// wrapped by the TTL cache when one is configured; a cache failure is
// logged and the view computed directly, never surfaced to the caller.
type PriceService struct {
	products ProductReader
	quotes   QuoteReader
	cache    *cache.PriceCache
	now      func() time.Time
}

// NewPriceService constructs a PriceService. cache may be nil, which
// disables read caching (used in tests).
func NewPriceService(products ProductReader, quotes QuoteReader, priceCache *cache.PriceCache) *PriceService {
	return &PriceService{
		products: products,
		quotes:   quotes,
		cache:    priceCache,
		now:      time.Now,
	}
}

// TodayPrices returns every product that received at least one quote since
// midnight UTC, with its current valid quotes.
func (s *PriceService) TodayPrices(ctx context.Context) ([]ProductPrices, error) {
	now := s.now()
	day := now.UTC().Format("2006-01-02")

	var cached []ProductPrices
	if s.cacheGet(ctx, cache.KeyToday(day), &cached) {
		return cached, nil
	}

	midnight := time.Date(now.UTC().Year(), now.UTC().Month(), now.UTC().Day(), 0, 0, 0, 0, time.UTC)
	ids, err := s.quotes.ProductIDsScrapedSince(midnight)
	if err != nil {
		return nil, err
	}

	view, err := s.assembleView(ids, now)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, cache.KeyToday(day), view, false)
	return view, nil
}

// PricesForSeed returns one product with its valid quotes, by slug. The
// view counter increments on every request, cached or not, so trending
// reflects real traffic.
func (s *PriceService) PricesForSeed(ctx context.Context, slug string) (*ProductPrices, error) {
	product, err := s.products.GetBySlug(slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.ErrProductNotFound
		}
		return nil, err
	}

	if err := s.products.IncrementViewCount(product.ID); err != nil {
		log.Warn().Err(err).Str("slug", slug).Msg("Failed to increment view count")
	}

	var cached ProductPrices
	if s.cacheGet(ctx, cache.KeySeed(slug), &cached) {
		return &cached, nil
	}

	quotes, err := s.quotes.ValidByProduct(product.ID, s.now())
	if err != nil {
		return nil, err
	}
	view := &ProductPrices{Product: *product, Quotes: quotes}
	s.cacheSet(ctx, cache.KeySeed(slug), view, false)
	return view, nil
}

// Search returns products matching the query and filters, with their valid
// quotes.
func (s *PriceService) Search(ctx context.Context, query, seedType, breeder string) ([]ProductPrices, error) {
	key := cache.KeySearch(query, seedType, breeder)
	var cached []ProductPrices
	if s.cacheGet(ctx, key, &cached) {
		return cached, nil
	}

	products, err := s.products.Search(query, seedType, breeder, 50)
	if err != nil {
		return nil, err
	}
	view, err := s.attachQuotes(products)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, key, view, false)
	return view, nil
}

// Compare returns views for up to MaxCompareSlugs products. Unknown slugs
// are omitted rather than failing the whole comparison.
func (s *PriceService) Compare(ctx context.Context, slugs []string) ([]ProductPrices, error) {
	if len(slugs) == 0 {
		return nil, utils.ErrProductNotFound
	}
	if len(slugs) > MaxCompareSlugs {
		return nil, utils.ErrTooManySlugs
	}

	key := cache.KeyCompare(slugs)
	var cached []ProductPrices
	if s.cacheGet(ctx, key, &cached) {
		return cached, nil
	}

	now := s.now()
	view := make([]ProductPrices, 0, len(slugs))
	for _, slug := range slugs {
		product, err := s.products.GetBySlug(slug)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, err
		}
		quotes, err := s.quotes.ValidByProduct(product.ID, now)
		if err != nil {
			return nil, err
		}
		view = append(view, ProductPrices{Product: *product, Quotes: quotes})
	}
	s.cacheSet(ctx, key, view, false)
	return view, nil
}

// Trending returns the most viewed products that still have prices, with
// their valid quotes. Cached on the longer trending TTL.
func (s *PriceService) Trending(ctx context.Context) ([]ProductPrices, error) {
	key := cache.KeyTrending()
	var cached []ProductPrices
	if s.cacheGet(ctx, key, &cached) {
		return cached, nil
	}

	products, err := s.products.Trending(10)
	if err != nil {
		return nil, err
	}
	view, err := s.attachQuotes(products)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, key, view, true)
	return view, nil
}

func (s *PriceService) assembleView(ids []int, now time.Time) ([]ProductPrices, error) {
	products, err := s.products.GetByIDs(ids)
	if err != nil {
		return nil, err
	}
	return s.attachQuotes(products)
}

func (s *PriceService) attachQuotes(products []models.Product) ([]ProductPrices, error) {
	ids := make([]int, len(products))
	for i := range products {
		ids[i] = products[i].ID
	}
	quotesByProduct, err := s.quotes.ValidByProducts(ids, s.now())
	if err != nil {
		return nil, err
	}

	view := make([]ProductPrices, 0, len(products))
	for i := range products {
		view = append(view, ProductPrices{
			Product: products[i],
			Quotes:  quotesByProduct[products[i].ID],
		})
	}
	return view, nil
}

// cacheGet loads a cached view; false on miss, error, or no cache.
func (s *PriceService) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	err := s.cache.GetJSON(ctx, key, dest)
	if err == nil {
		return true
	}
	if !errors.Is(err, utils.ErrCacheMiss) {
		log.Warn().Err(err).Str("key", key).Msg("Read cache lookup failed")
	}
	return false
}

// cacheSet stores a computed view; failures are logged only.
func (s *PriceService) cacheSet(ctx context.Context, key string, value interface{}, trending bool) {
	if s.cache == nil {
		return
	}
	var err error
	if trending {
		err = s.cache.SetJSONTrending(ctx, key, value)
	} else {
		err = s.cache.SetJSON(ctx, key, value)
	}
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Read cache store failed")
	}
}
