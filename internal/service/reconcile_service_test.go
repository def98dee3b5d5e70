package service

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedscout/seedscout_api/internal/models"
)

// fakeProductStore mirrors the repository's conditional-insert semantics:
// InsertIfAbsent succeeds only for a new identity key.
type fakeProductStore struct {
	nextID   int
	byKey    map[string]*models.Product
	statsFor map[int][2]float64
}

func newFakeProductStore() *fakeProductStore {
	return &fakeProductStore{
		byKey:    make(map[string]*models.Product),
		statsFor: make(map[int][2]float64),
	}
}

func (f *fakeProductStore) GetByIdentityKey(key string) (*models.Product, error) {
	p, ok := f.byKey[key]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *p
	return &copied, nil
}

func (f *fakeProductStore) InsertIfAbsent(p *models.Product) (bool, error) {
	if _, ok := f.byKey[p.IdentityKey]; ok {
		return false, nil
	}
	f.nextID++
	p.ID = f.nextID
	stored := *p
	f.byKey[p.IdentityKey] = &stored
	return true, nil
}

func (f *fakeProductStore) UpdateDescriptive(p *models.Product) error {
	stored := f.byID(p.ID)
	stored.Type = p.Type
	stored.Breeder = p.Breeder
	stored.Lineage = p.Lineage
	stored.THC = p.THC
	stored.CBD = p.CBD
	return nil
}

func (f *fakeProductStore) UpdateStats(id int, lowest, avg float64) error {
	f.statsFor[id] = [2]float64{lowest, avg}
	return nil
}

func (f *fakeProductStore) IncrementPriceCount(id int) error {
	f.byID(id).PriceCount++
	return nil
}

func (f *fakeProductStore) byID(id int) *models.Product {
	for _, p := range f.byKey {
		if p.ID == id {
			return p
		}
	}
	panic("unknown product id")
}

type offerKey struct {
	productID int
	vendor    string
	packSize  string
}

type fakeQuoteStore struct {
	nextID int
	quotes map[offerKey]*models.PriceQuote
}

func newFakeQuoteStore() *fakeQuoteStore {
	return &fakeQuoteStore{quotes: make(map[offerKey]*models.PriceQuote)}
}

func (f *fakeQuoteStore) GetByOfferKey(productID int, vendor, packSize string) (*models.PriceQuote, error) {
	q, ok := f.quotes[offerKey{productID, vendor, packSize}]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *q
	return &copied, nil
}

func (f *fakeQuoteStore) Insert(quote *models.PriceQuote) error {
	f.nextID++
	quote.ID = f.nextID
	stored := *quote
	f.quotes[offerKey{quote.ProductID, quote.Vendor, quote.PackSize}] = &stored
	return nil
}

func (f *fakeQuoteStore) UpdateCurrent(quote *models.PriceQuote) error {
	stored := *quote
	f.quotes[offerKey{quote.ProductID, quote.Vendor, quote.PackSize}] = &stored
	return nil
}

func (f *fakeQuoteStore) ValidByProduct(productID int, now time.Time) ([]models.PriceQuote, error) {
	var out []models.PriceQuote
	for _, q := range f.quotes {
		if q.ProductID == productID && q.Valid(now) {
			out = append(out, *q)
		}
	}
	return out, nil
}

func newTestReconcileService(products *fakeProductStore, quotes *fakeQuoteStore) *ReconcileService {
	return NewReconcileService(products, quotes, 24*time.Hour)
}

func scraped(name, vendor string, price float64) models.ScrapedProduct {
	return models.ScrapedProduct{
		Name:     name,
		Vendor:   vendor,
		Price:    price,
		Currency: "EUR",
		PackSize: "5",
		InStock:  true,
	}
}

func TestReconcile_CreatesProductAndQuote(t *testing.T) {
	products := newFakeProductStore()
	quotes := newFakeQuoteStore()
	svc := newTestReconcileService(products, quotes)

	summary, err := svc.Reconcile([]models.ScrapedProduct{
		scraped("Northern Lights", "coastal", 29.95),
	}, "coastal", "run1")
	require.NoError(t, err)

	assert.Equal(t, 1, summary.ProductsSeen)
	assert.Equal(t, 1, summary.ProductsCreated)
	assert.Equal(t, 1, summary.QuotesCreated)
	assert.Equal(t, 0, summary.QuotesUpdated)
	assert.Equal(t, 0, summary.SkippedItems)

	p, err := products.GetByIdentityKey(IdentityKey("Northern Lights", ""))
	require.NoError(t, err)
	assert.Equal(t, "northern-lights", p.Slug)
	assert.Equal(t, 1, p.PriceCount)
	assert.Equal(t, [2]float64{29.95, 29.95}, products.statsFor[p.ID])
}

func TestReconcile_Idempotent(t *testing.T) {
	products := newFakeProductStore()
	quotes := newFakeQuoteStore()
	svc := newTestReconcileService(products, quotes)

	batch := []models.ScrapedProduct{scraped("Northern Lights", "coastal", 29.95)}

	_, err := svc.Reconcile(batch, "coastal", "run1")
	require.NoError(t, err)
	summary, err := svc.Reconcile(batch, "coastal", "run2")
	require.NoError(t, err)

	assert.Equal(t, 0, summary.ProductsCreated)
	assert.Equal(t, 0, summary.QuotesCreated)
	assert.Equal(t, 1, summary.QuotesUpdated)

	p, err := products.GetByIdentityKey(IdentityKey("Northern Lights", ""))
	require.NoError(t, err)
	assert.Equal(t, 1, p.PriceCount, "repeat scrape must not inflate the quote count")
	assert.Len(t, quotes.quotes, 1)
}

func TestReconcile_CrossVendorSingleProduct(t *testing.T) {
	products := newFakeProductStore()
	quotes := newFakeQuoteStore()
	svc := newTestReconcileService(products, quotes)

	_, err := svc.Reconcile([]models.ScrapedProduct{
		scraped("Northern Lights", "coastal", 34.50),
	}, "coastal", "run1")
	require.NoError(t, err)

	_, err = svc.Reconcile([]models.ScrapedProduct{
		scraped("NORTHERN LIGHTS", "greenleaf", 30.00),
	}, "greenleaf", "run2")
	require.NoError(t, err)

	require.Len(t, products.byKey, 1, "both vendors must resolve to one product")
	p, err := products.GetByIdentityKey(IdentityKey("Northern Lights", ""))
	require.NoError(t, err)
	assert.Equal(t, 2, p.PriceCount)
	assert.Equal(t, 30.00, products.statsFor[p.ID][0], "lowest price spans vendors")
	assert.InDelta(t, 32.25, products.statsFor[p.ID][1], 0.001)
}

func TestReconcile_QuoteUpdatedInPlace(t *testing.T) {
	products := newFakeProductStore()
	quotes := newFakeQuoteStore()
	svc := newTestReconcileService(products, quotes)

	_, err := svc.Reconcile([]models.ScrapedProduct{
		scraped("Northern Lights", "coastal", 34.50),
	}, "coastal", "run1")
	require.NoError(t, err)

	item := scraped("Northern Lights", "coastal", 27.95)
	item.InStock = false
	_, err = svc.Reconcile([]models.ScrapedProduct{item}, "coastal", "run2")
	require.NoError(t, err)

	require.Len(t, quotes.quotes, 1)
	p, err := products.GetByIdentityKey(IdentityKey("Northern Lights", ""))
	require.NoError(t, err)
	q, err := quotes.GetByOfferKey(p.ID, "coastal", "5")
	require.NoError(t, err)
	assert.Equal(t, 27.95, q.Price)
	assert.False(t, q.InStock, "newest scrape wins wholesale")
}

func TestReconcile_FirstNonEmptyMerge(t *testing.T) {
	products := newFakeProductStore()
	quotes := newFakeQuoteStore()
	svc := newTestReconcileService(products, quotes)

	rich := scraped("Northern Lights", "coastal", 34.50)
	rich.Breeder = "Sensi Seeds"
	rich.THC = "18%"
	_, err := svc.Reconcile([]models.ScrapedProduct{rich}, "coastal", "run1")
	require.NoError(t, err)

	sparse := scraped("Northern Lights", "greenleaf", 30.00)
	sparse.Breeder = "Someone Else"
	sparse.CBD = "1%"
	_, err = svc.Reconcile([]models.ScrapedProduct{sparse}, "greenleaf", "run2")
	require.NoError(t, err)

	p, err := products.GetByIdentityKey(IdentityKey("Northern Lights", ""))
	require.NoError(t, err)
	assert.Equal(t, "Sensi Seeds", p.Breeder, "existing descriptive field must not be overwritten")
	assert.Equal(t, "18%", p.THC)
	assert.Equal(t, "1%", p.CBD, "empty field filled from the later scrape")
}

func TestReconcile_SkipsMalformedRecords(t *testing.T) {
	products := newFakeProductStore()
	quotes := newFakeQuoteStore()
	svc := newTestReconcileService(products, quotes)

	summary, err := svc.Reconcile([]models.ScrapedProduct{
		scraped("", "coastal", 29.95),
		scraped("Free Seed", "coastal", 0),
		scraped("Northern Lights", "coastal", 29.95),
	}, "coastal", "run1")
	require.NoError(t, err)

	assert.Equal(t, 2, summary.SkippedItems)
	assert.Equal(t, 1, summary.ProductsSeen)
	assert.Len(t, products.byKey, 1)
}

func TestReconcile_StatsExcludeOutOfStock(t *testing.T) {
	products := newFakeProductStore()
	quotes := newFakeQuoteStore()
	svc := newTestReconcileService(products, quotes)

	cheap := scraped("Northern Lights", "coastal", 19.95)
	cheap.InStock = false
	cheap.PackSize = "3"
	_, err := svc.Reconcile([]models.ScrapedProduct{
		cheap,
		scraped("Northern Lights", "coastal", 34.50),
	}, "coastal", "run1")
	require.NoError(t, err)

	p, err := products.GetByIdentityKey(IdentityKey("Northern Lights", ""))
	require.NoError(t, err)
	assert.Equal(t, 34.50, products.statsFor[p.ID][0], "out-of-stock quote must not set the lowest price")
}

func TestComputeStats(t *testing.T) {
	now := time.Now()
	valid := now.Add(time.Hour)
	expired := now.Add(-time.Hour)

	quotes := []models.PriceQuote{
		{Price: 30, InStock: true, ValidUntil: valid},
		{Price: 20, InStock: true, ValidUntil: valid},
		{Price: 5, InStock: false, ValidUntil: valid},
		{Price: 1, InStock: true, ValidUntil: expired},
	}

	lowest, avg, n := computeStats(quotes, now)
	assert.Equal(t, 2, n)
	assert.Equal(t, 20.0, lowest)
	assert.Equal(t, 25.0, avg)
}

func TestComputeStats_Empty(t *testing.T) {
	_, _, n := computeStats(nil, time.Now())
	assert.Equal(t, 0, n)
}
