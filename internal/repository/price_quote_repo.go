package repository

import (
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/seedscout/seedscout_api/internal/models"
)

// PriceQuoteRepository handles data access for per-vendor price quotes.
type PriceQuoteRepository struct {
	db *sqlx.DB
}

// NewPriceQuoteRepository creates a new PriceQuoteRepository.
func NewPriceQuoteRepository(db *sqlx.DB) *PriceQuoteRepository {
	return &PriceQuoteRepository{db: db}
}

// GetByOfferKey returns the quote for a (product, vendor, packSize) tuple,
// or sql.ErrNoRows when the vendor has no active offer for that pack.
func (r *PriceQuoteRepository) GetByOfferKey(productID int, vendor, packSize string) (*models.PriceQuote, error) {
	const q = `SELECT * FROM price_quotes WHERE product_id = $1 AND vendor = $2 AND pack_size = $3 LIMIT 1`
	var quote models.PriceQuote
	if err := r.db.Get(&quote, q, productID, vendor, packSize); err != nil {
		return nil, err
	}
	return &quote, nil
}

// Insert creates a new quote row.
func (r *PriceQuoteRepository) Insert(quote *models.PriceQuote) error {
	const q = `
        INSERT INTO price_quotes
            (product_id, vendor, price, original_price, currency, pack_size,
             in_stock, url, reliability, scraped_at, valid_until)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        RETURNING id`
	return r.db.QueryRowx(q,
		quote.ProductID, quote.Vendor, quote.Price, quote.OriginalPrice,
		quote.Currency, quote.PackSize, quote.InStock, quote.URL,
		quote.Reliability, quote.ScrapedAt, quote.ValidUntil,
	).Scan(&quote.ID)
}

// UpdateCurrent overwrites the point-in-time fields of an existing quote.
// Quotes are always last-write-wins; a newer scrape of the same offer
// replaces price, stock and freshness wholesale.
func (r *PriceQuoteRepository) UpdateCurrent(quote *models.PriceQuote) error {
	const q = `
        UPDATE price_quotes
        SET price = $2, original_price = $3, currency = $4, in_stock = $5,
            url = $6, reliability = $7, scraped_at = $8, valid_until = $9
        WHERE id = $1`
	_, err := r.db.Exec(q,
		quote.ID, quote.Price, quote.OriginalPrice, quote.Currency,
		quote.InStock, quote.URL, quote.Reliability, quote.ScrapedAt, quote.ValidUntil,
	)
	return err
}

// ValidByProduct returns all quotes for a product that are still inside
// their validity window, cheapest first.
func (r *PriceQuoteRepository) ValidByProduct(productID int, now time.Time) ([]models.PriceQuote, error) {
	const q = `
        SELECT * FROM price_quotes
        WHERE product_id = $1 AND valid_until > $2
        ORDER BY price ASC`
	var quotes []models.PriceQuote
	if err := r.db.Select(&quotes, q, productID, now); err != nil {
		return nil, err
	}
	return quotes, nil
}

// ValidByProducts returns valid quotes for a set of products, keyed by
// product id.
func (r *PriceQuoteRepository) ValidByProducts(productIDs []int, now time.Time) (map[int][]models.PriceQuote, error) {
	if len(productIDs) == 0 {
		return map[int][]models.PriceQuote{}, nil
	}
	const q = `
        SELECT * FROM price_quotes
        WHERE product_id = ANY($1) AND valid_until > $2
        ORDER BY product_id, price ASC`
	var quotes []models.PriceQuote
	if err := r.db.Select(&quotes, q, pq.Array(productIDs), now); err != nil {
		return nil, err
	}
	byProduct := make(map[int][]models.PriceQuote, len(productIDs))
	for _, quote := range quotes {
		byProduct[quote.ProductID] = append(byProduct[quote.ProductID], quote)
	}
	return byProduct, nil
}

// ProductIDsScrapedSince returns ids of products that received at least
// one quote after the cutoff.
func (r *PriceQuoteRepository) ProductIDsScrapedSince(cutoff time.Time) ([]int, error) {
	const q = `SELECT DISTINCT product_id FROM price_quotes WHERE scraped_at >= $1`
	var ids []int
	if err := r.db.Select(&ids, q, cutoff); err != nil {
		return nil, err
	}
	return ids, nil
}

// DeleteExpired removes every quote whose validity window has elapsed and
// returns how many were removed per product. Counting and deleting are one
// statement so a quote refreshed by a concurrent reconcile can never be
// counted but not deleted, which would drift the denormalized price_count.
func (r *PriceQuoteRepository) DeleteExpired(now time.Time) (map[int]int, error) {
	const q = `DELETE FROM price_quotes WHERE valid_until <= $1 RETURNING product_id`
	rows, err := r.db.Queryx(q, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var productID int
		if err := rows.Scan(&productID); err != nil {
			return nil, err
		}
		counts[productID]++
	}
	return counts, rows.Err()
}
