package models

import "time"

// PriceQuote is a vendor's current offer for a Product. At most one active
// quote exists per (product, vendor, packSize); a repeat scrape of the same
// offer updates the row in place. Quotes past ValidUntil are removed by the
// expiry reaper.
type PriceQuote struct {
	ID            int       `db:"id" json:"id"`
	ProductID     int       `db:"product_id" json:"productId"`
	Vendor        string    `db:"vendor" json:"vendor"`
	Price         float64   `db:"price" json:"price"`
	OriginalPrice *float64  `db:"original_price" json:"originalPrice,omitempty"`
	Currency      string    `db:"currency" json:"currency"`
	PackSize      string    `db:"pack_size" json:"packSize"`
	InStock       bool      `db:"in_stock" json:"inStock"`
	URL           string    `db:"url" json:"url"`
	Reliability   float64   `db:"reliability" json:"reliability"`
	ScrapedAt     time.Time `db:"scraped_at" json:"scrapedAt"`
	ValidUntil    time.Time `db:"valid_until" json:"validUntil"`
}

// Valid reports whether the quote is still inside its validity window.
func (q *PriceQuote) Valid(now time.Time) bool {
	return q.ValidUntil.After(now)
}
