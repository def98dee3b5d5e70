package models

import "time"

// SeedType enumerates the seed categories vendors report.
type SeedType string

const (
	SeedTypeFeminized  SeedType = "feminized"
	SeedTypeAutoflower SeedType = "autoflower"
	SeedTypeRegular    SeedType = "regular"
	SeedTypeUnknown    SeedType = "unknown"
)

// Product is a canonical catalog entry. Exactly one Product exists per
// identity key no matter how many vendors list it. Descriptive fields are
// merged first-non-empty across scrapes; price statistics are denormalized
// from the product's currently valid quotes.
type Product struct {
	ID          int      `db:"id" json:"id"`
	Slug        string   `db:"slug" json:"slug"`
	Name        string   `db:"name" json:"name"`
	IdentityKey string   `db:"identity_key" json:"-"`
	Type        SeedType `db:"type" json:"type"`
	Breeder     string   `db:"breeder" json:"breeder,omitempty"`
	Lineage     string   `db:"lineage" json:"lineage,omitempty"`
	THC         string   `db:"thc" json:"thc,omitempty"`
	CBD         string   `db:"cbd" json:"cbd,omitempty"`

	// Denormalized price statistics, recomputed on every reconcile.
	LowestPrice *float64 `db:"lowest_price" json:"lowestPrice,omitempty"`
	AvgPrice    *float64 `db:"avg_price" json:"avgPrice,omitempty"`
	PriceCount  int      `db:"price_count" json:"priceCount"`
	ViewCount   int      `db:"view_count" json:"viewCount"`

	CreatedAt time.Time `db:"created_at" json:"-"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}
