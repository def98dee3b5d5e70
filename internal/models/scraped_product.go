package models

// ScrapedProduct is the normalized output of a vendor adapter. It is
// produced per scrape run, consumed immediately by reconciliation, and
// never persisted.
type ScrapedProduct struct {
	Name          string
	Vendor        string
	Type          SeedType
	Breeder       string
	Lineage       string
	THC           string
	CBD           string
	Price         float64
	OriginalPrice *float64
	Currency      string
	PackSize      string
	InStock       bool
	URL           string
}
