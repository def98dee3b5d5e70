package scraper

// Vendor profiles for the seedbanks currently scraped. Selector sets are
// the only vendor-specific knowledge in the system; everything downstream
// works off normalized records.

var coastalProfile = Profile{
	Vendor:      "coastal",
	BaseURL:     "https://www.coastalgenetics.example",
	ListingPath: "/seeds?page=%d",
	MaxPages:    25,
	Currency:    "USD",
	Selectors: Selectors{
		Card:          "div.product-grid article.product-card",
		Name:          "h3.product-title",
		Price:         "span.price-current",
		OriginalPrice: "span.price-was",
		PackSize:      "span.pack-size",
		Breeder:       "div.breeder-name",
		Lineage:       "div.genetics",
		THC:           "span.thc-content",
		Link:          "a.product-link",
		OutOfStock:    "span.badge-soldout",
	},
}

var greenleafProfile = Profile{
	Vendor:      "greenleaf",
	BaseURL:     "https://greenleafseedbank.example",
	ListingPath: "/catalog/page/%d",
	MaxPages:    40,
	Currency:    "EUR",
	Selectors: Selectors{
		Card:       "li.catalog-item",
		Name:       "a.item-name",
		Price:      "div.item-price strong",
		PackSize:   "div.item-meta span.packs",
		Lineage:    "div.item-meta span.cross",
		THC:        "div.item-meta span.thc",
		CBD:        "div.item-meta span.cbd",
		Link:       "a.item-name",
		OutOfStock: "div.stock-out",
	},
}

var northseedProfile = Profile{
	Vendor:      "northseed",
	BaseURL:     "https://northseed.example",
	ListingPath: "/en/strains?p=%d",
	MaxPages:    30,
	Currency:    "USD",
	Selectors: Selectors{
		Card:          "div.strain-list div.strain-row",
		Name:          "span.strain-name",
		Price:         "td.price",
		OriginalPrice: "td.price-old",
		PackSize:      "td.pack",
		Breeder:       "td.breeder",
		Lineage:       "td.parents",
		Link:          "a.strain-detail",
		OutOfStock:    "td.availability .soldout",
	},
}

// RegisterDefaults wires every built-in vendor profile into the registry,
// all backed by the same rendered-HTML fetcher.
func RegisterDefaults(registry *Registry, fetcher HTMLFetcher) {
	for _, profile := range []Profile{coastalProfile, greenleafProfile, northseedProfile} {
		registry.Register(NewListingAdapter(profile, fetcher))
	}
}
