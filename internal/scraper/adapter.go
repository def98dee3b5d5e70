package scraper

import (
	"context"
	"sort"
	"sync"

	"github.com/seedscout/seedscout_api/internal/models"
)

// VendorAdapter fetches and normalizes one vendor's listings. An adapter
// run is all-or-nothing: any failure mid-run fails the whole invocation
// and nothing from it reaches the catalog.
type VendorAdapter interface {
	Vendor() string
	ScrapeAll(ctx context.Context) ([]models.ScrapedProduct, error)
}

// HTMLFetcher is the opaque "fetch rendered HTML" capability adapters
// depend on. Implemented by renderer.Client.
type HTMLFetcher interface {
	FetchRenderedHTML(ctx context.Context, pageURL string) (string, error)
}

// Registry is the lookup table of vendor adapters, keyed by vendor id.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]VendorAdapter
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]VendorAdapter)}
}

// Register adds an adapter under its vendor id.
func (r *Registry) Register(a VendorAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Vendor()] = a
}

// Get returns the adapter for a vendor id.
func (r *Registry) Get(vendor string) (VendorAdapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[vendor]
	return a, ok
}

// Vendors returns the registered vendor ids, sorted for stable scheduling.
func (r *Registry) Vendors() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	vendors := make([]string, 0, len(r.adapters))
	for v := range r.adapters {
		vendors = append(vendors, v)
	}
	sort.Strings(vendors)
	return vendors
}
