package scraper

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/seedscout/seedscout_api/internal/models"
)

// Selectors names the CSS selectors a vendor profile uses to pull fields
// out of a listing page. Only Card, Name and Price are required; empty
// selectors leave the field blank on the scraped record.
type Selectors struct {
	Card          string
	Name          string
	Price         string
	OriginalPrice string
	PackSize      string
	Breeder       string
	Lineage       string
	THC           string
	CBD           string
	Link          string
	OutOfStock    string
}

// Profile parameterises a ListingAdapter for one vendor: where its listing
// pages live and how to extract fields from them.
type Profile struct {
	Vendor      string
	BaseURL     string
	ListingPath string // printf template with a %d page number
	MaxPages    int
	Currency    string
	Selectors   Selectors
}

// ListingAdapter is a goquery-driven VendorAdapter for vendors whose
// catalog is a paginated listing of product cards.
type ListingAdapter struct {
	profile Profile
	fetcher HTMLFetcher
}

// NewListingAdapter constructs a ListingAdapter for a vendor profile.
func NewListingAdapter(profile Profile, fetcher HTMLFetcher) *ListingAdapter {
	if profile.MaxPages <= 0 {
		profile.MaxPages = 20
	}
	return &ListingAdapter{profile: profile, fetcher: fetcher}
}

// Vendor returns the vendor id this adapter scrapes.
func (a *ListingAdapter) Vendor() string {
	return a.profile.Vendor
}

// ScrapeAll walks the vendor's listing pages until a page comes back empty
// or MaxPages is reached. Any fetch or parse failure fails the whole run;
// an entirely empty catalog is treated as a markup mismatch, not success.
func (a *ListingAdapter) ScrapeAll(ctx context.Context) ([]models.ScrapedProduct, error) {
	var all []models.ScrapedProduct

	for page := 1; page <= a.profile.MaxPages; page++ {
		pageURL := a.profile.BaseURL + fmt.Sprintf(a.profile.ListingPath, page)

		html, err := a.fetcher.FetchRenderedHTML(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("%s: fetch page %d: %w", a.profile.Vendor, page, err)
		}

		items, err := a.ParsePage(html)
		if err != nil {
			return nil, fmt.Errorf("%s: parse page %d: %w", a.profile.Vendor, page, err)
		}
		if len(items) == 0 {
			break
		}
		all = append(all, items...)
	}

	if len(all) == 0 {
		return nil, fmt.Errorf("%s: no products extracted, markup may have changed", a.profile.Vendor)
	}

	log.Debug().Str("vendor", a.profile.Vendor).Int("items", len(all)).Msg("Adapter scrape finished")
	return all, nil
}

// ParsePage extracts normalized records from one listing page. It is pure
// given the HTML, so vendor profiles are testable against fixture markup.
func (a *ListingAdapter) ParsePage(html string) ([]models.ScrapedProduct, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	sel := a.profile.Selectors
	var items []models.ScrapedProduct

	doc.Find(sel.Card).Each(func(_ int, card *goquery.Selection) {
		name := cleanText(card.Find(sel.Name).First().Text())
		price, priceOK := ParsePrice(card.Find(sel.Price).First().Text())
		if name == "" || !priceOK {
			// Leave validation of individual records to reconciliation;
			// a card with no name or price is not a record at all.
			return
		}

		item := models.ScrapedProduct{
			Name:     name,
			Vendor:   a.profile.Vendor,
			Price:    price,
			Currency: a.profile.Currency,
			InStock:  true,
		}

		if sel.OriginalPrice != "" {
			if orig, ok := ParsePrice(card.Find(sel.OriginalPrice).First().Text()); ok && orig > price {
				item.OriginalPrice = &orig
			}
		}
		if sel.PackSize != "" {
			item.PackSize = cleanText(card.Find(sel.PackSize).First().Text())
		}
		if sel.Breeder != "" {
			item.Breeder = cleanText(card.Find(sel.Breeder).First().Text())
		}
		if sel.Lineage != "" {
			item.Lineage = cleanText(card.Find(sel.Lineage).First().Text())
		}
		if sel.THC != "" {
			item.THC = cleanText(card.Find(sel.THC).First().Text())
		}
		if sel.CBD != "" {
			item.CBD = cleanText(card.Find(sel.CBD).First().Text())
		}
		if sel.OutOfStock != "" && card.Find(sel.OutOfStock).Length() > 0 {
			item.InStock = false
		}
		if sel.Link != "" {
			if href, ok := card.Find(sel.Link).First().Attr("href"); ok {
				item.URL = absoluteURL(a.profile.BaseURL, href)
			}
		}
		item.Type = InferSeedType(name)

		items = append(items, item)
	})

	return items, nil
}

var priceRe = regexp.MustCompile(`\d+(?:\.\d{1,2})?`)

// ParsePrice pulls a decimal price out of vendor display text like
// "€34.50", "$30", or "From: 27.95". Thousands separators are dropped.
func ParsePrice(text string) (float64, bool) {
	cleaned := strings.ReplaceAll(text, ",", "")
	match := priceRe.FindString(cleaned)
	if match == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// InferSeedType guesses the seed category from the listing name. Vendors
// that tag the type explicitly get it from a selector instead; this is the
// fallback for those that only encode it in the name.
func InferSeedType(name string) models.SeedType {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "auto"):
		return models.SeedTypeAutoflower
	case strings.Contains(lower, "fem"):
		return models.SeedTypeFeminized
	case strings.Contains(lower, "regular") || strings.Contains(lower, "reg."):
		return models.SeedTypeRegular
	default:
		return models.SeedTypeUnknown
	}
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func absoluteURL(base, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(href, "/")
}
