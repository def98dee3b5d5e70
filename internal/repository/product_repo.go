package repository

import (
	"database/sql"
	"fmt"
	"hash/fnv"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/seedscout/seedscout_api/internal/models"
)

// ProductRepository handles data access for canonical products.
type ProductRepository struct {
	db *sqlx.DB
}

// NewProductRepository creates a new ProductRepository.
func NewProductRepository(db *sqlx.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// GetByIdentityKey returns the product with the given identity key, or
// sql.ErrNoRows when none exists.
func (r *ProductRepository) GetByIdentityKey(key string) (*models.Product, error) {
	const q = `SELECT * FROM products WHERE identity_key = $1 LIMIT 1`
	var p models.Product
	if err := r.db.Get(&p, q, key); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetBySlug returns a single product by slug.
func (r *ProductRepository) GetBySlug(slug string) (*models.Product, error) {
	const q = `SELECT * FROM products WHERE slug = $1 LIMIT 1`
	var p models.Product
	if err := r.db.Get(&p, q, slug); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByIDs returns products for the given ids, preserving no particular order.
func (r *ProductRepository) GetByIDs(ids []int) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const q = `SELECT * FROM products WHERE id = ANY($1)`
	var products []models.Product
	if err := r.db.Select(&products, q, pq.Array(ids)); err != nil {
		return nil, err
	}
	return products, nil
}

// InsertIfAbsent conditionally inserts a product keyed by identity_key.
// It returns true when the row was inserted, and false when another writer
// created the same identity key first (the caller re-queries in that case).
// A slug collision between two distinct identity keys is resolved by
// retrying once with a disambiguated slug.
func (r *ProductRepository) InsertIfAbsent(p *models.Product) (bool, error) {
	const q = `
        INSERT INTO products (slug, name, identity_key, type, breeder, lineage, thc, cbd)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (identity_key) DO NOTHING
        RETURNING id, created_at, updated_at`

	err := r.db.QueryRowx(q,
		p.Slug, p.Name, p.IdentityKey, p.Type, p.Breeder, p.Lineage, p.THC, p.CBD,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err == nil {
		return true, nil
	}
	if err == sql.ErrNoRows {
		// Identity key already present: lost the race to a concurrent writer.
		return false, nil
	}
	if isUniqueViolation(err, "products_slug_key") {
		p.Slug = fmt.Sprintf("%s-%s", p.Slug, shortHash(p.IdentityKey))
		err = r.db.QueryRowx(q,
			p.Slug, p.Name, p.IdentityKey, p.Type, p.Breeder, p.Lineage, p.THC, p.CBD,
		).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
		if err == nil {
			return true, nil
		}
		if err == sql.ErrNoRows {
			return false, nil
		}
	}
	return false, err
}

// UpdateDescriptive persists the merged descriptive fields of a product.
// The merge itself (first-non-empty-wins) happens in the reconcile service.
func (r *ProductRepository) UpdateDescriptive(p *models.Product) error {
	const q = `
        UPDATE products
        SET type = $2, breeder = $3, lineage = $4, thc = $5, cbd = $6, updated_at = NOW()
        WHERE id = $1`
	_, err := r.db.Exec(q, p.ID, p.Type, p.Breeder, p.Lineage, p.THC, p.CBD)
	return err
}

// UpdateStats writes recomputed aggregate price statistics for a product.
func (r *ProductRepository) UpdateStats(id int, lowest, avg float64) error {
	const q = `UPDATE products SET lowest_price = $2, avg_price = $3, updated_at = NOW() WHERE id = $1`
	_, err := r.db.Exec(q, id, lowest, avg)
	return err
}

// IncrementPriceCount bumps the denormalized quote counter after a new
// quote is created for the product.
func (r *ProductRepository) IncrementPriceCount(id int) error {
	const q = `UPDATE products SET price_count = price_count + 1, updated_at = NOW() WHERE id = $1`
	_, err := r.db.Exec(q, id)
	return err
}

// DecrementPriceCount lowers the quote counter by n after expired quotes
// are reaped. The counter never drops below zero.
func (r *ProductRepository) DecrementPriceCount(id, n int) error {
	const q = `UPDATE products SET price_count = GREATEST(price_count - $2, 0), updated_at = NOW() WHERE id = $1`
	_, err := r.db.Exec(q, id, n)
	return err
}

// IncrementViewCount bumps the view counter used by the trending view.
func (r *ProductRepository) IncrementViewCount(id int) error {
	const q = `UPDATE products SET view_count = view_count + 1 WHERE id = $1`
	_, err := r.db.Exec(q, id)
	return err
}

// Search returns products matching the optional name query, seed type and
// breeder filters. Empty filters are ignored.
func (r *ProductRepository) Search(query, seedType, breeder string, limit int) ([]models.Product, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
        SELECT * FROM products
        WHERE ($1 = '' OR name ILIKE '%' || $1 || '%')
        AND ($2 = '' OR type = $2)
        AND ($3 = '' OR breeder ILIKE $3)
        ORDER BY view_count DESC, name
        LIMIT $4`
	var products []models.Product
	if err := r.db.Select(&products, q, query, seedType, breeder, limit); err != nil {
		return nil, err
	}
	return products, nil
}

// Trending returns the most viewed products that still carry at least one
// price quote.
func (r *ProductRepository) Trending(limit int) ([]models.Product, error) {
	if limit <= 0 {
		limit = 10
	}
	const q = `
        SELECT * FROM products
        WHERE price_count > 0
        ORDER BY view_count DESC, updated_at DESC
        LIMIT $1`
	var products []models.Product
	if err := r.db.Select(&products, q, limit); err != nil {
		return nil, err
	}
	return products, nil
}

// isUniqueViolation reports whether err is a Postgres unique violation on
// the named constraint.
func isUniqueViolation(err error, constraint string) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == "23505" && pqErr.Constraint == constraint
}

// shortHash derives a short stable suffix from an identity key, used to
// disambiguate colliding slugs.
func shortHash(s string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return fmt.Sprintf("%06x", h.Sum32()&0xffffff)
}
