// Package catalog reads product data owned by the catalog tables. It never
// writes.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/furniture-market/internal/geo"
	"github.com/lib/pq"
)

var ErrProductNotFound = errors.New("product not found")

type Product struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Price      int    `json:"price"`
	ImageURL   string `json:"imageUrl,omitempty"`
	SellerID   string `json:"sellerId"`
	SellerCity string `json:"sellerCity"`
	// SellerLocation is set when the seller's coordinates were stored with
	// the listing, letting shipping quotes skip geocoding the seller.
	SellerLocation *geo.Coordinates `json:"sellerLocation,omitempty"`
}

type Reader interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
	GetProducts(ctx context.Context, ids []string) (map[string]*Product, error)
}

type PostgresReader struct {
	db *sql.DB
}

func NewPostgresReader(db *sql.DB) *PostgresReader {
	return &PostgresReader{db: db}
}

const productColumns = `id, name, price, COALESCE(image_url, ''), seller_id, seller_city, seller_lat, seller_lng`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanProduct maps a NULL price to -1 so callers reject it as an invalid price.
func scanProduct(row rowScanner) (*Product, error) {
	var (
		p        Product
		price    sql.NullInt64
		lat, lng sql.NullFloat64
	)
	if err := row.Scan(&p.ID, &p.Name, &price, &p.ImageURL, &p.SellerID, &p.SellerCity, &lat, &lng); err != nil {
		return nil, err
	}
	p.Price = -1
	if price.Valid {
		p.Price = int(price.Int64)
	}
	if lat.Valid && lng.Valid {
		p.SellerLocation = &geo.Coordinates{Lat: lat.Float64, Lng: lng.Float64}
	}
	return &p, nil
}

func (r *PostgresReader) GetProduct(ctx context.Context, id string) (*Product, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product %s: %w", id, err)
	}
	return p, nil
}

// GetProducts returns the products found among ids. Missing ids are simply
// absent from the map.
func (r *PostgresReader) GetProducts(ctx context.Context, ids []string) (map[string]*Product, error) {
	products := make(map[string]*Product, len(ids))
	if len(ids) == 0 {
		return products, nil
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}
