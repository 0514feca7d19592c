// Package catalog reads product snapshots for checkout. It does not own the
// product tables, it only queries them.
package catalog

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-checkout-orders.git/internal/postgres"
)

type Variant struct {
	Color     string
	Primary   bool
	Quantity  int
	ImageUUID string
}

type Product struct {
	ID       int64
	Name     string
	Enabled  bool
	Price    decimal.Decimal
	Discount decimal.Decimal
	Variants []Variant
}

// DistinctColors counts the distinct non-empty colours among the variants.
func (p Product) DistinctColors() int {
	seen := map[string]struct{}{}
	for _, v := range p.Variants {
		if v.Color != "" {
			seen[v.Color] = struct{}{}
		}
	}
	return len(seen)
}

// Resolve finds the variant a selector addresses: the named colour, or the
// primary row when color is empty.
func (p Product) Resolve(color string) (Variant, bool) {
	for _, v := range p.Variants {
		if color == "" && v.Primary {
			return v, true
		}
		if color != "" && v.Color == color {
			return v, true
		}
	}
	return Variant{}, false
}

type Repo struct{ DB postgres.DB }

// Snapshots loads products and their variants for all ids in one round trip.
// Missing ids are simply absent from the result.
func (r *Repo) Snapshots(ctx context.Context, ids []int64) (map[int64]Product, error) {
	out := make(map[int64]Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.DB.Query(ctx, `
		SELECT p.id, p.name, p.enabled, p.price::text, p.discount::text,
		       v.product_id IS NOT NULL, COALESCE(v.color, ''), COALESCE(v.is_primary, false),
		       COALESCE(v.quantity, 0), COALESCE(v.image_uuid::text, '')
		FROM products p
		LEFT JOIN product_variants v ON v.product_id = p.id
		WHERE p.id = ANY($1)
		ORDER BY p.id, v.is_primary DESC NULLS LAST, v.created_at ASC`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id                  int64
			name, price, disc   string
			enabled, hasVariant bool
			v                   Variant
		)
		if err := rows.Scan(&id, &name, &enabled, &price, &disc,
			&hasVariant, &v.Color, &v.Primary, &v.Quantity, &v.ImageUUID); err != nil {
			return nil, err
		}
		p, ok := out[id]
		if !ok {
			p = Product{ID: id, Name: name, Enabled: enabled}
			if p.Price, err = decimal.NewFromString(price); err != nil {
				return nil, fmt.Errorf("product %d price: %w", id, err)
			}
			if p.Discount, err = decimal.NewFromString(disc); err != nil {
				return nil, fmt.Errorf("product %d discount: %w", id, err)
			}
		}
		if hasVariant {
			p.Variants = append(p.Variants, v)
		}
		out[id] = p
	}
	return out, rows.Err()
}
