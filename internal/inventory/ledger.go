// Package inventory owns the per-variant stock counters. quantity >= 0 is
// enforced by the conditional UPDATE itself, never by read-then-write.
package inventory

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-checkout-orders.git/internal/postgres"
)

var ErrVariantNotFound = errors.New("inventory variant not found")

// Variant selects a ledger row. An empty Color addresses the row flagged
// primary, so single-variant products can be ordered without knowing colours.
type Variant struct {
	Color string
}

func Primary() Variant { return Variant{} }

func (v Variant) IsPrimary() bool { return v.Color == "" }

func (v Variant) String() string {
	if v.IsPrimary() {
		return "primary"
	}
	return v.Color
}

// Key identifies a ledger row.
type Key struct {
	ProductID int64
	Variant   Variant
}

type Ledger struct {
	q postgres.Execer
}

// New binds a ledger to a pool or a transaction.
func New(q postgres.Execer) *Ledger { return &Ledger{q: q} }

// TryDecrement removes qty units if at least qty are available. It reports
// false, with no change, when stock is insufficient or the row is missing.
func (l *Ledger) TryDecrement(ctx context.Context, productID int64, v Variant, qty int) (bool, error) {
	var (
		sql  string
		args []any
	)
	if v.IsPrimary() {
		sql = `UPDATE product_variants SET quantity = quantity - $1, updated_at = NOW()
		       WHERE product_id = $2 AND is_primary AND quantity >= $1`
		args = []any{qty, productID}
	} else {
		sql = `UPDATE product_variants SET quantity = quantity - $1, updated_at = NOW()
		       WHERE product_id = $2 AND color = $3 AND quantity >= $1`
		args = []any{qty, productID, v.Color}
	}
	ct, err := l.q.Exec(ctx, sql, args...)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

// Release returns qty units to a variant.
func (l *Ledger) Release(ctx context.Context, productID int64, v Variant, qty int) error {
	var (
		sql  string
		args []any
	)
	if v.IsPrimary() {
		sql = `UPDATE product_variants SET quantity = quantity + $1, updated_at = NOW()
		       WHERE product_id = $2 AND is_primary`
		args = []any{qty, productID}
	} else {
		sql = `UPDATE product_variants SET quantity = quantity + $1, updated_at = NOW()
		       WHERE product_id = $2 AND color = $3`
		args = []any{qty, productID, v.Color}
	}
	ct, err := l.q.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrVariantNotFound
	}
	return nil
}
