package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-checkout-orders.git/internal/apperr"
	"github.com/ariefcatur/go-checkout-orders.git/internal/inventory"
	"github.com/ariefcatur/go-checkout-orders.git/internal/postgres"
)

type Repo struct{ DB postgres.DB }

// SettleTx is the unit of work for one settlement. Every call shares a single
// database transaction.
type SettleTx interface {
	TransitionPending(ctx context.Context, ref string, to Status, paymentID *int64) (Order, bool, error)
	Items(ctx context.Context, orderID int64) ([]Item, error)
	TryDecrement(ctx context.Context, productID int64, v inventory.Variant, qty int) (bool, error)
}

// CreatePending inserts the order and all of its items in one transaction.
func (r *Repo) CreatePending(ctx context.Context, no NewOrder) (Order, error) {
	if err := ValidateCustomer(no.Customer); err != nil {
		return Order{}, err
	}
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cc := columnsOf(no.Customer)
	o := Order{
		Reference: no.Reference,
		UserID:    no.UserID,
		Amount:    no.Amount,
		Currency:  no.Currency,
		Status:    StatusPending,
		Customer:  no.Customer,
		Contact:   no.Contact,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO orders (order_ref, user_id, amount, currency, status, customer_type,
		                    customer_name, customer_surname, organization_type, organization_name, organization_code,
		                    email, phone, address, delivery_type, delivery_time)
		VALUES ($1, $2, $3, $4, 'pending', $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at, updated_at`,
		no.Reference, no.UserID, no.Amount, no.Currency, cc.Type,
		cc.Name, cc.Surname, cc.OrgType, cc.OrgName, cc.OrgCode,
		no.Contact.Email, no.Contact.Phone, no.Contact.Address, no.Contact.DeliveryType, no.Contact.DeliveryTime,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, fmt.Errorf("insert order: %w", err)
	}

	for _, it := range no.Items {
		var img any
		if it.Image != nil {
			b, err := json.Marshal(it.Image)
			if err != nil {
				return Order{}, err
			}
			img = b
		}
		var color any
		if it.Color != "" {
			color = it.Color
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items (order_id, product_id, color, quantity, price_at_purchase, product_name, product_image)
			VALUES ($1, $2, $3, $4, $5::numeric, $6, $7)`,
			o.ID, it.ProductID, color, it.Quantity, it.UnitPrice.String(), it.ProductName, img,
		); err != nil {
			return Order{}, fmt.Errorf("insert item for product %d: %w", it.ProductID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	return o, nil
}

func (r *Repo) SetCheckoutURL(ctx context.Context, ref, url string) error {
	ct, err := r.DB.Exec(ctx, `UPDATE orders SET checkout_url = $1, updated_at = NOW() WHERE order_ref = $2`, url, ref)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound("order %s not found", ref)
	}
	return nil
}

// Settle runs fn inside one transaction. A nil return commits; any error
// rolls back everything fn did, status change included.
func (r *Repo) Settle(ctx context.Context, fn func(SettleTx) error) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&settleTx{tx: tx, ledger: inventory.New(tx)}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type settleTx struct {
	tx     pgx.Tx
	ledger *inventory.Ledger
}

// TransitionPending is the compare-and-swap on status. It reports false when
// the order is unknown or no longer pending.
func (s *settleTx) TransitionPending(ctx context.Context, ref string, to Status, paymentID *int64) (Order, bool, error) {
	if !CanTransition(StatusPending, to) {
		return Order{}, false, fmt.Errorf("invalid transition pending -> %s", to)
	}
	o := Order{Reference: ref, Status: to, PaymentID: paymentID}
	err := s.tx.QueryRow(ctx, `
		UPDATE orders SET status = $1, payment_id = COALESCE($2, payment_id), updated_at = NOW()
		WHERE order_ref = $3 AND status = 'pending'
		RETURNING id, user_id, amount, currency`, string(to), paymentID, ref,
	).Scan(&o.ID, &o.UserID, &o.Amount, &o.Currency)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, false, nil
	}
	if err != nil {
		return Order{}, false, err
	}
	return o, true, nil
}

func (s *settleTx) Items(ctx context.Context, orderID int64) ([]Item, error) {
	items, err := queryItems(ctx, s.tx, `WHERE order_id = $1`, orderID)
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *settleTx) TryDecrement(ctx context.Context, productID int64, v inventory.Variant, qty int) (bool, error) {
	return s.ledger.TryDecrement(ctx, productID, v, qty)
}

// ListForUser returns finalised orders, newest first, with their items.
func (r *Repo) ListForUser(ctx context.Context, userID int64) ([]OrderWithItems, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, order_ref, user_id, amount, currency, status, COALESCE(payment_id, 0),
		       customer_type, COALESCE(customer_name, ''), COALESCE(customer_surname, ''),
		       COALESCE(organization_type, ''), COALESCE(organization_name, ''), COALESCE(organization_code, ''),
		       email, phone, address, delivery_type, delivery_time, COALESCE(checkout_url, ''),
		       created_at, updated_at
		FROM orders
		WHERE user_id = $1 AND status <> 'pending'
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		out []OrderWithItems
		ids []int64
		pos = map[int64]int{}
	)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		pos[o.ID] = len(out)
		ids = append(ids, o.ID)
		out = append(out, OrderWithItems{Order: o})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}

	items, err := queryItems(ctx, r.DB, `WHERE order_id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if i, ok := pos[it.OrderID]; ok {
			out[i].Items = append(out[i].Items, it)
		}
	}
	return out, nil
}

// Status returns the status of an order owned by userID.
func (r *Repo) Status(ctx context.Context, ref string, userID int64) (Status, error) {
	var s string
	err := r.DB.QueryRow(ctx, `SELECT status FROM orders WHERE order_ref = $1 AND user_id = $2`, ref, userID).Scan(&s)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", apperr.NotFound("order %s not found", ref)
	}
	if err != nil {
		return "", err
	}
	return Status(s), nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryItems(ctx context.Context, q querier, where string, arg any) ([]Item, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, product_id, COALESCE(color, ''), quantity, price_at_purchase::text,
		       product_name, COALESCE(product_image::text, ''), created_at
		FROM order_items `+where+`
		ORDER BY id`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var (
			it         Item
			price, img string
		)
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Color, &it.Quantity, &price,
			&it.ProductName, &img, &it.CreatedAt); err != nil {
			return nil, err
		}
		if it.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("item %d price: %w", it.ID, err)
		}
		if img != "" {
			it.Image = &Image{}
			if err := json.Unmarshal([]byte(img), it.Image); err != nil {
				return nil, fmt.Errorf("item %d image: %w", it.ID, err)
			}
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o                               Order
		status, custType                string
		name, surname, orgT, orgN, orgC string
		paymentID                       int64
	)
	if err := row.Scan(&o.ID, &o.Reference, &o.UserID, &o.Amount, &o.Currency, &status, &paymentID,
		&custType, &name, &surname, &orgT, &orgN, &orgC,
		&o.Contact.Email, &o.Contact.Phone, &o.Contact.Address, &o.Contact.DeliveryType, &o.Contact.DeliveryTime,
		&o.CheckoutURL, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return Order{}, err
	}
	o.Status = Status(status)
	if paymentID != 0 {
		o.PaymentID = &paymentID
	}
	c, err := customerFrom(custType, name, surname, orgT, orgN, orgC)
	if err != nil {
		return Order{}, err
	}
	o.Customer = c
	return o, nil
}
