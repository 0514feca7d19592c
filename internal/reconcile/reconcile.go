// Package reconcile applies payment provider callbacks to orders and stock.
//
// A callback moves an order out of pending at most once. An approved
// settlement decrements every item inside the same transaction as the status
// change; if any item is short the whole transaction rolls back and the order
// stays pending.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-checkout-orders.git/internal/apperr"
	"github.com/ariefcatur/go-checkout-orders.git/internal/flitt"
	"github.com/ariefcatur/go-checkout-orders.git/internal/logging"
	"github.com/ariefcatur/go-checkout-orders.git/internal/metrics"
	"github.com/ariefcatur/go-checkout-orders.git/internal/orders"
)

var ErrMissingOrderRef = errors.New("callback has no order reference")

// errStockShort aborts the settlement transaction.
type errStockShort struct {
	order orders.Order
	item  orders.Item
	items []orders.Item
}

func (e *errStockShort) Error() string {
	return fmt.Sprintf("insufficient stock for product %d (%s) at settlement", e.item.ProductID, e.item.Variant())
}

type Outcome string

const (
	OutcomeApplied    Outcome = "applied"
	OutcomeDuplicate  Outcome = "duplicate"
	OutcomeStockShort Outcome = "stock_short"
	OutcomeIgnored    Outcome = "ignored"
	OutcomeFailed     Outcome = "failed"
)

type Verifier interface {
	Verify(f flitt.Fields) error
}

type Store interface {
	Settle(ctx context.Context, fn func(orders.SettleTx) error) error
}

// StatusInvalidator drops cached order status after a transition.
type StatusInvalidator interface {
	Invalidate(ctx context.Context, userID int64, ref string) error
}

type Reconciler struct {
	Verifier    Verifier
	Store       Store
	Events      orders.Publisher  // optional
	Cache       StatusInvalidator // optional
	ServiceName string
}

type Result struct {
	OrderRef string
	Status   orders.Status
	Outcome  Outcome
}

// Handle authenticates and applies one callback. Only unauthenticated or
// malformed callbacks return an error; every business outcome, internal
// failures included, is reported in Result so the caller can acknowledge.
func (r *Reconciler) Handle(ctx context.Context, f flitt.Fields) (Result, error) {
	log := logging.FromCtx(ctx)
	if err := r.Verifier.Verify(f); err != nil {
		metrics.Callbacks.WithLabelValues("rejected").Inc()
		log.Warn("callback rejected", "err", err)
		return Result{}, apperr.BadRequest("invalid signature")
	}

	ref, _ := f.String("order_id")
	if ref == "" {
		metrics.Callbacks.WithLabelValues("rejected").Inc()
		return Result{}, apperr.BadRequest("%s", ErrMissingOrderRef.Error())
	}
	log = log.With("order_ref", ref)

	raw, _ := f.String("order_status")
	res := Result{OrderRef: ref}
	status, ok := orders.ParseProviderStatus(raw)
	if !ok {
		res.Outcome = OutcomeIgnored
		metrics.Callbacks.WithLabelValues(string(res.Outcome)).Inc()
		log.Info("callback status not actionable", "order_status", raw)
		return res, nil
	}
	res.Status = status

	var paymentID *int64
	if id, ok := f.Int64("payment_id"); ok {
		paymentID = &id
	}

	var settled orders.Order
	applied := false
	err := r.Store.Settle(ctx, func(tx orders.SettleTx) error {
		o, ok, err := tx.TransitionPending(ctx, ref, status, paymentID)
		if err != nil || !ok {
			return err
		}
		if status == orders.StatusApproved {
			if err := decrementAll(ctx, tx, o); err != nil {
				return err
			}
		}
		settled, applied = o, true
		return nil
	})

	var short *errStockShort
	switch {
	case errors.As(err, &short):
		res.Outcome = OutcomeStockShort
		log.Warn("insufficient stock at settlement, order left pending",
			"order_id", short.order.ID, "product_id", short.item.ProductID, "variant", short.item.Variant().String())
		metrics.Shortfalls.Inc()
		r.emit(ctx, orders.EventSettlementShort, ref, orders.SettlementShortPayload{
			OrderRef:  ref,
			OrderID:   short.order.ID,
			PaymentID: paymentID,
			Reason:    short.Error(),
			Items:     orders.ItemLines(short.items),
		})
	case err != nil:
		res.Outcome = OutcomeFailed
		log.Error("settlement failed", "status", status, "err", err)
	case !applied:
		res.Outcome = OutcomeDuplicate
		log.Info("callback for finalised or unknown order ignored", "status", status)
	default:
		res.Outcome = OutcomeApplied
		log.Info("order settled", "order_id", settled.ID, "status", status)
		r.emit(ctx, orders.EventOrderSettled, ref, orders.OrderSettledPayload{OrderRef: ref, Status: status, PaymentID: paymentID})
		if r.Cache != nil {
			if err := r.Cache.Invalidate(ctx, settled.UserID, ref); err != nil {
				log.Warn("status cache not invalidated", "err", err)
			}
		}
	}
	metrics.Callbacks.WithLabelValues(string(res.Outcome)).Inc()
	return res, nil
}

func decrementAll(ctx context.Context, tx orders.SettleTx, o orders.Order) error {
	items, err := tx.Items(ctx, o.ID)
	if err != nil {
		return fmt.Errorf("load items: %w", err)
	}
	for _, it := range items {
		ok, err := tx.TryDecrement(ctx, it.ProductID, it.Variant(), it.Quantity)
		if err != nil {
			return fmt.Errorf("decrement product %d: %w", it.ProductID, err)
		}
		if !ok {
			return &errStockShort{order: o, item: it, items: items}
		}
	}
	return nil
}

func (r *Reconciler) emit(ctx context.Context, eventType, ref string, payload any) {
	if err := orders.Emit(r.Events, r.ServiceName, eventType, ref, "", payload); err != nil {
		logging.FromCtx(ctx).Warn("event not published", "event", eventType, "err", err)
	}
}
