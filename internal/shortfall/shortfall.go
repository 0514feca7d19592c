// Package shortfall records approved payments that could not be settled
// because stock ran out between checkout and approval. Rows are for ops
// follow-up; nothing here refunds or retries.
package shortfall

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-checkout-orders.git/internal/kafka"
	"github.com/ariefcatur/go-checkout-orders.git/internal/logging"
	"github.com/ariefcatur/go-checkout-orders.git/internal/metrics"
	"github.com/ariefcatur/go-checkout-orders.git/internal/orders"
	"github.com/ariefcatur/go-checkout-orders.git/internal/postgres"
	"github.com/ariefcatur/go-checkout-orders.git/internal/redisx"
)

type Record struct {
	OrderRef   string
	OrderID    int64
	PaymentID  *int64
	Reason     string
	Items      []orders.ItemLine
	EventID    string
	OccurredAt time.Time
}

type Store struct{ DB postgres.Execer }

// Insert stores one row per order reference and reports whether it was new.
func (s *Store) Insert(ctx context.Context, r Record) (bool, error) {
	items, err := json.Marshal(r.Items)
	if err != nil {
		return false, err
	}
	ct, err := s.DB.Exec(ctx, `
		INSERT INTO settlement_shortfalls (order_ref, order_id, payment_id, reason, items, event_id, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (order_ref) DO NOTHING`,
		r.OrderRef, r.OrderID, r.PaymentID, r.Reason, items, r.EventID, r.OccurredAt)
	if err != nil {
		return false, fmt.Errorf("insert shortfall %s: %w", r.OrderRef, err)
	}
	return ct.RowsAffected() == 1, nil
}

type Recorder interface {
	Insert(ctx context.Context, r Record) (bool, error)
}

type Service struct {
	Store       Recorder
	Redis       *redis.Client
	ServiceName string
}

// Handle is the consumer handler for order.settlement.short.
func (s *Service) Handle(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		// A poison message would block the partition forever.
		logging.FromCtx(ctx).Error("undecodable shortfall event dropped", "offset", m.Offset, "err", err)
		return nil
	}
	if env.EventType != orders.EventSettlementShort {
		return nil
	}
	log := logging.FromCtx(ctx).With("event_id", env.EventID, "order_ref", env.CorrelationID)

	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	if seen, _ := redisx.Exists(ctx, s.Redis, dkey); seen {
		log.Debug("duplicate shortfall event")
		return nil
	}

	p, err := kafkax.UnwrapPayload[orders.SettlementShortPayload](env.Payload)
	if err != nil {
		log.Error("shortfall payload dropped", "err", err)
		return nil
	}
	inserted, err := s.Store.Insert(ctx, Record{
		OrderRef:   p.OrderRef,
		OrderID:    p.OrderID,
		PaymentID:  p.PaymentID,
		Reason:     p.Reason,
		Items:      p.Items,
		EventID:    env.EventID,
		OccurredAt: env.OccurredAt,
	})
	if err != nil {
		return err
	}
	if _, err := redisx.MarkOnce(ctx, s.Redis, dkey, redisx.TTLDedup); err != nil {
		log.Warn("dedup mark failed", "err", err)
	}
	if inserted {
		metrics.ShortfallsRecorded.Inc()
		log.Warn("payment approved but order not settled, needs manual follow-up",
			"order_id", p.OrderID, "reason", p.Reason)
	}
	return nil
}
