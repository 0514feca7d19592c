package orders

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

const (
	EventOrderCreated    = "OrderCreated"
	EventOrderSettled    = "OrderSettled"
	EventSettlementShort = "SettlementStockShort"

	eventVersion       = 1
	headerEventType    = "x-event-type"
	headerEventVersion = "x-event-version"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order reference
	Payload       json.RawMessage `json:"payload"`
}

type ItemLine struct {
	ProductID int64  `json:"product_id"`
	Color     string `json:"color,omitempty"`
	Qty       int    `json:"qty"`
	UnitPrice string `json:"unit_price,omitempty"`
}

type OrderCreatedPayload struct {
	OrderRef string     `json:"order_ref"`
	UserID   int64      `json:"user_id"`
	Amount   int64      `json:"amount"`
	Currency string     `json:"currency"`
	Items    []ItemLine `json:"items"`
}

type OrderSettledPayload struct {
	OrderRef  string `json:"order_ref"`
	Status    Status `json:"status"`
	PaymentID *int64 `json:"payment_id,omitempty"`
}

type SettlementShortPayload struct {
	OrderRef  string     `json:"order_ref"`
	OrderID   int64      `json:"order_id"`
	PaymentID *int64     `json:"payment_id,omitempty"`
	Reason    string     `json:"reason"`
	Items     []ItemLine `json:"items,omitempty"`
}

// Publisher is satisfied by kafka.Producer.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Emit wraps payload in a v1 envelope and publishes it keyed by order reference.
// A nil publisher discards the event.
func Emit(p Publisher, producer, eventType, orderRef, traceID string, payload any) error {
	if p == nil {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  eventVersion,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: orderRef,
		Payload:       body,
	}
	value, err := json.Marshal(env)
	if err != nil {
		return err
	}
	p.Publish(PartitionKey(orderRef), value,
		kafkago.Header{Key: headerEventType, Value: []byte(eventType)},
		kafkago.Header{Key: headerEventVersion, Value: []byte("1")},
	)
	return nil
}

func ItemLines(items []Item) []ItemLine {
	out := make([]ItemLine, 0, len(items))
	for _, it := range items {
		out = append(out, ItemLine{ProductID: it.ProductID, Color: it.Color, Qty: it.Quantity, UnitPrice: it.UnitPrice.String()})
	}
	return out
}

// Fanout routes each event to the publisher registered for its event type.
// Events with no registered publisher are dropped.
type Fanout map[string]Publisher

func (f Fanout) Publish(key, value []byte, headers ...kafkago.Header) {
	for _, h := range headers {
		if h.Key != headerEventType {
			continue
		}
		if p, ok := f[string(h.Value)]; ok && p != nil {
			p.Publish(key, value, headers...)
		}
		return
	}
}
