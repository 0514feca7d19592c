package reconcile

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-checkout-orders.git/internal/catalog"
	"github.com/ariefcatur/go-checkout-orders.git/internal/checkout"
	"github.com/ariefcatur/go-checkout-orders.git/internal/flitt"
	"github.com/ariefcatur/go-checkout-orders.git/internal/inventory"
	"github.com/ariefcatur/go-checkout-orders.git/internal/orders"
)

// memCatalog serves product definitions with live quantities from a memStore.
type memCatalog struct {
	store    *memStore
	products map[int64]catalog.Product
}

func (c *memCatalog) Snapshots(_ context.Context, ids []int64) (map[int64]catalog.Product, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	out := map[int64]catalog.Product{}
	for _, id := range ids {
		p, ok := c.products[id]
		if !ok {
			continue
		}
		vs := make([]catalog.Variant, len(p.Variants))
		for i, v := range p.Variants {
			v.Quantity = c.store.stock[inventory.Key{ProductID: id, Variant: inventory.Variant{Color: v.Color}}]
			vs[i] = v
		}
		p.Variants = vs
		out[id] = p
	}
	return out, nil
}

// memOrders persists checkout output into a memStore.
type memOrders struct{ store *memStore }

func (o memOrders) CreatePending(_ context.Context, no orders.NewOrder) (orders.Order, error) {
	m := o.store
	m.mu.Lock()
	defer m.mu.Unlock()
	id := int64(len(m.orders) + 1)
	order := orders.Order{
		ID: id, Reference: no.Reference, UserID: no.UserID, Amount: no.Amount,
		Currency: no.Currency, Status: orders.StatusPending, Customer: no.Customer, Contact: no.Contact,
	}
	items := make([]orders.Item, len(no.Items))
	for i, it := range no.Items {
		items[i] = orders.Item{
			ID: int64(i + 1), OrderID: id, ProductID: it.ProductID, Color: it.Color,
			Quantity: it.Quantity, UnitPrice: it.UnitPrice, ProductName: it.ProductName, Image: it.Image,
		}
	}
	m.orders[no.Reference] = order
	m.items[id] = items
	return order, nil
}

func (o memOrders) SetCheckoutURL(_ context.Context, ref, url string) error {
	m := o.store
	m.mu.Lock()
	defer m.mu.Unlock()
	ord := m.orders[ref]
	ord.CheckoutURL = url
	m.orders[ref] = ord
	return nil
}

type stubGateway struct{}

func (stubGateway) CreateCheckout(_ context.Context, req flitt.CheckoutRequest) (string, error) {
	return "https://pay.example/" + req.OrderID, nil
}

func TestCheckoutThenSettlementFlow(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	st.setStock(7, "", 5)
	svc := &checkout.Service{
		Catalog: &memCatalog{store: st, products: map[int64]catalog.Product{
			7: {ID: 7, Name: "Shirt", Enabled: true, Price: decimal.NewFromInt(50), Discount: decimal.Zero,
				Variants: []catalog.Variant{{Primary: true, ImageUUID: "img-7"}}},
		}},
		Orders:       memOrders{store: st},
		Gateway:      stubGateway{},
		Cfg:          checkout.Config{Currency: "GEL", DeliveryFee: decimal.NewFromInt(5), ServiceName: "checkout-api"},
		NewReference: func() string { return "ord_flow" },
	}
	rec := &Reconciler{Verifier: flitt.NewSigner(secret), Store: st, Events: &recPublisher{}, Cache: &recCache{}}

	res, err := svc.Checkout(ctx, checkout.Request{
		UserID:   9,
		Lines:    []checkout.Line{{ProductID: 7, Quantity: 2}},
		Customer: orders.Individual{Name: "Nino", Surname: "B"},
		Contact:  orders.Contact{Email: "n@example.com", Phone: "555", Address: "Rustaveli 1"},
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if res.OrderReference != "ord_flow" {
		t.Fatalf("reference = %q", res.OrderReference)
	}
	if o := st.orders["ord_flow"]; o.Amount != 10500 || o.Status != orders.StatusPending {
		t.Fatalf("after checkout: amount %d status %s", o.Amount, o.Status)
	}
	if got := st.stockOf(7, ""); got != 5 {
		t.Fatalf("checkout touched stock: %d", got)
	}

	out, err := rec.Handle(ctx, callbackFor("ord_flow", "approved"))
	if err != nil || out.Outcome != OutcomeApplied {
		t.Fatalf("approval: %+v, %v", out, err)
	}
	if got := st.stockOf(7, ""); got != 3 {
		t.Fatalf("stock after approval = %d, want 3", got)
	}
	if got := st.statusOf("ord_flow"); got != orders.StatusApproved {
		t.Fatalf("status after approval = %s", got)
	}

	out, err = rec.Handle(ctx, callbackFor("ord_flow", "approved"))
	if err != nil || out.Outcome != OutcomeDuplicate {
		t.Fatalf("replay: %+v, %v", out, err)
	}
	if got := st.stockOf(7, ""); got != 3 {
		t.Fatalf("stock after replay = %d, want 3", got)
	}
}
