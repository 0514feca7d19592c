// Package checkout turns a cart into a pending order with a provider
// checkout session. Stock is only checked here; it is decremented at
// settlement, see package reconcile.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-checkout-orders.git/internal/apperr"
	"github.com/ariefcatur/go-checkout-orders.git/internal/catalog"
	"github.com/ariefcatur/go-checkout-orders.git/internal/flitt"
	"github.com/ariefcatur/go-checkout-orders.git/internal/logging"
	"github.com/ariefcatur/go-checkout-orders.git/internal/metrics"
	"github.com/ariefcatur/go-checkout-orders.git/internal/orders"
	"github.com/ariefcatur/go-checkout-orders.git/internal/pricing"
)

type Catalog interface {
	Snapshots(ctx context.Context, ids []int64) (map[int64]catalog.Product, error)
}

type OrderStore interface {
	CreatePending(ctx context.Context, o orders.NewOrder) (orders.Order, error)
	SetCheckoutURL(ctx context.Context, ref, url string) error
}

type Gateway interface {
	CreateCheckout(ctx context.Context, req flitt.CheckoutRequest) (string, error)
}

type Idempotency interface {
	Recall(ctx context.Context, userID int64, key string) (string, bool, error)
	Remember(ctx context.Context, userID int64, key, value string) error
}

type Config struct {
	Currency       string
	DeliveryFee    decimal.Decimal
	CallbackURL    string
	ResponseURL    string
	AssetsURL      string
	OrderRefPrefix string
	ServiceName    string
}

type Service struct {
	Catalog Catalog
	Orders  OrderStore
	Gateway Gateway
	Idem    Idempotency      // optional
	Events  orders.Publisher // optional
	Cfg     Config

	// NewReference overrides reference generation in tests.
	NewReference func() string
}

type Line struct {
	ProductID int64
	Color     string
	Quantity  int
}

type Request struct {
	UserID         int64
	IdempotencyKey string
	TraceID        string
	Lines          []Line
	Customer       orders.Customer
	Contact        orders.Contact
}

type Result struct {
	OrderReference string `json:"order_id"`
	CheckoutURL    string `json:"checkout_url"`
}

func (s *Service) Checkout(ctx context.Context, req Request) (res Result, err error) {
	log := logging.FromCtx(ctx).With("user_id", req.UserID)
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = apperr.KindOf(err).String()
		}
		metrics.Checkouts.WithLabelValues(outcome).Inc()
	}()

	if err := validate(req); err != nil {
		return Result{}, err
	}
	if res, ok := s.recall(ctx, req); ok {
		log.Info("checkout replayed", "order_ref", res.OrderReference)
		return res, nil
	}

	products, err := s.Catalog.Snapshots(ctx, productIDs(req.Lines))
	if err != nil {
		return Result{}, apperr.Internal("load products", err)
	}
	items, priced, err := s.plan(req.Lines, products)
	if err != nil {
		return Result{}, err
	}

	quote, err := pricing.Calculator{DeliveryFee: s.Cfg.DeliveryFee}.Quote(priced)
	switch {
	case errors.Is(err, pricing.ErrInvalidAmount):
		return Result{}, apperr.BadRequest("order amount must be positive")
	case err != nil:
		return Result{}, apperr.Internal("calculate amount", err)
	}

	ref := s.reference()
	order, err := s.Orders.CreatePending(ctx, orders.NewOrder{
		Reference: ref,
		UserID:    req.UserID,
		Amount:    quote.AmountMinor,
		Currency:  s.Cfg.Currency,
		Customer:  req.Customer,
		Contact:   req.Contact,
		Items:     items,
	})
	if err != nil {
		return Result{}, apperr.Internal("create order", err)
	}
	log = log.With("order_ref", ref)
	log.Info("pending order created", "order_id", order.ID, "amount", quote.AmountMinor, "items", len(items))
	if err := orders.Emit(s.Events, s.Cfg.ServiceName, orders.EventOrderCreated, ref, req.TraceID, orders.OrderCreatedPayload{
		OrderRef: ref,
		UserID:   req.UserID,
		Amount:   quote.AmountMinor,
		Currency: s.Cfg.Currency,
		Items:    newItemLines(items),
	}); err != nil {
		log.Warn("order created event not published", "err", err)
	}

	// From here on a failure leaves a pending order without a checkout url.
	url, err := s.Gateway.CreateCheckout(ctx, flitt.CheckoutRequest{
		OrderID:           ref,
		Amount:            quote.AmountMinor,
		Description:       fmt.Sprintf("Order %s", ref),
		ServerCallbackURL: s.Cfg.CallbackURL,
		ResponseURL:       s.Cfg.ResponseURL,
	})
	if err != nil {
		log.Error("checkout session failed", "err", err)
		if apperr.KindOf(err) == apperr.KindInternal {
			return Result{}, err
		}
		return Result{}, apperr.Internal("create checkout session", err)
	}
	if err := s.Orders.SetCheckoutURL(ctx, ref, url); err != nil {
		log.Error("store checkout url failed", "err", err)
		return Result{}, apperr.Internal("store checkout url", err)
	}

	res = Result{OrderReference: ref, CheckoutURL: url}
	s.remember(ctx, req, res)
	return res, nil
}

func validate(req Request) error {
	if len(req.Lines) == 0 {
		return apperr.BadRequest("cart is empty")
	}
	for _, l := range req.Lines {
		if l.Quantity <= 0 {
			return apperr.BadRequest("invalid quantity for product %d", l.ProductID)
		}
	}
	if !strings.Contains(req.Contact.Email, "@") {
		return apperr.BadRequest("invalid email")
	}
	if strings.TrimSpace(req.Contact.Address) == "" {
		return apperr.BadRequest("address is required")
	}
	if err := orders.ValidateCustomer(req.Customer); err != nil {
		return apperr.BadRequest("%s", err.Error())
	}
	return nil
}

func productIDs(lines []Line) []int64 {
	seen := make(map[int64]struct{}, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.ProductID]; !ok {
			seen[l.ProductID] = struct{}{}
			ids = append(ids, l.ProductID)
		}
	}
	return ids
}

// rowKey names the ledger row a line draws from once its selector is resolved.
type rowKey struct {
	productID int64
	color     string
}

// plan resolves every line against the snapshots and checks aggregate demand
// per ledger row against its quantity. Nothing is mutated.
func (s *Service) plan(lines []Line, products map[int64]catalog.Product) ([]orders.NewItem, []pricing.Line, error) {
	type resolved struct {
		key     rowKey
		product catalog.Product
		variant catalog.Variant
	}
	res := make([]resolved, 0, len(lines))
	demand := map[rowKey]int{}

	for _, l := range lines {
		p, ok := products[l.ProductID]
		if !ok {
			return nil, nil, apperr.NotFound("product %d not found", l.ProductID)
		}
		if !p.Enabled {
			return nil, nil, apperr.BadRequest("product %d is not available", l.ProductID)
		}
		if l.Color == "" && p.DistinctColors() > 1 {
			return nil, nil, apperr.BadRequest("color is required for product %d", l.ProductID)
		}
		v, ok := p.Resolve(l.Color)
		if !ok {
			if l.Color != "" {
				return nil, nil, apperr.BadRequest("color %s is not available for product %d", l.Color, l.ProductID)
			}
			return nil, nil, apperr.BadRequest("product %d has no stock record", l.ProductID)
		}
		k := rowKey{productID: p.ID, color: v.Color}
		demand[k] += l.Quantity
		res = append(res, resolved{key: k, product: p, variant: v})
	}

	items := make([]orders.NewItem, 0, len(lines))
	priced := make([]pricing.Line, 0, len(lines))
	for i, r := range res {
		if demand[r.key] > r.variant.Quantity {
			return nil, nil, apperr.BadRequest("insufficient stock for product %d", r.product.ID)
		}
		l := lines[i]
		items = append(items, orders.NewItem{
			ProductID:   r.product.ID,
			Color:       l.Color,
			Quantity:    l.Quantity,
			UnitPrice:   pricing.UnitPrice(r.product.Price, r.product.Discount),
			ProductName: r.product.Name,
			Image:       s.image(r.product, r.variant),
		})
		priced = append(priced, pricing.Line{Price: r.product.Price, Discount: r.product.Discount, Quantity: l.Quantity})
	}
	return items, priced, nil
}

// image picks the variant's image, falling back to the primary one.
func (s *Service) image(p catalog.Product, v catalog.Variant) *orders.Image {
	if v.ImageUUID == "" {
		pv, ok := p.Resolve("")
		if !ok || pv.ImageUUID == "" {
			return nil
		}
		v = pv
	}
	img := &orders.Image{UUID: v.ImageUUID, Color: v.Color}
	if s.Cfg.AssetsURL != "" {
		img.URL = fmt.Sprintf("%s/products/%d/%s", strings.TrimRight(s.Cfg.AssetsURL, "/"), p.ID, v.ImageUUID)
	}
	return img
}

func (s *Service) reference() string {
	if s.NewReference != nil {
		return s.NewReference()
	}
	return s.Cfg.OrderRefPrefix + uuid.NewString()
}

func (s *Service) recall(ctx context.Context, req Request) (Result, bool) {
	if s.Idem == nil || req.IdempotencyKey == "" {
		return Result{}, false
	}
	raw, ok, err := s.Idem.Recall(ctx, req.UserID, req.IdempotencyKey)
	if err != nil || !ok {
		return Result{}, false
	}
	var res Result
	if err := json.Unmarshal([]byte(raw), &res); err != nil || res.CheckoutURL == "" {
		return Result{}, false
	}
	return res, true
}

func (s *Service) remember(ctx context.Context, req Request, res Result) {
	if s.Idem == nil || req.IdempotencyKey == "" {
		return
	}
	b, _ := json.Marshal(res)
	if err := s.Idem.Remember(ctx, req.UserID, req.IdempotencyKey, string(b)); err != nil {
		logging.FromCtx(ctx).Warn("idempotency key not stored", "err", err)
	}
}

func newItemLines(items []orders.NewItem) []orders.ItemLine {
	out := make([]orders.ItemLine, 0, len(items))
	for _, it := range items {
		out = append(out, orders.ItemLine{ProductID: it.ProductID, Color: it.Color, Qty: it.Quantity, UnitPrice: it.UnitPrice.String()})
	}
	return out
}
