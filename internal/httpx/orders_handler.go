package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-checkout-orders.git/internal/apperr"
	"github.com/ariefcatur/go-checkout-orders.git/internal/orders"
)

type OrderReader interface {
	ListForUser(ctx context.Context, userID int64) ([]orders.OrderWithItems, error)
	Status(ctx context.Context, ref string, userID int64) (orders.Status, error)
}

type StatusCache interface {
	Get(ctx context.Context, userID int64, ref string, load func(context.Context) (string, error)) (string, error)
}

type OrdersHandler struct {
	Orders OrderReader
	Cache  StatusCache // optional
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Get("/orders", h.list)
	r.Get("/orders/{ref}", h.status)
}

type itemView struct {
	ID              int64         `json:"id"`
	ProductID       int64         `json:"product_id"`
	Color           *string       `json:"color"`
	Quantity        int           `json:"quantity"`
	PriceAtPurchase string        `json:"price_at_purchase"`
	ProductName     string        `json:"product_name"`
	ProductImage    *orders.Image `json:"product_image"`
	CreatedAt       time.Time     `json:"created_at"`
}

type orderView struct {
	ID               int64      `json:"id"`
	UserID           int64      `json:"user_id"`
	OrderID          string     `json:"order_id"`
	Status           string     `json:"status"`
	PaymentID        *int64     `json:"payment_id"`
	Amount           int64      `json:"amount"`
	Currency         string     `json:"currency"`
	CustomerType     string     `json:"customer_type"`
	CustomerName     string     `json:"customer_name,omitempty"`
	CustomerSurname  string     `json:"customer_surname,omitempty"`
	OrganizationType string     `json:"organization_type,omitempty"`
	OrganizationName string     `json:"organization_name,omitempty"`
	OrganizationCode string     `json:"organization_code,omitempty"`
	Email            string     `json:"email"`
	PhoneNumber      string     `json:"phone_number"`
	Address          string     `json:"address"`
	DeliveryType     string     `json:"delivery_type"`
	DeliveryTime     string     `json:"delivery_time"`
	CheckoutURL      string     `json:"checkout_url,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	Items            []itemView `json:"items"`
}

func toOrderView(o orders.OrderWithItems) orderView {
	v := orderView{
		ID:           o.ID,
		UserID:       o.UserID,
		OrderID:      o.Reference,
		Status:       string(o.Status),
		PaymentID:    o.PaymentID,
		Amount:       o.Amount,
		Currency:     o.Currency,
		Email:        o.Contact.Email,
		PhoneNumber:  o.Contact.Phone,
		Address:      o.Contact.Address,
		DeliveryType: o.Contact.DeliveryType,
		DeliveryTime: o.Contact.DeliveryTime,
		CheckoutURL:  o.CheckoutURL,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
		Items:        make([]itemView, 0, len(o.Items)),
	}
	switch c := o.Customer.(type) {
	case orders.Individual:
		v.CustomerType, v.CustomerName, v.CustomerSurname = c.CustomerType(), c.Name, c.Surname
	case orders.Organization:
		v.CustomerType, v.OrganizationType, v.OrganizationName, v.OrganizationCode = c.CustomerType(), c.Type, c.Name, c.Code
	}
	for _, it := range o.Items {
		iv := itemView{
			ID:              it.ID,
			ProductID:       it.ProductID,
			Quantity:        it.Quantity,
			PriceAtPurchase: it.UnitPrice.StringFixed(2),
			ProductName:     it.ProductName,
			ProductImage:    it.Image,
			CreatedAt:       it.CreatedAt,
		}
		if it.Color != "" {
			color := it.Color
			iv.Color = &color
		}
		v.Items = append(v.Items, iv)
	}
	return v
}

func (h *OrdersHandler) list(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r.Context())
	if !ok {
		writeError(w, r, apperr.Unauthorized("missing user"))
		return
	}
	list, err := h.Orders.ListForUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]orderView, 0, len(list))
	for _, o := range list {
		out = append(out, toOrderView(o))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) status(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r.Context())
	if !ok {
		writeError(w, r, apperr.Unauthorized("missing user"))
		return
	}
	ref := chi.URLParam(r, "ref")
	load := func(ctx context.Context) (string, error) {
		st, err := h.Orders.Status(ctx, ref, userID)
		return string(st), err
	}

	var (
		st  string
		err error
	)
	if h.Cache != nil {
		st, err = h.Cache.Get(r.Context(), userID, ref, load)
	} else {
		st, err = load(r.Context())
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"order_id": ref, "status": st})
}
