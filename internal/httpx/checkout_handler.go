package httpx

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ariefcatur/go-checkout-orders.git/internal/apperr"
	"github.com/ariefcatur/go-checkout-orders.git/internal/checkout"
	"github.com/ariefcatur/go-checkout-orders.git/internal/orders"
)

type Checkouter interface {
	Checkout(ctx context.Context, req checkout.Request) (checkout.Result, error)
}

type CheckoutHandler struct {
	Service Checkouter
}

type individualReq struct {
	Name    string `json:"name"`
	Surname string `json:"surname"`
}

type companyReq struct {
	OrganizationType string `json:"organization_type"`
	OrganizationName string `json:"organization_name"`
	OrganizationCode string `json:"organization_code"`
}

type cartItemReq struct {
	ProductID int64  `json:"product_id"`
	Color     string `json:"color"`
	Quantity  int    `json:"quantity"`
}

type checkoutReq struct {
	CustomerType string         `json:"customer_type"`
	Individual   *individualReq `json:"individual"`
	Company      *companyReq    `json:"company"`
	Email        string         `json:"email"`
	PhoneNumber  json.Number    `json:"phone_number"`
	Address      string         `json:"address"`
	DeliveryType string         `json:"delivery_type"`
	DeliveryTime string         `json:"delivery_time"`
	Items        []cartItemReq  `json:"items"`
}

func (c checkoutReq) customer() (orders.Customer, error) {
	switch c.CustomerType {
	case orders.CustomerIndividual:
		if c.Individual == nil {
			return nil, apperr.BadRequest("individual details are required")
		}
		return orders.Individual{Name: c.Individual.Name, Surname: c.Individual.Surname}, nil
	case orders.CustomerOrganization:
		if c.Company == nil {
			return nil, apperr.BadRequest("company details are required")
		}
		return orders.Organization{
			Type: c.Company.OrganizationType,
			Name: c.Company.OrganizationName,
			Code: c.Company.OrganizationCode,
		}, nil
	}
	return nil, apperr.BadRequest("invalid customer_type")
}

func (h *CheckoutHandler) Register(r chi.Router) {
	r.Post("/checkout", h.checkout)
}

func (h *CheckoutHandler) checkout(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r.Context())
	if !ok {
		writeError(w, r, apperr.Unauthorized("missing user"))
		return
	}
	var req checkoutReq
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, r, apperr.BadRequest("invalid json"))
		return
	}
	cust, err := req.customer()
	if err != nil {
		writeError(w, r, err)
		return
	}

	lines := make([]checkout.Line, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, checkout.Line{ProductID: it.ProductID, Color: it.Color, Quantity: it.Quantity})
	}
	res, err := h.Service.Checkout(r.Context(), checkout.Request{
		UserID:         userID,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
		TraceID:        middleware.GetReqID(r.Context()),
		Lines:          lines,
		Customer:       cust,
		Contact: orders.Contact{
			Email:        req.Email,
			Phone:        req.PhoneNumber.String(),
			Address:      req.Address,
			DeliveryType: req.DeliveryType,
			DeliveryTime: req.DeliveryTime,
		},
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
