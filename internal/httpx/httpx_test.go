package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-checkout-orders.git/internal/apperr"
	"github.com/ariefcatur/go-checkout-orders.git/internal/checkout"
	"github.com/ariefcatur/go-checkout-orders.git/internal/flitt"
	"github.com/ariefcatur/go-checkout-orders.git/internal/logging"
	"github.com/ariefcatur/go-checkout-orders.git/internal/orders"
	"github.com/ariefcatur/go-checkout-orders.git/internal/reconcile"
)

const jwtSecret = "jwt-test-secret"

type fakeCheckout struct {
	got checkout.Request
	err error
}

func (f *fakeCheckout) Checkout(_ context.Context, req checkout.Request) (checkout.Result, error) {
	f.got = req
	if f.err != nil {
		return checkout.Result{}, f.err
	}
	return checkout.Result{OrderReference: "ord_1", CheckoutURL: "https://pay.example/ord_1"}, nil
}

type fakeReconciler struct {
	got flitt.Fields
	err error
}

func (f *fakeReconciler) Handle(_ context.Context, fields flitt.Fields) (reconcile.Result, error) {
	f.got = fields
	if f.err != nil {
		return reconcile.Result{}, f.err
	}
	return reconcile.Result{Outcome: reconcile.OutcomeApplied}, nil
}

type fakeOrders struct {
	list   []orders.OrderWithItems
	status map[string]orders.Status
}

func (f *fakeOrders) ListForUser(_ context.Context, _ int64) ([]orders.OrderWithItems, error) {
	return f.list, nil
}

func (f *fakeOrders) Status(_ context.Context, ref string, _ int64) (orders.Status, error) {
	st, ok := f.status[ref]
	if !ok {
		return "", apperr.NotFound("order %s not found", ref)
	}
	return st, nil
}

type server struct {
	srv      *httptest.Server
	checkout *fakeCheckout
	recon    *fakeReconciler
	orders   *fakeOrders
}

func newServer(t *testing.T) *server {
	t.Helper()
	s := &server{checkout: &fakeCheckout{}, recon: &fakeReconciler{}, orders: &fakeOrders{status: map[string]orders.Status{}}}
	r := NewRouter(Options{Logger: logging.Discard(), JWTSecret: jwtSecret, RequestTimeout: 5 * time.Second}, Handlers{
		Checkout: &CheckoutHandler{Service: s.checkout},
		Payments: &PaymentsHandler{Reconciler: s.recon},
		Orders:   &OrdersHandler{Orders: s.orders},
	})
	s.srv = httptest.NewServer(r)
	t.Cleanup(s.srv.Close)
	return s
}

func token(t *testing.T, sub string, secret string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func (s *server) do(t *testing.T, method, path, contentType, body string, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, s.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func bearer(t *testing.T) map[string]string {
	t.Helper()
	return map[string]string{"Authorization": "Bearer " + token(t, "7", jwtSecret)}
}

const checkoutBody = `{
	"customer_type": "individual",
	"individual": {"name": "Nino", "surname": "B"},
	"email": "n@example.com",
	"phone_number": 555123456,
	"address": "Rustaveli 1",
	"delivery_type": "courier",
	"delivery_time": "asap",
	"items": [{"product_id": 7, "quantity": 2}, {"product_id": 8, "color": "red", "quantity": 1}]
}`

func TestHealthz(t *testing.T) {
	s := newServer(t)
	resp, err := http.Get(s.srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newServer(t)
	resp, err := http.Get(s.srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestCheckoutRequiresToken(t *testing.T) {
	s := newServer(t)
	cases := map[string]map[string]string{
		"missing":      nil,
		"wrong secret": {"Authorization": "Bearer " + token(t, "7", "other")},
		"bad subject":  {"Authorization": "Bearer " + token(t, "alice", jwtSecret)},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			resp, body := s.do(t, http.MethodPost, "/checkout", "application/json", checkoutBody, h)
			if resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("status = %d", resp.StatusCode)
			}
			if _, ok := body["message"].(string); !ok {
				t.Fatalf("missing message: %v", body)
			}
		})
	}
}

func TestCheckoutMapsRequest(t *testing.T) {
	s := newServer(t)
	h := bearer(t)
	h["Idempotency-Key"] = "abc"

	resp, body := s.do(t, http.MethodPost, "/checkout", "application/json", checkoutBody, h)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d body=%v", resp.StatusCode, body)
	}
	if body["order_id"] != "ord_1" || body["checkout_url"] != "https://pay.example/ord_1" {
		t.Fatalf("body = %v", body)
	}
	got := s.checkout.got
	if got.UserID != 7 || got.IdempotencyKey != "abc" {
		t.Fatalf("request = %+v", got)
	}
	if c, ok := got.Customer.(orders.Individual); !ok || c.Name != "Nino" {
		t.Fatalf("customer = %#v", got.Customer)
	}
	if got.Contact.Phone != "555123456" || got.Contact.Email != "n@example.com" {
		t.Fatalf("contact = %+v", got.Contact)
	}
	if len(got.Lines) != 2 || got.Lines[1].Color != "red" || got.Lines[0].Quantity != 2 {
		t.Fatalf("lines = %+v", got.Lines)
	}
}

func TestCheckoutErrors(t *testing.T) {
	s := newServer(t)

	resp, _ := s.do(t, http.MethodPost, "/checkout", "application/json", `{`, bearer(t))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad json status = %d", resp.StatusCode)
	}

	resp, body := s.do(t, http.MethodPost, "/checkout", "application/json", `{"customer_type":"company","items":[]}`, bearer(t))
	if resp.StatusCode != http.StatusBadRequest || body["message"] != "company details are required" {
		t.Fatalf("company status = %d body=%v", resp.StatusCode, body)
	}

	s.checkout.err = apperr.BadRequest("insufficient stock for product 7")
	resp, body = s.do(t, http.MethodPost, "/checkout", "application/json", checkoutBody, bearer(t))
	if resp.StatusCode != http.StatusBadRequest || body["message"] != "insufficient stock for product 7" {
		t.Fatalf("stock status = %d body=%v", resp.StatusCode, body)
	}

	s.checkout.err = apperr.Internal("create checkout session", context.DeadlineExceeded)
	resp, body = s.do(t, http.MethodPost, "/checkout", "application/json", checkoutBody, bearer(t))
	if resp.StatusCode != http.StatusInternalServerError || body["message"] != "internal server error" {
		t.Fatalf("internal status = %d body=%v", resp.StatusCode, body)
	}
}

func TestCallbackJSONKeepsNumbers(t *testing.T) {
	s := newServer(t)
	resp, _ := s.do(t, http.MethodPost, "/payments/callback", "application/json",
		`{"order_id":"ord_1","order_status":"approved","amount":10500,"payment_id":555001,"signature":"x"}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if n, ok := s.recon.got["amount"].(json.Number); !ok || n.String() != "10500" {
		t.Fatalf("amount = %#v", s.recon.got["amount"])
	}
}

func TestCallbackForm(t *testing.T) {
	s := newServer(t)
	form := url.Values{"order_id": {"ord_1"}, "order_status": {"declined"}, "signature": {"x"}}
	resp, _ := s.do(t, http.MethodPost, "/payments/callback", "application/x-www-form-urlencoded; charset=utf-8", form.Encode(), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if s.recon.got["order_status"] != "declined" {
		t.Fatalf("fields = %v", s.recon.got)
	}
}

func TestCallbackRejected(t *testing.T) {
	s := newServer(t)

	resp, _ := s.do(t, http.MethodPost, "/payments/callback", "application/json", `not json`, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed status = %d", resp.StatusCode)
	}

	s.recon.err = apperr.BadRequest("invalid signature")
	resp, body := s.do(t, http.MethodPost, "/payments/callback", "application/json", `{"order_id":"ord_1"}`, nil)
	if resp.StatusCode != http.StatusBadRequest || body["message"] != "invalid signature" {
		t.Fatalf("status = %d body=%v", resp.StatusCode, body)
	}
}

func TestOrderStatus(t *testing.T) {
	s := newServer(t)
	s.orders.status["ord_1"] = orders.StatusApproved

	resp, body := s.do(t, http.MethodGet, "/orders/ord_1", "", "", bearer(t))
	if resp.StatusCode != http.StatusOK || body["status"] != "approved" {
		t.Fatalf("status = %d body=%v", resp.StatusCode, body)
	}

	resp, _ = s.do(t, http.MethodGet, "/orders/ord_other", "", "", bearer(t))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown order status = %d", resp.StatusCode)
	}
}

func TestOrderHistory(t *testing.T) {
	s := newServer(t)
	pid := int64(555001)
	s.orders.list = []orders.OrderWithItems{{
		Order: orders.Order{
			ID: 1, Reference: "ord_1", UserID: 7, Amount: 10500, Currency: "GEL",
			Status: orders.StatusApproved, PaymentID: &pid,
			Customer: orders.Organization{Type: "LLC", Name: "Acme", Code: "123"},
		},
		Items: []orders.Item{{ID: 1, OrderID: 1, ProductID: 7, Quantity: 2, UnitPrice: decimal.NewFromInt(50), ProductName: "Shirt"}},
	}}

	req, _ := http.NewRequest(http.MethodGet, s.srv.URL+"/orders", nil)
	req.Header.Set("Authorization", bearer(t)["Authorization"])
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("orders = %v", out)
	}
	o := out[0]
	if o["order_id"] != "ord_1" || o["customer_type"] != "company" || o["organization_name"] != "Acme" {
		t.Fatalf("order view = %v", o)
	}
	items := o["items"].([]any)
	if it := items[0].(map[string]any); it["price_at_purchase"] != "50.00" || it["color"] != nil {
		t.Fatalf("item view = %v", it)
	}
}
