package flitt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ariefcatur/go-checkout-orders.git/internal/apperr"
)

const (
	DefaultCheckoutURL = "https://pay.flitt.com/api/checkout/url"
	protocolVersion    = "1.0.1"
)

type Config struct {
	Endpoint   string
	MerchantID int64
	SecretKey  string
	Currency   string
	Timeout    time.Duration
	HTTPClient *http.Client
}

type Client struct {
	endpoint   string
	merchantID int64
	currency   string
	signer     Signer
	http       *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultCheckoutURL
	}
	if cfg.Currency == "" {
		cfg.Currency = "GEL"
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		endpoint:   cfg.Endpoint,
		merchantID: cfg.MerchantID,
		currency:   cfg.Currency,
		signer:     NewSigner(cfg.SecretKey),
		http:       hc,
	}
}

func (c *Client) Signer() Signer { return c.signer }

type CheckoutRequest struct {
	OrderID           string
	Amount            int64 // minor units
	Description       string
	ServerCallbackURL string
	ResponseURL       string
}

type checkoutBody struct {
	Request checkoutParams `json:"request"`
}

type checkoutParams struct {
	Version           string `json:"version"`
	MerchantID        int64  `json:"merchant_id"`
	OrderID           string `json:"order_id"`
	OrderDesc         string `json:"order_desc"`
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
	ResponseURL       string `json:"response_url"`
	ServerCallbackURL string `json:"server_callback_url"`
	Signature         string `json:"signature"`
}

type checkoutResponse struct {
	Response struct {
		ResponseStatus string `json:"response_status"`
		CheckoutURL    string `json:"checkout_url"`
		ErrorMessage   string `json:"error_message"`
		ErrorCode      any    `json:"error_code"`
	} `json:"response"`
}

// CreateCheckout asks the provider for a hosted checkout page. It never retries.
func (c *Client) CreateCheckout(ctx context.Context, req CheckoutRequest) (string, error) {
	p := checkoutParams{
		Version:           protocolVersion,
		MerchantID:        c.merchantID,
		OrderID:           req.OrderID,
		OrderDesc:         req.Description,
		Amount:            req.Amount,
		Currency:          c.currency,
		ResponseURL:       req.ResponseURL,
		ServerCallbackURL: req.ServerCallbackURL,
	}
	p.Signature = c.signer.Sign(map[string]string{
		"version":             p.Version,
		"merchant_id":         strconv.FormatInt(p.MerchantID, 10),
		"order_id":            p.OrderID,
		"order_desc":          p.OrderDesc,
		"amount":              strconv.FormatInt(p.Amount, 10),
		"currency":            p.Currency,
		"response_url":        p.ResponseURL,
		"server_callback_url": p.ServerCallbackURL,
	})

	body, err := json.Marshal(checkoutBody{Request: p})
	if err != nil {
		return "", apperr.Internal("encode flitt request", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", apperr.Internal("build flitt request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", apperr.Internal("flitt request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", apperr.Internal("read flitt response", err)
	}
	var out checkoutResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", apperr.Internal("parse flitt response", fmt.Errorf("status %d: %w", resp.StatusCode, err))
	}
	if out.Response.ResponseStatus != "success" {
		msg := out.Response.ErrorMessage
		if msg == "" {
			msg = "unknown flitt error"
		}
		return "", apperr.Internal("flitt order creation failed", fmt.Errorf("%s (code %v)", msg, out.Response.ErrorCode))
	}
	if out.Response.CheckoutURL == "" {
		return "", apperr.Internal("flitt response missing checkout_url", nil)
	}
	return out.Response.CheckoutURL, nil
}
