package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-checkout-orders.git/internal/apperr"
	"github.com/ariefcatur/go-checkout-orders.git/internal/flitt"
	"github.com/ariefcatur/go-checkout-orders.git/internal/reconcile"
)

const maxCallbackBody = 64 << 10

type CallbackReconciler interface {
	Handle(ctx context.Context, f flitt.Fields) (reconcile.Result, error)
}

type PaymentsHandler struct {
	Reconciler CallbackReconciler
}

func (h *PaymentsHandler) Register(r chi.Router) {
	r.Post("/payments/callback", h.callback)
}

// callback answers 400 only for unreadable or unauthenticated payloads. Every
// other outcome is acknowledged so the provider stops retrying.
func (h *PaymentsHandler) callback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCallbackBody))
	if err != nil {
		writeError(w, r, apperr.BadRequest("unreadable body"))
		return
	}
	fields, err := parseCallback(r.Header.Get("Content-Type"), body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := h.Reconciler.Handle(r.Context(), fields); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func parseCallback(contentType string, body []byte) (flitt.Fields, error) {
	mt, _, _ := mime.ParseMediaType(contentType)
	if mt == "application/x-www-form-urlencoded" {
		vals, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, apperr.BadRequest("invalid form body")
		}
		f := make(flitt.Fields, len(vals))
		for k := range vals {
			f[k] = vals.Get(k)
		}
		return f, nil
	}

	// Numbers stay json.Number so they sign exactly as the provider sent them.
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var f flitt.Fields
	if err := dec.Decode(&f); err != nil || f == nil {
		return nil, apperr.BadRequest("invalid json")
	}
	return f, nil
}
