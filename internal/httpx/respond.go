package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/ariefcatur/go-checkout-orders.git/internal/apperr"
	"github.com/ariefcatur/go-checkout-orders.git/internal/logging"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError answers {"message": ...}. Internal causes are logged, never sent.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.HTTPStatus(err)
	if code >= http.StatusInternalServerError {
		logging.FromCtx(r.Context()).Error("request failed", "err", err)
	}
	writeJSON(w, code, map[string]string{"message": apperr.PublicMessage(err)})
}
