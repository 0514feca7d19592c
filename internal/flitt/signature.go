// Package flitt speaks the Flitt payment provider protocol: the canonical
// request signature and the checkout-url endpoint.
package flitt

import (
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"hash"
	"sort"
	"strconv"
	"strings"
)

var ErrInvalidSignature = errors.New("invalid callback signature")

// Fields excluded from the signed string on inbound callbacks.
const (
	FieldSignature       = "signature"
	FieldResponseSigning = "response_signature_string"
)

// Fields is a provider payload as received: an opaque key/value map.
type Fields map[string]any

// String returns the field rendered the way the provider signs it.
func (f Fields) String(key string) (string, bool) {
	v, ok := f[key]
	if !ok {
		return "", false
	}
	return stringify(v)
}

// Int64 accepts both JSON numbers and numeric strings.
func (f Fields) Int64(key string) (int64, bool) {
	s, ok := f.String(key)
	if !ok || s == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func stringify(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case json.Number:
		return x.String(), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case bool:
		return strconv.FormatBool(x), true
	}
	return "", false
}

// Signer builds the provider signature: values sorted by key, empty values
// dropped, secret prepended, joined with "|", hashed and hex encoded.
type Signer struct {
	secret string
	hash   func() hash.Hash
}

// NewSigner uses SHA-1, which is what the provider expects.
func NewSigner(secret string) Signer {
	return Signer{secret: secret, hash: sha1.New}
}

func NewSignerWithHash(secret string, h func() hash.Hash) Signer {
	return Signer{secret: secret, hash: h}
}

func (s Signer) Sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+1)
	parts = append(parts, s.secret)
	for _, k := range keys {
		parts = append(parts, params[k])
	}
	h := s.hash()
	h.Write([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(h.Sum(nil))
}

// Verify recomputes the signature over every field except the signature
// fields themselves. Values that are not scalars are skipped.
func (s Signer) Verify(f Fields) error {
	got, ok := f.String(FieldSignature)
	if !ok || got == "" {
		return ErrInvalidSignature
	}
	params := make(map[string]string, len(f))
	for k, v := range f {
		if k == FieldSignature || k == FieldResponseSigning {
			continue
		}
		if sv, ok := stringify(v); ok {
			params[k] = sv
		}
	}
	want := s.Sign(params)
	if subtle.ConstantTimeCompare([]byte(want), []byte(strings.ToLower(got))) != 1 {
		return ErrInvalidSignature
	}
	return nil
}

// SignFields signs an outbound or test payload in place.
func (s Signer) SignFields(f Fields) Fields {
	params := make(map[string]string, len(f))
	for k, v := range f {
		if k == FieldSignature || k == FieldResponseSigning {
			continue
		}
		if sv, ok := stringify(v); ok {
			params[k] = sv
		}
	}
	f[FieldSignature] = s.Sign(params)
	return f
}
