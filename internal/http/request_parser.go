// This file implements decoding and normalization of JSON request bodies.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"payoff/internal/core"
)

// DefaultMaxBodyBytes bounds every JSON body.
const DefaultMaxBodyBytes = 1 << 20

// SimulateRequest is the body of POST /debts/simulate and its async variant.
// Debts is nil when the field is omitted, in which case stored debts are used.
type SimulateRequest struct {
	Debts    []core.Debt   `json:"debts"`
	Strategy core.Strategy `json:"strategy"`
}

// CompareRequest is the body of POST /debts/compare.
type CompareRequest struct {
	Debts        []core.Debt   `json:"debts"`
	ExtraPayment core.Money    `json:"extraPayment"`
	Methods      []core.Method `json:"methods"`
}

// DecodeJSON reads exactly one JSON value from the body into dst. Unknown
// fields and trailing data are rejected.
func DecodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		return fmt.Errorf("content type %q is not application/json", ct)
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return errors.New("request body is empty")
		case errors.As(err, &maxErr):
			return fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		case errors.Is(err, core.ErrInvalidAmount):
			return errors.New("amounts must be decimal numbers")
		default:
			return fmt.Errorf("malformed JSON: %w", err)
		}
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// normalizeMethod accepts methods in any case and with surrounding blanks.
// Unknown names are left for validation to reject.
func normalizeMethod(m core.Method) core.Method {
	return core.Method(strings.ToLower(strings.TrimSpace(string(m))))
}

func (req *SimulateRequest) normalize() {
	req.Strategy.Method = normalizeMethod(req.Strategy.Method)
	req.Debts = sanitizeDebts(req.Debts)
}

func (req *CompareRequest) normalize() {
	for i, m := range req.Methods {
		req.Methods[i] = normalizeMethod(m)
	}
	req.Debts = sanitizeDebts(req.Debts)
}

// sanitizeDebts trims text fields in place; nil stays nil.
func sanitizeDebts(debts []core.Debt) []core.Debt {
	for i := range debts {
		debts[i] = sanitizeDebt(debts[i])
	}
	return debts
}

func sanitizeDebt(d core.Debt) core.Debt {
	d.ID = sanitizeInput(d.ID)
	d.Name = sanitizeInput(d.Name)
	d.Type = sanitizeInput(d.Type)
	return d
}
