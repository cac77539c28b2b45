package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/0888060509/champong-admin/internal/rules"
)

const maxBodyBytes = 1 << 20 // 1 MB

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// decodeJSON reads a size-limited JSON body into v. On failure it writes the
// error response and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		RequestTooLargeError(w, r, "Request body too large")
	case errors.Is(err, rules.ErrMalformedTree):
		BadRequestError(w, r, ErrCodeInvalidTree, err.Error())
	default:
		BadRequestError(w, r, ErrCodeInvalidJSON, "Invalid JSON: "+err.Error())
	}
	return false
}

// domainParam resolves the {domain} URL parameter, writing a 400 when it
// names no vocabulary.
func domainParam(w http.ResponseWriter, r *http.Request) (*rules.Domain, bool) {
	name := chi.URLParam(r, "domain")
	d, ok := rules.LookupDomain(name)
	if !ok {
		BadRequestError(w, r, ErrCodeInvalidDomain, "Unknown domain '"+strings.TrimSpace(name)+"' (use customer or product)")
		return nil, false
	}
	return d, true
}

// requireTree writes a 400 when a request omitted its rule tree.
func requireTree(w http.ResponseWriter, r *http.Request, tree *rules.Group) bool {
	if tree == nil {
		ValidationError(w, r, "Request is missing its rule tree", map[string]string{
			"conditions": "conditions are required",
		})
		return false
	}
	return true
}
