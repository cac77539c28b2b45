// Package testutil holds helpers shared by the HTTP-level tests.
package testutil

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/0888060509/champong-admin/internal/api"
	"github.com/0888060509/champong-admin/internal/store"
	"github.com/0888060509/champong-admin/internal/suggest"
)

// NewTestServer creates an API server over a seeded in-memory store with the
// static suggestion generator.
func NewTestServer(t *testing.T, adminKey string) (*api.Server, *store.MemoryStore) {
	t.Helper()
	memStore := store.NewMemoryStore()
	if err := store.Seed(context.Background(), memStore, time.Now()); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	svc := suggest.NewService(suggest.NewStaticGenerator(), suggest.WithLogger(zerolog.Nop()))
	server := api.NewServer(memStore, svc, api.Options{AdminAPIKey: adminKey, Logger: zerolog.Nop()})
	return server, memStore
}

// NewHTTPServer starts NewTestServer behind a real listener, closed with t.
func NewHTTPServer(t *testing.T, adminKey string) *httptest.Server {
	t.Helper()
	server, _ := NewTestServer(t, adminKey)
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)
	return ts
}

// HTTPRequest is a helper for making test HTTP requests.
type HTTPRequest struct {
	Method  string
	Path    string
	Body    string
	Headers map[string]string
}

// Do executes the HTTP request and returns the response recorder.
func (r *HTTPRequest) Do(t *testing.T, handler http.Handler) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if r.Body != "" {
		body = bytes.NewBufferString(r.Body)
	}
	req := httptest.NewRequest(r.Method, r.Path, body)
	if r.Body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// SeedRuleSets saves each rule set, failing the test on the first error.
func SeedRuleSets(t *testing.T, st store.Store, sets []store.UpsertParams) []*store.RuleSet {
	t.Helper()
	out := make([]*store.RuleSet, 0, len(sets))
	for _, p := range sets {
		rs, err := st.UpsertRuleSet(context.Background(), p)
		if err != nil {
			t.Fatalf("UpsertRuleSet %q failed: %v", p.Name, err)
		}
		out = append(out, rs)
	}
	return out
}
