package testutil

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/0888060509/champong-admin/internal/rules"
	"github.com/0888060509/champong-admin/internal/store"
)

func TestNewTestServer(t *testing.T) {
	server, memStore := NewTestServer(t, "test-key")
	if server == nil || memStore == nil {
		t.Fatal("Expected non-nil server and store")
	}

	sets, err := memStore.ListRuleSets(context.Background(), rules.DomainProduct)
	if err != nil {
		t.Fatalf("ListRuleSets failed: %v", err)
	}
	if len(sets) == 0 {
		t.Error("Expected the store to be seeded")
	}
}

func TestHTTPRequest_Do(t *testing.T) {
	server, _ := NewTestServer(t, "test-key")

	rr := (&HTTPRequest{Method: "GET", Path: "/healthz"}).Do(t, server.Router())
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
	if rr.Body.String() != "ok" {
		t.Errorf("Expected body 'ok', got '%s'", rr.Body.String())
	}
}

func TestHTTPRequest_DoWithBody(t *testing.T) {
	server, _ := NewTestServer(t, "test-key")
	handler := server.Router()

	tests := []struct {
		name    string
		headers map[string]string
		want    int
	}{
		{name: "no token", want: http.StatusUnauthorized},
		{name: "admin token", headers: map[string]string{"Authorization": "Bearer test-key"}, want: http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &HTTPRequest{
				Method:  "POST",
				Path:    "/v1/collections",
				Body:    `{"name":"Cheap","conditions":{"type":"group","logic":"AND","conditions":[{"type":"condition","criteria":"price","operator":"lte","value":5}]}}`,
				Headers: tt.headers,
			}
			rr := req.Do(t, handler)
			if rr.Code != tt.want {
				t.Errorf("Expected status %d, got %d: %s", tt.want, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestNewHTTPServer(t *testing.T) {
	ts := NewHTTPServer(t, "test-key")

	resp, err := http.Get(ts.URL + "/v1/segments")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Expected JSON, got %q", ct)
	}
}

func TestSeedRuleSets(t *testing.T) {
	_, memStore := NewTestServer(t, "test-key")

	saved := SeedRuleSets(t, memStore, []store.UpsertParams{
		{
			Domain:     rules.DomainCustomer,
			Name:       "Gold members",
			Conditions: rules.And(rules.Cond("membershipLevel", rules.OpEq, rules.String("Gold"))),
		},
	})
	if len(saved) != 1 || saved[0].ID == "" {
		t.Fatalf("Expected one saved rule set with an id, got %+v", saved)
	}
	got, err := memStore.GetRuleSet(context.Background(), saved[0].ID)
	if err != nil {
		t.Fatalf("GetRuleSet failed: %v", err)
	}
	if got.Name != "Gold members" {
		t.Errorf("Expected name 'Gold members', got %q", got.Name)
	}
}
