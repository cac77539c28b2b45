package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/0888060509/champong-admin/internal/audit"
	"github.com/0888060509/champong-admin/internal/store"
	"github.com/0888060509/champong-admin/internal/suggest"
)

const testKey = "test-key"

func newTestServer(t *testing.T, opts Options) (*Server, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	if err := store.Seed(context.Background(), st, time.Now()); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	if opts.AdminAPIKey == "" {
		opts.AdminAPIKey = testKey
	}
	opts.Logger = zerolog.Nop()
	svc := suggest.NewService(suggest.NewStaticGenerator(), suggest.WithLogger(zerolog.Nop()))
	return NewServer(st, svc, opts), st
}

func do(t *testing.T, h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response: %v (body %q)", err, rr.Body.String())
	}
}

var adminHeader = map[string]string{"Authorization": "Bearer " + testKey}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	rr := do(t, srv.Router(), http.MethodGet, "/healthz", "", nil)

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
	if rr.Body.String() != "ok" {
		t.Errorf("Expected body 'ok', got %s", rr.Body.String())
	}
}

func TestValidateEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	handler := srv.Router()

	tests := []struct {
		name      string
		path      string
		body      string
		wantCode  int
		wantValid bool
		wantField string
	}{
		{
			name:      "valid customer tree",
			path:      "/v1/rules/customer/validate",
			body:      `{"conditions":{"type":"group","logic":"AND","conditions":[{"type":"condition","criteria":"totalSpend","operator":">=","value":1000}]}}`,
			wantCode:  http.StatusOK,
			wantValid: true,
		},
		{
			name:      "operator outside criteria",
			path:      "/v1/rules/customer/validate",
			body:      `{"conditions":{"type":"group","logic":"AND","conditions":[{"type":"condition","criteria":"membershipLevel","operator":">=","value":"Gold"}]}}`,
			wantCode:  http.StatusOK,
			wantField: "conditions[0].operator",
		},
		{
			name:      "placeholders are not resolved",
			path:      "/v1/rules/customer/validate",
			body:      `{"conditions":{"type":"group","logic":"AND","conditions":[{"type":"condition","criteria":"lastVisit","operator":"after","value":"DATE_7_DAYS_AGO"}]}}`,
			wantCode:  http.StatusOK,
			wantField: "conditions[0].value",
		},
		{
			name:     "unknown domain",
			path:     "/v1/rules/kitchen/validate",
			body:     `{"conditions":{"type":"group","logic":"AND","conditions":[]}}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "missing tree",
			path:     "/v1/rules/product/validate",
			body:     `{}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown node type",
			path:     "/v1/rules/product/validate",
			body:     `{"conditions":{"type":"group","logic":"AND","conditions":[{"type":"rule"}]}}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "broken json",
			path:     "/v1/rules/product/validate",
			body:     `{"conditions":`,
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, handler, http.MethodPost, tt.path, tt.body, nil)
			if rr.Code != tt.wantCode {
				t.Fatalf("Expected status %d, got %d: %s", tt.wantCode, rr.Code, rr.Body.String())
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			var resp validateResponse
			decodeBody(t, rr, &resp)
			if resp.Valid != tt.wantValid {
				t.Errorf("Expected valid=%v, got %v (issues %+v)", tt.wantValid, resp.Valid, resp.Issues)
			}
			if tt.wantField != "" {
				if _, ok := resp.Fields[tt.wantField]; !ok {
					t.Errorf("Expected field %q in %v", tt.wantField, resp.Fields)
				}
			}
		})
	}
}

func TestRenderEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	body := `{"conditions":{"type":"group","logic":"OR","conditions":[
		{"type":"condition","criteria":"category","operator":"==","value":"Desserts"},
		{"type":"condition","criteria":"price","operator":"<=","value":5}]}}`

	rr := do(t, srv.Router(), http.MethodPost, "/v1/rules/collection/render", body, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp renderResponse
	decodeBody(t, rr, &resp)
	if want := "(Category = 'Desserts' OR Price <= 5)"; resp.Rendered != want {
		t.Errorf("Expected %q, got %q", want, resp.Rendered)
	}
}

func TestEvaluateEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	body := `{
		"now": "2024-07-31T10:00:00Z",
		"conditions": {"type":"group","logic":"AND","conditions":[
			{"type":"condition","criteria":"totalSpend","operator":">=","value":1000},
			{"type":"condition","criteria":"lastVisit","operator":"after","value":"DATE_30_DAYS_AGO"}]},
		"records": [
			{"totalSpend": 1500, "lastVisit": "2024-07-20"},
			{"totalSpend": 1500, "lastVisit": "2024-05-01"},
			{"totalSpend": 1500}
		]
	}`

	rr := do(t, srv.Router(), http.MethodPost, "/v1/rules/customer/evaluate", body, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp evaluateResponse
	decodeBody(t, rr, &resp)

	if resp.Rendered != "(Total Spend >= 1000 AND Last Visit after 7/1/2024)" {
		t.Errorf("Unexpected rendered %q", resp.Rendered)
	}
	if resp.Matched != 1 {
		t.Errorf("Expected 1 match, got %d", resp.Matched)
	}
	want := []recordResult{
		{Index: 0, Matched: true},
		{Index: 1, Matched: false},
		{Index: 2, Matched: false, Missing: []missingField{{Path: "conditions[1]", Criteria: "lastVisit"}}},
	}
	if diff := cmp.Diff(want, resp.Results); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluateEndpoint_InvalidTree(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	body := `{"conditions":{"type":"group","logic":"AND","conditions":[
		{"type":"condition","criteria":"favouriteDish","operator":"==","value":"Pho"}]},"records":[{}]}`

	rr := do(t, srv.Router(), http.MethodPost, "/v1/rules/customer/evaluate", body, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", rr.Code)
	}
	var resp ErrorResponse
	decodeBody(t, rr, &resp)
	if resp.Code != ErrCodeValidation {
		t.Errorf("Expected code %s, got %s", ErrCodeValidation, resp.Code)
	}
	if len(resp.Issues) != 1 || resp.Issues[0].Kind != "InvalidCriteria" {
		t.Errorf("Unexpected issues %+v", resp.Issues)
	}
}

func TestCompileEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	tree := `{"type":"group","logic":"AND","conditions":[{"type":"condition","criteria":"price","operator":"<=","value":5}]}`

	tests := []struct {
		name     string
		target   string
		wantCode int
		check    func(t *testing.T, resp compileResponse)
	}{
		{
			name:     "default jsonlogic",
			wantCode: http.StatusOK,
			check: func(t *testing.T, resp compileResponse) {
				if resp.Target != targetJSONLogic {
					t.Errorf("Expected target jsonlogic, got %s", resp.Target)
				}
				if got := string(resp.Expression); got != `{"and":[{"<=":[{"var":"price"},5]}]}` {
					t.Errorf("Unexpected expression %s", got)
				}
			},
		},
		{
			name:     "cel",
			target:   "CEL",
			wantCode: http.StatusOK,
			check: func(t *testing.T, resp compileResponse) {
				if resp.Source != "(price <= 5.0)" {
					t.Errorf("Unexpected source %q", resp.Source)
				}
			},
		},
		{
			name:     "unknown target",
			target:   "sql",
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := `{"target":"` + tt.target + `","conditions":` + tree + `}`
			rr := do(t, srv.Router(), http.MethodPost, "/v1/rules/product/compile", body, nil)
			if rr.Code != tt.wantCode {
				t.Fatalf("Expected status %d, got %d: %s", tt.wantCode, rr.Code, rr.Body.String())
			}
			if strings.Contains(rr.Body.String(), `\u003c`) {
				t.Errorf("Response body is HTML-escaped: %s", rr.Body.String())
			}
			if tt.check != nil {
				var resp compileResponse
				decodeBody(t, rr, &resp)
				tt.check(t, resp)
			}
		})
	}
}

func TestRuleSetAuth(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	handler := srv.Router()
	body := `{"name":"Cheap eats","conditions":{"type":"group","logic":"AND","conditions":[{"type":"condition","criteria":"price","operator":"<=","value":6}]}}`

	tests := []struct {
		name     string
		header   map[string]string
		wantCode int
	}{
		{"no token", nil, http.StatusUnauthorized},
		{"not bearer", map[string]string{"Authorization": "Basic abc"}, http.StatusUnauthorized},
		{"wrong token", map[string]string{"Authorization": "Bearer nope"}, http.StatusForbidden},
		{"admin", adminHeader, http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, handler, http.MethodPost, "/v1/collections", body, tt.header)
			if rr.Code != tt.wantCode {
				t.Errorf("Expected status %d, got %d: %s", tt.wantCode, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestRuleSetLifecycle(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	handler := srv.Router()

	// create
	body := `{"name":"Recent big spenders","description":"Spent 500 this quarter","conditions":{"type":"group","logic":"AND","conditions":[
		{"type":"condition","criteria":"totalSpend","operator":">=","value":500},
		{"type":"condition","criteria":"lastVisit","operator":"after","value":"DATE_90_DAYS_AGO"}]}}`
	rr := do(t, handler, http.MethodPost, "/v1/segments", body, adminHeader)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var created ruleSetResponse
	decodeBody(t, rr, &created)
	if created.ID == "" || created.Domain != "customer" {
		t.Fatalf("Unexpected created rule set %+v", created)
	}
	if loc := rr.Header().Get("Location"); loc != "/v1/segments/"+created.ID {
		t.Errorf("Unexpected Location %q", loc)
	}
	if strings.Contains(created.Rendered, "DATE_") {
		t.Errorf("Expected placeholders to be resolved, got %q", created.Rendered)
	}

	// get with etag
	path := "/v1/segments/" + created.ID
	rr = do(t, handler, http.MethodGet, path, "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	etag := rr.Header().Get("ETag")
	if !strings.HasPrefix(etag, `W/"`) {
		t.Fatalf("Expected weak ETag, got %q", etag)
	}
	rr = do(t, handler, http.MethodGet, path, "", map[string]string{"If-None-Match": etag})
	if rr.Code != http.StatusNotModified {
		t.Errorf("Expected status 304, got %d", rr.Code)
	}

	// wrong domain
	rr = do(t, handler, http.MethodGet, "/v1/collections/"+created.ID, "", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 across domains, got %d", rr.Code)
	}

	// replace changes the etag
	replace := `{"name":"Big spenders","conditions":{"type":"group","logic":"AND","conditions":[
		{"type":"condition","criteria":"totalSpend","operator":">=","value":2000}]}}`
	rr = do(t, handler, http.MethodPut, path, replace, adminHeader)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("ETag") == etag {
		t.Error("Expected ETag to change after replace")
	}

	// members
	rr = do(t, handler, http.MethodGet, path+"/members", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	var members struct {
		Count int              `json:"count"`
		Items []store.Customer `json:"items"`
	}
	decodeBody(t, rr, &members)
	var ids []string
	for _, c := range members.Items {
		ids = append(ids, c.ID)
	}
	if diff := cmp.Diff([]string{"cus-001", "cus-006"}, ids); diff != "" || members.Count != 2 {
		t.Errorf("members mismatch (-want +got):\n%s", diff)
	}

	// delete
	rr = do(t, handler, http.MethodDelete, path, "", adminHeader)
	if rr.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", rr.Code)
	}
	rr = do(t, handler, http.MethodGet, path, "", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 after delete, got %d", rr.Code)
	}
}

func TestRuleSetCreate_Rejected(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	handler := srv.Router()

	tests := []struct {
		name       string
		body       string
		wantIssues bool
	}{
		{
			name:       "invalid tree",
			body:       `{"name":"Bad","conditions":{"type":"group","logic":"AND","conditions":[{"type":"condition","criteria":"totalSpend","operator":"contains","value":"1"}]}}`,
			wantIssues: true,
		},
		{
			name: "missing name",
			body: `{"conditions":{"type":"group","logic":"AND","conditions":[{"type":"condition","criteria":"totalSpend","operator":">=","value":1}]}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, handler, http.MethodPost, "/v1/segments", tt.body, adminHeader)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("Expected status 400, got %d: %s", rr.Code, rr.Body.String())
			}
			var resp ErrorResponse
			decodeBody(t, rr, &resp)
			if resp.Code != ErrCodeValidation {
				t.Errorf("Expected code %s, got %s", ErrCodeValidation, resp.Code)
			}
			if got := len(resp.Issues) > 0; got != tt.wantIssues {
				t.Errorf("Expected issues=%v, got %+v", tt.wantIssues, resp.Issues)
			}
		})
	}
}

func TestRuleSetList(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	rr := do(t, srv.Router(), http.MethodGet, "/v1/collections", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	var resp listRuleSetsResponse
	decodeBody(t, rr, &resp)
	if resp.Count != 2 || len(resp.Items) != 2 {
		t.Fatalf("Expected the 2 seeded collections, got %d", resp.Count)
	}
	for _, item := range resp.Items {
		if item.Domain != "product" || item.Rendered == "" {
			t.Errorf("Unexpected item %+v", item)
		}
	}
}

func TestCollectionProducts(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	rr := do(t, srv.Router(), http.MethodGet, "/v1/collections/col-sweet/products", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	var resp struct {
		Count int             `json:"count"`
		Items []store.Product `json:"items"`
	}
	decodeBody(t, rr, &resp)
	if resp.Count != 2 {
		t.Errorf("Expected 2 sweet products in stock, got %d", resp.Count)
	}
}

func TestSuggestEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	handler := srv.Router()

	rr := do(t, handler, http.MethodPost, "/v1/segments/suggest", `{"description":"our VIP guests"}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp suggest.Result
	decodeBody(t, rr, &resp)
	if resp.Domain != "customer" || len(resp.Accepted) != 1 {
		t.Fatalf("Unexpected result %+v", resp)
	}
	if resp.Accepted[0].Name != "Loyal regulars" {
		t.Errorf("Expected 'Loyal regulars', got %q", resp.Accepted[0].Name)
	}

	rr = do(t, handler, http.MethodPost, "/v1/segments/suggest", `{"description":"   "}`, nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for blank description, got %d", rr.Code)
	}
}

func TestSuggestEndpoint_RateLimited(t *testing.T) {
	srv, _ := newTestServer(t, Options{SuggestRatePerMin: 2})
	handler := srv.Router()

	codes := make([]int, 0, 3)
	for range 3 {
		rr := do(t, handler, http.MethodPost, "/v1/collections/suggest", `{"description":"sweet things"}`, nil)
		codes = append(codes, rr.Code)
	}
	want := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}
	if diff := cmp.Diff(want, codes); diff != "" {
		t.Errorf("status codes mismatch (-want +got):\n%s", diff)
	}
}

func TestSuggestEndpoint_NotConfigured(t *testing.T) {
	srv := NewServer(store.NewMemoryStore(), nil, Options{AdminAPIKey: testKey, Logger: zerolog.Nop()})
	rr := do(t, srv.Router(), http.MethodPost, "/v1/segments/suggest", `{"description":"vip"}`, nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", rr.Code)
	}
}

func TestAuditTrail(t *testing.T) {
	trail := audit.NewService(audit.NewMemorySink(10))
	srv, _ := newTestServer(t, Options{Audit: trail})
	handler := srv.Router()

	body := `{"name":"Cheap eats","conditions":{"type":"group","logic":"AND","conditions":[{"type":"condition","criteria":"price","operator":"<=","value":6}]}}`
	rr := do(t, handler, http.MethodPost, "/v1/collections", body, adminHeader)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", rr.Code)
	}
	var created ruleSetResponse
	decodeBody(t, rr, &created)

	rr = do(t, handler, http.MethodDelete, "/v1/collections/"+created.ID, "", adminHeader)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", rr.Code)
	}
	// flush the queue
	if err := trail.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	rr = do(t, handler, http.MethodGet, "/v1/audit", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 without a token, got %d", rr.Code)
	}

	rr = do(t, handler, http.MethodGet, "/v1/audit?limit=10", "", adminHeader)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp auditResponse
	decodeBody(t, rr, &resp)
	var actions []string
	for _, e := range resp.Items {
		if e.RuleSetID != created.ID {
			t.Errorf("Unexpected rule set %q in trail", e.RuleSetID)
		}
		actions = append(actions, e.Action)
	}
	if diff := cmp.Diff([]string{audit.ActionDeleted, audit.ActionCreated}, actions); diff != "" {
		t.Errorf("actions mismatch (-want +got):\n%s", diff)
	}

	rr = do(t, handler, http.MethodGet, "/v1/audit?limit=0", "", adminHeader)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for limit=0, got %d", rr.Code)
	}
}
