package client

import (
	"context"
	"errors"
	"testing"

	"github.com/0888060509/champong-admin/internal/rules"
	"github.com/0888060509/champong-admin/internal/store"
	"github.com/0888060509/champong-admin/internal/testutil"
)

func newTestClient(t *testing.T, key string) *Client {
	t.Helper()
	ts := testutil.NewHTTPServer(t, "admin")
	return NewClient(ts.URL+"/", key)
}

func TestClient_RuleSetLifecycle(t *testing.T) {
	c := newTestClient(t, "admin")
	ctx := context.Background()

	sets, err := c.ListRuleSets(ctx, rules.Customer)
	if err != nil {
		t.Fatalf("ListRuleSets failed: %v", err)
	}
	if len(sets) != 2 {
		t.Fatalf("Expected 2 seeded segments, got %d", len(sets))
	}

	created, err := c.ApplyRuleSet(ctx, rules.Product, store.UpsertParams{
		Name:       "Budget",
		Conditions: rules.And(rules.Cond("price", rules.OpLte, rules.Number(6))),
	})
	if err != nil {
		t.Fatalf("ApplyRuleSet (create) failed: %v", err)
	}
	if created.Rendered != "(Price <= 6)" {
		t.Errorf("Unexpected rendered %q", created.Rendered)
	}

	created.Conditions = rules.And(rules.Cond("price", rules.OpLte, rules.Number(5)))
	replaced, err := c.ApplyRuleSet(ctx, rules.Product, store.UpsertParams{
		ID:         created.ID,
		Name:       created.Name,
		Conditions: created.Conditions,
	})
	if err != nil {
		t.Fatalf("ApplyRuleSet (replace) failed: %v", err)
	}
	if replaced.ID != created.ID || replaced.Rendered != "(Price <= 5)" {
		t.Errorf("Unexpected replaced rule set %+v", replaced)
	}

	recs, err := c.Records(ctx, rules.Product, created.ID)
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}
	if recs.Count != 1 || len(recs.Items) != 1 {
		t.Errorf("Expected only the iced coffee, got %d", recs.Count)
	}

	if err := c.DeleteRuleSet(ctx, rules.Product, created.ID); err != nil {
		t.Fatalf("DeleteRuleSet failed: %v", err)
	}
	_, err = c.GetRuleSet(ctx, rules.Product, created.ID)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestClient_APIErrors(t *testing.T) {
	c := newTestClient(t, "wrong")
	ctx := context.Background()

	_, err := c.ApplyRuleSet(ctx, rules.Customer, store.UpsertParams{
		Name:       "Nope",
		Conditions: rules.And(rules.Cond("totalSpend", rules.OpGte, rules.Number(1))),
	})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != 403 || apiErr.Code != "FORBIDDEN" {
		t.Errorf("Unexpected API error %+v", apiErr)
	}
}

func TestClient_ValidateAndSuggest(t *testing.T) {
	c := newTestClient(t, "")
	ctx := context.Background()

	res, err := c.Validate(ctx, rules.Customer, rules.And(rules.Cond("membershipLevel", rules.OpGte, rules.String("Gold"))))
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if res.Valid || len(res.Issues) != 1 || res.Issues[0].Kind != rules.InvalidOperator {
		t.Errorf("Unexpected validate result %+v", res)
	}

	sug, err := c.Suggest(ctx, rules.Product, "vegan dishes")
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	if len(sug.Accepted) != 1 || sug.Accepted[0].Name != "Plant based" {
		t.Errorf("Unexpected suggestions %+v", sug.Accepted)
	}
}
