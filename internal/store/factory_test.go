package store

import (
	"context"
	"testing"

	"github.com/0888060509/champong-admin/internal/rules"
)

func TestNewStore_Memory(t *testing.T) {
	ctx := context.Background()
	st, err := NewStore(ctx, "memory", "")
	if err != nil {
		t.Fatalf("NewStore('memory') failed: %v", err)
	}
	defer st.Close()

	_, err = st.UpsertRuleSet(ctx, UpsertParams{
		Domain:     rules.DomainProduct,
		Name:       "Cheap",
		Conditions: rules.And(rules.Cond("price", rules.OpLte, rules.Number(5))),
	})
	if err != nil {
		t.Fatalf("UpsertRuleSet failed: %v", err)
	}
	sets, err := st.ListRuleSets(ctx, rules.DomainProduct)
	if err != nil {
		t.Fatalf("ListRuleSets failed: %v", err)
	}
	if len(sets) != 1 {
		t.Errorf("Expected 1 rule set, got %d", len(sets))
	}
}

func TestNewStore_Errors(t *testing.T) {
	tests := []struct {
		name      string
		storeType string
		dsn       string
		wantMsg   string
	}{
		{name: "unsupported type", storeType: "invalid-type", wantMsg: "unsupported store type: invalid-type"},
		{name: "bad dsn", storeType: "postgres", dsn: "postgres://%zz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewStore(context.Background(), tt.storeType, tt.dsn)
			if err == nil {
				t.Fatal("Expected an error")
			}
			if tt.wantMsg != "" && err.Error() != tt.wantMsg {
				t.Errorf("Expected error message '%s', got '%s'", tt.wantMsg, err.Error())
			}
		})
	}
}
