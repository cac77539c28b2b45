package suggest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/0888060509/champong-admin/internal/engine"
	"github.com/0888060509/champong-admin/internal/rules"
)

var fixedNow = time.Date(2024, 7, 31, 15, 4, 5, 0, time.UTC)

type stubGenerator struct {
	resp *Response
	err  error
	req  Request
}

func (s *stubGenerator) Suggest(ctx context.Context, req Request) (*Response, error) {
	s.req = req
	return s.resp, s.err
}

type blockingGenerator struct{}

func (blockingGenerator) Suggest(ctx context.Context, req Request) (*Response, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestService_StaticResolvesPlaceholders(t *testing.T) {
	svc := NewService(NewStaticGenerator(), WithClock(func() time.Time { return fixedNow }))

	result, err := svc.Suggest(context.Background(), "segments", "our VIP guests")
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	if result.Domain != rules.DomainCustomer {
		t.Errorf("Domain = %s, want customer", result.Domain)
	}
	if len(result.Accepted) != 1 || len(result.Rejected) != 0 {
		t.Fatalf("Expected one accepted suggestion, got %+v", result)
	}

	got := result.Accepted[0]
	want := "(Membership Level = 'Gold' AND Total Spend >= 1000 AND Last Visit after 7/1/2024)"
	if got.Rendered != want {
		t.Errorf("Rendered = %s, want %s", got.Rendered, want)
	}

	rules.Walk(got.Conditions, func(n rules.Node, _ rules.Path) {
		if c, ok := n.(*rules.Condition); ok {
			if s, isStr := c.Value.Str(); isStr && rules.IsPlaceholder(s) {
				t.Errorf("placeholder %s left in accepted tree", s)
			}
		}
	})

	loyal := engine.MapRecord{"membershipLevel": "Gold", "totalSpend": 1200, "lastVisit": fixedNow.AddDate(0, 0, -2)}
	if !engine.Evaluate(got.Conditions, loyal) {
		t.Error("Expected a recent gold big spender to match")
	}
}

func TestService_StaticFallback(t *testing.T) {
	svc := NewService(NewStaticGenerator(), WithClock(func() time.Time { return fixedNow }))

	result, err := svc.Suggest(context.Background(), "product", "something for the lunch crowd")
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	if len(result.Accepted) != 1 || result.Accepted[0].Name != "Sweet treats" {
		t.Errorf("Expected the first template as fallback, got %+v", result.Accepted)
	}
}

func TestService_RejectsInvalidSuggestions(t *testing.T) {
	gen := &stubGenerator{resp: &Response{Suggestions: []Suggestion{
		{Name: "good", Conditions: rules.And(rules.Cond("price", rules.OpLte, rules.Number(10)))},
		{Name: "wrong domain", Conditions: rules.And(rules.Cond("totalSpend", rules.OpGte, rules.Number(10)))},
		{Name: "unknown placeholder", Conditions: rules.And(rules.Cond("price", rules.OpEq, rules.String("DATE_TOMORROW")))},
		{Name: "undecodable"},
	}}}
	svc := NewService(gen, WithLogger(zerolog.Nop()))

	result, err := svc.Suggest(context.Background(), "collection", "cheap food")
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	if gen.req.Domain != rules.Product || gen.req.Description != "cheap food" {
		t.Errorf("Unexpected request %+v", gen.req)
	}
	if len(result.Accepted) != 1 || result.Accepted[0].Name != "good" {
		t.Fatalf("Expected only the good suggestion accepted, got %+v", result.Accepted)
	}
	if len(result.Rejected) != 3 {
		t.Fatalf("Expected 3 rejected suggestions, got %d", len(result.Rejected))
	}

	wantKinds := []rules.IssueKind{rules.InvalidCriteria, rules.InvalidValueType, rules.EmptyGroup}
	for i, rej := range result.Rejected {
		if len(rej.Issues) == 0 || rej.Issues[0].Kind != wantKinds[i] {
			t.Errorf("rejected[%d] (%s) issues = %+v, want %s", i, rej.Name, rej.Issues, wantKinds[i])
		}
	}
}

func TestService_Errors(t *testing.T) {
	ctx := context.Background()

	svc := NewService(&stubGenerator{err: errors.New("quota exceeded")})
	if _, err := svc.Suggest(ctx, "customer", "anyone"); !errors.Is(err, ErrGenerate) {
		t.Errorf("Expected ErrGenerate, got %v", err)
	}
	if _, err := svc.Suggest(ctx, "orders", "anyone"); !errors.Is(err, ErrUnknownDomain) {
		t.Errorf("Expected ErrUnknownDomain, got %v", err)
	}
	if _, err := svc.Suggest(ctx, "customer", "   "); !errors.Is(err, ErrEmptyDescription) {
		t.Errorf("Expected ErrEmptyDescription, got %v", err)
	}
}

func TestService_Timeout(t *testing.T) {
	svc := NewService(blockingGenerator{}, WithTimeout(10*time.Millisecond))

	_, err := svc.Suggest(context.Background(), "customer", "anyone")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected DeadlineExceeded, got %v", err)
	}
}

func TestDecodeResponse(t *testing.T) {
	data := []byte(`{"suggestions":[
		{"name":"Dessert lovers","description":"d","publicTitle":"Sweet","suggestedConditions":
			{"type":"group","logic":"and","conditions":[{"type":"condition","criteria":"category","operator":"eq","value":"Desserts"}]}},
		{"name":"Broken","suggestedConditions":{"type":"rule"}}
	]}`)

	resp, err := decodeResponse(data, zerolog.Nop())
	if err != nil {
		t.Fatalf("decodeResponse failed: %v", err)
	}
	if len(resp.Suggestions) != 2 {
		t.Fatalf("Expected 2 suggestions, got %d", len(resp.Suggestions))
	}
	first := resp.Suggestions[0]
	if first.Conditions == nil || first.Conditions.Logic != rules.LogicAnd {
		t.Errorf("Expected the first tree decoded with AND logic, got %+v", first.Conditions)
	}
	if first.PublicTitle != "Sweet" {
		t.Errorf("PublicTitle = %q", first.PublicTitle)
	}
	if resp.Suggestions[1].Conditions != nil {
		t.Error("Expected the broken tree to be dropped")
	}

	if _, err := decodeResponse([]byte("not json"), zerolog.Nop()); err == nil {
		t.Error("Expected an error for non-JSON output")
	}
}

func TestService_RejectsNonScalarValues(t *testing.T) {
	data := []byte(`{"suggestions":[
		{"name":"Flagged","suggestedConditions":
			{"type":"group","logic":"AND","conditions":[{"type":"condition","criteria":"price","operator":"lte","value":true}]}}
	]}`)
	resp, err := decodeResponse(data, zerolog.Nop())
	if err != nil {
		t.Fatalf("decodeResponse failed: %v", err)
	}
	if resp.Suggestions[0].Conditions == nil {
		t.Fatal("Expected the tree to be kept for validation")
	}

	svc := NewService(&stubGenerator{resp: resp}, WithLogger(zerolog.Nop()))
	result, err := svc.Suggest(context.Background(), "product", "anything")
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	if len(result.Rejected) != 1 {
		t.Fatalf("Expected 1 rejected suggestion, got %+v", result)
	}
	issues := result.Rejected[0].Issues
	if len(issues) != 1 || issues[0].Kind != rules.InvalidValueType || issues[0].Key() != "conditions[0].value" {
		t.Errorf("issues = %+v, want InvalidValueType at conditions[0].value", issues)
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := buildPrompt(Request{Domain: rules.Product, Description: "cold drinks"})

	for _, want := range []string{`"cold drinks"`, "stock_level", "DATE_30_DAYS_AGO", "suggestedConditions", "publicTitle"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestStaticGenerator_MultipleMatches(t *testing.T) {
	gen := NewStaticGenerator()
	resp, err := gen.Suggest(context.Background(), Request{Domain: rules.Product, Description: "Cheap vegan desserts"})
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	names := make([]string, 0, len(resp.Suggestions))
	for _, s := range resp.Suggestions {
		names = append(names, s.Name)
	}
	if strings.Join(names, ",") != "Sweet treats,Budget friendly,Plant based" {
		t.Errorf("Suggestions = %v", names)
	}

	// templates are copied out
	resp.Suggestions[0].Conditions.Conditions = nil
	again, _ := gen.Suggest(context.Background(), Request{Domain: rules.Product, Description: "dessert"})
	if len(again.Suggestions[0].Conditions.Conditions) == 0 {
		t.Error("template mutated through a returned suggestion")
	}
}
