package suggest

import (
	"context"
	"strings"

	"github.com/0888060509/champong-admin/internal/rules"
)

// template is one canned suggestion, offered when any keyword appears in the
// description.
type template struct {
	keywords   []string
	suggestion Suggestion
}

// StaticGenerator matches descriptions against a fixed keyword table. It
// needs no network access and is used when no GenAI key is configured.
type StaticGenerator struct {
	templates map[rules.DomainName][]template
}

// NewStaticGenerator returns a generator over the built-in templates.
func NewStaticGenerator() *StaticGenerator {
	return &StaticGenerator{templates: map[rules.DomainName][]template{
		rules.DomainCustomer: customerTemplates(),
		rules.DomainProduct:  productTemplates(),
	}}
}

// Suggest implements Generator. Every template with a matching keyword is
// returned in table order; with no match the first template is the fallback.
func (g *StaticGenerator) Suggest(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	table := g.templates[req.Domain.Name]
	desc := strings.ToLower(req.Description)

	resp := &Response{}
	for _, t := range table {
		for _, kw := range t.keywords {
			if strings.Contains(desc, kw) {
				resp.Suggestions = append(resp.Suggestions, copySuggestion(t.suggestion))
				break
			}
		}
	}
	if len(resp.Suggestions) == 0 && len(table) > 0 {
		resp.Suggestions = append(resp.Suggestions, copySuggestion(table[0].suggestion))
	}
	return resp, nil
}

// Name returns the generator name.
func (g *StaticGenerator) Name() string { return "static" }

func copySuggestion(s Suggestion) Suggestion {
	if s.Conditions != nil {
		s.Conditions = rules.Clone(s.Conditions).(*rules.Group)
	}
	return s
}

func customerTemplates() []template {
	return []template{
		{
			keywords: []string{"vip", "loyal", "best", "top"},
			suggestion: Suggestion{
				Name:        "Loyal regulars",
				Description: "Gold members who spend a lot and came in recently",
				Conditions: rules.And(
					rules.Cond("membershipLevel", rules.OpEq, rules.String("Gold")),
					rules.Cond("totalSpend", rules.OpGte, rules.Number(1000)),
					rules.Cond("lastVisit", rules.OpAfter, rules.String("DATE_30_DAYS_AGO")),
				),
			},
		},
		{
			keywords: []string{"lapsed", "inactive", "churn", "win back", "haven't", "lost"},
			suggestion: Suggestion{
				Name:        "Lapsed guests",
				Description: "Guests who have not visited in three months",
				Conditions: rules.And(
					rules.Cond("lastVisit", rules.OpBefore, rules.String("DATE_90_DAYS_AGO")),
				),
			},
		},
		{
			keywords: []string{"new", "first", "recent"},
			suggestion: Suggestion{
				Name:        "New guests",
				Description: "Guests with few orders who visited this month",
				Conditions: rules.And(
					rules.Cond("orderFrequency", rules.OpLte, rules.Number(2)),
					rules.Cond("lastVisit", rules.OpAfter, rules.String("DATE_30_DAYS_AGO")),
				),
			},
		},
		{
			keywords: []string{"frequent", "often", "regular"},
			suggestion: Suggestion{
				Name:        "Frequent diners",
				Description: "Guests who order often or hold a Silver or Gold card",
				Conditions: rules.Or(
					rules.Cond("orderFrequency", rules.OpGte, rules.Number(10)),
					rules.Cond("membershipLevel", rules.OpEq, rules.String("Silver")),
					rules.Cond("membershipLevel", rules.OpEq, rules.String("Gold")),
				),
			},
		},
	}
}

func productTemplates() []template {
	return []template{
		{
			keywords: []string{"dessert", "sweet", "treat"},
			suggestion: Suggestion{
				Name:           "Sweet treats",
				Description:    "Desserts and sweet items currently in stock",
				PublicTitle:    "Something Sweet",
				PublicSubtitle: "Finish your meal the right way",
				Conditions: rules.And(
					rules.Cond("stock_level", rules.OpGte, rules.Number(1)),
					rules.Or(
						rules.Cond("category", rules.OpEq, rules.String("Desserts")),
						rules.Cond("tags", rules.OpContains, rules.String("sweet")),
					),
				),
			},
		},
		{
			keywords: []string{"margin", "profit", "upsell"},
			suggestion: Suggestion{
				Name:           "High margin picks",
				Description:    "Items with a profit margin of at least 50%",
				PublicTitle:    "Chef's Picks",
				PublicSubtitle: "Our kitchen's favourites",
				Conditions: rules.And(
					rules.Cond("profit_margin", rules.OpGte, rules.Number(50)),
					rules.Cond("stock_level", rules.OpGte, rules.Number(1)),
				),
			},
		},
		{
			keywords: []string{"cheap", "budget", "value", "under"},
			suggestion: Suggestion{
				Name:           "Budget friendly",
				Description:    "Items priced at 8 or less",
				PublicTitle:    "Great Value",
				PublicSubtitle: "Tasty picks for less",
				Conditions: rules.And(
					rules.Cond("price", rules.OpLte, rules.Number(8)),
				),
			},
		},
		{
			keywords: []string{"vegan", "plant", "vegetarian"},
			suggestion: Suggestion{
				Name:           "Plant based",
				Description:    "Items tagged vegan",
				PublicTitle:    "Plant Powered",
				PublicSubtitle: "No animal products",
				Conditions: rules.And(
					rules.Cond("tags", rules.OpEq, rules.String("vegan")),
				),
			},
		},
		{
			keywords: []string{"low stock", "running out", "clear", "sell out"},
			suggestion: Suggestion{
				Name:        "Running low",
				Description: "Items with ten or fewer portions left",
				Conditions: rules.And(
					rules.Cond("stock_level", rules.OpLte, rules.Number(10)),
					rules.Cond("stock_level", rules.OpGte, rules.Number(1)),
				),
			},
		},
	}
}
