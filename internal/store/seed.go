package store

import (
	"context"
	"fmt"
	"time"

	"github.com/0888060509/champong-admin/internal/rules"
)

// Seed loads the mock restaurant data used by the admin dashboard: a small
// guest list, the menu, and a few starter segments and collections.
// Relative dates are anchored at now.
func Seed(ctx context.Context, st Store, now time.Time) error {
	day := func(n int) time.Time {
		y, m, d := now.UTC().AddDate(0, 0, -n).Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}

	customers := []Customer{
		{ID: "cus-001", Name: "Linh Tran", Email: "linh@example.com", TotalSpend: 2450, OrderFrequency: 18, LastVisit: day(3), MembershipLevel: "Gold"},
		{ID: "cus-002", Name: "Minh Pham", Email: "minh@example.com", TotalSpend: 980, OrderFrequency: 7, LastVisit: day(12), MembershipLevel: "Silver"},
		{ID: "cus-003", Name: "Sarah Cole", Email: "sarah@example.com", TotalSpend: 310, OrderFrequency: 2, LastVisit: day(75), MembershipLevel: "Bronze"},
		{ID: "cus-004", Name: "An Nguyen", Email: "an@example.com", TotalSpend: 1320, OrderFrequency: 11, LastVisit: day(40), MembershipLevel: "Silver"},
		{ID: "cus-005", Name: "David Ho", Email: "david@example.com", TotalSpend: 150, OrderFrequency: 1, LastVisit: day(200), MembershipLevel: "Bronze"},
		{ID: "cus-006", Name: "Mai Le", Email: "mai@example.com", TotalSpend: 4100, OrderFrequency: 32, LastVisit: day(1), MembershipLevel: "Gold"},
	}
	for _, c := range customers {
		if err := st.UpsertCustomer(ctx, c); err != nil {
			return fmt.Errorf("seed customer %s: %w", c.ID, err)
		}
	}

	products := []Product{
		{ID: "prd-001", Name: "Pho Bo", Price: 12.5, ProfitMargin: 38, StockLevel: 40, Category: "Main Course", Tags: []string{"signature", "beef"}},
		{ID: "prd-002", Name: "Spring Rolls", Price: 6, ProfitMargin: 55, StockLevel: 8, Category: "Appetizers", Tags: []string{"vegan", "crispy"}},
		{ID: "prd-003", Name: "Che Ba Mau", Price: 5.5, ProfitMargin: 62, StockLevel: 25, Category: "Desserts", Tags: []string{"sweet", "seasonal"}},
		{ID: "prd-004", Name: "Iced Coffee", Price: 4, ProfitMargin: 70, StockLevel: 120, Category: "Beverages", Tags: []string{"sweet", "cold"}},
		{ID: "prd-005", Name: "Bun Cha", Price: 14, ProfitMargin: 35, StockLevel: 3, Category: "Main Course", Tags: []string{"pork", "spicy"}},
		{ID: "prd-006", Name: "Mango Sticky Rice", Price: 7.5, ProfitMargin: 48, StockLevel: 0, Category: "Desserts", Tags: []string{"sweet", "vegan"}},
	}
	for _, p := range products {
		if err := st.UpsertProduct(ctx, p); err != nil {
			return fmt.Errorf("seed product %s: %w", p.ID, err)
		}
	}

	ruleSets := []UpsertParams{
		{
			ID:          "seg-vip",
			Domain:      rules.DomainCustomer,
			Name:        "VIP regulars",
			Description: "Gold members who spent at least 1000 and visited this month",
			Conditions: rules.And(
				rules.Cond("membershipLevel", rules.OpEq, rules.String("Gold")),
				rules.Cond("totalSpend", rules.OpGte, rules.Number(1000)),
				rules.Cond("lastVisit", rules.OpAfter, rules.String("DATE_30_DAYS_AGO")),
			),
		},
		{
			ID:          "seg-lapsed",
			Domain:      rules.DomainCustomer,
			Name:        "Lapsed guests",
			Description: "Guests who have not been back in two months",
			Conditions: rules.And(
				rules.Cond("lastVisit", rules.OpBefore, rules.String("DATE_60_DAYS_AGO")),
			),
		},
		{
			ID:             "col-sweet",
			Domain:         rules.DomainProduct,
			Name:           "Sweet treats",
			Description:    "Desserts and sweet drinks that are in stock",
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
		{
			ID:          "col-low-stock",
			Domain:      rules.DomainProduct,
			Name:        "Running low",
			Description: "Items with ten or fewer portions left",
			Conditions:  rules.And(rules.Cond("stock_level", rules.OpLte, rules.Number(10))),
		},
	}
	for _, p := range ruleSets {
		p.Conditions = rules.ResolveTree(p.Conditions, now)
		if _, err := st.UpsertRuleSet(ctx, p); err != nil {
			return fmt.Errorf("seed rule set %s: %w", p.ID, err)
		}
	}
	return nil
}
