package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/0888060509/champong-admin/internal/rules"
)

// ErrNotFound is returned when a rule set does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidRuleSet is returned when upsert parameters are rejected.
var ErrInvalidRuleSet = errors.New("invalid rule set")

// Store defines persistence for rule sets and the records they select.
// Implementations must be safe for concurrent use.
type Store interface {
	// ListRuleSets returns every rule set of a domain, oldest first.
	ListRuleSets(ctx context.Context, domain rules.DomainName) ([]RuleSet, error)

	// GetRuleSet returns a rule set by id, or ErrNotFound.
	GetRuleSet(ctx context.Context, id string) (*RuleSet, error)

	// UpsertRuleSet creates a rule set (empty ID) or replaces one wholesale.
	// Invalid trees are refused before anything is written.
	UpsertRuleSet(ctx context.Context, params UpsertParams) (*RuleSet, error)

	// DeleteRuleSet removes a rule set. Deleting a missing id is not an error.
	DeleteRuleSet(ctx context.Context, id string) error

	// ListCustomers returns all customer records.
	ListCustomers(ctx context.Context) ([]Customer, error)

	// ListProducts returns all product records.
	ListProducts(ctx context.Context) ([]Product, error)

	UpsertCustomer(ctx context.Context, c Customer) error
	UpsertProduct(ctx context.Context, p Product) error

	// Close releases any resources held by the store.
	Close() error
}

// RuleSet is a named rule tree. Customer-domain rule sets are segments,
// product-domain ones are collections.
type RuleSet struct {
	ID             string           `json:"id"`
	Domain         rules.DomainName `json:"domain"`
	Name           string           `json:"name"`
	Description    string           `json:"description"`
	PublicTitle    string           `json:"publicTitle,omitempty"`
	PublicSubtitle string           `json:"publicSubtitle,omitempty"`
	Conditions     *rules.Group     `json:"conditions"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

// UpsertParams contains the parameters for upserting a rule set.
type UpsertParams struct {
	ID             string           `json:"id,omitempty"` // empty creates
	Domain         rules.DomainName `json:"domain"`
	Name           string           `json:"name"`
	Description    string           `json:"description"`
	PublicTitle    string           `json:"publicTitle,omitempty"`
	PublicSubtitle string           `json:"publicSubtitle,omitempty"`
	Conditions     *rules.Group     `json:"conditions"`
}

// Validate checks the parameters and the tree against the domain. A tree
// failure is returned as a *rules.ValidationError wrapped in
// ErrInvalidRuleSet.
func (p UpsertParams) Validate() error {
	domain, ok := rules.LookupDomain(string(p.Domain))
	if !ok {
		return fmt.Errorf("%w: unknown domain %q", ErrInvalidRuleSet, p.Domain)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRuleSet)
	}
	if p.Conditions == nil {
		return fmt.Errorf("%w: conditions are required", ErrInvalidRuleSet)
	}
	if err := domain.Validate(p.Conditions).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRuleSet, err)
	}
	return nil
}

// Customer is a restaurant guest record.
type Customer struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email,omitempty"`
	TotalSpend      float64   `json:"totalSpend"`
	OrderFrequency  int       `json:"orderFrequency"`
	LastVisit       time.Time `json:"lastVisit"`
	MembershipLevel string    `json:"membershipLevel"`
}

// Field implements engine.Record using the customer criteria names.
func (c Customer) Field(name string) (any, bool) {
	switch name {
	case "totalSpend":
		return c.TotalSpend, true
	case "orderFrequency":
		return c.OrderFrequency, true
	case "lastVisit":
		return c.LastVisit, !c.LastVisit.IsZero()
	case "membershipLevel":
		return c.MembershipLevel, c.MembershipLevel != ""
	default:
		return nil, false
	}
}

// Product is a menu item record.
type Product struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Price        float64  `json:"price"`
	ProfitMargin float64  `json:"profit_margin"`
	StockLevel   int      `json:"stock_level"`
	Category     string   `json:"category"`
	Tags         []string `json:"tags,omitempty"`
}

// Field implements engine.Record using the product criteria names.
func (p Product) Field(name string) (any, bool) {
	switch name {
	case "price":
		return p.Price, true
	case "profit_margin":
		return p.ProfitMargin, true
	case "stock_level":
		return p.StockLevel, true
	case "category":
		return p.Category, p.Category != ""
	case "tags":
		return p.Tags, p.Tags != nil
	default:
		return nil, false
	}
}

// normalized returns p with its domain alias resolved to the canonical name.
// Call after Validate.
func (p UpsertParams) normalized() UpsertParams {
	if d, ok := rules.LookupDomain(string(p.Domain)); ok {
		p.Domain = d.Name
	}
	p.Name = strings.TrimSpace(p.Name)
	return p
}
