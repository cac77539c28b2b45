package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/0888060509/champong-admin/internal/rules"
)

// MemoryStore is an in-memory implementation of the Store interface.
// It uses maps for storage and an RWMutex for concurrent access.
// This implementation is suitable for development, testing, or single-instance deployments.
type MemoryStore struct {
	mu        sync.RWMutex
	ruleSets  map[string]RuleSet
	customers map[string]Customer
	products  map[string]Product
	now       func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ruleSets:  make(map[string]RuleSet),
		customers: make(map[string]Customer),
		products:  make(map[string]Product),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ListRuleSets returns the rule sets of a domain ordered by creation time.
func (m *MemoryStore) ListRuleSets(ctx context.Context, domain rules.DomainName) ([]RuleSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]RuleSet, 0, len(m.ruleSets))
	for _, rs := range m.ruleSets {
		if rs.Domain == domain {
			result = append(result, rs)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// GetRuleSet returns a rule set by id.
func (m *MemoryStore) GetRuleSet(ctx context.Context, id string) (*RuleSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rs, exists := m.ruleSets[id]
	if !exists {
		return nil, ErrNotFound
	}
	return &rs, nil
}

// UpsertRuleSet validates params and stores the rule set, replacing any
// existing one with the same id.
func (m *MemoryStore) UpsertRuleSet(ctx context.Context, params UpsertParams) (*RuleSet, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	params = params.normalized()

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	rs := RuleSet{
		ID:             params.ID,
		Domain:         params.Domain,
		Name:           params.Name,
		Description:    params.Description,
		PublicTitle:    params.PublicTitle,
		PublicSubtitle: params.PublicSubtitle,
		Conditions:     rules.Clone(params.Conditions).(*rules.Group),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if rs.ID == "" {
		rs.ID = uuid.NewString()
	} else if existing, ok := m.ruleSets[rs.ID]; ok {
		rs.CreatedAt = existing.CreatedAt
	}

	m.ruleSets[rs.ID] = rs
	return &rs, nil
}

// DeleteRuleSet removes a rule set from memory.
func (m *MemoryStore) DeleteRuleSet(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Idempotent: no error if the rule set doesn't exist
	delete(m.ruleSets, id)
	return nil
}

// ListCustomers returns customers ordered by id.
func (m *MemoryStore) ListCustomers(ctx context.Context) ([]Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Customer, 0, len(m.customers))
	for _, c := range m.customers {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// ListProducts returns products ordered by id.
func (m *MemoryStore) ListProducts(ctx context.Context) ([]Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Product, 0, len(m.products))
	for _, p := range m.products {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// UpsertCustomer stores a customer, assigning an id when empty.
func (m *MemoryStore) UpsertCustomer(ctx context.Context, c Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	m.customers[c.ID] = c
	return nil
}

// UpsertProduct stores a product, assigning an id when empty.
func (m *MemoryStore) UpsertProduct(ctx context.Context, p Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	m.products[p.ID] = p
	return nil
}

// Close is a no-op for MemoryStore as there are no resources to release.
func (m *MemoryStore) Close() error {
	return nil
}
