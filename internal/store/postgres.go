package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/0888060509/champong-admin/internal/rules"
)

const (
	ruleSetColumns = `id, domain, name, description, public_title, public_subtitle, conditions, created_at, updated_at`

	listRuleSetsSQL  = `SELECT ` + ruleSetColumns + ` FROM rule_sets WHERE domain = $1 ORDER BY created_at, id`
	getRuleSetSQL    = `SELECT ` + ruleSetColumns + ` FROM rule_sets WHERE id = $1`
	upsertRuleSetSQL = `
INSERT INTO rule_sets (id, domain, name, description, public_title, public_subtitle, conditions)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
	domain = EXCLUDED.domain,
	name = EXCLUDED.name,
	description = EXCLUDED.description,
	public_title = EXCLUDED.public_title,
	public_subtitle = EXCLUDED.public_subtitle,
	conditions = EXCLUDED.conditions,
	updated_at = now()
RETURNING ` + ruleSetColumns
	deleteRuleSetSQL = `DELETE FROM rule_sets WHERE id = $1`

	listCustomersSQL  = `SELECT id, name, email, total_spend, order_frequency, last_visit, membership_level FROM customers ORDER BY id`
	upsertCustomerSQL = `
INSERT INTO customers (id, name, email, total_spend, order_frequency, last_visit, membership_level)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	email = EXCLUDED.email,
	total_spend = EXCLUDED.total_spend,
	order_frequency = EXCLUDED.order_frequency,
	last_visit = EXCLUDED.last_visit,
	membership_level = EXCLUDED.membership_level`

	listProductsSQL  = `SELECT id, name, price, profit_margin, stock_level, category, tags FROM products ORDER BY id`
	upsertProductSQL = `
INSERT INTO products (id, name, price, profit_margin, stock_level, category, tags)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	price = EXCLUDED.price,
	profit_margin = EXCLUDED.profit_margin,
	stock_level = EXCLUDED.stock_level,
	category = EXCLUDED.category,
	tags = EXCLUDED.tags`
)

// PostgresStore is a PostgreSQL implementation of the Store interface.
// Rule trees are stored as JSONB in their wire form.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool exposes the connection pool so other Postgres-backed components can
// share it.
func (p *PostgresStore) Pool() *pgxpool.Pool { return p.pool }

// ListRuleSets retrieves the rule sets of a domain from the database.
func (p *PostgresStore) ListRuleSets(ctx context.Context, domain rules.DomainName) ([]RuleSet, error) {
	rows, err := p.pool.Query(ctx, listRuleSetsSQL, string(domain))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]RuleSet, 0)
	for rows.Next() {
		rs, err := scanRuleSet(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rs)
	}
	return result, rows.Err()
}

// GetRuleSet retrieves a single rule set by id.
func (p *PostgresStore) GetRuleSet(ctx context.Context, id string) (*RuleSet, error) {
	rs, err := scanRuleSet(p.pool.QueryRow(ctx, getRuleSetSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rs, nil
}

// UpsertRuleSet validates params and writes the rule set.
func (p *PostgresStore) UpsertRuleSet(ctx context.Context, params UpsertParams) (*RuleSet, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	params = params.normalized()
	if params.ID == "" {
		params.ID = uuid.NewString()
	}

	conditions, err := json.Marshal(params.Conditions)
	if err != nil {
		return nil, fmt.Errorf("encode conditions: %w", err)
	}

	rs, err := scanRuleSet(p.pool.QueryRow(ctx, upsertRuleSetSQL,
		params.ID,
		string(params.Domain),
		params.Name,
		params.Description,
		params.PublicTitle,
		params.PublicSubtitle,
		conditions,
	))
	if err != nil {
		return nil, err
	}
	return &rs, nil
}

// DeleteRuleSet removes a rule set from the database.
func (p *PostgresStore) DeleteRuleSet(ctx context.Context, id string) error {
	_, err := p.pool.Exec(ctx, deleteRuleSetSQL, id)
	return err
}

// ListCustomers retrieves all customers.
func (p *PostgresStore) ListCustomers(ctx context.Context) ([]Customer, error) {
	rows, err := p.pool.Query(ctx, listCustomersSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]Customer, 0)
	for rows.Next() {
		var (
			c         Customer
			lastVisit pgtype.Timestamptz
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.TotalSpend, &c.OrderFrequency, &lastVisit, &c.MembershipLevel); err != nil {
			return nil, err
		}
		if lastVisit.Valid {
			c.LastVisit = lastVisit.Time.UTC()
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// ListProducts retrieves all products.
func (p *PostgresStore) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := p.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]Product, 0)
	for rows.Next() {
		var pr Product
		if err := rows.Scan(&pr.ID, &pr.Name, &pr.Price, &pr.ProfitMargin, &pr.StockLevel, &pr.Category, &pr.Tags); err != nil {
			return nil, err
		}
		result = append(result, pr)
	}
	return result, rows.Err()
}

// UpsertCustomer writes a customer row.
func (p *PostgresStore) UpsertCustomer(ctx context.Context, c Customer) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	lastVisit := pgtype.Timestamptz{Time: c.LastVisit, Valid: !c.LastVisit.IsZero()}
	_, err := p.pool.Exec(ctx, upsertCustomerSQL, c.ID, c.Name, c.Email, c.TotalSpend, c.OrderFrequency, lastVisit, c.MembershipLevel)
	return err
}

// UpsertProduct writes a product row.
func (p *PostgresStore) UpsertProduct(ctx context.Context, pr Product) error {
	if pr.ID == "" {
		pr.ID = uuid.NewString()
	}
	_, err := p.pool.Exec(ctx, upsertProductSQL, pr.ID, pr.Name, pr.Price, pr.ProfitMargin, pr.StockLevel, pr.Category, pr.Tags)
	return err
}

// Close closes the database connection pool.
func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

// scanRuleSet reads one rule_sets row and decodes its JSONB tree.
func scanRuleSet(row pgx.Row) (RuleSet, error) {
	var (
		rs         RuleSet
		domain     string
		conditions []byte
		createdAt  time.Time
		updatedAt  time.Time
	)
	if err := row.Scan(&rs.ID, &domain, &rs.Name, &rs.Description, &rs.PublicTitle, &rs.PublicSubtitle, &conditions, &createdAt, &updatedAt); err != nil {
		return RuleSet{}, err
	}

	tree, err := rules.ParseTree(conditions)
	if err != nil {
		return RuleSet{}, fmt.Errorf("rule set %s: %w", rs.ID, err)
	}

	rs.Domain = rules.DomainName(domain)
	rs.Conditions = tree
	rs.CreatedAt = createdAt.UTC()
	rs.UpdatedAt = updatedAt.UTC()
	return rs, nil
}
