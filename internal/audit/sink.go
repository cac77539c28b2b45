package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/0888060509/champong-admin/internal/rules"
)

// LogSink writes each event as one structured log line.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Write(_ context.Context, event Event) error {
	e := s.logger.Info()
	if event.Status == StatusFailure {
		e = s.logger.Warn()
	}
	e.Str("audit_id", event.ID).
		Str("request_id", event.RequestID).
		Str("action", event.Action).
		Str("domain", string(event.Domain)).
		Str("rule_set", event.RuleSetID).
		Str("ip", event.Source.IPAddress).
		Str("status", event.Status).
		Interface("changes", event.Changes).
		Msg("audit")
	return nil
}

// MemorySink keeps the most recent events in memory.
type MemorySink struct {
	mu     sync.RWMutex
	events []Event
	limit  int
}

// NewMemorySink keeps up to limit events; older ones are discarded.
func NewMemorySink(limit int) *MemorySink {
	if limit <= 0 {
		limit = 1000
	}
	return &MemorySink{limit: limit}
}

func (s *MemorySink) Write(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	if over := len(s.events) - s.limit; over > 0 {
		s.events = append(s.events[:0:0], s.events[over:]...)
	}
	return nil
}

// Recent implements Reader.
func (s *MemorySink) Recent(_ context.Context, limit int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.events) {
		limit = len(s.events)
	}
	out := make([]Event, 0, limit)
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.events[i])
	}
	return out, nil
}

// Tee writes to every sink and lists from the first one that can.
type Tee []Sink

func (t Tee) Write(ctx context.Context, event Event) error {
	var errs []error
	for _, s := range t {
		if err := s.Write(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recent implements Reader.
func (t Tee) Recent(ctx context.Context, limit int) ([]Event, error) {
	for _, s := range t {
		if r, ok := s.(Reader); ok {
			return r.Recent(ctx, limit)
		}
	}
	return nil, ErrNotSupported
}

const (
	insertAuditSQL = `
INSERT INTO audit_log (id, occurred_at, request_id, actor, ip_address, user_agent, action, domain, rule_set_id, before_state, after_state, changes, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	recentAuditSQL = `
SELECT id::text, occurred_at, request_id, actor, ip_address, user_agent, action, domain, rule_set_id, before_state, after_state, changes, status
FROM audit_log ORDER BY occurred_at DESC LIMIT $1`
)

// PostgresSink stores events in the audit_log table.
type PostgresSink struct {
	pool *pgxpool.Pool
}

func NewPostgresSink(pool *pgxpool.Pool) *PostgresSink {
	return &PostgresSink{pool: pool}
}

func (s *PostgresSink) Write(ctx context.Context, event Event) error {
	before, err := marshalState(event.BeforeState)
	if err != nil {
		return err
	}
	after, err := marshalState(event.AfterState)
	if err != nil {
		return err
	}
	changes, err := marshalState(event.Changes)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, insertAuditSQL,
		event.ID, event.OccurredAt, event.RequestID, event.Actor,
		event.Source.IPAddress, event.Source.UserAgent,
		event.Action, string(event.Domain), event.RuleSetID,
		before, after, changes, event.Status,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// Recent implements Reader.
func (s *PostgresSink) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, recentAuditSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	out := make([]Event, 0, limit)
	for rows.Next() {
		var (
			e                      Event
			domain                 string
			before, after, changes []byte
		)
		if err := rows.Scan(&e.ID, &e.OccurredAt, &e.RequestID, &e.Actor,
			&e.Source.IPAddress, &e.Source.UserAgent,
			&e.Action, &domain, &e.RuleSetID,
			&before, &after, &changes, &e.Status); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Domain = rules.DomainName(domain)
		for _, f := range []struct {
			raw []byte
			dst *map[string]any
		}{{before, &e.BeforeState}, {after, &e.AfterState}, {changes, &e.Changes}} {
			if len(f.raw) == 0 {
				continue
			}
			if err := json.Unmarshal(f.raw, f.dst); err != nil {
				return nil, fmt.Errorf("decode audit state: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// marshalState returns nil for an empty map so the column stays NULL.
func marshalState(state map[string]any) ([]byte, error) {
	if state == nil {
		return nil, nil
	}
	b, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encode audit state: %w", err)
	}
	return b, nil
}
