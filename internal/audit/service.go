// Package audit records changes to segments and collections. Events are
// queued and written by a background worker so that a slow sink never
// delays an admin request.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/0888060509/champong-admin/internal/rules"
)

// Action constants for audit logging
const (
	ActionCreated  = "created"
	ActionReplaced = "replaced"
	ActionDeleted  = "deleted"
)

// Status constants for audit logging
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// ErrNotSupported is returned by Recent when the sink keeps no history.
var ErrNotSupported = errors.New("audit sink does not support listing")

// Source represents request metadata
type Source struct {
	IPAddress string `json:"ipAddress"`
	UserAgent string `json:"userAgent"`
}

// Event is one change to a rule set.
type Event struct {
	ID          string           `json:"id"`
	OccurredAt  time.Time        `json:"occurredAt"`
	RequestID   string           `json:"requestId,omitempty"`
	Actor       string           `json:"actor"`
	Source      Source           `json:"source"`
	Action      string           `json:"action"`
	Domain      rules.DomainName `json:"domain"`
	RuleSetID   string           `json:"ruleSetId"`
	BeforeState map[string]any   `json:"beforeState,omitempty"`
	AfterState  map[string]any   `json:"afterState,omitempty"`
	Changes     map[string]any   `json:"changes,omitempty"`
	Status      string           `json:"status"`
}

// Sink persists audit events.
type Sink interface {
	Write(ctx context.Context, event Event) error
}

// Reader is implemented by sinks that can list past events, newest first.
type Reader interface {
	Recent(ctx context.Context, limit int) ([]Event, error)
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger used for dropped or failed writes.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithQueueSize sets the number of events buffered ahead of the sink.
func WithQueueSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// Service provides audit logging functionality
type Service struct {
	sink      Sink
	now       func() time.Time
	logger    zerolog.Logger
	queueSize int
	queue     chan Event
	stopCh    chan struct{}
	done      sync.WaitGroup

	// mu orders sends against Close so no event is queued after the drain.
	mu     sync.RWMutex
	closed bool
}

// NewService starts a service writing to sink.
func NewService(sink Sink, opts ...Option) *Service {
	s := &Service{
		sink:      sink,
		now:       time.Now,
		logger:    zerolog.Nop(),
		queueSize: 256,
		stopCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.queue = make(chan Event, s.queueSize)

	s.done.Add(1)
	go s.worker()
	return s
}

func (s *Service) worker() {
	defer s.done.Done()
	for {
		select {
		case event := <-s.queue:
			s.write(event)
		case <-s.stopCh:
			// drain before stopping
			for {
				select {
				case event := <-s.queue:
					s.write(event)
				default:
					return
				}
			}
		}
	}
}

func (s *Service) write(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.sink.Write(ctx, event); err != nil {
		s.logger.Error().Err(err).Str("rule_set", event.RuleSetID).Msg("audit: failed to write event")
	}
}

// Close stops the worker after the queued events are written. It is safe to
// call more than once; events logged afterwards are dropped.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.stopCh)
	s.mu.Unlock()

	s.done.Wait()
	return nil
}

// Log queues an event, filling in its id and timestamp. When the queue is
// full or the service is closed the event is dropped and logged.
func (s *Service) Log(event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now().UTC()
	}
	if event.Changes == nil && event.Action == ActionReplaced {
		event.Changes = ComputeChanges(event.BeforeState, event.AfterState)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.logger.Warn().Str("rule_set", event.RuleSetID).Str("action", event.Action).Msg("audit: service closed, dropping event")
		return
	}
	select {
	case s.queue <- event:
	default:
		s.logger.Warn().Str("rule_set", event.RuleSetID).Str("action", event.Action).Msg("audit: queue full, dropping event")
	}
}

// Recent lists past events when the sink supports it.
func (s *Service) Recent(ctx context.Context, limit int) ([]Event, error) {
	r, ok := s.sink.(Reader)
	if !ok {
		return nil, ErrNotSupported
	}
	return r.Recent(ctx, limit)
}

// ComputeChanges computes the difference between before and after states
func ComputeChanges(before, after map[string]any) map[string]any {
	if before == nil && after == nil {
		return nil
	}
	if before == nil {
		before = make(map[string]any)
	}
	if after == nil {
		after = make(map[string]any)
	}

	changes := make(map[string]any)
	for key, afterVal := range after {
		beforeVal, existedBefore := before[key]
		beforeJSON, _ := json.Marshal(beforeVal)
		afterJSON, _ := json.Marshal(afterVal)
		if !existedBefore || string(beforeJSON) != string(afterJSON) {
			changes[key] = map[string]any{"before": beforeVal, "after": afterVal}
		}
	}
	for key, beforeVal := range before {
		if _, existsAfter := after[key]; !existsAfter {
			changes[key] = map[string]any{"before": beforeVal, "after": nil}
		}
	}

	if len(changes) == 0 {
		return nil
	}
	return changes
}
