package suggest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/0888060509/champong-admin/internal/rules"
	"github.com/0888060509/champong-admin/internal/telemetry"
)

// DefaultTimeout bounds one generator call.
const DefaultTimeout = 20 * time.Second

// Accepted is a suggestion whose tree passed validation. Conditions carry
// absolute dates.
type Accepted struct {
	Suggestion
	Rendered string `json:"rendered"`
}

// Rejected is a suggestion that failed validation.
type Rejected struct {
	Suggestion
	Issues []rules.Issue `json:"issues"`
}

// Result is the outcome of one Suggest call.
type Result struct {
	Domain   rules.DomainName `json:"domain"`
	Accepted []Accepted       `json:"accepted"`
	Rejected []Rejected       `json:"rejected"`
}

// Service validates generator output before it reaches an editor.
type Service struct {
	gen     Generator
	timeout time.Duration
	now     func() time.Time
	logger  zerolog.Logger
	tracer  trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithTimeout sets the per-call generator timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the clock used to resolve relative dates.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService wraps gen.
func NewService(gen Generator, opts ...Option) *Service {
	s := &Service{
		gen:     gen,
		timeout: DefaultTimeout,
		now:     time.Now,
		logger:  zerolog.Nop(),
		tracer:  otel.Tracer("suggest"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Suggest asks the generator for rule sets in domain matching description.
// Every suggestion is resolved against the current date and validated;
// failures are reported in Result.Rejected rather than as an error.
func (s *Service) Suggest(ctx context.Context, domain, description string) (*Result, error) {
	d, ok := rules.LookupDomain(domain)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDomain, domain)
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, ErrEmptyDescription
	}

	ctx, span := s.tracer.Start(ctx, "suggest", trace.WithAttributes(
		attribute.String("domain", string(d.Name)),
	))
	defer span.End()

	logger := s.logger.With().Str("domain", string(d.Name)).Logger()
	start := time.Now()

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.gen.Suggest(callCtx, Request{Domain: d, Description: description})
	if err != nil {
		telemetry.Suggestions.WithLabelValues(string(d.Name), "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("suggestion generator failed")
		return nil, fmt.Errorf("%w: %w", ErrGenerate, err)
	}

	now := s.now()
	result := &Result{Domain: d.Name, Accepted: []Accepted{}, Rejected: []Rejected{}}
	for _, sug := range resp.Suggestions {
		resolved := sug.Conditions
		if resolved != nil {
			resolved = rules.ResolveTree(resolved, now)
		}

		tree, res := d.FromSuggestion(resolved)
		if !res.Valid() {
			sug.Conditions = resolved
			result.Rejected = append(result.Rejected, Rejected{Suggestion: sug, Issues: res.Issues})
			logger.Warn().Str("suggestion", sug.Name).Err(res.Err()).Msg("suggestion rejected")
			continue
		}
		sug.Conditions = tree
		result.Accepted = append(result.Accepted, Accepted{Suggestion: sug, Rendered: d.Render(tree)})
	}

	telemetry.Suggestions.WithLabelValues(string(d.Name), "accepted").Add(float64(len(result.Accepted)))
	telemetry.Suggestions.WithLabelValues(string(d.Name), "rejected").Add(float64(len(result.Rejected)))
	span.SetAttributes(
		attribute.Int("accepted", len(result.Accepted)),
		attribute.Int("rejected", len(result.Rejected)),
	)
	logger.Info().
		Int("accepted", len(result.Accepted)).
		Int("rejected", len(result.Rejected)).
		Dur("elapsed", time.Since(start)).
		Msg("suggestions generated")

	return result, nil
}
