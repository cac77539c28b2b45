package telemetry

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	httpDur = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	// RuleEvaluations counts records evaluated against rule trees, by domain
	// and outcome ("match", "miss").
	RuleEvaluations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rule_evaluations_total",
			Help: "Records evaluated against rule trees",
		},
		[]string{"domain", "outcome"},
	)
	// Suggestions counts generated suggestions by domain and outcome
	// ("accepted", "rejected", "error").
	Suggestions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rule_suggestions_total",
			Help: "Generated rule suggestions by outcome",
		},
		[]string{"domain", "outcome"},
	)
	// RuleSets tracks stored rule sets per domain.
	RuleSets = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rule_sets",
		Help: "Number of stored rule sets",
	}, []string{"domain"})
)

var initOnce sync.Once

// Init registers the collectors with the default registry. Safe to call
// more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(httpReqs, httpDur, RuleEvaluations, Suggestions, RuleSets)
	})
}

// RecordEvaluation counts one evaluation outcome.
func RecordEvaluation(domain string, matched bool) {
	outcome := "miss"
	if matched {
		outcome = "match"
	}
	RuleEvaluations.WithLabelValues(domain, outcome).Inc()
}

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		// the pattern is only complete once routing finished
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}

		httpReqs.WithLabelValues(route, r.Method, strconv.Itoa(ww.status)).Inc()
		httpDur.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
