package audit

import (
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/0888060509/champong-admin/internal/rules"
	"github.com/0888060509/champong-admin/internal/store"
)

// ActorAdmin is the only writer: requests authenticated with the admin key.
const ActorAdmin = "admin"

// EventBuilder provides a fluent API for constructing audit events.
//
// Usage:
//
//	event := audit.NewEventBuilder(r).
//		ForRuleSet(rules.DomainProduct, id).
//		WithAction(audit.ActionReplaced).
//		WithBefore(old).
//		WithAfter(saved).
//		Build()
//
//	service.Log(event)
type EventBuilder struct {
	event Event
}

// NewEventBuilder starts an event from the request id, client address and
// user agent of r.
func NewEventBuilder(r *http.Request) *EventBuilder {
	return &EventBuilder{
		event: Event{
			RequestID: middleware.GetReqID(r.Context()),
			Actor:     ActorAdmin,
			Source: Source{
				IPAddress: clientIP(r),
				UserAgent: r.UserAgent(),
			},
			Status: StatusSuccess,
		},
	}
}

// ForRuleSet sets the domain and id of the changed rule set.
func (b *EventBuilder) ForRuleSet(domain rules.DomainName, id string) *EventBuilder {
	b.event.Domain = domain
	b.event.RuleSetID = id
	return b
}

// WithAction sets the action for the event.
func (b *EventBuilder) WithAction(action string) *EventBuilder {
	b.event.Action = action
	return b
}

// WithBefore records the rule set as it was before the change.
func (b *EventBuilder) WithBefore(rs *store.RuleSet) *EventBuilder {
	b.event.BeforeState = State(rs)
	return b
}

// WithAfter records the rule set as saved.
func (b *EventBuilder) WithAfter(rs *store.RuleSet) *EventBuilder {
	b.event.AfterState = State(rs)
	return b
}

// Failure marks the event as failed.
func (b *EventBuilder) Failure() *EventBuilder {
	b.event.Status = StatusFailure
	return b
}

// Build returns the constructed Event.
func (b *EventBuilder) Build() Event {
	return b.event
}

// State is the audited view of a rule set: its texts, the readable rule and
// the tree fingerprint. Nil yields nil.
func State(rs *store.RuleSet) map[string]any {
	if rs == nil {
		return nil
	}
	state := map[string]any{
		"name":           rs.Name,
		"description":    rs.Description,
		"publicTitle":    rs.PublicTitle,
		"publicSubtitle": rs.PublicSubtitle,
	}
	if d, ok := rules.LookupDomain(string(rs.Domain)); ok {
		state["rule"] = d.Render(rs.Conditions)
	}
	if fp, err := rules.Fingerprint(rs.Conditions); err == nil {
		state["fingerprint"] = strconv.FormatUint(fp, 16)
	}
	return state
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
