package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/0888060509/champong-admin/internal/audit"
	"github.com/0888060509/champong-admin/internal/engine"
	"github.com/0888060509/champong-admin/internal/rules"
	"github.com/0888060509/champong-admin/internal/store"
	"github.com/0888060509/champong-admin/internal/suggest"
	"github.com/0888060509/champong-admin/internal/telemetry"
)

// ruleSetHandlers serves segments (customer domain) or collections (product
// domain).
type ruleSetHandlers struct {
	server *Server
	domain *rules.Domain
}

type ruleSetRequest struct {
	Name           string       `json:"name"`
	Description    string       `json:"description"`
	PublicTitle    string       `json:"publicTitle,omitempty"`
	PublicSubtitle string       `json:"publicSubtitle,omitempty"`
	Conditions     *rules.Group `json:"conditions"`
}

type ruleSetResponse struct {
	store.RuleSet
	Rendered string `json:"rendered"`
}

type listRuleSetsResponse struct {
	Items []ruleSetResponse `json:"items"`
	Count int               `json:"count"`
}

type recordsResponse struct {
	ID       string `json:"id"`
	Rendered string `json:"rendered"`
	Count    int    `json:"count"`
	Items    any    `json:"items"`
}

type suggestRequest struct {
	Description string `json:"description"`
}

func (h *ruleSetHandlers) toResponse(rs store.RuleSet) ruleSetResponse {
	return ruleSetResponse{RuleSet: rs, Rendered: h.domain.Render(rs.Conditions)}
}

// list handles GET /v1/{segments|collections}
func (h *ruleSetHandlers) list(w http.ResponseWriter, r *http.Request) {
	sets, err := h.server.store.ListRuleSets(r.Context(), h.domain.Name)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("list rule sets")
		InternalError(w, r, "Failed to list rule sets")
		return
	}

	resp := listRuleSetsResponse{Items: make([]ruleSetResponse, 0, len(sets)), Count: len(sets)}
	for _, rs := range sets {
		resp.Items = append(resp.Items, h.toResponse(rs))
	}
	telemetry.RuleSets.WithLabelValues(string(h.domain.Name)).Set(float64(len(sets)))
	writeJSON(w, http.StatusOK, resp)
}

// load fetches the {id} rule set, writing 404 when it is missing or belongs
// to the other domain.
func (h *ruleSetHandlers) load(w http.ResponseWriter, r *http.Request) (*store.RuleSet, bool) {
	id := chi.URLParam(r, "id")
	rs, err := h.server.store.GetRuleSet(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && rs.Domain != h.domain.Name) {
		NotFoundError(w, r, "Rule set '"+id+"' not found")
		return nil, false
	}
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("id", id).Msg("get rule set")
		InternalError(w, r, "Failed to load rule set")
		return nil, false
	}
	return rs, true
}

// get handles GET /v1/{segments|collections}/{id}
func (h *ruleSetHandlers) get(w http.ResponseWriter, r *http.Request) {
	rs, ok := h.load(w, r)
	if !ok {
		return
	}

	etag, err := rules.ETag(rs.Conditions)
	if err == nil {
		if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
	}
	writeJSON(w, http.StatusOK, h.toResponse(*rs))
}

// create handles POST /v1/{segments|collections}
func (h *ruleSetHandlers) create(w http.ResponseWriter, r *http.Request) {
	h.upsert(w, r, nil, http.StatusCreated)
}

// replace handles PUT /v1/{segments|collections}/{id}. The id must already
// exist in this domain.
func (h *ruleSetHandlers) replace(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.load(w, r)
	if !ok {
		return
	}
	h.upsert(w, r, existing, http.StatusOK)
}

// upsert creates a rule set when existing is nil and replaces it otherwise.
func (h *ruleSetHandlers) upsert(w http.ResponseWriter, r *http.Request, existing *store.RuleSet, status int) {
	var req ruleSetRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	action := audit.ActionCreated
	params := store.UpsertParams{
		Domain:         h.domain.Name,
		Name:           req.Name,
		Description:    req.Description,
		PublicTitle:    req.PublicTitle,
		PublicSubtitle: req.PublicSubtitle,
		Conditions:     rules.ResolveTree(req.Conditions, h.server.now()),
	}
	if existing != nil {
		action = audit.ActionReplaced
		params.ID = existing.ID
	}

	rs, err := h.server.store.UpsertRuleSet(r.Context(), params)
	if err != nil {
		h.writeUpsertError(w, r, err)
		return
	}

	logger := hlog.FromRequest(r)
	logger.Info().Str("id", rs.ID).Str("domain", string(rs.Domain)).Str("action", action).Msg("rule set saved")
	h.refreshGauge(r.Context())
	h.server.logAudit(audit.NewEventBuilder(r).
		ForRuleSet(rs.Domain, rs.ID).
		WithAction(action).
		WithBefore(existing).
		WithAfter(rs))

	if etag, err := rules.ETag(rs.Conditions); err == nil {
		w.Header().Set("ETag", etag)
	}
	if status == http.StatusCreated {
		w.Header().Set("Location", r.URL.Path+"/"+rs.ID)
	}
	writeJSON(w, status, h.toResponse(*rs))
}

func (h *ruleSetHandlers) writeUpsertError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *rules.ValidationError
	switch {
	case errors.As(err, &vErr):
		TreeValidationError(w, r, vErr.Issues)
	case errors.Is(err, store.ErrInvalidRuleSet):
		ValidationError(w, r, err.Error(), nil)
	default:
		hlog.FromRequest(r).Error().Err(err).Msg("upsert rule set")
		InternalError(w, r, "Failed to save rule set")
	}
}

// delete handles DELETE /v1/{segments|collections}/{id}
func (h *ruleSetHandlers) delete(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.load(w, r)
	if !ok {
		return
	}
	id := existing.ID
	if err := h.server.store.DeleteRuleSet(r.Context(), id); err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("id", id).Msg("delete rule set")
		InternalError(w, r, "Failed to delete rule set")
		return
	}
	hlog.FromRequest(r).Info().Str("id", id).Msg("rule set deleted")
	h.refreshGauge(r.Context())
	h.server.logAudit(audit.NewEventBuilder(r).
		ForRuleSet(existing.Domain, id).
		WithAction(audit.ActionDeleted).
		WithBefore(existing))
	w.WriteHeader(http.StatusNoContent)
}

// records handles GET /v1/segments/{id}/members and
// GET /v1/collections/{id}/products.
func (h *ruleSetHandlers) records(w http.ResponseWriter, r *http.Request) {
	rs, ok := h.load(w, r)
	if !ok {
		return
	}

	resp := recordsResponse{ID: rs.ID, Rendered: h.domain.Render(rs.Conditions)}
	switch h.domain.Name {
	case rules.DomainCustomer:
		customers, err := h.server.store.ListCustomers(r.Context())
		if err != nil {
			InternalError(w, r, "Failed to list customers")
			return
		}
		members := matchRecords(h.domain, rs.Conditions, customers)
		resp.Items, resp.Count = members, len(members)
	default:
		products, err := h.server.store.ListProducts(r.Context())
		if err != nil {
			InternalError(w, r, "Failed to list products")
			return
		}
		items := matchRecords(h.domain, rs.Conditions, products)
		resp.Items, resp.Count = items, len(items)
	}
	writeJSON(w, http.StatusOK, resp)
}

// matchRecords filters records and counts each outcome.
func matchRecords[R engine.Record](d *rules.Domain, tree *rules.Group, records []R) []R {
	out := make([]R, 0, len(records))
	for _, rec := range records {
		matched := engine.Evaluate(tree, rec)
		telemetry.RecordEvaluation(string(d.Name), matched)
		if matched {
			out = append(out, rec)
		}
	}
	return out
}

// suggest handles POST /v1/{segments|collections}/suggest
func (h *ruleSetHandlers) suggest(w http.ResponseWriter, r *http.Request) {
	if h.server.suggester == nil {
		UpstreamError(w, r, http.StatusServiceUnavailable, ErrCodeSuggestFailed, "Suggestions are not configured")
		return
	}
	var req suggestRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.server.suggester.Suggest(r.Context(), string(h.domain.Name), req.Description)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, result)
	case errors.Is(err, suggest.ErrEmptyDescription):
		ValidationError(w, r, "Description is required", map[string]string{"description": "description is required"})
	case errors.Is(err, context.DeadlineExceeded):
		UpstreamError(w, r, http.StatusGatewayTimeout, ErrCodeTimeout, "Suggestion generator timed out")
	default:
		UpstreamError(w, r, http.StatusBadGateway, ErrCodeSuggestFailed, "Suggestion generator failed")
	}
}

func (h *ruleSetHandlers) refreshGauge(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if sets, err := h.server.store.ListRuleSets(ctx, h.domain.Name); err == nil {
		telemetry.RuleSets.WithLabelValues(string(h.domain.Name)).Set(float64(len(sets)))
	}
}
