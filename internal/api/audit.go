package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/hlog"

	"github.com/0888060509/champong-admin/internal/audit"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

type auditResponse struct {
	Items []audit.Event `json:"items"`
	Count int           `json:"count"`
}

// logAudit queues an event when the trail is enabled.
func (s *Server) logAudit(b *audit.EventBuilder) {
	if s.audit == nil {
		return
	}
	s.audit.Log(b.Build())
}

// handleAudit handles GET /v1/audit?limit=N, newest first.
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		NotFoundError(w, r, "Audit trail is disabled")
		return
	}

	limit := defaultAuditLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxAuditLimit {
			ValidationError(w, r, "Invalid limit", map[string]string{
				"limit": "limit must be between 1 and " + strconv.Itoa(maxAuditLimit),
			})
			return
		}
		limit = n
	}

	events, err := s.audit.Recent(r.Context(), limit)
	if errors.Is(err, audit.ErrNotSupported) {
		NotFoundError(w, r, "Audit sink keeps no history")
		return
	}
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("list audit events")
		InternalError(w, r, "Failed to list audit events")
		return
	}
	writeJSON(w, http.StatusOK, auditResponse{Items: events, Count: len(events)})
}
