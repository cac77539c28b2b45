package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/0888060509/champong-admin/internal/engine"
	"github.com/0888060509/champong-admin/internal/expr"
	"github.com/0888060509/champong-admin/internal/rules"
	"github.com/0888060509/champong-admin/internal/targeting"
	"github.com/0888060509/champong-admin/internal/telemetry"
)

// treeRequest is the body of the stateless /v1/rules endpoints.
type treeRequest struct {
	Conditions *rules.Group `json:"conditions"`
}

type validateResponse struct {
	Valid    bool              `json:"valid"`
	Issues   []rules.Issue     `json:"issues"`
	Fields   map[string]string `json:"fields,omitempty"`
	Rendered string            `json:"rendered"`
}

// handleValidate handles POST /v1/rules/{domain}/validate. The tree is
// checked as sent; placeholders are reported, not resolved.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	d, ok := domainParam(w, r)
	if !ok {
		return
	}
	var req treeRequest
	if !decodeJSON(w, r, &req) || !requireTree(w, r, req.Conditions) {
		return
	}

	res := d.Validate(req.Conditions)
	resp := validateResponse{
		Valid:    res.Valid(),
		Issues:   res.Issues,
		Rendered: d.Render(req.Conditions),
	}
	if resp.Issues == nil {
		resp.Issues = []rules.Issue{}
	}
	if !res.Valid() {
		resp.Fields = res.Fields()
	}
	writeJSON(w, http.StatusOK, resp)
}

type renderResponse struct {
	Rendered string `json:"rendered"`
}

// handleRender handles POST /v1/rules/{domain}/render.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	d, ok := domainParam(w, r)
	if !ok {
		return
	}
	var req treeRequest
	if !decodeJSON(w, r, &req) || !requireTree(w, r, req.Conditions) {
		return
	}
	writeJSON(w, http.StatusOK, renderResponse{Rendered: d.Render(req.Conditions)})
}

type evaluateRequest struct {
	Conditions *rules.Group       `json:"conditions"`
	Records    []engine.MapRecord `json:"records"`
	// Now anchors relative dates; defaults to the server clock.
	Now *time.Time `json:"now,omitempty"`
}

type missingField struct {
	Path     string `json:"path"`
	Criteria string `json:"criteria"`
}

type recordResult struct {
	Index   int            `json:"index"`
	Matched bool           `json:"matched"`
	Missing []missingField `json:"missing,omitempty"`
}

type evaluateResponse struct {
	Rendered string         `json:"rendered"`
	Matched  int            `json:"matched"`
	Results  []recordResult `json:"results"`
}

// handleEvaluate handles POST /v1/rules/{domain}/evaluate. Placeholders are
// resolved before validation; missing record fields count as non-matches
// and are listed per record.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	d, ok := domainParam(w, r)
	if !ok {
		return
	}
	var req evaluateRequest
	if !decodeJSON(w, r, &req) || !requireTree(w, r, req.Conditions) {
		return
	}

	now := s.now()
	if req.Now != nil {
		now = *req.Now
	}
	tree := rules.ResolveTree(req.Conditions, now)
	if res := d.Validate(tree); !res.Valid() {
		TreeValidationError(w, r, res.Issues)
		return
	}

	resp := evaluateResponse{
		Rendered: d.Render(tree),
		Results:  make([]recordResult, 0, len(req.Records)),
	}
	for i, rec := range req.Records {
		matched, missing := engine.Explain(tree, rec)
		result := recordResult{Index: i, Matched: matched}
		for _, m := range missing {
			result.Missing = append(result.Missing, missingField{Path: m.Path.String(), Criteria: m.Criteria})
		}
		if matched {
			resp.Matched++
		}
		telemetry.RecordEvaluation(string(d.Name), matched)
		resp.Results = append(resp.Results, result)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Compilation targets.
const (
	targetJSONLogic = "jsonlogic"
	targetCEL       = "cel"
)

type compileRequest struct {
	Conditions *rules.Group `json:"conditions"`
	Target     string       `json:"target"`
}

type compileResponse struct {
	Target     string          `json:"target"`
	Expression json.RawMessage `json:"expression,omitempty"`
	Source     string          `json:"source,omitempty"`
}

// handleCompile handles POST /v1/rules/{domain}/compile. Target defaults to
// jsonlogic.
func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	d, ok := domainParam(w, r)
	if !ok {
		return
	}
	var req compileRequest
	if !decodeJSON(w, r, &req) || !requireTree(w, r, req.Conditions) {
		return
	}

	tree := rules.ResolveTree(req.Conditions, s.now())
	if res := d.Validate(tree); !res.Valid() {
		TreeValidationError(w, r, res.Issues)
		return
	}

	target := strings.ToLower(strings.TrimSpace(req.Target))
	if target == "" {
		target = targetJSONLogic
	}

	switch target {
	case targetJSONLogic:
		expression, err := targeting.Compile(d, tree)
		if err != nil {
			InternalError(w, r, "Failed to compile rule tree")
			return
		}
		writeJSON(w, http.StatusOK, compileResponse{Target: target, Expression: expression})
	case targetCEL:
		program, err := expr.Compile(d, tree)
		if err != nil {
			InternalError(w, r, "Failed to compile rule tree")
			return
		}
		writeJSON(w, http.StatusOK, compileResponse{Target: target, Source: program.Source})
	default:
		BadRequestError(w, r, ErrCodeInvalidTarget, "Unknown target '"+target+"' (use jsonlogic or cel)")
	}
}
