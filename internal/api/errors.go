package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/0888060509/champong-admin/internal/rules"
)

// ErrorCode is the machine-readable half of an error body.
type ErrorCode string

const (
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
	ErrCodeBadRequest      ErrorCode = "BAD_REQUEST"
	ErrCodeUnauthorized    ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden       ErrorCode = "FORBIDDEN"
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeRateLimited     ErrorCode = "RATE_LIMITED"
	ErrCodeRequestTooLarge ErrorCode = "REQUEST_TOO_LARGE"
	ErrCodeTimeout         ErrorCode = "TIMEOUT"

	// request content
	ErrCodeValidation    ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidJSON   ErrorCode = "INVALID_JSON"
	ErrCodeInvalidTree   ErrorCode = "INVALID_TREE"
	ErrCodeInvalidDomain ErrorCode = "INVALID_DOMAIN"
	ErrCodeInvalidTarget ErrorCode = "INVALID_TARGET"
	ErrCodeMissingField  ErrorCode = "MISSING_FIELD"

	// suggestion generator
	ErrCodeSuggestFailed ErrorCode = "SUGGEST_FAILED"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string            `json:"error"` // status text
	Message   string            `json:"message"`
	Code      ErrorCode         `json:"code"`
	Fields    map[string]string `json:"fields,omitempty"` // location -> message
	Issues    []rules.Issue     `json:"issues,omitempty"` // in tree order
	RequestID string            `json:"request_id,omitempty"`
}

// NewErrorResponse creates a new error response
func NewErrorResponse(statusCode int, code ErrorCode, message string) *ErrorResponse {
	return &ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    code,
	}
}

// WithFields sets the per-field messages.
func (e *ErrorResponse) WithFields(fields map[string]string) *ErrorResponse {
	e.Fields = fields
	return e
}

// WithIssues sets the tree issues and derives Fields from them.
func (e *ErrorResponse) WithIssues(issues []rules.Issue) *ErrorResponse {
	e.Issues = issues
	e.Fields = rules.ValidationResult{Issues: issues}.Fields()
	return e
}

func (e *ErrorResponse) write(w http.ResponseWriter, r *http.Request, statusCode int) {
	if reqID := middleware.GetReqID(r.Context()); reqID != "" {
		e.RequestID = reqID
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(e)
}

// defaultCodes is the code used when a helper is not given one.
var defaultCodes = map[int]ErrorCode{
	http.StatusBadRequest:            ErrCodeBadRequest,
	http.StatusUnauthorized:          ErrCodeUnauthorized,
	http.StatusForbidden:             ErrCodeForbidden,
	http.StatusNotFound:              ErrCodeNotFound,
	http.StatusRequestEntityTooLarge: ErrCodeRequestTooLarge,
	http.StatusTooManyRequests:       ErrCodeRateLimited,
	http.StatusInternalServerError:   ErrCodeInternal,
}

func writeError(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	code, ok := defaultCodes[statusCode]
	if !ok {
		code = ErrCodeInternal
	}
	NewErrorResponse(statusCode, code, message).write(w, r, statusCode)
}

// ValidationError reports invalid request fields.
func ValidationError(w http.ResponseWriter, r *http.Request, message string, fields map[string]string) {
	NewErrorResponse(http.StatusBadRequest, ErrCodeValidation, message).
		WithFields(fields).
		write(w, r, http.StatusBadRequest)
}

// TreeValidationError reports an invalid rule tree. Fields maps each issue
// location (e.g. "conditions[1].operator") to its message.
func TreeValidationError(w http.ResponseWriter, r *http.Request, issues []rules.Issue) {
	NewErrorResponse(http.StatusBadRequest, ErrCodeValidation, "Rule tree is invalid").
		WithIssues(issues).
		write(w, r, http.StatusBadRequest)
}

func BadRequestError(w http.ResponseWriter, r *http.Request, code ErrorCode, message string) {
	NewErrorResponse(http.StatusBadRequest, code, message).write(w, r, http.StatusBadRequest)
}

// UpstreamError reports a failing or slow suggestion generator.
func UpstreamError(w http.ResponseWriter, r *http.Request, statusCode int, code ErrorCode, message string) {
	NewErrorResponse(statusCode, code, message).write(w, r, statusCode)
}

func UnauthorizedError(w http.ResponseWriter, r *http.Request, message string) {
	writeError(w, r, http.StatusUnauthorized, message)
}

func ForbiddenError(w http.ResponseWriter, r *http.Request, message string) {
	writeError(w, r, http.StatusForbidden, message)
}

func NotFoundError(w http.ResponseWriter, r *http.Request, message string) {
	writeError(w, r, http.StatusNotFound, message)
}

func RequestTooLargeError(w http.ResponseWriter, r *http.Request, message string) {
	writeError(w, r, http.StatusRequestEntityTooLarge, message)
}

func RateLimitedError(w http.ResponseWriter, r *http.Request, message string) {
	writeError(w, r, http.StatusTooManyRequests, message)
}

func InternalError(w http.ResponseWriter, r *http.Request, message string) {
	writeError(w, r, http.StatusInternalServerError, message)
}
