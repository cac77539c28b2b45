package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/0888060509/champong-admin/internal/rules"
	"github.com/0888060509/champong-admin/internal/store"
	"github.com/0888060509/champong-admin/internal/suggest"
)

// ErrNotFound is returned when the API answers 404.
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx API response.
type APIError struct {
	StatusCode int               `json:"-"`
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Fields     map[string]string `json:"fields,omitempty"`
	Issues     []rules.Issue     `json:"issues,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API error (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("API error (status %d, %s): %s", e.StatusCode, e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// Client is an HTTP client for the champong admin API
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// RuleSet is a stored rule set with its readable form.
type RuleSet struct {
	store.RuleSet
	Rendered string `json:"rendered"`
}

// Records is the response of the members/products sub-resource.
type Records struct {
	ID       string            `json:"id"`
	Rendered string            `json:"rendered"`
	Count    int               `json:"count"`
	Items    []json.RawMessage `json:"items"`
}

// ValidateResult is the response of the validate endpoint.
type ValidateResult struct {
	Valid    bool              `json:"valid"`
	Issues   []rules.Issue     `json:"issues"`
	Fields   map[string]string `json:"fields,omitempty"`
	Rendered string            `json:"rendered"`
}

// collectionPath maps a domain to its rule-set collection.
func collectionPath(d *rules.Domain) string {
	if d.Name == rules.DomainProduct {
		return "/v1/collections"
	}
	return "/v1/segments"
}

func recordPath(d *rules.Domain) string {
	if d.Name == rules.DomainProduct {
		return "products"
	}
	return "members"
}

// ListRuleSets retrieves all rule sets of a domain
func (c *Client) ListRuleSets(ctx context.Context, d *rules.Domain) ([]RuleSet, error) {
	var result struct {
		Items []RuleSet `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, collectionPath(d), nil, &result); err != nil {
		return nil, err
	}
	return result.Items, nil
}

// GetRuleSet retrieves a single rule set by id
func (c *Client) GetRuleSet(ctx context.Context, d *rules.Domain, id string) (*RuleSet, error) {
	var rs RuleSet
	if err := c.do(ctx, http.MethodGet, collectionPath(d)+"/"+url.PathEscape(id), nil, &rs); err != nil {
		return nil, err
	}
	return &rs, nil
}

// ApplyRuleSet creates params when its ID is empty and replaces the stored
// rule set otherwise.
func (c *Client) ApplyRuleSet(ctx context.Context, d *rules.Domain, params store.UpsertParams) (*RuleSet, error) {
	method, path := http.MethodPost, collectionPath(d)
	if params.ID != "" {
		method, path = http.MethodPut, path+"/"+url.PathEscape(params.ID)
	}
	var rs RuleSet
	if err := c.do(ctx, method, path, params, &rs); err != nil {
		return nil, err
	}
	return &rs, nil
}

// DeleteRuleSet deletes a rule set
func (c *Client) DeleteRuleSet(ctx context.Context, d *rules.Domain, id string) error {
	return c.do(ctx, http.MethodDelete, collectionPath(d)+"/"+url.PathEscape(id), nil, nil)
}

// Records lists the customers or products a rule set selects.
func (c *Client) Records(ctx context.Context, d *rules.Domain, id string) (*Records, error) {
	var result Records
	path := collectionPath(d) + "/" + url.PathEscape(id) + "/" + recordPath(d)
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Suggest asks the server for rule sets matching a plain-language description.
func (c *Client) Suggest(ctx context.Context, d *rules.Domain, description string) (*suggest.Result, error) {
	var result suggest.Result
	body := map[string]string{"description": description}
	if err := c.do(ctx, http.MethodPost, collectionPath(d)+"/suggest", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Validate checks a tree against a domain on the server.
func (c *Client) Validate(ctx context.Context, d *rules.Domain, tree *rules.Group) (*ValidateResult, error) {
	var result ValidateResult
	body := map[string]any{"conditions": tree}
	if err := c.do(ctx, http.MethodPost, "/v1/rules/"+string(d.Name)+"/validate", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		bodyBytes, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(bodyBytes, apiErr) != nil {
			apiErr.Message = strings.TrimSpace(string(bodyBytes))
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
