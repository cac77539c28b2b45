package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/0888060509/champong-admin/internal/rules"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

// GenAIGenerator asks a Gemini model for suggestions in JSON form.
type GenAIGenerator struct {
	client *genai.Client
	model  string
	logger zerolog.Logger
}

// NewGenAIGenerator creates a generator backed by Google's GenAI API.
func NewGenAIGenerator(ctx context.Context, apiKey, model string, logger zerolog.Logger) (*GenAIGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAIGenerator{
		client: client,
		model:  model,
		logger: logger.With().Str("component", "genai").Str("model", model).Logger(),
	}, nil
}

// Suggest implements Generator.
func (g *GenAIGenerator) Suggest(ctx context.Context, req Request) (*Response, error) {
	result, err := g.client.Models.GenerateContent(ctx,
		g.model,
		genai.Text(buildPrompt(req)),
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
		},
	)
	if err != nil {
		return nil, fmt.Errorf("GenAI generate failed: %w", err)
	}

	text := result.Text()
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("GenAI returned no content")
	}
	return decodeResponse([]byte(text), g.logger)
}

// Name returns the generator name.
func (g *GenAIGenerator) Name() string {
	return "genai:" + g.model
}

func buildPrompt(req Request) string {
	placeholders := rules.Placeholders()
	sort.Strings(placeholders)

	var b strings.Builder
	fmt.Fprintf(&b, "You help a restaurant manager build %s rules.\n", noun(req.Domain))
	b.WriteString("Propose up to three rule sets for this request:\n")
	fmt.Fprintf(&b, "%q\n\n", req.Description)
	b.WriteString("Available criteria:\n")
	b.WriteString(req.Domain.Describe())
	b.WriteString("\nRules are trees. A group is {\"type\":\"group\",\"logic\":\"AND\"|\"OR\",\"conditions\":[...]}; ")
	b.WriteString("a condition is {\"type\":\"condition\",\"criteria\":name,\"operator\":op,\"value\":v}. ")
	b.WriteString("The root must be a group with at least one condition. Numbers are JSON numbers.\n")
	fmt.Fprintf(&b, "For relative dates use one of: %s. Absolute dates use YYYY-MM-DD.\n", strings.Join(placeholders, ", "))
	b.WriteString("Answer with JSON only, shaped as ")
	b.WriteString(`{"suggestions":[{"name":"","description":"","publicTitle":"","publicSubtitle":"","suggestedConditions":{}}]}`)
	b.WriteString(".\n")
	if req.Domain.Name == rules.DomainProduct {
		b.WriteString("publicTitle and publicSubtitle are shown to guests on the menu.\n")
	}
	return b.String()
}

func noun(d *rules.Domain) string {
	if d.Name == rules.DomainProduct {
		return "menu collection"
	}
	return "customer segment"
}

type wireSuggestion struct {
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	PublicTitle    string          `json:"publicTitle"`
	PublicSubtitle string          `json:"publicSubtitle"`
	Conditions     json.RawMessage `json:"suggestedConditions"`
}

// decodeResponse parses model output. A suggestion whose tree fails to decode
// is kept with nil Conditions so that it is reported as rejected.
func decodeResponse(data []byte, logger zerolog.Logger) (*Response, error) {
	var wire struct {
		Suggestions []wireSuggestion `json:"suggestions"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decode suggestions: %w", err)
	}

	resp := &Response{Suggestions: make([]Suggestion, 0, len(wire.Suggestions))}
	for _, w := range wire.Suggestions {
		s := Suggestion{
			Name:           w.Name,
			Description:    w.Description,
			PublicTitle:    w.PublicTitle,
			PublicSubtitle: w.PublicSubtitle,
		}
		if len(w.Conditions) > 0 {
			tree, err := rules.ParseTree(w.Conditions)
			if err != nil {
				logger.Warn().Err(err).Str("suggestion", w.Name).Msg("discarding undecodable tree")
			} else {
				s.Conditions = tree
			}
		}
		resp.Suggestions = append(resp.Suggestions, s)
	}
	return resp, nil
}
