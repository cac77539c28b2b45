// Package suggest turns a natural-language description into proposed
// segments or collections. A Generator produces candidate rule sets; the
// Service resolves their relative dates and accepts only trees that pass
// validation for the requested domain.
package suggest

import (
	"context"
	"errors"

	"github.com/0888060509/champong-admin/internal/rules"
)

var (
	// ErrEmptyDescription is returned when no description is given.
	ErrEmptyDescription = errors.New("description is required")
	// ErrUnknownDomain is returned for a domain without a vocabulary.
	ErrUnknownDomain = errors.New("unknown domain")
	// ErrGenerate wraps failures of the underlying generator.
	ErrGenerate = errors.New("suggestion generator failed")
)

// Request asks a generator for rule sets matching a description.
type Request struct {
	Domain      *rules.Domain
	Description string
}

// Suggestion is one proposed rule set. Conditions is nil when the generator
// returned a tree that could not be decoded.
type Suggestion struct {
	Name           string       `json:"name"`
	Description    string       `json:"description"`
	PublicTitle    string       `json:"publicTitle,omitempty"`
	PublicSubtitle string       `json:"publicSubtitle,omitempty"`
	Conditions     *rules.Group `json:"suggestedConditions"`
}

// Response is a generator's output.
type Response struct {
	Suggestions []Suggestion `json:"suggestions"`
}

// Generator produces suggestions. Implementations may return trees carrying
// relative-date placeholders.
type Generator interface {
	Suggest(ctx context.Context, req Request) (*Response, error)
}
