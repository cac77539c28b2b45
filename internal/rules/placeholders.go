package rules

import (
	"strings"
	"time"
)

const placeholderPrefix = "DATE_"

// relativeDates is the closed set of relative-date tokens that static rule
// templates and generated suggestions may carry, as days before today.
var relativeDates = map[string]int{
	"DATE_TODAY":        0,
	"DATE_7_DAYS_AGO":   7,
	"DATE_14_DAYS_AGO":  14,
	"DATE_30_DAYS_AGO":  30,
	"DATE_60_DAYS_AGO":  60,
	"DATE_90_DAYS_AGO":  90,
	"DATE_180_DAYS_AGO": 180,
	"DATE_365_DAYS_AGO": 365,
}

// IsPlaceholder reports whether s looks like a relative-date token, known
// or not.
func IsPlaceholder(s string) bool {
	return strings.HasPrefix(s, placeholderPrefix)
}

// Placeholders returns the known relative-date tokens.
func Placeholders() []string {
	out := make([]string, 0, len(relativeDates))
	for token := range relativeDates {
		out = append(out, token)
	}
	return out
}

// ResolvePlaceholders returns a copy of node in which every known
// relative-date token is replaced by an absolute date, counted back from
// the calendar day of now (UTC). Unknown tokens are left in place so that
// validation reports them.
func ResolvePlaceholders(node Node, now time.Time) Node {
	y, m, d := now.UTC().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return Map(node, func(c *Condition) *Condition {
		s, ok := c.Value.Str()
		if !ok {
			return c
		}
		days, known := relativeDates[s]
		if !known {
			return c
		}
		out := *c
		out.Value = Date(today.AddDate(0, 0, -days))
		return &out
	})
}

// ResolveTree is ResolvePlaceholders for a root group.
func ResolveTree(root *Group, now time.Time) *Group {
	if root == nil {
		return nil
	}
	return ResolvePlaceholders(root, now).(*Group)
}
