package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/0888060509/champong-admin/internal/client"
	"github.com/0888060509/champong-admin/internal/engine"
	"github.com/0888060509/champong-admin/internal/rules"
	"github.com/0888060509/champong-admin/internal/suggest"
)

// OutputFormat specifies the output format for CLI commands
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", s)
	}
}

// Printer writes command results in one format.
type Printer struct {
	W      io.Writer
	Format OutputFormat
}

// RuleSets prints rule sets as a list.
func (p Printer) RuleSets(sets []client.RuleSet) error {
	switch p.Format {
	case FormatTable:
		rows := make([][]string, 0, len(sets))
		for _, rs := range sets {
			rows = append(rows, ruleSetRow(rs))
		}
		return p.table([]string{"ID", "Name", "Rule", "Updated At"}, rows)
	default:
		return p.encode(map[string]any{"items": sets, "count": len(sets)})
	}
}

// RuleSet prints a single rule set.
func (p Printer) RuleSet(rs *client.RuleSet) error {
	if p.Format == FormatTable {
		return p.table([]string{"ID", "Name", "Rule", "Updated At"}, [][]string{ruleSetRow(*rs)})
	}
	return p.encode(rs)
}

func ruleSetRow(rs client.RuleSet) []string {
	return []string{rs.ID, rs.Name, truncate(rs.Rendered, 60), rs.UpdatedAt.Format("2006-01-02 15:04")}
}

// Records prints the raw records a rule set selects. The table form
// shows ids and names only.
func (p Printer) Records(recs *client.Records) error {
	if p.Format != FormatTable {
		return p.encode(recs)
	}
	rows := make([][]string, 0, len(recs.Items))
	for _, raw := range recs.Items {
		var item struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		}
		if err := json.Unmarshal(raw, &item); err != nil {
			return fmt.Errorf("decode record: %w", err)
		}
		rows = append(rows, []string{item.ID, item.Name})
	}
	fmt.Fprintf(p.W, "%s matches %d record(s)\n", recs.Rendered, recs.Count)
	return p.table([]string{"ID", "Name"}, rows)
}

// Suggestions prints accepted suggestions followed by rejected ones.
func (p Printer) Suggestions(res *suggest.Result) error {
	if p.Format != FormatTable {
		return p.encode(res)
	}
	rows := make([][]string, 0, len(res.Accepted)+len(res.Rejected))
	for _, a := range res.Accepted {
		rows = append(rows, []string{"accepted", a.Name, a.Rendered})
	}
	for _, r := range res.Rejected {
		msg := ""
		if len(r.Issues) > 0 {
			msg = r.Issues[0].Error()
		}
		rows = append(rows, []string{"rejected", r.Name, msg})
	}
	return p.table([]string{"Status", "Name", "Rule / Issue"}, rows)
}

// Validation prints the outcome of validating a tree.
func (p Printer) Validation(d *rules.Domain, tree *rules.Group, res rules.ValidationResult) error {
	if p.Format != FormatTable {
		issues := res.Issues
		if issues == nil {
			issues = []rules.Issue{}
		}
		return p.encode(map[string]any{"valid": res.Valid(), "issues": issues, "rendered": d.Render(tree)})
	}
	if res.Valid() {
		fmt.Fprintf(p.W, "valid: %s\n", d.Render(tree))
		return nil
	}
	rows := make([][]string, 0, len(res.Issues))
	for _, issue := range res.Issues {
		rows = append(rows, []string{issue.Key(), string(issue.Kind), issue.Message})
	}
	return p.table([]string{"Location", "Kind", "Message"}, rows)
}

// Evaluation prints per-record outcomes of a local evaluation.
func (p Printer) Evaluation(d *rules.Domain, tree *rules.Group, records []engine.MapRecord) error {
	type result struct {
		Index   int      `json:"index" yaml:"index"`
		Matched bool     `json:"matched" yaml:"matched"`
		Missing []string `json:"missing,omitempty" yaml:"missing,omitempty"`
	}
	results := make([]result, 0, len(records))
	matched := 0
	for i, rec := range records {
		ok, missing := engine.Explain(tree, rec)
		r := result{Index: i, Matched: ok}
		for _, m := range missing {
			r.Missing = append(r.Missing, m.Criteria)
		}
		if ok {
			matched++
		}
		results = append(results, r)
	}

	if p.Format != FormatTable {
		return p.encode(map[string]any{"rendered": d.Render(tree), "matched": matched, "results": results})
	}
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		missing := ""
		for i, m := range r.Missing {
			if i > 0 {
				missing += ", "
			}
			missing += m
		}
		rows = append(rows, []string{strconv.Itoa(r.Index), strconv.FormatBool(r.Matched), missing})
	}
	fmt.Fprintf(p.W, "%s matches %d of %d record(s)\n", d.Render(tree), matched, len(records))
	return p.table([]string{"Record", "Matched", "Missing Fields"}, rows)
}

func (p Printer) encode(v any) error {
	switch p.Format {
	case FormatJSON:
		encoder := json.NewEncoder(p.W)
		encoder.SetIndent("", "  ")
		return encoder.Encode(v)
	case FormatYAML:
		// round-trip through JSON so rule trees keep their wire shape
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var generic any
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return err
		}
		encoder := yaml.NewEncoder(p.W)
		defer encoder.Close()
		encoder.SetIndent(2)
		return encoder.Encode(generic)
	default:
		return fmt.Errorf("unsupported format: %s", p.Format)
	}
}

func (p Printer) table(header []string, rows [][]string) error {
	table := tablewriter.NewWriter(p.W)
	table.Header(header)
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
