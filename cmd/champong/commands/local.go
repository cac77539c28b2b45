package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/0888060509/champong-admin/internal/cli"
	"github.com/0888060509/champong-admin/internal/rules"
)

var (
	localDomain string
	evalRecords string
	resolveNow  bool
)

// errInvalidTree makes validate exit non-zero after printing the issues.
var errInvalidTree = errors.New("rule tree is invalid")

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a rule tree file",
	Long: `Validate a JSON or YAML rule tree against a domain vocabulary.

Relative date placeholders (DATE_TODAY, DATE_30_DAYS_AGO, ...) are reported
as invalid unless --resolve is given.

Examples:
  champong validate --domain customer vip.yaml
  champong validate --domain product --resolve sweet.json --format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, tree, err := loadLocalTree(args[0])
		if err != nil {
			return err
		}
		res := d.Validate(tree)
		if !quiet {
			if err := printer().Validation(d, tree, res); err != nil {
				return err
			}
		}
		if !res.Valid() {
			return errInvalidTree
		}
		return nil
	},
}

var renderCmd = &cobra.Command{
	Use:   "render <file>",
	Short: "Print the readable form of a rule tree",
	Long: `Print a rule tree the way the dashboard shows it.

Example:
  champong render --domain customer vip.yaml
  (Membership Level = 'Gold' AND Total Spend >= 1000)`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, tree, err := loadLocalTree(args[0])
		if err != nil {
			return err
		}
		fmt.Println(d.Render(tree))
		return nil
	},
}

var evalCmd = &cobra.Command{
	Use:   "eval <file>",
	Short: "Evaluate a rule tree against local records",
	Long: `Evaluate a rule tree against records from a JSON or YAML file.

Placeholders are resolved against the current date. Records missing a
referenced field do not match, and the missing fields are listed.

Example:
  champong eval --domain customer vip.yaml --records guests.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resolveNow = true
		d, tree, err := loadLocalTree(args[0])
		if err != nil {
			return err
		}
		if res := d.Validate(tree); !res.Valid() {
			_ = printer().Validation(d, tree, res)
			return errInvalidTree
		}
		records, err := cli.LoadRecords(evalRecords)
		if err != nil {
			return err
		}
		if quiet {
			return nil
		}
		return printer().Evaluation(d, tree, records)
	},
}

func loadLocalTree(path string) (*rules.Domain, *rules.Group, error) {
	d, err := lookupDomain(localDomain)
	if err != nil {
		return nil, nil, err
	}
	tree, err := cli.LoadTree(path)
	if err != nil {
		return nil, nil, err
	}
	if resolveNow {
		tree = rules.ResolveTree(tree, time.Now())
	}
	return d, tree, nil
}

func init() {
	for _, c := range []*cobra.Command{validateCmd, renderCmd, evalCmd} {
		rootCmd.AddCommand(c)
		c.Flags().StringVar(&localDomain, "domain", "customer", "Vocabulary to check against (customer, product)")
	}
	validateCmd.Flags().BoolVar(&resolveNow, "resolve", false, "Resolve date placeholders before validating")
	renderCmd.Flags().BoolVar(&resolveNow, "resolve", false, "Resolve date placeholders before rendering")
	evalCmd.Flags().StringVar(&evalRecords, "records", "", "File with the records to evaluate (required)")
	_ = evalCmd.MarkFlagRequired("records")
}
