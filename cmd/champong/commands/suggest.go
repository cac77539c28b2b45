package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var suggestCmd = &cobra.Command{
	Use:   "suggest <domain> <description>",
	Short: "Ask the server to draft rule sets from a description",
	Long: `Ask the server to turn a plain-language description into rule sets.

Every draft is validated by the server. Accepted drafts carry absolute
dates and can be saved with "apply"; rejected ones list their issues.

Examples:
  champong suggest customer "loyal guests who visited this month"
  champong suggest product "cheap vegan dishes" --format yaml`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := lookupDomain(args[0])
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		res, err := c.Suggest(context.Background(), d, strings.Join(args[1:], " "))
		if err != nil {
			return fmt.Errorf("failed to get suggestions: %w", err)
		}
		if quiet {
			return nil
		}
		return printer().Suggestions(res)
	},
}

func init() {
	rootCmd.AddCommand(suggestCmd)
}
