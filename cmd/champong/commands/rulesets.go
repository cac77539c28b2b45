package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/0888060509/champong-admin/internal/cli"
	"github.com/0888060509/champong-admin/internal/client"
	"github.com/0888060509/champong-admin/internal/rules"
)

// ruleSetCommand builds the segments or collections command tree.
func ruleSetCommand(use, noun, recordsUse string, d *rules.Domain) *cobra.Command {
	parent := &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("Manage %s (%s rules)", use, d.Name),
	}

	list := &cobra.Command{
		Use:   "list",
		Short: fmt.Sprintf("List all %s", use),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			sets, err := c.ListRuleSets(context.Background(), d)
			if err != nil {
				return fmt.Errorf("failed to list %s: %w", use, err)
			}
			if quiet {
				return nil
			}
			if len(sets) == 0 {
				fmt.Printf("No %s found\n", use)
				return nil
			}
			return printer().RuleSets(sets)
		},
	}

	get := &cobra.Command{
		Use:   "get <id>",
		Short: fmt.Sprintf("Show one %s", noun),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			rs, err := c.GetRuleSet(context.Background(), d, args[0])
			if errors.Is(err, client.ErrNotFound) {
				return fmt.Errorf("%s '%s' not found", noun, args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to get %s: %w", noun, err)
			}
			if quiet {
				return nil
			}
			return printer().RuleSet(rs)
		},
	}

	apply := &cobra.Command{
		Use:   "apply <file>",
		Short: fmt.Sprintf("Create or replace a %s from a file", noun),
		Long: fmt.Sprintf(`Create or replace a %[1]s from a JSON or YAML definition.

A definition without an id creates a new %[1]s. With an id the stored %[1]s
is replaced wholesale. Date placeholders are resolved by the server.

Example:
  champong %[2]s apply definition.yaml`, noun, use),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := cli.LoadRuleSet(args[0])
			if err != nil {
				return err
			}
			c, err := newClient()
			if err != nil {
				return err
			}
			rs, err := c.ApplyRuleSet(context.Background(), d, params)
			if err != nil {
				return describeAPIError(fmt.Sprintf("failed to apply %s", noun), err)
			}
			if quiet {
				return nil
			}
			return printer().RuleSet(rs)
		},
	}

	var force bool
	del := &cobra.Command{
		Use:   "delete <id>",
		Short: fmt.Sprintf("Delete a %s", noun),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			c, err := newClient()
			if err != nil {
				return err
			}

			// Confirm deletion unless --force
			if !force && !quiet {
				fmt.Printf("Are you sure you want to delete %s '%s'? (y/N): ", noun, id)
				reader := bufio.NewReader(os.Stdin)
				response, err := reader.ReadString('\n')
				if err != nil {
					return fmt.Errorf("failed to read confirmation: %w", err)
				}
				response = strings.ToLower(strings.TrimSpace(response))
				if response != "y" && response != "yes" {
					fmt.Println("Deletion cancelled")
					return nil
				}
			}

			if err := c.DeleteRuleSet(context.Background(), d, id); err != nil {
				return fmt.Errorf("failed to delete %s: %w", noun, err)
			}
			if !quiet {
				fmt.Printf("Successfully deleted %s '%s'\n", noun, id)
			}
			return nil
		},
	}
	del.Flags().BoolVar(&force, "force", false, "Skip confirmation")

	records := &cobra.Command{
		Use:   recordsUse + " <id>",
		Short: fmt.Sprintf("List the %s a %s selects", recordsUse, noun),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			recs, err := c.Records(context.Background(), d, args[0])
			if err != nil {
				return fmt.Errorf("failed to list %s: %w", recordsUse, err)
			}
			if quiet {
				return nil
			}
			return printer().Records(recs)
		},
	}

	parent.AddCommand(list, get, apply, del, records)
	return parent
}

// describeAPIError expands tree issues so invalid files are easy to fix.
func describeAPIError(prefix string, err error) error {
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || len(apiErr.Issues) == 0 {
		return fmt.Errorf("%s: %w", prefix, err)
	}
	lines := make([]string, 0, len(apiErr.Issues))
	for _, issue := range apiErr.Issues {
		lines = append(lines, "  "+issue.Error())
	}
	return fmt.Errorf("%s: %s\n%s", prefix, apiErr.Message, strings.Join(lines, "\n"))
}

func init() {
	rootCmd.AddCommand(
		ruleSetCommand("segments", "segment", "members", rules.Customer),
		ruleSetCommand("collections", "collection", "products", rules.Product),
	)
}
