package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/0888060509/champong-admin/internal/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Manage champong CLI configuration file.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file",
	Long: `Create a default configuration file at ~/.champong/config.yaml

Example:
  champong config init`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := configFile()
		if err != nil {
			return err
		}
		if _, err := os.Stat(file.Path); err == nil && !forceInit {
			return fmt.Errorf("%s already exists (use --force to overwrite)", file.Path)
		}
		if err := file.Save(cli.DefaultConfig()); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration file created at: %s\n", file.Path)
		fmt.Println("\nPlease edit the file to set your API keys and base URLs.")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := configFile()
		if err != nil {
			return err
		}
		cfg, err := file.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		fmt.Printf("Default Environment: %s\n\n", cfg.DefaultEnv)
		fmt.Println("Environments:")
		for _, name := range cfg.Names() {
			p := cfg.Environments[name]
			fmt.Printf("  %s:\n", name)
			fmt.Printf("    base_url: %s\n", p.BaseURL)
			fmt.Printf("    api_key: %s\n", p.MaskedKey())
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a specific configuration value. Keys are default_env or
<env>.base_url and <env>.api_key.

Examples:
  champong config set dev.base_url http://localhost:8080
  champong config set prod.api_key my-secret-key
  champong config set default_env prod`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := configFile()
		if err != nil {
			return err
		}
		cfg, err := file.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := cfg.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := file.Save(cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		fmt.Printf("Successfully set %s\n", args[0])
		return nil
	},
}

var forceInit bool

func init() {
	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing config file")
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configListCmd, configSetCmd)
}
