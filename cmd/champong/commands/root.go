package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/0888060509/champong-admin/internal/cli"
	"github.com/0888060509/champong-admin/internal/client"
	"github.com/0888060509/champong-admin/internal/rules"
)

var (
	// Global flags
	baseURL    string
	apiKey     string
	env        string
	format     string
	quiet      bool
	configPath string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "champong",
	Short: "CLI tool for managing customer segments and product collections",
	Long: `Champong is a command-line tool for the Champong restaurant admin service.

It validates, renders and evaluates rule trees locally, and manages the
segments (customer rules) and collections (product rules) stored on a server.

Examples:
  champong validate --domain customer vip.yaml
  champong eval --domain product sweet.json --records menu.json
  champong segments list
  champong collections apply sweet.yaml
  champong suggest customer "guests we have not seen in a while"`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_, err := cli.ParseFormat(format)
		return err
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Base URL of the admin API")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Admin API key")
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "Environment from the config file (default: default_env)")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ~/.champong/config.yaml)")
}

func configFile() (cli.ConfigFile, error) {
	if configPath != "" {
		return cli.ConfigFile{Path: configPath}, nil
	}
	return cli.DefaultConfigFile()
}

func printer() cli.Printer {
	return cli.Printer{W: os.Stdout, Format: cli.OutputFormat(format)}
}

func newClient() (*client.Client, error) {
	file, err := configFile()
	if err != nil {
		return nil, err
	}
	cfg, err := file.Load()
	if err != nil {
		return nil, err
	}
	profile, err := cfg.Resolve(env, baseURL, apiKey)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return client.NewClient(profile.BaseURL, profile.APIKey), nil
}

func lookupDomain(name string) (*rules.Domain, error) {
	d, ok := rules.LookupDomain(name)
	if !ok {
		return nil, fmt.Errorf("unknown domain %q (use customer or product)", strings.TrimSpace(name))
	}
	return d, nil
}
