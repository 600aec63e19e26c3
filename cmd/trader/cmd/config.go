package cmd

import (
	"fmt"

	"github.com/rustyeddy/tradequeue/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
	Long: `Manage the configuration shared by the producer and the worker.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  trader config init --output trader.yaml
  trader config validate --file trader.yaml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	RunE:  runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	RunE:  runConfigValidate,
}

var (
	configInitOutput   string
	configValidatePath string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "trader.yaml", "output config file path")
	configValidateCmd.Flags().StringVarP(&configValidatePath, "file", "f", "", "path to config file (required)")
	_ = configValidateCmd.MarkFlagRequired("file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if err := cfg.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Printf("✓ Created default configuration: %s\n", configInitOutput)
	fmt.Println("\nPut venue secrets in .env and start the worker with:")
	fmt.Printf("  trader worker --config %s\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(configValidatePath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Printf("✓ Configuration valid: %s\n", configValidatePath)
	fmt.Printf("  Venue: %s %s\n", cfg.Venue.Type, cfg.Venue.URL)
	fmt.Printf("  Symbols: %q + base + %q\n", cfg.Symbol.Prefix, cfg.Symbol.Suffix)
	fmt.Printf("  Queue: %s\n", cfg.Queue.Dir)
	fmt.Printf("  Journal: %s\n", cfg.Journal.DBPath)
	fmt.Printf("  Worker: %s (lease %s, %d retries)\n", cfg.Worker.WorkerID(), cfg.Worker.ClaimLease, cfg.Worker.MaxRetries)
	fmt.Printf("  Reward:Risk 1:%.2f, default risk %.2f\n", cfg.Risk.DefaultRRRatio, cfg.Risk.DefaultRisk)
	return nil
}
