package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/rustyeddy/tradequeue/config"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "trader",
	Short: "Queue trade commands and execute them against a venue",
	Long: `Trader turns trade ideas into sized, validated limit orders and hands
them to a worker that places them on an execution venue.

It provides tools for:
  - Submitting trade commands (validation, reward:risk, risk based sizing)
  - Running the trade worker against a paper or bridged venue
  - Inspecting and resetting the command queue
  - Querying the trade journal
  - Draining execution notifications`,
	SilenceUsage: true,
}

var (
	cfgFile  string
	envFile  string
	logLevel string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "trader.yaml", "config file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "file with venue secrets")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level from the config")
}

// loadConfig reads the config file, falling back to defaults when it does
// not exist, and sets up logging.
func loadConfig() (*config.Config, error) {
	if err := config.LoadEnv(envFile); err != nil {
		return nil, err
	}

	cfg, err := config.LoadFromFile(cfgFile)
	if errors.Is(err, fs.ErrNotExist) {
		log.WithField("path", cfgFile).Debug("config file not found, using defaults")
		cfg = config.Default()
	} else if err != nil {
		return nil, err
	}

	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Log.Apply(); err != nil {
		return nil, fmt.Errorf("log config: %w", err)
	}
	log.SetOutput(os.Stderr)
	return cfg, nil
}
