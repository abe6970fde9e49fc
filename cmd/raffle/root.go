package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/eigerco/raffle/internal/config"
	"github.com/eigerco/raffle/pkg/log"
)

var rootCmd = &cobra.Command{
	Use:           "raffle",
	Short:         "Provably fair raffle node and client",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "path to a TOML config file")
	rootCmd.PersistentFlags().String("key", "", "node or client key file (overrides network.key_file)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (overrides log.level)")
	rootCmd.PersistentFlags().String("addr", "", "node address for client commands (defaults to network.listen)")

	rootCmd.AddCommand(nodeCmd, keygenCmd, statusCmd, enterCmd, depositCmd, balanceCmd, upkeepCmd, fulfillCmd)
}

// loadConfig reads --config when given and applies the persistent overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return config.Config{}, err
		}
	}
	if key, _ := cmd.Flags().GetString("key"); key != "" {
		cfg.Network.KeyFile = key
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func initLogging(cfg config.Config) error {
	level, err := log.ParseLogLevel(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	typ, err := log.ParseLoggerType(cfg.Log.Type)
	if err != nil {
		return err
	}
	log.Init(log.Options{LogLevel: level, Type: typ, Out: os.Stderr})
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}
