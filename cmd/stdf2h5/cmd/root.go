/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stdf2h5/stdf2h5/pkg/config"
	"github.com/stdf2h5/stdf2h5/pkg/di"
)

var (
	container *di.Container
	cfg       *config.Config
	logger    *slog.Logger
)

// SetContainer injects the dependency container
func SetContainer(c *di.Container) {
	container = c
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stdf2h5",
	Short: "stdf2h5 - STDF V4 to HDF5 converter",
	Long: `stdf2h5 converts STDF V4 semiconductor test data files into columnar
HDF5 datasets, one group per record type, with optional derived analysis tables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		loaded, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		if err := applyFlags(cmd, loaded); err != nil {
			return err
		}
		cfg = loaded
		logger = newLogger(cmd.ErrOrStderr(), cfg.Logging)
		if container == nil {
			container = di.NewContainer()
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (default ~/.config/stdf2h5/config.yaml)")
	rootCmd.PersistentFlags().StringP("output-dir", "o", "", "Directory for .h5 files (default: next to the input)")
	rootCmd.PersistentFlags().String("catalog-dir", "", "Directory of the conversion catalog")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text or json")
}

// loadConfig reads the config file when one exists and falls back to the
// defaults otherwise. An explicitly named file must exist.
func loadConfig(path string) (*config.Config, error) {
	explicit := path != ""
	if !explicit {
		path = config.GetDefaultConfigPath()
	}
	if !config.ConfigExists(path) {
		if explicit {
			return nil, fmt.Errorf("config file %s not found", path)
		}
		return config.DefaultConfig(), nil
	}
	return config.LoadConfig(path)
}

// applyFlags overrides config values with flags the user set
func applyFlags(cmd *cobra.Command, c *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("output-dir") {
		c.OutputDir, _ = flags.GetString("output-dir")
	}
	if flags.Changed("catalog-dir") {
		c.CatalogDir, _ = flags.GetString("catalog-dir")
	}
	if flags.Changed("log-level") {
		c.Logging.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		c.Logging.Format, _ = flags.GetString("log-format")
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

// newLogger builds the slog handler selected by the logging config
func newLogger(w io.Writer, lc config.Logging) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(lc.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
