/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the stdf2h5 configuration
type Config struct {
	OutputDir  string   `yaml:"output_dir"`
	CatalogDir string   `yaml:"catalog_dir"`
	Analysis   bool     `yaml:"analysis"`
	Suffixes   []string `yaml:"suffixes"`
	Dataset    Dataset  `yaml:"dataset"`
	Server     Server   `yaml:"server"`
	Logging    Logging  `yaml:"logging"`
}

// Dataset contains HDF5 layout options
type Dataset struct {
	ChunkRows   int `yaml:"chunk_rows"`
	Compression int `yaml:"compression"`
}

// Server contains REST service configuration
type Server struct {
	Port   int    `yaml:"port"`
	Bind   string `yaml:"bind"`
	APIKey string `yaml:"api_key"`
}

// Logging contains logging configuration
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		OutputDir:  "",
		CatalogDir: "",
		Analysis:   true,
		Suffixes:   []string{".std", ".stdf", ".std_temp"},
		Dataset: Dataset{
			ChunkRows:   0,
			Compression: 0,
		},
		Server: Server{
			Port:   8080,
			Bind:   "127.0.0.1",
			APIKey: "",
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks that the configuration values are usable
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Dataset.ChunkRows < 0 {
		return fmt.Errorf("dataset.chunk_rows must not be negative")
	}
	if c.Dataset.Compression < 0 || c.Dataset.Compression > 9 {
		return fmt.Errorf("dataset.compression %d not in 0-9", c.Dataset.Compression)
	}
	if c.Dataset.Compression > 0 && c.Dataset.ChunkRows == 0 {
		return fmt.Errorf("dataset.compression requires dataset.chunk_rows")
	}
	for _, s := range c.Suffixes {
		if !strings.HasPrefix(s, ".") {
			return fmt.Errorf("suffix %q must start with a dot", s)
		}
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown logging.level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown logging.format %q", c.Logging.Format)
	}
	return nil
}

// LoadConfig loads configuration from the specified path. Keys missing from
// the file keep their default values.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	// Validate path to prevent directory traversal
	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file: %w", err)
	}
	return config, nil
}

// SaveConfig saves the configuration to the specified path with secure permissions
func SaveConfig(config *Config, configPath string) error {
	// Ensure config directory exists
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// The API key lives in this file
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateSecureKey generates a cryptographically secure random key
func GenerateSecureKey(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate secure key: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// BootstrapConfig writes a new configuration with a generated API key
func BootstrapConfig(configPath string, outputDir string) (*Config, error) {
	config := DefaultConfig()
	if outputDir != "" {
		config.OutputDir = outputDir
	}

	apiKey, err := GenerateSecureKey(32) // 256 bits
	if err != nil {
		return nil, fmt.Errorf("failed to generate API key: %w", err)
	}
	config.Server.APIKey = apiKey

	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save bootstrap config: %w", err)
	}

	return config, nil
}

// GetDefaultConfigPath returns the default configuration path for the current platform
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./stdf2h5.yaml"
	}

	// For Linux/macOS, use ~/.config/stdf2h5/config.yaml
	configDir := filepath.Join(homeDir, ".config", "stdf2h5")
	return filepath.Join(configDir, "config.yaml")
}

// ConfigExists checks if a configuration file exists
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}
