/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stdf2h5/stdf2h5/pkg/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config file with a generated API key",
	Long: `Create the stdf2h5 configuration file with default settings and a freshly
generated API key for the REST server.

Examples:
  stdf2h5 init
  stdf2h5 init --config ./stdf2h5.yaml --output-dir ./h5 --catalog-dir ./catalog`,
	Args: cobra.NoArgs,
	// The config being created must not be loaded first
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		outputDir, _ := cmd.Flags().GetString("output-dir")
		catalogDir, _ := cmd.Flags().GetString("catalog-dir")
		force, _ := cmd.Flags().GetBool("force")
		printKey, _ := cmd.Flags().GetBool("print-key")

		if configPath == "" {
			configPath = config.GetDefaultConfigPath()
		}
		if config.ConfigExists(configPath) && !force {
			cmd.Printf("Configuration already exists at %s. Use --force to overwrite.\n", configPath)
			return nil
		}

		c, err := config.BootstrapConfig(configPath, outputDir)
		if err != nil {
			return err
		}
		if catalogDir != "" {
			c.CatalogDir = catalogDir
			if err := config.SaveConfig(c, configPath); err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✅ Configuration created at %s\n", configPath)
		if printKey {
			fmt.Fprintf(out, "API Key: %s\n", c.Server.APIKey)
		}
		fmt.Fprintf(out, "\nYou can now start the server with:\n  stdf2h5 serve --config %s\n", configPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().Bool("force", false, "Overwrite an existing configuration")
	initCmd.Flags().Bool("print-key", false, "Print the generated API key")
}
