/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/segmentio/ksuid"
	"github.com/spf13/cobra"

	"github.com/stdf2h5/stdf2h5/pkg/catalog"
)

// catalogCmd represents the catalog command
var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Browse the conversion catalog",
	Long: `Browse the summaries recorded for each successful conversion. The catalog
lives in catalog_dir from the config file or --catalog-dir.`,
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversions, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		return withCatalog(func(store *catalog.Store) error {
			entries, err := store.List()
			if err != nil {
				return err
			}
			if asJSON {
				return outputJSON(cmd.OutOrStdout(), entries)
			}
			return outputEntries(cmd.OutOrStdout(), entries)
		})
	},
}

var catalogShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one conversion and its yield summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		id, err := ksuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid id %q: %w", args[0], err)
		}
		return withCatalog(func(store *catalog.Store) error {
			entry, err := store.Get(id)
			if err != nil {
				return err
			}
			if asJSON {
				return outputJSON(cmd.OutOrStdout(), entry)
			}
			return outputEntry(cmd.OutOrStdout(), entry)
		})
	},
}

var catalogDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a conversion from the catalog",
	Long:  `Delete a conversion from the catalog. The converted file is left in place.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := ksuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid id %q: %w", args[0], err)
		}
		return withCatalog(func(store *catalog.Store) error {
			if err := store.Delete(id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogListCmd, catalogShowCmd, catalogDeleteCmd)
	catalogListCmd.Flags().Bool("json", false, "Output JSON")
	catalogShowCmd.Flags().Bool("json", false, "Output JSON")
}

// withCatalog runs fn against the configured catalog
func withCatalog(fn func(store *catalog.Store) error) error {
	store, err := container.OpenCatalog(cfg)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("no catalog configured: set catalog_dir or --catalog-dir")
	}
	defer store.Close()
	return fn(store)
}
