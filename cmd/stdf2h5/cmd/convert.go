/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/stdf2h5/stdf2h5/pkg/analysis"
	"github.com/stdf2h5/stdf2h5/pkg/converter"
)

// convertCmd represents the convert command
var convertCmd = &cobra.Command{
	Use:   "convert <file|dir>...",
	Short: "Convert STDF files to HDF5",
	Long: `Convert one or more STDF V4 files to HDF5. Directories are searched
recursively for files with a configured STDF suffix.

Examples:
  stdf2h5 convert lot1.stdf
  stdf2h5 convert --summary ./lots
  stdf2h5 convert -o ./h5 --no-analysis lot1.stdf lot2.std`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		noAnalysis, _ := cmd.Flags().GetBool("no-analysis")
		summary, _ := cmd.Flags().GetBool("summary")
		if noAnalysis {
			cfg.Analysis = false
		}

		inputs, err := collectInputs(args, cfg.Suffixes)
		if err != nil {
			return err
		}
		if len(inputs) == 0 {
			return errors.New("no STDF files found")
		}

		store, err := container.OpenCatalog(cfg)
		if err != nil {
			return err
		}
		if store != nil {
			defer store.Close()
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		c := converter.New(container.ConverterOptions(cfg, store, logger))
		out := cmd.OutOrStdout()
		failed := 0
		for _, path := range inputs {
			report, err := c.Convert(ctx, path)
			if err != nil {
				failed++
				fmt.Fprintf(out, "❌ %s: %v (%s)\n", path, err, converter.Classify(err))
				if ctx.Err() != nil {
					break
				}
				continue
			}
			fmt.Fprintf(out, "✅ %s -> %s (%d records, %d skipped, finish %s)\n",
				path, report.Output, report.Stats.Decoded, report.Stats.Skipped,
				analysis.FormatTime(report.FinishT))
			if summary && report.Summary != nil {
				if err := report.Summary.WriteText(out, path, report.Lot); err != nil {
					return err
				}
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d conversions failed", failed, len(inputs))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)
	convertCmd.Flags().Bool("no-analysis", false, "Skip the derived prr, dtp and ptmd tables")
	convertCmd.Flags().Bool("summary", false, "Print the yield summary of each converted file")
}

// collectInputs expands directories into the STDF files beneath them. Files
// named explicitly are kept whatever their suffix.
func collectInputs(args []string, suffixes []string) ([]string, error) {
	var inputs []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			inputs = append(inputs, arg)
			continue
		}

		var found []string
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && analysis.IsSTDF(d.Name(), suffixes...) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", arg, err)
		}
		sort.Strings(found)
		inputs = append(inputs, found...)
	}
	return inputs, nil
}
