/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stdf2h5/stdf2h5/pkg/analysis"
	"github.com/stdf2h5/stdf2h5/pkg/dataset"
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect <file.h5>",
	Short: "Show the tables of a converted HDF5 file",
	Long: `Read a converted HDF5 file back and list its file attributes and tables.

With --capability the per-test capability (Cp, Cpk, Pp, Ppk, sigma level and
top fails) is computed from the analysis tables instead.

Examples:
  stdf2h5 inspect lot1.h5
  stdf2h5 inspect --columns lot1.h5
  stdf2h5 inspect --capability lot1.h5`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		columns, _ := cmd.Flags().GetBool("columns")
		capability, _ := cmd.Flags().GetBool("capability")
		asJSON, _ := cmd.Flags().GetBool("json")

		ds, err := dataset.Load(args[0])
		if err != nil {
			return err
		}
		if !capability {
			return outputDataset(cmd.OutOrStdout(), ds, columns)
		}

		ptmd := ds.Analysis(analysis.TablePTMD)
		if ptmd == nil {
			return fmt.Errorf("%s has no analysis tables", args[0])
		}
		caps := analysis.Capability(ds.Analysis(analysis.TablePRR), ds.Analysis(analysis.TableDTP), ptmd)
		if asJSON {
			return outputJSON(cmd.OutOrStdout(), caps)
		}
		return outputCapability(cmd.OutOrStdout(), caps)
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().Bool("columns", false, "List the columns of every table")
	inspectCmd.Flags().Bool("capability", false, "Show per-test capability from the analysis tables")
	inspectCmd.Flags().Bool("json", false, "Output JSON (with --capability)")
}
