/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/stdf2h5/stdf2h5/pkg/analysis"
)

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info <file>",
	Short: "Show lot information of an STDF file",
	Long: `Show the lot information recorded in the header records of an STDF file.
Only the records before the first part are read unless --full is given.

Examples:
  stdf2h5 info lot1.stdf
  stdf2h5 info --full --json lot1.stdf`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		full, _ := cmd.Flags().GetBool("full")
		asJSON, _ := cmd.Flags().GetBool("json")

		info, err := analysis.ReadLotInfo(args[0], full)
		if err != nil {
			return err
		}
		if asJSON {
			return outputJSON(cmd.OutOrStdout(), info)
		}
		return outputLotInfo(cmd.OutOrStdout(), info)
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
	infoCmd.Flags().Bool("full", false, "Read the whole file, including the MRR")
	infoCmd.Flags().Bool("json", false, "Output JSON")
}
