package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"neon2retro/internal/normalize"
	"neon2retro/internal/reconcile"
)

var mappingsCmd = &cobra.Command{
	Use:   "mappings",
	Short: "Show how Neon columns map to Retro fields",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")
		if jsonOutput {
			return outputJSON(normalize.Fields)
		}

		fmt.Println(strings.Repeat("=", 80))
		fmt.Printf("%-34s %-10s %s\n", "Neon column", "Kind", "Retro field")
		fmt.Println(strings.Repeat("-", 80))
		for _, f := range normalize.Fields {
			target := f.Target
			if target == "" {
				target = "-"
			}
			fmt.Printf("%-34s %-10s %s\n", f.Column, f.Kind, target)
		}
		fmt.Println(strings.Repeat("-", 80))
		fmt.Printf("GST rate slots:         %v\n", reconcile.RequiredRates)
		fmt.Printf("Additional cost slots:  %s\n", strings.Join(reconcile.CostCategories, ", "))
		fmt.Println(strings.Repeat("=", 80))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mappingsCmd)

	mappingsCmd.Flags().Bool("json", false, "Output as JSON format")
}
