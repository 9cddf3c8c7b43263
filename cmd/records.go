package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"neon2retro/internal/config"
	"neon2retro/internal/logger"
	"neon2retro/internal/neon"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "List invoices in the Neon table",
	Long: `List the first invoices of the source table ordered by id, showing the
invoice number, invoice date and total amount. Use it to pick record ids for
"neon2retro migrate <record-id>".`,
	Args: cobra.NoArgs,
	RunE: runRecords,
}

func init() {
	rootCmd.AddCommand(recordsCmd)

	recordsCmd.Flags().Int("limit", 10, "Number of records to list")
	recordsCmd.Flags().Bool("json", false, "Output as JSON format")
}

func runRecords(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("records")

	limit, _ := cmd.Flags().GetInt("limit")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	if limit <= 0 {
		return fmt.Errorf("--limit must be a positive integer")
	}

	cfg, err := loadConfig(config.PartSource)
	if err != nil {
		return err
	}

	summaries, err := listRecords(cfg)(context.Background(), limit)
	if err != nil {
		return err
	}
	log.Debug().Int("count", len(summaries)).Msg("Listed source records")

	if jsonOutput {
		return outputJSON(summaries)
	}
	outputRecordsConsole(summaries)
	return nil
}

func outputRecordsConsole(summaries []neon.RecordSummary) {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("%-8s %-30s %-12s %16s\n", "ID", "Invoice No", "Date", "Total")
	fmt.Println(strings.Repeat("-", 80))
	for _, s := range summaries {
		date := "-"
		if s.InvoiceDate != nil {
			date = s.InvoiceDate.Format("2006-01-02")
		}
		total := "-"
		if s.TotalAmount != nil {
			total = *s.TotalAmount
		}
		fmt.Printf("%-8d %-30s %-12s %16s\n", s.ID, truncate(s.InvoiceNo, 30), date, total)
	}
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("%d record(s)\n", len(summaries))
}
