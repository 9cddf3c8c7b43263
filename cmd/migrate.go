package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"neon2retro/internal/config"
	"neon2retro/internal/logger"
	"neon2retro/internal/migration"
	"neon2retro/internal/sheets"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate [record-id]",
	Short: "Send invoices from Neon to Retro",
	Long: `Read invoices from the Neon table and submit them one by one to Retro.

With a record id only that invoice is migrated; otherwise the first --limit
rows ordered by id are sent. Each record is reported as sent, rejected or
transport error and the run ends with a summary.

Required environment variables:
  NEON_CONNECTION_STRING - PostgreSQL connection string of the source database
  RETRO_API_URL          - Base URL of the Retro application
  RETRO_USERNAME         - Retro login
  RETRO_PASSWORD         - Retro password
  RETRO_REFERENCES_FILE  - Lookup tables (currency, cost center, cargo type, tokens)

Optional environment variables:
  AUTH_API_URL       - Login host if different from RETRO_API_URL
  NEON_TABLE         - Source table (default: invoices)
  SEND_DELAY         - Pause between submissions (default: 500ms)
  REQUEST_TIMEOUT    - Per-request timeout (default: 60s)
  DEFAULT_LIMIT      - Batch size when no limit is given (default: 10)
  REFERENCE_PREFIX   - Prefix of generated references; empty keeps the invoice number
  TOTAL_AMOUNT_MODE  - recompute (default) or source
  GOOGLE_SHEET_URL   - Spreadsheet for --report
  REPORT_SHEET_NAME  - Tab for --report (default: Migrations)

Examples:
  neon2retro migrate --limit 5
  neon2retro migrate 1042 --verify
  neon2retro migrate --dry-run --limit 3 > payloads.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().Int("limit", 0, "Number of records to migrate (default: DEFAULT_LIMIT)")
	migrateCmd.Flags().Bool("dry-run", false, "Build payloads and print them as JSON without sending")
	migrateCmd.Flags().Bool("verify", false, "Look each accepted invoice up in Retro after sending")
	migrateCmd.Flags().Bool("report", false, "Append the run report to the Google Sheet")
	migrateCmd.Flags().Duration("delay", 0, "Pause between submissions (default: SEND_DELAY)")
	migrateCmd.Flags().Bool("json", false, "Output the summary as JSON")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("migrate")

	limit, _ := cmd.Flags().GetInt("limit")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	verify, _ := cmd.Flags().GetBool("verify")
	report, _ := cmd.Flags().GetBool("report")
	delay, _ := cmd.Flags().GetDuration("delay")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	req := migration.Request{Limit: limit}
	if len(args) == 1 {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid record id %q", args[0])
		}
		req.RecordID = &id
	}
	if cmd.Flags().Changed("limit") && limit <= 0 {
		return fmt.Errorf("--limit must be a positive integer")
	}
	if dryRun && (verify || report) {
		return fmt.Errorf("--dry-run cannot be combined with --verify or --report")
	}

	parts := []config.Part{config.PartSource, config.PartReferences}
	if !dryRun {
		parts = append(parts, config.PartDestination)
	}
	if report {
		parts = append(parts, config.PartReport)
	}
	cfg, err := loadConfig(parts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := migration.Options{
		Delay:  cfg.SendDelay,
		DryRun: dryRun,
		Verify: verify,
	}
	if cmd.Flags().Changed("delay") {
		opts.Delay = delay
	}
	if report {
		sink, err := sheets.NewSheetsService(ctx, cfg.GoogleSheetURL, cfg.ReportSheetName)
		if err != nil {
			return fmt.Errorf("failed to create report sheet service: %w", err)
		}
		opts.Report = sink
	}

	migrator, err := newMigrator(cfg, opts)
	if err != nil {
		return err
	}

	log.Info().
		Bool("dry_run", dryRun).
		Bool("verify", verify).
		Dur("delay", opts.Delay).
		Msg("Starting migration")

	summary, err := migrator.Run(ctx, req)
	if err != nil && summary == nil {
		return err
	}

	switch {
	case dryRun:
		if outErr := outputPayloads(summary); outErr != nil {
			return outErr
		}
	case jsonOutput:
		if outErr := outputJSON(summary); outErr != nil {
			return outErr
		}
	default:
		outputSummaryConsole(summary)
	}

	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d records failed", summary.Failed, summary.Total)
	}
	return nil
}

// dryRunRecord is what --dry-run prints per record. The header and slot
// entries are embedded as JSON rather than as escaped strings.
type dryRunRecord struct {
	RecordID   int64             `json:"record_id"`
	InvoiceNo  string            `json:"invoice_no"`
	Outcome    string            `json:"outcome"`
	Error      string            `json:"error,omitempty"`
	Data       json.RawMessage   `json:"data,omitempty"`
	GSTData    []json.RawMessage `json:"gstData,omitempty"`
	CostData   []json.RawMessage `json:"aCostData,omitempty"`
	MasterEdit string            `json:"masterEdit,omitempty"`
}

func outputPayloads(summary *migration.Summary) error {
	records := make([]dryRunRecord, 0, len(summary.Results))
	for _, r := range summary.Results {
		rec := dryRunRecord{
			RecordID:  r.RecordID,
			InvoiceNo: r.InvoiceNo,
			Outcome:   r.Outcome,
			Error:     r.Error,
		}
		if p := r.Payload; p != nil {
			rec.Data = json.RawMessage(p.Data)
			rec.MasterEdit = p.MasterEdit
			for _, g := range p.GSTData {
				rec.GSTData = append(rec.GSTData, json.RawMessage(g))
			}
			for _, c := range p.CostData {
				rec.CostData = append(rec.CostData, json.RawMessage(c))
			}
		}
		records = append(records, rec)
	}
	return outputJSON(records)
}

func outputJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}

func outputSummaryConsole(summary *migration.Summary) {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("MIGRATION RUN %s\n", summary.RunID)
	fmt.Println(strings.Repeat("=", 80))

	fmt.Printf("%-8s %-20s %-28s %-16s %12s\n", "ID", "Invoice No", "Reference", "Outcome", "Total")
	fmt.Println(strings.Repeat("-", 80))
	for _, r := range summary.Results {
		fmt.Printf("%-8d %-20s %-28s %-16s %12s\n",
			r.RecordID, truncate(r.InvoiceNo, 20), truncate(r.Reference, 28), r.Outcome, r.TotalAmount.StringFixed(2))
		if r.Error != "" {
			fmt.Printf("         -> %s\n", r.Error)
		} else if r.Message != "" && !r.Succeeded() {
			fmt.Printf("         -> %s\n", r.Message)
		}
		if r.Verified != nil && !*r.Verified {
			fmt.Println("         -> not found in Retro with the expected total")
		}
	}

	fmt.Println(strings.Repeat("-", 80))
	fmt.Printf("Total: %d  Successful: %d  Failed: %d  Duration: %s\n",
		summary.Total, summary.Successful, summary.Failed,
		summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond))
	fmt.Println(strings.Repeat("=", 80))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "~"
}
