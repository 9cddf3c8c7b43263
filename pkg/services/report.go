package services

import (
	"context"
	"time"
)

// ReportSink receives the per-record results of a migration run.
type ReportSink interface {
	// WriteRunReport persists one run. Implementations append; they never
	// rewrite earlier runs.
	WriteRunReport(ctx context.Context, report *RunReport) error
}

// RunReport is the flattened, storage-agnostic form of a finished run.
type RunReport struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DryRun     bool      `json:"dry_run"`
	Total      int       `json:"total"`
	Successful int       `json:"successful"`
	Failed     int       `json:"failed"`

	Records []RecordReport `json:"records"`
}

// RecordReport is one invoice's line in a RunReport.
type RecordReport struct {
	RecordID    int64  `json:"record_id"`
	InvoiceNo   string `json:"invoice_no"`
	Reference   string `json:"reference"`
	Outcome     string `json:"outcome"`
	StatusCode  int    `json:"status_code"`
	TotalAmount string `json:"total_amount"`
	Verified    string `json:"verified"` // "yes", "no" or "" when not checked
	Message     string `json:"message"`
}
