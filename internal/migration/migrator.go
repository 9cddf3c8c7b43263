// Package migration runs the end-to-end transfer of invoices from the
// source database to the destination API.
package migration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
	"neon2retro/internal/logger"
	"neon2retro/internal/normalize"
	"neon2retro/internal/payload"
	"neon2retro/internal/reconcile"
	"neon2retro/internal/retro"
	"neon2retro/pkg/models"
	"neon2retro/pkg/services"
)

// DefaultLimit is the batch size used when a request names neither a
// record nor a limit.
const DefaultLimit = 10

// Source yields raw invoice rows.
type Source interface {
	FetchByID(ctx context.Context, id int64) ([]models.Row, error)
	FetchLimit(ctx context.Context, limit int) ([]models.Row, error)
	Close() error
}

// Connector opens a Source. It is only called after authentication succeeded.
type Connector func(ctx context.Context) (Source, error)

// Destination accepts invoice payloads.
type Destination interface {
	Authenticate(ctx context.Context) error
	Submit(ctx context.Context, p *payload.Payload) retro.Result
	Verify(ctx context.Context, reference string, expected decimal.Decimal) (*retro.Verification, error)
}

// Options tune a Migrator.
type Options struct {
	// Delay is the minimum spacing between two submissions. Zero disables pacing.
	Delay time.Duration

	// DefaultLimit applies when a request sets neither RecordID nor Limit.
	DefaultLimit int

	// DryRun builds payloads without authenticating or sending.
	DryRun bool

	// Verify looks every accepted invoice up again after submission.
	Verify bool

	// Report, when set, receives the run report after the last record.
	Report services.ReportSink
}

// Request selects the rows of one run.
type Request struct {
	RecordID *int64 `json:"record_id,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// Outcome names used in RecordResult besides the destination outcomes.
const (
	OutcomeBuildError = "build_error"
	OutcomeDryRun     = "dry_run"
)

// RecordResult is the outcome of one invoice.
type RecordResult struct {
	RecordID    int64            `json:"record_id"`
	InvoiceNo   string           `json:"invoice_no"`
	Reference   string           `json:"reference,omitempty"`
	Outcome     string           `json:"outcome"`
	StatusCode  int              `json:"status_code,omitempty"`
	Message     string           `json:"message,omitempty"`
	Error       string           `json:"error,omitempty"`
	TotalAmount decimal.Decimal  `json:"total_amount"`
	Verified    *bool            `json:"verified,omitempty"`
	Payload     *payload.Payload `json:"-"`
}

// Succeeded reports whether the record counts as successful.
func (r RecordResult) Succeeded() bool {
	return r.Outcome == retro.Sent.String() || r.Outcome == OutcomeDryRun
}

// Summary tallies a finished run.
type Summary struct {
	RunID      string         `json:"run_id"`
	Total      int            `json:"total"`
	Successful int            `json:"successful"`
	Failed     int            `json:"failed"`
	DryRun     bool           `json:"dry_run,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Results    []RecordResult `json:"results"`
}

// Migrator drives one run at a time: authenticate, fetch, then
// normalize, reconcile, build and send each record in order.
type Migrator struct {
	connect    Connector
	dest       Destination
	reconciler *reconcile.Reconciler
	builder    *payload.Builder
	opts       Options
	log        zerolog.Logger
}

// New creates a Migrator.
func New(connect Connector, dest Destination, reconciler *reconcile.Reconciler, builder *payload.Builder, opts Options) *Migrator {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = DefaultLimit
	}
	return &Migrator{
		connect:    connect,
		dest:       dest,
		reconciler: reconciler,
		builder:    builder,
		opts:       opts,
		log:        logger.WithComponent("migration"),
	}
}

// Run migrates the rows selected by req. A non-nil error means the run
// aborted before any record was processed, or was cancelled; per-record
// failures are reported in the Summary only.
func (m *Migrator) Run(ctx context.Context, req Request) (*Summary, error) {
	if err := m.validate(req); err != nil {
		return nil, err
	}

	summary := &Summary{
		RunID:     uuid.NewString(),
		DryRun:    m.opts.DryRun,
		StartedAt: time.Now(),
	}
	log := m.log.With().Str("run_id", summary.RunID).Logger()

	if !m.opts.DryRun {
		if err := m.dest.Authenticate(ctx); err != nil {
			log.Error().Err(err).Msg("Authentication failed, aborting run")
			return nil, NewMigrationError("Authenticate", ErrAuthentication, err.Error())
		}
	}

	src, err := m.connect(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Could not open source database")
		return nil, NewMigrationError("Connect", ErrSourceUnavailable, err.Error())
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("Failed to close source database")
		}
	}()

	rows, err := m.fetch(ctx, src, req)
	if err != nil {
		log.Error().Err(err).Msg("Fetching invoices failed")
		return nil, NewMigrationError("Fetch", ErrFetch, err.Error())
	}
	if len(rows) == 0 {
		return nil, NewMigrationError("Fetch", ErrNoRecords, describe(req, m.opts.DefaultLimit))
	}

	log.Info().Int("records", len(rows)).Bool("dry_run", m.opts.DryRun).Msg("Starting migration")

	var limiter *rate.Limiter
	if m.opts.Delay > 0 && !m.opts.DryRun {
		limiter = rate.NewLimiter(rate.Every(m.opts.Delay), 1)
	}

	var runErr error
	for i, row := range rows {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				runErr = err
				break
			}
		}
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		result := m.process(ctx, row)
		summary.Results = append(summary.Results, result)
		summary.Total++
		if result.Succeeded() {
			summary.Successful++
		} else {
			summary.Failed++
		}

		log.Info().
			Int("index", i+1).
			Int("of", len(rows)).
			Int64("record_id", result.RecordID).
			Str("outcome", result.Outcome).
			Msg("Record processed")
	}

	summary.FinishedAt = time.Now()

	log.Info().
		Int("total", summary.Total).
		Int("successful", summary.Successful).
		Int("failed", summary.Failed).
		Dur("elapsed", summary.FinishedAt.Sub(summary.StartedAt)).
		Msg("Migration finished")

	m.report(ctx, summary)

	if runErr != nil {
		return summary, NewMigrationError("Run", runErr, fmt.Sprintf("stopped after %d of %d records", summary.Total, len(rows)))
	}
	return summary, nil
}

func (m *Migrator) validate(req Request) error {
	if req.RecordID != nil && *req.RecordID <= 0 {
		return NewMigrationError("Validate", ErrInvalidRequest, fmt.Sprintf("record id %d", *req.RecordID))
	}
	if req.Limit < 0 {
		return NewMigrationError("Validate", ErrInvalidRequest, fmt.Sprintf("limit %d", req.Limit))
	}
	return nil
}

func (m *Migrator) fetch(ctx context.Context, src Source, req Request) ([]models.Row, error) {
	if req.RecordID != nil {
		return src.FetchByID(ctx, *req.RecordID)
	}
	limit := req.Limit
	if limit == 0 {
		limit = m.opts.DefaultLimit
	}
	return src.FetchLimit(ctx, limit)
}

// process handles one row. It never returns an error: every failure is
// folded into the result.
func (m *Migrator) process(ctx context.Context, row models.Row) RecordResult {
	inv := normalize.Normalize(row)
	log := logger.WithRecord(inv.ID, inv.InvoiceNo)

	if inv.RawTaxDetails != "" {
		log.Warn().Str("field", models.ColTaxDetails).Str("raw", inv.RawTaxDetails).Msg("Unparsable JSON column, treating as empty")
	}
	if inv.RawAdditionalCosts != "" {
		log.Warn().Str("field", models.ColAdditionalCosts).Str("raw", inv.RawAdditionalCosts).Msg("Unparsable JSON column, treating as empty")
	}

	result := RecordResult{RecordID: inv.ID, InvoiceNo: inv.InvoiceNo}

	taxes, costs := m.reconciler.Reconcile(inv.TaxDetails, inv.AdditionalCosts)
	p, err := m.builder.Build(inv, taxes, costs)
	if err != nil {
		log.Error().Err(err).Str("field", "payload").Msg("Failed to build payload")
		result.Outcome = OutcomeBuildError
		result.Error = err.Error()
		return result
	}
	result.Reference = p.Reference
	result.TotalAmount = p.TotalAmount

	if m.opts.DryRun {
		result.Outcome = OutcomeDryRun
		result.Payload = p
		return result
	}

	res := m.dest.Submit(ctx, p)
	result.Outcome = res.Outcome.String()
	result.StatusCode = res.StatusCode
	result.Message = res.Message
	if res.Err != nil {
		result.Error = res.Err.Error()
	}

	if !res.OK() {
		evt := log.Error().Err(res.Err).Str("reference", p.Reference).Int("status", res.StatusCode).Str("message", res.Message)
		switch {
		case errors.Is(res.Err, retro.ErrDuplicateReference):
			evt.Msg("Invoice already exists on destination")
		case errors.Is(res.Err, retro.ErrInvalidOperation):
			evt.Msg("Destination refused invoice as invalid")
		default:
			evt.Msg("Invoice submission failed")
		}
		return result
	}

	log.Info().Str("reference", p.Reference).Str("total", p.TotalAmount.StringFixed(2)).Msg("Invoice submitted")

	if m.opts.Verify {
		m.verify(ctx, log, p, &result)
	}
	return result
}

// verify never changes the outcome; mismatches are logged and recorded.
func (m *Migrator) verify(ctx context.Context, log zerolog.Logger, p *payload.Payload, result *RecordResult) {
	v, err := m.dest.Verify(ctx, p.Reference, p.TotalAmount)
	matched := err == nil && v != nil && v.Matched
	result.Verified = &matched

	if err != nil {
		log.Warn().Err(err).Str("reference", p.Reference).Msg("Verification failed")
		return
	}
	log.Info().Str("reference", p.Reference).Str("status", v.Status).Msg("Verified invoice on destination")
}

func (m *Migrator) report(ctx context.Context, s *Summary) {
	if m.opts.Report == nil {
		return
	}
	if err := m.opts.Report.WriteRunReport(ctx, s.RunReport()); err != nil {
		m.log.Warn().Err(err).Str("run_id", s.RunID).Msg("Failed to write run report")
	}
}

// RunReport flattens the summary for a ReportSink.
func (s *Summary) RunReport() *services.RunReport {
	r := &services.RunReport{
		RunID:      s.RunID,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
		DryRun:     s.DryRun,
		Total:      s.Total,
		Successful: s.Successful,
		Failed:     s.Failed,
	}
	for _, res := range s.Results {
		line := services.RecordReport{
			RecordID:    res.RecordID,
			InvoiceNo:   res.InvoiceNo,
			Reference:   res.Reference,
			Outcome:     res.Outcome,
			StatusCode:  res.StatusCode,
			TotalAmount: res.TotalAmount.StringFixed(2),
			Message:     firstNonEmpty(res.Error, res.Message),
		}
		if res.Verified != nil {
			line.Verified = "no"
			if *res.Verified {
				line.Verified = "yes"
			}
		}
		r.Records = append(r.Records, line)
	}
	return r
}

func describe(req Request, defaultLimit int) string {
	if req.RecordID != nil {
		return fmt.Sprintf("record id %d", *req.RecordID)
	}
	if req.Limit > 0 {
		return fmt.Sprintf("limit %d", req.Limit)
	}
	return fmt.Sprintf("limit %d", defaultLimit)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
