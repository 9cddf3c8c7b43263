// Package neon reads invoice rows from the source PostgreSQL database.
package neon

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"neon2retro/internal/logger"
	"neon2retro/pkg/models"
)

var (
	// ErrInvalidTable is returned when the configured table name is not a plain identifier.
	ErrInvalidTable = errors.New("invalid table name")

	// ErrConnect is returned when the database cannot be reached.
	ErrConnect = errors.New("failed to connect to source database")
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// RecordSummary is the short listing form of an invoice row.
type RecordSummary struct {
	ID          int64      `gorm:"column:id" json:"id"`
	InvoiceNo   string     `gorm:"column:invoice_no" json:"invoice_no"`
	InvoiceDate *time.Time `gorm:"column:invoice_date" json:"invoice_date"`
	TotalAmount *string    `gorm:"column:total_amount" json:"total_amount"`
}

// Repository is a read-only view of the invoices table.
type Repository struct {
	db    *gorm.DB
	table string
	log   zerolog.Logger
}

// Open connects to the database at dsn.
func Open(ctx context.Context, dsn, table string) (*Repository, error) {
	if !identifier.MatchString(table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true, // pooled Neon endpoints reject named prepared statements
	}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnect, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnect, err)
	}
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetMaxOpenConns(2)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("%w: %v", ErrConnect, err)
	}

	repo, err := New(db, table)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	repo.log.Info().Str("table", table).Msg("Connected to source database")
	return repo, nil
}

// New wraps an existing connection.
func New(db *gorm.DB, table string) (*Repository, error) {
	if !identifier.MatchString(table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}
	return &Repository{
		db:    db,
		table: table,
		log:   logger.WithComponent("neon"),
	}, nil
}

// FetchByID returns the row with the given id, or no rows.
func (r *Repository) FetchByID(ctx context.Context, id int64) ([]models.Row, error) {
	var rows []map[string]any
	err := r.db.WithContext(ctx).
		Table(r.table).
		Select(models.InvoiceColumns).
		Where("id = ?", id).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("fetch invoice %d: %w", id, err)
	}

	r.log.Debug().Int64("record_id", id).Int("rows", len(rows)).Msg("Fetched invoice by id")
	return toRows(rows), nil
}

// FetchLimit returns the first limit rows ordered by id.
func (r *Repository) FetchLimit(ctx context.Context, limit int) ([]models.Row, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("fetch invoices: limit must be positive, got %d", limit)
	}

	var rows []map[string]any
	err := r.db.WithContext(ctx).
		Table(r.table).
		Select(models.InvoiceColumns).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("fetch invoices: %w", err)
	}

	r.log.Debug().Int("limit", limit).Int("rows", len(rows)).Msg("Fetched invoices")
	return toRows(rows), nil
}

// ListSummaries returns id, invoice number, date and total for the first
// limit rows ordered by id.
func (r *Repository) ListSummaries(ctx context.Context, limit int) ([]RecordSummary, error) {
	if limit <= 0 {
		limit = 10
	}

	var out []RecordSummary
	err := r.db.WithContext(ctx).
		Table(r.table).
		Select("id, invoice_no, invoice_date, total_amount::text AS total_amount").
		Order("id ASC").
		Limit(limit).
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return out, nil
}

// Ping checks the connection.
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toRows(in []map[string]any) []models.Row {
	out := make([]models.Row, 0, len(in))
	for _, m := range in {
		out = append(out, models.Row(m))
	}
	return out
}
