package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/invoicehub/internal/clock"
	"github.com/smallbiznis/invoicehub/internal/invoice/domain"
	"github.com/smallbiznis/invoicehub/internal/resilience"
	"github.com/smallbiznis/invoicehub/pkg/db"
)

type gormStore struct {
	db  *gorm.DB
	clk clock.Clock
	log *zap.Logger
}

// NewGormStore returns a Store backed by the shared gorm connection.
func NewGormStore(conn *gorm.DB, clk clock.Clock, log *zap.Logger) (Store, error) {
	if err := conn.AutoMigrate(&domain.Invoice{}); err != nil {
		return nil, fmt.Errorf("migrate invoices: %w", err)
	}
	return &gormStore{db: conn, clk: clk, log: log.Named("docstore")}, nil
}

// translate maps driver errors onto the retry taxonomy. Record-not-found
// and duplicate keys are permanent; anything else reaching the driver is
// assumed transient since the database itself may be down.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return resilience.Permanent(ErrNotFound)
	}
	if db.IsDuplicateKeyErr(err) {
		return resilience.Permanent(err)
	}
	return resilience.Transient(err)
}

func (s *gormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return translate(err)
	}
	return translate(sqlDB.PingContext(ctx))
}

func (s *gormStore) Save(ctx context.Context, inv *domain.Invoice) error {
	now := s.clk.Now()
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = now
	}
	inv.UpdatedAt = now
	return translate(s.db.WithContext(ctx).Save(inv).Error)
}

func (s *gormStore) Get(ctx context.Context, invoiceNumber string) (*domain.Invoice, error) {
	var inv domain.Invoice
	err := s.db.WithContext(ctx).
		First(&inv, "invoice_number = ?", invoiceNumber).Error
	if err != nil {
		return nil, translate(err)
	}
	return &inv, nil
}

func (s *gormStore) List(ctx context.Context, opts ListOptions) ([]domain.Invoice, error) {
	stmt := s.db.WithContext(ctx).Model(&domain.Invoice{})
	if opts.Status != "" {
		stmt = stmt.Where("status = ?", opts.Status)
	}
	if opts.Client != "" {
		stmt = stmt.Where("client_name = ?", opts.Client)
	}
	if opts.Limit > 0 {
		stmt = stmt.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		stmt = stmt.Offset(opts.Offset)
	}

	var invoices []domain.Invoice
	err := stmt.
		Order("invoice_date desc, invoice_number desc").
		Find(&invoices).Error
	if err != nil {
		return nil, translate(err)
	}
	return invoices, nil
}

func (s *gormStore) ByClient(ctx context.Context, clientName string) ([]domain.Invoice, error) {
	return s.List(ctx, ListOptions{Client: clientName})
}

// Search is the fallback text search used when the search index is down:
// a case-insensitive substring match over number, client and notes.
func (s *gormStore) Search(ctx context.Context, query string) ([]domain.Invoice, error) {
	pattern := "%" + strings.ToLower(query) + "%"
	var invoices []domain.Invoice
	err := s.db.WithContext(ctx).
		Where("lower(invoice_number) LIKE ? OR lower(client_name) LIKE ? OR lower(notes) LIKE ?",
			pattern, pattern, pattern).
		Order("invoice_date desc").
		Find(&invoices).Error
	if err != nil {
		return nil, translate(err)
	}
	return invoices, nil
}

func (s *gormStore) UpdateStatus(ctx context.Context, invoiceNumber string, status domain.InvoiceStatus) (*domain.Invoice, error) {
	var inv domain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&inv, "invoice_number = ?", invoiceNumber).Error; err != nil {
			return err
		}
		inv.Status = status
		inv.UpdatedAt = s.clk.Now()
		return tx.Model(&domain.Invoice{}).
			Where("invoice_number = ?", invoiceNumber).
			Updates(map[string]any{"status": status, "updated_at": inv.UpdatedAt}).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	return &inv, nil
}

func (s *gormStore) Delete(ctx context.Context, invoiceNumber string) error {
	res := s.db.WithContext(ctx).Delete(&domain.Invoice{}, "invoice_number = ?", invoiceNumber)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return resilience.Permanent(ErrNotFound)
	}
	return nil
}

func (s *gormStore) Statistics(ctx context.Context) (domain.Statistics, error) {
	stats := domain.Statistics{
		ByStatus:    make(map[domain.InvoiceStatus]int64),
		GeneratedAt: s.clk.Now(),
	}

	type row struct {
		Status domain.InvoiceStatus
		Count  int64
		Amount float64
	}
	var rows []row
	err := s.db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Select("status, count(*) as count, coalesce(sum(total), 0) as amount").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return domain.Statistics{}, translate(err)
	}

	for _, r := range rows {
		stats.TotalInvoices += r.Count
		stats.ByStatus[r.Status] = r.Count
		stats.TotalAmount += r.Amount
		switch r.Status {
		case domain.StatusPaid:
			stats.PaidAmount += r.Amount
		case domain.StatusCancelled:
			// Cancelled invoices are neither paid nor outstanding.
		default:
			stats.OutstandingAmount += r.Amount
		}
	}
	return stats, nil
}

// LatestNumber returns the lexicographically greatest invoice number with
// the given prefix, or "" when none exists. Zero-padded sequences make
// lexicographic and numeric order agree.
func (s *gormStore) LatestNumber(ctx context.Context, prefix string) (string, error) {
	var number string
	err := s.db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Select("coalesce(max(invoice_number), '')").
		Where("invoice_number LIKE ?", prefix+"%").
		Scan(&number).Error
	if err != nil {
		return "", translate(err)
	}
	return number, nil
}
