// Package docstore is the authoritative invoice document store, backed by
// a relational database. It translates driver errors into the retry
// taxonomy at the boundary.
package docstore

import (
	"context"
	"errors"

	"github.com/smallbiznis/invoicehub/internal/invoice/domain"
)

// ErrNotFound is returned when no document matches the invoice number.
var ErrNotFound = errors.New("invoice not found")

// ListOptions filters and pages List.
type ListOptions struct {
	Status domain.InvoiceStatus
	Client string
	Limit  int
	Offset int
}

// Store is the document-store surface consumed by the access layer.
type Store interface {
	Ping(ctx context.Context) error
	Save(ctx context.Context, inv *domain.Invoice) error
	Get(ctx context.Context, invoiceNumber string) (*domain.Invoice, error)
	List(ctx context.Context, opts ListOptions) ([]domain.Invoice, error)
	ByClient(ctx context.Context, clientName string) ([]domain.Invoice, error)
	Search(ctx context.Context, query string) ([]domain.Invoice, error)
	UpdateStatus(ctx context.Context, invoiceNumber string, status domain.InvoiceStatus) (*domain.Invoice, error)
	Delete(ctx context.Context, invoiceNumber string) error
	Statistics(ctx context.Context) (domain.Statistics, error)
	LatestNumber(ctx context.Context, prefix string) (string, error)
}
