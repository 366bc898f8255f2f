// Package searchindex mirrors invoice documents into Elasticsearch for
// full-text search. Indexing is best-effort; the document store stays
// authoritative.
package searchindex

import (
	"context"

	"github.com/smallbiznis/invoicehub/internal/invoice/domain"
)

// Index is the search surface consumed by the access layer.
type Index interface {
	Ping(ctx context.Context) error
	IndexInvoice(ctx context.Context, inv *domain.Invoice) error
	Search(ctx context.Context, query string) ([]domain.Invoice, error)
	UpdateStatus(ctx context.Context, invoiceNumber string, status domain.InvoiceStatus) error
	Delete(ctx context.Context, invoiceNumber string) error
}
