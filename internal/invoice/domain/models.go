// Package domain contains the invoice document model shared by the
// document store, search index and generation workflows.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// InvoiceStatus represents invoice lifecycle states.
type InvoiceStatus string

const (
	StatusDraft     InvoiceStatus = "draft"
	StatusActive    InvoiceStatus = "active"
	StatusPaid      InvoiceStatus = "paid"
	StatusCancelled InvoiceStatus = "cancelled"
	StatusOverdue   InvoiceStatus = "overdue"
)

// ValidStatus reports whether s is one of the known lifecycle states.
func ValidStatus(s InvoiceStatus) bool {
	switch s {
	case StatusDraft, StatusActive, StatusPaid, StatusCancelled, StatusOverdue:
		return true
	}
	return false
}

// Client is the billed party on an invoice.
type Client struct {
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// LineItem is one billed line. Amount is quantity times unit price,
// computed once at generation time.
type LineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Amount      float64 `json:"amount"`
}

// Invoice is the persisted invoice document. The invoice number is the
// business key and partition key; documents are written once and then
// mutated only through status updates.
type Invoice struct {
	InvoiceNumber string                        `gorm:"primaryKey;type:text" json:"invoice_number"`
	InvoiceDate   time.Time                     `gorm:"not null;index" json:"invoice_date"`
	DueDate       time.Time                     `gorm:"not null" json:"due_date"`
	Client        Client                        `gorm:"embedded;embeddedPrefix:client_" json:"client"`
	LineItems     datatypes.JSONSlice[LineItem] `gorm:"type:jsonb;not null;default:'[]'" json:"line_items"`
	Subtotal      float64                       `gorm:"not null;default:0" json:"subtotal"`
	TaxRate       float64                       `gorm:"not null;default:0" json:"tax_rate"`
	TaxAmount     float64                       `gorm:"not null;default:0" json:"tax_amount"`
	Total         float64                       `gorm:"not null;default:0" json:"total"`
	Currency      string                        `gorm:"type:text;not null;default:'USD'" json:"currency"`
	PaymentTerms  string                        `gorm:"type:text" json:"payment_terms,omitempty"`
	Status        InvoiceStatus                 `gorm:"type:text;not null;index;default:'draft'" json:"status"`
	Notes         string                        `gorm:"type:text" json:"notes,omitempty"`
	Metadata      datatypes.JSONMap             `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	CreatedAt     time.Time                     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time                     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// ComputeTotals fills Amount on each line plus Subtotal, TaxAmount and
// Total from the line quantities and the tax rate. Totals are computed
// here once; readers trust what was written.
func (inv *Invoice) ComputeTotals() {
	subtotal := 0.0
	for i := range inv.LineItems {
		inv.LineItems[i].Amount = inv.LineItems[i].Quantity * inv.LineItems[i].UnitPrice
		subtotal += inv.LineItems[i].Amount
	}
	inv.Subtotal = subtotal
	inv.TaxAmount = subtotal * inv.TaxRate
	inv.Total = subtotal + inv.TaxAmount
}

// OrderDetails is the request shape for invoice generation, submitted by
// the dashboard and carried through the job queue before it becomes an
// Invoice.
type OrderDetails struct {
	Client       Client     `json:"client"`
	LineItems    []LineItem `json:"line_items"`
	TaxRate      *float64   `json:"tax_rate,omitempty"`
	Currency     string     `json:"currency,omitempty"`
	PaymentTerms string     `json:"payment_terms,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	DueInDays    int        `json:"due_in_days,omitempty"`
}

// Statistics is the aggregate snapshot behind the dashboard header.
// Error is set on degraded snapshots so a zeroed result is
// distinguishable from a dashboard with no invoices.
type Statistics struct {
	TotalInvoices     int64                   `json:"total_invoices"`
	ByStatus          map[InvoiceStatus]int64 `json:"by_status"`
	TotalAmount       float64                 `json:"total_amount"`
	PaidAmount        float64                 `json:"paid_amount"`
	OutstandingAmount float64                 `json:"outstanding_amount"`
	GeneratedAt       time.Time               `json:"generated_at"`
	Error             string                  `json:"error,omitempty"`
}
