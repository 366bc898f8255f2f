package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/smallbiznis/invoicehub/internal/cache"
	"github.com/smallbiznis/invoicehub/internal/invoice/domain"
)

// SaveResult reports per-dependency outcomes of a write. The document
// store is authoritative; index and archive failures degrade to warnings.
type SaveResult struct {
	InvoiceNumber string   `json:"invoice_number"`
	Saved         bool     `json:"saved"`
	Indexed       bool     `json:"indexed"`
	Archived      bool     `json:"archived"`
	Warnings      []string `json:"warnings,omitempty"`
}

// SaveInvoice persists the invoice, mirrors it into the search index and
// archives a JSON copy, collecting warnings for best-effort failures.
// On success the statistics and invoice-list cache categories are cleared
// along with the invoice's detail and client entries.
func (m *Manager) SaveInvoice(ctx context.Context, inv *domain.Invoice) (SaveResult, error) {
	res := SaveResult{InvoiceNumber: inv.InvoiceNumber}

	if !m.isAvailable(DepDocumentStore) {
		return res, fmt.Errorf("document store unavailable")
	}
	if err := m.store.Save(ctx, inv); err != nil {
		return res, fmt.Errorf("save invoice %s: %w", inv.InvoiceNumber, err)
	}
	res.Saved = true

	if m.isAvailable(DepSearchIndex) {
		if err := m.index.IndexInvoice(ctx, inv); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("search index: %v", err))
		} else {
			res.Indexed = true
		}
	}

	if m.isAvailable(DepBlobStore) {
		if err := m.archiveInvoice(ctx, inv); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("blob store: %v", err))
		} else {
			res.Archived = true
		}
	}

	m.invalidateAfterWrite(inv.InvoiceNumber, inv.Client.Name)
	m.log.Info("invoice saved",
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.Bool("indexed", res.Indexed),
		zap.Bool("archived", res.Archived),
		zap.Int("warnings", len(res.Warnings)),
	)
	return res, nil
}

// UpdateInvoiceStatus moves an invoice to a new lifecycle state. Beyond
// the usual write invalidation it also clears every cached search result,
// since a status change can alter which results are current.
func (m *Manager) UpdateInvoiceStatus(ctx context.Context, invoiceNumber string, status domain.InvoiceStatus) (SaveResult, error) {
	res := SaveResult{InvoiceNumber: invoiceNumber}

	if !domain.ValidStatus(status) {
		return res, fmt.Errorf("invalid status %q", status)
	}
	if !m.isAvailable(DepDocumentStore) {
		return res, fmt.Errorf("document store unavailable")
	}

	inv, err := m.store.UpdateStatus(ctx, invoiceNumber, status)
	if err != nil {
		return res, fmt.Errorf("update status of %s: %w", invoiceNumber, err)
	}
	res.Saved = true

	if m.isAvailable(DepSearchIndex) {
		if err := m.index.UpdateStatus(ctx, invoiceNumber, status); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("search index: %v", err))
		} else {
			res.Indexed = true
		}
	}

	m.invalidateAfterWrite(invoiceNumber, inv.Client.Name)
	m.cache.InvalidateCategory(cache.CategorySearchResults)

	m.log.Info("invoice status updated",
		zap.String("invoice_number", invoiceNumber),
		zap.String("status", string(status)),
	)
	return res, nil
}

// DeleteInvoice removes an invoice everywhere. Not part of the normal
// lifecycle, kept for administrative cleanup.
func (m *Manager) DeleteInvoice(ctx context.Context, invoiceNumber string) error {
	if !m.isAvailable(DepDocumentStore) {
		return fmt.Errorf("document store unavailable")
	}

	inv, _ := m.store.Get(ctx, invoiceNumber)
	if err := m.store.Delete(ctx, invoiceNumber); err != nil {
		return fmt.Errorf("delete invoice %s: %w", invoiceNumber, err)
	}

	if m.isAvailable(DepSearchIndex) {
		if err := m.index.Delete(ctx, invoiceNumber); err != nil {
			m.log.Warn("search index delete failed", zap.String("invoice_number", invoiceNumber), zap.Error(err))
		}
	}

	clientName := ""
	if inv != nil {
		clientName = inv.Client.Name
	}
	m.invalidateAfterWrite(invoiceNumber, clientName)
	m.cache.InvalidateCategory(cache.CategorySearchResults)
	return nil
}

// invalidateAfterWrite applies the shared write invalidation policy:
// statistics and list caches are volatile and cleared wholesale, while
// detail and client entries are targeted.
func (m *Manager) invalidateAfterWrite(invoiceNumber, clientName string) {
	m.cache.InvalidateCategory(cache.CategoryStatistics)
	m.cache.InvalidateCategory(cache.CategoryInvoiceList)
	m.cache.Delete(detailKey(invoiceNumber))
	if clientName != "" {
		m.cache.Delete(clientKey(clientName))
	}
}

func (m *Manager) archiveInvoice(ctx context.Context, inv *domain.Invoice) error {
	payload, err := json.MarshalIndent(inv, "", "  ")
	if err != nil {
		return err
	}
	key := fmt.Sprintf("%s.json", inv.InvoiceNumber)
	return m.blob.Put(ctx, key, "application/json", bytes.NewReader(payload))
}
