package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallbiznis/invoicehub/internal/invoice/domain"
	"github.com/smallbiznis/invoicehub/internal/resilience"
)

func testOrder() domain.OrderDetails {
	return domain.OrderDetails{
		Client: domain.Client{Name: "Acme Corp", Email: "ap@acme.example"},
		LineItems: []domain.LineItem{
			{Description: "Consulting", Quantity: 10, UnitPrice: 8},
			{Description: "Hosting", Quantity: 1, UnitPrice: 20},
		},
	}
}

func TestFallbackGeneration(t *testing.T) {
	fix := newFixture(t, func(f *managerFixture) { f.ai = nil })
	ctx := context.Background()

	inv, err := fix.mgr.GenerateInvoice(ctx, testOrder())
	require.NoError(t, err)

	assert.Equal(t, "INV-2026-000001", inv.InvoiceNumber)
	assert.Equal(t, domain.StatusDraft, inv.Status)
	assert.Equal(t, 100.0, inv.Subtotal)
	assert.Equal(t, 8.0, inv.TaxAmount, "default tax rate is 8%%")
	assert.Equal(t, 108.0, inv.Total)
	assert.Equal(t, "USD", inv.Currency)
	assert.Equal(t, "Net 30", inv.PaymentTerms)
	assert.Equal(t, fix.clk.Now().Add(30*24*time.Hour), inv.DueDate)
}

func TestFallbackHonorsOrderOverrides(t *testing.T) {
	fix := newFixture(t, func(f *managerFixture) { f.ai = nil })
	rate := 0.2
	order := testOrder()
	order.TaxRate = &rate
	order.Currency = "EUR"
	order.PaymentTerms = "Net 14"
	order.DueInDays = 14

	inv, err := fix.mgr.GenerateInvoice(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, 20.0, inv.TaxAmount)
	assert.Equal(t, "EUR", inv.Currency)
	assert.Equal(t, "Net 14", inv.PaymentTerms)
	assert.Equal(t, fix.clk.Now().Add(14*24*time.Hour), inv.DueDate)
}

func TestGenerateRejectsIncompleteOrders(t *testing.T) {
	fix := newFixture(t, nil)
	ctx := context.Background()

	_, err := fix.mgr.GenerateInvoice(ctx, domain.OrderDetails{LineItems: testOrder().LineItems})
	assert.Error(t, err, "missing client name")

	_, err = fix.mgr.GenerateInvoice(ctx, domain.OrderDetails{Client: domain.Client{Name: "Acme Corp"}})
	assert.Error(t, err, "missing line items")
}

func TestNextInvoiceNumberSequence(t *testing.T) {
	fix := newFixture(t, nil)
	ctx := context.Background()

	assert.Equal(t, "INV-2026-000001", fix.mgr.NextInvoiceNumber(ctx))

	seedInvoice(fix, "INV-2026-000041", "Acme Corp", domain.StatusActive, 1)
	seedInvoice(fix, "INV-2025-000099", "Old Client", domain.StatusPaid, 1)
	assert.Equal(t, "INV-2026-000042", fix.mgr.NextInvoiceNumber(ctx))
}

func TestGenerateWithAIMergesAgentReply(t *testing.T) {
	fix := newFixture(t, func(f *managerFixture) {
		f.ai.reply = "Here is the invoice:\n```json\n" +
			`{"line_items":[{"description":"AI Consulting","quantity":2,"unit_price":50}],` +
			`"tax_rate":0.1,"payment_terms":"Net 45","notes":"Thanks for your business","due_in_days":45}` +
			"\n```"
	})
	ctx := context.Background()

	inv, err := fix.mgr.GenerateInvoice(ctx, testOrder())
	require.NoError(t, err)
	assert.Equal(t, 1, fix.ai.threads, "each generation opens a fresh thread")

	require.Len(t, inv.LineItems, 1)
	assert.Equal(t, "AI Consulting", inv.LineItems[0].Description)
	// Totals are recomputed locally, never taken from the agent.
	assert.Equal(t, 100.0, inv.Subtotal)
	assert.InDelta(t, 10.0, inv.TaxAmount, 1e-9)
	assert.InDelta(t, 110.0, inv.Total, 1e-9)
	assert.Equal(t, "Net 45", inv.PaymentTerms)
	assert.Equal(t, "Thanks for your business", inv.Notes)
	assert.Equal(t, fix.clk.Now().Add(45*24*time.Hour), inv.DueDate)
}

func TestGenerateFallsBackWhenAgentFailsPermanently(t *testing.T) {
	fix := newFixture(t, func(f *managerFixture) {
		f.ai.threadErr = resilience.Permanent(errors.New("authentication failed"))
	})

	inv, err := fix.mgr.GenerateInvoice(context.Background(), testOrder())
	require.NoError(t, err, "agent failure must fall back, not error")
	assert.Equal(t, 108.0, inv.Total, "fallback template totals")
	assert.Equal(t, domain.StatusDraft, inv.Status)
}

func TestGenerateFallsBackWhenAgentUnavailable(t *testing.T) {
	fix := newFixture(t, func(f *managerFixture) {
		f.ai.pingErr = errors.New("503 service unavailable")
	})

	inv, err := fix.mgr.GenerateInvoice(context.Background(), testOrder())
	require.NoError(t, err)
	assert.Equal(t, 0, fix.ai.threads, "no thread may be opened when the agent probe failed")
	assert.Equal(t, 108.0, inv.Total)
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, extractJSON("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, extractJSON(`prefix {"a":1} suffix`))
	assert.Empty(t, extractJSON("no json here"))
}
