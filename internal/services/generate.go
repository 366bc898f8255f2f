package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/smallbiznis/invoicehub/internal/agent"
	"github.com/smallbiznis/invoicehub/internal/invoice/domain"
	"github.com/smallbiznis/invoicehub/internal/resilience"
)

const (
	defaultTaxRate      = 0.08
	defaultDueInDays    = 30
	defaultCurrency     = "USD"
	defaultPaymentTerms = "Net 30"
)

// NextInvoiceNumber issues the next INV-<year>-<seq> number by scanning
// the store for the year's highest sequence. When the store cannot answer
// it falls back to a timestamp-derived sequence, trading density for
// availability.
func (m *Manager) NextInvoiceNumber(ctx context.Context) string {
	year := m.clk.Now().Year()
	prefix := fmt.Sprintf("INV-%d-", year)

	latest, err := m.store.LatestNumber(ctx, prefix)
	if err != nil {
		m.log.Warn("invoice number scan failed, using timestamp fallback", zap.Error(err))
		return fmt.Sprintf("%s%06d", prefix, m.clk.Now().Unix()%1000000)
	}

	seq := 0
	if latest != "" {
		if n, err := strconv.Atoi(strings.TrimPrefix(latest, prefix)); err == nil {
			seq = n
		}
	}
	return fmt.Sprintf("%s%06d", prefix, seq+1)
}

// GenerateInvoice builds an invoice from order details, preferring the AI
// agent and falling back to the deterministic template when the agent is
// unavailable or exhausts its retries. The result is not persisted;
// callers decide whether to save.
func (m *Manager) GenerateInvoice(ctx context.Context, order domain.OrderDetails) (*domain.Invoice, error) {
	if order.Client.Name == "" {
		return nil, fmt.Errorf("order details missing client name")
	}
	if len(order.LineItems) == 0 {
		return nil, fmt.Errorf("order details missing line items")
	}

	if m.isAvailable(DepAIClient) && m.isAvailable(DepAIAgent) {
		inv, err := m.generateWithAI(ctx, order)
		if err == nil {
			return inv, nil
		}
		m.log.Warn("AI generation failed, using fallback template", zap.Error(err))
	}
	return m.generateFallback(ctx, order), nil
}

// generateWithAI drives a full agent round under the retry wrapper: a
// fresh thread per call, the order posted as a user message, one run that
// must complete, and the first assistant reply parsed as the invoice.
func (m *Manager) generateWithAI(ctx context.Context, order domain.OrderDetails) (*domain.Invoice, error) {
	var inv *domain.Invoice

	err := m.executor.Do(ctx, func(ctx context.Context) error {
		threadID, err := m.agent.CreateThread(ctx)
		if err != nil {
			return err
		}
		if err := m.agent.PostMessage(ctx, threadID, "user", m.buildPrompt(order)); err != nil {
			return err
		}

		status, err := m.agent.Run(ctx, threadID, "Generate a complete invoice as a single JSON object.")
		if err != nil {
			return err
		}
		if status != agent.RunCompleted {
			return resilience.Transient(fmt.Errorf("agent run finished with status %s", status))
		}

		msgs, err := m.agent.ListMessages(ctx, threadID, "desc")
		if err != nil {
			return err
		}
		reply := firstAssistantMessage(msgs)
		if reply == "" {
			return resilience.Transient(fmt.Errorf("agent run produced no assistant message"))
		}

		parsed, err := m.parseAgentInvoice(ctx, reply, order)
		if err != nil {
			return err
		}
		inv = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func firstAssistantMessage(msgs []agent.Message) string {
	for _, msg := range msgs {
		if msg.Role == "assistant" && msg.Content != "" {
			return msg.Content
		}
	}
	return ""
}

// agentInvoice is the JSON shape the agent is instructed to produce.
type agentInvoice struct {
	LineItems    []domain.LineItem `json:"line_items"`
	TaxRate      *float64          `json:"tax_rate"`
	PaymentTerms string            `json:"payment_terms"`
	Notes        string            `json:"notes"`
	DueInDays    int               `json:"due_in_days"`
}

// parseAgentInvoice extracts the invoice JSON from the agent reply, which
// may be wrapped in a markdown code fence, and normalizes it against the
// original order. Totals are always recomputed here; the agent's own
// arithmetic is never trusted.
func (m *Manager) parseAgentInvoice(ctx context.Context, reply string, order domain.OrderDetails) (*domain.Invoice, error) {
	payload := extractJSON(reply)
	if payload == "" {
		return nil, resilience.Transient(fmt.Errorf("agent reply contains no JSON object"))
	}

	var ai agentInvoice
	if err := json.Unmarshal([]byte(payload), &ai); err != nil {
		return nil, resilience.Transient(fmt.Errorf("parse agent reply: %w", err))
	}
	if len(ai.LineItems) == 0 {
		ai.LineItems = order.LineItems
	}

	merged := order
	merged.LineItems = ai.LineItems
	if ai.TaxRate != nil && merged.TaxRate == nil {
		merged.TaxRate = ai.TaxRate
	}
	if merged.PaymentTerms == "" {
		merged.PaymentTerms = ai.PaymentTerms
	}
	if merged.Notes == "" {
		merged.Notes = ai.Notes
	}
	if merged.DueInDays == 0 {
		merged.DueInDays = ai.DueInDays
	}
	return m.generateFallback(ctx, merged), nil
}

// extractJSON returns the first top-level JSON object in s, tolerating
// markdown fences and prose around it.
func extractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

// generateFallback builds an invoice deterministically from the order:
// totals from quantity times unit price, the default tax rate unless the
// order carries one, and a due date offset from today.
func (m *Manager) generateFallback(ctx context.Context, order domain.OrderDetails) *domain.Invoice {
	now := m.clk.Now()

	taxRate := defaultTaxRate
	if order.TaxRate != nil {
		taxRate = *order.TaxRate
	}
	currency := order.Currency
	if currency == "" {
		currency = defaultCurrency
	}
	terms := order.PaymentTerms
	if terms == "" {
		terms = defaultPaymentTerms
	}
	dueInDays := order.DueInDays
	if dueInDays <= 0 {
		dueInDays = defaultDueInDays
	}

	inv := &domain.Invoice{
		InvoiceNumber: m.NextInvoiceNumber(ctx),
		InvoiceDate:   now,
		DueDate:       now.Add(time.Duration(dueInDays) * 24 * time.Hour),
		Client:        order.Client,
		LineItems:     datatypes.JSONSlice[domain.LineItem](order.LineItems),
		TaxRate:       taxRate,
		Currency:      currency,
		PaymentTerms:  terms,
		Status:        domain.StatusDraft,
		Notes:         order.Notes,
		Metadata:      datatypes.JSONMap{"issuer": m.cfg.Company.Name},
	}
	inv.ComputeTotals()
	return inv
}

func (m *Manager) buildPrompt(order domain.OrderDetails) string {
	payload, _ := json.MarshalIndent(order, "", "  ")
	var b strings.Builder
	b.WriteString("Generate a professional invoice for the following order.\n")
	b.WriteString("Respond with a single JSON object containing line_items, tax_rate, payment_terms, due_in_days and notes.\n\n")
	fmt.Fprintf(&b, "Issuing company: %s, %s (%s)\n\n", m.cfg.Company.Name, m.cfg.Company.Address, m.cfg.Company.Email)
	b.WriteString("Order details:\n")
	b.Write(payload)
	return b.String()
}
