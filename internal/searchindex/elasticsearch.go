package searchindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	es "github.com/elastic/go-elasticsearch/v8"
	"go.uber.org/zap"

	"github.com/smallbiznis/invoicehub/internal/config"
	"github.com/smallbiznis/invoicehub/internal/invoice/domain"
	"github.com/smallbiznis/invoicehub/internal/resilience"
)

type elasticIndex struct {
	client *es.Client
	index  string
	log    *zap.Logger
}

// NewElasticIndex builds the Elasticsearch-backed index. Returns nil when
// no endpoint is configured; construction failures are logged rather than
// propagated so one missing dependency does not stop the process.
func NewElasticIndex(cfg config.Config, log *zap.Logger) Index {
	if cfg.SearchEndpoint == "" {
		log.Info("search endpoint not configured, search index disabled")
		return nil
	}

	escfg := es.Config{Addresses: []string{cfg.SearchEndpoint}}
	if cfg.SearchAPIKey != "" {
		escfg.APIKey = cfg.SearchAPIKey
	}
	client, err := es.NewClient(escfg)
	if err != nil {
		log.Warn("search client construction failed, search index disabled", zap.Error(err))
		return nil
	}
	return &elasticIndex{client: client, index: cfg.SearchIndexName, log: log.Named("searchindex")}
}

// classifyStatus maps an Elasticsearch HTTP status onto the retry taxonomy.
func classifyStatus(status int, detail string) error {
	err := fmt.Errorf("elasticsearch: status %d: %s", status, detail)
	switch {
	case status == http.StatusTooManyRequests:
		return resilience.RateLimited(err)
	case status == http.StatusNotFound:
		return resilience.Permanent(err)
	case status >= 500:
		return resilience.Transient(err)
	case status >= 400:
		return resilience.Permanent(err)
	}
	return err
}

func (e *elasticIndex) Ping(ctx context.Context) error {
	res, err := e.client.Ping(e.client.Ping.WithContext(ctx))
	if err != nil {
		return resilience.Transient(err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return classifyStatus(res.StatusCode, res.String())
	}
	return nil
}

func (e *elasticIndex) IndexInvoice(ctx context.Context, inv *domain.Invoice) error {
	body, err := json.Marshal(inv)
	if err != nil {
		return resilience.Permanent(fmt.Errorf("marshal invoice: %w", err))
	}

	res, err := e.client.Index(
		e.index,
		bytes.NewReader(body),
		e.client.Index.WithContext(ctx),
		e.client.Index.WithDocumentID(inv.InvoiceNumber),
	)
	if err != nil {
		return resilience.Transient(err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return classifyStatus(res.StatusCode, res.String())
	}
	return nil
}

func (e *elasticIndex) Search(ctx context.Context, query string) ([]domain.Invoice, error) {
	q := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  query,
				"fields": []string{"invoice_number^2", "client.name^2", "notes", "line_items.description"},
			},
		},
		"size": 50,
	}
	body, err := json.Marshal(q)
	if err != nil {
		return nil, resilience.Permanent(fmt.Errorf("marshal query: %w", err))
	}

	res, err := e.client.Search(
		e.client.Search.WithContext(ctx),
		e.client.Search.WithIndex(e.index),
		e.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, resilience.Transient(err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, classifyStatus(res.StatusCode, res.String())
	}

	var result struct {
		Hits struct {
			Hits []struct {
				Source domain.Invoice `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, resilience.Transient(fmt.Errorf("decode search response: %w", err))
	}

	invoices := make([]domain.Invoice, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		invoices = append(invoices, hit.Source)
	}
	return invoices, nil
}

func (e *elasticIndex) UpdateStatus(ctx context.Context, invoiceNumber string, status domain.InvoiceStatus) error {
	update := map[string]any{
		"doc": map[string]any{"status": status},
	}
	body, err := json.Marshal(update)
	if err != nil {
		return resilience.Permanent(fmt.Errorf("marshal update: %w", err))
	}

	res, err := e.client.Update(
		e.index,
		invoiceNumber,
		bytes.NewReader(body),
		e.client.Update.WithContext(ctx),
	)
	if err != nil {
		return resilience.Transient(err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return classifyStatus(res.StatusCode, res.String())
	}
	return nil
}

func (e *elasticIndex) Delete(ctx context.Context, invoiceNumber string) error {
	res, err := e.client.Delete(
		e.index,
		invoiceNumber,
		e.client.Delete.WithContext(ctx),
	)
	if err != nil {
		return resilience.Transient(err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return classifyStatus(res.StatusCode, res.String())
	}
	return nil
}
