package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/smallbiznis/invoicehub/internal/config"
	"github.com/smallbiznis/invoicehub/internal/resilience"
)

const (
	runPollInterval = time.Second
	runPollTimeout  = 90 * time.Second
)

type httpClient struct {
	baseURL string
	apiKey  string
	agentID string
	model   string
	http    *http.Client
	log     *zap.Logger
}

// NewHTTPClient builds the assistant runtime client. Returns nil when the
// endpoint or agent id is not configured; one missing dependency must not
// stop the process.
func NewHTTPClient(cfg config.Config, log *zap.Logger) Client {
	if cfg.AgentEndpoint == "" || cfg.AgentID == "" {
		log.Info("agent endpoint not configured, AI generation disabled")
		return nil
	}
	return &httpClient{
		baseURL: strings.TrimRight(cfg.AgentEndpoint, "/"),
		apiKey:  cfg.AgentAPIKey,
		agentID: cfg.AgentID,
		model:   cfg.AgentModel,
		http:    &http.Client{Timeout: 120 * time.Second},
		log:     log.Named("agent"),
	}
}

// classifyHTTP maps an agent API status code onto the retry taxonomy.
func classifyHTTP(status int, detail string) error {
	err := fmt.Errorf("agent api: status %d: %s", status, detail)
	switch {
	case status == http.StatusTooManyRequests:
		return resilience.RateLimited(err)
	case status >= 500:
		return resilience.Transient(err)
	case status >= 400:
		return resilience.Permanent(err)
	}
	return err
}

func (c *httpClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return resilience.Permanent(fmt.Errorf("marshal request: %w", err))
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return resilience.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return resilience.Transient(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return classifyHTTP(resp.StatusCode, string(detail))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resilience.Transient(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *httpClient) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/v1/agents/"+url.PathEscape(c.agentID), nil, &struct{}{})
}

func (c *httpClient) CreateThread(ctx context.Context) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/threads", map[string]any{}, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", resilience.Transient(fmt.Errorf("agent api: thread response missing id"))
	}
	return out.ID, nil
}

func (c *httpClient) PostMessage(ctx context.Context, threadID, role, content string) error {
	in := map[string]any{"role": role, "content": content}
	return c.do(ctx, http.MethodPost, "/v1/threads/"+url.PathEscape(threadID)+"/messages", in, nil)
}

// Run starts a run on the thread and polls until it reaches a terminal
// status or the poll budget runs out.
func (c *httpClient) Run(ctx context.Context, threadID, instructions string) (RunStatus, error) {
	in := map[string]any{
		"agent_id": c.agentID,
		"model":    c.model,
	}
	if instructions != "" {
		in["instructions"] = instructions
	}

	var run struct {
		ID     string    `json:"id"`
		Status RunStatus `json:"status"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/threads/"+url.PathEscape(threadID)+"/runs", in, &run); err != nil {
		return "", err
	}

	deadline := time.Now().Add(runPollTimeout)
	for !run.Status.Terminal() {
		if time.Now().After(deadline) {
			return run.Status, resilience.Transient(fmt.Errorf("agent api: run %s timeout in status %s", run.ID, run.Status))
		}
		select {
		case <-ctx.Done():
			return run.Status, ctx.Err()
		case <-time.After(runPollInterval):
		}
		path := "/v1/threads/" + url.PathEscape(threadID) + "/runs/" + url.PathEscape(run.ID)
		if err := c.do(ctx, http.MethodGet, path, nil, &run); err != nil {
			return "", err
		}
	}
	return run.Status, nil
}

func (c *httpClient) ListMessages(ctx context.Context, threadID, order string) ([]Message, error) {
	if order == "" {
		order = "desc"
	}
	var out struct {
		Data []struct {
			ID      string `json:"id"`
			Role    string `json:"role"`
			Content []struct {
				Type string `json:"type"`
				Text struct {
					Value string `json:"value"`
				} `json:"text"`
			} `json:"content"`
		} `json:"data"`
	}
	path := "/v1/threads/" + url.PathEscape(threadID) + "/messages?order=" + url.QueryEscape(order)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}

	msgs := make([]Message, 0, len(out.Data))
	for _, m := range out.Data {
		text := ""
		for _, part := range m.Content {
			if part.Type == "text" || part.Type == "" {
				text = part.Text.Value
				break
			}
		}
		msgs = append(msgs, Message{ID: m.ID, Role: m.Role, Content: text})
	}
	return msgs, nil
}
