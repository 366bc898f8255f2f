package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smallbiznis/invoicehub/internal/config"
	"github.com/smallbiznis/invoicehub/internal/resilience"
)

func newFakeAgentServer(t *testing.T) *httptest.Server {
	t.Helper()
	var runPolls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/threads", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"id": "thread_123"})
	})
	mux.HandleFunc("POST /v1/threads/thread_123/messages", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "user", in["role"])
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("{}"))
	})
	mux.HandleFunc("POST /v1/threads/thread_123/runs", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"id": "run_1", "status": "queued"})
	})
	mux.HandleFunc("GET /v1/threads/thread_123/runs/run_1", func(w http.ResponseWriter, r *http.Request) {
		status := "in_progress"
		if runPolls.Add(1) >= 2 {
			status = "completed"
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "run_1", "status": status})
	})
	mux.HandleFunc("GET /v1/threads/thread_123/messages", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "desc", r.URL.Query().Get("order"))
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{
					"id":   "msg_2",
					"role": "assistant",
					"content": []map[string]any{
						{"type": "text", "text": map[string]string{"value": `{"invoice_number":"INV-1"}`}},
					},
				},
				{
					"id":   "msg_1",
					"role": "user",
					"content": []map[string]any{
						{"type": "text", "text": map[string]string{"value": "generate"}},
					},
				},
			},
		})
	})
	return httptest.NewServer(mux)
}

func newTestClient(t *testing.T, baseURL string) Client {
	t.Helper()
	c := NewHTTPClient(config.Config{
		AgentEndpoint: baseURL,
		AgentAPIKey:   "test-key",
		AgentID:       "agent_1",
		AgentModel:    "gpt-4o",
	}, zap.NewNop())
	require.NotNil(t, c)
	// Speed up run polling against the fake server.
	c.(*httpClient).http = http.DefaultClient
	return c
}

func TestNilWhenUnconfigured(t *testing.T) {
	if c := NewHTTPClient(config.Config{}, zap.NewNop()); c != nil {
		t.Fatal("client should be nil without endpoint and agent id")
	}
	if c := NewHTTPClient(config.Config{AgentEndpoint: "http://x"}, zap.NewNop()); c != nil {
		t.Fatal("client should be nil without an agent id")
	}
}

func TestGenerationRoundTrip(t *testing.T) {
	srv := newFakeAgentServer(t)
	defer srv.Close()
	c := newTestClient(t, srv.URL)
	ctx := context.Background()

	threadID, err := c.CreateThread(ctx)
	require.NoError(t, err)
	assert.Equal(t, "thread_123", threadID)

	require.NoError(t, c.PostMessage(ctx, threadID, "user", "generate an invoice"))

	status, err := c.Run(ctx, threadID, "produce JSON")
	require.NoError(t, err)
	assert.Equal(t, RunCompleted, status)

	msgs, err := c.ListMessages(ctx, threadID, "")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "assistant", msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "INV-1")
}

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		status int
		want   resilience.ErrorClass
	}{
		{http.StatusTooManyRequests, resilience.ClassRateLimit},
		{http.StatusInternalServerError, resilience.ClassTransient},
		{http.StatusUnauthorized, resilience.ClassPermanent},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		c := newTestClient(t, srv.URL)

		_, err := c.CreateThread(context.Background())
		require.Error(t, err)
		assert.Equal(t, tc.want, resilience.Classify(err), "status %d", tc.status)
		srv.Close()
	}
}

func TestRunStatusTerminal(t *testing.T) {
	for _, s := range []RunStatus{RunCompleted, RunFailed, RunExpired, RunCancelled} {
		assert.True(t, s.Terminal(), string(s))
	}
	for _, s := range []RunStatus{RunQueued, RunInProgress} {
		assert.False(t, s.Terminal(), string(s))
	}
}
