package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leadscope/leadscope/pkg/conversation"
	"github.com/leadscope/leadscope/pkg/lead"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatServer(t *testing.T, reply string, seen *chatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if seen != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": reply}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(endpoint string) Config {
	return Config{
		Provider:   ProviderXAI,
		APIKey:     "test-key",
		Endpoint:   endpoint,
		Timeout:    2 * time.Second,
		MaxRetries: -1,
		RetryWait:  time.Millisecond,
	}
}

func TestBackendRespondSendsSnapshotAndHistory(t *testing.T) {
	var seen chatRequest
	srv := chatServer(t, "Initech is your best lead.", &seen)

	b, err := NewBackend(context.Background(), testConfig(srv.URL))
	require.NoError(t, err)

	snap := conversation.Snapshot{
		Leads: []lead.Lead{{ID: 1, Company: "Initech", Score: lead.Ptr(88.25), Category: lead.CategoryQualified}},
		Total: 40,
	}
	history := []conversation.Turn{{Input: "count leads", Response: "40 leads", Route: conversation.RouteLocal}}

	out, err := b.Respond(context.Background(), snap, history, "who should I call first?")
	require.NoError(t, err)
	assert.Equal(t, "Initech is your best lead.", out)

	assert.Equal(t, "grok-4", seen.Model)
	assert.Nil(t, seen.ResponseFormat)
	require.Len(t, seen.Messages, 4)
	assert.Equal(t, "system", seen.Messages[0].Role)
	assert.Contains(t, seen.Messages[0].Content, "Total leads: 40")
	assert.Contains(t, seen.Messages[0].Content, "Only the 1 highest scoring")
	assert.Contains(t, seen.Messages[0].Content, `"company":"Initech"`)
	assert.Equal(t, message{Role: "user", Content: "count leads"}, seen.Messages[1])
	assert.Equal(t, message{Role: "assistant", Content: "40 leads"}, seen.Messages[2])
	assert.Equal(t, message{Role: "user", Content: "who should I call first?"}, seen.Messages[3])
}

func TestBackendServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream down"}}`))
	}))
	defer srv.Close()

	b, err := NewBackend(context.Background(), testConfig(srv.URL))
	require.NoError(t, err)

	_, err = b.Respond(context.Background(), conversation.Snapshot{}, nil, "hi")
	var unavailable *conversation.BackendUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Contains(t, err.Error(), "upstream down")
}

func TestBackendRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": "ok"}}},
		})
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.MaxRetries = 2
	b, err := NewBackend(context.Background(), cfg)
	require.NoError(t, err)

	out, err := b.Respond(context.Background(), conversation.Snapshot{}, nil, "hi")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(2), calls.Load())
}

func TestBackendTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Timeout = 50 * time.Millisecond
	b, err := NewBackend(context.Background(), cfg)
	require.NoError(t, err)

	_, err = b.Respond(context.Background(), conversation.Snapshot{}, nil, "hi")
	var timeout *conversation.BackendTimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, 50*time.Millisecond, timeout.After)
}

func TestNewBackendValidatesConfig(t *testing.T) {
	_, err := NewBackend(context.Background(), Config{Provider: "carrier-pigeon", APIKey: "k"})
	assert.ErrorContains(t, err, "unsupported AI provider")

	_, err = NewBackend(context.Background(), Config{Provider: ProviderOpenAI})
	assert.ErrorContains(t, err, "requires an API key")
}

func TestGeneratorRequestsJSONAndExtractsLeads(t *testing.T) {
	var seen chatRequest
	reply := "```json\n{\"leads\": [{\"company\": \"Acme\", \"budget\": 25000}]}\n```"
	srv := chatServer(t, reply, &seen)

	g, err := NewGenerator(context.Background(), testConfig(srv.URL))
	require.NoError(t, err)

	doc, err := g.Generate(context.Background(), 1, "high")
	require.NoError(t, err)
	assert.JSONEq(t, `{"leads": [{"company": "Acme", "budget": 25000}]}`, string(doc))

	require.NotNil(t, seen.ResponseFormat)
	assert.Equal(t, "json_object", seen.ResponseFormat.Type)
	assert.Contains(t, seen.Messages[1].Content, "Generate 1 realistic")
	assert.Contains(t, seen.Messages[1].Content, Qualities["high"])

	_, err = g.Generate(context.Background(), 0, "mixed")
	assert.Error(t, err)
	_, err = g.Generate(context.Background(), 5, "luxury")
	assert.Error(t, err)
}

func TestExtractLeadsJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bare array", `[{"company":"A"}]`, `[{"company":"A"}]`},
		{"wrapped", `{"leads":[]}`, `{"leads":[]}`},
		{"fenced", "```\n[{\"company\":\"A\"}]\n```", `[{"company":"A"}]`},
		{"prose around", `Sure! Here you go: [{"company":"A"}] Enjoy.`, `[{"company":"A"}]`},
		{"no json", `I cannot help with that.`, ""},
		{"wrong shape", `{"data": 1}`, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractLeadsJSON(tc.content)
			if tc.want == "" {
				var serr *lead.StructuralIngestError
				if !errors.As(err, &serr) {
					t.Fatalf("expected StructuralIngestError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if strings.TrimSpace(string(got)) != tc.want {
				t.Fatalf("got %s, want %s", got, tc.want)
			}
		})
	}
}
