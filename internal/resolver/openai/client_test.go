package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"ChainPilot/internal/resolver"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestResolveTerminalAnswer(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing auth header")
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"余额是 1 ETH"}}]}`))
	})

	decision, err := client.Resolve(context.Background(), []resolver.Message{
		{Role: resolver.RoleUser, Content: "查询余额"},
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Terminal() {
		t.Fatal("expected terminal decision")
	}
	if decision.Answer != "余额是 1 ETH" {
		t.Fatalf("unexpected answer %q", decision.Answer)
	}
}

func TestResolveToolCall(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Tools []struct {
				Function struct {
					Name string `json:"name"`
				} `json:"function"`
			} `json:"tools"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Tools) != 1 || req.Tools[0].Function.Name != "get_balance" {
			t.Errorf("capabilities not forwarded: %+v", req.Tools)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"","tool_calls":[{"id":"call_1","type":"function","function":{"name":"get_balance","arguments":"{}"}}]}}]}`))
	})

	decision, err := client.Resolve(context.Background(), []resolver.Message{
		{Role: resolver.RoleUser, Content: "查询余额"},
	}, []resolver.Capability{
		{Name: "get_balance", Description: "查询余额", InputSchema: json.RawMessage(`{"type":"object"}`)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Terminal() {
		t.Fatal("expected a tool call decision")
	}
	if decision.Call.Name != "get_balance" || decision.Call.ID != "call_1" {
		t.Fatalf("unexpected call: %+v", decision.Call)
	}
}

func TestResolveRejectsMalformedArguments(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","tool_calls":[{"id":"call_1","type":"function","function":{"name":"get_balance","arguments":"{broken"}}]}}]}`))
	})

	if _, err := client.Resolve(context.Background(), nil, nil); err == nil {
		t.Fatal("expected error for malformed tool arguments")
	}
}

func TestResolveErrorStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})

	if _, err := client.Resolve(context.Background(), nil, nil); err == nil {
		t.Fatal("expected error for non-2xx status")
	}
}

func TestResolveEmptyDecision(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":""}}]}`))
	})

	if _, err := client.Resolve(context.Background(), nil, nil); err == nil {
		t.Fatal("expected error when neither answer nor call is present")
	}
}
