package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ChainPilot/internal/agent"
	"ChainPilot/internal/session"
)

func decodeBody(resp *http.Response, target any) error {
	return json.NewDecoder(resp.Body).Decode(target)
}

type stubChatter struct {
	answer string
	err    error
	seen   []agent.Request
}

func (s *stubChatter) Run(_ context.Context, _ *session.Session, req agent.Request) (string, error) {
	s.seen = append(s.seen, req)
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

func TestChatSuccess(t *testing.T) {
	chatter := &stubChatter{answer: "余额是 3 ETH"}
	server := httptest.NewServer(NewServer("", chatter).Handler())
	defer server.Close()

	resp, err := http.Post(server.URL+"/api/v1/chat", "application/json",
		strings.NewReader(`{"input": "查余额", "credential": "ac09"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body ChatResponse
	if err := decodeBody(resp, &body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if body.Response != "余额是 3 ETH" {
		t.Fatalf("unexpected response: %q", body.Response)
	}
	if len(chatter.seen) != 1 || chatter.seen[0].Credential != "ac09" {
		t.Fatalf("expected credential forwarded, got %+v", chatter.seen)
	}
}

func TestChatRejectsBlankInput(t *testing.T) {
	server := httptest.NewServer(NewServer("", &stubChatter{}).Handler())
	defer server.Close()

	resp, err := http.Post(server.URL+"/api/v1/chat", "application/json", strings.NewReader(`{"input": "  "}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestChatRejectsBadBody(t *testing.T) {
	server := httptest.NewServer(NewServer("", &stubChatter{}).Handler())
	defer server.Close()

	resp, err := http.Post(server.URL+"/api/v1/chat", "application/json", strings.NewReader(`not json`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestChatInternalFailure(t *testing.T) {
	server := httptest.NewServer(NewServer("", &stubChatter{err: errors.New("resolver down")}).Handler())
	defer server.Close()

	resp, err := http.Post(server.URL+"/api/v1/chat", "application/json", strings.NewReader(`{"input": "查余额"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	var envelope errorEnvelope
	if err := decodeBody(resp, &envelope); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !strings.Contains(envelope.Error, "resolver down") {
		t.Fatalf("expected error message in envelope, got %q", envelope.Error)
	}
}

func TestChatMethodNotAllowed(t *testing.T) {
	server := httptest.NewServer(NewServer("", &stubChatter{}).Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/v1/chat")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	server := httptest.NewServer(NewServer("", &stubChatter{}).Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
