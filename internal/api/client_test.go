// internal/api/client_test.go
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestStartDeliberation(t *testing.T) {
	var received startRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/conversation/start/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(startResponse{ConversationID: "convo-123"})
	}))
	defer server.Close()

	c := NewClient(server.URL, zerolog.Nop())
	creds := Credentials{OpenAI: "sk-test", Gemini: "gm-test"}

	id, err := c.StartDeliberation(context.Background(), "Is P equal to NP?", creds, 3)
	if err != nil {
		t.Fatalf("StartDeliberation() failed: %v", err)
	}
	if id != "convo-123" {
		t.Errorf("expected conversation id 'convo-123', got %q", id)
	}
	if received.Question != "Is P equal to NP?" {
		t.Errorf("question not forwarded: %q", received.Question)
	}
	if received.APIKeys.OpenAI != "sk-test" || received.APIKeys.Gemini != "gm-test" {
		t.Errorf("credentials not forwarded: %+v", received.APIKeys)
	}
	if received.MaxRounds != 3 {
		t.Errorf("max rounds not forwarded: %d", received.MaxRounds)
	}
}

func TestStartDeliberationRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"question":["This field is required."]}`, http.StatusBadRequest)
	}))
	defer server.Close()

	c := NewClient(server.URL, zerolog.Nop())
	_, err := c.StartDeliberation(context.Background(), "q", Credentials{}, 3)
	if err == nil {
		t.Fatal("expected error for rejected start")
	}
}

func TestStartDeliberationMissingID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, zerolog.Nop())
	_, err := c.StartDeliberation(context.Background(), "q", Credentials{}, 3)
	if err == nil {
		t.Fatal("expected error when backend returns no conversation id")
	}
}

func TestHistory(t *testing.T) {
	history := []Message{
		{AgentName: "user", Content: "q", RoundNumber: 0},
		{AgentName: "gemini", Content: "a thought", RoundNumber: 1},
		{AgentName: "arbiter", Content: "the answer", RoundNumber: 2},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/conversation/convo-9/history/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(history)
	}))
	defer server.Close()

	c := NewClient(server.URL, zerolog.Nop())
	got, err := c.History(context.Background(), "convo-9")
	if err != nil {
		t.Fatalf("History() failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got))
	}
	if got[2].AgentName != "arbiter" || got[2].RoundNumber != 2 {
		t.Errorf("messages out of order or mangled: %+v", got[2])
	}
}

func TestRetryOnServerBusy(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(startResponse{ConversationID: "convo-retry"})
	}))
	defer server.Close()

	c := NewClient(server.URL, zerolog.Nop())
	c.rest.config.BaseDelay = time.Millisecond

	id, err := c.StartDeliberation(context.Background(), "q", Credentials{}, 1)
	if err != nil {
		t.Fatalf("StartDeliberation() failed after retry: %v", err)
	}
	if id != "convo-retry" {
		t.Errorf("unexpected id %q", id)
	}
	if calls != 2 {
		t.Errorf("expected 2 attempts, got %d", calls)
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	c := NewClient(server.URL, zerolog.Nop())
	_, err := c.StartDeliberation(context.Background(), "q", Credentials{}, 1)
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("400 should not be retried, got %d attempts", calls)
	}
}

func TestStreamURL(t *testing.T) {
	c := NewClient("http://backend:8000/api/", zerolog.Nop())
	want := "http://backend:8000/api/conversation/abc/stream/"
	if got := c.StreamURL("abc"); got != want {
		t.Errorf("StreamURL() = %q, want %q", got, want)
	}
}
