package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestComplete(t *testing.T) {
	var gotBody map[string]any
	var gotHeaders http.Header

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %s, want /v1/messages", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content":[{"type":"text","text":"Solid session overall."}]}`))
	}))
	defer srv.Close()

	c := NewWithBaseURL("key-123", "claude-sonnet-4-20250514", srv.URL)
	got, err := c.Complete(context.Background(), "analyze this workout")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "Solid session overall." {
		t.Errorf("Complete = %q", got)
	}

	if gotHeaders.Get("x-api-key") != "key-123" {
		t.Errorf("x-api-key = %q", gotHeaders.Get("x-api-key"))
	}
	if gotHeaders.Get("anthropic-version") == "" {
		t.Error("anthropic-version header missing")
	}
	if gotBody["model"] != "claude-sonnet-4-20250514" {
		t.Errorf("model = %v", gotBody["model"])
	}
	if temp, ok := gotBody["temperature"].(float64); !ok || temp >= 1.0 {
		t.Errorf("temperature = %v, want a fixed low value", gotBody["temperature"])
	}
	if _, ok := gotBody["max_tokens"].(float64); !ok {
		t.Error("max_tokens missing from request")
	}
}

func TestComplete_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"type":"overloaded_error"}}`))
	}))
	defer srv.Close()

	c := NewWithBaseURL("key", "model", srv.URL)
	_, err := c.Complete(context.Background(), "prompt")
	if err == nil {
		t.Fatal("Complete succeeded on HTTP 500")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("error %q does not surface the upstream status", err)
	}
}

func TestComplete_NoTextContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":[]}`))
	}))
	defer srv.Close()

	c := NewWithBaseURL("key", "model", srv.URL)
	if _, err := c.Complete(context.Background(), "prompt"); err == nil {
		t.Fatal("Complete succeeded on a reply with no text blocks")
	}
}

func TestComplete_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewWithBaseURL("key", "model", srv.URL)
	if _, err := c.Complete(ctx, "prompt"); err == nil {
		t.Fatal("Complete succeeded with a cancelled context")
	}
}
