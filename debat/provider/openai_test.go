package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func completionResponse(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "deepseek-chat",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	})
	return string(b)
}

func testClient(t *testing.T, handler http.HandlerFunc, maxRetries int) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(Config{
		BaseURL:            srv.URL,
		APIKey:             "test-key",
		Model:              "deepseek-chat",
		MinRequestInterval: time.Millisecond,
		MaxRetries:         maxRetries,
		RequestTimeout:     5 * time.Second,
		BackoffBase:        time.Millisecond,
	}, zerolog.Nop())
}

func simpleRequest() Request {
	return Request{
		Messages:    []Message{{Role: "user", Content: "hallo"}},
		MaxTokens:   100,
		Temperature: 0.3,
	}
}

func TestComplete_Success(t *testing.T) {
	t.Parallel()

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completionResponse("dag"))
	}, 0)

	got, err := client.Complete(context.Background(), simpleRequest())
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "dag" {
		t.Fatalf("got=%q", got)
	}
}

func TestComplete_SendsJSONObjectFormat(t *testing.T) {
	t.Parallel()

	var sawFormat atomic.Bool
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ResponseFormat struct {
				Type string `json:"type"`
			} `json:"response_format"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.ResponseFormat.Type == "json_object" {
			sawFormat.Store(true)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completionResponse("{}"))
	}, 0)

	req := simpleRequest()
	req.JSONObject = true
	if _, err := client.Complete(context.Background(), req); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !sawFormat.Load() {
		t.Fatalf("request body missing json_object response format")
	}
}

func TestComplete_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, `{"error": {"message": "overloaded"}}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completionResponse("eindelijk"))
	}, 3)

	got, err := client.Complete(context.Background(), simpleRequest())
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "eindelijk" {
		t.Fatalf("got=%q", got)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls=%d, want 3", calls.Load())
	}
}

func TestComplete_RetryCeiling(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error": {"message": "rate limited"}}`, http.StatusTooManyRequests)
	}, 2)

	_, err := client.Complete(context.Background(), simpleRequest())
	var serr *ServiceError
	if !errors.As(err, &serr) {
		t.Fatalf("err=%v, want ServiceError", err)
	}
	// MaxRetries=2 means exactly three attempts on the wire.
	if calls.Load() != 3 {
		t.Fatalf("calls=%d, want 3", calls.Load())
	}
	if serr.Attempts != 3 {
		t.Fatalf("Attempts=%d, want 3", serr.Attempts)
	}
}

func TestComplete_NoRetryOnClientError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error": {"message": "bad request"}}`, http.StatusBadRequest)
	}, 5)

	_, err := client.Complete(context.Background(), simpleRequest())
	var serr *ServiceError
	if !errors.As(err, &serr) {
		t.Fatalf("err=%v, want ServiceError", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls=%d, want single attempt for a 400", calls.Load())
	}
	if serr.Attempts != 1 {
		t.Fatalf("Attempts=%d, want 1", serr.Attempts)
	}
}

func TestComplete_ProtocolErrorOnEmptyChoices(t *testing.T) {
	t.Parallel()

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": "x", "object": "chat.completion", "choices": []}`)
	}, 0)

	_, err := client.Complete(context.Background(), simpleRequest())
	var perr *ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("err=%v, want ProtocolError", err)
	}
}

func TestComplete_PacesRequests(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completionResponse("ok"))
	}))
	t.Cleanup(srv.Close)

	interval := 80 * time.Millisecond
	client := NewClient(Config{
		BaseURL:            srv.URL,
		APIKey:             "test-key",
		Model:              "deepseek-chat",
		MinRequestInterval: interval,
	}, zerolog.Nop())

	start := time.Now()
	for i := 0; i < 2; i++ {
		if _, err := client.Complete(context.Background(), simpleRequest()); err != nil {
			t.Fatalf("Complete %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed < interval {
		t.Fatalf("two calls finished in %v, want at least %v between request starts", elapsed, interval)
	}
}

func TestComplete_CancelledContext(t *testing.T) {
	t.Parallel()

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completionResponse("ok"))
	}, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.Complete(ctx, simpleRequest()); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{}.withDefaults()
	if cfg.MinRequestInterval <= 0 || cfg.RequestTimeout <= 0 || cfg.BackoffBase <= 0 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.MaxRetries != 0 {
		t.Fatalf("MaxRetries=%d, want 0", cfg.MaxRetries)
	}
}
