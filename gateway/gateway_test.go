package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aperturestack/llmgateway/provider"
	"github.com/aperturestack/llmgateway/ratelimit"
)

func okServer(t *testing.T, text string, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		w.Header().Set(ratelimit.HeaderRemainingRequests, "10")
		w.Header().Set(ratelimit.HeaderRemainingTokens, "1000")
		w.Header().Set(ratelimit.HeaderReset, "1")
		resp := provider.Response{Content: []provider.ContentBlock{{Type: "text", Text: text}}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func failServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
}

func testConfig(endpoint string) Config {
	return Config{
		DefaultModel:  "claude-test",
		MaxTokenLimit: 512,
		Providers: []ProviderSpec{
			{Name: "primary", Priority: 0, Endpoint: endpoint, APIToken: "tok"},
		},
		MaxRetryAttempts:               1,
		CircuitBreakerFailureThreshold: 0.9,
		CircuitBreakerResetTimeoutMs:   50,
		PerSecondRate:                  1000,
		PerSecondBurst:                 1000,
		PerMinuteRate:                  60000,
		PerMinuteBurst:                 60000,
		MaxBatchAgeMs:                  10,
		RequestTimeoutSeconds:          5,
		CacheTTL:                       time.Minute,
	}
}

func TestNew_RejectsEmptyProviders(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if err == nil {
		t.Fatal("New() error = nil, want non-nil")
	}
}

func TestGateway_GetCompletion_ReturnsUpstreamText(t *testing.T) {
	srv := okServer(t, "hello there", nil)
	defer srv.Close()

	gw, err := New(context.Background(), testConfig(srv.URL))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer gw.Close()

	text, err := gw.GetCompletion(context.Background(), "hi")
	if err != nil {
		t.Fatalf("GetCompletion() error = %v", err)
	}
	if text != "hello there" {
		t.Errorf("GetCompletion() = %q, want %q", text, "hello there")
	}
}

func TestGateway_GetCompletion_CachesIdenticalPrompt(t *testing.T) {
	var calls int32
	srv := okServer(t, "cached answer", &calls)
	defer srv.Close()

	gw, err := New(context.Background(), testConfig(srv.URL))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer gw.Close()

	ctx := context.Background()
	first, err := gw.GetCompletion(ctx, "same prompt")
	if err != nil {
		t.Fatalf("first GetCompletion() error = %v", err)
	}
	second, err := gw.GetCompletion(ctx, "same prompt")
	if err != nil {
		t.Fatalf("second GetCompletion() error = %v", err)
	}
	if first != second {
		t.Errorf("responses differ: %q vs %q", first, second)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("upstream calls = %d, want 1 (second call should hit the response cache)", got)
	}
}

func TestGateway_AskQuestion_WrapsPromptWithCodeContext(t *testing.T) {
	var gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req provider.Request
		_ = json.Unmarshal(body, &req)
		gotPrompt = req.Messages[0].Content[0].Text
		resp := provider.Response{Content: []provider.ContentBlock{{Type: "text", Text: "answer"}}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	gw, err := New(context.Background(), testConfig(srv.URL))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer gw.Close()

	_, err = gw.AskQuestion(context.Background(), "what does this do?", "func f() {}")
	if err != nil {
		t.Fatalf("AskQuestion() error = %v", err)
	}
	if gotPrompt == "" {
		t.Fatal("upstream never received a prompt")
	}
	if !strings.Contains(gotPrompt, "func f() {}") || !strings.Contains(gotPrompt, "what does this do?") {
		t.Errorf("prompt = %q, want it to contain both the code context and the question", gotPrompt)
	}
}

func TestGateway_GetCompletion_AllProvidersFailedClassifiesKind(t *testing.T) {
	srv := failServer(t, http.StatusInternalServerError)
	defer srv.Close()

	gw, err := New(context.Background(), testConfig(srv.URL))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer gw.Close()

	_, err = gw.GetCompletion(context.Background(), "hi")
	if err == nil {
		t.Fatal("GetCompletion() error = nil, want non-nil")
	}
	if kind := ErrorKind(err); kind != KindAllProvidersFailed {
		t.Errorf("ErrorKind() = %v, want %v", kind, KindAllProvidersFailed)
	}
}
