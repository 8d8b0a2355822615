package summarizer

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"google.golang.org/genai"

	"github.com/edgard/tgcollector/internal/config"
	"github.com/edgard/tgcollector/internal/errs"
	"github.com/edgard/tgcollector/internal/logger"
)

const okResponse = `{"candidates":[{"content":{"role":"model","parts":[{"text":"weekly digest"}]},"finishReason":"STOP"}]}`

// fakeGemini answers generateContent calls with a fixed status and body.
type fakeGemini struct {
	status   int
	body     string
	requests atomic.Int32
}

func (f *fakeGemini) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	f.requests.Add(1)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(f.status)
	fmt.Fprint(w, f.body)
}

func apiError(code int) string {
	return fmt.Sprintf(`{"error":{"code":%d,"message":"backend says no","status":"ERR"}}`, code)
}

func newTestGemini(t *testing.T, fake *fakeGemini, maxRetries int) *geminiClient {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	cfg := config.GeminiConfig{APIKey: "test-key", ModelName: "gemini-test", Temperature: 0.4, MaxRetries: maxRetries}
	c, err := newGeminiClient(context.Background(), cfg, logger.Discard(), genai.HTTPOptions{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("newGeminiClient: %v", err)
	}
	return c
}

func TestNewGeminiClientRequiresKey(t *testing.T) {
	t.Parallel()
	_, err := NewGeminiClient(context.Background(), config.GeminiConfig{ModelName: "m"}, logger.Discard())
	if errs.Code(err) != errs.CodeConfig {
		t.Errorf("NewGeminiClient() error = %v, want config error", err)
	}
}

func TestGeminiGenerate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		status        int
		body          string
		maxRetries    int
		want          string
		wantRequests  int32
		wantErr       bool
		wantTransient bool
	}{
		{name: "success", status: http.StatusOK, body: okResponse, maxRetries: 2, want: "weekly digest", wantRequests: 1},
		{name: "unavailable is retried", status: http.StatusServiceUnavailable, body: apiError(503), maxRetries: 2, wantRequests: 3, wantErr: true, wantTransient: true},
		{name: "internal error is retried", status: http.StatusInternalServerError, body: apiError(500), maxRetries: 1, wantRequests: 2, wantErr: true, wantTransient: true},
		{name: "bad request is not retried", status: http.StatusBadRequest, body: apiError(400), maxRetries: 2, wantRequests: 1, wantErr: true},
		{name: "blocked prompt", status: http.StatusOK, body: `{"promptFeedback":{"blockReason":"SAFETY"}}`, maxRetries: 2, wantRequests: 1, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fake := &fakeGemini{status: tt.status, body: tt.body}
			c := newTestGemini(t, fake, tt.maxRetries)

			got, err := c.Generate(context.Background(), "summarize")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Generate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Generate() = %q, want %q", got, tt.want)
			}
			if err != nil && errs.IsTransient(err) != tt.wantTransient {
				t.Errorf("IsTransient(%v) = %v, want %v", err, !tt.wantTransient, tt.wantTransient)
			}
			if n := fake.requests.Load(); n != tt.wantRequests {
				t.Errorf("requests = %d, want %d", n, tt.wantRequests)
			}
		})
	}
}

func TestGeminiCircuitBreaker(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	fake := &fakeGemini{status: http.StatusServiceUnavailable, body: apiError(503)}
	c := newTestGemini(t, fake, 0)

	for i := 0; i < breakerFailures; i++ {
		if _, err := c.Generate(ctx, "summarize"); !errs.IsTransient(err) {
			t.Fatalf("call %d error = %v, want transient", i, err)
		}
	}

	_, err := c.Generate(ctx, "summarize")
	if !errs.IsTransient(err) {
		t.Fatalf("Generate() with open circuit error = %v, want transient", err)
	}
	if n := fake.requests.Load(); n != breakerFailures {
		t.Errorf("requests = %d, want %d (open circuit must not call the API)", n, breakerFailures)
	}
}

func TestGeminiBlockedPromptKeepsCircuitClosed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	fake := &fakeGemini{status: http.StatusOK, body: `{"promptFeedback":{"blockReason":"SAFETY"}}`}
	c := newTestGemini(t, fake, 0)

	for i := 0; i < breakerFailures+1; i++ {
		if _, err := c.Generate(ctx, "summarize"); err == nil || errs.IsTransient(err) {
			t.Fatalf("call %d error = %v, want non-transient failure", i, err)
		}
	}
	if n := fake.requests.Load(); n != breakerFailures+1 {
		t.Errorf("requests = %d, want %d", n, breakerFailures+1)
	}
}
