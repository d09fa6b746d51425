package litellm_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Strob0t/quorumgate/internal/adapter/litellm"
	"github.com/Strob0t/quorumgate/internal/domain/agent"
	"github.com/Strob0t/quorumgate/internal/domain/task"
	"github.com/Strob0t/quorumgate/internal/domain/validation"
	"github.com/Strob0t/quorumgate/internal/port/validator"
)

var _ validator.Validator = (*litellm.Validator)(nil)

// completionServer answers every chat completion with content and captures
// the last request body.
func completionServer(t *testing.T, content string, got *litellm.ChatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing bearer token")
		}
		if got != nil {
			_ = json.NewDecoder(r.Body).Decode(got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestValidatorReturnsParsedVerdict(t *testing.T) {
	var req litellm.ChatRequest
	srv := completionServer(t, `{"status":"rejected","score":1.5,"recommendations":["drop the key"],"rationale":"secret in diff"}`, &req)
	v := litellm.NewValidator(litellm.NewClient(srv.URL, "test-key", time.Second), "gpt-4o", 2)

	got, err := v.Validate(context.Background(),
		agent.Descriptor{Name: agent.NameSecurity},
		task.Task{ChangeType: task.ChangeSecurity, Title: "add key", Diff: "+api_key=abc"},
		validation.ContextScope{ChangedFiles: []string{"config.go"}},
	)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != validation.StatusRejected || *got.Score != 1.5 {
		t.Fatalf("unexpected verdict %+v", got)
	}
	if req.Model != "gpt-4o" || len(req.Messages) != 2 {
		t.Fatalf("unexpected request %+v", req)
	}
	if !strings.Contains(req.Messages[0].Content, "security reviewer") {
		t.Fatalf("expected security role prompt, got %q", req.Messages[0].Content)
	}
	if !strings.Contains(req.Messages[1].Content, "+api_key=abc") {
		t.Fatal("expected diff in user prompt")
	}
}

func TestValidatorPropagatesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer srv.Close()

	v := litellm.NewValidator(litellm.NewClient(srv.URL, "test-key", time.Second), "gpt-4o", 2)
	_, err := v.Validate(context.Background(), agent.Descriptor{Name: agent.NameQuality}, task.Task{}, validation.ContextScope{})
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected API error, got %v", err)
	}
}

func TestValidatorLimitsConcurrentCalls(t *testing.T) {
	var inFlight, peak atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		inFlight.Add(-1)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"status\":\"APPROVED\",\"score\":4}"}}]}`))
	}))
	defer srv.Close()

	v := litellm.NewValidator(litellm.NewClient(srv.URL, "", 5*time.Second), "m", 2)
	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := v.Validate(context.Background(), agent.Descriptor{Name: agent.NameQuality}, task.Task{}, validation.ContextScope{})
			errs <- err
		}()
	}
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}
	if p := peak.Load(); p > 2 {
		t.Fatalf("expected at most 2 concurrent completions, saw %d", p)
	}
}

func TestValidatorHonorsContextWhileWaiting(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-block
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()
	defer close(block)

	v := litellm.NewValidator(litellm.NewClient(srv.URL, "", 5*time.Second), "m", 1)
	go func() {
		_, _ = v.Validate(context.Background(), agent.Descriptor{}, task.Task{}, validation.ContextScope{})
	}()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := v.Validate(ctx, agent.Descriptor{}, task.Task{}, validation.ContextScope{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded while waiting for a slot, got %v", err)
	}
}

func TestCompleteWithoutChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := litellm.NewClient(srv.URL, "", time.Second).Complete(context.Background(), litellm.ChatRequest{Model: "m"})
	if !errors.Is(err, litellm.ErrEmptyCompletion) {
		t.Fatalf("expected ErrEmptyCompletion, got %v", err)
	}
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    validation.Status
		wantErr bool
	}{
		{"plain", `{"status":"APPROVED","score":4,"rationale":"ok"}`, validation.StatusApproved, false},
		{"fenced", "```json\n{\"status\":\"NEEDS_REVISION\",\"score\":2.5,\"rationale\":\"nits\"}\n```", validation.StatusNeedsRevision, false},
		{"unknown status", `{"status":"MAYBE","score":3}`, "", true},
		{"missing score", `{"status":"APPROVED"}`, "", true},
		{"not json", "looks fine to me", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := litellm.ParseVerdict(tt.content)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				if got.Status != tt.want {
					t.Fatalf("status = %s, want %s", got.Status, tt.want)
				}
				if got.Recommendations == nil {
					t.Fatal("expected non-nil recommendations")
				}
			}
		})
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health/liveliness" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`"I'm alive!"`))
	}))
	defer srv.Close()

	if err := litellm.NewClient(srv.URL, "", time.Second).Health(context.Background()); err != nil {
		t.Fatal(err)
	}
}
