package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Corphon/ScriptCraftAI/internal/llm"
)

const okBody = `{"id":"c1","model":"m","choices":[{"finish_reason":"stop","message":{"role":"assistant","content":"hello"}}],"usage":{"prompt_tokens":1,"completion_tokens":2,"total_tokens":3}}`

func TestCompatibleFlavorsAreRegistered(t *testing.T) {
	registered := map[string]bool{}
	for _, name := range llm.ListProviders() {
		registered[name] = true
	}
	for _, f := range flavors {
		if !registered[f.name] {
			t.Errorf("%s 未注册", f.name)
		}
	}
}

func TestCompleteTextRequestsJSONObject(t *testing.T) {
	var captured chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer k" {
			t.Errorf("Authorization = %q", got)
		}
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_, _ = w.Write([]byte(okBody))
	}))
	defer server.Close()

	provider, err := llm.GetProvider("deepseek", map[string]string{"api_key": "k", "base_url": server.URL})
	if err != nil {
		t.Fatal(err)
	}

	resp, err := provider.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "hi", JSONOutput: true})
	if err != nil {
		t.Fatalf("CompleteText 失败: %v", err)
	}
	if resp.Text != "hello" || resp.TokensUsed != 3 || resp.ProviderName != "DeepSeek" {
		t.Errorf("resp = %+v", resp)
	}
	if captured.Model != "deepseek-chat" {
		t.Errorf("model = %q", captured.Model)
	}
	if captured.ResponseFormat["type"] != "json_object" {
		t.Errorf("response_format = %v", captured.ResponseFormat)
	}
}

func TestGitHubModelsUsesAPIKeyHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("api-key") != "k" || r.Header.Get("Authorization") != "" {
			t.Errorf("headers = %v", r.Header)
		}
		_, _ = w.Write([]byte(okBody))
	}))
	defer server.Close()

	provider, _ := llm.GetProvider("githubmodels", map[string]string{"api_key": "k", "base_url": server.URL})
	if _, err := provider.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "hi"}); err != nil {
		t.Fatal(err)
	}
}

func TestClientErrorIsNotRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad key"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	provider, _ := llm.GetProvider("openai", map[string]string{"api_key": "k", "base_url": server.URL})
	_, err := provider.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "hi"})

	var statusErr *llm.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("应返回 StatusError, got %v", err)
	}
	if llm.IsRetryable(err) {
		t.Error("401 不应重试")
	}
}

func TestEmptyChoicesIsDecodeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	provider, _ := llm.GetProvider("grok", map[string]string{"api_key": "k", "base_url": server.URL})
	_, err := provider.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "hi"})

	var decodeErr *llm.DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("应返回 DecodeError, got %v", err)
	}
}
