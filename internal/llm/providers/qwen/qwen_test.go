package qwen

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Corphon/ScriptCraftAI/internal/llm"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) llm.Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider, err := llm.GetProvider("qwen", map[string]string{
		"api_key":  "test-key",
		"base_url": server.URL,
		"timeout":  "5s",
	})
	if err != nil {
		t.Fatalf("创建 provider 失败: %v", err)
	}
	return provider
}

func TestCompleteTextSendsDashScopePayload(t *testing.T) {
	var captured map[string]interface{}
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != generationPath {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		_ = json.NewDecoder(r.Body).Decode(&captured)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"request_id":"r1","output":{"choices":[{"finish_reason":"stop","message":{"role":"assistant","content":"{\"title\":\"t\"}"}}]},"usage":{"input_tokens":3,"output_tokens":5,"total_tokens":8}}`))
	})

	resp, err := provider.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "写个脚本"})
	if err != nil {
		t.Fatalf("CompleteText 失败: %v", err)
	}
	if resp.Text != `{"title":"t"}` {
		t.Errorf("Text = %q", resp.Text)
	}
	if resp.TokensUsed != 8 || resp.FinishReason != "stop" {
		t.Errorf("resp = %+v", resp)
	}
	if len(resp.Raw) == 0 {
		t.Error("应保留原始响应体")
	}

	if captured["model"] != "qwen-plus" {
		t.Errorf("model = %v", captured["model"])
	}
	params := captured["parameters"].(map[string]interface{})
	if params["result_format"] != "message" {
		t.Errorf("result_format = %v", params["result_format"])
	}
	messages := captured["input"].(map[string]interface{})["messages"].([]interface{})
	if len(messages) != 1 || messages[0].(map[string]interface{})["role"] != "user" {
		t.Errorf("messages = %v", messages)
	}
}

func TestCompleteTextStatusError(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":"Throttling"}`, http.StatusServiceUnavailable)
	})

	_, err := provider.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "x"})
	var statusErr *llm.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("应返回 StatusError, got %v", err)
	}
	if !llm.IsRetryable(err) {
		t.Error("503 应可重试")
	}
}

func TestInitializeRequiresAPIKey(t *testing.T) {
	if _, err := llm.GetProvider("qwen", map[string]string{}); err == nil {
		t.Fatal("缺少 api_key 应初始化失败")
	}
}
