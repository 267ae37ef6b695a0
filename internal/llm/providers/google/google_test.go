package google

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

	provider, err := llm.GetProvider("google", map[string]string{
		"api_key":  "test-key",
		"base_url": server.URL,
	})
	if err != nil {
		t.Fatalf("创建 provider 失败: %v", err)
	}
	return provider
}

func TestCompleteTextRequestsJSONMime(t *testing.T) {
	var captured generateRequest
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-2.0-flash:generateContent" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("X-Goog-Api-Key"); got != "test-key" {
			t.Errorf("X-Goog-Api-Key = %q", got)
		}
		_ = json.NewDecoder(r.Body).Decode(&captured)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"title\":"},{"text":"\"t\"}"}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":2,"candidatesTokenCount":3,"totalTokenCount":5}}`))
	})

	resp, err := provider.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "写个脚本", JSONOutput: true})
	if err != nil {
		t.Fatalf("CompleteText 失败: %v", err)
	}
	if resp.Text != `{"title":"t"}` || resp.TokensUsed != 5 {
		t.Errorf("resp = %+v", resp)
	}
	if captured.GenerationConfig["responseMimeType"] != "application/json" {
		t.Errorf("generationConfig = %v", captured.GenerationConfig)
	}
	if len(captured.Contents) != 1 || captured.Contents[0].Parts[0].Text != "写个脚本" {
		t.Errorf("contents = %+v", captured.Contents)
	}
}

func TestNoCandidatesIsDecodeError(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	})

	_, err := provider.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "x"})
	var decodeErr *llm.DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("err = %v, want DecodeError", err)
	}
}
