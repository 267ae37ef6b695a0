package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type fakeProvider struct {
	initialized map[string]string
}

func (f *fakeProvider) Initialize(config map[string]string) error {
	if config["api_key"] == "" {
		return errors.New("missing key")
	}
	f.initialized = config
	return nil
}

func (f *fakeProvider) GetName() string              { return "Fake" }
func (f *fakeProvider) GetSupportedModels() []string { return []string{"fake-1"} }
func (f *fakeProvider) CompleteText(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	return &CompletionResponse{Text: req.Prompt}, nil
}

func TestRegistry(t *testing.T) {
	Register("fake-test", func() Provider { return &fakeProvider{} })

	provider, err := GetProvider("fake-test", map[string]string{"api_key": "k"})
	if err != nil {
		t.Fatalf("GetProvider 失败: %v", err)
	}
	if provider.GetName() != "Fake" {
		t.Errorf("name = %s", provider.GetName())
	}
	if _, err := GetProvider("fake-test", map[string]string{}); err == nil {
		t.Error("初始化失败应返回错误")
	}
	if _, err := GetProvider("nope", nil); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("未知提供者应返回 ErrUnknownProvider, got %v", err)
	}
	if models := GetSupportedModelsForProvider("fake-test"); len(models) != 1 {
		t.Errorf("models = %v", models)
	}
}

func TestTimeoutFromConfig(t *testing.T) {
	cases := map[string]time.Duration{
		"":     time.Minute,
		"30s":  30 * time.Second,
		"15":   15 * time.Second,
		"junk": time.Minute,
	}
	for raw, want := range cases {
		if got := TimeoutFromConfig(map[string]string{"timeout": raw}, time.Minute); got != want {
			t.Errorf("timeout %q = %v, 期望 %v", raw, got, want)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("connection refused"), true},
		{&StatusError{StatusCode: 502}, true},
		{&StatusError{StatusCode: 429}, true},
		{&StatusError{StatusCode: 400}, false},
		{fmt.Errorf("wrap: %w", context.DeadlineExceeded), false},
		{&DecodeError{Err: errors.New("bad json")}, false},
	}
	for _, tc := range cases {
		if got := IsRetryable(tc.err); got != tc.want {
			t.Errorf("IsRetryable(%v) = %v, 期望 %v", tc.err, got, tc.want)
		}
	}
}
