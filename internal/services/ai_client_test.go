package services

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Corphon/ScriptCraftAI/internal/errors"
	"github.com/Corphon/ScriptCraftAI/internal/llm"
	"github.com/Corphon/ScriptCraftAI/internal/utils"
)

// scriptedProvider 依次返回 errs 中的错误，用完后成功
type scriptedProvider struct {
	errs     []error
	calls    atomic.Int32
	lastReq  llm.CompletionRequest
	blocking bool
}

func (p *scriptedProvider) Initialize(map[string]string) error { return nil }
func (p *scriptedProvider) GetName() string                    { return "scripted" }
func (p *scriptedProvider) GetSupportedModels() []string       { return []string{"m"} }

func (p *scriptedProvider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	call := int(p.calls.Add(1)) - 1
	p.lastReq = req
	if p.blocking {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if call < len(p.errs) {
		return nil, p.errs[call]
	}
	return &llm.CompletionResponse{Text: `{"title":"t","scenes":[{}]}`, TokensUsed: 42, ModelName: "m"}, nil
}

func TestLLMClientSuccess(t *testing.T) {
	provider := &scriptedProvider{}
	client := NewLLMClient(provider, LLMClientOptions{Metrics: utils.NewMetrics()})

	resp, err := client.Complete(context.Background(), "写一个脚本")
	require.NoError(t, err)
	assert.Equal(t, 42, resp.TokensUsed)
	assert.EqualValues(t, 1, provider.calls.Load())
	assert.True(t, provider.lastReq.JSONOutput, "请求结构化输出")
	assert.Equal(t, "写一个脚本", provider.lastReq.Prompt)
}

func TestLLMClientNoRetryByDefault(t *testing.T) {
	provider := &scriptedProvider{errs: []error{&llm.StatusError{Provider: "scripted", StatusCode: http.StatusBadGateway}}}
	client := NewLLMClient(provider, LLMClientOptions{})

	_, err := client.Complete(context.Background(), "p")
	require.Error(t, err)
	assert.True(t, apperrors.IsUpstreamError(err))
	assert.Equal(t, aiUnavailableMessage, apperrors.UserMessage(err, ""))
	assert.EqualValues(t, 1, provider.calls.Load())
}

func TestLLMClientRetriesTransientErrors(t *testing.T) {
	provider := &scriptedProvider{errs: []error{
		&llm.StatusError{Provider: "scripted", StatusCode: http.StatusServiceUnavailable},
		&llm.StatusError{Provider: "scripted", StatusCode: http.StatusTooManyRequests},
	}}
	client := NewLLMClient(provider, LLMClientOptions{MaxAttempts: 3, InitialBackoff: time.Millisecond})

	resp, err := client.Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.NotNil(t, resp)
	assert.EqualValues(t, 3, provider.calls.Load())
}

func TestLLMClientDoesNotRetryPermanentErrors(t *testing.T) {
	provider := &scriptedProvider{errs: []error{
		&llm.StatusError{Provider: "scripted", StatusCode: http.StatusUnauthorized},
	}}
	client := NewLLMClient(provider, LLMClientOptions{MaxAttempts: 3, InitialBackoff: time.Millisecond})

	_, err := client.Complete(context.Background(), "p")
	require.Error(t, err)
	assert.EqualValues(t, 1, provider.calls.Load())

	var statusErr *llm.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
}

func TestLLMClientHonoursDeadline(t *testing.T) {
	provider := &scriptedProvider{blocking: true}
	client := NewLLMClient(provider, LLMClientOptions{MaxAttempts: 3, InitialBackoff: time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.Complete(ctx, "p")
	require.Error(t, err)
	assert.True(t, apperrors.IsUpstreamError(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.EqualValues(t, 1, provider.calls.Load(), "超时不重试")
	assert.Less(t, time.Since(start), time.Second)
}
