package services

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/Corphon/ScriptCraftAI/internal/errors"
	"github.com/Corphon/ScriptCraftAI/internal/llm"
	"github.com/Corphon/ScriptCraftAI/internal/utils"
)

const aiUnavailableMessage = "AI服务调用失败，请稍后重试"

// AIClient 向模型发送一次提示词并返回原始结果
type AIClient interface {
	Complete(ctx context.Context, prompt string) (*llm.CompletionResponse, error)
}

// LLMClientOptions LLMClient 参数
type LLMClientOptions struct {
	ProviderName string
	// MaxAttempts 最多尝试次数，1 表示不重试
	MaxAttempts uint
	// InitialBackoff 首次重试前的等待，默认 500ms
	InitialBackoff time.Duration
	Metrics        *utils.Metrics
}

// LLMClient 基于 llm.Provider 的 AIClient 实现：超时由 ctx 控制，只对传输错误和 5xx/429 重试，
// 所有失败统一报告为上游错误
type LLMClient struct {
	provider llm.Provider
	opts     LLMClientOptions
	tracer   trace.Tracer
}

// NewLLMClient 创建 LLMClient
func NewLLMClient(provider llm.Provider, opts LLMClientOptions) *LLMClient {
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 1
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 500 * time.Millisecond
	}
	if opts.ProviderName == "" {
		opts.ProviderName = provider.GetName()
	}
	return &LLMClient{
		provider: provider,
		opts:     opts,
		tracer:   otel.Tracer("github.com/Corphon/ScriptCraftAI/internal/services"),
	}
}

// Complete 实现 AIClient
func (c *LLMClient) Complete(ctx context.Context, prompt string) (*llm.CompletionResponse, error) {
	ctx, span := c.tracer.Start(ctx, "llm.complete", trace.WithAttributes(
		attribute.String("llm.provider", c.opts.ProviderName),
		attribute.Int("llm.prompt_chars", len([]rune(prompt))),
	))
	defer span.End()

	done := c.opts.Metrics.TrackAICall(c.opts.ProviderName)
	logger := utils.GetLogger()

	req := llm.CompletionRequest{Prompt: prompt, JSONOutput: true}
	attempt := 0
	operation := func() (*llm.CompletionResponse, error) {
		attempt++
		resp, err := c.provider.CompleteText(ctx, req)
		if err == nil {
			return resp, nil
		}
		if !llm.IsRetryable(err) || ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		logger.Warn("AI调用失败，准备重试", map[string]interface{}{
			"provider": c.opts.ProviderName,
			"attempt":  attempt,
			"error":    err.Error(),
		})
		return nil, err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.opts.InitialBackoff

	started := time.Now()
	resp, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(c.opts.MaxAttempts),
	)
	span.SetAttributes(attribute.Int("llm.attempts", attempt))

	if err != nil {
		outcome := "error"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			outcome = "timeout"
		}
		done(outcome)
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		logger.Error("AI调用失败", map[string]interface{}{
			"provider": c.opts.ProviderName,
			"attempts": attempt,
			"outcome":  outcome,
			"elapsed":  time.Since(started).String(),
			"error":    err.Error(),
		})
		return nil, apperrors.NewUpstreamError(aiUnavailableMessage, err)
	}

	done("success")
	span.SetAttributes(attribute.Int("llm.tokens", resp.TokensUsed))
	logger.Debug("AI调用成功", map[string]interface{}{
		"provider": c.opts.ProviderName,
		"model":    resp.ModelName,
		"tokens":   resp.TokensUsed,
		"elapsed":  time.Since(started).String(),
	})
	return resp, nil
}
