package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// 响应体上限，防止异常响应占满内存
const maxResponseBytes = 4 << 20

// NewHTTPClient 按 config["timeout"] 创建带追踪的 HTTP 客户端
func NewHTTPClient(config map[string]string) *http.Client {
	return &http.Client{
		Timeout:   TimeoutFromConfig(config, 60*time.Second),
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// StatusError 上游返回非 2xx
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API错误(%d): %s", e.Provider, e.StatusCode, e.Body)
}

// Retryable 5xx 与 429 可以重试
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// IsRetryable 判断错误是否值得重试：传输层错误、5xx、429
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return false
	}
	return true
}

// DecodeError 响应体不是预期的 JSON 结构
type DecodeError struct {
	Provider string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s 响应解析失败: %v", e.Provider, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// PostJSON 发送 JSON POST 请求并返回响应体，非 2xx 返回 *StatusError
func PostJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		snippet := string(respBody)
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		return nil, &StatusError{Provider: provider, StatusCode: httpResp.StatusCode, Body: snippet}
	}
	return respBody, nil
}
