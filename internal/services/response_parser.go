package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	apperrors "github.com/Corphon/ScriptCraftAI/internal/errors"
	"github.com/Corphon/ScriptCraftAI/internal/llm"
	"github.com/Corphon/ScriptCraftAI/internal/models"
)

// ErrMalformedResponse 模型输出无法解析为脚本结构
var ErrMalformedResponse = errors.New("malformed AI response")

const parseFailedMessage = "解析AI响应失败，请重新生成"

var fencePattern = regexp.MustCompile("```(?:json|JSON)?\\s*")

type envelopeChoice struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

// completionEnvelope 兼容 DashScope、OpenAI、Anthropic、Gemini 的响应外壳
type completionEnvelope struct {
	Output *struct {
		Text    string           `json:"text"`
		Choices []envelopeChoice `json:"choices"`
	} `json:"output"`
	Choices []envelopeChoice `json:"choices"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (e *completionEnvelope) text() (string, bool) {
	switch {
	case e.Output != nil && len(e.Output.Choices) > 0:
		return e.Output.Choices[0].Message.Content, true
	case e.Output != nil && e.Output.Text != "":
		return e.Output.Text, true
	case len(e.Choices) > 0:
		return e.Choices[0].Message.Content, true
	case len(e.Candidates) > 0:
		var sb strings.Builder
		for _, part := range e.Candidates[0].Content.Parts {
			sb.WriteString(part.Text)
		}
		return sb.String(), true
	}
	for _, block := range e.Content {
		if block.Type == "text" {
			return block.Text, true
		}
	}
	return "", false
}

// ResponseParser 把模型响应解析为 ScriptContent，任何解析失败都归为 ErrMalformedResponse
type ResponseParser struct{}

// NewResponseParser 创建 ResponseParser
func NewResponseParser() *ResponseParser {
	return &ResponseParser{}
}

// ParseCompletion 优先解析原始响应体，没有原始响应体时解析提取好的文本
func (p *ResponseParser) ParseCompletion(resp *llm.CompletionResponse) (*models.ScriptContent, error) {
	if resp == nil {
		return nil, malformed(errors.New("empty completion"))
	}
	if len(resp.Raw) > 0 {
		return p.Parse(resp.Raw)
	}
	return p.ParseText(resp.Text)
}

// Parse 从提供者的响应外壳中取出文本再解析；不是已知外壳时把整体当作模型文本
func (p *ResponseParser) Parse(raw []byte) (*models.ScriptContent, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var env completionEnvelope
		if err := json.Unmarshal(trimmed, &env); err == nil {
			if text, ok := env.text(); ok {
				return p.ParseText(text)
			}
		}
	}
	return p.ParseText(string(raw))
}

// ParseText 去掉 markdown 代码块标记后严格反序列化
func (p *ResponseParser) ParseText(text string) (*models.ScriptContent, error) {
	cleaned := strings.TrimSpace(fencePattern.ReplaceAllString(text, ""))
	if cleaned == "" {
		return nil, malformed(errors.New("empty completion text"))
	}

	var content models.ScriptContent
	if err := json.Unmarshal([]byte(cleaned), &content); err != nil {
		return nil, malformed(err)
	}
	if err := content.Validate(); err != nil {
		return nil, malformed(err)
	}
	return &content, nil
}

func malformed(cause error) error {
	return apperrors.NewUpstreamError(parseFailedMessage, fmt.Errorf("%w: %v", ErrMalformedResponse, cause))
}
