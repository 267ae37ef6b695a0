// internal/llm/providers/qwen/qwen.go
package qwen

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/Corphon/ScriptCraftAI/internal/llm"
)

const generationPath = "/services/aigc/text-generation/generation"

func init() {
	llm.Register("qwen", func() llm.Provider {
		return &Provider{
			recommendedModels: []string{
				"qwen-plus",
				"qwen-max",
				"qwen-turbo",
			},
			baseURL: "https://dashscope.aliyuncs.com/api/v1",
		}
	})
}

// Provider 通义千问 DashScope 原生接口
type Provider struct {
	apiKey            string
	baseURL           string
	client            *http.Client
	defaultModel      string
	recommendedModels []string
	availableModels   []string
	region            string // 阿里云区域
}

func (p *Provider) Initialize(config map[string]string) error {
	apiKey, exists := config["api_key"]
	if !exists || apiKey == "" {
		return errors.New("千问(Qwen) API密钥未提供")
	}

	p.apiKey = apiKey
	p.client = llm.NewHTTPClient(config)

	if model, exists := config["default_model"]; exists && model != "" {
		p.defaultModel = model
	} else {
		p.defaultModel = "qwen-plus"
	}

	if baseURL, exists := config["base_url"]; exists && baseURL != "" {
		p.baseURL = strings.TrimRight(baseURL, "/")
	}

	if region, exists := config["region"]; exists && region != "" {
		p.region = region
	}

	// 如果配置中包含自定义模型列表
	if customModels, exists := config["custom_models"]; exists && customModels != "" {
		var models []string
		if err := json.Unmarshal([]byte(customModels), &models); err == nil && len(models) > 0 {
			p.availableModels = models
		}
	}

	return nil
}

func (p *Provider) GetName() string {
	return "Qwen"
}

func (p *Provider) GetSupportedModels() []string {
	if len(p.availableModels) > 0 {
		return p.availableModels
	}
	return p.recommendedModels
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type generationRequest struct {
	Model string `json:"model"`
	Input struct {
		Messages []message `json:"messages"`
	} `json:"input"`
	Parameters map[string]interface{} `json:"parameters"`
}

// Envelope DashScope 返回结构，文本位于 output.choices[0].message.content
type Envelope struct {
	RequestID string `json:"request_id"`
	Output    struct {
		Text    string `json:"text"`
		Choices []struct {
			Message struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	} `json:"output"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

func (p *Provider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	var body generationRequest
	body.Model = model
	if req.SystemPrompt != "" {
		body.Input.Messages = append(body.Input.Messages, message{Role: "system", Content: req.SystemPrompt})
	}
	body.Input.Messages = append(body.Input.Messages, message{Role: "user", Content: req.Prompt})

	// result_format=message 让结果落在 choices 中
	body.Parameters = map[string]interface{}{"result_format": "message"}
	if req.Temperature > 0 {
		body.Parameters["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		body.Parameters["max_tokens"] = req.MaxTokens
	}

	headers := map[string]string{"Authorization": "Bearer " + p.apiKey}
	if p.region != "" {
		headers["X-DashScope-Region"] = p.region
	}

	raw, err := llm.PostJSON(ctx, p.client, p.GetName(), p.baseURL+generationPath, headers, body)
	if err != nil {
		return nil, err
	}

	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &llm.DecodeError{Provider: p.GetName(), Err: err}
	}

	text := envelope.Output.Text
	finishReason := ""
	if len(envelope.Output.Choices) > 0 {
		finishReason = envelope.Output.Choices[0].FinishReason
		if text == "" {
			text = envelope.Output.Choices[0].Message.Content
		}
	}

	return &llm.CompletionResponse{
		Text:         text,
		Raw:          raw,
		FinishReason: finishReason,
		TokensUsed:   envelope.Usage.TotalTokens,
		PromptTokens: envelope.Usage.InputTokens,
		OutputTokens: envelope.Usage.OutputTokens,
		ModelName:    model,
		ProviderName: p.GetName(),
	}, nil
}
