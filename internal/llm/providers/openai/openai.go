// internal/llm/providers/openai/openai.go
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Corphon/ScriptCraftAI/internal/llm"
)

// flavor 兼容 OpenAI chat/completions 协议的一家服务
type flavor struct {
	name         string
	displayName  string
	baseURL      string
	defaultModel string
	models       []string
	// authHeader 为空时使用 Authorization: Bearer
	authHeader   string
	extraHeaders map[string]string
}

var flavors = []flavor{
	{
		name:         "openai",
		displayName:  "OpenAI",
		baseURL:      "https://api.openai.com/v1",
		defaultModel: "gpt-4o-mini",
		models:       []string{"gpt-4o-mini", "gpt-4o", "gpt-4.1-mini"},
	},
	{
		name:         "deepseek",
		displayName:  "DeepSeek",
		baseURL:      "https://api.deepseek.com/v1",
		defaultModel: "deepseek-chat",
		models:       []string{"deepseek-chat", "deepseek-reasoner"},
	},
	{
		name:         "glm",
		displayName:  "GLM",
		baseURL:      "https://open.bigmodel.cn/api/paas/v4",
		defaultModel: "glm-4-flash",
		models:       []string{"glm-4-flash", "glm-4-plus", "glm-4-air"},
	},
	{
		name:         "openrouter",
		displayName:  "OpenRouter",
		baseURL:      "https://openrouter.ai/api/v1",
		defaultModel: "openai/gpt-4o-mini",
		models:       []string{"openai/gpt-4o-mini", "anthropic/claude-3.5-haiku", "google/gemini-2.0-flash-001"},
		extraHeaders: map[string]string{"X-Title": "ScriptCraft AI"},
	},
	{
		name:         "grok",
		displayName:  "Grok",
		baseURL:      "https://api.x.ai/v1",
		defaultModel: "grok-3",
		models:       []string{"grok-4", "grok-3", "grok-3-mini"},
	},
	{
		name:         "githubmodels",
		displayName:  "GitHub Models",
		baseURL:      "https://models.inference.ai.azure.com",
		defaultModel: "gpt-4o-mini",
		models:       []string{"gpt-4o-mini", "gpt-4o", "Meta-Llama-3.1-70B-Instruct"},
		authHeader:   "api-key",
	},
}

func init() {
	for _, f := range flavors {
		f := f
		llm.Register(f.name, func() llm.Provider {
			return &Provider{flavor: f, baseURL: f.baseURL}
		})
	}
}

// Provider OpenAI 兼容接口的通用实现
type Provider struct {
	flavor          flavor
	apiKey          string
	baseURL         string
	client          *http.Client
	defaultModel    string
	availableModels []string
}

func (p *Provider) Initialize(config map[string]string) error {
	apiKey, exists := config["api_key"]
	if !exists || apiKey == "" {
		return fmt.Errorf("%s API密钥未提供", p.flavor.displayName)
	}

	p.apiKey = apiKey
	p.client = llm.NewHTTPClient(config)

	if model, exists := config["default_model"]; exists && model != "" {
		p.defaultModel = model
	} else {
		p.defaultModel = p.flavor.defaultModel
	}

	if baseURL, exists := config["base_url"]; exists && baseURL != "" {
		p.baseURL = strings.TrimRight(baseURL, "/")
	}

	if customModels, exists := config["custom_models"]; exists && customModels != "" {
		var models []string
		if err := json.Unmarshal([]byte(customModels), &models); err == nil && len(models) > 0 {
			p.availableModels = models
		}
	}
	return nil
}

func (p *Provider) GetName() string {
	return p.flavor.displayName
}

func (p *Provider) GetSupportedModels() []string {
	if len(p.availableModels) > 0 {
		return p.availableModels
	}
	return p.flavor.models
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float32           `json:"temperature,omitempty"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

// Envelope chat/completions 返回结构，文本位于 choices[0].message.content
type Envelope struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (p *Provider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	body := chatRequest{
		Model:       model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.SystemPrompt != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: req.Prompt})
	if req.JSONOutput {
		body.ResponseFormat = map[string]string{"type": "json_object"}
	}

	headers := make(map[string]string, len(p.flavor.extraHeaders)+1)
	for k, v := range p.flavor.extraHeaders {
		headers[k] = v
	}
	if p.flavor.authHeader != "" {
		headers[p.flavor.authHeader] = p.apiKey
	} else {
		headers["Authorization"] = "Bearer " + p.apiKey
	}

	raw, err := llm.PostJSON(ctx, p.client, p.GetName(), p.baseURL+"/chat/completions", headers, body)
	if err != nil {
		return nil, err
	}

	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &llm.DecodeError{Provider: p.GetName(), Err: err}
	}
	if len(envelope.Choices) == 0 {
		return nil, &llm.DecodeError{Provider: p.GetName(), Err: errors.New("响应中没有 choices")}
	}

	choice := envelope.Choices[0]
	return &llm.CompletionResponse{
		Text:         choice.Message.Content,
		Raw:          raw,
		FinishReason: choice.FinishReason,
		TokensUsed:   envelope.Usage.TotalTokens,
		PromptTokens: envelope.Usage.PromptTokens,
		OutputTokens: envelope.Usage.CompletionTokens,
		ModelName:    model,
		ProviderName: p.GetName(),
	}, nil
}
