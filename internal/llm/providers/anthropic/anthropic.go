// internal/llm/providers/anthropic/anthropic.go
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/Corphon/ScriptCraftAI/internal/llm"
)

// 脚本 JSON 较长，未指定时给足输出空间
const defaultMaxTokens = 4096

func init() {
	llm.Register("anthropic", func() llm.Provider {
		return &Provider{
			recommendedModels: []string{
				"claude-3-5-haiku-latest",
				"claude-3-5-sonnet-latest",
			},
			baseURL:    "https://api.anthropic.com",
			apiVersion: "2023-06-01",
		}
	})
}

type Provider struct {
	apiKey            string
	baseURL           string
	apiVersion        string
	client            *http.Client
	defaultModel      string
	recommendedModels []string
}

func (p *Provider) Initialize(config map[string]string) error {
	apiKey, exists := config["api_key"]
	if !exists || apiKey == "" {
		return errors.New("anthropic api密钥未提供")
	}

	p.apiKey = apiKey
	p.client = llm.NewHTTPClient(config)

	if model, exists := config["default_model"]; exists && model != "" {
		p.defaultModel = model
	} else {
		p.defaultModel = p.recommendedModels[0]
	}
	if baseURL, exists := config["base_url"]; exists && baseURL != "" {
		p.baseURL = strings.TrimRight(baseURL, "/")
	}
	if version, exists := config["api_version"]; exists && version != "" {
		p.apiVersion = version
	}
	return nil
}

func (p *Provider) GetName() string {
	return "Anthropic"
}

func (p *Provider) GetSupportedModels() []string {
	return p.recommendedModels
}

// Envelope messages 接口返回结构
type Envelope struct {
	ID         string `json:"id"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (p *Provider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	body := map[string]interface{}{
		"model":      model,
		"max_tokens": maxTokens,
		"messages": []map[string]string{
			{"role": "user", "content": req.Prompt},
		},
	}
	if req.Temperature > 0 {
		body["temperature"] = req.Temperature
	}
	if req.SystemPrompt != "" {
		body["system"] = req.SystemPrompt
	}

	headers := map[string]string{
		"X-Api-Key":         p.apiKey,
		"Anthropic-Version": p.apiVersion,
	}
	raw, err := llm.PostJSON(ctx, p.client, p.GetName(), p.baseURL+"/v1/messages", headers, body)
	if err != nil {
		return nil, err
	}

	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &llm.DecodeError{Provider: p.GetName(), Err: err}
	}

	var text string
	for _, block := range envelope.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}

	return &llm.CompletionResponse{
		Text:         text,
		Raw:          raw,
		FinishReason: envelope.StopReason,
		TokensUsed:   envelope.Usage.InputTokens + envelope.Usage.OutputTokens,
		PromptTokens: envelope.Usage.InputTokens,
		OutputTokens: envelope.Usage.OutputTokens,
		ModelName:    model,
		ProviderName: p.GetName(),
	}, nil
}
