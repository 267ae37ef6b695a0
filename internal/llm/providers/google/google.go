// internal/llm/providers/google/google.go
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Corphon/ScriptCraftAI/internal/llm"
)

func init() {
	llm.Register("google", func() llm.Provider {
		return &Provider{
			recommendedModels: []string{
				"gemini-2.0-flash",
				"gemini-1.5-flash",
				"gemini-1.5-pro",
			},
			baseURL: "https://generativelanguage.googleapis.com/v1beta",
		}
	})
}

type Provider struct {
	apiKey            string
	baseURL           string
	client            *http.Client
	defaultModel      string
	recommendedModels []string
}

func (p *Provider) Initialize(config map[string]string) error {
	apiKey, exists := config["api_key"]
	if !exists || apiKey == "" {
		return errors.New("google gemini api密钥未提供")
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
	return nil
}

func (p *Provider) GetName() string {
	return "Google Gemini"
}

func (p *Provider) GetSupportedModels() []string {
	return p.recommendedModels
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents          []content              `json:"contents"`
	SystemInstruction *content               `json:"systemInstruction,omitempty"`
	GenerationConfig  map[string]interface{} `json:"generationConfig,omitempty"`
}

// Envelope generateContent 返回结构
type Envelope struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

func (p *Provider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	body := generateRequest{
		Contents:         []content{{Role: "user", Parts: []part{{Text: req.Prompt}}}},
		GenerationConfig: map[string]interface{}{},
	}
	if req.SystemPrompt != "" {
		body.SystemInstruction = &content{Parts: []part{{Text: req.SystemPrompt}}}
	}
	if req.Temperature > 0 {
		body.GenerationConfig["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		body.GenerationConfig["maxOutputTokens"] = req.MaxTokens
	}
	if req.JSONOutput {
		body.GenerationConfig["responseMimeType"] = "application/json"
	}

	apiURL := fmt.Sprintf("%s/models/%s:generateContent", p.baseURL, model)
	headers := map[string]string{"X-Goog-Api-Key": p.apiKey}

	raw, err := llm.PostJSON(ctx, p.client, p.GetName(), apiURL, headers, body)
	if err != nil {
		return nil, err
	}

	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &llm.DecodeError{Provider: p.GetName(), Err: err}
	}
	if len(envelope.Candidates) == 0 {
		return nil, &llm.DecodeError{Provider: p.GetName(), Err: errors.New("google gemini未返回任何结果")}
	}

	var sb strings.Builder
	for _, pt := range envelope.Candidates[0].Content.Parts {
		sb.WriteString(pt.Text)
	}

	return &llm.CompletionResponse{
		Text:         sb.String(),
		Raw:          raw,
		FinishReason: envelope.Candidates[0].FinishReason,
		TokensUsed:   envelope.UsageMetadata.TotalTokenCount,
		PromptTokens: envelope.UsageMetadata.PromptTokenCount,
		OutputTokens: envelope.UsageMetadata.CandidatesTokenCount,
		ModelName:    model,
		ProviderName: p.GetName(),
	}, nil
}
