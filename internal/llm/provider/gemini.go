package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
)

const defaultGeminiURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiClient calls the generateContent endpoint of Google's Gemini API.
type GeminiClient struct {
	client *resty.Client
	apiKey string
	model  string
}

func NewGeminiClient(baseURL, apiKey, model string) *GeminiClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultGeminiURL
	}
	if strings.TrimSpace(model) == "" {
		model = "gemini-1.5-pro"
	}
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetHeader("Content-Type", "application/json")
	return &GeminiClient{client: client, apiKey: apiKey, model: model}
}

func (c *GeminiClient) Name() Name { return Google }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  map[string]any  `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *GeminiClient) Complete(ctx context.Context, req Request) (string, error) {
	body := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.User}}}},
	}
	if req.System != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}
	if req.MaxTokens > 0 {
		body.GenerationConfig = map[string]any{"maxOutputTokens": req.MaxTokens}
	}

	// decoded by hand so a garbled 200 is not reported as a transport error
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("key", c.apiKey).
		SetBody(body).
		Post(fmt.Sprintf("/models/%s:generateContent", c.model))
	if err != nil {
		return "", err
	}
	var out geminiResponse
	decodeErr := json.Unmarshal(resp.Body(), &out)
	if resp.IsError() {
		msg := resp.Status()
		if decodeErr == nil && out.Error != nil && strings.TrimSpace(out.Error.Message) != "" {
			msg = out.Error.Message
		}
		return "", fmt.Errorf("status=%d: %s", resp.StatusCode(), msg)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("%w: decode: %v", ErrMalformedResponse, decodeErr)
	}
	if len(out.Candidates) == 0 {
		return "", fmt.Errorf("%w: empty candidates", ErrMalformedResponse)
	}
	var b strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String(), nil
}
