package llm

import (
	"context"
	"errors"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements Provider using the OpenAI Chat Completions API.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(apiKey string, model string) *OpenAIProvider {
	return &OpenAIProvider{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// NewOpenAIProviderWithBaseURL creates an OpenAI-compatible provider pointed
// at a custom endpoint, such as a regional inference gateway.
func NewOpenAIProviderWithBaseURL(apiKey, model, baseURL string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	var messages []openai.ChatCompletionMessage
	for _, msg := range withSchema(req) {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	apiReq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: float32(req.Temperature),
	}

	if req.JSONMode {
		apiReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, apiReq)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, wrapStatusError(p.Name(), apiErr.HTTPStatusCode, apiErr.Message)
		}
		return nil, wrapTransportError(p.Name(), err)
	}

	if len(resp.Choices) == 0 {
		return nil, &BackendError{Kind: KindMalformedResponse, Provider: p.Name(), Err: errors.New("no choices in response")}
	}

	return &CompletionResponse{
		Content:      resp.Choices[0].Message.Content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		Model:        resp.Model,
		FinishReason: string(resp.Choices[0].FinishReason),
		Latency:      time.Since(start),
	}, nil
}

// withSchema appends the expected response schema to the system message so
// the model knows the exact JSON shape to emit.
func withSchema(req CompletionRequest) []Message {
	if req.ResponseSchema == "" {
		return req.Messages
	}
	out := make([]Message, len(req.Messages))
	copy(out, req.Messages)
	for i, msg := range out {
		if msg.Role == RoleSystem {
			out[i].Content = msg.Content + "\n\nRespond with a single JSON object matching this schema:\n" + req.ResponseSchema
			return out
		}
	}
	return append([]Message{{Role: RoleSystem, Content: "Respond with a single JSON object matching this schema:\n" + req.ResponseSchema}}, out...)
}
