package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/spark-corp/redshadow/internal/llm"
	"github.com/spark-corp/redshadow/pkg/models"
)

// OpenAIConfig configures an OpenAI-backed Provider.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	ContextSize int
}

// OpenAI implements llm.Provider over the OpenAI Chat Completions API.
type OpenAI struct {
	client      *openai.Client
	model       string
	contextSize int
}

// NewOpenAI builds an OpenAI-backed Provider.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o"
	}
	ctxSize := cfg.ContextSize
	if ctxSize <= 0 {
		ctxSize = 128_000
	}
	return &OpenAI{client: openai.NewClientWithConfig(clientCfg), model: model, contextSize: ctxSize}, nil
}

func (p *OpenAI) Name() string        { return "openai" }
func (p *OpenAI) Model() string       { return p.model }
func (p *OpenAI) ContextSize() int    { return p.contextSize }
func (p *OpenAI) SupportsTools() bool { return true }

func (p *OpenAI) HealthCheck(ctx context.Context) error {
	_, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     p.model,
		MaxTokens: 1,
		Messages:  []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "ping"}},
	})
	if err != nil {
		return wrapOpenAIErr(err)
	}
	return nil
}

func (p *OpenAI) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	messages, err := convertOpenAIMessages(req.Messages)
	if err != nil {
		return llm.ChatResponse{}, err
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		chatReq.Temperature = float32(req.Temperature)
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = convertOpenAITools(req.Tools)
	}

	completion, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return llm.ChatResponse{}, wrapOpenAIErr(err)
	}
	if len(completion.Choices) == 0 {
		return llm.ChatResponse{}, &llm.ProviderError{StatusCode: 502, Body: "openai: empty choices"}
	}

	choice := completion.Choices[0]
	resp := llm.ChatResponse{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Usage: llm.Usage{
			PromptTokens:     completion.Usage.PromptTokens,
			CompletionTokens: completion.Usage.CompletionTokens,
			TotalTokens:      completion.Usage.TotalTokens,
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, models.ToolCall{
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Input: json.RawMessage(tc.Function.Arguments),
		})
	}
	return resp, nil
}

func convertOpenAIMessages(messages []models.Message) ([]openai.ChatCompletionMessage, error) {
	var out []openai.ChatCompletionMessage
	for _, m := range messages {
		switch m.Role {
		case models.RoleSystem:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: m.Content})
		case models.RoleAssistant:
			msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Content}
			for _, tc := range m.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Input),
					},
				})
			}
			out = append(out, msg)
		case models.RoleTool:
			for _, tr := range m.ToolResults {
				out = append(out, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    tr.Content,
					ToolCallID: tr.ToolCallID,
				})
			}
		default:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Content})
		}
	}
	return out, nil
}

func convertOpenAITools(tools []models.ToolSchema) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  json.RawMessage(t.Parameters),
			},
		})
	}
	return out
}

func wrapOpenAIErr(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &llm.ProviderError{StatusCode: apiErr.HTTPStatusCode, Body: fmt.Sprintf("%v", apiErr.Message), Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &llm.ProviderError{StatusCode: reqErr.HTTPStatusCode, Body: reqErr.Error(), Err: err}
	}
	return &llm.ProviderError{StatusCode: 0, Body: err.Error(), Err: err}
}
