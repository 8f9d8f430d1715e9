// Package providers adapts concrete LLM SDKs to the llm.Provider interface
// consumed by the Router.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/spark-corp/redshadow/internal/llm"
	"github.com/spark-corp/redshadow/pkg/models"
)

// AnthropicConfig configures an Anthropic-backed Provider.
type AnthropicConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	ContextSize int
}

// Anthropic implements llm.Provider over the Anthropic Messages API. The
// Router drives retry/failover itself, so Chat issues exactly one
// non-streaming call per invocation rather than managing its own retry loop.
type Anthropic struct {
	client      anthropic.Client
	model       string
	contextSize int
}

// NewAnthropic builds an Anthropic-backed Provider.
func NewAnthropic(cfg AnthropicConfig) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	ctxSize := cfg.ContextSize
	if ctxSize <= 0 {
		ctxSize = 200_000
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Anthropic{client: anthropic.NewClient(opts...), model: model, contextSize: ctxSize}, nil
}

func (p *Anthropic) Name() string        { return "anthropic" }
func (p *Anthropic) Model() string       { return p.model }
func (p *Anthropic) ContextSize() int    { return p.contextSize }
func (p *Anthropic) SupportsTools() bool { return true }

func (p *Anthropic) HealthCheck(ctx context.Context) error {
	_, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: 1,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock("ping"))},
	})
	if err != nil {
		return wrapAnthropicErr(err)
	}
	return nil
}

func (p *Anthropic) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	messages, system, err := convertAnthropicMessages(req.Messages)
	if err != nil {
		return llm.ChatResponse{}, err
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: system}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}
	if len(req.Tools) > 0 {
		tools, err := convertAnthropicTools(req.Tools)
		if err != nil {
			return llm.ChatResponse{}, err
		}
		params.Tools = tools
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return llm.ChatResponse{}, wrapAnthropicErr(err)
	}

	resp := llm.ChatResponse{
		FinishReason: string(msg.StopReason),
		Usage: llm.Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}
	var text strings.Builder
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			tu := block.AsToolUse()
			input, _ := json.Marshal(tu.Input)
			resp.ToolCalls = append(resp.ToolCalls, models.ToolCall{ID: tu.ID, Name: tu.Name, Input: input})
		}
	}
	resp.Content = text.String()
	return resp, nil
}

func convertAnthropicMessages(messages []models.Message) ([]anthropic.MessageParam, string, error) {
	var out []anthropic.MessageParam
	var system strings.Builder
	for _, m := range messages {
		if m.Role == models.RoleSystem {
			if system.Len() > 0 {
				system.WriteString("\n")
			}
			system.WriteString(m.Content)
			continue
		}

		var content []anthropic.ContentBlockParamUnion
		if m.Content != "" {
			content = append(content, anthropic.NewTextBlock(m.Content))
		}
		for _, tr := range m.ToolResults {
			content = append(content, anthropic.NewToolResultBlock(tr.ToolCallID, tr.Content, tr.IsError))
		}
		for _, tc := range m.ToolCalls {
			var input map[string]any
			if len(tc.Input) > 0 {
				if err := json.Unmarshal(tc.Input, &input); err != nil {
					return nil, "", fmt.Errorf("anthropic: invalid tool call input for %s: %w", tc.Name, err)
				}
			}
			content = append(content, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
		}
		if len(content) == 0 {
			continue
		}
		if m.Role == models.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(content...))
		} else {
			out = append(out, anthropic.NewUserMessage(content...))
		}
	}
	return out, system.String(), nil
}

func convertAnthropicTools(tools []models.ToolSchema) ([]anthropic.ToolUnionParam, error) {
	var out []anthropic.ToolUnionParam
	for _, t := range tools {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(t.Parameters, &schema); err != nil {
			return nil, fmt.Errorf("anthropic: invalid schema for %s: %w", t.Name, err)
		}
		param := anthropic.ToolUnionParamOfTool(schema, t.Name)
		if param.OfTool != nil {
			param.OfTool.Description = anthropic.String(t.Description)
		}
		out = append(out, param)
	}
	return out, nil
}

func wrapAnthropicErr(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &llm.ProviderError{StatusCode: apiErr.StatusCode, Body: apiErr.RawJSON(), Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &llm.ProviderError{StatusCode: 0, Body: "timeout: " + err.Error(), Err: err}
	}
	return &llm.ProviderError{StatusCode: 0, Body: err.Error(), Err: err}
}
