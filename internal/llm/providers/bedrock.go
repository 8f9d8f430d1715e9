package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/spark-corp/redshadow/internal/llm"
	"github.com/spark-corp/redshadow/pkg/models"
)

// BedrockConfig configures a Bedrock-backed Provider.
type BedrockConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Model           string
	ContextSize     int
}

// Bedrock implements llm.Provider over AWS Bedrock's Converse API. It issues
// one non-streaming Converse call per Chat invocation; the Router owns
// retry/backoff, so this adapter does not retry internally.
type Bedrock struct {
	client      *bedrockruntime.Client
	model       string
	contextSize int
}

// NewBedrock builds a Bedrock-backed Provider.
func NewBedrock(ctx context.Context, cfg BedrockConfig) (*Bedrock, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	model := cfg.Model
	if model == "" {
		model = "anthropic.claude-3-sonnet-20240229-v1:0"
	}
	ctxSize := cfg.ContextSize
	if ctxSize <= 0 {
		ctxSize = 200_000
	}

	var awsCfg aws.Config
	var err error
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken,
			)),
		)
	} else {
		awsCfg, err = config.LoadDefaultConfig(ctx, config.WithRegion(region))
	}
	if err != nil {
		return nil, fmt.Errorf("bedrock: failed to load AWS config: %w", err)
	}

	return &Bedrock{client: bedrockruntime.NewFromConfig(awsCfg), model: model, contextSize: ctxSize}, nil
}

func (p *Bedrock) Name() string        { return "bedrock" }
func (p *Bedrock) Model() string       { return p.model }
func (p *Bedrock) ContextSize() int    { return p.contextSize }
func (p *Bedrock) SupportsTools() bool { return true }

func (p *Bedrock) HealthCheck(ctx context.Context) error {
	_, err := p.client.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(p.model),
		Messages: []types.Message{
			{Role: types.ConversationRoleUser, Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: "ping"}}},
		},
		InferenceConfig: &types.InferenceConfiguration{MaxTokens: aws.Int32(1)},
	})
	if err != nil {
		return wrapBedrockErr(err)
	}
	return nil
}

func (p *Bedrock) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	messages, system := convertBedrockMessages(req.Messages)

	in := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(p.model),
		Messages: messages,
	}
	if system != "" {
		in.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: system}}
	}
	inferCfg := &types.InferenceConfiguration{}
	if req.MaxTokens > 0 {
		maxTokens := req.MaxTokens
		if maxTokens > 1<<30 {
			maxTokens = 1 << 30
		}
		inferCfg.MaxTokens = aws.Int32(int32(maxTokens)) // #nosec G115 -- bounded above
	}
	if req.Temperature > 0 {
		inferCfg.Temperature = aws.Float32(float32(req.Temperature))
	}
	in.InferenceConfig = inferCfg
	if len(req.Tools) > 0 {
		in.ToolConfig = convertBedrockTools(req.Tools)
	}

	out, err := p.client.Converse(ctx, in)
	if err != nil {
		return llm.ChatResponse{}, wrapBedrockErr(err)
	}

	resp := llm.ChatResponse{FinishReason: string(out.StopReason)}
	if out.Usage != nil {
		resp.Usage = llm.Usage{
			PromptTokens:     int(out.Usage.InputTokens),
			CompletionTokens: int(out.Usage.OutputTokens),
			TotalTokens:      int(out.Usage.TotalTokens),
		}
	}

	msgOut, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return resp, nil
	}
	var text strings.Builder
	for _, block := range msgOut.Value.Content {
		switch b := block.(type) {
		case *types.ContentBlockMemberText:
			text.WriteString(b.Value)
		case *types.ContentBlockMemberToolUse:
			input := map[string]any{}
			if b.Value.Input != nil {
				_ = b.Value.Input.UnmarshalSmithyDocument(&input)
			}
			raw, _ := json.Marshal(input)
			resp.ToolCalls = append(resp.ToolCalls, models.ToolCall{
				ID:    aws.ToString(b.Value.ToolUseId),
				Name:  aws.ToString(b.Value.Name),
				Input: raw,
			})
		}
	}
	resp.Content = text.String()
	return resp, nil
}

func convertBedrockMessages(messages []models.Message) ([]types.Message, string) {
	var out []types.Message
	var system strings.Builder
	for _, m := range messages {
		if m.Role == models.RoleSystem {
			if system.Len() > 0 {
				system.WriteString("\n")
			}
			system.WriteString(m.Content)
			continue
		}

		var content []types.ContentBlock
		if m.Content != "" {
			content = append(content, &types.ContentBlockMemberText{Value: m.Content})
		}
		for _, tr := range m.ToolResults {
			content = append(content, &types.ContentBlockMemberToolResult{
				Value: types.ToolResultBlock{
					ToolUseId: aws.String(tr.ToolCallID),
					Content:   []types.ToolResultContentBlock{&types.ToolResultContentBlockMemberText{Value: tr.Content}},
				},
			})
		}
		for _, tc := range m.ToolCalls {
			var input any
			if len(tc.Input) > 0 {
				if err := json.Unmarshal(tc.Input, &input); err != nil {
					input = map[string]any{}
				}
			}
			content = append(content, &types.ContentBlockMemberToolUse{
				Value: types.ToolUseBlock{
					ToolUseId: aws.String(tc.ID),
					Name:      aws.String(tc.Name),
					Input:     document.NewLazyDocument(input),
				},
			})
		}
		if len(content) == 0 {
			continue
		}
		role := types.ConversationRoleUser
		if m.Role == models.RoleAssistant {
			role = types.ConversationRoleAssistant
		}
		out = append(out, types.Message{Role: role, Content: content})
	}
	return out, system.String()
}

func convertBedrockTools(tools []models.ToolSchema) *types.ToolConfiguration {
	bedrockTools := make([]types.Tool, len(tools))
	for i, t := range tools {
		var schema any
		if err := json.Unmarshal(t.Parameters, &schema); err != nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		bedrockTools[i] = &types.ToolMemberToolSpec{
			Value: types.ToolSpecification{
				Name:        aws.String(t.Name),
				Description: aws.String(t.Description),
				InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(schema)},
			},
		}
	}
	return &types.ToolConfiguration{Tools: bedrockTools}
}

// awsExceptionStatus maps the AWS exception names Bedrock returns to the HTTP
// status classify.go expects, since the SDK does not always surface the raw
// status code on the returned error.
var awsExceptionStatus = map[string]int{
	"ThrottlingException":         429,
	"TooManyRequestsException":    429,
	"ServiceUnavailableException": 503,
	"ModelTimeoutException":       504,
	"InternalServerException":     500,
	"ValidationException":        400,
	"AccessDeniedException":      403,
	"ResourceNotFoundException":  404,
}

func wrapBedrockErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	for name, status := range awsExceptionStatus {
		if strings.Contains(msg, name) {
			return &llm.ProviderError{StatusCode: status, Body: msg, Err: err}
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &llm.ProviderError{StatusCode: 0, Body: "timeout: " + msg, Err: err}
	}
	return &llm.ProviderError{StatusCode: 0, Body: msg, Err: err}
}
