// Package llm provides concrete content generators built on langchaingo
// and classifies provider transport errors for the retry policy.
package llm

import (
	"context"
	"encoding/json"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/bedrock"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/tddg/qwen-code/internal/config"
	"github.com/tddg/qwen-code/internal/genai"
)

// Generator adapts a langchaingo model to the genai.ContentGenerator
// contract. The correlation id handed to GenerateContent is threaded
// through unchanged; this adapter never mints its own.
type Generator struct {
	model llms.Model
}

var _ genai.ContentGenerator = (*Generator)(nil)

// NewGenerator creates a generator for the configured auth mode. The
// qwen-oauth and openai modes both speak the OpenAI-compatible protocol.
func NewGenerator(ctx context.Context, cfg config.Config) (*Generator, error) {
	var model llms.Model
	var err error

	switch cfg.AuthType {
	case config.AuthQwenOAuth, config.AuthOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("API key required for %s", cfg.AuthType)
		}
		model, err = openai.New(
			openai.WithToken(cfg.APIKey),
			openai.WithModel(cfg.Model),
			openai.WithBaseURL(cfg.BaseURL),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai-compatible model: %w", err)
		}

	case config.AuthOllama:
		model, err = ollama.New(
			ollama.WithModel(cfg.Model),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case config.AuthAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.APIKey),
			anthropic.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	case config.AuthBedrock:
		var loadOpts []func(*awsconfig.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.AWSRegion))
		}
		awsCfg, awsErr := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if awsErr != nil {
			return nil, fmt.Errorf("load AWS config: %w", awsErr)
		}
		client := bedrockruntime.NewFromConfig(awsCfg)
		model, err = bedrock.New(
			bedrock.WithClient(client),
			bedrock.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("create bedrock model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported auth type: %s", cfg.AuthType)
	}

	return &Generator{model: model}, nil
}

// GenerateContent performs one request/response round-trip.
func (g *Generator) GenerateContent(ctx context.Context, req *genai.GenerateContentRequest, promptID, requestID string) (*genai.GenerateContentResponse, error) {
	messages, opts, err := convertRequest(req)
	if err != nil {
		return nil, err
	}

	resp, err := g.model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}
	return convertResponse(resp), nil
}

// GenerateContentStream starts a streamed exchange. Chunks carry text
// deltas marked partial; a terminal usage-only chunk follows once the
// provider reports token accounting.
func (g *Generator) GenerateContentStream(ctx context.Context, req *genai.GenerateContentRequest, promptID, requestID string) (genai.ChunkStream, error) {
	messages, opts, err := convertRequest(req)
	if err != nil {
		return nil, err
	}
	return newChunkStream(ctx, g.model, messages, opts), nil
}

// convertRequest maps the content set and generation config onto
// langchaingo messages and call options.
func convertRequest(req *genai.GenerateContentRequest) ([]llms.MessageContent, []llms.CallOption, error) {
	var messages []llms.MessageContent

	if req.Config != nil && req.Config.SystemInstruction != nil {
		if text := req.Config.SystemInstruction.PromptText(); text != "" {
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, text))
		}
	}

	for _, c := range req.Contents {
		if c == nil {
			continue
		}
		converted, err := convertContent(c)
		if err != nil {
			return nil, nil, err
		}
		messages = append(messages, converted...)
	}

	var opts []llms.CallOption
	if req.Model != "" {
		opts = append(opts, llms.WithModel(req.Model))
	}
	if req.Config != nil {
		if req.Config.MaxOutputTokens > 0 {
			opts = append(opts, llms.WithMaxTokens(req.Config.MaxOutputTokens))
		}
		if req.Config.Temperature != nil {
			opts = append(opts, llms.WithTemperature(*req.Config.Temperature))
		}
		if tools := convertTools(req.Config.Tools); len(tools) > 0 {
			opts = append(opts, llms.WithTools(tools))
		}
	}
	return messages, opts, nil
}

// convertContent maps one turn onto langchaingo messages. Tool results
// travel as dedicated tool messages; everything else keeps its role.
func convertContent(c *genai.Content) ([]llms.MessageContent, error) {
	role := llms.ChatMessageTypeHuman
	if c.Role == genai.RoleModel {
		role = llms.ChatMessageTypeAI
	}

	var parts []llms.ContentPart
	var toolResponses []llms.ContentPart
	for _, p := range c.Parts {
		switch {
		case p == nil || p.Thought:
			// Thoughts are session-local, never sent back to the provider.
		case p.FunctionCall != nil:
			args, err := json.Marshal(p.FunctionCall.Args)
			if err != nil {
				return nil, fmt.Errorf("marshal function args: %w", err)
			}
			parts = append(parts, llms.ToolCall{
				ID:   p.FunctionCall.ID,
				Type: "function",
				FunctionCall: &llms.FunctionCall{
					Name:      p.FunctionCall.Name,
					Arguments: string(args),
				},
			})
		case p.FunctionResponse != nil:
			result, err := json.Marshal(p.FunctionResponse.Response)
			if err != nil {
				return nil, fmt.Errorf("marshal function response: %w", err)
			}
			toolResponses = append(toolResponses, llms.ToolCallResponse{
				ToolCallID: p.FunctionResponse.ID,
				Name:       p.FunctionResponse.Name,
				Content:    string(result),
			})
		case p.Text != "":
			parts = append(parts, llms.TextContent{Text: p.Text})
		}
	}

	var messages []llms.MessageContent
	if len(parts) > 0 {
		messages = append(messages, llms.MessageContent{Role: role, Parts: parts})
	}
	if len(toolResponses) > 0 {
		messages = append(messages, llms.MessageContent{Role: llms.ChatMessageTypeTool, Parts: toolResponses})
	}
	return messages, nil
}

func convertTools(decls []genai.ToolDeclaration) []llms.Tool {
	var tools []llms.Tool
	for _, decl := range decls {
		ft, ok := decl.(genai.FunctionTool)
		if !ok {
			// Builtin tools are provider-native and need no declaration.
			continue
		}
		for _, fd := range ft.Declarations {
			tools = append(tools, llms.Tool{
				Type: "function",
				Function: &llms.FunctionDefinition{
					Name:        fd.Name,
					Description: fd.Description,
					Parameters:  fd.Parameters,
				},
			})
		}
	}
	return tools
}

// convertResponse maps a langchaingo response back onto the genai model.
func convertResponse(resp *llms.ContentResponse) *genai.GenerateContentResponse {
	out := &genai.GenerateContentResponse{}
	if resp == nil || len(resp.Choices) == 0 {
		return out
	}

	for _, choice := range resp.Choices {
		var parts []*genai.Part
		if choice.Content != "" {
			parts = append(parts, genai.NewTextPart(choice.Content))
		}
		for _, tc := range choice.ToolCalls {
			if tc.FunctionCall == nil {
				continue
			}
			var args map[string]any
			_ = json.Unmarshal([]byte(tc.FunctionCall.Arguments), &args)
			parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
				ID:   tc.ID,
				Name: tc.FunctionCall.Name,
				Args: args,
			}})
		}
		candidate := &genai.Candidate{FinishReason: choice.StopReason}
		if len(parts) > 0 {
			candidate.Content = genai.NewModelContent(parts...)
		}
		out.Candidates = append(out.Candidates, candidate)
	}

	out.UsageMetadata = usageFrom(resp.Choices[0].GenerationInfo)
	return out
}

// usageFrom extracts token accounting from provider generation info.
// Providers disagree on key names; nil is returned when none report usage,
// which marks the response non-billable.
func usageFrom(info map[string]any) *genai.UsageMetadata {
	input := intAt(info, "PromptTokens", "InputTokens", "prompt_tokens", "input_tokens")
	output := intAt(info, "CompletionTokens", "OutputTokens", "completion_tokens", "output_tokens")
	if input == 0 && output == 0 {
		return nil
	}
	total := intAt(info, "TotalTokens", "total_tokens")
	if total == 0 {
		total = input + output
	}
	return &genai.UsageMetadata{
		InputTokenCount:  input,
		OutputTokenCount: output,
		TotalTokenCount:  total,
	}
}

func intAt(info map[string]any, keys ...string) int {
	for _, key := range keys {
		switch v := info[key].(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return 0
}
