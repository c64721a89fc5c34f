// Package anthropic provides a model wrapper for the Anthropic Claude API.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
	"github.com/hupe1980/ghwhisper/core"
	"github.com/hupe1980/ghwhisper/model"
)

// jsonInstruction is appended to the system prompt in JSON mode since the
// Messages API has no response_format switch.
const jsonInstruction = "Respond with a single JSON object only. Do not wrap it in code fences or add any other text."

// Options configures the Anthropic model adapter (temperature, model id,
// max tokens, API key).
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Model wraps the Anthropic Messages API behind the generic model.Model interface.
type Model struct {
	client *anthropic.Client
	opts   Options
}

// NewModel creates a new Anthropic model using the official client
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Model{
		client: &client,
		opts:   opts,
	}
}

// NewModelFromClient creates a new Anthropic model from an existing client
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{
		client: client,
		opts:   opts,
	}
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.2,
		MaxTokens:   4096,
	}
}

// Generate adapts the Messages API (with tool calling) into model.Response
// events. Streaming requests are served from a single completion whose text
// is surfaced as one partial chunk before the final response.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := anthropic.MessageNewParams{
			Model:       m.opts.Model,
			Messages:    buildMessages(req.Messages),
			MaxTokens:   m.opts.MaxTokens,
			Temperature: anthropic.Float(m.opts.Temperature),
		}

		if system := systemBlocks(req); len(system) > 0 {
			params.System = system
		}

		if len(req.Tools) > 0 {
			params.Tools = buildTools(req.Tools)
		}

		resp, err := m.client.Messages.New(ctx, params)
		if err != nil {
			errCh <- fmt.Errorf("anthropic api error: %w", err)
			return
		}

		var (
			text  string
			calls []core.ToolCall
		)
		for _, block := range resp.Content {
			switch block.Type {
			case "text":
				text += block.AsText().Text
			case "tool_use":
				toolBlock := block.AsToolUse()
				args := ""
				if toolBlock.Input != nil {
					if argsBytes, err := json.Marshal(toolBlock.Input); err == nil {
						args = string(argsBytes)
					}
				}
				calls = append(calls, core.ToolCall{
					ID:        toolBlock.ID,
					Name:      toolBlock.Name,
					Arguments: model.DecodeArguments(args),
				})
			}
		}

		finishReason := "stop"
		if resp.StopReason != "" {
			finishReason = string(resp.StopReason)
		}

		if req.Stream && text != "" {
			out <- model.Response{ID: resp.ID, Partial: true, Text: text}
		}

		out <- model.Response{
			ID:           resp.ID,
			Text:         text,
			ToolCalls:    calls,
			FinishReason: finishReason,
			Usage: &core.TokenUsage{
				PromptTokens:     int(resp.Usage.InputTokens),
				CompletionTokens: int(resp.Usage.OutputTokens),
				TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
			},
		}
	}()

	return out, errCh
}

// systemBlocks collects the instructions, inline system messages and the
// JSON-mode suffix.
func systemBlocks(req model.Request) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam
	if req.Instructions != "" {
		blocks = append(blocks, anthropic.TextBlockParam{Text: req.Instructions})
	}
	for _, msg := range req.Messages {
		if sm, ok := msg.(core.SystemMessage); ok && sm.Text != "" {
			blocks = append(blocks, anthropic.TextBlockParam{Text: sm.Text})
		}
	}
	if req.JSON {
		blocks = append(blocks, anthropic.TextBlockParam{Text: jsonInstruction})
	}
	return blocks
}

// buildMessages converts history to Anthropic messages. Tool results travel
// in user turns; consecutive results are grouped into a single user message
// directly following the assistant turn that requested them.
func buildMessages(history []core.Message) []anthropic.MessageParam {
	var (
		messages    []anthropic.MessageParam
		toolResults []anthropic.ContentBlockParamUnion
	)

	flush := func() {
		if len(toolResults) > 0 {
			messages = append(messages, anthropic.NewUserMessage(toolResults...))
			toolResults = nil
		}
	}

	for _, msg := range history {
		switch m := msg.(type) {
		case core.SystemMessage:
			continue
		case core.ToolMessage:
			toolResults = append(toolResults, anthropic.NewToolResultBlock(m.CallID, m.Text, false))
		case core.HumanMessage:
			flush()
			if m.Text != "" {
				messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Text)))
			}
		case core.AIMessage:
			flush()
			if content := assistantContent(m); len(content) > 0 {
				messages = append(messages, anthropic.NewAssistantMessage(content...))
			}
		}
	}
	flush()

	// The Messages API rejects system-only conversations.
	if len(messages) == 0 {
		messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock("Proceed.")))
	}

	return messages
}

func assistantContent(m core.AIMessage) []anthropic.ContentBlockParamUnion {
	var content []anthropic.ContentBlockParamUnion
	if m.Text != "" {
		content = append(content, anthropic.NewTextBlock(m.Text))
	}
	for _, tc := range m.ToolCalls {
		input := tc.Arguments
		if input == nil {
			input = map[string]any{}
		}
		content = append(content, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
	}
	return content
}

// buildTools converts tool definitions to Anthropic tool format
func buildTools(tools []model.ToolDefinition) []anthropic.ToolUnionParam {
	anthropicTools := make([]anthropic.ToolUnionParam, len(tools))

	for i, tool := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}

		if params := tool.Function.Parameters; params != nil {
			if properties, exists := params["properties"]; exists {
				inputSchema.Properties = properties
			}
			inputSchema.Required = requiredFields(params["required"])
		}

		toolParam := anthropic.ToolUnionParamOfTool(inputSchema, tool.Function.Name)
		if tool.Function.Description != "" && toolParam.OfTool != nil {
			toolParam.OfTool.Description = anthropic.String(tool.Function.Description)
		}
		anthropicTools[i] = toolParam
	}

	return anthropicTools
}

func requiredFields(v any) []string {
	switch req := v.(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          string(m.opts.Model),
		Provider:      "anthropic",
		SupportsTools: true,
	}
}
