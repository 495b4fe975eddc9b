// Package openai implements the generator interface over an
// OpenAI-compatible chat completions endpoint, including local servers such
// as LM Studio or Ollama via the BaseURL override.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"os"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"courserag/internal/capability"
	"courserag/internal/domain"
	"courserag/internal/generator"
)

// Config configures the chat client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// Generator calls the chat completions API with capability schemas attached
// as function tools.
type Generator struct {
	api       *goopenai.Client
	model     string
	maxTokens int
}

// New creates a new chat generator from the provided configuration.
func New(cfg Config) (*Generator, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "OPENAI_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 800
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	clientCfg := goopenai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &Generator{
		api:       goopenai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}, nil
}

// Generate sends one chat completion request. Sampling is deterministic: the
// client drops a literal zero temperature from the payload, so the smallest
// representable value is used instead.
func (g *Generator) Generate(ctx context.Context, req generator.Request) (generator.Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = g.maxTokens
	}
	chatReq := goopenai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    toChatMessages(req.Messages),
		Temperature: math.SmallestNonzeroFloat32,
		MaxTokens:   maxTokens,
	}
	for _, schema := range req.Tools {
		chatReq.Tools = append(chatReq.Tools, toTool(schema))
	}

	resp, err := g.api.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return generator.Response{}, err
	}
	if len(resp.Choices) == 0 {
		return generator.Response{}, fmt.Errorf("chat completion returned no choices")
	}

	msg := resp.Choices[0].Message
	out := generator.Response{Text: msg.Content}
	for _, tc := range msg.ToolCalls {
		if tc.Type != goopenai.ToolTypeFunction {
			continue
		}
		var args map[string]any
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			// Malformed arguments: treat as no invocation.
			continue
		}
		out.Call = &domain.CapabilityCall{Name: tc.Function.Name, Arguments: args}
		out.CallID = tc.ID
		break
	}
	return out, nil
}

func toChatMessages(messages []generator.Message) []goopenai.ChatCompletionMessage {
	out := make([]goopenai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case generator.RoleCapability:
			out = append(out, goopenai.ChatCompletionMessage{
				Role:       goopenai.ChatMessageRoleTool,
				Content:    m.Content,
				ToolCallID: m.CallID,
			})
		case generator.RoleAssistant:
			cm := goopenai.ChatCompletionMessage{
				Role:    goopenai.ChatMessageRoleAssistant,
				Content: m.Content,
			}
			if m.Call != nil {
				args, _ := json.Marshal(m.Call.Arguments)
				cm.ToolCalls = []goopenai.ToolCall{{
					ID:   m.CallID,
					Type: goopenai.ToolTypeFunction,
					Function: goopenai.FunctionCall{
						Name:      m.Call.Name,
						Arguments: string(args),
					},
				}}
			}
			out = append(out, cm)
		case generator.RoleSystem:
			out = append(out, goopenai.ChatCompletionMessage{
				Role:    goopenai.ChatMessageRoleSystem,
				Content: m.Content,
			})
		default:
			out = append(out, goopenai.ChatCompletionMessage{
				Role:    goopenai.ChatMessageRoleUser,
				Content: m.Content,
			})
		}
	}
	return out
}

func toTool(schema capability.Schema) goopenai.Tool {
	props := make(map[string]jsonschema.Definition, len(schema.Properties))
	for name, p := range schema.Properties {
		props[name] = jsonschema.Definition{
			Type:        jsonschema.DataType(p.Type),
			Description: p.Description,
		}
	}
	return goopenai.Tool{
		Type: goopenai.ToolTypeFunction,
		Function: &goopenai.FunctionDefinition{
			Name:        schema.Name,
			Description: schema.Description,
			Parameters: jsonschema.Definition{
				Type:       jsonschema.Object,
				Properties: props,
				Required:   schema.Required,
			},
		},
	}
}
