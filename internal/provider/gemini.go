package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/agentbridge/agentbridge/internal/message"
)

// GeminiConfig configures the Gemini adapter.
type GeminiConfig struct {
	APIKey       string
	DefaultModel string
}

// GeminiAdapter speaks Gemini's native streaming protocol (not SSE). System
// messages are placed in GenerateContentConfig.SystemInstruction for models
// that support it; gemma-family models (those whose name contains "gemma")
// do not accept system_instruction, so for those the adapter prepends the
// system text to the first user message instead.
type GeminiAdapter struct {
	client       *genai.Client
	defaultModel string
	retrier      retrier
}

func NewGeminiAdapter(ctx context.Context, cfg GeminiConfig) (*GeminiAdapter, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, NewProviderError("gemini", cfg.DefaultModel, err)
	}
	return &GeminiAdapter{client: client, defaultModel: cfg.DefaultModel, retrier: newRetrier(3, time.Second)}, nil
}

func (a *GeminiAdapter) Name() string                   { return "gemini" }
func (a *GeminiAdapter) Available() bool                { return a.client != nil }
func (a *GeminiAdapter) SupportsTools(model string) bool { return true }
func (a *GeminiAdapter) SupportedModels() []string {
	return []string{"gemini-2.0-flash", "gemini-1.5-pro", "gemini-1.5-flash", "gemma-2-27b-it"}
}

// isGemmaFamily reports whether a model name's substring match excludes it
// from Gemini's separate system_instruction field (spec §4.2.5).
func isGemmaFamily(model string) bool {
	return strings.Contains(strings.ToLower(model), "gemma")
}

func (a *GeminiAdapter) Stream(ctx context.Context, messages []message.Message, model string, tools []message.ToolDefinition, params Params) (<-chan *message.StreamChunk, error) {
	if model == "" {
		model = a.defaultModel
	}

	contents, systemText := convertGeminiMessages(messages, isGemmaFamily(model))

	config := &genai.GenerateContentConfig{}
	if systemText != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: systemText}}}
	}
	if params.Temperature != nil {
		t := float32(*params.Temperature)
		config.Temperature = &t
	}
	if params.TopP != nil {
		tp := float32(*params.TopP)
		config.TopP = &tp
	}
	if params.MaxTokens > 0 {
		config.MaxOutputTokens = int32(params.MaxTokens)
	}
	if len(tools) > 0 {
		config.Tools = []*genai.Tool{convertGeminiTools(tools)}
		config.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: genai.FunctionCallingConfigModeAuto},
		}
	}

	out := make(chan *message.StreamChunk)
	go a.pump(ctx, model, contents, config, out)
	return out, nil
}

func (a *GeminiAdapter) pump(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig, out chan<- *message.StreamChunk) {
	defer close(out)

	sawToolCall := false
	err := a.retrier.do(ctx, IsRetryable, func() error {
		for resp, err := range a.client.Models.GenerateContentStream(ctx, model, contents, config) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if err != nil {
				return NewProviderError("gemini", model, err)
			}
			if resp == nil {
				continue
			}
			for _, cand := range resp.Candidates {
				if cand == nil || cand.Content == nil {
					continue
				}
				for _, part := range cand.Content.Parts {
					if part == nil {
						continue
					}
					if part.Text != "" {
						out <- &message.StreamChunk{Model: model, Choices: []message.Choice{{Delta: message.Delta{Content: part.Text}}}}
					}
					if part.FunctionCall != nil {
						sawToolCall = true
						args, jerr := json.Marshal(part.FunctionCall.Args)
						if jerr != nil {
							args = []byte("{}")
						}
						out <- &message.StreamChunk{Model: model, Choices: []message.Choice{{Delta: message.Delta{
							ToolCalls: []message.ToolCallDelta{{ID: uuid.NewString(), Name: part.FunctionCall.Name, Arguments: string(args)}},
						}}}}
					}
				}
			}
		}
		return nil
	})
	if err != nil {
		out <- &message.StreamChunk{Model: model, Err: err}
		return
	}

	finish := message.FinishStop
	if sawToolCall {
		finish = message.FinishToolCalls
	}
	out <- &message.StreamChunk{Model: model, Choices: []message.Choice{{FinishReason: finish}}}
}

// convertGeminiMessages builds the Gemini contents array, mapping assistant
// -> model and tool -> user per spec §4.2.5. When gemmaFallback is true
// (the target model doesn't accept system_instruction), the system text is
// prepended to the first user message instead of being returned separately.
func convertGeminiMessages(messages []message.Message, gemmaFallback bool) ([]*genai.Content, string) {
	var systemParts []string
	var contents []*genai.Content
	firstUserIdx := -1

	for _, m := range messages {
		if m.Role == message.RoleSystem {
			systemParts = append(systemParts, message.FlattenContent(m))
			continue
		}

		c := &genai.Content{}
		switch m.Role {
		case message.RoleAssistant:
			c.Role = genai.RoleModel
			if m.Content != "" {
				c.Parts = append(c.Parts, &genai.Part{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				var args map[string]any
				_ = json.Unmarshal(tc.Arguments, &args)
				c.Parts = append(c.Parts, &genai.Part{FunctionCall: &genai.FunctionCall{Name: tc.Name, Args: args}})
			}
		case message.RoleTool:
			c.Role = genai.RoleUser
			var result map[string]any
			if err := json.Unmarshal([]byte(m.Content), &result); err != nil {
				result = map[string]any{"result": m.Content}
			}
			c.Parts = append(c.Parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{Name: m.Name, Response: result}})
		default:
			c.Role = genai.RoleUser
			for _, p := range m.Parts {
				switch p.Type {
				case message.PartText:
					c.Parts = append(c.Parts, &genai.Part{Text: p.Text})
				case message.PartImageURL:
					if part := decodeDataURIPart(p.URL); part != nil {
						c.Parts = append(c.Parts, part)
					}
				}
			}
			if len(c.Parts) == 0 {
				c.Parts = append(c.Parts, &genai.Part{Text: m.Content})
			}
		}

		if c.Role == genai.RoleUser && firstUserIdx == -1 {
			firstUserIdx = len(contents)
		}
		contents = append(contents, c)
	}

	system := strings.Join(systemParts, "\n\n")
	if system == "" {
		return contents, ""
	}
	if !gemmaFallback {
		return contents, system
	}

	prefix := "[system instruction] " + system + "\n\n"
	if firstUserIdx >= 0 && len(contents[firstUserIdx].Parts) > 0 && contents[firstUserIdx].Parts[0].Text != "" {
		contents[firstUserIdx].Parts[0].Text = prefix + contents[firstUserIdx].Parts[0].Text
	} else {
		contents = append([]*genai.Content{{Role: genai.RoleUser, Parts: []*genai.Part{{Text: prefix}}}}, contents...)
	}
	return contents, ""
}

func decodeDataURIPart(uri string) *genai.Part {
	if !strings.HasPrefix(uri, "data:") {
		return &genai.Part{FileData: &genai.FileData{FileURI: uri}}
	}
	comma := strings.IndexByte(uri, ',')
	if comma < 0 {
		return nil
	}
	header := uri[len("data:"):comma]
	mime := strings.SplitN(header, ";", 2)[0]
	data, err := base64.StdEncoding.DecodeString(uri[comma+1:])
	if err != nil {
		return nil
	}
	return &genai.Part{InlineData: &genai.Blob{MIMEType: mime, Data: data}}
}

func convertGeminiTools(tools []message.ToolDefinition) *genai.Tool {
	decls := make([]*genai.FunctionDeclaration, len(tools))
	for i, t := range tools {
		decls[i] = &genai.FunctionDeclaration{Name: t.Name, Description: t.Description, Parameters: toGeminiSchema(t.Parameters)}
	}
	return &genai.Tool{FunctionDeclarations: decls}
}

func toGeminiSchema(params map[string]any) *genai.Schema {
	b, err := json.Marshal(params)
	if err != nil {
		return &genai.Schema{Type: genai.TypeObject}
	}
	var schema genai.Schema
	if err := json.Unmarshal(b, &schema); err != nil {
		return &genai.Schema{Type: genai.TypeObject}
	}
	return &schema
}
