package provider

import (
	openai "github.com/sashabaranov/go-openai"

	"github.com/agentbridge/agentbridge/internal/message"
)

// toOpenAITools converts canonical tool definitions into the go-openai
// function-calling schema shared by the GitHub/Azure, OpenRouter, and NIM
// adapters.
func toOpenAITools(tools []message.ToolDefinition) []openai.Tool {
	result := make([]openai.Tool, len(tools))
	for i, t := range tools {
		params := t.Parameters
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		}
	}
	return result
}

// toOpenAIMessages converts the canonical message list into go-openai chat
// messages, inlining image/audio parts as multi-content when present.
func toOpenAIMessages(messages []message.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case message.RoleTool:
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    m.Content,
				ToolCallID: m.ToolCallID,
			})
		case message.RoleAssistant:
			oaiMsg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Content}
			for _, tc := range m.ToolCalls {
				oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				})
			}
			out = append(out, oaiMsg)
		default:
			role := openai.ChatMessageRoleUser
			if m.Role == message.RoleSystem {
				role = openai.ChatMessageRoleSystem
			}
			oaiMsg := openai.ChatCompletionMessage{Role: role}
			if hasImage(m) {
				oaiMsg.MultiContent = toMultiContent(m)
			} else {
				oaiMsg.Content = message.FlattenContent(m)
			}
			out = append(out, oaiMsg)
		}
	}
	return out
}

func hasImage(m message.Message) bool {
	for _, p := range m.Parts {
		if p.Type == message.PartImageURL {
			return true
		}
	}
	return false
}

func toMultiContent(m message.Message) []openai.ChatMessagePart {
	var parts []openai.ChatMessagePart
	if m.Content != "" {
		parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: m.Content})
	}
	for _, p := range m.Parts {
		switch p.Type {
		case message.PartText:
			parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: p.Text})
		case message.PartImageURL:
			parts = append(parts, openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: p.URL, Detail: openai.ImageURLDetailAuto},
			})
		}
	}
	return parts
}
