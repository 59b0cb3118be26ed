package tool

import (
	"context"
	"encoding/json"
	"fmt"
)

// imageGenerateArgs is the generateImage tool's argument shape.
type imageGenerateArgs struct {
	Prompt string `json:"prompt"`
}

// GenerateImageHandler returns a placeholder data-URI in place of a real
// image-generation backend (Cloudflare Workers AI in the source system) —
// per scope, the auxiliary tools' real implementations are out of scope;
// only their documented contract is honored here.
type GenerateImageHandler struct{}

func (GenerateImageHandler) Name() string        { return "generateImage" }
func (GenerateImageHandler) Description() string { return "Generate an image from a text prompt." }
func (GenerateImageHandler) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"prompt": map[string]any{"type": "string"}},
		"required":   []string{"prompt"},
	}
}

func (GenerateImageHandler) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a imageGenerateArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("missing prompt: %w", err)
	}
	if a.Prompt == "" {
		return "", fmt.Errorf("missing prompt")
	}
	placeholder := "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNk+A8AAQUBAScY42YAAAAASUVORK5CYII="
	out, _ := json.Marshal(map[string]string{"data_uri": placeholder})
	return string(out), nil
}
