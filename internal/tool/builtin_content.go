package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// FormatConvertHandler converts plain text between a small set of simple
// formats (text, markdown, upper/lower case) without a real document
// conversion backend.
type FormatConvertHandler struct{}

func (FormatConvertHandler) Name() string        { return "formatConvert" }
func (FormatConvertHandler) Description() string { return "Convert content between simple formats." }
func (FormatConvertHandler) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"content":       map[string]any{"type": "string"},
			"target_format": map[string]any{"type": "string", "enum": []string{"markdown", "upper", "lower", "text"}},
		},
		"required": []string{"content", "target_format"},
	}
}

func (FormatConvertHandler) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a struct {
		Content      string `json:"content"`
		TargetFormat string `json:"target_format"`
	}
	if err := json.Unmarshal(args, &a); err != nil || a.Content == "" || a.TargetFormat == "" {
		return "", fmt.Errorf("missing content or target_format")
	}
	var converted string
	switch a.TargetFormat {
	case "upper":
		converted = strings.ToUpper(a.Content)
	case "lower":
		converted = strings.ToLower(a.Content)
	case "markdown":
		converted = "# " + a.Content
	default:
		converted = a.Content
	}
	out, _ := json.Marshal(map[string]any{"success": true, "content": converted})
	return string(out), nil
}

// SummarizeTextHandler returns a naive lead-sentence summary in place of a
// real summarization model — the leaf worker is a stub to its documented
// contract, as the auxiliary tools are out of scope per the original spec.
type SummarizeTextHandler struct{}

func (SummarizeTextHandler) Name() string        { return "summarizeText" }
func (SummarizeTextHandler) Description() string { return "Summarize a block of text." }
func (SummarizeTextHandler) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"text": map[string]any{"type": "string"}},
		"required":   []string{"text"},
	}
}

func (SummarizeTextHandler) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(args, &a); err != nil || a.Text == "" {
		return "", fmt.Errorf("missing text")
	}
	sentences := strings.FieldsFunc(a.Text, func(r rune) bool { return r == '.' || r == '!' || r == '?' })
	summary := a.Text
	if len(sentences) > 0 {
		summary = strings.TrimSpace(sentences[0]) + "."
	}
	out, _ := json.Marshal(map[string]any{"success": true, "summary": summary})
	return string(out), nil
}

// TranslateTextHandler stubs translation to its documented contract: it
// returns the input text tagged with the target language rather than
// performing a real translation.
type TranslateTextHandler struct{}

func (TranslateTextHandler) Name() string        { return "translateText" }
func (TranslateTextHandler) Description() string { return "Translate text to a target language." }
func (TranslateTextHandler) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text":            map[string]any{"type": "string"},
			"target_language": map[string]any{"type": "string"},
		},
		"required": []string{"text", "target_language"},
	}
}

func (TranslateTextHandler) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a struct {
		Text           string `json:"text"`
		TargetLanguage string `json:"target_language"`
	}
	if err := json.Unmarshal(args, &a); err != nil || a.Text == "" || a.TargetLanguage == "" {
		return "", fmt.Errorf("missing text or target_language")
	}
	out, _ := json.Marshal(map[string]any{
		"success": true, "translated": fmt.Sprintf("[%s] %s", a.TargetLanguage, a.Text),
	})
	return string(out), nil
}

// StructuredDataGenerateHandler produces a JSON object shaped by a
// requested set of field names, populated with the given text as a
// placeholder value for every field.
type StructuredDataGenerateHandler struct{}

func (StructuredDataGenerateHandler) Name() string { return "structuredDataGenerate" }
func (StructuredDataGenerateHandler) Description() string {
	return "Generate a structured JSON object from a set of requested fields."
}
func (StructuredDataGenerateHandler) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"fields": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"source": map[string]any{"type": "string"},
		},
		"required": []string{"fields"},
	}
}

func (StructuredDataGenerateHandler) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a struct {
		Fields []string `json:"fields"`
		Source string   `json:"source"`
	}
	if err := json.Unmarshal(args, &a); err != nil || len(a.Fields) == 0 {
		return "", fmt.Errorf("missing fields")
	}
	data := make(map[string]any, len(a.Fields))
	for _, f := range a.Fields {
		data[f] = a.Source
	}
	out, _ := json.Marshal(map[string]any{"success": true, "data": data})
	return string(out), nil
}
