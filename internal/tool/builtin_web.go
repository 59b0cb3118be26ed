package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// WebpageFetchHandler retrieves a URL and returns its stripped text
// content, truncated to a fixed size to keep it from blowing the model's
// context window.
type WebpageFetchHandler struct {
	Client *http.Client
}

func NewWebpageFetchHandler() *WebpageFetchHandler {
	return &WebpageFetchHandler{Client: &http.Client{Timeout: 10 * time.Second}}
}

func (WebpageFetchHandler) Name() string        { return "webpageFetch" }
func (WebpageFetchHandler) Description() string { return "Fetch a webpage and return its text content." }
func (WebpageFetchHandler) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"url": map[string]any{"type": "string"}},
		"required":   []string{"url"},
	}
}

func (h *WebpageFetchHandler) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(args, &a); err != nil || a.URL == "" {
		return "", fmt.Errorf("missing url")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL, nil)
	if err != nil {
		return "", err
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", err
	}

	text := tagStripPattern.ReplaceAllString(string(body), " ")
	text = strings.Join(strings.Fields(text), " ")
	const maxLen = 4000
	if len(text) > maxLen {
		text = text[:maxLen]
	}

	out, _ := json.Marshal(map[string]any{"success": true, "content": text})
	return string(out), nil
}

// TextAnalysisHandler returns simple, deterministic text statistics —
// word/sentence/character counts — in place of a real NLP backend.
type TextAnalysisHandler struct{}

func (TextAnalysisHandler) Name() string        { return "textAnalysis" }
func (TextAnalysisHandler) Description() string { return "Analyze text and return basic statistics." }
func (TextAnalysisHandler) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"text": map[string]any{"type": "string"}},
		"required":   []string{"text"},
	}
}

func (TextAnalysisHandler) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(args, &a); err != nil || a.Text == "" {
		return "", fmt.Errorf("missing text")
	}
	words := len(strings.Fields(a.Text))
	sentences := strings.Count(a.Text, ".") + strings.Count(a.Text, "!") + strings.Count(a.Text, "?")
	out, _ := json.Marshal(map[string]any{
		"success": true, "word_count": words, "sentence_count": sentences, "char_count": len(a.Text),
	})
	return string(out), nil
}
