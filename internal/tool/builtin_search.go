package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"
)

// SearchDuckDuckGoHandler issues a GET against a configurable search
// endpoint (default DuckDuckGo's HTML frontend, which doesn't require an
// API key) and returns up to 5 results.
type SearchDuckDuckGoHandler struct {
	BaseURL string // defaults to "https://duckduckgo.com/html/"
	Client  *http.Client
}

func NewSearchDuckDuckGoHandler(baseURL string) *SearchDuckDuckGoHandler {
	if baseURL == "" {
		baseURL = "https://duckduckgo.com/html/"
	}
	return &SearchDuckDuckGoHandler{BaseURL: baseURL, Client: &http.Client{Timeout: 10 * time.Second}}
}

func (SearchDuckDuckGoHandler) Name() string { return "searchDuckDuckGo" }
func (SearchDuckDuckGoHandler) Description() string {
	return "Search the web via DuckDuckGo and return up to 5 results."
}
func (SearchDuckDuckGoHandler) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"query": map[string]any{"type": "string"}},
		"required":   []string{"query"},
	}
}

type searchResult struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Snippet string `json:"snippet"`
}

var resultLinkPattern = regexp.MustCompile(`(?s)<a[^>]*class="result__a"[^>]*href="([^"]+)"[^>]*>(.*?)</a>`)
var tagStripPattern = regexp.MustCompile(`<[^>]+>`)

func (h *SearchDuckDuckGoHandler) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &a); err != nil || a.Query == "" {
		return "", fmt.Errorf("missing query")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.BaseURL+"?q="+url.QueryEscape(a.Query), nil)
	if err != nil {
		return "", err
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}

	matches := resultLinkPattern.FindAllStringSubmatch(string(body), 5)
	results := make([]searchResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, searchResult{URL: m[1], Title: tagStripPattern.ReplaceAllString(m[2], "")})
	}

	out, _ := json.Marshal(map[string]any{"success": true, "results": results})
	return string(out), nil
}
