package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

// SearchTool searches the web using the Brave Search API.
type SearchTool struct {
	apiKey     string
	maxResults int
	baseURL    string
	httpClient *http.Client
}

// NewSearchTool creates a SearchTool. maxResults defaults to 5.
func NewSearchTool(apiKey string, maxResults int) *SearchTool {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &SearchTool{
		apiKey:     apiKey,
		maxResults: maxResults,
		baseURL:    "https://api.search.brave.com/res/v1/web/search",
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *SearchTool) Name() string { return "web_search" }

func (t *SearchTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: "Search the web. Returns titles, URLs, and snippets.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"query": {Type: genai.TypeString, Description: "Search query"},
				"count": {Type: genai.TypeInteger, Description: "Results (1-10)"},
			},
			Required: []string{"query"},
		},
	}
}

func (t *SearchTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	if t.apiKey == "" {
		return nil, fmt.Errorf("search api key not configured")
	}
	query, _ := args["query"].(string)
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}

	n := t.maxResults
	if countVal, ok := args["count"]; ok {
		switch v := countVal.(type) {
		case float64:
			n = int(v)
		case int:
			n = v
		}
	}
	if n < 1 {
		n = 1
	}
	if n > 10 {
		n = 10
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL, nil)
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	q.Set("q", query)
	q.Set("count", fmt.Sprintf("%d", n))
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", t.apiKey)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned HTTP %d", resp.StatusCode)
	}

	var data struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("parse search response: %w", err)
	}

	results := data.Web.Results
	if len(results) == 0 {
		return fmt.Sprintf("No results for: %s", query), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Results for: %s\n\n", query))
	for i, item := range results {
		if i >= n {
			break
		}
		sb.WriteString(fmt.Sprintf("%d. %s\n   %s", i+1, item.Title, item.URL))
		if item.Description != "" {
			sb.WriteString("\n   " + item.Description)
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}
