package tools

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
	"google.golang.org/genai"
)

const (
	webUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_7_2) AppleWebKit/537.36"
	maxRedirects = 5
)

// WebpageTool fetches a URL and extracts its readable content.
type WebpageTool struct {
	maxChars   int
	httpClient *http.Client
}

// NewWebpageTool creates a WebpageTool. maxChars defaults to 50000.
func NewWebpageTool(maxChars int) *WebpageTool {
	if maxChars <= 0 {
		maxChars = 50000
	}
	client := &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
	return &WebpageTool{maxChars: maxChars, httpClient: client}
}

func (t *WebpageTool) Name() string { return "read_webpage" }

func (t *WebpageTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: "Fetch a URL and extract its readable content as text.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"url":      {Type: genai.TypeString, Description: "URL to fetch"},
				"maxChars": {Type: genai.TypeInteger, Description: "Truncate extracted text to this length"},
			},
			Required: []string{"url"},
		},
	}
}

func (t *WebpageTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	rawURL, _ := args["url"].(string)
	if rawURL == "" {
		return nil, fmt.Errorf("url is required")
	}
	if err := validateURL(rawURL); err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}

	maxChars := t.maxChars
	if mc, ok := args["maxChars"]; ok {
		switch v := mc.(type) {
		case float64:
			maxChars = int(v)
		case int:
			maxChars = v
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", webUserAgent)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}

	title, text := extract(rawURL, resp.Header.Get("Content-Type"), body)
	truncated := len(text) > maxChars
	if truncated {
		text = text[:maxChars]
	}

	return map[string]any{
		"url":       rawURL,
		"finalUrl":  resp.Request.URL.String(),
		"status":    resp.StatusCode,
		"title":     title,
		"text":      text,
		"truncated": truncated,
	}, nil
}

// validateURL checks that rawURL is http(s) with a valid domain.
func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("only http/https allowed, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing domain in URL")
	}
	return nil
}

// extract pulls readable text out of a response body. HTML goes through
// readability; anything else is returned as-is.
func extract(rawURL, contentType string, body []byte) (title, text string) {
	if !strings.Contains(contentType, "text/html") && !isHTMLPrefix(body) {
		return "", string(body)
	}

	parsedURL, _ := url.Parse(rawURL)
	article, err := readability.FromReader(bytes.NewReader(body), parsedURL)
	if err != nil {
		return "", stripHTMLTags(string(body))
	}
	text = article.TextContent
	if strings.TrimSpace(text) == "" {
		text = stripHTMLTags(article.Content)
	}
	return article.Title, normalizeWhitespace(text)
}

// isHTMLPrefix reports whether the body starts with an HTML declaration.
func isHTMLPrefix(b []byte) bool {
	prefix := strings.ToLower(strings.TrimSpace(string(b[:min(256, len(b))])))
	return strings.HasPrefix(prefix, "<!doctype") || strings.HasPrefix(prefix, "<html")
}

var (
	reScript   = regexp.MustCompile(`(?is)<script[\s\S]*?</script>`)
	reStyle    = regexp.MustCompile(`(?is)<style[\s\S]*?</style>`)
	reTags     = regexp.MustCompile(`<[^>]+>`)
	reSpaces   = regexp.MustCompile(`[ \t]+`)
	reNewlines = regexp.MustCompile(`\n{3,}`)
)

// stripHTMLTags removes all HTML tags and normalizes whitespace.
func stripHTMLTags(text string) string {
	text = reScript.ReplaceAllString(text, "")
	text = reStyle.ReplaceAllString(text, "")
	text = reTags.ReplaceAllString(text, "")
	return normalizeWhitespace(text)
}

func normalizeWhitespace(text string) string {
	text = reSpaces.ReplaceAllString(text, " ")
	text = reNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
