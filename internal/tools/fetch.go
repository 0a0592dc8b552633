package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const (
	defaultFetchLength = 5000
	maxPageBytes       = 1 << 20

	noMoreContent = "<no more content>"
)

// Fetch reads a web page as plain text. Long pages are returned in windows:
// the model asks for the next one with start_index.
type Fetch struct {
	client *http.Client
}

func NewFetch() *Fetch {
	return &Fetch{client: newHTTPClient(30 * time.Second)}
}

func (f *Fetch) Name() string { return "fetch" }
func (f *Fetch) Description() string {
	return "Fetch a URL and return the page as plain text. " +
		"If the text is cut off, call again with start_index set to where it stopped."
}
func (f *Fetch) Strict() bool { return true }

func (f *Fetch) InputSchema() any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "Absolute http or https URL",
			},
			"start_index": map[string]any{
				"type":        "integer",
				"description": "Character offset to start from (0 for the beginning)",
			},
			"max_length": map[string]any{
				"type":        "integer",
				"description": fmt.Sprintf("Maximum characters to return (default %d)", defaultFetchLength),
			},
		},
		"required":             []string{"url", "start_index", "max_length"},
		"additionalProperties": false,
	}
}

func (f *Fetch) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		URL        string `json:"url"`
		StartIndex int    `json:"start_index"`
		MaxLength  int    `json:"max_length"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("parsing fetch input: %w", err)
	}
	u, err := url.Parse(strings.TrimSpace(args.URL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("invalid url %q", args.URL)
	}

	text, err := f.page(ctx, u.String())
	if err != nil {
		return "", err
	}
	return window(text, args.StartIndex, args.MaxLength), nil
}

func (f *Fetch) page(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("fetching %s: %s", target, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", target, err)
	}

	text := string(body)
	if strings.Contains(resp.Header.Get("Content-Type"), "html") || strings.Contains(text[:min(len(text), 512)], "<html") {
		if extracted, err := htmlText(body); err == nil {
			text = extracted
		} else {
			slog.Debug("html parse failed, returning raw page", "url", target, "error", err)
		}
	}
	slog.Debug("fetched page", "url", target, "chars", len([]rune(text)))
	return text, nil
}

// window returns length runes of text starting at start, with a note telling
// the model where to continue when more remains.
func window(text string, start, length int) string {
	if length <= 0 {
		length = defaultFetchLength
	}
	runes := []rune(text)
	if start < 0 {
		start = 0
	}
	if start >= len(runes) {
		return noMoreContent
	}
	end := start + min(length, len(runes)-start)
	out := string(runes[start:end])
	if end < len(runes) {
		out += fmt.Sprintf("\n\n[content truncated: call fetch with start_index=%d for more]", end)
	}
	return out
}

// htmlText returns the visible text of an HTML page: entities decoded,
// script and style bodies dropped, whitespace collapsed.
func htmlText(page []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && (c.Data == "script" || c.Data == "style" || c.Data == "noscript") {
				continue
			}
			walk(c)
		}
	}
	walk(doc)
	return strings.Join(strings.Fields(b.String()), " "), nil
}
