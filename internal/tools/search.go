package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	bravesearch "github.com/cnosuke/go-brave-search"
)

const (
	defaultResults = 5
	maxResults     = 20
)

// Search queries Brave for news and companies the researcher is looking at.
type Search struct {
	brave *bravesearch.Client
}

func NewSearch(braveAPIKey string) (*Search, error) {
	if braveAPIKey == "" {
		return nil, errors.New("brave api key is empty")
	}
	client, err := bravesearch.NewClient(braveAPIKey)
	if err != nil {
		return nil, fmt.Errorf("brave client: %w", err)
	}
	return &Search{brave: client}, nil
}

func (s *Search) Name() string { return "web_search" }
func (s *Search) Description() string {
	return "Search the web for financial news, company announcements and market opportunities. " +
		"Returns title, URL and snippet of each result."
}
func (s *Search) Strict() bool { return true }

func (s *Search) InputSchema() any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Search query",
			},
			"count": map[string]any{
				"type":        "integer",
				"description": fmt.Sprintf("Number of results (default %d, max %d)", defaultResults, maxResults),
			},
		},
		"required":             []string{"query", "count"},
		"additionalProperties": false,
	}
}

func (s *Search) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		Query string `json:"query"`
		Count int    `json:"count"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("parsing web_search input: %w", err)
	}
	query := strings.TrimSpace(args.Query)
	if query == "" {
		return "", errors.New("query is required")
	}

	resp, err := s.brave.WebSearch(ctx, query, &bravesearch.WebSearchParams{
		Count: resultCount(args.Count),
	})
	if err != nil {
		return "", fmt.Errorf("brave search: %w", err)
	}

	results := resp.GetWebResults()
	slog.Debug("web search", "query", query, "results", len(results))
	if len(results) == 0 {
		return "No results found.", nil
	}

	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		fmt.Fprintf(&b, "%s\n%s\n%s", r.Title, r.URL, r.Description)
	}
	return truncate([]byte(b.String())), nil
}

func resultCount(n int) int {
	switch {
	case n <= 0:
		return defaultResults
	case n > maxResults:
		return maxResults
	}
	return n
}
