package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const pushoverURL = "https://api.pushover.net/1/messages.json"

// Push sends a short notification to the owner's phone through Pushover.
type Push struct {
	user     string
	token    string
	endpoint string
	client   *http.Client
}

func NewPush(user, token string) *Push {
	return &Push{
		user:     user,
		token:    token,
		endpoint: pushoverURL,
		client:   newHTTPClient(10 * time.Second),
	}
}

func (p *Push) Name() string        { return "push" }
func (p *Push) Description() string { return "Send a push notification with a short message" }
func (p *Push) Strict() bool        { return true }

func (p *Push) InputSchema() any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{
				"type":        "string",
				"description": "A brief message to push",
			},
		},
		"required":             []string{"message"},
		"additionalProperties": false,
	}
}

func (p *Push) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("parsing push input: %w", err)
	}
	if strings.TrimSpace(args.Message) == "" {
		return "", fmt.Errorf("message is required")
	}

	slog.Debug("push: sending", "message_len", len(args.Message))

	form := url.Values{
		"user":    {p.user},
		"token":   {p.token},
		"message": {args.Message},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("pushover request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode != http.StatusOK || gjson.GetBytes(body, "status").Int() != 1 {
		errs := gjson.GetBytes(body, "errors").String()
		return "", fmt.Errorf("pushover returned %d: %s", resp.StatusCode, errs)
	}

	slog.Debug("push: sent")
	return "Push notification sent", nil
}
