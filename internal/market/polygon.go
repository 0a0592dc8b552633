package market

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const polygonBaseURL = "https://api.polygon.io"

// Polygon quotes the previous day's close from the Polygon.io aggregates API.
type Polygon struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

type PolygonOption func(*Polygon)

func WithBaseURL(u string) PolygonOption {
	return func(p *Polygon) { p.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(c *http.Client) PolygonOption {
	return func(p *Polygon) { p.client = c }
}

func NewPolygon(apiKey string, opts ...PolygonOption) *Polygon {
	p := &Polygon{
		apiKey:  apiKey,
		baseURL: polygonBaseURL,
		client: &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Polygon) SharePrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return decimal.Zero, nil
	}

	u := fmt.Sprintf("%s/v2/aggs/ticker/%s/prev?adjusted=true&apiKey=%s",
		p.baseURL, url.PathEscape(symbol), url.QueryEscape(p.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("creating request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("polygon request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return decimal.Zero, fmt.Errorf("reading polygon response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("polygon returned %d: %s", resp.StatusCode, gjson.GetBytes(body, "error").String())
	}

	last := gjson.GetBytes(body, "results.0.c")
	if !last.Exists() {
		return decimal.Zero, nil
	}
	price, err := decimal.NewFromString(last.Raw)
	if err != nil {
		return decimal.NewFromFloat(last.Float()), nil
	}
	return price, nil
}
