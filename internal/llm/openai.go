package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// OpenAIProvider talks to any endpoint that implements the OpenAI Responses
// API, which covers OpenAI itself and the OpenRouter-style aggregators.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

type Option func(*[]option.RequestOption)

// WithHTTPClient replaces the traced default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(opts *[]option.RequestOption) { *opts = append(*opts, option.WithHTTPClient(c)) }
}

func WithMaxRetries(n int) Option {
	return func(opts *[]option.RequestOption) { *opts = append(*opts, option.WithMaxRetries(n)) }
}

func NewOpenAI(ep Endpoint, model string, opts ...Option) *OpenAIProvider {
	reqOpts := []option.RequestOption{
		option.WithHTTPClient(&http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}),
	}
	if ep.APIKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(ep.APIKey))
	}
	if ep.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(ep.BaseURL))
	}
	for _, opt := range opts {
		opt(&reqOpts)
	}
	client := openai.NewClient(reqOpts...)
	return &OpenAIProvider{client: &client, model: model}
}

func (o *OpenAIProvider) Model() string { return o.model }

func (o *OpenAIProvider) ChatStream(ctx context.Context, input []responses.ResponseInputItemUnionParam, tools []responses.ToolUnionParam, onToken func(string)) (*responses.Response, error) {
	stream := o.client.Responses.NewStreaming(ctx, responses.ResponseNewParams{
		Model: shared.ResponsesModel(o.model),
		Input: responses.ResponseNewParamsInputUnion{OfInputItemList: input},
		Tools: tools,
	})
	defer stream.Close()

	var completed *responses.Response
	for stream.Next() {
		event := stream.Current()
		switch event.Type {
		case "response.output_text.delta":
			if event.Delta != "" && onToken != nil {
				onToken(event.Delta)
			}
		case "response.completed":
			completed = &event.Response
		case "response.incomplete":
			return nil, fmt.Errorf("%s: response incomplete: %s", o.model, event.Response.IncompleteDetails.Reason)
		case "response.failed":
			return nil, fmt.Errorf("%s: response failed: %s", o.model, event.Response.Error.Message)
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", o.model, err)
	}
	if completed == nil {
		return nil, errors.New("response stream ended without a completed response")
	}
	return completed, nil
}
