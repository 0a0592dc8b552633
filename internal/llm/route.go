package llm

import "strings"

// Endpoint is an OpenAI-compatible API location.
type Endpoint struct {
	BaseURL string
	APIKey  string
}

// Router picks the endpoint for a model name. Names containing a slash
// ("deepseek/deepseek-chat", "google/gemini-2.0-flash") are routed to the
// aggregator endpoint, plain names to the default one.
type Router struct {
	Default    Endpoint
	Aggregator Endpoint
}

func (r Router) Endpoint(model string) Endpoint {
	if strings.Contains(model, "/") {
		return r.Aggregator
	}
	return r.Default
}

func (r Router) Provider(model string) Provider {
	return NewOpenAI(r.Endpoint(model), model)
}
