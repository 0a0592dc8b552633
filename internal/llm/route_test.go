package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_Endpoint(t *testing.T) {
	r := Router{
		Default:    Endpoint{BaseURL: "https://api.openai.com/v1", APIKey: "sk-openai"},
		Aggregator: Endpoint{BaseURL: "https://openrouter.ai/api/v1", APIKey: "sk-or"},
	}

	tests := []struct {
		model string
		want  Endpoint
	}{
		{model: "gpt-4o-mini", want: r.Default},
		{model: "deepseek/deepseek-chat", want: r.Aggregator},
		{model: "google/gemini-2.0-flash", want: r.Aggregator},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Endpoint(tt.model))
		})
	}
}

func TestRouter_ProviderKeepsModel(t *testing.T) {
	r := Router{}
	p, ok := r.Provider("gpt-4o-mini").(*OpenAIProvider)
	if assert.True(t, ok) {
		assert.Equal(t, "gpt-4o-mini", p.Model())
	}
}

func sse(w http.ResponseWriter, events ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	for _, e := range events {
		fmt.Fprintf(w, "data: %s\n\n", e)
	}
}

func TestOpenAIProvider_ChatStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sse(w,
			`{"type":"response.output_text.delta","item_id":"msg_1","output_index":0,"content_index":0,"delta":"Hel","sequence_number":1}`,
			`{"type":"response.output_text.delta","item_id":"msg_1","output_index":0,"content_index":0,"delta":"lo","sequence_number":2}`,
			`{"type":"response.completed","sequence_number":3,"response":{"id":"resp_1","object":"response","model":"gpt-4o-mini","output":[{"type":"message","id":"msg_1","role":"assistant","status":"completed","content":[{"type":"output_text","text":"Hello","annotations":[]}]}]}}`,
		)
	}))
	defer srv.Close()

	p := NewOpenAI(Endpoint{BaseURL: srv.URL + "/v1/", APIKey: "sk-test"}, "gpt-4o-mini", WithMaxRetries(0))

	var tokens []string
	resp, err := p.ChatStream(context.Background(), nil, nil, func(tok string) { tokens = append(tokens, tok) })
	require.NoError(t, err)
	assert.Equal(t, []string{"Hel", "lo"}, tokens)
	assert.Equal(t, "Hello", OutputText(resp))
}

func TestOpenAIProvider_NoCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sse(w, `{"type":"response.output_text.delta","item_id":"msg_1","output_index":0,"content_index":0,"delta":"Hel","sequence_number":1}`)
	}))
	defer srv.Close()

	p := NewOpenAI(Endpoint{BaseURL: srv.URL + "/v1/"}, "gpt-4o-mini", WithMaxRetries(0))
	_, err := p.ChatStream(context.Background(), nil, nil, nil)
	assert.ErrorContains(t, err, "without a completed response")
}

func TestOutputText_Nil(t *testing.T) {
	assert.Empty(t, OutputText(nil))
}
