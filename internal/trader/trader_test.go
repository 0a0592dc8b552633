package trader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"agentdesk/internal/agent"
	"agentdesk/internal/config"
	"agentdesk/internal/llm"

	"github.com/openai/openai-go/v3/responses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingProvider answers every request with a plain text reply and keeps
// the last user message it was sent.
type recordingProvider struct {
	mu       sync.Mutex
	messages []string
	fail     bool
}

func (p *recordingProvider) ChatStream(_ context.Context, input []responses.ResponseInputItemUnionParam, _ []responses.ToolUnionParam, _ func(string)) (*responses.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return nil, errors.New("model unavailable")
	}
	last := input[len(input)-1]
	if last.OfMessage != nil {
		p.messages = append(p.messages, last.OfMessage.Content.OfString.Value)
	}
	var resp responses.Response
	raw := `{"id":"resp_1","object":"response","model":"gpt-4o-mini","output":[{"type":"message","id":"msg_1","role":"assistant","status":"completed","content":[{"type":"output_text","text":"Portfolio looks healthy.","annotations":[]}]}]}`
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type fakeServer struct {
	name      string
	resources map[string]string
	closed    *[]string
}

func (s *fakeServer) Name() string                                 { return s.name }
func (s *fakeServer) Tools(context.Context) ([]agent.Tool, error) { return nil, nil }
func (s *fakeServer) Close() error {
	*s.closed = append(*s.closed, s.name)
	return nil
}
func (s *fakeServer) ReadResource(_ context.Context, uri string) (string, error) {
	v, ok := s.resources[uri]
	if !ok {
		return "", fmt.Errorf("unknown resource %s", uri)
	}
	return v, nil
}

type harness struct {
	provider *recordingProvider
	launched [][]string
	closed   []string
}

func newTrader(t *testing.T, h *harness) *Trader {
	t.Helper()
	resources := map[string]string{
		"accounts://accounts_server/tom": `{"name":"tom","balance":10000,"holdings":{},"portfolio_value_time_series":[["2025-06-02 10:00:00",10000]],"total_portfolio_value":10000}`,
		"accounts://strategy/tom":        "Buy undervalued tech.",
	}
	launch := func(_ context.Context, cfgs []config.MCPServerConfig) ([]Server, error) {
		var names []string
		var servers []Server
		for _, c := range cfgs {
			names = append(names, c.Name)
			servers = append(servers, &fakeServer{name: c.Name, resources: resources, closed: &h.closed})
		}
		h.launched = append(h.launched, names)
		return servers, nil
	}

	return New("Tom", Deps{
		Providers:         func(string) llm.Provider { return h.provider },
		Launch:            launch,
		TraderServers:     []config.MCPServerConfig{{Name: "accounts"}, {Name: "market"}},
		ResearcherServers: []config.MCPServerConfig{{Name: "fetch"}},
		Now:               func() time.Time { return time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC) },
	})
}

func TestTrader_Defaults(t *testing.T) {
	tr := New("Tom", Deps{})
	assert.Equal(t, "Trader", tr.Lastname)
	assert.Equal(t, "gpt-4o-mini", tr.Model)
	assert.Equal(t, "trading", tr.Mode())
	assert.Equal(t, 30, MaxTurns)
}

func TestTrader_AlternatesModes(t *testing.T) {
	h := &harness{provider: &recordingProvider{}}
	tr := newTrader(t, h)
	ctx := context.Background()

	require.NoError(t, tr.RunWithTrace(ctx))
	assert.Equal(t, "rebalancing", tr.Mode())
	require.NoError(t, tr.RunWithTrace(ctx))
	assert.Equal(t, "trading", tr.Mode())

	require.Len(t, h.provider.messages, 2)
	first, second := h.provider.messages[0], h.provider.messages[1]
	assert.Contains(t, first, "look for new opportunities")
	assert.Contains(t, second, "decide if you need to rebalance")
	for _, msg := range h.provider.messages {
		assert.Contains(t, msg, "Buy undervalued tech.")
		assert.Contains(t, msg, "2025-06-02 09:30:00")
		assert.Contains(t, msg, "Your account name is Tom.")
		assert.NotContains(t, msg, "portfolio_value_time_series")
		assert.NotContains(t, msg, "push notification")
	}

	// trader servers first, then researcher servers; closed in reverse
	assert.Equal(t, [][]string{{"accounts", "market"}, {"fetch"}, {"accounts", "market"}, {"fetch"}}, h.launched)
	assert.Equal(t, []string{"fetch", "market", "accounts", "fetch", "market", "accounts"}, h.closed)
}

func TestTrader_FailedSessionKeepsMode(t *testing.T) {
	h := &harness{provider: &recordingProvider{fail: true}}
	tr := newTrader(t, h)

	err := tr.RunWithTrace(context.Background())
	assert.ErrorContains(t, err, "model unavailable")
	assert.Equal(t, "trading", tr.Mode())
	assert.Len(t, h.closed, 3)
}

func TestTrader_MissingAccountsServer(t *testing.T) {
	h := &harness{provider: &recordingProvider{}}
	tr := newTrader(t, h)
	tr.deps.TraderServers = []config.MCPServerConfig{{Name: "market"}}

	err := tr.RunWithMCPServers(context.Background())
	assert.ErrorContains(t, err, "no accounts mcp server")
}

func TestStripTimeSeries(t *testing.T) {
	out, err := stripTimeSeries(`{"name":"tom","portfolio_value_time_series":[["t","1"]],"balance":"5"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"tom","balance":"5"}`, out)

	_, err = stripTimeSeries("not json")
	assert.Error(t, err)
}

type pushStub struct{}

func (pushStub) Name() string                                    { return "push" }
func (pushStub) Description() string                             { return "push" }
func (pushStub) InputSchema() any                                { return map[string]any{"type": "object"} }
func (pushStub) Execute(context.Context, string) (string, error) { return "sent", nil }

func TestPrompts_PushSentence(t *testing.T) {
	with, err := render("trade.tmpl", promptData{Name: "Tom", Push: true})
	require.NoError(t, err)
	assert.Contains(t, with, "send a push notification")

	without, err := render("trade.tmpl", promptData{Name: "Tom"})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(without, "After you've executed your trades, respond with a brief 2-3 sentence appraisal of your portfolio and its outlook."))

	tr := New("Tom", Deps{TraderTools: []agent.Tool{pushStub{}}})
	assert.True(t, tr.hasPush())
}
