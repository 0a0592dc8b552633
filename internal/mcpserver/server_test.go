package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"agentdesk/internal/accounts"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	method string
	args   []any
}

type mockAccount struct {
	calls    []call
	tradeErr error
}

func (m *mockAccount) record(method string, args ...any) {
	m.calls = append(m.calls, call{method: method, args: args})
}

func (m *mockAccount) Cash() decimal.Decimal {
	m.record("Cash")
	return decimal.RequireFromString("1234.5")
}

func (m *mockAccount) Positions() map[string]int {
	m.record("Positions")
	return map[string]int{"AAPL": 3}
}

func (m *mockAccount) BuyShares(_ context.Context, symbol string, quantity int, rationale string) (string, error) {
	m.record("BuyShares", symbol, quantity, rationale)
	return "bought", m.tradeErr
}

func (m *mockAccount) SellShares(_ context.Context, symbol string, quantity int, rationale string) (string, error) {
	m.record("SellShares", symbol, quantity, rationale)
	return "sold", m.tradeErr
}

func (m *mockAccount) ChangeStrategy(_ context.Context, strategy string) (string, error) {
	m.record("ChangeStrategy", strategy)
	return "Changed strategy", nil
}

func (m *mockAccount) Report(context.Context) (string, error) {
	m.record("Report")
	return `{"name":"alice"}`, nil
}

func (m *mockAccount) GetStrategy(context.Context) string {
	m.record("GetStrategy")
	return "value investing"
}

type mockBook struct {
	account *mockAccount
	names   []string
}

func (b *mockBook) Get(_ context.Context, name string) (Account, error) {
	b.names = append(b.names, name)
	if name == "ghost" {
		return nil, errors.New("no such account")
	}
	return b.account, nil
}

func newHandler() (*accountsServer, *mockBook) {
	book := &mockBook{account: &mockAccount{}}
	return &accountsServer{book: book}, book
}

func toolRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	switch c := res.Content[0].(type) {
	case mcp.TextContent:
		return c.Text
	case *mcp.TextContent:
		return c.Text
	}
	t.Fatalf("unexpected content %T", res.Content[0])
	return ""
}

func TestAccountsTools_Forwarding(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		invoke   func(*accountsServer, context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
		args     map[string]any
		want     string
		wantCall call
	}{
		{
			name:     "get_balance",
			invoke:   (*accountsServer).getBalance,
			args:     map[string]any{"name": "Alice"},
			want:     "1234.5",
			wantCall: call{method: "Cash"},
		},
		{
			name:     "get_holdings",
			invoke:   (*accountsServer).getHoldings,
			args:     map[string]any{"name": "Alice"},
			want:     `{"AAPL":3}`,
			wantCall: call{method: "Positions"},
		},
		{
			name:     "buy_shares",
			invoke:   (*accountsServer).buyShares,
			args:     map[string]any{"name": "Alice", "symbol": "AAPL", "quantity": 5, "rationale": "growth"},
			want:     "bought",
			wantCall: call{method: "BuyShares", args: []any{"AAPL", 5, "growth"}},
		},
		{
			name:     "sell_shares",
			invoke:   (*accountsServer).sellShares,
			args:     map[string]any{"name": "Alice", "symbol": "AAPL", "quantity": 2.0, "rationale": "trim"},
			want:     "sold",
			wantCall: call{method: "SellShares", args: []any{"AAPL", 2, "trim"}},
		},
		{
			name:     "change_strategy",
			invoke:   (*accountsServer).changeStrategy,
			args:     map[string]any{"name": "Alice", "strategy": "momentum"},
			want:     "Changed strategy",
			wantCall: call{method: "ChangeStrategy", args: []any{"momentum"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, book := newHandler()
			res, err := tt.invoke(h, ctx, toolRequest(tt.name, tt.args))
			require.NoError(t, err)
			assert.False(t, res.IsError)
			assert.Equal(t, tt.want, resultText(t, res))
			assert.Equal(t, []string{"Alice"}, book.names)
			assert.Equal(t, []call{tt.wantCall}, book.account.calls)
		})
	}
}

func TestAccountsTools_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("account error propagates", func(t *testing.T) {
		h, book := newHandler()
		book.account.tradeErr = accounts.ErrInsufficientFunds
		res, err := h.buyShares(ctx, toolRequest("buy_shares", map[string]any{"name": "Alice", "symbol": "AAPL", "quantity": 1000, "rationale": "yolo"}))
		require.NoError(t, err)
		assert.True(t, res.IsError)
		assert.Contains(t, resultText(t, res), accounts.ErrInsufficientFunds.Error())
	})

	t.Run("unknown account", func(t *testing.T) {
		h, _ := newHandler()
		res, err := h.getBalance(ctx, toolRequest("get_balance", map[string]any{"name": "ghost"}))
		require.NoError(t, err)
		assert.True(t, res.IsError)
	})

	t.Run("missing name", func(t *testing.T) {
		h, book := newHandler()
		res, err := h.getHoldings(ctx, toolRequest("get_holdings", map[string]any{}))
		require.NoError(t, err)
		assert.True(t, res.IsError)
		assert.Empty(t, book.names)
	})

	t.Run("bad argument type", func(t *testing.T) {
		h, _ := newHandler()
		res, err := h.sellShares(ctx, toolRequest("sell_shares", map[string]any{"name": "Alice", "quantity": "many"}))
		require.NoError(t, err)
		assert.True(t, res.IsError)
	})
}

func TestAccountsResources(t *testing.T) {
	ctx := context.Background()

	t.Run("report lower-cases the name", func(t *testing.T) {
		h, book := newHandler()
		req := mcp.ReadResourceRequest{}
		req.Params.URI = "accounts://accounts_server/Alice"

		contents, err := h.readAccount(ctx, req)
		require.NoError(t, err)
		require.Len(t, contents, 1)
		text, ok := contents[0].(mcp.TextResourceContents)
		require.True(t, ok)
		assert.Equal(t, `{"name":"alice"}`, text.Text)
		assert.Equal(t, []string{"alice"}, book.names)
	})

	t.Run("strategy", func(t *testing.T) {
		h, book := newHandler()
		req := mcp.ReadResourceRequest{}
		req.Params.URI = "accounts://strategy/BOB"

		contents, err := h.readStrategy(ctx, req)
		require.NoError(t, err)
		text := contents[0].(mcp.TextResourceContents)
		assert.Equal(t, "value investing", text.Text)
		assert.Equal(t, []string{"bob"}, book.names)
	})

	t.Run("wrong prefix", func(t *testing.T) {
		h, _ := newHandler()
		req := mcp.ReadResourceRequest{}
		req.Params.URI = "accounts://strategy/"
		_, err := h.readStrategy(ctx, req)
		assert.Error(t, err)
	})
}

type fixedSource struct{ price decimal.Decimal }

func (f fixedSource) SharePrice(context.Context, string) (decimal.Decimal, error) {
	return f.price, nil
}

func TestJSONResult(t *testing.T) {
	res, err := jsonResult(map[string]int{"MSFT": 1})
	require.NoError(t, err)
	var got map[string]int
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &got))
	assert.Equal(t, 1, got["MSFT"])
}

func TestNewServers(t *testing.T) {
	assert.NotNil(t, NewAccounts(&mockBook{account: &mockAccount{}}))
	assert.NotNil(t, NewMarket(fixedSource{price: decimal.NewFromInt(42)}))
}

func TestLookupSharePrice(t *testing.T) {
	handler := lookupSharePrice(fixedSource{price: decimal.RequireFromString("187.25")})
	res, err := handler(context.Background(), toolRequest("lookup_share_price", map[string]any{"symbol": "AAPL"}))
	require.NoError(t, err)
	assert.Equal(t, "187.25", resultText(t, res))
}
