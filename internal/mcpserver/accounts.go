package mcpserver

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"agentdesk/internal/accounts"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/shopspring/decimal"
)

const (
	accountURIPrefix  = "accounts://accounts_server/"
	strategyURIPrefix = "accounts://strategy/"
)

// Account is the set of account operations the server forwards to.
type Account interface {
	Cash() decimal.Decimal
	Positions() map[string]int
	BuyShares(ctx context.Context, symbol string, quantity int, rationale string) (string, error)
	SellShares(ctx context.Context, symbol string, quantity int, rationale string) (string, error)
	ChangeStrategy(ctx context.Context, strategy string) (string, error)
	Report(ctx context.Context) (string, error)
	GetStrategy(ctx context.Context) string
}

// Book looks accounts up by holder name.
type Book interface {
	Get(ctx context.Context, name string) (Account, error)
}

// StoreBook serves accounts from the sqlite-backed store.
type StoreBook struct {
	Store *accounts.Store
}

func (b StoreBook) Get(ctx context.Context, name string) (Account, error) {
	acct, err := b.Store.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return acct, nil
}

type accountsServer struct {
	// Every operation loads, mutates and saves a whole account, so calls are
	// serialized.
	mu   sync.Mutex
	book Book
}

// NewAccounts builds the accounts MCP server.
func NewAccounts(book Book) *server.MCPServer {
	s := server.NewMCPServer("accounts_server", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)
	h := &accountsServer{book: book}

	s.AddTool(mcp.NewTool("get_balance",
		mcp.WithDescription("Get the cash balance of the given account name."),
		mcp.WithString("name", mcp.Required(), mcp.Description("The name of the account holder")),
	), h.getBalance)

	s.AddTool(mcp.NewTool("get_holdings",
		mcp.WithDescription("Get the holdings of the given account name."),
		mcp.WithString("name", mcp.Required(), mcp.Description("The name of the account holder")),
	), h.getHoldings)

	s.AddTool(mcp.NewTool("buy_shares",
		mcp.WithDescription("Buy shares of a stock."),
		mcp.WithString("name", mcp.Required(), mcp.Description("The name of the account holder")),
		mcp.WithString("symbol", mcp.Required(), mcp.Description("The symbol of the stock")),
		mcp.WithNumber("quantity", mcp.Required(), mcp.Description("The quantity of shares to buy")),
		mcp.WithString("rationale", mcp.Required(), mcp.Description("The rationale for the purchase and fit with the account's strategy")),
	), h.buyShares)

	s.AddTool(mcp.NewTool("sell_shares",
		mcp.WithDescription("Sell shares of a stock."),
		mcp.WithString("name", mcp.Required(), mcp.Description("The name of the account holder")),
		mcp.WithString("symbol", mcp.Required(), mcp.Description("The symbol of the stock")),
		mcp.WithNumber("quantity", mcp.Required(), mcp.Description("The quantity of shares to sell")),
		mcp.WithString("rationale", mcp.Required(), mcp.Description("The rationale for the sale and fit with the account's strategy")),
	), h.sellShares)

	s.AddTool(mcp.NewTool("change_strategy",
		mcp.WithDescription("At your discretion, if you choose to, call this to change your investment strategy for the future."),
		mcp.WithString("name", mcp.Required(), mcp.Description("The name of the account holder")),
		mcp.WithString("strategy", mcp.Required(), mcp.Description("The new strategy for the account")),
	), h.changeStrategy)

	s.AddResourceTemplate(mcp.NewResourceTemplate(accountURIPrefix+"{name}", "account",
		mcp.WithTemplateDescription("The account report of the named holder."),
		mcp.WithTemplateMIMEType("application/json"),
	), h.readAccount)

	s.AddResourceTemplate(mcp.NewResourceTemplate(strategyURIPrefix+"{name}", "strategy",
		mcp.WithTemplateDescription("The investment strategy of the named holder."),
		mcp.WithTemplateMIMEType("text/plain"),
	), h.readStrategy)

	return s
}

type nameArgs struct {
	Name string `json:"name"`
}

type tradeArgs struct {
	Name      string `json:"name"`
	Symbol    string `json:"symbol"`
	Quantity  int    `json:"quantity"`
	Rationale string `json:"rationale"`
}

type strategyArgs struct {
	Name     string `json:"name"`
	Strategy string `json:"strategy"`
}

// account binds the request to args and loads the named account. A non-nil
// result is an error to hand back to the caller.
func (h *accountsServer) account(ctx context.Context, req mcp.CallToolRequest, args any, name func() string) (Account, *mcp.CallToolResult) {
	if err := bind(req, args); err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	if strings.TrimSpace(name()) == "" {
		return nil, mcp.NewToolResultError("name is required")
	}
	acct, err := h.book.Get(ctx, name())
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	return acct, nil
}

func (h *accountsServer) getBalance(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var args nameArgs
	acct, res := h.account(ctx, req, &args, func() string { return args.Name })
	if res != nil {
		return res, nil
	}
	return mcp.NewToolResultText(acct.Cash().String()), nil
}

func (h *accountsServer) getHoldings(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var args nameArgs
	acct, res := h.account(ctx, req, &args, func() string { return args.Name })
	if res != nil {
		return res, nil
	}
	return jsonResult(acct.Positions())
}

func (h *accountsServer) buyShares(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.trade(ctx, req, Account.BuyShares)
}

func (h *accountsServer) sellShares(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.trade(ctx, req, Account.SellShares)
}

func (h *accountsServer) trade(ctx context.Context, req mcp.CallToolRequest, op func(Account, context.Context, string, int, string) (string, error)) (*mcp.CallToolResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var args tradeArgs
	acct, res := h.account(ctx, req, &args, func() string { return args.Name })
	if res != nil {
		return res, nil
	}
	out, err := op(acct, ctx, args.Symbol, args.Quantity, args.Rationale)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(out), nil
}

func (h *accountsServer) changeStrategy(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var args strategyArgs
	acct, res := h.account(ctx, req, &args, func() string { return args.Name })
	if res != nil {
		return res, nil
	}
	out, err := acct.ChangeStrategy(ctx, args.Strategy)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(out), nil
}

func (h *accountsServer) readAccount(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	acct, err := h.resourceAccount(ctx, req.Params.URI, accountURIPrefix)
	if err != nil {
		return nil, err
	}
	report, err := acct.Report(ctx)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{mcp.TextResourceContents{
		URI:      req.Params.URI,
		MIMEType: "application/json",
		Text:     report,
	}}, nil
}

func (h *accountsServer) readStrategy(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	acct, err := h.resourceAccount(ctx, req.Params.URI, strategyURIPrefix)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{mcp.TextResourceContents{
		URI:      req.Params.URI,
		MIMEType: "text/plain",
		Text:     acct.GetStrategy(ctx),
	}}, nil
}

func (h *accountsServer) resourceAccount(ctx context.Context, uri, prefix string) (Account, error) {
	name, ok := strings.CutPrefix(uri, prefix)
	if !ok || name == "" {
		return nil, fmt.Errorf("unsupported resource uri: %s", uri)
	}
	return h.book.Get(ctx, strings.ToLower(name))
}
