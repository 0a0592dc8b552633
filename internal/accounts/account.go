package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

const timeLayout = "2006-01-02 15:04:05"

// Reports and stored accounts carry money as JSON numbers, which is what the
// models reading the report expect.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

var (
	// InitialBalance is the cash every new or reset account starts with.
	InitialBalance = decimal.NewFromInt(10_000)

	// Spread is applied on top of the market price when buying and taken off
	// it when selling.
	Spread = decimal.RequireFromString("0.002")
)

var (
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("not enough shares held")
	ErrUnknownSymbol      = errors.New("unrecognized symbol")
)

// Transaction is a single executed buy (positive quantity) or sell
// (negative quantity).
type Transaction struct {
	Symbol    string          `json:"symbol"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Timestamp string          `json:"timestamp"`
	Rationale string          `json:"rationale"`
}

func (t Transaction) Total() decimal.Decimal {
	return t.Price.Mul(decimal.NewFromInt(int64(t.Quantity)))
}

func (t Transaction) String() string {
	q := t.Quantity
	if q < 0 {
		q = -q
	}
	return fmt.Sprintf("%d shares of %s at %s each.", q, t.Symbol, t.Price.StringFixed(2))
}

// ValuePoint is one entry of the portfolio value history. It encodes as a
// two-element JSON array: [timestamp, value].
type ValuePoint struct {
	Time  string
	Value decimal.Decimal
}

func (p ValuePoint) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.Time, p.Value})
}

func (p *ValuePoint) UnmarshalJSON(b []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw[0], &p.Time); err != nil {
		return err
	}
	return p.Value.UnmarshalJSON(raw[1])
}

// Account is a simulated brokerage account. Every mutating method persists
// the account before returning.
type Account struct {
	Name                     string          `json:"name"`
	Balance                  decimal.Decimal `json:"balance"`
	Strategy                 string          `json:"strategy"`
	Holdings                 map[string]int  `json:"holdings"`
	Transactions             []Transaction   `json:"transactions"`
	PortfolioValueTimeSeries []ValuePoint    `json:"portfolio_value_time_series"`

	store *Store
}

// Cash returns the current cash balance.
func (a *Account) Cash() decimal.Decimal {
	return a.Balance
}

// Positions returns a copy of the share counts per symbol.
func (a *Account) Positions() map[string]int {
	out := make(map[string]int, len(a.Holdings))
	for s, q := range a.Holdings {
		out[s] = q
	}
	return out
}

func (a *Account) Reset(ctx context.Context, strategy string) error {
	a.Balance = InitialBalance
	a.Strategy = strategy
	a.Holdings = map[string]int{}
	a.Transactions = []Transaction{}
	a.PortfolioValueTimeSeries = []ValuePoint{}
	return a.store.save(ctx, a)
}

func (a *Account) Deposit(ctx context.Context, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("deposit %s: %w", amount, ErrInvalidAmount)
	}
	a.Balance = a.Balance.Add(amount)
	return a.store.save(ctx, a)
}

func (a *Account) Withdraw(ctx context.Context, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("withdraw %s: %w", amount, ErrInvalidAmount)
	}
	if amount.GreaterThan(a.Balance) {
		return fmt.Errorf("withdraw %s: %w", amount, ErrInsufficientFunds)
	}
	a.Balance = a.Balance.Sub(amount)
	return a.store.save(ctx, a)
}

// BuyShares buys quantity shares of symbol at the market price plus spread.
func (a *Account) BuyShares(ctx context.Context, symbol string, quantity int, rationale string) (string, error) {
	if quantity <= 0 {
		return "", fmt.Errorf("buy %d %s: %w", quantity, symbol, ErrInvalidAmount)
	}
	price, err := a.store.prices.SharePrice(ctx, symbol)
	if err != nil {
		return "", fmt.Errorf("pricing %s: %w", symbol, err)
	}
	if price.IsZero() {
		return "", fmt.Errorf("buy %s: %w", symbol, ErrUnknownSymbol)
	}

	buyPrice := price.Mul(decimal.NewFromInt(1).Add(Spread))
	cost := buyPrice.Mul(decimal.NewFromInt(int64(quantity)))
	if cost.GreaterThan(a.Balance) {
		return "", fmt.Errorf("buy %d %s for %s: %w", quantity, symbol, cost.StringFixed(2), ErrInsufficientFunds)
	}

	if a.Holdings == nil {
		a.Holdings = map[string]int{}
	}
	a.Holdings[symbol] += quantity
	a.Transactions = append(a.Transactions, Transaction{
		Symbol:    symbol,
		Quantity:  quantity,
		Price:     buyPrice,
		Timestamp: a.store.now().Format(timeLayout),
		Rationale: rationale,
	})
	a.Balance = a.Balance.Sub(cost)

	if err := a.store.save(ctx, a); err != nil {
		return "", err
	}
	a.store.log(ctx, a.Name, fmt.Sprintf("Bought %d of %s", quantity, symbol))

	report, err := a.Report(ctx)
	if err != nil {
		return "", err
	}
	return "Completed. Latest details:\n" + report, nil
}

// SellShares sells quantity shares of symbol at the market price minus spread.
func (a *Account) SellShares(ctx context.Context, symbol string, quantity int, rationale string) (string, error) {
	if quantity <= 0 {
		return "", fmt.Errorf("sell %d %s: %w", quantity, symbol, ErrInvalidAmount)
	}
	if a.Holdings[symbol] < quantity {
		return "", fmt.Errorf("cannot sell %d shares of %s: %w", quantity, symbol, ErrInsufficientShares)
	}
	price, err := a.store.prices.SharePrice(ctx, symbol)
	if err != nil {
		return "", fmt.Errorf("pricing %s: %w", symbol, err)
	}

	sellPrice := price.Mul(decimal.NewFromInt(1).Sub(Spread))
	proceeds := sellPrice.Mul(decimal.NewFromInt(int64(quantity)))

	a.Holdings[symbol] -= quantity
	if a.Holdings[symbol] == 0 {
		delete(a.Holdings, symbol)
	}
	a.Transactions = append(a.Transactions, Transaction{
		Symbol:    symbol,
		Quantity:  -quantity,
		Price:     sellPrice,
		Timestamp: a.store.now().Format(timeLayout),
		Rationale: rationale,
	})
	a.Balance = a.Balance.Add(proceeds)

	if err := a.store.save(ctx, a); err != nil {
		return "", err
	}
	a.store.log(ctx, a.Name, fmt.Sprintf("Sold %d of %s", quantity, symbol))

	report, err := a.Report(ctx)
	if err != nil {
		return "", err
	}
	return "Completed. Latest details:\n" + report, nil
}

// PortfolioValue is cash plus every holding at the current market price.
func (a *Account) PortfolioValue(ctx context.Context) (decimal.Decimal, error) {
	total := a.Balance
	for symbol, qty := range a.Holdings {
		price, err := a.store.prices.SharePrice(ctx, symbol)
		if err != nil {
			return decimal.Zero, fmt.Errorf("pricing %s: %w", symbol, err)
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(qty))))
	}
	return total, nil
}

// ProfitLoss compares value against what has been spent so far.
func (a *Account) ProfitLoss(value decimal.Decimal) decimal.Decimal {
	spent := decimal.Zero
	for _, t := range a.Transactions {
		spent = spent.Add(t.Total())
	}
	return value.Sub(spent).Sub(a.Balance)
}

// Report records the current portfolio value and returns the account as JSON
// with the computed totals added.
func (a *Account) Report(ctx context.Context) (string, error) {
	value, err := a.PortfolioValue(ctx)
	if err != nil {
		return "", err
	}
	a.PortfolioValueTimeSeries = append(a.PortfolioValueTimeSeries, ValuePoint{
		Time:  a.store.now().Format(timeLayout),
		Value: value,
	})
	if err := a.store.save(ctx, a); err != nil {
		return "", err
	}

	report := struct {
		*Account
		TotalPortfolioValue decimal.Decimal `json:"total_portfolio_value"`
		TotalProfitLoss     decimal.Decimal `json:"total_profit_loss"`
	}{
		Account:             a,
		TotalPortfolioValue: value,
		TotalProfitLoss:     a.ProfitLoss(value),
	}
	b, err := json.Marshal(report)
	if err != nil {
		return "", err
	}

	a.store.log(ctx, a.Name, "Retrieved account details")
	return string(b), nil
}

func (a *Account) GetStrategy(ctx context.Context) string {
	a.store.log(ctx, a.Name, "Retrieved strategy")
	return a.Strategy
}

func (a *Account) ChangeStrategy(ctx context.Context, strategy string) (string, error) {
	a.Strategy = strategy
	if err := a.store.save(ctx, a); err != nil {
		return "", err
	}
	a.store.log(ctx, a.Name, "Changed strategy")
	return "Changed strategy", nil
}

func (a *Account) normalize() {
	if a.Holdings == nil {
		a.Holdings = map[string]int{}
	}
	if a.Transactions == nil {
		a.Transactions = []Transaction{}
	}
	if a.PortfolioValueTimeSeries == nil {
		a.PortfolioValueTimeSeries = []ValuePoint{}
	}
}
