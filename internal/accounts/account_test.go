package accounts

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"agentdesk/internal/db"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedPrices map[string]decimal.Decimal

func (f fixedPrices) SharePrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	return f[symbol], nil
}

func newTestStore(t *testing.T, prices Prices) *Store {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "accounts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.Migrate())

	clock := time.Date(2025, 6, 2, 15, 4, 5, 0, time.UTC)
	return NewStore(database, prices, WithClock(func() time.Time { return clock }))
}

func TestStore_GetCreatesAccount(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, fixedPrices{})

	acct, err := store.Get(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", acct.Name)
	assert.True(t, acct.Cash().Equal(InitialBalance))
	assert.Empty(t, acct.Positions())

	names, err := store.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, names)
}

func TestAccount_BuyAndSell(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, fixedPrices{"AAPL": decimal.NewFromInt(100)})

	acct, err := store.Get(ctx, "tom")
	require.NoError(t, err)

	out, err := acct.BuyShares(ctx, "AAPL", 10, "momentum")
	require.NoError(t, err)
	assert.Contains(t, out, "Completed. Latest details:\n")

	// 10 * 100 * 1.002
	assert.Equal(t, "8998", acct.Cash().String())
	assert.Equal(t, map[string]int{"AAPL": 10}, acct.Positions())

	_, err = acct.SellShares(ctx, "AAPL", 10, "take profit")
	require.NoError(t, err)
	// + 10 * 100 * 0.998
	assert.Equal(t, "9996", acct.Cash().String())
	assert.Empty(t, acct.Positions())
	require.Len(t, acct.Transactions, 2)
	assert.Equal(t, -10, acct.Transactions[1].Quantity)
	assert.Equal(t, "10 shares of AAPL at 99.80 each.", acct.Transactions[1].String())

	reloaded, err := store.Get(ctx, "TOM")
	require.NoError(t, err)
	assert.Equal(t, acct.Cash().String(), reloaded.Cash().String())
	assert.Len(t, reloaded.Transactions, 2)
}

func TestAccount_BuyErrors(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, fixedPrices{"AAPL": decimal.NewFromInt(5000)})

	tests := []struct {
		name    string
		symbol  string
		qty     int
		wantErr error
	}{
		{name: "unknown symbol", symbol: "NOPE", qty: 1, wantErr: ErrUnknownSymbol},
		{name: "insufficient funds", symbol: "AAPL", qty: 3, wantErr: ErrInsufficientFunds},
		{name: "non-positive quantity", symbol: "AAPL", qty: 0, wantErr: ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acct, err := store.Get(ctx, "bob")
			require.NoError(t, err)

			_, err = acct.BuyShares(ctx, tt.symbol, tt.qty, "")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, acct.Cash().Equal(InitialBalance))
		})
	}
}

func TestAccount_SellMoreThanHeld(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, fixedPrices{"MSFT": decimal.NewFromInt(10)})

	acct, err := store.Get(ctx, "carol")
	require.NoError(t, err)
	_, err = acct.BuyShares(ctx, "MSFT", 2, "")
	require.NoError(t, err)

	_, err = acct.SellShares(ctx, "MSFT", 3, "")
	assert.ErrorIs(t, err, ErrInsufficientShares)
	assert.Equal(t, 2, acct.Positions()["MSFT"])
}

func TestAccount_DepositWithdraw(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, fixedPrices{})

	acct, err := store.Get(ctx, "dave")
	require.NoError(t, err)

	assert.ErrorIs(t, acct.Deposit(ctx, decimal.Zero), ErrInvalidAmount)
	require.NoError(t, acct.Deposit(ctx, decimal.NewFromInt(500)))
	assert.ErrorIs(t, acct.Withdraw(ctx, decimal.NewFromInt(20_000)), ErrInsufficientFunds)
	require.NoError(t, acct.Withdraw(ctx, decimal.NewFromInt(1500)))
	assert.Equal(t, "9000", acct.Cash().String())
}

func TestAccount_Report(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, fixedPrices{"AAPL": decimal.NewFromInt(100)})

	acct, err := store.Get(ctx, "erin")
	require.NoError(t, err)
	_, err = acct.BuyShares(ctx, "AAPL", 1, "")
	require.NoError(t, err)

	report, err := acct.Report(ctx)
	require.NoError(t, err)

	var got map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(report), &got))
	for _, key := range []string{"name", "balance", "strategy", "holdings", "transactions", "portfolio_value_time_series", "total_portfolio_value", "total_profit_loss"} {
		assert.Contains(t, got, key)
	}

	assert.Equal(t, "9899.8", string(got["balance"]))
	assert.Equal(t, "9999.8", string(got["total_portfolio_value"]))

	var series []ValuePoint
	require.NoError(t, json.Unmarshal(got["portfolio_value_time_series"], &series))
	// One point from the buy, one from this report.
	require.Len(t, series, 2)
	assert.Equal(t, "2025-06-02 15:04:05", series[1].Time)
	assert.Equal(t, "9999.8", series[1].Value.String())

	logs, err := store.Logs(ctx, "erin", 10)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, "Bought 1 of AAPL", logs[0].Message)
	assert.Equal(t, "Retrieved account details", logs[len(logs)-1].Message)
}

func TestAccount_Strategy(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, fixedPrices{})

	acct, err := store.Get(ctx, "frank")
	require.NoError(t, err)

	msg, err := acct.ChangeStrategy(ctx, "Buy the dip")
	require.NoError(t, err)
	assert.Equal(t, "Changed strategy", msg)

	reloaded, err := store.Get(ctx, "frank")
	require.NoError(t, err)
	assert.Equal(t, "Buy the dip", reloaded.GetStrategy(ctx))
}
