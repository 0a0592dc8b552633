package account

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"agentdesk/internal/accounts"
	"agentdesk/internal/db"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noPrices struct{}

func (noPrices) SharePrice(context.Context, string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func testOptions(t *testing.T) options {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "cli.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate())
	t.Cleanup(func() { database.Close() })

	store := accounts.NewStore(database, noPrices{})
	return options{open: func(context.Context) (*accounts.Store, func() error, error) {
		return store, func() error { return nil }, nil
	}}
}

func run(t *testing.T, opts options, args ...string) (string, error) {
	t.Helper()
	cmd := newCmd(opts)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAccountCmd_Show(t *testing.T) {
	opts := testOptions(t)

	out, err := run(t, opts, "show", "Tom")
	require.NoError(t, err)

	var report map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "tom", report["name"])
}

func TestAccountCmd_DepositWithdrawReset(t *testing.T) {
	opts := testOptions(t)

	out, err := run(t, opts, "deposit", "tom", "250.5")
	require.NoError(t, err)
	assert.Equal(t, "Balance of tom: 10250.50\n", out)

	out, err = run(t, opts, "withdraw", "tom", "1000")
	require.NoError(t, err)
	assert.Equal(t, "Balance of tom: 9250.50\n", out)

	_, err = run(t, opts, "withdraw", "tom", "99999")
	assert.ErrorIs(t, err, accounts.ErrInsufficientFunds)

	_, err = run(t, opts, "deposit", "tom", "lots")
	assert.ErrorContains(t, err, "invalid amount")

	out, err = run(t, opts, "reset", "tom", "--strategy", "Index funds only")
	require.NoError(t, err)
	assert.Equal(t, "Reset tom to 10000.00\n", out)

	out, err = run(t, opts, "list")
	require.NoError(t, err)
	assert.Equal(t, "tom\n", out)
}

func TestAccountCmd_Logs(t *testing.T) {
	opts := testOptions(t)

	_, err := run(t, opts, "show", "ava")
	require.NoError(t, err)

	out, err := run(t, opts, "logs", "ava", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "TIME")
	assert.Contains(t, out, "Retrieved account details")
}

func TestAccountCmd_Args(t *testing.T) {
	opts := testOptions(t)
	_, err := run(t, opts, "deposit", "tom")
	assert.Error(t, err)
}
