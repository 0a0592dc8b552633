package accounts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"agentdesk/internal/db"

	"github.com/shopspring/decimal"
)

// Prices quotes the current share price of a symbol. A zero price means the
// symbol is unknown.
type Prices interface {
	SharePrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Store loads and persists accounts as one JSON document per lower-cased
// name, and keeps the per-account activity log.
type Store struct {
	queries *db.Queries
	prices  Prices
	now     func() time.Time
}

type StoreOption func(*Store)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

func NewStore(database *db.DB, prices Prices, opts ...StoreOption) *Store {
	s := &Store{
		queries: db.New(database.Conn()),
		prices:  prices,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get loads the account for name, creating it with the initial balance when
// it does not exist yet.
func (s *Store) Get(ctx context.Context, name string) (*Account, error) {
	key := strings.ToLower(name)
	raw, err := s.queries.GetAccount(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		a := &Account{
			Name:    key,
			Balance: InitialBalance,
			store:   s,
		}
		a.normalize()
		if err := s.save(ctx, a); err != nil {
			return nil, err
		}
		slog.Debug("account created", "name", key)
		return a, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading account %s: %w", key, err)
	}

	a := &Account{store: s}
	if err := json.Unmarshal([]byte(raw), a); err != nil {
		return nil, fmt.Errorf("decoding account %s: %w", key, err)
	}
	a.normalize()
	return a, nil
}

// Names lists every stored account.
func (s *Store) Names(ctx context.Context) ([]string, error) {
	return s.queries.ListAccountNames(ctx)
}

// WriteLog appends an entry to the activity log of name.
func (s *Store) WriteLog(ctx context.Context, name, typ, message string) error {
	return s.queries.InsertLog(ctx, db.InsertLogParams{
		Name:     strings.ToLower(name),
		Datetime: s.now(),
		Type:     typ,
		Message:  message,
	})
}

// Logs returns the latest limit entries of the activity log of name.
func (s *Store) Logs(ctx context.Context, name string, limit int) ([]db.Log, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.queries.ListLogs(ctx, strings.ToLower(name), int64(limit))
}

func (s *Store) save(ctx context.Context, a *Account) error {
	b, err := json.Marshal(a)
	if err != nil {
		return err
	}
	if err := s.queries.UpsertAccount(ctx, db.UpsertAccountParams{
		Name:    strings.ToLower(a.Name),
		Account: string(b),
	}); err != nil {
		return fmt.Errorf("saving account %s: %w", a.Name, err)
	}
	return nil
}

// log is best-effort: a failed log write never fails the account operation.
func (s *Store) log(ctx context.Context, name, message string) {
	if err := s.WriteLog(ctx, name, "account", message); err != nil {
		slog.Warn("account log write failed", "name", name, "error", err)
	}
}
