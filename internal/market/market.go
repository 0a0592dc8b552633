package market

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"agentdesk/internal/db"

	"github.com/shopspring/decimal"
)

// Source quotes share prices. A zero price with a nil error means the
// symbol is not known to the source.
type Source interface {
	SharePrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Random quotes a pseudo-random whole price between 1 and 100. It stands in
// for a market data feed when none is configured.
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandom(seed uint64) *Random {
	return &Random{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (r *Random) SharePrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	if strings.TrimSpace(symbol) == "" {
		return decimal.Zero, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return decimal.NewFromInt(int64(r.rng.IntN(100) + 1)), nil
}

// Fallback quotes from primary and switches to secondary when primary fails.
type Fallback struct {
	primary   Source
	secondary Source
}

func WithFallback(primary, secondary Source) *Fallback {
	return &Fallback{primary: primary, secondary: secondary}
}

func (f *Fallback) SharePrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	price, err := f.primary.SharePrice(ctx, symbol)
	if err == nil {
		return price, nil
	}
	slog.Warn("market: primary source failed, using fallback", "symbol", symbol, "error", err)
	return f.secondary.SharePrice(ctx, symbol)
}

// Cached memoizes quotes per calendar day in the market table.
type Cached struct {
	inner   Source
	queries *db.Queries
	now     func() time.Time
}

func NewCached(inner Source, database *db.DB) *Cached {
	return &Cached{
		inner:   inner,
		queries: db.New(database.Conn()),
		now:     time.Now,
	}
}

func (c *Cached) SharePrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	day := c.now().Format(time.DateOnly)

	raw, err := c.queries.GetMarketPrice(ctx, db.GetMarketPriceParams{Date: day, Symbol: symbol})
	if err == nil {
		if price, perr := decimal.NewFromString(raw); perr == nil {
			return price, nil
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		slog.Debug("market cache lookup error", "symbol", symbol, "error", err)
	}

	price, err := c.inner.SharePrice(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	if !price.IsZero() {
		if err := c.queries.UpsertMarketPrice(ctx, db.UpsertMarketPriceParams{
			Date:   day,
			Symbol: symbol,
			Price:  price.String(),
		}); err != nil {
			slog.Debug("market cache store error", "symbol", symbol, "error", err)
		}
	}
	return price, nil
}

// New builds the price source used by the account and market servers:
// cached Polygon quotes with a random fallback when an API key is set,
// random quotes otherwise.
func New(database *db.DB, polygonAPIKey string) Source {
	random := NewRandom(uint64(time.Now().UnixNano()))
	if polygonAPIKey == "" {
		return random
	}
	return WithFallback(NewCached(NewPolygon(polygonAPIKey), database), random)
}
