package db

import (
	"context"
	"database/sql"
	"slices"
	"time"
)

// Queries holds the hand-written statements used across packages.
type Queries struct {
	db *sql.DB
}

func New(conn *sql.DB) *Queries {
	return &Queries{db: conn}
}

// Accounts

func (q *Queries) GetAccount(ctx context.Context, name string) (string, error) {
	var raw string
	err := q.db.QueryRowContext(ctx, `SELECT account FROM accounts WHERE name = ?`, name).Scan(&raw)
	return raw, err
}

type UpsertAccountParams struct {
	Name    string
	Account string
}

func (q *Queries) UpsertAccount(ctx context.Context, arg UpsertAccountParams) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO accounts (name, account) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET account = excluded.account
	`, arg.Name, arg.Account)
	return err
}

func (q *Queries) ListAccountNames(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT name FROM accounts ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// Logs

type Log struct {
	ID       int64
	Name     string
	Datetime time.Time
	Type     string
	Message  string
}

type InsertLogParams struct {
	Name     string
	Datetime time.Time
	Type     string
	Message  string
}

func (q *Queries) InsertLog(ctx context.Context, arg InsertLogParams) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO logs (name, datetime, type, message) VALUES (?, ?, ?, ?)
	`, arg.Name, arg.Datetime.UTC(), arg.Type, arg.Message)
	return err
}

// ListLogs returns the most recent entries for name, oldest first.
func (q *Queries) ListLogs(ctx context.Context, name string, limit int64) ([]Log, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, name, datetime, type, message FROM logs
		WHERE name = ?
		ORDER BY id DESC
		LIMIT ?
	`, name, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []Log
	for rows.Next() {
		var l Log
		if err := rows.Scan(&l.ID, &l.Name, &l.Datetime, &l.Type, &l.Message); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.Reverse(logs)
	return logs, nil
}

// Market

type GetMarketPriceParams struct {
	Date   string
	Symbol string
}

func (q *Queries) GetMarketPrice(ctx context.Context, arg GetMarketPriceParams) (string, error) {
	var price string
	err := q.db.QueryRowContext(ctx, `
		SELECT price FROM market WHERE date = ? AND symbol = ?
	`, arg.Date, arg.Symbol).Scan(&price)
	return price, err
}

type UpsertMarketPriceParams struct {
	Date   string
	Symbol string
	Price  string
}

func (q *Queries) UpsertMarketPrice(ctx context.Context, arg UpsertMarketPriceParams) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO market (date, symbol, price) VALUES (?, ?, ?)
		ON CONFLICT(date, symbol) DO UPDATE SET price = excluded.price
	`, arg.Date, arg.Symbol, arg.Price)
	return err
}

// Sessions and turns

type UpsertSessionParams struct {
	ID    string
	Agent string
}

func (q *Queries) UpsertSession(ctx context.Context, arg UpsertSessionParams) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO sessions (id, agent) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET updated_at = CURRENT_TIMESTAMP
	`, arg.ID, arg.Agent)
	return err
}

type Turn struct {
	ID           int64
	SessionID    string
	UserMessage  string
	ResponseJson string
	Model        sql.NullString
	CreatedAt    time.Time
}

type InsertTurnParams struct {
	SessionID    string
	UserMessage  string
	ResponseJson string
	Model        sql.NullString
}

func (q *Queries) InsertTurn(ctx context.Context, arg InsertTurnParams) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO turns (session_id, user_message, response_json, model) VALUES (?, ?, ?, ?)
	`, arg.SessionID, arg.UserMessage, arg.ResponseJson, arg.Model)
	return err
}

func (q *Queries) GetTurnsBySession(ctx context.Context, sessionID string) ([]Turn, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, session_id, user_message, response_json, model, created_at
		FROM turns WHERE session_id = ? ORDER BY id ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.SessionID, &t.UserMessage, &t.ResponseJson, &t.Model, &t.CreatedAt); err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}
