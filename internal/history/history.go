// Package history persists agent runs so a session can be resumed with the
// model seeing its earlier turns.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"agentdesk/internal/db"

	"github.com/openai/openai-go/v3/responses"
)

type Store struct {
	q *db.Queries
}

func NewStore(database *db.DB) *Store {
	return &Store{q: db.New(database.Conn())}
}

// Begin registers sessionID as owned by agentName, or touches it when it
// already exists.
func (s *Store) Begin(ctx context.Context, sessionID, agentName string) error {
	return s.q.UpsertSession(ctx, db.UpsertSessionParams{ID: sessionID, Agent: agentName})
}

// Record stores the message of one run and the final response it produced.
func (s *Store) Record(ctx context.Context, sessionID, message string, resp *responses.Response) error {
	if resp == nil {
		return fmt.Errorf("recording turn of %s: nil response", sessionID)
	}
	return s.q.InsertTurn(ctx, db.InsertTurnParams{
		SessionID:    sessionID,
		UserMessage:  message,
		ResponseJson: resp.RawJSON(),
		Model:        sql.NullString{String: resp.Model, Valid: resp.Model != ""},
	})
}

// Replay rebuilds the input items of every recorded turn of sessionID, oldest
// first: each user message followed by what the model answered.
func (s *Store) Replay(ctx context.Context, sessionID string) ([]responses.ResponseInputItemUnionParam, error) {
	turns, err := s.q.GetTurnsBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading turns of %s: %w", sessionID, err)
	}

	var items []responses.ResponseInputItemUnionParam
	for _, turn := range turns {
		var resp responses.Response
		if err := json.Unmarshal([]byte(turn.ResponseJson), &resp); err != nil {
			slog.Warn("skipping stored turn", "session_id", sessionID, "turn_id", turn.ID, "error", err)
			continue
		}
		items = append(items, responses.ResponseInputItemParamOfMessage(turn.UserMessage, "user"))
		items = append(items, ToInput(resp.Output)...)
	}
	return items, nil
}

// ToInput turns the output items of a response into input items for the next
// call. Only messages, function calls and reasoning are kept: agents here
// use function tools, never hosted ones.
func ToInput(output []responses.ResponseOutputItemUnion) []responses.ResponseInputItemUnionParam {
	items := make([]responses.ResponseInputItemUnionParam, 0, len(output))
	for _, item := range output {
		switch item.Type {
		case "message":
			v := item.AsMessage().ToParam()
			items = append(items, responses.ResponseInputItemUnionParam{OfOutputMessage: &v})
		case "function_call":
			v := item.AsFunctionCall().ToParam()
			items = append(items, responses.ResponseInputItemUnionParam{OfFunctionCall: &v})
		case "reasoning":
			v := item.AsReasoning().ToParam()
			items = append(items, responses.ResponseInputItemUnionParam{OfReasoning: &v})
		default:
			slog.Debug("dropping output item", "type", item.Type)
		}
	}
	return items
}
