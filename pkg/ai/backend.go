package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/leadscope/leadscope/pkg/conversation"
)

// maxHistoryTurns bounds how much of the session is replayed to the model.
const maxHistoryTurns = 20

// Backend answers free-form questions about the lead collection with a
// language model. It satisfies conversation.Backend.
type Backend struct {
	c completer
}

// NewBackend builds a backend for cfg.Provider (xai, openai or gemini).
func NewBackend(ctx context.Context, cfg Config) (*Backend, error) {
	c, err := newCompleter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Backend{c: c}, nil
}

func (b *Backend) Respond(ctx context.Context, snap conversation.Snapshot, history []conversation.Turn, query string) (string, error) {
	msgs, err := buildMessages(snap, history, query)
	if err != nil {
		return "", err
	}
	return b.c.complete(ctx, msgs, false)
}

func buildMessages(snap conversation.Snapshot, history []conversation.Turn, query string) ([]message, error) {
	leadsJSON, err := json.Marshal(snap.Leads)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}

	scope := fmt.Sprintf("Total leads: %d.", snap.Total)
	if snap.Truncated() {
		scope = fmt.Sprintf("Total leads: %d. Only the %d highest scoring are listed below; say so when it matters for the answer.", snap.Total, len(snap.Leads))
	}

	msgs := []message{{
		Role:    "system",
		Content: fmt.Sprintf(assistantPrompt, scope, leadsJSON),
	}}

	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	for _, t := range history {
		msgs = append(msgs,
			message{Role: "user", Content: t.Input},
			message{Role: "assistant", Content: t.Response},
		)
	}
	msgs = append(msgs, message{Role: "user", Content: query})
	return msgs, nil
}

const assistantPrompt = `You are a sales intelligence assistant working over a lead database.

%s

Each lead has: id, company, contact_name, email, title, phone, source, company_size,
annual_revenue, budget, decision_maker, pain_points, timeline, tags, score (0-100),
category (qualified, unqualified, unscored), notes, domain.

LEADS (JSON, best score first):
%s

Answer the user's question from this data. Give specific numbers and name leads by
company and id. When asked to filter, state the criteria you applied. Keep the answer
conversational and concise, and ask for specifics if the question is ambiguous.`
