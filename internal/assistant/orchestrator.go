// Package assistant runs per-session conversations about the loaded table.
//
// A session starts unseeded. Its first question triggers a preview of the
// stored table, which becomes the system turn; every question then adds a
// user turn and the model's reply as an assistant turn. Questions that are
// themselves read queries may additionally run against the store.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tablechat/tablechat/internal/chat"
	"github.com/tablechat/tablechat/internal/observability"
	"github.com/tablechat/tablechat/internal/session"
	"github.com/tablechat/tablechat/internal/store"
)

const (
	DefaultSessionID   = "default"
	DefaultPreviewRows = 10

	NoRowsMessage              = "Query returned no rows."
	PassthroughDisabledMessage = "Query passthrough is disabled."
)

var ErrNoRows = errors.New("query returned no rows")

// Chatter returns the model's reply to a transcript. It reports failures as
// reply text.
type Chatter interface {
	Ask(ctx context.Context, messages []chat.Message) string
}

type Config struct {
	DefaultSessionID string
	PreviewRows      int
	// Passthrough lets questions starting with "select" run verbatim against
	// the store. Writes are rolled back but the text is not otherwise checked.
	Passthrough      bool
	Logger           *slog.Logger
}

type Answer struct {
	Response   string         `json:"response"`
	Table      []store.Record `json:"table"`
	TableError *string        `json:"table_error"`
}

type ReloadResult struct {
	LoadResult
	SessionsCleared int
}

type Orchestrator struct {
	store    store.Store
	chat     Chatter
	sessions session.Store
	loader   *Loader
	cfg      Config
	logger   *slog.Logger
}

func New(st store.Store, chatter Chatter, sessions session.Store, loader *Loader, cfg Config) *Orchestrator {
	if strings.TrimSpace(cfg.DefaultSessionID) == "" {
		cfg.DefaultSessionID = DefaultSessionID
	}
	if cfg.PreviewRows <= 0 {
		cfg.PreviewRows = DefaultPreviewRows
	}
	logger := cfg.Logger
	if logger == nil {
		logger = observability.DiscardLogger()
	}
	return &Orchestrator{store: st, chat: chatter, sessions: sessions, loader: loader, cfg: cfg, logger: logger}
}

func (o *Orchestrator) SessionID(id string) string {
	if strings.TrimSpace(id) == "" {
		return o.cfg.DefaultSessionID
	}
	return id
}

// Ask adds one question and its reply to the session transcript. The only
// error it returns is the context's.
func (o *Orchestrator) Ask(ctx context.Context, sessionID, question string) (Answer, error) {
	observability.IncrementAskRequests()
	id := o.SessionID(sessionID)

	var answer Answer
	err := o.sessions.With(ctx, id, func(transcript *session.Transcript) error {
		if !transcript.Seeded() {
			transcript.Messages = append(transcript.Messages, o.seed(ctx, id))
		}
		transcript.Messages = append(transcript.Messages, chat.Message{Role: chat.RoleUser, Content: question})
		answer.Response = o.chat.Ask(ctx, transcript.Messages)
		transcript.Messages = append(transcript.Messages, chat.Message{Role: chat.RoleAssistant, Content: answer.Response})
		return nil
	})
	if err != nil {
		return Answer{}, err
	}

	if IsQuery(question) {
		answer.Table, answer.TableError = o.runQuery(ctx, id, question)
	}
	return answer, nil
}

// Reset clears one session. It reports whether the session existed.
func (o *Orchestrator) Reset(sessionID string) (string, bool) {
	id := o.SessionID(sessionID)
	return id, o.sessions.Reset(id)
}

// Reload reloads the table from the CSV without type inference and clears
// every session so the next question reseeds from the new data.
func (o *Orchestrator) Reload(ctx context.Context) (ReloadResult, error) {
	if o.loader == nil {
		return ReloadResult{}, fmt.Errorf("reload is not configured")
	}
	loaded, err := o.loader.LoadRaw(ctx)
	if err != nil {
		return ReloadResult{}, err
	}
	return ReloadResult{LoadResult: loaded, SessionsCleared: o.sessions.ResetAll()}, nil
}

// Transcript returns a copy of the session's turns.
func (o *Orchestrator) Transcript(sessionID string) []chat.Message {
	transcript, ok := o.sessions.Get(o.SessionID(sessionID))
	if !ok {
		return nil
	}
	return transcript.Messages
}

func (o *Orchestrator) seed(ctx context.Context, id string) chat.Message {
	preview, err := o.store.Preview(ctx, o.cfg.PreviewRows)
	previewText := FormatPreview(preview)
	if err != nil {
		previewText = fmt.Sprintf("(Error fetching from DB: %v)", err)
	}
	observability.IncrementSessionsSeeded()
	o.logger.InfoContext(ctx, "session_seeded",
		slog.String("session_id", id),
		slog.Int("preview_rows", len(preview.Rows)),
		slog.Bool("preview_failed", err != nil),
	)
	return chat.Message{Role: chat.RoleSystem, Content: SystemPrompt(previewText)}
}

func (o *Orchestrator) runQuery(ctx context.Context, id, question string) ([]store.Record, *string) {
	if !o.cfg.Passthrough {
		return nil, stringPtr(PassthroughDisabledMessage)
	}
	records, err := o.query(ctx, question)
	switch {
	case err == nil:
		observability.ObserveAdhocQuery(observability.OutcomeOK)
		return records, nil
	case errors.Is(err, ErrNoRows):
		observability.ObserveAdhocQuery(observability.OutcomeNoRows)
		return nil, stringPtr(NoRowsMessage)
	default:
		observability.ObserveAdhocQuery(observability.OutcomeError)
		o.logger.WarnContext(ctx, "adhoc_query_failed",
			slog.String("session_id", id),
			slog.String("error", err.Error()),
		)
		return nil, stringPtr(fmt.Sprintf("SQL error: %v", err))
	}
}

func (o *Orchestrator) query(ctx context.Context, sqlText string) ([]store.Record, error) {
	result, err := o.store.QueryUnsafe(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	if len(result.Rows) == 0 {
		return nil, ErrNoRows
	}
	return result.Records(), nil
}

// IsQuery reports whether the question should also run as a read query.
func IsQuery(question string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(question)), "select")
}

func SystemPrompt(preview string) string {
	return "You are an intelligent data assistant. " +
		"Here is a preview of the data from SQL:\n" +
		preview + "\n" +
		"Answer questions by giving final answers or summaries. " +
		"Do NOT provide raw SQL code or query snippets in your answer."
}

func stringPtr(value string) *string {
	return &value
}
