package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const (
	noQuestionMessage = "No question provided"
	reloadedMessage   = "Database updated from CSV and session cleared."
	resetMessage      = "Session reset and memory cleared."
)

type askRequest struct {
	Question  *string `json:"question"`
	SessionID string  `json:"session_id"`
}

type resetSessionRequest struct {
	SessionID string `json:"session_id"`
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Assistant == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ASSISTANT_NOT_CONFIGURED", "assistant is not configured", false, nil)
		return
	}

	var request askRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil || request.Question == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": noQuestionMessage})
		return
	}

	// The chat call runs to completion even if the caller goes away so the
	// transcript always ends with the assistant turn.
	ctx := context.WithoutCancel(r.Context())
	answer, err := deps.Assistant.Ask(ctx, strings.TrimSpace(request.SessionID), *request.Question)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "ASK_FAILED", err.Error(), true, nil)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func handleReload(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Assistant == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ASSISTANT_NOT_CONFIGURED", "assistant is not configured", false, nil)
		return
	}

	result, err := deps.Assistant.Reload(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, statusResponse{Status: "error", Message: err.Error()})
		return
	}
	if deps.Logger != nil {
		deps.Logger.InfoContext(r.Context(), "dataset_reloaded",
			slog.Int("rows", result.Rows),
			slog.Int("columns", result.Columns),
			slog.Int("sessions_cleared", result.SessionsCleared),
		)
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "success", Message: reloadedMessage})
}

// handleResetSession accepts an optional {"session_id"} body. Anything that
// does not name a session resets the default one.
func handleResetSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Assistant == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ASSISTANT_NOT_CONFIGURED", "assistant is not configured", false, nil)
		return
	}

	var request resetSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil && !errors.Is(err, io.EOF) && deps.Logger != nil {
		deps.Logger.DebugContext(r.Context(), "reset_session_body_ignored", slog.String("error", err.Error()))
	}
	id, existed := deps.Assistant.Reset(strings.TrimSpace(request.SessionID))
	if deps.Logger != nil {
		deps.Logger.InfoContext(r.Context(), "session_reset", slog.String("session_id", id), slog.Bool("existed", existed))
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "success", Message: resetMessage})
}

func handleSummary(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Dataset == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "DATASET_NOT_CONFIGURED", "dataset loader is not configured", false, nil)
		return
	}
	latest, ok := deps.Dataset.Latest()
	if !ok {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "DATASET_NOT_LOADED", "dataset has not been loaded", true, nil)
		return
	}

	response := map[string]any{
		"mode":    latest.Mode,
		"rows":    latest.Rows,
		"columns": latest.Columns,
		"summary": latest.Summary,
	}
	if latest.Snapshot != nil {
		response["snapshot_key"] = latest.Snapshot.Key
	}
	writeJSON(w, http.StatusOK, response)
}
