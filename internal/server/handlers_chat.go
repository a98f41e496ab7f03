package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/cognivia/ideaflow/internal/chat"
	"github.com/cognivia/ideaflow/internal/llm"
	"github.com/cognivia/ideaflow/internal/settings"
)

// sessionIDHeader carries the caller's session identity on the chat route.
const sessionIDHeader = "X-Session-Id"

type chatRequest struct {
	Message string `json:"message"`
}

type finalIdeaRequest struct {
	Idea string `json:"idea"`
}

type analyzeRequest struct {
	SessionID string `json:"session_id"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[server] encode response warning: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleChatStream relays one conversational turn as a chunked plain-text
// stream. Errors map to a status only while nothing has been written; once
// the first token is out, the stream ends quietly with whatever was
// relayed.
func (a *App) handleChatStream(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.Header.Get(sessionIDHeader))
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing "+sessionIDHeader+" header")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	flusher, _ := w.(http.Flusher)
	wrote := false
	sink := func(token string) error {
		if !wrote {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("Cache-Control", "no-cache")
			wrote = true
		}
		if _, err := w.Write([]byte(token)); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}

	err := a.pipeline.Stream(r.Context(), sessionID, req.Message, sink)
	if err == nil || wrote {
		return
	}

	switch {
	case errors.Is(err, chat.ErrStreamInFlight):
		writeError(w, http.StatusConflict, "a stream is already active for this session")
	case errors.Is(err, llm.ErrUnavailable), errors.Is(err, settings.ErrUnavailable):
		log.Printf("[server] chat stream for %s failed: %v", sessionID, err)
		writeError(w, http.StatusInternalServerError, "upstream unavailable")
	default:
		log.Printf("[server] chat stream for %s failed: %v", sessionID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// handleConversation returns the durable transcript for a session.
func (a *App) handleConversation(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	doc, err := a.transcripts.Get(r.Context(), sessionID)
	if err != nil {
		log.Printf("[server] load conversation %s failed: %v", sessionID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if doc == nil {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"conversation_history": doc.Messages,
	})
}

// handleAddFinalIdea records the user's submitted final idea, creating
// the session document when none exists yet. An unacknowledged write is
// the caller's error.
func (a *App) handleAddFinalIdea(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	var req finalIdeaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	acknowledged, err := a.transcripts.SetFinalIdea(r.Context(), sessionID, req.Idea)
	if err != nil {
		log.Printf("[server] set final idea %s failed: %v", sessionID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !acknowledged {
		writeError(w, http.StatusBadRequest, "final idea was not recorded")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"acknowledged": true})
}

// handleAnalyze scores a session's transcript and upserts the result,
// replacing any earlier analysis for the session. The session id travels
// in the POST body; the query string is honored as a fallback.
func (a *App) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = strings.TrimSpace(r.URL.Query().Get("session_id"))
	}
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	doc, err := a.transcripts.Get(r.Context(), sessionID)
	if err != nil {
		log.Printf("[server] load session %s for analysis failed: %v", sessionID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if doc == nil {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	result := a.scorer.Analyze(r.Context(), sessionID, doc.Messages, doc.FinalIdea)
	if err := a.analyses.Upsert(r.Context(), result); err != nil {
		log.Printf("[server] store analysis %s failed: %v", sessionID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	// The stored record is served by GET /analysis; this endpoint only
	// acknowledges.
	writeJSON(w, http.StatusOK, map[string]bool{"acknowledged": true})
}
