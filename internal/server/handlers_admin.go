package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/cognivia/ideaflow/internal/settings"
)

const dateLayout = "2006-01-02"

// handleGetConfig serves the admin settings singleton. 404 until the first
// admin write.
func (a *App) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	s, found, err := a.cache.Current(r.Context())
	if err != nil {
		if errors.Is(err, settings.ErrUnavailable) {
			writeError(w, http.StatusInternalServerError, "settings store unavailable")
			return
		}
		log.Printf("[server] get settings failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "no configuration has been set")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// handlePutConfig updates the settings singleton and refreshes the cache
// before answering, so later requests observe the new values.
func (a *App) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var s settings.Settings
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	stored, err := a.cache.Update(r.Context(), s)
	if err != nil {
		if errors.Is(err, settings.ErrUnavailable) {
			writeError(w, http.StatusInternalServerError, "settings store unavailable")
			return
		}
		log.Printf("[server] update settings failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

func (a *App) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.dashboard.Statistics(r.Context())
	if err != nil {
		log.Printf("[server] statistics failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleDiagrams assembles the dashboard chart data: score and size
// averages, the originality histogram, and the theme distribution over all
// final ideas.
func (a *App) handleDiagrams(w http.ResponseWriter, r *http.Request) {
	avgs, err := a.dashboard.Averages(r.Context())
	if err != nil {
		log.Printf("[server] averages failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	buckets, err := a.dashboard.OriginalityBuckets(r.Context())
	if err != nil {
		log.Printf("[server] originality buckets failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	ideas, err := a.dashboard.FinalIdeas(r.Context())
	if err != nil {
		log.Printf("[server] final ideas failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	// Theme extraction degrades to an empty list on provider trouble.
	themes := a.scorer.ExtractThemes(r.Context(), ideas)

	writeJSON(w, http.StatusOK, map[string]any{
		"averages":            avgs,
		"originality_buckets": buckets,
		"themes":              themes,
	})
}

func (a *App) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	var start, end time.Time
	if v := strings.TrimSpace(r.URL.Query().Get("start_date")); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD")
			return
		}
		start = t
	}
	if v := strings.TrimSpace(r.URL.Query().Get("end_date")); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "end_date must be YYYY-MM-DD")
			return
		}
		// Inclusive through the end of the day.
		end = t.Add(24*time.Hour - time.Nanosecond)
	}

	results, err := a.analyses.List(r.Context(), start, end)
	if err != nil {
		log.Printf("[server] list analyses failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (a *App) handleDeleteAnalysis(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")
	existed, err := a.analyses.Delete(r.Context(), sessionID)
	if err != nil {
		log.Printf("[server] delete analysis %s failed: %v", sessionID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !existed {
		writeError(w, http.StatusNotFound, "no analysis for this session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// sessionRow is one line of the admin data table.
type sessionRow struct {
	SessionID    string    `json:"session_id"`
	MessageCount int       `json:"message_count"`
	FinalIdea    string    `json:"final_idea,omitempty"`
	Analyzed     bool      `json:"analyzed"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// handleDatas lists one summary row per session for the admin table.
func (a *App) handleDatas(w http.ResponseWriter, r *http.Request) {
	docs, err := a.transcripts.All(r.Context())
	if err != nil {
		log.Printf("[server] list sessions failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	rows := make([]sessionRow, 0, len(docs))
	for _, doc := range docs {
		analysis, err := a.analyses.Get(r.Context(), doc.SessionID)
		if err != nil {
			log.Printf("[server] lookup analysis %s warning: %v", doc.SessionID, err)
		}
		rows = append(rows, sessionRow{
			SessionID:    doc.SessionID,
			MessageCount: len(doc.Messages),
			FinalIdea:    doc.FinalIdea,
			Analyzed:     analysis != nil,
			UpdatedAt:    doc.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, rows)
}

// handleUser returns everything recorded for one session: the transcript
// document and its analysis, when present.
func (a *App) handleUser(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("id_session"))
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "id_session is required")
		return
	}

	doc, err := a.transcripts.Get(r.Context(), sessionID)
	if err != nil {
		log.Printf("[server] get session %s failed: %v", sessionID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if doc == nil {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	analysis, err := a.analyses.Get(r.Context(), sessionID)
	if err != nil {
		log.Printf("[server] lookup analysis %s warning: %v", sessionID, err)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session":  doc,
		"analysis": analysis,
	})
}

// handleDeleteUser removes everything recorded for a session: the
// transcript and, when present, its analysis.
func (a *App) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")

	hadTranscript, err := a.transcripts.Delete(r.Context(), sessionID)
	if err != nil {
		log.Printf("[server] delete session %s failed: %v", sessionID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	hadAnalysis, err := a.analyses.Delete(r.Context(), sessionID)
	if err != nil {
		log.Printf("[server] delete analysis %s failed: %v", sessionID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !hadTranscript && !hadAnalysis {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (a *App) handleDownloadChats(w http.ResponseWriter, r *http.Request) {
	docs, err := a.transcripts.All(r.Context())
	if err != nil {
		log.Printf("[server] export chats failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="chats.json"`)
	writeJSON(w, http.StatusOK, docs)
}

func (a *App) handleDownloadAnalyses(w http.ResponseWriter, r *http.Request) {
	results, err := a.analyses.List(r.Context(), time.Time{}, time.Time{})
	if err != nil {
		log.Printf("[server] export analyses failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="analyses.json"`)
	writeJSON(w, http.StatusOK, results)
}

func (a *App) handleDownloadAll(w http.ResponseWriter, r *http.Request) {
	docs, err := a.transcripts.All(r.Context())
	if err != nil {
		log.Printf("[server] export chats failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	results, err := a.analyses.List(r.Context(), time.Time{}, time.Time{})
	if err != nil {
		log.Printf("[server] export analyses failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="export.json"`)
	writeJSON(w, http.StatusOK, map[string]any{
		"chats":    docs,
		"analyses": results,
	})
}
