package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/camden-git/foodlens/database"
)

// PreviewLedgerReader is the read side of the preview ledger.
type PreviewLedgerReader interface {
	Stats() (database.PreviewStats, error)
	ListLive(owner string) ([]database.LivePreview, error)
}

type DebugHandler struct {
	Ledger  PreviewLedgerReader
	Pending interface{ IsPending(sessionID string) bool }
}

type previewDebugResponse struct {
	Stats     database.PreviewStats  `json:"stats"`
	Live      []database.LivePreview `json:"live"`
	CheckedAt string                 `json:"checked_at"`
}

// GetPreviews reports handle counts and the live handles, optionally only
// those of ?owner=.
func (dh *DebugHandler) GetPreviews(w http.ResponseWriter, r *http.Request) {
	stats, err := dh.Ledger.Stats()
	if err != nil {
		log.Printf("Debug API: failed to read preview stats: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to read preview ledger")
		return
	}
	live, err := dh.Ledger.ListLive(r.URL.Query().Get("owner"))
	if err != nil {
		log.Printf("Debug API: failed to list live previews: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to read preview ledger")
		return
	}
	if live == nil {
		live = []database.LivePreview{}
	}

	writeJSON(w, http.StatusOK, previewDebugResponse{
		Stats:     stats,
		Live:      live,
		CheckedAt: time.Now().Format(time.RFC3339),
	})
}

// GetRecognitionStatus tells whether ?session= has a queued or running job.
func (dh *DebugHandler) GetRecognitionStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		WriteAPIError(w, http.StatusBadRequest, "missing_session", "Missing 'session' query parameter")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"pending":    dh.Pending.IsPending(sessionID),
	})
}
