package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"coinfm/core/ledger"
	"coinfm/logger"
)

// PlayRequest is the play intent body.
type PlayRequest struct {
	TrackID int64 `json:"trackId"`
}

// PlayHandler carries the user's play intent into the session. Selecting
// the active track toggles pause/resume; anything else loads the new
// track. The response reflects the state after the intent was handled.
func (h *APIHandler) PlayHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Not signed in")
		return
	}

	var req PlayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TrackID == 0 {
		writeError(w, http.StatusBadRequest, "trackId is required")
		return
	}

	track, err := h.trackRepo.GetTrackByID(req.TrackID)
	if err != nil || track == nil {
		writeError(w, http.StatusNotFound, "Track not found")
		return
	}

	sess := h.sessions.Get(userID)
	sess.Play(r.Context(), track)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"state": sess.State(),
		"track": sess.Current(),
	})
}

// DeviceEventRequest is the playback device's outcome report.
type DeviceEventRequest struct {
	Event   string `json:"event"`
	TrackID int64  `json:"trackId"`
	Reason  string `json:"reason"`
}

// DeviceEventHandler accepts the device's asynchronous start/end reports
// and advances the session state machine. Stale reports for a track that
// is no longer active are dropped.
func (h *APIHandler) DeviceEventHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Not signed in")
		return
	}

	var req DeviceEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TrackID == 0 {
		writeError(w, http.StatusBadRequest, "event and trackId are required")
		return
	}

	sess := h.sessions.Get(userID)
	switch req.Event {
	case "started":
		sess.Started(req.TrackID)
	case "failed":
		sess.StartFailed(req.TrackID, fmt.Errorf("device reported failure: %s", req.Reason))
	case "ended":
		sess.Ended(req.TrackID)
	default:
		writeError(w, http.StatusBadRequest, "event must be started, failed or ended")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"state": sess.State(),
		"track": sess.Current(),
	})
}

// GetSessionStateHandler returns the current playback state and track.
func (h *APIHandler) GetSessionStateHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Not signed in")
		return
	}

	sess := h.sessions.Get(userID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"state": sess.State(),
		"track": sess.Current(),
	})
}

// RestoreSessionHandler returns the last-played snapshot for session
// restart, or an empty body when there is none.
func (h *APIHandler) RestoreSessionHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Not signed in")
		return
	}

	snap, err := h.sessions.Get(userID).Restore(r.Context())
	if err != nil {
		logger.Warn("[Session] snapshot load failed", logger.Int64("userId", userID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to load last session")
		return
	}
	if snap == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"snapshot": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"snapshot": snap})
}

// DownloadRequest is the offline download body.
type DownloadRequest struct {
	TrackID int64 `json:"trackId"`
}

// DownloadHandler caches a track for offline playback, debiting the
// download cost unless the account is premium.
func (h *APIHandler) DownloadHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Not signed in")
		return
	}

	var req DownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TrackID == 0 {
		writeError(w, http.StatusBadRequest, "trackId is required")
		return
	}

	track, err := h.trackRepo.GetTrackByID(req.TrackID)
	if err != nil || track == nil {
		writeError(w, http.StatusNotFound, "Track not found")
		return
	}

	if err := h.sessions.Get(userID).Download(r.Context(), track); err != nil {
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			writeError(w, http.StatusPaymentRequired, "Not enough coins")
			return
		}
		logger.Error("[Session] download failed",
			logger.Int64("userId", userID),
			logger.Int64("trackId", req.TrackID),
			logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Download failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"trackId": req.TrackID, "cached": true})
}

// GetOfflineTracksHandler lists the tracks cached for offline playback.
func (h *APIHandler) GetOfflineTracksHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Not signed in")
		return
	}

	entries, err := h.sessions.Get(userID).OfflineEntries()
	if err != nil {
		logger.Error("[Session] offline list failed", logger.Int64("userId", userID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to list offline tracks")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
