package server

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"coinfm/logger"
	"coinfm/storage"

	"github.com/gorilla/mux"
)

// GetTracksHandler returns the whole catalog.
func (h *APIHandler) GetTracksHandler(w http.ResponseWriter, r *http.Request) {
	tracks, err := h.trackRepo.ListTracks()
	if err != nil {
		logger.Error("[Catalog] failed to list tracks", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to load catalog")
		return
	}
	writeJSON(w, http.StatusOK, tracks)
}

// GetTrackHandler returns one track by id.
func (h *APIHandler) GetTrackHandler(w http.ResponseWriter, r *http.Request) {
	trackID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid track id")
		return
	}

	track, err := h.trackRepo.GetTrackByID(trackID)
	if err != nil {
		logger.Error("[Catalog] failed to query track", logger.Int64("trackId", trackID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to load track")
		return
	}
	if track == nil {
		writeError(w, http.StatusNotFound, "Track not found")
		return
	}
	writeJSON(w, http.StatusOK, track)
}

// LikeToggleHandler flips the track's membership in the liked set.
func (h *APIHandler) LikeToggleHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Not signed in")
		return
	}

	trackID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid track id")
		return
	}

	sess := h.sessions.Get(userID)
	liked, err := sess.LikeToggle(r.Context(), trackID)
	if err != nil {
		// The remote write failed; the UI must not claim success.
		logger.Error("[Like] toggle failed",
			logger.Int64("userId", userID),
			logger.Int64("trackId", trackID),
			logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Could not update likes, please retry")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"trackId": trackID, "liked": liked})
}

// GetLikesHandler returns the user's liked track ids.
func (h *APIHandler) GetLikesHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Not signed in")
		return
	}

	ids, err := h.userRepo.ListLikes(userID)
	if err != nil {
		logger.Error("[Like] list failed", logger.Int64("userId", userID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to load likes")
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

// TriviaHandler returns a best-effort AI blurb about the track. Failures
// degrade to a placeholder, never an error.
func (h *APIHandler) TriviaHandler(w http.ResponseWriter, r *http.Request) {
	trackID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid track id")
		return
	}

	track, err := h.trackRepo.GetTrackByID(trackID)
	if err != nil || track == nil {
		writeError(w, http.StatusNotFound, "Track not found")
		return
	}

	blurb := h.trivia.FetchTrivia(r.Context(), track)
	writeJSON(w, http.StatusOK, map[string]string{"trackId": mux.Vars(r)["id"], "trivia": blurb})
}

// StreamHandler proxies a track's audio object out of MinIO.
func (h *APIHandler) StreamHandler(w http.ResponseWriter, r *http.Request) {
	trackID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid track id")
		return
	}

	track, err := h.trackRepo.GetTrackByID(trackID)
	if err != nil || track == nil {
		writeError(w, http.StatusNotFound, "Track not found")
		return
	}
	if track.ObjectPath == "" {
		writeError(w, http.StatusNotFound, "Track has no audio object")
		return
	}

	object, err := storage.FetchAudio(r.Context(), h.cfg.MinioBucket, track.ObjectPath)
	if err != nil {
		logger.Error("[Stream] fetch failed", logger.Int64("trackId", trackID), logger.ErrorField(err))
		writeError(w, http.StatusNotFound, "Audio not available")
		return
	}
	defer object.Close()

	contentType := "audio/mpeg"
	if strings.HasSuffix(track.ObjectPath, ".flac") {
		contentType = "audio/flac"
	} else if strings.HasSuffix(track.ObjectPath, ".ogg") {
		contentType = "audio/ogg"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=31536000")

	if _, err := io.Copy(w, object); err != nil {
		logger.Warn("[Stream] serve interrupted", logger.Int64("trackId", trackID), logger.ErrorField(err))
	}
}
