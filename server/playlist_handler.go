package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"coinfm/logger"
	"coinfm/model"
	"coinfm/repository"

	"github.com/gorilla/mux"
)

// CreatePlaylistRequest is the playlist creation body.
type CreatePlaylistRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Public      bool   `json:"public"`
}

// CreatePlaylistHandler appends a new playlist document with an empty
// track set.
func (h *APIHandler) CreatePlaylistHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Not signed in")
		return
	}
	username, _ := GetUsernameFromContext(r.Context())

	var req CreatePlaylistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Playlist name is required")
		return
	}

	playlist := &model.Playlist{
		Name:        req.Name,
		Description: req.Description,
		Public:      req.Public,
		OwnerID:     userID,
		OwnerName:   username,
	}

	if _, err := h.playlistRepo.CreatePlaylist(playlist); err != nil {
		logger.Error("[Playlist] create failed", logger.Int64("userId", userID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to create playlist")
		return
	}

	writeJSON(w, http.StatusOK, playlist)
}

// GetUserPlaylistsHandler lists the caller's playlists.
func (h *APIHandler) GetUserPlaylistsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Not signed in")
		return
	}

	playlists, err := h.playlistRepo.ListByOwner(userID)
	if err != nil {
		logger.Error("[Playlist] list failed", logger.Int64("userId", userID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to load playlists")
		return
	}
	writeJSON(w, http.StatusOK, playlists)
}

// GetPlaylistHandler returns a playlist and its resolved tracks.
func (h *APIHandler) GetPlaylistHandler(w http.ResponseWriter, r *http.Request) {
	playlistID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid playlist id")
		return
	}

	playlist, err := h.playlistRepo.GetPlaylistByID(playlistID)
	if err != nil {
		logger.Error("[Playlist] query failed", logger.Int64("playlistId", playlistID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to load playlist")
		return
	}
	if playlist == nil {
		writeError(w, http.StatusNotFound, "Playlist not found")
		return
	}

	ids, err := h.playlistRepo.ListTrackIDs(playlistID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load playlist tracks")
		return
	}
	tracks, err := h.trackRepo.GetTracksByIDs(ids)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load playlist tracks")
		return
	}

	// Restore playlist order; GetTracksByIDs does not preserve it.
	byID := make(map[int64]*model.Track, len(tracks))
	for _, t := range tracks {
		byID[t.ID] = t
	}
	ordered := make([]*model.Track, 0, len(ids))
	for _, id := range ids {
		if t, ok := byID[id]; ok {
			ordered = append(ordered, t)
		}
	}

	writeJSON(w, http.StatusOK, model.PlaylistWithTracks{Playlist: *playlist, Tracks: ordered})
}

// AddTrackToPlaylistRequest is the add-track body.
type AddTrackToPlaylistRequest struct {
	TrackID int64 `json:"trackId"`
}

// AddTrackToPlaylistHandler appends a track id to the playlist set.
// Idempotent; owner-only.
func (h *APIHandler) AddTrackToPlaylistHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Not signed in")
		return
	}

	playlistID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid playlist id")
		return
	}

	var req AddTrackToPlaylistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TrackID == 0 {
		writeError(w, http.StatusBadRequest, "trackId is required")
		return
	}

	track, err := h.trackRepo.GetTrackByID(req.TrackID)
	if err != nil || track == nil {
		writeError(w, http.StatusNotFound, "Track not found")
		return
	}

	err = h.playlistRepo.AddTrack(playlistID, userID, req.TrackID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusNotFound, "Playlist not found")
		case errors.Is(err, repository.ErrNotOwner):
			writeError(w, http.StatusForbidden, "Only the owner can modify this playlist")
		default:
			logger.Error("[Playlist] add track failed",
				logger.Int64("playlistId", playlistID),
				logger.Int64("trackId", req.TrackID),
				logger.ErrorField(err))
			writeError(w, http.StatusInternalServerError, "Failed to add track")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"playlistId": playlistID, "trackId": req.TrackID})
}
