package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"coinfm/core/ledger"
	"coinfm/core/social"
	"coinfm/logger"
)

// SearchUsersHandler runs a prefix search on display names. Private
// profiles never appear in results.
func (h *APIHandler) SearchUsersHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := GetUserIDFromContext(r.Context()); err != nil {
		writeError(w, http.StatusUnauthorized, "Not signed in")
		return
	}

	query := r.URL.Query().Get("q")
	users, err := h.social.SearchUsers(query, 20)
	if err != nil {
		logger.Error("[Social] user search failed", logger.String("query", query), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Search failed")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// FriendRequest is the friend link/unlink body.
type FriendRequest struct {
	FriendID int64 `json:"friendId"`
}

// AddFriendHandler links the caller and the target as friends. The link
// is symmetric and takes effect for both sides at once.
func (h *APIHandler) AddFriendHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Not signed in")
		return
	}

	var req FriendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FriendID == 0 {
		writeError(w, http.StatusBadRequest, "friendId is required")
		return
	}

	err = h.social.Link(r.Context(), userID, req.FriendID)
	if err != nil {
		switch {
		case errors.Is(err, social.ErrSelfFriend):
			writeError(w, http.StatusBadRequest, "You cannot add yourself")
		case errors.Is(err, social.ErrUnknownUser):
			writeError(w, http.StatusNotFound, "User not found")
		default:
			logger.Error("[Social] friend link failed",
				logger.Int64("userId", userID),
				logger.Int64("friendId", req.FriendID),
				logger.ErrorField(err))
			writeError(w, http.StatusInternalServerError, "Failed to add friend")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"friendId": req.FriendID, "linked": true})
}

// RemoveFriendHandler removes the friend link in both directions.
func (h *APIHandler) RemoveFriendHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Not signed in")
		return
	}

	friendID, err := strconv.ParseInt(r.URL.Query().Get("friendId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "friendId is required")
		return
	}

	if err := h.social.Unlink(r.Context(), userID, friendID); err != nil {
		logger.Error("[Social] friend unlink failed",
			logger.Int64("userId", userID),
			logger.Int64("friendId", friendID),
			logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to remove friend")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"friendId": friendID, "linked": false})
}

// GetFriendsHandler lists the caller's friends.
func (h *APIHandler) GetFriendsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Not signed in")
		return
	}

	friends, err := h.social.Friends(userID)
	if err != nil {
		logger.Error("[Social] friend list failed", logger.Int64("userId", userID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to load friends")
		return
	}
	writeJSON(w, http.StatusOK, friends)
}

// SendDedicationRequest is the dedication send body.
type SendDedicationRequest struct {
	ToUID   int64  `json:"toUid"`
	TrackID int64  `json:"trackId"`
	Message string `json:"message"`
}

// SendDedicationHandler gifts a track to another user. The coin debit and
// the dedication commit together; a failed send costs nothing.
func (h *APIHandler) SendDedicationHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Not signed in")
		return
	}

	var req SendDedicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	dedication, err := h.social.SendDedication(r.Context(), userID, req.ToUID, req.TrackID, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, social.ErrSelfDedication):
			writeError(w, http.StatusBadRequest, "You cannot dedicate a track to yourself")
		case errors.Is(err, social.ErrEmptyDedication):
			writeError(w, http.StatusBadRequest, "Dedication message must not be empty")
		case errors.Is(err, social.ErrUnknownUser):
			writeError(w, http.StatusNotFound, "Recipient not found")
		case errors.Is(err, social.ErrUnknownTrack):
			writeError(w, http.StatusNotFound, "Track not found")
		case errors.Is(err, ledger.ErrInsufficientFunds):
			writeError(w, http.StatusPaymentRequired, "Not enough coins")
		default:
			logger.Error("[Social] dedication send failed",
				logger.Int64("fromUid", userID),
				logger.Int64("toUid", req.ToUID),
				logger.ErrorField(err))
			writeError(w, http.StatusInternalServerError, "Failed to send dedication")
		}
		return
	}

	writeJSON(w, http.StatusOK, dedication)
}

// GetInboxHandler lists dedications addressed to the caller, newest first.
func (h *APIHandler) GetInboxHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Not signed in")
		return
	}

	dedications, err := h.social.Inbox(userID, 100)
	if err != nil {
		logger.Error("[Social] inbox read failed", logger.Int64("userId", userID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to load inbox")
		return
	}
	writeJSON(w, http.StatusOK, dedications)
}

// GetSentDedicationsHandler lists dedications the caller has sent.
func (h *APIHandler) GetSentDedicationsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Not signed in")
		return
	}

	dedications, err := h.social.Sent(userID, 100)
	if err != nil {
		logger.Error("[Social] sent list failed", logger.Int64("userId", userID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to load sent dedications")
		return
	}
	writeJSON(w, http.StatusOK, dedications)
}
