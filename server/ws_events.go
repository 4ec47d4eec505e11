package server

import (
	"encoding/json"
	"net/http"
	"time"

	"coinfm/cache"
	"coinfm/db"
	"coinfm/logger"

	"github.com/gorilla/websocket"
)

// EventsWSHandler streams the user's live document events (balance,
// friend set, dedication inbox) over a websocket. One Redis subscription
// is opened per channel and torn down when the socket closes; the
// subscription must never outlive the connection.
func (h *APIHandler) EventsWSHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := wsUserID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Not signed in")
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", logger.ErrorField(err))
		return
	}
	defer conn.Close()

	userSub, err := cache.Subscribe(r.Context(), db.RedisClient, cache.UserChannel(userID))
	if err != nil {
		logger.Error("user channel subscribe failed", logger.Int64("userId", userID), logger.ErrorField(err))
		return
	}
	defer userSub.Close()

	inboxSub, err := cache.Subscribe(r.Context(), db.RedisClient, cache.InboxChannel(userID))
	if err != nil {
		logger.Error("inbox channel subscribe failed", logger.Int64("userId", userID), logger.ErrorField(err))
		return
	}
	defer inboxSub.Close()

	// Drain the read side so close frames and pings are processed. Any
	// read error ends the stream.
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		conn.SetReadLimit(512)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	write := func(evt cache.Event) bool {
		frame, err := json.Marshal(evt)
		if err != nil {
			return true
		}
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			logger.Warn("event write failed", logger.Int64("userId", userID), logger.ErrorField(err))
			return false
		}
		return true
	}

	for {
		select {
		case evt, ok := <-userSub.C:
			if !ok || !write(evt) {
				return
			}
		case evt, ok := <-inboxSub.C:
			if !ok || !write(evt) {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-readDone:
			return
		case <-r.Context().Done():
			return
		}
	}
}
