package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"coinfm/core/auth"
	"coinfm/core/session"
	"coinfm/logger"
	"coinfm/model"
	"coinfm/repository"

	"github.com/gorilla/websocket"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsUserID resolves the caller from the request context or, failing
// that, from a token query parameter.
func wsUserID(r *http.Request) (int64, error) {
	if userID, err := GetUserIDFromContext(r.Context()); err == nil {
		return userID, nil
	}
	claims, err := auth.ParseToken(r.URL.Query().Get("token"))
	if err != nil {
		return 0, err
	}
	return claims.UserID, nil
}

// WSMessage is the now-playing socket frame.
type WSMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Message types on the now-playing socket.
const (
	// server -> client
	MsgTypeCommand    = "command"     // playback command for the player surface
	MsgTypeNowPlaying = "now_playing" // state transition
	MsgTypeNotice     = "notice"      // user-visible toast
	MsgTypePong       = "pong"

	// client -> server
	MsgTypePlay   = "play"   // play intent by track id
	MsgTypeReport = "report" // device outcome report
	MsgTypePing   = "ping"
)

// CommandData carries a playback command to the player surface.
type CommandData struct {
	Command string       `json:"command"`
	Track   *model.Track `json:"track,omitempty"`
}

// NowPlayingData carries a session state transition.
type NowPlayingData struct {
	State session.State `json:"state"`
	Track *model.Track  `json:"track,omitempty"`
}

// NoticeData carries a user-visible notice.
type NoticeData struct {
	Message string `json:"message"`
}

// PlayData is the client's play intent.
type PlayData struct {
	TrackID int64 `json:"trackId"`
}

// ReportData is the device's start/end outcome report.
type ReportData struct {
	Event   string `json:"event"`
	TrackID int64  `json:"trackId"`
	Reason  string `json:"reason,omitempty"`
}

// npClient is one connected player surface.
type npClient struct {
	hub    *NowPlayingHub
	conn   *websocket.Conn
	send   chan []byte
	userID int64
}

// NowPlayingHub fans playback commands and state transitions out to each
// user's connected player surfaces. It is the session's CommandSink: the
// session never talks to a socket directly.
type NowPlayingHub struct {
	mu      sync.RWMutex
	clients map[int64]map[*npClient]bool

	register   chan *npClient
	unregister chan *npClient
	done       chan struct{}

	sessions  *session.Manager
	trackRepo repository.TrackRepository
}

// NewNowPlayingHub creates the hub. Call Attach before serving
// connections; the manager is attached late because its device factory
// points back at the hub.
func NewNowPlayingHub() *NowPlayingHub {
	return &NowPlayingHub{
		clients:    make(map[int64]map[*npClient]bool),
		register:   make(chan *npClient),
		unregister: make(chan *npClient),
		done:       make(chan struct{}),
	}
}

// Attach wires the session manager and track lookup.
func (h *NowPlayingHub) Attach(m *session.Manager, trackRepo repository.TrackRepository) {
	h.sessions = m
	h.trackRepo = trackRepo
}

// Run starts the hub loop.
func (h *NowPlayingHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.userID] == nil {
				h.clients[client.userID] = make(map[*npClient]bool)
			}
			h.clients[client.userID][client] = true
			h.mu.Unlock()
			logger.Info("player surface connected", logger.Int64("userId", client.userID))

		case client := <-h.unregister:
			h.mu.Lock()
			if set, ok := h.clients[client.userID]; ok {
				if _, ok := set[client]; ok {
					delete(set, client)
					close(client.send)
					if len(set) == 0 {
						delete(h.clients, client.userID)
					}
				}
			}
			h.mu.Unlock()
			logger.Info("player surface disconnected", logger.Int64("userId", client.userID))

		case <-h.done:
			h.mu.Lock()
			for _, set := range h.clients {
				for client := range set {
					close(client.send)
				}
			}
			h.clients = make(map[int64]map[*npClient]bool)
			h.mu.Unlock()
			return
		}
	}
}

// Stop shuts the hub loop down.
func (h *NowPlayingHub) Stop() {
	close(h.done)
}

// SendCommand relays a playback command to the user's player surfaces.
func (h *NowPlayingHub) SendCommand(userID int64, command string, track *model.Track) {
	h.sendToUser(userID, MsgTypeCommand, CommandData{Command: command, Track: track})
}

// BroadcastNowPlaying pushes a state transition to the user's surfaces.
func (h *NowPlayingHub) BroadcastNowPlaying(userID int64, state session.State, track *model.Track) {
	h.sendToUser(userID, MsgTypeNowPlaying, NowPlayingData{State: state, Track: track})
}

// Notify pushes a user-visible notice to the user's surfaces.
func (h *NowPlayingHub) Notify(userID int64, msg string) {
	h.sendToUser(userID, MsgTypeNotice, NoticeData{Message: msg})
}

func (h *NowPlayingHub) sendToUser(userID int64, msgType string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		logger.Warn("failed to marshal ws payload", logger.String("type", msgType), logger.ErrorField(err))
		return
	}
	frame, err := json.Marshal(WSMessage{Type: msgType, Data: payload, Timestamp: time.Now().UnixMilli()})
	if err != nil {
		return
	}

	h.mu.RLock()
	set := h.clients[userID]
	clients := make([]*npClient, 0, len(set))
	for client := range set {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.send <- frame:
		default:
			// Send buffer full; drop the surface.
			h.unregister <- client
		}
	}
}

// playByID resolves the track and carries the play intent into the
// user's session.
func (h *NowPlayingHub) playByID(userID, trackID int64) {
	track, err := h.trackRepo.GetTrackByID(trackID)
	if err != nil || track == nil {
		h.Notify(userID, "Track not found.")
		return
	}
	h.sessions.Get(userID).Play(context.Background(), track)
}

// applyReport advances the session state machine with the device's
// outcome report.
func (h *NowPlayingHub) applyReport(userID int64, data ReportData) {
	sess := h.sessions.Get(userID)
	switch data.Event {
	case "started":
		sess.Started(data.TrackID)
	case "failed":
		sess.StartFailed(data.TrackID, fmt.Errorf("device reported failure: %s", data.Reason))
	case "ended":
		sess.Ended(data.TrackID)
	}
}

// NowPlayingWSHandler upgrades the connection and attaches the player
// surface to the user's session. Browsers cannot set headers on
// websocket upgrades, so the token may arrive as a query parameter.
func (h *APIHandler) NowPlayingWSHandler(w http.ResponseWriter, r *http.Request) {
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

	client := &npClient{
		hub:    h.hub,
		conn:   conn,
		send:   make(chan []byte, 64),
		userID: userID,
	}
	h.hub.register <- client

	go client.writePump()
	go client.readPump()
}

func (c *npClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error", logger.Int64("userId", c.userID), logger.ErrorField(err))
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			logger.Warn("invalid ws frame", logger.Int64("userId", c.userID), logger.ErrorField(err))
			continue
		}

		c.handleMessage(&msg)
	}
}

func (c *npClient) handleMessage(msg *WSMessage) {
	switch msg.Type {
	case MsgTypePing:
		frame, _ := json.Marshal(WSMessage{Type: MsgTypePong, Timestamp: time.Now().UnixMilli()})
		select {
		case c.send <- frame:
		default:
		}

	case MsgTypePlay:
		var data PlayData
		if err := json.Unmarshal(msg.Data, &data); err != nil || data.TrackID == 0 {
			return
		}
		if c.hub.sessions == nil {
			return
		}
		c.hub.playByID(c.userID, data.TrackID)

	case MsgTypeReport:
		var data ReportData
		if err := json.Unmarshal(msg.Data, &data); err != nil || data.TrackID == 0 {
			return
		}
		if c.hub.sessions == nil {
			return
		}
		c.hub.applyReport(c.userID, data)
	}
}

func (c *npClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
