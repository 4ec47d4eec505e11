package server

import (
	"encoding/json"
	"net/http"

	"coinfm/config"
	"coinfm/core/economy"
	"coinfm/core/ledger"
	"coinfm/core/session"
	"coinfm/core/social"
	"coinfm/core/trivia"
	"coinfm/repository"
)

// APIHandler bundles the collaborators behind the HTTP surface.
type APIHandler struct {
	cfg *config.Config

	userRepo       repository.UserRepository
	trackRepo      repository.TrackRepository
	playlistRepo   repository.PlaylistRepository
	dedicationRepo repository.DedicationRepository

	ledger   *ledger.Ledger
	social   *social.Service
	sessions *session.Manager
	promo    *economy.PromoRedeemer
	trivia   *trivia.Client

	hub *NowPlayingHub
}

// NewAPIHandler creates the API handler.
func NewAPIHandler(
	cfg *config.Config,
	userRepo repository.UserRepository,
	trackRepo repository.TrackRepository,
	playlistRepo repository.PlaylistRepository,
	dedicationRepo repository.DedicationRepository,
	l *ledger.Ledger,
	socialSvc *social.Service,
	sessions *session.Manager,
	promo *economy.PromoRedeemer,
	triviaClient *trivia.Client,
	hub *NowPlayingHub,
) *APIHandler {
	return &APIHandler{
		cfg:            cfg,
		userRepo:       userRepo,
		trackRepo:      trackRepo,
		playlistRepo:   playlistRepo,
		dedicationRepo: dedicationRepo,
		ledger:         l,
		social:         socialSvc,
		sessions:       sessions,
		promo:          promo,
		trivia:         triviaClient,
		hub:            hub,
	}
}

// writeJSON writes a JSON response body.
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError writes a JSON error body. Raw errors never reach the client;
// callers pass a short human message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
