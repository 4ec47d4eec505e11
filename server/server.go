package server

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coinfm/cache"
	"coinfm/config"
	"coinfm/core/auth"
	"coinfm/core/economy"
	"coinfm/core/ledger"
	"coinfm/core/session"
	"coinfm/core/social"
	"coinfm/core/trivia"
	"coinfm/db"
	"coinfm/logger"
	"coinfm/model"
	"coinfm/repository"
	"coinfm/storage"

	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"
)

// minioFetcher resolves a track's audio payload out of object storage
// for offline downloads.
type minioFetcher struct {
	bucket string
}

func (f *minioFetcher) Fetch(ctx context.Context, track *model.Track) (io.ReadCloser, error) {
	return storage.FetchAudio(ctx, f.bucket, track.ObjectPath)
}

// Start initializes all collaborators and runs the HTTP server until a
// termination signal arrives.
func Start() {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogPath,
	})

	auth.InitJWT(cfg.JWTSecret, cfg.JWTExpiryHour)

	if err := storage.InitMinio(cfg); err != nil {
		logger.Fatal("failed to initialize MinIO", logger.ErrorField(err))
	}

	if err := db.ConnectGormDB(cfg); err != nil {
		logger.Fatal("failed to connect to database", logger.ErrorField(err))
	}
	defer db.CloseGormDB()

	if err := db.AutoMigrate(); err != nil {
		logger.Fatal("failed to migrate schema", logger.ErrorField(err))
	}

	if err := db.ConnectRedis(cfg); err != nil {
		logger.Fatal("failed to connect to Redis", logger.ErrorField(err))
	}
	defer db.CloseRedis()

	offline, err := storage.NewOfflineStore(cfg.OfflineCacheDir)
	if err != nil {
		logger.Fatal("failed to open offline cache", logger.ErrorField(err))
	}

	publisher := cache.NewPublisher(db.RedisClient)
	snapshots := cache.NewSnapshotStore(db.RedisClient, 0)

	userRepo := repository.NewUserRepository(db.GormDB)
	trackRepo := repository.NewTrackRepository(db.GormDB)
	playlistRepo := repository.NewPlaylistRepository(db.GormDB)
	dedicationRepo := repository.NewDedicationRepository(db.GormDB)

	coinLedger := ledger.New(db.GormDB, publisher)
	socialSvc := social.NewService(userRepo, trackRepo, dedicationRepo, coinLedger, publisher, cfg.DedicationCost)

	promo := economy.NewPromoRedeemer(userRepo)
	if cfg.PromoCodeFile != "" {
		if err := promo.Watch(cfg.PromoCodeFile); err != nil {
			logger.Warn("promo code file unavailable, using built-in codes", logger.ErrorField(err))
		}
	}
	defer promo.Close()

	triviaClient := trivia.NewClient(trivia.Config{
		APIBaseURL: cfg.TriviaAPIURL,
		APIKey:     cfg.TriviaAPIKey,
		Model:      cfg.TriviaModel,
	})

	hub := NewNowPlayingHub()
	go hub.Run()
	defer hub.Stop()

	sessions := session.NewManager(session.ManagerConfig{
		NewDevice: func(userID int64) session.AudioDevice {
			return session.NewRemoteDevice(userID, hub)
		},
		OnChange:     hub.BroadcastNowPlaying,
		Notify:       hub.Notify,
		Snapshots:    snapshots,
		Ledger:       coinLedger,
		UserRepo:     userRepo,
		Offline:      offline,
		Fetcher:      &minioFetcher{bucket: cfg.MinioBucket},
		DownloadCost: cfg.DownloadCost,
	})
	hub.Attach(sessions, trackRepo)

	apiHandler := NewAPIHandler(cfg, userRepo, trackRepo, playlistRepo, dedicationRepo,
		coinLedger, socialSvc, sessions, promo, triviaClient, hub)

	// Stale snapshot pruning runs nightly.
	pruner := cron.New()
	pruner.AddFunc("@daily", func() {
		cutoff := time.Now().AddDate(0, 0, -cfg.SnapshotRetentionDays)
		pruned, err := snapshots.PruneOlderThan(context.Background(), cutoff)
		if err != nil {
			logger.Warn("snapshot pruning failed", logger.ErrorField(err))
			return
		}
		if pruned > 0 {
			logger.Info("pruned stale playback snapshots", logger.Int("count", pruned))
		}
	})
	pruner.Start()
	defer pruner.Stop()

	router := mux.NewRouter()

	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, HEAD")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Range")
			w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Range")
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	// Auth
	router.HandleFunc("/api/auth/register", apiHandler.RegisterHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/login", apiHandler.LoginHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/logout", apiHandler.AuthMiddleware(apiHandler.LogoutHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/me", apiHandler.AuthMiddleware(apiHandler.GetMeHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/me/settings", apiHandler.AuthMiddleware(apiHandler.UpdateSettingsHandler)).Methods(http.MethodPut)

	// Catalog
	router.HandleFunc("/api/tracks", apiHandler.GetTracksHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks/{id}", apiHandler.GetTrackHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks/{id}/stream", apiHandler.StreamHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks/{id}/trivia", apiHandler.TriviaHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks/{id}/like", apiHandler.AuthMiddleware(apiHandler.LikeToggleHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/likes", apiHandler.AuthMiddleware(apiHandler.GetLikesHandler)).Methods(http.MethodGet)

	// Playback session
	router.HandleFunc("/api/session/play", apiHandler.AuthMiddleware(apiHandler.PlayHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/session/event", apiHandler.AuthMiddleware(apiHandler.DeviceEventHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/session/state", apiHandler.AuthMiddleware(apiHandler.GetSessionStateHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/session/restore", apiHandler.AuthMiddleware(apiHandler.RestoreSessionHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/session/download", apiHandler.AuthMiddleware(apiHandler.DownloadHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/session/offline", apiHandler.AuthMiddleware(apiHandler.GetOfflineTracksHandler)).Methods(http.MethodGet)

	// Wallet
	router.HandleFunc("/api/wallet/balance", apiHandler.AuthMiddleware(apiHandler.GetBalanceHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/wallet/transactions", apiHandler.AuthMiddleware(apiHandler.GetTransactionsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/wallet/promo", apiHandler.AuthMiddleware(apiHandler.RedeemPromoHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/wallet/premium", apiHandler.AuthMiddleware(apiHandler.UpgradePremiumHandler)).Methods(http.MethodPost)

	// Social
	router.HandleFunc("/api/users/search", apiHandler.AuthMiddleware(apiHandler.SearchUsersHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/friends", apiHandler.AuthMiddleware(apiHandler.GetFriendsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/friends", apiHandler.AuthMiddleware(apiHandler.AddFriendHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/friends", apiHandler.AuthMiddleware(apiHandler.RemoveFriendHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/api/dedications", apiHandler.AuthMiddleware(apiHandler.SendDedicationHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/dedications/inbox", apiHandler.AuthMiddleware(apiHandler.GetInboxHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/dedications/sent", apiHandler.AuthMiddleware(apiHandler.GetSentDedicationsHandler)).Methods(http.MethodGet)

	// Playlists
	router.HandleFunc("/api/playlists", apiHandler.AuthMiddleware(apiHandler.CreatePlaylistHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/playlists", apiHandler.AuthMiddleware(apiHandler.GetUserPlaylistsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/playlists/{id}", apiHandler.AuthMiddleware(apiHandler.GetPlaylistHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/playlists/{id}/tracks", apiHandler.AuthMiddleware(apiHandler.AddTrackToPlaylistHandler)).Methods(http.MethodPost)

	// Live surfaces
	router.HandleFunc("/ws/nowplaying", apiHandler.NowPlayingWSHandler)
	router.HandleFunc("/ws/events", apiHandler.EventsWSHandler)

	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", logger.String("addr", cfg.ServerAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", logger.ErrorField(err))
		}
	}()

	<-stop
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", logger.ErrorField(err))
	}

	logger.Info("server stopped")
}
