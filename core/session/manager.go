package session

import (
	"sync"

	"coinfm/cache"
	"coinfm/core/ledger"
	"coinfm/model"
	"coinfm/repository"
	"coinfm/storage"
)

// Manager hands out one Session per signed-in user and tears it down on
// sign-out. There is no ambient global session; callers always go through
// the manager.
type Manager struct {
	mu       sync.RWMutex
	sessions map[int64]*Session

	newDevice func(userID int64) AudioDevice
	onChange  func(userID int64, state State, track *model.Track)
	notify    func(userID int64, msg string)

	snapshots    *cache.SnapshotStore
	ledger       *ledger.Ledger
	userRepo     repository.UserRepository
	offline      *storage.OfflineStore
	fetcher      AudioFetcher
	downloadCost int64
}

// ManagerConfig wires the collaborators shared by all sessions. OnChange
// and Notify, when set, are attached to every session the manager creates
// so a single observer (the now-playing hub) sees all users.
type ManagerConfig struct {
	NewDevice    func(userID int64) AudioDevice
	OnChange     func(userID int64, state State, track *model.Track)
	Notify       func(userID int64, msg string)
	Snapshots    *cache.SnapshotStore
	Ledger       *ledger.Ledger
	UserRepo     repository.UserRepository
	Offline      *storage.OfflineStore
	Fetcher      AudioFetcher
	DownloadCost int64
}

// NewManager creates a session manager.
func NewManager(cfg ManagerConfig) *Manager {
	return &Manager{
		sessions:     make(map[int64]*Session),
		newDevice:    cfg.NewDevice,
		onChange:     cfg.OnChange,
		notify:       cfg.Notify,
		snapshots:    cfg.Snapshots,
		ledger:       cfg.Ledger,
		userRepo:     cfg.UserRepo,
		offline:      cfg.Offline,
		fetcher:      cfg.Fetcher,
		downloadCost: cfg.DownloadCost,
	}
}

// Get returns the user's session, creating an idle one on first use.
func (m *Manager) Get(userID int64) *Session {
	m.mu.RLock()
	s, ok := m.sessions[userID]
	m.mu.RUnlock()
	if ok {
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[userID]; ok {
		return s
	}

	cfg := Config{
		UserID:       userID,
		Device:       m.newDevice(userID),
		Snapshots:    m.snapshots,
		Ledger:       m.ledger,
		UserRepo:     m.userRepo,
		Offline:      m.offline,
		Fetcher:      m.fetcher,
		DownloadCost: m.downloadCost,
	}
	if m.notify != nil {
		cfg.Notify = func(msg string) { m.notify(userID, msg) }
	}
	s = New(cfg)
	if m.onChange != nil {
		s.OnChange(func(state State, track *model.Track) {
			m.onChange(userID, state, track)
		})
	}
	m.sessions[userID] = s
	return s
}

// Remove discards the user's session on sign-out.
func (m *Manager) Remove(userID int64) {
	m.mu.Lock()
	delete(m.sessions, userID)
	m.mu.Unlock()
}
