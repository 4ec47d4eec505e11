package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"coinfm/cache"
	"coinfm/core/ledger"
	"coinfm/logger"
	"coinfm/model"
	"coinfm/repository"
	"coinfm/storage"
)

// State is the playback session state.
type State string

const (
	StateIdle    State = "idle"    // no track chosen
	StateLoading State = "loading" // stream URI being bound, start in flight
	StatePlaying State = "playing"
	StatePaused  State = "paused"
)

// ErrNoStream indicates a track without a stream URI was selected.
var ErrNoStream = errors.New("track has no stream URI")

// AudioFetcher retrieves a track's audio payload for download.
type AudioFetcher interface {
	Fetch(ctx context.Context, track *model.Track) (io.ReadCloser, error)
}

// NoticeFunc receives user-visible notices (toasts). Device failures and
// precondition failures degrade to notices; nothing propagates as a fault.
type NoticeFunc func(msg string)

// ChangeFunc observes state transitions, e.g. for the now-playing surface.
type ChangeFunc func(state State, track *model.Track)

// Session owns the single active audio output for one user. It keeps at
// most one track active, keeps the reported state consistent with the
// device, and gates paid actions against the ledger.
type Session struct {
	mu      sync.Mutex
	userID  int64
	state   State
	current *model.Track

	device    AudioDevice
	snapshots *cache.SnapshotStore
	ledger    *ledger.Ledger
	userRepo  repository.UserRepository
	offline   *storage.OfflineStore
	fetcher   AudioFetcher

	downloadCost int64

	notify    NoticeFunc
	listeners []ChangeFunc
}

// Config wires a Session's collaborators.
type Config struct {
	UserID       int64
	Device       AudioDevice
	Snapshots    *cache.SnapshotStore
	Ledger       *ledger.Ledger
	UserRepo     repository.UserRepository
	Offline      *storage.OfflineStore
	Fetcher      AudioFetcher
	DownloadCost int64
	Notify       NoticeFunc
}

// New creates an idle Session.
func New(cfg Config) *Session {
	notify := cfg.Notify
	if notify == nil {
		notify = func(msg string) {
			logger.Info("session notice", logger.Int64("userId", cfg.UserID), logger.String("msg", msg))
		}
	}
	return &Session{
		userID:       cfg.UserID,
		state:        StateIdle,
		device:       cfg.Device,
		snapshots:    cfg.Snapshots,
		ledger:       cfg.Ledger,
		userRepo:     cfg.UserRepo,
		offline:      cfg.Offline,
		fetcher:      cfg.Fetcher,
		downloadCost: cfg.DownloadCost,
		notify:       notify,
	}
}

// OnChange registers a transition observer. Observers are called outside
// the session lock with the new state and active track.
func (s *Session) OnChange(fn ChangeFunc) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// State returns the current playback state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Current returns the active track, or nil when Idle.
func (s *Session) Current() *model.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Session) fireChange(state State, track *model.Track) {
	s.mu.Lock()
	listeners := make([]ChangeFunc, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(state, track)
	}
}

// Play handles all user play intent. Selecting the active track toggles
// Playing and Paused; selecting any other track discards the old position
// and runs the full Loading transition for the new one. Play never
// returns an error to the caller; failures surface as notices.
func (s *Session) Play(ctx context.Context, track *model.Track) {
	if track == nil || track.StreamURL == "" {
		s.notify("This track cannot be played.")
		return
	}

	s.mu.Lock()

	if s.current != nil && s.current.ID == track.ID {
		switch s.state {
		case StatePlaying:
			if err := s.device.Pause(); err != nil {
				s.mu.Unlock()
				s.notify("Could not pause playback.")
				return
			}
			s.state = StatePaused
			cur := s.current
			s.mu.Unlock()
			s.fireChange(StatePaused, cur)
			return
		case StatePaused:
			if err := s.device.Resume(); err != nil {
				s.mu.Unlock()
				s.notify("Could not resume playback.")
				return
			}
			s.state = StatePlaying
			cur := s.current
			s.mu.Unlock()
			s.fireChange(StatePlaying, cur)
			return
		case StateLoading:
			// Start already in flight; ignore the duplicate tap.
			s.mu.Unlock()
			return
		}
	}

	// New track: full Loading transition. The old track's position is
	// discarded, not resumed later.
	s.state = StateLoading
	s.current = track
	s.mu.Unlock()

	// Persist the restart snapshot. A snapshot write failure must not
	// block playback.
	if s.snapshots != nil {
		snap := cache.Snapshot{
			TrackID:   track.ID,
			Title:     track.Title,
			Artist:    track.Artist,
			CoverURL:  track.CoverURL,
			StreamURL: track.StreamURL,
		}
		if err := s.snapshots.Save(ctx, s.userID, snap); err != nil {
			logger.Warn("failed to save playback snapshot",
				logger.Int64("userId", s.userID),
				logger.Int64("trackId", track.ID),
				logger.ErrorField(err))
		}
	}

	if err := s.device.Load(track.StreamURL); err != nil {
		s.failLoad(track.ID, err)
		return
	}
	if err := s.device.Start(); err != nil {
		s.failLoad(track.ID, err)
		return
	}

	s.fireChange(StateLoading, track)
}

func (s *Session) failLoad(trackID int64, err error) {
	logger.Warn("stream start failed",
		logger.Int64("userId", s.userID),
		logger.Int64("trackId", trackID),
		logger.ErrorField(err))

	s.mu.Lock()
	s.state = StateIdle
	s.current = nil
	s.mu.Unlock()

	s.notify("Playback failed. Check your connection and try again.")
	s.fireChange(StateIdle, nil)
}

// Started is the device's report of a successful start.
func (s *Session) Started(trackID int64) {
	s.mu.Lock()
	if s.current == nil || s.current.ID != trackID || s.state != StateLoading {
		s.mu.Unlock()
		return
	}
	s.state = StatePlaying
	cur := s.current
	s.mu.Unlock()

	s.fireChange(StatePlaying, cur)
}

// StartFailed is the device's report of a failed start. Recoverable: the
// session returns to Idle with a notice.
func (s *Session) StartFailed(trackID int64, err error) {
	s.mu.Lock()
	if s.current == nil || s.current.ID != trackID {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.failLoad(trackID, err)
}

// Ended is the device's report of a natural end-of-track. The session
// returns to Idle; there is no auto-advance.
func (s *Session) Ended(trackID int64) {
	s.mu.Lock()
	if s.current == nil || s.current.ID != trackID || s.state != StatePlaying {
		s.mu.Unlock()
		return
	}
	s.state = StateIdle
	s.current = nil
	s.mu.Unlock()

	s.fireChange(StateIdle, nil)
}

// Restore returns the last-played snapshot, if any, for session restart.
func (s *Session) Restore(ctx context.Context) (*cache.Snapshot, error) {
	if s.snapshots == nil {
		return nil, nil
	}
	return s.snapshots.Load(ctx, s.userID)
}

// LikeToggle flips membership of trackID in the user's liked set. The
// returned bool is the membership after the toggle; when err is non-nil
// the UI must not claim success.
func (s *Session) LikeToggle(ctx context.Context, trackID int64) (bool, error) {
	liked, err := s.userRepo.IsLiked(s.userID, trackID)
	if err != nil {
		return false, err
	}

	if liked {
		if err := s.userRepo.RemoveLike(s.userID, trackID); err != nil {
			return true, err
		}
		return false, nil
	}

	if err := s.userRepo.AddLike(s.userID, trackID); err != nil {
		return false, err
	}
	return true, nil
}

// Download caches a track for offline playback. Precondition: the user is
// premium or holds at least the download cost; otherwise the operation
// aborts with ErrInsufficientFunds and no side effects. The fetch and the
// cache write precede the debit; the debit itself is atomic, and a debit
// failure after a successful cache write is returned to the caller.
func (s *Session) Download(ctx context.Context, track *model.Track) error {
	if track == nil {
		return fmt.Errorf("no track selected")
	}

	user, err := s.userRepo.GetUserByID(s.userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ledger.ErrUnknownUser
	}

	if !user.Premium && user.CoinBalance < s.downloadCost {
		return ledger.ErrInsufficientFunds
	}

	audio, err := s.fetcher.Fetch(ctx, track)
	if err != nil {
		return fmt.Errorf("failed to fetch audio for track %d: %w", track.ID, err)
	}
	defer audio.Close()

	meta := storage.OfflineMeta{
		TrackID:  track.ID,
		Title:    track.Title,
		Artist:   track.Artist,
		CoverURL: track.CoverURL,
	}
	if err := s.offline.Put(meta, audio); err != nil {
		return fmt.Errorf("failed to cache track %d offline: %w", track.ID, err)
	}

	if user.Premium {
		return nil
	}

	desc := fmt.Sprintf("Download of %q", track.Title)
	if _, err := s.ledger.ProcessTransaction(ctx, s.userID, s.downloadCost, desc, model.TxSpend); err != nil {
		// The blob is already cached; report the failed debit rather than
		// pretending the download didn't happen.
		return fmt.Errorf("track cached but debit failed: %w", err)
	}

	return nil
}

// OfflineEntries lists the user's cached tracks.
func (s *Session) OfflineEntries() ([]storage.OfflineEntry, error) {
	return s.offline.List()
}
