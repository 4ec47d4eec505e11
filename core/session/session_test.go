package session

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"coinfm/cache"
	"coinfm/core/ledger"
	"coinfm/model"
	"coinfm/repository"
	"coinfm/storage"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// fakeDevice records the commands it receives and can be told to fail.
type fakeDevice struct {
	mu       sync.Mutex
	commands []string
	loadErr  error
	startErr error
	pauseErr error
}

func (d *fakeDevice) record(cmd string) {
	d.mu.Lock()
	d.commands = append(d.commands, cmd)
	d.mu.Unlock()
}

func (d *fakeDevice) Load(streamURL string) error {
	if d.loadErr != nil {
		return d.loadErr
	}
	d.record("load")
	return nil
}

func (d *fakeDevice) Start() error {
	if d.startErr != nil {
		return d.startErr
	}
	d.record("start")
	return nil
}

func (d *fakeDevice) Pause() error {
	if d.pauseErr != nil {
		return d.pauseErr
	}
	d.record("pause")
	return nil
}

func (d *fakeDevice) Resume() error {
	d.record("resume")
	return nil
}

func (d *fakeDevice) recorded() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.commands))
	copy(out, d.commands)
	return out
}

// fakeFetcher serves a fixed payload, or an error.
type fakeFetcher struct {
	payload string
	err     error
}

func (f *fakeFetcher) Fetch(ctx context.Context, track *model.Track) (io.ReadCloser, error) {
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.payload)), nil
}

type env struct {
	db      *gorm.DB
	device  *fakeDevice
	offline *storage.OfflineStore
	notices []string
	mu      sync.Mutex
	sess    *Session
	user    *model.User
}

func (e *env) noticeList() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.notices))
	copy(out, e.notices)
	return out
}

func setupEnv(t *testing.T, balance int64, premium bool) *env {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.LikedTrack{}, &model.CoinTransaction{}))

	user := &model.User{
		Username:     "listener",
		Email:        "listener@example.com",
		PasswordHash: "x",
		CoinBalance:  balance,
		Premium:      premium,
	}
	require.NoError(t, db.Create(user).Error)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	offline, err := storage.NewOfflineStore(t.TempDir())
	require.NoError(t, err)

	e := &env{
		db:      db,
		device:  &fakeDevice{},
		offline: offline,
		user:    user,
	}
	e.sess = New(Config{
		UserID:       user.ID,
		Device:       e.device,
		Snapshots:    cache.NewSnapshotStore(rdb, 0),
		Ledger:       ledger.New(db, nil),
		UserRepo:     repository.NewUserRepository(db),
		Offline:      offline,
		Fetcher:      &fakeFetcher{payload: "audio-bytes"},
		DownloadCost: 5,
		Notify: func(msg string) {
			e.mu.Lock()
			e.notices = append(e.notices, msg)
			e.mu.Unlock()
		},
	})
	return e
}

func testTrack(id int64, title string) *model.Track {
	return &model.Track{ID: id, Title: title, Artist: "Artist", StreamURL: "https://cdn/" + title}
}

func TestPlayRunsLoadingTransition(t *testing.T) {
	e := setupEnv(t, 0, false)
	track := testTrack(1, "one")

	e.sess.Play(context.Background(), track)
	assert.Equal(t, StateLoading, e.sess.State())
	require.NotNil(t, e.sess.Current())
	assert.Equal(t, track.ID, e.sess.Current().ID)
	assert.Equal(t, []string{"load", "start"}, e.device.recorded())

	e.sess.Started(track.ID)
	assert.Equal(t, StatePlaying, e.sess.State())
}

func TestPlaySameTrackToggles(t *testing.T) {
	e := setupEnv(t, 0, false)
	track := testTrack(1, "one")
	ctx := context.Background()

	e.sess.Play(ctx, track)
	e.sess.Started(track.ID)
	require.Equal(t, StatePlaying, e.sess.State())

	e.sess.Play(ctx, track)
	assert.Equal(t, StatePaused, e.sess.State())

	e.sess.Play(ctx, track)
	assert.Equal(t, StatePlaying, e.sess.State())

	cmds := e.device.recorded()
	assert.Equal(t, []string{"load", "start", "pause", "resume"}, cmds)
}

func TestPlayDuplicateTapWhileLoadingIgnored(t *testing.T) {
	e := setupEnv(t, 0, false)
	track := testTrack(1, "one")
	ctx := context.Background()

	e.sess.Play(ctx, track)
	e.sess.Play(ctx, track)

	assert.Equal(t, StateLoading, e.sess.State())
	assert.Equal(t, []string{"load", "start"}, e.device.recorded())
}

func TestPlayNewTrackReplacesCurrent(t *testing.T) {
	e := setupEnv(t, 0, false)
	first := testTrack(1, "one")
	second := testTrack(2, "two")
	ctx := context.Background()

	e.sess.Play(ctx, first)
	e.sess.Started(first.ID)

	e.sess.Play(ctx, second)
	assert.Equal(t, StateLoading, e.sess.State())
	assert.Equal(t, second.ID, e.sess.Current().ID)

	// A stale report for the replaced track must not move the session.
	e.sess.Started(first.ID)
	assert.Equal(t, StateLoading, e.sess.State())

	e.sess.Started(second.ID)
	assert.Equal(t, StatePlaying, e.sess.State())
}

func TestPlayTrackWithoutStream(t *testing.T) {
	e := setupEnv(t, 0, false)

	e.sess.Play(context.Background(), &model.Track{ID: 1, Title: "broken"})

	assert.Equal(t, StateIdle, e.sess.State())
	assert.Nil(t, e.sess.Current())
	require.Len(t, e.noticeList(), 1)
	assert.Empty(t, e.device.recorded())
}

func TestStartFailureIsRecoverable(t *testing.T) {
	e := setupEnv(t, 0, false)
	e.device.startErr = errors.New("stream unreachable")
	first := testTrack(1, "one")

	e.sess.Play(context.Background(), first)
	assert.Equal(t, StateIdle, e.sess.State())
	assert.Nil(t, e.sess.Current())
	require.Len(t, e.noticeList(), 1)

	// The session stays usable afterwards.
	e.device.startErr = nil
	second := testTrack(2, "two")
	e.sess.Play(context.Background(), second)
	e.sess.Started(second.ID)
	assert.Equal(t, StatePlaying, e.sess.State())
}

func TestStartFailedReport(t *testing.T) {
	e := setupEnv(t, 0, false)
	track := testTrack(1, "one")

	e.sess.Play(context.Background(), track)
	e.sess.StartFailed(track.ID, errors.New("decoder error"))

	assert.Equal(t, StateIdle, e.sess.State())
	assert.Nil(t, e.sess.Current())
	assert.NotEmpty(t, e.noticeList())
}

func TestEndedNoAutoAdvance(t *testing.T) {
	e := setupEnv(t, 0, false)
	track := testTrack(1, "one")

	e.sess.Play(context.Background(), track)
	e.sess.Started(track.ID)
	e.sess.Ended(track.ID)

	assert.Equal(t, StateIdle, e.sess.State())
	assert.Nil(t, e.sess.Current())
	// Nothing further was commanded after the natural end.
	assert.Equal(t, []string{"load", "start"}, e.device.recorded())
}

func TestSnapshotSavedAndRestored(t *testing.T) {
	e := setupEnv(t, 0, false)
	track := testTrack(7, "seven")
	ctx := context.Background()

	e.sess.Play(ctx, track)

	snap, err := e.sess.Restore(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, track.ID, snap.TrackID)
	assert.Equal(t, track.StreamURL, snap.StreamURL)
}

func TestOnChangeObservesTransitions(t *testing.T) {
	e := setupEnv(t, 0, false)
	track := testTrack(1, "one")

	var mu sync.Mutex
	var states []State
	e.sess.OnChange(func(state State, _ *model.Track) {
		mu.Lock()
		states = append(states, state)
		mu.Unlock()
	})

	e.sess.Play(context.Background(), track)
	e.sess.Started(track.ID)
	e.sess.Ended(track.ID)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{StateLoading, StatePlaying, StateIdle}, states)
}

func TestLikeToggle(t *testing.T) {
	e := setupEnv(t, 0, false)
	ctx := context.Background()

	liked, err := e.sess.LikeToggle(ctx, 42)
	require.NoError(t, err)
	assert.True(t, liked)

	liked, err = e.sess.LikeToggle(ctx, 42)
	require.NoError(t, err)
	assert.False(t, liked)
}

func TestDownloadInsufficientFundsNoSideEffects(t *testing.T) {
	e := setupEnv(t, 3, false)
	track := testTrack(1, "one")

	err := e.sess.Download(context.Background(), track)
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	assert.False(t, e.offline.Has(track.ID))

	var user model.User
	require.NoError(t, e.db.First(&user, e.user.ID).Error)
	assert.Equal(t, int64(3), user.CoinBalance)
}

func TestDownloadDebitsAndCaches(t *testing.T) {
	e := setupEnv(t, 20, false)
	track := testTrack(1, "one")

	require.NoError(t, e.sess.Download(context.Background(), track))

	assert.True(t, e.offline.Has(track.ID))

	var user model.User
	require.NoError(t, e.db.First(&user, e.user.ID).Error)
	assert.Equal(t, int64(15), user.CoinBalance)

	entries, err := e.sess.OfflineEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, track.Title, entries[0].Meta.Title)
	assert.Equal(t, int64(len("audio-bytes")), entries[0].Meta.Size)
}

func TestDownloadPremiumIsFree(t *testing.T) {
	e := setupEnv(t, 2, true)
	track := testTrack(1, "one")

	require.NoError(t, e.sess.Download(context.Background(), track))

	assert.True(t, e.offline.Has(track.ID))

	var user model.User
	require.NoError(t, e.db.First(&user, e.user.ID).Error)
	assert.Equal(t, int64(2), user.CoinBalance)
}

func TestDownloadFetchFailureCostsNothing(t *testing.T) {
	e := setupEnv(t, 20, false)
	e.sess.fetcher = &fakeFetcher{err: errors.New("object missing")}
	track := testTrack(1, "one")

	err := e.sess.Download(context.Background(), track)
	require.Error(t, err)

	assert.False(t, e.offline.Has(track.ID))

	var user model.User
	require.NoError(t, e.db.First(&user, e.user.ID).Error)
	assert.Equal(t, int64(20), user.CoinBalance)
}

func TestManagerReusesSessions(t *testing.T) {
	e := setupEnv(t, 0, false)

	m := NewManager(ManagerConfig{
		NewDevice: func(userID int64) AudioDevice { return &fakeDevice{} },
		UserRepo:  repository.NewUserRepository(e.db),
		Ledger:    ledger.New(e.db, nil),
		Offline:   e.offline,
		Fetcher:   &fakeFetcher{payload: "x"},
	})

	s1 := m.Get(1)
	s2 := m.Get(1)
	assert.Same(t, s1, s2)

	m.Remove(1)
	s3 := m.Get(1)
	assert.NotSame(t, s1, s3)
}
