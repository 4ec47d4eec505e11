package social

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"coinfm/cache"
	"coinfm/core/ledger"
	"coinfm/model"
	"coinfm/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type fixture struct {
	db       *gorm.DB
	userRepo repository.UserRepository
	svc      *Service
}

func setup(t *testing.T, pub *cache.Publisher) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.User{}, &model.Friend{}, &model.Track{},
		&model.CoinTransaction{}, &model.Dedication{},
	))

	userRepo := repository.NewUserRepository(db)
	trackRepo := repository.NewTrackRepository(db)
	dedicationRepo := repository.NewDedicationRepository(db)
	l := ledger.New(db, pub)

	return &fixture{
		db:       db,
		userRepo: userRepo,
		svc:      NewService(userRepo, trackRepo, dedicationRepo, l, pub, 5),
	}
}

func (f *fixture) createUser(t *testing.T, name string, balance int64) *model.User {
	t.Helper()
	user := &model.User{
		Username:     name,
		Email:        name + "@example.com",
		PasswordHash: "x",
		CoinBalance:  balance,
	}
	require.NoError(t, f.db.Create(user).Error)
	return user
}

func (f *fixture) createTrack(t *testing.T, title string) *model.Track {
	t.Helper()
	track := &model.Track{Title: title, Artist: "Artist", StreamURL: "https://cdn/" + title}
	require.NoError(t, f.db.Create(track).Error)
	return track
}

func TestLinkIsSymmetric(t *testing.T) {
	f := setup(t, nil)
	a := f.createUser(t, "alice", 0)
	b := f.createUser(t, "bob", 0)
	ctx := context.Background()

	require.NoError(t, f.svc.Link(ctx, a.ID, b.ID))

	ab, err := f.userRepo.AreFriends(a.ID, b.ID)
	require.NoError(t, err)
	ba, err := f.userRepo.AreFriends(b.ID, a.ID)
	require.NoError(t, err)
	assert.True(t, ab)
	assert.True(t, ba)

	friendsOfA, err := f.svc.Friends(a.ID)
	require.NoError(t, err)
	require.Len(t, friendsOfA, 1)
	assert.Equal(t, b.ID, friendsOfA[0].ID)
}

func TestLinkSelfRejected(t *testing.T) {
	f := setup(t, nil)
	a := f.createUser(t, "alice", 0)

	err := f.svc.Link(context.Background(), a.ID, a.ID)
	assert.ErrorIs(t, err, ErrSelfFriend)
}

func TestLinkUnknownUser(t *testing.T) {
	f := setup(t, nil)
	a := f.createUser(t, "alice", 0)

	err := f.svc.Link(context.Background(), a.ID, 9999)
	assert.ErrorIs(t, err, ErrUnknownUser)

	// Half-linked pairs must never be observable.
	linked, err := f.userRepo.AreFriends(a.ID, 9999)
	require.NoError(t, err)
	assert.False(t, linked)
}

func TestUnlinkRemovesBothDirections(t *testing.T) {
	f := setup(t, nil)
	a := f.createUser(t, "alice", 0)
	b := f.createUser(t, "bob", 0)
	ctx := context.Background()

	require.NoError(t, f.svc.Link(ctx, a.ID, b.ID))
	require.NoError(t, f.svc.Unlink(ctx, a.ID, b.ID))

	ab, err := f.userRepo.AreFriends(a.ID, b.ID)
	require.NoError(t, err)
	ba, err := f.userRepo.AreFriends(b.ID, a.ID)
	require.NoError(t, err)
	assert.False(t, ab)
	assert.False(t, ba)
}

func TestSearchExcludesPrivateProfiles(t *testing.T) {
	f := setup(t, nil)
	f.createUser(t, "carol", 0)
	private := f.createUser(t, "carlos", 0)
	require.NoError(t, f.userRepo.UpdateSettings(private.ID, true, "dark"))

	results, err := f.svc.SearchUsers("car", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "carol", results[0].Username)
}

func TestSendDedication(t *testing.T) {
	f := setup(t, nil)
	sender := f.createUser(t, "alice", 20)
	recipient := f.createUser(t, "bob", 0)
	track := f.createTrack(t, "Song A")
	ctx := context.Background()

	dedication, err := f.svc.SendDedication(ctx, sender.ID, recipient.ID, track.ID, "for you")
	require.NoError(t, err)
	assert.Equal(t, "alice", dedication.FromName)
	assert.Equal(t, track.Title, dedication.TrackTitle)

	var updated model.User
	require.NoError(t, f.db.First(&updated, sender.ID).Error)
	assert.Equal(t, int64(15), updated.CoinBalance)

	inbox, err := f.svc.Inbox(recipient.ID, 10)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, dedication.ID, inbox[0].ID)

	sent, err := f.svc.Sent(sender.ID, 10)
	require.NoError(t, err)
	require.Len(t, sent, 1)
}

func TestSendDedicationInsufficientFundsLeavesNoTrace(t *testing.T) {
	f := setup(t, nil)
	sender := f.createUser(t, "alice", 3)
	recipient := f.createUser(t, "bob", 0)
	track := f.createTrack(t, "Song A")

	_, err := f.svc.SendDedication(context.Background(), sender.ID, recipient.ID, track.ID, "for you")
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	var updated model.User
	require.NoError(t, f.db.First(&updated, sender.ID).Error)
	assert.Equal(t, int64(3), updated.CoinBalance)

	inbox, err := f.svc.Inbox(recipient.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, inbox)

	var records int64
	require.NoError(t, f.db.Model(&model.CoinTransaction{}).Count(&records).Error)
	assert.Zero(t, records)
}

func TestSendDedicationValidation(t *testing.T) {
	f := setup(t, nil)
	sender := f.createUser(t, "alice", 20)
	recipient := f.createUser(t, "bob", 0)
	track := f.createTrack(t, "Song A")
	ctx := context.Background()

	_, err := f.svc.SendDedication(ctx, sender.ID, sender.ID, track.ID, "hi")
	assert.ErrorIs(t, err, ErrSelfDedication)

	_, err = f.svc.SendDedication(ctx, sender.ID, recipient.ID, track.ID, "")
	assert.ErrorIs(t, err, ErrEmptyDedication)

	_, err = f.svc.SendDedication(ctx, sender.ID, recipient.ID, 9999, "hi")
	assert.ErrorIs(t, err, ErrUnknownTrack)

	_, err = f.svc.SendDedication(ctx, sender.ID, 9999, track.ID, "hi")
	assert.ErrorIs(t, err, ErrUnknownUser)
}

func TestSendDedicationPublishesInboxEventOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	pub := cache.NewPublisher(rdb)
	f := setup(t, pub)
	sender := f.createUser(t, "alice", 20)
	recipient := f.createUser(t, "bob", 0)
	track := f.createTrack(t, "Song A")
	ctx := context.Background()

	sub, err := cache.Subscribe(ctx, rdb, cache.InboxChannel(recipient.ID))
	require.NoError(t, err)
	defer sub.Close()

	dedication, err := f.svc.SendDedication(ctx, sender.ID, recipient.ID, track.ID, "for you")
	require.NoError(t, err)

	select {
	case evt := <-sub.C:
		assert.Equal(t, cache.EventDedication, evt.Type)
		var payload model.Dedication
		require.NoError(t, json.Unmarshal(evt.Payload, &payload))
		assert.Equal(t, dedication.ID, payload.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("expected an inbox event")
	}

	// Exactly one event per send.
	select {
	case evt := <-sub.C:
		t.Fatalf("unexpected second event: %s", evt.Type)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestManyFriends(t *testing.T) {
	f := setup(t, nil)
	a := f.createUser(t, "alice", 0)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		b := f.createUser(t, fmt.Sprintf("friend%d", i), 0)
		require.NoError(t, f.svc.Link(ctx, a.ID, b.ID))
	}

	friends, err := f.svc.Friends(a.ID)
	require.NoError(t, err)
	assert.Len(t, friends, 5)
}
