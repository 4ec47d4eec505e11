package repository

import (
	"path/filepath"
	"testing"

	"coinfm/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.Friend{}, &model.LikedTrack{}))
	return db
}

func newUser(name string) *model.User {
	return &model.User{Username: name, Email: name + "@example.com", PasswordHash: "x"}
}

func TestCreateUserDuplicate(t *testing.T) {
	repo := NewUserRepository(setupDB(t))

	_, err := repo.CreateUser(newUser("alice"))
	require.NoError(t, err)

	_, err = repo.CreateUser(newUser("alice"))
	assert.ErrorIs(t, err, ErrDuplicateUser)
}

func TestGetUserMissingReturnsNil(t *testing.T) {
	repo := NewUserRepository(setupDB(t))

	user, err := repo.GetUserByID(999)
	require.NoError(t, err)
	assert.Nil(t, user)

	user, err = repo.GetUserByUsername("ghost")
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestSearchByNamePrefix(t *testing.T) {
	db := setupDB(t)
	repo := NewUserRepository(db)

	for _, name := range []string{"anna", "annette", "bob"} {
		_, err := repo.CreateUser(newUser(name))
		require.NoError(t, err)
	}

	results, err := repo.SearchByNamePrefix("ann", 10)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = repo.SearchByNamePrefix("bo", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "bob", results[0].Username)
}

func TestLikesAreIdempotent(t *testing.T) {
	db := setupDB(t)
	repo := NewUserRepository(db)

	id, err := repo.CreateUser(newUser("alice"))
	require.NoError(t, err)

	require.NoError(t, repo.AddLike(id, 7))
	require.NoError(t, repo.AddLike(id, 7))

	likes, err := repo.ListLikes(id)
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, likes)

	require.NoError(t, repo.RemoveLike(id, 7))
	require.NoError(t, repo.RemoveLike(id, 7))

	likes, err = repo.ListLikes(id)
	require.NoError(t, err)
	assert.Empty(t, likes)
}

func TestLinkFriendsWritesBothDirections(t *testing.T) {
	db := setupDB(t)
	repo := NewUserRepository(db)

	a, err := repo.CreateUser(newUser("alice"))
	require.NoError(t, err)
	b, err := repo.CreateUser(newUser("bob"))
	require.NoError(t, err)

	require.NoError(t, repo.LinkFriends(a, b))

	var rows int64
	require.NoError(t, db.Model(&model.Friend{}).Count(&rows).Error)
	assert.Equal(t, int64(2), rows)

	// Relinking is idempotent.
	require.NoError(t, repo.LinkFriends(a, b))
	require.NoError(t, db.Model(&model.Friend{}).Count(&rows).Error)
	assert.Equal(t, int64(2), rows)
}
