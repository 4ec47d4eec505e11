package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"coinfm/logger"

	"github.com/redis/go-redis/v9"
)

// Snapshot is the last-played track descriptor persisted on every track
// change so a restarted client can restore its session.
type Snapshot struct {
	TrackID   int64     `json:"trackId"`
	Title     string    `json:"title"`
	Artist    string    `json:"artist"`
	CoverURL  string    `json:"coverUrl"`
	StreamURL string    `json:"streamUrl"`
	SavedAt   time.Time `json:"savedAt"`
}

// SnapshotStore persists playback snapshots in Redis.
type SnapshotStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSnapshotStore creates a SnapshotStore. A zero ttl means no expiration.
func NewSnapshotStore(rdb *redis.Client, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{rdb: rdb, ttl: ttl}
}

// snapshotKey builds the Redis key for a user's last-played snapshot.
func snapshotKey(userID int64) string {
	return fmt.Sprintf("session:last:%d", userID)
}

// Save writes the user's last-played snapshot.
func (s *SnapshotStore) Save(ctx context.Context, userID int64, snap Snapshot) error {
	snap.SavedAt = time.Now()

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := s.rdb.Set(ctx, snapshotKey(userID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	return nil
}

// Load reads the user's last-played snapshot. Returns (nil, nil) when no
// snapshot exists.
func (s *SnapshotStore) Load(ctx context.Context, userID int64) (*Snapshot, error) {
	data, err := s.rdb.Get(ctx, snapshotKey(userID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	return &snap, nil
}

// Delete removes the user's snapshot.
func (s *SnapshotStore) Delete(ctx context.Context, userID int64) error {
	return s.rdb.Del(ctx, snapshotKey(userID)).Err()
}

// PruneOlderThan removes snapshots whose SavedAt is before the cutoff.
// Returns the number of snapshots removed.
func (s *SnapshotStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	var pruned int
	iter := s.rdb.Scan(ctx, 0, "session:last:*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()

		data, err := s.rdb.Get(ctx, key).Bytes()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			return pruned, fmt.Errorf("failed to read snapshot %s: %w", key, err)
		}

		var snap Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			// Unreadable snapshot, drop it.
			logger.Warn("dropping unreadable snapshot", logger.String("key", key), logger.ErrorField(err))
			s.rdb.Del(ctx, key)
			pruned++
			continue
		}

		if snap.SavedAt.Before(cutoff) {
			if err := s.rdb.Del(ctx, key).Err(); err != nil {
				return pruned, fmt.Errorf("failed to delete snapshot %s: %w", key, err)
			}
			pruned++
		}
	}
	if err := iter.Err(); err != nil {
		return pruned, fmt.Errorf("snapshot scan failed: %w", err)
	}

	return pruned, nil
}
