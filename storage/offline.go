package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// OfflineMeta is the denormalized display metadata stored next to a
// cached audio blob so the entry can be listed without the catalog.
type OfflineMeta struct {
	TrackID  int64     `json:"trackId"`
	Title    string    `json:"title"`
	Artist   string    `json:"artist"`
	CoverURL string    `json:"coverUrl"`
	Size     int64     `json:"size"`
	SavedAt  time.Time `json:"savedAt"`
}

// OfflineEntry pairs an entry's metadata with the path of its audio blob.
type OfflineEntry struct {
	Meta     OfflineMeta
	BlobPath string
}

// OfflineStore persists downloaded tracks on local disk, one blob plus a
// JSON metadata sidecar per track id. Entries persist until explicitly
// evicted; no eviction or quota policy exists in current scope, so growth
// is unbounded.
type OfflineStore struct {
	dir string
}

// NewOfflineStore creates the cache directory if needed.
func NewOfflineStore(dir string) (*OfflineStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create offline cache dir: %w", err)
	}
	return &OfflineStore{dir: dir}, nil
}

func (s *OfflineStore) blobPath(trackID int64) string {
	return filepath.Join(s.dir, fmt.Sprintf("%d.audio", trackID))
}

func (s *OfflineStore) metaPath(trackID int64) string {
	return filepath.Join(s.dir, fmt.Sprintf("%d.json", trackID))
}

// Has reports whether a cached entry exists for the track.
func (s *OfflineStore) Has(trackID int64) bool {
	_, err := os.Stat(s.metaPath(trackID))
	return err == nil
}

// Put stores the audio payload and metadata under the track id. The blob
// is written to a temp file first so a failed download never leaves a
// half-written entry behind.
func (s *OfflineStore) Put(meta OfflineMeta, audio io.Reader) error {
	tmp, err := os.CreateTemp(s.dir, "download-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	size, err := io.Copy(tmp, audio)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write audio payload: %w", err)
	}

	if err := os.Rename(tmpName, s.blobPath(meta.TrackID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to place audio blob: %w", err)
	}

	meta.Size = size
	meta.SavedAt = time.Now()

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal offline metadata: %w", err)
	}
	if err := os.WriteFile(s.metaPath(meta.TrackID), data, 0644); err != nil {
		return fmt.Errorf("failed to write offline metadata: %w", err)
	}

	return nil
}

// Open returns a reader over the cached audio blob for the track.
func (s *OfflineStore) Open(trackID int64) (io.ReadCloser, error) {
	f, err := os.Open(s.blobPath(trackID))
	if err != nil {
		return nil, fmt.Errorf("failed to open cached audio for track %d: %w", trackID, err)
	}
	return f, nil
}

// List enumerates all cached entries, ordered by track id.
func (s *OfflineStore) List() ([]OfflineEntry, error) {
	files, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read offline cache dir: %w", err)
	}

	var entries []OfflineEntry
	for _, f := range files {
		name := f.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		idStr := strings.TrimSuffix(name, ".json")
		trackID, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read metadata %s: %w", name, err)
		}
		var meta OfflineMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			return nil, fmt.Errorf("failed to decode metadata %s: %w", name, err)
		}

		entries = append(entries, OfflineEntry{
			Meta:     meta,
			BlobPath: s.blobPath(trackID),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Meta.TrackID < entries[j].Meta.TrackID
	})

	return entries, nil
}
