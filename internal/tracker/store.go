package tracker

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
)

// Store persists each user's tracked items as a JSON document under
// <dataDir>/<userID>/tracked.json and mirrors the files in an in-memory
// cache. The cache is updated in the same critical section as the write, so
// reads within the process never observe stale state. Single-writer,
// single-process: no cross-process coordination is attempted.
type Store struct {
	mu      sync.Mutex
	dataDir string
	cache   map[int64][]TrackedItem
}

// NewStore creates a store rooted at dataDir, creating it if needed.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{
		dataDir: dataDir,
		cache:   make(map[int64][]TrackedItem),
	}, nil
}

func (s *Store) userDir(userID int64) string {
	return filepath.Join(s.dataDir, strconv.FormatInt(userID, 10))
}

func (s *Store) trackedFile(userID int64) string {
	return filepath.Join(s.userDir(userID), "tracked.json")
}

// UserIDs lists every user with a data directory, in ascending order.
func (s *Store) UserIDs() ([]int64, error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}
	var ids []int64
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, err := strconv.ParseInt(e.Name(), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// UserExists reports whether the user's directory exists.
func (s *Store) UserExists(userID int64) bool {
	_, err := os.Stat(s.userDir(userID))
	return err == nil
}

// CreateUser creates the user's directory with an empty item list and an
// info.txt describing who they are. Idempotent.
func (s *Store) CreateUser(userID int64, info string) error {
	if s.UserExists(userID) {
		return nil
	}
	if err := os.MkdirAll(s.userDir(userID), 0o755); err != nil {
		return fmt.Errorf("create user dir: %w", err)
	}
	if err := s.SaveItems(userID, nil); err != nil {
		return err
	}
	infoFile := filepath.Join(s.userDir(userID), "info.txt")
	if err := os.WriteFile(infoFile, []byte(info), 0o644); err != nil {
		return fmt.Errorf("write user info: %w", err)
	}
	return nil
}

// Items returns the user's tracked items, from cache when possible.
func (s *Store) Items(userID int64) ([]TrackedItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if items, ok := s.cache[userID]; ok {
		return append([]TrackedItem(nil), items...), nil
	}

	data, err := os.ReadFile(s.trackedFile(userID))
	if err != nil {
		return nil, fmt.Errorf("read tracked items: %w", err)
	}
	var envelope TrackedItems
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode tracked items: %w", err)
	}

	s.cache[userID] = envelope.TrackedItems
	return append([]TrackedItem(nil), envelope.TrackedItems...), nil
}

// SaveItems overwrites the user's file with the items sorted by name and
// updates the cache under the same lock.
func (s *Store) SaveItems(userID int64, items []TrackedItem) error {
	// keep the envelope's array an array even for an empty list
	toSave := append([]TrackedItem{}, items...)
	sort.Slice(toSave, func(i, j int) bool { return toSave[i].Name < toSave[j].Name })

	data, err := json.MarshalIndent(TrackedItems{TrackedItems: toSave}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode tracked items: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.WriteFile(s.trackedFile(userID), data, 0o644); err != nil {
		return fmt.Errorf("write tracked items: %w", err)
	}
	s.cache[userID] = toSave
	return nil
}

// DeleteUser removes the user's directory and cache entry.
func (s *Store) DeleteUser(userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(s.userDir(userID)); err != nil {
		return fmt.Errorf("delete user dir: %w", err)
	}
	delete(s.cache, userID)
	return nil
}
