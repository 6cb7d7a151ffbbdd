package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	watchFile = "watch.json"
)

// WatchState records the files ingested by a directory watch.
type WatchState struct {
	// Files maps an absolute file path to what was seen when it was ingested.
	Files map[string]WatchedFile `json:"files"`
}

// WatchedFile is the size and modification time of an ingested file.
type WatchedFile struct {
	Size       int64     `json:"size"`
	ModTime    time.Time `json:"mod_time"`
	ScanFile   string    `json:"scan_file"`
	IngestedAt time.Time `json:"ingested_at"`
}

// Seen reports whether path was ingested with the same size and mtime.
func (s *WatchState) Seen(path string, info os.FileInfo) bool {
	if s == nil {
		return false
	}
	f, ok := s.Files[path]
	return ok && f.Size == info.Size() && f.ModTime.Equal(info.ModTime())
}

// Record marks path as ingested.
func (s *WatchState) Record(path string, info os.FileInfo, scanFile string) {
	if s.Files == nil {
		s.Files = map[string]WatchedFile{}
	}
	s.Files[path] = WatchedFile{
		Size:       info.Size(),
		ModTime:    info.ModTime(),
		ScanFile:   scanFile,
		IngestedAt: time.Now().UTC(),
	}
}

// LoadWatchState loads .cortex/watch.json. A missing file yields an empty state.
func (m *Manager) LoadWatchState(overrideDir string) (*WatchState, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}

	state := &WatchState{Files: map[string]WatchedFile{}}
	if dir == "" {
		return state, nil
	}

	data, err := os.ReadFile(filepath.Join(dir, watchFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return state, nil
		}
		return nil, fmt.Errorf("reading watch state: %w", err)
	}

	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("parsing watch state: %w", err)
	}
	if state.Files == nil {
		state.Files = map[string]WatchedFile{}
	}

	return state, nil
}

// SaveWatchState persists state to .cortex/watch.json.
func (m *Manager) SaveWatchState(state *WatchState, overrideDir string) error {
	if state == nil {
		return errors.New("cannot save nil watch state")
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}
	if dir == "" {
		return errors.New("no .cortex directory found, run 'cortex init' first")
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling watch state: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, watchFile), data, 0o600); err != nil {
		return fmt.Errorf("writing watch state: %w", err)
	}

	return nil
}
