// Package storage is the typed persistence layer over the JSON datastore.
package storage

import (
	"fmt"
	"time"

	"github.com/EolnMsuk/skipcord/datastore"
	"github.com/EolnMsuk/skipcord/internal/music"
)

const (
	keyMusicState     = "music_state"
	keyViolations     = "camera_violations"
	keyCommandHistory = "command_history"

	commandHistoryLimit = 50
)

// CommandRecord is one executed command, kept for the !info audit trail.
type CommandRecord struct {
	UserID   string    `json:"user_id"`
	Username string    `json:"username"`
	Command  string    `json:"command"`
	Param    string    `json:"param,omitempty"`
	Datetime time.Time `json:"datetime"`
}

type Storage struct {
	ds *datastore.Store
}

func New(filePath string) (*Storage, error) {
	ds, err := datastore.New(filePath)
	if err != nil {
		return nil, fmt.Errorf("open datastore: %w", err)
	}
	return &Storage{ds: ds}, nil
}

// Close flushes pending state and stops the auto-save loop.
func (s *Storage) Close() error {
	return s.ds.Close()
}

// Save forces an immediate flush, used on shutdown before Close.
func (s *Storage) Save() error {
	return s.ds.Save()
}

// SaveMusic persists the playback state for the next boot.
func (s *Storage) SaveMusic(p music.PersistedState) error {
	return s.ds.Put(keyMusicState, p)
}

// LoadMusic returns the persisted playback state, or ok=false on first run.
func (s *Storage) LoadMusic() (music.PersistedState, bool) {
	var p music.PersistedState
	ok, err := s.ds.Get(keyMusicState, &p)
	if err != nil || !ok {
		return music.PersistedState{}, false
	}
	return p, true
}

// IncrementViolation bumps and returns a user's camera violation count.
func (s *Storage) IncrementViolation(userID string) int {
	counts := s.violations()
	counts[userID]++
	s.ds.Put(keyViolations, counts)
	return counts[userID]
}

// Violations returns a user's current violation count.
func (s *Storage) Violations(userID string) int {
	return s.violations()[userID]
}

// ResetViolations clears a user's violation count.
func (s *Storage) ResetViolations(userID string) {
	counts := s.violations()
	if _, ok := counts[userID]; !ok {
		return
	}
	delete(counts, userID)
	s.ds.Put(keyViolations, counts)
}

func (s *Storage) violations() map[string]int {
	counts := make(map[string]int)
	s.ds.Get(keyViolations, &counts)
	return counts
}

// AppendCommandToHistory records an executed command, keeping only the most
// recent entries.
func (s *Storage) AppendCommandToHistory(rec CommandRecord) error {
	history, _ := s.CommandHistory()
	history = append(history, rec)
	if len(history) > commandHistoryLimit {
		history = history[len(history)-commandHistoryLimit:]
	}
	return s.ds.Put(keyCommandHistory, history)
}

// CommandHistory returns the recorded command trail, oldest first.
func (s *Storage) CommandHistory() ([]CommandRecord, error) {
	var history []CommandRecord
	if _, err := s.ds.Get(keyCommandHistory, &history); err != nil {
		return nil, err
	}
	return history, nil
}
