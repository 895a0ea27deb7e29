// Package datastore is a small JSON-file key/value store with periodic
// auto-save, atomic writes and rotating backups.
package datastore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds store options.
type Config struct {
	FilePath         string
	AutoSaveInterval time.Duration
	BackupCount      int
}

// DefaultConfig returns the options used by the bot.
func DefaultConfig(filePath string) *Config {
	return &Config{
		FilePath:         filePath,
		AutoSaveInterval: 10 * time.Second,
		BackupCount:      3,
	}
}

// Store keeps the full dataset in memory and flushes it to disk when it
// changes. All methods are safe for concurrent use.
type Store struct {
	mu           sync.RWMutex
	data         map[string]json.RawMessage
	lastChecksum string

	cfg    *Config
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeMu sync.Mutex
	closed  bool
}

// New opens (or creates) the store at filePath with default options.
func New(filePath string) (*Store, error) {
	return NewWithConfig(DefaultConfig(filePath))
}

// NewWithConfig opens (or creates) the store with explicit options.
func NewWithConfig(cfg *Config) (*Store, error) {
	if cfg == nil || cfg.FilePath == "" {
		return nil, fmt.Errorf("datastore: file path is required")
	}

	if dir := filepath.Dir(cfg.FilePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("datastore: create directory: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		data:   make(map[string]json.RawMessage),
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
	}

	if _, err := os.Stat(cfg.FilePath); os.IsNotExist(err) {
		if err := s.writeFileAtomic([]byte("{}")); err != nil {
			cancel()
			return nil, fmt.Errorf("datastore: init empty file: %w", err)
		}
	} else if err == nil {
		if err := s.load(); err != nil {
			cancel()
			return nil, err
		}
	} else {
		cancel()
		return nil, fmt.Errorf("datastore: stat: %w", err)
	}

	s.wg.Add(1)
	go s.autoSave()

	return s, nil
}

// Put marshals value and stores it under key.
func (s *Store) Put(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("datastore: marshal %q: %w", key, err)
	}

	s.mu.Lock()
	s.data[key] = raw
	s.mu.Unlock()
	return nil
}

// Get unmarshals the value stored under key into out. It reports whether
// the key existed.
func (s *Store) Get(key string, out any) (bool, error) {
	s.mu.RLock()
	raw, ok := s.data[key]
	s.mu.RUnlock()

	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return true, fmt.Errorf("datastore: unmarshal %q: %w", key, err)
	}
	return true, nil
}

// Delete removes key from the store.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
}

// Save forces an immediate flush to disk.
func (s *Store) Save() error {
	return s.flush()
}

// Close stops the auto-save loop and performs a final flush.
func (s *Store) Close() error {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return nil
	}
	s.closed = true
	s.closeMu.Unlock()

	s.cancel()
	s.wg.Wait()
	return s.flush()
}

func (s *Store) flush() error {
	s.mu.RLock()
	payload, err := json.MarshalIndent(s.data, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("datastore: marshal: %w", err)
	}

	checksum := checksumOf(payload)

	s.mu.Lock()
	defer s.mu.Unlock()
	if checksum == s.lastChecksum {
		return nil
	}

	if s.cfg.BackupCount > 0 {
		if err := s.createBackup(); err != nil {
			log.Warn().Err(err).Msg("datastore: backup failed")
		}
	}

	if err := s.writeFileAtomic(payload); err != nil {
		return err
	}
	s.lastChecksum = checksum
	return nil
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.cfg.FilePath)
	if err != nil {
		return fmt.Errorf("datastore: read: %w", err)
	}

	var data map[string]json.RawMessage
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("datastore: invalid JSON in %s: %w", s.cfg.FilePath, err)
	}

	s.data = data
	if s.data == nil {
		s.data = make(map[string]json.RawMessage)
	}
	s.lastChecksum = checksumOf(raw)
	return nil
}

func (s *Store) writeFileAtomic(payload []byte) error {
	tmp := s.cfg.FilePath + ".tmp"

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("datastore: open temp file: %w", err)
	}
	if _, err := f.Write(payload); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("datastore: write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("datastore: sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("datastore: close temp file: %w", err)
	}

	if err := os.Rename(tmp, s.cfg.FilePath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("datastore: rename temp file: %w", err)
	}
	return nil
}

func (s *Store) createBackup() error {
	if _, err := os.Stat(s.cfg.FilePath); os.IsNotExist(err) {
		return nil
	}

	stamp := time.Now().Format("20060102_150405")
	backup := fmt.Sprintf("%s.backup.%s", s.cfg.FilePath, stamp)

	src, err := os.Open(s.cfg.FilePath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(backup)
	if err != nil {
		return err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return err
	}

	s.cleanupOldBackups()
	return nil
}

func (s *Store) cleanupOldBackups() {
	matches, err := filepath.Glob(s.cfg.FilePath + ".backup.*")
	if err != nil || len(matches) <= s.cfg.BackupCount {
		return
	}

	// Timestamped names sort chronologically.
	sort.Strings(matches)
	for _, path := range matches[:len(matches)-s.cfg.BackupCount] {
		os.Remove(path)
	}
}

func (s *Store) autoSave() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.AutoSaveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := s.flush(); err != nil {
				log.Error().Err(err).Msg("datastore: auto-save failed")
			}
		}
	}
}

func checksumOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
