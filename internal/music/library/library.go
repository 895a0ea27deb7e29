// Package library indexes the local music directory. Scans cache file
// metadata on disk so unchanged files are never re-parsed.
package library

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dhowden/tag"
	"github.com/rs/zerolog/log"

	"github.com/EolnMsuk/skipcord/internal/music"
)

// cacheEntry holds parsed metadata keyed by file path. MTime invalidates
// the entry when the file changes.
type cacheEntry struct {
	Artist string `json:"artist"`
	Title  string `json:"title"`
	MTime  int64  `json:"mtime"`
}

// Index scans a directory tree for supported audio files and produces a
// shuffled track list. One instance owns the metadata cache; it is not
// shared as ambient global state.
type Index struct {
	mu        sync.Mutex
	root      string
	formats   map[string]bool
	cachePath string
	cache     map[string]cacheEntry
}

func New(root string, formats []string, cachePath string) *Index {
	fm := make(map[string]bool, len(formats))
	for _, f := range formats {
		fm[strings.ToLower(f)] = true
	}

	ix := &Index{
		root:      root,
		formats:   fm,
		cachePath: cachePath,
		cache:     make(map[string]cacheEntry),
	}
	ix.loadCache()
	return ix
}

// Scan walks the music directory, refreshes the metadata cache and
// returns all found tracks in shuffled order. Blocking; call it off the
// event path and outside the playback lock.
func (ix *Index) Scan(ctx context.Context) ([]music.Track, error) {
	if ix.root == "" {
		return nil, nil
	}
	if info, err := os.Stat(ix.root); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("music location invalid: %s", ix.root)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	var tracks []music.Track
	err := filepath.WalkDir(ix.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !ix.formats[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		tracks = append(tracks, music.Track{
			ID:    path,
			Title: ix.displayTitleLocked(path, d),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("library scan: %w", err)
	}

	ix.saveCacheLocked()

	rand.Shuffle(len(tracks), func(i, j int) {
		tracks[i], tracks[j] = tracks[j], tracks[i]
	})

	log.Info().Int("tracks", len(tracks)).Str("root", ix.root).Msg("library: scan complete")
	return tracks, nil
}

// displayTitleLocked resolves "Artist - Title" from tags, falling back to
// the bare filename. Cache hits skip the file read entirely.
func (ix *Index) displayTitleLocked(path string, d fs.DirEntry) string {
	var mtime int64
	if info, err := d.Info(); err == nil {
		mtime = info.ModTime().Unix()
	}

	if entry, ok := ix.cache[path]; ok && entry.MTime == mtime {
		return formatTitle(entry.Artist, entry.Title, path)
	}

	entry := cacheEntry{MTime: mtime}
	if f, err := os.Open(path); err == nil {
		if m, err := tag.ReadFrom(f); err == nil {
			entry.Artist = strings.TrimSpace(m.Artist())
			entry.Title = strings.TrimSpace(m.Title())
		} else {
			log.Debug().Err(err).Str("path", path).Msg("library: unreadable tags")
		}
		f.Close()
	}
	ix.cache[path] = entry

	return formatTitle(entry.Artist, entry.Title, path)
}

func formatTitle(artist, title, path string) string {
	switch {
	case artist != "" && title != "":
		return artist + " - " + title
	case title != "":
		return title
	default:
		base := filepath.Base(path)
		return strings.TrimSuffix(base, filepath.Ext(base))
	}
}

func (ix *Index) loadCache() {
	if ix.cachePath == "" {
		return
	}
	raw, err := os.ReadFile(ix.cachePath)
	if err != nil {
		return
	}
	var cache map[string]cacheEntry
	if err := json.Unmarshal(raw, &cache); err != nil {
		log.Warn().Err(err).Msg("library: discarding corrupt metadata cache")
		return
	}
	ix.cache = cache
	log.Info().Int("entries", len(cache)).Msg("library: metadata cache loaded")
}

func (ix *Index) saveCacheLocked() {
	if ix.cachePath == "" {
		return
	}
	raw, err := json.Marshal(ix.cache)
	if err != nil {
		return
	}
	if err := os.WriteFile(ix.cachePath, raw, 0o644); err != nil {
		log.Warn().Err(err).Msg("library: failed to save metadata cache")
	}
}
