package music

import "sync"

// State is the shared playback data model. Every field is guarded by mu;
// engine code in this package reads and writes fields only while holding it.
type State struct {
	mu sync.Mutex

	activePlaylist []Track
	searchQueue    []Track
	libraryQueue   []Track

	current *Track

	mode           Mode
	manualOverride bool

	playing    bool
	paused     bool
	processing bool

	stopIntentional bool

	volume    float64
	maxVolume float64

	playlists map[string][]Track
}

// NewState returns a State with the given initial volume and ceiling.
func NewState(volume, maxVolume float64) *State {
	if maxVolume <= 0 {
		maxVolume = 1.0
	}
	return &State{
		mode:      ModeShuffle,
		volume:    clampVolume(volume, maxVolume),
		maxVolume: maxVolume,
		playlists: make(map[string][]Track),
	}
}

func clampVolume(v, max float64) float64 {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}

// Snapshot is a read-only view for UI rendering. Callers get copies only.
type Snapshot struct {
	CurrentTitle string  `json:"current_title"`
	Playing      bool    `json:"playing"`
	Paused       bool    `json:"paused"`
	Mode         Mode    `json:"mode"`
	Volume       float64 `json:"volume"`
	MaxVolume    float64 `json:"max_volume"`
	QueueLength  int     `json:"queue_length"`
	LibraryQueue int     `json:"library_queue_length"`
}

func (s *State) snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Playing:      s.playing,
		Paused:       s.paused,
		Mode:         s.mode,
		Volume:       s.volume,
		MaxVolume:    s.maxVolume,
		QueueLength:  len(s.activePlaylist) + len(s.searchQueue),
		LibraryQueue: len(s.libraryQueue),
	}
	if s.current != nil {
		snap.CurrentTitle = s.current.Title
	}
	return snap
}

// PersistedState is the pure-data shape handed to the persistence layer.
// Origin contexts are stripped by the Track JSON tags. Volume is a pointer
// so a saved value of exactly 0 (muted) survives the round trip instead of
// reading as "field missing".
type PersistedState struct {
	SearchQueue    []Track            `json:"search_queue"`
	ActivePlaylist []Track            `json:"active_playlist"`
	Current        *Track             `json:"current,omitempty"`
	Mode           Mode               `json:"mode"`
	Volume         *float64           `json:"volume,omitempty"`
	Playlists      map[string][]Track `json:"playlists"`
}

func (s *State) export() PersistedState {
	s.mu.Lock()
	defer s.mu.Unlock()

	volume := s.volume
	out := PersistedState{
		SearchQueue:    append([]Track(nil), s.searchQueue...),
		ActivePlaylist: append([]Track(nil), s.activePlaylist...),
		Mode:           s.mode,
		Volume:         &volume,
		Playlists:      make(map[string][]Track, len(s.playlists)),
	}
	if s.current != nil {
		c := *s.current
		out.Current = &c
	}
	for name, tracks := range s.playlists {
		out.Playlists[name] = append([]Track(nil), tracks...)
	}
	return out
}

// restore applies a previously saved state. Missing fields keep their
// configured defaults; an unknown mode string is stored verbatim and
// behaves as FIFO. A saved current track is re-queued at the head of the
// search queue rather than resumed mid-play.
func (s *State) restore(p PersistedState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.searchQueue = append([]Track(nil), p.SearchQueue...)
	s.activePlaylist = append([]Track(nil), p.ActivePlaylist...)
	if p.Mode != "" {
		s.mode = p.Mode
	}
	if p.Volume != nil {
		s.volume = clampVolume(*p.Volume, s.maxVolume)
	}
	if p.Playlists != nil {
		s.playlists = make(map[string][]Track, len(p.Playlists))
		for name, tracks := range p.Playlists {
			s.playlists[name] = append([]Track(nil), tracks...)
		}
	}
	if p.Current != nil {
		s.searchQueue = append([]Track{*p.Current}, s.searchQueue...)
	}
}
