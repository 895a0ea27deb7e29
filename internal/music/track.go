package music

// Track is a unit of audio: a local file or a remote stream.
type Track struct {
	// ID is the file path for local tracks, or the original page URL for
	// stream tracks. Stream URLs are resolved to playable URLs only at
	// playback time, never stored.
	ID       string `json:"id"`
	Title    string `json:"title"`
	IsStream bool   `json:"is_stream"`

	// Origin is the channel that enqueued the track, used for a one-shot
	// "now playing" reply. Never persisted.
	Origin string `json:"-"`
}

// Mode governs selection order over the combined user queue.
type Mode string

const (
	ModeFIFO         Mode = "fifo"
	ModeShuffle      Mode = "shuffle"
	ModeAlphabetical Mode = "alphabetical"
	ModeLoop         Mode = "loop"
)

// effective maps any unrecognized stored value to FIFO behavior.
func (m Mode) effective() Mode {
	switch m {
	case ModeShuffle, ModeAlphabetical, ModeLoop:
		return m
	default:
		return ModeFIFO
	}
}

// ParseMode returns the mode for a user-supplied string, defaulting to FIFO.
func ParseMode(s string) Mode {
	return Mode(s).effective()
}
