package music

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Conn is the narrow surface of a live voice connection the engine needs.
type Conn interface {
	ChannelID() string
	Connected() bool
	Move(channelID string) error
	Disconnect() error
	Speaking(on bool) error
	OpusSend() chan<- []byte
}

// Dialer establishes voice connections. Existing exposes a connection a
// concurrent caller may have opened, for the post-failure re-check.
type Dialer interface {
	Join(guildID, channelID string, timeout time.Duration) (Conn, error)
	Existing(guildID string) (Conn, bool)
}

// ConnectionManager owns the single voice connection to the streaming
// channel. No other component issues raw connect/disconnect calls.
type ConnectionManager struct {
	mu      sync.Mutex
	dialer  Dialer
	guildID string
	target  string
	timeout time.Duration
	conn    Conn
}

func NewConnectionManager(dialer Dialer, guildID, channelID string, timeout time.Duration) *ConnectionManager {
	return &ConnectionManager{
		dialer:  dialer,
		guildID: guildID,
		target:  channelID,
		timeout: timeout,
	}
}

// Ensure brings the connection to the target channel. It is idempotent:
// when already correctly connected it issues no network calls. Failure is
// non-fatal; callers must not assume a connection exists on false.
func (m *ConnectionManager) Ensure() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != nil && m.conn.Connected() && m.conn.ChannelID() == m.target {
		return true
	}

	if m.conn != nil && m.conn.Connected() {
		log.Info().Str("from", m.conn.ChannelID()).Str("to", m.target).Msg("voice: moving to target channel")
		if err := m.conn.Move(m.target); err == nil {
			return true
		} else {
			// A failed move can leave a zombie handle; clear it before
			// attempting a fresh connect.
			log.Error().Err(err).Msg("voice: move failed, forcing disconnect")
			_ = m.conn.Disconnect()
			m.conn = nil
		}
	}

	log.Info().Str("channel", m.target).Msg("voice: connecting")
	conn, err := m.dialer.Join(m.guildID, m.target, m.timeout)
	if err != nil {
		log.Error().Err(err).Str("channel", m.target).Msg("voice: connect failed")
		// Another caller may have connected while this attempt failed.
		if existing, ok := m.dialer.Existing(m.guildID); ok && existing.Connected() {
			m.conn = existing
			return true
		}
		m.conn = nil
		return false
	}

	m.conn = conn
	return true
}

// Current returns the live connection, if any.
func (m *ConnectionManager) Current() (Conn, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil || !m.conn.Connected() {
		return nil, false
	}
	return m.conn, true
}

// Connected reports whether a live connection exists.
func (m *ConnectionManager) Connected() bool {
	_, ok := m.Current()
	return ok
}

// Disconnect tears down the connection if one exists.
func (m *ConnectionManager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != nil {
		if err := m.conn.Disconnect(); err != nil {
			log.Error().Err(err).Msg("voice: disconnect failed")
		}
		m.conn = nil
	}
}
