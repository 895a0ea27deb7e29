package discord

import (
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"github.com/EolnMsuk/skipcord/internal/config"
	"github.com/EolnMsuk/skipcord/internal/storage"
)

// moderator enforces the camera rule in the streaming channel. A member
// without a camera gets one grace period per stay; after it expires the
// violation ladder escalates: move to the punishment channel, then timed
// communication timeouts of increasing length.
type moderator struct {
	session  *discordgo.Session
	cfg      *config.Config
	store    *storage.Storage
	presence *presenceSource

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func newModerator(session *discordgo.Session, cfg *config.Config, store *storage.Storage, presence *presenceSource) *moderator {
	return &moderator{
		session:  session,
		cfg:      cfg,
		store:    store,
		presence: presence,
		timers:   make(map[string]*time.Timer),
	}
}

// observe reacts to one voice state change for a single user.
func (m *moderator) observe(vs *discordgo.VoiceState) {
	if vs == nil || m.cfg.IsAllowedUser(vs.UserID) || m.presence.isBot(vs.UserID) {
		return
	}

	inStreamingVC := vs.ChannelID == m.cfg.StreamingVCID

	if !inStreamingVC || vs.SelfVideo {
		m.cancelGrace(vs.UserID)
		return
	}

	m.startGrace(vs.UserID)
}

func (m *moderator) startGrace(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, running := m.timers[userID]; running {
		return
	}

	log.Info().Str("user", userID).Dur("grace", m.cfg.CameraGracePeriod).Msg("moderation: camera off, grace period started")
	m.timers[userID] = time.AfterFunc(m.cfg.CameraGracePeriod, func() {
		m.mu.Lock()
		delete(m.timers, userID)
		m.mu.Unlock()
		m.enforce(userID)
	})
}

func (m *moderator) cancelGrace(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.timers[userID]; ok {
		t.Stop()
		delete(m.timers, userID)
	}
}

// enforce fires when a grace period expires. It re-checks the live voice
// state first; the user may have fixed the camera or left already.
func (m *moderator) enforce(userID string) {
	vs, err := m.session.State.VoiceState(m.cfg.GuildID, userID)
	if err != nil || vs == nil || vs.ChannelID != m.cfg.StreamingVCID || vs.SelfVideo {
		return
	}

	count := m.store.IncrementViolation(userID)
	log.Warn().Str("user", userID).Int("violations", count).Msg("moderation: camera rule violated")

	switch {
	case count <= 1:
		m.moveToPunishment(userID)
		m.announce("<@" + userID + "> moved out: camera required in the streaming channel.")
	case count == 2:
		m.timeout(userID, m.cfg.SecondViolationTimeout)
		m.announce("<@" + userID + "> timed out for repeat camera violations.")
	default:
		m.timeout(userID, m.cfg.ThirdViolationTimeout)
		m.announce("<@" + userID + "> timed out again for camera violations.")
	}
}

func (m *moderator) moveToPunishment(userID string) {
	target := m.cfg.PunishmentVCID
	if target == "" {
		// No punishment channel configured: disconnect instead.
		if err := m.session.GuildMemberMove(m.cfg.GuildID, userID, nil); err != nil {
			log.Error().Err(err).Str("user", userID).Msg("moderation: voice disconnect failed")
		}
		return
	}
	if err := m.session.GuildMemberMove(m.cfg.GuildID, userID, &target); err != nil {
		log.Error().Err(err).Str("user", userID).Msg("moderation: move to punishment channel failed")
	}
}

func (m *moderator) timeout(userID string, d time.Duration) {
	m.moveToPunishment(userID)
	until := time.Now().Add(d)
	if err := m.session.GuildMemberTimeout(m.cfg.GuildID, userID, &until); err != nil {
		log.Error().Err(err).Str("user", userID).Msg("moderation: member timeout failed")
	}
}

func (m *moderator) announce(text string) {
	channel := m.cfg.ChatChannelID
	if channel == "" {
		channel = m.cfg.CommandChannelID
	}
	if _, err := m.session.ChannelMessageSend(channel, text); err != nil {
		log.Warn().Err(err).Msg("moderation: announcement failed")
	}
}

// stop cancels all pending grace timers.
func (m *moderator) stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.timers {
		t.Stop()
		delete(m.timers, id)
	}
}
