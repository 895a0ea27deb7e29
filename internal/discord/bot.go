// Package discord wires the gateway session to the automation features:
// prefix commands, camera enforcement and music presence tracking.
package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/EolnMsuk/skipcord/internal/config"
	"github.com/EolnMsuk/skipcord/internal/music"
	"github.com/EolnMsuk/skipcord/internal/music/extractor"
	"github.com/EolnMsuk/skipcord/internal/omegle"
	"github.com/EolnMsuk/skipcord/internal/storage"
)

// Bot owns the Discord session and every handler attached to it.
type Bot struct {
	cfg     *config.Config
	session *discordgo.Session
	store   *storage.Storage

	engine    *music.Engine
	extractor *extractor.Extractor
	manager   *music.PresenceManager
	presence  *presenceSource
	mod       *moderator
	omegle    *omegle.Handler

	omegleLimiter *rate.Limiter
}

// New builds the session and the full music stack around it. The session
// is not opened yet; call Open after wiring is complete.
func New(cfg *config.Config, store *storage.Storage, browser *omegle.Handler, lib music.Library, ext *extractor.Extractor) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsMessageContent
	session.ShouldReconnectOnError = true

	presence := newPresenceSource(session, cfg)

	state := music.NewState(cfg.MusicVolume, cfg.MusicMaxVolume)
	connMgr := music.NewConnectionManager(&voiceDialer{session: session}, cfg.GuildID, cfg.StreamingVCID, cfg.VoiceConnectTimeout)
	engine := music.NewEngine(state, connMgr, lib, ext, &notifier{session: session}, music.Options{
		Enabled:         cfg.MusicEnabled,
		Normalize:       cfg.NormalizeLocalMusic,
		AnnounceTracks:  cfg.AnnounceTracks,
		AnnounceChannel: cfg.CommandChannelID,
	})
	if saved, ok := store.LoadMusic(); ok {
		engine.Restore(saved)
		log.Info().Msg("bot: restored persisted music state")
	}

	b := &Bot{
		cfg:           cfg,
		session:       session,
		store:         store,
		engine:        engine,
		extractor:     ext,
		manager:       music.NewPresenceManager(engine, presence),
		presence:      presence,
		omegle:        browser,
		omegleLimiter: rate.NewLimiter(rate.Every(cfg.CommandCooldown), 1),
	}
	b.mod = newModerator(session, cfg, store, presence)

	session.AddHandler(b.onReady)
	session.AddHandler(b.onMessageCreate)
	session.AddHandler(b.onVoiceStateUpdate)

	return b, nil
}

// Engine exposes the playback engine for the watchdog and the web server.
func (b *Bot) Engine() *music.Engine { return b.engine }

// Presence exposes the listener source for the watchdog.
func (b *Bot) Presence() music.PresenceSource { return b.presence }

// PresenceManager exposes the reconciler for the watchdog.
func (b *Bot) PresenceManager() *music.PresenceManager { return b.manager }

// Open connects to the gateway.
func (b *Bot) Open() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	return nil
}

// Close persists music state, stops playback and disconnects.
func (b *Bot) Close() {
	b.mod.stop()

	if err := b.store.SaveMusic(b.engine.Export()); err != nil {
		log.Error().Err(err).Msg("bot: failed to persist music state")
	}
	b.engine.LeaveVoice()

	if err := b.session.Close(); err != nil {
		log.Error().Err(err).Msg("bot: session close failed")
	}
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	log.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("bot: gateway session ready")

	// Reconcile once at startup: listeners may already be in the channel.
	b.manager.Reconcile()
}

func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, e *discordgo.VoiceStateUpdate) {
	if e.GuildID != b.cfg.GuildID {
		return
	}

	b.mod.observe(e.VoiceState)
	b.manager.Reconcile()
}

// isAdmin reports whether the author may use privileged commands: either
// on the owner allowlist or carrying one of the configured admin roles.
func (b *Bot) isAdmin(m *discordgo.MessageCreate) bool {
	if b.cfg.IsAllowedUser(m.Author.ID) {
		return true
	}
	if m.Member == nil {
		return false
	}
	for _, roleID := range m.Member.Roles {
		role, err := b.session.State.Role(b.cfg.GuildID, roleID)
		if err != nil {
			continue
		}
		for _, name := range b.cfg.AdminRoleNames {
			if role.Name == name {
				return true
			}
		}
	}
	return false
}

// inStreamingVC reports whether the author currently sits in the streaming
// channel, which is the bar for controlling the browser.
func (b *Bot) inStreamingVC(userID string) bool {
	vs, err := b.session.State.VoiceState(b.cfg.GuildID, userID)
	return err == nil && vs != nil && vs.ChannelID == b.cfg.StreamingVCID
}

func (b *Bot) reply(channelID, text string) {
	if _, err := b.session.ChannelMessageSend(channelID, text); err != nil {
		log.Warn().Err(err).Msg("bot: reply failed")
	}
}
