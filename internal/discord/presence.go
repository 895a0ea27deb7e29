package discord

import (
	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"github.com/EolnMsuk/skipcord/internal/config"
)

// presenceSource reads the guild's cached voice states to answer the one
// question the music engine asks: who is in the streaming channel with a
// camera on. Bots and allowlisted owners never count as listeners.
type presenceSource struct {
	session *discordgo.Session
	cfg     *config.Config
}

func newPresenceSource(session *discordgo.Session, cfg *config.Config) *presenceSource {
	return &presenceSource{session: session, cfg: cfg}
}

func (p *presenceSource) ListenersWithCameraOn() []string {
	guild, err := p.session.State.Guild(p.cfg.GuildID)
	if err != nil {
		log.Warn().Err(err).Msg("presence: guild not in state cache")
		return nil
	}

	var ids []string
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID != p.cfg.StreamingVCID || !vs.SelfVideo {
			continue
		}
		if p.cfg.IsAllowedUser(vs.UserID) || p.isBot(vs.UserID) {
			continue
		}
		ids = append(ids, vs.UserID)
	}
	return ids
}

func (p *presenceSource) isBot(userID string) bool {
	member, err := p.session.State.Member(p.cfg.GuildID, userID)
	if err != nil || member.User == nil {
		return false
	}
	return member.User.Bot
}
