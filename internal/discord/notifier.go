package discord

import (
	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

// notifier delivers chat messages and the "Listening to ..." status.
// Delivery is best-effort: a failed send is logged and dropped so playback
// decisions never stall on the Discord API.
type notifier struct {
	session *discordgo.Session
}

func (n *notifier) Announce(channelID, text string) {
	if channelID == "" {
		return
	}
	if _, err := n.session.ChannelMessageSend(channelID, text); err != nil {
		log.Warn().Err(err).Str("channel", channelID).Msg("notify: message send failed")
	}
}

func (n *notifier) SetListeningStatus(title string) {
	if err := n.session.UpdateListeningStatus(title); err != nil {
		log.Warn().Err(err).Msg("notify: status update failed")
	}
}
