package discord

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/EolnMsuk/skipcord/internal/music"
)

// voiceConn adapts *discordgo.VoiceConnection to the narrow connection
// surface the playback engine works against.
type voiceConn struct {
	vc *discordgo.VoiceConnection
}

func (c *voiceConn) ChannelID() string {
	c.vc.RLock()
	defer c.vc.RUnlock()
	return c.vc.ChannelID
}

func (c *voiceConn) Connected() bool {
	c.vc.RLock()
	defer c.vc.RUnlock()
	return c.vc.Ready
}

func (c *voiceConn) Move(channelID string) error {
	return c.vc.ChangeChannel(channelID, false, true)
}

func (c *voiceConn) Disconnect() error {
	return c.vc.Disconnect()
}

func (c *voiceConn) Speaking(on bool) error {
	return c.vc.Speaking(on)
}

func (c *voiceConn) OpusSend() chan<- []byte {
	return c.vc.OpusSend
}

// voiceDialer establishes voice connections through the gateway session.
type voiceDialer struct {
	session *discordgo.Session
}

func (d *voiceDialer) Join(guildID, channelID string, timeout time.Duration) (music.Conn, error) {
	type result struct {
		vc  *discordgo.VoiceConnection
		err error
	}
	ch := make(chan result, 1)

	go func() {
		vc, err := d.session.ChannelVoiceJoin(guildID, channelID, false, true)
		ch <- result{vc, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		return &voiceConn{vc: r.vc}, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("voice join timed out after %s", timeout)
	}
}

func (d *voiceDialer) Existing(guildID string) (music.Conn, bool) {
	d.session.RLock()
	vc, ok := d.session.VoiceConnections[guildID]
	d.session.RUnlock()
	if !ok || vc == nil {
		return nil, false
	}
	return &voiceConn{vc: vc}, true
}
