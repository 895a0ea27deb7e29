package discord

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"github.com/EolnMsuk/skipcord/internal/music"
	"github.com/EolnMsuk/skipcord/internal/music/extractor"
	"github.com/EolnMsuk/skipcord/internal/storage"
)

const commandPrefix = "!"

const helpText = "**Stranger cam:** `!skip` `!refresh` `!report`\n" +
	"**Music:** `!mplay` `!mskip` `!mpause` `!volume <0-100>` `!mq <url|path> [next]` `!mnow` `!mqueue` `!mclear [stop]`\n" +
	"**Modes:** `!mshuffle` `!malpha` `!mloop` `!mfifo`\n" +
	"**Playlists:** `!msave <name>` `!mload <name>`"

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID != b.cfg.GuildID {
		return
	}
	if m.ChannelID != b.cfg.CommandChannelID {
		return
	}
	if !strings.HasPrefix(m.Content, commandPrefix) {
		return
	}

	fields := strings.Fields(strings.TrimPrefix(m.Content, commandPrefix))
	if len(fields) == 0 {
		return
	}
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	log.Info().Str("command", cmd).Str("user", m.Author.Username).Msg("bot: command received")
	if err := b.store.AppendCommandToHistory(storage.CommandRecord{
		UserID:   m.Author.ID,
		Username: m.Author.Username,
		Command:  cmd,
		Param:    strings.Join(args, " "),
		Datetime: time.Now(),
	}); err != nil {
		log.Warn().Err(err).Msg("bot: command history write failed")
	}

	switch cmd {
	case "help":
		b.reply(m.ChannelID, helpText)
	case "info":
		b.handleInfo(m)
	case "skip", "refresh", "report":
		b.handleOmegle(m, cmd)
	case "mplay":
		b.engine.Start()
	case "mskip":
		if err := b.engine.Skip(); err != nil {
			b.reply(m.ChannelID, "Nothing is playing.")
		}
	case "mpause":
		b.handlePause(m)
	case "volume":
		b.handleVolume(m, args)
	case "mshuffle":
		b.engine.SetMode(music.ModeShuffle)
		b.reply(m.ChannelID, "🔀 Shuffle mode.")
	case "malpha":
		b.engine.SetMode(music.ModeAlphabetical)
		b.reply(m.ChannelID, "🔤 Alphabetical mode.")
	case "mloop":
		b.engine.SetMode(music.ModeLoop)
		b.reply(m.ChannelID, "🔁 Loop mode.")
	case "mfifo":
		b.engine.SetMode(music.ModeFIFO)
		b.reply(m.ChannelID, "➡️ FIFO mode.")
	case "mq":
		b.handleQueue(m, args)
	case "mclear":
		b.handleClear(m, args)
	case "msave":
		b.handleSavePlaylist(m, args)
	case "mload":
		b.handleLoadPlaylist(m, args)
	case "mnow":
		b.handleNowPlaying(m)
	case "mqueue":
		b.handleQueueList(m)
	}
}

// handleOmegle drives the browser. Requires the caller to be in the
// streaming channel and respects the shared cooldown.
func (b *Bot) handleOmegle(m *discordgo.MessageCreate, cmd string) {
	if !b.inStreamingVC(m.Author.ID) && !b.isAdmin(m) {
		b.reply(m.ChannelID, "Join the streaming channel to control the stream.")
		return
	}
	if !b.omegleLimiter.Allow() {
		b.reply(m.ChannelID, "⏳ Slow down, cooldown active.")
		return
	}

	var err error
	switch cmd {
	case "skip":
		err = b.omegle.Skip()
	case "refresh":
		err = b.omegle.Refresh()
	case "report":
		var path string
		if path, err = b.omegle.Report(); err == nil {
			b.reply(m.ChannelID, "📸 Stranger reported, screenshot saved: "+path)
			return
		}
	}

	if err != nil {
		log.Error().Err(err).Str("command", cmd).Msg("bot: browser command failed")
		b.reply(m.ChannelID, "❌ Browser action failed, try `!refresh`.")
	}
}

func (b *Bot) handlePause(m *discordgo.MessageCreate) {
	paused, err := b.engine.TogglePause()
	if err != nil {
		b.reply(m.ChannelID, "Nothing is playing.")
		return
	}
	if paused {
		b.reply(m.ChannelID, "⏸️ Paused.")
	} else {
		b.reply(m.ChannelID, "▶️ Resumed.")
	}
}

func (b *Bot) handleVolume(m *discordgo.MessageCreate, args []string) {
	if len(args) == 0 {
		snap := b.engine.Snapshot()
		b.reply(m.ChannelID, fmt.Sprintf("🔊 Volume: %.2f (max %.2f)", snap.Volume, snap.MaxVolume))
		return
	}

	level, err := strconv.ParseFloat(strings.TrimSuffix(args[0], "%"), 64)
	if err != nil {
		b.reply(m.ChannelID, "Usage: `!volume 0.5` or `!volume 50`")
		return
	}
	if level > 1 {
		// Percent input.
		level /= 100
	}
	applied := b.engine.SetVolume(level)
	b.reply(m.ChannelID, fmt.Sprintf("🔊 Volume set to %.2f", applied))
}

// handleQueue enqueues a stream URL or a local file path, expanding
// playlists. A trailing "next" makes the track jump the selection order
// once.
func (b *Bot) handleQueue(m *discordgo.MessageCreate, args []string) {
	if len(args) == 0 {
		b.reply(m.ChannelID, "Usage: `!mq <url|path> [next]`")
		return
	}
	url := args[0]
	playNext := len(args) > 1 && strings.EqualFold(args[1], "next")

	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		if b.engine.InQueue(url) {
			b.reply(m.ChannelID, "Already queued.")
			return
		}
		title := strings.TrimSuffix(filepath.Base(url), filepath.Ext(url))
		b.engine.Enqueue(music.Track{ID: url, Title: title, Origin: m.ChannelID}, playNext)
		b.reply(m.ChannelID, "➕ Queued.")
		b.engine.Start()
		return
	}

	if extractor.IsPlaylistURL(url) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		urls, titles, err := b.extractor.ResolvePlaylist(ctx, url)
		cancel()
		if err != nil {
			log.Error().Err(err).Str("url", url).Msg("bot: playlist resolution failed")
			b.reply(m.ChannelID, "❌ Could not read that playlist.")
			return
		}

		added := 0
		for i, entry := range urls {
			if b.engine.InQueue(entry) {
				continue
			}
			b.engine.Enqueue(music.Track{ID: entry, Title: titles[i], IsStream: true, Origin: m.ChannelID}, false)
			added++
		}
		b.reply(m.ChannelID, fmt.Sprintf("➕ Queued %d tracks from the playlist.", added))
	} else {
		if b.engine.InQueue(url) {
			b.reply(m.ChannelID, "Already queued.")
			return
		}
		b.engine.Enqueue(music.Track{ID: url, Title: url, IsStream: true, Origin: m.ChannelID}, playNext)
		b.reply(m.ChannelID, "➕ Queued.")
	}

	b.engine.Start()
}

func (b *Bot) handleClear(m *discordgo.MessageCreate, args []string) {
	if !b.isAdmin(m) {
		b.reply(m.ChannelID, "Admins only.")
		return
	}
	stopCurrent := len(args) > 0 && strings.EqualFold(args[0], "stop")
	b.engine.Clear(stopCurrent)
	b.reply(m.ChannelID, "🧹 Queue cleared.")
}

func (b *Bot) handleSavePlaylist(m *discordgo.MessageCreate, args []string) {
	if len(args) == 0 {
		b.reply(m.ChannelID, "Usage: `!msave <name>`")
		return
	}
	count, err := b.engine.SavePlaylist(args[0])
	if err != nil {
		b.reply(m.ChannelID, "❌ "+err.Error())
		return
	}
	b.reply(m.ChannelID, fmt.Sprintf("💾 Saved **%s** (%d tracks).", args[0], count))
}

func (b *Bot) handleLoadPlaylist(m *discordgo.MessageCreate, args []string) {
	if len(args) == 0 {
		names := b.engine.Playlists()
		if len(names) == 0 {
			b.reply(m.ChannelID, "No saved playlists.")
			return
		}
		b.reply(m.ChannelID, "Saved playlists: "+strings.Join(names, ", "))
		return
	}
	count, err := b.engine.LoadPlaylist(args[0])
	if err != nil {
		b.reply(m.ChannelID, "❌ No playlist named **"+args[0]+"**.")
		return
	}
	b.reply(m.ChannelID, fmt.Sprintf("📂 Loaded **%s** (%d tracks).", args[0], count))
	b.engine.Start()
}

func (b *Bot) handleNowPlaying(m *discordgo.MessageCreate) {
	snap := b.engine.Snapshot()
	switch {
	case snap.CurrentTitle == "":
		b.reply(m.ChannelID, "Nothing is playing.")
	case snap.Paused:
		b.reply(m.ChannelID, "⏸️ Paused: **"+snap.CurrentTitle+"**")
	default:
		b.reply(m.ChannelID, "🎵 Now Playing: **"+snap.CurrentTitle+"**")
	}
}

func (b *Bot) handleQueueList(m *discordgo.MessageCreate) {
	titles := b.engine.QueueTitles(10)
	if len(titles) == 0 {
		b.reply(m.ChannelID, "The queue is empty.")
		return
	}

	var sb strings.Builder
	sb.WriteString("**Up next:**\n")
	for i, title := range titles {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, title)
	}
	b.reply(m.ChannelID, sb.String())
}

func (b *Bot) handleInfo(m *discordgo.MessageCreate) {
	if !b.isAdmin(m) {
		b.reply(m.ChannelID, "Admins only.")
		return
	}

	history, err := b.store.CommandHistory()
	if err != nil || len(history) == 0 {
		b.reply(m.ChannelID, "No command history.")
		return
	}

	start := len(history) - 10
	if start < 0 {
		start = 0
	}
	var sb strings.Builder
	sb.WriteString("**Recent commands:**\n")
	for _, rec := range history[start:] {
		fmt.Fprintf(&sb, "`%s` %s — %s %s\n", rec.Datetime.Format("15:04:05"), rec.Username, rec.Command, rec.Param)
	}
	b.reply(m.ChannelID, sb.String())
}
