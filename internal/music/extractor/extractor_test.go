package extractor

import (
	"testing"

	youtube "github.com/kkdai/youtube/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPlaylistURL(t *testing.T) {
	assert.True(t, IsPlaylistURL("https://www.youtube.com/playlist?list=PL123"))
	assert.False(t, IsPlaylistURL("https://www.youtube.com/watch?v=abc"))
	assert.False(t, IsPlaylistURL("https://www.youtube.com/watch?v=abc&list=PL123"), "video link inside a playlist plays the single video")
	assert.False(t, IsPlaylistURL("://bad"))
}

func TestBestAudioFormatPrefersAudioOnly(t *testing.T) {
	formats := youtube.FormatList{
		{MimeType: "video/mp4", Bitrate: 900000, AudioChannels: 2},
		{MimeType: "audio/webm; codecs=\"opus\"", Bitrate: 128000, AudioChannels: 2},
		{MimeType: "audio/mp4", Bitrate: 64000, AudioChannels: 2},
		{MimeType: "video/webm", Bitrate: 500000, AudioChannels: 0},
	}

	best := bestAudioFormat(formats)
	require.NotNil(t, best)
	assert.Equal(t, 128000, best.Bitrate, "highest-bitrate audio-only format wins over video muxes")
}

func TestBestAudioFormatNoAudio(t *testing.T) {
	formats := youtube.FormatList{
		{MimeType: "video/webm", Bitrate: 500000, AudioChannels: 0},
	}
	assert.Nil(t, bestAudioFormat(formats))
}

func TestNewWithBadProxyDegradesToDirect(t *testing.T) {
	e := New("::/not-a-url")
	require.NotNil(t, e)
	assert.Nil(t, e.client.HTTPClient.Transport, "bad proxy must fall back to a direct client")
}
