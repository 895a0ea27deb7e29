package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("GUILD_ID", "1")
	t.Setenv("COMMAND_CHANNEL_ID", "2")
	t.Setenv("STREAMING_VC_ID", "3")
}

func TestNewAppliesDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "https://uhmegle.com/video", cfg.OmegleVideoURL)
	assert.Equal(t, []string{"Escape", "Escape"}, cfg.SkipKeys)
	assert.Equal(t, 0.2, cfg.MusicVolume)
	assert.Equal(t, 1.0, cfg.MusicMaxVolume)
	assert.Contains(t, cfg.MusicFormats, ".mp3")
	assert.True(t, cfg.MusicEnabled)
}

func TestNewRejectsBadVolume(t *testing.T) {
	setRequired(t)
	t.Setenv("MUSIC_VOLUME", "2.0")
	t.Setenv("MUSIC_MAX_VOLUME", "1.0")

	_, err := New()
	assert.Error(t, err)
}

func TestFormatsGetDotPrefix(t *testing.T) {
	setRequired(t)
	t.Setenv("MUSIC_SUPPORTED_FORMATS", "mp3,.flac")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, []string{".mp3", ".flac"}, cfg.MusicFormats)
}

func TestIsAllowedUser(t *testing.T) {
	setRequired(t)
	t.Setenv("ALLOWED_USERS", "10,20")

	cfg, err := New()
	require.NoError(t, err)
	assert.True(t, cfg.IsAllowedUser("10"))
	assert.False(t, cfg.IsAllowedUser("30"))
}
