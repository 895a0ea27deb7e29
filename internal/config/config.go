package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds every runtime knob. Values come from the environment,
// optionally seeded from a .env file in the working directory.
type Config struct {
	DiscordToken     string   `env:"DISCORD_TOKEN,required"`
	GuildID          string   `env:"GUILD_ID,required"`
	CommandChannelID string   `env:"COMMAND_CHANNEL_ID,required"`
	ChatChannelID    string   `env:"CHAT_CHANNEL_ID"`
	StreamingVCID    string   `env:"STREAMING_VC_ID,required"`
	PunishmentVCID   string   `env:"PUNISHMENT_VC_ID"`
	AllowedUserIDs   []string `env:"ALLOWED_USERS" envSeparator:","`
	AdminRoleNames   []string `env:"ADMIN_ROLE_NAMES" envSeparator:"," envDefault:"Admin,Moderator"`

	CommandCooldown time.Duration `env:"COMMAND_COOLDOWN" envDefault:"5s"`

	// Browser automation.
	OmegleVideoURL     string   `env:"OMEGLE_VIDEO_URL" envDefault:"https://uhmegle.com/video"`
	ScreenshotDir      string   `env:"SCREENSHOT_DIR" envDefault:"screenshots"`
	SkipKeys           []string `env:"SKIP_COMMAND_KEYS" envSeparator:"," envDefault:"Escape,Escape"`
	BrowserUserDataDir string   `env:"BROWSER_USER_DATA_DIR"`
	BrowserHeadless    bool     `env:"BROWSER_HEADLESS" envDefault:"false"`

	// Music engine.
	MusicEnabled        bool          `env:"MUSIC_ENABLED" envDefault:"true"`
	MusicLocation       string        `env:"MUSIC_LOCATION"`
	MusicFormats        []string      `env:"MUSIC_SUPPORTED_FORMATS" envSeparator:"," envDefault:".mp3,.flac,.wav,.ogg,.m4a"`
	MusicVolume         float64       `env:"MUSIC_VOLUME" envDefault:"0.2"`
	MusicMaxVolume      float64       `env:"MUSIC_MAX_VOLUME" envDefault:"1.0"`
	NormalizeLocalMusic bool          `env:"NORMALIZE_LOCAL_MUSIC" envDefault:"false"`
	AnnounceTracks      bool          `env:"ANNOUNCE_TRACKS" envDefault:"false"`
	WatchdogInterval    time.Duration `env:"WATCHDOG_INTERVAL" envDefault:"15s"`
	VoiceConnectTimeout time.Duration `env:"VOICE_CONNECT_TIMEOUT" envDefault:"60s"`
	YouTubeProxyURL     string        `env:"YOUTUBE_PROXY_URL"`

	// Camera enforcement in the streaming VC.
	CameraGracePeriod      time.Duration `env:"CAMERA_GRACE_PERIOD" envDefault:"30s"`
	SecondViolationTimeout time.Duration `env:"SECOND_VIOLATION_TIMEOUT" envDefault:"1m"`
	ThirdViolationTimeout  time.Duration `env:"THIRD_VIOLATION_TIMEOUT" envDefault:"5m"`

	StoragePath       string `env:"STORAGE_PATH" envDefault:"datastore.json"`
	MetadataCachePath string `env:"METADATA_CACHE_PATH" envDefault:"music_metadata.json"`

	WebListenAddr string `env:"WEB_LISTEN_ADDR"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE"`
}

// New loads the configuration from .env and the process environment.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("no .env file found, using system environment variables")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.MusicMaxVolume <= 0 {
		return fmt.Errorf("MUSIC_MAX_VOLUME must be positive, got %v", c.MusicMaxVolume)
	}
	if c.MusicVolume < 0 || c.MusicVolume > c.MusicMaxVolume {
		return fmt.Errorf("MUSIC_VOLUME %v outside [0, %v]", c.MusicVolume, c.MusicMaxVolume)
	}
	if c.WatchdogInterval <= 0 {
		return fmt.Errorf("WATCHDOG_INTERVAL must be positive")
	}
	for i, f := range c.MusicFormats {
		if !strings.HasPrefix(f, ".") {
			c.MusicFormats[i] = "." + f
		}
	}
	return nil
}

// IsAllowedUser reports whether the given user ID is in the owner allowlist.
func (c *Config) IsAllowedUser(userID string) bool {
	for _, id := range c.AllowedUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}
