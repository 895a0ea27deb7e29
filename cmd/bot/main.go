package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/EolnMsuk/skipcord/internal/config"
	"github.com/EolnMsuk/skipcord/internal/discord"
	"github.com/EolnMsuk/skipcord/internal/logging"
	"github.com/EolnMsuk/skipcord/internal/music"
	"github.com/EolnMsuk/skipcord/internal/music/extractor"
	"github.com/EolnMsuk/skipcord/internal/music/library"
	"github.com/EolnMsuk/skipcord/internal/omegle"
	"github.com/EolnMsuk/skipcord/internal/storage"
	"github.com/EolnMsuk/skipcord/internal/web"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		log.Fatal().Err(err).Msg("configuration error")
	}
	logging.Init(cfg.LogLevel, cfg.LogFile)
	log.Info().Msg("starting skipcord")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.New(cfg.StoragePath)
	if err != nil {
		log.Fatal().Err(err).Msg("storage init failed")
	}
	defer store.Close()

	browser := omegle.New(omegle.Options{
		VideoURL:      cfg.OmegleVideoURL,
		UserDataDir:   cfg.BrowserUserDataDir,
		Headless:      cfg.BrowserHeadless,
		ScreenshotDir: cfg.ScreenshotDir,
		SkipKeys:      cfg.SkipKeys,
	})
	if err := browser.Start(); err != nil {
		log.Fatal().Err(err).Msg("browser startup failed")
	}
	defer browser.Close()

	lib := library.New(cfg.MusicLocation, cfg.MusicFormats, cfg.MetadataCachePath)
	ext := extractor.New(cfg.YouTubeProxyURL)

	bot, err := discord.New(cfg, store, browser, lib, ext)
	if err != nil {
		log.Fatal().Err(err).Msg("bot init failed")
	}

	if err := bot.Open(); err != nil {
		log.Fatal().Err(err).Msg("gateway connect failed")
	}
	defer bot.Close()

	watchdog := music.NewWatchdog(bot.Engine(), bot.Presence(), bot.PresenceManager(), cfg.WatchdogInterval)
	go watchdog.Run(ctx)

	var statusServer *web.Server
	if cfg.WebListenAddr != "" {
		statusServer = web.New(cfg.WebListenAddr, bot.Engine(), browser)
		go statusServer.Run()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	log.Info().Str("signal", s.String()).Msg("shutting down")

	cancel()
	if statusServer != nil {
		statusServer.Shutdown()
	}
	if err := store.Save(); err != nil {
		log.Error().Err(err).Msg("final state flush failed")
	}
}
