// Package web serves a small read-only status API.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/EolnMsuk/skipcord/internal/music"
)

// BrowserStatus answers whether the automation browser is alive.
type BrowserStatus interface {
	Healthy() bool
}

// Server exposes playback and browser state over HTTP.
type Server struct {
	engine  *music.Engine
	browser BrowserStatus
	srv     *http.Server
}

func New(addr string, engine *music.Engine, browser BrowserStatus) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{engine: engine, browser: browser}
	router.GET("/healthz", s.handleHealthz)
	router.GET("/status", s.handleStatus)

	s.srv = &http.Server{Addr: addr, Handler: router}
	return s
}

// Run blocks serving HTTP until Shutdown is called.
func (s *Server) Run() {
	log.Info().Str("addr", s.srv.Addr).Msg("web: status server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("web: server stopped")
	}
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("web: shutdown failed")
	}
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	snap := s.engine.Snapshot()
	browser := "offline"
	if s.browser != nil && s.browser.Healthy() {
		browser = "online"
	}
	c.JSON(http.StatusOK, gin.H{
		"music":   snap,
		"browser": browser,
	})
}
