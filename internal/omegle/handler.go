// Package omegle drives the video chat site through a real browser.
// All page interaction funnels through a single mutex so concurrent
// commands cannot interleave keystrokes or trigger duplicate relaunches.
package omegle

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/rs/zerolog/log"
)

const (
	launchAttempts = 2
	launchDelay    = 5 * time.Second
	skipAttempts   = 3
)

// Options configure the browser session.
type Options struct {
	VideoURL      string
	UserDataDir   string
	Headless      bool
	ScreenshotDir string
	SkipKeys      []string
}

// Handler owns the Playwright runtime and the single page pointed at the
// chat site.
type Handler struct {
	opts Options

	mu  sync.Mutex
	pw  *playwright.Playwright
	ctx playwright.BrowserContext
	pg  playwright.Page
}

func New(opts Options) *Handler {
	return &Handler{opts: opts}
}

// Start launches the browser and navigates to the chat page. Launch
// failures are retried a limited number of times before giving up.
func (h *Handler) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.launchLocked()
}

func (h *Handler) launchLocked() error {
	var lastErr error
	for attempt := 1; attempt <= launchAttempts; attempt++ {
		if err := h.launchOnceLocked(); err != nil {
			lastErr = err
			log.Warn().Err(err).Int("attempt", attempt).Msg("omegle: browser launch failed")
			h.teardownLocked()
			time.Sleep(launchDelay)
			continue
		}
		log.Info().Str("url", h.opts.VideoURL).Msg("omegle: browser session ready")
		return nil
	}
	return fmt.Errorf("browser launch failed after %d attempts: %w", launchAttempts, lastErr)
}

func (h *Handler) launchOnceLocked() error {
	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("playwright run: %w", err)
	}
	h.pw = pw

	ctx, err := pw.Chromium.LaunchPersistentContext(h.opts.UserDataDir, playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: playwright.Bool(h.opts.Headless),
		Args: []string{
			"--no-sandbox",
			"--disable-blink-features=AutomationControlled",
			"--use-fake-ui-for-media-stream",
		},
		Viewport: &playwright.Size{Width: 1280, Height: 720},
		Locale:   playwright.String("en-US"),
	})
	if err != nil {
		return fmt.Errorf("launch persistent context: %w", err)
	}
	h.ctx = ctx

	pages := ctx.Pages()
	if len(pages) > 0 {
		h.pg = pages[0]
	} else {
		pg, err := ctx.NewPage()
		if err != nil {
			return fmt.Errorf("new page: %w", err)
		}
		h.pg = pg
	}

	if _, err := h.pg.Goto(h.opts.VideoURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(30000),
	}); err != nil {
		return fmt.Errorf("goto %s: %w", h.opts.VideoURL, err)
	}
	return nil
}

// healthyLocked probes the page with a trivial script. Any error means the
// browser is gone or hung.
func (h *Handler) healthyLocked() bool {
	if h.pg == nil {
		return false
	}
	result, err := h.pg.Evaluate("1 + 1")
	if err != nil {
		return false
	}
	n, ok := result.(int)
	return ok && n == 2
}

// ensureLocked relaunches the browser if the current session is dead.
func (h *Handler) ensureLocked() error {
	if h.healthyLocked() {
		return nil
	}
	log.Warn().Msg("omegle: browser session unhealthy, relaunching")
	h.teardownLocked()
	return h.launchLocked()
}

// Skip advances to the next stranger by dispatching the configured key
// sequence to the page.
func (h *Handler) Skip() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.ensureLocked(); err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= skipAttempts; attempt++ {
		lastErr = h.pressKeysLocked()
		if lastErr == nil {
			log.Info().Msg("omegle: skipped stranger")
			return nil
		}
		log.Warn().Err(lastErr).Int("attempt", attempt).Msg("omegle: skip failed")
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("skip failed after %d attempts: %w", skipAttempts, lastErr)
}

func (h *Handler) pressKeysLocked() error {
	for _, key := range h.opts.SkipKeys {
		if err := h.pg.Keyboard().Press(key); err != nil {
			return fmt.Errorf("press %q: %w", key, err)
		}
		time.Sleep(100 * time.Millisecond)
	}
	return nil
}

// Refresh reloads the chat page from scratch.
func (h *Handler) Refresh() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.ensureLocked(); err != nil {
		return err
	}

	if _, err := h.pg.Goto(h.opts.VideoURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(30000),
	}); err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	log.Info().Msg("omegle: page refreshed")
	return nil
}

// Report captures a timestamped screenshot of the current stranger and
// returns the saved file path.
func (h *Handler) Report() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.ensureLocked(); err != nil {
		return "", err
	}

	dir := h.opts.ScreenshotDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("screenshot dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("report_%s.png", time.Now().Format("20060102_150405")))
	if _, err := h.pg.Screenshot(playwright.PageScreenshotOptions{
		Path: playwright.String(path),
	}); err != nil {
		return "", fmt.Errorf("screenshot: %w", err)
	}
	log.Info().Str("path", path).Msg("omegle: report screenshot saved")
	return path, nil
}

// Healthy reports whether the browser session is alive.
func (h *Handler) Healthy() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.healthyLocked()
}

// Close shuts the browser down.
func (h *Handler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.teardownLocked()
}

func (h *Handler) teardownLocked() {
	if h.ctx != nil {
		h.ctx.Close()
		h.ctx = nil
		h.pg = nil
	}
	if h.pw != nil {
		h.pw.Stop()
		h.pw = nil
	}
}
