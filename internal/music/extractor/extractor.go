// Package extractor resolves stream page URLs to directly playable audio
// URLs via the YouTube API client.
package extractor

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	youtube "github.com/kkdai/youtube/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/proxy"
)

// Extractor wraps a youtube client. Safe for concurrent use.
type Extractor struct {
	client *youtube.Client
}

// New builds an extractor, optionally routed through an HTTP or SOCKS5
// proxy. A bad proxy URL degrades to a direct client rather than failing
// startup.
func New(proxyURL string) *Extractor {
	return &Extractor{client: newClient(proxyURL)}
}

func newClient(proxyStr string) *youtube.Client {
	httpClient := &http.Client{Timeout: 30 * time.Second}

	if proxyStr != "" {
		if transport := proxyTransport(proxyStr); transport != nil {
			httpClient.Transport = transport
			log.Info().Str("proxy", proxyStr).Msg("extractor: routing through proxy")
		}
	}

	return &youtube.Client{HTTPClient: httpClient}
}

func proxyTransport(proxyStr string) *http.Transport {
	proxyURL, err := url.Parse(proxyStr)
	if err != nil {
		log.Warn().Err(err).Msg("extractor: invalid proxy url, using direct connection")
		return nil
	}

	switch proxyURL.Scheme {
	case "http", "https":
		return &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	case "socks5":
		auth := &proxy.Auth{}
		if proxyURL.User != nil {
			auth.User = proxyURL.User.Username()
			if pass, ok := proxyURL.User.Password(); ok {
				auth.Password = pass
			}
		}
		dialer, err := proxy.SOCKS5("tcp", proxyURL.Host, auth, &net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 10 * time.Second,
		})
		if err != nil {
			log.Warn().Err(err).Msg("extractor: socks5 dialer error, using direct connection")
			return nil
		}
		return &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			},
		}
	default:
		log.Warn().Str("scheme", proxyURL.Scheme).Msg("extractor: unsupported proxy scheme, using direct connection")
		return nil
	}
}

// Resolve turns a video page URL into a playable audio stream URL plus the
// video's title.
func (e *Extractor) Resolve(ctx context.Context, pageURL string) (streamURL, title string, err error) {
	video, err := e.client.GetVideoContext(ctx, pageURL)
	if err != nil {
		return "", "", fmt.Errorf("video lookup: %w", err)
	}

	format := bestAudioFormat(video.Formats)
	if format == nil {
		return "", "", fmt.Errorf("no audio format available for %q", video.Title)
	}

	streamURL, err = e.client.GetStreamURLContext(ctx, video, format)
	if err != nil {
		return "", "", fmt.Errorf("stream url: %w", err)
	}
	return streamURL, video.Title, nil
}

// ResolvePlaylist expands a playlist page into its entries' page URLs and
// titles. Entries that fail to load are skipped.
func (e *Extractor) ResolvePlaylist(ctx context.Context, pageURL string) (urls, titles []string, err error) {
	playlist, err := e.client.GetPlaylistContext(ctx, pageURL)
	if err != nil {
		return nil, nil, fmt.Errorf("playlist lookup: %w", err)
	}

	for _, entry := range playlist.Videos {
		if entry == nil || entry.ID == "" {
			continue
		}
		urls = append(urls, "https://www.youtube.com/watch?v="+entry.ID)
		titles = append(titles, entry.Title)
	}
	if len(urls) == 0 {
		return nil, nil, fmt.Errorf("playlist %q has no playable entries", playlist.Title)
	}
	return urls, titles, nil
}

// IsPlaylistURL reports whether a URL points at a playlist rather than a
// single video.
func IsPlaylistURL(pageURL string) bool {
	u, err := url.Parse(pageURL)
	if err != nil {
		return false
	}
	return u.Query().Get("list") != "" && u.Query().Get("v") == ""
}

// bestAudioFormat prefers audio-only formats, highest bitrate first, and
// falls back to any format carrying audio.
func bestAudioFormat(formats youtube.FormatList) *youtube.Format {
	audio := formats.WithAudioChannels()
	if len(audio) == 0 {
		return nil
	}

	sort.SliceStable(audio, func(i, j int) bool {
		iOnly := strings.HasPrefix(audio[i].MimeType, "audio/")
		jOnly := strings.HasPrefix(audio[j].MimeType, "audio/")
		if iOnly != jOnly {
			return iOnly
		}
		return audio[i].Bitrate > audio[j].Bitrate
	})
	return &audio[0]
}
