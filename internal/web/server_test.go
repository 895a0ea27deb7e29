package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EolnMsuk/skipcord/internal/music"
)

type stubBrowser struct{ healthy bool }

func (s stubBrowser) Healthy() bool { return s.healthy }

func newTestServer(browser BrowserStatus) *Server {
	st := music.NewState(0.3, 1.0)
	conn := music.NewConnectionManager(nil, "g", "vc", time.Second)
	engine := music.NewEngine(st, conn, nil, nil, nil, music.Options{Enabled: true})
	return New("127.0.0.1:0", engine, browser)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(nil)

	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusReportsMusicAndBrowser(t *testing.T) {
	s := newTestServer(stubBrowser{healthy: true})

	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Music   music.Snapshot `json:"music"`
		Browser string         `json:"browser"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "online", body.Browser)
	assert.Equal(t, 0.3, body.Music.Volume)
	assert.False(t, body.Music.Playing)
}

func TestStatusWithoutBrowser(t *testing.T) {
	s := newTestServer(nil)

	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "offline")
}
