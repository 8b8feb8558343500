package qbt_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/mpereira/qbt_monitor/internal/monitor"
	"github.com/mpereira/qbt_monitor/internal/qbt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWebUI is a minimal qBittorrent WebUI v2 stand-in. It issues a SID
// cookie on login and rejects every API call that does not replay it.
type fakeWebUI struct {
	username string
	password string
	sid      string

	torrentsBody   string
	transferBody   string
	speedMode      string
	toggleCalls    atomic.Int64
	pauseCalls     atomic.Int64
	resumeCalls    atomic.Int64
	expireSessions atomic.Bool
}

func newFakeWebUI() *fakeWebUI {
	return &fakeWebUI{
		username:     "admin",
		password:     "adminadmin",
		sid:          "test-session",
		torrentsBody: "[]",
		transferBody: `{"dl_info_speed":0,"up_info_speed":0,"dl_rate_limit":0,"up_rate_limit":0}`,
		speedMode:    "0",
	}
}

func (f *fakeWebUI) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v2/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("username") != f.username || r.FormValue("password") != f.password {
			w.Write([]byte("Fails."))

			return
		}

		f.expireSessions.Store(false)
		http.SetCookie(w, &http.Cookie{Name: "SID", Value: f.sid})
		w.Write([]byte("Ok."))
	})

	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie("SID")
			if err != nil || cookie.Value != f.sid || f.expireSessions.Load() {
				w.WriteHeader(http.StatusForbidden)

				return
			}

			next(w, r)
		}
	}

	mux.HandleFunc("/api/v2/torrents/info", authed(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(f.torrentsBody))
	}))
	mux.HandleFunc("/api/v2/transfer/info", authed(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(f.transferBody))
	}))
	mux.HandleFunc("/api/v2/transfer/speedLimitsMode", authed(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(f.speedMode))
	}))
	mux.HandleFunc("/api/v2/transfer/toggleSpeedLimitsMode", authed(func(w http.ResponseWriter, r *http.Request) {
		f.toggleCalls.Add(1)

		if f.speedMode == "1" {
			f.speedMode = "0"
		} else {
			f.speedMode = "1"
		}
	}))
	mux.HandleFunc("/api/v2/torrents/pause", authed(func(w http.ResponseWriter, r *http.Request) {
		f.pauseCalls.Add(1)
	}))
	mux.HandleFunc("/api/v2/torrents/resume", authed(func(w http.ResponseWriter, r *http.Request) {
		f.resumeCalls.Add(1)
	}))

	return mux
}

func loginClient(t *testing.T, fake *fakeWebUI) (*qbt.Client, *httptest.Server) {
	t.Helper()

	ts := httptest.NewServer(fake.handler())
	t.Cleanup(ts.Close)

	client := qbt.NewClient(ts.URL, fake.username, fake.password)
	require.NoError(t, client.Login(context.Background()))

	return client, ts
}

func TestLogin(t *testing.T) {
	fake := newFakeWebUI()
	ts := httptest.NewServer(fake.handler())
	defer ts.Close()

	t.Run("valid credentials", func(t *testing.T) {
		client := qbt.NewClient(ts.URL, "admin", "adminadmin")
		assert.NoError(t, client.Login(context.Background()))
	})

	t.Run("rejected credentials", func(t *testing.T) {
		client := qbt.NewClient(ts.URL, "admin", "wrong")
		err := client.Login(context.Background())

		var authErr *monitor.AuthError

		require.Error(t, err)
		assert.True(t, errors.As(err, &authErr))
	})

	t.Run("unreachable server", func(t *testing.T) {
		client := qbt.NewClient("http://127.0.0.1:1", "admin", "adminadmin")
		err := client.Login(context.Background())

		var connErr *monitor.ConnError

		require.Error(t, err)
		assert.True(t, errors.As(err, &connErr))
	})
}

func TestLoginForbiddenStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	client := qbt.NewClient(ts.URL, "admin", "adminadmin")
	err := client.Login(context.Background())

	var authErr *monitor.AuthError

	require.Error(t, err)
	assert.True(t, errors.As(err, &authErr))
}

func TestTorrentsClassification(t *testing.T) {
	fake := newFakeWebUI()
	fake.torrentsBody = `[
		{"hash":"aaa","name":"linux.iso","state":"downloading","size":1024,"progress":0.5,"dlspeed":100,"upspeed":0,"ratio":0.1,"eta":3600},
		{"hash":"bbb","name":"movie.mkv","state":"stalledUP","size":2048,"progress":1,"dlspeed":0,"upspeed":50,"ratio":1.5,"eta":8640000},
		{"hash":"ccc","name":"odd","state":"brandNewState","size":0,"progress":0,"dlspeed":0,"upspeed":0,"ratio":0,"eta":0}
	]`

	client, _ := loginClient(t, fake)

	torrents, err := client.Torrents(context.Background())
	require.NoError(t, err)
	require.Len(t, torrents, 3)

	assert.Equal(t, "aaa", torrents[0].Hash)
	assert.Equal(t, monitor.StateDownloading, torrents[0].State)
	assert.Equal(t, int64(1024), torrents[0].Size)
	assert.Equal(t, 0.5, torrents[0].Progress)

	assert.Equal(t, monitor.StateSeeding, torrents[1].State)
	assert.True(t, torrents[1].IsComplete())

	assert.Equal(t, monitor.StateUnknown, torrents[2].State)
	assert.Equal(t, "brandNewState", torrents[2].RawState)
}

func TestTransferInfo(t *testing.T) {
	fake := newFakeWebUI()
	fake.transferBody = `{"dl_info_speed":1024,"up_info_speed":512,"dl_rate_limit":4096,"up_rate_limit":2048}`
	fake.speedMode = "1"

	client, _ := loginClient(t, fake)

	info, err := client.TransferInfo(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1024), info.DownloadSpeed)
	assert.Equal(t, int64(512), info.UploadSpeed)
	assert.Equal(t, int64(4096), info.DownloadLimit)
	assert.Equal(t, int64(2048), info.UploadLimit)
	assert.True(t, info.AlternativeSpeedEnabled)
}

func TestPauseResumeAll(t *testing.T) {
	fake := newFakeWebUI()
	client, _ := loginClient(t, fake)

	require.NoError(t, client.PauseAll(context.Background()))
	require.NoError(t, client.ResumeAll(context.Background()))

	assert.Equal(t, int64(1), fake.pauseCalls.Load())
	assert.Equal(t, int64(1), fake.resumeCalls.Load())
}

func TestSetSpeedLimitsMode(t *testing.T) {
	t.Run("toggles when mode differs", func(t *testing.T) {
		fake := newFakeWebUI()
		client, _ := loginClient(t, fake)

		require.NoError(t, client.SetSpeedLimitsMode(context.Background(), true))
		assert.Equal(t, int64(1), fake.toggleCalls.Load())
		assert.Equal(t, "1", fake.speedMode)
	})

	t.Run("no toggle when mode already matches", func(t *testing.T) {
		fake := newFakeWebUI()
		fake.speedMode = "1"
		client, _ := loginClient(t, fake)

		require.NoError(t, client.SetSpeedLimitsMode(context.Background(), true))
		assert.Zero(t, fake.toggleCalls.Load())
	})
}

func TestExpiredSessionRetriesLogin(t *testing.T) {
	fake := newFakeWebUI()
	client, _ := loginClient(t, fake)

	// Invalidate the session; the next call gets a 403 and must re-login
	// transparently.
	fake.expireSessions.Store(true)

	torrents, err := client.Torrents(context.Background())
	require.NoError(t, err)
	assert.Empty(t, torrents)
}
