package notifier_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mpereira/qbt_monitor/internal/monitor"
	"github.com/mpereira/qbt_monitor/internal/notifier"
	"github.com/mpereira/qbt_monitor/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type spyNotifier struct {
	messages []string
	err      error
}

func (s *spyNotifier) Notify(content string) error {
	s.messages = append(s.messages, content)

	return s.err
}

func disabledTelemetry(t *testing.T) *telemetry.Telemetry {
	t.Helper()

	tel, err := telemetry.New(context.Background(), telemetry.Config{})
	require.NoError(t, err)

	return tel
}

func newSink(t *testing.T, torrents []monitor.Torrent, notifiers ...notifier.Notifier) *notifier.EventSink {
	t.Helper()

	source := notifier.StatusSourceFunc(func() []monitor.Torrent { return torrents })

	return notifier.NewEventSink(source, disabledTelemetry(t), notifiers...)
}

func TestPublishMessageFormats(t *testing.T) {
	torrents := []monitor.Torrent{
		{Hash: "aaa", Name: "linux.iso", Size: 2 * 1024 * 1024 * 1024},
	}

	tests := []struct {
		name     string
		event    monitor.Event
		expected string
	}{
		{
			"downloaded with known size",
			monitor.Event{Type: monitor.EventTorrentDownloaded, Name: "linux.iso", Hash: "aaa"},
			"✅ Download finished: linux.iso (2.0 GiB)",
		},
		{
			"downloaded with unknown hash",
			monitor.Event{Type: monitor.EventTorrentDownloaded, Name: "ghost", Hash: "zzz"},
			"✅ Download finished: ghost",
		},
		{
			"started",
			monitor.Event{Type: monitor.EventTorrentStarted, Name: "movie.mkv", Hash: "bbb"},
			"⬇️ Download started: movie.mkv",
		},
		{
			"removed",
			monitor.Event{Type: monitor.EventTorrentRemoved, Name: "old.iso", Hash: "ccc"},
			"🗑 Torrent removed: old.iso",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spy := &spyNotifier{}
			sink := newSink(t, torrents, spy)

			sink.Publish(context.Background(), tt.event)

			require.Len(t, spy.messages, 1)
			assert.Equal(t, tt.expected, spy.messages[0])
		})
	}
}

func TestPublishFailureDoesNotStopOtherNotifiers(t *testing.T) {
	broken := &spyNotifier{err: errors.New("webhook down")}
	working := &spyNotifier{}
	sink := newSink(t, nil, broken, working)

	sink.Publish(context.Background(), monitor.Event{
		Type: monitor.EventTorrentStarted,
		Name: "movie.mkv",
		Hash: "aaa",
	})

	assert.Len(t, broken.messages, 1)
	assert.Len(t, working.messages, 1)
}

func TestDiscordNotifier(t *testing.T) {
	t.Run("delivers payload", func(t *testing.T) {
		var received string

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var payload map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			received = payload["content"]

			w.WriteHeader(http.StatusNoContent)
		}))
		defer ts.Close()

		n := &notifier.DiscordNotifier{WebhookURL: ts.URL}
		require.NoError(t, n.Notify("hello"))
		assert.Equal(t, "hello", received)
	})

	t.Run("non-2xx is an error", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer ts.Close()

		n := &notifier.DiscordNotifier{WebhookURL: ts.URL}
		assert.Error(t, n.Notify("hello"))
	})

	t.Run("missing webhook URL", func(t *testing.T) {
		n := &notifier.DiscordNotifier{}
		assert.Error(t, n.Notify("hello"))
	})
}
