package notifier

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/mpereira/qbt_monitor/internal/logctx"
	"github.com/mpereira/qbt_monitor/internal/monitor"
	"github.com/mpereira/qbt_monitor/internal/telemetry"
)

// StatusSource is the slice of monitor state the sink reads to enrich
// messages.
type StatusSource interface {
	Torrents() []monitor.Torrent
}

// StatusSourceFunc adapts a function to the StatusSource interface.
type StatusSourceFunc func() []monitor.Torrent

func (f StatusSourceFunc) Torrents() []monitor.Torrent { return f() }

// EventSink fans lifecycle events out to the configured push notifiers. It
// is the monitor-facing end of the notification path; one sink serves one
// monitored endpoint.
type EventSink struct {
	notifiers []Notifier
	source    StatusSource
	telemetry *telemetry.Telemetry
}

var _ monitor.EventSink = (*EventSink)(nil)

func NewEventSink(source StatusSource, tel *telemetry.Telemetry, notifiers ...Notifier) *EventSink {
	return &EventSink{
		notifiers: notifiers,
		source:    source,
		telemetry: tel,
	}
}

// Publish formats one lifecycle event and delivers it to every notifier.
// Delivery failures are logged, never propagated; a dead webhook must not
// fail a poll cycle.
func (s *EventSink) Publish(ctx context.Context, event monitor.Event) {
	logger := logctx.LoggerFromContext(ctx)

	s.telemetry.RecordTorrentEvent(string(event.Type))

	content := s.message(event)

	for _, n := range s.notifiers {
		status := "success"
		if err := n.Notify(content); err != nil {
			status = "error"

			logger.Error("failed to send notification", "type", event.Type, "torrent_hash", event.Hash, "err", err)
		}
		s.telemetry.RecordNotification(notifierName(n), status)
	}
}

// DataUpdated is a consumer refresh signal; nothing to push.
func (s *EventSink) DataUpdated(ctx context.Context) {}

func (s *EventSink) message(event monitor.Event) string {
	switch event.Type {
	case monitor.EventTorrentDownloaded:
		if size, ok := s.torrentSize(event.Hash); ok {
			return fmt.Sprintf("✅ Download finished: %s (%s)", event.Name, humanize.IBytes(uint64(size)))
		}
		return fmt.Sprintf("✅ Download finished: %s", event.Name)
	case monitor.EventTorrentStarted:
		return fmt.Sprintf("⬇️ Download started: %s", event.Name)
	case monitor.EventTorrentRemoved:
		return fmt.Sprintf("🗑 Torrent removed: %s", event.Name)
	}

	return fmt.Sprintf("%s: %s", event.Type, event.Name)
}

// notifierName keeps the metric label bounded to the known channel types.
func notifierName(n Notifier) string {
	switch n.(type) {
	case *DiscordNotifier:
		return "discord"
	case *PushbulletNotifier:
		return "pushbullet"
	default:
		return "other"
	}
}

func (s *EventSink) torrentSize(hash string) (int64, bool) {
	for _, t := range s.source.Torrents() {
		if t.Hash == hash {
			return t.Size, true
		}
	}

	return 0, false
}
