package monitor

import "context"

// EventType names a torrent lifecycle transition detected between two polls.
type EventType string

const (
	EventTorrentDownloaded EventType = "torrent_downloaded"
	EventTorrentStarted    EventType = "torrent_started"
	EventTorrentRemoved    EventType = "torrent_removed"
)

// Event is a lifecycle event emitted by the monitor. Hash is the stable
// identity of the torrent; Name is carried for display only.
type Event struct {
	Type EventType
	Name string
	Hash string
}

// EventSink receives lifecycle events and the per-endpoint data-updated
// signal. The monitor calls into an injected sink instead of a process-wide
// bus; one sink instance belongs to one monitored endpoint.
type EventSink interface {
	// Publish delivers one lifecycle event.
	Publish(ctx context.Context, event Event)

	// DataUpdated signals that monitor state changed and consumers should
	// re-read it. It fires after every poll cycle, successful or not.
	DataUpdated(ctx context.Context)
}

// SinkFunc adapts plain functions to the EventSink interface.
type SinkFunc struct {
	PublishFunc     func(ctx context.Context, event Event)
	DataUpdatedFunc func(ctx context.Context)
}

func (s SinkFunc) Publish(ctx context.Context, event Event) {
	if s.PublishFunc != nil {
		s.PublishFunc(ctx, event)
	}
}

func (s SinkFunc) DataUpdated(ctx context.Context) {
	if s.DataUpdatedFunc != nil {
		s.DataUpdatedFunc(ctx)
	}
}
