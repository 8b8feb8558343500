package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mpereira/qbt_monitor/internal/logctx"
)

// Client is the collaborator contract the monitor polls and commands. An
// implementation talks to one torrent server; the monitor never constructs
// HTTP requests itself.
type Client interface {
	Torrents(ctx context.Context) ([]Torrent, error)
	TransferInfo(ctx context.Context) (TransferInfo, error)
	PauseAll(ctx context.Context) error
	ResumeAll(ctx context.Context) error
	SetSpeedLimitsMode(ctx context.Context, enabled bool) error
}

const defaultSettleDelay = 3 * time.Second

// Monitor owns the classified snapshot of one torrent server endpoint. It
// diffs every fresh fetch against the previous snapshot, emits lifecycle
// events through the injected sink and swaps the snapshot in wholesale.
//
// Update is not reentrant; the caller must serialize poll cycles (one ticker
// goroutine per monitor). Read accessors are safe to call concurrently with
// Update.
type Monitor struct {
	client      Client
	sink        EventSink
	endpoint    string
	settleDelay time.Duration
	started     func(Torrent) bool

	mu           sync.RWMutex
	completed    map[string]Torrent
	startedSet   map[string]Torrent
	all          []Torrent
	allHashes    map[string]string // hash -> name, for removal diffs
	transferInfo TransferInfo
	available    bool
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithSettleDelay overrides the fixed wait after global pause/resume
// commands. Tests shorten it; the default of 3s gives the server time to
// reflect the change before the caller reads state again.
func WithSettleDelay(d time.Duration) Option {
	return func(m *Monitor) {
		m.settleDelay = d
	}
}

// WithStartedPredicate replaces the predicate that decides which torrents
// belong to the "started" set.
func WithStartedPredicate(fn func(Torrent) bool) Option {
	return func(m *Monitor) {
		m.started = fn
	}
}

// WithPausedInStarted widens the started set to also admit paused torrents.
func WithPausedInStarted() Option {
	return func(m *Monitor) {
		m.started = func(t Torrent) bool {
			return t.IsDownloading() || t.IsPaused()
		}
	}
}

// New creates a Monitor for one endpoint. The endpoint string is used only
// for logging and event scoping.
func New(client Client, sink EventSink, endpoint string, opts ...Option) *Monitor {
	m := &Monitor{
		client:      client,
		sink:        sink,
		endpoint:    endpoint,
		settleDelay: defaultSettleDelay,
		started:     Torrent.IsDownloading,
		completed:   map[string]Torrent{},
		startedSet:  map[string]Torrent{},
		allHashes:   map[string]string{},
		available:   true,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Init establishes the baseline snapshot from a first fetch. No lifecycle
// events are emitted because there is no previous snapshot to compare
// against.
func (m *Monitor) Init(ctx context.Context) error {
	logger := logctx.LoggerFromContext(ctx)

	torrents, err := m.client.Torrents(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch initial torrent list: %w", err)
	}

	m.mu.Lock()
	m.swapSnapshotLocked(torrents)
	m.mu.Unlock()

	logger.Info("baseline snapshot established", "endpoint", m.endpoint, "torrent_count", len(torrents))

	return nil
}

// Update runs one poll cycle: fetch, diff, emit, swap. On a collaborator
// failure nothing but the availability flag changes, and the data-updated
// signal still fires so consumers refresh their unavailable state.
func (m *Monitor) Update(ctx context.Context) error {
	logger := logctx.LoggerFromContext(ctx)

	torrents, err := m.client.Torrents(ctx)
	if err != nil {
		return m.failCycle(ctx, fmt.Errorf("failed to fetch torrent list: %w", err))
	}

	info, err := m.client.TransferInfo(ctx)
	if err != nil {
		return m.failCycle(ctx, fmt.Errorf("failed to fetch transfer info: %w", err))
	}

	m.mu.Lock()
	events := m.diffLocked(torrents)
	m.swapSnapshotLocked(torrents)
	m.transferInfo = info
	m.available = true
	m.mu.Unlock()

	for _, event := range events {
		logger.Debug("lifecycle event", "endpoint", m.endpoint, "type", event.Type, "name", event.Name, "hash", event.Hash)
		m.sink.Publish(ctx, event)
	}

	logger.Debug("snapshot updated", "endpoint", m.endpoint, "torrent_count", len(torrents), "event_count", len(events))

	m.sink.DataUpdated(ctx)

	return nil
}

// failCycle marks the monitor unavailable and signals consumers without
// touching the snapshot.
func (m *Monitor) failCycle(ctx context.Context, err error) error {
	logger := logctx.LoggerFromContext(ctx)

	m.mu.Lock()
	m.available = false
	m.mu.Unlock()

	logger.Error("poll cycle failed", "endpoint", m.endpoint, "err", err)

	m.sink.DataUpdated(ctx)

	return err
}

// diffLocked compares a fresh fetch against the held snapshot and returns
// the lifecycle events to emit, in order: downloaded, started, removed.
// All comparisons are keyed by hash; names can collide and are carried for
// display only.
func (m *Monitor) diffLocked(current []Torrent) []Event {
	var events []Event

	for _, t := range current {
		if !t.IsComplete() {
			continue
		}
		if _, ok := m.completed[t.Hash]; !ok {
			events = append(events, Event{Type: EventTorrentDownloaded, Name: t.Name, Hash: t.Hash})
		}
	}

	for _, t := range current {
		if !m.started(t) {
			continue
		}
		if _, ok := m.startedSet[t.Hash]; !ok {
			events = append(events, Event{Type: EventTorrentStarted, Name: t.Name, Hash: t.Hash})
		}
	}

	currentHashes := make(map[string]struct{}, len(current))
	for _, t := range current {
		currentHashes[t.Hash] = struct{}{}
	}

	for hash, name := range m.allHashes {
		if _, ok := currentHashes[hash]; !ok {
			events = append(events, Event{Type: EventTorrentRemoved, Name: name, Hash: hash})
		}
	}

	return events
}

// swapSnapshotLocked recomputes the derived sets from a full fetch and
// replaces the snapshot wholesale.
func (m *Monitor) swapSnapshotLocked(current []Torrent) {
	completed := make(map[string]Torrent)
	started := make(map[string]Torrent)
	hashes := make(map[string]string, len(current))

	for _, t := range current {
		if t.IsComplete() {
			completed[t.Hash] = t
		}
		if m.started(t) {
			started[t.Hash] = t
		}
		hashes[t.Hash] = t.Name
	}

	m.completed = completed
	m.startedSet = started
	m.all = current
	m.allHashes = hashes
}

// PauseAll issues a global pause command and then blocks for the settle
// delay so the server state has caught up before the next read.
func (m *Monitor) PauseAll(ctx context.Context) error {
	logger := logctx.LoggerFromContext(ctx)

	if err := m.client.PauseAll(ctx); err != nil {
		return fmt.Errorf("failed to pause all torrents: %w", err)
	}

	logger.Info("paused all torrents", "endpoint", m.endpoint)
	m.settle(ctx)

	return nil
}

// ResumeAll issues a global resume command and then blocks for the settle
// delay.
func (m *Monitor) ResumeAll(ctx context.Context) error {
	logger := logctx.LoggerFromContext(ctx)

	if err := m.client.ResumeAll(ctx); err != nil {
		return fmt.Errorf("failed to resume all torrents: %w", err)
	}

	logger.Info("resumed all torrents", "endpoint", m.endpoint)
	m.settle(ctx)

	return nil
}

// SetAlternativeSpeed enables or disables the alternative speed limits. No
// local state changes; the next poll observes the new mode.
func (m *Monitor) SetAlternativeSpeed(ctx context.Context, enabled bool) error {
	if err := m.client.SetSpeedLimitsMode(ctx, enabled); err != nil {
		return fmt.Errorf("failed to set alternative speed mode: %w", err)
	}

	return nil
}

func (m *Monitor) settle(ctx context.Context) {
	select {
	case <-time.After(m.settleDelay):
	case <-ctx.Done():
	}
}

// Endpoint returns the identity string of the monitored server.
func (m *Monitor) Endpoint() string {
	return m.endpoint
}

// Available reports whether the last poll cycle reached the server.
func (m *Monitor) Available() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.available
}

// DownloadSpeed returns the global download rate in bytes/s.
func (m *Monitor) DownloadSpeed() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.transferInfo.DownloadSpeed
}

// UploadSpeed returns the global upload rate in bytes/s.
func (m *Monitor) UploadSpeed() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.transferInfo.UploadSpeed
}

// DownloadLimit returns the global download rate limit in bytes/s.
func (m *Monitor) DownloadLimit() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.transferInfo.DownloadLimit
}

// UploadLimit returns the global upload rate limit in bytes/s.
func (m *Monitor) UploadLimit() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.transferInfo.UploadLimit
}

// AlternativeSpeedEnabled reports whether the alternative speed limits were
// active as of the last successful poll.
func (m *Monitor) AlternativeSpeedEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.transferInfo.AlternativeSpeedEnabled
}

// ActiveTorrentCount is the size of the started set.
func (m *Monitor) ActiveTorrentCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.startedSet)
}

// Torrents returns a copy of the full torrent list from the last successful
// poll.
func (m *Monitor) Torrents() []Torrent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Torrent, len(m.all))
	copy(out, m.all)

	return out
}
