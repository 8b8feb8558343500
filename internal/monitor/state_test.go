package monitor_test

import (
	"testing"

	"github.com/mpereira/qbt_monitor/internal/monitor"
	"github.com/stretchr/testify/assert"
)

func TestStateFromRaw(t *testing.T) {
	tests := []struct {
		raw      string
		expected monitor.TorrentState
	}{
		{"downloading", monitor.StateDownloading},
		{"forcedDL", monitor.StateDownloading},
		{"error", monitor.StateFail},
		{"missingFiles", monitor.StateFail},
		{"uploading", monitor.StateSeeding},
		{"forcedUP", monitor.StateSeeding},
		{"stalledUP", monitor.StateSeeding},
		{"pausedDL", monitor.StatePaused},
		{"pausedUP", monitor.StateDone},
		{"queuedUP", monitor.StateQueued},
		{"queuedDL", monitor.StateQueued},
		{"allocating", monitor.StateChecking},
		{"checkingDL", monitor.StateChecking},
		{"checkingUP", monitor.StateChecking},
		{"checkingResumeData", monitor.StateChecking},
		{"metaDL", monitor.StateMetadata},
		{"stalledDL", monitor.StateStalled},
		{"moving", monitor.StateMoving},
		{"", monitor.StateUnknown},
		{"somethingNew", monitor.StateUnknown},
		{"DOWNLOADING", monitor.StateUnknown}, // raw states are case sensitive
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.expected, monitor.StateFromRaw(tt.raw))
		})
	}
}

func TestTorrentPredicates(t *testing.T) {
	tests := []struct {
		name        string
		state       monitor.TorrentState
		complete    bool
		downloading bool
		paused      bool
	}{
		{"seeding is complete", monitor.StateSeeding, true, false, false},
		{"done is complete", monitor.StateDone, true, false, false},
		{"downloading", monitor.StateDownloading, false, true, false},
		{"paused", monitor.StatePaused, false, false, true},
		{"stalled is neither", monitor.StateStalled, false, false, false},
		{"fail is neither", monitor.StateFail, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			torrent := monitor.Torrent{State: tt.state}
			assert.Equal(t, tt.complete, torrent.IsComplete())
			assert.Equal(t, tt.downloading, torrent.IsDownloading())
			assert.Equal(t, tt.paused, torrent.IsPaused())
		})
	}
}
