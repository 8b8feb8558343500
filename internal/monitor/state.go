package monitor

// TorrentState is the normalized lifecycle category of a torrent, derived
// from the raw state string reported by the qBittorrent WebUI.
type TorrentState string

const (
	StateDownloading TorrentState = "downloading"
	StateSeeding     TorrentState = "seeding"
	StatePaused      TorrentState = "paused"
	StateDone        TorrentState = "done"
	StateQueued      TorrentState = "queued"
	StateChecking    TorrentState = "checking"
	StateMoving      TorrentState = "moving"
	StateStalled     TorrentState = "stalled"
	StateMetadata    TorrentState = "metadata"
	StateFail        TorrentState = "fail"
	StateUnknown     TorrentState = "unknown"
)

// stateTable maps the raw qBittorrent WebUI state strings to their
// normalized category. Anything not listed classifies as StateUnknown.
var stateTable = map[string]TorrentState{
	"downloading":        StateDownloading,
	"forcedDL":           StateDownloading,
	"error":              StateFail,
	"missingFiles":       StateFail,
	"uploading":          StateSeeding,
	"forcedUP":           StateSeeding,
	"stalledUP":          StateSeeding,
	"pausedDL":           StatePaused,
	"pausedUP":           StateDone,
	"queuedUP":           StateQueued,
	"queuedDL":           StateQueued,
	"allocating":         StateChecking,
	"checkingDL":         StateChecking,
	"checkingUP":         StateChecking,
	"checkingResumeData": StateChecking,
	"metaDL":             StateMetadata,
	"stalledDL":          StateStalled,
	"moving":             StateMoving,
}

// StateFromRaw classifies a raw qBittorrent state string.
func StateFromRaw(raw string) TorrentState {
	if state, ok := stateTable[raw]; ok {
		return state
	}
	return StateUnknown
}

// Torrent is one fetched torrent's attributes at a point in time. Hash is
// the stable identity used for snapshot diffs; Name is display-only and not
// guaranteed unique.
type Torrent struct {
	Hash          string
	Name          string
	RawState      string
	State         TorrentState
	Size          int64
	Progress      float64
	DownloadSpeed int64
	UploadSpeed   int64
	Ratio         float64
	ETA           int64
}

// IsComplete tells if the torrent has finished downloading.
func (t Torrent) IsComplete() bool {
	return t.State == StateSeeding || t.State == StateDone
}

// IsDownloading tells if the torrent is being downloaded.
func (t Torrent) IsDownloading() bool {
	return t.State == StateDownloading
}

// IsPaused tells if the torrent is paused before completion.
func (t Torrent) IsPaused() bool {
	return t.State == StatePaused
}

// TransferInfo holds the global transfer counters of the server. It has no
// identity of its own and is replaced wholesale on every poll.
type TransferInfo struct {
	DownloadSpeed           int64
	UploadSpeed             int64
	DownloadLimit           int64
	UploadLimit             int64
	AlternativeSpeedEnabled bool
}
