package rest

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mpereira/qbt_monitor/internal/logctx"
	"github.com/mpereira/qbt_monitor/internal/monitor"
	"github.com/mpereira/qbt_monitor/internal/telemetry"
)

// StatusResponse is the transfer-level snapshot served by GET /api/status.
// Speeds and limits are bytes per second; zero limit means unlimited.
type StatusResponse struct {
	Endpoint                string `json:"endpoint"`
	Available               bool   `json:"available"`
	DownloadSpeed           int64  `json:"download_speed"`
	UploadSpeed             int64  `json:"upload_speed"`
	DownloadLimit           int64  `json:"download_limit"`
	UploadLimit             int64  `json:"upload_limit"`
	AlternativeSpeedEnabled bool   `json:"alternative_speed_enabled"`
	ActiveTorrents          int    `json:"active_torrents"`
}

// TorrentResponse is the per-torrent view served by GET /api/torrents.
type TorrentResponse struct {
	Hash          string  `json:"hash"`
	Name          string  `json:"name"`
	State         string  `json:"state"`
	RawState      string  `json:"raw_state"`
	Size          int64   `json:"size"`
	Progress      float64 `json:"progress"`
	DownloadSpeed int64   `json:"download_speed"`
	UploadSpeed   int64   `json:"upload_speed"`
	Ratio         float64 `json:"ratio"`
	ETA           int64   `json:"eta"`
}

type alternativeSpeedRequest struct {
	Enabled bool `json:"enabled"`
}

// StatusHandler serves the monitor snapshot and proxies the global
// commands over HTTP.
type StatusHandler struct {
	username  string
	password  string
	monitor   *monitor.Monitor
	telemetry *telemetry.Telemetry
}

// NewStatusHandler creates a new status handler. Empty username disables
// basic auth.
func NewStatusHandler(username, password string, m *monitor.Monitor, t *telemetry.Telemetry) *StatusHandler {
	return &StatusHandler{
		username:  username,
		password:  password,
		monitor:   m,
		telemetry: t,
	}
}

func (h *StatusHandler) Routes() http.Handler {
	r := chi.NewRouter()

	if h.username != "" {
		r.Use(h.basicAuthMiddleware)
	}

	r.Get("/api/status", h.HandleStatus)
	r.Get("/api/torrents", h.HandleTorrents)
	r.Post("/api/commands/pause", h.HandlePause)
	r.Post("/api/commands/resume", h.HandleResume)
	r.Put("/api/commands/alternative-speed", h.HandleAlternativeSpeed)

	return r
}

// HandleStatus serves the transfer snapshot. It answers even when the
// server is unreachable; available=false tells the caller the numbers are
// stale.
func (h *StatusHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Endpoint:                h.monitor.Endpoint(),
		Available:               h.monitor.Available(),
		DownloadSpeed:           h.monitor.DownloadSpeed(),
		UploadSpeed:             h.monitor.UploadSpeed(),
		DownloadLimit:           h.monitor.DownloadLimit(),
		UploadLimit:             h.monitor.UploadLimit(),
		AlternativeSpeedEnabled: h.monitor.AlternativeSpeedEnabled(),
		ActiveTorrents:          h.monitor.ActiveTorrentCount(),
	}

	h.writeJSON(w, r, resp)
}

// HandleTorrents serves the classified torrent list from the last
// successful poll.
func (h *StatusHandler) HandleTorrents(w http.ResponseWriter, r *http.Request) {
	torrents := h.monitor.Torrents()

	resp := make([]TorrentResponse, len(torrents))
	for i, t := range torrents {
		resp[i] = TorrentResponse{
			Hash:          t.Hash,
			Name:          t.Name,
			State:         string(t.State),
			RawState:      t.RawState,
			Size:          t.Size,
			Progress:      t.Progress,
			DownloadSpeed: t.DownloadSpeed,
			UploadSpeed:   t.UploadSpeed,
			Ratio:         t.Ratio,
			ETA:           t.ETA,
		}
	}

	h.writeJSON(w, r, resp)
}

// HandlePause pauses every torrent on the monitored server.
func (h *StatusHandler) HandlePause(w http.ResponseWriter, r *http.Request) {
	logger := logctx.LoggerFromContext(r.Context())

	if err := h.monitor.PauseAll(r.Context()); err != nil {
		logger.Error("failed to pause all torrents", "err", err)
		http.Error(w, "failed to pause torrents", http.StatusBadGateway)

		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// HandleResume resumes every torrent on the monitored server.
func (h *StatusHandler) HandleResume(w http.ResponseWriter, r *http.Request) {
	logger := logctx.LoggerFromContext(r.Context())

	if err := h.monitor.ResumeAll(r.Context()); err != nil {
		logger.Error("failed to resume all torrents", "err", err)
		http.Error(w, "failed to resume torrents", http.StatusBadGateway)

		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// HandleAlternativeSpeed sets the alternative speed limits mode. The body
// carries the desired state; the next poll reflects it in the status
// snapshot.
func (h *StatusHandler) HandleAlternativeSpeed(w http.ResponseWriter, r *http.Request) {
	logger := logctx.LoggerFromContext(r.Context())

	var req alternativeSpeedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Error("failed to decode request", "err", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)

		return
	}

	if err := h.monitor.SetAlternativeSpeed(r.Context(), req.Enabled); err != nil {
		logger.Error("failed to set alternative speed mode", "enabled", req.Enabled, "err", err)
		http.Error(w, "failed to set alternative speed mode", http.StatusBadGateway)

		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (h *StatusHandler) writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	logger := logctx.LoggerFromContext(r.Context())

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "err", err)
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

func (h *StatusHandler) basicAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok {
			http.Error(w, "invalid authorization format", http.StatusUnauthorized)

			return
		}

		if username != h.username || password != h.password {
			http.Error(w, "invalid username or password", http.StatusUnauthorized)

			return
		}

		next.ServeHTTP(w, r)
	})
}
