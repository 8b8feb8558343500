package qbt

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mpereira/qbt_monitor/internal/logctx"
	"github.com/mpereira/qbt_monitor/internal/monitor"
)

// Client talks to the qBittorrent WebUI API (v2). Authentication is cookie
// based: Login stores the SID session cookie and every later call replays
// it; an expired session (403) triggers one transparent re-login.
type Client struct {
	BaseURL    string
	Username   string
	Password   string
	Insecure   bool // skip TLS verification if true
	httpClient *http.Client
	sid        string // session cookie
}

// torrentInfo is the wire shape of one entry of /api/v2/torrents/info.
type torrentInfo struct {
	Hash     string  `json:"hash"`
	Name     string  `json:"name"`
	State    string  `json:"state"`
	Size     int64   `json:"size"`
	Progress float64 `json:"progress"`
	Dlspeed  int64   `json:"dlspeed"`
	Upspeed  int64   `json:"upspeed"`
	Ratio    float64 `json:"ratio"`
	Eta      int64   `json:"eta"`
}

// transferInfo is the wire shape of /api/v2/transfer/info.
type transferInfo struct {
	DlInfoSpeed int64 `json:"dl_info_speed"`
	UpInfoSpeed int64 `json:"up_info_speed"`
	DlRateLimit int64 `json:"dl_rate_limit"`
	UpRateLimit int64 `json:"up_rate_limit"`
}

func NewClient(baseURL, username, password string, insecure ...bool) *Client {
	client := &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Username:   username,
		Password:   password,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	if len(insecure) > 0 && insecure[0] {
		tr := &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
		client.httpClient.Transport = tr
		client.Insecure = true
	}
	return client
}

var _ monitor.Client = (*Client)(nil)

// Login authenticates against /api/v2/auth/login and stores the session
// cookie. Rejected credentials surface as *monitor.AuthError; anything else
// as *monitor.ConnError.
func (c *Client) Login(ctx context.Context) error {
	logger := logctx.LoggerFromContext(ctx).With("method", "auth.login")

	form := url.Values{}
	form.Set("username", c.Username)
	form.Set("password", c.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v2/auth/login", strings.NewReader(form.Encode()))
	if err != nil {
		return &monitor.ConnError{Operation: "login", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	logger.Debug("sending auth/login", "url", c.BaseURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("HTTP error", "err", err)
		return &monitor.ConnError{Operation: "login", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized {
		return &monitor.AuthError{Operation: "login"}
	}
	if resp.StatusCode != http.StatusOK {
		return &monitor.ConnError{Operation: "login", StatusCode: resp.StatusCode}
	}

	// The WebUI answers 200 with a literal "Fails." body on bad credentials.
	body, _ := io.ReadAll(resp.Body)
	if strings.TrimSpace(string(body)) != "Ok." {
		logger.Error("login rejected", "body", string(body))
		return &monitor.AuthError{Operation: "login"}
	}

	for _, cookie := range resp.Cookies() {
		if cookie.Name == "SID" {
			c.sid = cookie.Value
		}
	}
	if c.sid == "" {
		return &monitor.ConnError{Operation: "login", Err: fmt.Errorf("SID cookie not found after login")}
	}

	logger.Debug("success")
	return nil
}

// Torrents fetches the full torrent list and classifies each record at
// decode time. Unknown state strings are not errors; they classify as
// StateUnknown and are logged.
func (c *Client) Torrents(ctx context.Context) ([]monitor.Torrent, error) {
	logger := logctx.LoggerFromContext(ctx).With("method", "torrents.info")

	body, err := c.get(ctx, "/api/v2/torrents/info", "torrents_info")
	if err != nil {
		return nil, err
	}

	var infos []torrentInfo
	if err := json.Unmarshal(body, &infos); err != nil {
		logger.Error("decode error", "err", err)
		return nil, &monitor.ConnError{Operation: "torrents_info", Err: err}
	}

	torrents := make([]monitor.Torrent, 0, len(infos))
	for _, info := range infos {
		state := monitor.StateFromRaw(info.State)
		if state == monitor.StateUnknown {
			logger.Debug("unrecognized torrent state", "state", info.State, "hash", info.Hash)
		}
		torrents = append(torrents, monitor.Torrent{
			Hash:          info.Hash,
			Name:          info.Name,
			RawState:      info.State,
			State:         state,
			Size:          info.Size,
			Progress:      info.Progress,
			DownloadSpeed: info.Dlspeed,
			UploadSpeed:   info.Upspeed,
			Ratio:         info.Ratio,
			ETA:           info.Eta,
		})
	}

	logger.Debug("fetched torrent list", "count", len(torrents))
	return torrents, nil
}

// TransferInfo fetches the global transfer counters plus the alternative
// speed mode flag (two WebUI calls behind one collaborator operation).
func (c *Client) TransferInfo(ctx context.Context) (monitor.TransferInfo, error) {
	logger := logctx.LoggerFromContext(ctx).With("method", "transfer.info")

	body, err := c.get(ctx, "/api/v2/transfer/info", "transfer_info")
	if err != nil {
		return monitor.TransferInfo{}, err
	}

	var info transferInfo
	if err := json.Unmarshal(body, &info); err != nil {
		logger.Error("decode error", "err", err)
		return monitor.TransferInfo{}, &monitor.ConnError{Operation: "transfer_info", Err: err}
	}

	altEnabled, err := c.speedLimitsMode(ctx)
	if err != nil {
		return monitor.TransferInfo{}, err
	}

	return monitor.TransferInfo{
		DownloadSpeed:           info.DlInfoSpeed,
		UploadSpeed:             info.UpInfoSpeed,
		DownloadLimit:           info.DlRateLimit,
		UploadLimit:             info.UpRateLimit,
		AlternativeSpeedEnabled: altEnabled,
	}, nil
}

// PauseAll pauses every torrent on the server.
func (c *Client) PauseAll(ctx context.Context) error {
	return c.postForm(ctx, "/api/v2/torrents/pause", url.Values{"hashes": {"all"}}, "pause_all")
}

// ResumeAll resumes every torrent on the server.
func (c *Client) ResumeAll(ctx context.Context) error {
	return c.postForm(ctx, "/api/v2/torrents/resume", url.Values{"hashes": {"all"}}, "resume_all")
}

// SetSpeedLimitsMode enables or disables the alternative speed limits. The
// WebUI only exposes a toggle, so the current mode is read first and the
// toggle fired only when it differs from the requested one.
func (c *Client) SetSpeedLimitsMode(ctx context.Context, enabled bool) error {
	current, err := c.speedLimitsMode(ctx)
	if err != nil {
		return err
	}
	if current == enabled {
		return nil
	}

	return c.postForm(ctx, "/api/v2/transfer/toggleSpeedLimitsMode", url.Values{}, "toggle_speed_limits_mode")
}

// speedLimitsMode reads /api/v2/transfer/speedLimitsMode; "1" means the
// alternative limits are active.
func (c *Client) speedLimitsMode(ctx context.Context) (bool, error) {
	body, err := c.get(ctx, "/api/v2/transfer/speedLimitsMode", "speed_limits_mode")
	if err != nil {
		return false, err
	}

	return strings.TrimSpace(string(body)) == "1", nil
}

// get performs an authenticated GET, retrying once through Login when the
// session cookie has expired.
func (c *Client) get(ctx context.Context, path, operation string) ([]byte, error) {
	body, status, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, &monitor.ConnError{Operation: operation, Err: err}
	}

	if status == http.StatusForbidden {
		if err := c.Login(ctx); err != nil {
			return nil, err
		}
		body, status, err = c.do(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, &monitor.ConnError{Operation: operation, Err: err}
		}
	}

	if status != http.StatusOK {
		return nil, &monitor.ConnError{Operation: operation, StatusCode: status}
	}

	return body, nil
}

// postForm performs an authenticated form POST with the same expired-session
// retry as get.
func (c *Client) postForm(ctx context.Context, path string, form url.Values, operation string) error {
	_, status, err := c.do(ctx, http.MethodPost, path, strings.NewReader(form.Encode()))
	if err != nil {
		return &monitor.ConnError{Operation: operation, Err: err}
	}

	if status == http.StatusForbidden {
		if err := c.Login(ctx); err != nil {
			return err
		}
		_, status, err = c.do(ctx, http.MethodPost, path, strings.NewReader(form.Encode()))
		if err != nil {
			return &monitor.ConnError{Operation: operation, Err: err}
		}
	}

	if status != http.StatusOK {
		return &monitor.ConnError{Operation: operation, StatusCode: status}
	}

	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload io.Reader) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, payload)
	if err != nil {
		return nil, 0, err
	}

	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if c.sid != "" {
		req.AddCookie(&http.Cookie{Name: "SID", Value: c.sid})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}

	return body, resp.StatusCode, nil
}
