package monitor

import (
	"context"

	"github.com/mpereira/qbt_monitor/internal/telemetry"
)

// InstrumentedClient wraps a Client with telemetry.
type InstrumentedClient struct {
	client     Client
	telemetry  *telemetry.Telemetry
	clientType string
}

// NewInstrumentedClient creates a new instrumented torrent client.
func NewInstrumentedClient(client Client, tel *telemetry.Telemetry, clientType string) *InstrumentedClient {
	return &InstrumentedClient{
		client:     client,
		telemetry:  tel,
		clientType: clientType,
	}
}

// Torrents fetches the torrent list with telemetry.
func (c *InstrumentedClient) Torrents(ctx context.Context) ([]Torrent, error) {
	var result []Torrent

	var err error

	instrumentedErr := c.telemetry.InstrumentClientOperation(ctx, c.clientType, "torrents_info", func(ctx context.Context) error {
		result, err = c.client.Torrents(ctx)

		return err
	})

	if instrumentedErr != nil {
		return nil, instrumentedErr
	}

	return result, nil
}

// TransferInfo fetches the global transfer counters with telemetry.
func (c *InstrumentedClient) TransferInfo(ctx context.Context) (TransferInfo, error) {
	var result TransferInfo

	var err error

	instrumentedErr := c.telemetry.InstrumentClientOperation(ctx, c.clientType, "transfer_info", func(ctx context.Context) error {
		result, err = c.client.TransferInfo(ctx)

		return err
	})

	if instrumentedErr != nil {
		return TransferInfo{}, instrumentedErr
	}

	return result, nil
}

// PauseAll issues the global pause command with telemetry.
func (c *InstrumentedClient) PauseAll(ctx context.Context) error {
	return c.telemetry.InstrumentClientOperation(ctx, c.clientType, "pause_all", func(ctx context.Context) error {
		return c.client.PauseAll(ctx)
	})
}

// ResumeAll issues the global resume command with telemetry.
func (c *InstrumentedClient) ResumeAll(ctx context.Context) error {
	return c.telemetry.InstrumentClientOperation(ctx, c.clientType, "resume_all", func(ctx context.Context) error {
		return c.client.ResumeAll(ctx)
	})
}

// SetSpeedLimitsMode sets the alternative speed mode with telemetry.
func (c *InstrumentedClient) SetSpeedLimitsMode(ctx context.Context, enabled bool) error {
	return c.telemetry.InstrumentClientOperation(ctx, c.clientType, "set_speed_limits_mode", func(ctx context.Context) error {
		return c.client.SetSpeedLimitsMode(ctx, enabled)
	})
}
