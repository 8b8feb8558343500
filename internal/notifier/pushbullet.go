package notifier

import (
	"fmt"

	"github.com/xconstruct/go-pushbullet"
)

const pushTitle = "qbt_monitor"

// PushbulletNotifier sends a note to all of the account's devices.
type PushbulletNotifier struct {
	pb *pushbullet.Client
}

func NewPushbulletNotifier(token string) *PushbulletNotifier {
	return &PushbulletNotifier{pb: pushbullet.New(token)}
}

// Test verifies the API token is valid by fetching user info.
func (p *PushbulletNotifier) Test() error {
	if _, err := p.pb.Me(); err != nil {
		return fmt.Errorf("pushbullet authentication failed: %w", err)
	}
	return nil
}

func (p *PushbulletNotifier) Notify(content string) error {
	// Empty device iden broadcasts to all devices.
	if err := p.pb.PushNote("", pushTitle, content); err != nil {
		return fmt.Errorf("failed to push note: %w", err)
	}
	return nil
}
