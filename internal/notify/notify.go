// Package notify raises desktop notifications for messages that mention
// the signed-in user.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/c-pro/geche"

	"mm/internal/config"
)

type Notification struct {
	Room   string
	Sender string
	Text   string
	MsgID  string
}

func (n Notification) String() string {
	return fmt.Sprintf("%s (#%s): %s", n.Sender, n.Room, n.Text)
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the log.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, n Notification) error {
	slog.Info("mentioned", "room", n.Room, "sender", n.Sender, "msgid", n.MsgID, "text", n.Text)
	return nil
}

// WebPush delivers notifications to a browser push subscription.
type WebPush struct {
	sub  *webpush.Subscription
	opts *webpush.Options
}

type pushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Tag   string `json:"tag,omitempty"`
}

func NewWebPush(cfg config.WebPush) (*WebPush, error) {
	var sub webpush.Subscription
	if err := json.Unmarshal([]byte(cfg.Subscription), &sub); err != nil {
		return nil, fmt.Errorf("invalid push subscription: %w", err)
	}
	if sub.Endpoint == "" {
		return nil, fmt.Errorf("push subscription has no endpoint")
	}
	return &WebPush{
		sub: &sub,
		opts: &webpush.Options{
			HTTPClient:      &http.Client{Timeout: 10 * time.Second},
			Subscriber:      cfg.Subscriber,
			VAPIDPublicKey:  cfg.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.VAPIDPrivateKey,
			TTL:             60,
			Urgency:         webpush.UrgencyHigh,
		},
	}, nil
}

func (w *WebPush) Notify(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(pushPayload{
		Title: fmt.Sprintf("%s (#%s)", n.Sender, n.Room),
		Body:  n.Text,
		Tag:   n.MsgID,
	})
	if err != nil {
		return err
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, w.sub, w.opts)
	if err != nil {
		return fmt.Errorf("failed to send push notification: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("push service returned %s: %s", resp.Status, body)
	}
	return nil
}

// Gate decides whether a mention may raise a notification. It is disarmed
// while a connection replays its backlog and remembers notified message ids
// for a TTL window so that a reconnect does not notify twice.
type Gate struct {
	enabled bool
	armed   bool
	seen    geche.Geche[string, struct{}]
}

func NewGate(ctx context.Context, enabled bool, ttl time.Duration) *Gate {
	return &Gate{
		enabled: enabled,
		seen:    geche.NewMapTTLCache[string, struct{}](ctx, ttl, time.Minute),
	}
}

func (g *Gate) Enabled() bool {
	return g.enabled
}

func (g *Gate) SetEnabled(enabled bool) {
	g.enabled = enabled
}

// Arm allows notifications; called once the live stream has caught up.
func (g *Gate) Arm() {
	g.armed = true
}

func (g *Gate) Armed() bool {
	return g.armed
}

// Disarm suppresses notifications until the next Arm.
func (g *Gate) Disarm() {
	g.armed = false
}

// Allow reports whether n should be delivered and records its message id.
func (g *Gate) Allow(n Notification) bool {
	if !g.enabled || !g.armed {
		return false
	}
	if n.MsgID == "" {
		return true
	}
	if _, err := g.seen.Get(n.MsgID); err == nil {
		return false
	}
	g.seen.Set(n.MsgID, struct{}{})
	return true
}
