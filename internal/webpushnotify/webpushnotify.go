// Package webpushnotify implements the notify.Notifier interface (§4.D)
// over Web Push: VAPID-signed delivery to browser/mobile push endpoints
// registered by clients. Unlike the engine's other collaborators, delivery
// timing is entirely driven by the caller — this driver owns subscription
// persistence and transport, not scheduling.
package webpushnotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/watchloop/monitor/internal/logging"
	"github.com/watchloop/monitor/internal/notify"
)

// ttlSeconds is how long a push gateway should hold a notification for
// an offline client before giving up.
const ttlSeconds = 3600

// webPushSender abstracts transport so tests can substitute a fake
// without making real HTTP calls.
type webPushSender interface {
	Send(payload []byte, sub Subscription) (status int, err error)
}

type vapidSender struct {
	subject    string
	publicKey  string
	privateKey string
}

func (v *vapidSender) Send(payload []byte, sub Subscription) (int, error) {
	resp, err := webpush.SendNotification(payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		Subscriber:      v.subject,
		VAPIDPublicKey:  v.publicKey,
		VAPIDPrivateKey: v.privateKey,
		TTL:             ttlSeconds,
	})
	if err != nil {
		return 0, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		return resp.StatusCode, fmt.Errorf("webpushnotify: push gateway returned %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

// message is the JSON payload delivered to a service worker.
type message struct {
	Title       string            `json:"title"`
	Body        string            `json:"body"`
	Tag         string            `json:"tag"`
	SessionID   string            `json:"sessionId"`
	SessionName string            `json:"sessionName"`
	Type        string            `json:"type"`
	Timestamp   int64             `json:"timestamp"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Driver delivers engine notifications to every registered Web Push
// subscription, dropping any endpoint the gateway reports as gone.
type Driver struct {
	store  *subscriptionStore
	sender webPushSender
	log    *slog.Logger
}

// NewDriver opens (or initializes) the VAPID keypair and subscription
// store under dataDir and returns a ready-to-use Driver.
func NewDriver(dataDir, subject string) (*Driver, error) {
	pub, priv, err := EnsureVAPIDKeys(dataDir, subject)
	if err != nil {
		return nil, err
	}
	store, err := openSubscriptionStore(dataDir)
	if err != nil {
		return nil, err
	}
	return &Driver{
		store:  store,
		sender: &vapidSender{subject: subject, publicKey: pub, privateKey: priv},
		log:    logging.ForComponent(logging.CompNotify),
	}, nil
}

// PublicKey returns the VAPID public key clients need to register a push
// subscription against this driver.
func (d *Driver) PublicKey() string {
	v, ok := d.sender.(*vapidSender)
	if !ok {
		return ""
	}
	return v.publicKey
}

// Subscribe registers (or replaces) a client's push subscription.
func (d *Driver) Subscribe(sub Subscription) error {
	return d.store.upsert(sub)
}

// Unsubscribe removes a previously registered push subscription.
func (d *Driver) Unsubscribe(endpoint string) error {
	return d.store.removeByEndpoint(endpoint)
}

// Notify implements notify.Notifier, pushing n to every registered
// subscription. Errors from individual subscribers are logged and do not
// prevent delivery to the rest. With no subscriptions registered it returns
// nil; it fails only if the payload cannot be marshalled or ctx is done.
func (d *Driver) Notify(ctx context.Context, n notify.Notification) error {
	subs := d.store.list()
	if len(subs) == 0 {
		return nil
	}

	msg := messageFor(n)
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("webpushnotify: marshal message: %w", err)
	}

	for _, sub := range subs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		status, err := d.sender.Send(payload, sub)
		if err == nil {
			continue
		}
		if status == http.StatusNotFound || status == http.StatusGone {
			if rmErr := d.store.removeByEndpoint(sub.Endpoint); rmErr != nil {
				d.log.Error("drop_stale_subscription_failed",
					slog.String("endpoint", sub.Endpoint), slog.String("error", rmErr.Error()))
			}
			continue
		}
		d.log.Warn("push_delivery_failed",
			slog.String("endpoint", sub.Endpoint), slog.String("error", err.Error()))
	}
	return nil
}

func messageFor(n notify.Notification) message {
	title, tag := titleAndTag(n.Type)
	body := n.Message
	if body == "" {
		body = string(n.Type)
	}
	return message{
		Title:       title,
		Body:        fmt.Sprintf("%s: %s", n.SessionName, body),
		Tag:         tag,
		SessionID:   n.SessionID,
		SessionName: n.SessionName,
		Type:        string(n.Type),
		Timestamp:   time.Now().Unix(),
		Metadata:    n.Metadata,
	}
}

func titleAndTag(t notify.Type) (title, tag string) {
	switch t {
	case notify.TypeLimit:
		return "Usage limit reached", "limit"
	case notify.TypeContinued:
		return "Session resumed", "continued"
	case notify.TypeApproval:
		return "Approval needed", "approval"
	case notify.TypeTaskCompleted:
		return "Task completed", "task_completed"
	case notify.TypeError:
		return "Session error", "error"
	default:
		return "Session update", "update"
	}
}

var _ notify.Notifier = (*Driver)(nil)
