package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"agrisync/internal/config"
)

const userAgent = "AgriSync-Go/0.1.0"

// Event names a notification-worthy occurrence.
type Event string

const (
	EventSyncCompleted Event = "sync_completed"
	EventItemFailed    Event = "item_failed"
	EventTest          Event = "test"
)

// Payload carries event-specific values.
type Payload map[string]any

// Service defines the notification surface exposed to the sync engine.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:     topic,
		client:       &http.Client{Timeout: timeout},
		syncComplete: cfg.Notifications.SyncComplete,
		itemFailed:   cfg.Notifications.ItemFailed,
		dedupWindow:  time.Duration(cfg.Notifications.DedupWindowSeconds) * time.Second,
		lastSent:     make(map[string]time.Time),
		now:          time.Now,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint     string
	client       *http.Client
	syncComplete bool
	itemFailed   bool
	dedupWindow  time.Duration
	now          func() time.Time

	mu       sync.Mutex
	lastSent map[string]time.Time
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if n == nil {
		return nil
	}
	msg, ok := n.format(event, payload)
	if !ok {
		return nil
	}
	if !n.claim(string(event) + "\x00" + msg.body) {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventSyncCompleted:
		if !n.syncComplete {
			return message{}, false
		}
		completed := payloadInt(payload, "completed")
		failed := payloadInt(payload, "failed")
		body := fmt.Sprintf("✅ Synced %d offline request%s", completed, plural(completed))
		if failed > 0 {
			body = fmt.Sprintf("%s, %d still waiting", body, failed)
		}
		return message{
			title: "AgriSync - Sync Complete",
			body:  body,
			tags:  []string{"agrisync", "sync", "completed"},
		}, true
	case EventItemFailed:
		if !n.itemFailed {
			return message{}, false
		}
		kind := payloadString(payload, "kind")
		if kind == "" {
			kind = "request"
		}
		body := fmt.Sprintf("❌ %s delivery failed", kind)
		if reason := payloadString(payload, "error"); reason != "" {
			body = fmt.Sprintf("%s: %s", body, reason)
		}
		return message{
			title:    "AgriSync - Delivery Failed",
			body:     body,
			tags:     []string{"agrisync", "sync", "failed"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "AgriSync - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"agrisync", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

// claim reports whether key may be sent now and records the send time.
func (n *ntfyService) claim(key string) bool {
	if n.dedupWindow <= 0 {
		return true
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	now := n.now()
	for k, sent := range n.lastSent {
		if now.Sub(sent) >= n.dedupWindow {
			delete(n.lastSent, k)
		}
	}
	if _, recent := n.lastSent[key]; recent {
		return false
	}
	n.lastSent[key] = now
	return true
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func payloadString(payload Payload, key string) string {
	if payload == nil {
		return ""
	}
	switch v := payload[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func payloadInt(payload Payload, key string) int {
	if payload == nil {
		return 0
	}
	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(v))
		return n
	default:
		return 0
	}
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
