package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"drip/internal/config"
)

const userAgent = "drip/1.0"

// Event identifies an appliance milestone.
type Event string

const (
	EventRecordingSaved  Event = "recording_saved"
	EventTranscodeFailed Event = "transcode_failed"
	EventExportCompleted Event = "export_completed"
	EventStorageAttached Event = "storage_attached"
	EventTest            Event = "test"
)

// Payload carries event fields. Keys are event specific; unknown keys are
// ignored.
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy-backed service, or a no-op when no topic is set.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.NtfyRequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := format(event, payload)
	if !ok {
		return fmt.Errorf("unknown notification event %q", event)
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventRecordingSaved:
		body := "Saved " + payload.file("file")
		if d := payload.floatValue("durationSeconds"); d > 0 {
			body += fmt.Sprintf(" (%s)", (time.Duration(d * float64(time.Second))).Round(time.Second))
		}
		return message{
			title: "Drip - Recording Saved",
			body:  body,
			tags:  []string{"drip", "recording", "saved"},
		}, true
	case EventTranscodeFailed:
		return message{
			title:    "Drip - Processing Failed",
			body:     fmt.Sprintf("Could not process %s: %s\nThe raw capture was kept for retry", payload.file("file"), payload.text("error", "unknown error")),
			tags:     []string{"drip", "transcode", "error"},
			priority: "high",
		}, true
	case EventExportCompleted:
		exported, failed := payload.intValue("exported"), payload.intValue("failed")
		msg := message{
			title: "Drip - Export Complete",
			body:  fmt.Sprintf("Exported %d recordings to %s", exported, payload.text("dest", "export destination")),
			tags:  []string{"drip", "export", "completed"},
		}
		if failed > 0 {
			msg.title = "Drip - Export Complete (with errors)"
			msg.body = fmt.Sprintf("Exported %d recordings to %s, %d failed", exported, payload.text("dest", "export destination"), failed)
			msg.priority = "high"
		}
		return msg, true
	case EventStorageAttached:
		return message{
			title: "Drip - Storage Attached",
			body:  fmt.Sprintf("Storage %s attached; ready to export", payload.text("device", "device")),
			tags:  []string{"drip", "storage"},
		}, true
	case EventTest:
		return message{
			title:    "Drip - Test",
			body:     "Notification system test",
			tags:     []string{"drip", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" {
		req.Header.Set("Priority", msg.priority)
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

func (p Payload) text(key, fallback string) string {
	if v, ok := p[key].(string); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func (p Payload) file(key string) string {
	v := p.text(key, "")
	if v == "" {
		return "recording"
	}
	return filepath.Base(v)
}

func (p Payload) intValue(key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func (p Payload) floatValue(key string) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
