package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type ntfyService struct {
	endpoint string
	client   *http.Client
}

type ntfyMessage struct {
	title    string
	message  string
	tags     []string
	priority string
}

// Publish pushes completion and rollback events. Start and per-item progress
// are too chatty for a phone and are dropped.
func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := formatNtfy(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func formatNtfy(event Event, payload Payload) (ntfyMessage, bool) {
	switch event {
	case EventJobCompleted:
		successful := intValue(payload["successful"])
		failed := intValue(payload["failed"])
		jobID := shortID(stringValue(payload["jobId"]))
		msg := ntfyMessage{
			title:   "dentaldir - Regeneration Complete",
			message: fmt.Sprintf("Job %s finished: %d pages updated", jobID, successful),
			tags:    []string{"dentaldir", "regen", "completed"},
		}
		if failed > 0 {
			msg.title = "dentaldir - Regeneration Complete (with errors)"
			msg.message = fmt.Sprintf("Job %s finished: %d succeeded, %d failed", jobID, successful, failed)
		}
		if stringValue(payload["reason"]) == "abandoned" {
			msg.title = "dentaldir - Regeneration Abandoned"
			msg.message = fmt.Sprintf("Job %s stopped making progress and was marked failed", jobID)
			msg.tags = []string{"dentaldir", "regen", "error"}
			msg.priority = "high"
		} else if stringValue(payload["status"]) == "failed" {
			msg.title = "dentaldir - Regeneration Failed"
			msg.message = fmt.Sprintf("Job %s failed: all %d pages failed", jobID, failed)
			msg.tags = []string{"dentaldir", "regen", "error"}
			msg.priority = "high"
		}
		return msg, true
	case EventPageRolledBack:
		return ntfyMessage{
			title:   "dentaldir - Page Rolled Back",
			message: fmt.Sprintf("Restored page %s from version %s", stringValue(payload["pageId"]), shortID(stringValue(payload["versionId"]))),
			tags:    []string{"dentaldir", "rollback"},
		}, true
	default:
		return ntfyMessage{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, data ntfyMessage) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
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

func stringValue(v any) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func intValue(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func shortID(id string) string {
	if head, _, ok := strings.Cut(id, "-"); ok && head != "" {
		return head
	}
	return id
}
