package reset

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Notice describes a completed reset for operator channels.
type Notice struct {
	MACAddress      string    `json:"mac_address"`
	PatientID       string    `json:"patient_id"`
	ReadingsDeleted int64     `json:"readings_deleted"`
	CompletedAt     time.Time `json:"completed_at"`
}

// Notifier sends reset notifications.
type Notifier interface {
	Notify(ctx context.Context, notice Notice) error
}

// WebhookNotifier posts reset notices to a webhook.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

type webhookPayload struct {
	MsgType string      `json:"msgtype"`
	Text    webhookText `json:"text"`
}

type webhookText struct {
	Content string `json:"content"`
}

// NewWebhookNotifier constructs a notifier.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify sends a notice to the webhook.
func (n *WebhookNotifier) Notify(ctx context.Context, notice Notice) error {
	if n == nil || n.url == "" {
		return errors.New("reset webhook: empty url")
	}
	payload := webhookPayload{
		MsgType: "text",
		Text:    webhookText{Content: formatNotice(notice)},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.New("reset webhook: non-2xx")
	}
	return nil
}

func formatNotice(notice Notice) string {
	var b strings.Builder
	b.WriteString("[Device Reset]\n")
	fmt.Fprintf(&b, "Device: %s\n", notice.MACAddress)
	if notice.PatientID != "" {
		fmt.Fprintf(&b, "Patient: %s\n", notice.PatientID)
	}
	fmt.Fprintf(&b, "Readings removed: %d\n", notice.ReadingsDeleted)
	if !notice.CompletedAt.IsZero() {
		fmt.Fprintf(&b, "Completed: %s\n", notice.CompletedAt.Format(time.RFC3339))
	}
	return strings.TrimSpace(b.String())
}
