package reset

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestWebhookNotifierPayload(t *testing.T) {
	payloadCh := make(chan webhookPayload, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var payload webhookPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		payloadCh <- payload
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier(server.URL)
	err := notifier.Notify(context.Background(), Notice{
		MACAddress:      "AA:BB:CC:DD:EE:FF",
		PatientID:       "patient-1",
		ReadingsDeleted: 12,
		CompletedAt:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}

	select {
	case payload := <-payloadCh:
		if payload.MsgType != "text" {
			t.Fatalf("expected msgtype text, got %s", payload.MsgType)
		}
		content := payload.Text.Content
		for _, want := range []string{"[Device Reset]", "Device: AA:BB:CC:DD:EE:FF", "Patient: patient-1", "Readings removed: 12"} {
			if !strings.Contains(content, want) {
				t.Fatalf("missing %q in content:\n%s", want, content)
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the webhook call")
	}
}

func TestWebhookNotifierNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier(server.URL)
	if err := notifier.Notify(context.Background(), Notice{MACAddress: "AA:BB:CC:DD:EE:FF"}); err == nil {
		t.Fatalf("expected an error for a non-2xx response")
	}
}
