package events

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/openclose/ledger/internal/webhooks"
)

type fakeWebhookSvc struct {
	hooks []webhooks.Webhook
}

func (f *fakeWebhookSvc) Create(ctx context.Context, organizationID, url, secret string, events []string) (webhooks.Webhook, error) {
	return webhooks.Webhook{}, nil
}

func (f *fakeWebhookSvc) Get(ctx context.Context, organizationID, id string) (webhooks.Webhook, error) {
	return webhooks.Webhook{}, webhooks.ErrNotFound
}

func (f *fakeWebhookSvc) List(ctx context.Context, organizationID string) ([]webhooks.Webhook, error) {
	return f.hooks, nil
}

func (f *fakeWebhookSvc) Delete(ctx context.Context, organizationID, id string) error {
	return nil
}

func (f *fakeWebhookSvc) ForEvent(ctx context.Context, organizationID, event string) ([]webhooks.Webhook, error) {
	var out []webhooks.Webhook
	for _, h := range f.hooks {
		for _, e := range h.Events {
			if e == event {
				out = append(out, h)
			}
		}
	}
	return out, nil
}

type delivery struct {
	body      []byte
	signature string
	eventID   string
}

func TestProcessEventDeliversSignedPayload(t *testing.T) {
	received := make(chan delivery, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- delivery{
			body:      body,
			signature: r.Header.Get("X-Ledger-Signature"),
			eventID:   r.Header.Get("X-Ledger-Event-ID"),
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	secret := "super-secret-webhook-key"
	svc := &fakeWebhookSvc{hooks: []webhooks.Webhook{
		{ID: "w1", OrganizationID: "org1", URL: server.URL, Secret: secret,
			Events: []string{webhooks.EventEntryPosted}, Active: true},
	}}
	d := NewDispatcher(svc, zap.NewNop())

	event := Event{
		ID:             "evt1",
		OrganizationID: "org1",
		Type:           webhooks.EventEntryPosted,
		Payload:        map[string]string{"entry": "e1"},
		Timestamp:      time.Now().UTC(),
	}
	d.processEvent(context.Background(), event)

	select {
	case got := <-received:
		if got.eventID != "evt1" {
			t.Fatalf("unexpected event id header %q", got.eventID)
		}

		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(got.body)
		want := "sha256=" + hex.EncodeToString(mac.Sum(nil))
		if got.signature != want {
			t.Fatalf("signature mismatch:\n got %s\nwant %s", got.signature, want)
		}

		var decoded Event
		if err := json.Unmarshal(got.body, &decoded); err != nil {
			t.Fatalf("payload is not valid JSON: %v", err)
		}
		if decoded.Type != webhooks.EventEntryPosted || decoded.OrganizationID != "org1" {
			t.Fatalf("unexpected payload: %+v", decoded)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("webhook was not delivered")
	}
}

func TestProcessEventSkipsUnsubscribedHooks(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	svc := &fakeWebhookSvc{hooks: []webhooks.Webhook{
		{ID: "w1", OrganizationID: "org1", URL: server.URL, Secret: "s",
			Events: []string{webhooks.EventPeriodLocked}, Active: true},
	}}
	d := NewDispatcher(svc, zap.NewNop())

	d.processEvent(context.Background(), Event{
		ID: "evt1", OrganizationID: "org1", Type: webhooks.EventAuthzDenied,
	})

	time.Sleep(100 * time.Millisecond)
	if n := hits.Load(); n != 0 {
		t.Fatalf("unsubscribed hook received %d deliveries", n)
	}
}
