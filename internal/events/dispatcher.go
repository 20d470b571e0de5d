package events

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openclose/ledger/internal/audit"
	"github.com/openclose/ledger/internal/ledger"
	"github.com/openclose/ledger/internal/period"
	"github.com/openclose/ledger/internal/webhooks"
)

// Event is the envelope delivered to webhook endpoints.
type Event struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Type           string    `json:"type"`
	Payload        any       `json:"payload"`
	Timestamp      time.Time `json:"timestamp"`
}

// Dispatcher fans events out to an organization's registered webhooks. It
// implements the notifier hooks of the audit, period and ledger services.
// Delivery is asynchronous and best-effort.
type Dispatcher struct {
	webhookSvc webhooks.Service
	logger     *zap.Logger
	httpClient *http.Client
}

// NewDispatcher creates a new event dispatcher.
func NewDispatcher(webhookSvc webhooks.Service, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		webhookSvc: webhookSvc,
		logger:     logger,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// PublishDenial implements audit.Publisher.
func (d *Dispatcher) PublishDenial(ctx context.Context, denial audit.Denial) {
	d.publish(denial.OrganizationID, webhooks.EventAuthzDenied, denial)
}

// EntryPosted implements ledger.Notifier.
func (d *Dispatcher) EntryPosted(ctx context.Context, e ledger.JournalEntry) {
	d.publish(e.OrganizationID, webhooks.EventEntryPosted, e)
}

// PeriodLocked implements period.Notifier.
func (d *Dispatcher) PeriodLocked(ctx context.Context, p period.FiscalPeriod) {
	d.publish(p.OrganizationID, webhooks.EventPeriodLocked, p)
}

// publish detaches from the request context so delivery survives the request.
func (d *Dispatcher) publish(organizationID, eventType string, payload any) {
	event := Event{
		ID:             uuid.NewString(),
		OrganizationID: organizationID,
		Type:           eventType,
		Payload:        payload,
		Timestamp:      time.Now().UTC(),
	}
	go d.processEvent(context.Background(), event)
}

func (d *Dispatcher) processEvent(ctx context.Context, event Event) {
	hooks, err := d.webhookSvc.ForEvent(ctx, event.OrganizationID, event.Type)
	if err != nil {
		d.logger.Error("failed to fetch webhooks for event",
			zap.String("type", event.Type), zap.Error(err))
		return
	}
	if len(hooks) == 0 {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		d.logger.Error("failed to marshal event payload", zap.Error(err))
		return
	}

	for _, hook := range hooks {
		go d.send(ctx, hook, payload, event.ID)
	}
}

func (d *Dispatcher) send(ctx context.Context, hook webhooks.Webhook, payload []byte, eventID string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(payload))
	if err != nil {
		d.logger.Error("failed to create webhook request", zap.Error(err))
		return
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Ledger-Event-ID", eventID)

	mac := hmac.New(sha256.New, []byte(hook.Secret))
	mac.Write(payload)
	req.Header.Set("X-Ledger-Signature", "sha256="+hex.EncodeToString(mac.Sum(nil)))

	resp, err := d.httpClient.Do(req)
	if err != nil {
		d.logger.Error("webhook delivery failed", zap.String("url", hook.URL), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		d.logger.Warn("webhook received non-2xx response",
			zap.String("url", hook.URL),
			zap.Int("status", resp.StatusCode))
	}
}
