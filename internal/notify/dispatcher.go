// Package notify turns request events into emails for the admin and the
// requester. Delivery is best-effort: nothing here is retried.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tidwall/gjson"

	"github.com/illegalcall/thumbdesk/internal/metrics"
	"github.com/illegalcall/thumbdesk/internal/models"
)

// ErrUnknownEvent is returned for payloads whose type has no handler.
var ErrUnknownEvent = errors.New("unknown event type")

// Dispatcher routes events to the right notification.
type Dispatcher struct {
	mailer     Mailer
	adminEmail string
	adminPhone string
	logger     *slog.Logger
}

func NewDispatcher(mailer Mailer, adminEmail, adminPhone string, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{mailer: mailer, adminEmail: adminEmail, adminPhone: adminPhone, logger: logger}
}

// HandleMessage decodes a raw event as consumed from Kafka and dispatches it.
func (d *Dispatcher) HandleMessage(ctx context.Context, payload []byte) error {
	if !gjson.ValidBytes(payload) {
		return fmt.Errorf("invalid event payload")
	}
	eventType := gjson.GetBytes(payload, "type").String()
	switch eventType {
	case models.EventRequestCreated, models.EventRequestCompleted:
	default:
		d.logger.Warn("Skipping event with unknown type", "type", eventType)
		return fmt.Errorf("%w: %q", ErrUnknownEvent, eventType)
	}

	var ev models.RequestEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("failed to parse event: %w", err)
	}
	return d.Handle(ctx, ev)
}

// Handle delivers the notifications for one event.
func (d *Dispatcher) Handle(ctx context.Context, ev models.RequestEvent) error {
	var err error
	switch ev.Type {
	case models.EventRequestCreated:
		err = d.requestCreated(ctx, ev)
	case models.EventRequestCompleted:
		err = d.requestCompleted(ctx, ev)
	default:
		d.logger.Warn("Skipping event with unknown type", "type", ev.Type)
		return fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Type)
	}
	metrics.RecordNotification(ev.Type, err == nil)
	if err != nil {
		d.logger.Error("Notification failed", "type", ev.Type, "request_id", ev.RequestID, "error", err)
	}
	return err
}

func (d *Dispatcher) requestCreated(ctx context.Context, ev models.RequestEvent) error {
	if link := WhatsAppLink(d.adminPhone, ev); link != "" {
		d.logger.Info("WhatsApp notification link", "request_id", ev.RequestID, "link", link)
	}
	if d.adminEmail == "" {
		d.logger.Warn("Admin email not configured; skipping new request email", "request_id", ev.RequestID)
		return nil
	}
	email, err := AdminEmail(d.adminEmail, ev)
	if err != nil {
		return err
	}
	if err := d.mailer.Send(ctx, email); err != nil {
		return err
	}
	d.logger.Info("Admin notified of new request", "request_id", ev.RequestID)
	return nil
}

func (d *Dispatcher) requestCompleted(ctx context.Context, ev models.RequestEvent) error {
	if ev.UserEmail == "" {
		d.logger.Info("Requester email unknown; skipping completion email", "request_id", ev.RequestID)
		return nil
	}
	email, err := CompletedEmail(ev)
	if err != nil {
		return err
	}
	if err := d.mailer.Send(ctx, email); err != nil {
		return err
	}
	d.logger.Info("Requester notified of completed request", "request_id", ev.RequestID)
	return nil
}
