// Package sms defines the SMS dispatch contract. Delivery is handled by an
// external gateway; from this core's perspective dispatch is fire-and-forget
// and failures are logged, never surfaced.
package sms

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cabinet-legal/case-messaging/internal/events"
	"github.com/cabinet-legal/case-messaging/pkg/logger"
)

// Template kinds understood by the gateway.
const (
	TemplateNewMessage = "new_message"
)

// Dispatcher sends a notification SMS.
type Dispatcher interface {
	SendNotificationSMS(ctx context.Context, phone, templateKind string, vars map[string]string) error
}

// EventDispatcher hands SMS requests to the gateway over the event bus.
type EventDispatcher struct {
	publisher events.Publisher
	logger    *logger.Logger
}

var _ Dispatcher = (*EventDispatcher)(nil)

// NewEventDispatcher creates a dispatcher publishing to the event bus.
func NewEventDispatcher(publisher events.Publisher, log *logger.Logger) *EventDispatcher {
	return &EventDispatcher{
		publisher: publisher,
		logger:    log,
	}
}

// SendNotificationSMS implements Dispatcher.
func (d *EventDispatcher) SendNotificationSMS(ctx context.Context, phone, templateKind string, vars map[string]string) error {
	err := d.publisher.SMSRequested(ctx, &events.SMSRequest{
		Phone:        phone,
		TemplateKind: templateKind,
		Vars:         vars,
		RequestedAt:  time.Now().UTC(),
	})
	if err != nil {
		d.logger.Warn("sms dispatch failed", zap.String("template", templateKind), zap.Error(err))
		return err
	}
	return nil
}

// Noop discards SMS requests, for tests and deployments without a gateway.
type Noop struct{}

var _ Dispatcher = Noop{}

// SendNotificationSMS implements Dispatcher.
func (Noop) SendNotificationSMS(ctx context.Context, phone, templateKind string, vars map[string]string) error {
	return nil
}
