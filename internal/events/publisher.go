package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/cabinet-legal/case-messaging/internal/model"
)

const (
	// StreamName is the JetStream stream carrying all messaging events.
	StreamName = "CASE_MESSAGING"

	// SubjectPrefix is the prefix for all messaging subjects.
	SubjectPrefix = "casemsg"
)

// Publisher is the event emission contract consumed by the messaging and
// fan-out layers.
type Publisher interface {
	MessageCreated(ctx context.Context, msg *model.Message) error
	NotificationCreated(ctx context.Context, n *model.Notification) error
	SMSRequested(ctx context.Context, req *SMSRequest) error
}

// SMSRequest is the payload handed to the SMS gateway consumer.
type SMSRequest struct {
	Phone        string            `json:"phone"`
	TemplateKind string            `json:"template_kind"`
	Vars         map[string]string `json:"vars,omitempty"`
	RequestedAt  time.Time         `json:"requested_at"`
}

// StreamPublisher publishes events to JetStream.
type StreamPublisher struct {
	client *Client
}

var _ Publisher = (*StreamPublisher)(nil)

// NewStreamPublisher creates a publisher over the given client.
func NewStreamPublisher(client *Client) *StreamPublisher {
	return &StreamPublisher{client: client}
}

// EnsureStream ensures the messaging stream exists.
func (p *StreamPublisher) EnsureStream(ctx context.Context) error {
	js := p.client.JetStream()

	if _, err := js.Stream(ctx, StreamName); err == nil {
		return nil
	}

	_, err := js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      90 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Description: "Message, notification and SMS dispatch events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// MessageCreated implements Publisher.
func (p *StreamPublisher) MessageCreated(ctx context.Context, msg *model.Message) error {
	subject := fmt.Sprintf("%s.message.created.%s", SubjectPrefix, msg.Category)
	return p.publish(ctx, subject, msg)
}

// NotificationCreated implements Publisher.
func (p *StreamPublisher) NotificationCreated(ctx context.Context, n *model.Notification) error {
	subject := fmt.Sprintf("%s.notification.created.%s", SubjectPrefix, n.Kind)
	return p.publish(ctx, subject, n)
}

// SMSRequested implements Publisher. The SMS gateway consumes this subject.
func (p *StreamPublisher) SMSRequested(ctx context.Context, req *SMSRequest) error {
	subject := fmt.Sprintf("%s.sms.requested", SubjectPrefix)
	return p.publish(ctx, subject, req)
}

func (p *StreamPublisher) publish(ctx context.Context, subject string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := p.client.JetStream().Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}
	return nil
}

// Noop is a Publisher that discards events, for tests and deployments
// without an event bus.
type Noop struct{}

var _ Publisher = Noop{}

// MessageCreated implements Publisher.
func (Noop) MessageCreated(ctx context.Context, msg *model.Message) error { return nil }

// NotificationCreated implements Publisher.
func (Noop) NotificationCreated(ctx context.Context, n *model.Notification) error { return nil }

// SMSRequested implements Publisher.
func (Noop) SMSRequested(ctx context.Context, req *SMSRequest) error { return nil }
