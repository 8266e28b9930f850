// Package notify creates per-recipient notifications for message events and
// triggers SMS dispatch. The whole fan-out is best-effort: it runs after the
// triggering write has committed, and no failure here ever propagates back
// to the caller of that write.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cabinet-legal/case-messaging/internal/directory"
	"github.com/cabinet-legal/case-messaging/internal/events"
	"github.com/cabinet-legal/case-messaging/internal/model"
	"github.com/cabinet-legal/case-messaging/internal/sms"
	"github.com/cabinet-legal/case-messaging/internal/store"
	"github.com/cabinet-legal/case-messaging/pkg/logger"
	"github.com/cabinet-legal/case-messaging/pkg/metrics"
)

// Fanout distributes notifications for message lifecycle events.
type Fanout struct {
	notifications store.NotificationStore
	directory     directory.Directory
	sms           sms.Dispatcher
	publisher     events.Publisher
	logger        *logger.Logger
}

// New creates a fan-out engine.
func New(
	notifications store.NotificationStore,
	dir directory.Directory,
	smsDispatcher sms.Dispatcher,
	publisher events.Publisher,
	log *logger.Logger,
) *Fanout {
	return &Fanout{
		notifications: notifications,
		directory:     dir,
		sms:           smsDispatcher,
		publisher:     publisher,
		logger:        log,
	}
}

// OnMessageCreated fans out notifications for a freshly persisted message.
// Every failure is logged and swallowed per recipient.
func (f *Fanout) OnMessageCreated(ctx context.Context, msg *model.Message) {
	switch msg.Category {
	case model.CategoryClientToStaff:
		// Every staff recipient is a principal addressee; nobody observes.
		for _, recipientID := range msg.Recipients {
			f.deliver(ctx, msg, recipientID, model.NotificationMessageReceived, receivedTitle(msg), msg.Subject)
		}

	case model.CategoryStaffToClient, model.CategoryStaffToStaff, model.CategoryPartnerToStaff:
		for _, recipientID := range msg.Recipients {
			f.deliver(ctx, msg, recipientID, model.NotificationMessageReceived, receivedTitle(msg), msg.Subject)
		}
		for _, copyID := range msg.CopyRecipients {
			f.deliver(ctx, msg, copyID, model.NotificationMessageInCopy, "You were copied on a message", msg.Subject)
		}
		for _, observer := range f.observerTargets(ctx, msg) {
			f.deliver(ctx, msg, observer.ID, model.NotificationMessageObserved, "New conversation in the office", msg.Subject)
		}

		if msg.Category == model.CategoryStaffToClient {
			f.dispatchSMS(ctx, msg)
		}
	}
}

// OnMessageRead fans out read notifications. Call it only on the first
// transition to read for readerID; idempotence is still enforced by the
// per-recipient dedup check.
func (f *Fanout) OnMessageRead(ctx context.Context, msg *model.Message, readerID string) {
	if msg.SenderID != readerID {
		// Keyed by reader: the sender hears about each reader's first read,
		// not only the first read overall.
		f.deliverFrom(ctx, msg, readerID, msg.SenderID, model.NotificationMessageRead, "Your message was read", msg.Subject)
	}

	// A client message read by one staff member informs the colleagues who
	// have not read it themselves yet.
	if msg.Category != model.CategoryClientToStaff {
		return
	}
	reader, err := f.directory.ResolveUser(ctx, readerID)
	if err != nil || !reader.Role.IsStaff() {
		return
	}
	staff, err := f.directory.ListActiveStaff(ctx)
	if err != nil {
		f.logger.Warn("failed to list staff for read fan-out", zap.Error(err))
		return
	}
	for _, colleague := range staff {
		if colleague.ID == readerID || colleague.ID == msg.SenderID {
			continue
		}
		if msg.IsReadBy(colleague.ID) {
			continue
		}
		f.deliver(ctx, msg, colleague.ID, model.NotificationMessageRead, "A client message was read by a colleague", msg.Subject)
	}
}

// observerTargets returns the active staff who are neither the sender nor
// already addressed. Kept as the single place deciding who observes a
// staff-initiated conversation, so the behavior can be gated without
// touching the rest of the fan-out.
func (f *Fanout) observerTargets(ctx context.Context, msg *model.Message) []model.User {
	staff, err := f.directory.ListActiveStaff(ctx)
	if err != nil {
		f.logger.Warn("failed to list staff for observer fan-out", zap.Error(err))
		return nil
	}

	var out []model.User
	for _, s := range staff {
		if s.ID == msg.SenderID || msg.IsRecipient(s.ID) || msg.IsCopied(s.ID) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// deliver creates one notification unless the (recipient, kind, message)
// tuple already holds one.
func (f *Fanout) deliver(ctx context.Context, msg *model.Message, recipientID string, kind model.NotificationKind, title, body string) {
	f.deliverFrom(ctx, msg, "", recipientID, kind, title, body)
}

// deliverFrom is deliver with an acting user in the dedup tuple: the same
// (recipient, kind, message) pair can hold one notification per actor. The
// check-then-create runs per recipient so the dedup guarantee stays easy to
// reason about.
func (f *Fanout) deliverFrom(ctx context.Context, msg *model.Message, actorID, recipientID string, kind model.NotificationKind, title, body string) {
	if recipientID == msg.SenderID && kind != model.NotificationMessageRead {
		// The acting user never hears about their own message.
		return
	}

	exists, err := f.notifications.NotificationExists(ctx, recipientID, kind, msg.ID, actorID)
	if err != nil {
		f.logFailure(msg, recipientID, kind, err)
		return
	}
	if exists {
		return
	}

	metadata := map[string]string{
		"message_id": msg.ID,
		"thread_id":  msg.ThreadID,
		"category":   string(msg.Category),
	}
	if actorID != "" {
		metadata["actor_id"] = actorID
	}

	n := &model.Notification{
		ID:          uuid.Must(uuid.NewV7()).String(),
		RecipientID: recipientID,
		Kind:        kind,
		Title:       title,
		Body:        body,
		Link:        "/threads/" + msg.ThreadID,
		Metadata:    metadata,
		CreatedAt:   time.Now().UTC(),
	}
	if err := f.notifications.SaveNotification(ctx, n); err != nil {
		f.logFailure(msg, recipientID, kind, err)
		return
	}

	metrics.NotificationsTotal.WithLabelValues(string(kind)).Inc()

	if err := f.publisher.NotificationCreated(ctx, n); err != nil {
		f.logger.Warn("failed to publish notification event",
			zap.String("notification_id", n.ID),
			zap.Error(err),
		)
	}
}

// dispatchSMS attempts SMS delivery to the single principal target of a
// staff-to-client message, when that client has a registered phone number.
func (f *Fanout) dispatchSMS(ctx context.Context, msg *model.Message) {
	if len(msg.Recipients) != 1 {
		return
	}
	target, err := f.directory.ResolveUser(ctx, msg.Recipients[0])
	if err != nil {
		f.logger.Warn("failed to resolve sms target",
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
		return
	}
	if target.Phone == "" {
		return
	}

	err = f.sms.SendNotificationSMS(ctx, target.Phone, sms.TemplateNewMessage, map[string]string{
		"subject": msg.Subject,
	})
	status := "ok"
	if err != nil {
		// SMS failures never affect notification creation.
		status = "error"
	}
	metrics.SMSDispatchTotal.WithLabelValues(status).Inc()
}

func (f *Fanout) logFailure(msg *model.Message, recipientID string, kind model.NotificationKind, err error) {
	metrics.FanoutFailuresTotal.Inc()
	f.logger.Warn(fmt.Sprintf("fan-out failed for recipient %s", recipientID),
		zap.String("message_id", msg.ID),
		zap.String("kind", string(kind)),
		zap.Error(err),
	)
}

func receivedTitle(msg *model.Message) string {
	switch msg.Category {
	case model.CategoryClientToStaff:
		return "New message from a client"
	case model.CategoryPartnerToStaff:
		return "New message from a partner"
	default:
		return "New message"
	}
}
