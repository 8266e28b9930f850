// Package messaging orchestrates the message lifecycle: route, persist,
// assemble threads, track read state, fan out notifications, and move
// deleted messages through trash.
//
// Message creation is an explicit two-phase operation: the message record is
// committed first, then the non-transactional side effects (notifications,
// SMS, events) run in an error-swallowing phase. A fan-out failure never
// rolls back or fails a create.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cabinet-legal/case-messaging/internal/events"
	"github.com/cabinet-legal/case-messaging/internal/model"
	"github.com/cabinet-legal/case-messaging/internal/notify"
	"github.com/cabinet-legal/case-messaging/internal/readstate"
	"github.com/cabinet-legal/case-messaging/internal/routing"
	"github.com/cabinet-legal/case-messaging/internal/store"
	"github.com/cabinet-legal/case-messaging/internal/thread"
	"github.com/cabinet-legal/case-messaging/internal/trash"
	"github.com/cabinet-legal/case-messaging/pkg/logger"
	"github.com/cabinet-legal/case-messaging/pkg/metrics"
)

// Service composes the routing policy, read tracker, thread projection,
// fan-out engine and trash service into the message lifecycle.
type Service struct {
	messages  store.MessageStore
	routing   *routing.Policy
	tracker   *readstate.Tracker
	fanout    *notify.Fanout
	trash     *trash.Service
	publisher events.Publisher
	logger    *logger.Logger
}

// New creates the messaging service.
func New(
	messages store.MessageStore,
	routingPolicy *routing.Policy,
	tracker *readstate.Tracker,
	fanout *notify.Fanout,
	trashService *trash.Service,
	publisher events.Publisher,
	log *logger.Logger,
) *Service {
	return &Service{
		messages:  messages,
		routing:   routingPolicy,
		tracker:   tracker,
		fanout:    fanout,
		trash:     trashService,
		publisher: publisher,
		logger:    log,
	}
}

// Create validates, routes and persists a message, then runs the best-effort
// fan-out phase. Routing failures abort before anything is written.
func (s *Service) Create(ctx context.Context, sender model.User, req *model.CreateMessageRequest) (*model.CreateMessageResponse, error) {
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		return nil, ErrSubjectRequired
	}
	body := strings.TrimSpace(req.Body)
	if body == "" {
		return nil, ErrBodyRequired
	}

	var parent *model.Message
	if req.ParentID != "" {
		p, err := s.messages.GetMessage(ctx, req.ParentID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, ErrParentNotFound
			}
			return nil, fmt.Errorf("failed to load parent: %w", err)
		}
		if !p.Involves(sender.ID) {
			return nil, ErrParentNotFound
		}
		parent = p
	}

	caseRef := strings.TrimSpace(req.CaseRef)
	if parent != nil && caseRef == "" && parent.CaseRef != nil {
		caseRef = *parent.CaseRef
	}
	if parent == nil && caseRef == "" {
		return nil, ErrCaseRefRequired
	}

	decision, err := s.route(ctx, sender, parent, req, caseRef)
	if err != nil {
		return nil, err
	}

	msg := &model.Message{
		ID:             uuid.Must(uuid.NewV7()).String(),
		SenderID:       sender.ID,
		Recipients:     decision.Recipients,
		CopyRecipients: decision.CopyRecipients,
		Category:       decision.Category,
		Subject:        subject,
		Body:           body,
		Attachments:    req.Attachments,
		CreatedAt:      time.Now().UTC(),
	}
	// A root message anchors its own thread.
	if parent != nil {
		msg.ThreadID = parent.ThreadID
		msg.ParentID = &parent.ID
	} else {
		msg.ThreadID = msg.ID
	}
	// A reply without an inheritable case reference is stored without one.
	// Case-less side conversations are permitted, not rejected.
	if caseRef != "" {
		msg.CaseRef = &caseRef
	}

	if err := s.messages.SaveMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to persist message: %w", err)
	}

	// Commit done; everything past this point is best-effort.
	s.afterCreate(ctx, msg)

	return &model.CreateMessageResponse{
		ID:       msg.ID,
		ThreadID: msg.ThreadID,
		Category: msg.Category,
	}, nil
}

// route resolves the recipient set. A staff reply without an explicit target
// answers the parent: the parent's sender becomes the target, and a reply to
// one's own message inherits the parent's addressing unchanged (which may
// leave the recipient set empty). caseRef is the resolved reference
// including inheritance, so a partner reply is re-checked against the
// transmission registry even when the request carries no reference itself.
func (s *Service) route(ctx context.Context, sender model.User, parent *model.Message, req *model.CreateMessageRequest, caseRef string) (*routing.Decision, error) {
	targetID := req.TargetID
	if parent != nil && targetID == "" && sender.Role.IsStaff() {
		if parent.SenderID != sender.ID {
			targetID = parent.SenderID
		} else {
			return &routing.Decision{
				Recipients:     parent.Recipients,
				CopyRecipients: parent.CopyRecipients,
				Category:       parent.Category,
			}, nil
		}
	}
	return s.routing.Route(ctx, sender, targetID, req.Copy, caseRef)
}

func (s *Service) afterCreate(ctx context.Context, msg *model.Message) {
	metrics.MessagesTotal.WithLabelValues(string(msg.Category)).Inc()

	if err := s.publisher.MessageCreated(ctx, msg); err != nil {
		s.logger.Warn("failed to publish message event",
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
	}
	s.fanout.OnMessageCreated(ctx, msg)
}

// Inbox builds the caller's thread listing per the ordering contract: unread
// threads first, then most recent activity.
func (s *Service) Inbox(ctx context.Context, user model.User, filter model.InboxFilter) (*model.ListInboxResponse, error) {
	visible, err := s.messages.ListVisible(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}

	threads := thread.BuildInbox(visible, user.ID, filter)
	summaries := make([]model.ThreadSummary, len(threads))
	for i, t := range threads {
		summaries[i] = thread.Summarize(t)
	}
	return &model.ListInboxResponse{
		Threads: summaries,
		Total:   len(summaries),
	}, nil
}

// ViewThread returns the full chronological thread and, as a documented side
// effect, marks every message addressed to the caller as read. Use
// PeekThread for the side-effect-free view.
func (s *Service) ViewThread(ctx context.Context, user model.User, threadID string) (*model.Thread, error) {
	msgs, err := s.loadThread(ctx, user, threadID)
	if err != nil {
		return nil, err
	}

	for i := range msgs {
		if !msgs[i].IsAddressedTo(user.ID) || msgs[i].IsReadBy(user.ID) {
			continue
		}
		changed, _, err := s.tracker.MarkRead(ctx, msgs[i].ID, user.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to mark read: %w", err)
		}
		if changed {
			s.fanout.OnMessageRead(ctx, &msgs[i], user.ID)
		}
	}

	// Reload so the returned markers reflect the reads just applied.
	msgs, err = s.messages.ListThread(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload thread: %w", err)
	}
	return projectOne(msgs, user.ID, threadID)
}

// PeekThread returns the thread without touching read state.
func (s *Service) PeekThread(ctx context.Context, user model.User, threadID string) (*model.Thread, error) {
	msgs, err := s.loadThread(ctx, user, threadID)
	if err != nil {
		return nil, err
	}
	return projectOne(msgs, user.ID, threadID)
}

// MarkRead marks a single message read for the caller and fans out the read
// notification on the first transition.
func (s *Service) MarkRead(ctx context.Context, user model.User, messageID string) ([]model.Marker, error) {
	msg, err := s.authorizedMessage(ctx, user.ID, messageID)
	if err != nil {
		return nil, err
	}

	changed, markers, err := s.tracker.MarkRead(ctx, messageID, user.ID)
	if err != nil {
		return nil, err
	}
	if changed {
		s.fanout.OnMessageRead(ctx, msg, user.ID)
	}
	return markers, nil
}

// MarkUnread removes the caller's read marker.
func (s *Service) MarkUnread(ctx context.Context, user model.User, messageID string) error {
	if _, err := s.authorizedMessage(ctx, user.ID, messageID); err != nil {
		return err
	}
	_, err := s.tracker.MarkUnread(ctx, messageID, user.ID)
	return err
}

// BatchMarkRead marks all listed messages the caller may see, returning the
// count that changed. Unauthorized and unknown ids are skipped silently.
func (s *Service) BatchMarkRead(ctx context.Context, user model.User, messageIDs []string) (int, error) {
	changed, err := s.tracker.BatchMarkRead(ctx, messageIDs, user.ID)
	if err != nil {
		return len(changed), err
	}
	for _, id := range changed {
		msg, err := s.messages.GetMessage(ctx, id)
		if err != nil {
			s.logger.Warn("failed to reload message for read fan-out",
				zap.String("message_id", id),
				zap.Error(err),
			)
			continue
		}
		s.fanout.OnMessageRead(ctx, msg, user.ID)
	}
	return len(changed), nil
}

// Archive hides the message from the caller's inbox without affecting
// anyone else.
func (s *Service) Archive(ctx context.Context, user model.User, messageID string) error {
	if _, err := s.authorizedMessage(ctx, user.ID, messageID); err != nil {
		return err
	}
	_, err := s.tracker.Archive(ctx, messageID, user.ID)
	return err
}

// Unarchive reverses Archive.
func (s *Service) Unarchive(ctx context.Context, user model.User, messageID string) error {
	if _, err := s.authorizedMessage(ctx, user.ID, messageID); err != nil {
		return err
	}
	_, err := s.tracker.Unarchive(ctx, messageID, user.ID)
	return err
}

// Delete moves a message to trash and hard-deletes it. Only the sender or an
// admin-tier user may delete. The trash snapshot is written and confirmed
// before the delete; if the snapshot fails, the delete is aborted.
func (s *Service) Delete(ctx context.Context, actor model.User, messageID string) error {
	msg, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrMessageNotFound
		}
		return fmt.Errorf("failed to load message: %w", err)
	}

	if msg.SenderID != actor.ID && !actor.Role.IsStaff() {
		return ErrNotAllowed
	}

	if _, err := s.trash.SnapshotMessage(ctx, msg, actor.ID); err != nil {
		return fmt.Errorf("delete aborted, snapshot failed: %w", err)
	}

	if err := s.messages.DeleteMessage(ctx, messageID); err != nil {
		// Snapshot exists but the record survived: safe to retry, no data lost.
		return fmt.Errorf("failed to delete message: %w", err)
	}

	metrics.MessagesDeletedTotal.Inc()
	return nil
}

func (s *Service) authorizedMessage(ctx context.Context, userID, messageID string) (*model.Message, error) {
	msg, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to load message: %w", err)
	}
	if !msg.Involves(userID) {
		return nil, ErrNotAllowed
	}
	return msg, nil
}

// loadThread fetches a thread's messages and checks the caller is involved
// in at least one of them.
func (s *Service) loadThread(ctx context.Context, user model.User, threadID string) ([]model.Message, error) {
	msgs, err := s.messages.ListThread(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load thread: %w", err)
	}
	if len(msgs) == 0 {
		return nil, ErrThreadNotFound
	}

	allowed := false
	for i := range msgs {
		if msgs[i].Involves(user.ID) {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, ErrThreadNotFound
	}
	return msgs, nil
}

func projectOne(msgs []model.Message, userID, threadID string) (*model.Thread, error) {
	threads := thread.Project(msgs, userID)
	for i := range threads {
		if threads[i].ThreadID == threadID {
			return &threads[i], nil
		}
	}
	return nil, ErrThreadNotFound
}
