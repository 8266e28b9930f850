package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cabinet-legal/case-messaging/internal/model"
)

// Memory is an in-memory Store used in tests and local development. All
// methods copy on the way in and out so callers never share slices with the
// store.
type Memory struct {
	mu            sync.RWMutex
	messages      map[string]*model.Message
	notifications map[string]*model.Notification
	trash         map[string]*model.TrashEntry
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		messages:      make(map[string]*model.Message),
		notifications: make(map[string]*model.Notification),
		trash:         make(map[string]*model.TrashEntry),
	}
}

// Ping always succeeds; the in-memory store is process-local.
func (s *Memory) Ping() error {
	return nil
}

func copyMessage(m *model.Message) *model.Message {
	out := *m
	out.Recipients = append([]string(nil), m.Recipients...)
	out.CopyRecipients = append([]string(nil), m.CopyRecipients...)
	out.Attachments = append([]string(nil), m.Attachments...)
	out.ReadBy = append([]model.Marker(nil), m.ReadBy...)
	out.ArchivedBy = append([]model.Marker(nil), m.ArchivedBy...)
	return &out
}

// SaveMessage implements MessageStore.
func (s *Memory) SaveMessage(ctx context.Context, msg *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[msg.ID]; ok {
		return ErrConflict
	}
	s.messages[msg.ID] = copyMessage(msg)
	return nil
}

// GetMessage implements MessageStore.
func (s *Memory) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyMessage(msg), nil
}

// ListThread implements MessageStore.
func (s *Memory) ListThread(ctx context.Context, threadID string) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Message
	for _, msg := range s.messages {
		if msg.ThreadID == threadID {
			out = append(out, *copyMessage(msg))
		}
	}
	sortChronological(out)
	return out, nil
}

// ListVisible implements MessageStore.
func (s *Memory) ListVisible(ctx context.Context, userID string) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Message
	for _, msg := range s.messages {
		if msg.Involves(userID) {
			out = append(out, *copyMessage(msg))
		}
	}
	sortChronological(out)
	return out, nil
}

// AddReadMarker implements MessageStore.
func (s *Memory) AddReadMarker(ctx context.Context, messageID, userID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[messageID]
	if !ok {
		return false, ErrNotFound
	}
	if msg.IsReadBy(userID) {
		return false, nil
	}
	msg.ReadBy = append(msg.ReadBy, model.Marker{UserID: userID, At: at})
	return true, nil
}

// RemoveReadMarker implements MessageStore.
func (s *Memory) RemoveReadMarker(ctx context.Context, messageID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[messageID]
	if !ok {
		return false, ErrNotFound
	}
	msg.ReadBy, ok = removeMarker(msg.ReadBy, userID)
	return ok, nil
}

// AddArchiveMarker implements MessageStore.
func (s *Memory) AddArchiveMarker(ctx context.Context, messageID, userID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[messageID]
	if !ok {
		return false, ErrNotFound
	}
	if msg.IsArchivedBy(userID) {
		return false, nil
	}
	msg.ArchivedBy = append(msg.ArchivedBy, model.Marker{UserID: userID, At: at})
	return true, nil
}

// RemoveArchiveMarker implements MessageStore.
func (s *Memory) RemoveArchiveMarker(ctx context.Context, messageID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[messageID]
	if !ok {
		return false, ErrNotFound
	}
	msg.ArchivedBy, ok = removeMarker(msg.ArchivedBy, userID)
	return ok, nil
}

// DeleteMessage implements MessageStore.
func (s *Memory) DeleteMessage(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[id]; !ok {
		return ErrNotFound
	}
	delete(s.messages, id)
	return nil
}

// SaveNotification implements NotificationStore.
func (s *Memory) SaveNotification(ctx context.Context, n *model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notifications[n.ID]; ok {
		return ErrConflict
	}
	stored := *n
	if n.Metadata != nil {
		stored.Metadata = make(map[string]string, len(n.Metadata))
		for k, v := range n.Metadata {
			stored.Metadata[k] = v
		}
	}
	s.notifications[n.ID] = &stored
	return nil
}

// NotificationExists implements NotificationStore.
func (s *Memory) NotificationExists(ctx context.Context, recipientID string, kind model.NotificationKind, messageID, actorID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.notifications {
		if n.RecipientID == recipientID && n.Kind == kind && n.MessageID() == messageID && n.ActorID() == actorID {
			return true, nil
		}
	}
	return false, nil
}

// ListNotifications implements NotificationStore. Newest first.
func (s *Memory) ListNotifications(ctx context.Context, recipientID string, unreadOnly bool) ([]model.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Notification
	for _, n := range s.notifications {
		if n.RecipientID != recipientID {
			continue
		}
		if unreadOnly && n.Read {
			continue
		}
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// CountUnreadNotifications implements NotificationStore.
func (s *Memory) CountUnreadNotifications(ctx context.Context, recipientID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, n := range s.notifications {
		if n.RecipientID == recipientID && !n.Read {
			count++
		}
	}
	return count, nil
}

// MarkNotificationRead implements NotificationStore.
func (s *Memory) MarkNotificationRead(ctx context.Context, id, recipientID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.RecipientID != recipientID {
		return false, ErrNotFound
	}
	if n.Read {
		return false, nil
	}
	n.Read = true
	return true, nil
}

// MarkAllNotificationsRead implements NotificationStore.
func (s *Memory) MarkAllNotificationsRead(ctx context.Context, recipientID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, n := range s.notifications {
		if n.RecipientID == recipientID && !n.Read {
			n.Read = true
			count++
		}
	}
	return count, nil
}

// DeleteNotification implements NotificationStore.
func (s *Memory) DeleteNotification(ctx context.Context, id, recipientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.RecipientID != recipientID {
		return ErrNotFound
	}
	delete(s.notifications, id)
	return nil
}

// SaveTrashEntry implements TrashStore.
func (s *Memory) SaveTrashEntry(ctx context.Context, entry *model.TrashEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.trash[entry.ID]; ok {
		return ErrConflict
	}
	stored := *entry
	s.trash[entry.ID] = &stored
	return nil
}

// GetTrashEntry implements TrashStore.
func (s *Memory) GetTrashEntry(ctx context.Context, id string) (*model.TrashEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.trash[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *entry
	return &out, nil
}

// ListTrashEntries implements TrashStore. Newest first.
func (s *Memory) ListTrashEntries(ctx context.Context, deletedBy string) ([]model.TrashEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.TrashEntry
	for _, entry := range s.trash {
		if deletedBy != "" && entry.DeletedBy != deletedBy {
			continue
		}
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DeletedAt.After(out[j].DeletedAt)
	})
	return out, nil
}

// DeleteTrashEntry implements TrashStore.
func (s *Memory) DeleteTrashEntry(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.trash[id]; !ok {
		return ErrNotFound
	}
	delete(s.trash, id)
	return nil
}

func sortChronological(msgs []model.Message) {
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
}

func removeMarker(markers []model.Marker, userID string) ([]model.Marker, bool) {
	for i, m := range markers {
		if m.UserID == userID {
			return append(markers[:i], markers[i+1:]...), true
		}
	}
	return markers, false
}
