package notify

import (
	"context"
	"fmt"

	"github.com/cabinet-legal/case-messaging/internal/model"
	"github.com/cabinet-legal/case-messaging/internal/store"
)

// Service exposes a user's own notifications. A notification belongs to one
// recipient; every operation is scoped to the caller.
type Service struct {
	notifications store.NotificationStore
}

// NewService creates a notification service.
func NewService(notifications store.NotificationStore) *Service {
	return &Service{notifications: notifications}
}

// List returns the caller's notifications, newest first, with the unread count.
func (s *Service) List(ctx context.Context, userID string, unreadOnly bool) (*model.ListNotificationsResponse, error) {
	notifications, err := s.notifications.ListNotifications(ctx, userID, unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	unread, err := s.notifications.CountUnreadNotifications(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	if notifications == nil {
		notifications = []model.Notification{}
	}
	return &model.ListNotificationsResponse{
		Notifications: notifications,
		UnreadCount:   unread,
	}, nil
}

// MarkRead flips a single notification to read. Marking an already-read
// notification is a no-op.
func (s *Service) MarkRead(ctx context.Context, userID, notificationID string) error {
	_, err := s.notifications.MarkNotificationRead(ctx, notificationID, userID)
	return err
}

// MarkAllRead flips every unread notification of the caller and returns the
// count changed.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return s.notifications.MarkAllNotificationsRead(ctx, userID)
}

// Delete removes a notification owned by the caller.
func (s *Service) Delete(ctx context.Context, userID, notificationID string) error {
	return s.notifications.DeleteNotification(ctx, notificationID, userID)
}
