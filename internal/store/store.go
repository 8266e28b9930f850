// Package store defines persistence contracts for messages, notifications
// and trash entries, with postgres and in-memory implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/cabinet-legal/case-messaging/internal/model"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrConflict is returned when a write would overwrite an existing record.
var ErrConflict = errors.New("record already exists")

// MessageStore persists messages and their per-user markers. Marker writes
// are conditional appends: adding a marker that already exists is a no-op,
// reported through the returned bool.
type MessageStore interface {
	SaveMessage(ctx context.Context, msg *model.Message) error
	GetMessage(ctx context.Context, id string) (*model.Message, error)
	// ListThread returns the messages of a thread in chronological order.
	ListThread(ctx context.Context, threadID string) ([]model.Message, error)
	// ListVisible returns every message where userID is sender, recipient or
	// in copy, in chronological order.
	ListVisible(ctx context.Context, userID string) ([]model.Message, error)
	AddReadMarker(ctx context.Context, messageID, userID string, at time.Time) (bool, error)
	RemoveReadMarker(ctx context.Context, messageID, userID string) (bool, error)
	AddArchiveMarker(ctx context.Context, messageID, userID string, at time.Time) (bool, error)
	RemoveArchiveMarker(ctx context.Context, messageID, userID string) (bool, error)
	DeleteMessage(ctx context.Context, id string) error
}

// NotificationStore persists per-recipient notifications.
type NotificationStore interface {
	SaveNotification(ctx context.Context, n *model.Notification) error
	// NotificationExists reports whether recipientID already holds a
	// notification of the given kind for the given message and actor. The
	// actor distinguishes per-user transitions (one read receipt per
	// reader); pass "" for kinds with no per-user identity.
	NotificationExists(ctx context.Context, recipientID string, kind model.NotificationKind, messageID, actorID string) (bool, error)
	ListNotifications(ctx context.Context, recipientID string, unreadOnly bool) ([]model.Notification, error)
	CountUnreadNotifications(ctx context.Context, recipientID string) (int, error)
	MarkNotificationRead(ctx context.Context, id, recipientID string) (bool, error)
	MarkAllNotificationsRead(ctx context.Context, recipientID string) (int, error)
	DeleteNotification(ctx context.Context, id, recipientID string) error
}

// TrashStore persists pre-delete snapshots.
type TrashStore interface {
	SaveTrashEntry(ctx context.Context, entry *model.TrashEntry) error
	GetTrashEntry(ctx context.Context, id string) (*model.TrashEntry, error)
	// ListTrashEntries returns entries deleted by the given user, or all
	// entries when deletedBy is empty.
	ListTrashEntries(ctx context.Context, deletedBy string) ([]model.TrashEntry, error)
	DeleteTrashEntry(ctx context.Context, id string) error
}

// Store aggregates the three stores a deployment provides together.
type Store interface {
	MessageStore
	NotificationStore
	TrashStore
}
