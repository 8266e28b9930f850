package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/cabinet-legal/case-messaging/internal/model"
	"github.com/cabinet-legal/case-messaging/internal/store"
)

type notificationRow struct {
	ID          string          `db:"id"`
	RecipientID string          `db:"recipient_id"`
	Kind        string          `db:"kind"`
	Title       string          `db:"title"`
	Body        string          `db:"body"`
	Link        string          `db:"link"`
	Metadata    json.RawMessage `db:"metadata"`
	MessageID   *string         `db:"message_id"`
	Read        bool            `db:"read"`
	CreatedAt   time.Time       `db:"created_at"`
}

func (row *notificationRow) toModel() (model.Notification, error) {
	n := model.Notification{
		ID:          row.ID,
		RecipientID: row.RecipientID,
		Kind:        model.NotificationKind(row.Kind),
		Title:       row.Title,
		Body:        row.Body,
		Link:        row.Link,
		Read:        row.Read,
		CreatedAt:   row.CreatedAt,
	}
	if len(row.Metadata) > 0 {
		if err := json.Unmarshal(row.Metadata, &n.Metadata); err != nil {
			return n, fmt.Errorf("failed to decode notification metadata: %w", err)
		}
	}
	return n, nil
}

// SaveNotification implements store.NotificationStore. The triggering message
// id and actor are denormalized into their own columns so the dedup check
// stays a single indexed lookup.
func (r *Repository) SaveNotification(ctx context.Context, n *model.Notification) error {
	metadata, err := json.Marshal(n.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode notification metadata: %w", err)
	}

	var messageID *string
	if id := n.MessageID(); id != "" {
		messageID = &id
	}

	query, args, err := sq.Insert("notifications").
		Columns("id", "recipient_id", "kind", "title", "body", "link", "metadata", "message_id", "actor_id", "read", "created_at").
		Values(n.ID, n.RecipientID, string(n.Kind), n.Title, n.Body, n.Link, metadata, messageID, n.ActorID(), n.Read, n.CreatedAt).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build sql query: %w", err)
	}

	if _, err = r.connection.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return fmt.Errorf("failed to save notification: %w", err)
	}
	return nil
}

// NotificationExists implements store.NotificationStore.
func (r *Repository) NotificationExists(ctx context.Context, recipientID string, kind model.NotificationKind, messageID, actorID string) (bool, error) {
	query, args, err := sq.Select("COUNT(*) > 0").
		From("notifications").
		Where(sq.Eq{
			"recipient_id": recipientID,
			"kind":         string(kind),
			"message_id":   messageID,
			"actor_id":     actorID,
		}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build sql query: %w", err)
	}

	var exists bool
	if err := r.connection.GetContext(ctx, &exists, query, args...); err != nil {
		return false, fmt.Errorf("failed to check notification existence: %w", err)
	}
	return exists, nil
}

// ListNotifications implements store.NotificationStore. Newest first.
func (r *Repository) ListNotifications(ctx context.Context, recipientID string, unreadOnly bool) ([]model.Notification, error) {
	builder := sq.Select("id", "recipient_id", "kind", "title", "body", "link", "metadata", "message_id", "read", "created_at").
		From("notifications").
		Where(sq.Eq{"recipient_id": recipientID}).
		OrderBy("created_at DESC", "id DESC")

	if unreadOnly {
		builder = builder.Where(sq.Eq{"read": false})
	}

	query, args, err := builder.PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build sql query: %w", err)
	}

	var rows []notificationRow
	if err := r.connection.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select notifications: %w", err)
	}

	notifications := make([]model.Notification, 0, len(rows))
	for i := range rows {
		n, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, nil
}

// CountUnreadNotifications implements store.NotificationStore.
func (r *Repository) CountUnreadNotifications(ctx context.Context, recipientID string) (int, error) {
	query, args, err := sq.Select("COUNT(*)").
		From("notifications").
		Where(sq.Eq{
			"recipient_id": recipientID,
			"read":         false,
		}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build sql query: %w", err)
	}

	var count int
	if err := r.connection.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// MarkNotificationRead implements store.NotificationStore.
func (r *Repository) MarkNotificationRead(ctx context.Context, id, recipientID string) (bool, error) {
	query, args, err := sq.Update("notifications").
		Set("read", true).
		Where(sq.Eq{
			"id":           id,
			"recipient_id": recipientID,
			"read":         false,
		}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build sql query: %w", err)
	}

	result, err := r.connection.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to mark notification read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		// Distinguish "already read" from "not yours / missing".
		exists, err := r.notificationExistsForRecipient(ctx, id, recipientID)
		if err != nil {
			return false, err
		}
		if !exists {
			return false, store.ErrNotFound
		}
	}
	return affected > 0, nil
}

// MarkAllNotificationsRead implements store.NotificationStore.
func (r *Repository) MarkAllNotificationsRead(ctx context.Context, recipientID string) (int, error) {
	query, args, err := sq.Update("notifications").
		Set("read", true).
		Where(sq.Eq{
			"recipient_id": recipientID,
			"read":         false,
		}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build sql query: %w", err)
	}

	result, err := r.connection.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return int(affected), nil
}

// DeleteNotification implements store.NotificationStore.
func (r *Repository) DeleteNotification(ctx context.Context, id, recipientID string) error {
	query, args, err := sq.Delete("notifications").
		Where(sq.Eq{
			"id":           id,
			"recipient_id": recipientID,
		}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build sql query: %w", err)
	}

	result, err := r.connection.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *Repository) notificationExistsForRecipient(ctx context.Context, id, recipientID string) (bool, error) {
	query, args, err := sq.Select("COUNT(*) > 0").
		From("notifications").
		Where(sq.Eq{
			"id":           id,
			"recipient_id": recipientID,
		}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build sql query: %w", err)
	}

	var exists bool
	if err := r.connection.GetContext(ctx, &exists, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check notification: %w", err)
	}
	return exists, nil
}
