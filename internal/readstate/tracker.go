// Package readstate tracks per-user read and archive markers on messages.
// All operations are idempotent: re-marking never produces a second marker,
// and removing an absent marker is a no-op. Concurrent calls for the same
// (message, user) pair are safe because the store's marker write is a single
// conditional append.
package readstate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cabinet-legal/case-messaging/internal/model"
	"github.com/cabinet-legal/case-messaging/internal/store"
)

// Tracker applies read/archive transitions against the message store.
type Tracker struct {
	store store.MessageStore
}

// New creates a tracker over the given store.
func New(messages store.MessageStore) *Tracker {
	return &Tracker{store: messages}
}

// MarkRead appends a read marker for userID unless one exists. It reports
// whether the message changed state and returns the updated marker list.
func (t *Tracker) MarkRead(ctx context.Context, messageID, userID string) (bool, []model.Marker, error) {
	changed, err := t.store.AddReadMarker(ctx, messageID, userID, time.Now().UTC())
	if err != nil {
		return false, nil, fmt.Errorf("failed to mark read: %w", err)
	}
	msg, err := t.store.GetMessage(ctx, messageID)
	if err != nil {
		return changed, nil, fmt.Errorf("failed to reload markers: %w", err)
	}
	return changed, msg.ReadBy, nil
}

// MarkUnread removes any read marker for userID. Absent markers are a no-op.
func (t *Tracker) MarkUnread(ctx context.Context, messageID, userID string) (bool, error) {
	changed, err := t.store.RemoveReadMarker(ctx, messageID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to mark unread: %w", err)
	}
	return changed, nil
}

// IsRead reports whether userID holds a read marker on the message.
func (t *Tracker) IsRead(ctx context.Context, messageID, userID string) (bool, error) {
	msg, err := t.store.GetMessage(ctx, messageID)
	if err != nil {
		return false, err
	}
	return msg.IsReadBy(userID), nil
}

// BatchMarkRead marks every listed message read for userID, silently
// skipping ids the user is not involved in (not sender, recipient or copy)
// and ids that do not exist. It returns the ids that actually changed state;
// already-read messages do not appear.
func (t *Tracker) BatchMarkRead(ctx context.Context, messageIDs []string, userID string) ([]string, error) {
	var updated []string
	for _, id := range messageIDs {
		msg, err := t.store.GetMessage(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return updated, fmt.Errorf("failed to load message %s: %w", id, err)
		}
		if !msg.Involves(userID) {
			continue
		}
		changed, err := t.store.AddReadMarker(ctx, id, userID, time.Now().UTC())
		if err != nil {
			return updated, fmt.Errorf("failed to mark read: %w", err)
		}
		if changed {
			updated = append(updated, id)
		}
	}
	return updated, nil
}

// Archive appends an archive marker for userID. Archive state is independent
// of read state: any combination of the two is valid.
func (t *Tracker) Archive(ctx context.Context, messageID, userID string) (bool, error) {
	changed, err := t.store.AddArchiveMarker(ctx, messageID, userID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to archive: %w", err)
	}
	return changed, nil
}

// Unarchive removes any archive marker for userID.
func (t *Tracker) Unarchive(ctx context.Context, messageID, userID string) (bool, error) {
	changed, err := t.store.RemoveArchiveMarker(ctx, messageID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to unarchive: %w", err)
	}
	return changed, nil
}

// IsArchived reports whether userID has archived the message.
func (t *Tracker) IsArchived(ctx context.Context, messageID, userID string) (bool, error) {
	msg, err := t.store.GetMessage(ctx, messageID)
	if err != nil {
		return false, err
	}
	return msg.IsArchivedBy(userID), nil
}
