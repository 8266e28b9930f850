// Package trash implements soft deletion: a snapshot is written before any
// hard delete, and restoring recreates the entity from the snapshot. The
// snapshot write always completes before the delete; a crash between the two
// leaves an orphan trash entry, never a lost record.
package trash

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cabinet-legal/case-messaging/internal/model"
	"github.com/cabinet-legal/case-messaging/internal/store"
	"github.com/cabinet-legal/case-messaging/pkg/metrics"
)

// ErrRestoreConflict is returned when the original id is occupied again.
// The trash entry is preserved so the restore can be retried.
var ErrRestoreConflict = errors.New("original record already exists")

// Service snapshots entities into trash and restores them.
type Service struct {
	trash    store.TrashStore
	messages store.MessageStore
}

// NewService creates a trash service.
func NewService(trashStore store.TrashStore, messages store.MessageStore) *Service {
	return &Service{
		trash:    trashStore,
		messages: messages,
	}
}

// SnapshotMessage writes a trash entry for msg on behalf of actorID. It must
// succeed before the caller proceeds to the hard delete.
func (s *Service) SnapshotMessage(ctx context.Context, msg *model.Message, actorID string) (*model.TrashEntry, error) {
	snapshot, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	entry := &model.TrashEntry{
		ID:         uuid.Must(uuid.NewV7()).String(),
		ItemType:   model.TrashItemMessage,
		OriginalID: msg.ID,
		Snapshot:   snapshot,
		DeletedBy:  actorID,
		DeletedAt:  time.Now().UTC(),
	}
	if err := s.trash.SaveTrashEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to save trash entry: %w", err)
	}
	return entry, nil
}

// Restore recreates the snapshotted entity and removes the trash entry. A
// restore that finds the original id re-occupied fails with
// ErrRestoreConflict and keeps the entry.
func (s *Service) Restore(ctx context.Context, entryID string) (*model.Message, error) {
	entry, err := s.trash.GetTrashEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}

	switch entry.ItemType {
	case model.TrashItemMessage:
		msg, err := s.restoreMessage(ctx, entry)
		if err != nil {
			metrics.TrashRestoresTotal.WithLabelValues("conflict").Inc()
			return nil, err
		}
		metrics.TrashRestoresTotal.WithLabelValues("ok").Inc()
		return msg, nil
	}
	return nil, fmt.Errorf("unsupported trash item type %q", entry.ItemType)
}

// List returns trash entries. Admin-tier callers see everything; everyone
// else sees only their own deletions.
func (s *Service) List(ctx context.Context, actor model.User) ([]model.TrashEntry, error) {
	deletedBy := actor.ID
	if actor.Role.IsStaff() {
		deletedBy = ""
	}
	entries, err := s.trash.ListTrashEntries(ctx, deletedBy)
	if err != nil {
		return nil, fmt.Errorf("failed to list trash entries: %w", err)
	}
	if entries == nil {
		entries = []model.TrashEntry{}
	}
	return entries, nil
}

func (s *Service) restoreMessage(ctx context.Context, entry *model.TrashEntry) (*model.Message, error) {
	var msg model.Message
	if err := json.Unmarshal(entry.Snapshot, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	if _, err := s.messages.GetMessage(ctx, entry.OriginalID); err == nil {
		return nil, ErrRestoreConflict
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	if err := s.messages.SaveMessage(ctx, &msg); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrRestoreConflict
		}
		return nil, fmt.Errorf("failed to restore message: %w", err)
	}

	// The entry only disappears once the record is safely back.
	if err := s.trash.DeleteTrashEntry(ctx, entry.ID); err != nil {
		return nil, fmt.Errorf("failed to remove trash entry: %w", err)
	}
	return &msg, nil
}
