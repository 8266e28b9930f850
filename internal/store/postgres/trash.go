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

type trashRow struct {
	ID         string          `db:"id"`
	ItemType   string          `db:"item_type"`
	OriginalID string          `db:"original_id"`
	Snapshot   json.RawMessage `db:"snapshot"`
	DeletedBy  string          `db:"deleted_by"`
	DeletedAt  time.Time       `db:"deleted_at"`
}

func (row *trashRow) toModel() model.TrashEntry {
	return model.TrashEntry{
		ID:         row.ID,
		ItemType:   model.TrashItemType(row.ItemType),
		OriginalID: row.OriginalID,
		Snapshot:   row.Snapshot,
		DeletedBy:  row.DeletedBy,
		DeletedAt:  row.DeletedAt,
	}
}

// SaveTrashEntry implements store.TrashStore.
func (r *Repository) SaveTrashEntry(ctx context.Context, entry *model.TrashEntry) error {
	query, args, err := sq.Insert("trash_entries").
		Columns("id", "item_type", "original_id", "snapshot", "deleted_by", "deleted_at").
		Values(entry.ID, string(entry.ItemType), entry.OriginalID, []byte(entry.Snapshot), entry.DeletedBy, entry.DeletedAt).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build sql query: %w", err)
	}

	if _, err = r.connection.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return fmt.Errorf("failed to save trash entry: %w", err)
	}
	return nil
}

// GetTrashEntry implements store.TrashStore.
func (r *Repository) GetTrashEntry(ctx context.Context, id string) (*model.TrashEntry, error) {
	query, args, err := sq.Select("id", "item_type", "original_id", "snapshot", "deleted_by", "deleted_at").
		From("trash_entries").
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build sql query: %w", err)
	}

	var row trashRow
	if err := r.connection.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get trash entry: %w", err)
	}

	entry := row.toModel()
	return &entry, nil
}

// ListTrashEntries implements store.TrashStore. Newest first.
func (r *Repository) ListTrashEntries(ctx context.Context, deletedBy string) ([]model.TrashEntry, error) {
	builder := sq.Select("id", "item_type", "original_id", "snapshot", "deleted_by", "deleted_at").
		From("trash_entries").
		OrderBy("deleted_at DESC")

	if deletedBy != "" {
		builder = builder.Where(sq.Eq{"deleted_by": deletedBy})
	}

	query, args, err := builder.PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build sql query: %w", err)
	}

	var rows []trashRow
	if err := r.connection.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select trash entries: %w", err)
	}

	entries := make([]model.TrashEntry, len(rows))
	for i := range rows {
		entries[i] = rows[i].toModel()
	}
	return entries, nil
}

// DeleteTrashEntry implements store.TrashStore.
func (r *Repository) DeleteTrashEntry(ctx context.Context, id string) error {
	query, args, err := sq.Delete("trash_entries").
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build sql query: %w", err)
	}

	result, err := r.connection.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete trash entry: %w", err)
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
