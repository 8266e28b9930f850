package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/cabinet-legal/case-messaging/internal/model"
	"github.com/cabinet-legal/case-messaging/internal/store"
)

const (
	markerKindRead    = "read"
	markerKindArchive = "archive"
)

type messageRow struct {
	ID             string         `db:"id"`
	ThreadID       string         `db:"thread_id"`
	ParentID       *string        `db:"parent_id"`
	SenderID       string         `db:"sender_id"`
	Recipients     pq.StringArray `db:"recipients"`
	CopyRecipients pq.StringArray `db:"copy_recipients"`
	Category       string         `db:"category"`
	Subject        string         `db:"subject"`
	Body           string         `db:"body"`
	Attachments    pq.StringArray `db:"attachments"`
	CaseRef        *string        `db:"case_ref"`
	CreatedAt      time.Time      `db:"created_at"`
}

type markerRow struct {
	MessageID string    `db:"message_id"`
	UserID    string    `db:"user_id"`
	Kind      string    `db:"kind"`
	MarkedAt  time.Time `db:"marked_at"`
}

func (row *messageRow) toModel() model.Message {
	return model.Message{
		ID:             row.ID,
		ThreadID:       row.ThreadID,
		ParentID:       row.ParentID,
		SenderID:       row.SenderID,
		Recipients:     []string(row.Recipients),
		CopyRecipients: []string(row.CopyRecipients),
		Category:       model.Category(row.Category),
		Subject:        row.Subject,
		Body:           row.Body,
		Attachments:    []string(row.Attachments),
		CaseRef:        row.CaseRef,
		CreatedAt:      row.CreatedAt,
	}
}

var messageColumns = []string{
	"id", "thread_id", "parent_id", "sender_id", "recipients", "copy_recipients",
	"category", "subject", "body", "attachments", "case_ref", "created_at",
}

// SaveMessage implements store.MessageStore.
func (r *Repository) SaveMessage(ctx context.Context, msg *model.Message) error {
	query, args, err := sq.Insert("messages").
		Columns(messageColumns...).
		Values(
			msg.ID, msg.ThreadID, msg.ParentID, msg.SenderID,
			pq.StringArray(msg.Recipients), pq.StringArray(msg.CopyRecipients),
			string(msg.Category), msg.Subject, msg.Body,
			pq.StringArray(msg.Attachments), msg.CaseRef, msg.CreatedAt,
		).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build sql query: %w", err)
	}

	if _, err = r.connection.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return fmt.Errorf("failed to save message: %w", err)
	}

	// Markers are normally empty on insert; a restore from trash carries the
	// snapshot's marker lists.
	for _, marker := range msg.ReadBy {
		if _, err := r.AddReadMarker(ctx, msg.ID, marker.UserID, marker.At); err != nil {
			return err
		}
	}
	for _, marker := range msg.ArchivedBy {
		if _, err := r.AddArchiveMarker(ctx, msg.ID, marker.UserID, marker.At); err != nil {
			return err
		}
	}

	return nil
}

// GetMessage implements store.MessageStore.
func (r *Repository) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	query, args, err := sq.Select(messageColumns...).
		From("messages").
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build sql query: %w", err)
	}

	var row messageRow
	if err := r.connection.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	msgs := []model.Message{row.toModel()}
	if err := r.attachMarkers(ctx, msgs); err != nil {
		return nil, err
	}
	return &msgs[0], nil
}

// ListThread implements store.MessageStore.
func (r *Repository) ListThread(ctx context.Context, threadID string) ([]model.Message, error) {
	builder := sq.Select(messageColumns...).
		From("messages").
		Where(sq.Eq{"thread_id": threadID}).
		OrderBy("created_at ASC", "id ASC")

	return r.selectMessages(ctx, builder)
}

// ListVisible implements store.MessageStore.
func (r *Repository) ListVisible(ctx context.Context, userID string) ([]model.Message, error) {
	builder := sq.Select(messageColumns...).
		From("messages").
		Where(sq.Or{
			sq.Eq{"sender_id": userID},
			sq.Expr("? = ANY(recipients)", userID),
			sq.Expr("? = ANY(copy_recipients)", userID),
		}).
		OrderBy("created_at ASC", "id ASC")

	return r.selectMessages(ctx, builder)
}

func (r *Repository) selectMessages(ctx context.Context, builder sq.SelectBuilder) ([]model.Message, error) {
	query, args, err := builder.PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build sql query: %w", err)
	}

	var rows []messageRow
	if err := r.connection.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select messages: %w", err)
	}

	messages := make([]model.Message, len(rows))
	for i := range rows {
		messages[i] = rows[i].toModel()
	}
	if err := r.attachMarkers(ctx, messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *Repository) attachMarkers(ctx context.Context, messages []model.Message) error {
	if len(messages) == 0 {
		return nil
	}

	ids := make([]string, len(messages))
	index := make(map[string]int, len(messages))
	for i := range messages {
		ids[i] = messages[i].ID
		index[messages[i].ID] = i
	}

	query, args, err := sq.Select("message_id", "user_id", "kind", "marked_at").
		From("message_markers").
		Where(sq.Eq{"message_id": ids}).
		OrderBy("marked_at ASC").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build sql query: %w", err)
	}

	var rows []markerRow
	if err := r.connection.SelectContext(ctx, &rows, query, args...); err != nil {
		return fmt.Errorf("failed to select markers: %w", err)
	}

	for _, row := range rows {
		i, ok := index[row.MessageID]
		if !ok {
			continue
		}
		marker := model.Marker{UserID: row.UserID, At: row.MarkedAt}
		switch row.Kind {
		case markerKindRead:
			messages[i].ReadBy = append(messages[i].ReadBy, marker)
		case markerKindArchive:
			messages[i].ArchivedBy = append(messages[i].ArchivedBy, marker)
		}
	}
	return nil
}

// AddReadMarker implements store.MessageStore. The conditional insert is the
// atomic append-if-absent the read tracker relies on.
func (r *Repository) AddReadMarker(ctx context.Context, messageID, userID string, at time.Time) (bool, error) {
	return r.addMarker(ctx, messageID, userID, markerKindRead, at)
}

// RemoveReadMarker implements store.MessageStore.
func (r *Repository) RemoveReadMarker(ctx context.Context, messageID, userID string) (bool, error) {
	return r.removeMarker(ctx, messageID, userID, markerKindRead)
}

// AddArchiveMarker implements store.MessageStore.
func (r *Repository) AddArchiveMarker(ctx context.Context, messageID, userID string, at time.Time) (bool, error) {
	return r.addMarker(ctx, messageID, userID, markerKindArchive, at)
}

// RemoveArchiveMarker implements store.MessageStore.
func (r *Repository) RemoveArchiveMarker(ctx context.Context, messageID, userID string) (bool, error) {
	return r.removeMarker(ctx, messageID, userID, markerKindArchive)
}

func (r *Repository) addMarker(ctx context.Context, messageID, userID, kind string, at time.Time) (bool, error) {
	if err := r.messageExists(ctx, messageID); err != nil {
		return false, err
	}

	query, args, err := sq.Insert("message_markers").
		Columns("message_id", "user_id", "kind", "marked_at").
		Values(messageID, userID, kind, at).
		Suffix("ON CONFLICT (message_id, user_id, kind) DO NOTHING").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build sql query: %w", err)
	}

	result, err := r.connection.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to add %s marker: %w", kind, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected > 0, nil
}

func (r *Repository) removeMarker(ctx context.Context, messageID, userID, kind string) (bool, error) {
	if err := r.messageExists(ctx, messageID); err != nil {
		return false, err
	}

	query, args, err := sq.Delete("message_markers").
		Where(sq.Eq{
			"message_id": messageID,
			"user_id":    userID,
			"kind":       kind,
		}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build sql query: %w", err)
	}

	result, err := r.connection.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to remove %s marker: %w", kind, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected > 0, nil
}

func (r *Repository) messageExists(ctx context.Context, messageID string) error {
	query, args, err := sq.Select("COUNT(*) > 0").
		From("messages").
		Where(sq.Eq{"id": messageID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build sql query: %w", err)
	}

	var exists bool
	if err := r.connection.GetContext(ctx, &exists, query, args...); err != nil {
		return fmt.Errorf("failed to check message existence: %w", err)
	}
	if !exists {
		return store.ErrNotFound
	}
	return nil
}

// DeleteMessage implements store.MessageStore. Markers cascade.
func (r *Repository) DeleteMessage(ctx context.Context, id string) error {
	query, args, err := sq.Delete("messages").
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build sql query: %w", err)
	}

	result, err := r.connection.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
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

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
