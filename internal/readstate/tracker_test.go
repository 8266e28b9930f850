package readstate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cabinet-legal/case-messaging/internal/model"
	"github.com/cabinet-legal/case-messaging/internal/store"
)

func seedMessage(t *testing.T, s *store.Memory, id string, sender string, recipients ...string) {
	t.Helper()
	err := s.SaveMessage(context.Background(), &model.Message{
		ID:         id,
		ThreadID:   id,
		SenderID:   sender,
		Recipients: recipients,
		Category:   model.CategoryClientToStaff,
		Subject:    "subject",
		Body:       "body",
		CreatedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)
}

func TestMarkRead_Idempotent(t *testing.T) {
	t.Parallel()

	s := store.NewMemory()
	seedMessage(t, s, "m1", "cl1", "s1")
	tracker := New(s)
	ctx := context.Background()

	changed, markers, err := tracker.MarkRead(ctx, "m1", "s1")
	require.NoError(t, err)
	assert.True(t, changed)
	require.Len(t, markers, 1)
	assert.Equal(t, "s1", markers[0].UserID)

	for i := 0; i < 4; i++ {
		changed, markers, err = tracker.MarkRead(ctx, "m1", "s1")
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Len(t, markers, 1)
	}
}

func TestMarkRead_Concurrent(t *testing.T) {
	t.Parallel()

	s := store.NewMemory()
	seedMessage(t, s, "m1", "cl1", "s1")
	tracker := New(s)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := tracker.MarkRead(context.Background(), "m1", "s1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	msg, err := s.GetMessage(context.Background(), "m1")
	require.NoError(t, err)
	assert.Len(t, msg.ReadBy, 1)
}

func TestMarkUnread(t *testing.T) {
	t.Parallel()

	s := store.NewMemory()
	seedMessage(t, s, "m1", "cl1", "s1")
	tracker := New(s)
	ctx := context.Background()

	// Unread before any read is a no-op.
	changed, err := tracker.MarkUnread(ctx, "m1", "s1")
	require.NoError(t, err)
	assert.False(t, changed)

	_, _, err = tracker.MarkRead(ctx, "m1", "s1")
	require.NoError(t, err)

	changed, err = tracker.MarkUnread(ctx, "m1", "s1")
	require.NoError(t, err)
	assert.True(t, changed)

	isRead, err := tracker.IsRead(ctx, "m1", "s1")
	require.NoError(t, err)
	assert.False(t, isRead)

	// Repeated unread stays a no-op.
	changed, err = tracker.MarkUnread(ctx, "m1", "s1")
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestBatchMarkRead(t *testing.T) {
	t.Parallel()

	s := store.NewMemory()
	seedMessage(t, s, "m1", "cl1", "s1")
	seedMessage(t, s, "m2", "cl1", "s1")
	seedMessage(t, s, "m3", "cl1", "s2") // s1 not involved
	tracker := New(s)
	ctx := context.Background()

	_, _, err := tracker.MarkRead(ctx, "m2", "s1")
	require.NoError(t, err)

	updated, err := tracker.BatchMarkRead(ctx, []string{"m1", "m2", "m3", "missing"}, "s1")
	require.NoError(t, err)
	// m1 changed; m2 already read; m3 not visible; "missing" skipped.
	assert.Equal(t, []string{"m1"}, updated)

	isRead, err := tracker.IsRead(ctx, "m1", "s1")
	require.NoError(t, err)
	assert.True(t, isRead)

	msg, err := s.GetMessage(ctx, "m3")
	require.NoError(t, err)
	assert.Empty(t, msg.ReadBy)
}

func TestArchive_IndependentOfRead(t *testing.T) {
	t.Parallel()

	s := store.NewMemory()
	seedMessage(t, s, "m1", "cl1", "s1")
	tracker := New(s)
	ctx := context.Background()

	changed, err := tracker.Archive(ctx, "m1", "s1")
	require.NoError(t, err)
	assert.True(t, changed)

	// Archived but unread.
	isRead, err := tracker.IsRead(ctx, "m1", "s1")
	require.NoError(t, err)
	assert.False(t, isRead)

	isArchived, err := tracker.IsArchived(ctx, "m1", "s1")
	require.NoError(t, err)
	assert.True(t, isArchived)

	// Re-archiving is a no-op.
	changed, err = tracker.Archive(ctx, "m1", "s1")
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = tracker.Unarchive(ctx, "m1", "s1")
	require.NoError(t, err)
	assert.True(t, changed)

	// Read state untouched throughout.
	_, _, err = tracker.MarkRead(ctx, "m1", "s1")
	require.NoError(t, err)
	isArchived, err = tracker.IsArchived(ctx, "m1", "s1")
	require.NoError(t, err)
	assert.False(t, isArchived)
}
