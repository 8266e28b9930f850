package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cabinet-legal/case-messaging/internal/directory"
	"github.com/cabinet-legal/case-messaging/internal/events"
	"github.com/cabinet-legal/case-messaging/internal/model"
	"github.com/cabinet-legal/case-messaging/internal/notify"
	"github.com/cabinet-legal/case-messaging/internal/readstate"
	"github.com/cabinet-legal/case-messaging/internal/routing"
	"github.com/cabinet-legal/case-messaging/internal/sms"
	"github.com/cabinet-legal/case-messaging/internal/store"
	"github.com/cabinet-legal/case-messaging/internal/trash"
	"github.com/cabinet-legal/case-messaging/pkg/logger"
)

var (
	staffAnna  = model.User{ID: "s1", Role: model.RoleAdmin, Active: true}
	staffBoris = model.User{ID: "s2", Role: model.RoleSuperAdmin, Active: true}
	clientEve  = model.User{ID: "cl1", Role: model.RoleClient, Active: true}
	partnerPia = model.User{ID: "p1", Role: model.RolePartner, Active: true}
)

type fixture struct {
	service *Service
	store   *store.Memory
	dir     *directory.Static
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMemory()
	dir := directory.NewStatic()
	for _, u := range []model.User{staffAnna, staffBoris, clientEve, partnerPia} {
		dir.AddUser(u)
	}

	log := logger.NewNop()
	tracker := readstate.New(mem)
	fanout := notify.New(mem, dir, sms.Noop{}, events.Noop{}, log)
	trashSvc := trash.NewService(mem, mem)
	svc := New(mem, routing.New(dir, dir), tracker, fanout, trashSvc, events.Noop{}, log)

	return &fixture{service: svc, store: mem, dir: dir}
}

func (f *fixture) create(t *testing.T, sender model.User, req *model.CreateMessageRequest) *model.CreateMessageResponse {
	t.Helper()
	resp, err := f.service.Create(context.Background(), sender, req)
	require.NoError(t, err)
	return resp
}

func TestCreate_ClientMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp := f.create(t, clientEve, &model.CreateMessageRequest{
		Subject: "Question about my case",
		Body:    "When is the hearing?",
		CaseRef: "case-42",
	})

	msg, err := f.store.GetMessage(ctx, resp.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"s1", "s2"}, msg.Recipients)
	assert.Equal(t, model.CategoryClientToStaff, msg.Category)
	assert.Equal(t, resp.ID, msg.ThreadID, "a root message anchors its own thread")
	require.NotNil(t, msg.CaseRef)
	assert.Equal(t, "case-42", *msg.CaseRef)

	// Fan-out ran: every staff recipient holds a notification.
	for _, staffID := range []string{"s1", "s2"} {
		notifications, err := f.store.ListNotifications(ctx, staffID, false)
		require.NoError(t, err)
		require.Len(t, notifications, 1)
		assert.Equal(t, model.NotificationMessageReceived, notifications[0].Kind)
		assert.Equal(t, resp.ID, notifications[0].MessageID())
	}
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Create(ctx, clientEve, &model.CreateMessageRequest{Subject: "  ", Body: "x", CaseRef: "c"})
	assert.ErrorIs(t, err, ErrSubjectRequired)

	_, err = f.service.Create(ctx, clientEve, &model.CreateMessageRequest{Subject: "x", Body: " \t ", CaseRef: "c"})
	assert.ErrorIs(t, err, ErrBodyRequired)

	_, err = f.service.Create(ctx, clientEve, &model.CreateMessageRequest{Subject: "x", Body: "y"})
	assert.ErrorIs(t, err, ErrCaseRefRequired, "a new thread needs a case reference")

	_, err = f.service.Create(ctx, clientEve, &model.CreateMessageRequest{
		Subject: "x", Body: "y", ParentID: "00000000-0000-0000-0000-000000000000",
	})
	assert.ErrorIs(t, err, ErrParentNotFound)
}

func TestCreate_ReplyInheritsThreadAndCase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	root := f.create(t, clientEve, &model.CreateMessageRequest{
		Subject: "Question", Body: "Hello", CaseRef: "case-42",
	})

	// Staff reply without an explicit target answers the client.
	reply := f.create(t, staffAnna, &model.CreateMessageRequest{
		Subject: "Re: Question", Body: "Hearing is in June.", ParentID: root.ID,
	})

	msg, err := f.store.GetMessage(ctx, reply.ID)
	require.NoError(t, err)
	assert.Equal(t, root.ThreadID, msg.ThreadID)
	require.NotNil(t, msg.ParentID)
	assert.Equal(t, root.ID, *msg.ParentID)
	require.NotNil(t, msg.CaseRef)
	assert.Equal(t, "case-42", *msg.CaseRef, "replies inherit the parent case reference")
	assert.Equal(t, []string{"cl1"}, msg.Recipients)
	assert.Equal(t, model.CategoryStaffToClient, msg.Category)
}

func TestCreate_ReplyToOwnMessageKeepsAddressing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	root := f.create(t, staffAnna, &model.CreateMessageRequest{
		Subject: "Filing", Body: "First draft attached.", TargetID: "cl1", CaseRef: "case-42",
	})

	followUp := f.create(t, staffAnna, &model.CreateMessageRequest{
		Subject: "Filing", Body: "Correction to my last message.", ParentID: root.ID,
	})

	msg, err := f.store.GetMessage(ctx, followUp.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"cl1"}, msg.Recipients)
	assert.Equal(t, model.CategoryStaffToClient, msg.Category)
}

func TestCreate_ReplyOutsideOwnThreads(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	root := f.create(t, staffAnna, &model.CreateMessageRequest{
		Subject: "Internal", Body: "For Boris only.", TargetID: "s2", CaseRef: "case-42",
	})

	// The client is not involved in the staff thread and cannot reply into it.
	_, err := f.service.Create(ctx, clientEve, &model.CreateMessageRequest{
		Subject: "Re: Internal", Body: "Let me in.", ParentID: root.ID,
	})
	assert.ErrorIs(t, err, ErrParentNotFound)
}

func TestCreate_PartnerRefusalPersistsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// case-42 was never transmitted to the partner.
	_, err := f.service.Create(ctx, partnerPia, &model.CreateMessageRequest{
		Subject: "Case question", Body: "Status?", CaseRef: "case-42",
	})
	assert.ErrorIs(t, err, routing.ErrNotAuthorizedForCase)

	// Routing failed before the write: nothing reached the store and no
	// notification exists for anyone.
	for _, userID := range []string{"s1", "s2", "p1"} {
		visible, err := f.store.ListVisible(ctx, userID)
		require.NoError(t, err)
		assert.Empty(t, visible)

		notifications, err := f.store.ListNotifications(ctx, userID, false)
		require.NoError(t, err)
		assert.Empty(t, notifications)
	}

	// After transmission the same request goes through.
	f.dir.SetTransmission("case-42", "p1", true)
	resp := f.create(t, partnerPia, &model.CreateMessageRequest{
		Subject: "Case question", Body: "Status?", CaseRef: "case-42",
	})
	msg, err := f.store.GetMessage(ctx, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CategoryPartnerToStaff, msg.Category)
}

func TestCreate_PartnerReplyRechecksTransmission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.dir.SetTransmission("case-42", "p1", true)
	root := f.create(t, partnerPia, &model.CreateMessageRequest{
		Subject: "Case question", Body: "Status?", CaseRef: "case-42",
	})

	// The transmission is revoked; the inherited case reference must be
	// checked again, so the partner cannot keep replying into the thread.
	f.dir.SetTransmission("case-42", "p1", false)
	_, err := f.service.Create(ctx, partnerPia, &model.CreateMessageRequest{
		Subject: "Re: Case question", Body: "Any update?", ParentID: root.ID,
	})
	assert.ErrorIs(t, err, routing.ErrNotAuthorizedForCase)

	msgs, err := f.store.ListThread(ctx, root.ThreadID)
	require.NoError(t, err)
	assert.Len(t, msgs, 1, "the refused reply is not persisted")
}

func TestViewThread_MarksAddressedRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	root := f.create(t, clientEve, &model.CreateMessageRequest{
		Subject: "Question", Body: "Hello", CaseRef: "case-42",
	})

	thread, err := f.service.ViewThread(ctx, staffAnna, root.ThreadID)
	require.NoError(t, err)
	require.Len(t, thread.Messages, 1)
	assert.True(t, thread.Messages[0].IsReadBy("s1"))
	assert.False(t, thread.Messages[0].IsReadBy("s2"), "only the viewer's state changes")
	assert.False(t, thread.Unread, "the thread is no longer unread for the viewer")

	// The client is told their message was read.
	notifications, err := f.store.ListNotifications(ctx, "cl1", false)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, model.NotificationMessageRead, notifications[0].Kind)
}

func TestPeekThread_NoSideEffects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	root := f.create(t, clientEve, &model.CreateMessageRequest{
		Subject: "Question", Body: "Hello", CaseRef: "case-42",
	})

	thread, err := f.service.PeekThread(ctx, staffAnna, root.ThreadID)
	require.NoError(t, err)
	assert.True(t, thread.Unread)

	msg, err := f.store.GetMessage(ctx, root.ID)
	require.NoError(t, err)
	assert.False(t, msg.IsReadBy("s1"))
}

func TestViewThread_NotInvolved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	root := f.create(t, staffAnna, &model.CreateMessageRequest{
		Subject: "Internal", Body: "For Boris.", TargetID: "s2", CaseRef: "case-42",
	})

	_, err := f.service.ViewThread(ctx, clientEve, root.ThreadID)
	assert.ErrorIs(t, err, ErrThreadNotFound, "uninvolved callers cannot distinguish hidden from missing")
}

func TestBatchMarkRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.create(t, clientEve, &model.CreateMessageRequest{
		Subject: "One", Body: "a", CaseRef: "case-42",
	})
	second := f.create(t, clientEve, &model.CreateMessageRequest{
		Subject: "Two", Body: "b", CaseRef: "case-42",
	})

	updated, err := f.service.BatchMarkRead(ctx, staffAnna, []string{
		first.ID, second.ID, first.ID, "missing",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, updated, "duplicates and unknown ids do not count")

	// Repeating the batch changes nothing.
	updated, err = f.service.BatchMarkRead(ctx, staffAnna, []string{first.ID, second.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, updated)
}

func TestArchive_RequiresInvolvement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	root := f.create(t, staffAnna, &model.CreateMessageRequest{
		Subject: "Internal", Body: "For Boris.", TargetID: "s2", CaseRef: "case-42",
	})

	assert.ErrorIs(t, f.service.Archive(ctx, clientEve, root.ID), ErrNotAllowed)
	require.NoError(t, f.service.Archive(ctx, staffBoris, root.ID))

	msg, err := f.store.GetMessage(ctx, root.ID)
	require.NoError(t, err)
	assert.True(t, msg.IsArchivedBy("s2"))

	require.NoError(t, f.service.Unarchive(ctx, staffBoris, root.ID))
	msg, err = f.store.GetMessage(ctx, root.ID)
	require.NoError(t, err)
	assert.False(t, msg.IsArchivedBy("s2"))
}

func TestDelete_SenderMovesToTrash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	root := f.create(t, clientEve, &model.CreateMessageRequest{
		Subject: "Oops", Body: "Sent by mistake.", CaseRef: "case-42",
	})

	require.NoError(t, f.service.Delete(ctx, clientEve, root.ID))

	_, err := f.store.GetMessage(ctx, root.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	entries, err := f.store.ListTrashEntries(ctx, "cl1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, root.ID, entries[0].OriginalID)
}

func TestDelete_Authorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	root := f.create(t, clientEve, &model.CreateMessageRequest{
		Subject: "Question", Body: "Hello", CaseRef: "case-42",
	})

	other := model.User{ID: "cl2", Role: model.RoleClient, Active: true}
	assert.ErrorIs(t, f.service.Delete(ctx, other, root.ID), ErrNotAllowed)

	// Admin-tier users may delete anyone's message.
	require.NoError(t, f.service.Delete(ctx, staffBoris, root.ID))
	assert.ErrorIs(t, f.service.Delete(ctx, staffBoris, root.ID), ErrMessageNotFound)
}

type failingTrashStore struct {
	store.TrashStore
	err error
}

func (f *failingTrashStore) SaveTrashEntry(ctx context.Context, entry *model.TrashEntry) error {
	return f.err
}

func TestDelete_SnapshotFailureAborts(t *testing.T) {
	mem := store.NewMemory()
	dir := directory.NewStatic()
	dir.AddUser(staffAnna)
	dir.AddUser(clientEve)

	log := logger.NewNop()
	broken := &failingTrashStore{TrashStore: mem, err: errors.New("disk full")}
	trashSvc := trash.NewService(broken, mem)
	svc := New(mem, routing.New(dir, dir), readstate.New(mem), notify.New(mem, dir, sms.Noop{}, events.Noop{}, log), trashSvc, events.Noop{}, log)

	ctx := context.Background()
	resp, err := svc.Create(ctx, clientEve, &model.CreateMessageRequest{
		Subject: "Keep me", Body: "Important.", CaseRef: "case-42",
	})
	require.NoError(t, err)

	// The snapshot write fails, so the delete never runs.
	err = svc.Delete(ctx, clientEve, resp.ID)
	require.Error(t, err)

	msg, err := mem.GetMessage(ctx, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, resp.ID, msg.ID, "the message survives a failed snapshot")
}
