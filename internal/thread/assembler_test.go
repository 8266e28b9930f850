package thread

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cabinet-legal/case-messaging/internal/model"
)

var base = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type msgOpt func(*model.Message)

func readBy(users ...string) msgOpt {
	return func(m *model.Message) {
		for _, u := range users {
			m.ReadBy = append(m.ReadBy, model.Marker{UserID: u, At: base})
		}
	}
}

func archivedBy(users ...string) msgOpt {
	return func(m *model.Message) {
		for _, u := range users {
			m.ArchivedBy = append(m.ArchivedBy, model.Marker{UserID: u, At: base})
		}
	}
}

func reply(parentID string) msgOpt {
	return func(m *model.Message) {
		m.ParentID = &parentID
	}
}

func msg(id, threadID, sender string, recipients []string, offset time.Duration, opts ...msgOpt) model.Message {
	m := model.Message{
		ID:         id,
		ThreadID:   threadID,
		SenderID:   sender,
		Recipients: recipients,
		Category:   model.CategoryClientToStaff,
		Subject:    "subject " + threadID,
		Body:       "body " + id,
		CreatedAt:  base.Add(offset),
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

func TestProject(t *testing.T) {
	t.Parallel()

	messages := []model.Message{
		msg("m2", "t1", "s1", []string{"cl1"}, 2*time.Hour, reply("m1")),
		msg("m1", "t1", "cl1", []string{"s1"}, 0),
		msg("m3", "t1", "cl1", []string{"s1"}, 3*time.Hour, reply("m2")),
	}

	threads := Project(messages, "s1")
	require.Len(t, threads, 1)

	th := threads[0]
	assert.Equal(t, "t1", th.ThreadID)
	require.Len(t, th.Messages, 3)
	assert.Equal(t, "m1", th.Messages[0].ID)
	assert.Equal(t, "m3", th.Messages[2].ID)
	assert.Equal(t, "m1", th.Root.ID)
	assert.Equal(t, "m3", th.LastMessage.ID)
	assert.True(t, th.Unread)
	assert.Equal(t, []string{"cl1", "s1"}, th.Participants)
}

func TestProject_RootFallbackWhenAllReplies(t *testing.T) {
	t.Parallel()

	messages := []model.Message{
		msg("m3", "t1", "cl1", []string{"s1"}, 2*time.Hour, reply("m2")),
		msg("m2", "t1", "s1", []string{"cl1"}, time.Hour, reply("m1")),
	}

	threads := Project(messages, "s1")
	require.Len(t, threads, 1)
	assert.Equal(t, "m2", threads[0].Root.ID)
}

func TestProject_OwnMessagesDoNotCountUnread(t *testing.T) {
	t.Parallel()

	messages := []model.Message{
		msg("m1", "t1", "s1", []string{"cl1"}, 0),
	}

	threads := Project(messages, "s1")
	require.Len(t, threads, 1)
	assert.False(t, threads[0].Unread)

	threads = Project(messages, "cl1")
	require.Len(t, threads, 1)
	assert.True(t, threads[0].Unread)
}

func TestBuildInbox_OrderingContract(t *testing.T) {
	t.Parallel()

	// Unread thread t1 is much older than read threads t2/t3; it must still
	// sort first. Read threads order by last activity descending.
	messages := []model.Message{
		msg("m1", "t1", "cl1", []string{"s1"}, -72*time.Hour),
		msg("m2", "t2", "cl1", []string{"s1"}, 0, readBy("s1")),
		msg("m3", "t3", "cl1", []string{"s1"}, time.Hour, readBy("s1")),
		msg("m4", "t4", "cl2", []string{"s1"}, -24*time.Hour),
	}

	threads := BuildInbox(messages, "s1", model.InboxFilterAll)
	require.Len(t, threads, 4)

	ids := make([]string, len(threads))
	for i, th := range threads {
		ids[i] = th.ThreadID
	}
	// Unread group (t4 newer than t1), then read group (t3 newer than t2).
	assert.Equal(t, []string{"t4", "t1", "t3", "t2"}, ids)

	for _, th := range threads[:2] {
		assert.True(t, th.Unread)
	}
	for _, th := range threads[2:] {
		assert.False(t, th.Unread)
	}
}

func TestBuildInbox_Visibility(t *testing.T) {
	t.Parallel()

	messages := []model.Message{
		msg("m1", "t1", "cl1", []string{"s1"}, 0),
		msg("m2", "t2", "cl2", []string{"s2"}, 0),                      // s1 not involved
		msg("m3", "t3", "cl1", []string{"s1"}, 0, archivedBy("s1")),    // archived away
		msg("m4", "t4", "cl1", nil, 0, func(m *model.Message) { m.CopyRecipients = []string{"s1"} }),
	}

	threads := BuildInbox(messages, "s1", model.InboxFilterAll)
	require.Len(t, threads, 2)

	seen := map[string]bool{}
	for _, th := range threads {
		seen[th.ThreadID] = true
	}
	assert.True(t, seen["t1"])
	assert.True(t, seen["t4"])
}

func TestBuildInbox_Filters(t *testing.T) {
	t.Parallel()

	messages := []model.Message{
		msg("m1", "t1", "s1", []string{"cl1"}, 0),                  // sent by s1
		msg("m2", "t2", "cl1", []string{"s1"}, 0),                  // received, unread
		msg("m3", "t3", "cl2", []string{"s1"}, 0, readBy("s1")),    // received, read
	}

	sent := BuildInbox(messages, "s1", model.InboxFilterSent)
	require.Len(t, sent, 1)
	assert.Equal(t, "t1", sent[0].ThreadID)

	received := BuildInbox(messages, "s1", model.InboxFilterReceived)
	assert.Len(t, received, 2)

	unread := BuildInbox(messages, "s1", model.InboxFilterUnread)
	require.Len(t, unread, 1)
	assert.Equal(t, "t2", unread[0].ThreadID)
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	caseRef := "case-9"
	messages := []model.Message{
		msg("m1", "t1", "cl1", []string{"s1"}, 0, func(m *model.Message) { m.CaseRef = &caseRef }),
		msg("m2", "t1", "s1", []string{"cl1"}, time.Hour, reply("m1")),
	}

	threads := Project(messages, "s1")
	require.Len(t, threads, 1)

	summary := Summarize(threads[0])
	assert.Equal(t, "t1", summary.ThreadID)
	assert.Equal(t, "subject t1", summary.Subject)
	require.NotNil(t, summary.CaseRef)
	assert.Equal(t, "case-9", *summary.CaseRef)
	assert.Equal(t, "s1", summary.LastSenderID)
	assert.Equal(t, 2, summary.MessageCount)
	assert.Equal(t, base.Add(time.Hour), summary.LastMessageAt)
}
