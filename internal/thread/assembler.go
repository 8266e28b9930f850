// Package thread derives conversation views from the flat message set. The
// projection is pure: it is recomputed on every read from persisted messages
// and never stored, so it can always be rebuilt after a partial failure.
package thread

import (
	"sort"

	"github.com/cabinet-legal/case-messaging/internal/model"
)

// Project groups messages by thread id and derives root, last message,
// unread flag and participant set for userID. Input order does not matter;
// messages within each thread come out chronological.
func Project(messages []model.Message, userID string) []model.Thread {
	grouped := make(map[string][]model.Message)
	for _, msg := range messages {
		grouped[msg.ThreadID] = append(grouped[msg.ThreadID], msg)
	}

	threads := make([]model.Thread, 0, len(grouped))
	for threadID, msgs := range grouped {
		sortChronological(msgs)

		thread := model.Thread{
			ThreadID:     threadID,
			Messages:     msgs,
			LastMessage:  &msgs[len(msgs)-1],
			Root:         rootOf(msgs),
			Unread:       anyUnread(msgs, userID),
			Participants: participantsOf(msgs),
		}
		threads = append(threads, thread)
	}
	return threads
}

// BuildInbox selects the messages visible to userID (involved, not archived
// by them), projects them into threads, applies the filter, and orders the
// result: unread threads strictly before read ones, newest activity first
// within each group.
func BuildInbox(messages []model.Message, userID string, filter model.InboxFilter) []model.Thread {
	visible := make([]model.Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Involves(userID) && !msg.IsArchivedBy(userID) {
			visible = append(visible, msg)
		}
	}

	threads := Project(visible, userID)
	threads = applyFilter(threads, userID, filter)
	Order(threads)
	return threads
}

// Order sorts threads in place per the inbox ordering contract: all unread
// threads precede all read ones, then last activity descending, thread id as
// a final deterministic tie break.
func Order(threads []model.Thread) {
	sort.SliceStable(threads, func(i, j int) bool {
		if threads[i].Unread != threads[j].Unread {
			return threads[i].Unread
		}
		ti, tj := threads[i].LastMessage.CreatedAt, threads[j].LastMessage.CreatedAt
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return threads[i].ThreadID < threads[j].ThreadID
	})
}

// Summarize produces the inbox line for a thread.
func Summarize(t model.Thread) model.ThreadSummary {
	subject := ""
	var caseRef *string
	if t.Root != nil {
		subject = t.Root.Subject
		caseRef = t.Root.CaseRef
	}

	last := t.LastMessage
	return model.ThreadSummary{
		ThreadID:      t.ThreadID,
		Subject:       subject,
		CaseRef:       caseRef,
		LastSenderID:  last.SenderID,
		LastPreview:   preview(last.Body),
		LastMessageAt: last.CreatedAt,
		MessageCount:  len(t.Messages),
		Unread:        t.Unread,
		Participants:  t.Participants,
	}
}

const previewLimit = 160

func preview(body string) string {
	runes := []rune(body)
	if len(runes) <= previewLimit {
		return body
	}
	return string(runes[:previewLimit])
}

func applyFilter(threads []model.Thread, userID string, filter model.InboxFilter) []model.Thread {
	switch filter {
	case model.InboxFilterAll, "":
		return threads
	case model.InboxFilterUnread:
		return keep(threads, func(t model.Thread) bool { return t.Unread })
	case model.InboxFilterSent:
		return keep(threads, func(t model.Thread) bool {
			for _, msg := range t.Messages {
				if msg.SenderID == userID {
					return true
				}
			}
			return false
		})
	case model.InboxFilterReceived:
		return keep(threads, func(t model.Thread) bool {
			for _, msg := range t.Messages {
				if msg.IsAddressedTo(userID) {
					return true
				}
			}
			return false
		})
	}
	return threads
}

func keep(threads []model.Thread, pred func(model.Thread) bool) []model.Thread {
	out := threads[:0]
	for _, t := range threads {
		if pred(t) {
			out = append(out, t)
		}
	}
	return out
}

// rootOf returns the message without a parent, falling back to the
// chronologically first message when every entry is a reply (the true root
// may have been deleted).
func rootOf(msgs []model.Message) *model.Message {
	for i := range msgs {
		if msgs[i].ParentID == nil {
			return &msgs[i]
		}
	}
	return &msgs[0]
}

// anyUnread reports whether at least one message lacks a read marker for
// userID. The sender's own messages count as read for the sender.
func anyUnread(msgs []model.Message, userID string) bool {
	for i := range msgs {
		if msgs[i].SenderID == userID {
			continue
		}
		if !msgs[i].IsReadBy(userID) {
			return true
		}
	}
	return false
}

func participantsOf(msgs []model.Message) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(id string) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for i := range msgs {
		add(msgs[i].SenderID)
		for _, id := range msgs[i].Recipients {
			add(id)
		}
		for _, id := range msgs[i].CopyRecipients {
			add(id)
		}
	}
	sort.Strings(out)
	return out
}

func sortChronological(msgs []model.Message) {
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
}
