package chat

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"regent-connect/internal/data/store"
	"regent-connect/internal/domain"
)

func newTestService(t *testing.T) (*Service, *store.KV) {
	t.Helper()
	kv, err := store.New(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	return NewService(kv, zap.NewNop()), kv
}

func TestConversationID(t *testing.T) {
	t.Run("symmetric", func(t *testing.T) {
		assert.Equal(t, ConversationID("ua", "ub"), ConversationID("ub", "ua"))
	})

	t.Run("sorted pair", func(t *testing.T) {
		assert.Equal(t, "p_ua_ub", ConversationID("ub", "ua"))
	})

	t.Run("group", func(t *testing.T) {
		assert.Equal(t, "group_g1", GroupConversationID("g1"))
	})
}

func TestSend(t *testing.T) {
	svc, _ := newTestService(t)

	t.Run("basic message", func(t *testing.T) {
		msg, err := svc.Send("ua", "ub", "hello", SendOptions{})
		require.NoError(t, err)
		assert.Equal(t, "p_ua_ub", msg.ConvID)
		assert.Equal(t, "text", msg.Type)
		assert.Equal(t, domain.MessageSent, msg.Status)
		assert.False(t, msg.Seen)
	})

	t.Run("empty message rejected and nothing stored", func(t *testing.T) {
		before := len(svc.Messages("p_ua_ub"))
		_, err := svc.Send("ua", "ub", "", SendOptions{})
		assert.True(t, domain.IsValidation(err))
		assert.Len(t, svc.Messages("p_ua_ub"), before)
	})

	t.Run("attachment without text allowed", func(t *testing.T) {
		msg, err := svc.Send("ua", "ub", "", SendOptions{
			Attachment:     "data:image/png;base64,xyz",
			AttachmentType: "image/png",
			Type:           "image",
		})
		require.NoError(t, err)
		assert.Equal(t, "image", msg.Type)
	})

	t.Run("group message", func(t *testing.T) {
		msg, err := svc.Send("ua", "g1", "hi team", SendOptions{Group: true})
		require.NoError(t, err)
		assert.Equal(t, "group_g1", msg.ConvID)
	})
}

func TestMarkSeen(t *testing.T) {
	svc, _ := newTestService(t)

	svc.Send("ua", "ub", "one", SendOptions{})
	svc.Send("ua", "ub", "two", SendOptions{})
	svc.Send("ub", "ua", "reply", SendOptions{})

	conv := ConversationID("ua", "ub")
	assert.Equal(t, 2, svc.UnreadCount("ub", conv))

	n := svc.MarkSeen(conv, "ub")
	assert.Equal(t, 2, n)
	assert.Equal(t, 0, svc.UnreadCount("ub", conv))

	t.Run("other reader's messages untouched", func(t *testing.T) {
		assert.Equal(t, 1, svc.UnreadCount("ua", conv))
	})

	t.Run("idempotent", func(t *testing.T) {
		assert.Equal(t, 0, svc.MarkSeen(conv, "ub"))
	})

	t.Run("read status set", func(t *testing.T) {
		for _, m := range svc.Messages(conv) {
			if m.To == "ub" {
				assert.Equal(t, domain.MessageRead, m.Status)
			}
		}
	})
}

func TestEdit(t *testing.T) {
	svc, _ := newTestService(t)
	msg, err := svc.Send("ua", "ub", "typo", SendOptions{})
	require.NoError(t, err)

	t.Run("sender edits", func(t *testing.T) {
		edited, err := svc.Edit(msg.ID, "ua", "fixed")
		require.NoError(t, err)
		assert.Equal(t, "fixed", edited.Text)
		assert.True(t, edited.Edited)
	})

	t.Run("non-sender rejected and text unchanged", func(t *testing.T) {
		_, err := svc.Edit(msg.ID, "ub", "hijacked")
		assert.True(t, domain.IsUnauthorized(err))

		msgs := svc.Messages(msg.ConvID)
		require.Len(t, msgs, 1)
		assert.Equal(t, "fixed", msgs[0].Text)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := svc.Edit("msgmissing", "ua", "x")
		assert.True(t, domain.IsNotFound(err))
	})
}

func TestDelete(t *testing.T) {
	t.Run("for everyone leaves tombstone", func(t *testing.T) {
		svc, kv := newTestService(t)
		msg, _ := svc.Send("ua", "ub", "regret", SendOptions{})

		require.NoError(t, svc.Delete(msg.ID, "ua", true))

		// Hidden from the conversation view but still on record.
		assert.Empty(t, svc.Messages(msg.ConvID))
		raw := store.Load(kv, store.KeyMessages, []domain.Message{})
		require.Len(t, raw, 1)
		assert.True(t, raw[0].Deleted)
		assert.Equal(t, Tombstone, raw[0].Text)
	})

	t.Run("for everyone is sender-only", func(t *testing.T) {
		svc, _ := newTestService(t)
		msg, _ := svc.Send("ua", "ub", "keep", SendOptions{})

		err := svc.Delete(msg.ID, "ub", true)
		assert.True(t, domain.IsUnauthorized(err))
		assert.Len(t, svc.Messages(msg.ConvID), 1)
	})

	t.Run("for me removes outright", func(t *testing.T) {
		svc, kv := newTestService(t)
		msg, _ := svc.Send("ua", "ub", "gone", SendOptions{})

		require.NoError(t, svc.Delete(msg.ID, "ub", false))
		assert.Empty(t, store.Load(kv, store.KeyMessages, []domain.Message{}))
	})
}

func TestStar(t *testing.T) {
	svc, _ := newTestService(t)
	msg, _ := svc.Send("ua", "ub", "important", SendOptions{})
	svc.Send("ua", "ub", "noise", SendOptions{})

	require.NoError(t, svc.Star(msg.ID, true))
	starred := svc.Starred("")
	require.Len(t, starred, 1)
	assert.Equal(t, msg.ID, starred[0].ID)

	require.NoError(t, svc.Star(msg.ID, false))
	assert.Empty(t, svc.Starred(""))
}

func TestRecentConversations(t *testing.T) {
	svc, kv := newTestService(t)

	store.Save(kv, store.KeyUsers, []domain.User{
		{ID: "ua", Name: "Ama", AvatarColor: "#111111", Online: true},
		{ID: "ub", Name: "Kojo", AvatarColor: "#222222"},
		{ID: "uc", Name: "Esi", AvatarColor: "#333333"},
	})
	store.Save(kv, store.KeyGroups, []domain.Group{
		{ID: "g1", Name: "Study Group", Members: []string{"ua", "ub"}},
		{ID: "g2", Name: "Other Group", Members: []string{"ub", "uc"}},
	})

	base := time.Now()
	ticks := 0
	svc.now = func() time.Time {
		ticks++
		return base.Add(time.Duration(ticks) * time.Second)
	}

	svc.Send("ub", "ua", "oldest", SendOptions{})
	svc.Send("uc", "ua", "middle", SendOptions{})
	svc.Send("ua", "g1", "newest", SendOptions{Group: true})
	svc.Send("ub", "g2", "not mine", SendOptions{Group: true})

	convs := svc.RecentConversations("ua", 0)
	require.Len(t, convs, 3, "conversation in a foreign group excluded")

	assert.Equal(t, "Study Group", convs[0].Name)
	assert.Equal(t, "group", convs[0].Type)
	assert.Equal(t, "Esi", convs[1].Name)
	assert.Equal(t, "Kojo", convs[2].Name)

	t.Run("unread counts", func(t *testing.T) {
		assert.Equal(t, 1, convs[1].UnreadCount)
		assert.Equal(t, 1, convs[2].UnreadCount)
	})

	t.Run("peer metadata", func(t *testing.T) {
		assert.Equal(t, "uc", convs[1].UserID)
		assert.Equal(t, "#333333", convs[1].Avatar)
	})

	t.Run("limit truncates", func(t *testing.T) {
		limited := svc.RecentConversations("ua", 2)
		require.Len(t, limited, 2)
		assert.Equal(t, "Study Group", limited[0].Name)
	})

	t.Run("prefix-sharing id does not leak", func(t *testing.T) {
		svc.Send("uab", "uc", "not for ua", SendOptions{})
		foreign := ConversationID("uab", "uc")
		for _, c := range svc.RecentConversations("ua", 0) {
			assert.NotEqual(t, foreign, c.ConvID)
		}
	})
}

func TestSearch(t *testing.T) {
	svc, _ := newTestService(t)
	svc.Send("ua", "ub", "Exam tomorrow", SendOptions{})
	svc.Send("ua", "ub", "lunch?", SendOptions{})
	svc.Send("ua", "uc", "exam results are out", SendOptions{})

	t.Run("case-insensitive across conversations", func(t *testing.T) {
		assert.Len(t, svc.Search("EXAM", ""), 2)
	})

	t.Run("scoped to one conversation", func(t *testing.T) {
		assert.Len(t, svc.Search("exam", ConversationID("ua", "ub")), 1)
	})

	t.Run("deleted messages excluded", func(t *testing.T) {
		msgs := svc.Search("lunch", "")
		require.Len(t, msgs, 1)
		require.NoError(t, svc.Delete(msgs[0].ID, "ua", true))
		assert.Empty(t, svc.Search("lunch", ""))
	})
}

func TestClear(t *testing.T) {
	svc, _ := newTestService(t)
	svc.Send("ua", "ub", "one", SendOptions{})
	svc.Send("ub", "ua", "two", SendOptions{})
	svc.Send("ua", "uc", "other", SendOptions{})

	removed := svc.Clear(ConversationID("ua", "ub"))
	assert.Equal(t, 2, removed)
	assert.Empty(t, svc.PrivateMessages("ua", "ub"))
	assert.Len(t, svc.PrivateMessages("ua", "uc"), 1)
}

func TestTyping(t *testing.T) {
	svc, _ := newTestService(t)
	conv := ConversationID("ua", "ub")

	t.Run("fresh record reads as typing", func(t *testing.T) {
		svc.SetTyping(conv, "ua", true)
		assert.True(t, svc.IsTyping(conv, "ua"))
		assert.False(t, svc.IsTyping(conv, "ub"))
	})

	t.Run("explicit stop", func(t *testing.T) {
		svc.SetTyping(conv, "ua", false)
		assert.False(t, svc.IsTyping(conv, "ua"))
	})

	t.Run("stale record removed on read", func(t *testing.T) {
		key := store.TypingKey(conv, "ua")
		store.Save(svc.kv, key, domain.TypingState{
			UserID: "ua",
			Time:   time.Now().Add(-10 * time.Second),
		})

		assert.False(t, svc.IsTyping(conv, "ua"))
		// The record is gone, not just filtered.
		assert.False(t, svc.kv.Exists(key))
	})
}

func TestPrivatePeer(t *testing.T) {
	t.Run("plain ids", func(t *testing.T) {
		assert.Equal(t, "ub", privatePeer("p_ua_ub", "ua"))
		assert.Equal(t, "ua", privatePeer("p_ua_ub", "ub"))
	})

	t.Run("peer id containing underscore", func(t *testing.T) {
		conv := ConversationID("u1234", domain.AssistantID)
		assert.Equal(t, domain.AssistantID, privatePeer(conv, "u1234"))
	})
}
