package assistant

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"regent-connect/internal/data/store"
	"regent-connect/internal/domain"
	"regent-connect/internal/infra/config"
	"regent-connect/internal/service/chat"
)

func newTestService(t *testing.T) (*Service, *chat.Service, *store.KV) {
	t.Helper()
	kv, err := store.New(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	kv.Seed()

	store.Save(kv, store.KeyUsers, append(
		store.Load(kv, store.KeyUsers, []domain.User{}),
		domain.User{ID: "ua", Name: "Ama", Friends: []string{"ub", "uc"}},
	))

	cfg := &config.AIConfig{ThinkingDelayMs: 1, HistoryLimit: 6}
	chatSvc := chat.NewService(kv, zap.NewNop())
	return NewService(kv, chatSvc, cfg, zap.NewNop()), chatSvc, kv
}

func TestAsk(t *testing.T) {
	svc, chatSvc, _ := newTestService(t)

	reply, err := svc.Ask(context.Background(), "ua", "hello there")
	require.NoError(t, err)
	assert.NotEmpty(t, reply)

	t.Run("history records both turns", func(t *testing.T) {
		history := svc.History()
		require.Len(t, history, 2)
		assert.Equal(t, "user", history[0].Role)
		assert.Equal(t, "hello there", history[0].Text)
		assert.Equal(t, "assistant", history[1].Role)
		assert.Equal(t, reply, history[1].Text)
	})

	t.Run("reply mirrored into the assistant conversation", func(t *testing.T) {
		msgs := chatSvc.PrivateMessages("ua", domain.AssistantID)
		require.Len(t, msgs, 1)
		assert.Equal(t, domain.AssistantID, msgs[0].From)
		assert.Equal(t, reply, msgs[0].Text)
	})

	t.Run("empty message rejected", func(t *testing.T) {
		_, err := svc.Ask(context.Background(), "ua", "")
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.Ask(context.Background(), "ux", "hi")
		assert.True(t, domain.IsNotFound(err))
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := svc.Ask(ctx, "ua", "hi")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestScheduleReply(t *testing.T) {
	svc, chatSvc, _ := newTestService(t)
	svc.delay = 200 * time.Millisecond

	_, err := chatSvc.Send("ua", domain.AssistantID, "earlier message", chat.SendOptions{})
	require.NoError(t, err)

	timer := svc.ScheduleReply("ua", "hello there")
	require.NotNil(t, timer)

	// clearing between scheduling and firing must not swallow the reply
	conv := chat.ConversationID("ua", domain.AssistantID)
	chatSvc.Clear(conv)
	require.Empty(t, chatSvc.PrivateMessages("ua", domain.AssistantID))

	replied := func() bool {
		return len(chatSvc.PrivateMessages("ua", domain.AssistantID)) == 1
	}
	require.Eventually(t, replied, 350*time.Millisecond, 10*time.Millisecond,
		"reply should land one thinking delay after scheduling")

	msgs := chatSvc.PrivateMessages("ua", domain.AssistantID)
	assert.Equal(t, domain.AssistantID, msgs[0].From)

	history := svc.History()
	require.Len(t, history, 2)
	assert.Equal(t, "hello there", history[0].Text)
	assert.Equal(t, "assistant", history[1].Role)
}

func TestHistoryCap(t *testing.T) {
	svc, _, _ := newTestService(t)

	for i := 0; i < 5; i++ {
		_, err := svc.Ask(context.Background(), "ua", fmt.Sprintf("message %d", i))
		require.NoError(t, err)
	}

	history := svc.History()
	assert.Len(t, history, 6, "capped at the configured limit")
	assert.Equal(t, "message 2", history[0].Text, "oldest turns dropped first")
}

func TestCannedResponder(t *testing.T) {
	kv, err := store.New(filepath.Join(t.TempDir(), "canned.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	user := &domain.User{ID: "ua", Name: "Ama", Friends: []string{"ub", "uc"}}
	canned := NewCanned(kv)

	t.Run("friend count from the store", func(t *testing.T) {
		reply, err := canned.Respond(context.Background(), user, nil, "how many friends do I have?")
		require.NoError(t, err)
		assert.Contains(t, reply, "2 friends")
	})

	t.Run("group count from the store", func(t *testing.T) {
		store.Save(kv, store.KeyGroups, []domain.Group{
			{ID: "g1", Members: []string{"ua", "ub"}},
			{ID: "g2", Members: []string{"ub"}},
		})
		reply, err := canned.Respond(context.Background(), user, nil, "what about my groups?")
		require.NoError(t, err)
		assert.Contains(t, reply, "1 group")
	})

	t.Run("keywords are case-insensitive", func(t *testing.T) {
		reply, err := canned.Respond(context.Background(), user, nil, "Tell me a JOKE")
		require.NoError(t, err)
		assert.NotEmpty(t, reply)
	})

	t.Run("fallback lists capabilities", func(t *testing.T) {
		reply, err := canned.Respond(context.Background(), user, nil, "zzzxqww")
		require.NoError(t, err)
		assert.NotEmpty(t, reply)
	})
}
