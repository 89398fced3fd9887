package auth

import (
	"path/filepath"
	"testing"

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
	kv.Seed()
	return NewService(kv, zap.NewNop()), kv
}

func TestRegister(t *testing.T) {
	t.Run("creates account and signs in", func(t *testing.T) {
		svc, _ := newTestService(t)

		user, err := svc.Register("Ama", "+233500000000", "secret1", "")
		require.NoError(t, err)
		assert.Equal(t, "Ama", user.Name)
		assert.Equal(t, "+233500000000", user.Phone)
		assert.True(t, user.Online)
		assert.NotEmpty(t, user.AvatarColor)
		assert.Empty(t, user.Friends)

		current, ok := svc.CurrentUser()
		require.True(t, ok)
		assert.Equal(t, user.ID, current.ID)
	})

	t.Run("validation", func(t *testing.T) {
		svc, _ := newTestService(t)

		_, err := svc.Register("A", "+233500000000", "secret1", "")
		assert.True(t, domain.IsValidation(err))

		_, err = svc.Register("Ama", "ab", "secret1", "")
		assert.True(t, domain.IsValidation(err))

		_, err = svc.Register("Ama", "+233500000000", "short", "")
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("duplicate phone conflicts", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, err := svc.Register("Ama", "+233500000000", "secret1", "")
		require.NoError(t, err)

		_, err = svc.Register("Kojo", "+233500000000", "secret2", "")
		assert.True(t, domain.IsConflict(err))
	})

	t.Run("duplicate name is case-insensitive", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, err := svc.Register("Ama", "+233500000000", "secret1", "")
		require.NoError(t, err)

		_, err = svc.Register("ama", "+233500000001", "secret2", "")
		assert.True(t, domain.IsConflict(err))
	})
}

func TestLogin(t *testing.T) {
	svc, _ := newTestService(t)
	registered, err := svc.Register("Ama", "+233500000000", "secret1", "")
	require.NoError(t, err)
	svc.Logout()

	t.Run("by phone", func(t *testing.T) {
		user, err := svc.Login("+233500000000", "secret1")
		require.NoError(t, err)
		assert.Equal(t, registered.ID, user.ID)
		assert.True(t, user.Online)

		current, ok := svc.CurrentUser()
		require.True(t, ok)
		assert.Equal(t, registered.ID, current.ID)
		svc.Logout()
	})

	t.Run("by name case-insensitive", func(t *testing.T) {
		user, err := svc.Login("AMA", "secret1")
		require.NoError(t, err)
		assert.Equal(t, registered.ID, user.ID)
		svc.Logout()
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login("+233500000000", "wrong")
		assert.True(t, domain.IsNotFound(err))
		assert.EqualError(t, err, "invalid credentials")

		_, ok := svc.CurrentUser()
		assert.False(t, ok)
	})

	t.Run("unknown identifier reads the same as wrong password", func(t *testing.T) {
		_, err := svc.Login("+233599999999", "secret1")
		assert.True(t, domain.IsNotFound(err))
		assert.EqualError(t, err, "invalid credentials")
	})

	t.Run("seeded demo account", func(t *testing.T) {
		user, err := svc.Login("Philip", "demo123")
		require.NoError(t, err)
		assert.Equal(t, "Philip", user.Name)
		svc.Logout()
	})
}

func TestLogout(t *testing.T) {
	svc, kv := newTestService(t)
	user, err := svc.Register("Ama", "+233500000000", "secret1", "")
	require.NoError(t, err)
	svc.SetRemember(true)

	svc.Logout()

	_, ok := svc.CurrentUser()
	assert.False(t, ok)
	assert.False(t, svc.Remembered())

	users := store.Load(kv, store.KeyUsers, []domain.User{})
	for _, u := range users {
		if u.ID == user.ID {
			assert.False(t, u.Online)
		}
	}

	// Logging out twice is harmless.
	svc.Logout()
}

func TestUpdateProfile(t *testing.T) {
	svc, _ := newTestService(t)
	user, err := svc.Register("Ama", "+233500000000", "secret1", "")
	require.NoError(t, err)

	name := "Ama Serwaa"
	about := "Level 200"
	updated, err := svc.UpdateProfile(user.ID, ProfileUpdate{Name: &name, About: &about})
	require.NoError(t, err)
	assert.Equal(t, "Ama Serwaa", updated.Name)
	assert.Equal(t, "Level 200", updated.About)
	assert.Equal(t, "+233500000000", updated.Phone)

	t.Run("session stays in sync", func(t *testing.T) {
		current, ok := svc.CurrentUser()
		require.True(t, ok)
		assert.Equal(t, "Ama Serwaa", current.Name)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.UpdateProfile("u_missing", ProfileUpdate{Name: &name})
		assert.True(t, domain.IsNotFound(err))
	})
}

func TestChangePassword(t *testing.T) {
	svc, _ := newTestService(t)
	user, err := svc.Register("Ama", "+233500000000", "secret1", "")
	require.NoError(t, err)

	t.Run("wrong old password", func(t *testing.T) {
		err := svc.ChangePassword(user.ID, "nope", "newsecret")
		assert.True(t, domain.IsUnauthorized(err))
	})

	t.Run("short new password", func(t *testing.T) {
		err := svc.ChangePassword(user.ID, "secret1", "abc")
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("success", func(t *testing.T) {
		require.NoError(t, svc.ChangePassword(user.ID, "secret1", "newsecret"))
		svc.Logout()
		_, err := svc.Login("+233500000000", "newsecret")
		assert.NoError(t, err)
	})
}

func TestDeleteAccount(t *testing.T) {
	svc, kv := newTestService(t)
	ama, err := svc.Register("Ama", "+233500000000", "secret1", "")
	require.NoError(t, err)
	kojo, err := svc.Register("Kojo", "+233500000001", "secret2", "")
	require.NoError(t, err)

	// Make them friends and give Ama a message and a status.
	users := store.Load(kv, store.KeyUsers, []domain.User{})
	for i := range users {
		switch users[i].ID {
		case ama.ID:
			users[i].Friends = []string{kojo.ID}
		case kojo.ID:
			users[i].Friends = []string{ama.ID}
		}
	}
	store.Save(kv, store.KeyUsers, users)
	store.Save(kv, store.KeyMessages, []domain.Message{
		{ID: "m1", From: ama.ID, ConvID: "p_" + ama.ID + "_" + kojo.ID},
		{ID: "m2", From: kojo.ID, ConvID: "p_" + ama.ID + "_" + kojo.ID},
	})
	store.Save(kv, store.KeyStatus, []domain.Status{{ID: "s1", UserID: ama.ID}})
	store.Save(kv, store.KeyGroups, []domain.Group{
		{ID: "g1", Creator: ama.ID, Members: []string{ama.ID}, Admins: []string{ama.ID}},
		{ID: "g2", Creator: kojo.ID, Members: []string{kojo.ID, ama.ID}, Admins: []string{kojo.ID}},
	})

	require.NoError(t, svc.DeleteAccount(ama.ID))

	users = store.Load(kv, store.KeyUsers, []domain.User{})
	for _, u := range users {
		assert.NotEqual(t, ama.ID, u.ID)
		assert.NotContains(t, u.Friends, ama.ID)
	}

	groups := store.Load(kv, store.KeyGroups, []domain.Group{})
	require.Len(t, groups, 1, "emptied group is deleted")
	assert.Equal(t, "g2", groups[0].ID)
	assert.NotContains(t, groups[0].Members, ama.ID)

	msgs := store.Load(kv, store.KeyMessages, []domain.Message{})
	require.Len(t, msgs, 1)
	assert.Equal(t, "m2", msgs[0].ID)

	statuses := store.Load(kv, store.KeyStatus, []domain.Status{})
	assert.Empty(t, statuses)

	t.Run("session cleared", func(t *testing.T) {
		current, ok := svc.CurrentUser()
		if ok {
			assert.NotEqual(t, ama.ID, current.ID)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		err := svc.DeleteAccount("u_missing")
		assert.True(t, domain.IsNotFound(err))
	})
}
