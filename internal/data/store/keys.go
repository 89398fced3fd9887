package store

import (
	"time"

	"regent-connect/internal/domain"
)

// Canonical storage keys. The whole value at each key is one JSON document.
const (
	KeyUsers         = "rc_users"
	KeyCurrentUser   = "rc_currentUser"
	KeyMessages      = "rc_msgs"
	KeyGroups        = "rc_groups"
	KeyStatus        = "rc_status"
	KeyRequests      = "rc_reqs"
	KeyNotifications = "rc_notifs"
	KeySettings      = "rc_settings"
	KeyRemember      = "rc_remember"
	KeyAIHistory     = "rc_ai_history"
	KeyCalls         = "rc_calls"
)

// canonicalKeys lists every key included in export/import bundles, in a
// stable order.
var canonicalKeys = []string{
	KeyUsers,
	KeyCurrentUser,
	KeyMessages,
	KeyGroups,
	KeyStatus,
	KeyRequests,
	KeyNotifications,
	KeySettings,
	KeyRemember,
	KeyAIHistory,
	KeyCalls,
}

// TypingKey returns the transient typing-indicator key for a user in a
// conversation. Typing keys are deliberately outside the canonical set.
func TypingKey(convID, userID string) string {
	return "typing_" + convID + "_" + userID
}

// DefaultSettings returns the app-wide settings object written on first run.
func DefaultSettings() domain.Settings {
	return domain.Settings{
		Theme:           "dark",
		Notifications:   true,
		Sounds:          true,
		ReadReceipts:    true,
		TypingIndicator: true,
		AutoDownload:    true,
		MediaLimit:      50,
	}
}

// Seed initializes default datasets for any canonical key that is absent.
// Existing data is never overwritten.
func (kv *KV) Seed() {
	if !kv.Exists(KeyUsers) {
		Save(kv, KeyUsers, seedUsers())
	}
	if !kv.Exists(KeyMessages) {
		Save(kv, KeyMessages, []domain.Message{})
	}
	if !kv.Exists(KeyGroups) {
		Save(kv, KeyGroups, []domain.Group{})
	}
	if !kv.Exists(KeyStatus) {
		Save(kv, KeyStatus, []domain.Status{})
	}
	if !kv.Exists(KeyRequests) {
		Save(kv, KeyRequests, []domain.FriendRequest{})
	}
	if !kv.Exists(KeyNotifications) {
		Save(kv, KeyNotifications, []domain.Notification{})
	}
	if !kv.Exists(KeySettings) {
		Save(kv, KeySettings, DefaultSettings())
	}
	if !kv.Exists(KeyAIHistory) {
		Save(kv, KeyAIHistory, []domain.AIEntry{})
	}
	if !kv.Exists(KeyCalls) {
		Save(kv, KeyCalls, []domain.Call{})
	}
}

func seedUsers() []domain.User {
	now := time.Now()
	return []domain.User{
		{
			ID:          domain.NewID("u"),
			Name:        "Philip",
			Phone:       "+233201234567",
			Password:    "demo123",
			About:       "Level 300 CS",
			AvatarColor: "#ef4444",
			Friends:     []string{},
			Blocked:     []string{},
			LastSeen:    now,
			CreatedAt:   now,
		},
		{
			ID:          domain.NewID("u"),
			Name:        "Nana",
			Phone:       "+233245000123",
			Password:    "demo123",
			About:       "Robotics Club",
			AvatarColor: "#f97316",
			Friends:     []string{},
			Blocked:     []string{},
			LastSeen:    now,
			CreatedAt:   now,
		},
		{
			ID:          domain.NewID("u"),
			Name:        "Akosua",
			Phone:       "+233244999888",
			Password:    "demo123",
			About:       "STEMAID",
			AvatarColor: "#06b6d4",
			Friends:     []string{},
			Blocked:     []string{},
			LastSeen:    now,
			CreatedAt:   now,
		},
		{
			ID:          domain.AssistantID,
			Name:        "Regent AI",
			About:       "Simulated assistant",
			AvatarColor: "#4f46e5",
			Friends:     []string{},
			Blocked:     []string{},
			LastSeen:    now,
			CreatedAt:   now,
		},
	}
}
