package social

import (
	"time"

	"go.uber.org/zap"

	"regent-connect/internal/data/store"
	"regent-connect/internal/domain"
)

// Service handles the social graph: friend requests, friendships, blocking,
// and the notification inbox.
type Service struct {
	kv  *store.KV
	log *zap.Logger
	now func() time.Time
}

// NewService creates a new social Service.
func NewService(kv *store.KV, log *zap.Logger) *Service {
	return &Service{kv: kv, log: log.Named("social"), now: time.Now}
}

// UserByID returns a user record by id.
func (s *Service) UserByID(id string) (*domain.User, error) {
	users := store.Load(s.kv, store.KeyUsers, []domain.User{})
	for _, u := range users {
		if u.ID == id {
			out := u
			return &out, nil
		}
	}
	return nil, domain.NotFoundf("user not found")
}

// Friends returns the resolved friend records of a user. Dangling ids are
// skipped.
func (s *Service) Friends(userID string) []domain.User {
	u, err := s.UserByID(userID)
	if err != nil {
		return nil
	}
	users := store.Load(s.kv, store.KeyUsers, []domain.User{})
	var out []domain.User
	for _, friendID := range u.Friends {
		for _, cand := range users {
			if cand.ID == friendID {
				out = append(out, cand)
				break
			}
		}
	}
	return out
}

// AreFriends reports whether b is on a's friends list.
func (s *Service) AreFriends(a, b string) bool {
	u, err := s.UserByID(a)
	if err != nil {
		return false
	}
	return contains(u.Friends, b)
}

// SendFriendRequest creates a pending request plus a notification. Self
// requests, existing friendships, and a pending request between the pair in
// either direction are rejected.
func (s *Service) SendFriendRequest(fromID, toID string) (*domain.FriendRequest, error) {
	if fromID == toID {
		return nil, domain.Validationf("cannot friend yourself")
	}
	if s.AreFriends(fromID, toID) {
		return nil, domain.Conflictf("already friends")
	}

	reqs := store.Load(s.kv, store.KeyRequests, []domain.FriendRequest{})
	for _, r := range reqs {
		if (r.From == fromID && r.To == toID) || (r.From == toID && r.To == fromID) {
			return nil, domain.Conflictf("request already pending")
		}
	}

	req := domain.FriendRequest{
		ID:   domain.NewID("req"),
		From: fromID,
		To:   toID,
		Time: s.now(),
	}
	reqs = append(reqs, req)
	store.Save(s.kv, store.KeyRequests, reqs)

	fromName := "Someone"
	if u, err := s.UserByID(fromID); err == nil {
		fromName = u.Name
	}
	s.notify(domain.Notification{
		Type:    "friend_request",
		From:    fromID,
		To:      toID,
		Message: fromName + " sent you a friend request",
	})

	return &req, nil
}

// AcceptFriendRequest adds each user to the other's friends list, dedup
// guarded, and deletes the request.
func (s *Service) AcceptFriendRequest(requestID string) error {
	reqs := store.Load(s.kv, store.KeyRequests, []domain.FriendRequest{})
	reqIdx := -1
	for i, r := range reqs {
		if r.ID == requestID {
			reqIdx = i
			break
		}
	}
	if reqIdx == -1 {
		return domain.NotFoundf("request not found")
	}
	req := reqs[reqIdx]

	users := store.Load(s.kv, store.KeyUsers, []domain.User{})
	fromIdx, toIdx := -1, -1
	for i := range users {
		switch users[i].ID {
		case req.From:
			fromIdx = i
		case req.To:
			toIdx = i
		}
	}
	if fromIdx == -1 || toIdx == -1 {
		return domain.NotFoundf("users not found")
	}

	if !contains(users[fromIdx].Friends, req.To) {
		users[fromIdx].Friends = append(users[fromIdx].Friends, req.To)
	}
	if !contains(users[toIdx].Friends, req.From) {
		users[toIdx].Friends = append(users[toIdx].Friends, req.From)
	}
	store.Save(s.kv, store.KeyUsers, users)

	reqs = append(reqs[:reqIdx], reqs[reqIdx+1:]...)
	store.Save(s.kv, store.KeyRequests, reqs)

	s.log.Info("friend request accepted",
		zap.String("from", req.From), zap.String("to", req.To))
	return nil
}

// RejectFriendRequest deletes the request; nothing else changes.
func (s *Service) RejectFriendRequest(requestID string) error {
	reqs := store.Load(s.kv, store.KeyRequests, []domain.FriendRequest{})
	kept := reqs[:0]
	found := false
	for _, r := range reqs {
		if r.ID == requestID {
			found = true
			continue
		}
		kept = append(kept, r)
	}
	if !found {
		return domain.NotFoundf("request not found")
	}
	store.Save(s.kv, store.KeyRequests, kept)
	return nil
}

// RemoveFriend drops the friendship from both sides.
func (s *Service) RemoveFriend(userID, friendID string) error {
	users := store.Load(s.kv, store.KeyUsers, []domain.User{})
	userIdx, friendIdx := -1, -1
	for i := range users {
		switch users[i].ID {
		case userID:
			userIdx = i
		case friendID:
			friendIdx = i
		}
	}
	if userIdx == -1 || friendIdx == -1 {
		return domain.NotFoundf("users not found")
	}

	users[userIdx].Friends = removeID(users[userIdx].Friends, friendID)
	users[friendIdx].Friends = removeID(users[friendIdx].Friends, userID)
	store.Save(s.kv, store.KeyUsers, users)
	return nil
}

// Block appends victimID to the blocker's blocked list and removes any
// friendship entry on the blocker's side. Blocking is one-directional: only
// the blocker's record changes.
func (s *Service) Block(blockerID, victimID string) error {
	if blockerID == victimID {
		return domain.Validationf("cannot block yourself")
	}

	users := store.Load(s.kv, store.KeyUsers, []domain.User{})
	idx := -1
	for i := range users {
		if users[i].ID == blockerID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return domain.NotFoundf("user not found")
	}
	if contains(users[idx].Blocked, victimID) {
		return domain.Conflictf("user already blocked")
	}

	users[idx].Blocked = append(users[idx].Blocked, victimID)
	users[idx].Friends = removeID(users[idx].Friends, victimID)
	store.Save(s.kv, store.KeyUsers, users)
	return nil
}

// Unblock removes victimID from the blocker's blocked list.
func (s *Service) Unblock(blockerID, victimID string) error {
	users := store.Load(s.kv, store.KeyUsers, []domain.User{})
	idx := -1
	for i := range users {
		if users[i].ID == blockerID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return domain.NotFoundf("user not found")
	}

	users[idx].Blocked = removeID(users[idx].Blocked, victimID)
	store.Save(s.kv, store.KeyUsers, users)
	return nil
}

// IsBlocked reports whether victimID is on blockerID's blocked list.
func (s *Service) IsBlocked(blockerID, victimID string) bool {
	u, err := s.UserByID(blockerID)
	if err != nil {
		return false
	}
	return contains(u.Blocked, victimID)
}

// PendingRequests returns requests addressed to userID.
func (s *Service) PendingRequests(userID string) []domain.FriendRequest {
	reqs := store.Load(s.kv, store.KeyRequests, []domain.FriendRequest{})
	var out []domain.FriendRequest
	for _, r := range reqs {
		if r.To == userID {
			out = append(out, r)
		}
	}
	return out
}

// SentRequests returns requests sent by userID.
func (s *Service) SentRequests(userID string) []domain.FriendRequest {
	reqs := store.Load(s.kv, store.KeyRequests, []domain.FriendRequest{})
	var out []domain.FriendRequest
	for _, r := range reqs {
		if r.From == userID {
			out = append(out, r)
		}
	}
	return out
}

// Notifications returns the inbox entries addressed to userID, unread first
// is left to the caller; order is insertion order.
func (s *Service) Notifications(userID string) []domain.Notification {
	notifs := store.Load(s.kv, store.KeyNotifications, []domain.Notification{})
	var out []domain.Notification
	for _, n := range notifs {
		if n.To == userID {
			out = append(out, n)
		}
	}
	return out
}

// MarkNotificationRead flips the read flag on one notification.
func (s *Service) MarkNotificationRead(notificationID string) error {
	notifs := store.Load(s.kv, store.KeyNotifications, []domain.Notification{})
	for i := range notifs {
		if notifs[i].ID == notificationID {
			notifs[i].Read = true
			store.Save(s.kv, store.KeyNotifications, notifs)
			return nil
		}
	}
	return domain.NotFoundf("notification not found")
}

func (s *Service) notify(n domain.Notification) {
	n.ID = domain.NewID("notif")
	n.Time = s.now()
	notifs := store.Load(s.kv, store.KeyNotifications, []domain.Notification{})
	notifs = append(notifs, n)
	store.Save(s.kv, store.KeyNotifications, notifs)
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func removeID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
