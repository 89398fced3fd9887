package chat

import (
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"regent-connect/internal/data/store"
	"regent-connect/internal/domain"
)

// Tombstone replaces the text of a message deleted for everyone; the record
// itself stays so counterpart views can render the removal.
const Tombstone = "This message was deleted"

const (
	// typingTTL is how long a typing record counts as active.
	typingTTL = 5 * time.Second
	// typingSweepDelay is how long after a keystroke the writer schedules the
	// cleanup that re-checks staleness at fire time.
	typingSweepDelay = 3 * time.Second
)

// Service handles private and group messaging over the shared store.
type Service struct {
	kv  *store.KV
	log *zap.Logger
	now func() time.Time
}

// NewService creates a new chat Service.
func NewService(kv *store.KV, log *zap.Logger) *Service {
	return &Service{kv: kv, log: log.Named("chat"), now: time.Now}
}

// ConversationID derives the private conversation id for a user pair. The two
// ids are sorted first, so both participants compute the same id.
func ConversationID(userA, userB string) string {
	pair := []string{userA, userB}
	sort.Strings(pair)
	return "p_" + pair[0] + "_" + pair[1]
}

// GroupConversationID derives the conversation id for a group.
func GroupConversationID(groupID string) string {
	return "group_" + groupID
}

// SendOptions carries the optional parts of a message.
type SendOptions struct {
	Type           string
	Attachment     string
	AttachmentType string
	AttachmentName string
	QuotedID       string
	Group          bool
}

// Send appends a message from senderID to a user or group. A message with
// neither text nor attachment is rejected.
func (s *Service) Send(senderID, to, text string, opts SendOptions) (*domain.Message, error) {
	if text == "" && opts.Attachment == "" {
		return nil, domain.Validationf("message cannot be empty")
	}

	convID := ConversationID(senderID, to)
	if opts.Group {
		convID = GroupConversationID(to)
	}
	msgType := opts.Type
	if msgType == "" {
		msgType = "text"
	}

	msg := domain.Message{
		ID:             domain.NewID("msg"),
		ConvID:         convID,
		From:           senderID,
		To:             to,
		Text:           text,
		Type:           msgType,
		Attachment:     opts.Attachment,
		AttachmentType: opts.AttachmentType,
		AttachmentName: opts.AttachmentName,
		QuotedID:       opts.QuotedID,
		Status:         domain.MessageSent,
		Timestamp:      s.now(),
	}

	msgs := store.Load(s.kv, store.KeyMessages, []domain.Message{})
	msgs = append(msgs, msg)
	store.Save(s.kv, store.KeyMessages, msgs)

	return &msg, nil
}

// Messages returns the non-deleted messages of a conversation, oldest first.
func (s *Service) Messages(convID string) []domain.Message {
	msgs := store.Load(s.kv, store.KeyMessages, []domain.Message{})
	var out []domain.Message
	for _, m := range msgs {
		if m.ConvID == convID && !m.Deleted {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// PrivateMessages returns the conversation between two users.
func (s *Service) PrivateMessages(userA, userB string) []domain.Message {
	return s.Messages(ConversationID(userA, userB))
}

// MarkSeen flips seen/read on every message in the conversation addressed to
// readerID and returns how many were updated. Messages addressed to other
// participants are untouched.
func (s *Service) MarkSeen(convID, readerID string) int {
	msgs := store.Load(s.kv, store.KeyMessages, []domain.Message{})
	updated := 0
	for i := range msgs {
		if msgs[i].ConvID == convID && msgs[i].To == readerID && !msgs[i].Seen {
			msgs[i].Seen = true
			msgs[i].Status = domain.MessageRead
			updated++
		}
	}
	if updated > 0 {
		store.Save(s.kv, store.KeyMessages, msgs)
	}
	return updated
}

// Star sets or clears the star on a message. Any participant may star a
// message, not just the sender.
func (s *Service) Star(messageID string, starred bool) error {
	msgs := store.Load(s.kv, store.KeyMessages, []domain.Message{})
	idx := indexOf(msgs, messageID)
	if idx == -1 {
		return domain.NotFoundf("message not found")
	}
	msgs[idx].Starred = starred
	store.Save(s.kv, store.KeyMessages, msgs)
	return nil
}

// Starred returns starred messages, optionally scoped to one conversation.
func (s *Service) Starred(convID string) []domain.Message {
	msgs := store.Load(s.kv, store.KeyMessages, []domain.Message{})
	var out []domain.Message
	for _, m := range msgs {
		if m.Starred && (convID == "" || m.ConvID == convID) {
			out = append(out, m)
		}
	}
	return out
}

// Edit replaces the text of actorID's own message and marks it edited.
func (s *Service) Edit(messageID, actorID, newText string) (*domain.Message, error) {
	msgs := store.Load(s.kv, store.KeyMessages, []domain.Message{})
	idx := indexOf(msgs, messageID)
	if idx == -1 {
		return nil, domain.NotFoundf("message not found")
	}
	if msgs[idx].From != actorID {
		return nil, domain.Unauthorizedf("you can only edit your own messages")
	}

	msgs[idx].Text = newText
	msgs[idx].Edited = true
	msgs[idx].EditedAt = s.now()
	store.Save(s.kv, store.KeyMessages, msgs)
	msg := msgs[idx]
	return &msg, nil
}

// Delete removes a message. For everyone: sender-only, the record stays with
// deleted=true and the tombstone text. For me: the record is removed outright.
func (s *Service) Delete(messageID, actorID string, forEveryone bool) error {
	msgs := store.Load(s.kv, store.KeyMessages, []domain.Message{})
	idx := indexOf(msgs, messageID)
	if idx == -1 {
		return domain.NotFoundf("message not found")
	}
	if forEveryone && msgs[idx].From != actorID {
		return domain.Unauthorizedf("you can only delete your own messages for everyone")
	}

	if forEveryone {
		msgs[idx].Deleted = true
		msgs[idx].DeletedAt = s.now()
		msgs[idx].Text = Tombstone
	} else {
		msgs = append(msgs[:idx], msgs[idx+1:]...)
	}
	store.Save(s.kv, store.KeyMessages, msgs)
	return nil
}

// RecentConversations scans all messages, buckets them by conversation,
// attaches peer or group metadata, and returns buckets newest-first,
// truncated to limit.
func (s *Service) RecentConversations(userID string, limit int) []domain.Conversation {
	msgs := store.Load(s.kv, store.KeyMessages, []domain.Message{})
	users := store.Load(s.kv, store.KeyUsers, []domain.User{})
	groups := store.Load(s.kv, store.KeyGroups, []domain.Group{})

	memberOf := make(map[string]bool)
	for _, g := range groups {
		for _, m := range g.Members {
			if m == userID {
				memberOf[GroupConversationID(g.ID)] = true
				break
			}
		}
	}

	buckets := make(map[string]*domain.Conversation)
	for _, m := range msgs {
		if strings.HasPrefix(m.ConvID, "group_") {
			if !memberOf[m.ConvID] {
				continue
			}
		} else if !isParticipant(m.ConvID, userID) {
			continue
		}

		conv, ok := buckets[m.ConvID]
		if !ok {
			conv = &domain.Conversation{ConvID: m.ConvID, LastMessage: m}
			buckets[m.ConvID] = conv
		} else if m.Timestamp.After(conv.LastMessage.Timestamp) {
			conv.LastMessage = m
		}

		if m.To == userID && !m.Seen {
			conv.UnreadCount++
		}
	}

	out := make([]domain.Conversation, 0, len(buckets))
	for _, conv := range buckets {
		if strings.HasPrefix(conv.ConvID, "group_") {
			groupID := strings.TrimPrefix(conv.ConvID, "group_")
			conv.Type = "group"
			conv.GroupID = groupID
			conv.Name = "Unknown Group"
			for _, g := range groups {
				if g.ID == groupID {
					conv.Name = g.Name
					conv.Members = g.Members
					break
				}
			}
		} else {
			otherID := privatePeer(conv.ConvID, userID)
			conv.Type = "private"
			conv.UserID = otherID
			conv.Name = "Unknown User"
			conv.Avatar = "#6ee7b7"
			for _, u := range users {
				if u.ID == otherID {
					conv.Name = u.Name
					conv.Avatar = u.AvatarColor
					conv.Online = u.Online
					break
				}
			}
		}
		out = append(out, *conv)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastMessage.Timestamp.After(out[j].LastMessage.Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Search returns non-deleted messages whose text contains the query,
// optionally scoped to one conversation.
func (s *Service) Search(query, convID string) []domain.Message {
	msgs := store.Load(s.kv, store.KeyMessages, []domain.Message{})
	needle := strings.ToLower(strings.TrimSpace(query))

	var out []domain.Message
	for _, m := range msgs {
		if m.Deleted {
			continue
		}
		if convID != "" && m.ConvID != convID {
			continue
		}
		if strings.Contains(strings.ToLower(m.Text), needle) {
			out = append(out, m)
		}
	}
	return out
}

// UnreadCount counts unseen messages addressed to userID, optionally scoped
// to one conversation.
func (s *Service) UnreadCount(userID, convID string) int {
	msgs := store.Load(s.kv, store.KeyMessages, []domain.Message{})
	count := 0
	for _, m := range msgs {
		if m.To == userID && !m.Seen && (convID == "" || m.ConvID == convID) {
			count++
		}
	}
	return count
}

// Clear hard-removes every message of a conversation and returns the count.
func (s *Service) Clear(convID string) int {
	msgs := store.Load(s.kv, store.KeyMessages, []domain.Message{})
	kept := msgs[:0]
	for _, m := range msgs {
		if m.ConvID != convID {
			kept = append(kept, m)
		}
	}
	removed := len(msgs) - len(kept)
	store.Save(s.kv, store.KeyMessages, kept)
	return removed
}

// SetTyping writes or clears the transient typing record for a user in a
// conversation. A write schedules a cleanup that fires after the sweep delay
// and removes the record only if it is still stale then.
func (s *Service) SetTyping(convID, userID string, isTyping bool) {
	key := store.TypingKey(convID, userID)
	if !isTyping {
		s.kv.Remove(key)
		return
	}

	store.Save(s.kv, key, domain.TypingState{UserID: userID, Time: s.now()})
	time.AfterFunc(typingSweepDelay, func() {
		var zero domain.TypingState
		state := store.Load(s.kv, key, zero)
		if state.UserID != "" && s.now().Sub(state.Time) >= typingSweepDelay {
			s.kv.Remove(key)
		}
	})
}

// IsTyping reports whether a user's typing record is present and fresh. A
// stale record is removed on read.
func (s *Service) IsTyping(convID, userID string) bool {
	key := store.TypingKey(convID, userID)
	var zero domain.TypingState
	state := store.Load(s.kv, key, zero)
	if state.UserID == "" {
		return false
	}
	if s.now().Sub(state.Time) > typingTTL {
		s.kv.Remove(key)
		return false
	}
	return true
}

func indexOf(msgs []domain.Message, id string) int {
	for i := range msgs {
		if msgs[i].ID == id {
			return i
		}
	}
	return -1
}

// isParticipant reports whether userID is one of the two participants in a
// private conversation id. Segments are matched whole, so an id that is a
// prefix of another (say "u1" and "u12") never matches the wrong
// conversation.
func isParticipant(convID, userID string) bool {
	rest := strings.TrimPrefix(convID, "p_")
	return strings.HasPrefix(rest, userID+"_") || strings.HasSuffix(rest, "_"+userID)
}

// privatePeer extracts the other participant from a private conversation id.
// Ids are underscore-free, but seeded ids like "bot_ai" are not, so the
// known participant is stripped positionally instead of by splitting.
func privatePeer(convID, userID string) string {
	rest := strings.TrimPrefix(convID, "p_")
	if strings.HasPrefix(rest, userID+"_") {
		return rest[len(userID)+1:]
	}
	if strings.HasSuffix(rest, "_"+userID) {
		return rest[:len(rest)-len(userID)-1]
	}
	return rest
}
