package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message delivery status values.
const (
	MessageSent      = "sent"
	MessageDelivered = "delivered"
	MessageRead      = "read"
)

// CallStatus is the lifecycle state of a call record.
type CallStatus string

// Call lifecycle states. Calling is the only non-terminal state besides
// Connected; Connected may only transition to Ended.
const (
	CallCalling   CallStatus = "calling"
	CallConnected CallStatus = "connected"
	CallEnded     CallStatus = "ended"
	CallMissed    CallStatus = "missed"
	CallDeclined  CallStatus = "declined"
)

// Status content types.
const (
	StatusText  = "text"
	StatusImage = "image"
	StatusVideo = "video"
)

// AssistantID is the seeded id of the simulated assistant account.
const AssistantID = "bot_ai"

// User is an account record. Passwords are stored and compared in plaintext,
// matching the demo this is modeled on; do not reuse this outside a demo.
type User struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Phone       string       `json:"phone"`
	Password    string       `json:"password"`
	About       string       `json:"about"`
	AvatarColor string       `json:"avatarColor"`
	AvatarImage string       `json:"avatarImage,omitempty"`
	Online      bool         `json:"online"`
	LastSeen    time.Time    `json:"lastSeen"`
	Friends     []string     `json:"friends"`
	Blocked     []string     `json:"blocked"`
	Settings    UserSettings `json:"settings"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// UserSettings holds per-user privacy preferences.
type UserSettings struct {
	PhotoPrivacy    string `json:"photoPrivacy"`
	LastSeenPrivacy string `json:"lastSeenPrivacy"`
}

// Message is a single chat message, private or group.
type Message struct {
	ID             string    `json:"id"`
	ConvID         string    `json:"convId"`
	From           string    `json:"from"`
	To             string    `json:"to"`
	Text           string    `json:"text"`
	Type           string    `json:"type"`
	Attachment     string    `json:"attachment,omitempty"`
	AttachmentType string    `json:"attachmentType,omitempty"`
	AttachmentName string    `json:"attachmentName,omitempty"`
	QuotedID       string    `json:"quotedId,omitempty"`
	Status         string    `json:"status"`
	Starred        bool      `json:"starred"`
	Seen           bool      `json:"seen"`
	Edited         bool      `json:"edited"`
	Deleted        bool      `json:"deleted"`
	Timestamp      time.Time `json:"timestamp"`
	EditedAt       time.Time `json:"editedAt,omitempty"`
	DeletedAt      time.Time `json:"deletedAt,omitempty"`
}

// Group is a chat group. Creator is always a member and the first admin.
type Group struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Avatar      string        `json:"avatar"`
	AvatarType  string        `json:"avatarType"`
	Creator     string        `json:"createdBy"`
	Admins      []string      `json:"admins"`
	Members     []string      `json:"members"`
	InviteCode  string        `json:"inviteCode"`
	Settings    GroupSettings `json:"settings"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// GroupSettings controls who may post and edit group metadata.
type GroupSettings struct {
	OnlyAdminsCanSend bool `json:"onlyAdminsCanSend"`
	OnlyAdminsCanEdit bool `json:"onlyAdminsCanEdit"`
	AllowMemberAdd    bool `json:"allowMemberAdd"`
}

// FriendRequest is a pending request; accepted or rejected requests are
// removed rather than flagged.
type FriendRequest struct {
	ID   string    `json:"id"`
	From string    `json:"from"`
	To   string    `json:"to"`
	Time time.Time `json:"time"`
}

// Status is an ephemeral story post with a fixed 24-hour lifetime.
type Status struct {
	ID         string     `json:"id"`
	UserID     string     `json:"userId"`
	Type       string     `json:"type"`
	Text       string     `json:"text"`
	File       string     `json:"file,omitempty"`
	Background string     `json:"backgroundColor"`
	Views      []string   `json:"views"`
	Reactions  []Reaction `json:"reactions"`
	Timestamp  time.Time  `json:"timestamp"`
}

// Reaction is a single emoji reaction; one per user per status.
type Reaction struct {
	UserID string    `json:"userId"`
	Emoji  string    `json:"emoji"`
	Time   time.Time `json:"time"`
}

// Notification is an inbox entry for social events.
type Notification struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	Message string    `json:"message"`
	Read    bool      `json:"read"`
	Time    time.Time `json:"time"`
}

// Call is a simulated call record. Duration is derived in whole seconds when
// the call ends.
type Call struct {
	ID        string     `json:"id"`
	Caller    string     `json:"caller"`
	Receiver  string     `json:"receiver,omitempty"`
	GroupID   string     `json:"groupId,omitempty"`
	Type      string     `json:"type"`
	IsGroup   bool       `json:"isGroup"`
	Status    CallStatus `json:"status"`
	StartTime time.Time  `json:"startTime"`
	EndTime   time.Time  `json:"endTime,omitempty"`
	Duration  int        `json:"duration"`
}

// Settings holds the app-wide preference object.
type Settings struct {
	Theme           string `json:"theme"`
	Notifications   bool   `json:"notifications"`
	Sounds          bool   `json:"sounds"`
	ReadReceipts    bool   `json:"readReceipts"`
	TypingIndicator bool   `json:"typingIndicator"`
	AutoDownload    bool   `json:"autoDownload"`
	MediaLimit      int    `json:"mediaLimit"`
}

// AIEntry is one turn of the assistant conversation history.
type AIEntry struct {
	Role string    `json:"role"`
	Text string    `json:"text"`
	Time time.Time `json:"time"`
}

// TypingState is the transient typing-indicator record.
type TypingState struct {
	UserID string    `json:"userId"`
	Time   time.Time `json:"time"`
}

// Conversation is a derived recent-conversation summary; it is never stored.
type Conversation struct {
	ConvID      string   `json:"convId"`
	Type        string   `json:"type"` // "private" or "group"
	LastMessage Message  `json:"lastMessage"`
	UnreadCount int      `json:"unreadCount"`
	UserID      string   `json:"userId,omitempty"`
	GroupID     string   `json:"groupId,omitempty"`
	Name        string   `json:"name"`
	Avatar      string   `json:"avatar,omitempty"`
	Online      bool     `json:"online,omitempty"`
	Members     []string `json:"members,omitempty"`
}

// NewID returns a prefixed random id, e.g. "msg1f2c9a04b8d3". No separator:
// conversation ids are underscore-joined, so ids must stay underscore-free.
func NewID(prefix string) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + raw[:12]
}
