package group

import (
	"math/rand"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"regent-connect/internal/data/store"
	"regent-connect/internal/domain"
	"regent-connect/internal/service/chat"
)

var groupColors = []string{
	"#8b5cf6", "#6366f1", "#3b82f6", "#06b6d4",
	"#10b981", "#f59e0b", "#ef4444", "#ec4899",
}

// inviteScheme prefixes group invite links rendered into QR codes.
const inviteScheme = "regent-connect://join/"

// Service handles group lifecycle and delegates group messaging to chat.
type Service struct {
	kv   *store.KV
	chat *chat.Service
	log  *zap.Logger
	now  func() time.Time
}

// NewService creates a new group Service.
func NewService(kv *store.KV, chatSvc *chat.Service, log *zap.Logger) *Service {
	return &Service{kv: kv, chat: chatSvc, log: log.Named("group"), now: time.Now}
}

// CreateOptions carries the optional parts of a new group.
type CreateOptions struct {
	Description string
	Avatar      string
	AvatarType  string
	Settings    domain.GroupSettings
}

// Create makes a group with members = dedup(creator + memberIDs) and the
// creator as sole admin.
func (s *Service) Create(creatorID, name string, memberIDs []string, opts CreateOptions) (*domain.Group, error) {
	name = strings.TrimSpace(name)
	if len(name) < 2 {
		return nil, domain.Validationf("group name must be at least 2 characters")
	}
	if len(memberIDs) == 0 {
		return nil, domain.Validationf("group must have at least one member besides you")
	}

	avatar := opts.Avatar
	if avatar == "" {
		avatar = groupColors[rand.Intn(len(groupColors))]
	}
	avatarType := opts.AvatarType
	if avatarType == "" {
		avatarType = "color"
	}

	g := domain.Group{
		ID:          domain.NewID("grp"),
		Name:        name,
		Description: opts.Description,
		Avatar:      avatar,
		AvatarType:  avatarType,
		Creator:     creatorID,
		Admins:      []string{creatorID},
		Members:     dedup(append([]string{creatorID}, memberIDs...)),
		InviteCode:  domain.NewID("inv"),
		Settings:    opts.Settings,
		CreatedAt:   s.now(),
	}

	groups := store.Load(s.kv, store.KeyGroups, []domain.Group{})
	groups = append(groups, g)
	store.Save(s.kv, store.KeyGroups, groups)

	s.log.Info("group created", zap.String("group", g.ID), zap.String("creator", creatorID))
	return &g, nil
}

// Get returns a group by id.
func (s *Service) Get(groupID string) (*domain.Group, error) {
	groups := store.Load(s.kv, store.KeyGroups, []domain.Group{})
	idx := indexOf(groups, groupID)
	if idx == -1 {
		return nil, domain.NotFoundf("group not found")
	}
	g := groups[idx]
	return &g, nil
}

// UserGroups returns every group the user is a member of.
func (s *Service) UserGroups(userID string) []domain.Group {
	groups := store.Load(s.kv, store.KeyGroups, []domain.Group{})
	var out []domain.Group
	for _, g := range groups {
		if contains(g.Members, userID) {
			out = append(out, g)
		}
	}
	return out
}

// UpdateOptions carries mutable group metadata; nil fields are left as-is.
type UpdateOptions struct {
	Name        *string
	Description *string
	Avatar      *string
	Settings    *domain.GroupSettings
}

// Update merges metadata changes. Id, creator, and creation date are always
// preserved; only admins may update.
func (s *Service) Update(groupID, actorID string, opts UpdateOptions) (*domain.Group, error) {
	groups := store.Load(s.kv, store.KeyGroups, []domain.Group{})
	idx := indexOf(groups, groupID)
	if idx == -1 {
		return nil, domain.NotFoundf("group not found")
	}
	if !contains(groups[idx].Admins, actorID) {
		return nil, domain.Unauthorizedf("only admins can update group info")
	}

	g := &groups[idx]
	if opts.Name != nil {
		g.Name = *opts.Name
	}
	if opts.Description != nil {
		g.Description = *opts.Description
	}
	if opts.Avatar != nil {
		g.Avatar = *opts.Avatar
	}
	if opts.Settings != nil {
		g.Settings = *opts.Settings
	}

	store.Save(s.kv, store.KeyGroups, groups)
	out := groups[idx]
	return &out, nil
}

// AddMember adds a user. When the group restricts editing to admins, only an
// admin may add.
func (s *Service) AddMember(groupID, actorID, userID string) error {
	groups := store.Load(s.kv, store.KeyGroups, []domain.Group{})
	idx := indexOf(groups, groupID)
	if idx == -1 {
		return domain.NotFoundf("group not found")
	}
	g := &groups[idx]

	if g.Settings.OnlyAdminsCanEdit && !contains(g.Admins, actorID) {
		return domain.Unauthorizedf("only admins can add members")
	}
	if contains(g.Members, userID) {
		return domain.Conflictf("user is already a member")
	}

	g.Members = append(g.Members, userID)
	store.Save(s.kv, store.KeyGroups, groups)
	return nil
}

// RemoveMember removes a user. Admins may remove anyone but the creator; any
// member may remove themself, the creator included. A group emptied of
// members is deleted along with its messages.
func (s *Service) RemoveMember(groupID, actorID, userID string) error {
	groups := store.Load(s.kv, store.KeyGroups, []domain.Group{})
	idx := indexOf(groups, groupID)
	if idx == -1 {
		return domain.NotFoundf("group not found")
	}
	g := &groups[idx]

	isAdmin := contains(g.Admins, actorID)
	isSelf := userID == actorID
	if !isAdmin && !isSelf {
		return domain.Unauthorizedf("only admins can remove members")
	}
	if userID == g.Creator && !isSelf {
		return domain.Unauthorizedf("cannot remove group creator")
	}
	if !contains(g.Members, userID) {
		return domain.NotFoundf("user is not a member")
	}

	g.Members = removeID(g.Members, userID)
	g.Admins = removeID(g.Admins, userID)

	if len(g.Members) == 0 {
		groups = append(groups[:idx], groups[idx+1:]...)
		store.Save(s.kv, store.KeyGroups, groups)
		s.chat.Clear(chat.GroupConversationID(groupID))
		s.log.Info("empty group deleted", zap.String("group", groupID))
		return nil
	}

	store.Save(s.kv, store.KeyGroups, groups)
	return nil
}

// PromoteAdmin grants admin to a member. The actor must already be an admin.
func (s *Service) PromoteAdmin(groupID, actorID, userID string) error {
	groups := store.Load(s.kv, store.KeyGroups, []domain.Group{})
	idx := indexOf(groups, groupID)
	if idx == -1 {
		return domain.NotFoundf("group not found")
	}
	g := &groups[idx]

	if !contains(g.Admins, actorID) {
		return domain.Unauthorizedf("only admins can promote members")
	}
	if !contains(g.Members, userID) {
		return domain.NotFoundf("user is not a member")
	}
	if contains(g.Admins, userID) {
		return domain.Conflictf("user is already an admin")
	}

	g.Admins = append(g.Admins, userID)
	store.Save(s.kv, store.KeyGroups, groups)
	return nil
}

// SendMessage posts into the group conversation. The sender must be a member,
// and an admin when settings restrict posting to admins.
func (s *Service) SendMessage(groupID, senderID, text string, opts chat.SendOptions) (*domain.Message, error) {
	g, err := s.Get(groupID)
	if err != nil {
		return nil, err
	}
	if !contains(g.Members, senderID) {
		return nil, domain.Unauthorizedf("you are not a member of this group")
	}
	if g.Settings.OnlyAdminsCanSend && !contains(g.Admins, senderID) {
		return nil, domain.Unauthorizedf("only admins can send messages in this group")
	}

	opts.Group = true
	return s.chat.Send(senderID, groupID, text, opts)
}

// Delete removes a group and its messages. Creator only.
func (s *Service) Delete(groupID, actorID string) error {
	groups := store.Load(s.kv, store.KeyGroups, []domain.Group{})
	idx := indexOf(groups, groupID)
	if idx == -1 {
		return domain.NotFoundf("group not found")
	}
	if groups[idx].Creator != actorID {
		return domain.Unauthorizedf("only the creator can delete the group")
	}

	groups = append(groups[:idx], groups[idx+1:]...)
	store.Save(s.kv, store.KeyGroups, groups)
	s.chat.Clear(chat.GroupConversationID(groupID))
	s.log.Info("group deleted", zap.String("group", groupID))
	return nil
}

// InviteLink returns the joinable invite link for a group.
func (s *Service) InviteLink(groupID string) (string, error) {
	g, err := s.Get(groupID)
	if err != nil {
		return "", err
	}
	return inviteScheme + g.InviteCode, nil
}

// InviteQR renders the invite link as a PNG QR code of the given pixel size.
func (s *Service) InviteQR(groupID string, size int) ([]byte, error) {
	link, err := s.InviteLink(groupID)
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(link, qrcode.Medium, size)
	if err != nil {
		return nil, err
	}
	return png, nil
}

func indexOf(groups []domain.Group, id string) int {
	for i := range groups {
		if groups[i].ID == id {
			return i
		}
	}
	return -1
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

func dedup(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
