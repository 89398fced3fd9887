package auth

import (
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"regent-connect/internal/data/store"
	"regent-connect/internal/domain"
)

var avatarColors = []string{
	"#ef4444", "#f97316", "#f59e0b", "#eab308",
	"#84cc16", "#10b981", "#06b6d4", "#3b82f6",
	"#6366f1", "#8b5cf6", "#a855f7", "#ec4899",
}

// Service handles registration, login, and account lifecycle. The persisted
// current-user pointer is session state only; other services always receive
// the acting user id explicitly.
type Service struct {
	kv  *store.KV
	log *zap.Logger
	now func() time.Time
}

// NewService creates a new auth Service.
func NewService(kv *store.KV, log *zap.Logger) *Service {
	return &Service{kv: kv, log: log.Named("auth"), now: time.Now}
}

// Register creates a new user and signs them in.
func (s *Service) Register(name, identifier, password, bio string) (*domain.User, error) {
	name = strings.TrimSpace(name)
	identifier = strings.TrimSpace(identifier)

	if len(name) < 2 {
		return nil, domain.Validationf("name must be at least 2 characters")
	}
	if len(identifier) < 3 {
		return nil, domain.Validationf("phone number or email required")
	}
	if len(password) < 6 {
		return nil, domain.Validationf("password must be at least 6 characters")
	}

	users := store.Load(s.kv, store.KeyUsers, []domain.User{})
	for _, u := range users {
		if u.Phone == identifier || strings.EqualFold(u.Name, name) {
			return nil, domain.Conflictf("user with this phone/email or name already exists")
		}
	}

	now := s.now()
	user := domain.User{
		ID:          domain.NewID("u"),
		Name:        name,
		Phone:       identifier,
		Password:    password, // plaintext, demo parity only
		About:       bio,
		AvatarColor: avatarColors[rand.Intn(len(avatarColors))],
		Online:      true,
		LastSeen:    now,
		Friends:     []string{},
		Blocked:     []string{},
		Settings: domain.UserSettings{
			PhotoPrivacy:    "everyone",
			LastSeenPrivacy: "everyone",
		},
		CreatedAt: now,
	}

	users = append(users, user)
	store.Save(s.kv, store.KeyUsers, users)
	store.Save(s.kv, store.KeyCurrentUser, user)

	s.log.Info("user registered", zap.String("user", user.ID))
	return &user, nil
}

// Login matches identifier (phone, case-insensitive name, or id) and
// password, marks the user online, and sets the session pointer. Unknown
// identifier and wrong password both surface as invalid credentials.
func (s *Service) Login(identifier, password string) (*domain.User, error) {
	if identifier == "" || password == "" {
		return nil, domain.Validationf("please enter all fields")
	}

	users := store.Load(s.kv, store.KeyUsers, []domain.User{})
	identLower := strings.ToLower(strings.TrimSpace(identifier))

	idx := -1
	for i, u := range users {
		if u.Phone == identifier || strings.ToLower(u.Name) == identLower || u.ID == identifier {
			idx = i
			break
		}
	}
	if idx == -1 || users[idx].Password != password {
		return nil, domain.NotFoundf("invalid credentials")
	}

	users[idx].Online = true
	users[idx].LastSeen = s.now()
	store.Save(s.kv, store.KeyUsers, users)
	store.Save(s.kv, store.KeyCurrentUser, users[idx])

	s.log.Info("user logged in", zap.String("user", users[idx].ID))
	user := users[idx]
	return &user, nil
}

// Logout marks the current user offline and clears the session pointer and
// remember flag. Logging out with no session is a no-op.
func (s *Service) Logout() {
	if current, ok := s.CurrentUser(); ok {
		users := store.Load(s.kv, store.KeyUsers, []domain.User{})
		for i := range users {
			if users[i].ID == current.ID {
				users[i].Online = false
				users[i].LastSeen = s.now()
			}
		}
		store.Save(s.kv, store.KeyUsers, users)
	}
	s.kv.Remove(store.KeyCurrentUser)
	s.kv.Remove(store.KeyRemember)
}

// CurrentUser returns the session user, if any.
func (s *Service) CurrentUser() (*domain.User, bool) {
	var zero domain.User
	u := store.Load(s.kv, store.KeyCurrentUser, zero)
	if u.ID == "" {
		return nil, false
	}
	return &u, true
}

// SetRemember persists or clears the remember-me flag.
func (s *Service) SetRemember(remember bool) {
	if remember {
		store.Save(s.kv, store.KeyRemember, true)
	} else {
		s.kv.Remove(store.KeyRemember)
	}
}

// Remembered reports whether the remember-me flag is set.
func (s *Service) Remembered() bool {
	return store.Load(s.kv, store.KeyRemember, false)
}

// ProfileUpdate carries optional profile fields; nil fields are left as-is.
type ProfileUpdate struct {
	Name        *string
	Phone       *string
	About       *string
	AvatarColor *string
	AvatarImage *string
	Password    *string
	Settings    *domain.UserSettings
}

// UpdateProfile merges updates into the user record, keeping the session
// pointer in sync when the session user is the one updated.
func (s *Service) UpdateProfile(userID string, update ProfileUpdate) (*domain.User, error) {
	users := store.Load(s.kv, store.KeyUsers, []domain.User{})
	idx := indexOf(users, userID)
	if idx == -1 {
		return nil, domain.NotFoundf("user not found")
	}

	u := &users[idx]
	if update.Name != nil {
		u.Name = *update.Name
	}
	if update.Phone != nil {
		u.Phone = *update.Phone
	}
	if update.About != nil {
		u.About = *update.About
	}
	if update.AvatarColor != nil {
		u.AvatarColor = *update.AvatarColor
	}
	if update.AvatarImage != nil {
		u.AvatarImage = *update.AvatarImage
	}
	if update.Password != nil {
		u.Password = *update.Password
	}
	if update.Settings != nil {
		u.Settings = *update.Settings
	}

	store.Save(s.kv, store.KeyUsers, users)
	s.syncSession(users[idx])
	user := users[idx]
	return &user, nil
}

// ChangePassword verifies the old password before updating.
func (s *Service) ChangePassword(userID, oldPassword, newPassword string) error {
	users := store.Load(s.kv, store.KeyUsers, []domain.User{})
	idx := indexOf(users, userID)
	if idx == -1 {
		return domain.NotFoundf("user not found")
	}
	if users[idx].Password != oldPassword {
		return domain.Unauthorizedf("current password is incorrect")
	}
	if len(newPassword) < 6 {
		return domain.Validationf("new password must be at least 6 characters")
	}

	users[idx].Password = newPassword
	store.Save(s.kv, store.KeyUsers, users)
	s.syncSession(users[idx])
	return nil
}

// DeleteAccount removes the user and cascades: the id leaves every friends
// list and group membership (groups emptied by this are deleted with their
// messages), and the user's messages and statuses are removed. The session is
// cleared when it belonged to the deleted user.
func (s *Service) DeleteAccount(userID string) error {
	users := store.Load(s.kv, store.KeyUsers, []domain.User{})
	if indexOf(users, userID) == -1 {
		return domain.NotFoundf("user not found")
	}

	kept := users[:0]
	for _, u := range users {
		if u.ID == userID {
			continue
		}
		u.Friends = remove(u.Friends, userID)
		kept = append(kept, u)
	}
	store.Save(s.kv, store.KeyUsers, kept)

	groups := store.Load(s.kv, store.KeyGroups, []domain.Group{})
	var deletedGroups []string
	keptGroups := groups[:0]
	for _, g := range groups {
		g.Members = remove(g.Members, userID)
		g.Admins = remove(g.Admins, userID)
		if len(g.Members) == 0 {
			deletedGroups = append(deletedGroups, g.ID)
			continue
		}
		keptGroups = append(keptGroups, g)
	}
	store.Save(s.kv, store.KeyGroups, keptGroups)

	msgs := store.Load(s.kv, store.KeyMessages, []domain.Message{})
	keptMsgs := msgs[:0]
	for _, m := range msgs {
		if m.From == userID {
			continue
		}
		if inGroupList(m.ConvID, deletedGroups) {
			continue
		}
		keptMsgs = append(keptMsgs, m)
	}
	store.Save(s.kv, store.KeyMessages, keptMsgs)

	statuses := store.Load(s.kv, store.KeyStatus, []domain.Status{})
	keptStatuses := statuses[:0]
	for _, st := range statuses {
		if st.UserID == userID {
			continue
		}
		keptStatuses = append(keptStatuses, st)
	}
	store.Save(s.kv, store.KeyStatus, keptStatuses)

	if current, ok := s.CurrentUser(); ok && current.ID == userID {
		s.kv.Remove(store.KeyCurrentUser)
		s.kv.Remove(store.KeyRemember)
	}

	s.log.Info("account deleted", zap.String("user", userID))
	return nil
}

func (s *Service) syncSession(u domain.User) {
	if current, ok := s.CurrentUser(); ok && current.ID == u.ID {
		store.Save(s.kv, store.KeyCurrentUser, u)
	}
}

func indexOf(users []domain.User, id string) int {
	for i := range users {
		if users[i].ID == id {
			return i
		}
	}
	return -1
}

func remove(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func inGroupList(convID string, groupIDs []string) bool {
	for _, id := range groupIDs {
		if convID == "group_"+id {
			return true
		}
	}
	return false
}
