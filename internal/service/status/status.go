package status

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"regent-connect/internal/data/store"
	"regent-connect/internal/domain"
)

// TTL is how long a status stays visible. A status whose age reaches TTL is
// expired everywhere: reads filter it and the sweep removes it.
const TTL = 24 * time.Hour

// DefaultSweepInterval is how often the background sweep runs.
const DefaultSweepInterval = 60 * time.Second

// Service handles ephemeral status posts.
type Service struct {
	kv  *store.KV
	log *zap.Logger
	now func() time.Time

	sweepCtx    context.Context
	sweepCancel context.CancelFunc
	sweepWg     sync.WaitGroup
}

// NewService creates a new status Service.
func NewService(kv *store.KV, log *zap.Logger) *Service {
	return &Service{kv: kv, log: log.Named("status"), now: time.Now}
}

// AddOptions carries the content of a new status.
type AddOptions struct {
	Text       string
	File       string
	Background string
}

// Add posts a status. Text statuses need text; image and video statuses need
// a file payload.
func (s *Service) Add(authorID, statusType string, opts AddOptions) (*domain.Status, error) {
	switch statusType {
	case domain.StatusText:
		if opts.Text == "" {
			return nil, domain.Validationf("text status cannot be empty")
		}
	case domain.StatusImage, domain.StatusVideo:
		if opts.File == "" {
			return nil, domain.Validationf("file required for image/video status")
		}
	default:
		return nil, domain.Validationf("status type required")
	}

	background := opts.Background
	if background == "" {
		background = "#4f46e5"
	}

	st := domain.Status{
		ID:         domain.NewID("status"),
		UserID:     authorID,
		Type:       statusType,
		Text:       opts.Text,
		File:       opts.File,
		Background: background,
		Views:      []string{},
		Reactions:  []domain.Reaction{},
		Timestamp:  s.now(),
	}

	statuses := store.Load(s.kv, store.KeyStatus, []domain.Status{})
	statuses = append(statuses, st)
	store.Save(s.kv, store.KeyStatus, statuses)

	// Opportunistic cleanup on every post, like the sweep but inline.
	s.Sweep()

	return &st, nil
}

// Get returns one status by id, expired or not.
func (s *Service) Get(statusID string) (*domain.Status, error) {
	statuses := store.Load(s.kv, store.KeyStatus, []domain.Status{})
	for _, st := range statuses {
		if st.ID == statusID {
			out := st
			return &out, nil
		}
	}
	return nil, domain.NotFoundf("status not found")
}

// All returns statuses newest-first. Unless includeExpired is set, expired
// entries are filtered out defensively even if the sweep has not yet run.
func (s *Service) All(includeExpired bool) []domain.Status {
	statuses := store.Load(s.kv, store.KeyStatus, []domain.Status{})
	var out []domain.Status
	for _, st := range statuses {
		if !includeExpired && s.IsExpired(st) {
			continue
		}
		out = append(out, st)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// UserStatuses returns one author's statuses newest-first.
func (s *Service) UserStatuses(userID string, includeExpired bool) []domain.Status {
	var out []domain.Status
	for _, st := range s.All(includeExpired) {
		if st.UserID == userID {
			out = append(out, st)
		}
	}
	return out
}

// AuthorFeed is the statuses of one author, grouped for the status tray.
type AuthorFeed struct {
	UserID      string          `json:"userId"`
	UserName    string          `json:"userName"`
	AvatarColor string          `json:"avatarColor"`
	Statuses    []domain.Status `json:"statuses"`
	LatestTime  time.Time       `json:"latestTime"`
}

// FriendStatuses groups live statuses from the user's friends (and the user)
// per author, newest author first.
func (s *Service) FriendStatuses(userID string) []AuthorFeed {
	user := s.userByID(userID)
	if user == nil {
		return nil
	}
	users := store.Load(s.kv, store.KeyUsers, []domain.User{})

	feeds := make(map[string]*AuthorFeed)
	for _, st := range s.All(false) {
		if st.UserID != userID && !contains(user.Friends, st.UserID) {
			continue
		}
		feed, ok := feeds[st.UserID]
		if !ok {
			feed = &AuthorFeed{UserID: st.UserID, UserName: "Unknown", AvatarColor: "#6ee7b7"}
			for _, u := range users {
				if u.ID == st.UserID {
					feed.UserName = u.Name
					feed.AvatarColor = u.AvatarColor
					break
				}
			}
			feeds[st.UserID] = feed
		}
		feed.Statuses = append(feed.Statuses, st)
		if st.Timestamp.After(feed.LatestTime) {
			feed.LatestTime = st.Timestamp
		}
	}

	out := make([]AuthorFeed, 0, len(feeds))
	for _, f := range feeds {
		out = append(out, *f)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LatestTime.After(out[j].LatestTime)
	})
	return out
}

// View records viewerID on the status. Viewing twice is a no-op.
func (s *Service) View(statusID, viewerID string) error {
	statuses := store.Load(s.kv, store.KeyStatus, []domain.Status{})
	idx := indexOf(statuses, statusID)
	if idx == -1 {
		return domain.NotFoundf("status not found")
	}
	if contains(statuses[idx].Views, viewerID) {
		return nil
	}
	statuses[idx].Views = append(statuses[idx].Views, viewerID)
	store.Save(s.kv, store.KeyStatus, statuses)
	return nil
}

// React upserts the user's reaction; a later reaction replaces the earlier
// one rather than stacking.
func (s *Service) React(statusID, userID, emoji string) error {
	statuses := store.Load(s.kv, store.KeyStatus, []domain.Status{})
	idx := indexOf(statuses, statusID)
	if idx == -1 {
		return domain.NotFoundf("status not found")
	}

	replaced := false
	for i := range statuses[idx].Reactions {
		if statuses[idx].Reactions[i].UserID == userID {
			statuses[idx].Reactions[i].Emoji = emoji
			replaced = true
			break
		}
	}
	if !replaced {
		statuses[idx].Reactions = append(statuses[idx].Reactions, domain.Reaction{
			UserID: userID,
			Emoji:  emoji,
			Time:   s.now(),
		})
	}

	store.Save(s.kv, store.KeyStatus, statuses)
	return nil
}

// Delete removes a status; owner only.
func (s *Service) Delete(statusID, actorID string) error {
	statuses := store.Load(s.kv, store.KeyStatus, []domain.Status{})
	idx := indexOf(statuses, statusID)
	if idx == -1 {
		return domain.NotFoundf("status not found")
	}
	if statuses[idx].UserID != actorID {
		return domain.Unauthorizedf("you can only delete your own statuses")
	}

	statuses = append(statuses[:idx], statuses[idx+1:]...)
	store.Save(s.kv, store.KeyStatus, statuses)
	return nil
}

// IsExpired reports whether the status has reached its TTL.
func (s *Service) IsExpired(st domain.Status) bool {
	return s.now().Sub(st.Timestamp) >= TTL
}

// Sweep removes every expired status and returns how many were purged.
func (s *Service) Sweep() int {
	statuses := store.Load(s.kv, store.KeyStatus, []domain.Status{})
	kept := statuses[:0]
	for _, st := range statuses {
		if !s.IsExpired(st) {
			kept = append(kept, st)
		}
	}
	purged := len(statuses) - len(kept)
	store.Save(s.kv, store.KeyStatus, kept)
	if purged > 0 {
		s.log.Info("swept expired statuses", zap.Int("purged", purged))
	}
	return purged
}

// StartSweeper runs Sweep on the given interval until StopSweeper is called.
func (s *Service) StartSweeper(interval time.Duration) {
	if s.sweepCancel != nil {
		s.log.Warn("sweeper already running")
		return
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	s.sweepCtx, s.sweepCancel = context.WithCancel(context.Background())
	s.sweepWg.Add(1)
	go func() {
		defer s.sweepWg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.sweepCtx.Done():
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}

// StopSweeper stops the background sweep and waits for it to exit.
func (s *Service) StopSweeper() {
	if s.sweepCancel != nil {
		s.sweepCancel()
		s.sweepWg.Wait()
		s.sweepCancel = nil
	}
}

func (s *Service) userByID(id string) *domain.User {
	users := store.Load(s.kv, store.KeyUsers, []domain.User{})
	for _, u := range users {
		if u.ID == id {
			out := u
			return &out
		}
	}
	return nil
}

func indexOf(statuses []domain.Status, id string) int {
	for i := range statuses {
		if statuses[i].ID == id {
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
