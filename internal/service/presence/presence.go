package presence

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"regent-connect/internal/data/store"
	"regent-connect/internal/domain"
)

// DefaultInterval is how often the heartbeat rewrites the presence fields.
const DefaultInterval = 30 * time.Second

// Service maintains a user's online flag and last-seen timestamp.
type Service struct {
	kv  *store.KV
	log *zap.Logger
	now func() time.Time

	hbCtx    context.Context
	hbCancel context.CancelFunc
	hbWg     sync.WaitGroup
	mu       sync.Mutex
}

// NewService creates a new presence Service.
func NewService(kv *store.KV, log *zap.Logger) *Service {
	return &Service{kv: kv, log: log.Named("presence"), now: time.Now}
}

// SetOnline rewrites the user's online flag and last-seen timestamp.
func (s *Service) SetOnline(userID string, online bool) {
	users := store.Load(s.kv, store.KeyUsers, []domain.User{})
	for i := range users {
		if users[i].ID == userID {
			users[i].Online = online
			users[i].LastSeen = s.now()
			store.Save(s.kv, store.KeyUsers, users)
			return
		}
	}
}

// StartHeartbeat keeps the user marked online on the given interval until
// StopHeartbeat. The final tick on stop marks the user offline.
func (s *Service) StartHeartbeat(userID string, interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hbCancel != nil {
		s.log.Warn("heartbeat already running")
		return
	}
	if interval <= 0 {
		interval = DefaultInterval
	}

	s.hbCtx, s.hbCancel = context.WithCancel(context.Background())
	s.SetOnline(userID, true)

	s.hbWg.Add(1)
	go func() {
		defer s.hbWg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.hbCtx.Done():
				s.SetOnline(userID, false)
				return
			case <-ticker.C:
				s.SetOnline(userID, true)
			}
		}
	}()
}

// StopHeartbeat stops the heartbeat and waits for the offline write.
func (s *Service) StopHeartbeat() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hbCancel != nil {
		s.hbCancel()
		s.hbWg.Wait()
		s.hbCancel = nil
	}
}
