package call

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"regent-connect/internal/data/store"
	"regent-connect/internal/domain"
)

// Service handles the simulated call lifecycle. Only bookkeeping: no
// signaling or media transport exists anywhere in the system.
type Service struct {
	kv  *store.KV
	log *zap.Logger
	now func() time.Time
}

// NewService creates a new call Service.
func NewService(kv *store.KV, log *zap.Logger) *Service {
	return &Service{kv: kv, log: log.Named("call"), now: time.Now}
}

// StartOptions names the call target: exactly one of UserID or GroupID.
type StartOptions struct {
	UserID  string
	GroupID string
	Type    string // "voice" or "video"; defaults to voice
}

// Start creates a call record in the calling state.
func (s *Service) Start(callerID string, opts StartOptions) (*domain.Call, error) {
	if opts.UserID == "" && opts.GroupID == "" {
		return nil, domain.Validationf("user id or group id required")
	}

	callType := opts.Type
	if callType == "" {
		callType = "voice"
	}

	c := domain.Call{
		ID:        domain.NewID("call"),
		Caller:    callerID,
		Receiver:  opts.UserID,
		GroupID:   opts.GroupID,
		Type:      callType,
		IsGroup:   opts.GroupID != "",
		Status:    domain.CallCalling,
		StartTime: s.now(),
	}

	calls := store.Load(s.kv, store.KeyCalls, []domain.Call{})
	calls = append(calls, c)
	store.Save(s.kv, store.KeyCalls, calls)

	return &c, nil
}

// Answer moves a ringing call to connected.
func (s *Service) Answer(callID string) (*domain.Call, error) {
	return s.transition(callID, domain.CallConnected, domain.CallCalling)
}

// End terminates a ringing or connected call and derives the duration in
// whole seconds from the start time.
func (s *Service) End(callID string) (*domain.Call, error) {
	return s.transition(callID, domain.CallEnded, domain.CallCalling, domain.CallConnected)
}

// Decline marks a ringing call declined.
func (s *Service) Decline(callID string) (*domain.Call, error) {
	return s.transition(callID, domain.CallDeclined, domain.CallCalling)
}

// MarkMissed marks a ringing call missed.
func (s *Service) MarkMissed(callID string) (*domain.Call, error) {
	return s.transition(callID, domain.CallMissed, domain.CallCalling)
}

func (s *Service) transition(callID string, to domain.CallStatus, from ...domain.CallStatus) (*domain.Call, error) {
	calls := store.Load(s.kv, store.KeyCalls, []domain.Call{})
	idx := indexOf(calls, callID)
	if idx == -1 {
		return nil, domain.NotFoundf("call not found")
	}

	allowed := false
	for _, f := range from {
		if calls[idx].Status == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, domain.Validationf("call is %s, cannot mark %s", calls[idx].Status, to)
	}

	calls[idx].Status = to
	if to != domain.CallConnected {
		calls[idx].EndTime = s.now()
	}
	if to == domain.CallEnded {
		calls[idx].Duration = int(calls[idx].EndTime.Sub(calls[idx].StartTime) / time.Second)
	}
	store.Save(s.kv, store.KeyCalls, calls)

	c := calls[idx]
	return &c, nil
}

// Get returns one call by id.
func (s *Service) Get(callID string) (*domain.Call, error) {
	calls := store.Load(s.kv, store.KeyCalls, []domain.Call{})
	idx := indexOf(calls, callID)
	if idx == -1 {
		return nil, domain.NotFoundf("call not found")
	}
	c := calls[idx]
	return &c, nil
}

// HistoryEntry is a call decorated with counterpart metadata for display.
type HistoryEntry struct {
	domain.Call
	Name       string `json:"name"`
	Avatar     string `json:"avatar"`
	IsIncoming bool   `json:"isIncoming"`
	IsOutgoing bool   `json:"isOutgoing"`
}

// History returns the user's calls newest-first with peer or group metadata
// attached, truncated to limit.
func (s *Service) History(userID string, limit int) []HistoryEntry {
	calls := store.Load(s.kv, store.KeyCalls, []domain.Call{})
	users := store.Load(s.kv, store.KeyUsers, []domain.User{})
	groups := store.Load(s.kv, store.KeyGroups, []domain.Group{})

	var mine []domain.Call
	for _, c := range calls {
		if c.Caller == userID || c.Receiver == userID {
			mine = append(mine, c)
		}
	}
	sort.SliceStable(mine, func(i, j int) bool {
		return mine[i].StartTime.After(mine[j].StartTime)
	})
	if limit > 0 && len(mine) > limit {
		mine = mine[:limit]
	}

	out := make([]HistoryEntry, 0, len(mine))
	for _, c := range mine {
		entry := HistoryEntry{Call: c}
		if c.IsGroup {
			entry.Name = "Unknown Group"
			entry.Avatar = "#8b5cf6"
			for _, g := range groups {
				if g.ID == c.GroupID {
					entry.Name = g.Name
					entry.Avatar = g.Avatar
					break
				}
			}
		} else {
			otherID := c.Receiver
			if c.Caller != userID {
				otherID = c.Caller
			}
			entry.Name = "Unknown User"
			entry.Avatar = "#6ee7b7"
			for _, u := range users {
				if u.ID == otherID {
					entry.Name = u.Name
					entry.Avatar = u.AvatarColor
					break
				}
			}
			entry.IsIncoming = c.Receiver == userID
			entry.IsOutgoing = c.Caller == userID
		}
		out = append(out, entry)
	}
	return out
}

// Missed returns calls the user missed, newest-first.
func (s *Service) Missed(userID string) []domain.Call {
	calls := store.Load(s.kv, store.KeyCalls, []domain.Call{})
	var out []domain.Call
	for _, c := range calls {
		if c.Receiver == userID && c.Status == domain.CallMissed {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime.After(out[j].StartTime)
	})
	return out
}

// TotalDuration sums call seconds between two users, either direction.
func (s *Service) TotalDuration(userA, userB string) int {
	calls := store.Load(s.kv, store.KeyCalls, []domain.Call{})
	total := 0
	for _, c := range calls {
		if (c.Caller == userA && c.Receiver == userB) || (c.Caller == userB && c.Receiver == userA) {
			total += c.Duration
		}
	}
	return total
}

// Stats summarizes a user's call history.
type Stats struct {
	TotalCalls      int `json:"totalCalls"`
	VoiceCalls      int `json:"voiceCalls"`
	VideoCalls      int `json:"videoCalls"`
	IncomingCalls   int `json:"incomingCalls"`
	OutgoingCalls   int `json:"outgoingCalls"`
	MissedCalls     int `json:"missedCalls"`
	TotalDuration   int `json:"totalDuration"`
	AverageDuration int `json:"averageDuration"`
}

// UserStats aggregates over the user's full history.
func (s *Service) UserStats(userID string) Stats {
	entries := s.History(userID, 0)
	st := Stats{TotalCalls: len(entries)}
	for _, e := range entries {
		switch e.Type {
		case "voice":
			st.VoiceCalls++
		case "video":
			st.VideoCalls++
		}
		if e.IsIncoming {
			st.IncomingCalls++
		}
		if e.IsOutgoing {
			st.OutgoingCalls++
		}
		if e.Status == domain.CallMissed {
			st.MissedCalls++
		}
		st.TotalDuration += e.Duration
	}
	if st.TotalCalls > 0 {
		st.AverageDuration = st.TotalDuration / st.TotalCalls
	}
	return st
}

// Clear removes every call involving the user and returns the count.
func (s *Service) Clear(userID string) int {
	calls := store.Load(s.kv, store.KeyCalls, []domain.Call{})
	kept := calls[:0]
	for _, c := range calls {
		if c.Caller != userID && c.Receiver != userID {
			kept = append(kept, c)
		}
	}
	removed := len(calls) - len(kept)
	store.Save(s.kv, store.KeyCalls, kept)
	return removed
}

func indexOf(calls []domain.Call, id string) int {
	for i := range calls {
		if calls[i].ID == id {
			return i
		}
	}
	return -1
}
