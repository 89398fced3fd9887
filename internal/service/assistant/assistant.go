package assistant

import (
	"context"
	"time"

	"go.uber.org/zap"

	"regent-connect/internal/data/store"
	"regent-connect/internal/domain"
	"regent-connect/internal/infra/config"
	"regent-connect/internal/service/chat"
)

// Responder produces an assistant reply from the user's message and the
// recent conversation history.
type Responder interface {
	Respond(ctx context.Context, user *domain.User, history []domain.AIEntry, text string) (string, error)
}

// Service runs the simulated assistant. Replies land both in the capped
// assistant history and in the user's chat conversation with the assistant
// account.
type Service struct {
	kv        *store.KV
	chat      *chat.Service
	responder Responder
	log       *zap.Logger
	now       func() time.Time

	delay        time.Duration
	historyLimit int
}

// NewService creates the assistant. With the LLM enabled and an API key
// configured the LLM responder is used; otherwise the canned keyword
// responder.
func NewService(kv *store.KV, chatSvc *chat.Service, cfg *config.AIConfig, log *zap.Logger) *Service {
	var responder Responder
	if cfg.Enabled && cfg.APIKey != "" {
		responder = NewLLM(cfg)
	} else {
		responder = NewCanned(kv)
	}
	return &Service{
		kv:           kv,
		chat:         chatSvc,
		responder:    responder,
		log:          log.Named("assistant"),
		now:          time.Now,
		delay:        time.Duration(cfg.ThinkingDelayMs) * time.Millisecond,
		historyLimit: cfg.HistoryLimit,
	}
}

// Ask records the user's message, waits the thinking delay, and returns the
// assistant's reply. Both turns go into the capped history and the reply is
// also appended to the user's conversation with the assistant.
func (s *Service) Ask(ctx context.Context, userID, text string) (string, error) {
	user, history, err := s.accept(userID, text)
	if err != nil {
		return "", err
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(s.delay):
	}

	return s.reply(ctx, user, history, userID, text)
}

// ScheduleReply arranges an assistant reply after the thinking delay without
// blocking the caller. The timer body runs entirely against fire-time state,
// so the reply still lands if the conversation was cleared in the meantime.
func (s *Service) ScheduleReply(userID, text string) *time.Timer {
	return time.AfterFunc(s.delay, func() {
		user, history, err := s.accept(userID, text)
		if err != nil {
			s.log.Warn("scheduled reply dropped", zap.Error(err))
			return
		}
		if _, err := s.reply(context.Background(), user, history, userID, text); err != nil {
			s.log.Warn("scheduled reply failed", zap.Error(err))
		}
	})
}

// accept validates the request and records the user's turn in the history.
func (s *Service) accept(userID, text string) (*domain.User, []domain.AIEntry, error) {
	if text == "" {
		return nil, nil, domain.Validationf("message cannot be empty")
	}

	user := s.userByID(userID)
	if user == nil {
		return nil, nil, domain.NotFoundf("user not found")
	}

	history := s.History()
	s.appendHistory(domain.AIEntry{Role: "user", Text: text, Time: s.now()})
	return user, history, nil
}

// reply produces the assistant's turn and mirrors it into the user's chat
// conversation with the assistant account.
func (s *Service) reply(ctx context.Context, user *domain.User, history []domain.AIEntry, userID, text string) (string, error) {
	reply, err := s.responder.Respond(ctx, user, history, text)
	if err != nil {
		s.log.Warn("responder failed, falling back to canned", zap.Error(err))
		reply, err = NewCanned(s.kv).Respond(ctx, user, history, text)
		if err != nil {
			return "", err
		}
	}

	s.appendHistory(domain.AIEntry{Role: "assistant", Text: reply, Time: s.now()})

	if _, err := s.chat.Send(domain.AssistantID, userID, reply, chat.SendOptions{}); err != nil {
		s.log.Warn("failed to mirror reply into chat", zap.Error(err))
	}

	return reply, nil
}

// History returns the assistant conversation history, oldest first.
func (s *Service) History() []domain.AIEntry {
	return store.Load(s.kv, store.KeyAIHistory, []domain.AIEntry{})
}

// appendHistory appends one entry, keeping only the most recent entries up
// to the configured limit.
func (s *Service) appendHistory(entry domain.AIEntry) {
	history := s.History()
	history = append(history, entry)
	if len(history) > s.historyLimit {
		history = history[len(history)-s.historyLimit:]
	}
	store.Save(s.kv, store.KeyAIHistory, history)
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
