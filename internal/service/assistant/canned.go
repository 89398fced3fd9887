package assistant

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"regent-connect/internal/data/store"
	"regent-connect/internal/domain"
)

// Canned is the offline responder. It matches keywords in the message and
// answers from a fixed set, pulling friend/group/message counts from the
// store for a contextual touch.
type Canned struct {
	kv *store.KV
}

func NewCanned(kv *store.KV) *Canned {
	return &Canned{kv: kv}
}

type rule struct {
	keywords []string
	respond  func(c *Canned, user *domain.User) string
}

var rules = []rule{
	{
		keywords: []string{"hello", "hi", "hey", "good morning", "good afternoon", "good evening"},
		respond: func(_ *Canned, user *domain.User) string {
			return pick(
				fmt.Sprintf("Hello %s! I'm Regent AI, your campus assistant. How can I help you today?", user.Name),
				fmt.Sprintf("Hey %s! What would you like to know about?", user.Name),
				"Hi! I'm here to help with campus info, friends, study tips, and more. What do you need?",
			)
		},
	},
	{
		keywords: []string{"friend", "people", "contacts", "connect"},
		respond: func(c *Canned, user *domain.User) string {
			n := len(user.Friends)
			if n == 0 {
				return "You currently have 0 friends on Regent Connect. Want to connect with someone? Try searching for users with similar interests!"
			}
			return fmt.Sprintf("You currently have %d %s on Regent Connect. Visit the chat or friends page to message them!", n, plural(n, "friend"))
		},
	},
	{
		keywords: []string{"group", "team"},
		respond: func(c *Canned, user *domain.User) string {
			groups := store.Load(c.kv, store.KeyGroups, []domain.Group{})
			n := 0
			for _, g := range groups {
				for _, m := range g.Members {
					if m == user.ID {
						n++
						break
					}
				}
			}
			msg := fmt.Sprintf("You're in %d %s. Groups are perfect for study sessions, project collaboration, and club activities.", n, plural(n, "group"))
			if n == 0 {
				msg += " Want to create one? Head to the groups page!"
			}
			return msg
		},
	},
	{
		keywords: []string{"message", "chat", "send", "talk"},
		respond: func(c *Canned, user *domain.User) string {
			msgs := store.Load(c.kv, store.KeyMessages, []domain.Message{})
			n := 0
			for _, m := range msgs {
				if m.From == user.ID || strings.Contains(m.ConvID, user.ID) {
					n++
				}
			}
			return fmt.Sprintf("You've exchanged %d messages on Regent Connect. Want to start a new conversation? Pick a friend or group and say hi!", n)
		},
	},
	{
		keywords: []string{"study", "exam", "test", "quiz", "revision", "learn"},
		respond: func(_ *Canned, _ *domain.User) string {
			return pick(
				"Study tips: use the Pomodoro technique, create a study group on Regent Connect, review notes daily, and teach concepts to others to reinforce learning.",
				"Effective studying: active recall, spaced repetition, break topics into chunks, and explain things simply - the Feynman technique works.",
				"Start with the hardest subjects when fresh, use flashcards for memorization, take practice tests, and sleep well before exams!",
			)
		},
	},
	{
		keywords: []string{"project", "idea", "build", "create", "develop"},
		respond: func(_ *Canned, _ *domain.User) string {
			return pick(
				"Project ideas: a campus event tracker, a study buddy matcher, a note summarizer, a timetable optimizer, or a student marketplace for books.",
				"Try a real-time collaboration tool for group work, a course review platform, or a lost-and-found tracker for campus.",
			)
		},
	},
	{
		keywords: []string{"event", "happening", "activity", "program"},
		respond: func(_ *Canned, _ *domain.User) string {
			return "Upcoming campus events: Tech Talk on AI in Education (Friday 3PM), Robotics Club meeting (Wednesday 5PM), hackathon registration open, and the career fair next month. Join relevant groups to stay updated!"
		},
	},
	{
		keywords: []string{"career", "job", "internship", "work"},
		respond: func(_ *Canned, _ *domain.User) string {
			return "Career tips: build a strong portfolio, network through campus events, apply for internships early, work on real projects, and practice interviews. Need advice for a specific field? Let me know!"
		},
	},
	{
		keywords: []string{"code", "program", "bug", "error", "debug", "algorithm"},
		respond: func(_ *Canned, _ *domain.User) string {
			return "Programming help: break the problem into smaller parts, add logging while debugging, read the documentation, and ask in study groups on Regent Connect. What language are you working with?"
		},
	},
	{
		keywords: []string{"stress", "anxiety", "pressure", "overwhelm", "mental"},
		respond: func(_ *Canned, _ *domain.User) string {
			return "Take breaks regularly, talk to friends, move daily, aim for 7-8 hours of sleep, and seek counseling if needed. It's okay to ask for help - your wellbeing matters!"
		},
	},
	{
		keywords: []string{"status", "story", "post", "update"},
		respond: func(_ *Canned, _ *domain.User) string {
			return "Status updates let you share photos, videos, or text with friends for 24 hours. You can see who viewed your status and react to theirs. Go share what's on your mind!"
		},
	},
	{
		keywords: []string{"who are you", "what are you", "about you", "your name"},
		respond: func(_ *Canned, _ *domain.User) string {
			return "I'm Regent AI, your campus assistant! I can help with finding information, connecting with peers, study guidance, project ideas, and platform support."
		},
	},
	{
		keywords: []string{"how", "use", "help", "feature", "tutorial"},
		respond: func(_ *Canned, _ *domain.User) string {
			return "Regent Connect features: private chat, groups, friend requests, 24-hour statuses, voice and video calls, and me - the assistant. What do you need help with?"
		},
	},
	{
		keywords: []string{"thank", "bye", "goodbye", "see you"},
		respond: func(_ *Canned, user *domain.User) string {
			return pick(
				fmt.Sprintf("You're welcome, %s! Feel free to come back anytime.", user.Name),
				"Glad I could help! Have a great day!",
				"Anytime! Good luck with your studies!",
			)
		},
	},
	{
		keywords: []string{"joke", "funny", "laugh", "fun"},
		respond: func(_ *Canned, _ *domain.User) string {
			return pick(
				"Why do programmers prefer dark mode? Because light attracts bugs!",
				"How many programmers does it take to change a light bulb? None, it's a hardware problem!",
				"What's a programmer's favorite hangout? The Foo Bar!",
			)
		},
	},
}

// Respond scans the rules in order and answers the first match; unmatched
// messages get a generic nudge listing what the assistant can do.
func (c *Canned) Respond(_ context.Context, user *domain.User, _ []domain.AIEntry, text string) (string, error) {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.respond(c, user), nil
			}
		}
	}
	snippet := text
	if len(snippet) > 50 {
		snippet = snippet[:50] + "..."
	}
	return pick(
		fmt.Sprintf("I understand you're asking about %q. I can help with friends and groups, study tips, campus events, project ideas, and career advice.", snippet),
		"That's interesting! Could you tell me more about what you're looking for? I can help with friends, groups, study tips, events, and more.",
		"I'm here to help! Ask me about friends and groups, study tips, campus events, project ideas, or career advice.",
	), nil
}

func pick(options ...string) string {
	return options[rand.Intn(len(options))]
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
