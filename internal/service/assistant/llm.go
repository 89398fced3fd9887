package assistant

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"

	"regent-connect/internal/domain"
	"regent-connect/internal/infra/config"
)

const systemPrompt = "You are Regent AI, the friendly campus assistant inside " +
	"Regent Connect, a student social app. Help with study tips, campus life, " +
	"project ideas, career advice, and using the app (chat, groups, friends, " +
	"statuses, calls). Keep replies short and conversational."

// LLM answers through an OpenAI-compatible chat completion endpoint.
type LLM struct {
	client *openai.Client
	model  string
}

func NewLLM(cfg *config.AIConfig) *LLM {
	opts := []option.RequestOption{}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}

	cl := openai.NewClient(opts...)
	return &LLM{client: &cl, model: cfg.Model}
}

// Respond sends the system prompt, the recent history, and the new message
// to the model and returns the completion text.
func (l *LLM) Respond(ctx context.Context, user *domain.User, history []domain.AIEntry, text string) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Role:    constant.System("system"),
				Content: openai.ChatCompletionSystemMessageParamContentUnion{OfString: openai.String(systemPrompt)},
			},
		},
	}
	for _, entry := range history {
		switch entry.Role {
		case "assistant":
			messages = append(messages, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Role:    constant.Assistant("assistant"),
					Content: openai.ChatCompletionAssistantMessageParamContentUnion{OfString: openai.String(entry.Text)},
				},
			})
		default:
			messages = append(messages, openai.ChatCompletionMessageParamUnion{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Role:    constant.User("user"),
					Content: openai.ChatCompletionUserMessageParamContentUnion{OfString: openai.String(entry.Text)},
					Name:    openai.String(user.Name),
				},
			})
		}
	}
	messages = append(messages, openai.ChatCompletionMessageParamUnion{
		OfUser: &openai.ChatCompletionUserMessageParam{
			Role:    constant.User("user"),
			Content: openai.ChatCompletionUserMessageParamContentUnion{OfString: openai.String(text)},
			Name:    openai.String(user.Name),
		},
	})

	resp, err := l.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: messages,
		Model:    shared.ChatModel(l.model),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
