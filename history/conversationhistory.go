// Package history exposes a stored mentee conversation as a langchaingo chat
// message history, so chat chains can load and extend it directly.
package history

import (
	"context"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"github.com/zbir99/linkdeal-app-sub001/models"
)

// MessageStore is the subset of the conversation store the history needs.
type MessageStore interface {
	Get(ctx context.Context, id int64) (*models.MenteeConversation, error)
	AppendMessage(ctx context.Context, id int64, message models.Message) (*models.MenteeConversation, error)
	ReplaceMessages(ctx context.Context, id int64, messages models.Messages) (*models.MenteeConversation, error)
}

var _ schema.ChatMessageHistory = (*ConversationHistory)(nil)

// ConversationHistory is bound to one conversation record.
type ConversationHistory struct {
	store          MessageStore
	conversationID int64
}

func NewConversationHistory(store MessageStore, conversationID int64) *ConversationHistory {
	return &ConversationHistory{
		store:          store,
		conversationID: conversationID,
	}
}

func (h *ConversationHistory) AddMessage(ctx context.Context, message llms.ChatMessage) error {
	_, err := h.store.AppendMessage(ctx, h.conversationID, fromChatMessage(message))
	return err
}

func (h *ConversationHistory) AddUserMessage(ctx context.Context, message string) error {
	return h.AddMessage(ctx, llms.HumanChatMessage{Content: message})
}

func (h *ConversationHistory) AddAIMessage(ctx context.Context, message string) error {
	return h.AddMessage(ctx, llms.AIChatMessage{Content: message})
}

func (h *ConversationHistory) Clear(ctx context.Context) error {
	_, err := h.store.ReplaceMessages(ctx, h.conversationID, models.Messages{})
	return err
}

func (h *ConversationHistory) Messages(ctx context.Context) ([]llms.ChatMessage, error) {
	record, err := h.store.Get(ctx, h.conversationID)
	if err != nil {
		return nil, err
	}

	out := make([]llms.ChatMessage, 0, len(record.Messages))
	for _, m := range record.Messages {
		out = append(out, toChatMessage(m))
	}
	return out, nil
}

func (h *ConversationHistory) SetMessages(ctx context.Context, messages []llms.ChatMessage) error {
	stored := make(models.Messages, 0, len(messages))
	for _, m := range messages {
		stored = append(stored, fromChatMessage(m))
	}

	_, err := h.store.ReplaceMessages(ctx, h.conversationID, stored)
	return err
}

// MessageContents returns the transcript in the shape GenerateContent expects.
func (h *ConversationHistory) MessageContents(ctx context.Context) ([]llms.MessageContent, error) {
	record, err := h.store.Get(ctx, h.conversationID)
	if err != nil {
		return nil, err
	}

	content := make([]llms.MessageContent, 0, len(record.Messages))
	for _, m := range record.Messages {
		content = append(content, llms.TextParts(chatMessageType(m.Role), m.Content))
	}
	return content, nil
}

func chatMessageType(role string) llms.ChatMessageType {
	switch role {
	case models.RoleSystem:
		return llms.ChatMessageTypeSystem
	case models.RoleHuman:
		return llms.ChatMessageTypeHuman
	case models.RoleAI:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeGeneric
	}
}

func toChatMessage(m models.Message) llms.ChatMessage {
	switch m.Role {
	case models.RoleSystem:
		return llms.SystemChatMessage{Content: m.Content}
	case models.RoleHuman:
		return llms.HumanChatMessage{Content: m.Content}
	case models.RoleAI:
		return llms.AIChatMessage{Content: m.Content}
	default:
		return llms.GenericChatMessage{Content: m.Content, Role: m.Role}
	}
}

func fromChatMessage(message llms.ChatMessage) models.Message {
	role := string(message.GetType())

	// Generic messages carry their own role name.
	if generic, ok := message.(llms.GenericChatMessage); ok && generic.Role != "" {
		role = generic.Role
	}

	return models.Message{
		Role:    role,
		Content: message.GetContent(),
	}
}
